package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// TestCommunicator_SingleExchange verifies one speaker and one listener
// Given: A listener waiting on a communicator
// When: A speaker speaks 42
// Then: The listener receives 42 and both return
func TestCommunicator_SingleExchange(t *testing.T) {
	k := newTestKernel(t, nil)
	c := NewCommunicator(k, "")
	var heard int

	listener := fork(t, k, "listener", PriorityDefault, func(ctx context.Context) {
		heard = c.Listen(ctx)
	})
	speaker := fork(t, k, "speaker", PriorityDefault, func(ctx context.Context) {
		c.Speak(ctx, 42)
	})

	waitDone(t, speaker)
	waitDone(t, listener)
	assert.Equal(t, 42, heard)
}

// TestCommunicator_SpeakBlocksUntilHeard verifies the rendezvous
// Given: A speaker with no listener
// When: Some time passes, then a listener arrives
// Then: The speaker does not return until the word has been received
func TestCommunicator_SpeakBlocksUntilHeard(t *testing.T) {
	// Arrange
	k := newTestKernel(t, nil)
	c := NewCommunicator(k, "rendezvous")
	var spoke atomic.Bool

	speaker := fork(t, k, "speaker", 5, func(ctx context.Context) {
		c.Speak(ctx, 7)
		spoke.Store(true)
	})

	// Assert - still waiting
	time.Sleep(30 * time.Millisecond)
	assert.False(t, spoke.Load())

	// Act
	var heard int
	listener := fork(t, k, "listener", 2, func(ctx context.Context) {
		heard = c.Listen(ctx)
	})

	// Assert
	waitDone(t, listener)
	waitDone(t, speaker)
	assert.True(t, spoke.Load())
	assert.Equal(t, 7, heard)
}

// TestCommunicator_ListenerFirst verifies listeners may arrive first
// Given: Two listeners already waiting
// When: Two speakers speak
// Then: Each word is received exactly once
func TestCommunicator_ListenerFirst(t *testing.T) {
	k := newTestKernel(t, nil)
	c := NewCommunicator(k, "listeners-first")
	results := make(chan int, 2)

	var threads []*KThread
	for range 2 {
		threads = append(threads, fork(t, k, "", PriorityDefault, func(ctx context.Context) {
			results <- c.Listen(ctx)
		}))
	}
	time.Sleep(10 * time.Millisecond)
	for _, w := range []int{1, 2} {
		threads = append(threads, fork(t, k, "", PriorityDefault, func(ctx context.Context) {
			c.Speak(ctx, w)
		}))
	}
	for _, th := range threads {
		waitDone(t, th)
	}

	close(results)
	var got []int
	for w := range results {
		got = append(got, w)
	}
	assert.ElementsMatch(t, []int{1, 2}, got)
}

// TestCommunicator_ManySpeakersAndListeners verifies no word is lost or duplicated
// Given: Four speakers and four listeners, each exchanging five words
// When: They all run concurrently
// Then: The multiset of heard words equals the multiset of spoken words
func TestCommunicator_ManySpeakersAndListeners(t *testing.T) {
	// Arrange
	k := newTestKernel(t, nil)
	c := NewCommunicator(k, "many")
	const (
		pairs = 4
		words = 5
	)

	var (
		mu    sync.Mutex
		heard []int
	)
	var spoken []int
	for s := range pairs {
		for w := range words {
			spoken = append(spoken, s*100+w)
		}
	}

	// Act
	g, ctx := errgroup.WithContext(context.Background())
	spawn := func(name string, priority int, fn func(ctx context.Context)) {
		g.Go(func() error {
			th, err := k.Fork(ctx, name, priority, fn)
			if err != nil {
				return err
			}
			select {
			case <-th.Done():
				return nil
			case <-time.After(testTimeout):
				return fmt.Errorf("%s did not finish", name)
			}
		})
	}
	for s := range pairs {
		spawn(fmt.Sprintf("speaker-%d", s), 1+s, func(ctx context.Context) {
			for w := range words {
				c.Speak(ctx, s*100+w)
			}
		})
		spawn(fmt.Sprintf("listener-%d", s), PriorityMaximum-s, func(ctx context.Context) {
			for range words {
				word := c.Listen(ctx)
				mu.Lock()
				heard = append(heard, word)
				mu.Unlock()
			}
		})
	}

	// Assert
	require.NoError(t, g.Wait())
	sort.Ints(heard)
	assert.Equal(t, spoken, heard)
}
