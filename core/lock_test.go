package core

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLock_MutualExclusion verifies that at most one thread holds the lock
// Given: Ten threads incrementing a shared counter under one lock
// When: They all finish
// Then: No increment is lost and no two threads were inside at once
func TestLock_MutualExclusion(t *testing.T) {
	// Arrange
	k := newTestKernel(t, nil)
	lock := NewLock(k, "counter")
	var (
		counter int
		inside  int
		overlap bool
	)

	// Act
	var threads []*KThread
	for i := range 10 {
		threads = append(threads, fork(t, k, "", 1+i%PriorityMaximum, func(ctx context.Context) {
			for range 50 {
				lock.Acquire(ctx)
				inside++
				if inside > 1 {
					overlap = true
				}
				counter++
				inside--
				lock.Release(ctx)
			}
		}))
	}
	for _, th := range threads {
		waitDone(t, th)
	}

	// Assert
	assert.Equal(t, 500, counter)
	assert.False(t, overlap)
}

// TestLock_HandoffByPriority verifies the release order and donation
// Given: A priority-1 holder and waiters of priority 2, 5 and 3
// When: The holder releases and each waiter releases in turn
// Then: Waiters acquire in priority order, and the holder inherits 5 while they wait
func TestLock_HandoffByPriority(t *testing.T) {
	// Arrange
	k := newTestKernel(t, nil)
	lock := NewLock(k, "handoff")
	release := make(chan struct{})
	held := make(chan struct{})

	holder := fork(t, k, "holder", 1, func(ctx context.Context) {
		lock.Acquire(ctx)
		close(held)
		<-release
		lock.Release(ctx)
	})
	<-held

	var (
		mu    sync.Mutex
		order []string
	)
	var waiters []*KThread
	for _, w := range []struct {
		name     string
		priority int
	}{{"two", 2}, {"five", 5}, {"three", 3}} {
		waiters = append(waiters, fork(t, k, w.name, w.priority, func(ctx context.Context) {
			lock.Acquire(ctx)
			mu.Lock()
			order = append(order, CurrentThread(ctx).Name())
			mu.Unlock()
			lock.Release(ctx)
		}))
	}
	eventually(t, func() bool { return lock.Waiting(context.Background()) == 3 }, "all waiters should block")

	// Assert - donation to the holder
	assert.Equal(t, 5, effectiveOf(k, holder))

	// Act
	close(release)
	for _, th := range waiters {
		waitDone(t, th)
	}

	// Assert
	assert.Equal(t, []string{"five", "three", "two"}, order)
	waitDone(t, holder)
	assert.Equal(t, 1, effectiveOf(k, holder))
}

// TestLock_Misuse verifies lock preconditions
// Given: A lock
// When: It is released without being held, or acquired twice
// Then: Both calls panic, and IsHeldByCurrentThread reports correctly
func TestLock_Misuse(t *testing.T) {
	k := newTestKernel(t, nil)
	lock := NewLock(k, "misuse")

	runOn(t, k, func(ctx context.Context) {
		assert.False(t, lock.IsHeldByCurrentThread(ctx))
		assert.Panics(t, func() { lock.Release(ctx) })

		lock.Acquire(ctx)
		assert.True(t, lock.IsHeldByCurrentThread(ctx))
		assert.Panics(t, func() { lock.Acquire(ctx) })
		lock.Release(ctx)
		assert.False(t, lock.IsHeldByCurrentThread(ctx))
	})

	assert.False(t, lock.IsHeldByCurrentThread(context.Background()))
	assert.Panics(t, func() { lock.Acquire(context.Background()) })
}

// TestCondition_WakeByPriority verifies condition wake order
// Given: Three threads of priority 2, 6 and 4 sleeping on a condition
// When: Wake is called three times
// Then: Sleepers resume in priority order
func TestCondition_WakeByPriority(t *testing.T) {
	// Arrange
	k := newTestKernel(t, nil)
	lock := NewLock(k, "cv")
	cond := NewCondition(lock)
	woke := make(chan string, 3)
	var sleepers []*KThread

	for _, s := range []struct {
		name     string
		priority int
	}{{"two", 2}, {"six", 6}, {"four", 4}} {
		sleepers = append(sleepers, fork(t, k, s.name, s.priority, func(ctx context.Context) {
			lock.Acquire(ctx)
			cond.Sleep(ctx)
			woke <- CurrentThread(ctx).Name()
			lock.Release(ctx)
		}))
	}
	eventually(t, func() bool { return cond.Sleepers(context.Background()) == 3 }, "all threads should sleep")

	// Act - wake one at a time, waiting for each to resume
	var order []string
	runOn(t, k, func(ctx context.Context) {
		for range 3 {
			lock.Acquire(ctx)
			cond.Wake(ctx)
			lock.Release(ctx)
			order = append(order, <-woke)
		}
	})
	for _, th := range sleepers {
		waitDone(t, th)
	}

	// Assert
	assert.Equal(t, []string{"six", "four", "two"}, order)
	assert.Equal(t, "cv/cond", cond.Name())
}

// TestCondition_WakeAll verifies every sleeper is released
// Given: Four sleepers waiting for a flag
// When: The flag is set and WakeAll is called once
// Then: Every sleeper finishes
func TestCondition_WakeAll(t *testing.T) {
	k := newTestKernel(t, nil)
	lock := NewLock(k, "flag")
	cond := NewCondition(lock)
	ready := false

	var sleepers []*KThread
	for range 4 {
		sleepers = append(sleepers, fork(t, k, "", PriorityDefault, func(ctx context.Context) {
			lock.Acquire(ctx)
			for !ready {
				cond.Sleep(ctx)
			}
			lock.Release(ctx)
		}))
	}
	eventually(t, func() bool { return cond.Sleepers(context.Background()) == 4 }, "all threads should sleep")

	runOn(t, k, func(ctx context.Context) {
		lock.Acquire(ctx)
		ready = true
		cond.WakeAll(ctx)
		lock.Release(ctx)
	})

	for _, th := range sleepers {
		waitDone(t, th)
	}
	assert.Equal(t, 0, cond.Sleepers(context.Background()))
}

// TestCondition_RequiresLock verifies condition preconditions
// Given: A condition whose lock is not held
// When: Sleep, Wake or WakeAll is called
// Then: Each call panics
func TestCondition_RequiresLock(t *testing.T) {
	k := newTestKernel(t, nil)
	lock := NewLock(k, "unheld")
	cond := NewCondition(lock)

	runOn(t, k, func(ctx context.Context) {
		assert.Panics(t, func() { cond.Sleep(ctx) })
		assert.Panics(t, func() { cond.Wake(ctx) })
		assert.Panics(t, func() { cond.WakeAll(ctx) })
	})
	require.False(t, k.Interrupt().Disabled())
}
