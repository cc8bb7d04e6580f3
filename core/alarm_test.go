package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wakeRecord struct {
	name string
	at   uint64
}

// TestAlarm_WakesInDeadlineOrder verifies sleepers wake at their deadlines
// Given: A manual clock at 0 and threads sleeping for 10, 10 and 20 ticks
// When: Timer interrupts fire at 5, 10, 15 and 20
// Then: Both 10-tick sleepers wake at 10 in arrival order, and the 20-tick sleeper at 20
func TestAlarm_WakesInDeadlineOrder(t *testing.T) {
	// Arrange
	metrics := newRecordingMetrics()
	k := newTestKernel(t, &KernelConfig{Metrics: metrics})
	clock := NewManualClock(0)
	alarm := NewAlarm(k, clock)
	woke := make(chan wakeRecord, 3)

	var sleepers []*KThread
	for _, s := range []struct {
		name  string
		ticks uint64
	}{{"a", 10}, {"b", 10}, {"c", 20}} {
		sleepers = append(sleepers, fork(t, k, s.name, PriorityDefault, func(ctx context.Context) {
			alarm.WaitUntil(ctx, s.ticks)
			woke <- wakeRecord{name: CurrentThread(ctx).Name(), at: clock.Now()}
		}))
		eventually(t, func() bool { return alarm.Pending() == len(sleepers) }, "sleeper should register")
	}

	tick := func(now uint64) int {
		clock.Set(now)
		var n int
		runOn(t, k, func(ctx context.Context) { n = alarm.TimerInterrupt(ctx) })
		return n
	}

	// Act / Assert
	assert.Equal(t, 0, tick(5))
	assert.Equal(t, 2, tick(10))
	first, second := <-woke, <-woke
	assert.ElementsMatch(t, []string{"a", "b"}, []string{first.name, second.name})
	assert.Equal(t, uint64(10), first.at)
	assert.Equal(t, uint64(10), second.at)

	assert.Equal(t, 0, tick(15))
	assert.Equal(t, 1, tick(20))
	last := <-woke
	assert.Equal(t, "c", last.name)
	assert.Equal(t, uint64(20), last.at)

	for _, th := range sleepers {
		waitDone(t, th)
	}

	stats := alarm.Stats()
	assert.Equal(t, 0, stats.Pending)
	assert.Equal(t, uint64(3), stats.Woken)
	assert.Equal(t, uint64(4), stats.Ticks)
	assert.False(t, stats.Running)

	metrics.mu.Lock()
	assert.Equal(t, 3, metrics.wakeups)
	metrics.mu.Unlock()
}

// TestAlarm_ExpiryOrder verifies the order sleepers leave the alarm
// Given: Sleepers registered for 30, 10 and 20 ticks
// When: One interrupt fires after all deadlines
// Then: All three are woken by that interrupt
func TestAlarm_ExpiryOrder(t *testing.T) {
	k := newTestKernel(t, nil)
	clock := NewManualClock(100)
	alarm := NewAlarm(k, clock)

	var sleepers []*KThread
	for _, ticks := range []uint64{30, 10, 20} {
		sleepers = append(sleepers, fork(t, k, "", PriorityDefault, func(ctx context.Context) {
			alarm.WaitUntil(ctx, ticks)
		}))
		eventually(t, func() bool { return alarm.Pending() == len(sleepers) }, "sleeper should register")
	}

	// heap order is by deadline
	alarm.mu.Lock()
	assert.Equal(t, uint64(110), alarm.pq.peek().wakeTime)
	alarm.mu.Unlock()

	clock.Advance(50)
	var n int
	runOn(t, k, func(ctx context.Context) { n = alarm.TimerInterrupt(ctx) })
	assert.Equal(t, 3, n)

	for _, th := range sleepers {
		waitDone(t, th)
	}
}

// TestAlarm_ZeroTicks verifies WaitUntil(0) returns immediately
func TestAlarm_ZeroTicks(t *testing.T) {
	k := newTestKernel(t, nil)
	alarm := NewAlarm(k, NewManualClock(0))

	runOn(t, k, func(ctx context.Context) {
		alarm.WaitUntil(ctx, 0)
	})
	assert.Equal(t, 0, alarm.Pending())
}

// TestAlarm_StartStop verifies the ticker loop
// Given: An alarm on a millisecond tick clock, started with a millisecond interval
// When: A thread sleeps for five ticks
// Then: The loop wakes it, and Stop ends the loop thread
func TestAlarm_StartStop(t *testing.T) {
	// Arrange
	k := newTestKernel(t, nil)
	alarm := NewAlarm(k, NewTickClock(time.Millisecond))
	require.NoError(t, alarm.Start(context.Background(), time.Millisecond))
	require.NoError(t, alarm.Start(context.Background(), time.Millisecond), "second start is a no-op")
	assert.True(t, alarm.Stats().Running)

	// Act
	sleeper := fork(t, k, "sleeper", 3, func(ctx context.Context) {
		alarm.WaitUntil(ctx, 5)
	})

	// Assert
	waitDone(t, sleeper)
	alarm.Stop()
	alarm.Stop()

	stats := alarm.Stats()
	assert.False(t, stats.Running)
	assert.Positive(t, stats.Ticks)
	assert.Equal(t, uint64(1), stats.Woken)
}

// TestManualClock verifies Set and Advance
func TestManualClock(t *testing.T) {
	c := NewManualClock(7)
	assert.Equal(t, uint64(7), c.Now())
	assert.Equal(t, uint64(10), c.Advance(3))
	c.Set(42)
	assert.Equal(t, uint64(42), c.Now())
}

// TestTickClock verifies wall-clock ticks advance
func TestTickClock(t *testing.T) {
	c := NewTickClock(0)
	assert.Equal(t, time.Millisecond, c.Tick())
	start := c.Now()
	eventually(t, func() bool { return c.Now() > start }, "tick clock should advance")
}
