package core

import (
	"sync/atomic"
	"time"
)

// Clock reports the current time in ticks.
type Clock interface {
	Now() uint64
}

// ManualClock is a Clock advanced explicitly, for deterministic schedules.
type ManualClock struct {
	now atomic.Uint64
}

// NewManualClock creates a clock reading start.
func NewManualClock(start uint64) *ManualClock {
	c := &ManualClock{}
	c.now.Store(start)
	return c
}

func (c *ManualClock) Now() uint64 { return c.now.Load() }

// Set moves the clock to now.
func (c *ManualClock) Set(now uint64) { c.now.Store(now) }

// Advance moves the clock forward by d ticks and returns the new time.
func (c *ManualClock) Advance(d uint64) uint64 { return c.now.Add(d) }

// TickClock counts ticks of a fixed wall-clock duration since its creation.
type TickClock struct {
	start time.Time
	tick  time.Duration
}

// NewTickClock creates a clock whose ticks last tick. A non-positive tick
// defaults to one millisecond.
func NewTickClock(tick time.Duration) *TickClock {
	if tick <= 0 {
		tick = time.Millisecond
	}
	return &TickClock{start: time.Now(), tick: tick}
}

func (c *TickClock) Now() uint64 {
	return uint64(time.Since(c.start) / c.tick)
}

// Tick returns the duration of one tick.
func (c *TickClock) Tick() time.Duration { return c.tick }
