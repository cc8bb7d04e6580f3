package core

import "time"

// ThreadExecutionRecord captures a finished thread.
type ThreadExecutionRecord struct {
	ThreadID              uint64
	Name                  string
	Priority              int
	PeakEffectivePriority int
	StartedAt             time.Time
	FinishedAt            time.Time
	Duration              time.Duration
	Panicked              bool
}

// KernelStats represents runtime observability state for a kernel.
type KernelStats struct {
	Name     string
	Live     int // forked and not yet finished
	Blocked  int // live threads inside BlockUntilReady
	Donated  int // live threads whose effective priority exceeds their base
	Forked   uint64
	Finished uint64
	Panicked uint64
	Closed   bool
}

// AlarmStats represents runtime observability state for an alarm.
type AlarmStats struct {
	Pending int
	Woken   uint64
	Ticks   uint64
	Running bool
}
