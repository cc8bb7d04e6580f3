package core

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-catrate"
)

// PriorityScheduler chooses threads by priority, and donates priority through
// transfer-priority queues to bound priority inversion.
//
// The thread dequeued by a PriorityQueue is always one with effective priority
// no less than any other waiter's; among equals, the one that has waited
// longest. Lower priorities may starve.
//
// The scheduler holds no per-thread or per-queue state itself: thread state
// lives on the thread handle, queue state on the queue. Every method requires
// exclusive access through the Interrupt it was created with, except
// IncreasePriority and DecreasePriority, which take it themselves.
type PriorityScheduler struct {
	intr    *Interrupt
	logger  Logger
	metrics Metrics

	cycleWarnings *catrate.Limiter
	queueSeq      atomic.Uint64
}

// NewPriorityScheduler creates a scheduler guarded by intr. A nil config uses
// DefaultKernelConfig.
func NewPriorityScheduler(intr *Interrupt, config *KernelConfig) *PriorityScheduler {
	if intr == nil {
		panic(violation("nil interrupt"))
	}
	config = config.withDefaults()

	return &PriorityScheduler{
		intr:    intr,
		logger:  config.Logger,
		metrics: config.Metrics,
		cycleWarnings: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 1,
			time.Minute: 10,
		}),
	}
}

// Interrupt returns the exclusion guarding this scheduler.
func (s *PriorityScheduler) Interrupt() *Interrupt { return s.intr }

// NewQueue allocates a queue. If transferPriority is true, waiters donate
// their priority to the queue's owner.
func (s *PriorityScheduler) NewQueue(transferPriority bool) *PriorityQueue {
	return s.NewNamedQueue("", transferPriority)
}

// NewNamedQueue is NewQueue with a name for logs and metrics.
func (s *PriorityScheduler) NewNamedQueue(name string, transferPriority bool) *PriorityQueue {
	id := s.queueSeq.Add(1)
	if name == "" {
		name = fmt.Sprintf("queue-%d", id)
	}
	return &PriorityQueue{
		name:             name,
		scheduler:        s,
		transferPriority: transferPriority,
		waiters:          make(waiterHeap, 0, 4),
	}
}

// GetPriority returns the base priority of thread.
func (s *PriorityScheduler) GetPriority(thread Thread) int {
	s.intr.assertDisabled("GetPriority")
	return s.threadState(thread).Priority()
}

// GetEffectivePriority returns the priority of thread including donation.
func (s *PriorityScheduler) GetEffectivePriority(thread Thread) int {
	s.intr.assertDisabled("GetEffectivePriority")
	return s.threadState(thread).EffectivePriority()
}

// SetPriority sets the base priority of thread. Values outside
// [PriorityMinimum, PriorityMaximum] are rejected with ErrPriorityOutOfRange,
// leaving the thread untouched.
func (s *PriorityScheduler) SetPriority(thread Thread, priority int) error {
	s.intr.assertDisabled("SetPriority")
	if !ValidPriority(priority) {
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrPriorityOutOfRange, priority, PriorityMinimum, PriorityMaximum)
	}
	s.threadState(thread).setPriority(priority)
	return nil
}

// IncreasePriority raises the calling thread's priority by one. It returns
// false, changing nothing, if the priority is already PriorityMaximum.
func (s *PriorityScheduler) IncreasePriority(ctx context.Context) bool {
	return s.stepPriority(ctx, 1)
}

// DecreasePriority lowers the calling thread's priority by one. It returns
// false, changing nothing, if the priority is already PriorityMinimum.
func (s *PriorityScheduler) DecreasePriority(ctx context.Context) bool {
	return s.stepPriority(ctx, -1)
}

func (s *PriorityScheduler) stepPriority(ctx context.Context, delta int) bool {
	thread := mustCurrentThread(ctx, "IncreasePriority/DecreasePriority")

	status := s.intr.Disable(thread)
	defer s.intr.Restore(status)

	priority := s.GetPriority(thread) + delta
	if !ValidPriority(priority) {
		return false
	}
	s.threadState(thread).setPriority(priority)
	return true
}

// threadState returns the state attached to thread, creating it on first use.
func (s *PriorityScheduler) threadState(thread Thread) *ThreadState {
	if thread == nil {
		panic(violation("nil thread"))
	}
	state := thread.SchedulingState()
	if state == nil {
		state = newThreadState(thread, s)
		thread.SetSchedulingState(state)
		return state
	}
	if state.scheduler != s {
		panic(violation("thread " + thread.Name() + " is scheduled by another scheduler"))
	}
	return state
}

// finishPass applies the results of a recomputation pass: waiters whose
// effective priority moved are re-positioned in the queue they wait on, and
// changes and cycles are reported.
func (s *PriorityScheduler) finishPass(pass *donationPass) {
	for _, c := range pass.changed {
		state := c.state
		if state.waitingOn != nil && state.entry != nil {
			state.waitingOn.fix(state.entry)
		}
		s.metrics.RecordEffectivePriority(state.name(), state.base, state.effective)
		s.logger.Debug("effective priority changed",
			F("thread", state.name()),
			F("base", state.base),
			F("from", c.from),
			F("to", state.effective),
		)
	}

	for _, state := range pass.cycles {
		s.metrics.RecordDonationCycle(state.name())
		if _, ok := s.cycleWarnings.Allow(state); ok {
			s.logger.Warn("priority donation cycle detected",
				F("thread", state.name()),
				F("base", state.base),
			)
		}
	}
}
