package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Kernel owns one Interrupt and one PriorityScheduler, and forks KThreads
// scheduled by them.
type Kernel struct {
	name         string
	intr         *Interrupt
	scheduler    *PriorityScheduler
	logger       Logger
	metrics      Metrics
	panicHandler PanicHandler

	history *executionHistory

	// fatal ends the process on scheduler misuse inside a thread.
	fatal func(v any)

	mu      sync.Mutex
	threads map[uint64]*KThread
	wg      sync.WaitGroup

	nextID   atomic.Uint64
	forked   atomic.Uint64
	finished atomic.Uint64
	panicked atomic.Uint64
	closed   atomic.Bool
}

// NewKernel creates a kernel. A nil config uses DefaultKernelConfig.
func NewKernel(config *KernelConfig) *Kernel {
	config = config.withDefaults()
	intr := NewInterrupt()
	return &Kernel{
		name:         config.Name,
		intr:         intr,
		scheduler:    NewPriorityScheduler(intr, config),
		logger:       config.Logger,
		metrics:      config.Metrics,
		panicHandler: config.PanicHandler,
		history:      newExecutionHistory(config.HistoryCapacity),
		threads:      make(map[uint64]*KThread),
		fatal:        func(v any) { panic(v) },
	}
}

// Name returns the kernel name.
func (k *Kernel) Name() string { return k.name }

// Interrupt returns the kernel's exclusion.
func (k *Kernel) Interrupt() *Interrupt { return k.intr }

// Scheduler returns the kernel's priority scheduler.
func (k *Kernel) Scheduler() *PriorityScheduler { return k.scheduler }

// Logger returns the kernel's logger.
func (k *Kernel) Logger() Logger { return k.logger }

// Fork starts fn on a new thread with the given base priority. The new thread
// receives a ctx carrying it as the current thread, derived from ctx.
func (k *Kernel) Fork(ctx context.Context, name string, priority int, fn func(ctx context.Context)) (*KThread, error) {
	if fn == nil {
		return nil, ErrNilFunc
	}
	if !ValidPriority(priority) {
		return nil, fmt.Errorf("%w: %d not in [%d, %d]", ErrPriorityOutOfRange, priority, PriorityMinimum, PriorityMaximum)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	id := k.nextID.Add(1)
	if name == "" {
		name = fmt.Sprintf("thread-%d", id)
	}
	t := &KThread{
		id:     id,
		name:   name,
		kernel: k,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	k.mu.Lock()
	if k.closed.Load() {
		k.mu.Unlock()
		return nil, ErrKernelClosed
	}
	k.threads[id] = t
	k.wg.Add(1)
	k.mu.Unlock()

	var owner Thread
	if parent := CurrentThread(ctx); parent != nil && parent.kernel == k {
		owner = parent
	}
	status := k.intr.Disable(owner)
	t.joinQueue = k.scheduler.NewNamedQueue(name+"/join", true)
	_ = k.scheduler.SetPriority(t, priority)
	t.joinQueue.Acquire(t)
	t.status.Store(int32(ThreadStatusReady))
	k.intr.Restore(status)

	k.forked.Add(1)

	k.logger.Debug("thread forked",
		F("kernel", k.name),
		F("thread", name),
		F("id", id),
		F("priority", priority),
	)

	go t.run(WithThread(ctx, t), fn)
	return t, nil
}

// finish records t, wakes every joiner and releases its join queue.
func (k *Kernel) finish(t *KThread) {
	panicked := t.panicked.Load()

	status := k.intr.Disable(t)
	t.status.Store(int32(ThreadStatusFinished))
	t.finishedAt = time.Now()
	state := t.SchedulingState()
	record := ThreadExecutionRecord{
		ThreadID:              t.id,
		Name:                  t.name,
		Priority:              state.Priority(),
		PeakEffectivePriority: state.PeakEffectivePriority(),
		StartedAt:             t.startedAt,
		FinishedAt:            t.finishedAt,
		Duration:              t.finishedAt.Sub(t.startedAt),
		Panicked:              panicked,
	}
	k.history.Add(record)
	if panicked {
		k.panicked.Add(1)
	}
	k.finished.Add(1)

	for next := t.joinQueue.NextThread(); next != nil; next = t.joinQueue.NextThread() {
		next.(*KThread).readyBy(t)
	}
	k.intr.Restore(status)

	k.mu.Lock()
	delete(k.threads, t.id)
	k.mu.Unlock()
	close(t.done)

	k.logger.Debug("thread finished",
		F("kernel", k.name),
		F("thread", t.name),
		F("id", t.id),
		F("peak_priority", record.PeakEffectivePriority),
		F("duration", record.Duration),
		F("panicked", panicked),
	)
	k.wg.Done()
}

// releaseLocks hands every lock a panicked thread still holds to its next
// waiter, so the waiters are not blocked forever.
func (k *Kernel) releaseLocks(t *KThread) {
	status := k.intr.Disable(t)
	defer k.intr.Restore(status)

	for len(t.locks) > 0 {
		l := t.locks[len(t.locks)-1]
		k.logger.Warn("releasing lock held by panicked thread",
			F("kernel", k.name),
			F("thread", t.name),
			F("lock", l.Name()),
		)
		l.handOff(t)
	}
}

// Stats returns a snapshot of the kernel. It takes exclusive access, so it
// must not be called by a thread that already holds it.
func (k *Kernel) Stats() KernelStats {
	k.mu.Lock()
	threads := make([]*KThread, 0, len(k.threads))
	for _, t := range k.threads {
		threads = append(threads, t)
	}
	k.mu.Unlock()

	stats := KernelStats{
		Name:     k.name,
		Live:     len(threads),
		Forked:   k.forked.Load(),
		Finished: k.finished.Load(),
		Panicked: k.panicked.Load(),
		Closed:   k.closed.Load(),
	}

	status := k.intr.Disable(nil)
	defer k.intr.Restore(status)
	for _, t := range threads {
		if t.Status() == ThreadStatusBlocked {
			stats.Blocked++
		}
		state := t.SchedulingState()
		if state != nil && state.EffectivePriority() > state.Priority() {
			stats.Donated++
		}
	}
	return stats
}

// RecentThreads returns up to limit finished threads, newest first.
func (k *Kernel) RecentThreads(limit int) []ThreadExecutionRecord {
	return k.history.Recent(limit)
}

// LastThread returns the most recently finished thread.
func (k *Kernel) LastThread() (ThreadExecutionRecord, bool) {
	return k.history.Last()
}

// IsClosed reports whether Shutdown has been called.
func (k *Kernel) IsClosed() bool { return k.closed.Load() }

// Shutdown stops Fork from accepting new threads and waits for live threads
// to finish, or for ctx to be done.
func (k *Kernel) Shutdown(ctx context.Context) error {
	k.mu.Lock()
	first := k.closed.CompareAndSwap(false, true)
	k.mu.Unlock()
	if first {
		k.logger.Info("kernel shutting down", F("kernel", k.name))
	}

	done := make(chan struct{})
	go func() {
		k.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("kernel %s shutdown: %w", k.name, ctx.Err())
	}
}
