package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"
)

// ThreadStatus is the lifecycle state of a KThread.
type ThreadStatus int32

const (
	ThreadStatusNew ThreadStatus = iota
	ThreadStatusReady
	ThreadStatusRunning
	ThreadStatusBlocked
	ThreadStatusFinished
)

func (s ThreadStatus) String() string {
	switch s {
	case ThreadStatusNew:
		return "new"
	case ThreadStatusReady:
		return "ready"
	case ThreadStatusRunning:
		return "running"
	case ThreadStatusBlocked:
		return "blocked"
	case ThreadStatusFinished:
		return "finished"
	default:
		return fmt.Sprintf("ThreadStatus(%d)", int32(s))
	}
}

// KThread is a kernel thread backed by its own goroutine. It blocks only in
// BlockUntilReady, which gives up the kernel's exclusive access while asleep.
//
// Every KThread owns a transfer-priority join queue from the moment it is
// forked, so threads joining it donate their priority to it.
type KThread struct {
	StateSlot

	id     uint64
	name   string
	kernel *Kernel

	wake chan struct{}
	done chan struct{}

	joinQueue *PriorityQueue
	locks     []*Lock // held, guarded by the kernel's exclusion
	status    atomic.Int32
	panicked  atomic.Bool

	startedAt  time.Time
	finishedAt time.Time
}

var _ Thread = (*KThread)(nil)

// ID returns the kernel-unique thread id.
func (t *KThread) ID() uint64 { return t.id }

// Name returns the thread name.
func (t *KThread) Name() string { return t.name }

// Kernel returns the kernel that forked t.
func (t *KThread) Kernel() *Kernel { return t.kernel }

// Status returns the current lifecycle state.
func (t *KThread) Status() ThreadStatus { return ThreadStatus(t.status.Load()) }

// Done is closed once the thread has finished.
func (t *KThread) Done() <-chan struct{} { return t.done }

// BlockUntilReady suspends t until another thread calls MakeReady. It must be
// called from t's own goroutine with the kernel's exclusive access held by t;
// access is released while blocked and held again on return.
func (t *KThread) BlockUntilReady() {
	intr := t.kernel.intr
	t.status.Store(int32(ThreadStatusBlocked))
	intr.suspend(t)
	<-t.wake
	intr.resume(t)
	t.status.Store(int32(ThreadStatusRunning))
}

// MakeReady wakes t from BlockUntilReady. Requires exclusive access. A thread
// made ready before it blocks does not block.
func (t *KThread) MakeReady() {
	t.kernel.intr.assertDisabled("MakeReady")
	t.signal()
}

// readyBy is MakeReady for callers that know which thread they run on, and
// so can check that they, not some other thread, hold exclusive access.
func (t *KThread) readyBy(caller Thread) {
	t.kernel.intr.assertHeldBy(caller, "MakeReady")
	t.signal()
}

func (t *KThread) signal() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
	t.status.CompareAndSwap(int32(ThreadStatusBlocked), int32(ThreadStatusReady))
}

// Join waits for t to finish. When called from another thread of the same
// kernel, the caller waits on t's join queue and so donates its priority to t
// until t finishes.
func (t *KThread) Join(ctx context.Context) {
	current := CurrentThread(ctx)
	if current == t {
		panic(violation("thread " + t.name + " cannot join itself"))
	}
	if current == nil || current.kernel != t.kernel {
		<-t.done
		return
	}

	intr := t.kernel.intr
	status := intr.Disable(current)
	defer intr.Restore(status)

	if t.Status() == ThreadStatusFinished {
		return
	}
	t.joinQueue.WaitForAccess(current)
	current.BlockUntilReady()
}

func (t *KThread) run(ctx context.Context, fn func(ctx context.Context)) {
	t.startedAt = time.Now()
	t.status.Store(int32(ThreadStatusRunning))

	func() {
		defer func() {
			if r := recover(); r != nil {
				k := t.kernel
				t.panicked.Store(true)
				k.intr.abandon(t)
				k.metrics.RecordThreadPanic(t.name, r)
				k.panicHandler.HandlePanic(ctx, t.name, t.id, r, debug.Stack())
				if IsPreconditionViolation(r) {
					k.fatal(r)
				}
				k.releaseLocks(t)
			}
		}()
		fn(ctx)
	}()

	t.kernel.finish(t)
}

// =============================================================================
// Context Helper
// =============================================================================
type currentThreadKeyType struct{}

var currentThreadKey currentThreadKeyType

// WithThread returns a copy of ctx carrying t as the current thread.
func WithThread(ctx context.Context, t *KThread) context.Context {
	return context.WithValue(ctx, currentThreadKey, t)
}

// CurrentThread returns the thread running with ctx, or nil outside any
// KThread.
func CurrentThread(ctx context.Context) *KThread {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(currentThreadKey).(*KThread); ok {
		return v
	}
	return nil
}

// ownerOf is CurrentThread as a Thread, nil (untyped) outside any KThread.
func ownerOf(ctx context.Context) Thread {
	if t := CurrentThread(ctx); t != nil {
		return t
	}
	return nil
}

func mustCurrentThread(ctx context.Context, op string) *KThread {
	t := CurrentThread(ctx)
	if t == nil {
		panic(violation(op + " must be called from a kernel thread"))
	}
	return t
}
