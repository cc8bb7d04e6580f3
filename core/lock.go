package core

import (
	"context"
	"slices"
)

// Lock is a mutual-exclusion lock for KThreads. Its wait queue transfers
// priority, so threads blocked in Acquire donate to the holder.
//
// Ownership is handed directly to the next waiter on Release, in priority
// order.
type Lock struct {
	kernel    *Kernel
	waitQueue *PriorityQueue
	holder    *KThread
}

// NewLock allocates a lock scheduled by k.
func NewLock(k *Kernel, name string) *Lock {
	return &Lock{
		kernel:    k,
		waitQueue: k.scheduler.NewNamedQueue(name, true),
	}
}

// Name returns the lock name.
func (l *Lock) Name() string { return l.waitQueue.Name() }

// Acquire blocks the calling thread until it holds l. Acquiring a lock the
// caller already holds panics.
func (l *Lock) Acquire(ctx context.Context) {
	t := mustCurrentThread(ctx, "Lock.Acquire")
	intr := l.kernel.intr
	status := intr.Disable(t)
	defer intr.Restore(status)

	if l.holder == t {
		panic(violation(t.name + " already holds lock " + l.Name()))
	}

	if l.holder == nil {
		l.waitQueue.Acquire(t)
		l.grant(t)
		return
	}

	l.waitQueue.WaitForAccess(t)
	t.BlockUntilReady()
	if l.holder != t {
		panic(violation("lock " + l.Name() + " woke " + t.name + " without handing it over"))
	}
}

// Release hands l to the highest-priority waiter, or frees it. The caller
// must hold l.
func (l *Lock) Release(ctx context.Context) {
	t := mustCurrentThread(ctx, "Lock.Release")
	intr := l.kernel.intr
	status := intr.Disable(t)
	defer intr.Restore(status)

	if l.holder != t {
		panic(violation(t.name + " released lock " + l.Name() + " it does not hold"))
	}

	l.handOff(t)
}

func (l *Lock) grant(t *KThread) {
	l.holder = t
	t.locks = append(t.locks, l)
}

// handOff passes l from t to the next waiter, or frees it.
func (l *Lock) handOff(t *KThread) {
	t.locks = slices.DeleteFunc(t.locks, func(held *Lock) bool { return held == l })

	next := l.waitQueue.NextThread()
	if next == nil {
		l.holder = nil
		return
	}
	nt := next.(*KThread)
	l.grant(nt)
	nt.readyBy(t)
}

// IsHeldByCurrentThread reports whether the thread running with ctx holds l.
func (l *Lock) IsHeldByCurrentThread(ctx context.Context) bool {
	t := CurrentThread(ctx)
	if t == nil {
		return false
	}
	intr := l.kernel.intr
	status := intr.Disable(t)
	defer intr.Restore(status)
	return l.holder == t
}

// Waiting returns the number of threads blocked in Acquire.
func (l *Lock) Waiting(ctx context.Context) int {
	intr := l.kernel.intr
	status := intr.Disable(ownerOf(ctx))
	defer intr.Restore(status)
	return l.waitQueue.Len()
}
