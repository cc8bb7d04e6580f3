package core

import "context"

// Condition is a Mesa-style condition variable bound to a Lock. Sleepers are
// woken in priority order; a woken thread re-acquires the lock before Sleep
// returns, so callers re-check their predicate in a loop.
type Condition struct {
	lock      *Lock
	waitQueue *PriorityQueue
}

// NewCondition allocates a condition variable for lock.
func NewCondition(lock *Lock) *Condition {
	return NewNamedCondition(lock, "cond")
}

// NewNamedCondition is NewCondition with a name, qualified by the lock name.
func NewNamedCondition(lock *Lock, name string) *Condition {
	return &Condition{
		lock:      lock,
		waitQueue: lock.kernel.scheduler.NewNamedQueue(lock.Name()+"/"+name, true),
	}
}

// Name returns the qualified condition name.
func (c *Condition) Name() string { return c.waitQueue.Name() }

// Lock returns the lock c is bound to.
func (c *Condition) Lock() *Lock { return c.lock }

// Sleep atomically releases the lock and blocks until woken, then re-acquires
// the lock. The caller must hold the lock.
func (c *Condition) Sleep(ctx context.Context) {
	t := mustCurrentThread(ctx, "Condition.Sleep")
	intr := c.lock.kernel.intr
	status := intr.Disable(t)
	defer intr.Restore(status)

	if c.lock.holder != t {
		panic(violation(t.name + " sleeps on " + c.waitQueue.Name() + " without holding the lock"))
	}

	c.lock.Release(ctx)
	c.waitQueue.WaitForAccess(t)
	t.BlockUntilReady()
	c.lock.Acquire(ctx)
}

// Wake wakes the highest-priority sleeper, if any. The caller must hold the
// lock.
func (c *Condition) Wake(ctx context.Context) {
	t := mustCurrentThread(ctx, "Condition.Wake")
	intr := c.lock.kernel.intr
	status := intr.Disable(t)
	defer intr.Restore(status)

	c.mustHold(t)
	if next := c.waitQueue.NextThread(); next != nil {
		next.(*KThread).readyBy(t)
	}
}

// WakeAll wakes every sleeper. The caller must hold the lock.
func (c *Condition) WakeAll(ctx context.Context) {
	t := mustCurrentThread(ctx, "Condition.WakeAll")
	intr := c.lock.kernel.intr
	status := intr.Disable(t)
	defer intr.Restore(status)

	c.mustHold(t)
	for next := c.waitQueue.NextThread(); next != nil; next = c.waitQueue.NextThread() {
		next.(*KThread).readyBy(t)
	}
}

// Sleepers returns the number of threads blocked in Sleep.
func (c *Condition) Sleepers(ctx context.Context) int {
	intr := c.lock.kernel.intr
	status := intr.Disable(ownerOf(ctx))
	defer intr.Restore(status)
	return c.waitQueue.Len()
}

func (c *Condition) mustHold(t *KThread) {
	if c.lock.holder != t {
		panic(violation(t.name + " signals " + c.waitQueue.Name() + " without holding the lock"))
	}
}
