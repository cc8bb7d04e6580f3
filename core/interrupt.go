package core

import "sync"

// Status is the token returned by Interrupt.Disable, and must be handed back to
// Interrupt.Restore on every exit path.
type Status struct {
	acquired bool
}

// Interrupt provides exclusive access to all scheduler state of one Kernel.
//
// It stands in for "interrupts disabled" on a uniprocessor: every mutation of
// a PriorityQueue or ThreadState must happen between Disable and Restore. It
// is re-entrant for the same (non-nil) owner, so Lock.Release may be called
// from within Condition.Sleep, for example.
//
// Code that runs outside any KThread (tests, setup code) passes a nil owner,
// and must not nest.
type Interrupt struct {
	mu sync.Mutex // the exclusion itself

	stateMu sync.Mutex
	held    bool
	owner   Thread
}

// NewInterrupt creates an enabled (not held) Interrupt.
func NewInterrupt() *Interrupt {
	return &Interrupt{}
}

// Disable acquires exclusive access on behalf of owner. If owner already holds
// it, the returned Status is a nested token and Restore will be a no-op.
func (i *Interrupt) Disable(owner Thread) Status {
	if owner != nil {
		i.stateMu.Lock()
		nested := i.held && i.owner == owner
		i.stateMu.Unlock()
		if nested {
			return Status{}
		}
	}

	i.mu.Lock()

	i.stateMu.Lock()
	i.held = true
	i.owner = owner
	i.stateMu.Unlock()

	return Status{acquired: true}
}

// Restore undoes the Disable call that returned s.
func (i *Interrupt) Restore(s Status) {
	if !s.acquired {
		return
	}

	i.stateMu.Lock()
	i.held = false
	i.owner = nil
	i.stateMu.Unlock()

	i.mu.Unlock()
}

// Disabled reports whether exclusive access is currently held by anyone.
func (i *Interrupt) Disabled() bool {
	i.stateMu.Lock()
	defer i.stateMu.Unlock()
	return i.held
}

// Owner returns the thread holding exclusive access, or nil.
func (i *Interrupt) Owner() Thread {
	i.stateMu.Lock()
	defer i.stateMu.Unlock()
	return i.owner
}

// assertDisabled panics unless exclusive access is held.
func (i *Interrupt) assertDisabled(op string) {
	if !i.Disabled() {
		panic(violation(op + " requires exclusive scheduler access"))
	}
}

// assertHeldBy panics unless exclusive access is held by owner. A nil owner
// matches access taken outside any thread.
func (i *Interrupt) assertHeldBy(owner Thread, op string) {
	i.stateMu.Lock()
	ok := i.held && i.owner == owner
	i.stateMu.Unlock()
	if !ok {
		panic(violation(op + " requires exclusive scheduler access held by the caller"))
	}
}

// suspend gives up exclusive access held by owner while it blocks.
func (i *Interrupt) suspend(owner Thread) {
	i.stateMu.Lock()
	if !i.held || i.owner != owner {
		i.stateMu.Unlock()
		panic(violation("blocking thread does not hold exclusive scheduler access"))
	}
	i.held = false
	i.owner = nil
	i.stateMu.Unlock()

	i.mu.Unlock()
}

// resume re-acquires exclusive access for owner after it wakes.
func (i *Interrupt) resume(owner Thread) {
	i.mu.Lock()

	i.stateMu.Lock()
	i.held = true
	i.owner = owner
	i.stateMu.Unlock()
}

// abandon releases exclusive access if owner still holds it. Used when a
// thread body panics between Disable and Restore.
func (i *Interrupt) abandon(owner Thread) {
	i.stateMu.Lock()
	if !i.held || i.owner != owner {
		i.stateMu.Unlock()
		return
	}
	i.held = false
	i.owner = nil
	i.stateMu.Unlock()

	i.mu.Unlock()
}
