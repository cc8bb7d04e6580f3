package core

// ThreadState is the scheduling state the PriorityScheduler attaches to each
// Thread: its base priority, its cached effective priority, the queue it waits
// on (at most one) and the queues it owns.
//
// The effective priority is the maximum of the base priority and the effective
// priority of every thread waiting on a transfer-priority queue this thread
// owns, applied transitively. It is recomputed on read, and the owner chain
// affected by an edge change is re-derived synchronously by the operation that
// changed it, so callers never observe a stale value.
//
// All methods require exclusive scheduler access.
type ThreadState struct {
	thread    Thread
	scheduler *PriorityScheduler

	base      int
	effective int
	peak      int

	waitingOn *PriorityQueue
	entry     *waiter // our entry in waitingOn, nil when not waiting
	owns      []*PriorityQueue
}

func newThreadState(thread Thread, scheduler *PriorityScheduler) *ThreadState {
	return &ThreadState{
		thread:    thread,
		scheduler: scheduler,
		base:      PriorityDefault,
		effective: PriorityDefault,
		peak:      PriorityDefault,
	}
}

// Thread returns the thread this state belongs to.
func (s *ThreadState) Thread() Thread { return s.thread }

// Priority returns the base priority.
func (s *ThreadState) Priority() int { return s.base }

// EffectivePriority recomputes and returns the effective priority.
func (s *ThreadState) EffectivePriority() int {
	pass := newDonationPass()
	p := s.effectiveIn(pass)
	s.scheduler.finishPass(pass)
	return p
}

// PeakEffectivePriority is the highest effective priority ever derived for
// this thread.
func (s *ThreadState) PeakEffectivePriority() int { return s.peak }

// WaitingOn returns the queue this thread waits on, or nil.
func (s *ThreadState) WaitingOn() *PriorityQueue { return s.waitingOn }

// Owns returns a copy of the queues this thread currently owns.
func (s *ThreadState) Owns() []*PriorityQueue {
	out := make([]*PriorityQueue, len(s.owns))
	copy(out, s.owns)
	return out
}

func (s *ThreadState) name() string {
	return s.thread.Name()
}

func (s *ThreadState) setPriority(priority int) {
	if s.base == priority {
		return
	}
	s.base = priority

	pass := newDonationPass()
	s.effectiveIn(pass)
	s.scheduler.finishPass(pass)

	// our place in the queue we wait on may have moved, and so may its owner's
	// donation
	s.propagateFrom(s.waitingOn)
}

func (s *ThreadState) waitForAccess(q *PriorityQueue) {
	if s.waitingOn != nil {
		if s.waitingOn == q {
			panic(violation(s.name() + " is already waiting on " + q.name))
		}
		panic(violation(s.name() + " is already waiting on " + s.waitingOn.name + ", cannot also wait on " + q.name))
	}

	if q.owner == s {
		q.release()
	}

	s.entry = q.push(s)
	s.waitingOn = q

	s.propagateFrom(q)
}

func (s *ThreadState) acquire(q *PriorityQueue) {
	if q.owner == s {
		return
	}

	if s.waitingOn == q {
		q.remove(s.entry)
		s.entry = nil
		s.waitingOn = nil
	}

	if q.owner != nil {
		q.release()
	}

	q.owner = s
	s.owns = append(s.owns, q)

	s.recompute()
	s.propagateFrom(s.waitingOn)
}

// disown drops q from the owned set; the caller clears q.owner.
func (s *ThreadState) disown(q *PriorityQueue) {
	for i, owned := range s.owns {
		if owned == q {
			copy(s.owns[i:], s.owns[i+1:])
			s.owns[len(s.owns)-1] = nil
			s.owns = s.owns[:len(s.owns)-1]
			break
		}
	}
	s.recompute()
	s.propagateFrom(s.waitingOn)
}

func (s *ThreadState) removeFrom(q *PriorityQueue) bool {
	if s.waitingOn != q {
		return false
	}
	q.remove(s.entry)
	s.entry = nil
	s.waitingOn = nil

	s.propagateFrom(q)
	return true
}

func (s *ThreadState) recompute() {
	pass := newDonationPass()
	s.effectiveIn(pass)
	s.scheduler.finishPass(pass)
}

// propagateFrom re-derives the effective priority of the owner of q, then of
// the owner of the queue that owner waits on, and so on up the chain.
func (s *ThreadState) propagateFrom(q *PriorityQueue) {
	if q == nil {
		return
	}
	pass := newDonationPass()
	seen := make(map[*ThreadState]struct{})
	for q != nil && q.owner != nil {
		owner := q.owner
		if _, ok := seen[owner]; ok {
			pass.cycles = append(pass.cycles, owner)
			break
		}
		seen[owner] = struct{}{}
		owner.effectiveIn(pass)
		q = owner.waitingOn
	}
	s.scheduler.finishPass(pass)
}

// effectiveIn computes the effective priority within one recomputation pass.
// Each state is computed at most once per pass; an edge leading back into a
// state that is still being computed closes a cycle, and contributes only that
// state's base priority.
func (s *ThreadState) effectiveIn(pass *donationPass) int {
	if p, ok := pass.memo[s]; ok {
		return p
	}
	if _, ok := pass.visiting[s]; ok {
		pass.cycles = append(pass.cycles, s)
		return s.base
	}
	pass.visiting[s] = struct{}{}

	p := s.base
	for _, q := range s.owns {
		if !q.transferPriority {
			continue
		}
		for _, w := range q.waiters {
			if e := w.state.effectiveIn(pass); e > p {
				p = e
			}
		}
	}

	delete(pass.visiting, s)
	pass.memo[s] = p

	if p != s.effective {
		pass.changed = append(pass.changed, stateChange{state: s, from: s.effective})
		s.effective = p
	}
	if p > s.peak {
		s.peak = p
	}
	return p
}

type stateChange struct {
	state *ThreadState
	from  int
}

type donationPass struct {
	memo     map[*ThreadState]int
	visiting map[*ThreadState]struct{}
	changed  []stateChange
	cycles   []*ThreadState
}

func newDonationPass() *donationPass {
	return &donationPass{
		memo:     make(map[*ThreadState]int),
		visiting: make(map[*ThreadState]struct{}),
	}
}
