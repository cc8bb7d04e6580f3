package core

import (
	"container/heap"
	"slices"
)

// =============================================================================
// waiterHeap: Max-Heap on effective priority with Stability (FIFO for same priority)
// =============================================================================

type waiter struct {
	state    *ThreadState
	priority int    // cached effective priority at last refresh
	sequence uint64 // For stability
	index    int    // For heap
}

// waiterHeap implements heap.Interface
type waiterHeap []*waiter

func (h waiterHeap) Len() int { return len(h) }

// Less implements priority logic: High effective priority first, then Small sequence first (FIFO)
func (h waiterHeap) Less(i, j int) bool {
	return waiterBefore(h[i], h[j])
}

func waiterBefore(a, b *waiter) bool {
	if a.priority != b.priority {
		return a.priority > b.priority
	}
	return a.sequence < b.sequence
}

func (h waiterHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *waiterHeap) Push(x any) {
	n := len(*h)
	item := x.(*waiter)
	item.index = n
	*h = append(*h, item)
}

func (h *waiterHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // Avoid memory leak
	item.index = -1
	*h = old[0 : n-1]
	return item
}

// =============================================================================
// PriorityQueue
// =============================================================================

// PriorityQueue is the list of threads waiting for one resource, plus the
// thread (if any) that currently owns it. When transferPriority is set,
// waiters donate their effective priority to the owner.
//
// All methods require exclusive scheduler access (see Interrupt).
type PriorityQueue struct {
	name             string
	scheduler        *PriorityScheduler
	transferPriority bool

	waiters      waiterHeap
	owner        *ThreadState
	nextSequence uint64
}

// Name returns the queue name used in logs and metrics.
func (q *PriorityQueue) Name() string { return q.name }

// SetName renames the queue.
func (q *PriorityQueue) SetName(name string) {
	if name != "" {
		q.name = name
	}
}

// TransferPriority reports whether waiters donate priority to the owner.
func (q *PriorityQueue) TransferPriority() bool { return q.transferPriority }

// WaitForAccess adds thread to the waiters, behind every waiter of higher or
// equal effective priority. If the queue transfers priority, the owner chain
// is re-derived before returning.
func (q *PriorityQueue) WaitForAccess(thread Thread) {
	q.scheduler.intr.assertDisabled("WaitForAccess")
	q.scheduler.threadState(thread).waitForAccess(q)
	q.recordDepth()
}

// Acquire makes thread the owner of this queue, without it having to wait.
// Any previous owner loses ownership and any donation through this queue.
func (q *PriorityQueue) Acquire(thread Thread) {
	q.scheduler.intr.assertDisabled("Acquire")
	q.scheduler.threadState(thread).acquire(q)
	q.recordDepth()
}

// NextThread removes the waiter with the highest effective priority (earliest
// enqueued among equals), makes it the owner, and returns it. It returns nil
// if nobody is waiting, in which case the queue is left without an owner.
func (q *PriorityQueue) NextThread() Thread {
	q.scheduler.intr.assertDisabled("NextThread")

	next := q.pickNext()
	if next == nil {
		if q.owner != nil {
			q.release()
		}
		return nil
	}

	next.acquire(q)
	q.recordDepth()
	return next.thread
}

// PickNext returns the state NextThread would select, without modifying the
// queue.
func (q *PriorityQueue) PickNext() *ThreadState {
	q.scheduler.intr.assertDisabled("PickNext")
	return q.pickNext()
}

// Remove takes thread out of the waiters without it acquiring the queue. It
// reports whether thread was waiting here.
func (q *PriorityQueue) Remove(thread Thread) bool {
	q.scheduler.intr.assertDisabled("Remove")
	removed := q.scheduler.threadState(thread).removeFrom(q)
	if removed {
		q.recordDepth()
	}
	return removed
}

// Owner returns the owning thread, or nil.
func (q *PriorityQueue) Owner() Thread {
	q.scheduler.intr.assertDisabled("Owner")
	if q.owner == nil {
		return nil
	}
	return q.owner.thread
}

// Len returns the number of waiters.
func (q *PriorityQueue) Len() int {
	q.scheduler.intr.assertDisabled("Len")
	return len(q.waiters)
}

// Waiters returns the waiting threads in the order NextThread would return
// them, assuming no further changes.
func (q *PriorityQueue) Waiters() []Thread {
	q.scheduler.intr.assertDisabled("Waiters")
	q.refresh()

	sorted := slices.Clone(q.waiters)
	slices.SortFunc(sorted, func(a, b *waiter) int {
		if waiterBefore(a, b) {
			return -1
		}
		return 1
	})

	out := make([]Thread, len(sorted))
	for i, w := range sorted {
		out[i] = w.state.thread
	}
	return out
}

func (q *PriorityQueue) pickNext() *ThreadState {
	if len(q.waiters) == 0 {
		return nil
	}
	q.refresh()
	return q.waiters[0].state
}

// refresh recomputes every waiter's effective priority in one pass, so the
// heap order reflects donation that happened since the waiters were pushed.
func (q *PriorityQueue) refresh() {
	pass := newDonationPass()
	for _, w := range q.waiters {
		w.state.effectiveIn(pass)
	}
	q.scheduler.finishPass(pass)

	for _, w := range slices.Clone(q.waiters) {
		q.fix(w)
	}
}

func (q *PriorityQueue) push(state *ThreadState) *waiter {
	w := &waiter{
		state:    state,
		priority: state.effective,
		sequence: q.nextSequence,
	}
	q.nextSequence++
	heap.Push(&q.waiters, w)
	return w
}

func (q *PriorityQueue) remove(w *waiter) {
	if w == nil || w.index < 0 {
		return
	}
	heap.Remove(&q.waiters, w.index)
}

// fix moves w to match its state's cached effective priority.
func (q *PriorityQueue) fix(w *waiter) {
	if w.priority == w.state.effective || w.index < 0 {
		return
	}
	w.priority = w.state.effective
	heap.Fix(&q.waiters, w.index)
}

// release clears the owner; the previous owner's donation is re-derived.
func (q *PriorityQueue) release() {
	prev := q.owner
	q.owner = nil
	prev.disown(q)
}

func (q *PriorityQueue) recordDepth() {
	q.scheduler.metrics.RecordQueueDepth(q.name, len(q.waiters))
}
