package core

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// alarmEntry is one thread sleeping in WaitUntil.
type alarmEntry struct {
	thread   *KThread
	wakeTime uint64
	sequence uint64
	cond     *Condition
	index    int // for heap interface
}

// alarmHeap orders entries by wake time, then by arrival.
type alarmHeap []*alarmEntry

func (h alarmHeap) Len() int { return len(h) }
func (h alarmHeap) Less(i, j int) bool {
	if h[i].wakeTime != h[j].wakeTime {
		return h[i].wakeTime < h[j].wakeTime
	}
	return h[i].sequence < h[j].sequence
}
func (h alarmHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *alarmHeap) Push(x any) {
	n := len(*h)
	item := x.(*alarmEntry)
	item.index = n
	*h = append(*h, item)
}

func (h *alarmHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.index = -1
	*h = old[0 : n-1]
	return item
}

func (h alarmHeap) peek() *alarmEntry {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}

// Alarm lets threads sleep until a clock reaches a given tick. The clock is
// only consulted from TimerInterrupt, which is driven either by the caller or
// by the ticker loop started with Start.
type Alarm struct {
	kernel *Kernel
	clock  Clock
	lock   *Lock

	mu  sync.Mutex
	pq  alarmHeap
	seq uint64

	woken atomic.Uint64
	ticks atomic.Uint64

	runMu   sync.Mutex
	running bool
	cancel  context.CancelFunc
	thread  *KThread
}

// NewAlarm creates an alarm on k reading clock.
func NewAlarm(k *Kernel, clock Clock) *Alarm {
	return &Alarm{
		kernel: k,
		clock:  clock,
		lock:   NewLock(k, "alarm"),
	}
}

// Clock returns the clock the alarm reads.
func (a *Alarm) Clock() Clock { return a.clock }

// WaitUntil puts the calling thread to sleep until the first timer interrupt
// at which the clock reads at least x ticks past the time of the call.
func (a *Alarm) WaitUntil(ctx context.Context, x uint64) {
	t := mustCurrentThread(ctx, "Alarm.WaitUntil")
	if x == 0 {
		return
	}

	a.lock.Acquire(ctx)
	entry := &alarmEntry{
		thread:   t,
		wakeTime: a.clock.Now() + x,
		cond:     NewNamedCondition(a.lock, "sleep"),
	}

	a.mu.Lock()
	entry.sequence = a.seq
	a.seq++
	heap.Push(&a.pq, entry)
	a.mu.Unlock()

	entry.cond.Sleep(ctx)
	a.lock.Release(ctx)
}

// TimerInterrupt wakes every sleeper whose wake time has been reached, earliest
// first, and returns how many it woke. It must run on a KThread.
func (a *Alarm) TimerInterrupt(ctx context.Context) int {
	a.ticks.Add(1)

	a.lock.Acquire(ctx)
	now := a.clock.Now()

	var expired []*alarmEntry
	a.mu.Lock()
	for e := a.pq.peek(); e != nil && e.wakeTime <= now; e = a.pq.peek() {
		expired = append(expired, heap.Pop(&a.pq).(*alarmEntry))
	}
	a.mu.Unlock()

	for _, e := range expired {
		e.cond.Wake(ctx)
	}
	a.lock.Release(ctx)

	if n := len(expired); n > 0 {
		a.woken.Add(uint64(n))
		a.kernel.metrics.RecordAlarmWakeups(n)
		a.kernel.logger.Debug("alarm woke sleepers",
			F("kernel", a.kernel.name),
			F("now", now),
			F("count", n),
		)
	}
	return len(expired)
}

// Start runs TimerInterrupt every interval on a new maximum-priority thread,
// until Stop is called or ctx is done. Starting a running alarm is a no-op.
func (a *Alarm) Start(ctx context.Context, interval time.Duration) error {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	if a.running {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	t, err := a.kernel.Fork(loopCtx, "alarm", PriorityMaximum, func(ctx context.Context) {
		a.loop(ctx, interval)
	})
	if err != nil {
		cancel()
		return err
	}

	a.cancel = cancel
	a.thread = t
	a.running = true
	return nil
}

// Stop cancels the ticker loop and waits for its thread to finish.
func (a *Alarm) Stop() {
	a.runMu.Lock()
	if !a.running {
		a.runMu.Unlock()
		return
	}
	cancel, t := a.cancel, a.thread
	a.running = false
	a.cancel = nil
	a.thread = nil
	a.runMu.Unlock()

	cancel()
	<-t.Done()
}

func (a *Alarm) loop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.TimerInterrupt(ctx)
		}
	}
}

// Pending returns the number of threads sleeping in WaitUntil.
func (a *Alarm) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pq.Len()
}

// Stats returns a snapshot of the alarm.
func (a *Alarm) Stats() AlarmStats {
	a.runMu.Lock()
	running := a.running
	a.runMu.Unlock()

	return AlarmStats{
		Pending: a.Pending(),
		Woken:   a.woken.Load(),
		Ticks:   a.ticks.Load(),
		Running: running,
	}
}
