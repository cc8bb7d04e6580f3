package core

// Thread is the opaque handle the scheduler works with. The scheduler never
// creates or destroys threads; it only attaches a ThreadState through
// SetSchedulingState the first time it sees one.
type Thread interface {
	// Name is used for logging and metrics labels.
	Name() string

	// BlockUntilReady suspends the calling thread until MakeReady is called.
	// Must be called by the thread itself, with exclusive access held.
	BlockUntilReady()

	// MakeReady makes a blocked thread runnable again.
	MakeReady()

	SchedulingState() *ThreadState
	SetSchedulingState(state *ThreadState)
}

// StateSlot is an embeddable implementation of the scheduling state accessors
// of Thread.
type StateSlot struct {
	state *ThreadState
}

// SchedulingState returns the attached state, or nil.
func (s *StateSlot) SchedulingState() *ThreadState { return s.state }

// SetSchedulingState attaches state.
func (s *StateSlot) SetSchedulingState(state *ThreadState) { s.state = state }
