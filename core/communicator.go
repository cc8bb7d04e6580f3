package core

import "context"

// Communicator is a synchronous rendezvous channel carrying one int word from
// a speaker to a listener. Any number of speakers and listeners may use it.
type Communicator struct {
	lock      *Lock
	speakers  *Condition // waiting for a listener and a free slot
	listeners *Condition // waiting for a word
	delivered *Condition // speakers waiting for their word to be taken

	word      int
	full      bool
	listening int // listeners not yet matched with a word
	spoken    uint64
	heard     uint64
}

// NewCommunicator allocates a communicator on k.
func NewCommunicator(k *Kernel, name string) *Communicator {
	if name == "" {
		name = "communicator"
	}
	lock := NewLock(k, name)
	return &Communicator{
		lock:      lock,
		speakers:  NewNamedCondition(lock, "speakers"),
		listeners: NewNamedCondition(lock, "listeners"),
		delivered: NewNamedCondition(lock, "delivered"),
	}
}

// Speak waits for a listener, hands it word, and returns once the listener
// has received it.
func (c *Communicator) Speak(ctx context.Context, word int) {
	c.lock.Acquire(ctx)
	defer c.lock.Release(ctx)

	for c.full || c.listening == 0 {
		c.speakers.Sleep(ctx)
	}

	c.word = word
	c.full = true
	c.listening--
	c.spoken++
	ticket := c.spoken
	c.listeners.Wake(ctx)

	for c.heard < ticket {
		c.delivered.Sleep(ctx)
	}
}

// Listen waits for a speaker and returns its word.
func (c *Communicator) Listen(ctx context.Context) int {
	c.lock.Acquire(ctx)
	defer c.lock.Release(ctx)

	c.listening++
	c.speakers.WakeAll(ctx)

	for !c.full {
		c.listeners.Sleep(ctx)
	}

	word := c.word
	c.full = false
	c.heard++
	c.delivered.WakeAll(ctx)
	c.speakers.WakeAll(ctx)
	return word
}
