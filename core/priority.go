package core

import (
	"errors"
	"fmt"
)

// Priority bounds. Do not change these values: callers compare against them
// directly (IncreasePriority/DecreasePriority report false at the bounds).
const (
	// PriorityMinimum is the lowest priority a thread can have.
	PriorityMinimum = 0

	// PriorityMaximum is the highest priority a thread can have.
	PriorityMaximum = 7

	// PriorityDefault is the priority of a thread whose priority was never set.
	PriorityDefault = 1
)

var (
	// ErrPriorityOutOfRange is returned when a priority outside
	// [PriorityMinimum, PriorityMaximum] is requested.
	ErrPriorityOutOfRange = errors.New("priority out of range")

	// ErrNilFunc is returned by Fork when the thread body is nil.
	ErrNilFunc = errors.New("nil thread function")

	// ErrKernelClosed is returned by Fork after the kernel has been shut down.
	ErrKernelClosed = errors.New("kernel closed")

	// ErrPreconditionViolation is wrapped by every panic value raised for misuse
	// of the scheduler: missing exclusion, lock misuse, waiting on two queues.
	// Such a panic in a KThread is not recovered by the kernel.
	ErrPreconditionViolation = errors.New("precondition violation")
)

func violation(msg string) error {
	return fmt.Errorf("core: %s: %w", msg, ErrPreconditionViolation)
}

// IsPreconditionViolation reports whether a recovered panic value reports
// scheduler misuse.
func IsPreconditionViolation(v any) bool {
	err, ok := v.(error)
	return ok && errors.Is(err, ErrPreconditionViolation)
}

// ValidPriority reports whether p lies within [PriorityMinimum, PriorityMaximum].
func ValidPriority(p int) bool {
	return p >= PriorityMinimum && p <= PriorityMaximum
}
