package core

import (
	"context"
	"fmt"
	"os"
)

// =============================================================================
// PanicHandler: Interface for handling thread panics
// =============================================================================

// PanicHandler is called when the body of a KThread panics.
// For an ordinary panic the thread is then finished normally: locks it holds
// are handed on, joiners are woken and its join queue is released. A panic
// reporting scheduler misuse is re-panicked after the handler returns.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a thread panics.
	//
	// Parameters:
	// - ctx: The context the thread body was running with
	// - threadName: The name of the thread that panicked
	// - threadID: The kernel-unique id of the thread
	// - panicInfo: The panic value recovered from the thread body
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, threadName string, threadID uint64, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler logs panics through Logger, or to stderr if Logger is
// nil or a NoOpLogger, so a panic is never silently dropped.
type DefaultPanicHandler struct {
	Logger Logger
}

// HandlePanic reports the panic.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, threadName string, threadID uint64, panicInfo any, stackTrace []byte) {
	if _, noop := h.Logger.(*NoOpLogger); h.Logger != nil && !noop {
		h.Logger.Error("thread panicked",
			F("thread", threadName),
			F("id", threadID),
			F("panic", fmt.Sprint(panicInfo)),
			F("stack", string(stackTrace)),
		)
		return
	}
	fmt.Fprintf(os.Stderr, "[Thread %d @ %s] Panic: %v\nStack trace:\n%s", threadID, threadName, panicInfo, stackTrace)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting scheduler metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Most methods are called with exclusive scheduler access held, so they must
// be non-blocking and fast, and must not call back into the kernel.
type Metrics interface {
	// RecordEffectivePriority records that a thread's effective priority was
	// re-derived to a new value.
	RecordEffectivePriority(threadName string, base, effective int)

	// RecordDonationCycle records that a recomputation pass found a cycle
	// through threadName.
	RecordDonationCycle(threadName string)

	// RecordQueueDepth records the current number of waiters on a queue.
	RecordQueueDepth(queueName string, depth int)

	// RecordAlarmWakeups records how many sleepers one timer tick woke.
	RecordAlarmWakeups(count int)

	// RecordThreadPanic records that a thread body panicked.
	RecordThreadPanic(threadName string, panicInfo any)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordEffectivePriority(threadName string, base, effective int) {}
func (m *NilMetrics) RecordDonationCycle(threadName string)                          {}
func (m *NilMetrics) RecordQueueDepth(queueName string, depth int)                   {}
func (m *NilMetrics) RecordAlarmWakeups(count int)                                   {}
func (m *NilMetrics) RecordThreadPanic(threadName string, panicInfo any)             {}

// =============================================================================
// KernelConfig: Configuration for Kernel
// =============================================================================

// KernelConfig holds configuration options for Kernel and PriorityScheduler.
// All fields are optional; if not provided, default implementations will be used.
type KernelConfig struct {
	// Name identifies the kernel in logs and stats. Defaults to "kernel".
	Name string

	// Logger receives scheduler and thread lifecycle logs. Defaults to NoOpLogger.
	Logger Logger

	// Metrics is called to record scheduler metrics. Defaults to NilMetrics.
	Metrics Metrics

	// PanicHandler is called when a thread panics. Defaults to DefaultPanicHandler
	// logging through Logger.
	PanicHandler PanicHandler

	// HistoryCapacity bounds the finished-thread history. Defaults to 100.
	HistoryCapacity int
}

// DefaultKernelConfig returns a config with default handlers.
func DefaultKernelConfig() *KernelConfig {
	return &KernelConfig{
		Name:            "kernel",
		Logger:          NewNoOpLogger(),
		Metrics:         &NilMetrics{},
		PanicHandler:    &DefaultPanicHandler{},
		HistoryCapacity: defaultThreadHistoryCapacity,
	}
}

// withDefaults returns a copy of c with every unset field defaulted.
func (c *KernelConfig) withDefaults() *KernelConfig {
	out := DefaultKernelConfig()
	if c == nil {
		return out
	}
	if c.Name != "" {
		out.Name = c.Name
	}
	if c.Logger != nil {
		out.Logger = c.Logger
		out.PanicHandler = &DefaultPanicHandler{Logger: c.Logger}
	}
	if c.Metrics != nil {
		out.Metrics = c.Metrics
	}
	if c.PanicHandler != nil {
		out.PanicHandler = c.PanicHandler
	}
	if c.HistoryCapacity > 0 {
		out.HistoryCapacity = c.HistoryCapacity
	}
	return out
}
