package threadsched

import (
	"context"
	"sync"

	"github.com/Swind/go-thread-scheduler/core"
)

// =============================================================================
// Global Kernel Helper (Singleton)
// =============================================================================

var (
	globalKernel *core.Kernel
	globalMu     sync.Mutex
)

// InitGlobalKernel initializes the global kernel with config. A nil config
// uses core.DefaultKernelConfig. Calling it again has no effect.
func InitGlobalKernel(config *KernelConfig) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalKernel != nil {
		return // Already initialized
	}

	if config == nil {
		config = core.DefaultKernelConfig()
		config.Name = "global-kernel"
	}
	globalKernel = core.NewKernel(config)
}

// GetGlobalKernel returns the global kernel instance.
// It panics if InitGlobalKernel has not been called.
func GetGlobalKernel() *Kernel {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalKernel == nil {
		panic("GlobalKernel not initialized. Call InitGlobalKernel() first.")
	}
	return globalKernel
}

// ShutdownGlobalKernel shuts the global kernel down, waiting for its threads
// until ctx is done. The global kernel is cleared either way.
func ShutdownGlobalKernel(ctx context.Context) error {
	globalMu.Lock()
	k := globalKernel
	globalKernel = nil
	globalMu.Unlock()

	if k == nil {
		return nil
	}
	return k.Shutdown(ctx)
}

// Fork starts fn on a new thread of the global kernel.
func Fork(ctx context.Context, name string, priority int, fn func(ctx context.Context)) (*KThread, error) {
	return GetGlobalKernel().Fork(ctx, name, priority, fn)
}

// CreateLock creates a lock on the global kernel.
func CreateLock(name string) *Lock {
	return core.NewLock(GetGlobalKernel(), name)
}

// CreateCommunicator creates a communicator on the global kernel.
func CreateCommunicator(name string) *Communicator {
	return core.NewCommunicator(GetGlobalKernel(), name)
}

// CreateAlarm creates an alarm on the global kernel reading clock.
func CreateAlarm(clock Clock) *Alarm {
	return core.NewAlarm(GetGlobalKernel(), clock)
}
