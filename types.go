package threadsched

import "github.com/Swind/go-thread-scheduler/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the threadsched package for most use cases.

// Kernel forks and schedules threads
type Kernel = core.Kernel

// KernelConfig configures a Kernel
type KernelConfig = core.KernelConfig

// KThread is a kernel thread
type KThread = core.KThread

// Thread is anything a PriorityScheduler can schedule
type Thread = core.Thread

// PriorityQueue is a wait queue with an owner
type PriorityQueue = core.PriorityQueue

// PriorityScheduler selects threads by effective priority
type PriorityScheduler = core.PriorityScheduler

// Lock is a priority-donating mutex
type Lock = core.Lock

// Condition is a condition variable bound to a Lock
type Condition = core.Condition

// Alarm sleeps threads until a deadline
type Alarm = core.Alarm

// Clock reports ticks to an Alarm
type Clock = core.Clock

// Communicator passes words between speakers and listeners
type Communicator = core.Communicator

// KernelStats is a kernel snapshot
type KernelStats = core.KernelStats

// AlarmStats is an alarm snapshot
type AlarmStats = core.AlarmStats

// ThreadExecutionRecord describes a finished thread
type ThreadExecutionRecord = core.ThreadExecutionRecord

// Priority constants
const (
	PriorityMinimum = core.PriorityMinimum
	PriorityDefault = core.PriorityDefault
	PriorityMaximum = core.PriorityMaximum
)

// Sentinel errors
var (
	ErrPriorityOutOfRange = core.ErrPriorityOutOfRange
	ErrNilFunc            = core.ErrNilFunc
	ErrKernelClosed       = core.ErrKernelClosed
)

// Constructors re-exported for advanced users managing their own kernels.
var (
	NewKernel           = core.NewKernel
	DefaultKernelConfig = core.DefaultKernelConfig
	NewLock             = core.NewLock
	NewCondition        = core.NewCondition
	NewAlarm            = core.NewAlarm
	NewCommunicator     = core.NewCommunicator
	NewManualClock      = core.NewManualClock
	NewTickClock        = core.NewTickClock
)

// CurrentThread retrieves the current KThread from context
var CurrentThread = core.CurrentThread
