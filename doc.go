// Package threadsched provides a priority-inheritance thread scheduler for Go.
//
// Kernel threads are goroutines that block and wake only through the kernel,
// so the scheduler decides who gets each resource. Every wait queue can
// transfer priority: a thread waiting on a queue donates its effective
// priority to the queue's owner, transitively, so a high-priority thread is
// never held up by a low-priority lock holder running at low priority.
//
// # Quick Start
//
// Initialize the global kernel at application startup:
//
//	threadsched.InitGlobalKernel(nil)
//	defer threadsched.ShutdownGlobalKernel(context.Background())
//
// Fork threads and share a lock between them:
//
//	lock := threadsched.CreateLock("resource")
//	t, _ := threadsched.Fork(ctx, "worker", 5, func(ctx context.Context) {
//		lock.Acquire(ctx)
//		defer lock.Release(ctx)
//		// ...
//	})
//	t.Join(ctx)
//
// # Key Concepts
//
// Priority: integers in [PriorityMinimum, PriorityMaximum]; higher runs first.
// A thread's effective priority is the maximum of its own priority and the
// effective priorities of threads waiting on transfer queues it owns.
//
// PriorityQueue: the waiters for one resource plus its current owner. The
// next thread is always one of the highest effective priority, and the
// longest waiting among those.
//
// Interrupt: the single exclusion guarding all scheduler state of a kernel.
// Lock, Condition, Alarm and Communicator take it themselves; raw
// PriorityQueue operations require the caller to hold it.
//
// Alarm: sleeps threads until a Clock reaches a deadline.
//
// Communicator: a synchronous rendezvous carrying one int word at a time.
//
// # Thread Safety
//
// All operations that block must be called from a kernel thread, identified
// by the ctx it was forked with (see CurrentThread).
package threadsched
