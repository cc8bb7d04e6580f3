package threadsched_test

import (
	"context"
	"fmt"
	"time"

	threadsched "github.com/Swind/go-thread-scheduler"
)

// ExampleFork demonstrates a rendezvous between two threads with only one import.
func ExampleFork() {
	// Initialize global kernel
	threadsched.InitGlobalKernel(nil)
	defer threadsched.ShutdownGlobalKernel(context.Background())

	ctx := context.Background()
	comm := threadsched.CreateCommunicator("demo")

	listener, err := threadsched.Fork(ctx, "listener", 3, func(ctx context.Context) {
		fmt.Println("heard", comm.Listen(ctx))
	})
	if err != nil {
		panic(err)
	}
	speaker, err := threadsched.Fork(ctx, "speaker", 5, func(ctx context.Context) {
		comm.Speak(ctx, 42)
	})
	if err != nil {
		panic(err)
	}

	listener.Join(ctx)
	speaker.Join(ctx)

	// Output:
	// heard 42
}

// ExampleKernel_Fork demonstrates priority donation through a lock.
func ExampleKernel_Fork() {
	k := threadsched.NewKernel(nil)
	defer k.Shutdown(context.Background())

	ctx := context.Background()
	lock := threadsched.NewLock(k, "resource")
	held := make(chan struct{})
	release := make(chan struct{})

	low, _ := k.Fork(ctx, "low", 1, func(ctx context.Context) {
		lock.Acquire(ctx)
		close(held)
		<-release
		lock.Release(ctx)
	})
	<-held

	high, _ := k.Fork(ctx, "high", 6, func(ctx context.Context) {
		lock.Acquire(ctx)
		lock.Release(ctx)
	})
	for lock.Waiting(ctx) == 0 {
		time.Sleep(time.Millisecond)
	}

	intr := k.Interrupt()
	status := intr.Disable(nil)
	fmt.Println("low runs at", k.Scheduler().GetEffectivePriority(low))
	intr.Restore(status)

	close(release)
	high.Join(ctx)
	low.Join(ctx)

	status = intr.Disable(nil)
	fmt.Println("low back to", k.Scheduler().GetEffectivePriority(low))
	intr.Restore(status)

	// Output:
	// low runs at 6
	// low back to 1
}
