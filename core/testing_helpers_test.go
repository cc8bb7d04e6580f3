package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testTimeout = 2 * time.Second

func newTestKernel(t *testing.T, config *KernelConfig) *Kernel {
	t.Helper()
	k := NewKernel(config)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()
		if err := k.Shutdown(ctx); err != nil {
			t.Errorf("shutdown: %v", err)
		}
	})
	return k
}

// fork starts fn on k and fails the test on error.
func fork(t *testing.T, k *Kernel, name string, priority int, fn func(ctx context.Context)) *KThread {
	t.Helper()
	th, err := k.Fork(context.Background(), name, priority, fn)
	require.NoError(t, err)
	return th
}

// runOn runs fn on a new thread of k and waits for it to finish.
func runOn(t *testing.T, k *Kernel, fn func(ctx context.Context)) {
	t.Helper()
	th := fork(t, k, "", PriorityDefault, fn)
	waitDone(t, th)
}

func waitDone(t *testing.T, th *KThread) {
	t.Helper()
	select {
	case <-th.Done():
	case <-time.After(testTimeout):
		t.Fatalf("thread %s did not finish", th.Name())
	}
}

// effectiveOf reads th's effective priority from outside any thread.
func effectiveOf(k *Kernel, th Thread) int {
	status := k.Interrupt().Disable(nil)
	defer k.Interrupt().Restore(status)
	return k.Scheduler().GetEffectivePriority(th)
}

func eventually(t *testing.T, condition func() bool, msg string) {
	t.Helper()
	require.Eventually(t, condition, testTimeout, time.Millisecond, msg)
}
