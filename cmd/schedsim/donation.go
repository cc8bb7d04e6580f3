package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Swind/go-thread-scheduler/core"
	"github.com/urfave/cli/v2"
)

func DonationCommand() *cli.Command {
	return &cli.Command{
		Name:    "donation",
		Aliases: []string{"d"},
		Usage:   "Chain three threads through two locks and show transitive donation",

		Flags: []cli.Flag{
			&cli.IntFlag{Name: "low", Value: 1, Usage: "Priority of the thread holding the first lock"},
			&cli.IntFlag{Name: "mid", Value: 3, Usage: "Priority of the thread holding the second lock"},
			&cli.IntFlag{Name: "high", Value: 6, Usage: "Priority of the thread waiting at the end of the chain"},
		},

		Action: DonationAction,
	}
}

func DonationAction(c *cli.Context) error {
	// 1. Get flags
	low, mid, high := c.Int("low"), c.Int("mid"), c.Int("high")

	// 2. Validate (format only)
	for _, p := range []int{low, mid, high} {
		if !core.ValidPriority(p) {
			return cli.Exit(fmt.Sprintf("priority %d not in [%d, %d]", p, core.PriorityMinimum, core.PriorityMaximum), 1)
		}
	}

	// 3. Run scenario
	k := envFrom(c).newKernel("donation")
	result, err := runDonation(c.Context, k, low, mid, high)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	// 4. Format output
	w := c.App.Writer
	fmt.Fprintf(w, "%-6s %4s %9s %4s\n", "thread", "base", "effective", "peak")
	for _, row := range result {
		fmt.Fprintf(w, "%-6s %4d %9d %4d\n", row.name, row.base, row.effective, row.peak)
	}
	return nil
}

type donationRow struct {
	name                  string
	base, effective, peak int
}

// runDonation has low hold lock a, mid hold lock b while waiting for a, and
// high wait for b. Effective priorities are sampled once the chain is formed.
func runDonation(ctx context.Context, k *core.Kernel, low, mid, high int) ([]donationRow, error) {
	a := core.NewLock(k, "a")
	b := core.NewLock(k, "b")
	gate := make(chan struct{})
	holding := make(chan struct{}, 2)

	lowT, err := k.Fork(ctx, "low", low, func(ctx context.Context) {
		a.Acquire(ctx)
		holding <- struct{}{}
		<-gate
		a.Release(ctx)
	})
	if err != nil {
		return nil, err
	}
	<-holding

	midT, err := k.Fork(ctx, "mid", mid, func(ctx context.Context) {
		b.Acquire(ctx)
		holding <- struct{}{}
		a.Acquire(ctx)
		a.Release(ctx)
		b.Release(ctx)
	})
	if err != nil {
		close(gate)
		return nil, err
	}
	<-holding

	highT, err := k.Fork(ctx, "high", high, func(ctx context.Context) {
		b.Acquire(ctx)
		b.Release(ctx)
	})
	if err != nil {
		close(gate)
		return nil, err
	}

	for a.Waiting(ctx) < 1 || b.Waiting(ctx) < 1 {
		time.Sleep(time.Millisecond)
	}

	threads := []*core.KThread{lowT, midT, highT}
	rows := make([]donationRow, len(threads))
	intr := k.Interrupt()
	status := intr.Disable(nil)
	for i, t := range threads {
		rows[i] = donationRow{
			name:      t.Name(),
			base:      k.Scheduler().GetPriority(t),
			effective: k.Scheduler().GetEffectivePriority(t),
		}
	}
	intr.Restore(status)

	close(gate)
	if err := shutdown(k); err != nil {
		return nil, err
	}

	peaks := make(map[string]int)
	for _, r := range k.RecentThreads(0) {
		peaks[r.Name] = r.PeakEffectivePriority
	}
	for i := range rows {
		rows[i].peak = peaks[rows[i].name]
	}
	return rows, nil
}
