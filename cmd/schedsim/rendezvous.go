package main

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/Swind/go-thread-scheduler/core"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func RendezvousCommand() *cli.Command {
	return &cli.Command{
		Name:    "rendezvous",
		Aliases: []string{"r"},
		Usage:   "Exchange words between speakers and listeners over one communicator",

		Flags: []cli.Flag{
			&cli.IntFlag{Name: "pairs", Aliases: []string{"p"}, Value: 2, Usage: "Number of speakers, and of listeners"},
			&cli.IntFlag{Name: "words", Aliases: []string{"w"}, Value: 5, Usage: "Words each speaker speaks"},
		},

		Action: RendezvousAction,
	}
}

func RendezvousAction(c *cli.Context) error {
	// 1. Get flags
	pairs, words := c.Int("pairs"), c.Int("words")

	// 2. Validate (format only)
	if pairs < 1 || words < 1 {
		return cli.Exit("pairs and words must be at least 1", 1)
	}

	// 3. Run scenario
	k := envFrom(c).newKernel("rendezvous")
	spoken, heard, err := runRendezvous(c.Context, k, pairs, words)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	// 4. Format output
	fmt.Fprintf(c.App.Writer, "exchanged %d words, spoken sum %d, heard sum %d\n", pairs*words, spoken, heard)
	if spoken != heard {
		return cli.Exit("words were lost or duplicated", 1)
	}
	return nil
}

// runRendezvous returns the sums of the words spoken and heard.
func runRendezvous(ctx context.Context, k *core.Kernel, pairs, words int) (int64, int64, error) {
	comm := core.NewCommunicator(k, "rendezvous")
	var spoken, heard atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	spawn := func(name string, priority int, fn func(ctx context.Context)) {
		g.Go(func() error {
			t, err := k.Fork(gctx, name, priority, fn)
			if err != nil {
				return err
			}
			t.Join(gctx)
			return nil
		})
	}

	for i := range pairs {
		priority := core.PriorityMinimum + i%(core.PriorityMaximum+1)
		spawn(fmt.Sprintf("speaker-%d", i), priority, func(ctx context.Context) {
			for w := range words {
				word := i*words + w
				comm.Speak(ctx, word)
				spoken.Add(int64(word))
			}
		})
		spawn(fmt.Sprintf("listener-%d", i), core.PriorityMaximum-priority, func(ctx context.Context) {
			for range words {
				heard.Add(int64(comm.Listen(ctx)))
			}
		})
	}

	if err := g.Wait(); err != nil {
		return 0, 0, err
	}
	if err := shutdown(k); err != nil {
		return 0, 0, err
	}
	return spoken.Load(), heard.Load(), nil
}
