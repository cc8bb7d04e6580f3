package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Swind/go-thread-scheduler/core"
	"github.com/urfave/cli/v2"
)

func AlarmCommand() *cli.Command {
	return &cli.Command{
		Name:    "alarm",
		Aliases: []string{"a"},
		Usage:   "Put threads to sleep on an alarm and report when each wakes",

		Flags: []cli.Flag{
			&cli.IntSliceFlag{
				Name:    "sleep",
				Aliases: []string{"s"},
				Value:   cli.NewIntSlice(10, 10, 20),
				Usage:   "Ticks each thread sleeps for",
			},
			&cli.DurationFlag{
				Name:  "tick",
				Value: time.Millisecond,
				Usage: "Wall-clock length of one tick",
			},
		},

		Action: AlarmAction,
	}
}

func AlarmAction(c *cli.Context) error {
	// 1. Get flags
	sleeps := c.IntSlice("sleep")
	tick := c.Duration("tick")

	// 2. Validate (format only)
	if len(sleeps) == 0 {
		return cli.Exit("at least one --sleep is required", 1)
	}
	for _, s := range sleeps {
		if s < 0 {
			return cli.Exit(fmt.Sprintf("sleep %d must not be negative", s), 1)
		}
	}
	if tick <= 0 {
		return cli.Exit("tick must be positive", 1)
	}

	// 3. Run scenario
	e := envFrom(c)
	k := e.newKernel("alarm")
	alarm := core.NewAlarm(k, core.NewTickClock(tick))
	e.poller.AddAlarm("alarm", alarm)

	wakes, err := runAlarm(c.Context, k, alarm, sleeps, tick)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed: %v", err), 1)
	}

	// 4. Format output
	for _, w := range wakes {
		fmt.Fprintf(c.App.Writer, "%s slept %d ticks, woke at tick %d (late by %d)\n",
			w.name, w.ticks, w.at, w.at-w.deadline)
	}
	return nil
}

type alarmWake struct {
	name         string
	ticks        uint64
	deadline, at uint64
}

func runAlarm(ctx context.Context, k *core.Kernel, alarm *core.Alarm, sleeps []int, tick time.Duration) ([]alarmWake, error) {
	if err := alarm.Start(ctx, tick); err != nil {
		return nil, err
	}

	var (
		mu    sync.Mutex
		wakes []alarmWake
	)
	threads := make([]*core.KThread, 0, len(sleeps))
	for i, s := range sleeps {
		ticks := uint64(s)
		t, err := k.Fork(ctx, fmt.Sprintf("sleeper-%d", i), core.PriorityDefault, func(ctx context.Context) {
			deadline := alarm.Clock().Now() + ticks
			alarm.WaitUntil(ctx, ticks)
			at := alarm.Clock().Now()

			mu.Lock()
			wakes = append(wakes, alarmWake{
				name:     core.CurrentThread(ctx).Name(),
				ticks:    ticks,
				deadline: deadline,
				at:       max(at, deadline),
			})
			mu.Unlock()
		})
		if err != nil {
			alarm.Stop()
			return nil, err
		}
		threads = append(threads, t)
	}

	for _, t := range threads {
		t.Join(ctx)
	}
	alarm.Stop()
	if err := shutdown(k); err != nil {
		return nil, err
	}
	return wakes, nil
}
