package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Swind/go-thread-scheduler/core"
	obs "github.com/Swind/go-thread-scheduler/observability/prometheus"
	"github.com/joeycumines/logiface"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

const envKey = "env"

func newApp() *cli.App {
	return &cli.App{
		Name:  "schedsim",
		Usage: "Run priority donation scenarios",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
				Usage:   "Log level: debug, info, warn, error or off",
				EnvVars: []string{"SCHEDSIM_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "metrics-addr",
				Usage:   "Serve Prometheus metrics on this address while the scenario runs",
				EnvVars: []string{"SCHEDSIM_METRICS_ADDR"},
			},
			&cli.DurationFlag{
				Name:  "linger",
				Value: 0,
				Usage: "Keep the metrics endpoint up this long after the scenario",
			},
		},
		Commands: []*cli.Command{
			DonationCommand(),
			AlarmCommand(),
			RendezvousCommand(),
		},
		Before: setupEnv,
		After:  teardownEnv,
	}
}

// env is the per-invocation runtime shared by every command.
type env struct {
	logger   core.Logger
	registry *prom.Registry
	metrics  *obs.MetricsExporter
	poller   *obs.SnapshotPoller
	server   *http.Server
	group    *errgroup.Group
	linger   time.Duration
}

func parseLevel(s string) (logiface.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return logiface.LevelDebug, nil
	case "info", "":
		return logiface.LevelInformational, nil
	case "warn", "warning":
		return logiface.LevelWarning, nil
	case "error", "err":
		return logiface.LevelError, nil
	case "off", "disabled":
		return logiface.LevelDisabled, nil
	default:
		return logiface.LevelDisabled, fmt.Errorf("unknown log level %q", s)
	}
}

func setupEnv(c *cli.Context) error {
	level, err := parseLevel(c.String("log-level"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	e := &env{
		logger:   core.NewWriterLogger(c.App.ErrWriter, level),
		registry: prom.NewRegistry(),
		group:    &errgroup.Group{},
		linger:   c.Duration("linger"),
	}
	if e.metrics, err = obs.NewMetricsExporter("threadsched", e.registry, obs.ExporterOptions{}); err != nil {
		return err
	}
	if e.poller, err = obs.NewSnapshotPoller(e.registry, 100*time.Millisecond); err != nil {
		return err
	}
	e.poller.Start(context.Background())

	if addr := c.String("metrics-addr"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{}))
		e.server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		e.group.Go(func() error {
			if err := e.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		e.logger.Info("serving metrics", core.F("addr", addr))
	}

	c.App.Metadata = map[string]any{envKey: e}
	return nil
}

func teardownEnv(c *cli.Context) error {
	e := envFrom(c)
	if e == nil {
		return nil
	}
	e.poller.Stop()
	if e.server != nil {
		if e.linger > 0 {
			time.Sleep(e.linger)
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = e.server.Shutdown(ctx)
	}
	return e.group.Wait()
}

func envFrom(c *cli.Context) *env {
	if c.App.Metadata == nil {
		return nil
	}
	e, _ := c.App.Metadata[envKey].(*env)
	return e
}

// newKernel creates a kernel wired to the invocation's logger and metrics,
// and registers it with the snapshot poller.
func (e *env) newKernel(name string) *core.Kernel {
	k := core.NewKernel(&core.KernelConfig{
		Name:    name,
		Logger:  e.logger,
		Metrics: e.metrics,
	})
	e.poller.AddKernel(name, k)
	return k
}

// shutdown waits for every thread of k.
func shutdown(k *core.Kernel) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return k.Shutdown(ctx)
}
