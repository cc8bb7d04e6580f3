package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-thread-scheduler/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// KernelSnapshotProvider provides current kernel stats snapshots.
type KernelSnapshotProvider interface {
	Stats() core.KernelStats
}

// AlarmSnapshotProvider provides current alarm stats snapshots.
type AlarmSnapshotProvider interface {
	Stats() core.AlarmStats
}

// SnapshotPoller periodically exports kernel/alarm Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	kernelsMu sync.RWMutex
	kernels   map[string]KernelSnapshotProvider

	alarmsMu sync.RWMutex
	alarms   map[string]AlarmSnapshotProvider

	kernelLive     *prom.GaugeVec
	kernelBlocked  *prom.GaugeVec
	kernelDonated  *prom.GaugeVec
	kernelFinished *prom.GaugeVec
	kernelPanicked *prom.GaugeVec
	kernelClosed   *prom.GaugeVec

	alarmPending *prom.GaugeVec
	alarmWoken   *prom.GaugeVec
	alarmTicks   *prom.GaugeVec
	alarmRunning *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	kernelGauge := func(name, help string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "threadsched",
			Name:      name,
			Help:      help,
		}, []string{"kernel"})
	}
	alarmGauge := func(name, help string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "threadsched",
			Name:      name,
			Help:      help,
		}, []string{"alarm"})
	}

	kernelLive := kernelGauge("kernel_live_threads", "Threads forked and not yet finished per kernel.")
	kernelBlocked := kernelGauge("kernel_blocked_threads", "Live threads blocked in BlockUntilReady per kernel.")
	kernelDonated := kernelGauge("kernel_donated_threads", "Live threads running above their base priority per kernel.")
	kernelFinished := kernelGauge("kernel_finished_total", "Kernel finished thread count snapshot.")
	kernelPanicked := kernelGauge("kernel_panicked_total", "Kernel panicked thread count snapshot.")
	kernelClosed := kernelGauge("kernel_closed", "Kernel closed state (1=closed, 0=open).")

	alarmPending := alarmGauge("alarm_pending", "Threads sleeping in WaitUntil per alarm.")
	alarmWoken := alarmGauge("alarm_woken", "Alarm woken thread count snapshot.")
	alarmTicks := alarmGauge("alarm_ticks", "Alarm timer interrupt count snapshot.")
	alarmRunning := alarmGauge("alarm_running", "Alarm ticker state (1=running, 0=stopped).")

	var err error
	for _, g := range []**prom.GaugeVec{
		&kernelLive, &kernelBlocked, &kernelDonated, &kernelFinished, &kernelPanicked, &kernelClosed,
		&alarmPending, &alarmWoken, &alarmTicks, &alarmRunning,
	} {
		if *g, err = registerCollector(reg, *g); err != nil {
			return nil, err
		}
	}

	return &SnapshotPoller{
		interval:       interval,
		kernels:        make(map[string]KernelSnapshotProvider),
		alarms:         make(map[string]AlarmSnapshotProvider),
		kernelLive:     kernelLive,
		kernelBlocked:  kernelBlocked,
		kernelDonated:  kernelDonated,
		kernelFinished: kernelFinished,
		kernelPanicked: kernelPanicked,
		kernelClosed:   kernelClosed,
		alarmPending:   alarmPending,
		alarmWoken:     alarmWoken,
		alarmTicks:     alarmTicks,
		alarmRunning:   alarmRunning,
	}, nil
}

// AddKernel adds or replaces a kernel snapshot provider by name.
func (p *SnapshotPoller) AddKernel(name string, provider KernelSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "kernel")
	p.kernelsMu.Lock()
	p.kernels[name] = provider
	p.kernelsMu.Unlock()
}

// AddAlarm adds or replaces an alarm snapshot provider by name.
func (p *SnapshotPoller) AddAlarm(name string, provider AlarmSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "alarm")
	p.alarmsMu.Lock()
	p.alarms[name] = provider
	p.alarmsMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.kernelsMu.RLock()
	for name, provider := range p.kernels {
		stats := provider.Stats()
		p.kernelLive.WithLabelValues(name).Set(float64(stats.Live))
		p.kernelBlocked.WithLabelValues(name).Set(float64(stats.Blocked))
		p.kernelDonated.WithLabelValues(name).Set(float64(stats.Donated))
		p.kernelFinished.WithLabelValues(name).Set(float64(stats.Finished))
		p.kernelPanicked.WithLabelValues(name).Set(float64(stats.Panicked))
		p.kernelClosed.WithLabelValues(name).Set(boolGauge(stats.Closed))
	}
	p.kernelsMu.RUnlock()

	p.alarmsMu.RLock()
	for name, provider := range p.alarms {
		stats := provider.Stats()
		p.alarmPending.WithLabelValues(name).Set(float64(stats.Pending))
		p.alarmWoken.WithLabelValues(name).Set(float64(stats.Woken))
		p.alarmTicks.WithLabelValues(name).Set(float64(stats.Ticks))
		p.alarmRunning.WithLabelValues(name).Set(boolGauge(stats.Running))
	}
	p.alarmsMu.RUnlock()
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
