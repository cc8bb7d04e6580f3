package prometheus

import (
	"errors"
	"fmt"

	"github.com/Swind/go-thread-scheduler/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	// DonationBuckets bound the donated_levels histogram. Defaults to one
	// bucket per priority level.
	DonationBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	effectivePriority *prom.GaugeVec
	donatedLevels     prom.Histogram
	donationCycles    *prom.CounterVec
	queueDepth        *prom.GaugeVec
	alarmWakeups      prom.Counter
	threadPanics      *prom.CounterVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "threadsched"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DonationBuckets
	if len(buckets) == 0 {
		buckets = prom.LinearBuckets(0, 1, core.PriorityMaximum-core.PriorityMinimum+1)
	}

	effectiveVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "effective_priority",
		Help:      "Last computed effective priority per thread.",
	}, []string{"thread"})
	donatedHist := prom.NewHistogram(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "donated_levels",
		Help:      "Priority levels donated above base, observed on every effective priority change.",
		Buckets:   buckets,
	})
	cycleVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "donation_cycle_total",
		Help:      "Total number of donation cycles found per thread.",
	}, []string{"thread"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Current number of waiters per queue.",
	}, []string{"queue"})
	wakeups := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "alarm_wakeups_total",
		Help:      "Total number of threads woken by the alarm.",
	})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "thread_panic_total",
		Help:      "Total number of thread panics.",
	}, []string{"thread"})

	var err error
	if effectiveVec, err = registerCollector(reg, effectiveVec); err != nil {
		return nil, err
	}
	if donatedHist, err = registerCollector(reg, donatedHist); err != nil {
		return nil, err
	}
	if cycleVec, err = registerCollector(reg, cycleVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}
	if wakeups, err = registerCollector(reg, wakeups); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		effectivePriority: effectiveVec,
		donatedLevels:     donatedHist,
		donationCycles:    cycleVec,
		queueDepth:        queueDepthVec,
		alarmWakeups:      wakeups,
		threadPanics:      panicVec,
	}, nil
}

// RecordEffectivePriority records a re-derived effective priority.
func (m *MetricsExporter) RecordEffectivePriority(threadName string, base, effective int) {
	if m == nil {
		return
	}
	m.effectivePriority.WithLabelValues(normalizeLabel(threadName, "unknown")).Set(float64(effective))
	m.donatedLevels.Observe(float64(max(effective-base, 0)))
}

// RecordDonationCycle records a donation cycle.
func (m *MetricsExporter) RecordDonationCycle(threadName string) {
	if m == nil {
		return
	}
	m.donationCycles.WithLabelValues(normalizeLabel(threadName, "unknown")).Inc()
}

// RecordQueueDepth records queue depth.
func (m *MetricsExporter) RecordQueueDepth(queueName string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(normalizeLabel(queueName, "unknown")).Set(float64(depth))
}

// RecordAlarmWakeups records threads woken by one timer interrupt.
func (m *MetricsExporter) RecordAlarmWakeups(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.alarmWakeups.Add(float64(count))
}

// RecordThreadPanic records thread panic events.
func (m *MetricsExporter) RecordThreadPanic(threadName string, panicInfo any) {
	if m == nil {
		return
	}
	m.threadPanics.WithLabelValues(normalizeLabel(threadName, "unknown")).Inc()
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
