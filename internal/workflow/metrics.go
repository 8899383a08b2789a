package workflow

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report engine activity.
type Metrics struct {
	phaseDuration *prometheus.HistogramVec
	taskOutcomes  *prometheus.CounterVec
	runsTotal     *prometheus.CounterVec
	runsActive    prometheus.Gauge
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// defaultMetrics returns the package-level metrics instance registered with
// the global Prometheus registry. Collectors are created once so repeated
// engine construction does not trip duplicate registration.
func defaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Supply a fresh registry in tests that need unique metric names. Any
// registration error other than re-registration panics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	phaseDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "deepgraph",
			Subsystem: "workflow",
			Name:      "phase_duration_seconds",
			Help:      "Duration spent in each run phase.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"phase"},
	)
	taskOutcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deepgraph",
			Subsystem: "workflow",
			Name:      "task_outcomes_total",
			Help:      "Task terminations by final status.",
		},
		[]string{"status"},
	)
	runsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "deepgraph",
			Subsystem: "workflow",
			Name:      "runs_total",
			Help:      "Completed runs by final phase.",
		},
		[]string{"phase"},
	)
	runsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "deepgraph",
			Subsystem: "workflow",
			Name:      "runs_active",
			Help:      "Number of runs currently executing.",
		},
	)

	collectors := []prometheus.Collector{phaseDuration, taskOutcomes, runsTotal, runsActive}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				switch target := collector.(type) {
				case *prometheus.HistogramVec:
					phaseDuration = already.ExistingCollector.(*prometheus.HistogramVec)
				case *prometheus.CounterVec:
					switch target { //nolint:exhaustive
					case taskOutcomes:
						taskOutcomes = already.ExistingCollector.(*prometheus.CounterVec)
					case runsTotal:
						runsTotal = already.ExistingCollector.(*prometheus.CounterVec)
					}
				case prometheus.Gauge:
					runsActive = already.ExistingCollector.(prometheus.Gauge)
				}
				continue
			}
			panic(err)
		}
	}

	return &Metrics{
		phaseDuration: phaseDuration,
		taskOutcomes:  taskOutcomes,
		runsTotal:     runsTotal,
		runsActive:    runsActive,
	}
}

func (m *Metrics) observePhase(phase Phase, elapsed time.Duration) {
	m.phaseDuration.WithLabelValues(string(phase)).Observe(elapsed.Seconds())
}

func (m *Metrics) observeTask(status string) {
	m.taskOutcomes.WithLabelValues(status).Inc()
}

func (m *Metrics) runStarted() {
	m.runsActive.Inc()
}

func (m *Metrics) runFinished(phase Phase) {
	m.runsActive.Dec()
	m.runsTotal.WithLabelValues(string(phase)).Inc()
}
