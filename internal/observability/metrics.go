package observability

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "amika"

// Metrics exposes Prometheus collectors for the chat pipeline and the reminder scheduler.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	turns              *prometheus.CounterVec
	agentRunDuration   *prometheus.HistogramVec
	extractionFailures *prometheus.CounterVec
	mutations          *prometheus.CounterVec
	armedJobs          prometheus.Gauge
	dispatches         *prometheus.CounterVec
	refreshes          *prometheus.CounterVec
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns the instance registered with the global Prometheus registry.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics registers the collectors with reg, reusing collectors that are
// already registered. Any other registration error panics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Metrics{
		turns: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Respondent turns by mutation intent.",
		}, []string{"intent"})),
		agentRunDuration: register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "agent_run_duration_seconds",
			Help:      "Time from starting an agent run to its terminal state.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"agent", "status"})),
		extractionFailures: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "extraction_failures_total",
			Help:      "Flagged exchanges whose command could not be extracted.",
		}, []string{"reason"})),
		mutations: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relations",
			Name:      "mutations_total",
			Help:      "Commands applied to relation sets.",
		}, []string{"action", "status"})),
		armedJobs: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "armed_jobs",
			Help:      "Reminder jobs waiting to fire.",
		})),
		dispatches: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "dispatches_total",
			Help:      "Fired reminder jobs by outcome.",
		}, []string{"status"})),
		refreshes: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watcher",
			Name:      "refreshes_total",
			Help:      "Change events processed by the watcher.",
		}, []string{"status"})),
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) IncTurn(intent string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(intent).Inc()
}

func (m *Metrics) ObserveAgentRun(agent, runStatus string, d time.Duration) {
	if m == nil {
		return
	}
	m.agentRunDuration.WithLabelValues(agent, runStatus).Observe(d.Seconds())
}

func (m *Metrics) IncExtractionFailure(reason string) {
	if m == nil {
		return
	}
	m.extractionFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncMutation(action string, err error) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(action, status(err)).Inc()
}

// AddArmedJobs moves the armed job gauge by delta.
func (m *Metrics) AddArmedJobs(delta int) {
	if m == nil {
		return
	}
	m.armedJobs.Add(float64(delta))
}

func (m *Metrics) IncDispatch(err error) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(status(err)).Inc()
}

func (m *Metrics) IncRefresh(err error) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(status(err)).Inc()
}
