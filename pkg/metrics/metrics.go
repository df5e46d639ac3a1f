// Package metrics exposes Prometheus collectors for the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the collectors recorded by the pipeline and API.
type Metrics struct {
	JobsSubmitted prometheus.Counter
	JobsCompleted prometheus.Counter
	JobsFailed    prometheus.Counter

	AnalyzerDuration *prometheus.HistogramVec
	AnalyzerErrors   *prometheus.CounterVec

	TokensUsed *prometheus.CounterVec

	ActiveJobs prometheus.Gauge

	WSConnections prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		JobsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "minuteman_jobs_submitted_total",
			Help: "Jobs accepted for processing.",
		}),
		JobsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "minuteman_jobs_completed_total",
			Help: "Jobs that reached terminal status completed.",
		}),
		JobsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "minuteman_jobs_failed_total",
			Help: "Jobs that reached terminal status error.",
		}),
		AnalyzerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "minuteman_analyzer_duration_seconds",
			Help:    "Wall-clock duration of analyzer executions.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"stage", "analyzer"}),
		AnalyzerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "minuteman_analyzer_errors_total",
			Help: "Analyzer executions that ended in error.",
		}, []string{"stage", "analyzer"}),
		TokensUsed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "minuteman_tokens_used_total",
			Help: "LLM tokens consumed, by direction.",
		}, []string{"direction"}),
		ActiveJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "minuteman_active_jobs",
			Help: "Jobs currently being processed by this replica.",
		}),
		WSConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "minuteman_ws_connections",
			Help: "Open WebSocket connections.",
		}),
	}

	reg.MustRegister(
		m.JobsSubmitted, m.JobsCompleted, m.JobsFailed,
		m.AnalyzerDuration, m.AnalyzerErrors, m.TokensUsed,
		m.ActiveJobs, m.WSConnections,
	)
	return m
}

// RecordAnalyzer observes one analyzer execution.
func (m *Metrics) RecordAnalyzer(stage, analyzer string, seconds float64, failed bool) {
	if m == nil {
		return
	}
	m.AnalyzerDuration.WithLabelValues(stage, analyzer).Observe(seconds)
	if failed {
		m.AnalyzerErrors.WithLabelValues(stage, analyzer).Inc()
	}
}

// RecordTokens adds prompt and completion token counts.
func (m *Metrics) RecordTokens(prompt, completion int) {
	if m == nil {
		return
	}
	m.TokensUsed.WithLabelValues("prompt").Add(float64(prompt))
	m.TokensUsed.WithLabelValues("completion").Add(float64(completion))
}

// RecordJobTerminal counts a job reaching terminal state.
func (m *Metrics) RecordJobTerminal(failed bool) {
	if m == nil {
		return
	}
	if failed {
		m.JobsFailed.Inc()
	} else {
		m.JobsCompleted.Inc()
	}
}
