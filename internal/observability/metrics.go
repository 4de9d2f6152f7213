package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// PipelineMetrics are the orchestrator's Prometheus instruments.
type PipelineMetrics struct {
	StageDuration *prometheus.HistogramVec
	Requests      *prometheus.CounterVec
	ProviderCalls *prometheus.CounterVec
}

// NewPipelineMetrics registers pipeline instruments on reg. A nil registerer
// leaves them unregistered, which tests rely on.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "resume_optimizer",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages by stage and status.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage", "status"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resume_optimizer",
			Subsystem: "pipeline",
			Name:      "requests_total",
			Help:      "Optimization requests by outcome (ok, cache_hit, error).",
		}, []string{"outcome"}),
		ProviderCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resume_optimizer",
			Subsystem: "pipeline",
			Name:      "provider_calls_total",
			Help:      "Chat provider calls by stage.",
		}, []string{"stage"}),
	}
	if reg != nil {
		reg.MustRegister(m.StageDuration, m.Requests, m.ProviderCalls)
	}
	return m
}

// ObserveStage records one stage execution. Safe on a nil receiver.
func (m *PipelineMetrics) ObserveStage(stage, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage, status).Observe(d.Seconds())
}

// CountRequest increments the request counter. Safe on a nil receiver.
func (m *PipelineMetrics) CountRequest(outcome string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(outcome).Inc()
}

// CountProviderCall increments the provider call counter. Safe on a nil receiver.
func (m *PipelineMetrics) CountProviderCall(stage string) {
	if m == nil {
		return
	}
	m.ProviderCalls.WithLabelValues(stage).Inc()
}
