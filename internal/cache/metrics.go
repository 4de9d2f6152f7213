package cache

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the Prometheus counters for cache traffic.
type Metrics struct {
	Lookups *prometheus.CounterVec
	Writes  *prometheus.CounterVec
}

// NewMetrics registers cache counters on reg. A nil registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resume_optimizer",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by backend and result (hit, miss, error).",
		}, []string{"backend", "result"}),
		Writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resume_optimizer",
			Subsystem: "cache",
			Name:      "writes_total",
			Help:      "Cache writes by backend and result (ok, error).",
		}, []string{"backend", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.Lookups, m.Writes)
	}
	return m
}
