// Package metrics exposes Prometheus collectors for spreadsheet gateway traffic.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	cache    *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatch_sheet_calls_total",
				Help: "Spreadsheet backend calls partitioned by table, operation and outcome.",
			},
			[]string{"table", "op", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dispatch_sheet_call_duration_seconds",
				Help:    "Latency of spreadsheet backend calls.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"table", "op"},
		),
		cache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dispatch_sheet_cache_lookups_total",
				Help: "Sheet read cache lookups partitioned by table and result.",
			},
			[]string{"table", "result"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.calls, m.duration, m.cache)
	}
	return m
}

// ObserveCall is safe on a nil receiver so callers can run without metrics.
func (m *Metrics) ObserveCall(table, op, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(table, op, status).Inc()
	m.duration.WithLabelValues(table, op).Observe(elapsed.Seconds())
}

func (m *Metrics) CacheLookup(table string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cache.WithLabelValues(table, result).Inc()
}
