package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCallCountsByStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveCall("Assignments", "delete_row", "ok", 10*time.Millisecond)
	m.ObserveCall("Assignments", "delete_row", "ok", 10*time.Millisecond)
	m.ObserveCall("Assignments", "delete_row", "rate_limited", time.Millisecond)

	if got := testutil.ToFloat64(m.calls.WithLabelValues("Assignments", "delete_row", "ok")); got != 2 {
		t.Fatalf("ok calls = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.calls.WithLabelValues("Assignments", "delete_row", "rate_limited")); got != 1 {
		t.Fatalf("rate_limited calls = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveCall("Stations", "rows", "ok", time.Millisecond)
	m.CacheLookup("Stations", true)
}
