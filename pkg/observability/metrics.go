// Package observability exposes Prometheus metrics for the engine.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	MessagesTotal  *prometheus.CounterVec
	SlicesTotal    *prometheus.CounterVec
	ToolCallsTotal *prometheus.CounterVec
	SliceDuration  prometheus.Histogram
	ActiveSessions prometheus.Gauge
	PendingAsks    prometheus.Gauge
}

// New registers the engine collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triad_messages_total",
			Help: "Incoming user messages by classification.",
		}, []string{"kind"}),
		SlicesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triad_slices_total",
			Help: "Completed orchestration slices by terminal status.",
		}, []string{"status"}),
		ToolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triad_tool_calls_total",
			Help: "Dispatched tool calls by tool and outcome.",
		}, []string{"tool", "ok"}),
		SliceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "triad_slice_duration_seconds",
			Help:    "Wall time of orchestration slices.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "triad_active_sessions",
			Help: "Live sessions in the manager.",
		}),
		PendingAsks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "triad_pending_asks",
			Help: "Sessions currently suspended on a question.",
		}),
	}
	reg.MustRegister(
		m.MessagesTotal, m.SlicesTotal, m.ToolCallsTotal,
		m.SliceDuration, m.ActiveSessions, m.PendingAsks,
	)
	return m
}

// ObserveSlice records a completed slice.
func (m *Metrics) ObserveSlice(status string, d time.Duration) {
	m.SlicesTotal.WithLabelValues(status).Inc()
	m.SliceDuration.Observe(d.Seconds())
}

// ObserveToolCall records one dispatched tool call.
func (m *Metrics) ObserveToolCall(tool string, ok bool) {
	label := "false"
	if ok {
		label = "true"
	}
	m.ToolCallsTotal.WithLabelValues(tool, label).Inc()
}
