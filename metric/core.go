package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the process-level metrics: index loading, health and the NATS
// connection. Per-cache metrics are registered by the caches themselves.
// The Record methods are no-ops on a nil *Metrics.
type Metrics struct {
	IndexLoads     *prometheus.CounterVec
	IndexPatterns  prometheus.Gauge
	HealthStatus   *prometheus.GaugeVec
	CleanupRuns    *prometheus.CounterVec
	NATSConnected  prometheus.Gauge
	NATSReconnects prometheus.Counter
}

// NewMetrics creates the process-level metrics, unregistered.
func NewMetrics() *Metrics {
	return &Metrics{
		IndexLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "index",
			Name:      "loads_total",
			Help:      "Pattern index load attempts by source and outcome",
		}, []string{"source", "status"}),

		IndexPatterns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "index",
			Name:      "patterns",
			Help:      "Number of patterns in the loaded index tier",
		}),

		HealthStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "health",
			Name:      "status",
			Help:      "Health status (0=unhealthy, 1=degraded, 2=healthy)",
		}, []string{"component"}),

		CleanupRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "janitor",
			Name:      "runs_total",
			Help:      "Scheduled cleanup runs by result (evicted or skipped)",
		}, []string{"result"}),

		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "nats",
			Name:      "connected",
			Help:      "NATS connection status (0=disconnected, 1=connected)",
		}),

		NATSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "nats",
			Name:      "reconnects_total",
			Help:      "Total number of NATS reconnections",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.IndexLoads,
		m.IndexPatterns,
		m.HealthStatus,
		m.CleanupRuns,
		m.NATSConnected,
		m.NATSReconnects,
	}
}

// RecordIndexLoad counts an index load and, on success, records its size.
func (m *Metrics) RecordIndexLoad(source string, patterns int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.IndexLoads.WithLabelValues(source, "error").Inc()
		return
	}
	m.IndexLoads.WithLabelValues(source, "ok").Inc()
	m.IndexPatterns.Set(float64(patterns))
}

// RecordHealth maps a health state string to the gauge value.
func (m *Metrics) RecordHealth(component, status string) {
	if m == nil {
		return
	}
	var v float64
	switch status {
	case "healthy":
		v = 2
	case "degraded":
		v = 1
	}
	m.HealthStatus.WithLabelValues(component).Set(v)
}

// RecordCleanup counts a janitor run.
func (m *Metrics) RecordCleanup(evicted bool) {
	if m == nil {
		return
	}
	result := "skipped"
	if evicted {
		result = "evicted"
	}
	m.CleanupRuns.WithLabelValues(result).Inc()
}

// RecordNATSStatus updates NATS connection status
func (m *Metrics) RecordNATSStatus(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.NATSConnected.Set(1)
		return
	}
	m.NATSConnected.Set(0)
}

// RecordNATSReconnect increments reconnection counter
func (m *Metrics) RecordNATSReconnect() {
	if m != nil {
		m.NATSReconnects.Inc()
	}
}
