package patterncache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/comploplo/canopy-sub003/metric"
)

// Lookup outcomes, used as the tier label.
const (
	tierCore       = "core"
	tierWorkingSet = "working_set"
	tierIndex      = "index"
	tierMiss       = "miss"
)

// cacheMetrics exports Statistics and tier sizes. A nil *cacheMetrics
// records nothing.
type cacheMetrics struct {
	lookups    *prometheus.CounterVec
	duration   prometheus.Histogram
	entries    *prometheus.GaugeVec
	memory     prometheus.Gauge
	promotions prometheus.Counter
	cleanups   prometheus.Counter
	synthesis  *prometheus.CounterVec
}

func newCacheMetrics(registry *metric.MetricsRegistry, component string) (*cacheMetrics, error) {
	labels := prometheus.Labels{"component": component}

	m := &cacheMetrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "pattern",
			Name:        "lookups_total",
			Help:        "Pattern lookups by the tier that answered (or miss)",
			ConstLabels: labels,
		}, []string{"tier"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "pattern",
			Name:        "lookup_duration_seconds",
			Help:        "Pattern lookup latency",
			ConstLabels: labels,
			Buckets:     []float64{1e-7, 5e-7, 1e-6, 5e-6, 1e-5, 5e-5, 1e-4, 1e-3},
		}),
		entries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "pattern",
			Name:        "tier_entries",
			Help:        "Number of patterns held per tier",
			ConstLabels: labels,
		}, []string{"tier"}),
		memory: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "pattern",
			Name:        "memory_bytes",
			Help:        "Estimated memory footprint of the cache",
			ConstLabels: labels,
		}),
		promotions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "pattern",
			Name:        "promotions_total",
			Help:        "Patterns promoted from the index to the working set",
			ConstLabels: labels,
		}),
		cleanups: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "pattern",
			Name:        "cleanups_total",
			Help:        "Memory-pressure cleanups that evicted entries",
			ConstLabels: labels,
		}),
		synthesis: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "pattern",
			Name:        "synthesis_total",
			Help:        "Pattern synthesis attempts by outcome",
			ConstLabels: labels,
		}, []string{"outcome"}),
	}

	if err := registry.RegisterCounterVec(component, "pattern_lookups", m.lookups); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogram(component, "pattern_lookup_duration", m.duration); err != nil {
		return nil, err
	}
	if err := registry.RegisterGaugeVec(component, "pattern_tier_entries", m.entries); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge(component, "pattern_memory", m.memory); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(component, "pattern_promotions", m.promotions); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounter(component, "pattern_cleanups", m.cleanups); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec(component, "pattern_synthesis", m.synthesis); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *cacheMetrics) recordLookup(tier string, start time.Time) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(tier).Inc()
	m.duration.Observe(time.Since(start).Seconds())
}

func (m *cacheMetrics) recordPromotion() {
	if m != nil {
		m.promotions.Inc()
	}
}

func (m *cacheMetrics) recordCleanup() {
	if m != nil {
		m.cleanups.Inc()
	}
}

func (m *cacheMetrics) recordSynthesis(success bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.synthesis.WithLabelValues(outcome).Inc()
}

func (m *cacheMetrics) updateSizes(core, working int, memory int64) {
	if m == nil {
		return
	}
	m.entries.WithLabelValues(tierCore).Set(float64(core))
	m.entries.WithLabelValues(tierWorkingSet).Set(float64(working))
	m.memory.Set(float64(memory))
}
