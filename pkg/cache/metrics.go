package cache

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/comploplo/canopy-sub003/metric"
)

// cacheMetrics mirrors Statistics into Prometheus. A nil *cacheMetrics is
// valid and records nothing.
type cacheMetrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	sets      prometheus.Counter
	deletes   prometheus.Counter
	evictions prometheus.Counter
	size      prometheus.Gauge
}

func newCacheMetrics(registry *metric.MetricsRegistry, prefix string) (*cacheMetrics, error) {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "lru",
			Name:        name,
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        help,
		})
	}

	m := &cacheMetrics{
		hits:      counter("hits_total", "Total number of LRU hits"),
		misses:    counter("misses_total", "Total number of LRU misses"),
		sets:      counter("sets_total", "Total number of LRU set operations"),
		deletes:   counter("deletes_total", "Total number of LRU deletes"),
		evictions: counter("evictions_total", "Total number of LRU evictions"),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   metric.Namespace,
			Subsystem:   "lru",
			Name:        "size",
			ConstLabels: prometheus.Labels{"component": prefix},
			Help:        "Current number of entries in the LRU",
		}),
	}

	counters := []struct {
		name string
		c    prometheus.Counter
	}{
		{"lru_hits", m.hits},
		{"lru_misses", m.misses},
		{"lru_sets", m.sets},
		{"lru_deletes", m.deletes},
		{"lru_evictions", m.evictions},
	}
	for _, entry := range counters {
		if err := registry.RegisterCounter(prefix, entry.name, entry.c); err != nil {
			return nil, err
		}
	}
	if err := registry.RegisterGauge(prefix, "lru_size", m.size); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *cacheMetrics) recordHit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *cacheMetrics) recordMiss() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *cacheMetrics) recordSet() {
	if m != nil {
		m.sets.Inc()
	}
}

func (m *cacheMetrics) recordDelete() {
	if m != nil {
		m.deletes.Inc()
	}
}

func (m *cacheMetrics) recordEviction() {
	if m != nil {
		m.evictions.Inc()
	}
}

func (m *cacheMetrics) updateSize(size int) {
	if m != nil {
		m.size.Set(float64(size))
	}
}
