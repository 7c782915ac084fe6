package cache

import (
	"github.com/comploplo/canopy-sub003/metric"
)

// Option configures an LRU.
type Option[V any] func(*lruConfig[V])

type lruConfig[V any] struct {
	registry  *metric.MetricsRegistry
	component string
	onEvict   EvictCallback[V]
}

// WithMetrics mirrors the statistics into registry, labelled component.
// Without both, only the in-memory statistics are kept.
func WithMetrics[V any](registry *metric.MetricsRegistry, component string) Option[V] {
	return func(c *lruConfig[V]) {
		if registry == nil || component == "" {
			return
		}
		c.registry, c.component = registry, component
	}
}

// WithEvictionCallback registers fn for entries that leave the cache.
func WithEvictionCallback[V any](fn EvictCallback[V]) Option[V] {
	return func(c *lruConfig[V]) { c.onEvict = fn }
}

func buildConfig[V any](opts []Option[V]) lruConfig[V] {
	var c lruConfig[V]
	for _, o := range opts {
		if o != nil {
			o(&c)
		}
	}
	return c
}
