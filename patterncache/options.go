package patterncache

import (
	"log/slog"

	"github.com/comploplo/canopy-sub003/metric"
)

// Option configures a Cache.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	registry  *metric.MetricsRegistry
	component string
	cost      CostFunc
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics exports cache metrics to registry, labelled with component.
// The working-set LRU registers its own series as component_working_set.
// A nil registry or empty component leaves metrics disabled.
func WithMetrics(registry *metric.MetricsRegistry, component string) Option {
	return func(o *options) {
		if registry != nil && component != "" {
			o.registry = registry
			o.component = component
		}
	}
}

// WithCostModel replaces the fixed per-entry memory estimate.
func WithCostModel(cost CostFunc) Option {
	return func(o *options) {
		if cost != nil {
			o.cost = cost
		}
	}
}

func applyOptions(opts ...Option) options {
	o := options{
		logger: slog.Default(),
		cost:   DefaultCost(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
