package patterncache

import (
	"fmt"

	"github.com/comploplo/canopy-sub003/errors"
)

// PromotionPolicy decides when an index hit is copied into the working set.
type PromotionPolicy string

const (
	// PromotionImmediate promotes on the first index hit.
	PromotionImmediate PromotionPolicy = "immediate"

	// PromotionThreshold promotes once a key has been served from the index
	// PromotionThreshold times.
	PromotionThreshold PromotionPolicy = "threshold"
)

// Insert eligibility for the core tier.
const (
	coreFrequencyFloor  = 100
	coreConfidenceFloor = 0.9
)

// FallbackPenalty scales the confidence of a pattern found through a
// less specific signature variant.
const FallbackPenalty = 0.8

// Config sizes the cache tiers and the memory budget.
type Config struct {
	// CoreCapacity is the maximum number of always-resident patterns.
	CoreCapacity int `json:"core_capacity" yaml:"core_capacity"`

	// WorkingSetCapacity bounds the LRU tier. Must be positive.
	WorkingSetCapacity int `json:"working_set_capacity" yaml:"working_set_capacity"`

	PromotionPolicy    PromotionPolicy `json:"promotion_policy" yaml:"promotion_policy"`
	PromotionThreshold int             `json:"promotion_threshold" yaml:"promotion_threshold"`

	// MemoryBudgetBytes is compared against the estimated footprint.
	MemoryBudgetBytes int64 `json:"memory_budget_bytes" yaml:"memory_budget_bytes"`

	// Verbose logs every lookup at debug level.
	Verbose bool `json:"verbose" yaml:"verbose"`
}

// DefaultConfig returns a small general-purpose configuration.
func DefaultConfig() Config {
	return Config{
		CoreCapacity:       500,
		WorkingSetCapacity: 1000,
		PromotionPolicy:    PromotionThreshold,
		PromotionThreshold: 3,
		MemoryBudgetBytes:  2 * 1024 * 1024,
	}
}

// ProductionConfig sizes the cache for a long-running service.
func ProductionConfig() Config {
	cfg := DefaultConfig()
	cfg.CoreCapacity = 2000
	cfg.WorkingSetCapacity = 3000
	cfg.MemoryBudgetBytes = 100 * 1024 * 1024
	return cfg
}

// TestConfig is a compact configuration for tests and demos.
func TestConfig() Config {
	cfg := DefaultConfig()
	cfg.CoreCapacity = 100
	cfg.WorkingSetCapacity = 200
	cfg.MemoryBudgetBytes = 1024 * 1024
	return cfg
}

// Validate checks capacities, the promotion policy and the budget.
func (c Config) Validate() error {
	if c.WorkingSetCapacity <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "patterncache", "Validate",
			fmt.Sprintf("working_set_capacity must be positive, got %d", c.WorkingSetCapacity))
	}
	if c.CoreCapacity < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "patterncache", "Validate",
			fmt.Sprintf("core_capacity must not be negative, got %d", c.CoreCapacity))
	}
	if c.MemoryBudgetBytes < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "patterncache", "Validate",
			fmt.Sprintf("memory_budget_bytes must not be negative, got %d", c.MemoryBudgetBytes))
	}

	switch c.PromotionPolicy {
	case PromotionImmediate, "":
	case PromotionThreshold:
		if c.PromotionThreshold < 0 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "patterncache", "Validate",
				fmt.Sprintf("promotion_threshold must not be negative, got %d", c.PromotionThreshold))
		}
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "patterncache", "Validate",
			fmt.Sprintf("unknown promotion policy %q", c.PromotionPolicy))
	}
	return nil
}

// withDefaults fills the promotion fields left empty. A zero threshold
// means the default of 3.
func (c Config) withDefaults() Config {
	if c.PromotionPolicy == "" {
		c.PromotionPolicy = PromotionThreshold
	}
	if c.PromotionPolicy == PromotionThreshold && c.PromotionThreshold == 0 {
		c.PromotionThreshold = 3
	}
	return c
}
