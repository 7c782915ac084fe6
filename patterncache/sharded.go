package patterncache

import (
	"fmt"

	"github.com/comploplo/canopy-sub003/errors"
	"github.com/comploplo/canopy-sub003/health"
	"github.com/comploplo/canopy-sub003/pattern"
	"github.com/comploplo/canopy-sub003/patternindex"
	"github.com/comploplo/canopy-sub003/signature"
)

// Sharded spreads keys over independent caches so that lookups on different
// shards never contend. A key is routed by signature.HashKey, so it maps to
// the same shard in every process.
type Sharded struct {
	shards []*Cache
	cfg    Config
}

// NewSharded splits cfg's capacities and memory budget over n caches, each
// sharing index. The shard capacities sum to the configured ones, so n may
// not exceed the working-set capacity. Shard i is named "<component>_<i>" in
// logs, health and metrics.
func NewSharded(n int, cfg Config, index patternindex.Lookup, opts ...Option) (*Sharded, error) {
	if n <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "patterncache", "NewSharded",
			fmt.Sprintf("shard count must be positive, got %d", n))
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if n > cfg.WorkingSetCapacity {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "patterncache", "NewSharded",
			fmt.Sprintf("%d shards exceed working set capacity %d", n, cfg.WorkingSetCapacity))
	}

	base := applyOptions(opts...)
	prefix := base.component
	if prefix == "" {
		prefix = "patterncache"
	}

	s := &Sharded{shards: make([]*Cache, n), cfg: cfg}
	for i := range s.shards {
		shardCfg := cfg
		shardCfg.CoreCapacity = splitShare(cfg.CoreCapacity, n, i)
		shardCfg.WorkingSetCapacity = splitShare(cfg.WorkingSetCapacity, n, i)
		shardCfg.MemoryBudgetBytes = splitShare64(cfg.MemoryBudgetBytes, n, i)

		o := base
		o.component = fmt.Sprintf("%s_%d", prefix, i)
		c, err := newCache(shardCfg, index, o)
		if err != nil {
			return nil, errors.Wrap(err, "patterncache", "NewSharded", fmt.Sprintf("shard %d", i))
		}
		s.shards[i] = c
	}
	return s, nil
}

// splitShare is shard i's part of total over n shards: total/n, plus one for
// the first total%n shards.
func splitShare(total, n, i int) int {
	share := total / n
	if i < total%n {
		share++
	}
	return share
}

func splitShare64(total int64, n, i int) int64 {
	share := total / int64(n)
	if int64(i) < total%int64(n) {
		share++
	}
	return share
}

// ShardFor returns the shard that owns key.
func (s *Sharded) ShardFor(key string) *Cache {
	return s.shards[s.shardIndex(signature.HashKey(key))]
}

// Shards returns the underlying caches.
func (s *Sharded) Shards() []*Cache {
	return s.shards
}

// Populate routes each entry to its shard and populates every shard. Entries
// keep their relative order, so each shard takes its own most frequent
// patterns.
func (s *Sharded) Populate(entries []patternindex.Entry) error {
	buckets := make([][]patternindex.Entry, len(s.shards))
	for _, e := range entries {
		i := s.shardIndex(signature.HashKey(e.Key))
		buckets[i] = append(buckets[i], e)
	}

	var firstErr error
	for i, c := range s.shards {
		if err := c.Populate(buckets[i]); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PopulateFromIndex populates from the index's ranked patterns.
func (s *Sharded) PopulateFromIndex(idx *patternindex.Index) error {
	if idx == nil {
		return s.Populate(nil)
	}
	return s.Populate(idx.Ranked())
}

func (s *Sharded) shardIndex(hash uint64) int {
	return int(hash % uint64(len(s.shards)))
}

func (s *Sharded) shardOf(sig signature.Signature) *Cache {
	return s.shards[s.shardIndex(sig.Hash())]
}

// Get looks sig up on its shard.
func (s *Sharded) Get(sig signature.Signature) (pattern.DependencyPattern, bool) {
	return s.shardOf(sig).Get(sig)
}

// GetWithFallback is Cache.GetWithFallback with each variant routed to its
// own shard.
func (s *Sharded) GetWithFallback(sig signature.Signature, variants []signature.Signature) (pattern.DependencyPattern, bool) {
	if p, ok := s.Get(sig); ok {
		return p, true
	}
	for _, v := range variants {
		if p, ok := s.Get(v); ok {
			return p.WithConfidence(p.Confidence * FallbackPenalty), true
		}
	}
	return pattern.DependencyPattern{}, false
}

// Insert stores p on sig's shard.
func (s *Sharded) Insert(sig signature.Signature, p pattern.DependencyPattern) {
	s.shardOf(sig).Insert(sig, p)
}

// Clear clears every shard.
func (s *Sharded) Clear() {
	for _, c := range s.shards {
		c.Clear()
	}
}

// CleanupIfNeeded runs cleanup on every shard and reports whether any shard
// evicted.
func (s *Sharded) CleanupIfNeeded() bool {
	cleaned := false
	for _, c := range s.shards {
		if c.CleanupIfNeeded() {
			cleaned = true
		}
	}
	return cleaned
}

// RecordSynthesis is counted on the first shard.
func (s *Sharded) RecordSynthesis(success bool) {
	s.shards[0].RecordSynthesis(success)
}

// IsOverBudget compares the summed estimate with the overall budget.
func (s *Sharded) IsOverBudget() bool {
	return s.cfg.MemoryBudgetBytes > 0 && s.EstimatedMemoryBytes() > s.cfg.MemoryBudgetBytes
}

// MemoryPressure is the summed estimate over the overall budget.
func (s *Sharded) MemoryPressure() float64 {
	if s.cfg.MemoryBudgetBytes <= 0 {
		return 0
	}
	return float64(s.EstimatedMemoryBytes()) / float64(s.cfg.MemoryBudgetBytes)
}

// EstimatedMemoryBytes sums the shard estimates.
func (s *Sharded) EstimatedMemoryBytes() int64 {
	var total int64
	for _, c := range s.shards {
		total += c.EstimatedMemoryBytes()
	}
	return total
}

// MemoryBreakdown sums the shard breakdowns.
func (s *Sharded) MemoryBreakdown() map[string]int64 {
	out := make(map[string]int64, 4)
	for _, c := range s.shards {
		for k, v := range c.MemoryBreakdown() {
			out[k] += v
		}
	}
	return out
}

// Stats merges the shard statistics.
func (s *Sharded) Stats() Summary {
	var sum Summary
	for _, c := range s.shards {
		sum = sum.Merge(c.Stats())
	}
	return sum
}

func (s *Sharded) CoreSize() int {
	n := 0
	for _, c := range s.shards {
		n += c.CoreSize()
	}
	return n
}

func (s *Sharded) WorkingSetSize() int {
	n := 0
	for _, c := range s.shards {
		n += c.WorkingSetSize()
	}
	return n
}

// Health aggregates the shard health.
func (s *Sharded) Health() health.Status {
	subs := make([]health.Status, len(s.shards))
	for i, c := range s.shards {
		subs[i] = c.Health()
	}
	return health.Aggregate("patterncache", subs)
}
