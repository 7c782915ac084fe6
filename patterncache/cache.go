package patterncache

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/comploplo/canopy-sub003/errors"
	"github.com/comploplo/canopy-sub003/health"
	"github.com/comploplo/canopy-sub003/pattern"
	"github.com/comploplo/canopy-sub003/patternindex"
	"github.com/comploplo/canopy-sub003/pkg/cache"
	"github.com/comploplo/canopy-sub003/signature"
)

// Cache serves dependency patterns from three tiers: a core map populated
// once, a bounded LRU working set, and an optional read-only index. Every
// tier is keyed by signature.Key, which carries the part of speech, so
// signatures that differ only in POS never share a slot.
//
// Lookups, inserts and maintenance are safe for concurrent use. The working
// set and usage counters sit behind a single mutex, so heavy concurrent
// traffic should use Sharded instead.
type Cache struct {
	cfg    Config
	name   string
	logger *slog.Logger
	cost   CostFunc
	index  patternindex.Lookup

	populated atomic.Bool

	// coreMu is never held while acquiring mu.
	coreMu sync.RWMutex
	core   map[string]pattern.DependencyPattern

	mu      sync.Mutex
	working *cache.LRU[pattern.DependencyPattern]
	usage   map[string]int

	stats   *Statistics
	metrics *cacheMetrics
}

// New creates a cache. A nil index means the index tier is absent and the
// cache runs with the core and working-set tiers only.
func New(cfg Config, index patternindex.Lookup, opts ...Option) (*Cache, error) {
	return newCache(cfg, index, applyOptions(opts...))
}

func newCache(cfg Config, index patternindex.Lookup, o options) (*Cache, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	name := o.component
	if name == "" {
		name = "patterncache"
	}
	logger := o.logger.With("component", name)

	c := &Cache{
		cfg:    cfg,
		name:   name,
		logger: logger,
		cost:   o.cost,
		core:   make(map[string]pattern.DependencyPattern, cfg.CoreCapacity),
		usage:  make(map[string]int),
		stats:  newStatistics(),
	}

	// Every working-set mutation happens under c.mu, so the callback may
	// touch the usage counters directly.
	lruOpts := []cache.Option[pattern.DependencyPattern]{
		cache.WithEvictionCallback[pattern.DependencyPattern](c.forgetUsageLocked),
	}
	var metrics *cacheMetrics
	if o.registry != nil {
		var err error
		metrics, err = newCacheMetrics(o.registry, o.component)
		if err != nil {
			return nil, errors.WrapInvalid(err, "patterncache", "New", "metrics registration")
		}
		lruOpts = append(lruOpts,
			cache.WithMetrics[pattern.DependencyPattern](o.registry, o.component+"_working_set"))
	}

	working, err := cache.NewLRU(cfg.WorkingSetCapacity, lruOpts...)
	if err != nil {
		return nil, errors.WrapInvalid(err, "patterncache", "New", "working set")
	}

	if isNilLookup(index) {
		index = nil
		logger.Warn("pattern index unavailable; serving from core and working set only")
	}

	c.index = index
	c.working = working
	c.metrics = metrics
	c.publishSizes()
	return c, nil
}

// forgetUsageLocked drops the promotion count of a pattern leaving the
// working set, so it has to earn promotion again. Requires c.mu.
func (c *Cache) forgetUsageLocked(key string, _ pattern.DependencyPattern) {
	delete(c.usage, key)
}

func isNilLookup(l patternindex.Lookup) bool {
	if l == nil {
		return true
	}
	idx, ok := l.(*patternindex.Index)
	return ok && idx == nil
}

// Config returns the effective configuration.
func (c *Cache) Config() Config {
	return c.cfg
}

// Populate loads the core tier from a frequency-ranked list, keeping the
// first CoreCapacity distinct keys. It runs once; later calls change nothing
// and return ErrAlreadyPopulated.
func (c *Cache) Populate(entries []patternindex.Entry) error {
	if !c.populated.CompareAndSwap(false, true) {
		c.logger.Warn("core tier already populated; ignoring", "entries", len(entries))
		return errors.WrapInvalid(errors.ErrAlreadyPopulated, "patterncache", "Populate",
			fmt.Sprintf("%d entries offered", len(entries)))
	}

	c.coreMu.Lock()
	for _, e := range entries {
		if len(c.core) >= c.cfg.CoreCapacity {
			break
		}
		if _, dup := c.core[e.Key]; dup {
			continue
		}
		c.core[e.Key] = e.Pattern.Clone()
	}
	size := len(c.core)
	c.coreMu.Unlock()

	c.logger.Info("populated core tier", "patterns", size, "offered", len(entries),
		"capacity", c.cfg.CoreCapacity)
	c.publishSizes()
	return nil
}

// PopulateFromIndex fills the core tier with the index's most frequent
// patterns.
func (c *Cache) PopulateFromIndex(idx *patternindex.Index) error {
	if idx == nil {
		return c.Populate(nil)
	}
	return c.Populate(idx.TopPatterns(c.cfg.CoreCapacity))
}

// Populated reports whether Populate has run.
func (c *Cache) Populated() bool {
	return c.populated.Load()
}

// Get looks sig up in the core tier, then the working set, then the index.
// An index hit may promote the pattern into the working set. The returned
// pattern is a copy.
func (c *Cache) Get(sig signature.Signature) (pattern.DependencyPattern, bool) {
	start := time.Now()
	key := sig.Key()
	c.stats.totalRequests.Add(1)

	c.coreMu.RLock()
	p, ok := c.core[key]
	c.coreMu.RUnlock()
	if ok {
		c.stats.coreHits.Add(1)
		c.finishLookup(key, tierCore, start)
		return p.Clone(), true
	}

	c.mu.Lock()
	if p, ok := c.working.Get(key); ok {
		c.mu.Unlock()
		c.stats.lruHits.Add(1)
		c.finishLookup(key, tierWorkingSet, start)
		return p.Clone(), true
	}

	if c.index != nil {
		if p, ok := c.index.Pattern(sig); ok {
			promoted := c.recordIndexHitLocked(key, p)
			c.mu.Unlock()
			c.stats.diskHits.Add(1)
			if promoted {
				c.publishSizes()
			}
			c.finishLookup(key, tierIndex, start)
			return p.Clone(), true
		}
	}
	c.mu.Unlock()

	c.stats.misses.Add(1)
	c.finishLookup(key, tierMiss, start)
	return pattern.DependencyPattern{}, false
}

// recordIndexHitLocked applies the promotion policy and reports whether the
// pattern entered the working set.
func (c *Cache) recordIndexHitLocked(key string, p pattern.DependencyPattern) bool {
	if c.cfg.PromotionPolicy == PromotionThreshold {
		c.usage[key]++
		if c.usage[key] < c.cfg.PromotionThreshold {
			return false
		}
	}

	if _, err := c.working.Set(key, p); err != nil {
		c.logger.Debug("promotion failed", "key", key, "error", err)
		return false
	}
	c.stats.promotions.Add(1)
	c.metrics.recordPromotion()
	if c.cfg.Verbose {
		c.logger.Debug("promoted pattern to working set", "key", key, "uses", c.usage[key])
	}
	return true
}

func (c *Cache) finishLookup(key, tier string, start time.Time) {
	c.metrics.recordLookup(tier, start)
	if c.cfg.Verbose {
		c.logger.Debug("pattern lookup", "key", key, "tier", tier)
	}
}

// GetWithFallback tries sig, then each variant in order. A pattern found
// through a variant has its confidence scaled by FallbackPenalty.
func (c *Cache) GetWithFallback(sig signature.Signature, variants []signature.Signature) (pattern.DependencyPattern, bool) {
	if p, ok := c.Get(sig); ok {
		return p, true
	}
	for _, v := range variants {
		if p, ok := c.Get(v); ok {
			if c.cfg.Verbose {
				c.logger.Debug("fallback hit", "key", sig.Key(), "variant", v.Key())
			}
			return p.WithConfidence(p.Confidence * FallbackPenalty), true
		}
	}
	return pattern.DependencyPattern{}, false
}

// Insert stores p under sig. Patterns seen more than 100 times or with
// confidence above 0.9 go to the core tier while it has room; everything
// else goes to the working set.
func (c *Cache) Insert(sig signature.Signature, p pattern.DependencyPattern) {
	key := sig.Key()
	p = p.Clone()

	if p.Frequency > coreFrequencyFloor || p.Confidence > coreConfidenceFloor {
		c.coreMu.Lock()
		if len(c.core) < c.cfg.CoreCapacity {
			c.core[key] = p
			c.coreMu.Unlock()
			c.publishSizes()
			return
		}
		c.coreMu.Unlock()
	}

	c.mu.Lock()
	_, err := c.working.Set(key, p)
	c.mu.Unlock()
	if err != nil {
		c.logger.Debug("insert failed", "key", key, "error", err)
		return
	}
	c.publishSizes()
}

// Clear empties the working set and the usage counters. The core tier and
// the statistics are kept.
func (c *Cache) Clear() {
	c.mu.Lock()
	dropped := c.working.Size()
	_ = c.working.Clear()
	clear(c.usage)
	c.mu.Unlock()

	c.logger.Info("cleared working set", "dropped", dropped)
	c.publishSizes()
}

// RecordSynthesis counts a synthesis attempt made after a full miss.
func (c *Cache) RecordSynthesis(success bool) {
	c.stats.synthesisAttempts.Add(1)
	if success {
		c.stats.synthesisSuccesses.Add(1)
	}
	c.metrics.recordSynthesis(success)
}

// footprintLocked requires c.mu.
func (c *Cache) footprintLocked() Footprint {
	c.coreMu.RLock()
	core := len(c.core)
	c.coreMu.RUnlock()

	return c.cost(Usage{
		CoreEntries:       core,
		WorkingSetEntries: c.working.Size(),
		UsageCounters:     len(c.usage),
	})
}

func (c *Cache) footprint() Footprint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.footprintLocked()
}

// EstimatedMemoryBytes is the cost model's estimate of the current footprint.
func (c *Cache) EstimatedMemoryBytes() int64 {
	return c.footprint().Total()
}

// MemoryBreakdown reports the estimate per structure, plus the total.
func (c *Cache) MemoryBreakdown() map[string]int64 {
	f := c.footprint()
	return map[string]int64{
		"core":         f.Core,
		"working_set":  f.WorkingSet,
		"usage_counts": f.UsageCounts,
		"total":        f.Total(),
	}
}

// IsOverBudget reports whether the estimate exceeds the memory budget.
// A zero budget disables the check.
func (c *Cache) IsOverBudget() bool {
	return c.overBudget(c.EstimatedMemoryBytes())
}

func (c *Cache) overBudget(bytes int64) bool {
	return c.cfg.MemoryBudgetBytes > 0 && bytes > c.cfg.MemoryBudgetBytes
}

// MemoryPressure is the estimate divided by the budget. It can exceed 1 and
// is 0 when no budget is set.
func (c *Cache) MemoryPressure() float64 {
	if c.cfg.MemoryBudgetBytes <= 0 {
		return 0
	}
	return float64(c.EstimatedMemoryBytes()) / float64(c.cfg.MemoryBudgetBytes)
}

// CleanupIfNeeded halves the working set, oldest entries first, and drops
// every usage counter when the cache is over budget. It reports whether it
// did anything.
func (c *Cache) CleanupIfNeeded() bool {
	c.mu.Lock()
	before := c.footprintLocked()
	if !c.overBudget(before.Total()) {
		c.mu.Unlock()
		return false
	}

	size := c.working.Size()
	target := size / 2
	for c.working.Size() > target {
		if _, _, ok := c.working.RemoveOldest(); !ok {
			break
		}
	}
	clear(c.usage)
	after := c.footprintLocked()
	remaining := c.working.Size()
	c.mu.Unlock()

	c.stats.cleanups.Add(1)
	c.metrics.recordCleanup()
	c.logger.Info("memory cleanup",
		"before_kb", before.Total()/1024,
		"after_kb", after.Total()/1024,
		"evicted", size-remaining,
		"working_set", remaining)
	c.publishSizes()
	return true
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Summary {
	return c.stats.Summary()
}

// CoreSize is the number of patterns in the core tier.
func (c *Cache) CoreSize() int {
	c.coreMu.RLock()
	defer c.coreMu.RUnlock()
	return len(c.core)
}

// WorkingSetSize is the number of patterns in the working set.
func (c *Cache) WorkingSetSize() int {
	return c.working.Size()
}

// ContainsWorkingSet reports whether sig is in the working set, without
// touching recency.
func (c *Cache) ContainsWorkingSet(sig signature.Signature) bool {
	return c.working.Contains(sig.Key())
}

// ContainsCore reports whether sig is in the core tier.
func (c *Cache) ContainsCore(sig signature.Signature) bool {
	c.coreMu.RLock()
	defer c.coreMu.RUnlock()
	_, ok := c.core[sig.Key()]
	return ok
}

// UsageCount is the number of index hits counted toward promotion for sig.
func (c *Cache) UsageCount(sig signature.Signature) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usage[sig.Key()]
}

// HasIndex reports whether the index tier is present.
func (c *Cache) HasIndex() bool {
	return c.index != nil
}

// Health is degraded when the index tier is absent or the cache is over its
// memory budget.
func (c *Cache) Health() health.Status {
	var status health.Status
	switch {
	case c.index == nil:
		status = health.NewDegraded(c.name, "pattern index unavailable")
	case c.IsOverBudget():
		status = health.NewDegraded(c.name,
			fmt.Sprintf("memory pressure %.2f", c.MemoryPressure()))
	default:
		status = health.NewHealthy(c.name, "serving patterns")
	}
	return status.WithMetrics(&health.Metrics{
		Uptime:         c.stats.Uptime(),
		RequestsServed: c.stats.TotalRequests(),
	})
}

func (c *Cache) publishSizes() {
	if c.metrics == nil {
		return
	}
	f := c.footprint()
	c.metrics.updateSizes(c.CoreSize(), c.WorkingSetSize(), f.Total())
}
