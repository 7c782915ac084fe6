// Package patterncache serves verb dependency patterns by semantic signature
// from three tiers.
//
// The core tier is a map filled once from the most frequent patterns and never
// evicted. The working set is a bounded LRU (pkg/cache). The index tier is a
// read-only patternindex.Lookup consulted after both miss; index hits are
// promoted into the working set either immediately or once a key has been
// served PromotionThreshold times.
//
//	c, err := patterncache.New(patterncache.ProductionConfig(), idx,
//	    patterncache.WithLogger(logger),
//	    patterncache.WithMetrics(registry, "patterns"),
//	)
//	if err != nil {
//	    return err
//	}
//	_ = c.PopulateFromIndex(idx)
//
//	p, ok := c.GetWithFallback(sig, sig.Variants()[1:])
//
// Every tier is keyed by signature.Key. Lookups never fail; a missing index
// only degrades Health. Memory use is an estimate from a CostFunc, and
// CleanupIfNeeded (run by the caller or a Janitor) halves the working set when
// the estimate exceeds the budget.
package patterncache
