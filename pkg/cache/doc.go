// Package cache provides a generic, thread-safe LRU cache with always-on
// statistics and optional Prometheus metrics.
//
// It backs the working-set tier of the pattern cache: a bounded map from
// lookup key to pattern that evicts the least recently used entry when full.
// Beyond the usual Get/Set/Delete it exposes Peek (read without touching
// recency), Contains and RemoveOldest, which the pattern cache uses to shrink
// the tier under memory pressure.
//
//	lru, err := cache.NewLRU[pattern.DependencyPattern](3000,
//	    cache.WithMetrics[pattern.DependencyPattern](registry, "working_set"),
//	)
//	if err != nil {
//	    return err
//	}
//	_, _ = lru.Set(sig.Key(), p)
//	if p, ok := lru.Get(sig.Key()); ok {
//	    ...
//	}
//
// Statistics are recorded on every operation regardless of options; metrics
// mirror them into the registry when WithMetrics is given. Eviction callbacks
// run outside the cache lock.
package cache
