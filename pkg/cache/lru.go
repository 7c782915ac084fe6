package cache

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/comploplo/canopy-sub003/errors"
)

type lruEntry[V any] struct {
	key   string
	value V
}

// LRU is a size-bounded cache that evicts the least recently used entry.
type LRU[V any] struct {
	mu      sync.Mutex
	maxSize int
	items   map[string]*list.Element
	order   *list.List // front is most recently used
	stats   *Statistics
	metrics *cacheMetrics
	evictFn EvictCallback[V]
}

var _ Cache[int] = (*LRU[int])(nil)

// NewLRU creates an LRU holding at most maxSize entries. maxSize must be
// positive.
func NewLRU[V any](maxSize int, options ...Option[V]) (*LRU[V], error) {
	if maxSize <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "NewLRU",
			fmt.Sprintf("max size must be positive, got %d", maxSize))
	}

	cfg := buildConfig(options)

	var metrics *cacheMetrics
	if cfg.registry != nil {
		var err error
		metrics, err = newCacheMetrics(cfg.registry, cfg.component)
		if err != nil {
			return nil, errors.WrapTransient(err, "cache", "NewLRU", "metrics registration")
		}
	}

	return &LRU[V]{
		maxSize: maxSize,
		items:   make(map[string]*list.Element, maxSize),
		order:   list.New(),
		stats:   NewStatistics(),
		metrics: metrics,
		evictFn: cfg.onEvict,
	}, nil
}

// Get returns the value for key and marks it most recently used.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.items[key]
	if !ok {
		c.stats.Miss()
		c.metrics.recordMiss()
		var zero V
		return zero, false
	}

	c.order.MoveToFront(element)
	c.stats.Hit()
	c.metrics.recordHit()
	return element.Value.(*lruEntry[V]).value, true
}

// Peek returns the value for key without changing recency or statistics.
func (c *LRU[V]) Peek(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.items[key]; ok {
		return element.Value.(*lruEntry[V]).value, true
	}
	var zero V
	return zero, false
}

// Contains reports whether key is cached, without changing recency.
func (c *LRU[V]) Contains(key string) bool {
	c.mu.Lock()
	_, ok := c.items[key]
	c.mu.Unlock()
	return ok
}

// Set stores value under key as the most recently used entry, evicting the
// least recently used entry when the cache is full.
func (c *LRU[V]) Set(key string, value V) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	if element, ok := c.items[key]; ok {
		element.Value.(*lruEntry[V]).value = value
		c.order.MoveToFront(element)
		c.stats.Set()
		c.metrics.recordSet()
		c.mu.Unlock()
		return false, nil
	}

	c.items[key] = c.order.PushFront(&lruEntry[V]{key: key, value: value})

	var evicted *lruEntry[V]
	if len(c.items) > c.maxSize {
		evicted = c.removeOldestLocked()
		c.stats.Eviction()
		c.metrics.recordEviction()
	}

	c.stats.Set()
	c.stats.UpdateSize(int64(len(c.items)))
	c.metrics.recordSet()
	c.metrics.updateSize(len(c.items))
	c.mu.Unlock()

	if evicted != nil && c.evictFn != nil {
		c.evictFn(evicted.key, evicted.value)
	}
	return true, nil
}

// Delete removes key.
func (c *LRU[V]) Delete(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	element, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return false, nil
	}
	entry := c.removeElementLocked(element)
	c.stats.Delete()
	c.stats.UpdateSize(int64(len(c.items)))
	c.metrics.recordDelete()
	c.metrics.updateSize(len(c.items))
	c.mu.Unlock()

	if c.evictFn != nil {
		c.evictFn(entry.key, entry.value)
	}
	return true, nil
}

// RemoveOldest evicts the least recently used entry and returns it.
func (c *LRU[V]) RemoveOldest() (string, V, bool) {
	c.mu.Lock()
	entry := c.removeOldestLocked()
	if entry == nil {
		c.mu.Unlock()
		var zero V
		return "", zero, false
	}
	c.stats.Eviction()
	c.stats.UpdateSize(int64(len(c.items)))
	c.metrics.recordEviction()
	c.metrics.updateSize(len(c.items))
	c.mu.Unlock()

	if c.evictFn != nil {
		c.evictFn(entry.key, entry.value)
	}
	return entry.key, entry.value, true
}

// Clear removes every entry, oldest first as far as the callback sees it.
func (c *LRU[V]) Clear() error {
	c.mu.Lock()
	var dropped []*lruEntry[V]
	if c.evictFn != nil {
		dropped = make([]*lruEntry[V], 0, len(c.items))
		for e := c.order.Back(); e != nil; e = e.Prev() {
			dropped = append(dropped, e.Value.(*lruEntry[V]))
		}
	}
	c.items = make(map[string]*list.Element, c.maxSize)
	c.order.Init()
	c.stats.UpdateSize(0)
	c.metrics.updateSize(0)
	c.mu.Unlock()

	for _, entry := range dropped {
		c.evictFn(entry.key, entry.value)
	}
	return nil
}

// Size returns the number of entries.
func (c *LRU[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Capacity returns the configured maximum size.
func (c *LRU[V]) Capacity() int {
	return c.maxSize
}

// Keys returns keys from most to least recently used.
func (c *LRU[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.items))
	for e := c.order.Front(); e != nil; e = e.Next() {
		keys = append(keys, e.Value.(*lruEntry[V]).key)
	}
	return keys
}

// Stats returns the live statistics.
func (c *LRU[V]) Stats() *Statistics {
	return c.stats
}

// Close is a no-op; the LRU owns no goroutines.
func (c *LRU[V]) Close() error {
	return nil
}

func (c *LRU[V]) removeOldestLocked() *lruEntry[V] {
	element := c.order.Back()
	if element == nil {
		return nil
	}
	return c.removeElementLocked(element)
}

func (c *LRU[V]) removeElementLocked(element *list.Element) *lruEntry[V] {
	entry := element.Value.(*lruEntry[V])
	delete(c.items, entry.key)
	c.order.Remove(element)
	return entry
}
