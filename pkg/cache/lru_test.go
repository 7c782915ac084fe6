package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comploplo/canopy-sub003/errors"
)

func newTestLRU(t *testing.T, size int, opts ...Option[int]) *LRU[int] {
	t.Helper()
	lru, err := NewLRU[int](size, opts...)
	require.NoError(t, err)
	return lru
}

func TestNewLRURejectsNonPositiveSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := NewLRU[int](size)
		require.Error(t, err)
		assert.True(t, errors.IsInvalid(err))
		assert.ErrorIs(t, err, errors.ErrInvalidConfig)
	}
}

func TestLRUGetSet(t *testing.T) {
	lru := newTestLRU(t, 3)

	added, err := lru.Set("run", 1)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = lru.Set("run", 2)
	require.NoError(t, err)
	assert.False(t, added, "overwrite is not an insert")

	v, ok := lru.Get("run")
	require.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = lru.Get("walk")
	assert.False(t, ok)

	_, err = lru.Set("", 1)
	assert.Error(t, err)
}

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	lru := newTestLRU(t, 3)
	for i, k := range []string{"a", "b", "c"} {
		_, _ = lru.Set(k, i)
	}

	// Touch a so b becomes the oldest.
	_, _ = lru.Get("a")
	_, _ = lru.Set("d", 3)

	assert.False(t, lru.Contains("b"))
	assert.Equal(t, []string{"d", "a", "c"}, lru.Keys())
	assert.Equal(t, int64(1), lru.Stats().Evictions())
}

func TestLRUPeekKeepsOrder(t *testing.T) {
	lru := newTestLRU(t, 2)
	_, _ = lru.Set("a", 1)
	_, _ = lru.Set("b", 2)

	v, ok := lru.Peek("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, int64(0), lru.Stats().Hits())

	_, _ = lru.Set("c", 3)
	assert.False(t, lru.Contains("a"), "peek must not refresh recency")
}

func TestLRURemoveOldest(t *testing.T) {
	var evicted []string
	lru := newTestLRU(t, 4, WithEvictionCallback(func(key string, _ int) {
		evicted = append(evicted, key)
	}))

	_, _, ok := lru.RemoveOldest()
	assert.False(t, ok)

	for i, k := range []string{"a", "b", "c", "d"} {
		_, _ = lru.Set(k, i)
	}

	key, value, ok := lru.RemoveOldest()
	require.True(t, ok)
	assert.Equal(t, "a", key)
	assert.Equal(t, 0, value)

	key, _, ok = lru.RemoveOldest()
	require.True(t, ok)
	assert.Equal(t, "b", key)

	assert.Equal(t, 2, lru.Size())
	assert.Equal(t, []string{"a", "b"}, evicted)
}

func TestLRUDeleteAndClear(t *testing.T) {
	var evicted []string
	lru := newTestLRU(t, 4, WithEvictionCallback(func(key string, _ int) {
		evicted = append(evicted, key)
	}))
	_, _ = lru.Set("a", 1)
	_, _ = lru.Set("b", 2)
	_, _ = lru.Set("c", 3)

	ok, err := lru.Delete("b")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = lru.Delete("b")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, lru.Clear())
	assert.Zero(t, lru.Size())
	assert.Equal(t, []string{"b", "a", "c"}, evicted)
	assert.Equal(t, int64(3), lru.Stats().MaxSize())
	assert.Equal(t, int64(0), lru.Stats().CurrentSize())
}

func TestLRUStats(t *testing.T) {
	lru := newTestLRU(t, 10)
	_, _ = lru.Set("a", 1)
	for i := 0; i < 3; i++ {
		_, _ = lru.Get("a")
	}
	_, _ = lru.Get("missing")

	s := lru.Stats()
	assert.Equal(t, int64(3), s.Hits())
	assert.Equal(t, int64(1), s.Misses())
	assert.InDelta(t, 0.75, s.HitRatio(), 1e-9)

	summary := s.Summary()
	assert.Equal(t, int64(1), summary.CurrentSize)
	assert.Equal(t, 10, lru.Capacity())
	assert.NoError(t, lru.Close())
}

func TestLRUConcurrentAccess(t *testing.T) {
	lru := newTestLRU(t, 64)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", (w*31+i)%100)
				_, _ = lru.Set(key, i)
				_, _ = lru.Get(key)
				if i%17 == 0 {
					lru.RemoveOldest()
				}
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, lru.Size(), 64)
	assert.Len(t, lru.Keys(), lru.Size())
}
