package patterncache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comploplo/canopy-sub003/errors"
	"github.com/comploplo/canopy-sub003/metric"
)

type countingCleaner struct {
	calls atomic.Int32
	evict bool
}

func (c *countingCleaner) CleanupIfNeeded() bool {
	c.calls.Add(1)
	return c.evict
}

func TestNewJanitorValidation(t *testing.T) {
	_, err := NewJanitor(nil, "@every 1m", nil, nil)
	assert.True(t, errors.IsInvalid(err))

	_, err = NewJanitor(&countingCleaner{}, "every minute", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	_, err = NewJanitor(&countingCleaner{}, "*/5 * * * *", nil, nil)
	assert.NoError(t, err)
}

func TestJanitorRunOnceRecordsMetrics(t *testing.T) {
	m := metric.NewMetricsRegistry().CoreMetrics()
	target := &countingCleaner{evict: true}
	j, err := NewJanitor(target, "@every 1h", nil, m)
	require.NoError(t, err)

	assert.True(t, j.RunOnce())
	target.evict = false
	assert.False(t, j.RunOnce())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CleanupRuns.WithLabelValues("evicted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CleanupRuns.WithLabelValues("skipped")))
}

func TestJanitorCleansOverBudgetCache(t *testing.T) {
	cfg := TestConfig()
	cfg.MemoryBudgetBytes = 2048
	c := newTestCache(t, cfg, nil)
	for _, lemma := range []string{"a", "b", "c", "d"} {
		c.Insert(verb(lemma), lowValue(lemma))
	}

	j, err := NewJanitor(c, "@every 1h", nil, nil)
	require.NoError(t, err)

	assert.True(t, j.RunOnce())
	assert.Equal(t, 2, c.WorkingSetSize())
	assert.False(t, j.RunOnce())
}

func TestJanitorSchedule(t *testing.T) {
	target := &countingCleaner{}
	j, err := NewJanitor(target, "@every 1s", nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	j.Start(ctx)
	j.Start(ctx)

	require.Eventually(t, func() bool { return target.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)

	cancel()
	j.Stop()

	calls := target.calls.Load()
	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, calls, target.calls.Load(), "no runs after stop")
}
