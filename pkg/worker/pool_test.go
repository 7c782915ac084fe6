package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	cerrors "github.com/comploplo/canopy-sub003/errors"
	"github.com/comploplo/canopy-sub003/metric"
)

type testWork struct {
	id    int
	delay time.Duration
	fail  bool
}

func newTestPool(t *testing.T, workers, queue int, process func(context.Context, testWork) error, opts ...Option[testWork]) *Pool[testWork] {
	t.Helper()
	pool, err := NewPool(workers, queue, process, opts...)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	return pool
}

func noop(context.Context, testWork) error { return nil }

func TestNewPool(t *testing.T) {
	pool := newTestPool(t, 5, 100, noop)
	if pool.workers != 5 || pool.queueSize != 100 {
		t.Errorf("expected 5 workers and 100 slots, got %d and %d", pool.workers, pool.queueSize)
	}

	pool = newTestPool(t, 0, 0, noop)
	if pool.workers != 10 || pool.queueSize != 1000 {
		t.Errorf("expected defaults 10 and 1000, got %d and %d", pool.workers, pool.queueSize)
	}

	_, err := NewPool[testWork](5, 100, nil)
	if !errors.Is(err, ErrNilProcessor) || !cerrors.IsInvalid(err) {
		t.Errorf("expected invalid ErrNilProcessor, got %v", err)
	}
}

func TestPoolLifecycle(t *testing.T) {
	var processed atomic.Int64
	pool := newTestPool(t, 2, 10, func(context.Context, testWork) error {
		processed.Add(1)
		return nil
	})

	if err := pool.Submit(testWork{}); !errors.Is(err, ErrPoolNotStarted) {
		t.Errorf("expected ErrPoolNotStarted, got %v", err)
	}

	ctx := context.Background()
	if err := pool.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := pool.Start(ctx); !errors.Is(err, ErrPoolAlreadyStarted) {
		t.Errorf("expected ErrPoolAlreadyStarted, got %v", err)
	}

	for i := range 5 {
		if err := pool.Submit(testWork{id: i}); err != nil {
			t.Errorf("submit %d: %v", i, err)
		}
	}

	// Stop drains the queue.
	if err := pool.Stop(5 * time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := processed.Load(); got != 5 {
		t.Errorf("expected 5 processed, got %d", got)
	}

	if err := pool.Submit(testWork{}); !errors.Is(err, ErrPoolStopped) {
		t.Errorf("expected ErrPoolStopped, got %v", err)
	}
	if err := pool.Stop(time.Second); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}

func TestPoolQueueFull(t *testing.T) {
	release := make(chan struct{})
	pool := newTestPool(t, 1, 2, func(context.Context, testWork) error {
		<-release
		return nil
	})
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	dropped := 0
	for i := range 10 {
		if err := pool.Submit(testWork{id: i}); errors.Is(err, ErrQueueFull) {
			dropped++
		}
	}
	close(release)
	if err := pool.Stop(5 * time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// One item in flight, two queued at most.
	if dropped < 7 {
		t.Errorf("expected at least 7 drops, got %d", dropped)
	}
	stats := pool.Stats()
	if stats.Dropped != int64(dropped) {
		t.Errorf("stats report %d drops, counted %d", stats.Dropped, dropped)
	}
	if stats.Submitted+stats.Dropped != 10 {
		t.Errorf("submitted %d + dropped %d != 10", stats.Submitted, stats.Dropped)
	}
}

func TestPoolSubmitWait(t *testing.T) {
	var processed atomic.Int64
	pool := newTestPool(t, 1, 1, func(_ context.Context, w testWork) error {
		time.Sleep(w.delay)
		processed.Add(1)
		return nil
	})
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx := context.Background()
	for i := range 20 {
		if err := pool.SubmitWait(ctx, testWork{id: i, delay: time.Millisecond}); err != nil {
			t.Fatalf("SubmitWait %d: %v", i, err)
		}
	}
	if err := pool.Stop(5 * time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if got := processed.Load(); got != 20 {
		t.Errorf("expected 20 processed, got %d", got)
	}
	if stats := pool.Stats(); stats.Dropped != 0 {
		t.Errorf("SubmitWait must not drop, got %d", stats.Dropped)
	}
}

func TestPoolSubmitWaitCancelled(t *testing.T) {
	release := make(chan struct{})
	pool := newTestPool(t, 1, 1, func(context.Context, testWork) error {
		<-release
		return nil
	})
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		close(release)
		_ = pool.Stop(5 * time.Second)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var err error
	for i := 0; err == nil && i < 10; i++ {
		err = pool.SubmitWait(ctx, testWork{id: i})
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestPoolProcessingErrors(t *testing.T) {
	pool := newTestPool(t, 2, 10, func(_ context.Context, w testWork) error {
		if w.fail {
			return errors.New("simulated error")
		}
		return nil
	})
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := range 10 {
		if err := pool.Submit(testWork{id: i, fail: i%2 == 0}); err != nil {
			t.Errorf("submit %d: %v", i, err)
		}
	}
	if err := pool.Stop(5 * time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	stats := pool.Stats()
	if stats.Processed != 10 || stats.Failed != 5 {
		t.Errorf("expected 10 processed and 5 failed, got %d and %d", stats.Processed, stats.Failed)
	}
}

func TestPoolContextCancellation(t *testing.T) {
	pool := newTestPool(t, 2, 10, func(ctx context.Context, w testWork) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.delay):
			return nil
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	if err := pool.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := range 5 {
		_ = pool.Submit(testWork{id: i, delay: time.Second})
	}
	cancel()

	start := time.Now()
	if err := pool.Stop(5 * time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("workers ignored cancellation, stop took %v", elapsed)
	}
}

func TestPoolStopTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	pool := newTestPool(t, 1, 1, func(context.Context, testWork) error {
		<-release
		return nil
	})
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_ = pool.Submit(testWork{})

	if err := pool.Stop(10 * time.Millisecond); !errors.Is(err, ErrStopTimeout) {
		t.Errorf("expected ErrStopTimeout, got %v", err)
	}
}

func TestPoolConcurrentSubmissions(t *testing.T) {
	var processed atomic.Int64
	pool := newTestPool(t, 5, 100, func(context.Context, testWork) error {
		processed.Add(1)
		return nil
	})
	ctx := context.Background()
	if err := pool.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var wg sync.WaitGroup
	for s := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 10 {
				if err := pool.SubmitWait(ctx, testWork{id: s*10 + j}); err != nil {
					t.Errorf("submitter %d: %v", s, err)
				}
			}
		}()
	}
	wg.Wait()

	if err := pool.Stop(5 * time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if got := processed.Load(); got != 100 {
		t.Errorf("expected 100 processed, got %d", got)
	}
}

func TestPoolMetrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	pool := newTestPool(t, 1, 10, func(_ context.Context, w testWork) error {
		if w.fail {
			return errors.New("boom")
		}
		return nil
	}, WithMetrics[testWork](registry, "replay"))

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	_ = pool.Submit(testWork{})
	_ = pool.Submit(testWork{fail: true})
	if err := pool.Stop(5 * time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	items := pool.metrics.items
	if got := testutil.ToFloat64(items.WithLabelValues("submitted")); got != 2 {
		t.Errorf("expected 2 submitted, got %v", got)
	}
	if got := testutil.ToFloat64(items.WithLabelValues("error")); got != 1 {
		t.Errorf("expected 1 error, got %v", got)
	}

	// The same name cannot be registered twice.
	if _, err := NewPool(1, 1, noop, WithMetrics[testWork](registry, "replay")); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}
