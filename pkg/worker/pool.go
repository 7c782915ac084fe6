package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/comploplo/canopy-sub003/errors"
	"github.com/comploplo/canopy-sub003/metric"
)

// Pool runs a fixed number of goroutines over a bounded queue of T.
type Pool[T any] struct {
	workers   int
	queueSize int
	process   func(context.Context, T) error

	work    chan T
	metrics *poolMetrics
	wg      sync.WaitGroup

	mu      sync.Mutex
	started bool
	stopped bool

	submitted atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

type poolMetrics struct {
	queueDepth prometheus.Gauge
	items      *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// Option configures a Pool.
type Option[T any] func(*Pool[T]) error

// WithMetrics registers the pool's queue depth, item outcomes and
// processing time, labelled with name.
func WithMetrics[T any](registry *metric.MetricsRegistry, name string) Option[T] {
	return func(p *Pool[T]) error {
		if registry == nil || name == "" {
			return nil
		}
		labels := prometheus.Labels{"pool": name}
		m := &poolMetrics{
			queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace:   "canopy",
				Name:        "worker_queue_depth",
				Help:        "Items waiting in the worker pool queue",
				ConstLabels: labels,
			}),
			items: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace:   "canopy",
				Name:        "worker_items_total",
				Help:        "Work items by outcome",
				ConstLabels: labels,
			}, []string{"outcome"}),
			duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace:   "canopy",
				Name:        "worker_processing_duration_seconds",
				Help:        "Time spent processing work items",
				ConstLabels: labels,
				Buckets:     []float64{1e-6, 1e-5, 1e-4, 0.001, 0.01, 0.1, 1},
			}, []string{"status"}),
		}
		if err := registry.RegisterGauge(name, "worker_queue_depth", m.queueDepth); err != nil {
			return err
		}
		if err := registry.RegisterCounterVec(name, "worker_items", m.items); err != nil {
			return err
		}
		if err := registry.RegisterHistogramVec(name, "worker_processing_duration", m.duration); err != nil {
			return err
		}
		p.metrics = m
		return nil
	}
}

// NewPool creates a pool of workers goroutines over a queue of queueSize.
// Non-positive sizes default to 10 workers and 1000 slots.
func NewPool[T any](workers, queueSize int, process func(context.Context, T) error, opts ...Option[T]) (*Pool[T], error) {
	if process == nil {
		return nil, errors.WrapInvalid(ErrNilProcessor, "worker", "NewPool", "check processor")
	}
	if workers <= 0 {
		workers = 10
	}
	if queueSize <= 0 {
		queueSize = 1000
	}

	p := &Pool[T]{
		workers:   workers,
		queueSize: queueSize,
		process:   process,
		work:      make(chan T, queueSize),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, errors.Wrap(err, "worker", "NewPool", "apply option")
		}
	}
	return p, nil
}

// Start launches the workers. They exit when ctx is cancelled or the pool
// is stopped and drained.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrPoolAlreadyStarted
	}
	for range p.workers {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	p.started = true
	return nil
}

func (p *Pool[T]) accepting() error {
	if !p.started {
		return ErrPoolNotStarted
	}
	if p.stopped {
		return ErrPoolStopped
	}
	return nil
}

// offer queues work if there is room. It never blocks.
func (p *Pool[T]) offer(work T) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.accepting(); err != nil {
		return false, err
	}
	select {
	case p.work <- work:
		p.enqueued()
		return true, nil
	default:
		return false, nil
	}
}

// Submit queues work without blocking, dropping it with ErrQueueFull when
// the queue is at capacity.
func (p *Pool[T]) Submit(work T) error {
	ok, err := p.offer(work)
	if err != nil || ok {
		return err
	}
	p.dropped.Add(1)
	if p.metrics != nil {
		p.metrics.items.WithLabelValues("dropped").Inc()
	}
	return ErrQueueFull
}

// SubmitWait queues work, polling while the queue is full, until ctx ends.
func (p *Pool[T]) SubmitWait(ctx context.Context, work T) error {
	backoff := 10 * time.Microsecond
	for {
		ok, err := p.offer(work)
		if err != nil || ok {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(2*backoff, time.Millisecond)
	}
}

func (p *Pool[T]) enqueued() {
	p.submitted.Add(1)
	if p.metrics != nil {
		p.metrics.items.WithLabelValues("submitted").Inc()
		p.metrics.queueDepth.Set(float64(len(p.work)))
	}
}

// Stop closes the queue and waits up to timeout for queued work to finish.
func (p *Pool[T]) Stop(timeout time.Duration) error {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.work)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrStopTimeout
	}
}

// Stats is a snapshot of pool counters.
type Stats struct {
	Workers    int   `json:"workers"`
	QueueSize  int   `json:"queue_size"`
	QueueDepth int   `json:"queue_depth"`
	Submitted  int64 `json:"submitted"`
	Processed  int64 `json:"processed"`
	Failed     int64 `json:"failed"`
	Dropped    int64 `json:"dropped"`
}

func (p *Pool[T]) Stats() Stats {
	return Stats{
		Workers:    p.workers,
		QueueSize:  p.queueSize,
		QueueDepth: len(p.work),
		Submitted:  p.submitted.Load(),
		Processed:  p.processed.Load(),
		Failed:     p.failed.Load(),
		Dropped:    p.dropped.Load(),
	}
}

func (p *Pool[T]) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case work, ok := <-p.work:
			if !ok {
				return
			}

			start := time.Now()
			err := p.process(ctx, work)
			p.processed.Add(1)
			if err != nil {
				p.failed.Add(1)
			}

			if p.metrics != nil {
				status := "success"
				if err != nil {
					status = "error"
				}
				p.metrics.items.WithLabelValues(status).Inc()
				p.metrics.duration.WithLabelValues(status).Observe(time.Since(start).Seconds())
				p.metrics.queueDepth.Set(float64(len(p.work)))
			}
		}
	}
}
