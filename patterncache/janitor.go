package patterncache

import (
	"context"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/comploplo/canopy-sub003/errors"
	"github.com/comploplo/canopy-sub003/metric"
)

// Cleaner is implemented by Cache and Sharded.
type Cleaner interface {
	CleanupIfNeeded() bool
}

// Janitor runs CleanupIfNeeded on a cron schedule. Runs never overlap.
type Janitor struct {
	target   Cleaner
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger
	metrics  *metric.Metrics

	mu      sync.Mutex
	running bool
}

// NewJanitor schedules cleanups of target. schedule is a standard five-field
// cron expression or a descriptor such as "@every 30s". metrics may be nil.
func NewJanitor(target Cleaner, schedule string, logger *slog.Logger, metrics *metric.Metrics) (*Janitor, error) {
	if target == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "patterncache", "NewJanitor", "nil cleanup target")
	}
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "patterncache", "NewJanitor",
			"cron schedule "+schedule+": "+err.Error())
	}
	if logger == nil {
		logger = slog.Default()
	}

	j := &Janitor{
		target:   target,
		schedule: schedule,
		logger:   logger.With("component", "janitor"),
		metrics:  metrics,
	}
	j.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	j.cron.Schedule(sched, cron.FuncJob(func() { j.RunOnce() }))
	return j, nil
}

// RunOnce performs a single cleanup check and reports whether it evicted.
func (j *Janitor) RunOnce() bool {
	evicted := j.target.CleanupIfNeeded()
	j.metrics.RecordCleanup(evicted)
	if evicted {
		j.logger.Info("scheduled cleanup evicted entries")
	} else {
		j.logger.Debug("scheduled cleanup skipped; under budget")
	}
	return evicted
}

// Start begins the schedule. It stops when ctx is done or Stop is called.
func (j *Janitor) Start(ctx context.Context) {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return
	}
	j.running = true
	j.mu.Unlock()

	j.cron.Start()
	j.logger.Info("janitor started", "schedule", j.schedule)

	go func() {
		<-ctx.Done()
		j.Stop()
	}()
}

// Stop halts the schedule and waits for a run in progress. It is safe to
// call more than once.
func (j *Janitor) Stop() {
	j.mu.Lock()
	wasRunning := j.running
	j.running = false
	j.mu.Unlock()

	<-j.cron.Stop().Done()
	if wasRunning {
		j.logger.Info("janitor stopped")
	}
}
