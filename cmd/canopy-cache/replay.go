package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/comploplo/canopy-sub003/config"
	"github.com/comploplo/canopy-sub003/health"
	"github.com/comploplo/canopy-sub003/metric"
	"github.com/comploplo/canopy-sub003/patterncache"
	"github.com/comploplo/canopy-sub003/patternindex"
	"github.com/comploplo/canopy-sub003/pkg/worker"
	"github.com/comploplo/canopy-sub003/signature"
	"github.com/comploplo/canopy-sub003/synth"
	"github.com/comploplo/canopy-sub003/testutil"
)

const (
	cleanupEvery = 1000
	drainTimeout = 30 * time.Second
)

// replayReport is printed as JSON when a replay finishes.
type replayReport struct {
	Requests       int                  `json:"requests"`
	Served         int                  `json:"served"`
	Synthesized    int                  `json:"synthesized"`
	Elapsed        string               `json:"elapsed"`
	RequestsPerSec float64              `json:"requests_per_sec"`
	CoreSize       int                  `json:"core_size"`
	WorkingSetSize int                  `json:"working_set_size"`
	MemoryPressure float64              `json:"memory_pressure"`
	Memory         map[string]int64     `json:"memory_bytes"`
	Stats          patterncache.Summary `json:"stats"`
	Health         health.Status        `json:"health"`
}

// demoIndex builds a synthetic index over the replay vocabulary.
func demoIndex(cfg config.ReplayConfig, logger *slog.Logger) *patternindex.Index {
	logger.Info("Building synthetic pattern index", "vocabulary", cfg.Vocabulary)
	return testutil.ZipfIndex(max(cfg.Vocabulary, 1))
}

// replay draws cfg.Requests Zipfian lookups against store, throttled to
// cfg.Rate per second when positive. Misses go to resolver when one is set.
// With cfg.Workers above one the lookups run on a worker pool whose metrics
// land in registry. It stops early, still reporting, when ctx is cancelled.
func replay(ctx context.Context, store patternStore, resolver *synth.Resolver, cfg config.ReplayConfig,
	registry *metric.MetricsRegistry, logger *slog.Logger) (replayReport, error) {
	var limiter *rate.Limiter
	if cfg.Rate > 0 {
		burst := max(1, int(cfg.Rate/10))
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}

	vocabulary := max(cfg.Vocabulary, 1)
	exponent := cfg.Exponent
	if exponent <= 1 {
		exponent = 1.1
	}
	sampler := testutil.NewZipfSampler(cfg.Seed, exponent, vocabulary)

	var served, synthesized atomic.Int64
	lookup := func(_ context.Context, sig signature.Signature) error {
		if resolver != nil {
			if _, cached := resolver.Resolve(sig); cached {
				served.Add(1)
			} else {
				synthesized.Add(1)
			}
		} else if _, ok := store.GetWithFallback(sig, sig.Variants()[1:]); ok {
			served.Add(1)
		}
		return nil
	}

	submit := lookup
	var pool *worker.Pool[signature.Signature]
	if cfg.Workers > 1 {
		var err error
		pool, err = worker.NewPool(cfg.Workers, cfg.Workers*64, lookup,
			worker.WithMetrics[signature.Signature](registry, "replay"))
		if err != nil {
			return replayReport{}, fmt.Errorf("create replay pool: %w", err)
		}
		if err := pool.Start(ctx); err != nil {
			return replayReport{}, fmt.Errorf("start replay pool: %w", err)
		}
		submit = pool.SubmitWait
	}

	report := replayReport{}
	start := time.Now()
	logger.Info("Replaying requests",
		"requests", cfg.Requests,
		"rate", cfg.Rate,
		"vocabulary", vocabulary,
		"workers", max(cfg.Workers, 1))

	for i := 0; i < cfg.Requests; i++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				break
			}
		} else if ctx.Err() != nil {
			break
		}

		if err := submit(ctx, sampler.NextSignature()); err != nil {
			break
		}
		report.Requests++

		if report.Requests%cleanupEvery == 0 {
			store.CleanupIfNeeded()
		}
	}

	if pool != nil {
		if err := pool.Stop(drainTimeout); err != nil {
			logger.Warn("Replay workers did not drain", "error", err)
		}
		stats := pool.Stats()
		logger.Debug("Replay pool finished",
			"processed", stats.Processed,
			"dropped", stats.Dropped)
	}

	elapsed := time.Since(start)
	report.Served = int(served.Load())
	report.Synthesized = int(synthesized.Load())
	report.Elapsed = elapsed.String()
	if secs := elapsed.Seconds(); secs > 0 {
		report.RequestsPerSec = float64(report.Requests) / secs
	}
	report.CoreSize = store.CoreSize()
	report.WorkingSetSize = store.WorkingSetSize()
	report.MemoryPressure = store.MemoryPressure()
	report.Memory = store.MemoryBreakdown()
	report.Stats = store.Stats()
	report.Health = store.Health()

	logger.Info("Replay finished",
		"requests", report.Requests,
		"served", report.Served,
		"core_hit_rate", report.Stats.CoreHitRate,
		"total_hit_rate", report.Stats.TotalHitRate,
		"elapsed", elapsed)
	return report, nil
}

func writeReport(w io.Writer, r replayReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
