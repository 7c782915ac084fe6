package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/comploplo/canopy-sub003/config"
	"github.com/comploplo/canopy-sub003/health"
	"github.com/comploplo/canopy-sub003/metric"
	"github.com/comploplo/canopy-sub003/natsclient"
	"github.com/comploplo/canopy-sub003/pattern"
	"github.com/comploplo/canopy-sub003/patterncache"
	"github.com/comploplo/canopy-sub003/patternindex"
	"github.com/comploplo/canopy-sub003/pkg/tlsutil"
	"github.com/comploplo/canopy-sub003/signature"
	"github.com/comploplo/canopy-sub003/synth"
)

// patternStore is what the binary needs from a single or sharded cache.
type patternStore interface {
	synth.PatternCache
	patterncache.Cleaner
	Get(sig signature.Signature) (pattern.DependencyPattern, bool)
	PopulateFromIndex(idx *patternindex.Index) error
	Stats() patterncache.Summary
	MemoryBreakdown() map[string]int64
	MemoryPressure() float64
	CoreSize() int
	WorkingSetSize() int
	Health() health.Status
}

var (
	_ patternStore = (*patterncache.Cache)(nil)
	_ patternStore = (*patterncache.Sharded)(nil)
)

func newStore(cfg config.CacheConfig, idx *patternindex.Index, registry *metric.MetricsRegistry, logger *slog.Logger) (patternStore, error) {
	opts := []patterncache.Option{
		patterncache.WithLogger(logger),
		patterncache.WithMetrics(registry, "patterncache"),
	}

	// A nil *Index must reach the cache as an untyped nil lookup.
	var lookup patternindex.Lookup
	if idx != nil {
		lookup = idx
	}

	if cfg.Shards > 1 {
		s, err := patterncache.NewSharded(cfg.Shards, cfg.Config, lookup, opts...)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	c, err := patterncache.New(cfg.Config, lookup, opts...)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// loadIndex loads the disk tier named by cfg. A failed load is logged and
// reported as a nil index, so the service still runs on the remaining tiers.
func loadIndex(ctx context.Context, cfg *config.Config, metrics *metric.Metrics, monitor *health.Monitor, logger *slog.Logger) *patternindex.Index {
	source := cfg.Index.Source
	if source == "" || source == config.IndexSourceNone {
		monitor.UpdateDegraded("index", "no pattern index configured")
		return nil
	}

	start := time.Now()
	var idx *patternindex.Index
	var err error
	switch source {
	case config.IndexSourceFile:
		idx, err = loadIndexFile(cfg.Index)
	case config.IndexSourceNATS, config.IndexSourceObject:
		idx, err = loadIndexNATS(ctx, cfg, metrics, monitor, logger)
	default:
		err = fmt.Errorf("unknown index source %q", source)
	}

	if err == nil {
		idx, err = filterIndex(idx, cfg.Index, logger)
	}
	if err != nil {
		metrics.RecordIndexLoad(source, 0, err)
		monitor.Update("index", health.FromError("index", err))
		logger.Warn("Pattern index unavailable, serving without disk tier",
			"source", source, "error", err)
		return nil
	}

	metrics.RecordIndexLoad(source, idx.Len(), nil)
	monitor.UpdateHealthy("index", fmt.Sprintf("%d patterns", idx.Len()))
	meta := idx.Metadata()
	logger.Info("Loaded pattern index",
		"source", source,
		"patterns", idx.Len(),
		"build_id", meta.BuildID,
		"unique_verbs", meta.UniqueVerbs,
		"elapsed", time.Since(start))
	return idx
}

func loadIndexFile(cfg config.IndexConfig) (*patternindex.Index, error) {
	if cfg.Format == "" {
		return patternindex.LoadFile(cfg.Path)
	}
	format, err := patternindex.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	return patternindex.LoadFileFormat(cfg.Path, format)
}

// connectNATS opens the connection described by cfg.NATS. The returned
// func closes it.
func connectNATS(ctx context.Context, cfg *config.Config, metrics *metric.Metrics, monitor *health.Monitor, logger *slog.Logger) (*natsclient.Client, func(), error) {
	if len(cfg.NATS.URLs) == 0 {
		return nil, nil, fmt.Errorf("no NATS URLs configured")
	}

	opts := []natsclient.ClientOption{
		natsclient.WithLogger(logger),
		natsclient.WithName(appName),
		natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
		natsclient.WithMetrics(metrics),
		natsclient.WithHealthChangeCallback(func(healthy bool) {
			if healthy {
				monitor.UpdateHealthy("nats", "connected")
			} else {
				monitor.UpdateUnhealthy("nats", "disconnected")
			}
		}),
	}
	if cfg.NATS.ReconnectWait > 0 {
		opts = append(opts, natsclient.WithReconnectWait(cfg.NATS.ReconnectWait))
	}
	if cfg.NATS.Timeout > 0 {
		opts = append(opts, natsclient.WithTimeout(cfg.NATS.Timeout))
	}
	if cfg.NATS.Username != "" {
		opts = append(opts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		opts = append(opts, natsclient.WithToken(cfg.NATS.Token))
	}
	tlsConfig, err := tlsutil.LoadClientConfig(cfg.NATS.TLS)
	if err != nil {
		return nil, nil, err
	}
	if tlsConfig != nil {
		opts = append(opts, natsclient.WithTLSConfig(tlsConfig))
	}

	client, err := natsclient.NewClient(cfg.NATS.URLs[0], opts...)
	if err != nil {
		return nil, nil, err
	}
	closeClient := func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Close(closeCtx); err != nil {
			logger.Warn("Failed to close NATS connection", "error", err)
		}
		monitor.Remove("nats")
	}

	if err := client.Connect(ctx); err != nil {
		closeClient()
		return nil, nil, err
	}
	return client, closeClient, nil
}

// loadIndexNATS reads the index from a key-value bucket or, for the object
// source, from a snapshot in an object store.
func loadIndexNATS(ctx context.Context, cfg *config.Config, metrics *metric.Metrics, monitor *health.Monitor, logger *slog.Logger) (*patternindex.Index, error) {
	client, closeClient, err := connectNATS(ctx, cfg, metrics, monitor, logger)
	if err != nil {
		return nil, err
	}
	// The index is copied into memory, so the connection is only needed
	// for the load.
	defer closeClient()

	if cfg.Index.Source == config.IndexSourceObject {
		objects, err := client.OpenObjectStore(ctx, cfg.Index.Bucket)
		if err != nil {
			return nil, err
		}
		snapshot, err := patternindex.NewSnapshotStore(objects, cfg.Index.Path, logger)
		if err != nil {
			return nil, err
		}
		return snapshot.Load(ctx)
	}

	bucket, err := client.Bucket(ctx, cfg.Index.Bucket)
	if err != nil {
		return nil, err
	}

	store := patternindex.NewKVStore(bucket,
		patternindex.WithKVLogger(logger),
		patternindex.WithConcurrency(cfg.Index.Concurrency))
	return store.Load(ctx)
}

// saveIndexNATS writes idx to the configured key-value bucket or object
// store, creating the bucket when it is missing.
func saveIndexNATS(ctx context.Context, idx *patternindex.Index, cfg *config.Config, metrics *metric.Metrics, monitor *health.Monitor, logger *slog.Logger) error {
	client, closeClient, err := connectNATS(ctx, cfg, metrics, monitor, logger)
	if err != nil {
		return err
	}
	defer closeClient()

	if cfg.Index.Source == config.IndexSourceObject {
		objects, err := client.ObjectStore(ctx, jetstream.ObjectStoreConfig{Bucket: cfg.Index.Bucket})
		if err != nil {
			return err
		}
		snapshot, err := patternindex.NewSnapshotStore(objects, cfg.Index.Path, logger)
		if err != nil {
			return err
		}
		return snapshot.Save(ctx, idx)
	}

	bucket, err := client.KeyValue(ctx, jetstream.KeyValueConfig{Bucket: cfg.Index.Bucket})
	if err != nil {
		return err
	}
	store := patternindex.NewKVStore(bucket,
		patternindex.WithKVLogger(logger),
		patternindex.WithConcurrency(cfg.Index.Concurrency))
	return store.Save(ctx, idx)
}

func filterIndex(idx *patternindex.Index, cfg config.IndexConfig, logger *slog.Logger) (*patternindex.Index, error) {
	filter, err := patternindex.NewFilter(cfg.Include, cfg.Exclude)
	if err != nil {
		return nil, err
	}
	if filter.Empty() {
		return idx, nil
	}
	filtered := idx.Filtered(filter)
	logger.Info("Filtered pattern index", "before", idx.Len(), "after", filtered.Len())
	return filtered, nil
}

// newResolver builds the synthesis fallback, or returns nil when disabled.
func newResolver(cfg config.SynthConfig, store patternStore, logger *slog.Logger) (*synth.Resolver, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	tables := synth.DefaultTables()
	if cfg.Mappings != "" {
		extra, err := synth.LoadTables(cfg.Mappings)
		if err != nil {
			return nil, err
		}
		tables = tables.Merge(extra)
	}
	s, err := synth.NewSynthesizerWithTables(tables, logger, false)
	if err != nil {
		return nil, err
	}
	logger.Info("Pattern synthesis enabled",
		"verbnet_classes", len(s.VerbNetClasses()),
		"framenet_frames", len(s.FrameNetFrames()))
	return synth.NewResolver(store, s), nil
}
