package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/comploplo/canopy-sub003/config"
	"github.com/comploplo/canopy-sub003/health"
	"github.com/comploplo/canopy-sub003/metric"
	"github.com/comploplo/canopy-sub003/patternindex"
)

// buildReport is printed as JSON when an index build finishes.
type buildReport struct {
	Corpus       string  `json:"corpus"`
	Destination  string  `json:"destination"`
	BuildID      string  `json:"build_id"`
	Sentences    int     `json:"sentences"`
	Instances    uint32  `json:"instances"`
	Patterns     int     `json:"patterns"`
	UniqueVerbs  int     `json:"unique_verbs"`
	CoreCoverage float64 `json:"core_coverage"`
	Elapsed      string  `json:"elapsed"`
}

// buildIndex indexes the root-verb patterns of a parsed-sentence file and
// writes the index to the configured source. CoreCoverage is the share of
// pattern instances the core tier would hold at the configured capacity.
func buildIndex(ctx context.Context, cfg *config.Config, corpusPath string, logger *slog.Logger) (buildReport, error) {
	start := time.Now()
	sentences, err := patternindex.LoadSentences(corpusPath)
	if err != nil {
		return buildReport{}, fmt.Errorf("load corpus: %w", err)
	}
	filter, err := patternindex.NewFilter(cfg.Index.Include, cfg.Index.Exclude)
	if err != nil {
		return buildReport{}, err
	}

	x := patternindex.NewIndexer(patternindex.IndexerConfig{
		MinFrequency: cfg.Index.MinFrequency,
		Filter:       filter,
		Verbose:      cfg.Cache.Verbose,
	}, logger)
	x.AddSource(filepath.Base(corpusPath))
	for _, s := range sentences {
		x.AddSentence(s)
	}
	idx := x.Build()

	dest, err := saveIndex(ctx, idx, cfg, logger)
	if err != nil {
		return buildReport{}, fmt.Errorf("save index: %w", err)
	}

	meta := idx.Metadata()
	report := buildReport{
		Corpus:       corpusPath,
		Destination:  dest,
		BuildID:      meta.BuildID,
		Sentences:    meta.TotalSentences,
		Instances:    x.Instances(),
		Patterns:     idx.Len(),
		UniqueVerbs:  meta.UniqueVerbs,
		CoreCoverage: x.Coverage(cfg.Cache.CoreCapacity),
		Elapsed:      time.Since(start).String(),
	}
	logger.Info("Built pattern index",
		"destination", dest,
		"patterns", report.Patterns,
		"core_coverage", report.CoreCoverage)
	return report, nil
}

// saveIndex writes idx to the index source and names where it went.
func saveIndex(ctx context.Context, idx *patternindex.Index, cfg *config.Config, logger *slog.Logger) (string, error) {
	switch cfg.Index.Source {
	case config.IndexSourceFile:
		if cfg.Index.Format == "" {
			return cfg.Index.Path, idx.SaveFile(cfg.Index.Path)
		}
		format, err := patternindex.ParseFormat(cfg.Index.Format)
		if err != nil {
			return "", err
		}
		return cfg.Index.Path, idx.SaveFileFormat(cfg.Index.Path, format)
	case config.IndexSourceNATS, config.IndexSourceObject:
		metrics := metric.NewMetricsRegistry().CoreMetrics()
		if err := saveIndexNATS(ctx, idx, cfg, metrics, health.NewMonitor(), logger); err != nil {
			return "", err
		}
		if cfg.Index.Source == config.IndexSourceObject {
			return cfg.Index.Bucket + "/" + cfg.Index.Path, nil
		}
		return cfg.Index.Bucket, nil
	default:
		return "", fmt.Errorf("no index destination: set -index or index.source")
	}
}

func writeBuildReport(w io.Writer, r buildReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
