package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/comploplo/canopy-sub003/errors"
	"github.com/comploplo/canopy-sub003/patterncache"
	"github.com/comploplo/canopy-sub003/patternindex"
	"github.com/comploplo/canopy-sub003/pkg/tlsutil"
)

// Index sources
const (
	IndexSourceNone   = "none"   // no disk tier
	IndexSourceFile   = "file"   // YAML or JSON index file
	IndexSourceNATS   = "nats"   // JetStream key-value bucket
	IndexSourceObject = "object" // index snapshot in a JetStream object store
)

// Config is the complete canopy-cache service configuration.
type Config struct {
	Version string        `json:"version,omitempty"`
	Log     LogConfig     `json:"log"`
	Cache   CacheConfig   `json:"cache"`
	Index   IndexConfig   `json:"index"`
	Synth   SynthConfig   `json:"synth"`
	Metrics MetricsConfig `json:"metrics"`
	NATS    NATSConfig    `json:"nats"`
	Cleanup CleanupConfig `json:"cleanup"`
	Replay  ReplayConfig  `json:"replay"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // text or json
}

// CacheConfig sizes the pattern cache. Shards above 1 split the capacities
// and budget over independent caches.
type CacheConfig struct {
	patterncache.Config
	Shards int `json:"shards"`
}

// IndexConfig says where the disk tier comes from.
type IndexConfig struct {
	Source      string   `json:"source"`
	Path        string   `json:"path,omitempty"`   // file path, or object name for the object source
	Format      string   `json:"format,omitempty"` // overrides the extension
	Bucket      string   `json:"bucket,omitempty"`
	Concurrency int      `json:"concurrency,omitempty"`
	Include     []string `json:"include,omitempty"` // lemma globs
	Exclude     []string `json:"exclude,omitempty"`

	// MinFrequency drops patterns seen fewer times when building an index.
	MinFrequency uint32 `json:"min_frequency,omitempty"`
}

// SynthConfig enables synthesis for lookups no tier can answer.
type SynthConfig struct {
	Enabled  bool   `json:"enabled"`
	Mappings string `json:"mappings,omitempty"` // extra YAML mapping tables
}

// MetricsConfig controls the Prometheus and health endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port"`
	Path    string `json:"path"`
}

// NATSConfig defines NATS connection settings.
type NATSConfig struct {
	URLs          []string      `json:"urls,omitempty"`
	MaxReconnects int           `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty"`
	Timeout       time.Duration `json:"timeout,omitempty"`
	Username      string        `json:"username,omitempty"`
	Password      string        `json:"password,omitempty"`
	Token         string        `json:"token,omitempty"`

	TLS tlsutil.ClientConfig `json:"tls"`
}

// CleanupConfig schedules the memory janitor.
type CleanupConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule"` // standard cron spec or @every
}

// ReplayConfig drives demo mode: a synthetic Zipfian workload.
type ReplayConfig struct {
	Vocabulary int     `json:"vocabulary"`
	Requests   int     `json:"requests"`
	Rate       float64 `json:"rate"` // requests per second, 0 is unthrottled
	Exponent   float64 `json:"exponent"`
	Seed       int64   `json:"seed"`
	Workers    int     `json:"workers"` // lookup goroutines, 1 or less runs inline
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log:   LogConfig{Level: "info", Format: "text"},
		Cache: CacheConfig{Config: patterncache.DefaultConfig(), Shards: 1},
		Index: IndexConfig{Source: IndexSourceNone, Bucket: "canopy_patterns", Concurrency: 16},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		NATS: NATSConfig{
			URLs:          []string{"nats://localhost:4222"},
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
			Timeout:       5 * time.Second,
		},
		Cleanup: CleanupConfig{Enabled: true, Schedule: "@every 30s"},
		Replay: ReplayConfig{
			Vocabulary: 5000,
			Requests:   100000,
			Exponent:   1.1,
			Seed:       42,
		},
	}
}

func invalid(field, format string, args ...any) error {
	return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
		field+": "+fmt.Sprintf(format, args...))
}

// Validate checks every section.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return invalid("log.level", "unknown level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return invalid("log.format", "unknown format %q", c.Log.Format)
	}

	if err := c.Cache.Config.Validate(); err != nil {
		return errors.Wrap(err, "config", "Validate", "cache")
	}
	if c.Cache.Shards < 0 {
		return invalid("cache.shards", "must not be negative, got %d", c.Cache.Shards)
	}
	if c.Cache.Shards > c.Cache.WorkingSetCapacity {
		return invalid("cache.shards", "%d shards exceed working set capacity %d",
			c.Cache.Shards, c.Cache.WorkingSetCapacity)
	}

	switch c.Index.Source {
	case "", IndexSourceNone:
	case IndexSourceFile:
		if c.Index.Path == "" {
			return invalid("index.path", "required for file source")
		}
		if c.Index.Format != "" {
			if _, err := patternindex.ParseFormat(c.Index.Format); err != nil {
				return err
			}
		}
	case IndexSourceNATS, IndexSourceObject:
		if c.Index.Bucket == "" {
			return invalid("index.bucket", "required for %s source", c.Index.Source)
		}
		if len(c.NATS.URLs) == 0 {
			return invalid("nats.urls", "required for %s index source", c.Index.Source)
		}
		if c.Index.Source == IndexSourceObject {
			if _, err := patternindex.FormatFromPath(c.Index.Path); err != nil {
				return invalid("index.path", "object name needs a .yaml, .yml or .json extension, got %q", c.Index.Path)
			}
		}
		if err := c.NATS.TLS.Validate(); err != nil {
			return err
		}
	default:
		return invalid("index.source", "unknown source %q", c.Index.Source)
	}
	if _, err := patternindex.NewFilter(c.Index.Include, c.Index.Exclude); err != nil {
		return err
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 0 || c.Metrics.Port > 65535) {
		return invalid("metrics.port", "out of range: %d", c.Metrics.Port)
	}

	if c.Cleanup.Enabled {
		if _, err := cron.ParseStandard(c.Cleanup.Schedule); err != nil {
			return invalid("cleanup.schedule", "%v", err)
		}
	}

	if c.Replay.Vocabulary < 0 || c.Replay.Requests < 0 || c.Replay.Rate < 0 || c.Replay.Workers < 0 {
		return invalid("replay", "vocabulary, requests, rate and workers must not be negative")
	}
	if c.Replay.Exponent != 0 && c.Replay.Exponent <= 1 {
		return invalid("replay.exponent", "must be greater than 1, got %g", c.Replay.Exponent)
	}
	return nil
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}
	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}
	return &clone
}

// Redacted returns a copy with NATS credentials masked.
func (c *Config) Redacted() *Config {
	out := c.Clone()
	for _, s := range []*string{&out.NATS.Password, &out.NATS.Token} {
		if *s != "" {
			*s = "***"
		}
	}
	return out
}

// String returns the redacted configuration as JSON.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c.Redacted(), "", "  ")
	return string(data)
}

// SafeConfig provides thread-safe access to a configuration.
type SafeConfig struct {
	mu     sync.RWMutex
	config *Config
}

func NewSafeConfig(cfg *Config) *SafeConfig {
	if cfg == nil {
		cfg = Default()
	}
	return &SafeConfig{config: cfg}
}

// Get returns a deep copy of the current configuration.
func (sc *SafeConfig) Get() *Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.config.Clone()
}

// Update replaces the configuration once cfg validates.
func (sc *SafeConfig) Update(cfg *Config) error {
	if cfg == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, "config", "Update", "nil config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.config = cfg.Clone()
	return nil
}
