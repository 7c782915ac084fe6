package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/comploplo/canopy-sub003/errors"
	"github.com/comploplo/canopy-sub003/patterncache"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CANOPY"

// Loader loads configuration layers over the defaults. Later layers override
// earlier ones key by key; environment variables override every layer.
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
	getenv     func(string) string
}

// NewLoader creates a loader with validation enabled.
func NewLoader() *Loader {
	return &Loader{
		validation: true,
		envPrefix:  EnvPrefix,
		getenv:     os.Getenv,
	}
}

// AddLayer adds a YAML or JSON configuration file.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables validation in Load.
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// Load merges the defaults, every layer and the environment.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	for _, path := range l.layers {
		raw, err := l.loadRaw(path)
		if err != nil {
			return nil, errors.Wrap(err, "config", "Load", "load "+path)
		}
		if cfg, err = mergeFromMap(cfg, raw); err != nil {
			return nil, errors.Wrap(err, "config", "Load", "merge "+path)
		}
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadFile loads a single file over the defaults and validates the result.
// An empty path yields the validated defaults with environment overrides.
func LoadFile(path string) (*Config, error) {
	l := NewLoader()
	if path != "" {
		l.AddLayer(path)
	}
	return l.Load()
}

func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := validateJSONDepth(data); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
				"config", "loadRaw", "decode json")
		}
	default:
		if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&raw); err != nil && err != io.EOF {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
				"config", "loadRaw", "decode yaml")
		}
	}

	parseDurations(raw)
	return raw, nil
}

// mergeFromMap overlays the keys present in override onto base.
func mergeFromMap(base *Config, override map[string]any) (*Config, error) {
	if len(override) == 0 {
		return base, nil
	}

	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}
	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return nil, err
	}

	mergedJSON, err := json.Marshal(deepMergeMaps(baseMap, override))
	if err != nil {
		return nil, err
	}
	var merged Config
	if err := json.Unmarshal(mergedJSON, &merged); err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err),
			"config", "mergeFromMap", "decode merged config")
	}
	return &merged, nil
}

// deepMergeMaps merges override into base; nested maps merge recursively and
// nil values are ignored.
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

// parseDurations turns duration strings such as "2s" into nanoseconds so the
// JSON round trip can decode them into time.Duration.
func parseDurations(raw map[string]any) {
	nats, ok := raw["nats"].(map[string]any)
	if !ok {
		return
	}
	for _, key := range []string{"reconnect_wait", "timeout"} {
		if s, ok := nats[key].(string); ok {
			if d, err := parseDurationWithDays(s); err == nil {
				nats[key] = d.Nanoseconds()
			}
		}
	}
}

// parseDurationWithDays also accepts whole days such as "14d".
func parseDurationWithDays(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// applyEnvOverrides reads CANOPY_* variables. Malformed numbers are errors
// rather than silently ignored.
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	env := func(name string) (string, error) {
		key := l.envPrefix + "_" + name
		val := l.getenv(key)
		return val, validateEnvVar(key, val)
	}

	str := func(name string, dst *string) error {
		val, err := env(name)
		if err == nil && val != "" {
			*dst = val
		}
		return err
	}
	integer := func(name string, dst *int) error {
		val, err := env(name)
		if err != nil || val == "" {
			return err
		}
		n, err := strconv.Atoi(val)
		if err != nil {
			return envError(name, val, err)
		}
		*dst = n
		return nil
	}
	boolean := func(name string, dst *bool) error {
		val, err := env(name)
		if err != nil || val == "" {
			return err
		}
		b, err := strconv.ParseBool(val)
		if err != nil {
			return envError(name, val, err)
		}
		*dst = b
		return nil
	}

	var budget string
	var policy string
	var urls string
	steps := []error{
		str("LOG_LEVEL", &cfg.Log.Level),
		str("LOG_FORMAT", &cfg.Log.Format),
		integer("CORE_CAPACITY", &cfg.Cache.CoreCapacity),
		integer("WORKING_SET_CAPACITY", &cfg.Cache.WorkingSetCapacity),
		integer("PROMOTION_THRESHOLD", &cfg.Cache.PromotionThreshold),
		integer("SHARDS", &cfg.Cache.Shards),
		str("PROMOTION_POLICY", &policy),
		str("MEMORY_BUDGET_BYTES", &budget),
		boolean("VERBOSE", &cfg.Cache.Verbose),
		str("INDEX_SOURCE", &cfg.Index.Source),
		str("INDEX_PATH", &cfg.Index.Path),
		str("INDEX_FORMAT", &cfg.Index.Format),
		str("INDEX_BUCKET", &cfg.Index.Bucket),
		boolean("SYNTH_ENABLED", &cfg.Synth.Enabled),
		boolean("METRICS_ENABLED", &cfg.Metrics.Enabled),
		integer("METRICS_PORT", &cfg.Metrics.Port),
		str("NATS_URLS", &urls),
		str("NATS_USERNAME", &cfg.NATS.Username),
		str("NATS_PASSWORD", &cfg.NATS.Password),
		str("NATS_TOKEN", &cfg.NATS.Token),
		str("CLEANUP_SCHEDULE", &cfg.Cleanup.Schedule),
	}
	for _, err := range steps {
		if err != nil {
			return err
		}
	}

	if policy != "" {
		cfg.Cache.PromotionPolicy = patterncache.PromotionPolicy(strings.ToLower(policy))
	}
	if budget != "" {
		n, err := strconv.ParseInt(budget, 10, 64)
		if err != nil {
			return envError("MEMORY_BUDGET_BYTES", budget, err)
		}
		cfg.Cache.MemoryBudgetBytes = n
	}
	if urls != "" {
		cfg.NATS.URLs = strings.Split(urls, ",")
	}
	return nil
}

func envError(name, val string, err error) error {
	return errors.WrapInvalid(fmt.Errorf("%w: %s_%s=%q: %v", errors.ErrInvalidConfig, EnvPrefix, name, val, err),
		"config", "applyEnvOverrides", "parse environment")
}

// SaveToFile writes the configuration as YAML or JSON by extension.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(c, "", "  ")
	default:
		// Round trip through JSON so YAML keys match the JSON tags.
		var m map[string]any
		if data, err = json.Marshal(c); err == nil {
			if err = json.Unmarshal(data, &m); err == nil {
				data, err = yaml.Marshal(integralNumbers(m))
			}
		}
	}
	if err != nil {
		return errors.Wrap(err, "config", "SaveToFile", "encode")
	}
	return safeWriteFile(path, data)
}

// integralNumbers turns whole float64 values from a JSON decode back into
// integers, so YAML output reads 2097152 rather than 2.097152e+06.
func integralNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = integralNumbers(e)
		}
	case []any:
		for i, e := range t {
			t[i] = integralNumbers(e)
		}
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return int64(t)
		}
	}
	return v
}
