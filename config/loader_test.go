package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comploplo/canopy-sub003/errors"
	"github.com/comploplo/canopy-sub003/patterncache"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func loaderWithEnv(env map[string]string) *Loader {
	l := NewLoader()
	l.getenv = func(k string) string { return env[k] }
	return l
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "canopy.yaml", `
cache:
  core_capacity: 50
  working_set_capacity: 80
  promotion_policy: immediate
  shards: 4
index:
  source: file
  path: patterns.yaml
  include: ["run*", "walk*"]
nats:
  reconnect_wait: 500ms
  timeout: 1d
cleanup:
  schedule: "*/5 * * * *"
`)
	l := loaderWithEnv(nil)
	l.AddLayer(path)

	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Cache.CoreCapacity)
	assert.Equal(t, 80, cfg.Cache.WorkingSetCapacity)
	assert.Equal(t, patterncache.PromotionImmediate, cfg.Cache.PromotionPolicy)
	assert.Equal(t, 4, cfg.Cache.Shards)
	// Untouched keys keep their defaults.
	assert.Equal(t, 3, cfg.Cache.PromotionThreshold)
	assert.Equal(t, int64(2*1024*1024), cfg.Cache.MemoryBudgetBytes)
	assert.Equal(t, "canopy_patterns", cfg.Index.Bucket)

	assert.Equal(t, []string{"run*", "walk*"}, cfg.Index.Include)
	assert.Equal(t, 500*time.Millisecond, cfg.NATS.ReconnectWait)
	assert.Equal(t, 24*time.Hour, cfg.NATS.Timeout)
	assert.Equal(t, "*/5 * * * *", cfg.Cleanup.Schedule)
}

func TestLoadLayersOverride(t *testing.T) {
	base := writeFile(t, "base.json", `{"cache": {"core_capacity": 10, "working_set_capacity": 20}, "log": {"level": "debug"}}`)
	prod := writeFile(t, "prod.yml", "cache:\n  core_capacity: 30\n")

	l := loaderWithEnv(nil)
	l.AddLayer(base)
	l.AddLayer(prod)
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Cache.CoreCapacity)
	assert.Equal(t, 20, cfg.Cache.WorkingSetCapacity)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	l := loaderWithEnv(map[string]string{
		"CANOPY_CORE_CAPACITY":       "7",
		"CANOPY_PROMOTION_POLICY":    "IMMEDIATE",
		"CANOPY_MEMORY_BUDGET_BYTES": "0",
		"CANOPY_VERBOSE":             "true",
		"CANOPY_NATS_URLS":           "nats://a:4222,nats://b:4222",
		"CANOPY_INDEX_SOURCE":        "nats",
		"CANOPY_METRICS_PORT":        "9191",
	})

	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Cache.CoreCapacity)
	assert.Equal(t, patterncache.PromotionImmediate, cfg.Cache.PromotionPolicy)
	assert.Zero(t, cfg.Cache.MemoryBudgetBytes)
	assert.True(t, cfg.Cache.Verbose)
	assert.Equal(t, []string{"nats://a:4222", "nats://b:4222"}, cfg.NATS.URLs)
	assert.Equal(t, IndexSourceNATS, cfg.Index.Source)
	assert.Equal(t, 9191, cfg.Metrics.Port)
}

func TestLoadEnvErrors(t *testing.T) {
	for name, env := range map[string]map[string]string{
		"bad int":    {"CANOPY_CORE_CAPACITY": "many"},
		"bad bool":   {"CANOPY_VERBOSE": "sometimes"},
		"bad budget": {"CANOPY_MEMORY_BUDGET_BYTES": "2MB"},
		"null byte":  {"CANOPY_INDEX_PATH": "a\x00b"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := loaderWithEnv(env).Load()
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestLoadValidation(t *testing.T) {
	path := writeFile(t, "bad.yaml", "cache:\n  working_set_capacity: 0\n")

	l := loaderWithEnv(nil)
	l.AddLayer(path)
	_, err := l.Load()
	assert.Error(t, err)

	l.EnableValidation(false)
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Zero(t, cfg.Cache.WorkingSetCapacity)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "missing.yaml")},
		{"wrong extension", writeFile(t, "canopy.toml", "x = 1")},
		{"malformed yaml", writeFile(t, "broken.yaml", "cache: [unclosed")},
		{"malformed json", writeFile(t, "broken.json", `{"cache": }`)},
		{"wrong type", writeFile(t, "types.yaml", "cache:\n  core_capacity: lots\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := loaderWithEnv(nil)
			l.AddLayer(tt.path)
			_, err := l.Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadFileEmptyPath(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, patterncache.DefaultConfig().CoreCapacity, cfg.Cache.CoreCapacity)
}

func TestSaveAndReload(t *testing.T) {
	for _, name := range []string{"saved.yaml", "saved.json"} {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			cfg.Cache.CoreCapacity = 123
			cfg.Index.Exclude = []string{"be"}
			cfg.NATS.ReconnectWait = 3 * time.Second

			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, cfg.SaveToFile(path))

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

			l := loaderWithEnv(nil)
			l.AddLayer(path)
			loaded, err := l.Load()
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestParseDurationWithDays(t *testing.T) {
	d, err := parseDurationWithDays("14d")
	require.NoError(t, err)
	assert.Equal(t, 14*24*time.Hour, d)

	d, err = parseDurationWithDays("90s")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = parseDurationWithDays("xd")
	assert.Error(t, err)
}
