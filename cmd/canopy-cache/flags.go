package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/comploplo/canopy-sub003/config"
	"github.com/comploplo/canopy-sub003/patternindex"
)

// CLIConfig holds command-line configuration. Zero values and -1 mean
// "not set"; the configuration file or its defaults apply instead.
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	IndexPath       string
	IndexFormat     string
	Demo            bool
	Requests        int
	Rate            float64
	Workers         int
	BuildIndex      string
	MetricsPort     int
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

func parseFlags(args []string) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)

	fs.StringVar(&cfg.ConfigPath, "config", getEnv("CANOPY_CONFIG", ""),
		"Path to a YAML or JSON configuration file (env: CANOPY_CONFIG)")
	fs.StringVar(&cfg.ConfigPath, "c", getEnv("CANOPY_CONFIG", ""),
		"Path to a YAML or JSON configuration file (env: CANOPY_CONFIG)")
	fs.StringVar(&cfg.LogLevel, "log-level", "",
		"Log level: debug, info, warn, error (env: CANOPY_LOG_LEVEL)")
	fs.StringVar(&cfg.LogFormat, "log-format", "",
		"Log format: json, text (env: CANOPY_LOG_FORMAT)")
	fs.StringVar(&cfg.IndexPath, "index", "",
		"Pattern index file; implies index source \"file\"")
	fs.StringVar(&cfg.IndexFormat, "index-format", "",
		"Index file format (yaml or json), overriding the extension")
	fs.BoolVar(&cfg.Demo, "demo", getEnvBool("CANOPY_DEMO", false),
		"Replay a synthetic Zipfian workload and print statistics (env: CANOPY_DEMO)")
	fs.IntVar(&cfg.Requests, "requests", getEnvInt("CANOPY_REQUESTS", 0),
		"Number of demo requests (env: CANOPY_REQUESTS)")
	fs.Float64Var(&cfg.Rate, "rate", -1,
		"Demo requests per second, 0 for unthrottled")
	fs.IntVar(&cfg.Workers, "workers", getEnvInt("CANOPY_REPLAY_WORKERS", 0),
		"Demo lookup goroutines (env: CANOPY_REPLAY_WORKERS)")
	fs.StringVar(&cfg.BuildIndex, "build-index", "",
		"Build an index from a parsed-sentence file (YAML or JSON) into the index source, then exit")
	fs.IntVar(&cfg.MetricsPort, "metrics-port", -1,
		"Metrics and health port, 0 to disable (env: CANOPY_METRICS_PORT)")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("CANOPY_SHUTDOWN_TIMEOUT", 10*time.Second),
		"Graceful shutdown timeout (env: CANOPY_SHUTDOWN_TIMEOUT)")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	fs.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	fs.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	fs.Usage = func() { printDetailedHelp(fs) }

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if cfg.ShowHelp {
		fs.Usage()
	}
	return cfg, nil
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}
	if cfg.LogLevel != "" && !contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if cfg.LogFormat != "" && !contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	if cfg.IndexFormat != "" {
		if _, err := patternindex.ParseFormat(cfg.IndexFormat); err != nil {
			return err
		}
	}
	if cfg.Requests < 0 {
		return fmt.Errorf("invalid request count: %d", cfg.Requests)
	}
	if cfg.Workers < 0 {
		return fmt.Errorf("invalid worker count: %d", cfg.Workers)
	}
	if cfg.BuildIndex != "" {
		if cfg.Demo {
			return fmt.Errorf("-build-index and -demo cannot be combined")
		}
		if _, err := os.Stat(cfg.BuildIndex); err != nil {
			return fmt.Errorf("corpus file not found: %s", cfg.BuildIndex)
		}
	}
	if cfg.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.MetricsPort)
	}
	return nil
}

// applyFlags lets explicit flags win over the loaded configuration.
func applyFlags(cli *CLIConfig, cfg *config.Config) {
	if cli.LogLevel != "" {
		cfg.Log.Level = cli.LogLevel
	}
	if cli.LogFormat != "" {
		cfg.Log.Format = cli.LogFormat
	}
	if cli.IndexPath != "" {
		cfg.Index.Source = config.IndexSourceFile
		cfg.Index.Path = cli.IndexPath
	}
	if cli.IndexFormat != "" {
		cfg.Index.Format = cli.IndexFormat
	}
	if cli.Requests > 0 {
		cfg.Replay.Requests = cli.Requests
	}
	if cli.Rate >= 0 {
		cfg.Replay.Rate = cli.Rate
	}
	if cli.Workers > 0 {
		cfg.Replay.Workers = cli.Workers
	}
	switch {
	case cli.MetricsPort == 0:
		cfg.Metrics.Enabled = false
	case cli.MetricsPort > 0:
		cfg.Metrics.Enabled = true
		cfg.Metrics.Port = cli.MetricsPort
	}
}

func printDetailedHelp(fs *flag.FlagSet) {
	_, _ = fmt.Fprintf(os.Stderr, `%s - multi-tier dependency pattern cache

Usage: %s [options]

Options:
`, appName, os.Args[0])
	fs.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Serve patterns from an index file with metrics on :9090
  %s --index=patterns.yaml --metrics-port=9090

  # Replay 50k synthetic requests at 10k/s and print statistics
  %s --demo --requests=50000 --rate=10000

  # Same workload, unthrottled, across 8 lookup goroutines
  %s --demo --requests=50000 --rate=0 --workers=8

  # Index a parsed corpus into patterns.yaml
  %s --build-index=sentences.yaml --index=patterns.yaml

  # Validate configuration only
  %s --config=canopy.yaml --validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if strings.EqualFold(s, item) {
			return true
		}
	}
	return false
}
