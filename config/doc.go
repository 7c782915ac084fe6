// Package config loads the canopy-cache service configuration.
//
// A Loader starts from Default, merges YAML or JSON layers key by key and
// applies CANOPY_* environment overrides:
//
//	loader := config.NewLoader()
//	loader.AddLayer("canopy.yaml")
//	loader.AddLayer("canopy.production.yaml")
//	cfg, err := loader.Load()
//
// Durations accept Go syntax plus whole days ("2s", "14d"). Config files
// must have a .yaml, .yml or .json extension and are size and depth
// limited. SafeConfig guards a configuration shared between goroutines and
// only accepts updates that validate; canopy-cache swaps in a reloaded one
// on SIGHUP.
//
// Environment overrides:
//
//	CANOPY_LOG_LEVEL, CANOPY_LOG_FORMAT
//	CANOPY_CORE_CAPACITY, CANOPY_WORKING_SET_CAPACITY, CANOPY_SHARDS
//	CANOPY_PROMOTION_POLICY, CANOPY_PROMOTION_THRESHOLD
//	CANOPY_MEMORY_BUDGET_BYTES, CANOPY_VERBOSE
//	CANOPY_INDEX_SOURCE, CANOPY_INDEX_PATH, CANOPY_INDEX_FORMAT, CANOPY_INDEX_BUCKET
//	CANOPY_SYNTH_ENABLED, CANOPY_METRICS_ENABLED, CANOPY_METRICS_PORT
//	CANOPY_NATS_URLS (comma separated), CANOPY_NATS_USERNAME,
//	CANOPY_NATS_PASSWORD, CANOPY_NATS_TOKEN
//	CANOPY_CLEANUP_SCHEDULE
package config
