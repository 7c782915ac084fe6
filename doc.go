// Package canopy is a multi-tier cache of dependency patterns keyed by
// semantic signatures.
//
// A lookup walks three tiers, fastest first:
//
//   - Core: a fixed map of the most frequent patterns, filled once at
//     startup and never evicted.
//   - Working set: a bounded LRU of recently used patterns. Patterns found
//     further down are promoted here, immediately or after a few uses.
//   - Index: a read-only, memory-resident pattern index loaded from a file,
//     a NATS key-value bucket or a JetStream object store snapshot.
//
// Lookups that miss every tier can be answered by the synthesizer, which
// derives a pattern from VerbNet, FrameNet or part-of-speech defaults.
//
// # Packages
//
//	pattern        dependency patterns and relations
//	signature      semantic signatures, keys and fallback variants
//	patterncache   the tiered cache, sharding, statistics and the janitor
//	patternindex   the index tier: files, indexing, filters and NATS stores
//	synth          pattern synthesis and the cache-or-synthesize resolver
//	config         service configuration with file layers and CANOPY_* env
//	metric         Prometheus registry, core metrics and the HTTP server
//	health         health levels and the component monitor
//	natsclient     NATS connection with retry and circuit breaking
//	errors         classified errors
//
// The canopy-cache command under cmd/ wires these together as a service
// or as a replay of a synthetic Zipfian workload.
package canopy
