// Package patternindex holds the full pattern set that backs the cache's
// disk tier, and the tooling to build, filter and persist it.
//
// An Index is memory resident. Lookups are synchronous map reads keyed by
// signature.Key, so a "disk hit" never blocks on I/O. Indexes are produced
// by the Indexer from parsed sentences, and persisted either as YAML/JSON
// files (LoadFile, SaveFile) or in a NATS JetStream key-value bucket
// (KVStore).
//
// Basic usage:
//
//	idx, err := patternindex.LoadFile("patterns.yaml")
//	if err != nil {
//		// the cache runs without a disk tier
//	}
//	p, ok := idx.Pattern(sig)
package patternindex
