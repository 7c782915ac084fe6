// Package testutil holds fixtures shared by tests, benchmarks and the demo
// replay: a synthetic Zipfian verb vocabulary with patterns ranked by
// frequency, a sampler that draws requests from it, and MockLookup, a
// counting in-memory index tier.
//
//	idx := testutil.ZipfIndex(5000)
//	sampler := testutil.NewZipfSampler(42, 1.1, 5000)
//	for range 10000 {
//	    cache.Get(sampler.NextSignature())
//	}
package testutil
