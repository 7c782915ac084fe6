// Package synth produces dependency patterns for signatures that no cache
// tier holds, from VerbNet class and FrameNet frame mappings with a
// part-of-speech default underneath.
//
// A Resolver puts a Synthesizer behind a pattern cache:
//
//	r := synth.NewResolver(cache, synth.NewSynthesizer(logger, false))
//	p, cached := r.Resolve(sig)
//
// Synthesized patterns are inserted into the cache, where they follow the
// normal insert policy. Their confidence stays below the core-tier floor, so
// they land in the working set.
package synth
