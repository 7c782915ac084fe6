package synth

import (
	"github.com/comploplo/canopy-sub003/pattern"
	"github.com/comploplo/canopy-sub003/signature"
)

// PatternCache is the part of a pattern cache a Resolver needs. Both
// patterncache.Cache and patterncache.Sharded satisfy it.
type PatternCache interface {
	GetWithFallback(sig signature.Signature, variants []signature.Signature) (pattern.DependencyPattern, bool)
	Insert(sig signature.Signature, p pattern.DependencyPattern)
	RecordSynthesis(success bool)
}

// Resolver answers every lookup: from the cache when it can, by synthesis
// otherwise.
type Resolver struct {
	cache PatternCache
	synth *Synthesizer
}

func NewResolver(cache PatternCache, synth *Synthesizer) *Resolver {
	if synth == nil {
		synth = NewSynthesizer(nil, false)
	}
	return &Resolver{cache: cache, synth: synth}
}

// Resolve looks sig up with its looser variants as fallbacks. On a full miss
// it synthesizes a pattern, records the attempt and caches the result, so
// the next lookup for sig is a hit. The bool reports whether the pattern
// came from the cache.
func (r *Resolver) Resolve(sig signature.Signature) (pattern.DependencyPattern, bool) {
	if p, ok := r.cache.GetWithFallback(sig, sig.Variants()[1:]); ok {
		return p, true
	}

	p := r.synth.Synthesize(sig)
	r.cache.RecordSynthesis(len(p.Dependencies) > 0)
	r.cache.Insert(sig, p)
	return p, false
}
