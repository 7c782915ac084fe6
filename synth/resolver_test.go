package synth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comploplo/canopy-sub003/pattern"
	"github.com/comploplo/canopy-sub003/patterncache"
	"github.com/comploplo/canopy-sub003/patternindex"
	"github.com/comploplo/canopy-sub003/signature"
	"github.com/comploplo/canopy-sub003/testutil"
)

func newResolver(t *testing.T, entries ...patternindex.Entry) (*Resolver, *patterncache.Cache) {
	t.Helper()
	cache, err := patterncache.New(patterncache.TestConfig(), testutil.NewMockLookup(entries...))
	require.NoError(t, err)
	return NewResolver(cache, NewSynthesizer(nil, false)), cache
}

func TestResolveSynthesizesAndCaches(t *testing.T) {
	r, cache := newResolver(t)
	run := sig("run", "run-51.3.2", "", signature.Verb)

	p, cached := r.Resolve(run)
	assert.False(t, cached)
	assert.Equal(t, pattern.SourceVerbNet, p.Source.Kind)
	assert.InDelta(t, VerbNetConfidence, p.Confidence, 1e-9)

	assert.True(t, cache.ContainsWorkingSet(run))
	assert.False(t, cache.ContainsCore(run))

	again, cached := r.Resolve(run)
	assert.True(t, cached)
	assert.True(t, again.Equal(p))

	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.SynthesisAttempts)
	assert.Equal(t, int64(1), stats.SynthesisSuccesses)
	assert.Equal(t, int64(1), stats.LRUHits)
}

func TestResolveEmptySynthesisIsFailure(t *testing.T) {
	r, cache := newResolver(t)

	p, cached := r.Resolve(sig("quickly", "", "", signature.Adverb))

	assert.False(t, cached)
	assert.Empty(t, p.Dependencies)
	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.SynthesisAttempts)
	assert.Zero(t, stats.SynthesisSuccesses)
	assert.Zero(t, stats.SynthesisSuccessRate)
}

func TestResolveUsesFallbackVariant(t *testing.T) {
	r, cache := newResolver(t, patternindex.Entry{
		Key:     signature.Key("run", "", "", signature.Verb),
		Pattern: testutil.Pattern("run", 50),
	})
	indexed := testutil.Pattern("run", 50)

	p, cached := r.Resolve(sig("run", "run-51.3.2", "Self_motion", signature.Verb))

	assert.True(t, cached)
	assert.Equal(t, pattern.SourceIndexed, p.Source.Kind)
	assert.InDelta(t, indexed.Confidence*patterncache.FallbackPenalty, p.Confidence, 1e-9)
	assert.Zero(t, cache.Stats().SynthesisAttempts)
}

func TestResolveOverSharded(t *testing.T) {
	cache, err := patterncache.NewSharded(4, patterncache.TestConfig(), nil)
	require.NoError(t, err)
	r := NewResolver(cache, nil)

	sigs := []signature.Signature{
		sig("give", "give-13.1", "", signature.Verb),
		sig("tell", "", "Statement", signature.Verb),
		sig("house", "", "", signature.Noun),
	}
	for _, s := range sigs {
		_, cached := r.Resolve(s)
		assert.False(t, cached)
	}
	for _, s := range sigs {
		_, cached := r.Resolve(s)
		assert.True(t, cached, s.Key())
	}

	assert.Equal(t, int64(3), cache.Stats().SynthesisAttempts)
	assert.Equal(t, 3, cache.WorkingSetSize())
}
