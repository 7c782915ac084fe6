package patternindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comploplo/canopy-sub003/pattern"
)

// "The cat sees the dog ."
func seeSentence(id string) Sentence {
	return Sentence{
		ID: id,
		Tokens: []Token{
			{ID: 1, Form: "The", Lemma: "the", UPOS: "DET", Head: 2, Deprel: pattern.Determiner},
			{ID: 2, Form: "cat", Lemma: "cat", UPOS: "NOUN", Head: 3, Deprel: pattern.NominalSubject},
			{ID: 3, Form: "sees", Lemma: "see", UPOS: "VERB", Head: 0, Deprel: pattern.Root},
			{ID: 4, Form: "the", Lemma: "the", UPOS: "DET", Head: 5, Deprel: pattern.Determiner},
			{ID: 5, Form: "dog", Lemma: "dog", UPOS: "NOUN", Head: 3, Deprel: pattern.Object},
			{ID: 6, Form: ".", Lemma: ".", UPOS: "PUNCT", Head: 3, Deprel: pattern.Punctuation},
		},
	}
}

// "She gave him a book quickly"
func giveSentence() Sentence {
	return Sentence{
		ID:       "give-1",
		RootVerb: 2,
		Tokens: []Token{
			{ID: 1, Lemma: "she", UPOS: "PRON", Head: 2, Deprel: pattern.NominalSubject},
			{ID: 2, Lemma: "give", UPOS: "VERB", Head: 0, Deprel: pattern.Root},
			{ID: 3, Lemma: "he", UPOS: "PRON", Head: 2, Deprel: pattern.IndirectObject},
			{ID: 4, Lemma: "a", UPOS: "DET", Head: 5, Deprel: pattern.Determiner},
			{ID: 5, Lemma: "book", UPOS: "NOUN", Head: 2, Deprel: pattern.Object},
			{ID: 6, Lemma: "quickly", UPOS: "ADV", Head: 2, Deprel: pattern.AdverbialModifier},
			{ID: 7, Lemma: "and", UPOS: "CCONJ", Head: 2, Deprel: pattern.CoordinatingConjunction},
		},
	}
}

func TestExtractDependencies(t *testing.T) {
	deps := ExtractDependencies(giveSentence())

	assert.Equal(t, []pattern.Dependency{
		{Relation: pattern.NominalSubject, Role: "agent"},
		{Relation: pattern.IndirectObject, Role: "recipient"},
		{Relation: pattern.Object, Role: "patient"},
		{Relation: pattern.AdverbialModifier, Role: "modifier"},
	}, deps)
}

func TestExtractDependenciesSkipsFunctionWords(t *testing.T) {
	s := seeSentence("s1")
	// An auxiliary attached with an argument relation is still skipped.
	s.Tokens = append(s.Tokens, Token{ID: 7, Lemma: "do", UPOS: "AUX", Head: 3, Deprel: pattern.Object})

	deps := ExtractDependencies(s)
	require.Len(t, deps, 2)
	assert.Equal(t, pattern.NominalSubject, deps[0].Relation)
	assert.Equal(t, pattern.Object, deps[1].Relation)
}

func TestExtractDependenciesWithoutRootVerb(t *testing.T) {
	s := Sentence{Tokens: []Token{
		{ID: 1, Lemma: "dog", UPOS: "NOUN", Head: 0, Deprel: pattern.Root},
		{ID: 2, Lemma: "big", UPOS: "ADJ", Head: 1, Deprel: pattern.AdjectivalModifier},
	}}
	assert.Empty(t, ExtractDependencies(s))

	s.RootVerb = 9
	_, ok := s.Root()
	assert.False(t, ok)
}

func TestConfidenceForFrequency(t *testing.T) {
	tests := map[uint32]float64{
		0: 0.3, 1: 0.3, 2: 0.5, 5: 0.5, 6: 0.7, 20: 0.7, 21: 0.8, 50: 0.8, 100: 0.8, 101: 0.9, 200: 0.9,
	}
	for freq, want := range tests {
		assert.Equal(t, want, ConfidenceForFrequency(freq), "frequency %d", freq)
	}
}

func TestIndexerBuild(t *testing.T) {
	x := NewIndexer(IndexerConfig{MinFrequency: 2}, nil)
	x.AddSource("train.conllu")

	for i := 0; i < 3; i++ {
		x.AddSentence(seeSentence("see"))
	}
	x.AddSentence(giveSentence())
	x.AddSentence(Sentence{ID: "empty"})

	idx := x.Build()

	assert.Equal(t, 1, idx.Len(), "give seen once is below the threshold")
	p, ok := idx.Get("see|pos:verb")
	require.True(t, ok)
	assert.Equal(t, uint32(3), p.Frequency)
	assert.Equal(t, 0.5, p.Confidence)
	assert.Equal(t, pattern.Indexed(), p.Source)

	meta := idx.Metadata()
	assert.Equal(t, 5, meta.TotalSentences)
	assert.Equal(t, []string{"train.conllu"}, meta.SourceFiles)
	assert.Equal(t, uint32(4), x.Instances())
}

func TestIndexerKeepsMostFrequentShapePerVerb(t *testing.T) {
	x := NewIndexer(IndexerConfig{}, nil)

	intransitive := Sentence{Tokens: []Token{
		{ID: 1, Lemma: "cat", UPOS: "NOUN", Head: 2, Deprel: pattern.NominalSubject},
		{ID: 2, Lemma: "see", UPOS: "VERB", Head: 0, Deprel: pattern.Root},
	}}
	x.AddSentence(intransitive)
	x.AddSentence(seeSentence("a"))
	x.AddSentence(seeSentence("b"))

	require.Len(t, x.Ranked(), 2)
	p, ok := x.Build().Get("see|pos:verb")
	require.True(t, ok)
	assert.Len(t, p.Dependencies, 2)
}

func TestIndexerFilter(t *testing.T) {
	f, err := NewFilter(nil, []string{"see"})
	require.NoError(t, err)

	x := NewIndexer(IndexerConfig{Filter: f}, nil)
	x.AddSentence(seeSentence("s"))
	x.AddSentence(giveSentence())

	idx := x.Build()
	assert.Equal(t, 1, idx.Len())
	_, ok := idx.Get("give|pos:verb")
	assert.True(t, ok)
}

func TestCoverage(t *testing.T) {
	x := NewIndexer(IndexerConfig{}, nil)
	assert.Zero(t, x.Coverage(10))

	for i := 0; i < 3; i++ {
		x.AddSentence(seeSentence("s"))
	}
	x.AddSentence(giveSentence())

	assert.InDelta(t, 0.75, x.Coverage(1), 1e-9)
	assert.InDelta(t, 1.0, x.Coverage(2), 1e-9)
	assert.InDelta(t, 1.0, x.Coverage(100), 1e-9)
	assert.Zero(t, x.Coverage(0))
}
