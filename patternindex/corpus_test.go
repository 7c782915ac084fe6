package patternindex

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comploplo/canopy-sub003/errors"
	"github.com/comploplo/canopy-sub003/pattern"
)

const sampleCorpus = `
sentences:
  - id: s1
    tokens:
      - {id: 1, form: cats, lemma: cat, upos: NOUN, head: 2, deprel: nsubj}
      - {id: 2, form: see, lemma: see, upos: VERB, head: 0, deprel: root}
      - {id: 3, form: dogs, lemma: dog, upos: NOUN, head: 2, deprel: obj}
  - id: s2
    root_verb: 2
    tokens:
      - {id: 1, lemma: she, upos: PRON, head: 2, deprel: nsubj}
      - {id: 2, lemma: sleep, upos: VERB, head: 0, deprel: root}
`

func TestDecodeSentences(t *testing.T) {
	sentences, err := DecodeSentences(strings.NewReader(sampleCorpus), FormatYAML)
	require.NoError(t, err)
	require.Len(t, sentences, 2)

	root, ok := sentences[0].Root()
	require.True(t, ok)
	assert.Equal(t, "see", root.Lemma)
	assert.Equal(t, pattern.Object, sentences[0].Tokens[2].Deprel)
	assert.Equal(t, 2, sentences[1].RootVerb)

	empty, err := DecodeSentences(strings.NewReader(""), FormatYAML)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDecodeSentencesRejectsBadInput(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		input  string
		want   error
	}{
		{"broken json", FormatJSON, `{"sentences": [`, errors.ErrParsingFailed},
		{"zero token id", FormatJSON, `{"sentences":[{"id":"x","tokens":[{"id":0,"lemma":"go","head":0}]}]}`, errors.ErrDataCorrupted},
		{"dangling head", FormatJSON, `{"sentences":[{"id":"x","tokens":[{"id":1,"lemma":"go","head":4}]}]}`, errors.ErrDataCorrupted},
		{"unknown format", Format("conllu"), "", errors.ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSentences(strings.NewReader(tt.input), tt.format)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadSentencesFeedsIndexer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleCorpus), 0o600))

	sentences, err := LoadSentences(path)
	require.NoError(t, err)

	x := NewIndexer(IndexerConfig{}, nil)
	for _, s := range sentences {
		x.AddSentence(s)
	}
	idx := x.Build()
	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, 1.0, x.Coverage(2))

	_, err = LoadSentences(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, errors.ErrIndexUnavailable)

	_, err = LoadSentences("corpus.conllu")
	assert.True(t, errors.IsInvalid(err))
}
