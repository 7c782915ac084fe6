package synth

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comploplo/canopy-sub003/errors"
	"github.com/comploplo/canopy-sub003/pattern"
	"github.com/comploplo/canopy-sub003/signature"
)

func sig(lemma, vn, fn string, pos signature.PosCategory) signature.Signature {
	return signature.New(lemma, vn, fn, pos, signature.LemmaSimple, 0.9)
}

func TestSynthesizePrecedence(t *testing.T) {
	s := NewSynthesizer(nil, false)

	tests := []struct {
		name       string
		sig        signature.Signature
		confidence float64
		source     pattern.Source
		deps       int
	}{
		{"verbnet class", sig("run", "run-51.3.2", "", signature.Verb), VerbNetConfidence, pattern.FromVerbNet("run-51.3.2"), 2},
		{"verbnet beats framenet", sig("give", "give-13.1", "Giving", signature.Verb), VerbNetConfidence, pattern.FromVerbNet("give-13.1"), 3},
		{"unknown class falls to frame", sig("drift", "drift-99.9", "Motion", signature.Verb), FrameNetConfidence, pattern.FromFrameNet("Motion"), 2},
		{"framenet frame", sig("change", "", "Undergo_change", signature.Verb), FrameNetConfidence, pattern.FromFrameNet("Undergo_change"), 1},
		{"verb default", sig("walk", "", "", signature.Verb), DefaultConfidence, pattern.Default(), 2},
		{"noun default", sig("house", "", "", signature.Noun), DefaultConfidence, pattern.Default(), 2},
		{"adjective default", sig("quick", "", "", signature.Adjective), DefaultConfidence, pattern.Default(), 1},
		{"adverb default is empty", sig("fast", "", "", signature.Adverb), DefaultConfidence, pattern.Default(), 0},
		{"other default is empty", sig("the", "", "", signature.Other), DefaultConfidence, pattern.Default(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := s.Synthesize(tt.sig)

			assert.Equal(t, tt.sig.Lemma(), p.VerbLemma)
			assert.InDelta(t, tt.confidence, p.Confidence, 1e-9)
			assert.Equal(t, tt.source, p.Source)
			assert.Len(t, p.Dependencies, tt.deps)
			assert.Zero(t, p.Frequency)
		})
	}
}

func TestSynthesizeVerbNetArguments(t *testing.T) {
	p := NewSynthesizer(nil, false).Synthesize(sig("give", "give-13.1", "", signature.Verb))

	want := []pattern.Dependency{
		{Relation: pattern.NominalSubject, Role: "agent"},
		{Relation: pattern.Object, Role: "theme"},
		{Relation: pattern.IndirectObject, Role: "recipient"},
	}
	if diff := cmp.Diff(want, p.Dependencies); diff != "" {
		t.Errorf("dependencies mismatch (-want +got):\n%s", diff)
	}
}

func TestSynthesizeReturnsCopies(t *testing.T) {
	s := NewSynthesizer(nil, false)
	in := sig("run", "run-51.3.2", "", signature.Verb)

	first := s.Synthesize(in)
	first.Dependencies[0].Role = "mutated"

	assert.Equal(t, "agent", s.Synthesize(in).Dependencies[0].Role)
}

func TestSynthesizeWithoutDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	tables := DefaultTables()
	delete(tables.Defaults, signature.Other.String())
	s, err := NewSynthesizerWithTables(tables, logger, false)
	require.NoError(t, err)

	p := s.Synthesize(sig("xyzzy", "", "", signature.Other))

	assert.InDelta(t, EmptyConfidence, p.Confidence, 1e-9)
	assert.Empty(t, p.Dependencies)
	assert.Equal(t, pattern.Default(), p.Source)
	assert.Contains(t, buf.String(), "no mapping for signature")
}

func TestSynthesizeBatch(t *testing.T) {
	s := NewSynthesizer(nil, false)

	out := s.SynthesizeBatch([]signature.Signature{
		sig("run", "run-51.3.2", "", signature.Verb),
		sig("walk", "", "", signature.Verb),
	})

	require.Len(t, out, 2)
	assert.Equal(t, pattern.SourceVerbNet, out[0].Source.Kind)
	assert.Equal(t, pattern.SourceDefault, out[1].Source.Kind)
	assert.Greater(t, out[0].Confidence, out[1].Confidence)
	assert.Empty(t, s.SynthesizeBatch(nil))
}

func TestSupportQueries(t *testing.T) {
	s := NewSynthesizer(nil, false)

	assert.True(t, s.SupportsVerbNetClass("give-13.1"))
	assert.False(t, s.SupportsVerbNetClass("unknown-1.1"))
	assert.True(t, s.SupportsFrameNetFrame("Giving"))
	assert.False(t, s.SupportsFrameNetFrame("giving"))

	classes := s.VerbNetClasses()
	frames := s.FrameNetFrames()
	assert.GreaterOrEqual(t, len(classes), 10)
	assert.GreaterOrEqual(t, len(frames), 10)
	assert.IsIncreasing(t, classes)
	assert.IsIncreasing(t, frames)
}

func TestVerboseLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	NewSynthesizer(logger, true).Synthesize(sig("see", "see-30.1", "", signature.Verb))

	assert.Contains(t, buf.String(), "synthesized pattern")
	assert.Contains(t, buf.String(), "via=verbnet")
}

func TestTablesValidate(t *testing.T) {
	require.NoError(t, DefaultTables().Validate())

	bad := Tables{VerbNet: map[string][]pattern.Dependency{"x-1": {{Relation: "nsubj"}}}}
	err := bad.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	badPOS := Tables{Defaults: map[string][]pattern.Dependency{"Pronoun": nil}}
	assert.Error(t, badPOS.Validate())

	_, err = NewSynthesizerWithTables(bad, nil, false)
	assert.Error(t, err)
}

func TestDecodeAndMergeTables(t *testing.T) {
	doc := `
verbnet:
  put-9.1:
    - {relation: nsubj, role: agent}
    - {relation: obj, role: theme}
    - {relation: obl, role: destination}
framenet:
  Placing:
    - {relation: nsubj, role: agent}
`
	extra, err := DecodeTables(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Len(t, extra.VerbNet["put-9.1"], 3)

	s, err := NewSynthesizerWithTables(DefaultTables().Merge(extra), nil, false)
	require.NoError(t, err)
	assert.True(t, s.SupportsVerbNetClass("put-9.1"))
	assert.True(t, s.SupportsVerbNetClass("run-51.3.2"))
	assert.True(t, s.SupportsFrameNetFrame("Placing"))

	p := s.Synthesize(sig("put", "put-9.1", "", signature.Verb))
	role, ok := p.Argument(pattern.Oblique)
	require.True(t, ok)
	assert.Equal(t, "destination", role)
}

func TestLoadTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("framenet:\n  Placing:\n    - {relation: nsubj, role: agent}\n"), 0o600))

	tables, err := LoadTables(path)
	require.NoError(t, err)
	assert.Contains(t, tables.FrameNet, "Placing")

	_, err = LoadTables(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = DecodeTables(strings.NewReader("verbnet: [not, a, map]"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}
