package pattern

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func givePattern() DependencyPattern {
	return New("give", []Dependency{
		{Relation: NominalSubject, Role: "agent"},
		{Relation: Object, Role: "theme"},
		{Relation: IndirectObject, Role: "recipient"},
	}, 0.85, 120, Indexed())
}

func TestParseRelation(t *testing.T) {
	tests := []struct {
		in   string
		want Relation
	}{
		{"nsubj", NominalSubject},
		{"nsubj:pass", NominalSubject},
		{"obl:tmod", Oblique},
		{"acl:relcl", RelativeClause},
		{"acl", AdjectivalClause},
		{" obj ", Object},
		{"reparandum", Relation("reparandum")},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRelation(tt.in))
		})
	}

	assert.True(t, RelativeClause.Known())
	assert.False(t, Relation("reparandum").Known())
}

func TestThetaRoles(t *testing.T) {
	p := New("put", []Dependency{
		{Relation: NominalSubject, Role: "agent"},
		{Relation: AdverbialModifier, Role: "manner"},
		{Relation: Object, Role: "theme"},
		{Relation: Oblique, Role: "destination"},
	}, 0.7, 3, Indexed())

	assert.Equal(t, []ThetaRole{Agent, Patient, Location}, p.ThetaRoles())
	assert.Empty(t, New("rain", nil, 0.5, 1, Indexed()).ThetaRoles())
}

func TestArgumentLookup(t *testing.T) {
	p := givePattern()

	role, ok := p.Argument(IndirectObject)
	require.True(t, ok)
	assert.Equal(t, "recipient", role)

	assert.True(t, p.HasRelation(Object))
	assert.False(t, p.HasRelation(Oblique))
}

func TestWithConfidenceDoesNotAlias(t *testing.T) {
	orig := givePattern()
	lowered := orig.WithConfidence(orig.Confidence * 0.8)

	assert.InDelta(t, 0.68, lowered.Confidence, 1e-9)
	assert.Equal(t, 0.85, orig.Confidence)

	lowered.Dependencies[0].Role = "donor"
	assert.Equal(t, "agent", orig.Dependencies[0].Role)
}

func TestNewCopiesDependencies(t *testing.T) {
	deps := []Dependency{{Relation: NominalSubject, Role: "agent"}}
	p := New("run", deps, 0.9, 10, Indexed())
	deps[0].Role = "theme"

	assert.Equal(t, "agent", p.Dependencies[0].Role)
}

func TestEqual(t *testing.T) {
	a := givePattern()
	b := a.Clone()
	assert.True(t, a.Equal(b))

	b.Dependencies = append(b.Dependencies[:1:1], b.Dependencies[2], b.Dependencies[1])
	assert.False(t, a.Equal(b), "dependency order is part of equality")
}

func TestSource(t *testing.T) {
	assert.Equal(t, "indexed", Indexed().String())
	assert.Equal(t, "verbnet(give-13.1)", FromVerbNet("give-13.1").String())
	assert.Equal(t, "framenet(Giving)", FromFrameNet("Giving").String())
	assert.False(t, Indexed().Synthesized())
	assert.True(t, Default().Synthesized())
}

func TestJSONShape(t *testing.T) {
	p := New("give", []Dependency{{Relation: IndirectObject, Role: "recipient"}}, 0.7, 0, FromVerbNet("give-13.1"))

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"verb_lemma": "give",
		"dependencies": [{"relation": "iobj", "role": "recipient"}],
		"confidence": 0.7,
		"frequency": 0,
		"source": {"kind": "verbnet", "ref": "give-13.1"}
	}`, string(data))

	var back DependencyPattern
	require.NoError(t, json.Unmarshal(data, &back))
	if diff := cmp.Diff(p, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}
