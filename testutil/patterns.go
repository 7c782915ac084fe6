package testutil

import (
	"fmt"
	"math/rand"

	"github.com/comploplo/canopy-sub003/pattern"
	"github.com/comploplo/canopy-sub003/patternindex"
	"github.com/comploplo/canopy-sub003/signature"
)

// commonVerbs head the synthetic vocabulary so demo output stays readable.
var commonVerbs = []string{
	"be", "have", "say", "go", "get", "make", "know", "think", "take", "see",
	"come", "want", "look", "use", "find", "give", "tell", "work", "call", "try",
	"ask", "need", "feel", "become", "leave", "put", "mean", "keep", "let", "begin",
	"run", "walk", "eat", "build", "send", "break", "open", "hear", "write", "read",
}

var shapes = [][]pattern.Dependency{
	{{Relation: pattern.NominalSubject, Role: "agent"}, {Relation: pattern.Object, Role: "patient"}},
	{{Relation: pattern.NominalSubject, Role: "agent"}},
	{{Relation: pattern.NominalSubject, Role: "agent"}, {Relation: pattern.Object, Role: "patient"},
		{Relation: pattern.IndirectObject, Role: "recipient"}},
	{{Relation: pattern.NominalSubject, Role: "agent"}, {Relation: pattern.Oblique, Role: "oblique"}},
	{{Relation: pattern.NominalSubject, Role: "agent"}, {Relation: pattern.ClausalComplement, Role: "complement"}},
}

// Lemma returns the verb lemma of rank i in the synthetic vocabulary.
func Lemma(i int) string {
	if i < len(commonVerbs) {
		return commonVerbs[i]
	}
	return fmt.Sprintf("verb%05d", i)
}

// Pattern builds an indexed pattern for lemma with the given frequency.
func Pattern(lemma string, frequency uint32) pattern.DependencyPattern {
	shape := shapes[len(lemma)%len(shapes)]
	return pattern.New(lemma, shape, patternindex.ConfidenceForFrequency(frequency), frequency, pattern.Indexed())
}

// ZipfEntries returns n verb-keyed patterns ranked by a Zipfian frequency
// (top frequency 10000, falling as 1/rank).
func ZipfEntries(n int) []patternindex.Entry {
	entries := make([]patternindex.Entry, n)
	for i := range entries {
		lemma := Lemma(i)
		freq := uint32(max(1, 10000/(i+1)))
		entries[i] = patternindex.Entry{
			Key:     signature.Key(lemma, "", "", signature.Verb),
			Pattern: Pattern(lemma, freq),
		}
	}
	return entries
}

// ZipfIndex builds an index from ZipfEntries(n).
func ZipfIndex(n int) *patternindex.Index {
	return patternindex.FromEntries(patternindex.NewMetadata("synthetic"), ZipfEntries(n))
}

// VerbSignature is the lemma-only verb signature for lemma.
func VerbSignature(lemma string) signature.Signature {
	return signature.Simple(lemma, signature.Verb)
}

// ZipfSampler draws vocabulary ranks with a Zipfian distribution.
type ZipfSampler struct {
	zipf *rand.Zipf
	n    int
}

// NewZipfSampler samples ranks in [0, n) with exponent s (> 1). The same
// seed always yields the same sequence.
func NewZipfSampler(seed int64, s float64, n int) *ZipfSampler {
	if s <= 1 {
		s = 1.1
	}
	r := rand.New(rand.NewSource(seed))
	return &ZipfSampler{zipf: rand.NewZipf(r, s, 1, uint64(max(n, 1)-1)), n: n}
}

// Next returns the next rank.
func (z *ZipfSampler) Next() int {
	return int(z.zipf.Uint64())
}

// NextSignature returns the signature of the next sampled lemma.
func (z *ZipfSampler) NextSignature() signature.Signature {
	return VerbSignature(Lemma(z.Next()))
}
