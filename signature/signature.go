// Package signature derives compact semantic identities for words: the lemma
// plus whatever VerbNet class and FrameNet frame upstream engines resolved,
// and a coarse part of speech. Signatures are the keys of the pattern cache.
package signature

import (
	"hash/fnv"
	"strings"
)

// PosCategory is a coarse part-of-speech class.
type PosCategory uint8

const (
	Other PosCategory = iota
	Verb
	Noun
	Adjective
	Adverb
)

func (p PosCategory) String() string {
	switch p {
	case Verb:
		return "Verb"
	case Noun:
		return "Noun"
	case Adjective:
		return "Adjective"
	case Adverb:
		return "Adverb"
	default:
		return "Other"
	}
}

// keyToken is the POS segment of a lookup key.
func (p PosCategory) keyToken() string {
	switch p {
	case Verb:
		return "verb"
	case Noun:
		return "noun"
	case Adjective:
		return "adj"
	case Adverb:
		return "adv"
	default:
		return "other"
	}
}

// LemmaSource records how the lemma was obtained. It is informational and
// never part of signature identity.
type LemmaSource uint8

const (
	// LemmaSimple comes from the rule-based lemmatizer.
	LemmaSimple LemmaSource = iota
	// LemmaGold is a gold lemma from an annotated treebank.
	LemmaGold
	// LemmaSynthesized was produced by a fallback path.
	LemmaSynthesized
	// LemmaUnknown has no recorded provenance.
	LemmaUnknown
)

func (s LemmaSource) String() string {
	switch s {
	case LemmaGold:
		return "gold"
	case LemmaSynthesized:
		return "synthesized"
	case LemmaUnknown:
		return "unknown"
	default:
		return "simple"
	}
}

// Signature identifies a lemma in its resolved semantic context. The zero
// value is not useful; build signatures with New or a Builder. Fields are
// read through accessors so the precomputed hash always matches them.
type Signature struct {
	lemma      string
	verbNet    string
	frameNet   string
	pos        PosCategory
	source     LemmaSource
	confidence float64
	hash       uint64
	lookupKey  string
}

// New creates a signature. Empty verbNet or frameNet means the class is absent.
func New(lemma, verbNet, frameNet string, pos PosCategory, source LemmaSource, confidence float64) Signature {
	key := Key(lemma, verbNet, frameNet, pos)
	return Signature{
		lemma:      lemma,
		verbNet:    verbNet,
		frameNet:   frameNet,
		pos:        pos,
		source:     source,
		confidence: confidence,
		hash:       HashKey(key),
		lookupKey:  key,
	}
}

// Simple creates a lemma-only signature with full confidence.
func Simple(lemma string, pos PosCategory) Signature {
	return New(lemma, "", "", pos, LemmaSimple, 1.0)
}

// HashKey is the 64-bit FNV-1a hash of a lookup key. A signature's Hash is
// HashKey of its Key, so keyed index entries and signatures route alike.
func HashKey(key string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return h.Sum64()
}

// Key builds the lookup key shared by every cache tier and pattern index.
// It carries the full identity: "lemma[|vn:<class>][|fn:<frame>]|pos:<pos>",
// for example "give|vn:give-13.1|fn:Giving|pos:verb" or "walk|pos:noun".
func Key(lemma, verbNet, frameNet string, pos PosCategory) string {
	tok := pos.keyToken()
	var b strings.Builder
	b.Grow(len(lemma) + len(verbNet) + len(frameNet) + len(tok) + 13)
	b.WriteString(lemma)
	if verbNet != "" {
		b.WriteString("|vn:")
		b.WriteString(verbNet)
	}
	if frameNet != "" {
		b.WriteString("|fn:")
		b.WriteString(frameNet)
	}
	b.WriteString("|pos:")
	b.WriteString(tok)
	return b.String()
}

// Lemma returns the lemma.
func (s Signature) Lemma() string { return s.lemma }

// VerbNetClass returns the VerbNet class id, or "" when absent.
func (s Signature) VerbNetClass() string { return s.verbNet }

// FrameNetFrame returns the FrameNet frame name, or "" when absent.
func (s Signature) FrameNetFrame() string { return s.frameNet }

func (s Signature) POS() PosCategory { return s.pos }

func (s Signature) LemmaSource() LemmaSource { return s.source }

func (s Signature) LemmaConfidence() float64 { return s.confidence }

func (s Signature) HasVerbNet() bool { return s.verbNet != "" }

func (s Signature) HasFrameNet() bool { return s.frameNet != "" }

// Hash returns the precomputed HashKey of the lookup key.
func (s Signature) Hash() uint64 { return s.hash }

// Key returns the cache lookup key. For lemmas without '|', two signatures
// are Equal exactly when their keys are.
func (s Signature) Key() string { return s.lookupKey }

// Equal compares identity: lemma, classes, POS and hash. Lemma confidence
// and lemma source are ignored.
func (s Signature) Equal(o Signature) bool {
	return s.hash == o.hash &&
		s.lemma == o.lemma &&
		s.verbNet == o.verbNet &&
		s.frameNet == o.frameNet &&
		s.pos == o.pos
}

// IsCompatible reports whether two signatures plausibly describe the same
// predicate: same lemma, or a shared VerbNet class, or a shared FrameNet frame.
func IsCompatible(a, b Signature) bool {
	if a.lemma == b.lemma {
		return true
	}
	if a.verbNet != "" && a.verbNet == b.verbNet {
		return true
	}
	return a.frameNet != "" && a.frameNet == b.frameNet
}

// Priority ranks competing matches; higher is more specific.
func (s Signature) Priority() int {
	p := 1
	if s.verbNet != "" {
		p += 10
	}
	if s.frameNet != "" {
		p += 5
	}
	return p
}

// Variants returns s followed by progressively looser signatures: without
// the FrameNet frame, without the VerbNet class, and lemma plus POS only.
// Duplicates are kept; callers stop at the first match.
func (s Signature) Variants() []Signature {
	out := make([]Signature, 0, 4)
	out = append(out, s)
	if s.frameNet != "" {
		out = append(out, New(s.lemma, s.verbNet, "", s.pos, s.source, s.confidence))
	}
	if s.verbNet != "" {
		out = append(out, New(s.lemma, "", s.frameNet, s.pos, s.source, s.confidence))
	}
	return append(out, New(s.lemma, "", "", s.pos, s.source, s.confidence))
}

func (s Signature) String() string {
	return s.lookupKey
}
