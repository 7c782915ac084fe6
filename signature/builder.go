package signature

import (
	"log/slog"
	"strings"
)

var (
	knownVerbs = map[string]struct{}{
		"run": {}, "walk": {}, "give": {}, "take": {}, "make": {}, "go": {}, "come": {},
		"see": {}, "know": {}, "think": {}, "say": {}, "tell": {}, "ask": {}, "work": {},
		"play": {}, "live": {}, "move": {}, "put": {}, "get": {}, "have": {},
	}
	verbSuffixes = []string{"ing", "ed", "ize", "ise", "ate", "fy"}
	nounSuffixes = []string{"tion", "ness", "ment"}
	verbFrames   = []string{"Motion", "Action", "Change"}
)

// Input carries the upstream analysis for one word. Empty strings mean the
// corresponding resource produced nothing.
type Input struct {
	Lemma         string
	VerbNetClass  string
	FrameNetFrame string
	POSHint       string // UPOS ("VERB") or Penn ("VBZ") tag
	Source        LemmaSource
	Confidence    float64
}

// Builder turns upstream analyses into signatures.
type Builder struct {
	logger  *slog.Logger
	verbose bool
}

// NewBuilder creates a Builder. With verbose set, every built signature is
// logged at debug level.
func NewBuilder(logger *slog.Logger, verbose bool) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{logger: logger, verbose: verbose}
}

// Build never fails. An empty lemma still yields a usable key.
func (b *Builder) Build(in Input) Signature {
	pos := InferPOS(in.Lemma, in.POSHint, in.VerbNetClass, in.FrameNetFrame)
	sig := New(in.Lemma, in.VerbNetClass, in.FrameNetFrame, pos, in.Source, in.Confidence)
	if b.verbose {
		b.logger.Debug("built signature",
			"lemma", in.Lemma,
			"verbnet", in.VerbNetClass,
			"framenet", in.FrameNetFrame,
			"pos", pos.String(),
			"hash", sig.Hash())
	}
	return sig
}

// BuildSimplified builds a signature for treebank data that has only a gold
// lemma and a POS tag.
func (b *Builder) BuildSimplified(lemma, posHint string) Signature {
	return b.Build(Input{Lemma: lemma, POSHint: posHint, Source: LemmaGold, Confidence: 1.0})
}

// Variants is Signature.Variants with debug logging.
func (b *Builder) Variants(s Signature) []Signature {
	v := s.Variants()
	if b.verbose {
		b.logger.Debug("generated signature variants", "lemma", s.Lemma(), "count", len(v))
	}
	return v
}

// InferPOS picks a coarse POS. An explicit tag wins; otherwise a VerbNet
// class, a motion/action/change frame, or verb morphology means Verb, "-ly"
// means Adverb, "-tion"/"-ness"/"-ment" mean Noun, and anything else is Other.
func InferPOS(lemma, hint, verbNet, frameNet string) PosCategory {
	if pos, ok := posFromTag(hint); ok {
		return pos
	}
	if verbNet != "" {
		return Verb
	}
	for _, f := range verbFrames {
		if strings.Contains(frameNet, f) {
			return Verb
		}
	}

	lower := strings.ToLower(lemma)
	switch {
	case isLikelyVerb(lower):
		return Verb
	case strings.HasSuffix(lower, "ly"):
		return Adverb
	case hasAnySuffix(lower, nounSuffixes):
		return Noun
	default:
		return Other
	}
}

func posFromTag(tag string) (PosCategory, bool) {
	tag = strings.ToUpper(strings.TrimSpace(tag))
	switch {
	case tag == "":
		return Other, false
	case tag == "VERB" || strings.HasPrefix(tag, "VB"):
		return Verb, true
	case tag == "NOUN" || strings.HasPrefix(tag, "NN"):
		return Noun, true
	case tag == "ADJ" || strings.HasPrefix(tag, "JJ"):
		return Adjective, true
	case tag == "ADV" || strings.HasPrefix(tag, "RB"):
		return Adverb, true
	default:
		return Other, false
	}
}

func isLikelyVerb(lemma string) bool {
	if _, ok := knownVerbs[lemma]; ok {
		return true
	}
	return hasAnySuffix(lemma, verbSuffixes)
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}
