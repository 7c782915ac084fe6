package patternindex

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/comploplo/canopy-sub003/pattern"
	"github.com/comploplo/canopy-sub003/signature"
)

// Token is one word of a parsed sentence. IDs are 1-based; Head 0 marks the
// sentence root.
type Token struct {
	ID     int              `json:"id" yaml:"id"`
	Form   string           `json:"form,omitempty" yaml:"form,omitempty"`
	Lemma  string           `json:"lemma" yaml:"lemma"`
	UPOS   string           `json:"upos" yaml:"upos"`
	Head   int              `json:"head" yaml:"head"`
	Deprel pattern.Relation `json:"deprel" yaml:"deprel"`
}

// Sentence is a dependency-parsed sentence. RootVerb is the token ID of the
// root verb, or 0 to locate it from the tokens.
type Sentence struct {
	ID       string  `json:"id" yaml:"id"`
	RootVerb int     `json:"root_verb,omitempty" yaml:"root_verb,omitempty"`
	Tokens   []Token `json:"tokens" yaml:"tokens"`
}

// Root returns the root verb token.
func (s Sentence) Root() (Token, bool) {
	for _, t := range s.Tokens {
		if s.RootVerb != 0 {
			if t.ID == s.RootVerb {
				return t, true
			}
			continue
		}
		if t.Head == 0 && t.Deprel == pattern.Root && t.UPOS == "VERB" {
			return t, true
		}
	}
	return Token{}, false
}

var argumentRoles = map[pattern.Relation]string{
	pattern.NominalSubject:     "agent",
	pattern.Object:             "patient",
	pattern.IndirectObject:     "recipient",
	pattern.Oblique:            "oblique",
	pattern.AdverbialModifier:  "modifier",
	pattern.ClausalComplement:  "complement",
	pattern.XClausalComplement: "xcomplement",
}

var skippedUPOS = map[string]bool{"PUNCT": true, "DET": true, "AUX": true}

// ExtractDependencies returns the argument dependencies of the root verb, in
// token order.
func ExtractDependencies(s Sentence) []pattern.Dependency {
	root, ok := s.Root()
	if !ok {
		return nil
	}

	var deps []pattern.Dependency
	for _, t := range s.Tokens {
		if t.Head != root.ID || t.ID == root.ID || skippedUPOS[t.UPOS] {
			continue
		}
		role, ok := argumentRoles[t.Deprel]
		if !ok {
			continue
		}
		deps = append(deps, pattern.Dependency{Relation: t.Deprel, Role: role})
	}
	return deps
}

// ConfidenceForFrequency maps an observation count to a pattern confidence.
func ConfidenceForFrequency(freq uint32) float64 {
	switch {
	case freq <= 1:
		return 0.3
	case freq <= 5:
		return 0.5
	case freq <= 20:
		return 0.7
	case freq <= 100:
		return 0.8
	default:
		return 0.9
	}
}

// IndexerConfig configures an Indexer.
type IndexerConfig struct {
	// MinFrequency drops patterns observed fewer times.
	MinFrequency uint32 `json:"min_frequency" yaml:"min_frequency"`
	// Filter restricts which verb lemmas are indexed.
	Filter *Filter `json:"-" yaml:"-"`
	// Verbose logs skipped patterns at debug level.
	Verbose bool `json:"verbose" yaml:"verbose"`
}

type observed struct {
	lemma string
	deps  []pattern.Dependency
	count uint32
}

// Indexer accumulates dependency patterns from sentences. It is not safe for
// concurrent use.
type Indexer struct {
	cfg       IndexerConfig
	logger    *slog.Logger
	sentences int
	instances uint32
	sources   []string
	counts    map[string]*observed
}

// NewIndexer creates an indexer. A nil logger uses slog.Default.
func NewIndexer(cfg IndexerConfig, logger *slog.Logger) *Indexer {
	if cfg.MinFrequency == 0 {
		cfg.MinFrequency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		cfg:    cfg,
		logger: logger.With("component", "indexer"),
		counts: make(map[string]*observed),
	}
}

// AddSource records a corpus file name in the resulting metadata.
func (x *Indexer) AddSource(name string) {
	x.sources = append(x.sources, name)
}

// AddSentence counts the root verb pattern of s.
func (x *Indexer) AddSentence(s Sentence) {
	x.sentences++

	root, ok := s.Root()
	if !ok || root.Lemma == "" || !x.cfg.Filter.Match(root.Lemma) {
		return
	}
	deps := ExtractDependencies(s)
	if len(deps) == 0 {
		return
	}

	x.instances++
	shape := patternShape(root.Lemma, deps)
	if o, ok := x.counts[shape]; ok {
		o.count++
		return
	}
	x.counts[shape] = &observed{lemma: root.Lemma, deps: deps, count: 1}
}

func patternShape(lemma string, deps []pattern.Dependency) string {
	var b strings.Builder
	b.WriteString(lemma)
	for _, d := range deps {
		b.WriteByte('|')
		b.WriteString(string(d.Relation))
	}
	return b.String()
}

// Ranked returns every observed pattern, most frequent first.
func (x *Indexer) Ranked() []pattern.DependencyPattern {
	out := make([]pattern.DependencyPattern, 0, len(x.counts))
	for _, o := range x.counts {
		out = append(out, pattern.New(o.lemma, o.deps, ConfidenceForFrequency(o.count), o.count, pattern.Indexed()))
	}
	slices.SortFunc(out, func(a, b pattern.DependencyPattern) int {
		if a.Frequency != b.Frequency {
			if a.Frequency > b.Frequency {
				return -1
			}
			return 1
		}
		return strings.Compare(patternShape(a.VerbLemma, a.Dependencies), patternShape(b.VerbLemma, b.Dependencies))
	})
	return out
}

// Coverage returns the share of pattern instances covered by the n most
// frequent patterns, or 0 when nothing has been indexed.
func (x *Indexer) Coverage(n int) float64 {
	if x.instances == 0 || n <= 0 {
		return 0
	}
	var covered uint32
	for i, p := range x.Ranked() {
		if i == n {
			break
		}
		covered += p.Frequency
	}
	return float64(covered) / float64(x.instances)
}

// Instances returns the number of sentences that contributed a pattern.
func (x *Indexer) Instances() uint32 { return x.instances }

// Build produces an index keyed by the lemma-only signature key. When a verb
// has several argument shapes, the most frequent one is kept.
func (x *Indexer) Build() *Index {
	meta := NewMetadata(slices.Clone(x.sources)...)
	meta.TotalSentences = x.sentences
	idx := New(meta)

	var skipped int
	for _, p := range x.Ranked() {
		if p.Frequency < x.cfg.MinFrequency {
			skipped++
			if x.cfg.Verbose {
				x.logger.Debug("skipping low-frequency pattern",
					"lemma", p.VerbLemma, "frequency", p.Frequency)
			}
			continue
		}
		idx.Add(signature.Key(p.VerbLemma, "", "", signature.Verb), p)
	}

	x.logger.Info("built pattern index",
		"patterns", idx.Len(),
		"sentences", x.sentences,
		"instances", x.instances,
		"skipped", skipped)
	return idx
}
