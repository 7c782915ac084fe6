package synth

import (
	"log/slog"
	"slices"

	"github.com/comploplo/canopy-sub003/pattern"
	"github.com/comploplo/canopy-sub003/signature"
)

// Confidence assigned to each kind of synthesized pattern.
const (
	VerbNetConfidence  = 0.7
	FrameNetConfidence = 0.6
	DefaultConfidence  = 0.4
	EmptyConfidence    = 0.1
)

// Synthesizer builds dependency patterns for signatures the cache and index
// have never seen. It is read-only after construction and safe for
// concurrent use.
type Synthesizer struct {
	verbNet  map[string][]pattern.Dependency
	frameNet map[string][]pattern.Dependency
	defaults map[signature.PosCategory][]pattern.Dependency
	logger   *slog.Logger
	verbose  bool
}

// NewSynthesizer creates a Synthesizer over the built-in tables.
func NewSynthesizer(logger *slog.Logger, verbose bool) *Synthesizer {
	s, _ := NewSynthesizerWithTables(DefaultTables(), logger, verbose)
	return s
}

// NewSynthesizerWithTables creates a Synthesizer over t, which must pass
// Validate. POS names missing from t.Defaults get no default pattern.
func NewSynthesizerWithTables(t Tables, logger *slog.Logger, verbose bool) (*Synthesizer, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Synthesizer{
		verbNet:  make(map[string][]pattern.Dependency, len(t.VerbNet)),
		frameNet: make(map[string][]pattern.Dependency, len(t.FrameNet)),
		defaults: make(map[signature.PosCategory][]pattern.Dependency, len(t.Defaults)),
		logger:   logger.With("component", "synth"),
		verbose:  verbose,
	}
	for k, v := range t.VerbNet {
		s.verbNet[k] = slices.Clone(v)
	}
	for k, v := range t.FrameNet {
		s.frameNet[k] = slices.Clone(v)
	}
	for k, v := range t.Defaults {
		pos, _ := parsePOS(k)
		s.defaults[pos] = slices.Clone(v)
	}
	return s, nil
}

// Synthesize returns the best pattern the tables can produce for sig. A
// known VerbNet class wins over a known FrameNet frame, which wins over the
// POS default. Synthesized patterns always have frequency 0.
func (s *Synthesizer) Synthesize(sig signature.Signature) pattern.DependencyPattern {
	lemma := sig.Lemma()

	if class := sig.VerbNetClass(); class != "" {
		if ds, ok := s.verbNet[class]; ok {
			s.trace("verbnet", sig, len(ds))
			return pattern.New(lemma, ds, VerbNetConfidence, 0, pattern.FromVerbNet(class))
		}
	}
	if frame := sig.FrameNetFrame(); frame != "" {
		if ds, ok := s.frameNet[frame]; ok {
			s.trace("framenet", sig, len(ds))
			return pattern.New(lemma, ds, FrameNetConfidence, 0, pattern.FromFrameNet(frame))
		}
	}
	if ds, ok := s.defaults[sig.POS()]; ok {
		s.trace("default", sig, len(ds))
		return pattern.New(lemma, ds, DefaultConfidence, 0, pattern.Default())
	}

	s.logger.Warn("no mapping for signature, returning empty pattern",
		"key", sig.Key(), "pos", sig.POS().String())
	return pattern.New(lemma, nil, EmptyConfidence, 0, pattern.Default())
}

func (s *Synthesizer) trace(via string, sig signature.Signature, n int) {
	if s.verbose {
		s.logger.Debug("synthesized pattern", "via", via, "key", sig.Key(), "dependencies", n)
	}
}

// SynthesizeBatch synthesizes a pattern for each signature, in order.
func (s *Synthesizer) SynthesizeBatch(sigs []signature.Signature) []pattern.DependencyPattern {
	out := make([]pattern.DependencyPattern, len(sigs))
	for i, sig := range sigs {
		out[i] = s.Synthesize(sig)
	}
	return out
}

func (s *Synthesizer) SupportsVerbNetClass(class string) bool {
	_, ok := s.verbNet[class]
	return ok
}

func (s *Synthesizer) SupportsFrameNetFrame(frame string) bool {
	_, ok := s.frameNet[frame]
	return ok
}

// VerbNetClasses lists the mapped classes in sorted order.
func (s *Synthesizer) VerbNetClasses() []string {
	return sortedKeys(s.verbNet)
}

// FrameNetFrames lists the mapped frames in sorted order.
func (s *Synthesizer) FrameNetFrames() []string {
	return sortedKeys(s.frameNet)
}

func sortedKeys(m map[string][]pattern.Dependency) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
