package patternindex

import (
	"cmp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/comploplo/canopy-sub003/pattern"
	"github.com/comploplo/canopy-sub003/signature"
)

// Lookup is the read-only disk tier consulted after the core and working
// set tiers both miss.
type Lookup interface {
	Pattern(sig signature.Signature) (pattern.DependencyPattern, bool)
}

// Entry is a keyed pattern as stored in index files and ranked lists.
type Entry struct {
	Key     string                    `json:"key" yaml:"key"`
	Pattern pattern.DependencyPattern `json:"pattern" yaml:"pattern"`
}

// Metadata describes how an index was built.
type Metadata struct {
	BuildID        string    `json:"build_id" yaml:"build_id"`
	CreatedAt      time.Time `json:"created_at" yaml:"created_at"`
	TotalSentences int       `json:"total_sentences" yaml:"total_sentences"`
	TotalPatterns  int       `json:"total_patterns" yaml:"total_patterns"`
	UniqueVerbs    int       `json:"unique_verbs" yaml:"unique_verbs"`
	SourceFiles    []string  `json:"source_files,omitempty" yaml:"source_files,omitempty"`
}

// NewMetadata returns metadata stamped with a fresh build id.
func NewMetadata(sourceFiles ...string) Metadata {
	return Metadata{
		BuildID:     uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
		SourceFiles: sourceFiles,
	}
}

// Index maps lookup keys to patterns. It is safe for concurrent use.
type Index struct {
	mu       sync.RWMutex
	meta     Metadata
	patterns map[string]pattern.DependencyPattern
	verbs    map[string]int // patterns per verb lemma
}

var _ Lookup = (*Index)(nil)

// New creates an empty index.
func New(meta Metadata) *Index {
	if meta.BuildID == "" {
		meta.BuildID = uuid.NewString()
	}
	return &Index{
		meta:     meta,
		patterns: make(map[string]pattern.DependencyPattern),
		verbs:    make(map[string]int),
	}
}

// FromEntries builds an index from keyed patterns.
func FromEntries(meta Metadata, entries []Entry) *Index {
	idx := New(meta)
	for _, e := range entries {
		idx.Add(e.Key, e.Pattern)
	}
	return idx
}

// Add stores p under key. When key is already present the pattern with the
// higher frequency wins; equal frequencies keep the existing pattern. Add
// reports whether p was stored.
func (i *Index) Add(key string, p pattern.DependencyPattern) bool {
	if key == "" {
		return false
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	existing, ok := i.patterns[key]
	if ok && existing.Frequency >= p.Frequency {
		return false
	}
	if ok {
		i.dropVerbLocked(existing.VerbLemma)
	}
	i.putLocked(key, p)
	return true
}

func (i *Index) putLocked(key string, p pattern.DependencyPattern) {
	i.patterns[key] = p.Clone()
	i.verbs[p.VerbLemma]++
	i.meta.TotalPatterns = len(i.patterns)
	i.meta.UniqueVerbs = len(i.verbs)
}

func (i *Index) dropVerbLocked(lemma string) {
	if i.verbs[lemma] <= 1 {
		delete(i.verbs, lemma)
		return
	}
	i.verbs[lemma]--
}

// Get returns a copy of the pattern stored under key.
func (i *Index) Get(key string) (pattern.DependencyPattern, bool) {
	i.mu.RLock()
	p, ok := i.patterns[key]
	i.mu.RUnlock()
	if !ok {
		return pattern.DependencyPattern{}, false
	}
	return p.Clone(), true
}

// Pattern implements Lookup.
func (i *Index) Pattern(sig signature.Signature) (pattern.DependencyPattern, bool) {
	return i.Get(sig.Key())
}

// Len returns the number of stored patterns.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.patterns)
}

// Metadata returns a copy of the index metadata.
func (i *Index) Metadata() Metadata {
	i.mu.RLock()
	defer i.mu.RUnlock()
	meta := i.meta
	meta.SourceFiles = slices.Clone(i.meta.SourceFiles)
	return meta
}

// Ranked returns every entry ordered by descending frequency, ties broken by
// key so the order is deterministic.
func (i *Index) Ranked() []Entry {
	i.mu.RLock()
	entries := make([]Entry, 0, len(i.patterns))
	for k, p := range i.patterns {
		entries = append(entries, Entry{Key: k, Pattern: p.Clone()})
	}
	i.mu.RUnlock()

	sortRanked(entries)
	return entries
}

func sortRanked(entries []Entry) {
	slices.SortFunc(entries, func(a, b Entry) int {
		if c := cmp.Compare(b.Pattern.Frequency, a.Pattern.Frequency); c != 0 {
			return c
		}
		return strings.Compare(a.Key, b.Key)
	})
}

// TopPatterns returns at most limit entries from the head of Ranked.
func (i *Index) TopPatterns(limit int) []Entry {
	ranked := i.Ranked()
	if limit < 0 {
		limit = 0
	}
	if limit < len(ranked) {
		ranked = ranked[:limit]
	}
	return ranked
}

// PatternsForLemma returns the ranked entries whose pattern belongs to lemma.
func (i *Index) PatternsForLemma(lemma string) []Entry {
	var out []Entry
	for _, e := range i.Ranked() {
		if e.Pattern.VerbLemma == lemma {
			out = append(out, e)
		}
	}
	return out
}

// Filtered returns a new index holding the patterns whose verb lemma passes
// f. The metadata is carried over with refreshed counts.
func (i *Index) Filtered(f *Filter) *Index {
	out := New(i.Metadata())
	out.meta.TotalPatterns, out.meta.UniqueVerbs = 0, 0

	i.mu.RLock()
	defer i.mu.RUnlock()
	for k, p := range i.patterns {
		if f.Match(p.VerbLemma) {
			out.putLocked(k, p)
		}
	}
	return out
}
