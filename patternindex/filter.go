package patternindex

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/comploplo/canopy-sub003/errors"
)

// Filter selects verb lemmas by glob. A lemma passes when it matches at
// least one include pattern (or there are none) and no exclude pattern.
// A nil *Filter passes everything.
type Filter struct {
	include []glob.Glob
	exclude []glob.Glob
}

// NewFilter compiles include and exclude globs such as "run*" or "{give,send}".
// Matching is case-insensitive.
func NewFilter(include, exclude []string) (*Filter, error) {
	inc, err := compileGlobs(include)
	if err != nil {
		return nil, err
	}
	exc, err := compileGlobs(exclude)
	if err != nil {
		return nil, err
	}
	return &Filter{include: inc, exclude: exc}, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	out := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(strings.ToLower(p))
		if err != nil {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: %q: %v", errors.ErrInvalidConfig, p, err),
				"Filter", "NewFilter", "compile lemma glob")
		}
		out = append(out, g)
	}
	return out, nil
}

// Match reports whether lemma passes the filter.
func (f *Filter) Match(lemma string) bool {
	if f == nil {
		return true
	}
	lemma = strings.ToLower(lemma)
	for _, g := range f.exclude {
		if g.Match(lemma) {
			return false
		}
	}
	if len(f.include) == 0 {
		return true
	}
	for _, g := range f.include {
		if g.Match(lemma) {
			return true
		}
	}
	return false
}

// Empty reports whether the filter has no patterns at all.
func (f *Filter) Empty() bool {
	return f == nil || len(f.include)+len(f.exclude) == 0
}
