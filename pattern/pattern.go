// Package pattern defines dependency patterns: which grammatical relation
// fills which argument role for a verb, with a confidence and provenance.
package pattern

import "slices"

// Dependency pairs a grammatical relation with the argument role it fills.
type Dependency struct {
	Relation Relation `json:"relation" yaml:"relation"`
	Role     string   `json:"role" yaml:"role"`
}

// DependencyPattern is the argument structure recorded for a verb lemma.
// Patterns are shared between cache tiers, so treat them as immutable and
// derive adjusted copies with WithConfidence or Clone.
type DependencyPattern struct {
	VerbLemma    string       `json:"verb_lemma" yaml:"verb_lemma"`
	Dependencies []Dependency `json:"dependencies" yaml:"dependencies"`
	Confidence   float64      `json:"confidence" yaml:"confidence"`
	Frequency    uint32       `json:"frequency" yaml:"frequency"`
	Source       Source       `json:"source" yaml:"source"`
}

// New builds a pattern, copying deps.
func New(verbLemma string, deps []Dependency, confidence float64, frequency uint32, source Source) DependencyPattern {
	return DependencyPattern{
		VerbLemma:    verbLemma,
		Dependencies: slices.Clone(deps),
		Confidence:   confidence,
		Frequency:    frequency,
		Source:       source,
	}
}

// Clone returns a deep copy.
func (p DependencyPattern) Clone() DependencyPattern {
	p.Dependencies = slices.Clone(p.Dependencies)
	return p
}

// WithConfidence returns a copy of p with confidence c.
func (p DependencyPattern) WithConfidence(c float64) DependencyPattern {
	out := p.Clone()
	out.Confidence = c
	return out
}

// HasRelation reports whether any dependency uses rel.
func (p DependencyPattern) HasRelation(rel Relation) bool {
	_, ok := p.Argument(rel)
	return ok
}

// Argument returns the role of the first dependency with relation rel.
func (p DependencyPattern) Argument(rel Relation) (string, bool) {
	for _, d := range p.Dependencies {
		if d.Relation == rel {
			return d.Role, true
		}
	}
	return "", false
}

// ThetaRoles lists the theta roles implied by the pattern's relations, in
// dependency order.
func (p DependencyPattern) ThetaRoles() []ThetaRole {
	var roles []ThetaRole
	for _, d := range p.Dependencies {
		if role, ok := d.Relation.ThetaRole(); ok {
			roles = append(roles, role)
		}
	}
	return roles
}

// Equal compares every field, dependencies in order.
func (p DependencyPattern) Equal(o DependencyPattern) bool {
	return p.VerbLemma == o.VerbLemma &&
		p.Confidence == o.Confidence &&
		p.Frequency == o.Frequency &&
		p.Source == o.Source &&
		slices.Equal(p.Dependencies, o.Dependencies)
}
