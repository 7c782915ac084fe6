package pattern

import "strings"

// Relation is a Universal Dependencies relation label. Labels outside the
// known set are kept verbatim so that nothing from upstream parsers is lost.
type Relation string

// Known relation labels.
const (
	NominalSubject          Relation = "nsubj"
	Object                  Relation = "obj"
	IndirectObject          Relation = "iobj"
	Oblique                 Relation = "obl"
	AdverbialModifier       Relation = "advmod"
	AdjectivalModifier      Relation = "amod"
	Compound                Relation = "compound"
	Conjunction             Relation = "conj"
	CoordinatingConjunction Relation = "cc"
	Determiner              Relation = "det"
	Case                    Relation = "case"
	Auxiliary               Relation = "aux"
	Copula                  Relation = "cop"
	Mark                    Relation = "mark"
	ClausalComplement       Relation = "ccomp"
	XClausalComplement      Relation = "xcomp"
	RelativeClause          Relation = "acl:relcl"
	AdverbialClause         Relation = "advcl"
	NominalModifier         Relation = "nmod"
	Punctuation             Relation = "punct"
	Root                    Relation = "root"
	Flat                    Relation = "flat"
	NumericModifier         Relation = "nummod"
	Parataxis               Relation = "parataxis"
	Expletive               Relation = "expl"
	AdjectivalClause        Relation = "acl"
	ClausalSubject          Relation = "csubj"
	Fixed                   Relation = "fixed"
)

var knownRelations = map[Relation]struct{}{
	NominalSubject: {}, Object: {}, IndirectObject: {}, Oblique: {},
	AdverbialModifier: {}, AdjectivalModifier: {}, Compound: {}, Conjunction: {},
	CoordinatingConjunction: {}, Determiner: {}, Case: {}, Auxiliary: {},
	Copula: {}, Mark: {}, ClausalComplement: {}, XClausalComplement: {},
	RelativeClause: {}, AdverbialClause: {}, NominalModifier: {}, Punctuation: {},
	Root: {}, Flat: {}, NumericModifier: {}, Parataxis: {}, Expletive: {},
	AdjectivalClause: {}, ClausalSubject: {}, Fixed: {},
}

// ParseRelation maps a raw deprel such as "nsubj:pass" to its base relation.
// Subtypes are dropped except for acl:relcl, which is a relation of its own.
func ParseRelation(s string) Relation {
	s = strings.TrimSpace(s)
	if s == string(RelativeClause) {
		return RelativeClause
	}
	base, _, _ := strings.Cut(s, ":")
	return Relation(base)
}

// Known reports whether r is one of the predefined labels.
func (r Relation) Known() bool {
	_, ok := knownRelations[r]
	return ok
}

// ThetaRole is the coarse semantic role a core relation usually carries.
type ThetaRole string

// Theta roles derived from core relations.
const (
	Agent     ThetaRole = "Agent"
	Patient   ThetaRole = "Patient"
	Recipient ThetaRole = "Recipient"
	Location  ThetaRole = "Location"
)

// ThetaRole returns the default theta role for r, if it has one.
func (r Relation) ThetaRole() (ThetaRole, bool) {
	switch r {
	case NominalSubject:
		return Agent, true
	case Object:
		return Patient, true
	case IndirectObject:
		return Recipient, true
	case Oblique:
		return Location, true
	default:
		return "", false
	}
}
