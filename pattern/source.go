package pattern

import "fmt"

// SourceKind says where a pattern came from.
type SourceKind string

const (
	SourceIndexed  SourceKind = "indexed"
	SourceVerbNet  SourceKind = "verbnet"
	SourceFrameNet SourceKind = "framenet"
	SourceDefault  SourceKind = "default"
)

// Source is the provenance of a pattern. Ref carries the VerbNet class id or
// FrameNet frame name for synthesized patterns and is empty otherwise.
type Source struct {
	Kind SourceKind `json:"kind" yaml:"kind"`
	Ref  string     `json:"ref,omitempty" yaml:"ref,omitempty"`
}

// Indexed is the source of patterns observed in a treebank.
func Indexed() Source { return Source{Kind: SourceIndexed} }

// FromVerbNet is the source of patterns synthesized from a VerbNet class.
func FromVerbNet(classID string) Source { return Source{Kind: SourceVerbNet, Ref: classID} }

// FromFrameNet is the source of patterns synthesized from a FrameNet frame.
func FromFrameNet(frame string) Source { return Source{Kind: SourceFrameNet, Ref: frame} }

// Default is the source of last-resort patterns.
func Default() Source { return Source{Kind: SourceDefault} }

// Synthesized reports whether the pattern was produced rather than observed.
func (s Source) Synthesized() bool {
	return s.Kind != SourceIndexed
}

func (s Source) String() string {
	if s.Ref == "" {
		return string(s.Kind)
	}
	return fmt.Sprintf("%s(%s)", s.Kind, s.Ref)
}
