package synth

import (
	"bytes"
	"fmt"
	"io"
	"maps"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/comploplo/canopy-sub003/errors"
	"github.com/comploplo/canopy-sub003/pattern"
	"github.com/comploplo/canopy-sub003/signature"
)

// Tables maps semantic resources to argument structures. Defaults is keyed
// by the POS name ("Verb", "Noun", "Adjective", "Adverb", "Other").
type Tables struct {
	VerbNet  map[string][]pattern.Dependency `json:"verbnet" yaml:"verbnet"`
	FrameNet map[string][]pattern.Dependency `json:"framenet" yaml:"framenet"`
	Defaults map[string][]pattern.Dependency `json:"defaults" yaml:"defaults"`
}

func deps(pairs ...string) []pattern.Dependency {
	out := make([]pattern.Dependency, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, pattern.Dependency{Relation: pattern.Relation(pairs[i]), Role: pairs[i+1]})
	}
	return out
}

// DefaultTables returns the built-in VerbNet, FrameNet and POS mappings.
func DefaultTables() Tables {
	return Tables{
		VerbNet: map[string][]pattern.Dependency{
			"run-51.3.2":   deps("nsubj", "agent", "obl", "path"),
			"walk-51.3.2":  deps("nsubj", "agent", "obl", "path"),
			"escape-51.1":  deps("nsubj", "agent", "obl", "source"),
			"give-13.1":    deps("nsubj", "agent", "obj", "theme", "iobj", "recipient"),
			"send-11.1":    deps("nsubj", "agent", "obj", "theme", "obl", "destination"),
			"build-26.1":   deps("nsubj", "agent", "obj", "product", "obl", "material"),
			"create-26.4":  deps("nsubj", "agent", "obj", "product"),
			"see-30.1":     deps("nsubj", "experiencer", "obj", "stimulus"),
			"hear-30.1":    deps("nsubj", "experiencer", "obj", "stimulus"),
			"tell-37.2":    deps("nsubj", "agent", "iobj", "recipient", "obj", "message"),
			"say-37.7":     deps("nsubj", "agent", "obj", "message"),
			"break-45.1":   deps("nsubj", "agent", "obj", "patient"),
			"open-45.4":    deps("nsubj", "agent", "obj", "patient"),
			"cooking-45.3": deps("nsubj", "agent", "obj", "patient", "obl", "instrument"),
			"hit-18.1":     deps("nsubj", "agent", "obj", "patient", "obl", "instrument"),
			"amuse-31.1":   deps("nsubj", "stimulus", "obj", "experiencer"),
			"admire-31.2":  deps("nsubj", "experiencer", "obj", "stimulus"),
		},
		FrameNet: map[string][]pattern.Dependency{
			"Motion":                deps("nsubj", "theme", "obl", "path"),
			"Self_motion":           deps("nsubj", "self_mover", "obl", "path"),
			"Giving":                deps("nsubj", "donor", "obj", "theme", "iobj", "recipient"),
			"Sending":               deps("nsubj", "sender", "obj", "theme", "obl", "goal"),
			"Creating":              deps("nsubj", "creator", "obj", "created_entity"),
			"Building":              deps("nsubj", "agent", "obj", "created_entity", "obl", "components"),
			"Perception_experience": deps("nsubj", "perceiver_passive", "obj", "phenomenon"),
			"Becoming_aware":        deps("nsubj", "cognizer", "obj", "phenomenon"),
			"Statement":             deps("nsubj", "speaker", "obj", "message", "iobj", "addressee"),
			"Request":               deps("nsubj", "speaker", "iobj", "addressee", "obj", "message"),
			"Cause_change":          deps("nsubj", "agent", "obj", "entity"),
			"Undergo_change":        deps("nsubj", "entity"),
			"Intentionally_act":     deps("nsubj", "agent", "obj", "act"),
			"Activity_start":        deps("nsubj", "agent", "obj", "activity"),
		},
		Defaults: map[string][]pattern.Dependency{
			signature.Verb.String():      deps("nsubj", "agent", "obj", "patient"),
			signature.Noun.String():      deps("amod", "modifier", "det", "determiner"),
			signature.Adjective.String(): deps("advmod", "degree"),
			signature.Adverb.String():    {},
			signature.Other.String():     {},
		},
	}
}

// Merge returns t with every entry of o added, o winning on conflicts.
func (t Tables) Merge(o Tables) Tables {
	out := Tables{
		VerbNet:  maps.Clone(t.VerbNet),
		FrameNet: maps.Clone(t.FrameNet),
		Defaults: maps.Clone(t.Defaults),
	}
	if out.VerbNet == nil {
		out.VerbNet = make(map[string][]pattern.Dependency)
	}
	if out.FrameNet == nil {
		out.FrameNet = make(map[string][]pattern.Dependency)
	}
	if out.Defaults == nil {
		out.Defaults = make(map[string][]pattern.Dependency)
	}
	maps.Copy(out.VerbNet, o.VerbNet)
	maps.Copy(out.FrameNet, o.FrameNet)
	maps.Copy(out.Defaults, o.Defaults)
	return out
}

// Validate rejects entries with an empty relation or role and default
// entries for unknown POS names.
func (t Tables) Validate() error {
	check := func(section, name string, ds []pattern.Dependency) error {
		for i, d := range ds {
			if d.Relation == "" || d.Role == "" {
				return errors.WrapInvalid(
					fmt.Errorf("%w: %s %q dependency %d has an empty relation or role", errors.ErrInvalidData, section, name, i),
					"synth", "Validate", "check mapping")
			}
		}
		return nil
	}
	for name, ds := range t.VerbNet {
		if err := check("verbnet", name, ds); err != nil {
			return err
		}
	}
	for name, ds := range t.FrameNet {
		if err := check("framenet", name, ds); err != nil {
			return err
		}
	}
	for name, ds := range t.Defaults {
		if _, ok := parsePOS(name); !ok {
			return errors.WrapInvalid(fmt.Errorf("%w: unknown POS %q in defaults", errors.ErrInvalidData, name),
				"synth", "Validate", "check defaults")
		}
		if err := check("defaults", name, ds); err != nil {
			return err
		}
	}
	return nil
}

func parsePOS(name string) (signature.PosCategory, bool) {
	for _, p := range []signature.PosCategory{signature.Verb, signature.Noun, signature.Adjective, signature.Adverb, signature.Other} {
		if p.String() == name {
			return p, true
		}
	}
	return signature.Other, false
}

// LoadTables reads YAML mapping tables from path. The result holds only what
// the file declares; merge it onto DefaultTables to extend the built-ins.
func LoadTables(path string) (Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, errors.WrapTransient(err, "synth", "LoadTables", "read mapping file")
	}
	return DecodeTables(bytes.NewReader(data))
}

// DecodeTables reads YAML mapping tables from r. JSON input is accepted too,
// being a subset of YAML.
func DecodeTables(r io.Reader) (Tables, error) {
	var t Tables
	if err := yaml.NewDecoder(r).Decode(&t); err != nil && err != io.EOF {
		return Tables{}, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
			"synth", "DecodeTables", "decode mapping")
	}
	if err := t.Validate(); err != nil {
		return Tables{}, err
	}
	return t, nil
}
