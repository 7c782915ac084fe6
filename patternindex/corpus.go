package patternindex

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/comploplo/canopy-sub003/errors"
)

// corpus is the on-disk shape of a parsed-sentence file.
type corpus struct {
	Sentences []Sentence `json:"sentences" yaml:"sentences"`
}

// LoadSentences reads a parsed-sentence file, choosing the format from the
// extension. It accepts the same formats as index files.
func LoadSentences(path string) ([]Sentence, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := readDataFile(path, "LoadSentences")
	if err != nil {
		return nil, err
	}
	return DecodeSentences(bytes.NewReader(data), format)
}

// DecodeSentences reads parsed sentences from r. Token IDs must be positive
// and heads must point inside the sentence.
func DecodeSentences(r io.Reader, format Format) ([]Sentence, error) {
	var doc corpus
	var err error
	switch format {
	case FormatJSON:
		err = json.NewDecoder(r).Decode(&doc)
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(&doc)
		if err == io.EOF {
			err = nil
		}
	default:
		return nil, errors.WrapInvalid(fmt.Errorf("%w: unknown corpus format %q", errors.ErrInvalidConfig, format),
			"patternindex", "DecodeSentences", "select decoder")
	}
	if err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
			"patternindex", "DecodeSentences", "decode corpus")
	}

	for n, s := range doc.Sentences {
		if err := validateSentence(s); err != nil {
			return nil, errors.WrapFatal(fmt.Errorf("%w: sentence %d (%q): %v", errors.ErrDataCorrupted, n, s.ID, err),
				"patternindex", "DecodeSentences", "validate sentence")
		}
	}
	return doc.Sentences, nil
}

func validateSentence(s Sentence) error {
	ids := make(map[int]struct{}, len(s.Tokens))
	for _, t := range s.Tokens {
		if t.ID <= 0 {
			return fmt.Errorf("token id %d is not positive", t.ID)
		}
		ids[t.ID] = struct{}{}
	}
	for _, t := range s.Tokens {
		if _, ok := ids[t.Head]; t.Head != 0 && !ok {
			return fmt.Errorf("token %d has head %d outside the sentence", t.ID, t.Head)
		}
	}
	return nil
}
