package patternindex

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/comploplo/canopy-sub003/errors"
)

// Format is an index file encoding.
type Format string

// Supported index file formats.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

const maxIndexFileSize = 512 << 20

// document is the on-disk shape of an index.
type document struct {
	Metadata Metadata `json:"metadata" yaml:"metadata"`
	Patterns []Entry  `json:"patterns" yaml:"patterns"`
}

// ParseFormat accepts "yaml", "yml" or "json".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", errors.WrapInvalid(fmt.Errorf("%w: unknown index format %q", errors.ErrInvalidConfig, s),
			"patternindex", "ParseFormat", "parse format")
	}
}

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// LoadFile reads an index, choosing the format from the extension.
func LoadFile(path string) (*Index, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	return LoadFileFormat(path, format)
}

// LoadFileFormat reads an index in the given format. A missing or unreadable
// file yields an error wrapping ErrIndexUnavailable; malformed content
// yields ErrParsingFailed or ErrDataCorrupted.
func LoadFileFormat(path string, format Format) (*Index, error) {
	data, err := readDataFile(path, "LoadFile")
	if err != nil {
		return nil, err
	}
	return Decode(bytes.NewReader(data), format)
}

// readDataFile reads a regular file of at most maxIndexFileSize bytes.
func readDataFile(path, op string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrIndexUnavailable, err),
			"patternindex", op, "stat file")
	}
	if !info.Mode().IsRegular() {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %s is not a regular file", errors.ErrInvalidData, path),
			"patternindex", op, "check file")
	}
	if info.Size() > maxIndexFileSize {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %d bytes exceeds %d", errors.ErrInvalidData, info.Size(), maxIndexFileSize),
			"patternindex", op, "check file")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrIndexUnavailable, err),
			"patternindex", op, "read file")
	}
	return data, nil
}

// Decode reads an index document from r.
func Decode(r io.Reader, format Format) (*Index, error) {
	var doc document
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
		return nil, errors.WrapInvalid(fmt.Errorf("%w: unknown index format %q", errors.ErrInvalidConfig, format),
			"patternindex", "Decode", "select decoder")
	}
	if err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
			"patternindex", "Decode", "decode index")
	}

	if err := validateDocument(doc); err != nil {
		return nil, err
	}
	return FromEntries(doc.Metadata, doc.Patterns), nil
}

func validateDocument(doc document) error {
	if doc.Metadata.BuildID != "" {
		if _, err := uuid.Parse(doc.Metadata.BuildID); err != nil {
			return errors.WrapFatal(fmt.Errorf("%w: build id %q: %v", errors.ErrDataCorrupted, doc.Metadata.BuildID, err),
				"patternindex", "Decode", "validate metadata")
		}
	}
	for n, e := range doc.Patterns {
		if e.Key == "" {
			return errors.WrapFatal(fmt.Errorf("%w: entry %d has no key", errors.ErrDataCorrupted, n),
				"patternindex", "Decode", "validate entry")
		}
		if c := e.Pattern.Confidence; c < 0 || c > 1 {
			return errors.WrapFatal(fmt.Errorf("%w: entry %q confidence %v outside [0,1]", errors.ErrDataCorrupted, e.Key, c),
				"patternindex", "Decode", "validate entry")
		}
	}
	return nil
}

// Encode writes the index to w, patterns in ranked order.
func (i *Index) Encode(w io.Writer, format Format) error {
	doc := document{Metadata: i.Metadata(), Patterns: i.Ranked()}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return errors.Wrap(err, "patternindex", "Encode", "encode json")
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return errors.Wrap(err, "patternindex", "Encode", "encode yaml")
		}
		return enc.Close()
	default:
		return errors.WrapInvalid(fmt.Errorf("%w: unknown index format %q", errors.ErrInvalidConfig, format),
			"patternindex", "Encode", "select encoder")
	}
}

// SaveFile writes the index, choosing the format from the extension.
func (i *Index) SaveFile(path string) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	return i.SaveFileFormat(path, format)
}

// SaveFileFormat writes the index in the given format. The file is written
// to a temporary sibling first and renamed into place.
func (i *Index) SaveFileFormat(path string, format Format) error {
	var buf bytes.Buffer
	if err := i.Encode(&buf, format); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return errors.WrapTransient(err, "patternindex", "SaveFile", "write index file")
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.WrapTransient(err, "patternindex", "SaveFile", "rename index file")
	}
	return nil
}
