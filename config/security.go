package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/comploplo/canopy-sub003/errors"
)

const (
	maxConfigSize = 10 << 20 // 10MB
	maxJSONDepth  = 100
	maxEnvVarLen  = 10000
	maxPathLen    = 4096
)

func pathError(format string, args ...any) error {
	return errors.WrapInvalid(fmt.Errorf("%w: "+format, append([]any{errors.ErrInvalidConfig}, args...)...),
		"config", "validateConfigPath", "check path")
}

// validateConfigPath rejects empty, overlong and traversing paths and
// anything that is not a YAML or JSON file.
func validateConfigPath(path string) error {
	if path == "" {
		return pathError("empty config path")
	}
	if len(path) > maxPathLen {
		return pathError("path too long: %d > %d", len(path), maxPathLen)
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return pathError("cannot get working directory: %v", err)
		}
		abs, err := filepath.Abs(filepath.Clean(path))
		if err != nil {
			return pathError("cannot resolve %s: %v", path, err)
		}
		if rel, err := filepath.Rel(cwd, abs); err != nil || strings.HasPrefix(rel, "..") {
			return pathError("%s resolves outside the working directory", path)
		}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return nil
	default:
		return pathError("only YAML or JSON config files are allowed: %s", path)
	}
}

// safeReadFile reads a validated regular file of bounded size.
func safeReadFile(path string) ([]byte, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrMissingConfig, err),
			"config", "safeReadFile", "stat config file")
	}
	if !info.Mode().IsRegular() {
		return nil, pathError("not a regular file: %s", path)
	}
	if info.Size() > maxConfigSize {
		return nil, pathError("config file too large: %d bytes > %d", info.Size(), maxConfigSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapTransient(err, "config", "safeReadFile", "read config file")
	}
	return data, nil
}

// safeWriteFile writes with owner-only permissions.
func safeWriteFile(path string, data []byte) error {
	if err := validateConfigPath(path); err != nil {
		return err
	}
	if len(data) > maxConfigSize {
		return pathError("config data too large: %d bytes > %d", len(data), maxConfigSize)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.WrapTransient(err, "config", "safeWriteFile", "write config file")
	}
	return nil
}

func validateEnvVar(key, value string) error {
	if len(value) > maxEnvVarLen {
		return errors.WrapInvalid(fmt.Errorf("%w: %s too long: %d > %d", errors.ErrInvalidConfig, key, len(value), maxEnvVarLen),
			"config", "validateEnvVar", "check environment")
	}
	if strings.Contains(value, "\x00") {
		return errors.WrapInvalid(fmt.Errorf("%w: null byte in %s", errors.ErrInvalidConfig, key),
			"config", "validateEnvVar", "check environment")
	}
	return nil
}

// validateJSONDepth bounds nesting before the document is decoded.
func validateJSONDepth(data []byte) error {
	depth := 0
	inString := false
	escaped := false

	for _, b := range data {
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch b {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			inString = true
		case '{', '[':
			depth++
			if depth > maxJSONDepth {
				return errors.WrapInvalid(fmt.Errorf("%w: JSON nesting too deep: %d > %d", errors.ErrInvalidData, depth, maxJSONDepth),
					"config", "validateJSONDepth", "scan")
			}
		case '}', ']':
			depth--
			if depth < 0 {
				return errors.WrapInvalid(fmt.Errorf("%w: unbalanced brackets", errors.ErrInvalidData),
					"config", "validateJSONDepth", "scan")
			}
		}
	}
	if depth != 0 {
		return errors.WrapInvalid(fmt.Errorf("%w: unclosed brackets (depth=%d)", errors.ErrInvalidData, depth),
			"config", "validateJSONDepth", "scan")
	}
	return nil
}
