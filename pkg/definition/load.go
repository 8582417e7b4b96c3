package definition

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// Format is a document encoding.
type Format string

// Formats. FormatAuto sniffs the content.
const (
	FormatAuto Format = ""
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ErrEmptyDocument is returned for a document with no content.
var ErrEmptyDocument = errors.New("empty definition document")

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatAuto
	}
}

// Parse decodes, schema-validates and checks a document.
func Parse(data []byte, format Format) ([]Definition, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}
	if format == FormatAuto {
		format = FormatYAML
		if gjson.ValidBytes(data) {
			format = FormatJSON
		}
	}

	jsonDoc, err := toJSON(data, format)
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(jsonDoc, &doc); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if err := ValidateDocument(doc); err != nil {
		return nil, err
	}

	var defs []Definition
	if _, isList := doc.([]any); isList {
		if err := json.Unmarshal(jsonDoc, &defs); err != nil {
			return nil, fmt.Errorf("decoding definitions: %w", err)
		}
	} else {
		var d Definition
		if err := json.Unmarshal(jsonDoc, &d); err != nil {
			return nil, fmt.Errorf("decoding definition: %w", err)
		}
		defs = []Definition{d}
	}

	var errs []error
	for i := range defs {
		if err := defs[i].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("definition %d (%s): %w", i, defs[i].String(), err))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return defs, nil
}

// toJSON re-encodes a YAML document as JSON so both formats share one
// schema and one decoder.
func toJSON(data []byte, format Format) ([]byte, error) {
	if format == FormatJSON {
		return data, nil
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("converting YAML: %w", err)
	}
	return out, nil
}

// ParseFile reads and parses one file. Source is set on every definition.
func ParseFile(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("reading file: %w", err)
	}
	defs, err := Parse(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for i := range defs {
		defs[i].Source = path
	}
	return defs, nil
}

// Expand resolves patterns to a sorted, de-duplicated file list. Patterns
// support ** through doublestar; a pattern without glob characters must
// name an existing file.
func Expand(patterns ...string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range patterns {
		if !hasMeta(pattern) {
			if _, err := os.Stat(pattern); err != nil {
				return nil, fmt.Errorf("file not found: %s", pattern)
			}
			if !seen[pattern] {
				seen[pattern] = true
				files = append(files, pattern)
			}
			continue
		}

		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("expanding glob pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// LoadGlob parses every file matched by patterns, in sorted file order.
func LoadGlob(patterns ...string) ([]Definition, error) {
	files, err := Expand(patterns...)
	if err != nil {
		return nil, err
	}
	var result []Definition
	for _, f := range files {
		defs, err := ParseFile(f)
		if err != nil {
			return nil, err
		}
		result = append(result, defs...)
	}
	return result, nil
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}
