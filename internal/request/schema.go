// Package request validates caller input into strict, immutable request values.
package request

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/abdulachik/linkrunner/internal/apperrors"
)

// FieldKind is the semantic type of a schema field.
type FieldKind int

const (
	KindText FieldKind = iota
	KindURL
)

func (k FieldKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindURL:
		return "url"
	default:
		return "unknown"
	}
}

// Field declares one required string field.
type Field struct {
	Name   string
	Kind   FieldKind
	MinLen int // runes, after trimming (at least 1)
	MaxLen int // runes, after trimming
}

// Schema is the declared shape of a request. Every field is required and
// keys not declared here are rejected.
type Schema struct {
	Name   string
	Fields []Field
}

// Validate checks raw input against the schema and returns the trimmed values.
func (s Schema) Validate(raw map[string]any) (map[string]string, error) {
	if raw == nil {
		return nil, apperrors.Validation("", fmt.Sprintf("%s: input is required", s.Name))
	}

	declared := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		declared[f.Name] = struct{}{}
	}

	var unknown []string
	for key := range raw {
		if _, ok := declared[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, apperrors.Validation(unknown[0],
			fmt.Sprintf("%s: unknown field(s): %s", s.Name, strings.Join(unknown, ", ")))
	}

	values := make(map[string]string, len(s.Fields))
	for _, f := range s.Fields {
		v, err := f.validate(s.Name, raw)
		if err != nil {
			return nil, err
		}
		values[f.Name] = v
	}
	return values, nil
}

func (f Field) validate(schema string, raw map[string]any) (string, error) {
	v, ok := raw[f.Name]
	if !ok || v == nil {
		return "", apperrors.Validation(f.Name, fmt.Sprintf("%s: %s is required", schema, f.Name))
	}

	str, ok := v.(string)
	if !ok {
		return "", apperrors.Validation(f.Name, fmt.Sprintf("%s: %s must be a string, got %T", schema, f.Name, v))
	}

	str = strings.TrimSpace(str)
	n := utf8.RuneCountInString(str)

	minLen := f.MinLen
	if minLen < 1 {
		minLen = 1
	}
	if n < minLen {
		if n == 0 {
			return "", apperrors.Validation(f.Name, fmt.Sprintf("%s: %s must not be empty", schema, f.Name))
		}
		return "", apperrors.Validation(f.Name, fmt.Sprintf("%s: %s must be at least %d characters", schema, f.Name, minLen))
	}
	if f.MaxLen > 0 && n > f.MaxLen {
		return "", apperrors.Validation(f.Name, fmt.Sprintf("%s: %s exceeds maximum length of %d", schema, f.Name, f.MaxLen))
	}

	if f.Kind == KindURL {
		if err := validateURL(str); err != nil {
			return "", apperrors.Validation(f.Name, fmt.Sprintf("%s: invalid %s: %v", schema, f.Name, err))
		}
	}

	return str, nil
}

func validateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("malformed URL")
	}
	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
