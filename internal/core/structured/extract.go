// Package structured pulls a single JSON object out of model output and validates it
// against the schema of each generation feature.
package structured

import (
	"encoding/json"
	"errors"
	"strings"
)

var (
	// ErrNoJSONObject is returned when the text contains no parseable JSON object.
	ErrNoJSONObject = errors.New("no JSON object found in model output")
	// ErrMultipleJSONObjects is returned when more than one parseable object is present.
	ErrMultipleJSONObjects = errors.New("multiple JSON objects found in model output")
)

// ValidationError carries every schema problem found in one payload.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid model output: " + strings.Join(e.Problems, "; ")
}

// ScanObjectSpans returns every top-level balanced {...} span in raw, in order.
// Braces inside string literals are ignored; escapes are honoured. An unterminated
// trailing object is dropped.
func ScanObjectSpans(raw string) []string {
	var (
		spans    []string
		depth    int
		start    int
		inString bool
		escaped  bool
	)

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if depth == 0 {
			if c == '{' {
				start = i
				depth = 1
				inString, escaped = false, false
			}
			continue
		}

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				spans = append(spans, raw[start:i+1])
			}
		}
	}
	return spans
}

// ExtractJSONObject returns the single JSON object embedded in raw, verbatim.
func ExtractJSONObject(raw string) (string, error) {
	var found []string
	for _, span := range ScanObjectSpans(raw) {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(span), &obj); err != nil {
			continue
		}
		found = append(found, span)
	}

	switch len(found) {
	case 0:
		return "", ErrNoJSONObject
	case 1:
		return found[0], nil
	default:
		return "", ErrMultipleJSONObjects
	}
}

// Decode extracts the single object from raw and unmarshals it into T.
func Decode[T any](raw string) (T, error) {
	var out T
	obj, err := ExtractJSONObject(raw)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(obj), &out); err != nil {
		return out, &ValidationError{Problems: []string{"payload does not match schema: " + err.Error()}}
	}
	return out, nil
}

// problems accumulates validation messages.
type problems []string

func (p *problems) add(msg string) { *p = append(*p, msg) }

func (p problems) err() error {
	if len(p) == 0 {
		return nil
	}
	return &ValidationError{Problems: p}
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }
