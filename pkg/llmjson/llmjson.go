// Package llmjson coerces loosely formatted model output into JSON values.
package llmjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kaptinlin/jsonrepair"
)

const excerptLimit = 500

var ErrDecode = errors.New("unable to decode LLM JSON payload")

// DecodeError is returned once every fallback has been exhausted.
type DecodeError struct {
	Excerpt string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v (payload: %q)", ErrDecode, e.Err, e.Excerpt)
	}
	return fmt.Sprintf("%s (payload: %q)", ErrDecode, e.Excerpt)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// Parse returns the JSON value carried by payload. Already decoded values
// (maps and slices) are returned unchanged; strings and byte slices go through
// an ordered fallback chain and the first successful decode wins.
func Parse(payload any) (any, error) {
	switch v := payload.(type) {
	case map[string]any, []any:
		return v, nil
	case json.RawMessage:
		return parseText(string(v))
	case []byte:
		return parseText(string(v))
	case string:
		return parseText(v)
	case nil:
		return nil, &DecodeError{Err: errors.New("empty payload")}
	default:
		return nil, &DecodeError{Excerpt: fmt.Sprintf("%v", v), Err: fmt.Errorf("unsupported payload type %T", v)}
	}
}

// ParseObject is Parse narrowed to a JSON object.
func ParseObject(payload any) (map[string]any, error) {
	v, err := Parse(payload)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &DecodeError{Excerpt: excerpt(fmt.Sprintf("%v", v)), Err: fmt.Errorf("expected JSON object, got %T", v)}
	}
	return obj, nil
}

func parseText(text string) (any, error) {
	v, firstErr := decode(text)
	if firstErr == nil {
		return v, nil
	}

	trimmed := strings.TrimSpace(text)
	var candidates []string

	if inner, ok := stripFence(trimmed); ok {
		if v, err := decode(inner); err == nil {
			return v, nil
		}
		candidates = append(candidates, inner)
	}

	if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
		if v, err := decode(trimmed); err == nil {
			return v, nil
		}
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start != -1 && end > start {
		braced := trimmed[start : end+1]
		if v, err := decode(braced); err == nil {
			return v, nil
		}
		candidates = append(candidates, braced)
	}

	candidates = append(candidates, trimmed)

	// Repair can turn bare prose into a JSON string; only containers count.
	for _, c := range candidates {
		if v, ok := repair(c); ok {
			return v, nil
		}
	}

	return nil, &DecodeError{Excerpt: excerpt(trimmed), Err: firstErr}
}

func repair(text string) (any, bool) {
	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		return nil, false
	}
	v, err := decode(repaired)
	if err != nil || !isContainer(v) {
		return nil, false
	}
	return v, true
}

func decode(text string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// stripFence removes one leading ``` marker (with its optional language tag)
// and one trailing ``` marker.
func stripFence(s string) (string, bool) {
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return "", false
	}
	inner := s[3 : len(s)-3]
	if nl := strings.IndexByte(inner, '\n'); nl != -1 {
		tag := strings.TrimSpace(inner[:nl])
		if tag == "" || isLanguageTag(tag) {
			inner = inner[nl+1:]
		}
	}
	return strings.TrimSpace(inner), true
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

func isLanguageTag(s string) bool {
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_') {
			return false
		}
	}
	return true
}

func excerpt(s string) string {
	if len(s) <= excerptLimit {
		return s
	}
	n := excerptLimit
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
