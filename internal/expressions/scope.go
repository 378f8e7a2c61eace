package expressions

import (
	"encoding/json"
	"strings"
)

// Scope keys shared by every engine.
const (
	KeyText     = "text"
	KeyMetadata = "metadata"
	KeyJSON     = "json"
)

// NewScope builds the evaluation data for one guard call:
//   - text:     the LLM output as given
//   - metadata: caller metadata, never nil
//   - json:     text decoded as JSON, or nil when text is not valid JSON
func NewScope(text string, metadata map[string]any) map[string]any {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return map[string]any{
		KeyText:     text,
		KeyMetadata: metadata,
		KeyJSON:     DecodeJSON(text),
	}
}

// DecodeJSON decodes text as a single JSON value. It returns nil when text is
// empty, malformed or followed by trailing data.
func DecodeJSON(text string) any {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	dec := json.NewDecoder(strings.NewReader(trimmed))
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	if dec.More() {
		return nil
	}
	return v
}

// IsJSON reports whether text holds exactly one JSON value.
func IsJSON(text string) bool {
	trimmed := strings.TrimSpace(text)
	return trimmed != "" && json.Valid([]byte(trimmed))
}
