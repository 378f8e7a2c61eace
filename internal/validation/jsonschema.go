package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rendis/opguard/pkg/schema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// SchemaValidator compiles JSON Schemas (Draft 2020-12 unless the schema says
// otherwise) and checks documents against them. Compiled schemas are cached
// by their source bytes. It is safe for concurrent use.
type SchemaValidator struct {
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

// NewSchemaValidator creates an empty SchemaValidator.
func NewSchemaValidator() *SchemaValidator {
	return &SchemaValidator{cache: make(map[string]*jsonschema.Schema)}
}

// Compile returns the compiled form of schemaBytes, compiling it on first use.
func (v *SchemaValidator) Compile(schemaBytes []byte) (*jsonschema.Schema, error) {
	key := string(bytes.TrimSpace(schemaBytes))
	if key == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty JSON schema")
	}

	v.mu.RLock()
	if cached, ok := v.cache[key]; ok {
		v.mu.RUnlock()
		return cached, nil
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	if cached, ok := v.cache[key]; ok {
		return cached, nil
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(key))
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "invalid JSON schema").WithCause(err)
	}

	// A fresh compiler per schema keeps resource URLs from colliding.
	url := fmt.Sprintf("opguard://schema/%d", len(v.cache))
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	if err := c.AddResource(url, doc); err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "invalid JSON schema").WithCause(err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "invalid JSON schema").WithCause(err)
	}

	v.cache[key] = compiled
	return compiled, nil
}

// ValidateText parses text as JSON and validates it against schemaBytes.
func (v *SchemaValidator) ValidateText(text string, schemaBytes []byte) error {
	compiled, err := v.Compile(schemaBytes)
	if err != nil {
		return err
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(text))
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "output is not valid JSON").
			WithCause(err).
			WithDetails(map[string]any{"violations": []string{"/: not valid JSON"}})
	}
	return check(compiled, doc)
}

// ValidateValue validates an arbitrary Go value (e.g. action params) against schemaBytes.
// An empty schema means no validation.
func (v *SchemaValidator) ValidateValue(value any, schemaBytes []byte) error {
	if len(bytes.TrimSpace(schemaBytes)) == 0 {
		return nil
	}
	compiled, err := v.Compile(schemaBytes)
	if err != nil {
		return err
	}
	doc, err := toJSONValue(value)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize value").WithCause(err)
	}
	return check(compiled, doc)
}

// Violations returns the per-location messages carried by a validation error.
func Violations(err error) []string {
	var opErr *schema.OpcodeError
	if !errors.As(err, &opErr) || opErr.Details == nil {
		return nil
	}
	violations, _ := opErr.Details["violations"].([]string)
	return violations
}

func check(compiled *jsonschema.Schema, doc any) error {
	if err := compiled.Validate(doc); err != nil {
		return toOpcodeError(err)
	}
	return nil
}

// toJSONValue round-trips a Go value through JSON so numbers become
// json.Number, as the jsonschema library expects.
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(b))
}

func toOpcodeError(err error) *schema.OpcodeError {
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	msg := verr.Error()
	switch {
	case len(violations) == 1:
		msg = violations[0]
	case len(violations) > 1:
		msg = fmt.Sprintf("validation failed with %d errors", len(violations))
	}
	return schema.NewError(schema.ErrCodeValidation, msg).
		WithCause(err).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects the leaf
// messages prefixed with their instance location.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/" + strings.Join(verr.InstanceLocation, "/")
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
