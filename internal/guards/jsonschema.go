package guards

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rendis/opguard/internal/guard"
	"github.com/rendis/opguard/internal/validation"
)

// JSONSchemaProvider builds guards that require the output to be JSON
// matching a schema. The schema may be given inline as an object or as a
// JSON string.
//
//	kind: jsonschema
//	config: {schema: {type: object, required: [answer]}}
type JSONSchemaProvider struct {
	validator *validation.SchemaValidator
}

// NewJSONSchemaProvider creates a JSONSchemaProvider sharing one schema cache.
func NewJSONSchemaProvider(v *validation.SchemaValidator) *JSONSchemaProvider {
	if v == nil {
		v = validation.NewSchemaValidator()
	}
	return &JSONSchemaProvider{validator: v}
}

func (p *JSONSchemaProvider) Kind() string { return "jsonschema" }

func (p *JSONSchemaProvider) New(def guard.Definition) (guard.Guard, error) {
	var raw []byte
	switch s := def.Config["schema"].(type) {
	case nil:
		return nil, fmt.Errorf("config %q is required", "schema")
	case string:
		raw = []byte(s)
	default:
		b, err := json.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("encode schema: %w", err)
		}
		raw = b
	}
	if _, err := p.validator.Compile(raw); err != nil {
		return nil, err
	}
	return &schemaGuard{validator: p.validator, schema: raw}, nil
}

type schemaGuard struct {
	validator *validation.SchemaValidator
	schema    []byte
}

func (g *schemaGuard) Validate(_ context.Context, llmOutput string, _ guard.Metadata) *guard.Task {
	if err := g.validator.ValidateText(llmOutput, g.schema); err != nil {
		reasons := validation.Violations(err)
		if len(reasons) == 0 {
			reasons = []string{err.Error()}
		}
		return guard.Ready(guard.Fail(llmOutput, reasons...), nil)
	}
	return guard.Ready(guard.Pass(llmOutput, llmOutput), nil)
}
