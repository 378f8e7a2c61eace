package guard

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/rendis/opguard/pkg/schema"
)

// Definition describes one guard to load from the catalog.
type Definition struct {
	Name   string         `yaml:"name" json:"name"`
	Kind   string         `yaml:"kind" json:"kind"`
	Config map[string]any `yaml:"config,omitempty" json:"config,omitempty"`
}

// Validate checks the fields every provider relies on.
func (d Definition) Validate() error {
	if d.Name == "" {
		return schema.NewError(schema.ErrCodeValidation, "guard name is empty")
	}
	if d.Kind == "" {
		return schema.NewErrorf(schema.ErrCodeValidation, "guard %q has no kind", d.Name)
	}
	return nil
}

// String returns the config value for key, or "" when absent or not a string.
func (d Definition) String(key string) string {
	s, _ := d.Config[key].(string)
	return s
}

// RequireString returns the config value for key or an error naming the guard.
func (d Definition) RequireString(key string) (string, error) {
	s := d.String(key)
	if s == "" {
		return "", fmt.Errorf("config %q is required", key)
	}
	return s, nil
}

type definitionsFile struct {
	Guards []Definition `yaml:"guards"`
}

// ParseDefinitions reads a YAML document with a top-level "guards" list.
func ParseDefinitions(r io.Reader) ([]Definition, error) {
	var f definitionsFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "parse guard definitions: %s", err).WithCause(err)
	}
	for _, def := range f.Guards {
		if err := def.Validate(); err != nil {
			return nil, err
		}
	}
	return f.Guards, nil
}
