package guard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/opguard/pkg/schema"
)

func TestParseDefinitions(t *testing.T) {
	doc := `
guards:
  - name: toxicity
    kind: remote
    config:
      base_url: http://localhost:8000
      guard: toxic_language
  - name: short
    kind: expr
    config:
      rule: len(text) <= 280
`
	defs, err := ParseDefinitions(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, defs, 2)

	assert.Equal(t, "toxicity", defs[0].Name)
	assert.Equal(t, "remote", defs[0].Kind)
	assert.Equal(t, "toxic_language", defs[0].String("guard"))
	assert.Equal(t, "len(text) <= 280", defs[1].String("rule"))
}

func TestParseDefinitions_Empty(t *testing.T) {
	defs, err := ParseDefinitions(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestParseDefinitions_Invalid(t *testing.T) {
	_, err := ParseDefinitions(strings.NewReader("guards:\n  - kind: expr\n"))
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))

	_, err = ParseDefinitions(strings.NewReader("guards:\n  - name: a\n    kind: expr\n    extra: 1\n"))
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))
}

func TestDefinition_RequireString(t *testing.T) {
	def := Definition{Name: "a", Kind: "expr", Config: map[string]any{"rule": "true", "n": 3}}
	v, err := def.RequireString("rule")
	require.NoError(t, err)
	assert.Equal(t, "true", v)

	_, err = def.RequireString("n")
	assert.Error(t, err)
	_, err = def.RequireString("missing")
	assert.Error(t, err)
}
