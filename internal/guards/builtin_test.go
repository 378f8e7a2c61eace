package guards

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/opguard/internal/actions"
	"github.com/rendis/opguard/internal/guard"
)

func TestRegisterBuiltins(t *testing.T) {
	c := guard.NewCatalog()
	require.NoError(t, RegisterBuiltins(c, Options{}))
	assert.Equal(t, []string{"cel", "chain", "expr", "jq", "jsonschema", "remote"}, c.Kinds())

	assert.Error(t, RegisterBuiltins(c, Options{}), "second registration conflicts")
}

func TestBuiltins_EndToEndThroughActions(t *testing.T) {
	doc := `
guards:
  - name: spelling
    kind: expr
    config:
      fix: replace(text, "helo", "hello")
      rule: not (text contains "damn")
`
	defs, err := guard.ParseDefinitions(strings.NewReader(doc))
	require.NoError(t, err)

	c := guard.NewCatalog()
	require.NoError(t, RegisterBuiltins(c, Options{}))
	reg := actions.NewRegistry()
	require.NoError(t, actions.RegisterGuards(reg, c, defs))

	a, err := reg.Get("spelling_fix")
	require.NoError(t, err)
	out, err := a.Execute(context.Background(), actions.ActionInput{Params: map[string]any{"text": "helo"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"fixed":true,"output":"hello","outcome":"passed"}`, string(out.Data))

	a, err = reg.Get("spelling_validate")
	require.NoError(t, err)
	out, err = a.Execute(context.Background(), actions.ActionInput{Params: map[string]any{"text": "damn"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"valid":false,"outcome":"failed"}`, string(out.Data))
}
