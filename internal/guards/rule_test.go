package guards

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/opguard/internal/guard"
	"github.com/rendis/opguard/pkg/schema"
)

func await(t *testing.T, g guard.Guard, text string, md guard.Metadata) *guard.Result {
	t.Helper()
	res, err := g.Validate(context.Background(), text, md).Await(context.Background())
	require.NoError(t, err)
	return res
}

func def(kind string, config map[string]any) guard.Definition {
	return guard.Definition{Name: "test", Kind: kind, Config: config}
}

func TestExprGuard(t *testing.T) {
	p := NewExprProvider()
	g, err := p.New(def("expr", map[string]any{
		"fix":     `replace(trim(text), "helo", "hello")`,
		"rule":    `len(text) <= 11`,
		"message": "too long",
	}))
	require.NoError(t, err)

	res := await(t, g, "hello world", nil)
	assert.Equal(t, guard.Passed, res.Outcome)
	assert.False(t, res.Corrected())

	res = await(t, g, "  helo world ", nil)
	assert.Equal(t, guard.Passed, res.Outcome)
	assert.Equal(t, "hello world", res.ValidatedOutput)
	assert.Equal(t, "  helo world ", res.RawLLMOutput)

	res = await(t, g, "hello there world", nil)
	assert.Equal(t, guard.Failed, res.Outcome)
	assert.Equal(t, []string{"too long"}, res.Reasons)
}

func TestExprGuard_NonBoolRuleIsIndeterminate(t *testing.T) {
	g, err := NewExprProvider().New(def("expr", map[string]any{"rule": `metadata.score`}))
	require.NoError(t, err)

	res := await(t, g, "x", guard.Metadata{"score": 0.4})
	assert.Equal(t, guard.Indeterminate, res.Outcome)

	res = await(t, g, "x", guard.Metadata{"score": true})
	assert.Equal(t, guard.Passed, res.Outcome)
}

func TestExprGuard_NonStringFixIsIndeterminate(t *testing.T) {
	g, err := NewExprProvider().New(def("expr", map[string]any{"fix": `len(text)`}))
	require.NoError(t, err)
	assert.Equal(t, guard.Indeterminate, await(t, g, "abc", nil).Outcome)
}

func TestExprGuard_RuntimeErrorPropagates(t *testing.T) {
	g, err := NewExprProvider().New(def("expr", map[string]any{"rule": `json.a.b == 1`}))
	require.NoError(t, err)

	_, err = g.Validate(context.Background(), `{"a": 1}`, nil).Await(context.Background())
	assert.True(t, schema.HasCode(err, schema.ErrCodeExecution))
}

func TestExprGuard_JSONRule(t *testing.T) {
	g, err := NewExprProvider().New(def("expr", map[string]any{
		"rule":    `json.age >= 18`,
		"message": "must be an adult",
	}))
	require.NoError(t, err)

	assert.Equal(t, guard.Passed, await(t, g, `{"age": 21}`, nil).Outcome)

	res := await(t, g, `{"age": 12}`, nil)
	assert.Equal(t, guard.Failed, res.Outcome)
	assert.Equal(t, []string{"must be an adult"}, res.Reasons)
}

func TestExprGuard_Config(t *testing.T) {
	p := NewExprProvider()
	_, err := p.New(def("expr", nil))
	assert.Error(t, err)

	_, err = p.New(def("expr", map[string]any{"rule": "len(text) <"}))
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))
}

func TestCELGuard(t *testing.T) {
	p, err := NewCELProvider()
	require.NoError(t, err)

	g, err := p.New(def("cel", map[string]any{
		"rule": `!text.lowerAscii().contains("password") && size(text) <= int(metadata.max)`,
	}))
	require.NoError(t, err)

	md := guard.Metadata{"max": 20}
	assert.Equal(t, guard.Passed, await(t, g, "all good", md).Outcome)
	assert.Equal(t, guard.Failed, await(t, g, "my Password is 123", md).Outcome)
	assert.Equal(t, guard.Failed, await(t, g, "this sentence is far too long", md).Outcome)
}

func TestCELGuard_Fix(t *testing.T) {
	p, err := NewCELProvider()
	require.NoError(t, err)

	g, err := p.New(def("cel", map[string]any{"fix": `text.trim()`}))
	require.NoError(t, err)
	assert.Equal(t, "padded", await(t, g, "  padded ", nil).ValidatedOutput)

	g, err = p.New(def("cel", map[string]any{"fix": `text + "."`, "rule": `text.endsWith(".")`}))
	require.NoError(t, err)
	res := await(t, g, "done", nil)
	assert.Equal(t, guard.Passed, res.Outcome)
	assert.Equal(t, "done.", res.ValidatedOutput)
}
