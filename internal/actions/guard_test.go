package actions

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/opguard/internal/guard"
	"github.com/rendis/opguard/pkg/schema"
)

// spellGuard corrects "helo" to "hello", rejects anything containing "bad"
// and cannot decide on empty text.
func spellGuard(_ context.Context, text string, _ guard.Metadata) (*guard.Result, error) {
	switch {
	case text == "":
		return guard.Undecided(text), nil
	case strings.Contains(text, "bad"):
		return guard.Fail(text, "contains bad"), nil
	default:
		return guard.Pass(text, strings.ReplaceAll(text, "helo", "hello")), nil
	}
}

func guardVariants() map[string]guard.Guard {
	return map[string]guard.Guard{
		"immediate": guard.Func(spellGuard),
		"deferred":  guard.AsyncFunc(spellGuard),
	}
}

func TestFixAndCheck(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		wantFix   string
		wantOK    bool
		wantCheck guard.Outcome
	}{
		{"passed unchanged", "hello world", "hello world", true, guard.Passed},
		{"passed corrected", "helo world", "hello world", true, guard.Failed},
		{"failed", "bad words", "", false, guard.Failed},
		{"indeterminate", "", "", false, guard.Indeterminate},
	}

	for variant, g := range guardVariants() {
		for _, tc := range tests {
			t.Run(variant+"/"+tc.name, func(t *testing.T) {
				ctx := context.Background()

				out, ok, err := Fix(ctx, g, tc.text, nil)
				require.NoError(t, err)
				assert.Equal(t, tc.wantOK, ok)
				assert.Equal(t, tc.wantFix, out)

				outcome, err := Check(ctx, g, tc.text, nil)
				require.NoError(t, err)
				assert.Equal(t, tc.wantCheck, outcome)
			})
		}
	}
}

func TestFixAndCheck_GuardErrorPropagates(t *testing.T) {
	boom := errors.New("validator crashed")
	g := guard.AsyncFunc(func(context.Context, string, guard.Metadata) (*guard.Result, error) {
		return nil, boom
	})

	_, _, err := Fix(context.Background(), g, "x", nil)
	assert.Same(t, boom, err)

	_, err = Check(context.Background(), g, "x", nil)
	assert.Same(t, boom, err)
}

func TestFix_MetadataIsFreshPerCall(t *testing.T) {
	var seen []guard.Metadata
	g := guard.Func(func(_ context.Context, text string, md guard.Metadata) (*guard.Result, error) {
		require.NotNil(t, md)
		seen = append(seen, md)
		md["touched"] = true
		return guard.Pass(text, text), nil
	})

	shared := guard.Metadata{"tenant": "acme"}
	_, _, err := Fix(context.Background(), g, "a", nil)
	require.NoError(t, err)
	_, _, err = Fix(context.Background(), g, "b", nil)
	require.NoError(t, err)
	_, _, err = Fix(context.Background(), g, "c", shared)
	require.NoError(t, err)

	require.Len(t, seen, 3)
	assert.Equal(t, guard.Metadata{"touched": true}, seen[1])
	assert.Equal(t, "acme", seen[2]["tenant"])
	assert.NotContains(t, shared, "touched")
}

func TestRegisterGuardActions(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Get("toxicity_fix")
	requireCode(t, err, schema.ErrCodeActionUnavailable)
	_, err = reg.Get("toxicity_validate")
	requireCode(t, err, schema.ErrCodeActionUnavailable)

	require.NoError(t, RegisterGuardActions(reg, guard.Func(spellGuard), "toxicity"))

	assert.Equal(t, 2, reg.Count())
	infos := reg.List()
	require.Len(t, infos, 2)
	assert.Equal(t, "toxicity_fix", infos[0].Name)
	assert.Equal(t, "toxicity_validate", infos[1].Name)
}

func TestRegisterGuardActions_Invalid(t *testing.T) {
	reg := NewRegistry()
	requireCode(t, RegisterGuardActions(reg, guard.Func(spellGuard), ""), schema.ErrCodeValidation)
	requireCode(t, RegisterGuardActions(reg, nil, "x"), schema.ErrCodeValidation)
	assert.Zero(t, reg.Count())
}

func TestRegisterGuardActions_CollisionFromRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, RegisterGuardActions(reg, guard.Func(spellGuard), "toxicity"))
	requireCode(t, RegisterGuardActions(reg, guard.Func(spellGuard), "toxicity"), schema.ErrCodeConflict)
}

type loaderProvider struct{}

func (loaderProvider) Kind() string { return "spell" }
func (loaderProvider) New(guard.Definition) (guard.Guard, error) {
	return guard.Func(spellGuard), nil
}

func TestRegisterGuards_MissingProviderRegistersNothing(t *testing.T) {
	catalog := guard.NewCatalog()
	require.NoError(t, catalog.Register(loaderProvider{}))
	reg := NewRegistry()

	err := RegisterGuards(reg, catalog, []guard.Definition{
		{Name: "spelling", Kind: "spell"},
		{Name: "toxicity", Kind: "remote"},
	})
	requireCode(t, err, schema.ErrCodeGuardUnavailable)
	assert.Contains(t, err.Error(), "register it with")
	assert.Zero(t, reg.Count())

	require.NoError(t, RegisterGuards(reg, catalog, []guard.Definition{{Name: "spelling", Kind: "spell"}}))
	assert.True(t, reg.Has("spelling_fix"))
	assert.True(t, reg.Has("spelling_validate"))
}

func execute(t *testing.T, reg *Registry, name string, params map[string]any) map[string]any {
	t.Helper()
	a, err := reg.Get(name)
	require.NoError(t, err)
	require.NoError(t, a.Validate(params))
	out, err := a.Execute(context.Background(), ActionInput{Params: params})
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out.Data, &got))
	return got
}

func TestGuardActions_Execute(t *testing.T) {
	for variant, g := range guardVariants() {
		t.Run(variant, func(t *testing.T) {
			reg := NewRegistry()
			require.NoError(t, RegisterGuardActions(reg, g, "spelling"))

			got := execute(t, reg, "spelling_fix", map[string]any{"text": "helo"})
			assert.Equal(t, map[string]any{"fixed": true, "output": "hello", "outcome": "passed"}, got)

			got = execute(t, reg, "spelling_fix", map[string]any{"text": "bad"})
			assert.Equal(t, map[string]any{"fixed": false, "outcome": "failed"}, got)

			got = execute(t, reg, "spelling_validate", map[string]any{"text": "hello"})
			assert.Equal(t, map[string]any{"valid": true, "outcome": "passed"}, got)

			got = execute(t, reg, "spelling_validate", map[string]any{"text": "helo", "metadata": map[string]any{"k": 1}})
			assert.Equal(t, map[string]any{"valid": false, "corrected": true, "outcome": "failed"}, got)

			got = execute(t, reg, "spelling_validate", map[string]any{"text": ""})
			assert.Equal(t, map[string]any{"valid": nil, "outcome": "indeterminate"}, got)
		})
	}
}

func TestFixAction_EmptyCorrection(t *testing.T) {
	blank := guard.Func(func(_ context.Context, text string, _ guard.Metadata) (*guard.Result, error) {
		return guard.Pass(text, ""), nil
	})
	reg := NewRegistry()
	require.NoError(t, RegisterGuardActions(reg, blank, "redact"))

	got := execute(t, reg, "redact_fix", map[string]any{"text": "secret"})
	assert.Equal(t, map[string]any{"fixed": true, "output": "", "outcome": "passed"}, got)
}

func TestGuardActions_ValidateParams(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, RegisterGuardActions(reg, guard.Func(spellGuard), "spelling"))

	for _, name := range []string{"spelling_fix", "spelling_validate"} {
		a, err := reg.Get(name)
		require.NoError(t, err)
		requireCode(t, a.Validate(map[string]any{}), schema.ErrCodeValidation)
		requireCode(t, a.Validate(map[string]any{"text": 3}), schema.ErrCodeValidation)
		requireCode(t, a.Validate(map[string]any{"text": "x", "metadata": "nope"}), schema.ErrCodeValidation)

		_, err = a.Execute(context.Background(), ActionInput{Params: map[string]any{}})
		requireCode(t, err, schema.ErrCodeValidation)

		s := a.Schema()
		assert.NotEmpty(t, s.Description)
		assert.True(t, json.Valid(s.InputSchema))
		assert.True(t, json.Valid(s.OutputSchema))
	}
}

func TestGuardNameOf(t *testing.T) {
	tests := []struct {
		action string
		want   string
		ok     bool
	}{
		{"toxicity_fix", "toxicity", true},
		{"toxicity_validate", "toxicity", true},
		{"two_words_fix", "two_words", true},
		{"_fix", "", false},
		{"http.get", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			got, ok := GuardNameOf(tt.action)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
