package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupHome installs settings and a guards file under a fake home directory.
func setupHome(t *testing.T, guardsYAML string) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".opguard")
	require.NoError(t, os.MkdirAll(dir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "guards.yaml"), []byte(guardsYAML), 0o644))
	return dir
}

const testGuards = `
guards:
  - name: trimmed
    kind: expr
    config:
      fix: trim(text)
      rule: len(text) > 0
`

func TestRunCheck(t *testing.T) {
	setupHome(t, testGuards)
	ctx := context.Background()

	var out bytes.Buffer
	require.NoError(t, runCheck(ctx, []string{"trimmed_fix", "  hi  "}, nil, &out))
	assert.JSONEq(t, `{"fixed":true,"output":"hi","outcome":"passed"}`, out.String())

	out.Reset()
	require.NoError(t, runCheck(ctx, []string{"trimmed_validate", "  hi  "}, nil, &out))
	assert.JSONEq(t, `{"valid":false,"corrected":true,"outcome":"failed"}`, out.String())

	out.Reset()
	require.NoError(t, runCheck(ctx, []string{"-no-log", "trimmed_validate", "-"}, strings.NewReader("ok\n"), &out))
	assert.JSONEq(t, `{"valid":true,"outcome":"passed"}`, out.String())

	var hist bytes.Buffer
	require.NoError(t, runHistory(ctx, []string{"-guard", "trimmed"}, &hist))
	assert.Equal(t, 2, strings.Count(hist.String(), "trimmed_"), "no-log run is not recorded")
}

func TestRunCheck_Errors(t *testing.T) {
	setupHome(t, testGuards)
	ctx := context.Background()
	var out bytes.Buffer

	assert.Error(t, runCheck(ctx, []string{"trimmed_fix"}, nil, &out))
	assert.Error(t, runCheck(ctx, []string{"-metadata", "[1]", "trimmed_fix", "x"}, nil, &out))
	assert.Error(t, runCheck(ctx, []string{"missing_fix", "x"}, nil, &out))
}

func TestRunList(t *testing.T) {
	setupHome(t, testGuards)

	var out bytes.Buffer
	require.NoError(t, runList(context.Background(), nil, &out))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], "trimmed_fix"))
	assert.True(t, strings.HasPrefix(lines[2], "trimmed_validate"))
}

func TestNewApp_MissingProvider(t *testing.T) {
	setupHome(t, `
guards:
  - name: trimmed
    kind: expr
    config: {rule: "true"}
  - name: toxicity
    kind: hub
`)
	_, err := newApp(context.Background(), loadConfig(), newLogger(&bytes.Buffer{}, "error"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"hub" is not installed`)
}

func TestNewApp_MissingGuardsFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	_, err := newApp(context.Background(), loadConfig(), newLogger(&bytes.Buffer{}, "error"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opguard install")
}
