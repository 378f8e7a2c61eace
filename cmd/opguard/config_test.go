package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv(string) string { return "" }

func TestLoadConfig_Defaults(t *testing.T) {
	dir := t.TempDir()
	cfg := loadConfigFrom(dir, noEnv)

	assert.Equal(t, filepath.Join(dir, "guards.yaml"), cfg.GuardsFile)
	assert.Equal(t, filepath.Join(dir, "opguard.db"), cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "0 * * * *", cfg.RetentionSchedule)

	retention, timeout, err := cfg.durations()
	require.NoError(t, err)
	assert.Equal(t, 168*time.Hour, retention)
	assert.Equal(t, 30*time.Second, timeout)
}

func TestLoadConfig_Layers(t *testing.T) {
	dir := t.TempDir()
	settings := `{"log_level":"debug","retention":"24h","db_path":"/tmp/x.db"}`
	require.NoError(t, os.WriteFile(settingsPath(dir), []byte(settings), 0o644))

	env := map[string]string{
		"OPGUARD_LOG_LEVEL":      "warn",
		"OPGUARD_REMOTE_TIMEOUT": "5s",
	}
	cfg := loadConfigFrom(dir, func(k string) string { return env[k] })

	assert.Equal(t, "warn", cfg.LogLevel, "env beats settings.json")
	assert.Equal(t, "24h", cfg.Retention, "settings.json beats defaults")
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)
	assert.Equal(t, "5s", cfg.RemoteTimeout)
}

func TestLoadConfig_BadSettingsIgnored(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(settingsPath(dir), []byte("{not json"), 0o644))
	cfg := loadConfigFrom(dir, noEnv)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestConfigDurations_Invalid(t *testing.T) {
	_, _, err := Config{Retention: "forever"}.durations()
	assert.ErrorContains(t, err, "retention")

	_, _, err = Config{RemoteTimeout: "soon"}.durations()
	assert.ErrorContains(t, err, "remote_timeout")
}

func TestConfigDSN(t *testing.T) {
	assert.Equal(t, "", Config{}.dsn())
	assert.Equal(t, "file:/a/b.db", Config{DBPath: "/a/b.db"}.dsn())
	assert.Equal(t, "file:/a/b.db", Config{DBPath: "file:/a/b.db"}.dsn())
}
