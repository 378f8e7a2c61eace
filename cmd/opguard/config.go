package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rendis/opguard/internal/scheduler"
)

// Config holds all opguard configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	GuardsFile        string `json:"guards_file"`
	DBPath            string `json:"db_path"`
	LogLevel          string `json:"log_level"`
	Retention         string `json:"retention"`
	RetentionSchedule string `json:"retention_schedule"`
	RemoteTimeout     string `json:"remote_timeout"`
}

func defaultConfig(dir string) Config {
	return Config{
		GuardsFile:        filepath.Join(dir, "guards.yaml"),
		DBPath:            filepath.Join(dir, "opguard.db"),
		LogLevel:          "info",
		Retention:         "168h",
		RetentionSchedule: scheduler.DefaultSchedule,
		RemoteTimeout:     "30s",
	}
}

func opguardDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".opguard"
	}
	return filepath.Join(home, ".opguard")
}

func settingsPath(dir string) string {
	return filepath.Join(dir, "settings.json")
}

func loadConfig() Config {
	return loadConfigFrom(opguardDir(), os.Getenv)
}

func loadConfigFrom(dir string, getenv func(string) string) Config {
	cfg := defaultConfig(dir)

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath(dir)); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	for env, field := range map[string]*string{
		"OPGUARD_GUARDS_FILE":        &cfg.GuardsFile,
		"OPGUARD_DB_PATH":            &cfg.DBPath,
		"OPGUARD_LOG_LEVEL":          &cfg.LogLevel,
		"OPGUARD_RETENTION":          &cfg.Retention,
		"OPGUARD_RETENTION_SCHEDULE": &cfg.RetentionSchedule,
		"OPGUARD_REMOTE_TIMEOUT":     &cfg.RemoteTimeout,
	} {
		if v := getenv(env); v != "" {
			*field = v
		}
	}
	return cfg
}

// durations parses the duration fields. An empty retention or "0" disables
// pruning.
func (c Config) durations() (retention, remoteTimeout time.Duration, err error) {
	if c.Retention != "" {
		if retention, err = time.ParseDuration(c.Retention); err != nil {
			return 0, 0, fmt.Errorf("invalid retention %q: %w", c.Retention, err)
		}
	}
	if c.RemoteTimeout != "" {
		if remoteTimeout, err = time.ParseDuration(c.RemoteTimeout); err != nil {
			return 0, 0, fmt.Errorf("invalid remote_timeout %q: %w", c.RemoteTimeout, err)
		}
	}
	return retention, remoteTimeout, nil
}

// dsn turns DBPath into a libsql file URI. An empty path disables the log.
func (c Config) dsn() string {
	switch {
	case c.DBPath == "":
		return ""
	case strings.HasPrefix(c.DBPath, "file:"):
		return c.DBPath
	default:
		return "file:" + c.DBPath
	}
}
