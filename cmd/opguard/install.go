package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

const sampleGuards = `# Guard definitions. Each guard registers <name>_fix and <name>_validate.
guards:
  - name: trimmed
    kind: expr
    config:
      fix: trim(text)
      rule: len(text) > 0
      message: output is empty
  - name: json_object
    kind: jsonschema
    config:
      schema:
        type: object
`

func runInstall(args []string) error {
	fs := flag.NewFlagSet("install", flag.ExitOnError)
	dir := fs.String("dir", opguardDir(), "configuration directory")
	dbPath := fs.String("db-path", "", "invocation log path (default: <dir>/opguard.db, \"\" with -no-log)")
	noLog := fs.Bool("no-log", false, "disable the invocation log")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")
	retention := fs.String("retention", "168h", "how long invocations are kept")
	force := fs.Bool("force", false, "overwrite an existing guards file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := os.MkdirAll(*dir, 0o700); err != nil {
		return fmt.Errorf("cannot create %s: %w", *dir, err)
	}

	cfg := defaultConfig(*dir)
	cfg.LogLevel = *logLevel
	cfg.Retention = *retention
	switch {
	case *noLog:
		cfg.DBPath = ""
	case *dbPath != "":
		cfg.DBPath = *dbPath
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	path := settingsPath(*dir)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("cannot write %s: %w", path, err)
	}
	fmt.Printf("Config written to %s\n", path)

	if _, err := os.Stat(cfg.GuardsFile); err == nil && !*force {
		fmt.Printf("Keeping existing %s\n", cfg.GuardsFile)
		return nil
	}
	if err := os.WriteFile(cfg.GuardsFile, []byte(sampleGuards), 0o644); err != nil {
		return fmt.Errorf("cannot write %s: %w", cfg.GuardsFile, err)
	}
	fmt.Printf("Sample guards written to %s\n", filepath.Clean(cfg.GuardsFile))
	return nil
}
