package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rendis/opguard/internal/actions"
	"github.com/rendis/opguard/internal/engine"
	"github.com/rendis/opguard/internal/guard"
	"github.com/rendis/opguard/internal/guards"
	"github.com/rendis/opguard/internal/logging"
	"github.com/rendis/opguard/internal/store"
	"github.com/rendis/opguard/internal/validation"
)

// app is the wired object graph shared by the subcommands.
type app struct {
	cfg      Config
	logger   *slog.Logger
	registry *actions.Registry
	store    store.Store // nil when the invocation log is disabled
	invoker  *engine.Invoker
}

func newLogger(w io.Writer, level string) *slog.Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: logging.ParseLevel(level)})
	return slog.New(logging.NewCorrelationHandler(h))
}

// newApp loads the guards file, registers the guard actions and opens the
// invocation log. Nothing is registered when any guard fails to load.
func newApp(ctx context.Context, cfg Config, logger *slog.Logger) (*app, error) {
	_, remoteTimeout, err := cfg.durations()
	if err != nil {
		return nil, err
	}

	defs, err := readDefinitions(cfg.GuardsFile)
	if err != nil {
		return nil, err
	}

	validator := validation.NewSchemaValidator()
	catalog := guard.NewCatalog()
	if err := guards.RegisterBuiltins(catalog, guards.Options{
		Remote:    guards.RemoteConfig{Timeout: remoteTimeout},
		Validator: validator,
	}); err != nil {
		return nil, err
	}

	registry := actions.NewRegistry()
	if err := actions.RegisterGuards(registry, catalog, defs); err != nil {
		return nil, err
	}
	logger.Debug("guards loaded", "count", len(defs), "actions", registry.Count())

	a := &app{cfg: cfg, logger: logger, registry: registry}

	icfg := engine.InvokerConfig{Validator: validator, Logger: logger}
	if dsn := cfg.dsn(); dsn != "" {
		s, err := openStore(ctx, cfg.DBPath, dsn)
		if err != nil {
			return nil, err
		}
		a.store = s
		icfg.Recorder = s
	}
	a.invoker = engine.NewInvoker(registry, icfg)
	return a, nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("close store", "error", err)
		}
	}
}

func readDefinitions(path string) ([]guard.Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("guards file %s not found; run 'opguard install' or set OPGUARD_GUARDS_FILE", path)
		}
		return nil, err
	}
	defer f.Close()

	defs, err := guard.ParseDefinitions(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

func openStore(ctx context.Context, path, dsn string) (store.Store, error) {
	if dir := filepath.Dir(strings.TrimPrefix(path, "file:")); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	s, err := store.NewLibSQLStore(dsn)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate invocation log: %w", err)
	}
	return s, nil
}
