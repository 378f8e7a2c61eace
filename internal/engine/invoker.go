// Package engine runs registered actions on behalf of the host: lookup,
// input checks, execution and the invocation log.
package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/opguard/internal/actions"
	"github.com/rendis/opguard/internal/logging"
	"github.com/rendis/opguard/internal/store"
	"github.com/rendis/opguard/internal/validation"
)

// Recorder persists one row per invocation. Satisfied by store.Store.
type Recorder interface {
	RecordInvocation(ctx context.Context, inv *store.Invocation) error
}

// InvokerConfig holds the optional collaborators of an Invoker.
type InvokerConfig struct {
	// Recorder receives an entry for every invocation. Nil disables the log.
	Recorder Recorder
	// Validator checks params against the action's input schema.
	// Nil creates a private one.
	Validator *validation.SchemaValidator
	Logger    *slog.Logger
}

// Result is what Invoke returns on success.
type Result struct {
	InvocationID string          `json:"invocation_id"`
	Action       string          `json:"action"`
	Output       json.RawMessage `json:"output"`
	DurationMs   int64           `json:"duration_ms"`
}

// Invoker executes actions from a registry by name.
type Invoker struct {
	registry  actions.ActionRegistry
	recorder  Recorder
	validator *validation.SchemaValidator
	logger    *slog.Logger
	now       func() time.Time
}

// NewInvoker creates an Invoker over registry.
func NewInvoker(registry actions.ActionRegistry, cfg InvokerConfig) *Invoker {
	v := cfg.Validator
	if v == nil {
		v = validation.NewSchemaValidator()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{
		registry:  registry,
		recorder:  cfg.Recorder,
		validator: v,
		logger:    logger,
		now:       time.Now,
	}
}

// Invoke looks up the named action, checks params and runs it. Errors from
// the action are returned unchanged after being logged and recorded.
func (inv *Invoker) Invoke(ctx context.Context, name string, params map[string]any) (*Result, error) {
	id := uuid.New().String()
	guardName, _ := actions.GuardNameOf(name)
	ctx = logging.WithIDs(ctx, guardName, name, id)
	log := logging.LogWith(ctx, inv.logger)

	action, err := inv.registry.Get(name)
	if err != nil {
		log.Warn("action lookup failed", "error", err)
		return nil, err
	}
	if params == nil {
		params = map[string]any{}
	}
	if err := inv.validator.ValidateValue(params, action.Schema().InputSchema); err != nil {
		log.Debug("params rejected by input schema", "error", err)
		return nil, err
	}
	if err := action.Validate(params); err != nil {
		log.Debug("params rejected by action", "error", err)
		return nil, err
	}

	start := inv.now()
	out, execErr := action.Execute(ctx, actions.ActionInput{
		Params:  params,
		Context: map[string]any{"invocation_id": id, "guard": guardName},
	})
	elapsed := inv.now().Sub(start)

	entry := &store.Invocation{
		ID:         id,
		Action:     name,
		Guard:      guardName,
		DurationMs: elapsed.Milliseconds(),
		CreatedAt:  start.UTC(),
	}
	var data json.RawMessage
	if out != nil {
		data = out.Data
	}
	if execErr != nil {
		entry.Error = execErr.Error()
	} else {
		entry.Outcome, entry.Fixed = summarize(data)
	}
	inv.record(ctx, log, entry)

	if execErr != nil {
		log.Warn("action failed", "duration_ms", entry.DurationMs, "error", execErr)
		return nil, execErr
	}
	log.Info("action completed", "outcome", entry.Outcome, "duration_ms", entry.DurationMs)

	return &Result{
		InvocationID: id,
		Action:       name,
		Output:       data,
		DurationMs:   entry.DurationMs,
	}, nil
}

// record is best effort: a failing log never fails the invocation.
func (inv *Invoker) record(ctx context.Context, log *slog.Logger, entry *store.Invocation) {
	if inv.recorder == nil {
		return
	}
	if err := inv.recorder.RecordInvocation(context.WithoutCancel(ctx), entry); err != nil {
		log.Error("record invocation", "error", err)
	}
}

// summarize pulls the outcome and fixed flag out of a guard action payload.
// Payloads of other actions yield zero values.
func summarize(data json.RawMessage) (outcome string, fixed bool) {
	if len(data) == 0 {
		return "", false
	}
	var probe struct {
		Outcome string `json:"outcome"`
		Fixed   bool   `json:"fixed"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return "", false
	}
	return probe.Outcome, probe.Fixed
}
