package logging

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	guardKey ctxKey = iota
	actionKey
	invocationIDKey
)

// WithGuard returns a context with the guard name set.
func WithGuard(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, guardKey, name)
}

// WithAction returns a context with the action name set.
func WithAction(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, actionKey, name)
}

// WithInvocationID returns a context with the invocation ID set.
func WithInvocationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, invocationIDKey, id)
}

// Guard extracts the guard name from the context, or "" if absent.
func Guard(ctx context.Context) string {
	v, _ := ctx.Value(guardKey).(string)
	return v
}

// Action extracts the action name from the context, or "" if absent.
func Action(ctx context.Context) string {
	v, _ := ctx.Value(actionKey).(string)
	return v
}

// InvocationID extracts the invocation ID from the context, or "" if absent.
func InvocationID(ctx context.Context) string {
	v, _ := ctx.Value(invocationIDKey).(string)
	return v
}

// WithIDs sets all correlation values on the context at once.
func WithIDs(ctx context.Context, guard, action, invocationID string) context.Context {
	ctx = WithGuard(ctx, guard)
	ctx = WithAction(ctx, action)
	ctx = WithInvocationID(ctx, invocationID)
	return ctx
}

func attrs(ctx context.Context) []slog.Attr {
	var out []slog.Attr
	if v := Guard(ctx); v != "" {
		out = append(out, slog.String("guard", v))
	}
	if v := Action(ctx); v != "" {
		out = append(out, slog.String("action", v))
	}
	if v := InvocationID(ctx); v != "" {
		out = append(out, slog.String("invocation_id", v))
	}
	return out
}

// LogWith returns a logger enriched with the correlation values from ctx.
// Only non-empty values are added.
func LogWith(ctx context.Context, logger *slog.Logger) *slog.Logger {
	for _, a := range attrs(ctx) {
		logger = logger.With(a)
	}
	return logger
}

// CorrelationHandler wraps an slog.Handler and injects the correlation values
// from the context into every record, so logger.InfoContext(ctx, ...) carries
// them without LogWith.
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps the given handler.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(attrs(ctx)...)
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}

// ParseLevel maps a config string onto an slog level; unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
