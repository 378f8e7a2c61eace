// Package guard defines the validator contract consumed by guard-backed
// actions: a Guard checks (and optionally corrects) model output and answers
// with a Task that resolves to a Result.
package guard

import "context"

// Guard validates LLM output against a policy.
//
// Validate never blocks on the policy itself: it returns a Task which is either
// already resolved (Ready) or resolves later (Go). Callers obtain the Result
// through Task.Await.
type Guard interface {
	Validate(ctx context.Context, llmOutput string, metadata Metadata) *Task
}

// Func adapts an ordinary synchronous function to the Guard interface.
type Func func(ctx context.Context, llmOutput string, metadata Metadata) (*Result, error)

// Validate runs f and returns its result as an already-resolved Task.
func (f Func) Validate(ctx context.Context, llmOutput string, metadata Metadata) *Task {
	return Ready(f(ctx, llmOutput, metadata))
}

// AsyncFunc adapts a function that should run off the caller's goroutine.
type AsyncFunc func(ctx context.Context, llmOutput string, metadata Metadata) (*Result, error)

// Validate starts f in the background and returns a deferred Task.
func (f AsyncFunc) Validate(ctx context.Context, llmOutput string, metadata Metadata) *Task {
	return Go(func() (*Result, error) {
		return f(ctx, llmOutput, metadata)
	})
}

var (
	_ Guard = Func(nil)
	_ Guard = AsyncFunc(nil)
)
