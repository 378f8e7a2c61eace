package guard

import "context"

// Task is a guard result that is either already available or still being
// computed. Await is the only way to read it, whichever way it was produced.
type Task struct {
	done   chan struct{}
	result *Result
	err    error
}

// Ready returns a Task that is already resolved.
func Ready(result *Result, err error) *Task {
	t := &Task{done: make(chan struct{}), result: result, err: err}
	close(t.done)
	return t
}

// Go runs fn in a new goroutine and returns a Task that resolves when fn returns.
// A panic in fn is not recovered.
func Go(fn func() (*Result, error)) *Task {
	t := &Task{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		t.result, t.err = fn()
	}()
	return t
}

// Await blocks until the task resolves. No timeout is applied; Await returns
// early only when ctx is cancelled by the caller.
//
// A nil Task, or one resolving to a nil Result without an error, yields an
// Indeterminate result so callers never dereference nil.
func (t *Task) Await(ctx context.Context) (*Result, error) {
	if t == nil {
		return &Result{Outcome: Indeterminate}, nil
	}
	select {
	case <-t.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if t.err != nil {
		return nil, t.err
	}
	if t.result == nil {
		return &Result{Outcome: Indeterminate}, nil
	}
	return t.result, nil
}

// Resolved reports whether the task has finished without blocking.
func (t *Task) Resolved() bool {
	if t == nil {
		return true
	}
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}
