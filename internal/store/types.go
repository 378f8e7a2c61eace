package store

import "time"

// Invocation is one execution of a registered action.
type Invocation struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	Guard      string    `json:"guard,omitempty"`
	Outcome    string    `json:"outcome,omitempty"`
	Fixed      bool      `json:"fixed,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// InvocationFilter narrows ListInvocations. Zero values match everything;
// Limit defaults to 100.
type InvocationFilter struct {
	Action  string
	Guard   string
	Outcome string
	Since   *time.Time
	Limit   int
	Offset  int
}
