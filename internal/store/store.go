package store

import (
	"context"
	"time"
)

// Store records guard action invocations.
// All implementations must be safe for concurrent use.
type Store interface {
	RecordInvocation(ctx context.Context, inv *Invocation) error
	GetInvocation(ctx context.Context, id string) (*Invocation, error)
	ListInvocations(ctx context.Context, filter InvocationFilter) ([]*Invocation, error)
	// PruneInvocations deletes invocations created before the cutoff and
	// returns how many were removed.
	PruneInvocations(ctx context.Context, before time.Time) (int64, error)

	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error
	Close() error
}
