package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/opguard/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path.
// The path should be a file URI, e.g. "file:/path/to/opguard.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows, hence QueryRow.
	for _, p := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	} {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// RecordInvocation inserts inv, assigning an ID and timestamp when unset.
func (s *LibSQLStore) RecordInvocation(ctx context.Context, inv *Invocation) error {
	if inv == nil || inv.Action == "" {
		return schema.NewError(schema.ErrCodeValidation, "invocation action is empty")
	}
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invocations (id, action, guard, outcome, fixed, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.Action, inv.Guard, inv.Outcome, boolToInt(inv.Fixed), inv.Error, inv.DurationMs,
		inv.CreatedAt.UnixNano(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return schema.NewErrorf(schema.ErrCodeConflict, "invocation %q already recorded", inv.ID).WithCause(err)
		}
		return schema.NewError(schema.ErrCodeStore, "record invocation").WithCause(err)
	}
	return nil
}

// GetInvocation returns a single invocation by ID.
func (s *LibSQLStore) GetInvocation(ctx context.Context, id string) (*Invocation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, action, guard, outcome, fixed, error, duration_ms, created_at
		 FROM invocations WHERE id = ?`, id)
	inv, err := scanInvocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "invocation %q not found", id)
	}
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "get invocation").WithCause(err)
	}
	return inv, nil
}

// ListInvocations returns invocations matching filter, newest first.
func (s *LibSQLStore) ListInvocations(ctx context.Context, filter InvocationFilter) ([]*Invocation, error) {
	var (
		where []string
		args  []any
	)
	if filter.Action != "" {
		where = append(where, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.Guard != "" {
		where = append(where, "guard = ?")
		args = append(args, filter.Guard)
	}
	if filter.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, filter.Outcome)
	}
	if filter.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, filter.Since.UnixNano())
	}

	q := `SELECT id, action, guard, outcome, fixed, error, duration_ms, created_at FROM invocations`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "list invocations").WithCause(err)
	}
	defer rows.Close()

	var out []*Invocation
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			return nil, schema.NewError(schema.ErrCodeStore, "scan invocation").WithCause(err)
		}
		out = append(out, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "list invocations").WithCause(err)
	}
	return out, nil
}

// PruneInvocations deletes invocations created before the cutoff.
func (s *LibSQLStore) PruneInvocations(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM invocations WHERE created_at < ?`, before.UnixNano())
	if err != nil {
		return 0, schema.NewError(schema.ErrCodeStore, "prune invocations").WithCause(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, schema.NewError(schema.ErrCodeStore, "prune invocations").WithCause(err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInvocation(sc scanner) (*Invocation, error) {
	var (
		inv     Invocation
		fixed   int64
		created int64
	)
	if err := sc.Scan(&inv.ID, &inv.Action, &inv.Guard, &inv.Outcome, &fixed, &inv.Error, &inv.DurationMs, &created); err != nil {
		return nil, err
	}
	inv.Fixed = fixed != 0
	inv.CreatedAt = time.Unix(0, created).UTC()
	return &inv, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

var _ Store = (*LibSQLStore)(nil)
