// Package scheduler runs periodic maintenance of the invocation log.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner deletes invocations older than a cutoff. Satisfied by store.Store.
type Pruner interface {
	PruneInvocations(ctx context.Context, before time.Time) (int64, error)
}

// DefaultSchedule prunes once per hour.
const DefaultSchedule = "0 * * * *"

// Retention prunes the invocation log on a cron schedule, keeping only the
// entries younger than the retention window.
type Retention struct {
	pruner    Pruner
	retention time.Duration
	schedule  cron.Schedule
	logger    *slog.Logger
	now       func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRetention parses the 5-field cron expression and returns a stopped job.
// A non-positive retention disables pruning: Start becomes a no-op.
func NewRetention(p Pruner, expr string, retention time.Duration, logger *slog.Logger) (*Retention, error) {
	if expr == "" {
		expr = DefaultSchedule
	}
	sched, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retention{
		pruner:    p,
		retention: retention,
		schedule:  sched,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// ParseSchedule parses a standard 5-field cron expression.
func ParseSchedule(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}
	return sched, nil
}

// NextRun returns the first scheduled prune after from.
func (r *Retention) NextRun(from time.Time) time.Time {
	return r.schedule.Next(from)
}

// Start launches the background loop. It prunes once immediately, then on
// every scheduled tick until Stop or ctx cancellation.
func (r *Retention) Start(ctx context.Context) error {
	if r.retention <= 0 {
		r.logger.Info("invocation retention disabled")
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done != nil {
		return fmt.Errorf("retention job already started")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(loopCtx, r.done)

	r.logger.Info("retention job started", slog.Duration("retention", r.retention))
	return nil
}

func (r *Retention) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	r.RunOnce(ctx)
	for {
		now := r.now()
		timer := time.NewTimer(r.NextRun(now).Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce deletes everything older than now minus the retention window and
// returns the number of removed rows. Failures are logged, not returned.
func (r *Retention) RunOnce(ctx context.Context) int64 {
	cutoff := r.now().Add(-r.retention)
	n, err := r.pruner.PruneInvocations(ctx, cutoff)
	if err != nil {
		r.logger.Error("prune invocations failed", slog.String("error", err.Error()))
		return 0
	}
	if n > 0 {
		r.logger.Info("pruned invocations", slog.Int64("count", n), slog.Time("before", cutoff))
	}
	return n
}

// Stop cancels the loop and waits for it to exit.
func (r *Retention) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel == nil {
		return nil
	}
	r.cancel()
	<-r.done
	r.cancel = nil
	r.done = nil

	r.logger.Info("retention job stopped")
	return nil
}
