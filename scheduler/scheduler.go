// Package scheduler drives the periodic content refresh from a cron
// expression.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorhill/cronexpr"
)

// Refresher is anything that can run one refresh cycle.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Scheduler fires Refresh at every instant the cron expression matches.
type Scheduler struct {
	expr      *cronexpr.Expression
	refresher Refresher
	logger    *slog.Logger
}

// New parses the cron spec. Standard 5-field expressions and the
// @daily/@hourly shorthands are accepted.
func New(cronSpec string, refresher Refresher, logger *slog.Logger) (*Scheduler, error) {
	expr, err := cronexpr.Parse(cronSpec)
	if err != nil {
		return nil, fmt.Errorf("parse cron spec %q: %w", cronSpec, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{expr: expr, refresher: refresher, logger: logger}, nil
}

// Run blocks until the context is cancelled. A failed cycle is logged and
// the loop keeps going; the next scheduled run retries from scratch.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		now := time.Now()
		next := s.expr.Next(now)
		if next.IsZero() {
			s.logger.Warn("cron expression has no future activations, scheduler stopping")
			return nil
		}
		s.logger.Info("next refresh scheduled", "at", next.Format(time.RFC3339))

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		started := time.Now()
		if err := s.refresher.Refresh(ctx); err != nil {
			s.logger.Error("scheduled refresh failed", "error", err, "took", time.Since(started))
			continue
		}
		s.logger.Info("scheduled refresh completed", "took", time.Since(started))
	}
}
