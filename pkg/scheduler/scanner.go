// Package scheduler implements the schedule execution engine: scanning for
// due schedules, orchestrating their steps and recording run bookkeeping.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/bevelworks/cadent/pkg/models"
	"github.com/bevelworks/cadent/pkg/store"
)

// DefaultMaxSchedules is the admission ceiling applied when no explicit
// limit is configured. It protects the action executor and its downstream
// APIs from unbounded fan-out on a single scan tick.
const DefaultMaxSchedules = 100

// Scanner discovers schedules that are due to run. It only reads; all
// mutation happens through the run ledger after execution.
type Scanner struct {
	store  store.Store
	logger *slog.Logger
}

func NewScanner(st store.Store, logger *slog.Logger) *Scanner {
	return &Scanner{
		store:  st,
		logger: logger.With("module", "scanner"),
	}
}

// Candidates returns the active recurring schedules subject to scanning,
// bounded by limit and optionally restricted to one agent. The store
// truncates in ascending id order, so admission is deterministic across
// ticks.
func (s *Scanner) Candidates(ctx context.Context, limit int, agentID string) ([]*models.Schedule, error) {
	if limit <= 0 {
		limit = DefaultMaxSchedules
	}

	return s.store.Schedules(ctx, store.ListSchedulesOptions{
		AgentID: agentID,
		Status:  models.ScheduleStatusActive,
		Mode:    models.ScheduleModeRecurring,
		Limit:   limit,
	})
}

// ScanDue partitions candidates into due and not-due at now and returns the
// due ones. Recurring schedules are due per their interval; a once schedule
// is admitted only until its first run, after which the ledger pauses it and
// it never reappears here.
func (s *Scanner) ScanDue(ctx context.Context, limit int, agentID string, now time.Time) ([]*models.Schedule, error) {
	if limit <= 0 {
		limit = DefaultMaxSchedules
	}

	candidates, err := s.store.Schedules(ctx, store.ListSchedulesOptions{
		AgentID: agentID,
		Status:  models.ScheduleStatusActive,
		Limit:   limit,
	})
	if err != nil {
		return nil, err
	}

	due := make([]*models.Schedule, 0, len(candidates))

	for _, schedule := range candidates {
		if schedule.IsDue(now) {
			due = append(due, schedule)
		}
	}

	s.logger.InfoContext(ctx, "Scanned schedules",
		"candidates", len(candidates),
		"due", len(due),
		"agent_id", agentID)

	return due, nil
}
