package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bevelworks/cadent/pkg/models"
	"github.com/bevelworks/cadent/pkg/store"
)

// Ledger persists run bookkeeping after a schedule executes. Updating the
// timestamps is what makes scanning idempotent: a schedule that just ran
// stops being due until its interval elapses again, and a once schedule is
// paused so it never comes back.
type Ledger struct {
	store  store.Store
	logger *slog.Logger
}

func NewLedger(st store.Store, logger *slog.Logger) *Ledger {
	return &Ledger{
		store:  st,
		logger: logger.With("module", "ledger"),
	}
}

// RecordRun stamps the schedule with its run time and reschedules it. The
// update happens regardless of how many records failed; execution outcome
// never influences the cadence.
func (l *Ledger) RecordRun(ctx context.Context, schedule *models.Schedule, ranAt time.Time) error {
	ranAt = ranAt.UTC()
	schedule.LastRunAt = &ranAt

	if schedule.Mode == models.ScheduleModeOnce {
		schedule.Status = models.ScheduleStatusPaused
		schedule.NextRunAt = nil
	} else {
		nextRun := schedule.NextRunAfter(ranAt)
		schedule.NextRunAt = &nextRun
	}

	if err := l.store.SaveSchedule(ctx, schedule); err != nil {
		return fmt.Errorf("failed to record run for schedule %s: %w", schedule.ID, err)
	}

	l.logger.InfoContext(ctx, "Recorded schedule run",
		"schedule_id", schedule.ID,
		"mode", schedule.Mode,
		"status", schedule.Status,
		"last_run_at", schedule.LastRunAt,
		"next_run_at", schedule.NextRunAt)

	return nil
}
