package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bevelworks/cadent/pkg/models"
	"github.com/bevelworks/cadent/pkg/runlock"
	"github.com/bevelworks/cadent/pkg/tracer"
)

// ErrScanInProgress is returned when another scan currently holds the run
// lock. Callers should treat it as a benign conflict and retry later.
var ErrScanInProgress = errors.New("a schedule scan is already in progress")

// DefaultScheduleWorkers bounds how many due schedules execute concurrently
// within one scan.
const DefaultScheduleWorkers = 2

// Config tunes the scan pipeline. Zero values fall back to the documented
// defaults.
type Config struct {
	MaxSchedules    int
	ScheduleWorkers int
	RecordWorkers   int
}

// ScheduleStatus is the status endpoint's view of one candidate schedule.
type ScheduleStatus struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	AgentID       string     `json:"agent_id"`
	Mode          string     `json:"mode"`
	IntervalHours float64    `json:"interval_hours"`
	Status        string     `json:"status"`
	DueState      string     `json:"due_state"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	NextRunAt     *time.Time `json:"next_run_at,omitempty"`
	StepCount     int        `json:"step_count"`
}

// Service composes the scanner, runner and ledger into the scan pipeline
// behind the trigger endpoint.
type Service struct {
	scanner *Scanner
	runner  *Runner
	ledger  *Ledger
	lock    *runlock.Lock
	tracer  trace.Tracer
	logger  *slog.Logger
	config  Config
}

func NewService(
	scanner *Scanner,
	runner *Runner,
	ledger *Ledger,
	lock *runlock.Lock,
	trc trace.Tracer,
	logger *slog.Logger,
	config Config,
) *Service {
	if config.MaxSchedules <= 0 {
		config.MaxSchedules = DefaultMaxSchedules
	}

	if config.ScheduleWorkers <= 0 {
		config.ScheduleWorkers = DefaultScheduleWorkers
	}

	return &Service{
		scanner: scanner,
		runner:  runner,
		ledger:  ledger,
		lock:    lock,
		tracer:  trc,
		logger:  logger.With("module", "scheduler"),
		config:  config,
	}
}

// Status reports the candidate schedules without executing anything, for
// operator inspection of what the next scan would consider.
func (s *Service) Status(ctx context.Context, agentID string, now time.Time) ([]ScheduleStatus, error) {
	candidates, err := s.scanner.Candidates(ctx, s.config.MaxSchedules, agentID)
	if err != nil {
		return nil, err
	}

	statuses := make([]ScheduleStatus, 0, len(candidates))

	for _, schedule := range candidates {
		statuses = append(statuses, ScheduleStatus{
			ID:            schedule.ID,
			Name:          schedule.Name,
			AgentID:       schedule.AgentID,
			Mode:          string(schedule.Mode),
			IntervalHours: schedule.IntervalHours,
			Status:        string(schedule.Status),
			DueState:      schedule.DueState(now),
			LastRunAt:     schedule.LastRunAt,
			NextRunAt:     schedule.NextRunAt,
			StepCount:     len(schedule.Steps),
		})
	}

	return statuses, nil
}

// RunDue executes one scan tick: discover due schedules, run each one and
// record the run. When a run lock is configured, concurrent ticks are
// rejected with ErrScanInProgress instead of scanning twice.
func (s *Service) RunDue(ctx context.Context, agentID string, now time.Time) (*models.ScanReport, error) {
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx)
		if err != nil {
			return nil, err
		}

		if !acquired {
			return nil, ErrScanInProgress
		}

		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
				s.logger.WarnContext(ctx, "Failed to release scan lock", "error", err)
			}
		}()
	}

	startedAt := time.Now().UTC()

	report := &models.ScanReport{
		ScanID:    "scan-" + uuid.New().String()[:8],
		StartedAt: startedAt,
	}

	ctx, span := tracer.StartSpan(ctx, s.tracer, "schedule.scan",
		attribute.String(tracer.ScanIDKey, report.ScanID),
		attribute.String(tracer.AgentIDKey, agentID),
	)
	defer span.End()

	due, err := s.scanner.ScanDue(ctx, s.config.MaxSchedules, agentID, now)
	if err != nil {
		tracer.SetError(span, err)

		return nil, err
	}

	report.Total = len(due)
	report.Results = s.runAll(ctx, due, now)

	for i := range report.Results {
		if report.Results[i].Recorded {
			report.Executed++
		}
	}

	report.DurationMs = time.Since(startedAt).Milliseconds()

	s.logger.InfoContext(ctx, "Scan finished",
		"scan_id", report.ScanID,
		"total", report.Total,
		"executed", report.Executed,
		"duration_ms", report.DurationMs)

	return report, nil
}

// runAll executes the due schedules with bounded concurrency. Result order
// matches the deterministic scan order, not completion order.
func (s *Service) runAll(ctx context.Context, due []*models.Schedule, now time.Time) []models.ScheduleResult {
	if len(due) == 0 {
		return nil
	}

	results := make([]models.ScheduleResult, len(due))

	var wg sync.WaitGroup

	sem := make(chan struct{}, s.config.ScheduleWorkers)

	for i, schedule := range due {
		sem <- struct{}{}

		wg.Add(1)

		go func(i int, schedule *models.Schedule) {
			defer wg.Done()
			defer func() { <-sem }()

			results[i] = s.runOne(ctx, schedule, now)
		}(i, schedule)
	}

	wg.Wait()

	return results
}

// runOne runs a single schedule and records the run. Cancelled and
// schedule-fatal runs skip the ledger so the schedule stays due and is
// retried on the next tick.
func (s *Service) runOne(ctx context.Context, schedule *models.Schedule, now time.Time) models.ScheduleResult {
	result := s.runner.RunSchedule(ctx, schedule)

	if result.Cancelled {
		s.logger.WarnContext(ctx, "Run cancelled; leaving schedule due for retry",
			"schedule_id", schedule.ID, "run_id", result.RunID)

		return result
	}

	if result.Error != "" && len(result.Steps) == 0 {
		// Schedule-fatal: nothing executed, do not consume the due slot.
		return result
	}

	result.Recorded = true

	if err := s.ledger.RecordRun(context.WithoutCancel(ctx), schedule, now); err != nil {
		s.logger.ErrorContext(ctx, "Failed to record run",
			"schedule_id", schedule.ID,
			"run_id", result.RunID,
			"error", err)
	}

	return result
}
