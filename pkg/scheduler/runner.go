package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bevelworks/cadent/pkg/events"
	"github.com/bevelworks/cadent/pkg/eventbus"
	"github.com/bevelworks/cadent/pkg/filter"
	"github.com/bevelworks/cadent/pkg/models"
	"github.com/bevelworks/cadent/pkg/protocol"
	"github.com/bevelworks/cadent/pkg/store"
	"github.com/bevelworks/cadent/pkg/tracer"
)

// DefaultRecordWorkers bounds the per-step record fan-out. The limit is a
// tunable, not a correctness requirement; it keeps a single step from
// overwhelming the action executor's downstream dependencies.
const DefaultRecordWorkers = 4

// Runner executes one due schedule: it loads the agent context once, walks
// the steps strictly in order and fans out the action executor per matching
// record with per-record failure isolation.
type Runner struct {
	store         store.Store
	executor      protocol.ActionExecutor
	eventBus      eventbus.EventPublisher
	tracer        trace.Tracer
	logger        *slog.Logger
	recordWorkers int
}

func NewRunner(
	st store.Store,
	executor protocol.ActionExecutor,
	eventBus eventbus.EventPublisher,
	trc trace.Tracer,
	logger *slog.Logger,
	recordWorkers int,
) *Runner {
	if recordWorkers <= 0 {
		recordWorkers = DefaultRecordWorkers
	}

	return &Runner{
		store:         st,
		executor:      executor,
		eventBus:      eventBus,
		tracer:        trc,
		logger:        logger.With("module", "runner"),
		recordWorkers: recordWorkers,
	}
}

// RunSchedule executes every step of a schedule and returns a structured
// result. Failures are data: per-record and per-step errors land in the
// result, and only a failure to load the agent context at all is
// schedule-fatal. The result is always usable by the caller, even when every
// unit failed.
func (r *Runner) RunSchedule(ctx context.Context, schedule *models.Schedule) models.ScheduleResult {
	startedAt := time.Now().UTC()

	result := models.ScheduleResult{
		RunID:        generateRunID(),
		ScheduleID:   schedule.ID,
		ScheduleName: schedule.Name,
		AgentID:      schedule.AgentID,
		StartedAt:    startedAt,
	}

	logger := r.logger.With(
		"schedule_id", schedule.ID,
		"agent_id", schedule.AgentID,
		"run_id", result.RunID,
	)

	ctx, span := tracer.StartSpan(ctx, r.tracer, "schedule.run",
		attribute.String(tracer.ScheduleIDKey, schedule.ID),
		attribute.String(tracer.ScheduleNameKey, schedule.Name),
		attribute.String(tracer.AgentIDKey, schedule.AgentID),
		attribute.String(tracer.RunIDKey, result.RunID),
	)
	defer span.End()

	logger.InfoContext(ctx, "Starting schedule execution", "steps", len(schedule.Steps))

	r.publish(ctx, schedule.AgentID, events.ScheduleTriggered{
		BaseEvent:    events.NewBaseEvent(events.ScheduleTriggeredEvent, schedule.AgentID, schedule.ID),
		RunID:        result.RunID,
		ScheduleName: schedule.Name,
		StepCount:    len(schedule.Steps),
	})

	agentCtx, err := r.store.AgentContext(ctx, schedule.AgentID)
	if err != nil {
		// Schedule-fatal: without model/action definitions no step can run.
		result.Success = false
		result.Error = fmt.Sprintf("failed to load agent context: %v", err)
		result.DurationMs = time.Since(startedAt).Milliseconds()

		tracer.SetError(span, err)
		logger.ErrorContext(ctx, "Failed to load agent context", "error", err)

		r.publish(ctx, schedule.AgentID, events.ScheduleFailed{
			BaseEvent: events.NewBaseEvent(events.ScheduleFailedEvent, schedule.AgentID, schedule.ID),
			RunID:     result.RunID,
			Error:     result.Error,
			Duration:  time.Since(startedAt),
		})

		return result
	}

	processed, failed := 0, 0

	for _, step := range schedule.SortedSteps() {
		if ctx.Err() != nil {
			result.Cancelled = true
			result.Error = fmt.Sprintf("execution cancelled: %v", ctx.Err())

			break
		}

		stepResult := r.runStep(ctx, logger, agentCtx, schedule, step, result.RunID)
		result.Steps = append(result.Steps, stepResult)

		processed += stepResult.Succeeded
		failed += stepResult.Failed
	}

	if ctx.Err() != nil && !result.Cancelled {
		// The deadline fired during the last step's fan-out.
		result.Cancelled = true
		result.Error = fmt.Sprintf("execution cancelled: %v", ctx.Err())
	}

	result.Success = !result.Cancelled && failed == 0 && stepsResolved(result.Steps)
	result.DurationMs = time.Since(startedAt).Milliseconds()

	logger.InfoContext(ctx, "Schedule execution finished",
		"success", result.Success,
		"steps", len(result.Steps),
		"processed", processed,
		"failed", failed,
		"cancelled", result.Cancelled)

	r.publish(ctx, schedule.AgentID, events.ScheduleFinished{
		BaseEvent: events.NewBaseEvent(events.ScheduleFinishedEvent, schedule.AgentID, schedule.ID),
		RunID:     result.RunID,
		Success:   result.Success,
		Steps:     len(result.Steps),
		Processed: processed,
		Failed:    failed,
		Duration:  time.Since(startedAt),
	})

	return result
}

// runStep executes one step in isolation: resolution or fetch errors are
// recorded on the step result and never abort the schedule.
func (r *Runner) runStep(
	ctx context.Context,
	logger *slog.Logger,
	agentCtx *models.AgentContext,
	schedule *models.Schedule,
	step *models.ScheduleStep,
	runID string,
) models.StepResult {
	result := models.StepResult{StepID: step.ID, Order: step.Order}

	ctx, span := tracer.StartSpan(ctx, r.tracer, "schedule.step",
		attribute.Int(tracer.StepOrderKey, step.Order),
		attribute.String(tracer.ScheduleIDKey, schedule.ID),
	)
	defer span.End()

	model, ok := agentCtx.ModelByRef(step.ModelID, step.ModelName)
	if !ok {
		result.Error = fmt.Sprintf("model not found: id=%q name=%q", step.ModelID, step.ModelName)
		logger.WarnContext(ctx, "Step model unresolved", "order", step.Order, "error", result.Error)

		return result
	}

	result.ModelName = model.Name

	action, ok := agentCtx.ActionByRef(step.ActionID, step.ActionName)
	if !ok {
		result.Error = fmt.Sprintf("action not found: id=%q name=%q", step.ActionID, step.ActionName)
		logger.WarnContext(ctx, "Step action unresolved", "order", step.Order, "error", result.Error)

		return result
	}

	result.ActionName = action.Name

	records, err := r.store.RecordsByModel(ctx, model.ID)
	if err != nil {
		result.Error = fmt.Sprintf("failed to fetch records for model %s: %v", model.Name, err)

		tracer.SetError(span, err)
		logger.ErrorContext(ctx, "Step record fetch failed", "order", step.Order, "error", err)

		return result
	}

	result.Candidates = len(records)

	matched := make([]*models.Record, 0, len(records))

	for _, record := range records {
		if filter.Evaluate(record.Data, step.Query) {
			matched = append(matched, record)
		}
	}

	result.Matched = len(matched)

	logger.InfoContext(ctx, "Executing step",
		"order", step.Order,
		"model", model.Name,
		"action", action.Name,
		"candidates", result.Candidates,
		"matched", result.Matched)

	result.Records = r.fanOut(ctx, logger, agentCtx, schedule, action, matched, runID, step.ID)

	for _, record := range result.Records {
		if record.Status == models.OutcomeSuccess {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	return result
}

// fanOut invokes the action executor once per matching record, bounded by
// the worker limit. Records are independent: one failure never stops the
// siblings. On cancellation the remaining records are abandoned; only
// attempted records appear in the returned results.
func (r *Runner) fanOut(
	ctx context.Context,
	logger *slog.Logger,
	agentCtx *models.AgentContext,
	schedule *models.Schedule,
	action *models.Action,
	records []*models.Record,
	runID string,
	stepID string,
) []models.RecordResult {
	if len(records) == 0 {
		return nil
	}

	results := make([]models.RecordResult, len(records))
	attempted := make([]bool, len(records))

	var wg sync.WaitGroup

	sem := make(chan struct{}, r.recordWorkers)

	for i, record := range records {
		if ctx.Err() != nil {
			break
		}

		sem <- struct{}{}

		wg.Add(1)
		attempted[i] = true

		go func(i int, record *models.Record) {
			defer wg.Done()
			defer func() { <-sem }()

			results[i] = r.executeRecord(ctx, logger, agentCtx, schedule, action, record, runID, stepID)
		}(i, record)
	}

	wg.Wait()

	out := make([]models.RecordResult, 0, len(records))

	for i := range results {
		if attempted[i] {
			out = append(out, results[i])
		}
	}

	return out
}

func (r *Runner) executeRecord(
	ctx context.Context,
	logger *slog.Logger,
	agentCtx *models.AgentContext,
	schedule *models.Schedule,
	action *models.Action,
	record *models.Record,
	runID string,
	stepID string,
) (result models.RecordResult) {
	result.RecordID = record.ID

	// Executor panics are captured as per-record failures so one bad record
	// cannot take down the whole scan.
	defer func() {
		if rec := recover(); rec != nil {
			result.Status = models.OutcomeFailure
			result.Error = fmt.Sprintf("action executor panicked: %v", rec)

			r.reportRecordFailure(ctx, logger, schedule, action, record, runID, stepID, result.Error)
		}
	}()

	out, err := r.executor.Execute(ctx, protocol.ExecutionRequest{
		Action:     action,
		Record:     record,
		Agent:      agentCtx,
		ScheduleID: schedule.ID,
	}, logger.With("record_id", record.ID, "action_id", action.ID))
	if err != nil {
		result.Status = models.OutcomeFailure
		result.Error = err.Error()

		r.reportRecordFailure(ctx, logger, schedule, action, record, runID, stepID, result.Error)

		return result
	}

	result.Status = models.OutcomeSuccess
	result.Result = out

	return result
}

func (r *Runner) reportRecordFailure(
	ctx context.Context,
	logger *slog.Logger,
	schedule *models.Schedule,
	action *models.Action,
	record *models.Record,
	runID string,
	stepID string,
	errMsg string,
) {
	logger.WarnContext(ctx, "Record action failed",
		"record_id", record.ID,
		"action_id", action.ID,
		"error", errMsg)

	r.publish(ctx, schedule.AgentID, events.RecordActionFailed{
		BaseEvent: events.NewBaseEvent(events.RecordActionFailedEvent, schedule.AgentID, schedule.ID),
		RunID:     runID,
		StepID:    stepID,
		RecordID:  record.ID,
		ActionID:  action.ID,
		Error:     errMsg,
	})
}

func (r *Runner) publish(ctx context.Context, key string, event eventbus.Event) {
	if r.eventBus == nil {
		return
	}

	if err := r.eventBus.Publish(ctx, key, event); err != nil {
		r.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func stepsResolved(steps []models.StepResult) bool {
	for _, step := range steps {
		if step.Error != "" {
			return false
		}
	}

	return true
}

// generateRunID generates a unique run ID.
func generateRunID() string {
	return "run-" + uuid.New().String()[:8]
}
