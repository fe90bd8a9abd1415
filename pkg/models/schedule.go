package models

import (
	"sort"
	"time"
)

// ScheduleMode determines whether a schedule fires once or repeatedly.
type ScheduleMode string

const (
	ScheduleModeOnce      ScheduleMode = "once"
	ScheduleModeRecurring ScheduleMode = "recurring"
)

// ScheduleStatus is the lifecycle state of a schedule. Only active schedules
// are scanned; a once schedule is paused by the run ledger after its single
// scan-triggered execution.
type ScheduleStatus string

const (
	ScheduleStatusActive ScheduleStatus = "active"
	ScheduleStatusPaused ScheduleStatus = "paused"
)

// DefaultIntervalHours is assumed when a recurring schedule carries no
// interval of its own.
const DefaultIntervalHours = 24.0

// Schedule is one automation's timing configuration, owned by an agent.
type Schedule struct {
	ID      string       `json:"id"`
	AgentID string       `json:"agent_id" validate:"required"`
	Name    string       `json:"name"     validate:"required,min=3"`
	Mode    ScheduleMode `json:"mode"     validate:"required,oneof=once recurring"`

	// IntervalHours applies to recurring schedules only. Fractional hours
	// are allowed; arithmetic converts by multiplication, never rounding.
	IntervalHours float64 `json:"interval_hours,omitempty" validate:"omitempty,gt=0"`

	Status    ScheduleStatus  `json:"status"`
	LastRunAt *time.Time      `json:"last_run_at,omitempty"`
	NextRunAt *time.Time      `json:"next_run_at,omitempty"`
	Steps     []*ScheduleStep `json:"steps"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ScheduleStep is one (model, action, query) unit of work within a schedule.
// Model and action may be referenced by id or, for schedules authored before
// structured ids existed, by name.
type ScheduleStep struct {
	ID         string    `json:"id"`
	Order      int       `json:"order"`
	ModelID    string    `json:"model_id,omitempty"`
	ModelName  string    `json:"model_name,omitempty"`
	ActionID   string    `json:"action_id,omitempty"`
	ActionName string    `json:"action_name,omitempty"`
	Query      StepQuery `json:"query,omitempty"`
}

// Interval returns the configured run interval, applying the documented
// 24-hour fallback when the schedule carries none.
func (s *Schedule) Interval() time.Duration {
	hours := s.IntervalHours
	if hours <= 0 {
		hours = DefaultIntervalHours
	}

	return time.Duration(hours * float64(time.Hour))
}

// IsDue decides whether the schedule should run at now.
//
// Recurring schedules are due when they have never run or when the elapsed
// time since the last run meets the interval. Once schedules are due only
// until their first run; after that the ledger pauses them and the scanner
// never selects them again.
func (s *Schedule) IsDue(now time.Time) bool {
	if s.Status != ScheduleStatusActive {
		return false
	}

	if s.LastRunAt == nil {
		return true
	}

	if s.Mode == ScheduleModeOnce {
		return false
	}

	return now.Sub(*s.LastRunAt) >= s.Interval()
}

// NextRunAfter computes the next run time relative to a completed run at now.
func (s *Schedule) NextRunAfter(now time.Time) time.Time {
	return now.Add(s.Interval())
}

// Due-state labels reported by the status endpoint.
const (
	DueStateNotDue      = "not due"
	DueStateDueNeverRun = "due now (never run)"
	DueStateDueNow      = "due now"
	DueStateScheduled   = "scheduled"
)

// DueState renders a human-readable due description for status reporting.
func (s *Schedule) DueState(now time.Time) string {
	if s.IsDue(now) {
		if s.LastRunAt == nil {
			return DueStateDueNeverRun
		}

		return DueStateDueNow
	}

	if s.NextRunAt != nil && s.NextRunAt.After(now) {
		return DueStateScheduled
	}

	return DueStateNotDue
}

// SortedSteps returns the steps in ascending execution order. Order values
// are not required to be contiguous; ties keep their stored order.
func (s *Schedule) SortedSteps() []*ScheduleStep {
	steps := make([]*ScheduleStep, len(s.Steps))
	copy(steps, s.Steps)

	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Order < steps[j].Order
	})

	return steps
}
