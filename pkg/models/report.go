package models

import "time"

// OutcomeStatus classifies a single per-record execution outcome.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailure OutcomeStatus = "failure"
)

// RecordResult is the outcome of one action invocation against one record.
type RecordResult struct {
	RecordID string        `json:"record_id"`
	Status   OutcomeStatus `json:"status"`
	Error    string        `json:"error,omitempty"`
	Result   any           `json:"result,omitempty"`
}

// StepResult aggregates the per-record outcomes of one schedule step.
// A step-level Error (model or action unresolved, record fetch failed) means
// no records were attempted for this step; the schedule still continues.
type StepResult struct {
	StepID     string         `json:"step_id,omitempty"`
	Order      int            `json:"order"`
	ModelName  string         `json:"model_name,omitempty"`
	ActionName string         `json:"action_name,omitempty"`
	Error      string         `json:"error,omitempty"`
	Candidates int            `json:"candidates"`
	Matched    int            `json:"matched"`
	Succeeded  int            `json:"succeeded"`
	Failed     int            `json:"failed"`
	Records    []RecordResult `json:"records,omitempty"`
}

// ScheduleResult is the full outcome of one schedule execution.
// Success means every attempted record succeeded and every step resolved;
// partial failures still produce a result, never an error from the runner.
type ScheduleResult struct {
	RunID        string       `json:"run_id"`
	ScheduleID   string       `json:"schedule_id"`
	ScheduleName string       `json:"schedule_name"`
	AgentID      string       `json:"agent_id"`
	Success      bool         `json:"success"`
	Error        string       `json:"error,omitempty"`
	Steps        []StepResult `json:"steps,omitempty"`
	// Cancelled marks a run interrupted by the caller's deadline. Remaining
	// records and steps were abandoned and the ledger was not updated, so
	// the schedule stays due and retries on the next tick.
	Cancelled bool `json:"cancelled,omitempty"`
	// Recorded reports whether the run ledger update was attempted for this
	// execution. Cancelled or schedule-fatal runs are left unrecorded so the
	// next tick retries them.
	Recorded   bool      `json:"recorded"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
}

// ScanReport is the transient per-invocation report handed back to the
// trigger caller. It is produced fresh on every scan and never persisted.
type ScanReport struct {
	ScanID     string           `json:"scan_id"`
	Total      int              `json:"total"`
	Executed   int              `json:"executed"`
	Results    []ScheduleResult `json:"results"`
	StartedAt  time.Time        `json:"started_at"`
	DurationMs int64            `json:"duration_ms"`
}
