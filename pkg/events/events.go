// Package events defines event types for schedule execution lifecycle
// notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries all schedule execution events.
const Topic = "cadent.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ScheduleTriggeredEvent  EventType = "schedule.triggered"
	ScheduleFinishedEvent   EventType = "schedule.finished"
	ScheduleFailedEvent     EventType = "schedule.failed"
	RecordActionFailedEvent EventType = "record.action.failed"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	AgentID    string         `json:"agent_id"`
	ScheduleID string         `json:"schedule_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ScheduleTriggered is published when a due schedule starts executing.
type ScheduleTriggered struct {
	BaseEvent

	RunID        string `json:"run_id"`
	ScheduleName string `json:"schedule_name"`
	StepCount    int    `json:"step_count"`
}

func (e ScheduleTriggered) GetType() EventType {
	return ScheduleTriggeredEvent
}

// ScheduleFinished is published after a schedule run completes, including
// runs with partial per-record failures.
type ScheduleFinished struct {
	BaseEvent

	RunID     string        `json:"run_id"`
	Success   bool          `json:"success"`
	Steps     int           `json:"steps"`
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

func (e ScheduleFinished) GetType() EventType {
	return ScheduleFinishedEvent
}

// ScheduleFailed is published when a run is schedule-fatal: the agent context
// could not be loaded and no steps were attempted.
type ScheduleFailed struct {
	BaseEvent

	RunID    string        `json:"run_id"`
	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

func (e ScheduleFailed) GetType() EventType {
	return ScheduleFailedEvent
}

// RecordActionFailed is published once per record whose action invocation
// failed.
type RecordActionFailed struct {
	BaseEvent

	RunID    string `json:"run_id"`
	StepID   string `json:"step_id,omitempty"`
	RecordID string `json:"record_id"`
	ActionID string `json:"action_id,omitempty"`
	Error    string `json:"error"`
}

func (e RecordActionFailed) GetType() EventType {
	return RecordActionFailedEvent
}

func NewBaseEvent(eventType EventType, agentID, scheduleID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		AgentID:    agentID,
		ScheduleID: scheduleID,
		Metadata:   make(map[string]any),
	}
}
