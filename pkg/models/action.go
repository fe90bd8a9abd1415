package models

import "time"

// Action is an externally defined unit of work (AI call, web request, code
// execution) applied to one record at a time. The engine treats it as opaque
// configuration for the action executor.
type Action struct {
	ID            string         `json:"id"`
	AgentID       string         `json:"agent_id" validate:"required"`
	Name          string         `json:"name"     validate:"required"`
	Type          string         `json:"type"     validate:"required"`
	Configuration map[string]any `json:"configuration,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
