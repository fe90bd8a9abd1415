// Package models defines the core domain models for the agent schedule engine.
package models

import (
	"strings"
	"time"
)

// Agent is the owner of data models, actions and schedules.
type Agent struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"        validate:"required,min=3"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// AgentContext is the fully loaded model/action graph of one agent.
// The orchestrator loads it once per schedule run and resolves step
// references against it, so steps never trigger further definition fetches.
type AgentContext struct {
	Agent   *Agent       `json:"agent"`
	Models  []*DataModel `json:"models"`
	Actions []*Action    `json:"actions"`
}

// ModelByRef resolves a data model by id, falling back to a case-insensitive
// name lookup. Older schedules reference models by name only.
func (c *AgentContext) ModelByRef(id, name string) (*DataModel, bool) {
	if id != "" {
		for _, m := range c.Models {
			if m.ID == id {
				return m, true
			}
		}
	}

	if name != "" {
		for _, m := range c.Models {
			if strings.EqualFold(m.Name, name) {
				return m, true
			}
		}
	}

	return nil, false
}

// ActionByRef resolves an action by id with the same name fallback rule as
// ModelByRef.
func (c *AgentContext) ActionByRef(id, name string) (*Action, bool) {
	if id != "" {
		for _, a := range c.Actions {
			if a.ID == id {
				return a, true
			}
		}
	}

	if name != "" {
		for _, a := range c.Actions {
			if strings.EqualFold(a.Name, name) {
				return a, true
			}
		}
	}

	return nil, false
}
