// Package web provides HTTP request and response types for the trigger API.
package web

// RunSchedulesRequest is the optional body of the manual trigger endpoint.
// An empty body (or empty agent id) scans across all agents.
type RunSchedulesRequest struct {
	AgentID string `json:"agent_id"`

	// AgentIDCamel accepts the camelCase spelling used by existing trigger
	// callers.
	AgentIDCamel string `json:"agentId"`
}

// ScopeAgentID returns the requested agent scope, preferring the snake_case
// field when both spellings are set.
func (r RunSchedulesRequest) ScopeAgentID() string {
	if r.AgentID != "" {
		return r.AgentID
	}

	return r.AgentIDCamel
}
