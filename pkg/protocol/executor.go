// Package protocol defines the contracts between the schedule engine and its
// external collaborators.
package protocol

import (
	"context"
	"log/slog"

	"github.com/bevelworks/cadent/pkg/models"
)

// ExecutionRequest carries everything an action executor needs for one
// record: the resolved action, the record itself, the owning agent's loaded
// context and the schedule that triggered the run.
type ExecutionRequest struct {
	Action     *models.Action
	Record     *models.Record
	Agent      *models.AgentContext
	ScheduleID string
}

// ActionExecutor performs the actual work of an action against a single
// record: AI reasoning calls, web requests, code execution. The engine treats
// it as an opaque synchronous operation; a returned error marks that one
// record as failed and never aborts sibling records or later steps.
type ActionExecutor interface {
	Execute(ctx context.Context, req ExecutionRequest, logger *slog.Logger) (any, error)
}
