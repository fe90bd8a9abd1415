// Package logexec provides a debug action executor that only logs its input.
// It keeps the engine runnable end-to-end when no real executor is wired.
package logexec

import (
	"context"
	"log/slog"

	"github.com/bevelworks/cadent/pkg/protocol"
)

type Executor struct{}

func New() *Executor {
	return &Executor{}
}

func (e *Executor) Execute(_ context.Context, req protocol.ExecutionRequest, logger *slog.Logger) (any, error) {
	logger.Info("Executing action",
		"action_id", req.Action.ID,
		"action_type", req.Action.Type,
		"record_id", req.Record.ID,
		"schedule_id", req.ScheduleID)

	return map[string]any{
		"action_id": req.Action.ID,
		"record_id": req.Record.ID,
		"executed":  true,
	}, nil
}
