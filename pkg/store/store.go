// Package store provides the persistence abstraction for agents, data
// models, records, actions and schedules.
package store

import (
	"context"

	"github.com/bevelworks/cadent/pkg/models"
)

// ListSchedulesOptions narrows a schedule listing. Zero values mean "any".
// Limit bounds the number of schedules returned; implementations truncate in
// a deterministic order (ascending schedule id) so admission control behaves
// the same on every tick.
type ListSchedulesOptions struct {
	AgentID string
	Status  models.ScheduleStatus
	Mode    models.ScheduleMode
	Limit   int
}

// Store is the agent store: the only shared mutable resource the engine
// touches. Implementations guarantee per-entity atomic writes; no
// cross-entity transactions are required or assumed.
type Store interface {
	AgentByID(ctx context.Context, id string) (*models.Agent, error)
	SaveAgent(ctx context.Context, agent *models.Agent) error

	// AgentContext loads the full model/action graph of one agent in a
	// single call so the orchestrator never refetches definitions per step.
	AgentContext(ctx context.Context, agentID string) (*models.AgentContext, error)

	ModelByID(ctx context.Context, id string) (*models.DataModel, error)
	ModelsByAgent(ctx context.Context, agentID string) ([]*models.DataModel, error)
	SaveModel(ctx context.Context, model *models.DataModel) error

	ActionsByAgent(ctx context.Context, agentID string) ([]*models.Action, error)
	SaveAction(ctx context.Context, action *models.Action) error

	RecordsByModel(ctx context.Context, modelID string) ([]*models.Record, error)
	// SaveRecord validates record data against the owning model's schema
	// before writing.
	SaveRecord(ctx context.Context, record *models.Record) error

	Schedules(ctx context.Context, opts ListSchedulesOptions) ([]*models.Schedule, error)
	ScheduleByID(ctx context.Context, id string) (*models.Schedule, error)
	SaveSchedule(ctx context.Context, schedule *models.Schedule) error

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
