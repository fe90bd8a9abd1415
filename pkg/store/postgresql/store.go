// Package postgresql provides the PostgreSQL agent store implementation.
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	// Registers the postgres driver.
	_ "github.com/lib/pq"

	"github.com/bevelworks/cadent/pkg/models"
	"github.com/bevelworks/cadent/pkg/store"
	"github.com/bevelworks/cadent/pkg/store/sqlbase"
)

// Store implements store.Store on PostgreSQL.
type Store struct {
	db       *sql.DB
	logger   *slog.Logger
	validate *validator.Validate
}

// NewStore connects, runs migrations and returns a ready store.
func NewStore(ctx context.Context, logger *slog.Logger, databaseURL string) (*Store, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	if err := database.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())
	if err := migrationManager.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{
		db:       database,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

func (s *Store) Close(_ context.Context) error {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (s *Store) AgentByID(ctx context.Context, id string) (*models.Agent, error) {
	query := `
		SELECT id, name, description, metadata, created_at, updated_at
		FROM agents
		WHERE id = $1
	`

	agent := &models.Agent{}

	var metadata []byte

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&agent.ID, &agent.Name, &agent.Description, &metadata, &agent.CreatedAt, &agent.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NewError("AgentByID", id, store.ErrAgentNotFound)
		}

		return nil, store.NewError("AgentByID", id, err)
	}

	if err := unmarshalJSONB(metadata, &agent.Metadata); err != nil {
		return nil, store.NewError("AgentByID", id, err)
	}

	return agent, nil
}

func (s *Store) SaveAgent(ctx context.Context, agent *models.Agent) error {
	stampEntity(&agent.ID, &agent.CreatedAt, &agent.UpdatedAt)

	metadata, err := marshalJSONB(agent.Metadata)
	if err != nil {
		return store.NewError("SaveAgent", agent.ID, err)
	}

	query := `
		INSERT INTO agents (id, name, description, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		agent.ID, agent.Name, agent.Description, metadata, agent.CreatedAt, agent.UpdatedAt)
	if err != nil {
		return store.NewError("SaveAgent", agent.ID, err)
	}

	return nil
}

func (s *Store) AgentContext(ctx context.Context, agentID string) (*models.AgentContext, error) {
	agent, err := s.AgentByID(ctx, agentID)
	if err != nil {
		return nil, err
	}

	agentModels, err := s.ModelsByAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}

	actions, err := s.ActionsByAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}

	return &models.AgentContext{Agent: agent, Models: agentModels, Actions: actions}, nil
}

func (s *Store) ModelByID(ctx context.Context, id string) (*models.DataModel, error) {
	query := `
		SELECT id, agent_id, name, description, schema, created_at, updated_at
		FROM data_models
		WHERE id = $1
	`

	model, err := scanModel(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NewError("ModelByID", id, store.ErrModelNotFound)
		}

		return nil, store.NewError("ModelByID", id, err)
	}

	return model, nil
}

func (s *Store) ModelsByAgent(ctx context.Context, agentID string) ([]*models.DataModel, error) {
	query := `
		SELECT id, agent_id, name, description, schema, created_at, updated_at
		FROM data_models
		WHERE agent_id = $1
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query, agentID)
	if err != nil {
		return nil, store.NewError("ModelsByAgent", agentID, err)
	}
	defer s.closeRows(ctx, rows)

	out := make([]*models.DataModel, 0)

	for rows.Next() {
		model, err := scanModel(rows)
		if err != nil {
			return nil, store.NewError("ModelsByAgent", agentID, err)
		}

		out = append(out, model)
	}

	if err := rows.Err(); err != nil {
		return nil, store.NewError("ModelsByAgent", agentID, err)
	}

	return out, nil
}

func (s *Store) SaveModel(ctx context.Context, model *models.DataModel) error {
	stampEntity(&model.ID, &model.CreatedAt, &model.UpdatedAt)

	schema, err := marshalJSONB(model.Schema)
	if err != nil {
		return store.NewError("SaveModel", model.ID, err)
	}

	query := `
		INSERT INTO data_models (id, agent_id, name, description, schema, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			schema = EXCLUDED.schema,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		model.ID, model.AgentID, model.Name, model.Description, schema, model.CreatedAt, model.UpdatedAt)
	if err != nil {
		return store.NewError("SaveModel", model.ID, err)
	}

	return nil
}

func (s *Store) ActionsByAgent(ctx context.Context, agentID string) ([]*models.Action, error) {
	query := `
		SELECT id, agent_id, name, type, configuration, created_at, updated_at
		FROM actions
		WHERE agent_id = $1
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query, agentID)
	if err != nil {
		return nil, store.NewError("ActionsByAgent", agentID, err)
	}
	defer s.closeRows(ctx, rows)

	out := make([]*models.Action, 0)

	for rows.Next() {
		action := &models.Action{}

		var configuration []byte

		err := rows.Scan(&action.ID, &action.AgentID, &action.Name, &action.Type,
			&configuration, &action.CreatedAt, &action.UpdatedAt)
		if err != nil {
			return nil, store.NewError("ActionsByAgent", agentID, err)
		}

		if err := unmarshalJSONB(configuration, &action.Configuration); err != nil {
			return nil, store.NewError("ActionsByAgent", agentID, err)
		}

		out = append(out, action)
	}

	if err := rows.Err(); err != nil {
		return nil, store.NewError("ActionsByAgent", agentID, err)
	}

	return out, nil
}

func (s *Store) SaveAction(ctx context.Context, action *models.Action) error {
	stampEntity(&action.ID, &action.CreatedAt, &action.UpdatedAt)

	configuration, err := marshalJSONB(action.Configuration)
	if err != nil {
		return store.NewError("SaveAction", action.ID, err)
	}

	query := `
		INSERT INTO actions (id, agent_id, name, type, configuration, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			configuration = EXCLUDED.configuration,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		action.ID, action.AgentID, action.Name, action.Type, configuration, action.CreatedAt, action.UpdatedAt)
	if err != nil {
		return store.NewError("SaveAction", action.ID, err)
	}

	return nil
}

func (s *Store) RecordsByModel(ctx context.Context, modelID string) ([]*models.Record, error) {
	query := `
		SELECT id, model_id, data, created_at, updated_at
		FROM records
		WHERE model_id = $1
		ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query, modelID)
	if err != nil {
		return nil, store.NewError("RecordsByModel", modelID, err)
	}
	defer s.closeRows(ctx, rows)

	out := make([]*models.Record, 0)

	for rows.Next() {
		record := &models.Record{}

		var data []byte

		err := rows.Scan(&record.ID, &record.ModelID, &data, &record.CreatedAt, &record.UpdatedAt)
		if err != nil {
			return nil, store.NewError("RecordsByModel", modelID, err)
		}

		if err := unmarshalJSONB(data, &record.Data); err != nil {
			return nil, store.NewError("RecordsByModel", modelID, err)
		}

		out = append(out, record)
	}

	if err := rows.Err(); err != nil {
		return nil, store.NewError("RecordsByModel", modelID, err)
	}

	return out, nil
}

func (s *Store) SaveRecord(ctx context.Context, record *models.Record) error {
	model, err := s.ModelByID(ctx, record.ModelID)
	if err != nil {
		return err
	}

	if err := model.ValidateRecord(record.Data); err != nil {
		return store.NewError("SaveRecord", record.ID, err)
	}

	stampEntity(&record.ID, &record.CreatedAt, &record.UpdatedAt)

	data, err := marshalJSONB(record.Data)
	if err != nil {
		return store.NewError("SaveRecord", record.ID, err)
	}

	if data == nil {
		data = []byte("{}")
	}

	query := `
		INSERT INTO records (id, model_id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`

	_, err = s.db.ExecContext(ctx, query,
		record.ID, record.ModelID, data, record.CreatedAt, record.UpdatedAt)
	if err != nil {
		return store.NewError("SaveRecord", record.ID, err)
	}

	return nil
}

func (s *Store) ScheduleByID(ctx context.Context, id string) (*models.Schedule, error) {
	query := scheduleSelect + ` WHERE id = $1`

	schedule, err := scanSchedule(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.NewError("ScheduleByID", id, store.ErrScheduleNotFound)
		}

		return nil, store.NewError("ScheduleByID", id, err)
	}

	if err := s.loadSteps(ctx, schedule); err != nil {
		return nil, store.NewError("ScheduleByID", id, err)
	}

	return schedule, nil
}

func (s *Store) Schedules(ctx context.Context, opts store.ListSchedulesOptions) ([]*models.Schedule, error) {
	query := scheduleSelect + ` WHERE 1=1`
	args := make([]any, 0, 3)

	if opts.AgentID != "" {
		args = append(args, opts.AgentID)
		query += fmt.Sprintf(" AND agent_id = $%d", len(args))
	}

	if opts.Status != "" {
		args = append(args, string(opts.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	if opts.Mode != "" {
		args = append(args, string(opts.Mode))
		query += fmt.Sprintf(" AND mode = $%d", len(args))
	}

	// Deterministic admission order: ascending id.
	query += " ORDER BY id"

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, store.NewError("Schedules", "", err)
	}
	defer s.closeRows(ctx, rows)

	out := make([]*models.Schedule, 0)

	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, store.NewError("Schedules", "", err)
		}

		out = append(out, schedule)
	}

	if err := rows.Err(); err != nil {
		return nil, store.NewError("Schedules", "", err)
	}

	for _, schedule := range out {
		if err := s.loadSteps(ctx, schedule); err != nil {
			return nil, store.NewError("Schedules", schedule.ID, err)
		}
	}

	return out, nil
}

func (s *Store) SaveSchedule(ctx context.Context, schedule *models.Schedule) error {
	if err := s.validate.Struct(schedule); err != nil {
		return store.NewError("SaveSchedule", schedule.ID, err)
	}

	stampEntity(&schedule.ID, &schedule.CreatedAt, &schedule.UpdatedAt)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.NewError("SaveSchedule", schedule.ID, err)
	}

	query := `
		INSERT INTO schedules (id, agent_id, name, mode, interval_hours, status,
			last_run_at, next_run_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			mode = EXCLUDED.mode,
			interval_hours = EXCLUDED.interval_hours,
			status = EXCLUDED.status,
			last_run_at = EXCLUDED.last_run_at,
			next_run_at = EXCLUDED.next_run_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err = tx.ExecContext(ctx, query,
		schedule.ID, schedule.AgentID, schedule.Name, string(schedule.Mode),
		nullFloat(schedule.IntervalHours), string(schedule.Status),
		schedule.LastRunAt, schedule.NextRunAt, schedule.CreatedAt, schedule.UpdatedAt)
	if err != nil {
		_ = tx.Rollback()

		return store.NewError("SaveSchedule", schedule.ID, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM schedule_steps WHERE schedule_id = $1", schedule.ID); err != nil {
		_ = tx.Rollback()

		return store.NewError("SaveSchedule", schedule.ID, err)
	}

	for _, step := range schedule.Steps {
		if step.ID == "" {
			step.ID = uuid.New().String()
		}

		stepQuery, err := json.Marshal(step.Query)
		if err != nil {
			_ = tx.Rollback()

			return store.NewError("SaveSchedule", schedule.ID, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO schedule_steps (id, schedule_id, step_order, model_id, model_name,
				action_id, action_name, query)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, step.ID, schedule.ID, step.Order, step.ModelID, step.ModelName,
			step.ActionID, step.ActionName, stepQuery)
		if err != nil {
			_ = tx.Rollback()

			return store.NewError("SaveSchedule", schedule.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return store.NewError("SaveSchedule", schedule.ID, err)
	}

	return nil
}

const scheduleSelect = `
	SELECT id, agent_id, name, mode, interval_hours, status,
		last_run_at, next_run_at, created_at, updated_at
	FROM schedules
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSchedule(row rowScanner) (*models.Schedule, error) {
	schedule := &models.Schedule{}

	var (
		mode, status  string
		intervalHours sql.NullFloat64
		lastRunAt     sql.NullTime
		nextRunAt     sql.NullTime
	)

	err := row.Scan(&schedule.ID, &schedule.AgentID, &schedule.Name, &mode, &intervalHours,
		&status, &lastRunAt, &nextRunAt, &schedule.CreatedAt, &schedule.UpdatedAt)
	if err != nil {
		return nil, err
	}

	schedule.Mode = models.ScheduleMode(mode)
	schedule.Status = models.ScheduleStatus(status)

	if intervalHours.Valid {
		schedule.IntervalHours = intervalHours.Float64
	}

	if lastRunAt.Valid {
		t := lastRunAt.Time

		schedule.LastRunAt = &t
	}

	if nextRunAt.Valid {
		t := nextRunAt.Time

		schedule.NextRunAt = &t
	}

	return schedule, nil
}

func scanModel(row rowScanner) (*models.DataModel, error) {
	model := &models.DataModel{}

	var schema []byte

	err := row.Scan(&model.ID, &model.AgentID, &model.Name, &model.Description,
		&schema, &model.CreatedAt, &model.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := unmarshalJSONB(schema, &model.Schema); err != nil {
		return nil, err
	}

	return model, nil
}

func (s *Store) loadSteps(ctx context.Context, schedule *models.Schedule) error {
	query := `
		SELECT id, step_order, model_id, model_name, action_id, action_name, query
		FROM schedule_steps
		WHERE schedule_id = $1
		ORDER BY step_order
	`

	rows, err := s.db.QueryContext(ctx, query, schedule.ID)
	if err != nil {
		return err
	}
	defer s.closeRows(ctx, rows)

	schedule.Steps = make([]*models.ScheduleStep, 0)

	for rows.Next() {
		step := &models.ScheduleStep{}

		var (
			modelID, modelName, actionID, actionName sql.NullString
			stepQuery                                []byte
		)

		err := rows.Scan(&step.ID, &step.Order, &modelID, &modelName, &actionID, &actionName, &stepQuery)
		if err != nil {
			return err
		}

		step.ModelID = modelID.String
		step.ModelName = modelName.String
		step.ActionID = actionID.String
		step.ActionName = actionName.String

		if len(stepQuery) > 0 {
			if err := json.Unmarshal(stepQuery, &step.Query); err != nil {
				return err
			}
		}

		schedule.Steps = append(schedule.Steps, step)
	}

	return rows.Err()
}

func (s *Store) closeRows(ctx context.Context, rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		s.logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}

func stampEntity(id *string, createdAt, updatedAt *time.Time) {
	now := time.Now().UTC()

	if *id == "" {
		*id = uuid.New().String()
	}

	if createdAt.IsZero() {
		*createdAt = now
	}

	*updatedAt = now
}

func nullFloat(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: v > 0}
}

func marshalJSONB(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}

	return json.Marshal(v)
}

func unmarshalJSONB(data []byte, out any) error {
	if len(data) == 0 {
		return nil
	}

	return json.Unmarshal(data, out)
}
