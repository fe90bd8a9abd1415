package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/bevelworks/cadent/pkg/models"
	"github.com/bevelworks/cadent/pkg/store"
	"github.com/bevelworks/cadent/pkg/store/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDB(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Children first, parents last.
	for _, table := range []string{"schedule_steps", "schedules", "records", "actions", "data_models", "agents", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Store, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping PostgreSQL integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("cadent_test"),
			postgres.WithUsername("cadent"),
			postgres.WithPassword("cadent"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDB(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	st, err := postgresql.NewStore(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDB(ctx, t, databaseURL)

		err = st.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return st, ctx, databaseURL
}

func TestNewStore_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	var exists bool

	err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = 'schedules')`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "schedules table should exist")

	var version int

	err = db.QueryRowContext(ctx, "SELECT version FROM schema_migrations WHERE version = 1").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}

func TestStore_AgentContextRoundTrip(t *testing.T) {
	st, ctx, _ := setupTestDB(t)

	agent := &models.Agent{Name: "Test Agent", Metadata: map[string]any{"tier": "pro"}}
	require.NoError(t, st.SaveAgent(ctx, agent))
	require.NotEmpty(t, agent.ID)

	model := &models.DataModel{AgentID: agent.ID, Name: "Invoices"}
	require.NoError(t, st.SaveModel(ctx, model))

	action := &models.Action{AgentID: agent.ID, Name: "Notify", Type: "log", Configuration: map[string]any{"level": "info"}}
	require.NoError(t, st.SaveAction(ctx, action))

	agentCtx, err := st.AgentContext(ctx, agent.ID)
	require.NoError(t, err)

	assert.Equal(t, "Test Agent", agentCtx.Agent.Name)
	require.Len(t, agentCtx.Models, 1)
	require.Len(t, agentCtx.Actions, 1)
	assert.Equal(t, map[string]any{"level": "info"}, agentCtx.Actions[0].Configuration)
}

func TestStore_AgentByID_NotFound(t *testing.T) {
	st, ctx, _ := setupTestDB(t)

	_, err := st.AgentByID(ctx, "00000000-0000-0000-0000-000000000000")
	require.Error(t, err)
	assert.True(t, store.IsAgentNotFound(err))
}

func TestStore_ScheduleRoundTrip(t *testing.T) {
	st, ctx, _ := setupTestDB(t)

	agent := &models.Agent{Name: "Test Agent"}
	require.NoError(t, st.SaveAgent(ctx, agent))

	lastRun := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)

	schedule := &models.Schedule{
		AgentID:       agent.ID,
		Name:          "Daily sweep",
		Mode:          models.ScheduleModeRecurring,
		Status:        models.ScheduleStatusActive,
		IntervalHours: 1.5,
		LastRunAt:     &lastRun,
		Steps: []*models.ScheduleStep{
			{
				Order:    1,
				ModelID:  "model-1",
				ActionID: "action-1",
				Query: models.StepQuery{Structured: &models.StructuredQuery{
					Logic:   models.QueryLogicOr,
					Filters: []models.QueryFilter{{Field: "status", Operator: models.OperatorEquals, Value: "open"}},
				}},
			},
			{Order: 2, ModelName: "Invoices", ActionName: "Notify", Query: models.StepQuery{Text: "overdue"}},
		},
	}

	require.NoError(t, st.SaveSchedule(ctx, schedule))
	require.NotEmpty(t, schedule.ID)

	loaded, err := st.ScheduleByID(ctx, schedule.ID)
	require.NoError(t, err)

	assert.InDelta(t, 1.5, loaded.IntervalHours, 0.0001)
	require.NotNil(t, loaded.LastRunAt)
	require.Len(t, loaded.Steps, 2)
	require.NotNil(t, loaded.Steps[0].Query.Structured)
	assert.Equal(t, models.QueryLogicOr, loaded.Steps[0].Query.Structured.Logic)
	assert.Equal(t, "overdue", loaded.Steps[1].Query.Text)

	// Re-saving replaces the step set, never duplicates it.
	schedule.Steps = schedule.Steps[:1]
	require.NoError(t, st.SaveSchedule(ctx, schedule))

	loaded, err = st.ScheduleByID(ctx, schedule.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Steps, 1)
}

func TestStore_Schedules_FilterAndLimit(t *testing.T) {
	st, ctx, _ := setupTestDB(t)

	agent := &models.Agent{Name: "Test Agent"}
	require.NoError(t, st.SaveAgent(ctx, agent))

	for i := range 5 {
		status := models.ScheduleStatusActive
		if i == 0 {
			status = models.ScheduleStatusPaused
		}

		schedule := &models.Schedule{
			AgentID: agent.ID,
			Name:    "Schedule " + string(rune('A'+i)),
			Mode:    models.ScheduleModeRecurring,
			Status:  status,
		}
		require.NoError(t, st.SaveSchedule(ctx, schedule))
	}

	active, err := st.Schedules(ctx, store.ListSchedulesOptions{Status: models.ScheduleStatusActive})
	require.NoError(t, err)
	assert.Len(t, active, 4)

	limited, err := st.Schedules(ctx, store.ListSchedulesOptions{Status: models.ScheduleStatusActive, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestStore_SaveRecord_ValidatesSchema(t *testing.T) {
	st, ctx, _ := setupTestDB(t)

	agent := &models.Agent{Name: "Test Agent"}
	require.NoError(t, st.SaveAgent(ctx, agent))

	model := &models.DataModel{
		AgentID: agent.ID,
		Name:    "Invoices",
		Schema: map[string]any{
			"type":     "object",
			"required": []any{"amount"},
		},
	}
	require.NoError(t, st.SaveModel(ctx, model))

	err := st.SaveRecord(ctx, &models.Record{ModelID: model.ID, Data: map[string]any{}})
	require.Error(t, err)

	require.NoError(t, st.SaveRecord(ctx, &models.Record{ModelID: model.ID, Data: map[string]any{"amount": 10}}))

	records, err := st.RecordsByModel(ctx, model.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
