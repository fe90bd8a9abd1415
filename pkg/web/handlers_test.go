package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bevelworks/cadent/pkg/executors/logexec"
	"github.com/bevelworks/cadent/pkg/models"
	"github.com/bevelworks/cadent/pkg/scheduler"
	"github.com/bevelworks/cadent/pkg/store/file"
	"github.com/bevelworks/cadent/pkg/tracer"
	"github.com/bevelworks/cadent/pkg/web"
)

const testRunSecret = "test-run-secret"

func setupTestApp(t *testing.T) (*fiber.App, *file.Store) {
	t.Helper()

	st := file.NewStore(t.TempDir())
	logger := slog.New(slog.DiscardHandler)

	runner := scheduler.NewRunner(st, logexec.New(), nil, tracer.NoopTracer(), logger, 0)
	service := scheduler.NewService(
		scheduler.NewScanner(st, logger),
		runner,
		scheduler.NewLedger(st, logger),
		nil,
		tracer.NoopTracer(),
		logger,
		scheduler.Config{},
	)

	handlers := web.NewAPIHandlers(service, st, testRunSecret)

	app := fiber.New()

	s := app.Group("/schedules")
	s.Get("/status", handlers.GetScheduleStatus)
	s.Post("/run", handlers.RunSchedules)
	s.Get("/:id", handlers.GetSchedule)

	app.Get("/health", handlers.HealthCheck)

	return app, st
}

func seedSchedule(t *testing.T, st *file.Store, agentID string) *models.Schedule {
	t.Helper()

	ctx := context.Background()

	require.NoError(t, st.SaveAgent(ctx, &models.Agent{ID: agentID, Name: "Test Agent"}))
	require.NoError(t, st.SaveModel(ctx, &models.DataModel{ID: "model-1", AgentID: agentID, Name: "Invoices"}))
	require.NoError(t, st.SaveAction(ctx, &models.Action{ID: "action-1", AgentID: agentID, Name: "Notify", Type: "log"}))
	require.NoError(t, st.SaveRecord(ctx, &models.Record{ID: "rec-1", ModelID: "model-1", Data: map[string]any{"status": "open"}}))

	schedule := &models.Schedule{
		ID:      "sched-1",
		AgentID: agentID,
		Name:    "Daily sweep",
		Mode:    models.ScheduleModeRecurring,
		Status:  models.ScheduleStatusActive,
		Steps: []*models.ScheduleStep{
			{ID: "step-1", Order: 1, ModelID: "model-1", ActionID: "action-1"},
		},
	}
	require.NoError(t, st.SaveSchedule(ctx, schedule))

	return schedule
}

func TestRunSchedules_Unauthorized(t *testing.T) {
	app, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/schedules/run", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(http.MethodPost, "/schedules/run", nil)
	req.Header.Set(web.RunSecretHeader, "wrong-secret")

	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRunSchedules_ExecutesDueSchedules(t *testing.T) {
	app, st := setupTestApp(t)
	seedSchedule(t, st, "agent-1")

	req := httptest.NewRequest(http.MethodPost, "/schedules/run", nil)
	req.Header.Set(web.RunSecretHeader, testRunSecret)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var report models.ScanReport

	require.NoError(t, json.Unmarshal(body, &report))
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.Executed)
	require.Len(t, report.Results, 1)
	assert.True(t, report.Results[0].Success)
}

func TestRunSchedules_AgentScoped(t *testing.T) {
	app, st := setupTestApp(t)
	seedSchedule(t, st, "agent-1")

	payload, err := json.Marshal(web.RunSchedulesRequest{AgentID: "other-agent"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/schedules/run", bytes.NewBuffer(payload))
	req.Header.Set(web.RunSecretHeader, testRunSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var report models.ScanReport

	require.NoError(t, json.Unmarshal(body, &report))
	assert.Equal(t, 0, report.Total)
}

func TestRunSchedules_AgentScopedCamelCase(t *testing.T) {
	app, st := setupTestApp(t)
	seedSchedule(t, st, "agent-1")

	req := httptest.NewRequest(http.MethodPost, "/schedules/run", bytes.NewBufferString(`{"agentId": "other-agent"}`))
	req.Header.Set(web.RunSecretHeader, testRunSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var report models.ScanReport

	require.NoError(t, json.Unmarshal(body, &report))
	assert.Equal(t, 0, report.Total)
}

func TestRunSchedules_InvalidBody(t *testing.T) {
	app, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/schedules/run", bytes.NewBufferString("{not json"))
	req.Header.Set(web.RunSecretHeader, testRunSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetScheduleStatus(t *testing.T) {
	app, st := setupTestApp(t)
	seedSchedule(t, st, "agent-1")

	req := httptest.NewRequest(http.MethodGet, "/schedules/status", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload struct {
		Schedules []scheduler.ScheduleStatus `json:"schedules"`
		Count     int                        `json:"count"`
	}

	require.NoError(t, json.Unmarshal(body, &payload))
	assert.Equal(t, 1, payload.Count)
	require.Len(t, payload.Schedules, 1)
	assert.Equal(t, "sched-1", payload.Schedules[0].ID)
	assert.Equal(t, models.DueStateDueNeverRun, payload.Schedules[0].DueState)
}

func TestGetScheduleStatus_AgentQuerySpellings(t *testing.T) {
	app, st := setupTestApp(t)
	seedSchedule(t, st, "agent-1")

	for _, target := range []string{
		"/schedules/status?agent_id=other-agent",
		"/schedules/status?agentId=other-agent",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		var payload struct {
			Count int `json:"count"`
		}

		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, 0, payload.Count, "query %s should scope to the named agent", target)
	}
}

func TestGetSchedule(t *testing.T) {
	app, st := setupTestApp(t)
	seedSchedule(t, st, "agent-1")

	req := httptest.NewRequest(http.MethodGet, "/schedules/sched-1", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/schedules/missing", nil)

	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthCheck(t *testing.T) {
	app, _ := setupTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
