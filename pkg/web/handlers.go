// Package web provides the HTTP trigger surface of the schedule engine:
// schedule status inspection, the scan trigger and health checks.
package web

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/bevelworks/cadent/pkg/scheduler"
	"github.com/bevelworks/cadent/pkg/store"
)

// RunSecretHeader carries the shared secret authorizing the trigger
// endpoint. The caller is typically an external cron service, not a user.
const RunSecretHeader = "X-Run-Secret"

type APIHandlers struct {
	scheduler *scheduler.Service
	store     store.Store
	runSecret string
}

func NewAPIHandlers(schedulerService *scheduler.Service, st store.Store, runSecret string) *APIHandlers {
	return &APIHandlers{
		scheduler: schedulerService,
		store:     st,
		runSecret: runSecret,
	}
}

// GetScheduleStatus reports the candidate schedules the next scan would
// consider, with their human-readable due state. Read-only.
func (h *APIHandlers) GetScheduleStatus(c fiber.Ctx) error {
	statuses, err := h.scheduler.Status(c.Context(), agentIDQuery(c), time.Now().UTC())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"schedules": statuses,
		"count":     len(statuses),
		"timestamp": time.Now().UTC(),
	})
}

// GetSchedule loads one schedule by id for inspection.
func (h *APIHandlers) GetSchedule(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Schedule ID is required")
	}

	schedule, err := h.store.ScheduleByID(c.Context(), id)
	if err != nil {
		if store.IsScheduleNotFound(err) {
			return notFound(c, "Schedule not found")
		}

		return internalError(c, err)
	}

	return c.JSON(schedule)
}

// RunSchedules executes one scan tick: due schedules run, their ledgers are
// updated and the per-schedule results come back in the response. Per-record
// and per-step failures are data in the report, not HTTP errors; error-range
// statuses are reserved for request-level failures.
func (h *APIHandlers) RunSchedules(c fiber.Ctx) error {
	if !h.authorized(c) {
		return unauthorized(c, "Invalid or missing run secret")
	}

	var req RunSchedulesRequest

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	report, err := h.scheduler.RunDue(c.Context(), req.ScopeAgentID(), time.Now().UTC())
	if err != nil {
		if errors.Is(err, scheduler.ErrScanInProgress) {
			return conflict(c, err.Error())
		}

		return internalError(c, err)
	}

	return c.JSON(report)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "Cadent API is healthy"
	httpStatus := http.StatusOK

	storeErr := h.store.HealthCheck(c.Context())
	if storeErr != nil {
		status = "unhealthy"
		message = "Cadent API is unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	storeCheck := "ok"
	if storeErr != nil {
		storeCheck = storeErr.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"store": storeCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// agentIDQuery reads the agent scope from the query string, accepting both
// the snake_case and camelCase spellings.
func agentIDQuery(c fiber.Ctx) string {
	if id := c.Query("agent_id"); id != "" {
		return id
	}

	return c.Query("agentId")
}

// authorized checks the shared-secret header in constant time. An empty
// configured secret disables the check for local development.
func (h *APIHandlers) authorized(c fiber.Ctx) bool {
	if h.runSecret == "" {
		return true
	}

	provided := c.Get(RunSecretHeader)

	return subtle.ConstantTimeCompare([]byte(provided), []byte(h.runSecret)) == 1
}
