// Package main provides the Cadent API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/bevelworks/cadent/pkg/scheduler"
	"github.com/bevelworks/cadent/pkg/store"
	"github.com/bevelworks/cadent/pkg/web"
)

type API struct {
	logger    *slog.Logger
	store     store.Store
	scheduler *scheduler.Service
	runSecret string
}

func NewAPI(
	logger *slog.Logger,
	st store.Store,
	schedulerService *scheduler.Service,
	runSecret string,
) *API {
	return &API{
		logger:    logger,
		store:     st,
		scheduler: schedulerService,
		runSecret: runSecret,
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.scheduler, a.store, a.runSecret)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Cadent API")
	})

	s := app.Group("/schedules")
	s.Get("/status", handlers.GetScheduleStatus)
	s.Post("/run", handlers.RunSchedules)
	s.Get("/:id", handlers.GetSchedule)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
