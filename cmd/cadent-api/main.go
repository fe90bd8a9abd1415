package main

import (
	"context"
	"os"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/bevelworks/cadent/pkg/cmd"
	"github.com/bevelworks/cadent/pkg/executors/logexec"
	"github.com/bevelworks/cadent/pkg/log"
	"github.com/bevelworks/cadent/pkg/runlock"
	"github.com/bevelworks/cadent/pkg/scheduler"
	"github.com/bevelworks/cadent/pkg/tracer"
)

const (
	defaultPort    = 9091
	defaultLockTTL = 5 * time.Minute
)

func main() {
	logger := log.WithModule("api")

	command := &cli.Command{
		Name:                  "cadent-api",
		Usage:                 "Run the schedule execution engine",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL (file:// or postgres://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "lock-url",
				Usage:   "Redis URL for the scan lock; empty runs unlocked",
				Sources: cli.EnvVars("LOCK_URL"),
			},
			&cli.StringFlag{
				Name:    "run-secret",
				Usage:   "Shared secret required by POST /schedules/run; empty disables the check",
				Sources: cli.EnvVars("RUN_SECRET"),
			},
			&cli.IntFlag{
				Name:    "max-schedules",
				Usage:   "Admission ceiling per scan tick",
				Value:   scheduler.DefaultMaxSchedules,
				Sources: cli.EnvVars("MAX_SCHEDULES"),
			},
			&cli.IntFlag{
				Name:    "schedule-workers",
				Usage:   "How many due schedules execute concurrently",
				Value:   scheduler.DefaultScheduleWorkers,
				Sources: cli.EnvVars("SCHEDULE_WORKERS"),
			},
			&cli.IntFlag{
				Name:    "record-workers",
				Usage:   "Per-step record fan-out limit",
				Value:   scheduler.DefaultRecordWorkers,
				Sources: cli.EnvVars("RECORD_WORKERS"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export traces via OTLP",
				Sources: cli.EnvVars("TRACING_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger.InfoContext(ctx, "Initializing Cadent API")

			store := cmd.NewStore(ctx, logger, command.String("database-url"))

			defer func() {
				if err := store.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close store", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)

			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			var trc trace.Tracer = tracer.NoopTracer()

			if command.Bool("tracing") {
				var err error

				trc, err = tracer.NewTracer(ctx, "cadent-api")
				if err != nil {
					return err
				}
			}

			var lock *runlock.Lock

			if lockURL := command.String("lock-url"); lockURL != "" {
				var err error

				lock, err = runlock.New(lockURL, defaultLockTTL, logger)
				if err != nil {
					return err
				}

				defer func() {
					if err := lock.Close(); err != nil {
						logger.ErrorContext(ctx, "Failed to close run lock", "error", err)
					}
				}()
			}

			scannerService := scheduler.NewScanner(store, logger)
			runner := scheduler.NewRunner(store, logexec.New(), eventBus, trc, logger, command.Int("record-workers"))
			ledger := scheduler.NewLedger(store, logger)

			schedulerService := scheduler.NewService(
				scannerService, runner, ledger, lock, trc, logger,
				scheduler.Config{
					MaxSchedules:    command.Int("max-schedules"),
					ScheduleWorkers: command.Int("schedule-workers"),
					RecordWorkers:   command.Int("record-workers"),
				},
			)

			api := NewAPI(logger, store, schedulerService, command.String("run-secret"))

			if err := api.Start(command.Int("port")); err != nil {
				logger.ErrorContext(ctx, "Failed to start API server", "error", err)

				return err
			}

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
