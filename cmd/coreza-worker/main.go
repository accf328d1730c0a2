package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/coreza/coreza/pkg/cmd"
	"github.com/coreza/coreza/pkg/dispatcher"
	"github.com/coreza/coreza/pkg/engine"
	"github.com/coreza/coreza/pkg/log"
	"github.com/coreza/coreza/pkg/manifest"
	"github.com/coreza/coreza/pkg/otelhelper"
	"github.com/coreza/coreza/pkg/runner"
)

const defaultConcurrency = 4

func main() {
	command := &cli.Command{
		Name:                  "coreza-worker",
		Usage:                 "Start workers to execute workflow runs",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "queue-url",
				Usage:    "Run queue URL (redis:// or memory)",
				Required: true,
				Sources:  cli.EnvVars("QUEUE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (kafka, gochannel, none)",
				Value:   "none",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "manifests-path",
				Usage:   "Directory with additional node manifests",
				Value:   "",
				Sources: cli.EnvVars("MANIFESTS_PATH"),
			},
			&cli.IntFlag{
				Name:    "concurrency",
				Usage:   "Maximum number of runs executing at once",
				Value:   defaultConcurrency,
				Sources: cli.EnvVars("WORKER_CONCURRENCY"),
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

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("coreza-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing Coreza Worker")

			tracerProvider, err := otelhelper.InitTracer(ctx, "coreza-worker")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}
			defer func() {
				if err := tracerProvider.Shutdown(ctx); err != nil {
					slog.Error("Failed to shutdown tracer provider", "error", err)
				}
			}()

			manifests, err := manifest.Load(logger, command.String("manifests-path"))
			if err != nil {
				return err
			}

			registry := cmd.NewRegistry(logger)

			persistence := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			runQueue := cmd.NewQueue(ctx, logger, command.String("queue-url"))
			defer func() {
				if err := runQueue.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close run queue", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), "worker", logger)
			if eventBus != nil {
				defer func() {
					if err := eventBus.Close(); err != nil {
						logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
					}
				}()
			}

			runEngine := engine.NewEngine(logger, persistence, manifests,
				dispatcher.NewDispatcher(logger, registry), eventBus)
			coordinator := runner.NewCoordinator(logger, persistence, runEngine, eventBus, workerID)

			worker := NewWorker(
				workerID,
				logger,
				runQueue,
				coordinator,
				tracerProvider.Tracer("coreza-worker"),
				command.Int("concurrency"),
			)

			err = worker.Start(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to start worker", "error", err)
			}

			return err
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
