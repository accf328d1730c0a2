// Package main provides the Coreza API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/coreza/coreza/pkg/eventbus"
	"github.com/coreza/coreza/pkg/handlers"
	"github.com/coreza/coreza/pkg/manifest"
	"github.com/coreza/coreza/pkg/persistence"
	"github.com/coreza/coreza/pkg/queue"
	"github.com/coreza/coreza/pkg/services"
	"github.com/coreza/coreza/pkg/web"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	manifests   *manifest.Store
	registry    *handlers.Registry
	queue       queue.Queue
	eventBus    eventbus.EventBus
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	p persistence.Persistence,
	manifests *manifest.Store,
	registry *handlers.Registry,
	q queue.Queue,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:      logger,
		persistence: p,
		manifests:   manifests,
		registry:    registry,
		queue:       q,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	// The API never runs cron schedules itself; activation is persisted and
	// announced on the event bus, and the scheduler process picks it up.
	workflowService := services.NewWorkflow(a.logger, a.persistence, a.manifests, nil, a.queue, a.eventBus)

	apiHandlers := web.NewAPIHandlers(workflowService, a.manifests, a.registry, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Coreza API")
	})

	w := app.Group("/workflows")
	w.Get("/", apiHandlers.GetWorkflows)
	w.Post("/", apiHandlers.CreateWorkflow)
	w.Get("/:id", apiHandlers.GetWorkflow)
	w.Patch("/:id", apiHandlers.UpdateWorkflow)
	w.Delete("/:id", apiHandlers.DeleteWorkflow)
	w.Post("/:id/activate", apiHandlers.ActivateWorkflow)
	w.Post("/:id/deactivate", apiHandlers.DeactivateWorkflow)
	w.Post("/:id/run", apiHandlers.TriggerWorkflowRun)
	w.Get("/:id/runs", apiHandlers.GetWorkflowRuns)

	r := app.Group("/runs")
	r.Get("/:id", apiHandlers.GetRun)
	r.Get("/:id/node-executions", apiHandlers.GetRunNodeExecutions)

	app.Get("/manifests", apiHandlers.GetManifests)
	app.Get("/manifests/:type", apiHandlers.GetManifest)
	app.Post("/schedule/preview", apiHandlers.PreviewSchedule)

	app.Get("/health", apiHandlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
