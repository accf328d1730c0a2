package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreza/coreza/pkg/handlers"
	"github.com/coreza/coreza/pkg/manifest"
	"github.com/coreza/coreza/pkg/models"
	"github.com/coreza/coreza/pkg/persistence/file"
	"github.com/coreza/coreza/pkg/queue"
	"github.com/coreza/coreza/pkg/services"
	"github.com/coreza/coreza/pkg/trigger"
	"github.com/coreza/coreza/pkg/web"
)

func setupTestApp(t *testing.T) (*fiber.App, *services.Workflow) {
	t.Helper()

	logger := slog.Default()
	persistence := file.NewPersistence(t.TempDir())

	manifests, err := manifest.NewStore(logger)
	require.NoError(t, err)

	q := queue.NewMemoryQueue(16)
	t.Cleanup(func() { _ = q.Close() })

	triggers := trigger.NewService(logger, q)
	workflowService := services.NewWorkflow(logger, persistence, manifests, triggers, q, nil)

	registry := handlers.NewRegistry(logger)
	validate := validator.New(validator.WithRequiredStructEnabled())
	apiHandlers := web.NewAPIHandlers(workflowService, manifests, registry, validate)

	app := fiber.New()

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

	return app, workflowService
}

func jsonRequest(t *testing.T, app *fiber.App, method, path string, payload any) *http.Response {
	t.Helper()

	var body []byte

	switch v := payload.(type) {
	case nil:
	case string:
		body = []byte(v)
	default:
		var err error
		body, err = json.Marshal(v)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(method, path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()

	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, out))
}

func createRequest() web.CreateWorkflowRequest {
	return web.CreateWorkflowRequest{
		Name:    "Breakout Scan",
		OwnerID: "user-1",
		Nodes: []*models.Node{
			{ID: "sched", Type: models.NodeTypeScheduler, Values: map[string]any{"interval": "Minutes", "count": 5}},
			{ID: "rsi", Type: "Indicator", Values: map[string]any{"operation": "rsi", "window": 14}},
		},
		Edges: []*models.Edge{{Source: "sched", Target: "rsi"}},
	}
}

func TestAPIHandlers_CreateWorkflow(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
	}{
		{
			name:           "successful creation",
			requestBody:    createRequest(),
			expectedStatus: http.StatusCreated,
		},
		{
			name: "missing name",
			requestBody: web.CreateWorkflowRequest{
				OwnerID: "user-1",
				Nodes:   []*models.Node{{ID: "a", Type: "Indicator"}},
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "no nodes",
			requestBody: web.CreateWorkflowRequest{
				Name:    "Empty Workflow",
				OwnerID: "user-1",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid JSON",
			requestBody:    "not-json",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _ := setupTestApp(t)

			resp := jsonRequest(t, app, http.MethodPost, "/workflows", tt.requestBody)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusCreated {
				var workflow models.Workflow
				decodeBody(t, resp, &workflow)
				assert.NotEmpty(t, workflow.ID)
				assert.Equal(t, "Breakout Scan", workflow.Name)
				assert.False(t, workflow.IsActive)
			} else {
				_ = resp.Body.Close()
			}
		})
	}
}

func TestAPIHandlers_GetWorkflow(t *testing.T) {
	app, service := setupTestApp(t)

	created, err := service.Create(t.Context(), &models.Workflow{
		Name:    "Lookup Target",
		OwnerID: "user-1",
		Nodes:   []*models.Node{{ID: "a", Type: "Indicator"}},
	})
	require.NoError(t, err)

	resp := jsonRequest(t, app, http.MethodGet, "/workflows/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var workflow models.Workflow
	decodeBody(t, resp, &workflow)
	assert.Equal(t, "Lookup Target", workflow.Name)

	resp = jsonRequest(t, app, http.MethodGet, "/workflows/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestAPIHandlers_ActivateWorkflow(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := jsonRequest(t, app, http.MethodPost, "/workflows", createRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Workflow
	decodeBody(t, resp, &created)

	resp = jsonRequest(t, app, http.MethodPost, "/workflows/"+created.ID+"/activate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var activated models.Workflow
	decodeBody(t, resp, &activated)
	assert.True(t, activated.IsActive)
	assert.Equal(t, "*/5 * * * *", activated.ScheduleCron)

	resp = jsonRequest(t, app, http.MethodPost, "/workflows/"+created.ID+"/deactivate", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var deactivated models.Workflow
	decodeBody(t, resp, &deactivated)
	assert.False(t, deactivated.IsActive)

	resp = jsonRequest(t, app, http.MethodPost, "/workflows/missing/activate", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestAPIHandlers_ActivateWorkflowWithoutScheduler(t *testing.T) {
	app, service := setupTestApp(t)

	created, err := service.Create(t.Context(), &models.Workflow{
		Name:    "No Trigger",
		OwnerID: "user-1",
		Nodes:   []*models.Node{{ID: "a", Type: "Indicator"}},
	})
	require.NoError(t, err)

	resp := jsonRequest(t, app, http.MethodPost, "/workflows/"+created.ID+"/activate", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestAPIHandlers_TriggerWorkflowRun(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := jsonRequest(t, app, http.MethodPost, "/workflows", createRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Workflow
	decodeBody(t, resp, &created)

	resp = jsonRequest(t, app, http.MethodPost, "/workflows/"+created.ID+"/run", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var queued map[string]any
	decodeBody(t, resp, &queued)
	assert.Equal(t, "queued", queued["status"])

	resp = jsonRequest(t, app, http.MethodPost, "/workflows/missing/run", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestAPIHandlers_GetWorkflowRuns(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := jsonRequest(t, app, http.MethodPost, "/workflows", createRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created models.Workflow
	decodeBody(t, resp, &created)

	resp = jsonRequest(t, app, http.MethodGet, "/workflows/"+created.ID+"/runs", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Runs  []*models.Run `json:"runs"`
		Count int           `json:"count"`
	}
	decodeBody(t, resp, &result)
	assert.Empty(t, result.Runs)

	resp = jsonRequest(t, app, http.MethodGet, "/runs/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestAPIHandlers_Manifests(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := jsonRequest(t, app, http.MethodGet, "/manifests", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list struct {
		Manifests []string `json:"manifests"`
	}
	decodeBody(t, resp, &list)
	assert.Contains(t, list.Manifests, "Scheduler")
	assert.Contains(t, list.Manifests, "Indicator")

	resp = jsonRequest(t, app, http.MethodGet, "/manifests/Indicator", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var m models.Manifest
	decodeBody(t, resp, &m)
	assert.Equal(t, "Indicator", m.Name)

	resp = jsonRequest(t, app, http.MethodGet, "/manifests/Unknown", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestAPIHandlers_PreviewSchedule(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := jsonRequest(t, app, http.MethodPost, "/schedule/preview", web.SchedulePreviewRequest{
		Interval: "Hours",
		Count:    2,
		Minute:   30,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var preview web.SchedulePreviewResponse
	decodeBody(t, resp, &preview)
	assert.Equal(t, "30 */2 * * *", preview.Cron)

	resp = jsonRequest(t, app, http.MethodPost, "/schedule/preview", web.SchedulePreviewRequest{
		Interval: "Fortnights",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	_ = resp.Body.Close()
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	app, _ := setupTestApp(t)

	resp := jsonRequest(t, app, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]any
	decodeBody(t, resp, &health)
	assert.Equal(t, "healthy", health["status"])
}
