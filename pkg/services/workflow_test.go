package services

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreza/coreza/pkg/manifest"
	"github.com/coreza/coreza/pkg/models"
	"github.com/coreza/coreza/pkg/persistence"
	"github.com/coreza/coreza/pkg/persistence/file"
	"github.com/coreza/coreza/pkg/queue"
	"github.com/coreza/coreza/pkg/trigger"
)

func newTestService(t *testing.T) (*Workflow, *trigger.Service, queue.Queue) {
	t.Helper()

	logger := slog.Default()
	p := file.NewPersistence(t.TempDir())

	manifests, err := manifest.NewStore(logger)
	require.NoError(t, err)

	q := queue.NewMemoryQueue(16)
	triggers := trigger.NewService(logger, q)

	t.Cleanup(func() {
		_ = q.Close()
	})

	return NewWorkflow(logger, p, manifests, triggers, q, nil), triggers, q
}

func validWorkflow() *models.Workflow {
	return &models.Workflow{
		Name:    "Momentum Check",
		OwnerID: "user-1",
		Nodes: []*models.Node{
			{
				ID:   "sched",
				Type: models.NodeTypeScheduler,
				Values: map[string]any{
					"interval": "Minutes",
					"count":    5,
				},
			},
			{
				ID:   "ema",
				Type: "Indicator",
				Values: map[string]any{
					"operation": "ema",
					"window":    3,
				},
			},
		},
		Edges: []*models.Edge{{Source: "sched", Target: "ema"}},
	}
}

func TestWorkflow_Create(t *testing.T) {
	service, _, _ := newTestService(t)

	created, err := service.Create(t.Context(), validWorkflow())
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.False(t, created.IsActive)
	assert.Empty(t, created.ScheduleCron)

	fetched, err := service.FetchByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Momentum Check", fetched.Name)
}

func TestWorkflow_Create_Validation(t *testing.T) {
	service, _, _ := newTestService(t)

	tests := []struct {
		name     string
		workflow *models.Workflow
		wantErr  error
	}{
		{
			name:     "nil workflow",
			workflow: nil,
			wantErr:  ErrWorkflowNil,
		},
		{
			name:     "missing name",
			workflow: &models.Workflow{OwnerID: "user-1", Nodes: []*models.Node{{ID: "a", Type: "Indicator"}}},
			wantErr:  ErrWorkflowNameRequired,
		},
		{
			name:     "no nodes",
			workflow: &models.Workflow{Name: "Empty", OwnerID: "user-1"},
			wantErr:  ErrNodesRequired,
		},
		{
			name:     "missing owner",
			workflow: &models.Workflow{Name: "No Owner", Nodes: []*models.Node{{ID: "a", Type: "Indicator"}}},
			wantErr:  ErrInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Create(t.Context(), tt.workflow)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestWorkflow_Update_PreservesActivationState(t *testing.T) {
	service, _, _ := newTestService(t)

	created, err := service.Create(t.Context(), validWorkflow())
	require.NoError(t, err)

	_, err = service.Activate(t.Context(), created.ID)
	require.NoError(t, err)

	updated := validWorkflow()
	updated.Name = "Momentum Check v2"

	result, err := service.Update(t.Context(), created.ID, updated)
	require.NoError(t, err)

	assert.Equal(t, created.ID, result.ID)
	assert.Equal(t, "Momentum Check v2", result.Name)
	assert.True(t, result.IsActive)
	assert.Equal(t, "*/5 * * * *", result.ScheduleCron)
}

func TestWorkflow_Activate(t *testing.T) {
	service, triggers, q := newTestService(t)

	created, err := service.Create(t.Context(), validWorkflow())
	require.NoError(t, err)

	activated, err := service.Activate(t.Context(), created.ID)
	require.NoError(t, err)

	assert.True(t, activated.IsActive)
	assert.Equal(t, "*/5 * * * *", activated.ScheduleCron)
	assert.True(t, triggers.Registered(created.ID))

	// Activation enqueues an immediate first run.
	request, err := q.Dequeue(t.Context())
	require.NoError(t, err)
	require.NotNil(t, request)
	assert.Equal(t, created.ID, request.WorkflowID)
}

func TestWorkflow_Activate_SchedulerDefaults(t *testing.T) {
	service, _, _ := newTestService(t)

	workflow := validWorkflow()
	workflow.Nodes[0].Values = map[string]any{}

	created, err := service.Create(t.Context(), workflow)
	require.NoError(t, err)

	activated, err := service.Activate(t.Context(), created.ID)
	require.NoError(t, err)

	// Manifest defaults: every minute.
	assert.Equal(t, "*/1 * * * *", activated.ScheduleCron)
}

func TestWorkflow_Activate_Errors(t *testing.T) {
	service, _, _ := newTestService(t)

	t.Run("workflow not found", func(t *testing.T) {
		_, err := service.Activate(t.Context(), "missing")
		assert.True(t, persistence.IsWorkflowNotFound(err))
	})

	t.Run("no scheduler node", func(t *testing.T) {
		workflow := validWorkflow()
		workflow.Nodes = workflow.Nodes[1:]
		workflow.Edges = nil

		created, err := service.Create(t.Context(), workflow)
		require.NoError(t, err)

		_, err = service.Activate(t.Context(), created.ID)
		assert.ErrorIs(t, err, ErrTriggerNodeRequired)
		assert.True(t, IsValidationError(err))
	})

	t.Run("invalid schedule values", func(t *testing.T) {
		workflow := validWorkflow()
		workflow.Nodes[0].Values = map[string]any{"interval": "Fortnights"}

		created, err := service.Create(t.Context(), workflow)
		require.NoError(t, err)

		_, err = service.Activate(t.Context(), created.ID)
		assert.ErrorIs(t, err, ErrInvalidSchedule)
	})
}

func TestWorkflow_Deactivate(t *testing.T) {
	service, triggers, _ := newTestService(t)

	created, err := service.Create(t.Context(), validWorkflow())
	require.NoError(t, err)

	_, err = service.Activate(t.Context(), created.ID)
	require.NoError(t, err)

	deactivated, err := service.Deactivate(t.Context(), created.ID)
	require.NoError(t, err)

	assert.False(t, deactivated.IsActive)
	assert.False(t, triggers.Registered(created.ID))

	// Deactivating twice is fine.
	_, err = service.Deactivate(t.Context(), created.ID)
	require.NoError(t, err)
}

func TestWorkflow_TriggerRun(t *testing.T) {
	service, _, q := newTestService(t)

	created, err := service.Create(t.Context(), validWorkflow())
	require.NoError(t, err)

	require.NoError(t, service.TriggerRun(t.Context(), created.ID))

	request, err := q.Dequeue(t.Context())
	require.NoError(t, err)
	require.NotNil(t, request)
	assert.Equal(t, queue.SourceManual, request.Source)

	err = service.TriggerRun(t.Context(), "missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestWorkflow_Delete(t *testing.T) {
	service, triggers, _ := newTestService(t)

	created, err := service.Create(t.Context(), validWorkflow())
	require.NoError(t, err)

	_, err = service.Activate(t.Context(), created.ID)
	require.NoError(t, err)

	require.NoError(t, service.Delete(t.Context(), created.ID))
	assert.False(t, triggers.Registered(created.ID))

	_, err = service.FetchByID(t.Context(), created.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestWorkflow_HealthCheck(t *testing.T) {
	service, _, _ := newTestService(t)

	message, healthy := service.HealthCheck(context.Background())
	assert.True(t, healthy)
	assert.NotEmpty(t, message)
}
