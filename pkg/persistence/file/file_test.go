package file

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreza/coreza/pkg/models"
	"github.com/coreza/coreza/pkg/persistence"
)

func newTestPersistence(t *testing.T) persistence.Persistence {
	t.Helper()

	return NewPersistence(t.TempDir())
}

func testWorkflow(id string) *models.Workflow {
	return &models.Workflow{
		ID:      id,
		Name:    "EMA crossover",
		OwnerID: "user-1",
		Nodes: []*models.Node{
			{ID: "sched", Type: models.NodeTypeScheduler, Values: map[string]any{"interval": "Minutes", "count": float64(5)}},
			{ID: "ema", Type: "Indicator", Values: map[string]any{"operation": "ema", "window": float64(10)}},
		},
		Edges: []*models.Edge{{Source: "sched", Target: "ema"}},
	}
}

func TestWorkflowRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := newTestPersistence(t)

	require.NoError(t, p.SaveWorkflow(ctx, testWorkflow("wf-1")))

	loaded, err := p.WorkflowByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "EMA crossover", loaded.Name)
	assert.Len(t, loaded.Nodes, 2)
	assert.False(t, loaded.CreatedAt.IsZero())

	workflows, err := p.Workflows(ctx)
	require.NoError(t, err)
	assert.Len(t, workflows, 1)
}

func TestWorkflowByID_NotFound(t *testing.T) {
	p := newTestPersistence(t)

	_, err := p.WorkflowByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestActiveWorkflows(t *testing.T) {
	ctx := context.Background()
	p := newTestPersistence(t)

	active := testWorkflow("wf-active")
	active.IsActive = true
	active.ScheduleCron = "*/5 * * * *"

	require.NoError(t, p.SaveWorkflow(ctx, active))
	require.NoError(t, p.SaveWorkflow(ctx, testWorkflow("wf-idle")))

	workflows, err := p.ActiveWorkflows(ctx)
	require.NoError(t, err)
	require.Len(t, workflows, 1)
	assert.Equal(t, "wf-active", workflows[0].ID)
}

func TestDeleteWorkflow_Idempotent(t *testing.T) {
	ctx := context.Background()
	p := newTestPersistence(t)

	require.NoError(t, p.SaveWorkflow(ctx, testWorkflow("wf-1")))
	require.NoError(t, p.DeleteWorkflow(ctx, "wf-1"))
	require.NoError(t, p.DeleteWorkflow(ctx, "wf-1"))
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	p := newTestPersistence(t)

	run := models.NewRun("wf-1")
	require.NoError(t, p.CreateRun(ctx, run))

	loaded, err := p.RunByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, loaded.Status)

	finishedAt := time.Now().UTC()
	require.NoError(t, p.FinishRun(ctx, run.ID, models.RunStatusFailed, "node ema failed", finishedAt))

	loaded, err = p.RunByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, loaded.Status)
	assert.Equal(t, "node ema failed", loaded.Error)
	require.NotNil(t, loaded.FinishedAt)

	// Terminal states are final.
	require.NoError(t, p.FinishRun(ctx, run.ID, models.RunStatusSuccess, "", time.Now().UTC()))

	loaded, err = p.RunByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusFailed, loaded.Status)
}

func TestRunsByWorkflow(t *testing.T) {
	ctx := context.Background()
	p := newTestPersistence(t)

	first := models.NewRun("wf-1")
	first.StartedAt = time.Now().UTC().Add(-time.Hour)
	second := models.NewRun("wf-1")
	other := models.NewRun("wf-2")

	require.NoError(t, p.CreateRun(ctx, first))
	require.NoError(t, p.CreateRun(ctx, second))
	require.NoError(t, p.CreateRun(ctx, other))

	runs, err := p.RunsByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.ID, runs[0].ID)
}

func TestNodeExecutionLifecycle(t *testing.T) {
	ctx := context.Background()
	p := newTestPersistence(t)

	execution := &models.NodeExecution{
		RunID:        "run-1",
		NodeID:       "ema",
		Status:       models.NodeStatusRunning,
		InputPayload: map[string]any{"window": float64(10)},
		StartedAt:    time.Now().UTC(),
	}

	require.NoError(t, p.CreateNodeExecution(ctx, execution))

	output := map[string]any{"status": "success", "output": map[string]any{"last": 42.0}}
	require.NoError(t, p.FinishNodeExecution(ctx, "run-1", "ema", models.NodeStatusSuccess, output, time.Now().UTC()))

	executions, err := p.NodeExecutionsByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, models.NodeStatusSuccess, executions[0].Status)
	assert.Equal(t, output, executions[0].OutputPayload)
	require.NotNil(t, executions[0].FinishedAt)
}

func TestFinishNodeExecution_NotFound(t *testing.T) {
	p := newTestPersistence(t)

	err := p.FinishNodeExecution(context.Background(), "run-1", "ghost", models.NodeStatusFailed, nil, time.Now().UTC())
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrNodeExecutionNotFound)
}
