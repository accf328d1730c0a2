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

	"github.com/coreza/coreza/pkg/models"
	"github.com/coreza/coreza/pkg/persistence"
	"github.com/coreza/coreza/pkg/persistence/postgresql"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Drop tables in reverse dependency order (children first, parents last)
	for _, table := range []string{"node_executions", "workflow_runs", "workflows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("coreza_test"),
			postgres.WithUsername("coreza"),
			postgres.WithPassword("coreza"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	for _, table := range []string{"workflows", "workflow_runs", "node_executions"} {
		var exists bool

		err = db.QueryRowContext(ctx,
			"SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = $1)", table,
		).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "table %s should exist", table)
	}
}

func TestWorkflowRoundTrip(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	workflow := &models.Workflow{
		ID:      "wf-1",
		Name:    "RSI alert",
		OwnerID: "user-1",
		Nodes: []*models.Node{
			{ID: "sched", Type: models.NodeTypeScheduler, Values: map[string]any{"interval": "Minutes", "count": float64(5)}},
			{ID: "rsi", Type: "Indicator", Values: map[string]any{"operation": "rsi", "window": float64(14)}},
		},
		Edges:        []*models.Edge{{Source: "sched", Target: "rsi"}},
		IsActive:     true,
		ScheduleCron: "*/5 * * * *",
	}

	require.NoError(t, p.SaveWorkflow(ctx, workflow))

	loaded, err := p.WorkflowByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "RSI alert", loaded.Name)
	assert.Equal(t, "*/5 * * * *", loaded.ScheduleCron)
	require.Len(t, loaded.Nodes, 2)
	assert.Equal(t, "Indicator", loaded.Nodes[1].Type)
	require.Len(t, loaded.Edges, 1)

	active, err := p.ActiveWorkflows(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	workflow.IsActive = false
	require.NoError(t, p.SaveWorkflow(ctx, workflow))

	active, err = p.ActiveWorkflows(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestWorkflowByID_NotFound(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	_, err := p.WorkflowByID(ctx, "missing")
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestRunLifecycle(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	run := models.NewRun("wf-1")
	require.NoError(t, p.CreateRun(ctx, run))

	require.NoError(t, p.FinishRun(ctx, run.ID, models.RunStatusSuccess, "", time.Now().UTC()))

	loaded, err := p.RunByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSuccess, loaded.Status)
	require.NotNil(t, loaded.FinishedAt)

	// A finished run never transitions again.
	require.NoError(t, p.FinishRun(ctx, run.ID, models.RunStatusFailed, "late failure", time.Now().UTC()))

	loaded, err = p.RunByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSuccess, loaded.Status)

	err = p.FinishRun(ctx, "missing-run", models.RunStatusFailed, "", time.Now().UTC())
	require.Error(t, err)
	assert.True(t, persistence.IsRunNotFound(err))
}

func TestNodeExecutionLifecycle(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	run := models.NewRun("wf-1")
	require.NoError(t, p.CreateRun(ctx, run))

	execution := &models.NodeExecution{
		RunID:        run.ID,
		NodeID:       "rsi",
		Status:       models.NodeStatusRunning,
		InputPayload: map[string]any{"window": float64(14), "user_id": "user-1"},
		StartedAt:    time.Now().UTC(),
	}
	require.NoError(t, p.CreateNodeExecution(ctx, execution))

	output := map[string]any{"status": "success", "output": map[string]any{"last": 61.8}}
	require.NoError(t, p.FinishNodeExecution(ctx, run.ID, "rsi", models.NodeStatusSuccess, output, time.Now().UTC()))

	executions, err := p.NodeExecutionsByRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, models.NodeStatusSuccess, executions[0].Status)
	assert.Equal(t, output, executions[0].OutputPayload)
	assert.Equal(t, "user-1", executions[0].InputPayload["user_id"])

	err = p.FinishNodeExecution(ctx, run.ID, "ghost", models.NodeStatusFailed, nil, time.Now().UTC())
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrNodeExecutionNotFound)
}

func TestRunsByWorkflow_Ordering(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	older := models.NewRun("wf-1")
	older.StartedAt = time.Now().UTC().Add(-time.Hour)
	newer := models.NewRun("wf-1")
	other := models.NewRun("wf-2")

	require.NoError(t, p.CreateRun(ctx, older))
	require.NoError(t, p.CreateRun(ctx, newer))
	require.NoError(t, p.CreateRun(ctx, other))

	runs, err := p.RunsByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.ID, runs[0].ID)
	assert.Equal(t, older.ID, runs[1].ID)
}
