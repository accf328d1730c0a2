// Package postgresql provides PostgreSQL persistence for workflows, runs
// and node executions.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	// Registers the postgres driver with database/sql.
	_ "github.com/lib/pq"

	"github.com/coreza/coreza/pkg/models"
	"github.com/coreza/coreza/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db           *sql.DB
	logger       *slog.Logger
	workflowRepo *WorkflowRepository
	runRepo      *RunRepository
}

// NewPersistence creates a new PostgreSQL persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	postgres := &Persistence{
		db:           database,
		logger:       logger,
		workflowRepo: NewWorkflowRepository(database, logger),
		runRepo:      NewRunRepository(database, logger),
	}

	// Run migrations on initialization
	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return postgres, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Workflows returns all workflows from the database.
func (p *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	return p.workflowRepo.GetAll(ctx, false)
}

// ActiveWorkflows returns the workflows with an active schedule.
func (p *Persistence) ActiveWorkflows(ctx context.Context) ([]*models.Workflow, error) {
	return p.workflowRepo.GetAll(ctx, true)
}

// WorkflowByID returns a workflow by its ID.
func (p *Persistence) WorkflowByID(ctx context.Context, id string) (*models.Workflow, error) {
	return p.workflowRepo.GetByID(ctx, id)
}

// SaveWorkflow saves a workflow to the database.
func (p *Persistence) SaveWorkflow(ctx context.Context, workflow *models.Workflow) error {
	return p.workflowRepo.Save(ctx, workflow)
}

// DeleteWorkflow removes a workflow by its ID.
func (p *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	return p.workflowRepo.Delete(ctx, id)
}

// CreateRun inserts a new run record.
func (p *Persistence) CreateRun(ctx context.Context, run *models.Run) error {
	return p.runRepo.CreateRun(ctx, run)
}

// FinishRun records the terminal status of a run.
func (p *Persistence) FinishRun(ctx context.Context, runID string, status models.RunStatus, message string, finishedAt time.Time) error {
	return p.runRepo.FinishRun(ctx, runID, status, message, finishedAt)
}

// RunByID returns a run by its ID.
func (p *Persistence) RunByID(ctx context.Context, id string) (*models.Run, error) {
	return p.runRepo.RunByID(ctx, id)
}

// RunsByWorkflow lists the runs of one workflow, most recent first.
func (p *Persistence) RunsByWorkflow(ctx context.Context, workflowID string) ([]*models.Run, error) {
	return p.runRepo.RunsByWorkflow(ctx, workflowID)
}

// CreateNodeExecution inserts a node execution record.
func (p *Persistence) CreateNodeExecution(ctx context.Context, execution *models.NodeExecution) error {
	return p.runRepo.CreateNodeExecution(ctx, execution)
}

// FinishNodeExecution records the terminal status and output of a node execution.
func (p *Persistence) FinishNodeExecution(ctx context.Context, runID, nodeID string, status models.NodeStatus, output map[string]any, finishedAt time.Time) error {
	return p.runRepo.FinishNodeExecution(ctx, runID, nodeID, status, output, finishedAt)
}

// NodeExecutionsByRun lists the node executions of a run in execution order.
func (p *Persistence) NodeExecutionsByRun(ctx context.Context, runID string) ([]*models.NodeExecution, error) {
	return p.runRepo.NodeExecutionsByRun(ctx, runID)
}
