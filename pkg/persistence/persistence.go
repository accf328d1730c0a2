// Package persistence provides the data storage abstraction for workflows,
// runs and node executions.
package persistence

import (
	"context"
	"time"

	"github.com/coreza/coreza/pkg/models"
)

type Persistence interface {
	Workflows(ctx context.Context) ([]*models.Workflow, error)
	ActiveWorkflows(ctx context.Context) ([]*models.Workflow, error)
	SaveWorkflow(ctx context.Context, workflow *models.Workflow) error
	WorkflowByID(ctx context.Context, id string) (*models.Workflow, error)
	DeleteWorkflow(ctx context.Context, id string) error

	CreateRun(ctx context.Context, run *models.Run) error
	FinishRun(ctx context.Context, runID string, status models.RunStatus, message string, finishedAt time.Time) error
	RunByID(ctx context.Context, id string) (*models.Run, error)
	RunsByWorkflow(ctx context.Context, workflowID string) ([]*models.Run, error)

	CreateNodeExecution(ctx context.Context, execution *models.NodeExecution) error
	FinishNodeExecution(ctx context.Context, runID, nodeID string, status models.NodeStatus, output map[string]any, finishedAt time.Time) error
	NodeExecutionsByRun(ctx context.Context, runID string) ([]*models.NodeExecution, error)

	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
