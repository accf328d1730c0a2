// Package file provides file-based persistence for workflows, runs and
// node executions. Each record is one JSON file under the root directory;
// it exists for local development and tests, not for concurrent writers.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/coreza/coreza/pkg/models"
	"github.com/coreza/coreza/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root string
	mu   sync.Mutex
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) persistence.Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{root: cleanRoot}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Workflows returns every stored workflow sorted by creation time.
func (fp *Persistence) Workflows(ctx context.Context) ([]*models.Workflow, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	return fp.loadWorkflows(ctx)
}

// ActiveWorkflows returns the workflows with an active schedule.
func (fp *Persistence) ActiveWorkflows(ctx context.Context) ([]*models.Workflow, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	all, err := fp.loadWorkflows(ctx)
	if err != nil {
		return nil, err
	}

	active := make([]*models.Workflow, 0, len(all))

	for _, workflow := range all {
		if workflow.IsActive {
			active = append(active, workflow)
		}
	}

	return active, nil
}

func (fp *Persistence) loadWorkflows(_ context.Context) ([]*models.Workflow, error) {
	dir := os.DirFS(path.Join(fp.root, "workflows"))

	files, err := fs.Glob(dir, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	workflows := make([]*models.Workflow, 0, len(files))

	for _, file := range files {
		workflow, err := fp.readWorkflow(strings.TrimSuffix(file, ".json"))
		if err != nil {
			return nil, err
		}

		if workflow != nil {
			workflows = append(workflows, workflow)
		}
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.Before(workflows[j].CreatedAt)
	})

	return workflows, nil
}

// WorkflowByID retrieves a workflow by its ID.
func (fp *Persistence) WorkflowByID(_ context.Context, id string) (*models.Workflow, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	workflow, err := fp.readWorkflow(id)
	if err != nil {
		return nil, err
	}

	if workflow == nil {
		return nil, persistence.NewWorkflowError("WorkflowByID", id, persistence.ErrWorkflowNotFound)
	}

	return workflow, nil
}

func (fp *Persistence) readWorkflow(id string) (*models.Workflow, error) {
	filePath := filepath.Clean(path.Join(fp.root, "workflows", id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to fetch workflow %s: %w", id, err)
	}

	var workflow models.Workflow

	err = json.Unmarshal(body, &workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow %s: %w", id, err)
	}

	return &workflow, nil
}

// SaveWorkflow writes a workflow to the file system.
func (fp *Persistence) SaveWorkflow(_ context.Context, workflow *models.Workflow) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	return fp.writeJSON(path.Join("workflows", workflow.ID+".json"), workflow)
}

// DeleteWorkflow removes a workflow by its ID. Deleting an absent workflow is a no-op.
func (fp *Persistence) DeleteWorkflow(_ context.Context, id string) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	err := os.Remove(path.Join(fp.root, "workflows", id+".json"))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	return nil
}

// CreateRun writes a new run record.
func (fp *Persistence) CreateRun(_ context.Context, run *models.Run) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	return fp.writeJSON(path.Join("runs", run.ID+".json"), run)
}

// FinishRun records the terminal status of a run. The transition is
// monotonic: a run that already finished is left untouched.
func (fp *Persistence) FinishRun(_ context.Context, runID string, status models.RunStatus, message string, finishedAt time.Time) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	run, err := fp.readRun(runID)
	if err != nil {
		return err
	}

	if run == nil {
		return persistence.NewRunError("FinishRun", runID, persistence.ErrRunNotFound)
	}

	if run.Status != models.RunStatusRunning {
		return nil
	}

	run.Status = status
	run.Error = message
	run.FinishedAt = &finishedAt

	return fp.writeJSON(path.Join("runs", runID+".json"), run)
}

// RunByID retrieves a run by its ID.
func (fp *Persistence) RunByID(_ context.Context, id string) (*models.Run, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	run, err := fp.readRun(id)
	if err != nil {
		return nil, err
	}

	if run == nil {
		return nil, persistence.NewRunError("RunByID", id, persistence.ErrRunNotFound)
	}

	return run, nil
}

func (fp *Persistence) readRun(id string) (*models.Run, error) {
	body, err := os.ReadFile(filepath.Clean(path.Join(fp.root, "runs", id+".json")))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to fetch run %s: %w", id, err)
	}

	var run models.Run

	err = json.Unmarshal(body, &run)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal run %s: %w", id, err)
	}

	return &run, nil
}

// RunsByWorkflow lists the runs of one workflow, most recent first.
func (fp *Persistence) RunsByWorkflow(_ context.Context, workflowID string) ([]*models.Run, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	dir := os.DirFS(path.Join(fp.root, "runs"))

	files, err := fs.Glob(dir, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list run files: %w", err)
	}

	runs := make([]*models.Run, 0)

	for _, file := range files {
		run, err := fp.readRun(strings.TrimSuffix(file, ".json"))
		if err != nil {
			return nil, err
		}

		if run != nil && run.WorkflowID == workflowID {
			runs = append(runs, run)
		}
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})

	return runs, nil
}

// CreateNodeExecution appends a node execution record to its run's file.
func (fp *Persistence) CreateNodeExecution(_ context.Context, execution *models.NodeExecution) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	executions, err := fp.readNodeExecutions(execution.RunID)
	if err != nil {
		return err
	}

	executions = append(executions, execution)

	return fp.writeJSON(path.Join("node_executions", execution.RunID+".json"), executions)
}

// FinishNodeExecution records the terminal status and output of a node execution.
func (fp *Persistence) FinishNodeExecution(_ context.Context, runID, nodeID string, status models.NodeStatus, output map[string]any, finishedAt time.Time) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	executions, err := fp.readNodeExecutions(runID)
	if err != nil {
		return err
	}

	for _, execution := range executions {
		if execution.NodeID != nodeID {
			continue
		}

		execution.Status = status
		execution.OutputPayload = output
		execution.FinishedAt = &finishedAt

		return fp.writeJSON(path.Join("node_executions", runID+".json"), executions)
	}

	return persistence.NewNodeExecutionError("FinishNodeExecution", runID, nodeID, persistence.ErrNodeExecutionNotFound)
}

// NodeExecutionsByRun lists the node executions of a run in execution order.
func (fp *Persistence) NodeExecutionsByRun(_ context.Context, runID string) ([]*models.NodeExecution, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	return fp.readNodeExecutions(runID)
}

func (fp *Persistence) readNodeExecutions(runID string) ([]*models.NodeExecution, error) {
	body, err := os.ReadFile(filepath.Clean(path.Join(fp.root, "node_executions", runID+".json")))
	if err != nil {
		if os.IsNotExist(err) {
			return []*models.NodeExecution{}, nil
		}

		return nil, fmt.Errorf("failed to fetch node executions for run %s: %w", runID, err)
	}

	var executions []*models.NodeExecution

	err = json.Unmarshal(body, &executions)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal node executions for run %s: %w", runID, err)
	}

	return executions, nil
}

func (fp *Persistence) writeJSON(relPath string, value any) error {
	fullPath := path.Join(fp.root, relPath)

	err := os.MkdirAll(filepath.Dir(fullPath), 0750)
	if err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", relPath, err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", relPath, err)
	}

	return os.WriteFile(fullPath, data, 0600)
}
