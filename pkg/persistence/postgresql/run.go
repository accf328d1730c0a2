package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coreza/coreza/pkg/models"
	"github.com/coreza/coreza/pkg/persistence"
)

// RunRepository handles the run and node execution audit tables.
type RunRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db *sql.DB, logger *slog.Logger) *RunRepository {
	return &RunRepository{db: db, logger: logger}
}

// CreateRun inserts a new run record.
func (r *RunRepository) CreateRun(ctx context.Context, run *models.Run) error {
	query := `
		INSERT INTO workflow_runs (id, workflow_id, status, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		run.ID,
		run.WorkflowID,
		string(run.Status),
		nullString(run.Error),
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return persistence.NewRunError("CreateRun", run.ID, err)
	}

	return nil
}

// FinishRun records the terminal status of a run. Only a run still in the
// running state is updated, which keeps the transition monotonic.
func (r *RunRepository) FinishRun(ctx context.Context, runID string, status models.RunStatus, message string, finishedAt time.Time) error {
	query := `
		UPDATE workflow_runs
		SET status = $2, error = $3, finished_at = $4
		WHERE id = $1 AND status = 'running'
	`

	result, err := r.db.ExecContext(ctx, query, runID, string(status), nullString(message), finishedAt)
	if err != nil {
		return persistence.NewRunError("FinishRun", runID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewRunError("FinishRun", runID, err)
	}

	if affected == 0 {
		exists, err := r.runExists(ctx, runID)
		if err != nil {
			return persistence.NewRunError("FinishRun", runID, err)
		}

		if !exists {
			return persistence.NewRunError("FinishRun", runID, persistence.ErrRunNotFound)
		}
	}

	return nil
}

func (r *RunRepository) runExists(ctx context.Context, runID string) (bool, error) {
	var exists bool

	err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM workflow_runs WHERE id = $1)", runID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check run existence: %w", err)
	}

	return exists, nil
}

// RunByID retrieves a run by its ID.
func (r *RunRepository) RunByID(ctx context.Context, id string) (*models.Run, error) {
	query := `
		SELECT id, workflow_id, status, error, started_at, finished_at
		FROM workflow_runs
		WHERE id = $1
	`

	run, err := r.scanRun(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewRunError("RunByID", id, persistence.ErrRunNotFound)
		}

		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	return run, nil
}

// RunsByWorkflow lists the runs of one workflow, most recent first.
func (r *RunRepository) RunsByWorkflow(ctx context.Context, workflowID string) ([]*models.Run, error) {
	query := `
		SELECT id, workflow_id, status, error, started_at, finished_at
		FROM workflow_runs
		WHERE workflow_id = $1
		ORDER BY started_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	defer func(ctx context.Context, r *RunRepository) {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}(ctx, r)

	runs := make([]*models.Run, 0)

	for rows.Next() {
		run, err := r.scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		runs = append(runs, run)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

func (r *RunRepository) scanRun(scanner rowScanner) (*models.Run, error) {
	var (
		run        models.Run
		status     string
		message    sql.NullString
		finishedAt sql.NullTime
	)

	err := scanner.Scan(&run.ID, &run.WorkflowID, &status, &message, &run.StartedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	run.Status = models.RunStatus(status)
	run.Error = message.String

	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}

	return &run, nil
}

// CreateNodeExecution inserts a node execution record.
func (r *RunRepository) CreateNodeExecution(ctx context.Context, execution *models.NodeExecution) error {
	inputJSON, err := json.Marshal(execution.InputPayload)
	if err != nil {
		return fmt.Errorf("failed to marshal input payload: %w", err)
	}

	query := `
		INSERT INTO node_executions (run_id, node_id, status, input_payload, started_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.RunID,
		execution.NodeID,
		string(execution.Status),
		inputJSON,
		execution.StartedAt,
	)
	if err != nil {
		return persistence.NewNodeExecutionError("CreateNodeExecution", execution.RunID, execution.NodeID, err)
	}

	return nil
}

// FinishNodeExecution records the terminal status and output of a node execution.
func (r *RunRepository) FinishNodeExecution(ctx context.Context, runID, nodeID string, status models.NodeStatus, output map[string]any, finishedAt time.Time) error {
	outputJSON, err := json.Marshal(output)
	if err != nil {
		return fmt.Errorf("failed to marshal output payload: %w", err)
	}

	query := `
		UPDATE node_executions
		SET status = $3, output_payload = $4, finished_at = $5
		WHERE run_id = $1 AND node_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, runID, nodeID, string(status), outputJSON, finishedAt)
	if err != nil {
		return persistence.NewNodeExecutionError("FinishNodeExecution", runID, nodeID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewNodeExecutionError("FinishNodeExecution", runID, nodeID, err)
	}

	if affected == 0 {
		return persistence.NewNodeExecutionError("FinishNodeExecution", runID, nodeID, persistence.ErrNodeExecutionNotFound)
	}

	return nil
}

// NodeExecutionsByRun lists the node executions of a run in execution order.
func (r *RunRepository) NodeExecutionsByRun(ctx context.Context, runID string) ([]*models.NodeExecution, error) {
	query := `
		SELECT run_id, node_id, status, input_payload, output_payload, started_at, finished_at
		FROM node_executions
		WHERE run_id = $1
		ORDER BY started_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query node executions: %w", err)
	}

	defer func(ctx context.Context, r *RunRepository) {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}(ctx, r)

	executions := make([]*models.NodeExecution, 0)

	for rows.Next() {
		var (
			execution  models.NodeExecution
			status     string
			inputJSON  []byte
			outputJSON []byte
			finishedAt sql.NullTime
		)

		err := rows.Scan(&execution.RunID, &execution.NodeID, &status, &inputJSON, &outputJSON, &execution.StartedAt, &finishedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node execution: %w", err)
		}

		execution.Status = models.NodeStatus(status)

		if len(inputJSON) > 0 {
			err = json.Unmarshal(inputJSON, &execution.InputPayload)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal input payload: %w", err)
			}
		}

		if len(outputJSON) > 0 {
			err = json.Unmarshal(outputJSON, &execution.OutputPayload)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal output payload: %w", err)
			}
		}

		if finishedAt.Valid {
			execution.FinishedAt = &finishedAt.Time
		}

		executions = append(executions, &execution)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating node executions: %w", err)
	}

	return executions, nil
}
