package models

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a workflow run. Transitions are
// monotonic: running -> success or running -> failed, never reversed.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// Run is one execution instance of a workflow, scheduled or manual.
type Run struct {
	ID         string     `json:"id"`
	WorkflowID string     `json:"workflow_id"`
	Status     RunStatus  `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// NewRun creates a run record in the running state.
func NewRun(workflowID string) *Run {
	return &Run{
		ID:         uuid.New().String(),
		WorkflowID: workflowID,
		Status:     RunStatusRunning,
		StartedAt:  time.Now().UTC(),
	}
}

// NodeStatus is the lifecycle state of a single node execution.
type NodeStatus string

const (
	NodeStatusRunning NodeStatus = "running"
	NodeStatusSuccess NodeStatus = "success"
	NodeStatusFailed  NodeStatus = "failed"
)

// NodeExecution is the audit record for one (run, node) pair. It is written
// twice: once when dispatch starts and once at completion.
type NodeExecution struct {
	RunID         string         `json:"run_id"`
	NodeID        string         `json:"node_id"`
	Status        NodeStatus     `json:"status"`
	InputPayload  map[string]any `json:"input_payload,omitempty"`
	OutputPayload map[string]any `json:"output_payload,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	FinishedAt    *time.Time     `json:"finished_at,omitempty"`
}
