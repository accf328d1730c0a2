// Package queue provides the work queue that decouples trigger firings
// from run execution. Triggers enqueue run requests; worker processes pull
// them and execute runs concurrently.
package queue

import (
	"context"
	"time"
)

// Source identifies what enqueued a run request.
const (
	SourceSchedule = "schedule"
	SourceManual   = "manual"
)

// RunRequest asks a worker to execute one run of a workflow.
type RunRequest struct {
	WorkflowID string    `json:"workflow_id"`
	Source     string    `json:"source"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewRunRequest builds a run request stamped with the current time.
func NewRunRequest(workflowID, source string) *RunRequest {
	return &RunRequest{
		WorkflowID: workflowID,
		Source:     source,
		EnqueuedAt: time.Now().UTC(),
	}
}

// Queue is a FIFO work queue of run requests. Dequeue blocks for a short
// interval and returns (nil, nil) when no request arrived, so consumer
// loops can check for shutdown between polls.
type Queue interface {
	Enqueue(ctx context.Context, request *RunRequest) error
	Dequeue(ctx context.Context) (*RunRequest, error)
	Close() error
}
