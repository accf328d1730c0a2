package persistence

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowError(t *testing.T) {
	err := NewWorkflowError("WorkflowByID", "wf-1", ErrWorkflowNotFound)

	assert.Equal(t, "WorkflowByID operation failed for workflow wf-1: workflow not found", err.Error())
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
	assert.True(t, IsWorkflowNotFound(err))

	var wrapped *WorkflowError
	require.ErrorAs(t, error(err), &wrapped)
	assert.Equal(t, "wf-1", wrapped.WorkflowID)
}

func TestRunError(t *testing.T) {
	err := NewRunError("RunByID", "run-1", ErrRunNotFound)

	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.True(t, IsRunNotFound(err))
	assert.False(t, IsWorkflowNotFound(err))
}

func TestNodeExecutionError(t *testing.T) {
	cause := errors.New("disk full")
	err := NewNodeExecutionError("FinishNodeExecution", "run-1", "node-1", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "node node-1 in run run-1")
}
