package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBaseEvent(t *testing.T) {
	event := NewBaseEvent(RunStartedEvent, "wf-123")

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, RunStartedEvent, event.Type)
	assert.Equal(t, "wf-123", event.WorkflowID)
	assert.False(t, event.Timestamp.IsZero())
	assert.NotNil(t, event.Metadata)
}

func TestEventTypes(t *testing.T) {
	tests := []struct {
		name     string
		event    interface{ GetType() EventType }
		expected EventType
	}{
		{"run started", RunStarted{}, RunStartedEvent},
		{"run completed", RunCompleted{}, RunCompletedEvent},
		{"run failed", RunFailed{}, RunFailedEvent},
		{"node finished", NodeExecutionFinished{}, NodeExecutionFinishedEvent},
		{"node failed", NodeExecutionFailed{}, NodeExecutionFailedEvent},
		{"workflow activated", WorkflowActivated{}, WorkflowActivatedEvent},
		{"workflow deactivated", WorkflowDeactivated{}, WorkflowDeactivatedEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.event.GetType())
		})
	}
}

func TestRunFailed_JSON(t *testing.T) {
	event := RunFailed{
		BaseEvent: NewBaseEvent(RunFailedEvent, "wf-123"),
		RunID:     "run-1",
		Error:     "node ema failed: boom",
	}

	payload, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded RunFailed
	require.NoError(t, json.Unmarshal(payload, &decoded))

	assert.Equal(t, "run-1", decoded.RunID)
	assert.Equal(t, "node ema failed: boom", decoded.Error)
	assert.Equal(t, "wf-123", decoded.WorkflowID)
}
