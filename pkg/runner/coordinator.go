// Package runner coordinates whole workflow runs: it owns the run record's
// lifecycle around the engine's node-by-node execution.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coreza/coreza/pkg/engine"
	"github.com/coreza/coreza/pkg/eventbus"
	"github.com/coreza/coreza/pkg/events"
	"github.com/coreza/coreza/pkg/models"
	"github.com/coreza/coreza/pkg/persistence"
)

// RunOutcome summarizes one finished run.
type RunOutcome struct {
	RunID      string
	WorkflowID string
	Status     models.RunStatus
	Error      string
	Duration   time.Duration
}

// Coordinator creates the run record, hands it to the engine and writes the
// single completion update. A run gets at most one completion write.
type Coordinator struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	engine      *engine.Engine
	eventBus    eventbus.EventBus
	workerID    string
}

func NewCoordinator(logger *slog.Logger, p persistence.Persistence, e *engine.Engine, bus eventbus.EventBus, workerID string) *Coordinator {
	return &Coordinator{
		logger:      logger.With("module", "runner", "worker_id", workerID),
		persistence: p,
		engine:      e,
		eventBus:    bus,
		workerID:    workerID,
	}
}

// Run executes one run of the workflow from start to finish. An error is
// returned only when the run record could not be created and the run was
// abandoned; engine failures are reported through the outcome instead.
func (c *Coordinator) Run(ctx context.Context, workflowID string) (*RunOutcome, error) {
	run := models.NewRun(workflowID)
	logger := c.logger.With("run_id", run.ID, "workflow_id", workflowID)

	err := c.persistence.CreateRun(ctx, run)
	if err != nil {
		logger.Error("Failed to create run record, abandoning run", "error", err)

		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	c.publish(ctx, workflowID, events.RunStarted{
		BaseEvent: c.baseEvent(events.RunStartedEvent, workflowID),
		RunID:     run.ID,
	})

	execErr := c.engine.Execute(ctx, run)
	finishedAt := time.Now().UTC()
	duration := finishedAt.Sub(run.StartedAt)

	outcome := &RunOutcome{
		RunID:      run.ID,
		WorkflowID: workflowID,
		Duration:   duration,
	}

	if execErr != nil {
		outcome.Status = models.RunStatusFailed
		outcome.Error = execErr.Error()

		err = c.persistence.FinishRun(ctx, run.ID, models.RunStatusFailed, execErr.Error(), finishedAt)
		if err != nil {
			logger.Error("Failed to record run failure", "error", err)
		}

		c.publish(ctx, workflowID, events.RunFailed{
			BaseEvent: c.baseEvent(events.RunFailedEvent, workflowID),
			RunID:     run.ID,
			Error:     execErr.Error(),
			Duration:  duration,
		})

		logger.Warn("Run failed", "error", execErr, "duration", duration)

		return outcome, nil
	}

	outcome.Status = models.RunStatusSuccess

	err = c.persistence.FinishRun(ctx, run.ID, models.RunStatusSuccess, "", finishedAt)
	if err != nil {
		logger.Error("Failed to record run completion", "error", err)
	}

	c.publish(ctx, workflowID, events.RunCompleted{
		BaseEvent: c.baseEvent(events.RunCompletedEvent, workflowID),
		RunID:     run.ID,
		Duration:  duration,
	})

	logger.Info("Run completed", "duration", duration)

	return outcome, nil
}

func (c *Coordinator) baseEvent(eventType events.EventType, workflowID string) events.BaseEvent {
	base := events.NewBaseEvent(eventType, workflowID)
	base.WorkerID = c.workerID

	return base
}

func (c *Coordinator) publish(ctx context.Context, key string, event eventbus.Event) {
	if c.eventBus == nil {
		return
	}

	err := c.eventBus.Publish(ctx, key, event)
	if err != nil {
		c.logger.Error("Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
