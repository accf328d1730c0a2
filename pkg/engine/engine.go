// Package engine executes workflow runs: it orders the DAG, resolves each
// node's inputs against the accumulated run context and dispatches nodes
// one at a time.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coreza/coreza/pkg/dispatcher"
	"github.com/coreza/coreza/pkg/eventbus"
	"github.com/coreza/coreza/pkg/events"
	"github.com/coreza/coreza/pkg/manifest"
	"github.com/coreza/coreza/pkg/models"
	"github.com/coreza/coreza/pkg/persistence"
	"github.com/coreza/coreza/pkg/references"
)

// NodeFailureError reports the node whose dispatch failed and stopped the run.
type NodeFailureError struct {
	NodeID  string
	Message string
}

func (e *NodeFailureError) Error() string {
	return fmt.Sprintf("node %s failed: %s", e.NodeID, e.Message)
}

// Engine runs one workflow at a time. Node execution within a run is
// strictly sequential, even across independent branches; a node failure
// aborts the whole run.
type Engine struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	manifests   *manifest.Store
	dispatcher  *dispatcher.Dispatcher
	eventBus    eventbus.EventPublisher
}

// NewEngine creates an execution engine. The event bus may be nil; node
// execution events are then skipped.
func NewEngine(
	logger *slog.Logger,
	p persistence.Persistence,
	manifests *manifest.Store,
	d *dispatcher.Dispatcher,
	bus eventbus.EventPublisher,
) *Engine {
	return &Engine{
		logger:      logger.With("module", "engine"),
		persistence: p,
		manifests:   manifests,
		dispatcher:  d,
		eventBus:    bus,
	}
}

// Execute runs the workflow for the given run record. It returns nil only
// if every reached node was dispatched and recorded successfully. Audit
// trail writes are best effort: a persistence failure is logged and never
// alters the run's outcome.
func (e *Engine) Execute(ctx context.Context, run *models.Run) error {
	logger := e.logger.With("run_id", run.ID, "workflow_id", run.WorkflowID)

	workflow, err := e.persistence.WorkflowByID(ctx, run.WorkflowID)
	if err != nil {
		return fmt.Errorf("failed to load workflow: %w", err)
	}

	order, err := TopologicalSort(workflow.Nodes, workflow.Edges)
	if err != nil {
		return err
	}

	execContext := models.NewExecutionContext(run.ID, workflow.ID, workflow.OwnerID)

	for _, node := range order {
		if node.IsTriggerNode() {
			logger.Debug("Skipping trigger node", "node_id", node.ID)

			continue
		}

		m, err := e.manifests.Get(node.Type)
		if err != nil {
			logger.Error("Manifest not found for node type, skipping node", "node_id", node.ID, "node_type", node.Type)

			continue
		}

		inputs := resolveInputs(node, workflow.OwnerID, execContext)

		execution := &models.NodeExecution{
			RunID:        run.ID,
			NodeID:       node.ID,
			Status:       models.NodeStatusRunning,
			InputPayload: inputs,
			StartedAt:    time.Now().UTC(),
		}

		err = e.persistence.CreateNodeExecution(ctx, execution)
		if err != nil {
			logger.Error("Failed to record node execution start", "node_id", node.ID, "error", err)
		}

		result := e.dispatcher.Dispatch(ctx, *node, m, inputs)

		status := models.NodeStatusSuccess
		if result.Failed() {
			status = models.NodeStatusFailed
		}

		err = e.persistence.FinishNodeExecution(ctx, run.ID, node.ID, status, result.Payload(), time.Now().UTC())
		if err != nil {
			logger.Error("Failed to record node execution result", "node_id", node.ID, "error", err)
		}

		if result.Failed() {
			e.publish(ctx, workflow.ID, events.NodeExecutionFailed{
				BaseEvent: events.NewBaseEvent(events.NodeExecutionFailedEvent, workflow.ID),
				RunID:     run.ID,
				NodeID:    node.ID,
				Error:     result.Error,
			})

			logger.Error("Node failed, stopping run", "node_id", node.ID, "error", result.Error)

			return &NodeFailureError{NodeID: node.ID, Message: result.Error}
		}

		e.publish(ctx, workflow.ID, events.NodeExecutionFinished{
			BaseEvent: events.NewBaseEvent(events.NodeExecutionFinishedEvent, workflow.ID),
			RunID:     run.ID,
			NodeID:    node.ID,
			Output:    result.Output,
		})

		execContext.Record(node.ID, result.Output)
	}

	return nil
}

// publish emits a node lifecycle event. Publication is best effort: a bus
// failure is logged and never alters the run's outcome.
func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.eventBus == nil {
		return
	}

	if err := e.eventBus.Publish(ctx, key, event); err != nil {
		e.logger.Error("Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

// resolveInputs resolves every configured node value against the run
// context, then merges in the run's owner and the node's declared
// credential reference.
func resolveInputs(node *models.Node, ownerID string, execContext *models.ExecutionContext) map[string]any {
	inputs := make(map[string]any, len(node.Values)+2)

	for key, value := range node.Values {
		inputs[key] = references.ResolveValue(value, execContext.Outputs(), node.ID)
	}

	inputs["user_id"] = ownerID
	inputs["credential_id"] = node.Values["credential_id"]

	return inputs
}
