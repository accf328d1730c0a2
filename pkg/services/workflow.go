package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/coreza/coreza/pkg/eventbus"
	"github.com/coreza/coreza/pkg/events"
	"github.com/coreza/coreza/pkg/manifest"
	"github.com/coreza/coreza/pkg/models"
	"github.com/coreza/coreza/pkg/persistence"
	"github.com/coreza/coreza/pkg/queue"
	"github.com/coreza/coreza/pkg/schedule"
	"github.com/coreza/coreza/pkg/trigger"
)

// ErrWorkflowNotFound is returned when a workflow is not found.
var ErrWorkflowNotFound = persistence.ErrWorkflowNotFound

// Workflow is the workflow lifecycle service. Activation derives a cron
// expression from the workflow's Scheduler node, persists it alongside the
// active flag and registers the schedule with the trigger service.
type Workflow struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	manifests   *manifest.Store
	triggers    *trigger.Service
	queue       queue.Queue
	eventBus    eventbus.EventPublisher
	validate    *validator.Validate
}

// NewWorkflow creates a new workflow service. The event bus may be nil when
// no channel is configured; lifecycle events are then skipped.
func NewWorkflow(
	logger *slog.Logger,
	p persistence.Persistence,
	manifests *manifest.Store,
	triggers *trigger.Service,
	q queue.Queue,
	eventBus eventbus.EventPublisher,
) *Workflow {
	return &Workflow{
		logger:      logger.With("module", "workflow_service"),
		persistence: p,
		manifests:   manifests,
		triggers:    triggers,
		queue:       q,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// List retrieves all workflows.
func (w *Workflow) List(ctx context.Context) ([]*models.Workflow, error) {
	workflows, err := w.persistence.Workflows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return workflows, nil
}

// FetchByID retrieves a workflow by its ID.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := w.persistence.WorkflowByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return workflow, nil
}

// Create adds a new workflow to the repository. New workflows start inactive;
// Activate is a separate step.
func (w *Workflow) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if err := w.validateWorkflow(workflow); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	workflow.ID = uuid.New().String()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now
	workflow.IsActive = false
	workflow.ScheduleCron = ""

	err := w.persistence.SaveWorkflow(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	return workflow, nil
}

// Update modifies an existing workflow by its ID. The active flag and derived
// cron expression are carried over from the stored workflow; they change only
// through Activate and Deactivate.
func (w *Workflow) Update(
	ctx context.Context,
	workflowID string,
	workflow *models.Workflow,
) (*models.Workflow, error) {
	if err := w.validateWorkflow(workflow); err != nil {
		return nil, err
	}

	existing, err := w.persistence.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	workflow.ID = workflowID
	workflow.CreatedAt = existing.CreatedAt
	workflow.UpdatedAt = time.Now().UTC()
	workflow.IsActive = existing.IsActive
	workflow.ScheduleCron = existing.ScheduleCron

	err = w.persistence.SaveWorkflow(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	return workflow, nil
}

// Delete removes a workflow by its ID and drops any registered schedule.
func (w *Workflow) Delete(ctx context.Context, workflowID string) error {
	existing, err := w.persistence.WorkflowByID(ctx, workflowID)
	if err != nil {
		return err
	}

	if existing.IsActive && w.triggers != nil {
		w.triggers.Remove(ctx, workflowID)
	}

	err = w.persistence.DeleteWorkflow(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	return nil
}

// Activate derives the cron expression from the workflow's Scheduler node,
// marks the workflow active, registers the schedule and enqueues an immediate
// first run.
func (w *Workflow) Activate(ctx context.Context, workflowID string) (*models.Workflow, error) {
	workflow, err := w.persistence.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	node, ok := workflow.SchedulerNode()
	if !ok {
		return nil, NewValidationError(
			"Activate",
			"TRIGGER_NODE_REQUIRED",
			"workflow has no Scheduler node to activate",
			ErrTriggerNodeRequired,
		)
	}

	spec, err := w.scheduleSpecFor(node)
	if err != nil {
		return nil, NewValidationError("Activate", "INVALID_SCHEDULE", err.Error(), ErrInvalidSchedule)
	}

	cronExpr, err := schedule.Translate(spec)
	if err != nil {
		return nil, NewValidationError("Activate", "INVALID_SCHEDULE", err.Error(), ErrInvalidSchedule)
	}

	workflow.IsActive = true
	workflow.ScheduleCron = cronExpr
	workflow.UpdatedAt = time.Now().UTC()

	if err := w.persistence.SaveWorkflow(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to activate workflow: %w", err)
	}

	if w.triggers != nil {
		if err := w.triggers.Register(ctx, workflowID, cronExpr); err != nil {
			return nil, fmt.Errorf("failed to register schedule: %w", err)
		}
	}

	// Activation always kicks off a first run rather than waiting for the
	// next cron boundary.
	if w.queue != nil {
		if err := w.queue.Enqueue(ctx, queue.NewRunRequest(workflowID, queue.SourceManual)); err != nil {
			w.logger.Error("Failed to enqueue activation run", "workflow_id", workflowID, "error", err)
		}
	}

	w.publish(ctx, workflowID, events.WorkflowActivated{
		BaseEvent: events.NewBaseEvent(events.WorkflowActivatedEvent, workflowID),
		Cron:      cronExpr,
	})

	w.logger.Info("Workflow activated", "workflow_id", workflowID, "cron", cronExpr)

	return workflow, nil
}

// Deactivate removes the workflow's schedule and marks it inactive. A
// schedule that is already gone is not an error; the stored flag is the
// source of truth.
func (w *Workflow) Deactivate(ctx context.Context, workflowID string) (*models.Workflow, error) {
	workflow, err := w.persistence.WorkflowByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if w.triggers != nil {
		w.triggers.Remove(ctx, workflowID)
	}

	workflow.IsActive = false
	workflow.UpdatedAt = time.Now().UTC()

	if err := w.persistence.SaveWorkflow(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to deactivate workflow: %w", err)
	}

	w.publish(ctx, workflowID, events.WorkflowDeactivated{
		BaseEvent: events.NewBaseEvent(events.WorkflowDeactivatedEvent, workflowID),
	})

	w.logger.Info("Workflow deactivated", "workflow_id", workflowID)

	return workflow, nil
}

// TriggerRun enqueues a manual run of the workflow.
func (w *Workflow) TriggerRun(ctx context.Context, workflowID string) error {
	if _, err := w.persistence.WorkflowByID(ctx, workflowID); err != nil {
		return err
	}

	if w.queue == nil {
		return fmt.Errorf("no run queue configured")
	}

	err := w.queue.Enqueue(ctx, queue.NewRunRequest(workflowID, queue.SourceManual))
	if err != nil {
		return fmt.Errorf("failed to enqueue run: %w", err)
	}

	return nil
}

// Runs retrieves the runs of a workflow, most recent first.
func (w *Workflow) Runs(ctx context.Context, workflowID string) ([]*models.Run, error) {
	if _, err := w.persistence.WorkflowByID(ctx, workflowID); err != nil {
		return nil, err
	}

	return w.persistence.RunsByWorkflow(ctx, workflowID)
}

// RunByID retrieves a single run.
func (w *Workflow) RunByID(ctx context.Context, runID string) (*models.Run, error) {
	return w.persistence.RunByID(ctx, runID)
}

// NodeExecutions retrieves the per-node audit trail of a run.
func (w *Workflow) NodeExecutions(ctx context.Context, runID string) ([]*models.NodeExecution, error) {
	if _, err := w.persistence.RunByID(ctx, runID); err != nil {
		return nil, err
	}

	return w.persistence.NodeExecutionsByRun(ctx, runID)
}

// scheduleSpecFor builds the schedule spec from the Scheduler node's values,
// falling back to the Scheduler manifest's field defaults for anything the
// node leaves unset.
func (w *Workflow) scheduleSpecFor(node *models.Node) (models.ScheduleSpec, error) {
	values := make(map[string]any, len(node.Values))
	for k, v := range node.Values {
		values[k] = v
	}

	if w.manifests != nil {
		if m, err := w.manifests.Get(models.NodeTypeScheduler); err == nil {
			for _, key := range []string{"interval", "count", "hour", "minute"} {
				if _, ok := values[key]; ok {
					continue
				}

				if def, ok := m.FieldDefault(key); ok {
					values[key] = def
				}
			}
		}
	}

	return models.ScheduleSpecFromValues(values)
}

func (w *Workflow) validateWorkflow(workflow *models.Workflow) error {
	if workflow == nil {
		return NewValidationError("validateWorkflow", "WORKFLOW_NIL", "workflow cannot be nil", ErrWorkflowNil)
	}

	if workflow.Name == "" {
		return NewValidationError(
			"validateWorkflow",
			"NAME_REQUIRED",
			"workflow name is required",
			ErrWorkflowNameRequired,
		)
	}

	if len(workflow.Nodes) == 0 {
		return NewValidationError(
			"validateWorkflow",
			"NODES_REQUIRED",
			"workflow must have at least one node",
			ErrNodesRequired,
		)
	}

	if err := w.validate.Struct(workflow); err != nil {
		return NewValidationError("validateWorkflow", "INVALID_WORKFLOW", err.Error(), ErrInvalidRequest)
	}

	return nil
}

func (w *Workflow) publish(ctx context.Context, key string, event eventbus.Event) {
	if w.eventBus == nil {
		return
	}

	if err := w.eventBus.Publish(ctx, key, event); err != nil {
		w.logger.Error("Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
