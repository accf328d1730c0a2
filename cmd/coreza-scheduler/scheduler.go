// Package main provides the Coreza scheduler service implementation.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreza/coreza/pkg/eventbus"
	"github.com/coreza/coreza/pkg/events"
	"github.com/coreza/coreza/pkg/persistence"
	"github.com/coreza/coreza/pkg/trigger"
)

// Scheduler owns the cron lifecycle for active workflows. On startup it
// registers every active workflow's stored cron expression, then keeps the
// registrations in sync with activation events from the API.
type Scheduler struct {
	id          string
	logger      *slog.Logger
	persistence persistence.Persistence
	triggers    *trigger.Service
	eventBus    eventbus.EventBus
}

func NewScheduler(
	id string,
	logger *slog.Logger,
	p persistence.Persistence,
	triggers *trigger.Service,
	eventBus eventbus.EventBus,
) *Scheduler {
	return &Scheduler{
		id:          id,
		logger:      logger.With("module", "coreza-scheduler", "scheduler_id", id),
		persistence: p,
		triggers:    triggers,
		eventBus:    eventBus,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Starting scheduler")

	if err := s.registerActiveWorkflows(ctx); err != nil {
		return err
	}

	s.triggers.Start(ctx)

	if s.eventBus != nil {
		if err := s.subscribeLifecycleEvents(ctx); err != nil {
			return err
		}
	}

	s.logger.InfoContext(ctx, "Scheduler started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	s.logger.InfoContext(ctx, "Shutting down scheduler...")

	s.triggers.Stop(ctx)

	return nil
}

func (s *Scheduler) registerActiveWorkflows(ctx context.Context) error {
	workflows, err := s.persistence.ActiveWorkflows(ctx)
	if err != nil {
		return err
	}

	for _, workflow := range workflows {
		if workflow.ScheduleCron == "" {
			s.logger.WarnContext(ctx, "Active workflow has no schedule, skipping",
				"workflow_id", workflow.ID)

			continue
		}

		if err := s.triggers.Register(ctx, workflow.ID, workflow.ScheduleCron); err != nil {
			s.logger.ErrorContext(ctx, "Failed to register workflow schedule",
				"workflow_id", workflow.ID, "cron", workflow.ScheduleCron, "error", err)

			continue
		}

		s.logger.InfoContext(ctx, "Registered workflow schedule",
			"workflow_id", workflow.ID, "cron", workflow.ScheduleCron)
	}

	return nil
}

func (s *Scheduler) subscribeLifecycleEvents(ctx context.Context) error {
	err := s.eventBus.Handle(events.WorkflowActivatedEvent, s.handleWorkflowActivated)
	if err != nil {
		return err
	}

	err = s.eventBus.Handle(events.WorkflowDeactivatedEvent, s.handleWorkflowDeactivated)
	if err != nil {
		return err
	}

	return s.eventBus.Subscribe(ctx)
}

func (s *Scheduler) handleWorkflowActivated(ctx context.Context, event any) error {
	activated, ok := event.(*events.WorkflowActivated)
	if !ok {
		s.logger.ErrorContext(ctx, "Invalid event type for WorkflowActivated")

		return nil
	}

	err := s.triggers.Register(ctx, activated.WorkflowID, activated.Cron)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to register activated workflow",
			"workflow_id", activated.WorkflowID, "cron", activated.Cron, "error", err)

		return err
	}

	s.logger.InfoContext(ctx, "Registered activated workflow",
		"workflow_id", activated.WorkflowID, "cron", activated.Cron)

	return nil
}

func (s *Scheduler) handleWorkflowDeactivated(ctx context.Context, event any) error {
	deactivated, ok := event.(*events.WorkflowDeactivated)
	if !ok {
		s.logger.ErrorContext(ctx, "Invalid event type for WorkflowDeactivated")

		return nil
	}

	s.triggers.Remove(ctx, deactivated.WorkflowID)
	s.logger.InfoContext(ctx, "Removed deactivated workflow", "workflow_id", deactivated.WorkflowID)

	return nil
}
