// Package trigger runs the in-process cron clock that fires scheduled
// workflow runs. The service holds at most one trigger per workflow id and
// enqueues run requests onto the work queue instead of executing inline.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/coreza/coreza/pkg/queue"
)

// Service is an injectable trigger scheduler with an explicit start/stop
// lifecycle. It is safe for concurrent use.
type Service struct {
	logger *slog.Logger
	queue  queue.Queue

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
	started bool
}

// NewService creates a trigger service publishing onto the given work queue.
func NewService(logger *slog.Logger, q queue.Queue) *Service {
	return &Service{
		logger: logger.With("module", "trigger"),
		queue:  q,
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DefaultLogger),
			cron.Recover(cron.DefaultLogger),
		)),
		entries: make(map[string]cron.EntryID),
	}
}

// Start begins the background clock.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}

	s.cron.Start()
	s.started = true
	s.logger.InfoContext(ctx, "Trigger service started")
}

// Stop halts the clock and waits for in-flight firings to finish.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	stopCtx := s.cron.Stop()
	s.started = false

	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}

	s.logger.InfoContext(ctx, "Trigger service stopped")
}

// Register schedules a workflow's cron expression. Registering a workflow
// that already has a trigger replaces it.
func (s *Service) Register(ctx context.Context, workflowID, cronExpr string) error {
	if _, err := cron.ParseStandard(cronExpr); err != nil {
		return fmt.Errorf("invalid cron expression for workflow %s: %w", workflowID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, exists := s.entries[workflowID]; exists {
		s.cron.Remove(entryID)
		delete(s.entries, workflowID)
	}

	entryID, err := s.cron.AddFunc(cronExpr, func() {
		s.fire(workflowID)
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job for workflow %s: %w", workflowID, err)
	}

	s.entries[workflowID] = entryID
	s.logger.InfoContext(ctx, "Registered trigger", "workflow_id", workflowID, "cron", cronExpr)

	return nil
}

// Remove unregisters a workflow's trigger. Removing an absent trigger is
// logged, not an error.
func (s *Service) Remove(ctx context.Context, workflowID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, exists := s.entries[workflowID]
	if !exists {
		s.logger.InfoContext(ctx, "No trigger registered for workflow", "workflow_id", workflowID)

		return
	}

	s.cron.Remove(entryID)
	delete(s.entries, workflowID)
	s.logger.InfoContext(ctx, "Removed trigger", "workflow_id", workflowID)
}

// Registered reports whether a workflow currently has a trigger.
func (s *Service) Registered(workflowID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.entries[workflowID]

	return exists
}

// fire enqueues a run request for one cron firing. The enqueue gets its own
// timeout since cron callbacks carry no caller context.
func (s *Service) fire(workflowID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := s.queue.Enqueue(ctx, queue.NewRunRequest(workflowID, queue.SourceSchedule))
	if err != nil {
		s.logger.Error("Failed to enqueue scheduled run", "workflow_id", workflowID, "error", err)

		return
	}

	s.logger.Info("Scheduled run enqueued", "workflow_id", workflowID)
}
