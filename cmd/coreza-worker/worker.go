// Package main provides the Coreza worker implementation.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/coreza/coreza/pkg/models"
	"github.com/coreza/coreza/pkg/otelhelper"
	"github.com/coreza/coreza/pkg/queue"
	"github.com/coreza/coreza/pkg/runner"
)

// dequeueBackoff spaces out retries after a transient dequeue failure.
const dequeueBackoff = time.Second

// Worker pulls run requests off the queue and executes them. Runs execute
// concurrently up to the configured limit; a closed queue or cancelled
// context stops the loop, and shutdown waits for in-flight runs to finish.
type Worker struct {
	id          string
	logger      *slog.Logger
	queue       queue.Queue
	coordinator *runner.Coordinator
	tracer      trace.Tracer
	concurrency int
}

func NewWorker(
	id string,
	logger *slog.Logger,
	q queue.Queue,
	coordinator *runner.Coordinator,
	tracer trace.Tracer,
	concurrency int,
) *Worker {
	if concurrency < 1 {
		concurrency = 1
	}

	return &Worker{
		id:          id,
		logger:      logger.With("module", "coreza-worker", "worker_id", id),
		queue:       q,
		coordinator: coordinator,
		tracer:      tracer,
		concurrency: concurrency,
	}
}

func (w *Worker) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker", "concurrency", w.concurrency)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		w.logger.Info("Shutting down worker...")
		cancel()
	}()

	sem := make(chan struct{}, w.concurrency)

	var wg sync.WaitGroup

	for {
		if ctx.Err() != nil {
			break
		}

		request, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}

			if errors.Is(err, queue.ErrQueueClosed) {
				w.logger.Info("Run queue closed, stopping worker")

				break
			}

			w.logger.ErrorContext(ctx, "Failed to dequeue run request", "error", err)
			time.Sleep(dequeueBackoff)

			continue
		}

		if request == nil {
			continue
		}

		sem <- struct{}{}

		wg.Add(1)

		go func(req *queue.RunRequest) {
			defer wg.Done()
			defer func() { <-sem }()

			w.process(ctx, req)
		}(request)
	}

	wg.Wait()

	w.logger.Info("Worker stopped")

	return nil
}

func (w *Worker) process(ctx context.Context, request *queue.RunRequest) {
	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "workflow.run",
		attribute.String(otelhelper.WorkflowIDKey, request.WorkflowID),
		attribute.String(otelhelper.WorkerIDKey, w.id),
	)
	defer span.End()

	w.logger.InfoContext(ctx, "Processing run request",
		"workflow_id", request.WorkflowID, "source", request.Source)

	outcome, err := w.coordinator.Run(ctx, request.WorkflowID)
	if err != nil {
		otelhelper.SetError(span, err,
			attribute.String(otelhelper.WorkflowIDKey, request.WorkflowID))
		w.logger.ErrorContext(ctx, "Run request failed",
			"workflow_id", request.WorkflowID, "error", err)

		return
	}

	span.SetAttributes(
		attribute.String(otelhelper.RunIDKey, outcome.RunID),
		attribute.String("coreza.run.status", string(outcome.Status)),
	)

	if outcome.Status == models.RunStatusFailed {
		otelhelper.SetError(span, errors.New(outcome.Error),
			attribute.String(otelhelper.RunIDKey, outcome.RunID))
	}

	w.logger.InfoContext(ctx, "Run request finished",
		"workflow_id", request.WorkflowID,
		"run_id", outcome.RunID,
		"status", outcome.Status,
		"duration", outcome.Duration,
	)
}
