package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrQueueClosed is returned when enqueueing onto a closed queue.
var ErrQueueClosed = errors.New("queue is closed")

// MemoryQueue is a process-local queue for development and tests.
type MemoryQueue struct {
	mu       sync.Mutex
	requests chan *RunRequest
	closed   bool
}

// NewMemoryQueue creates an in-memory queue with a fixed buffer.
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 100
	}

	return &MemoryQueue{requests: make(chan *RunRequest, size)}
}

// Enqueue adds a run request. It fails when the queue is closed or full.
func (q *MemoryQueue) Enqueue(ctx context.Context, request *RunRequest) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.requests <- request:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue waits up to one second for the next run request.
func (q *MemoryQueue) Dequeue(ctx context.Context) (*RunRequest, error) {
	select {
	case request, ok := <-q.requests:
		if !ok {
			return nil, ErrQueueClosed
		}

		return request, nil
	case <-time.After(1 * time.Second):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close shuts the queue; pending requests are still drained by Dequeue.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.requests)
	}

	return nil
}
