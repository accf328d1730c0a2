package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/coreza/coreza/pkg/queue"
)

const memoryQueueSize = 256

// NewQueue creates the run queue for the given URL. redis:// URLs get the
// Redis-backed queue shared between schedulers and workers; "memory" is
// in-process only.
func NewQueue(ctx context.Context, logger *slog.Logger, queueURL string) queue.Queue {
	switch {
	case strings.HasPrefix(queueURL, "redis://"), strings.HasPrefix(queueURL, "rediss://"):
		q, err := queue.NewRedisQueue(ctx, logger, queueURL, "")
		if err != nil {
			panic(fmt.Errorf("failed to initialize redis queue: %w", err))
		}

		return q
	case queueURL == "memory":
		return queue.NewMemoryQueue(memoryQueueSize)
	default:
		panic("Unsupported queue URL: " + queueURL)
	}
}
