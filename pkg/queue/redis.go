package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const defaultQueueKey = "coreza:runs"

// RedisQueue is a Redis list-backed work queue. Producers RPUSH run
// requests; consumers BLPOP them, so multiple workers share one queue.
type RedisQueue struct {
	client redis.UniversalClient
	key    string
	logger *slog.Logger
}

// NewRedisQueue connects to Redis using a redis:// URL and verifies the
// connection before returning.
func NewRedisQueue(ctx context.Context, logger *slog.Logger, redisURL, key string) (*RedisQueue, error) {
	if key == "" {
		key = defaultQueueKey
	}

	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(options)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = client.Ping(pingCtx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	queueLogger := logger.With("module", "queue", "provider", "redis", "queue", key)
	queueLogger.Info("Connected to Redis", "addr", options.Addr, "db", options.DB)

	return &RedisQueue{
		client: client,
		key:    key,
		logger: queueLogger,
	}, nil
}

// Enqueue pushes a run request onto the tail of the queue.
func (q *RedisQueue) Enqueue(ctx context.Context, request *RunRequest) error {
	payload, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal run request: %w", err)
	}

	err = q.client.RPush(ctx, q.key, payload).Err()
	if err != nil {
		return fmt.Errorf("failed to push run request: %w", err)
	}

	q.logger.Debug("Enqueued run request", "workflow_id", request.WorkflowID, "source", request.Source)

	return nil
}

// Dequeue pops the next run request, blocking for up to one second.
func (q *RedisQueue) Dequeue(ctx context.Context) (*RunRequest, error) {
	result, err := q.client.BLPop(ctx, 1*time.Second, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to pop run request: %w", err)
	}

	if len(result) < 2 {
		return nil, nil
	}

	var request RunRequest

	err = json.Unmarshal([]byte(result[1]), &request)
	if err != nil {
		q.logger.Error("Discarding malformed run request", "payload", result[1], "error", err)

		return nil, nil
	}

	return &request, nil
}

// Close releases the Redis connection.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
