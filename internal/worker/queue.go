package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"spamcheck-backend/internal/models"
)

const QueueKey = "queue:predictions"

var ErrQueueFull = errors.New("prediction queue is full")

// Queue carries submissions from the HTTP handlers to the workers.
// Pop returns (nil, nil) when nothing arrived within timeout.
type Queue interface {
	Push(ctx context.Context, job models.PredictionJob) error
	Pop(ctx context.Context, timeout time.Duration) (*models.PredictionJob, error)
}

// RedisQueue is a Redis list fed with RPUSH and drained with BLPOP.
type RedisQueue struct {
	client *redis.Client
	key    string
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client, key: QueueKey}
}

func (q *RedisQueue) Push(ctx context.Context, job models.PredictionJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	return q.client.RPush(ctx, q.key, data).Err()
}

func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (*models.PredictionJob, error) {
	result, err := q.client.BLPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}

	var job models.PredictionJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to parse job: %w", err)
	}
	return &job, nil
}

// MemoryQueue is a bounded in-process queue for single-instance setups.
type MemoryQueue struct {
	ch chan models.PredictionJob
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size < 1 {
		size = 1
	}
	return &MemoryQueue{ch: make(chan models.PredictionJob, size)}
}

func (q *MemoryQueue) Push(ctx context.Context, job models.PredictionJob) error {
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) Pop(ctx context.Context, timeout time.Duration) (*models.PredictionJob, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case job := <-q.ch:
		return &job, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
