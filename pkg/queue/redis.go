package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis key prefixes.
const (
	keyPrefixQueue      = "queue:"      // waiting jobs (FIFO sorted set)
	keyPrefixProcessing = "processing:" // jobs being processed
	keyPrefixDelivery   = "job:"        // delivery payloads
	keyPrefixDLQ        = "dlq:"        // exhausted jobs
)

// RedisQueue is a Queue backed by Redis sorted sets, for deployments where
// triggers and workers live in different processes.
type RedisQueue struct {
	client *redis.Client
	config Config
	ctx    context.Context
	cancel context.CancelFunc
}

// NewRedisQueue creates a Redis-backed queue over an existing client.
func NewRedisQueue(client *redis.Client, cfg Config) *RedisQueue {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	if cfg.RetentionPeriod <= 0 {
		cfg.RetentionPeriod = DefaultConfig().RetentionPeriod
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisQueue{
		client: client,
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Name returns the queue name.
func (q *RedisQueue) Name() string { return q.config.Name }

// Enqueue stores the delivery payload and adds it to the waiting set.
func (q *RedisQueue) Enqueue(job Job) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	d := &Delivery{
		ID:         uuid.New().String(),
		Job:        job,
		EnqueuedAt: job.EnqueuedAt,
	}
	return q.push(d, time.Now())
}

func (q *RedisQueue) push(d *Delivery, at time.Time) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.Set(q.ctx, q.deliveryKey(d.ID), payload, q.config.RetentionPeriod)
	pipe.ZAdd(q.ctx, keyPrefixQueue+q.config.Name, redis.Z{
		Score:  float64(at.UnixNano()),
		Member: d.ID,
	})
	if _, err := pipe.Exec(q.ctx); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	return nil
}

// Dequeue pops the oldest waiting job and moves it to the processing set.
func (q *RedisQueue) Dequeue(timeout time.Duration) (*Delivery, error) {
	queueKey := keyPrefixQueue + q.config.Name
	deadline := time.Now().Add(timeout)

	for {
		result, err := q.client.ZPopMin(q.ctx, queueKey, 1).Result()
		if err != nil && err != redis.Nil {
			return nil, fmt.Errorf("failed to pop from queue: %w", err)
		}
		if len(result) == 0 {
			if time.Now().After(deadline) {
				return nil, nil
			}
			select {
			case <-time.After(100 * time.Millisecond):
				continue
			case <-q.ctx.Done():
				return nil, ErrClosed
			}
		}

		deliveryID := result[0].Member.(string)
		data, err := q.client.Get(q.ctx, q.deliveryKey(deliveryID)).Bytes()
		if err == redis.Nil {
			// Payload expired, skip the orphaned ID.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to get job payload: %w", err)
		}

		var d Delivery
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("failed to unmarshal job: %w", err)
		}

		visibleUntil := time.Now().Add(q.config.VisibilityTimeout)
		err = q.client.ZAdd(q.ctx, keyPrefixProcessing+q.config.Name, redis.Z{
			Score:  float64(visibleUntil.UnixNano()),
			Member: deliveryID,
		}).Err()
		if err != nil {
			return nil, fmt.Errorf("failed to mark job processing: %w", err)
		}
		return &d, nil
	}
}

// Ack removes the job and its payload.
func (q *RedisQueue) Ack(deliveryID string) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(q.ctx, keyPrefixProcessing+q.config.Name, deliveryID)
	pipe.Del(q.ctx, q.deliveryKey(deliveryID))
	if _, err := pipe.Exec(q.ctx); err != nil {
		return fmt.Errorf("failed to ack job: %w", err)
	}
	return nil
}

// Nack requeues the job, or moves it to the dead letter set once retries are
// exhausted.
func (q *RedisQueue) Nack(deliveryID string) error {
	data, err := q.client.Get(q.ctx, q.deliveryKey(deliveryID)).Bytes()
	if err == redis.Nil {
		return ErrJobNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get job payload: %w", err)
	}

	var d Delivery
	if err := json.Unmarshal(data, &d); err != nil {
		return fmt.Errorf("failed to unmarshal job: %w", err)
	}

	d.RetryCount++
	if d.RetryCount >= q.config.MaxRetries {
		return q.moveToDeadLetter(&d, "max retries exceeded")
	}

	if err := q.client.ZRem(q.ctx, keyPrefixProcessing+q.config.Name, deliveryID).Err(); err != nil {
		return fmt.Errorf("failed to remove from processing: %w", err)
	}
	// Delay visibility with the same exponential backoff the pipeline stages
	// use for transient provider failures.
	delay := time.Second * (1 << uint(d.RetryCount))
	return q.push(&d, time.Now().Add(delay))
}

func (q *RedisQueue) moveToDeadLetter(d *Delivery, reason string) error {
	entry := map[string]interface{}{
		"delivery": d,
		"reason":   reason,
		"moved_at": time.Now().UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.ZRem(q.ctx, keyPrefixProcessing+q.config.Name, d.ID)
	pipe.Del(q.ctx, q.deliveryKey(d.ID))
	pipe.ZAdd(q.ctx, keyPrefixDLQ+q.config.Name, redis.Z{
		Score:  float64(time.Now().UnixNano()),
		Member: string(payload),
	})
	if _, err := pipe.Exec(q.ctx); err != nil {
		return fmt.Errorf("failed to move job to dead letter queue: %w", err)
	}
	return nil
}

// RecoverStale requeues jobs whose visibility timeout expired, which happens
// when a worker died mid-run. Called periodically by the serving process.
func (q *RedisQueue) RecoverStale() error {
	processingKey := keyPrefixProcessing + q.config.Name
	now := float64(time.Now().UnixNano())

	stale, err := q.client.ZRangeByScore(q.ctx, processingKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%f", now),
		Count: 100,
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to find stale jobs: %w", err)
	}

	for _, deliveryID := range stale {
		if err := q.Nack(deliveryID); err == ErrJobNotFound {
			q.client.ZRem(q.ctx, processingKey, deliveryID)
		}
	}
	return nil
}

// Depth returns the number of waiting jobs.
func (q *RedisQueue) Depth() (int64, error) {
	return q.client.ZCard(q.ctx, keyPrefixQueue+q.config.Name).Result()
}

// Close cancels in-flight waits. The Redis client is owned by the caller.
func (q *RedisQueue) Close() error {
	q.cancel()
	return nil
}

func (q *RedisQueue) deliveryKey(id string) string {
	return keyPrefixDelivery + q.config.Name + ":" + id
}

var _ Queue = (*RedisQueue)(nil)
