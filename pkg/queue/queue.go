// Package queue provides the processing job queue that decouples HTTP
// triggers from pipeline runs.
package queue

import (
	"errors"
	"time"
)

// ErrJobNotFound is returned when acking or nacking an unknown delivery.
var ErrJobNotFound = errors.New("job not found")

// ErrClosed is returned by operations on a closed queue.
var ErrClosed = errors.New("queue closed")

// Job is a request to run the pipeline for one meeting.
type Job struct {
	MeetingID  string    `json:"meeting_id"`
	UserID     string    `json:"user_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Delivery wraps a dequeued job with queue metadata.
type Delivery struct {
	ID         string    `json:"id"`
	Job        Job       `json:"job"`
	RetryCount int       `json:"retry_count"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Queue is the processing job queue. Dequeue blocks up to its timeout;
// every delivery must be acked or nacked exactly once.
type Queue interface {
	// Name returns the queue name.
	Name() string

	// Enqueue adds a job.
	Enqueue(job Job) error

	// Dequeue waits up to timeout for one job. A nil delivery with a nil
	// error means the wait elapsed with the queue empty.
	Dequeue(timeout time.Duration) (*Delivery, error)

	// Ack acknowledges successful processing.
	Ack(deliveryID string) error

	// Nack requeues the delivery for another attempt, or drops it to the
	// dead letter queue once retries are exhausted.
	Nack(deliveryID string) error

	// Depth returns how many jobs are waiting.
	Depth() (int64, error)

	// Close releases the queue's resources.
	Close() error
}

// Config holds queue tunables shared by implementations.
type Config struct {
	// Name namespaces the queue's storage keys.
	Name string

	// MaxRetries is how many times a nacked job is requeued before it is
	// moved to the dead letter queue.
	MaxRetries int

	// VisibilityTimeout bounds how long a dequeued job may stay unacked
	// before a recovery pass may requeue it.
	VisibilityTimeout time.Duration

	// RetentionPeriod bounds how long job payloads are kept.
	RetentionPeriod time.Duration
}

// DefaultConfig returns queue tunables suitable for pipeline runs, which can
// take minutes per job.
func DefaultConfig() Config {
	return Config{
		Name:              "minuted:process",
		MaxRetries:        3,
		VisibilityTimeout: 15 * time.Minute,
		RetentionPeriod:   24 * time.Hour,
	}
}
