package queue

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue is a process-local Queue for single-instance deployments and
// tests. Jobs do not survive a restart.
type MemoryQueue struct {
	config Config

	mu       sync.Mutex
	waiting  []*Delivery
	inflight map[string]*Delivery
	dead     []*Delivery
	closed   bool
	notify   chan struct{}
}

// NewMemoryQueue creates an empty in-process queue.
func NewMemoryQueue(cfg Config) *MemoryQueue {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	return &MemoryQueue{
		config:   cfg,
		inflight: map[string]*Delivery{},
		notify:   make(chan struct{}, 1),
	}
}

// Name returns the queue name.
func (q *MemoryQueue) Name() string { return q.config.Name }

// Enqueue adds a job to the tail of the queue.
func (q *MemoryQueue) Enqueue(job Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	q.waiting = append(q.waiting, &Delivery{
		ID:         uuid.New().String(),
		Job:        job,
		EnqueuedAt: job.EnqueuedAt,
	})
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Dequeue pops the head of the queue, waiting up to timeout when empty.
func (q *MemoryQueue) Dequeue(timeout time.Duration) (*Delivery, error) {
	deadline := time.Now().Add(timeout)
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, ErrClosed
		}
		if len(q.waiting) > 0 {
			d := q.waiting[0]
			q.waiting = q.waiting[1:]
			q.inflight[d.ID] = d
			q.mu.Unlock()
			return d, nil
		}
		q.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		wait := remaining
		if wait > 50*time.Millisecond {
			wait = 50 * time.Millisecond
		}
		select {
		case <-q.notify:
		case <-time.After(wait):
		}
	}
}

// Ack removes a delivered job.
func (q *MemoryQueue) Ack(deliveryID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.inflight[deliveryID]; !ok {
		return ErrJobNotFound
	}
	delete(q.inflight, deliveryID)
	return nil
}

// Nack requeues a delivered job, or drops it to the dead letter list once
// retries run out.
func (q *MemoryQueue) Nack(deliveryID string) error {
	q.mu.Lock()
	d, ok := q.inflight[deliveryID]
	if !ok {
		q.mu.Unlock()
		return ErrJobNotFound
	}
	delete(q.inflight, deliveryID)

	d.RetryCount++
	if d.RetryCount >= q.config.MaxRetries {
		q.dead = append(q.dead, d)
		q.mu.Unlock()
		return nil
	}
	q.waiting = append(q.waiting, d)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Depth returns the number of waiting jobs.
func (q *MemoryQueue) Depth() (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.waiting)), nil
}

// DeadLetters returns jobs that exhausted their retries.
func (q *MemoryQueue) DeadLetters() []*Delivery {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Delivery, len(q.dead))
	copy(out, q.dead)
	return out
}

// Close marks the queue closed; blocked Dequeues return ErrClosed.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

var _ Queue = (*MemoryQueue)(nil)
