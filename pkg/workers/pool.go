// Package workers runs the bounded pool that drains the processing queue.
package workers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	mderrors "github.com/minutedapp/minuted/pkg/errors"
	"github.com/minutedapp/minuted/pkg/logging"
	"github.com/minutedapp/minuted/pkg/queue"
)

// Handler processes one job. The pipeline orchestrator's Run is the handler
// in production.
type Handler func(ctx context.Context, job queue.Job) error

// Config configures the pool.
type Config struct {
	// Count is the number of concurrent workers, which bounds how many
	// pipeline runs execute at once.
	Count int `yaml:"count"`

	// PollInterval is how long one dequeue blocks waiting for work.
	PollInterval time.Duration `yaml:"poll_interval"`

	// JobTimeout bounds one pipeline run.
	JobTimeout time.Duration `yaml:"job_timeout"`

	// ShutdownTimeout bounds the graceful drain on Stop.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DefaultConfig returns pool settings sized for pipeline runs that spend most
// of their time waiting on providers.
func DefaultConfig() Config {
	return Config{
		Count:           4,
		PollInterval:    time.Second,
		JobTimeout:      15 * time.Minute,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Pool drains the queue with a fixed number of workers.
type Pool struct {
	config  Config
	queue   queue.Queue
	handler Handler
	logger  logging.Logger

	processed atomic.Int64
	failed    atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool creates a Pool. Start must be called before it does anything.
func NewPool(cfg Config, q queue.Queue, handler Handler, logger logging.Logger) *Pool {
	if cfg.Count <= 0 {
		cfg.Count = DefaultConfig().Count
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		config:  cfg,
		queue:   q,
		handler: handler,
		logger:  logger.With(logging.F("component", "worker_pool")),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers.
func (p *Pool) Start() {
	for i := 0; i < p.config.Count; i++ {
		p.wg.Add(1)
		workerID := uuid.New().String()[:8]
		go func() {
			defer p.wg.Done()
			p.runWorker(workerID)
		}()
	}
	p.logger.Info("Worker pool started", logging.F("workers", p.config.Count))
}

// Stop drains the pool: workers finish their current job, then exit. Returns
// false when the drain exceeded the shutdown timeout.
func (p *Pool) Stop() bool {
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("Worker pool stopped",
			logging.F("processed", p.processed.Load()),
			logging.F("failed", p.failed.Load()))
		return true
	case <-time.After(p.config.ShutdownTimeout):
		p.logger.Warn("Worker pool shutdown timed out")
		return false
	}
}

// Stats reports lifetime pool counters.
func (p *Pool) Stats() (processed, failed int64) {
	return p.processed.Load(), p.failed.Load()
}

func (p *Pool) runWorker(workerID string) {
	log := p.logger.With(logging.F("worker_id", workerID))
	for {
		if p.ctx.Err() != nil {
			return
		}

		delivery, err := p.queue.Dequeue(p.config.PollInterval)
		if err == queue.ErrClosed {
			return
		}
		if err != nil {
			log.Warn("Dequeue failed", logging.Err(err))
			select {
			case <-p.ctx.Done():
				return
			case <-time.After(p.config.PollInterval):
			}
			continue
		}
		if delivery == nil {
			continue
		}

		p.processDelivery(log, delivery)
	}
}

// processDelivery runs the handler and settles the delivery. A job whose
// failure is already recorded on the meeting is acked; only transient
// failures where the run never claimed the meeting are worth a requeue.
func (p *Pool) processDelivery(log logging.Logger, d *queue.Delivery) {
	ctx := p.ctx
	var cancel context.CancelFunc
	if p.config.JobTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, p.config.JobTimeout)
		defer cancel()
	}

	start := time.Now()
	err := p.handler(ctx, d.Job)
	if err == nil {
		if ackErr := p.queue.Ack(d.ID); ackErr != nil {
			log.Warn("Failed to ack job", logging.Err(ackErr), logging.F("delivery_id", d.ID))
		}
		p.processed.Add(1)
		log.Info("Job finished",
			logging.F("meeting_id", d.Job.MeetingID),
			logging.F("duration", time.Since(start)))
		return
	}

	p.failed.Add(1)
	if requeueWorthy(err) {
		log.Warn("Job failed, requeueing",
			logging.Err(err),
			logging.F("meeting_id", d.Job.MeetingID),
			logging.F("retry_count", d.RetryCount))
		if nackErr := p.queue.Nack(d.ID); nackErr != nil {
			log.Warn("Failed to nack job", logging.Err(nackErr), logging.F("delivery_id", d.ID))
		}
		return
	}

	log.Warn("Job failed terminally",
		logging.Err(err),
		logging.F("meeting_id", d.Job.MeetingID))
	if ackErr := p.queue.Ack(d.ID); ackErr != nil {
		log.Warn("Failed to ack job", logging.Err(ackErr), logging.F("delivery_id", d.ID))
	}
}

// requeueWorthy decides whether a failed job should go around again. Stage
// failures are already recorded on the meeting and re-runnable through the
// trigger, so they are not requeued; conflicts mean another run owns the
// meeting; only infrastructure errors before the run claimed the meeting
// benefit from a second delivery.
func requeueWorthy(err error) bool {
	if mderrors.IsConflict(err) || mderrors.IsInvalidState(err) || mderrors.IsNotFound(err) {
		return false
	}
	if _, ok := mderrors.AsStageError(err); ok {
		return false
	}
	return true
}
