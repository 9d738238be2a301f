package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mderrors "github.com/minutedapp/minuted/pkg/errors"
	"github.com/minutedapp/minuted/pkg/logging"
	"github.com/minutedapp/minuted/pkg/queue"
)

func testConfig(count int) Config {
	return Config{
		Count:           count,
		PollInterval:    20 * time.Millisecond,
		JobTimeout:      time.Second,
		ShutdownTimeout: 2 * time.Second,
	}
}

func TestPool_ProcessesJobs(t *testing.T) {
	q := queue.NewMemoryQueue(queue.DefaultConfig())
	var handled atomic.Int64

	pool := NewPool(testConfig(2), q, func(ctx context.Context, job queue.Job) error {
		handled.Add(1)
		return nil
	}, logging.NewNopLogger())
	pool.Start()
	defer pool.Stop()

	for i := 0; i < 5; i++ {
		require.NoError(t, q.Enqueue(queue.Job{MeetingID: fmt.Sprintf("m%d", i)}))
	}

	require.Eventually(t, func() bool {
		return handled.Load() == 5
	}, 2*time.Second, 10*time.Millisecond)

	processed, failed := pool.Stats()
	assert.Equal(t, int64(5), processed)
	assert.Equal(t, int64(0), failed)
}

func TestPool_BoundsConcurrency(t *testing.T) {
	q := queue.NewMemoryQueue(queue.DefaultConfig())
	var current, peak atomic.Int64

	pool := NewPool(testConfig(2), q, func(ctx context.Context, job queue.Job) error {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		current.Add(-1)
		return nil
	}, logging.NewNopLogger())
	pool.Start()
	defer pool.Stop()

	for i := 0; i < 8; i++ {
		require.NoError(t, q.Enqueue(queue.Job{MeetingID: fmt.Sprintf("m%d", i)}))
	}

	require.Eventually(t, func() bool {
		p, _ := pool.Stats()
		return p == 8
	}, 5*time.Second, 10*time.Millisecond)

	assert.LessOrEqual(t, peak.Load(), int64(2), "no more than Count jobs run at once")
}

func TestPool_StageFailuresAreNotRequeued(t *testing.T) {
	q := queue.NewMemoryQueue(queue.DefaultConfig())
	var calls atomic.Int64

	pool := NewPool(testConfig(1), q, func(ctx context.Context, job queue.Job) error {
		calls.Add(1)
		return mderrors.NewStageError(mderrors.ErrMalformedResponse, "insight", "no JSON found")
	}, logging.NewNopLogger())
	pool.Start()
	defer pool.Stop()

	require.NoError(t, q.Enqueue(queue.Job{MeetingID: "m1"}))

	require.Eventually(t, func() bool {
		_, failed := pool.Stats()
		return failed == 1
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(1), calls.Load(), "stage failures are recorded on the meeting, not redelivered")
}

func TestPool_ConflictsAreNotRequeued(t *testing.T) {
	q := queue.NewMemoryQueue(queue.DefaultConfig())
	var calls atomic.Int64

	pool := NewPool(testConfig(1), q, func(ctx context.Context, job queue.Job) error {
		calls.Add(1)
		return fmt.Errorf("meeting m1 is already being processed: %w", mderrors.ErrConflict)
	}, logging.NewNopLogger())
	pool.Start()
	defer pool.Stop()

	require.NoError(t, q.Enqueue(queue.Job{MeetingID: "m1"}))

	require.Eventually(t, func() bool {
		_, failed := pool.Stats()
		return failed == 1
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(1), calls.Load())
}

func TestPool_InfrastructureErrorsAreRequeued(t *testing.T) {
	q := queue.NewMemoryQueue(queue.DefaultConfig())
	var calls atomic.Int64

	pool := NewPool(testConfig(1), q, func(ctx context.Context, job queue.Job) error {
		if calls.Add(1) == 1 {
			return errors.New("connection refused")
		}
		return nil
	}, logging.NewNopLogger())
	pool.Start()
	defer pool.Stop()

	require.NoError(t, q.Enqueue(queue.Job{MeetingID: "m1"}))

	require.Eventually(t, func() bool {
		processed, _ := pool.Stats()
		return processed == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(2), calls.Load())
}

func TestPool_GracefulDrain(t *testing.T) {
	q := queue.NewMemoryQueue(queue.DefaultConfig())
	var mu sync.Mutex
	var finished []string

	pool := NewPool(testConfig(1), q, func(ctx context.Context, job queue.Job) error {
		time.Sleep(100 * time.Millisecond)
		mu.Lock()
		finished = append(finished, job.MeetingID)
		mu.Unlock()
		return nil
	}, logging.NewNopLogger())
	pool.Start()

	require.NoError(t, q.Enqueue(queue.Job{MeetingID: "m1"}))
	time.Sleep(30 * time.Millisecond) // let the worker pick it up

	assert.True(t, pool.Stop(), "drain must finish within the shutdown timeout")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"m1"}, finished, "in-flight job runs to completion")
}
