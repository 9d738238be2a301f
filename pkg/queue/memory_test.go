package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testQueue() *MemoryQueue {
	cfg := DefaultConfig()
	cfg.MaxRetries = 3
	return NewMemoryQueue(cfg)
}

func TestMemoryQueue_FIFO(t *testing.T) {
	q := testQueue()
	require.NoError(t, q.Enqueue(Job{MeetingID: "m1", UserID: "u1"}))
	require.NoError(t, q.Enqueue(Job{MeetingID: "m2", UserID: "u1"}))

	depth, err := q.Depth()
	require.NoError(t, err)
	assert.Equal(t, int64(2), depth)

	d1, err := q.Dequeue(time.Second)
	require.NoError(t, err)
	require.NotNil(t, d1)
	assert.Equal(t, "m1", d1.Job.MeetingID)

	d2, err := q.Dequeue(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "m2", d2.Job.MeetingID)
}

func TestMemoryQueue_DequeueTimeout(t *testing.T) {
	q := testQueue()
	start := time.Now()
	d, err := q.Dequeue(100 * time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, d)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestMemoryQueue_AckRemoves(t *testing.T) {
	q := testQueue()
	require.NoError(t, q.Enqueue(Job{MeetingID: "m1"}))

	d, err := q.Dequeue(time.Second)
	require.NoError(t, err)
	require.NoError(t, q.Ack(d.ID))

	// Double ack is an error.
	assert.ErrorIs(t, q.Ack(d.ID), ErrJobNotFound)
}

func TestMemoryQueue_NackRequeues(t *testing.T) {
	q := testQueue()
	require.NoError(t, q.Enqueue(Job{MeetingID: "m1"}))

	d, err := q.Dequeue(time.Second)
	require.NoError(t, err)
	require.NoError(t, q.Nack(d.ID))

	again, err := q.Dequeue(time.Second)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, "m1", again.Job.MeetingID)
	assert.Equal(t, 1, again.RetryCount)
}

func TestMemoryQueue_ExhaustedRetriesGoToDeadLetters(t *testing.T) {
	q := testQueue()
	require.NoError(t, q.Enqueue(Job{MeetingID: "m1"}))

	for i := 0; i < 3; i++ {
		d, err := q.Dequeue(time.Second)
		require.NoError(t, err)
		if d == nil {
			break
		}
		require.NoError(t, q.Nack(d.ID))
	}

	depth, _ := q.Depth()
	assert.Equal(t, int64(0), depth)
	dead := q.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, "m1", dead[0].Job.MeetingID)
	assert.Equal(t, 3, dead[0].RetryCount)
}

func TestMemoryQueue_Close(t *testing.T) {
	q := testQueue()
	require.NoError(t, q.Close())
	assert.ErrorIs(t, q.Enqueue(Job{MeetingID: "m1"}), ErrClosed)
	_, err := q.Dequeue(time.Second)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryQueue_EnqueueWakesWaiter(t *testing.T) {
	q := testQueue()
	done := make(chan *Delivery, 1)
	go func() {
		d, _ := q.Dequeue(2 * time.Second)
		done <- d
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, q.Enqueue(Job{MeetingID: "m1"}))

	select {
	case d := <-done:
		require.NotNil(t, d)
		assert.Equal(t, "m1", d.Job.MeetingID)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not wake up")
	}
}
