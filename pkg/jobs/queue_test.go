package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRejectsBeforeStartAndAfterStop(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	require.Error(t, q.Enqueue(Job{Type: "x"}))

	q.Start(context.Background())
	q.Stop(context.Background())
	require.Error(t, q.Enqueue(Job{Type: "x"}))
}

func TestQueueProcessesAndDrainsOnStop(t *testing.T) {
	var handled int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		assert.NotEmpty(t, job.ID)
		assert.False(t, job.Enqueued.IsZero())
		atomic.AddInt32(&handled, 1)
		return nil
	}, QueueConfig{Workers: 3})
	q.Start(context.Background())

	for i := 0; i < 20; i++ {
		require.NoError(t, q.Enqueue(Job{Type: "x"}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	q.Stop(ctx)
	assert.Equal(t, int32(20), atomic.LoadInt32(&handled))
	assert.Zero(t, q.Pending())
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var attempts int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("transient")
		}
		return nil
	}, QueueConfig{MaxRetries: 5, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{Type: "x"}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	q.Stop(ctx)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestQueueGivesUpAfterMaxRetries(t *testing.T) {
	var attempts int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("permanent")
	}, QueueConfig{MaxRetries: 2, RetryDelay: time.Millisecond})
	q.Start(context.Background())
	require.NoError(t, q.Enqueue(Job{Type: "x"}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	q.Stop(ctx)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestQueueBackoffDoublesUpToCap(t *testing.T) {
	q := NewQueue("backoff", func(context.Context, Job) error { return nil }, QueueConfig{RetryDelay: 10 * time.Millisecond, MaxRetryDelay: 50 * time.Millisecond})

	assert.Equal(t, 10*time.Millisecond, q.backoff(1))
	assert.Equal(t, 20*time.Millisecond, q.backoff(2))
	assert.Equal(t, 40*time.Millisecond, q.backoff(3))
	assert.Equal(t, 50*time.Millisecond, q.backoff(4))
	assert.Equal(t, 50*time.Millisecond, q.backoff(10))
}
