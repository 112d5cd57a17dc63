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

type mailPayload struct {
	Email string
	Token string
}

func TestQueueDeliversTypedPayload(t *testing.T) {
	got := make(chan mailPayload, 1)
	q := NewQueue("test-mail", func(_ context.Context, job Job[mailPayload]) error {
		got <- job.Payload
		return nil
	}, Config{Workers: 1, RetryDelay: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job[mailPayload]{ID: "j1", Payload: mailPayload{Email: "a@b.c", Token: "tok"}}))

	select {
	case p := <-got:
		assert.Equal(t, "a@b.c", p.Email)
		assert.Equal(t, "tok", p.Token)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not delivered")
	}
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	var attempts int32
	done := make(chan struct{})
	q := NewQueue("retry-mail", func(_ context.Context, job Job[mailPayload]) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("smtp unavailable")
		}
		close(done)
		return nil
	}, Config{Workers: 1, MaxRetries: 5, RetryDelay: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job[mailPayload]{ID: "j2", Payload: mailPayload{Email: "a@b.c"}}))

	select {
	case <-done:
		assert.EqualValues(t, 3, atomic.LoadInt32(&attempts))
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried to completion")
	}
}

func TestQueueRejectsEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("idle", func(context.Context, Job[mailPayload]) error { return nil }, Config{})

	err := q.Enqueue(Job[mailPayload]{ID: "j3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not started")
}
