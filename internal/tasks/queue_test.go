package tasks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueRetriesUntilSuccess(t *testing.T) {
	q := New(Options{Workers: 2, QueueSize: 4, MaxAttempts: 3, Backoff: time.Millisecond}, nil)

	var calls atomic.Int32
	require.NoError(t, q.Submit(context.Background(), Task{Name: "flaky", Run: func(context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}}))
	q.Close()

	assert.Equal(t, int32(3), calls.Load())
}

func TestQueueReportsExhaustedAndRecoversPanics(t *testing.T) {
	var (
		mu     sync.Mutex
		failed []string
	)
	q := New(Options{
		Workers:     1,
		MaxAttempts: 2,
		Backoff:     time.Millisecond,
		OnFailure: func(name string, err error) {
			mu.Lock()
			defer mu.Unlock()
			failed = append(failed, name)
		},
	}, nil)

	var after atomic.Bool
	ctx := context.Background()
	require.NoError(t, q.Submit(ctx, Task{Name: "boom", Run: func(context.Context) error { panic("bad row") }}))
	require.NoError(t, q.Submit(ctx, Task{Name: "always", Run: func(context.Context) error { return errors.New("down") }}))
	require.NoError(t, q.Submit(ctx, Task{Name: "after", Run: func(context.Context) error {
		after.Store(true)
		return nil
	}}))
	q.Close()

	assert.Equal(t, []string{"boom", "always"}, failed)
	assert.True(t, after.Load())
}

func TestSubmitAfterClose(t *testing.T) {
	q := New(Options{}, nil)
	q.Close()
	q.Close()

	err := q.Submit(context.Background(), Task{Name: "late", Run: func(context.Context) error { return nil }})
	assert.True(t, eris.Is(err, ErrClosed))
}

func TestSubmitHonoursContextWhenFull(t *testing.T) {
	block := make(chan struct{})
	q := New(Options{Workers: 1, QueueSize: 1}, nil)
	defer func() {
		close(block)
		q.Close()
	}()

	wait := Task{Name: "wait", Run: func(context.Context) error {
		<-block
		return nil
	}}
	require.NoError(t, q.Submit(context.Background(), wait))
	require.Eventually(t, func() bool { return len(q.tasks) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, q.Submit(context.Background(), wait))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Submit(ctx, wait)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestTrySubmitDoesNotBlockWhenFull(t *testing.T) {
	block := make(chan struct{})
	q := New(Options{Workers: 1, QueueSize: 1}, nil)
	defer func() {
		close(block)
		q.Close()
	}()

	wait := Task{Name: "wait", Run: func(context.Context) error {
		<-block
		return nil
	}}
	require.NoError(t, q.TrySubmit(wait))
	require.Eventually(t, func() bool { return len(q.tasks) == 0 }, time.Second, time.Millisecond)
	require.NoError(t, q.TrySubmit(wait))

	err := q.TrySubmit(wait)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrFull))
}
