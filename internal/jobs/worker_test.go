// internal/jobs/worker_test.go
package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "git-commit-tracker/internal/errors"
	"git-commit-tracker/internal/model"
)

func TestWorker_ProcessComplete(t *testing.T) {
	store := newMemStore()
	task, err := store.EnqueueTask(context.Background(), "sync_commits", KindSyncCommits, map[string]any{"repository_id": int64(1)})
	require.NoError(t, err)

	var handled model.Task
	w := NewWorker(store, testLogger(), time.Minute)
	w.Register(KindSyncCommits, func(_ context.Context, task model.Task) error {
		handled = task
		return nil
	})

	claimed, err := store.DequeueTask(context.Background(), w.queues...)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	w.process(context.Background(), *claimed)

	assert.Equal(t, task.ID, handled.ID)
	assert.Equal(t, model.JobComplete, store.tasks[task.ID].Status)
	assert.Empty(t, store.tasks[task.ID].Error)
}

func TestWorker_ProcessError(t *testing.T) {
	store := newMemStore()
	task, err := store.EnqueueTask(context.Background(), "sync_commits", KindSyncCommits, nil)
	require.NoError(t, err)

	w := NewWorker(store, testLogger(), time.Minute)
	w.Register(KindSyncCommits, func(context.Context, model.Task) error {
		return assert.AnError
	})
	w.process(context.Background(), *store.tasks[task.ID])

	assert.Equal(t, model.JobError, store.tasks[task.ID].Status)
	assert.Equal(t, assert.AnError.Error(), store.tasks[task.ID].Error)
}

func TestWorker_TimeoutBecomesTypedError(t *testing.T) {
	store := newMemStore()
	task, err := store.EnqueueTask(context.Background(), "sync_commits", KindSyncCommits, nil)
	require.NoError(t, err)

	w := NewWorker(store, testLogger(), 10*time.Millisecond)
	w.Register(KindSyncCommits, func(ctx context.Context, _ model.Task) error {
		<-ctx.Done()
		return ctx.Err()
	})
	w.process(context.Background(), *store.tasks[task.ID])

	assert.Equal(t, model.JobError, store.tasks[task.ID].Status)
	timeoutMsg := (&apperrors.TimeoutError{Stage: KindSyncCommits, Budget: 10 * time.Millisecond}).Error()
	assert.Equal(t, timeoutMsg, store.tasks[task.ID].Error)
}

func TestWorker_UnknownKind(t *testing.T) {
	store := newMemStore()
	task, err := store.EnqueueTask(context.Background(), "mystery", "mystery", nil)
	require.NoError(t, err)

	w := NewWorker(store, testLogger(), time.Minute)
	w.process(context.Background(), *store.tasks[task.ID])

	assert.Equal(t, model.JobError, store.tasks[task.ID].Status)
	assert.Contains(t, store.tasks[task.ID].Error, "unknown task kind")
}

func TestWorker_HighPriorityQueuesFirst(t *testing.T) {
	store := newMemStore()
	w := NewWorker(store, testLogger(), time.Minute)
	w.Register(KindParseCommits, func(context.Context, model.Task) error { return nil })
	w.Register(KindSyncCommits, func(context.Context, model.Task) error { return nil })

	assert.Equal(t, []string{
		"parse_commits_high_priority", "parse_commits",
		"sync_commits_high_priority", "sync_commits",
	}, w.queues)
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	store := newMemStore()
	w := NewWorker(store, testLogger(), time.Minute)
	w.pollInterval = time.Millisecond
	w.Register(KindSyncCommits, func(context.Context, model.Task) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancellation")
	}
}
