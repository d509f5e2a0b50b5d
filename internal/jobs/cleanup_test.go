// internal/jobs/cleanup_test.go
package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type recordingCleanupStore struct {
	calls map[string]string // target -> cutoff
}

func (r *recordingCleanupStore) record(target, cutoff string) (int64, error) {
	if r.calls == nil {
		r.calls = make(map[string]string)
	}
	r.calls[target] = cutoff
	return 1, nil
}

func (r *recordingCleanupStore) DeleteFinishedJobsBefore(_ context.Context, cutoff string) (int64, error) {
	return r.record("finished_jobs", cutoff)
}

func (r *recordingCleanupStore) DeleteJobsBefore(_ context.Context, cutoff string) (int64, error) {
	return r.record("all_jobs", cutoff)
}

func (r *recordingCleanupStore) DeleteFinishedTasksBefore(_ context.Context, cutoff string) (int64, error) {
	return r.record("finished_tasks", cutoff)
}

func (r *recordingCleanupStore) DeleteTasksBefore(_ context.Context, cutoff string) (int64, error) {
	return r.record("all_tasks", cutoff)
}

func TestJanitor_RunOnce(t *testing.T) {
	store := &recordingCleanupStore{}
	j := NewJanitor(store, testLogger(), time.Hour)

	j.runOnce(context.Background())

	assert.Equal(t, map[string]string{
		"finished_jobs":  "1 day",
		"all_jobs":       "7 days",
		"finished_tasks": "1 day",
		"all_tasks":      "7 days",
	}, store.calls)
}
