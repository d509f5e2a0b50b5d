// internal/jobs/cleanup.go
package jobs

import (
	"context"
	"log/slog"
	"time"
)

// Retention windows for finished and abandoned records.
const (
	finishedRetention = "1 day"
	maxRetention      = "7 days"
)

// CleanupStore is the persistence surface the janitor needs.
type CleanupStore interface {
	DeleteFinishedJobsBefore(ctx context.Context, cutoff string) (int64, error)
	DeleteJobsBefore(ctx context.Context, cutoff string) (int64, error)
	DeleteFinishedTasksBefore(ctx context.Context, cutoff string) (int64, error)
	DeleteTasksBefore(ctx context.Context, cutoff string) (int64, error)
}

// Janitor periodically prunes settled jobs and tasks: terminal records
// after one day, anything at all after one week.
type Janitor struct {
	store    CleanupStore
	logger   *slog.Logger
	interval time.Duration
}

// NewJanitor creates a Janitor.
func NewJanitor(store CleanupStore, logger *slog.Logger, interval time.Duration) *Janitor {
	return &Janitor{store: store, logger: logger, interval: interval}
}

// Start runs the cleanup loop until ctx is cancelled. One pass runs
// immediately on startup.
func (j *Janitor) Start(ctx context.Context) {
	j.runOnce(ctx)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *Janitor) runOnce(ctx context.Context) {
	prune := []struct {
		name string
		fn   func(context.Context, string) (int64, error)
		cut  string
	}{
		{"finished jobs", j.store.DeleteFinishedJobsBefore, finishedRetention},
		{"stale jobs", j.store.DeleteJobsBefore, maxRetention},
		{"finished tasks", j.store.DeleteFinishedTasksBefore, finishedRetention},
		{"stale tasks", j.store.DeleteTasksBefore, maxRetention},
	}
	for _, p := range prune {
		n, err := p.fn(ctx, p.cut)
		if err != nil {
			j.logger.Error("cleanup failed", "target", p.name, "error", err)
			continue
		}
		if n > 0 {
			j.logger.Info("cleanup pruned records", "target", p.name, "deleted", n)
		}
	}
}
