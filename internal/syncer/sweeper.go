// internal/syncer/sweeper.go
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"git-commit-tracker/internal/metadata"
	"git-commit-tracker/internal/model"
)

const (
	// Number of repositories to enqueue per sweep, stalest first.
	sweepBatch = 1000
	// Number of enqueue operations in flight at once.
	concurrency = 5
)

// SweepStore is the persistence surface the sweeper needs.
type SweepStore interface {
	LeastRecentlySynced(ctx context.Context, limit int) ([]model.Repository, error)
	UpsertHost(ctx context.Context, host model.Host) (model.Host, error)
}

// Enqueuer submits background sync tasks.
type Enqueuer interface {
	EnqueueSync(ctx context.Context, repositoryID int64, highPriority bool) (model.Task, error)
}

// HostCatalog lists the upstream host catalog.
type HostCatalog interface {
	Hosts(ctx context.Context) ([]metadata.Host, error)
}

// Sweeper periodically refreshes the host catalog and enqueues the
// least recently synced repositories for a background sync.
type Sweeper struct {
	store    SweepStore
	queue    Enqueuer
	catalog  HostCatalog
	logger   *slog.Logger
	interval time.Duration
}

// NewSweeper creates a Sweeper.
func NewSweeper(store SweepStore, queue Enqueuer, catalog HostCatalog, logger *slog.Logger, interval time.Duration) *Sweeper {
	return &Sweeper{
		store:    store,
		queue:    queue,
		catalog:  catalog,
		logger:   logger,
		interval: interval,
	}
}

// Start begins the continuous sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("Starting sweeper", "interval", s.interval.String(), "concurrency", concurrency)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runCycle(ctx) // Initial sweep

	for {
		select {
		case <-ticker.C:
			s.runCycle(ctx)
		case <-ctx.Done():
			s.logger.Info("Sweeper shutting down", "reason", ctx.Err())
			return
		}
	}
}

// runCycle performs one sweep pass: refresh hosts, then enqueue stale
// repositories concurrently.
func (s *Sweeper) runCycle(ctx context.Context) {
	s.logger.Info("Starting new sweep cycle")

	s.syncHosts(ctx)

	repos, err := s.store.LeastRecentlySynced(ctx, sweepBatch)
	if err != nil {
		s.logger.Error("Failed to list stale repositories", "error", err)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, repo := range repos {
		repo := repo
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			_, err := s.queue.EnqueueSync(gctx, repo.ID, false)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("Failed to enqueue repository sync", "repository", repo.FullName, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("Sweep cycle finished", "enqueued", len(repos))
}

// syncHosts creates or refreshes hosts from the upstream catalog.
func (s *Sweeper) syncHosts(ctx context.Context) {
	hosts, err := s.catalog.Hosts(ctx)
	if err != nil {
		s.logger.Warn("Host catalog refresh failed", "error", err)
		return
	}
	for _, h := range hosts {
		_, err := s.store.UpsertHost(ctx, model.Host{
			Name:    h.Name,
			URL:     h.URL,
			Kind:    h.Kind,
			IconURL: h.IconURL,
		})
		if err != nil {
			s.logger.Error("Failed to upsert host", "host", h.Name, "error", err)
		}
	}
}
