// internal/ingest/engine.go
// Package ingest extracts a repository's full commit ledger in batches,
// deduplicates against stored state, and resumes after partial
// progress.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apperrors "git-commit-tracker/internal/errors"
	"git-commit-tracker/internal/gitcli"
	"git-commit-tracker/internal/gitlog"
	"git-commit-tracker/internal/model"
)

// authorCeiling rejects pathological repositories: a commit-author
// population above this is discarded rather than persisted.
const authorCeiling = 10000

// Git is the subset of the git gateway the engine needs.
type Git interface {
	CommitCount(ctx context.Context, dir string) (int, error)
	HeadSHA(ctx context.Context, dir string) (string, error)
	Log(ctx context.Context, dir string, opts gitcli.LogOptions) (string, error)
}

// Store is the subset of persistence the engine needs.
type Store interface {
	CountCommits(ctx context.Context, repositoryID int64) (int64, error)
	UpsertCommits(ctx context.Context, commits []model.Commit) (int64, error)
	SetSyncCursor(ctx context.Context, repositoryID int64, sha string) error
}

// Result reports an ingestion run. Partial means the wall-clock budget
// ran out mid-run; the persisted cursor lets a follow-up run resume.
type Result struct {
	Processed int64
	Partial   bool
	Cursor    string
}

// Engine orchestrates incremental, batched extraction of the commit
// ledger.
type Engine struct {
	git    Git
	store  Store
	logger *slog.Logger
	budget time.Duration
}

// NewEngine creates an Engine with the given wall-clock budget per run.
func NewEngine(git Git, store Store, logger *slog.Logger, budget time.Duration) *Engine {
	return &Engine{git: git, store: store, logger: logger, budget: budget}
}

// batchSizeFor scales the log window with total history size.
func batchSizeFor(totalCommits int) int {
	switch {
	case totalCommits > 100000:
		return 10000
	case totalCommits > 10000:
		return 5000
	default:
		return 1000
	}
}

// Ingest brings the stored ledger up to date with the clone in dir.
// A repository already fully represented short-circuits to a
// head-pointer update. Exceeding the budget mid-run persists the last
// written commit as the sync cursor and reports partial progress
// rather than failing.
func (e *Engine) Ingest(ctx context.Context, repo *model.Repository, dir string) (Result, error) {
	live, err := e.git.CommitCount(ctx, dir)
	if err != nil {
		return Result{}, &apperrors.SyncError{Stage: "count", Err: err}
	}
	if live == 0 {
		return Result{}, nil
	}

	stored, err := e.store.CountCommits(ctx, repo.ID)
	if err != nil {
		return Result{}, err
	}

	logger := e.logger.With("repository_id", repo.ID, "live", live, "stored", stored)

	if stored >= int64(live) {
		head, err := e.git.HeadSHA(ctx, dir)
		if err != nil {
			return Result{}, &apperrors.SyncError{Stage: "head", Err: err}
		}
		logger.Debug("ledger already complete, updating head pointer")
		return Result{Cursor: head}, e.store.SetSyncCursor(ctx, repo.ID, head)
	}

	batch := batchSizeFor(live)
	deadline := time.Now().Add(e.budget)
	authors := make(map[string]struct{})
	res := Result{}

	// New commits above the previous cursor first, so an interactive
	// re-sync surfaces fresh history before the backfill continues.
	if repo.LastSyncedCommit != nil && stored > 0 {
		if err := e.ingestWindow(ctx, repo.ID, dir, gitcli.LogOptions{Cursor: *repo.LastSyncedCommit, Limit: batch}, live, batch, deadline, authors, &res); err != nil {
			return res, err
		}
		if res.Partial {
			return res, nil
		}
		stored, err = e.store.CountCommits(ctx, repo.ID)
		if err != nil {
			return res, err
		}
		if stored >= int64(live) {
			return e.finish(ctx, repo.ID, dir, res)
		}
	}

	// Backfill the remainder of history with skip/limit pagination,
	// newest first. Resuming starts one batch short of the stored
	// count; the overlap is harmless because writes are upserts.
	skip := int(stored) - batch
	if skip < 0 {
		skip = 0
	}
	if err := e.ingestWindow(ctx, repo.ID, dir, gitcli.LogOptions{Skip: skip, Limit: batch}, live, batch, deadline, authors, &res); err != nil {
		return res, err
	}
	if res.Partial {
		return res, nil
	}
	return e.finish(ctx, repo.ID, dir, res)
}

// ingestWindow pages through one log window (a cursor range or the full
// history) until it is exhausted, the budget runs out, or the author
// ceiling trips.
func (e *Engine) ingestWindow(ctx context.Context, repoID int64, dir string, opts gitcli.LogOptions, live, batch int, deadline time.Time, authors map[string]struct{}, res *Result) error {
	for {
		raw, err := e.git.Log(ctx, dir, opts)
		if err != nil {
			return &apperrors.SyncError{Stage: "log", Err: err}
		}
		records := gitlog.Parse(raw)
		if len(records) == 0 {
			return nil
		}

		for _, rec := range records {
			authors[rec.AuthorEmail] = struct{}{}
		}
		if len(authors) > authorCeiling {
			// Discard the batch: nothing from it is persisted.
			return &apperrors.TooLargeError{
				Reason: fmt.Sprintf("more than %d distinct commit authors", authorCeiling),
			}
		}

		written, err := e.store.UpsertCommits(ctx, toModels(repoID, records))
		if err != nil {
			return err
		}
		res.Processed += written
		res.Cursor = records[len(records)-1].SHA

		opts.Skip += len(records)
		if len(records) < batch || opts.Skip >= live {
			return nil
		}
		if time.Now().After(deadline) {
			res.Partial = true
			e.logger.Warn("ingestion budget exceeded, persisting cursor",
				"repository_id", repoID, "cursor", res.Cursor, "processed", res.Processed)
			return e.store.SetSyncCursor(ctx, repoID, res.Cursor)
		}
	}
}

func (e *Engine) finish(ctx context.Context, repoID int64, dir string, res Result) (Result, error) {
	head, err := e.git.HeadSHA(ctx, dir)
	if err != nil {
		return res, &apperrors.SyncError{Stage: "head", Err: err}
	}
	res.Cursor = head
	return res, e.store.SetSyncCursor(ctx, repoID, head)
}

// toModels converts parsed records to ledger rows, deduplicating by sha
// within the batch so the upsert never conflicts with itself.
func toModels(repoID int64, records []gitlog.Commit) []model.Commit {
	seen := make(map[string]struct{}, len(records))
	commits := make([]model.Commit, 0, len(records))
	for _, rec := range records {
		if _, dup := seen[rec.SHA]; dup {
			continue
		}
		seen[rec.SHA] = struct{}{}

		c := model.Commit{
			RepositoryID: repoID,
			SHA:          rec.SHA,
			Message:      rec.Message,
			Timestamp:    rec.Timestamp,
			Merge:        rec.Merge,
			Author:       rec.Author(),
			Committer:    rec.Committer(),
			FilesChanged: rec.FilesChanged,
			Additions:    rec.Additions,
			Deletions:    rec.Deletions,
		}
		if email := rec.CoAuthorEmail(); email != "" {
			c.CoAuthorEmail = &email
		}
		commits = append(commits, c)
	}
	return commits
}
