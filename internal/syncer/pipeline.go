// internal/syncer/pipeline.go
// Package syncer runs the per-repository sync pipeline and the
// scheduled sweep that keeps tracked repositories fresh.
package syncer

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	apperrors "git-commit-tracker/internal/errors"
	"git-commit-tracker/internal/gitcli"
	"git-commit-tracker/internal/gitlog"
	"git-commit-tracker/internal/ingest"
	"git-commit-tracker/internal/metadata"
	"git-commit-tracker/internal/model"
)

const (
	maxRefCount = 1000
	maxRepoSize = 500000
)

// Store is the persistence surface the pipeline needs.
type Store interface {
	HostByID(ctx context.Context, id int64) (model.Host, error)
	RepositoryByID(ctx context.Context, id int64) (model.Repository, error)
	SaveRepository(ctx context.Context, r *model.Repository) error
	TouchLastSyncedAt(ctx context.Context, id int64) error
	SetRepositoryStatus(ctx context.Context, id int64, status *string) error
	UpsertCommitterLogin(ctx context.Context, hostID int64, login, email string) (model.Committer, error)
	UpsertContribution(ctx context.Context, committerID, repositoryID int64, commitCount int) error
	RefreshCommitterCommitsCount(ctx context.Context, committerID int64) error
}

// Git is the subset of the git gateway the pipeline needs.
type Git interface {
	RefCount(ctx context.Context, remoteURL string) (int, error)
	RemoteHeadSHA(ctx context.Context, remoteURL, branch string) (string, error)
	Clone(ctx context.Context, remoteURL, dir string) error
	Log(ctx context.Context, dir string, opts gitcli.LogOptions) (string, error)
}

// Metadata is the upstream repository-metadata collaborator.
type Metadata interface {
	Repository(ctx context.Context, hostName, fullName string) (*metadata.Repo, error)
}

// Resolver maps author emails to logins.
type Resolver interface {
	ResolveCached(ctx context.Context, host model.Host, email string) (string, error)
	Resolve(ctx context.Context, host model.Host, repoFullName, email string) (string, error)
}

// Ingester writes the commit ledger.
type Ingester interface {
	Ingest(ctx context.Context, repo *model.Repository, dir string) (ingest.Result, error)
}

// Outcome summarizes one pipeline run for the job supervisor.
type Outcome struct {
	Status    string // repository status after the run; "" = active
	Partial   bool   // ingestion hit its budget; schedule a follow-up
	Processed int64
}

// Pipeline is the top-level state machine per repository. Stages run
// strictly left to right with early-exit guards; re-running any stage
// with the same inputs does not corrupt state.
type Pipeline struct {
	store        Store
	git          Git
	meta         Metadata
	resolver     Resolver
	ingester     Ingester
	logger       *slog.Logger
	cloneTimeout time.Duration
}

// NewPipeline wires a Pipeline.
func NewPipeline(store Store, git Git, meta Metadata, resolver Resolver, ingester Ingester, logger *slog.Logger, cloneTimeout time.Duration) *Pipeline {
	return &Pipeline{
		store:        store,
		git:          git,
		meta:         meta,
		resolver:     resolver,
		ingester:     ingester,
		logger:       logger,
		cloneTimeout: cloneTimeout,
	}
}

// Sync runs the full pipeline for one repository:
// refresh-metadata, size-guard, clone, aggregate, ingest, resolve
// identities, materialize contributions, mark synced.
//
// Guard outcomes (not_found, too_large) are persisted as repository
// status and return a nil error; transient failures leave the
// repository in its prior state and surface the error to the caller.
func (p *Pipeline) Sync(ctx context.Context, repositoryID int64) (Outcome, error) {
	repo, err := p.store.RepositoryByID(ctx, repositoryID)
	if err != nil {
		return Outcome{}, err
	}
	host, err := p.store.HostByID(ctx, repo.HostID)
	if err != nil {
		return Outcome{}, err
	}
	logger := p.logger.With("host", host.Name, "repository", repo.FullName)

	// Stage: refresh-metadata.
	meta, err := p.meta.Repository(ctx, host.Name, repo.FullName)
	switch {
	case errors.Is(err, metadata.ErrNotFound):
		logger.Info("repository gone upstream, marking not_found")
		return p.markStatus(ctx, &repo, model.StatusNotFound)
	case err != nil:
		// Metadata is advisory; sync on with what we have.
		logger.Warn("metadata refresh failed", "error", err)
		meta = nil
	default:
		if meta.DefaultBranch != "" {
			repo.DefaultBranch = meta.DefaultBranch
		}
		if meta.Description != "" {
			repo.Description = &meta.Description
		}
	}

	if repo.Status != nil && *repo.Status == model.StatusNotFound {
		return Outcome{Status: *repo.Status}, nil
	}

	// Stage: size-guard, before any clone is attempted.
	if meta != nil && meta.Size > maxRepoSize {
		logger.Info("repository exceeds size guard", "size", meta.Size)
		return p.markStatus(ctx, &repo, model.StatusTooLarge)
	}
	cloneURL := host.URL + "/" + repo.FullName + ".git"
	refs, err := p.git.RefCount(ctx, cloneURL)
	if err != nil {
		return Outcome{}, &apperrors.SyncError{Stage: "ref-count", Err: err}
	}
	if refs > maxRefCount {
		logger.Info("repository exceeds ref guard", "refs", refs)
		return p.markStatus(ctx, &repo, model.StatusTooLarge)
	}

	// Already current: unchanged head with populated aggregates means
	// the run only refreshes the sync timestamp.
	head, err := p.git.RemoteHeadSHA(ctx, cloneURL, repo.DefaultBranch)
	if err != nil {
		return Outcome{}, &apperrors.SyncError{Stage: "head", Err: err}
	}
	if repo.LastSyncedCommit != nil && *repo.LastSyncedCommit == head &&
		repo.TotalCommits != nil && *repo.TotalCommits > 0 &&
		repo.PastYearCommitters != nil {
		logger.Debug("repository already current")
		return Outcome{}, p.store.TouchLastSyncedAt(ctx, repo.ID)
	}

	// Scoped temporary clone directory; destroyed on every exit path.
	tmp, err := os.MkdirTemp("", "repo-sync-")
	if err != nil {
		return Outcome{}, err
	}
	defer os.RemoveAll(tmp)
	dir := filepath.Join(tmp, "clone")

	// Stage: clone, bounded by the clone timeout.
	cloneCtx, cancel := context.WithTimeout(ctx, p.cloneTimeout)
	err = p.git.Clone(cloneCtx, cloneURL, dir)
	cancel()
	switch {
	case apperrors.IsTimeout(err):
		logger.Info("clone timed out, marking too_large")
		return p.markStatus(ctx, &repo, model.StatusTooLarge)
	case apperrors.IsNotFound(err):
		logger.Info("clone says repository is gone, marking not_found")
		return p.markStatus(ctx, &repo, model.StatusNotFound)
	case err != nil:
		return Outcome{}, &apperrors.SyncError{Stage: "clone", Err: err}
	}

	// Stage: count & aggregate over full history and the past year,
	// resolving logins from cache only.
	raw, err := p.git.Log(ctx, dir, gitcli.LogOptions{})
	if err != nil {
		return Outcome{}, &apperrors.SyncError{Stage: "aggregate", Err: err}
	}
	commits := gitlog.Parse(raw)
	cacheOnly := func(email string) string {
		login, err := p.resolver.ResolveCached(ctx, host, email)
		if err != nil {
			logger.Debug("cached login lookup failed", "error", err)
		}
		return login
	}
	all := Aggregate(commits, cacheOnly)
	pastYear := Aggregate(commitsSince(commits, time.Now().AddDate(-1, 0, 0)), cacheOnly)

	// Stage: ingest the commit ledger.
	result, err := p.ingester.Ingest(ctx, &repo, dir)
	if apperrors.IsTooLarge(err) {
		logger.Info("author population over ceiling, marking too_large")
		return p.markStatus(ctx, &repo, model.StatusTooLarge)
	}
	if err != nil {
		return Outcome{}, err
	}

	// Stage: resolve remaining identities, network allowed.
	all = p.resolveAll(ctx, logger, host, repo.FullName, all)
	pastYear = p.resolveAll(ctx, logger, host, repo.FullName, pastYear)

	applySummary(&repo, Summarize(all), Summarize(pastYear))

	// Stage: materialize contribution join-records.
	if err := p.materializeContributions(ctx, host, &repo, all); err != nil {
		return Outcome{}, &apperrors.SyncError{Stage: "contributions", Err: err}
	}

	// Stage: mark synced.
	cursor := result.Cursor
	if cursor == "" {
		cursor = head
	}
	repo.LastSyncedCommit = &cursor
	repo.LastSyncedAt = sql.NullTime{Time: time.Now(), Valid: true}
	repo.Status = nil
	if err := p.store.SaveRepository(ctx, &repo); err != nil {
		return Outcome{}, err
	}

	logger.Info("repository synced",
		"processed", result.Processed,
		"partial", result.Partial,
		"total_commits", deref(repo.TotalCommits))
	return Outcome{Partial: result.Partial, Processed: result.Processed}, nil
}

func (p *Pipeline) markStatus(ctx context.Context, repo *model.Repository, status string) (Outcome, error) {
	if err := p.store.SetRepositoryStatus(ctx, repo.ID, &status); err != nil {
		return Outcome{}, err
	}
	return Outcome{Status: status}, nil
}

func (p *Pipeline) resolveAll(ctx context.Context, logger *slog.Logger, host model.Host, fullName string, stats []model.ContributorStat) []model.ContributorStat {
	for i := range stats {
		if stats[i].Login != "" {
			continue
		}
		login, err := p.resolver.Resolve(ctx, host, fullName, stats[i].Email)
		if err != nil {
			logger.Debug("login resolution failed", "email", stats[i].Email, "error", err)
			continue
		}
		stats[i].Login = login
	}
	return RegroupByLogin(stats)
}

func (p *Pipeline) materializeContributions(ctx context.Context, host model.Host, repo *model.Repository, stats []model.ContributorStat) error {
	for _, stat := range stats {
		if stat.Login == "" {
			continue
		}
		committer, err := p.store.UpsertCommitterLogin(ctx, host.ID, stat.Login, stat.Email)
		if err != nil {
			return err
		}
		if err := p.store.UpsertContribution(ctx, committer.ID, repo.ID, stat.Count); err != nil {
			return err
		}
		if err := p.store.RefreshCommitterCommitsCount(ctx, committer.ID); err != nil {
			return err
		}
	}
	return nil
}

func applySummary(repo *model.Repository, all, pastYear Summary) {
	repo.Committers = all.Committers
	repo.TotalCommits = &all.TotalCommits
	repo.TotalCommitters = &all.CommitterCount
	repo.TotalBotCommits = &all.BotCommits
	repo.TotalBotCommitters = &all.BotCommitters
	repo.MeanCommits = &all.MeanCommits
	repo.DDS = &all.DDS

	if pastYear.Committers == nil {
		pastYear.Committers = []model.ContributorStat{}
	}
	repo.PastYearCommitters = pastYear.Committers
	repo.PastYearTotalCommits = &pastYear.TotalCommits
	repo.PastYearTotalCommitters = &pastYear.CommitterCount
	repo.PastYearTotalBotCommits = &pastYear.BotCommits
	repo.PastYearTotalBotCommitters = &pastYear.BotCommitters
	repo.PastYearMeanCommits = &pastYear.MeanCommits
	repo.PastYearDDS = &pastYear.DDS
}

func commitsSince(commits []gitlog.Commit, since time.Time) []gitlog.Commit {
	var recent []gitlog.Commit
	for _, c := range commits {
		if c.Timestamp.After(since) {
			recent = append(recent, c)
		}
	}
	return recent
}

func deref(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
