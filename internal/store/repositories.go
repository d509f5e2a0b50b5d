// internal/store/repositories.go
package store

import (
	"context"
	"strings"

	"git-commit-tracker/internal/model"
)

const repositoryColumns = `id, host_id, full_name, owner, description, default_branch,
	status, last_synced_commit, last_synced_at,
	committers, total_commits, total_committers, total_bot_commits, total_bot_committers,
	mean_commits, dds,
	past_year_committers, past_year_total_commits, past_year_total_committers,
	past_year_total_bot_commits, past_year_total_bot_committers,
	past_year_mean_commits, past_year_dds,
	created_at, updated_at`

func scanRepository(row interface{ Scan(...any) error }) (model.Repository, error) {
	var r model.Repository
	var committers, pastYearCommitters []byte
	err := row.Scan(&r.ID, &r.HostID, &r.FullName, &r.Owner, &r.Description, &r.DefaultBranch,
		&r.Status, &r.LastSyncedCommit, &r.LastSyncedAt,
		&committers, &r.TotalCommits, &r.TotalCommitters, &r.TotalBotCommits, &r.TotalBotCommitters,
		&r.MeanCommits, &r.DDS,
		&pastYearCommitters, &r.PastYearTotalCommits, &r.PastYearTotalCommitters,
		&r.PastYearTotalBotCommits, &r.PastYearTotalBotCommitters,
		&r.PastYearMeanCommits, &r.PastYearDDS,
		&r.DBCreatedAt, &r.DBUpdatedAt)
	if err != nil {
		return r, err
	}
	if r.Committers, err = scanStats(committers); err != nil {
		return r, err
	}
	if r.PastYearCommitters, err = scanStats(pastYearCommitters); err != nil {
		return r, err
	}
	return r, nil
}

// FindOrCreateRepository returns the repository identified by
// (host_id, lower(full_name)), creating it lazily on first lookup.
func (s *Store) FindOrCreateRepository(ctx context.Context, hostID int64, fullName string) (model.Repository, error) {
	owner, _, _ := strings.Cut(fullName, "/")
	row := s.pool.QueryRow(ctx, `
		INSERT INTO repositories (host_id, full_name, owner)
		VALUES ($1, $2, $3)
		ON CONFLICT (host_id, lower(full_name)) DO UPDATE SET updated_at = now()
		RETURNING `+repositoryColumns,
		hostID, fullName, owner)
	return scanRepository(row)
}

// RepositoryByFullName looks a repository up case-insensitively.
func (s *Store) RepositoryByFullName(ctx context.Context, hostID int64, fullName string) (model.Repository, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+repositoryColumns+` FROM repositories
		WHERE host_id = $1 AND lower(full_name) = lower($2)`,
		hostID, fullName)
	return scanRepository(row)
}

// RepositoryByID fetches a repository by primary key.
func (s *Store) RepositoryByID(ctx context.Context, id int64) (model.Repository, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+repositoryColumns+` FROM repositories WHERE id = $1`, id)
	return scanRepository(row)
}

// ListRepositories pages through a host's repositories.
func (s *Store) ListRepositories(ctx context.Context, hostID int64, limit, offset int) ([]model.Repository, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+repositoryColumns+` FROM repositories
		WHERE host_id = $1 ORDER BY full_name LIMIT $2 OFFSET $3`,
		hostID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var repos []model.Repository
	for rows.Next() {
		r, err := scanRepository(rows)
		if err != nil {
			return nil, err
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

// LeastRecentlySynced returns active repositories ordered by how stale
// their last sync is, never-synced ones first.
func (s *Store) LeastRecentlySynced(ctx context.Context, limit int) ([]model.Repository, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+repositoryColumns+` FROM repositories
		WHERE status IS NULL
		ORDER BY last_synced_at ASC NULLS FIRST
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var repos []model.Repository
	for rows.Next() {
		r, err := scanRepository(rows)
		if err != nil {
			return nil, err
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

// SaveRepository writes back every mutable repository field.
func (s *Store) SaveRepository(ctx context.Context, r *model.Repository) error {
	committers, err := statsJSON(r.Committers)
	if err != nil {
		return err
	}
	pastYear, err := statsJSON(r.PastYearCommitters)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE repositories SET
			description = $2, default_branch = $3, status = $4,
			last_synced_commit = $5, last_synced_at = $6,
			committers = $7, total_commits = $8, total_committers = $9,
			total_bot_commits = $10, total_bot_committers = $11,
			mean_commits = $12, dds = $13,
			past_year_committers = $14, past_year_total_commits = $15,
			past_year_total_committers = $16, past_year_total_bot_commits = $17,
			past_year_total_bot_committers = $18, past_year_mean_commits = $19,
			past_year_dds = $20,
			updated_at = now()
		WHERE id = $1`,
		r.ID, r.Description, r.DefaultBranch, r.Status,
		r.LastSyncedCommit, r.LastSyncedAt,
		committers, r.TotalCommits, r.TotalCommitters,
		r.TotalBotCommits, r.TotalBotCommitters,
		r.MeanCommits, r.DDS,
		pastYear, r.PastYearTotalCommits,
		r.PastYearTotalCommitters, r.PastYearTotalBotCommits,
		r.PastYearTotalBotCommitters, r.PastYearMeanCommits,
		r.PastYearDDS)
	return err
}

// TouchLastSyncedAt refreshes only the sync timestamp; used when the
// repository is already current.
func (s *Store) TouchLastSyncedAt(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE repositories SET last_synced_at = now(), updated_at = now() WHERE id = $1`, id)
	return err
}

// SetRepositoryStatus persists a guard outcome. A nil status returns
// the repository to active (forced re-sync).
func (s *Store) SetRepositoryStatus(ctx context.Context, id int64, status *string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE repositories SET status = $2, last_synced_at = now(), updated_at = now()
		WHERE id = $1`, id, status)
	return err
}

// SetSyncCursor records the last successfully ingested commit SHA.
func (s *Store) SetSyncCursor(ctx context.Context, id int64, sha string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE repositories SET last_synced_commit = $2, updated_at = now()
		WHERE id = $1`, id, sha)
	return err
}
