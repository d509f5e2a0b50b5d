// internal/store/committers.go
package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"git-commit-tracker/internal/model"
)

const committerColumns = `id, host_id, login, emails, commits_count, hidden, created_at, updated_at`

func scanCommitter(row interface{ Scan(...any) error }) (model.Committer, error) {
	var c model.Committer
	err := row.Scan(&c.ID, &c.HostID, &c.Login, &c.Emails, &c.CommitsCount, &c.Hidden,
		&c.DBCreatedAt, &c.DBUpdatedAt)
	return c, err
}

// CommitterByEmail locates a committer whose email set contains the
// given address. Emails are not unique across committers; the first
// match wins.
func (s *Store) CommitterByEmail(ctx context.Context, hostID int64, email string) (*model.Committer, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+committerColumns+` FROM committers
		WHERE host_id = $1 AND emails @> ARRAY[$2]::text[]
		LIMIT 1`, hostID, email)
	c, err := scanCommitter(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CommitterByLogin locates a committer by its canonical login.
func (s *Store) CommitterByLogin(ctx context.Context, hostID int64, login string) (*model.Committer, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+committerColumns+` FROM committers
		WHERE host_id = $1 AND login = $2`, hostID, login)
	c, err := scanCommitter(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// UpsertCommitterLogin creates a committer for the login or appends the
// email to an existing one's set.
func (s *Store) UpsertCommitterLogin(ctx context.Context, hostID int64, login, email string) (model.Committer, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO committers (host_id, login, emails)
		VALUES ($1, $2, ARRAY[$3]::text[])
		ON CONFLICT (host_id, login) WHERE login IS NOT NULL DO UPDATE SET
			emails = CASE
				WHEN committers.emails @> ARRAY[$3]::text[] THEN committers.emails
				ELSE array_append(committers.emails, $3)
			END,
			updated_at = now()
		RETURNING `+committerColumns,
		hostID, login, email)
	return scanCommitter(row)
}

// AddCommitterCommits bumps the cached commit counter.
func (s *Store) AddCommitterCommits(ctx context.Context, committerID int64, delta int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE committers SET commits_count = commits_count + $2, updated_at = now()
		WHERE id = $1`, committerID, delta)
	return err
}

// RefreshCommitterCommitsCount recomputes the cached counter from the
// materialized contributions, so re-running a sync never double counts.
func (s *Store) RefreshCommitterCommitsCount(ctx context.Context, committerID int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE committers SET
			commits_count = COALESCE((
				SELECT sum(commit_count) FROM contributions WHERE committer_id = $1
			), 0),
			updated_at = now()
		WHERE id = $1`, committerID)
	return err
}

// UpsertContribution materializes the (committer, repository) join so
// reads never re-aggregate the full ledger.
func (s *Store) UpsertContribution(ctx context.Context, committerID, repositoryID int64, commitCount int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO contributions (committer_id, repository_id, commit_count)
		VALUES ($1, $2, $3)
		ON CONFLICT (committer_id, repository_id) DO UPDATE SET
			commit_count = EXCLUDED.commit_count, updated_at = now()`,
		committerID, repositoryID, commitCount)
	return err
}
