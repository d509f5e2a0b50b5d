// internal/store/commits.go
package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"git-commit-tracker/internal/model"
)

const upsertCommitSQL = `
	INSERT INTO commits (repository_id, sha, message, "timestamp", "merge",
		author, committer, stats, co_author_email)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (repository_id, sha) DO UPDATE SET
		message = EXCLUDED.message, "timestamp" = EXCLUDED."timestamp",
		"merge" = EXCLUDED."merge", author = EXCLUDED.author,
		committer = EXCLUDED.committer, stats = EXCLUDED.stats,
		co_author_email = EXCLUDED.co_author_email`

// UpsertCommits writes a batch of commits keyed by (repository_id, sha).
// The write is non-returning and safe to retry; re-ingesting the same
// batch leaves the table unchanged.
func (s *Store) UpsertCommits(ctx context.Context, commits []model.Commit) (int64, error) {
	if len(commits) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, c := range commits {
		stats := []int32{int32(c.FilesChanged), int32(c.Additions), int32(c.Deletions)}
		batch.Queue(upsertCommitSQL,
			c.RepositoryID, c.SHA, c.Message, c.Timestamp, c.Merge,
			c.Author, c.Committer, stats, c.CoAuthorEmail)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	var written int64
	for range commits {
		tag, err := results.Exec()
		if err != nil {
			return written, err
		}
		written += tag.RowsAffected()
	}
	return written, nil
}

// CountCommits returns how many ledger entries exist for a repository.
func (s *Store) CountCommits(ctx context.Context, repositoryID int64) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM commits WHERE repository_id = $1`, repositoryID).Scan(&n)
	return n, err
}

// ListCommits pages through a repository's ledger, newest first.
func (s *Store) ListCommits(ctx context.Context, repositoryID int64, limit, offset int) ([]model.Commit, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, repository_id, sha, message, "timestamp", "merge",
			author, committer, stats, co_author_email, created_at
		FROM commits
		WHERE repository_id = $1
		ORDER BY "timestamp" DESC
		LIMIT $2 OFFSET $3`,
		repositoryID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var commits []model.Commit
	for rows.Next() {
		var c model.Commit
		var stats []int32
		if err := rows.Scan(&c.ID, &c.RepositoryID, &c.SHA, &c.Message, &c.Timestamp, &c.Merge,
			&c.Author, &c.Committer, &stats, &c.CoAuthorEmail, &c.DBCreatedAt); err != nil {
			return nil, err
		}
		if len(stats) == 3 {
			c.FilesChanged, c.Additions, c.Deletions = int(stats[0]), int(stats[1]), int(stats[2])
		}
		commits = append(commits, c)
	}
	return commits, rows.Err()
}
