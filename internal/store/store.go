// internal/store/store.go
// Package store is the pgx-backed persistence layer. Writes that must
// be idempotent (commit batches, contributions, committer upserts) are
// keyed by their natural identity and use ON CONFLICT upserts so any
// stage can be re-run safely.
package store

import (
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"git-commit-tracker/internal/model"
)

// Store bundles all database access over one pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// statsJSON round-trips []ContributorStat through a JSONB column.
// A nil slice maps to SQL NULL so an unsynced repository stays
// distinguishable from one with an empty contributor set.
func statsJSON(stats []model.ContributorStat) (any, error) {
	if stats == nil {
		return nil, nil
	}
	return json.Marshal(stats)
}

func scanStats(raw []byte) ([]model.ContributorStat, error) {
	if raw == nil {
		return nil, nil
	}
	var stats []model.ContributorStat
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}
