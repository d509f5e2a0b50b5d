// internal/store/hosts.go
package store

import (
	"context"

	"git-commit-tracker/internal/model"
)

const hostColumns = `id, name, url, kind, icon_url, repositories_count,
	commits_count, contributors_count, last_synced_at, created_at, updated_at`

func scanHost(row interface{ Scan(...any) error }) (model.Host, error) {
	var h model.Host
	err := row.Scan(&h.ID, &h.Name, &h.URL, &h.Kind, &h.IconURL, &h.RepositoriesCount,
		&h.CommitsCount, &h.ContributorsCount, &h.LastSyncedAt, &h.DBCreatedAt, &h.DBUpdatedAt)
	return h, err
}

// UpsertHost creates or refreshes a host by case-insensitive name.
func (s *Store) UpsertHost(ctx context.Context, host model.Host) (model.Host, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO hosts (name, url, kind, icon_url, last_synced_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (lower(name)) DO UPDATE
		SET url = EXCLUDED.url, kind = EXCLUDED.kind, icon_url = EXCLUDED.icon_url,
		    last_synced_at = now(), updated_at = now()
		RETURNING `+hostColumns,
		host.Name, host.URL, host.Kind, host.IconURL)
	return scanHost(row)
}

// HostByName looks up a host case-insensitively.
func (s *Store) HostByName(ctx context.Context, name string) (model.Host, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+hostColumns+` FROM hosts WHERE lower(name) = lower($1)`, name)
	return scanHost(row)
}

// HostByID fetches a host by primary key.
func (s *Store) HostByID(ctx context.Context, id int64) (model.Host, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+hostColumns+` FROM hosts WHERE id = $1`, id)
	return scanHost(row)
}

// ListHosts returns all hosts ordered by name.
func (s *Store) ListHosts(ctx context.Context) ([]model.Host, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+hostColumns+` FROM hosts ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hosts []model.Host
	for rows.Next() {
		h, err := scanHost(rows)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, h)
	}
	return hosts, rows.Err()
}
