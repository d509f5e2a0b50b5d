// internal/store/jobs.go
package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"git-commit-tracker/internal/model"
)

const jobColumns = `id, url, ip, status, task_id, results, created_at, updated_at`

func scanJob(row interface{ Scan(...any) error }) (model.Job, error) {
	var j model.Job
	var results []byte
	err := row.Scan(&j.ID, &j.URL, &j.IP, &j.Status, &j.TaskID, &results,
		&j.DBCreatedAt, &j.DBUpdatedAt)
	if err != nil {
		return j, err
	}
	if results != nil {
		if err := json.Unmarshal(results, &j.Results); err != nil {
			return j, err
		}
	}
	return j, nil
}

// CreateJob records a new pending sync request with its remote-IP
// provenance tag.
func (s *Store) CreateJob(ctx context.Context, url, ip string) (model.Job, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO jobs (id, url, ip, status)
		VALUES ($1, $2, $3, $4)
		RETURNING `+jobColumns,
		uuid.NewString(), url, ip, model.JobPending)
	return scanJob(row)
}

// JobByID fetches a job.
func (s *Store) JobByID(ctx context.Context, id string) (*model.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// SaveJob writes back status, task handle and results.
func (s *Store) SaveJob(ctx context.Context, j *model.Job) error {
	var results any
	if j.Results != nil {
		raw, err := json.Marshal(j.Results)
		if err != nil {
			return err
		}
		results = raw
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE jobs SET status = $2, task_id = $3, results = $4, updated_at = now()
		WHERE id = $1`,
		j.ID, j.Status, j.TaskID, results)
	return err
}

// UnfinishedJobs returns queued or working jobs for status polling.
func (s *Store) UnfinishedJobs(ctx context.Context, limit int) ([]model.Job, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE status IN ($1, $2)
		ORDER BY created_at
		LIMIT $3`,
		model.JobQueued, model.JobWorking, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// DeleteFinishedJobsBefore purges terminal jobs older than the cutoff
// interval (e.g. "1 day").
func (s *Store) DeleteFinishedJobsBefore(ctx context.Context, cutoff string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM jobs
		WHERE status IN ($1, $2) AND created_at < now() - $3::interval`,
		model.JobComplete, model.JobError, cutoff)
	return tag.RowsAffected(), err
}

// DeleteJobsBefore purges jobs of any status older than the cutoff
// interval (e.g. "1 week").
func (s *Store) DeleteJobsBefore(ctx context.Context, cutoff string) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM jobs WHERE created_at < now() - $1::interval`, cutoff)
	return tag.RowsAffected(), err
}
