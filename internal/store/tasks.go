// internal/store/tasks.go
package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"git-commit-tracker/internal/model"
)

const taskColumns = `id, queue, kind, payload, status, error, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (model.Task, error) {
	var t model.Task
	var payload []byte
	err := row.Scan(&t.ID, &t.Queue, &t.Kind, &payload, &t.Status, &t.Error,
		&t.DBCreatedAt, &t.DBUpdatedAt)
	if err != nil {
		return t, err
	}
	if payload != nil {
		if err := json.Unmarshal(payload, &t.Payload); err != nil {
			return t, err
		}
	}
	return t, nil
}

// EnqueueTask pushes a task onto a named queue.
func (s *Store) EnqueueTask(ctx context.Context, queue, kind string, payload map[string]any) (model.Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return model.Task{}, err
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO tasks (queue, kind, payload, status)
		VALUES ($1, $2, $3, $4)
		RETURNING `+taskColumns,
		queue, kind, raw, model.JobQueued)
	return scanTask(row)
}

// DequeueTask claims the oldest queued task from the first queue in the
// given order that has one, marking it working. Queues earlier in the
// list are higher priority. SKIP LOCKED keeps concurrent workers off
// each other's claims.
func (s *Store) DequeueTask(ctx context.Context, queues ...string) (*model.Task, error) {
	for _, queue := range queues {
		row := s.pool.QueryRow(ctx, `
			UPDATE tasks SET status = $2, updated_at = now()
			WHERE id = (
				SELECT id FROM tasks
				WHERE queue = $1 AND status = $3
				ORDER BY created_at
				FOR UPDATE SKIP LOCKED
				LIMIT 1
			)
			RETURNING `+taskColumns,
			queue, model.JobWorking, model.JobQueued)
		t, err := scanTask(row)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &t, nil
	}
	return nil, nil
}

// TaskByID fetches a task; the job supervisor polls this for status.
func (s *Store) TaskByID(ctx context.Context, id int64) (*model.Task, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FinishTask records a terminal task state.
func (s *Store) FinishTask(ctx context.Context, id int64, status, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE tasks SET status = $2, error = $3, updated_at = now()
		WHERE id = $1`, id, status, errMsg)
	return err
}

// DeleteFinishedTasksBefore purges terminal tasks older than the
// cutoff interval in one batched statement.
func (s *Store) DeleteFinishedTasksBefore(ctx context.Context, cutoff string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM tasks
		WHERE status IN ($1, $2) AND created_at < now() - $3::interval`,
		model.JobComplete, model.JobError, cutoff)
	return tag.RowsAffected(), err
}

// DeleteTasksBefore purges tasks of any status older than the cutoff
// interval, catching strays that never reached a terminal state.
func (s *Store) DeleteTasksBefore(ctx context.Context, cutoff string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM tasks WHERE created_at < now() - $1::interval`, cutoff)
	return tag.RowsAffected(), err
}
