// internal/jobs/service.go
package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"git-commit-tracker/internal/model"
)

// Task kinds understood by the worker pool.
const (
	KindSyncCommits  = "sync_commits"
	KindParseCommits = "parse_commits"
)

// queueName maps a task kind to its queue. High-priority work goes on
// a dedicated queue that workers drain first.
func queueName(kind string, highPriority bool) string {
	if highPriority {
		return kind + "_high_priority"
	}
	return kind
}

// Store is the persistence surface the job service needs.
type Store interface {
	EnqueueTask(ctx context.Context, queue, kind string, payload map[string]any) (model.Task, error)
	TaskByID(ctx context.Context, id int64) (*model.Task, error)
	CreateJob(ctx context.Context, url, ip string) (model.Job, error)
	JobByID(ctx context.Context, id string) (*model.Job, error)
	SaveJob(ctx context.Context, j *model.Job) error
	UnfinishedJobs(ctx context.Context, limit int) ([]model.Job, error)
}

// Service tracks jobs and the tasks backing them. A job is the
// client-facing record for one lookup request; the task carries it
// through the worker pool. Job status is pull-based: clients poll and
// the service refreshes the job from its task on each read.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a Service.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// EnqueueSync submits a background commit sync for one repository.
func (s *Service) EnqueueSync(ctx context.Context, repositoryID int64, highPriority bool) (model.Task, error) {
	return s.store.EnqueueTask(ctx, queueName(KindSyncCommits, highPriority), KindSyncCommits,
		map[string]any{"repository_id": repositoryID})
}

// CreateJob records a lookup job for a raw repository URL and enqueues
// the high-priority task that will fulfil it.
func (s *Service) CreateJob(ctx context.Context, rawURL, ip string) (model.Job, error) {
	job, err := s.store.CreateJob(ctx, rawURL, ip)
	if err != nil {
		return model.Job{}, err
	}
	task, err := s.store.EnqueueTask(ctx, queueName(KindParseCommits, true), KindParseCommits,
		map[string]any{"job_id": job.ID})
	if err != nil {
		return model.Job{}, err
	}
	job.Status = model.JobQueued
	job.TaskID = &task.ID
	if err := s.store.SaveJob(ctx, &job); err != nil {
		return model.Job{}, err
	}
	return job, nil
}

// RefreshJobStatus pulls the backing task's state into an unfinished
// job. Terminal job states are written by the task handler itself, so
// this only mirrors the queued/working transitions, plus the case
// where the task vanished before completing.
func (s *Service) RefreshJobStatus(ctx context.Context, job *model.Job) error {
	if job.Finished() || job.TaskID == nil {
		return nil
	}
	task, err := s.store.TaskByID(ctx, *job.TaskID)
	if err != nil {
		return err
	}
	if task == nil {
		job.Status = model.JobError
		job.Results = map[string]any{"error": "task no longer exists"}
		return s.store.SaveJob(ctx, job)
	}
	switch task.Status {
	case model.JobQueued, model.JobWorking:
		if job.Status != task.Status {
			job.Status = task.Status
			return s.store.SaveJob(ctx, job)
		}
	case model.JobError:
		// Handler failures normally write the job record too; this
		// covers a handler that died between FinishTask and SaveJob.
		job.Status = model.JobError
		if job.Results == nil {
			job.Results = map[string]any{"error": task.Error}
		}
		return s.store.SaveJob(ctx, job)
	}
	return nil
}

// Job fetches a job by ID, refreshing its status from the backing
// task first.
func (s *Service) Job(ctx context.Context, id string) (*model.Job, error) {
	job, err := s.store.JobByID(ctx, id)
	if err != nil || job == nil {
		return job, err
	}
	if err := s.RefreshJobStatus(ctx, job); err != nil {
		return nil, fmt.Errorf("refresh job %s: %w", id, err)
	}
	return job, nil
}

// CheckStatuses refreshes every unfinished job from its task. Run
// periodically so jobs nobody polls still settle.
func (s *Service) CheckStatuses(ctx context.Context) error {
	unfinished, err := s.store.UnfinishedJobs(ctx, 1000)
	if err != nil {
		return err
	}
	for i := range unfinished {
		if err := s.RefreshJobStatus(ctx, &unfinished[i]); err != nil {
			s.logger.Warn("refreshing job status", "job_id", unfinished[i].ID, "error", err)
		}
	}
	return nil
}
