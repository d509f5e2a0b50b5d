// internal/jobs/handlers.go
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	apperrors "git-commit-tracker/internal/errors"
	"git-commit-tracker/internal/metadata"
	"git-commit-tracker/internal/model"
	"git-commit-tracker/internal/syncer"
)

// Syncer runs the full commit sync pipeline for one repository.
type Syncer interface {
	Sync(ctx context.Context, repositoryID int64) (syncer.Outcome, error)
}

// Lookup resolves raw repository URLs via the metadata service.
type Lookup interface {
	Lookup(ctx context.Context, rawURL string) (*metadata.LookupResult, error)
}

// HandlerStore is what the task handlers need beyond the job Service.
type HandlerStore interface {
	Store
	HostByName(ctx context.Context, name string) (model.Host, error)
	FindOrCreateRepository(ctx context.Context, hostID int64, fullName string) (model.Repository, error)
}

// SyncHandler handles sync_commits tasks. When the pipeline reports a
// partial run it re-enqueues the remainder at normal priority so big
// repositories fill in over successive passes without starving the
// queue.
type SyncHandler struct {
	pipeline Syncer
	service  *Service
	logger   *slog.Logger
}

// NewSyncHandler creates a SyncHandler.
func NewSyncHandler(pipeline Syncer, service *Service, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{pipeline: pipeline, service: service, logger: logger}
}

// Handle runs one sync_commits task.
func (h *SyncHandler) Handle(ctx context.Context, task model.Task) error {
	repositoryID, err := payloadInt64(task.Payload, "repository_id")
	if err != nil {
		return err
	}
	outcome, err := h.pipeline.Sync(ctx, repositoryID)
	if err != nil {
		return err
	}
	if outcome.Partial {
		if _, err := h.service.EnqueueSync(ctx, repositoryID, false); err != nil {
			h.logger.Warn("scheduling follow-up sync", "repository_id", repositoryID, "error", err)
		}
	}
	return nil
}

// ParseHandler handles parse_commits tasks: resolve the job's raw URL
// to a host and repository, run the sync pipeline, and write the
// outcome onto the job record for the polling client.
type ParseHandler struct {
	store    HandlerStore
	lookup   Lookup
	pipeline Syncer
	logger   *slog.Logger
}

// NewParseHandler creates a ParseHandler.
func NewParseHandler(store HandlerStore, lookup Lookup, pipeline Syncer, logger *slog.Logger) *ParseHandler {
	return &ParseHandler{store: store, lookup: lookup, pipeline: pipeline, logger: logger}
}

// Handle runs one parse_commits task.
func (h *ParseHandler) Handle(ctx context.Context, task model.Task) error {
	jobID, err := payloadString(task.Payload, "job_id")
	if err != nil {
		return err
	}
	job, err := h.store.JobByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job %s no longer exists", jobID)
	}

	job.Status = model.JobWorking
	if err := h.store.SaveJob(ctx, job); err != nil {
		return err
	}

	results, err := h.run(ctx, job)
	if err != nil {
		job.Status = model.JobError
		job.Results = map[string]any{"error": err.Error()}
	} else {
		job.Status = model.JobComplete
		job.Results = results
	}
	if saveErr := h.store.SaveJob(ctx, job); saveErr != nil {
		return saveErr
	}
	return err
}

func (h *ParseHandler) run(ctx context.Context, job *model.Job) (map[string]any, error) {
	lookup, err := h.lookup.Lookup(ctx, job.URL)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", job.URL, err)
	}
	if strings.Count(lookup.FullName, "/") != 1 {
		return nil, &apperrors.ErrInvalidRepoFormat{Repo: lookup.FullName}
	}
	host, err := h.store.HostByName(ctx, lookup.Host.Name)
	if err != nil {
		return nil, fmt.Errorf("unknown host %s: %w", lookup.Host.Name, err)
	}
	repo, err := h.store.FindOrCreateRepository(ctx, host.ID, lookup.FullName)
	if err != nil {
		return nil, err
	}
	outcome, err := h.pipeline.Sync(ctx, repo.ID)
	if err != nil {
		return nil, err
	}
	status := outcome.Status
	if status == "" {
		status = "synced"
	}
	return map[string]any{
		"host":              host.Name,
		"full_name":         repo.FullName,
		"repository_id":     repo.ID,
		"status":            status,
		"commits_processed": outcome.Processed,
		"partial":           outcome.Partial,
	}, nil
}

// payloadInt64 reads a numeric payload field. JSONB round-trips
// numbers as float64, so both encodings are accepted.
func payloadInt64(payload map[string]any, key string) (int64, error) {
	switch v := payload[key].(type) {
	case float64:
		return int64(v), nil
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("payload missing %q", key)
	}
}

func payloadString(payload map[string]any, key string) (string, error) {
	s, ok := payload[key].(string)
	if !ok || s == "" {
		return "", fmt.Errorf("payload missing %q", key)
	}
	return s, nil
}
