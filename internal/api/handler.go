// internal/api/handler.go
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5"

	"git-commit-tracker/internal/model"
)

// Store is the read/write surface the API needs.
type Store interface {
	ListHosts(ctx context.Context) ([]model.Host, error)
	HostByName(ctx context.Context, name string) (model.Host, error)
	ListRepositories(ctx context.Context, hostID int64, limit, offset int) ([]model.Repository, error)
	FindOrCreateRepository(ctx context.Context, hostID int64, fullName string) (model.Repository, error)
	SetRepositoryStatus(ctx context.Context, id int64, status *string) error
	ListCommits(ctx context.Context, repositoryID int64, limit, offset int) ([]model.Commit, error)
	CountCommits(ctx context.Context, repositoryID int64) (int64, error)
}

// JobService creates and polls lookup jobs and schedules syncs.
type JobService interface {
	CreateJob(ctx context.Context, rawURL, ip string) (model.Job, error)
	Job(ctx context.Context, id string) (*model.Job, error)
	EnqueueSync(ctx context.Context, repositoryID int64, highPriority bool) (model.Task, error)
}

// Handler is the container for API dependencies.
type Handler struct {
	store  Store
	jobs   JobService
	logger *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(store Store, jobs JobService, logger *slog.Logger) http.Handler {
	h := &Handler{
		store:  store,
		jobs:   jobs,
		logger: logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", h.healthCheck)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/hosts", h.listHosts)
		r.Get("/hosts/{host}", h.showHost)
		r.Get("/hosts/{host}/repositories", h.listRepositories)
		r.Get("/hosts/{host}/repositories/{owner}/{name}", h.showRepository)
		r.Get("/hosts/{host}/repositories/{owner}/{name}/commits", h.listCommits)
		r.Post("/hosts/{host}/repositories/{owner}/{name}/sync", h.forceSync)
		r.Get("/repositories/lookup", h.lookup)
		r.Get("/jobs/{id}", h.showJob)
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// listHosts handles GET /api/v1/hosts.
func (h *Handler) listHosts(w http.ResponseWriter, r *http.Request) {
	hosts, err := h.store.ListHosts(r.Context())
	if err != nil {
		h.logger.Error("Failed to list hosts", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	views := make([]hostView, 0, len(hosts))
	for _, host := range hosts {
		views = append(views, newHostView(host))
	}
	respondWithJSON(w, http.StatusOK, views)
}

// showHost handles GET /api/v1/hosts/{host}.
func (h *Handler) showHost(w http.ResponseWriter, r *http.Request) {
	host, ok := h.findHost(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, newHostView(host))
}

// listRepositories handles GET /api/v1/hosts/{host}/repositories?page=&per_page=.
func (h *Handler) listRepositories(w http.ResponseWriter, r *http.Request) {
	host, ok := h.findHost(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r, 30, 100)
	repos, err := h.store.ListRepositories(r.Context(), host.ID, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list repositories", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	views := make([]repositoryView, 0, len(repos))
	for _, repo := range repos {
		views = append(views, newRepositoryView(repo))
	}
	respondWithJSON(w, http.StatusOK, views)
}

// showRepository handles GET /api/v1/hosts/{host}/repositories/{owner}/{name}.
// A repository that has never been synced reads as not-found, but the
// read itself schedules a high-priority sync so a later poll succeeds.
func (h *Handler) showRepository(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.findRepository(w, r)
	if !ok {
		return
	}
	if !repo.LastSyncedAt.Valid {
		if _, err := h.jobs.EnqueueSync(r.Context(), repo.ID, true); err != nil {
			h.logger.Error("Failed to enqueue sync", "full_name", repo.FullName, "error", err)
		}
		respondWithError(w, http.StatusNotFound, "Repository not yet synced")
		return
	}
	respondWithJSON(w, http.StatusOK, newRepositoryView(repo))
}

// listCommits handles GET .../repositories/{owner}/{name}/commits?page=&per_page=.
func (h *Handler) listCommits(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.findRepository(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r, 30, 100)
	commits, err := h.store.ListCommits(r.Context(), repo.ID, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list commits", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	total, err := h.store.CountCommits(r.Context(), repo.ID)
	if err != nil {
		h.logger.Error("Failed to count commits", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	views := make([]commitView, 0, len(commits))
	for _, c := range commits {
		views = append(views, newCommitView(c))
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"total_count": total,
		"commits":     views,
	})
}

// forceSync handles POST .../repositories/{owner}/{name}/sync. It is
// the one path back to active for a repository parked in not_found or
// too_large: the status is cleared and a high-priority sync enqueued.
func (h *Handler) forceSync(w http.ResponseWriter, r *http.Request) {
	repo, ok := h.findRepository(w, r)
	if !ok {
		return
	}
	if repo.Status != nil {
		if err := h.store.SetRepositoryStatus(r.Context(), repo.ID, nil); err != nil {
			h.logger.Error("Failed to clear repository status", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
	}
	if _, err := h.jobs.EnqueueSync(r.Context(), repo.ID, true); err != nil {
		h.logger.Error("Failed to enqueue sync", "full_name", repo.FullName, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// lookup handles GET /api/v1/repositories/lookup?url=... by creating a
// polling job that resolves and syncs the repository asynchronously.
func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		respondWithError(w, http.StatusBadRequest, "Missing 'url' parameter")
		return
	}
	job, err := h.jobs.CreateJob(r.Context(), rawURL, r.RemoteAddr)
	if err != nil {
		h.logger.Error("Failed to create job", "url", rawURL, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	w.Header().Set("Location", "/api/v1/jobs/"+job.ID)
	respondWithJSON(w, http.StatusAccepted, newJobView(job))
}

// showJob handles GET /api/v1/jobs/{id}, refreshing status from the
// backing task on every poll.
func (h *Handler) showJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Job(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.logger.Error("Failed to get job", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if job == nil {
		respondWithError(w, http.StatusNotFound, "Job not found")
		return
	}
	respondWithJSON(w, http.StatusOK, newJobView(*job))
}

func (h *Handler) findHost(w http.ResponseWriter, r *http.Request) (model.Host, bool) {
	host, err := h.store.HostByName(r.Context(), chi.URLParam(r, "host"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			respondWithError(w, http.StatusNotFound, "Host not found")
			return model.Host{}, false
		}
		h.logger.Error("Failed to get host", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return model.Host{}, false
	}
	return host, true
}

// findRepository resolves {host}/{owner}/{name} to a repository row,
// creating the row lazily so the sweep picks new repositories up. It
// writes the error response itself when resolution fails.
func (h *Handler) findRepository(w http.ResponseWriter, r *http.Request) (model.Repository, bool) {
	host, ok := h.findHost(w, r)
	if !ok {
		return model.Repository{}, false
	}
	fullName := chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "name")
	repo, err := h.store.FindOrCreateRepository(r.Context(), host.ID, fullName)
	if err != nil {
		h.logger.Error("Failed to get repository", "full_name", fullName, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return model.Repository{}, false
	}
	return repo, true
}
