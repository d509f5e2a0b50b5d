// internal/api/handler_test.go
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git-commit-tracker/internal/model"
)

type fakeStore struct {
	hosts    map[string]model.Host
	repos    map[string]model.Repository // keyed by full name
	commits  []model.Commit
	statuses []*string
}

func (f *fakeStore) ListHosts(context.Context) ([]model.Host, error) {
	var hosts []model.Host
	for _, h := range f.hosts {
		hosts = append(hosts, h)
	}
	return hosts, nil
}

func (f *fakeStore) HostByName(_ context.Context, name string) (model.Host, error) {
	h, ok := f.hosts[name]
	if !ok {
		return model.Host{}, pgx.ErrNoRows
	}
	return h, nil
}

func (f *fakeStore) ListRepositories(context.Context, int64, int, int) ([]model.Repository, error) {
	var repos []model.Repository
	for _, r := range f.repos {
		repos = append(repos, r)
	}
	return repos, nil
}

func (f *fakeStore) FindOrCreateRepository(_ context.Context, hostID int64, fullName string) (model.Repository, error) {
	if r, ok := f.repos[fullName]; ok {
		return r, nil
	}
	r := model.Repository{ID: int64(len(f.repos) + 1), HostID: hostID, FullName: fullName}
	if f.repos == nil {
		f.repos = make(map[string]model.Repository)
	}
	f.repos[fullName] = r
	return r, nil
}

func (f *fakeStore) SetRepositoryStatus(_ context.Context, _ int64, status *string) error {
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeStore) ListCommits(context.Context, int64, int, int) ([]model.Commit, error) {
	return f.commits, nil
}

func (f *fakeStore) CountCommits(context.Context, int64) (int64, error) {
	return int64(len(f.commits)), nil
}

type fakeJobs struct {
	jobs     map[string]*model.Job
	enqueued []int64
	high     []bool
}

func (f *fakeJobs) CreateJob(_ context.Context, rawURL, ip string) (model.Job, error) {
	j := model.Job{ID: "job-1", URL: rawURL, IP: ip, Status: model.JobQueued}
	if f.jobs == nil {
		f.jobs = make(map[string]*model.Job)
	}
	f.jobs[j.ID] = &j
	return j, nil
}

func (f *fakeJobs) Job(_ context.Context, id string) (*model.Job, error) {
	return f.jobs[id], nil
}

func (f *fakeJobs) EnqueueSync(_ context.Context, repositoryID int64, highPriority bool) (model.Task, error) {
	f.enqueued = append(f.enqueued, repositoryID)
	f.high = append(f.high, highPriority)
	return model.Task{ID: 1}, nil
}

func syncedRepo() model.Repository {
	three := 3
	sha := "c3"
	return model.Repository{
		ID:               1,
		HostID:           1,
		FullName:         "o/r",
		Owner:            "o",
		DefaultBranch:    "main",
		TotalCommits:     &three,
		LastSyncedCommit: &sha,
		LastSyncedAt:     sql.NullTime{Time: time.Now(), Valid: true},
	}
}

func newTestServer(store *fakeStore, jobs *fakeJobs) *httptest.Server {
	return httptest.NewServer(NewRouter(store, jobs, slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	server := newTestServer(&fakeStore{}, &fakeJobs{})
	defer server.Close()

	var body map[string]string
	code := getJSON(t, server.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestListHosts(t *testing.T) {
	store := &fakeStore{hosts: map[string]model.Host{
		"GitHub": {ID: 1, Name: "GitHub", URL: "https://github.com", Kind: "github"},
	}}
	server := newTestServer(store, &fakeJobs{})
	defer server.Close()

	var hosts []map[string]any
	code := getJSON(t, server.URL+"/api/v1/hosts", &hosts)
	assert.Equal(t, http.StatusOK, code)
	require.Len(t, hosts, 1)
	assert.Equal(t, "GitHub", hosts[0]["name"])
}

func TestShowHost_NotFound(t *testing.T) {
	server := newTestServer(&fakeStore{}, &fakeJobs{})
	defer server.Close()

	code := getJSON(t, server.URL+"/api/v1/hosts/Nope", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestShowRepository_Synced(t *testing.T) {
	store := &fakeStore{
		hosts: map[string]model.Host{"GitHub": {ID: 1, Name: "GitHub"}},
		repos: map[string]model.Repository{"o/r": syncedRepo()},
	}
	jobs := &fakeJobs{}
	server := newTestServer(store, jobs)
	defer server.Close()

	var repo map[string]any
	code := getJSON(t, server.URL+"/api/v1/hosts/GitHub/repositories/o/r", &repo)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "o/r", repo["full_name"])
	assert.EqualValues(t, 3, repo["total_commits"])
	assert.Empty(t, jobs.enqueued)
}

func TestShowRepository_UnsyncedTriggersSync(t *testing.T) {
	store := &fakeStore{hosts: map[string]model.Host{"GitHub": {ID: 1, Name: "GitHub"}}}
	jobs := &fakeJobs{}
	server := newTestServer(store, jobs)
	defer server.Close()

	code := getJSON(t, server.URL+"/api/v1/hosts/GitHub/repositories/o/new", nil)
	assert.Equal(t, http.StatusNotFound, code)
	// The read itself lazily created the row and queued a sync.
	require.Len(t, jobs.enqueued, 1)
	assert.True(t, jobs.high[0])
	assert.Contains(t, store.repos, "o/new")
}

func TestListCommits(t *testing.T) {
	co := "helper@example.com"
	store := &fakeStore{
		hosts: map[string]model.Host{"GitHub": {ID: 1, Name: "GitHub"}},
		repos: map[string]model.Repository{"o/r": syncedRepo()},
		commits: []model.Commit{
			{SHA: "c2", Author: "Alice <a@example.com>", CoAuthorEmail: &co},
			{SHA: "c1", Author: "Bob <b@example.com>"},
		},
	}
	server := newTestServer(store, &fakeJobs{})
	defer server.Close()

	var body struct {
		TotalCount int64 `json:"total_count"`
		Commits    []map[string]any
	}
	code := getJSON(t, server.URL+"/api/v1/hosts/GitHub/repositories/o/r/commits", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 2, body.TotalCount)
	require.Len(t, body.Commits, 2)
	assert.Equal(t, "c2", body.Commits[0]["sha"])
	assert.Equal(t, "helper@example.com", body.Commits[0]["co_author_email"])
}

func TestForceSync_ClearsStatus(t *testing.T) {
	status := model.StatusTooLarge
	repo := syncedRepo()
	repo.Status = &status
	store := &fakeStore{
		hosts: map[string]model.Host{"GitHub": {ID: 1, Name: "GitHub"}},
		repos: map[string]model.Repository{"o/r": repo},
	}
	jobs := &fakeJobs{}
	server := newTestServer(store, jobs)
	defer server.Close()

	resp, err := http.Post(server.URL+"/api/v1/hosts/GitHub/repositories/o/r/sync", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Len(t, store.statuses, 1)
	assert.Nil(t, store.statuses[0], "forced re-sync clears the parked status")
	require.Len(t, jobs.enqueued, 1)
	assert.True(t, jobs.high[0])
}

func TestLookup_CreatesJob(t *testing.T) {
	jobs := &fakeJobs{}
	server := newTestServer(&fakeStore{}, jobs)
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/repositories/lookup?url=https://github.com/o/r")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "/api/v1/jobs/job-1", resp.Header.Get("Location"))

	var job map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&job))
	assert.Equal(t, "job-1", job["id"])
	assert.Equal(t, model.JobQueued, job["status"])
}

func TestLookup_MissingURL(t *testing.T) {
	server := newTestServer(&fakeStore{}, &fakeJobs{})
	defer server.Close()

	code := getJSON(t, server.URL+"/api/v1/repositories/lookup", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestShowJob(t *testing.T) {
	jobs := &fakeJobs{jobs: map[string]*model.Job{
		"job-1": {ID: "job-1", Status: model.JobComplete, Results: map[string]any{"status": "synced"}},
	}}
	server := newTestServer(&fakeStore{}, jobs)
	defer server.Close()

	var job map[string]any
	code := getJSON(t, server.URL+"/api/v1/jobs/job-1", &job)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, model.JobComplete, job["status"])

	code = getJSON(t, server.URL+"/api/v1/jobs/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPagination(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?page=3&per_page=10", nil)
	limit, offset := pagination(r, 30, 100)
	assert.Equal(t, 10, limit)
	assert.Equal(t, 20, offset)

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	limit, offset = pagination(r, 30, 100)
	assert.Equal(t, 30, limit)
	assert.Zero(t, offset)

	r = httptest.NewRequest(http.MethodGet, "/?per_page=5000", nil)
	limit, _ = pagination(r, 30, 100)
	assert.Equal(t, 100, limit)
}
