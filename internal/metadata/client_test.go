// internal/metadata/client_test.go
package metadata

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	return NewClient(url, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRepository(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/hosts/GitHub/repositories/o%2Fr", r.URL.EscapedPath())
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(`{"default_branch": "main", "description": "test", "stargazers_count": 7, "size": 1234}`))
	}))
	defer server.Close()

	repo, err := newTestClient(server.URL).Repository(context.Background(), "GitHub", "o/r")
	require.NoError(t, err)
	assert.Equal(t, "main", repo.DefaultBranch)
	assert.Equal(t, 7, repo.StargazersCount)
	assert.Equal(t, 1234, repo.Size)
}

func TestRepository_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Repository(context.Background(), "GitHub", "gone/gone")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_RetriesServerErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"default_branch": "main"}`))
	}))
	defer server.Close()

	repo, err := newTestClient(server.URL).Repository(context.Background(), "GitHub", "o/r")
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "main", repo.DefaultBranch)
}

func TestRepository_ClientErrorDoesNotRetry(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Repository(context.Background(), "GitHub", "o/r")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, calls)
}

func TestLookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/repositories/lookup", r.URL.Path)
		assert.Equal(t, "https://github.com/o/r", r.URL.Query().Get("url"))
		w.Write([]byte(`{"host": {"name": "GitHub"}, "full_name": "o/r"}`))
	}))
	defer server.Close()

	result, err := newTestClient(server.URL).Lookup(context.Background(), "https://github.com/o/r")
	require.NoError(t, err)
	assert.Equal(t, "GitHub", result.Host.Name)
	assert.Equal(t, "o/r", result.FullName)
}

func TestHosts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/hosts", r.URL.Path)
		w.Write([]byte(`[{"name": "GitHub", "url": "https://github.com", "kind": "github"}]`))
	}))
	defer server.Close()

	hosts, err := newTestClient(server.URL).Hosts(context.Background())
	require.NoError(t, err)
	require.Len(t, hosts, 1)
	assert.Equal(t, "GitHub", hosts[0].Name)
	assert.Equal(t, "github", hosts[0].Kind)
}
