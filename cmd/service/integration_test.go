//go:build integration

// cmd/service/integration_test.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"git-commit-tracker/internal/gitcli"
	"git-commit-tracker/internal/identity"
	"git-commit-tracker/internal/ingest"
	"git-commit-tracker/internal/metadata"
	"git-commit-tracker/internal/model"
	"git-commit-tracker/internal/store"
	"git-commit-tracker/internal/syncer"
)

func setupTestDatabase(ctx context.Context, t *testing.T) (*pgxpool.Pool, func()) {
	// Start a postgres container
	pgContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("test-db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second),
		),
	)
	require.NoError(t, err)

	// Get the connection string
	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Run migrations
	m, err := migrate.New("file://../../migrations", connStr)
	require.NoError(t, err)
	err = m.Up()
	require.NoError(t, err)

	// Create a connection pool
	dbpool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	// Teardown function to be called by the test
	teardown := func() {
		dbpool.Close()
		err := pgContainer.Terminate(ctx)
		require.NoError(t, err)
	}

	return dbpool, teardown
}

// stubGit answers the gateway's git invocations from canned output, so
// the pipeline runs without a git binary or network.
type stubGit struct {
	head string
	log  string
}

func (s stubGit) Run(_ context.Context, _ string, _ string, args ...string) (string, error) {
	switch args[0] {
	case "clone":
		return "", nil
	case "ls-remote":
		return s.head + "\trefs/heads/main\n", nil
	case "rev-parse":
		return s.head + "\n", nil
	case "rev-list":
		return "3\n", nil
	case "log":
		return s.log, nil
	}
	return "", fmt.Errorf("unexpected git invocation: %v", args)
}

// threeCommitLog builds the NUL-delimited log for a repository with
// three commits, the newest carrying a co-author trailer. Two commits
// are recent, one is years old.
func threeCommitLog(now time.Time) string {
	recent := now.AddDate(0, -2, 0).Format(time.RFC3339)
	older := now.AddDate(0, -3, 0).Format(time.RFC3339)
	ancient := now.AddDate(-4, 0, 0).Format(time.RFC3339)
	return strings.Join([]string{
		"c3", "c2", "Alice", "alice@example.com", "Alice", "alice@example.com", recent,
		"Add feature\n\nCo-authored-by: Helper <helper@example.com>",
		"3\t1\tmain.go",
		"c2", "c1", "Bob", "bob@example.com", "Bob", "bob@example.com", older,
		"Fix bug",
		"1\t1\tmain.go",
		"c1", "", "Alice", "alice@example.com", "Alice", "alice@example.com", ancient,
		"Initial commit",
		"5\t0\tmain.go",
	}, "\x00")
}

func TestPipeline_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	dbpool, teardown := setupTestDatabase(ctx, t)
	defer teardown()

	// Mock metadata service: every repository exists and is small.
	metaServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/repositories/") {
			w.Write([]byte(`{"default_branch": "main", "description": "a test repo", "size": 100}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer metaServer.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	db := store.New(dbpool)

	host, err := db.UpsertHost(ctx, model.Host{Name: "GitHub", URL: "https://github.com", Kind: "github"})
	require.NoError(t, err)
	repo, err := db.FindOrCreateRepository(ctx, host.ID, "test-owner/test-repo")
	require.NoError(t, err)

	git := gitcli.NewGateway(stubGit{head: "c3", log: threeCommitLog(time.Now())}, logger)
	meta := metadata.NewClient(metaServer.URL, logger)
	// No credentials: identity resolution stays offline.
	resolver := identity.NewResolver(db, identity.NewMemoryPool(), identity.NewMemoryNegativeCache(), logger)
	engine := ingest.NewEngine(git, db, logger, 5*time.Minute)
	pipeline := syncer.NewPipeline(db, git, meta, resolver, engine, logger, time.Minute)

	// --- ACT ---
	outcome, err := pipeline.Sync(ctx, repo.ID)
	require.NoError(t, err)
	assert.Empty(t, outcome.Status)
	assert.False(t, outcome.Partial)
	assert.Equal(t, int64(3), outcome.Processed)

	// --- ASSERT ---
	synced, err := db.RepositoryByID(ctx, repo.ID)
	require.NoError(t, err)
	require.NotNil(t, synced.TotalCommits)
	assert.Equal(t, 3, *synced.TotalCommits)
	require.NotNil(t, synced.LastSyncedCommit)
	assert.Equal(t, "c3", *synced.LastSyncedCommit)
	assert.True(t, synced.LastSyncedAt.Valid)
	require.NotNil(t, synced.DDS)
	// Alice has 2 of 3 commits.
	assert.InDelta(t, 1.0-2.0/3.0, *synced.DDS, 0.0001)
	assert.NotNil(t, synced.PastYearCommitters)

	count, err := db.CountCommits(ctx, repo.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	commits, err := db.ListCommits(ctx, repo.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, commits, 3)
	withCoAuthor := 0
	for _, c := range commits {
		if c.CoAuthorEmail != nil {
			withCoAuthor++
			assert.Equal(t, "helper@example.com", *c.CoAuthorEmail)
		}
	}
	assert.Equal(t, 1, withCoAuthor)

	// A second run sees an unchanged head with populated aggregates and
	// only refreshes the sync timestamp; the ledger stays identical.
	_, err = pipeline.Sync(ctx, repo.ID)
	require.NoError(t, err)
	count, err = db.CountCommits(ctx, repo.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}
