// internal/identity/resolver.go
// Package identity maps raw commit author emails to stable logins using
// the local cache, the persistent committer registry and, as a last
// resort, the host's commit-authorship API.
package identity

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	"git-commit-tracker/internal/model"
)

// githubHostName is the only host that exposes a commit-authorship API.
// Other hosts resolve to no login.
// TODO: resolve logins for GitLab-kind hosts via their commits API.
const githubHostName = "GitHub"

const noreplySuffix = "@users.noreply.github.com"

// Registry is the persistent committer store the resolver reads and
// upserts.
type Registry interface {
	CommitterByEmail(ctx context.Context, hostID int64, email string) (*model.Committer, error)
	UpsertCommitterLogin(ctx context.Context, hostID int64, login, email string) (model.Committer, error)
}

// Resolver resolves author emails to logins.
type Resolver struct {
	registry Registry
	pool     CredentialPool
	cache    NegativeCache
	logger   *slog.Logger

	// apiBaseURL overrides api.github.com; tests point it at httptest.
	apiBaseURL string
}

// NewResolver creates a Resolver. pool and cache are the canonical
// shared instances for the process.
func NewResolver(registry Registry, pool CredentialPool, cache NegativeCache, logger *slog.Logger) *Resolver {
	return &Resolver{
		registry: registry,
		pool:     pool,
		cache:    cache,
		logger:   logger,
	}
}

// WithAPIBaseURL points the host API at a different base URL.
func (r *Resolver) WithAPIBaseURL(url string) *Resolver {
	r.apiBaseURL = url
	return r
}

// ResolveCached resolves an email from local knowledge only: the
// noreply convention, then the committer registry. No network calls.
func (r *Resolver) ResolveCached(ctx context.Context, host model.Host, email string) (string, error) {
	if host.Name != githubHostName {
		return "", nil
	}
	if r.cache.Contains(email) {
		return "", nil
	}
	if login, ok := noreplyLogin(email); ok {
		return login, nil
	}
	committer, err := r.registry.CommitterByEmail(ctx, host.ID, email)
	if err != nil {
		return "", err
	}
	if committer != nil && committer.Login != nil {
		return *committer.Login, nil
	}
	return "", nil
}

// Resolve resolves an email, falling back to the host API. A successful
// API resolution upserts the committer registry; an email with no
// matching commit is recorded in the negative cache.
func (r *Resolver) Resolve(ctx context.Context, host model.Host, repoFullName, email string) (string, error) {
	login, err := r.ResolveCached(ctx, host, email)
	if err != nil || login != "" {
		return login, err
	}
	if host.Name != githubHostName || r.cache.Contains(email) {
		return "", nil
	}

	token, ok := r.pool.Random()
	if !ok {
		return "", nil
	}

	owner, name, found := strings.Cut(repoFullName, "/")
	if !found {
		return "", nil
	}

	client, err := r.apiClient(ctx, token)
	if err != nil {
		return "", err
	}
	commits, _, err := client.Repositories.ListCommits(ctx, owner, name, &github.CommitsListOptions{
		Author:      email,
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		if isAuthError(err) {
			r.logger.Warn("evicting credential after authorization failure")
			r.pool.Evict(token)
		}
		return "", err
	}

	if len(commits) == 0 || commits[0].GetAuthor().GetLogin() == "" {
		r.cache.Add(email)
		return "", nil
	}
	login = commits[0].GetAuthor().GetLogin()

	if _, err := r.registry.UpsertCommitterLogin(ctx, host.ID, login, email); err != nil {
		return "", err
	}
	return login, nil
}

func (r *Resolver) apiClient(ctx context.Context, token string) (*github.Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)
	client := github.NewClient(tc)
	if r.apiBaseURL != "" {
		return client.WithEnterpriseURLs(r.apiBaseURL, r.apiBaseURL)
	}
	return client, nil
}

// noreplyLogin derives the login directly from GitHub's noreply commit
// email convention ("12345+login@users.noreply.github.com").
func noreplyLogin(email string) (string, bool) {
	if !strings.Contains(email, noreplySuffix) {
		return "", false
	}
	local := strings.ReplaceAll(email, noreplySuffix, "")
	parts := strings.Split(local, "+")
	return parts[len(parts)-1], true
}

// isAuthError reports whether the host rejected the credential itself
// rather than the request.
func isAuthError(err error) bool {
	var ghErr *github.ErrorResponse
	if !errors.As(err, &ghErr) || ghErr.Response == nil {
		return false
	}
	if ghErr.Response.StatusCode == http.StatusUnauthorized {
		return true
	}
	return ghErr.Response.StatusCode == http.StatusForbidden &&
		strings.Contains(strings.ToLower(ghErr.Message), "suspended")
}
