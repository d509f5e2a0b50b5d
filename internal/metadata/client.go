// internal/metadata/client.go
// Package metadata talks to the upstream repository-metadata service,
// which supplies canonical default-branch/description/size data and
// URL-to-repository lookups.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const maxRetries = 3

// ErrNotFound is returned when the upstream reports 404 for a
// repository; the caller marks the repository not_found.
var ErrNotFound = errors.New("metadata: repository not found")

// Repo is the upstream's view of a repository.
type Repo struct {
	Status          *string `json:"status"`
	DefaultBranch   string  `json:"default_branch"`
	Description     string  `json:"description"`
	StargazersCount int     `json:"stargazers_count"`
	Fork            bool    `json:"fork"`
	Archived        bool    `json:"archived"`
	IconURL         string  `json:"icon_url"`
	Size            int     `json:"size"`
}

// LookupResult identifies the host and full name behind a raw URL.
type LookupResult struct {
	Host struct {
		Name string `json:"name"`
	} `json:"host"`
	FullName string `json:"full_name"`
}

// Host is one entry of the upstream host catalog.
type Host struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Kind    string `json:"kind"`
	IconURL string `json:"icon_url"`
}

// Client is a retrying JSON client for the metadata service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client for the given base URL.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Repository fetches metadata for one repository. A 404 translates to
// ErrNotFound.
func (c *Client) Repository(ctx context.Context, hostName, fullName string) (*Repo, error) {
	path := fmt.Sprintf("/api/v1/hosts/%s/repositories/%s", url.PathEscape(hostName), url.PathEscape(fullName))
	var repo Repo
	if err := c.getJSON(ctx, path, &repo); err != nil {
		return nil, err
	}
	return &repo, nil
}

// Lookup resolves a raw repository URL to its host and full name.
func (c *Client) Lookup(ctx context.Context, rawURL string) (*LookupResult, error) {
	path := "/api/v1/repositories/lookup?url=" + url.QueryEscape(rawURL)
	var result LookupResult
	if err := c.getJSON(ctx, path, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Hosts fetches the upstream host catalog.
func (c *Client) Hosts(ctx context.Context) ([]Host, error) {
	var hosts []Host
	if err := c.getJSON(ctx, "/api/v1/hosts", &hosts); err != nil {
		return nil, err
	}
	return hosts, nil
}

// getJSON issues a GET with retries on 5xx and transport errors.
func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Debug("metadata request failed, retrying", "path", path, "attempt", attempt, "error", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			return ErrNotFound
		case resp.StatusCode >= 500:
			resp.Body.Close()
			lastErr = fmt.Errorf("metadata: %s returned %d", path, resp.StatusCode)
			continue
		case resp.StatusCode != http.StatusOK:
			resp.Body.Close()
			return fmt.Errorf("metadata: %s returned %d", path, resp.StatusCode)
		}

		err = json.NewDecoder(resp.Body).Decode(v)
		resp.Body.Close()
		return err
	}
	return lastErr
}
