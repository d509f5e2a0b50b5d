// internal/gitcli/gateway.go
// Package gitcli invokes the git binary for clone, ref/commit counting
// and formatted log extraction. All invocations build argument vectors
// explicitly and force subprocess output into valid UTF-8.
package gitcli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	apperrors "git-commit-tracker/internal/errors"
)

// logFormat emits NUL-delimited fields: sha, parents, author name/email,
// committer name/email, author timestamp (ISO-8601), full message.
const logFormat = "%H%x00%P%x00%an%x00%ae%x00%cn%x00%ce%x00%aI%x00%B"

// notFoundSignatures are stderr substrings that mean the repository is
// gone or private rather than the clone having failed transiently.
var notFoundSignatures = []string{
	"could not read Username",
	"Repository not found",
	"Authentication failed",
	"terminal prompts disabled",
}

// LogOptions select a window of the commit log.
type LogOptions struct {
	Skip   int
	Limit  int
	Cursor string // when set, only commits in <cursor>..HEAD
}

// Gateway wraps the git binary.
type Gateway struct {
	runner Runner
	logger *slog.Logger
}

// NewGateway creates a Gateway using the given Runner.
func NewGateway(runner Runner, logger *slog.Logger) *Gateway {
	return &Gateway{runner: runner, logger: logger}
}

// Clone performs a partial, single-branch clone of remoteURL into dir.
// Only commit metadata is needed, so blobs are filtered out. Clone
// failures are classified: a NotFound CloneError for deleted/private
// repositories, a plain CloneError otherwise, and a TimeoutError when
// the context deadline was exhausted.
func (g *Gateway) Clone(ctx context.Context, remoteURL, dir string) error {
	_, err := g.runner.Run(ctx, "", "git", "clone", "--filter=blob:none", "--single-branch", "--quiet", remoteURL, dir)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &apperrors.TimeoutError{Stage: "clone"}
	}
	msg := err.Error()
	for _, sig := range notFoundSignatures {
		if strings.Contains(msg, sig) {
			return &apperrors.CloneError{URL: remoteURL, NotFound: true, Output: msg}
		}
	}
	return &apperrors.CloneError{URL: remoteURL, Output: msg}
}

// HeadSHA returns the SHA of HEAD in a local clone.
func (g *Gateway) HeadSHA(ctx context.Context, dir string) (string, error) {
	out, err := g.runner.Run(ctx, dir, "git", "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("rev-parse HEAD: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// RemoteHeadSHA resolves the current SHA of a branch on the remote
// without cloning. An empty branch resolves HEAD.
func (g *Gateway) RemoteHeadSHA(ctx context.Context, remoteURL, branch string) (string, error) {
	args := []string{"ls-remote", remoteURL}
	if branch != "" {
		args = append(args, branch)
	} else {
		args = append(args, "HEAD")
	}
	out, err := g.runner.Run(ctx, "", "git", args...)
	if err != nil {
		return "", fmt.Errorf("ls-remote: %w", err)
	}
	line, _, _ := strings.Cut(strings.TrimSpace(out), "\n")
	sha, _, _ := strings.Cut(line, "\t")
	return strings.TrimSpace(sha), nil
}

// CommitCount returns the number of commits reachable from HEAD.
func (g *Gateway) CommitCount(ctx context.Context, dir string) (int, error) {
	out, err := g.runner.Run(ctx, dir, "git", "rev-list", "--count", "HEAD")
	if err != nil {
		return 0, fmt.Errorf("rev-list --count: %w", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0, fmt.Errorf("rev-list --count: unexpected output %q", out)
	}
	return n, nil
}

// RefCount returns the number of refs advertised by the remote. It is
// used as a cheap size guard before any clone is attempted.
func (g *Gateway) RefCount(ctx context.Context, remoteURL string) (int, error) {
	out, err := g.runner.Run(ctx, "", "git", "ls-remote", remoteURL)
	if err != nil {
		return 0, fmt.Errorf("ls-remote: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return 0, nil
	}
	return len(strings.Split(out, "\n")), nil
}

// Log extracts a window of the commit log in the NUL-delimited format
// understood by the gitlog parser, newest first, with per-commit
// numstat blocks.
func (g *Gateway) Log(ctx context.Context, dir string, opts LogOptions) (string, error) {
	args := []string{"log", "--format=" + logFormat, "--numstat", "-z"}
	if opts.Skip > 0 {
		args = append(args, "--skip="+strconv.Itoa(opts.Skip))
	}
	if opts.Limit > 0 {
		args = append(args, "-n", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		args = append(args, opts.Cursor+"..HEAD")
	} else {
		args = append(args, "HEAD")
	}
	out, err := g.runner.Run(ctx, dir, "git", args...)
	if err != nil {
		return "", fmt.Errorf("log: %w", err)
	}
	return out, nil
}
