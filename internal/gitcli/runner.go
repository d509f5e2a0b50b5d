// internal/gitcli/runner.go
package gitcli

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes an external command and returns its stdout. It exists
// so that the gateway can be tested without a git binary; the production
// implementation is execRunner.
type Runner interface {
	Run(ctx context.Context, dir string, name string, args ...string) (string, error)
}

// execRunner runs commands via os/exec. Arguments are always passed as a
// vector, never interpolated into a shell.
type execRunner struct{}

// NewRunner returns the os/exec backed Runner.
func NewRunner() Runner {
	return execRunner{}
}

func (execRunner) Run(ctx context.Context, dir string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	// Never let git fall back to an interactive credential prompt.
	cmd.Env = append(cmd.Environ(), "GIT_TERMINAL_PROMPT=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := forceUTF8(stdout.String())
	if err != nil {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		return out, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, forceUTF8(stderr.String()))
	}
	return out, nil
}

// forceUTF8 replaces invalid byte sequences rather than failing; git
// output is only as trustworthy as the commits it prints.
func forceUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}
