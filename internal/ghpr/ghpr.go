// Package ghpr is a thin wrapper over the `gh` CLI for PR creation, used
// as the Lifecycle Manager's PRCreator by complete(taskId, "pr").
// Modelled on this repository's internal/gitclient runner.Interface
// subprocess wrapper, generalized from git to gh: shell out, capture
// stdout, wrap failures with the command and worktree for diagnostics.
package ghpr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/azedarach/azedarach/internal/runner"
)

// Timeout bounds a `gh pr create` call; PR creation round-trips to
// GitHub so it gets the same network-operation budget as gitclient's
// fetch/pull.
const Timeout = 30 * time.Second

// Client creates pull requests via the `gh` CLI, implementing
// lifecycle.PRCreator.
type Client struct {
	run runner.Interface
}

// New returns a Client.
func New(run runner.Interface) *Client {
	return &Client{run: run}
}

// Error wraps a failed gh invocation with enough context to diagnose it
// without a second run.
type Error struct {
	Worktree string
	Args     []string
	Stdout   string
	Stderr   string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("gh %s (in %s): %v: %s", strings.Join(e.Args, " "), e.Worktree, e.Err, e.Stderr)
}

func (e *Error) Unwrap() error { return e.Err }

// Create opens a pull request for branch from worktree, returning the
// PR's URL. draft maps to --draft; gh infers the base branch from the
// repository's default unless the caller has already checked out
// against a differing upstream.
func (c *Client) Create(ctx context.Context, worktree, branch, title, body string, draft bool) (string, error) {
	args := []string{"pr", "create", "--head", branch, "--title", title, "--body", body}
	if draft {
		args = append(args, "--draft")
	}
	res, err := c.run.Run(ctx, "gh", args, worktree, Timeout)
	if err != nil {
		return "", &Error{Worktree: worktree, Args: args, Stdout: res.Stdout, Stderr: res.Stderr, Err: err}
	}
	// `gh pr create` prints the PR URL as the last non-empty line of stdout.
	lines := strings.Split(strings.TrimSpace(res.Stdout), "\n")
	return strings.TrimSpace(lines[len(lines)-1]), nil
}
