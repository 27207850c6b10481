// Package gitclient is a typed wrapper over the git CLI: worktree
// create/delete, branch ops, fetch, the merge probe, pull, status, and
// rev-list counting. Every operation shells out through runner.Interface,
// the way the teacher project's internal/git package shells out through
// os/exec directly — generalized here to go through the shared Command
// Runner seam instead, so tests can inject a runner.Fake.
package gitclient

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/azedarach/azedarach/internal/runner"
)

// DefaultTimeout is used for local, fast git operations (status, rev-list,
// worktree add/remove). Network operations (fetch/pull) use LongTimeout.
const DefaultTimeout = 5 * time.Second

// LongTimeout is used for operations that touch the network.
const LongTimeout = 30 * time.Second

// Client is a git client bound to a single worktree.
type Client struct {
	run     runner.Interface
	workdir string
}

// New returns a Client operating against workdir.
func New(run runner.Interface, workdir string) *Client {
	return &Client{run: run, workdir: workdir}
}

// WorkDir returns the worktree this client operates against.
func (c *Client) WorkDir() string {
	return c.workdir
}

func (c *Client) git(ctx context.Context, timeout time.Duration, args ...string) (string, error) {
	res, err := c.run.Run(ctx, "git", args, c.workdir, timeout)
	if err != nil {
		return "", &GitError{Op: args[0], Worktree: c.workdir, Args: args, Stdout: res.Stdout, Stderr: res.Stderr, Err: err}
	}
	return res.Stdout, nil
}

// CreateWorktree creates a new worktree at path on a new branch created
// from base. This is the compensable step of Lifecycle Manager step 2
// On failure the caller is expected to call DeleteWorktree to clean up.
func (c *Client) CreateWorktree(ctx context.Context, path, branch, base string) error {
	_, err := c.git(ctx, DefaultTimeout, "worktree", "add", "-b", branch, path, base)
	return err
}

// DeleteWorktree removes a worktree, forcing removal even with untracked
// files present — used both as a normal teardown step and as Lifecycle
// Manager compensation.
func (c *Client) DeleteWorktree(ctx context.Context, path string) error {
	_, err := c.git(ctx, DefaultTimeout, "worktree", "remove", "--force", path)
	return err
}

// CurrentBranch returns the checked-out branch name of workdir.
func (c *Client) CurrentBranch(ctx context.Context) (string, error) {
	return c.git(ctx, DefaultTimeout, "rev-parse", "--abbrev-ref", "HEAD")
}

// Fetch updates remote-tracking refs for remote.
func (c *Client) Fetch(ctx context.Context, remote string) error {
	_, err := c.git(ctx, LongTimeout, "fetch", remote)
	return err
}

// FetchRef fetches a single refspec from remote without updating any
// local branch, used by the Merge Protocol to pull the base branch's tip
// without disturbing the caller's checked-out branch.
func (c *Client) FetchRef(ctx context.Context, remote, refspec string) error {
	_, err := c.git(ctx, LongTimeout, "fetch", remote, refspec)
	return err
}

// Pull fast-forwards branch from remote.
func (c *Client) Pull(ctx context.Context, remote, branch string) error {
	_, err := c.git(ctx, LongTimeout, "pull", remote, branch)
	return err
}

// RevListCount returns the number of commits in range (e.g. "main..HEAD").
func (c *Client) RevListCount(ctx context.Context, rangeSpec string) (int, error) {
	out, err := c.git(ctx, DefaultTimeout, "rev-list", "--count", rangeSpec)
	if err != nil {
		return 0, err
	}
	n, convErr := strconv.Atoi(strings.TrimSpace(out))
	if convErr != nil {
		return 0, &GitError{Op: "rev-list", Worktree: c.workdir, Stdout: out, Err: convErr}
	}
	return n, nil
}

// AheadBehind returns (ahead, behind) of HEAD relative to base, i.e. the
// commit counts of base..HEAD and HEAD..base respectively.
func (c *Client) AheadBehind(ctx context.Context, base string) (ahead, behind int, err error) {
	ahead, err = c.RevListCount(ctx, base+"..HEAD")
	if err != nil {
		return 0, 0, err
	}
	behind, err = c.RevListCount(ctx, "HEAD.."+base)
	if err != nil {
		return 0, 0, err
	}
	return ahead, behind, nil
}

// Status returns `git status --porcelain` output for the worktree; an
// empty string means there are no uncommitted changes.
func (c *Client) Status(ctx context.Context) (string, error) {
	return c.git(ctx, DefaultTimeout, "status", "--porcelain")
}

// MergeCommit performs a real, on-disk merge of base into the current
// branch with --no-edit, used after the merge probe reports a clean
// merge.
func (c *Client) MergeCommit(ctx context.Context, base, message string) error {
	args := []string{"merge", "--no-edit", base}
	if message != "" {
		args = []string{"merge", "--no-edit", "-m", message, base}
	}
	_, err := c.git(ctx, DefaultTimeout, args...)
	return err
}

// StartConflictedMerge begins a real merge expected to conflict, leaving
// on-disk conflict markers for the assistant to resolve (this is step
// 4). It deliberately ignores the merge's own exit error — a non-zero
// exit with conflict markers present is the expected outcome here.
func (c *Client) StartConflictedMerge(ctx context.Context, base string) error {
	_, _ = c.git(ctx, DefaultTimeout, "merge", "--no-ff", "--no-edit", base)
	return nil
}

// ConflictingFiles lists files with unresolved merge conflicts, the way
// the teacher's GetConflictingFiles reads git's porcelain diff output
// instead of scraping stderr text.
func (c *Client) ConflictingFiles(ctx context.Context) ([]string, error) {
	out, err := c.git(ctx, DefaultTimeout, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	var files []string
	for _, f := range strings.Split(out, "\n") {
		if f != "" {
			files = append(files, f)
		}
	}
	return files, nil
}

// Worktree describes one entry from `git worktree list --porcelain`.
type Worktree struct {
	Path   string
	Branch string
	Commit string
}

// WorktreeList lists all worktrees known to the repository this client's
// workdir belongs to. Used by recovery-from-scan to
// reconcile live sessions against the filesystem.
func (c *Client) WorktreeList(ctx context.Context) ([]Worktree, error) {
	out, err := c.git(ctx, DefaultTimeout, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	var worktrees []Worktree
	var cur Worktree
	flush := func() {
		if cur.Path != "" {
			worktrees = append(worktrees, cur)
		}
		cur = Worktree{}
	}
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.HasPrefix(line, "worktree "):
			flush()
			cur.Path = strings.TrimPrefix(line, "worktree ")
		case strings.HasPrefix(line, "HEAD "):
			cur.Commit = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			cur.Branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
		}
	}
	flush()
	return worktrees, nil
}

// PushBranch pushes branch to remote, setting upstream tracking so the
// branch is no longer "ephemeral" for the issue tool's sync model
// (used by the session lifecycle manager's create step).
func (c *Client) PushBranch(ctx context.Context, remote, branch string) error {
	_, err := c.git(ctx, LongTimeout, "push", "--set-upstream", remote, branch)
	return err
}

// DeleteRemoteBranch deletes branch on remote, used as best-effort
// compensation for PushBranch.
func (c *Client) DeleteRemoteBranch(ctx context.Context, remote, branch string) error {
	_, err := c.git(ctx, LongTimeout, "push", remote, "--delete", branch)
	return err
}

// String helps error messages and logging identify a client instance.
func (c *Client) String() string {
	return fmt.Sprintf("gitclient(%s)", c.workdir)
}
