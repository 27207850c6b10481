// Package preflight implements the Application Supervisor's doctor-style
// startup checks (SPEC_FULL.md's "preflight checks" supplement):
// required binaries on PATH, the issue tool's data directory, and the
// project's git repository state. Grounded on the teacher project's
// doctor package (BaseCheck/FixableCheck/CheckResult), generalized from
// its many town/rig-specific checks into the small fixed set this
// workstation needs before it will hand control to the Coordinator.
package preflight

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/azedarach/azedarach/internal/gitclient"
)

// Status enumerates a check's outcome.
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

// Result is one check's outcome.
type Result struct {
	Name    string
	Status  Status
	Message string
	FixHint string
}

// Context carries the parameters checks need.
type Context struct {
	ProjectPath  string
	IssueDataDir string // e.g. ".beads", relative to ProjectPath
}

// Check is one preflight check.
type Check interface {
	Name() string
	Run(ctx context.Context, c Context) Result
}

// binaryCheck verifies an external tool is reachable on PATH, at the
// given severity if it isn't.
type binaryCheck struct {
	bin      string
	fixHint  string
	severity Status
}

// BinaryOnPath returns a Check that fails startup (StatusError) if bin
// is not on PATH — for tools every operation depends on (tmux, git).
func BinaryOnPath(bin, fixHint string) Check {
	return &binaryCheck{bin: bin, fixHint: fixHint, severity: StatusError}
}

// OptionalBinaryOnPath returns a Check that only warns (StatusWarning)
// if bin is missing — for tools only some operations need (the issue
// tracker CLI), so a workstation without it can still attach/pause/
// complete existing sessions.
func OptionalBinaryOnPath(bin, fixHint string) Check {
	return &binaryCheck{bin: bin, fixHint: fixHint, severity: StatusWarning}
}

func (b *binaryCheck) Name() string { return "binary:" + b.bin }

func (b *binaryCheck) Run(ctx context.Context, c Context) Result {
	if _, err := exec.LookPath(b.bin); err != nil {
		return Result{
			Name:    b.Name(),
			Status:  b.severity,
			Message: fmt.Sprintf("%q not found on PATH", b.bin),
			FixHint: b.fixHint,
		}
	}
	return Result{Name: b.Name(), Status: StatusOK, Message: b.bin + " found"}
}

// issueDataDirCheck verifies the issue tool's data directory exists.
type issueDataDirCheck struct{}

// IssueDataDirPresent returns a Check verifying Context.IssueDataDir
// exists under Context.ProjectPath.
func IssueDataDirPresent() Check { return &issueDataDirCheck{} }

func (issueDataDirCheck) Name() string { return "issue-data-dir" }

func (issueDataDirCheck) Run(_ context.Context, c Context) Result {
	dir := filepath.Join(c.ProjectPath, c.IssueDataDir)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return Result{
			Name:    "issue-data-dir",
			Status:  StatusWarning,
			Message: fmt.Sprintf("%s not found; issue tracking will fail until initialized", dir),
			FixHint: "run `bd init` inside the project",
		}
	}
	return Result{Name: "issue-data-dir", Status: StatusOK, Message: dir + " present"}
}

// gitRepoCheck verifies the project path is inside a working git repository.
type gitRepoCheck struct {
	git *gitclient.Client
}

// GitRepoHealthy returns a Check verifying the project is a usable git
// worktree by running a cheap status call.
func GitRepoHealthy(git *gitclient.Client) Check { return &gitRepoCheck{git: git} }

func (gitRepoCheck) Name() string { return "git-repo" }

func (c *gitRepoCheck) Run(ctx context.Context, _ Context) Result {
	if _, err := c.git.Status(ctx); err != nil {
		return Result{
			Name:    "git-repo",
			Status:  StatusError,
			Message: fmt.Sprintf("git status failed: %v", err),
			FixHint: "verify the project path is a git working tree",
		}
	}
	return Result{Name: "git-repo", Status: StatusOK, Message: "git repository healthy"}
}

// Run executes every check in order, stopping at none of them — callers
// inspect the Results slice for the worst Status.
func Run(ctx context.Context, c Context, checks []Check) []Result {
	results := make([]Result, 0, len(checks))
	for _, chk := range checks {
		results = append(results, chk.Run(ctx, c))
	}
	return results
}

// Worst returns the most severe status across results, per the ordering
// error > warning > ok.
func Worst(results []Result) Status {
	worst := StatusOK
	for _, r := range results {
		switch r.Status {
		case StatusError:
			return StatusError
		case StatusWarning:
			worst = StatusWarning
		}
	}
	return worst
}
