// Package appsupervisor implements the Application Supervisor (spec
// §4.14): the process entry point that acquires a single-instance lock,
// runs preflight checks, wires and starts the Coordinator and the
// Monitors Supervisor together, recovers session and dev-server state
// from a live scan, and performs an orderly, bounded shutdown. Grounded
// on the
// teacher project's internal/boot.Boot, generalized from a per-tick
// watchdog spawn into a single long-lived process guard using the same
// gofrs/flock lock-file pattern, held for the process's entire run
// instead of just one triage.
package appsupervisor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/azedarach/azedarach/internal/config"
	"github.com/azedarach/azedarach/internal/coordinator"
	"github.com/azedarach/azedarach/internal/devserver"
	"github.com/azedarach/azedarach/internal/gitclient"
	"github.com/azedarach/azedarach/internal/issue"
	"github.com/azedarach/azedarach/internal/lifecycle"
	"github.com/azedarach/azedarach/internal/merge"
	"github.com/azedarach/azedarach/internal/model"
	"github.com/azedarach/azedarach/internal/mux"
	"github.com/azedarach/azedarach/internal/port"
	"github.com/azedarach/azedarach/internal/preflight"
)

// lockFileName is the Application Supervisor's single-instance marker,
// held for the entire process lifetime.
const lockFileName = ".azedarach.lock"

// issueDataDir is the issue tool's data directory, filtered out of
// merge-conflict sets per the Merge Protocol's contract.
const issueDataDir = ".beads"

// ErrAlreadyRunning is returned by Start when another instance already
// holds the project's lock.
type ErrAlreadyRunning struct {
	ProjectPath string
}

func (e *ErrAlreadyRunning) Error() string {
	return fmt.Sprintf("azedarach is already running against %s", e.ProjectPath)
}

// lazyRegistrar and lazyMonitorStarter break the construction cycle
// between lifecycle.Manager/devserver.Manager (which need a handle to
// the Coordinator) and coordinator.Coordinator (whose constructor needs
// the already-built Manager values). Both are filled in with the real
// Coordinator immediately after it's constructed, before Start ever lets
// any of these methods run.
type lazyRegistrar struct{ c *coordinator.Coordinator }

func (l *lazyRegistrar) RegisterSession(s model.Session) error { return l.c.RegisterSession(s) }
func (l *lazyRegistrar) StartSessionMonitor(taskID, target, worktreePath string) error {
	return l.c.StartSessionMonitor(taskID, target, worktreePath)
}

type lazyMonitorStarter struct{ c *coordinator.Coordinator }

func (l *lazyMonitorStarter) StartDevServerMonitor(key model.Key, session, windowName string, port int) error {
	return l.c.StartDevServerMonitor(key, session, windowName, port)
}
func (l *lazyMonitorStarter) StopDevServerMonitor(key model.Key) { l.c.StopDevServerMonitor(key) }

// Deps bundles the external clients the Application Supervisor wires
// into the Coordinator. Each path-bound client is already bound to
// ProjectPath by the caller (cmd/az's newSupervisor in wiring.go).
type Deps struct {
	ProjectGit *gitclient.Client // bound to the project root
	// GitForWorktree builds a *gitclient.Client bound to an arbitrary
	// worktree path. Kept as the concrete type (rather than lifecycle's
	// narrow WorktreeGit interface) since the Merge Protocol needs a
	// wider surface than Attach's ahead/behind check alone.
	GitForWorktree func(worktree string) *gitclient.Client
	Mux            *mux.Client
	Issues         *issue.Client
	PRCreator      lifecycle.PRCreator // nil if config.PR.Enabled is false
	AssistantCmd   string              // e.g. "claude --yolo"
}

// Supervisor owns the whole process's top-level lifecycle for one
// project: lock, preflight, Coordinator, and graceful shutdown.
type Supervisor struct {
	ProjectPath string
	Config      *config.Config
	Deps        Deps

	// InstanceID identifies this process for diagnostics; it has no
	// persisted meaning and is regenerated every run.
	InstanceID string

	Coordinator *coordinator.Coordinator
	DevServers  *devserver.Manager
	Ports       *port.Allocator

	// Log reports a skipped recovery scan at startup, the one failure
	// Start has no return value for; the core packages never log
	// themselves (they return typed errors), so this is the one place
	// stderr logging happens outside the CLI itself.
	Log *slog.Logger

	lock *flock.Flock
}

// New wires every component together but does not yet acquire the lock,
// run preflight, or start the Coordinator's loop — call Start for that.
func New(projectPath string, cfg *config.Config, deps Deps) *Supervisor {
	ports := port.New(cfg.PortRangeLow, cfg.PortRangeHigh)
	reg := &lazyRegistrar{}
	mon := &lazyMonitorStarter{}

	devServers := devserver.New(deps.Mux, ports, mon)
	worktreeGitFactory := func(worktree string) lifecycle.WorktreeGit { return deps.GitForWorktree(worktree) }
	lc := lifecycle.New(deps.ProjectGit, worktreeGitFactory, deps.Mux, deps.Issues, devServers, reg, deps.PRCreator, cfg, projectPath)

	mergeFor := func(taskID string, s model.Session) coordinator.MergeRunner {
		git := deps.GitForWorktree(s.WorktreePath)
		return merge.New(git, deps.Mux, s.MuxSessionName, cfg.Git.BaseBranch, issueDataDir, deps.AssistantCmd)
	}

	coord := coordinator.New(lc, devServers, deps.Issues, deps.Mux, mergeFor)
	reg.c = coord
	mon.c = coord

	return &Supervisor{
		ProjectPath: projectPath,
		Config:      cfg,
		Deps:        deps,
		InstanceID:  uuid.New().String()[:8],
		Coordinator: coord,
		DevServers:  devServers,
		Ports:       ports,
		Log:         slog.New(slog.NewTextHandler(os.Stderr, nil)),
	}
}

// Start acquires the single-instance lock, runs preflight checks (a
// StatusError result aborts startup; StatusWarning results do not stop
// it), launches the Coordinator's message loop, then recovers sessions
// and dev-server state from a live scan. All preflight results are
// returned to the caller, not logged. Returns once the Coordinator is
// running; the caller should defer Shutdown.
func (s *Supervisor) Start(ctx context.Context) ([]preflight.Result, error) {
	s.lock = flock.New(filepath.Join(s.ProjectPath, lockFileName))
	locked, err := s.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring lock: %w", err)
	}
	if !locked {
		return nil, &ErrAlreadyRunning{ProjectPath: s.ProjectPath}
	}

	checks := []preflight.Check{
		preflight.BinaryOnPath("tmux", "install tmux"),
		preflight.BinaryOnPath("git", "install git"),
		preflight.OptionalBinaryOnPath("bd", "install the beads issue tracker CLI"),
		preflight.IssueDataDirPresent(),
		preflight.GitRepoHealthy(s.Deps.ProjectGit),
	}
	// Results are returned to the caller (the CLI prints them); Start
	// only logs the failures it doesn't otherwise surface a return value
	// for, like a failed recovery scan below.
	results := preflight.Run(ctx, preflight.Context{ProjectPath: s.ProjectPath, IssueDataDir: issueDataDir}, checks)
	if preflight.Worst(results) == preflight.StatusError {
		_ = s.lock.Unlock()
		return results, fmt.Errorf("preflight checks failed")
	}

	// Run must already be draining the inbox before anything calls into
	// the Coordinator (RecoverSessions round-trips through it), so the
	// loop goroutine starts before the recovery scan below.
	pollMS := s.Config.Polling.BeadsRefreshMS
	go s.Coordinator.Run(ctx, time.Duration(pollMS)*time.Millisecond)

	if taskIDs, err := s.runningTaskIDs(ctx); err == nil {
		s.Coordinator.RecoverSessions(ctx, taskIDs)
		s.DevServers.RecoverFromScan(ctx, taskIDs, s.portFromEnvironment)
	} else {
		s.Log.Warn("skipping recovery scan", "error", err)
	}

	return results, nil
}

// runningTaskIDs lists every live tmux session name, unfiltered, used
// to seed RecoverSessions and RecoverFromScan after a restart.
func (s *Supervisor) runningTaskIDs(ctx context.Context) ([]string, error) {
	return s.Deps.Mux.ListSessions(ctx)
}

// portFromEnvironment is RecoverFromScan's port-discovery callback —
// left unimplemented pending a way to read a live tmux pane's
// environment (spec §9 Open Question (b) again: tmux has no
// "show-environment for this window" primitive, only per-session).
// Returning false here means recovered dev servers start with their
// port unknown (0) until an explicit dev-server restart through the
// Dev Server Manager allocates one.
func (s *Supervisor) portFromEnvironment(ctx context.Context, session, window string) (int, bool) {
	return 0, false
}

// Shutdown stops the Monitors Supervisor (via the Coordinator's own
// ctx cancellation, which the caller triggers) within timeout, then
// releases the single-instance lock. Call after cancelling the context
// passed to Start.
func (s *Supervisor) Shutdown(timeout time.Duration) error {
	// The Coordinator's Run goroutine already calls
	// s.Coordinator's internal supervisor.Shutdown on ctx.Done(); this
	// method just waits out a grace period before releasing the lock so
	// a fast-following restart doesn't race the still-exiting monitors.
	time.Sleep(minDuration(timeout, 2*time.Second))
	if s.lock != nil {
		return s.lock.Unlock()
	}
	return nil
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
