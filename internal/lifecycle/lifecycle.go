// Package lifecycle implements the Session Lifecycle Manager: the
// create/start/attach/pause/complete/delete session workflow across the
// three independent external subsystems (git worktrees, multiplexer
// sessions, dev servers), with compensating cleanup on partial failure.
// Grounded on the teacher project's polecat.Manager.Add/Remove —
// generalized from a single git-worktree-plus-state-file lifecycle into
// the full worktree+mux-session+monitor workflow spec.md §4.10 asks for,
// with per-step compensation run in reverse on failure the way
// Add already cleans up its worktree when saveState fails.
package lifecycle

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/azedarach/azedarach/internal/config"
	"github.com/azedarach/azedarach/internal/detector"
	"github.com/azedarach/azedarach/internal/errs"
	"github.com/azedarach/azedarach/internal/issue"
	"github.com/azedarach/azedarach/internal/model"
	"github.com/azedarach/azedarach/internal/mux"
)

// GitClient is the subset of gitclient.Client the lifecycle manager
// needs for worktree/branch management, bound to the project root (all
// worktrees share one object database, so these run fine from any of
// them). Scoped narrowly so tests can inject a fake.
type GitClient interface {
	CreateWorktree(ctx context.Context, path, branch, base string) error
	DeleteWorktree(ctx context.Context, path string) error
	PushBranch(ctx context.Context, remote, branch string) error
	DeleteRemoteBranch(ctx context.Context, remote, branch string) error
}

// WorktreeGit is the narrow surface needed against a *specific*
// session's worktree (as opposed to GitClient's project-root
// operations) — currently just the ahead/behind check Attach needs.
type WorktreeGit interface {
	AheadBehind(ctx context.Context, base string) (ahead, behind int, err error)
}

// WorktreeGitFactory builds a WorktreeGit bound to an arbitrary
// worktree path. gitclient.New(runner, workdir) satisfies this once
// partially applied.
type WorktreeGitFactory func(worktree string) WorktreeGit

// MuxClient is the subset of mux.Client the lifecycle manager needs.
type MuxClient interface {
	NewSession(ctx context.Context, name, workdir string) error
	HasSession(ctx context.Context, name string) (bool, error)
	KillSession(ctx context.Context, name string) error
	SendKeys(ctx context.Context, target, keystring string, submitEnter bool) error
	CapturePane(ctx context.Context, target string, lastN int) (string, error)
	NewWindow(ctx context.Context, session, windowName, command string) error
	SetEnvironment(ctx context.Context, session, key, value string) error
	AttachSession(ctx context.Context, name string) error
}

// IssueClient is the subset of issue.Client the lifecycle manager needs.
type IssueClient interface {
	Show(ctx context.Context, id string) (issue.Task, error)
	Close(ctx context.Context, id, reason string) error
}

// DevServers is the subset of the Dev Server Manager the lifecycle
// manager drives during teardown.
type DevServers interface {
	StopAll(ctx context.Context, taskID string) []error
}

// Registrar is the Coordinator's narrow surface the lifecycle manager
// calls at the end of create-and-start (spec §4.10 step 8): register
// the new Session and request its monitor be started. Kept as an
// interface so lifecycle never imports coordinator.
type Registrar interface {
	RegisterSession(s model.Session) error
	StartSessionMonitor(taskID, target, worktreePath string) error
}

// PRCreator is the thin `gh` wrapper used by complete(taskId, "pr").
type PRCreator interface {
	Create(ctx context.Context, worktree, branch, title, body string, draft bool) (string, error)
}

// Options parameterizes CreateAndStart.
type Options struct {
	TaskID        string
	Title         string
	InitialPrompt string
	AssistantCmd  string // e.g. "claude --yolo"; opaque per spec.md §9 Open Question (a)
}

// Manager implements the session lifecycle workflows.
type Manager struct {
	Git         GitClient
	GitFactory  WorktreeGitFactory
	Mux         MuxClient
	Issues      IssueClient
	DevServers  DevServers
	Registrar   Registrar
	PR          PRCreator
	Config      *config.Config
	ProjectPath string
	ProjectName string
}

// New returns a lifecycle Manager.
func New(git GitClient, gitFactory WorktreeGitFactory, m MuxClient, issues IssueClient, devServers DevServers, reg Registrar, pr PRCreator, cfg *config.Config, projectPath string) *Manager {
	return &Manager{
		Git:         git,
		GitFactory:  gitFactory,
		Mux:         m,
		Issues:      issues,
		DevServers:  devServers,
		Registrar:   reg,
		PR:          pr,
		Config:      cfg,
		ProjectPath: projectPath,
		ProjectName: filepath.Base(projectPath),
	}
}

// BranchName computes the branch name for a task id, per
// "{branchPrefix}{taskId}".
func (m *Manager) BranchName(taskID string) string {
	return m.Config.Git.BranchPrefix + taskID
}

// WorktreePath computes the worktree path for a task id by substituting
// {project} and {bead-id} into the configured template.
func (m *Manager) WorktreePath(taskID string) string {
	tmpl := m.Config.Worktree.PathTemplate
	rel := strings.NewReplacer("{project}", m.ProjectName, "{bead-id}", taskID).Replace(tmpl)
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Clean(filepath.Join(m.ProjectPath, rel))
}

// BranchBehind is returned by Attach when the branch is behind base and
// must go through the Merge Protocol before attaching.
type BranchBehind struct {
	N int
}

func (e *BranchBehind) Error() string {
	return fmt.Sprintf("branch is %d commit(s) behind base", e.N)
}

// CreateAndStart runs the full create-and-start workflow (spec §4.10),
// compensating in reverse on any step's failure.
func (m *Manager) CreateAndStart(ctx context.Context, opts Options) (model.Session, error) {
	taskID := opts.TaskID

	if _, err := m.Issues.Show(ctx, taskID); err != nil {
		return model.Session{}, fmt.Errorf("create-and-start %s: task lookup: %w", taskID, err)
	}

	branch := m.BranchName(taskID)
	worktreePath := m.WorktreePath(taskID)

	var compensations []func()
	compensate := func() {
		for i := len(compensations) - 1; i >= 0; i-- {
			compensations[i]()
		}
	}

	// Step 2: create worktree.
	if err := m.Git.CreateWorktree(ctx, worktreePath, branch, m.Config.Git.BaseBranch); err != nil {
		return model.Session{}, fmt.Errorf("create-and-start %s: worktree: %w", taskID, err)
	}
	compensations = append(compensations, func() {
		_ = m.Git.DeleteWorktree(context.Background(), worktreePath)
	})

	// Step 3: push branch, making it non-ephemeral (spec §9 "Ephemeral
	// branches" design note).
	if m.Config.Git.PushBranchOnCreate && m.Config.Git.PushEnabled {
		if err := m.Git.PushBranch(ctx, m.Config.Git.Remote, branch); err != nil {
			compensate()
			return model.Session{}, fmt.Errorf("create-and-start %s: push branch: %w", taskID, err)
		}
		compensations = append(compensations, func() {
			_ = m.Git.DeleteRemoteBranch(context.Background(), m.Config.Git.Remote, branch)
		})
	}

	// Step 4: create the multiplexer session.
	if err := m.Mux.NewSession(ctx, taskID, worktreePath); err != nil {
		compensate()
		return model.Session{}, fmt.Errorf("create-and-start %s: tmux session: %w", taskID, err)
	}
	compensations = append(compensations, func() {
		_ = m.Mux.KillSession(context.Background(), taskID)
	})

	// Step 5: run init commands sequentially, gated with a sentinel
	// poll, then set the completion marker.
	if err := m.runInitCommands(ctx, taskID); err != nil {
		if !m.Config.Worktree.ContinueOnFailure {
			compensate()
			return model.Session{}, fmt.Errorf("create-and-start %s: init commands: %w", taskID, err)
		}
	}
	_ = m.Mux.SetEnvironment(ctx, taskID, "INIT_DONE", "1")

	// Step 6: launch the assistant.
	assistantCmd := opts.AssistantCmd
	keys := assistantCmd
	if opts.InitialPrompt != "" {
		keys = assistantCmd + " " + mux.ShellQuote(opts.InitialPrompt)
	}
	if err := m.Mux.SendKeys(ctx, taskID+":main", keys, true); err != nil {
		compensate()
		return model.Session{}, fmt.Errorf("create-and-start %s: launch assistant: %w", taskID, err)
	}

	// Step 7: background tasks, each in its own window, gated on the
	// init marker via a shell guard rather than a second round trip.
	for _, bg := range m.Config.Session.BackgroundTasks {
		cmd := fmt.Sprintf("while [ -z \"$INIT_DONE\" ]; do sleep 0.2; done; %s", bg.Command)
		_ = m.Mux.NewWindow(ctx, taskID, bg.Name, cmd)
	}

	session := model.Session{
		TaskID:         taskID,
		WorktreePath:   worktreePath,
		MuxSessionName: taskID,
		Branch:         branch,
		State:          detector.StateBusy,
		StartedAt:      time.Now(),
	}

	// Step 8: register with the Coordinator and request a monitor.
	if err := m.Registrar.RegisterSession(session); err != nil {
		compensate()
		return model.Session{}, fmt.Errorf("create-and-start %s: register: %w", taskID, err)
	}
	if err := m.Registrar.StartSessionMonitor(taskID, taskID+":main", worktreePath); err != nil {
		compensate()
		return model.Session{}, fmt.Errorf("create-and-start %s: start monitor: %w", taskID, err)
	}

	return session, nil
}

// runInitCommands runs each configured init command in the main window
// sequentially, waiting for the shell prompt between commands by
// sending a sentinel echo and polling the pane for it to appear — the
// only reliable cross-shell "command finished" signal available through
// capture-pane.
func (m *Manager) runInitCommands(ctx context.Context, taskID string) error {
	target := taskID + ":main"
	for i, cmd := range m.Config.Worktree.InitCommands {
		sentinel := fmt.Sprintf("__az_init_%d_done__", i)
		full := fmt.Sprintf("%s; echo %s", cmd, sentinel)
		if err := m.Mux.SendKeys(ctx, target, full, true); err != nil {
			return fmt.Errorf("init command %d (%s): %w", i, cmd, err)
		}
		if err := m.waitForSentinel(ctx, target, sentinel); err != nil {
			return fmt.Errorf("init command %d (%s): %w", i, cmd, err)
		}
	}
	return nil
}

func (m *Manager) waitForSentinel(ctx context.Context, target, sentinel string) error {
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		out, err := m.Mux.CapturePane(ctx, target, 50)
		if err == nil && strings.Contains(out, sentinel) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	return &errs.Timeout{Op: "init command sentinel wait"}
}

// Attach hands control to the multiplexer, unless the branch is behind
// base, in which case it returns BranchBehind without attaching — the
// caller (UI) decides whether to invoke the Merge Protocol.
func (m *Manager) Attach(ctx context.Context, s model.Session) error {
	g := m.GitFactory(s.WorktreePath)
	_, behind, err := g.AheadBehind(ctx, m.Config.Git.BaseBranch)
	if err != nil {
		return fmt.Errorf("attach %s: %w", s.TaskID, err)
	}
	if behind > 0 {
		return &BranchBehind{N: behind}
	}
	return m.Mux.AttachSession(ctx, s.MuxSessionName)
}

// Pause sends an interrupt to the assistant's main pane. The Coordinator
// is expected to mark the session Paused optimistically; subsequent
// monitor evidence corrects it.
func (m *Manager) Pause(ctx context.Context, s model.Session) error {
	return m.Mux.SendKeys(ctx, s.MuxSessionName+":main", "C-c", false)
}

// CompleteMode enumerates complete()'s mode parameter.
type CompleteMode string

const (
	CompletePlain CompleteMode = "plain"
	CompletePR    CompleteMode = "pr"
)

// Complete closes the issue, optionally opens a PR, then tears down.
func (m *Manager) Complete(ctx context.Context, s model.Session, mode CompleteMode, reason string) error {
	if err := m.Issues.Close(ctx, s.TaskID, reason); err != nil {
		return fmt.Errorf("complete %s: close issue: %w", s.TaskID, err)
	}
	if mode == CompletePR && m.Config.PR.Enabled && m.PR != nil {
		if _, err := m.PR.Create(ctx, s.WorktreePath, s.Branch, s.TaskID, reason, m.Config.PR.AutoDraft); err != nil {
			return fmt.Errorf("complete %s: create PR: %w", s.TaskID, err)
		}
	}
	return m.Teardown(ctx, s)
}

// Teardown stops all dev servers, kills the multiplexer session, and
// deletes the worktree. All three steps are attempted even if earlier
// ones fail; individual failures are aggregated into a single
// CompensationFailure-style error. It does not remove the Session from
// the Coordinator; the Coordinator does that after Teardown returns.
func (m *Manager) Teardown(ctx context.Context, s model.Session) error {
	var failures []error

	if m.DevServers != nil {
		failures = append(failures, m.DevServers.StopAll(ctx, s.TaskID)...)
	}
	if err := m.Mux.KillSession(ctx, s.MuxSessionName); err != nil {
		failures = append(failures, fmt.Errorf("kill session: %w", err))
	}
	if err := m.Git.DeleteWorktree(ctx, s.WorktreePath); err != nil {
		failures = append(failures, fmt.Errorf("delete worktree: %w", err))
	}

	failures = compact(failures)
	if len(failures) == 0 {
		return nil
	}
	if len(failures) == 1 {
		return failures[0]
	}
	agg := failures[0]
	for _, f := range failures[1:] {
		agg = &errs.CompensationFailure{Original: agg, Compensation: f}
	}
	return agg
}

func compact(errs []error) []error {
	var out []error
	for _, e := range errs {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}
