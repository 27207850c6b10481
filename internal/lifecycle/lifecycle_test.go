package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/azedarach/azedarach/internal/config"
	"github.com/azedarach/azedarach/internal/issue"
	"github.com/azedarach/azedarach/internal/model"
)

type fakeGit struct {
	created   []string
	deleted   []string
	pushed    []string
	failStep  string
	failErr   error
}

func (f *fakeGit) CreateWorktree(ctx context.Context, path, branch, base string) error {
	if f.failStep == "create" {
		return f.failErr
	}
	f.created = append(f.created, path)
	return nil
}

func (f *fakeGit) DeleteWorktree(ctx context.Context, path string) error {
	f.deleted = append(f.deleted, path)
	return nil
}

func (f *fakeGit) PushBranch(ctx context.Context, remote, branch string) error {
	if f.failStep == "push" {
		return f.failErr
	}
	f.pushed = append(f.pushed, branch)
	return nil
}

func (f *fakeGit) DeleteRemoteBranch(ctx context.Context, remote, branch string) error {
	return nil
}

type fakeWorktreeGit struct {
	ahead, behind int
	err           error
}

func (f *fakeWorktreeGit) AheadBehind(ctx context.Context, base string) (int, int, error) {
	return f.ahead, f.behind, f.err
}

type fakeMux struct {
	sessions map[string]bool
	sent     []string
	failStep string
	failErr  error
}

func newFakeMux() *fakeMux { return &fakeMux{sessions: map[string]bool{}} }

func (f *fakeMux) NewSession(ctx context.Context, name, workdir string) error {
	if f.failStep == "session" {
		return f.failErr
	}
	f.sessions[name] = true
	return nil
}
func (f *fakeMux) HasSession(ctx context.Context, name string) (bool, error) {
	return f.sessions[name], nil
}
func (f *fakeMux) KillSession(ctx context.Context, name string) error {
	delete(f.sessions, name)
	return nil
}
func (f *fakeMux) SendKeys(ctx context.Context, target, keystring string, submitEnter bool) error {
	if f.failStep == "sendkeys" {
		return f.failErr
	}
	f.sent = append(f.sent, keystring)
	return nil
}
func (f *fakeMux) CapturePane(ctx context.Context, target string, lastN int) (string, error) {
	if len(f.sent) == 0 {
		return "", nil
	}
	return "__az_init_0_done__", nil
}
func (f *fakeMux) NewWindow(ctx context.Context, session, windowName, command string) error {
	return nil
}
func (f *fakeMux) SetEnvironment(ctx context.Context, session, key, value string) error { return nil }
func (f *fakeMux) AttachSession(ctx context.Context, name string) error                { return nil }

type fakeIssues struct {
	tasks  map[string]issue.Task
	closed []string
}

func (f *fakeIssues) Show(ctx context.Context, id string) (issue.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return issue.Task{}, errors.New("not found")
	}
	return t, nil
}
func (f *fakeIssues) Close(ctx context.Context, id, reason string) error {
	f.closed = append(f.closed, id)
	return nil
}

type fakeRegistrar struct {
	registered []model.Session
	monitored  []string
	failStep   string
}

func (f *fakeRegistrar) RegisterSession(s model.Session) error {
	if f.failStep == "register" {
		return errors.New("register failed")
	}
	f.registered = append(f.registered, s)
	return nil
}
func (f *fakeRegistrar) StartSessionMonitor(taskID, target, worktreePath string) error {
	if f.failStep == "monitor" {
		return errors.New("monitor start failed")
	}
	f.monitored = append(f.monitored, taskID)
	return nil
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Worktree.PathTemplate = "../{project}-{bead-id}"
	cfg.Worktree.InitCommands = []string{"echo ready"}
	cfg.Git.BranchPrefix = "az-"
	cfg.Git.BaseBranch = "main"
	return cfg
}

func TestCreateAndStartHappyPath(t *testing.T) {
	git := &fakeGit{}
	m := newFakeMux()
	issues := &fakeIssues{tasks: map[string]issue.Task{"az-1": {ID: "az-1", Title: "Add login"}}}
	reg := &fakeRegistrar{}

	mgr := New(git, func(string) WorktreeGit { return &fakeWorktreeGit{} }, m, issues, nil, reg, nil, testConfig(), "/work/proj")

	s, err := mgr.CreateAndStart(context.Background(), Options{TaskID: "az-1", AssistantCmd: "claude"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Branch != "az-az-1" {
		t.Fatalf("expected branch az-az-1, got %s", s.Branch)
	}
	if len(git.created) != 1 {
		t.Fatalf("expected one worktree created, got %d", len(git.created))
	}
	if !m.sessions["az-1"] {
		t.Fatal("expected tmux session az-1 to exist")
	}
	if len(reg.registered) != 1 || len(reg.monitored) != 1 {
		t.Fatal("expected session registered and monitor started")
	}
}

func TestCreateAndStartCompensatesOnMonitorFailure(t *testing.T) {
	git := &fakeGit{}
	m := newFakeMux()
	issues := &fakeIssues{tasks: map[string]issue.Task{"az-2": {ID: "az-2"}}}
	reg := &fakeRegistrar{failStep: "monitor"}

	mgr := New(git, func(string) WorktreeGit { return &fakeWorktreeGit{} }, m, issues, nil, reg, nil, testConfig(), "/work/proj")

	_, err := mgr.CreateAndStart(context.Background(), Options{TaskID: "az-2", AssistantCmd: "claude"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if len(git.deleted) != 1 {
		t.Fatalf("expected worktree to be deleted as compensation, got %d deletions", len(git.deleted))
	}
	if m.sessions["az-2"] {
		t.Fatal("expected tmux session to be killed as compensation")
	}
}

func TestCreateAndStartFailsPreconditionWhenTaskMissing(t *testing.T) {
	git := &fakeGit{}
	m := newFakeMux()
	issues := &fakeIssues{tasks: map[string]issue.Task{}}
	reg := &fakeRegistrar{}

	mgr := New(git, func(string) WorktreeGit { return &fakeWorktreeGit{} }, m, issues, nil, reg, nil, testConfig(), "/work/proj")

	_, err := mgr.CreateAndStart(context.Background(), Options{TaskID: "missing"})
	if err == nil {
		t.Fatal("expected an error for a task that doesn't exist")
	}
	if len(git.created) != 0 {
		t.Fatal("expected no worktree to be created when precondition fails")
	}
}

func TestAttachReturnsBranchBehind(t *testing.T) {
	git := &fakeGit{}
	m := newFakeMux()
	mgr := New(git, func(string) WorktreeGit { return &fakeWorktreeGit{behind: 3} }, m, &fakeIssues{}, nil, &fakeRegistrar{}, nil, testConfig(), "/work/proj")

	err := mgr.Attach(context.Background(), model.Session{TaskID: "az-3", WorktreePath: "/x", MuxSessionName: "az-3"})
	var bb *BranchBehind
	if !errors.As(err, &bb) {
		t.Fatalf("expected BranchBehind, got %v", err)
	}
	if bb.N != 3 {
		t.Fatalf("expected N=3, got %d", bb.N)
	}
}

func TestTeardownAggregatesFailures(t *testing.T) {
	git := &fakeGitFailingDelete{}
	m := newFakeMux()
	mgr := New(git, func(string) WorktreeGit { return &fakeWorktreeGit{} }, m, &fakeIssues{}, fakeDevServersFailing{}, &fakeRegistrar{}, nil, testConfig(), "/work/proj")

	s := model.Session{TaskID: "az-5", WorktreePath: "/x", MuxSessionName: "az-5"}
	err := mgr.Teardown(context.Background(), s)
	if err == nil {
		t.Fatal("expected aggregated teardown error")
	}
}

type fakeGitFailingDelete struct{ fakeGit }

func (f *fakeGitFailingDelete) DeleteWorktree(ctx context.Context, path string) error {
	return errors.New("delete failed")
}

type fakeDevServersFailing struct{}

func (fakeDevServersFailing) StopAll(ctx context.Context, taskID string) []error {
	return []error{errors.New("stop failed")}
}
