package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/azedarach/azedarach/internal/detector"
	"github.com/azedarach/azedarach/internal/devserver"
	"github.com/azedarach/azedarach/internal/issue"
	"github.com/azedarach/azedarach/internal/lifecycle"
	"github.com/azedarach/azedarach/internal/merge"
	"github.com/azedarach/azedarach/internal/model"
	"github.com/azedarach/azedarach/internal/monitor"
	"github.com/azedarach/azedarach/internal/notify"
)

type fakeLifecycle struct {
	mu        sync.Mutex
	createErr error
	created   model.Session
	registrar *Coordinator
}

func (f *fakeLifecycle) CreateAndStart(ctx context.Context, opts lifecycle.Options) (model.Session, error) {
	if f.createErr != nil {
		return model.Session{}, f.createErr
	}
	s := model.Session{TaskID: opts.TaskID, MuxSessionName: opts.TaskID, State: detector.StateBusy, StartedAt: time.Now()}
	if err := f.registrar.RegisterSession(s); err != nil {
		return model.Session{}, err
	}
	return s, nil
}
func (f *fakeLifecycle) Attach(ctx context.Context, s model.Session) error { return nil }
func (f *fakeLifecycle) Pause(ctx context.Context, s model.Session) error  { return nil }
func (f *fakeLifecycle) Complete(ctx context.Context, s model.Session, mode lifecycle.CompleteMode, reason string) error {
	return nil
}
func (f *fakeLifecycle) Teardown(ctx context.Context, s model.Session) error { return nil }
func (f *fakeLifecycle) WorktreePath(taskID string) string                  { return "/worktrees/" + taskID }
func (f *fakeLifecycle) BranchName(taskID string) string                    { return "az-" + taskID }

type fakeDevServers struct {
	mu      sync.Mutex
	records map[model.Key]model.DevServer
}

func newFakeDevServers() *fakeDevServers {
	return &fakeDevServers{records: map[model.Key]model.DevServer{}}
}

func (f *fakeDevServers) Start(ctx context.Context, opts devserver.StartOptions) (model.DevServer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := model.DevServer{TaskID: opts.TaskID, Name: opts.ServerName, Status: model.DevServerRunning, Port: 4000}
	f.records[model.Key{TaskID: opts.TaskID, Name: opts.ServerName}] = rec
	return rec, nil
}
func (f *fakeDevServers) Stop(ctx context.Context, taskID, serverName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := model.Key{TaskID: taskID, Name: serverName}
	rec := f.records[key]
	rec.Status = model.DevServerStopped
	f.records[key] = rec
	return nil
}
func (f *fakeDevServers) Toggle(ctx context.Context, opts devserver.StartOptions) (model.DevServer, error) {
	key := model.Key{TaskID: opts.TaskID, Name: opts.ServerName}
	f.mu.Lock()
	rec, ok := f.records[key]
	f.mu.Unlock()
	if ok && rec.Status == model.DevServerRunning {
		_ = f.Stop(ctx, opts.TaskID, opts.ServerName)
		f.mu.Lock()
		out := f.records[key]
		f.mu.Unlock()
		return out, nil
	}
	return f.Start(ctx, opts)
}
func (f *fakeDevServers) Get(taskID, serverName string) (model.DevServer, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[model.Key{TaskID: taskID, Name: serverName}]
	return rec, ok
}

type fakeIssues struct{ tasks []issue.Task }

func (f *fakeIssues) ListAll(ctx context.Context) ([]issue.Task, error) { return f.tasks, nil }

type fakeMux struct{ windows map[string][]string }

func (fakeMux) CapturePane(ctx context.Context, target string, lastN int) (string, error) {
	return "", nil
}
func (f fakeMux) ListWindows(ctx context.Context, session string) ([]string, error) {
	return f.windows[session], nil
}

type fakeMergeRunner struct {
	result merge.Result
	err    error
}

func (f *fakeMergeRunner) UpdateFromBase(ctx context.Context) (merge.Result, error) {
	return f.result, f.err
}

func newTestCoordinator(t *testing.T) (*Coordinator, *fakeLifecycle, *fakeDevServers, context.CancelFunc) {
	t.Helper()
	lc := &fakeLifecycle{}
	ds := newFakeDevServers()
	issues := &fakeIssues{}
	c := New(lc, ds, issues, fakeMux{}, func(taskID string, s model.Session) MergeRunner {
		return &fakeMergeRunner{result: merge.Result{Kind: merge.ResultAlreadyUpToDate}}
	})
	lc.registrar = c

	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx, 0)
	return c, lc, ds, cancel
}

func newTestCoordinatorWithMux(t *testing.T, mux fakeMux) (*Coordinator, *fakeLifecycle, context.CancelFunc) {
	t.Helper()
	lc := &fakeLifecycle{}
	ds := newFakeDevServers()
	issues := &fakeIssues{}
	c := New(lc, ds, issues, mux, func(taskID string, s model.Session) MergeRunner {
		return &fakeMergeRunner{result: merge.Result{Kind: merge.ResultAlreadyUpToDate}}
	})
	lc.registrar = c

	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx, 0)
	return c, lc, cancel
}

func TestStartSessionRegistersAndPublishes(t *testing.T) {
	c, _, _, cancel := newTestCoordinator(t)
	defer cancel()

	before, _ := c.Latest()
	res := c.StartSession(lifecycle.Options{TaskID: "az-1"})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Session.TaskID != "az-1" {
		t.Fatalf("expected session for az-1, got %+v", res.Session)
	}
	after, _ := c.Latest()
	if after.Version <= before.Version {
		t.Fatalf("expected a newer snapshot version, before=%d after=%d", before.Version, after.Version)
	}
	if _, ok := after.Sessions["az-1"]; !ok {
		t.Fatal("expected az-1 in the published snapshot")
	}
}

func TestStartSessionRejectsDuplicate(t *testing.T) {
	c, _, _, cancel := newTestCoordinator(t)
	defer cancel()

	if res := c.StartSession(lifecycle.Options{TaskID: "az-2"}); res.Err != nil {
		t.Fatalf("first start: %v", res.Err)
	}
	res := c.StartSession(lifecycle.Options{TaskID: "az-2"})
	if res.Err == nil {
		t.Fatal("expected a conflict on the second start")
	}
}

func TestStartSessionFailurePropagatesAndDoesNotLeakReservation(t *testing.T) {
	c, lc, _, cancel := newTestCoordinator(t)
	defer cancel()
	lc.createErr = errors.New("worktree exists")

	res := c.StartSession(lifecycle.Options{TaskID: "az-3"})
	if res.Err == nil {
		t.Fatal("expected an error")
	}

	// Reservation must have been cleared; a fresh attempt (with the
	// fake's error cleared) should now succeed.
	lc.createErr = nil
	res = c.StartSession(lifecycle.Options{TaskID: "az-3"})
	if res.Err != nil {
		t.Fatalf("expected retry to succeed once the reservation is released, got %v", res.Err)
	}
}

func TestMonitorEventUpdatesSessionState(t *testing.T) {
	c, _, _, cancel := newTestCoordinator(t)
	defer cancel()

	if res := c.StartSession(lifecycle.Options{TaskID: "az-4"}); res.Err != nil {
		t.Fatalf("start: %v", res.Err)
	}

	c.monitorEvents <- monitor.Event{Kind: monitor.EventSessionStateChanged, TaskID: "az-4", State: detector.StateWaiting, Snippet: "waiting for input"}

	deadline := time.After(time.Second)
	for {
		snap, changed := c.Latest()
		if snap.Sessions["az-4"].State == detector.StateWaiting {
			break
		}
		select {
		case <-changed:
		case <-deadline:
			t.Fatalf("timed out waiting for state update, got %+v", snap.Sessions["az-4"])
		}
	}
}

func TestCompleteRemovesSession(t *testing.T) {
	c, _, _, cancel := newTestCoordinator(t)
	defer cancel()

	if res := c.StartSession(lifecycle.Options{TaskID: "az-5"}); res.Err != nil {
		t.Fatalf("start: %v", res.Err)
	}
	if err := c.Complete(lifecycle.CompletePlain, "az-5", "done"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	snap, _ := c.Latest()
	if _, ok := snap.Sessions["az-5"]; ok {
		t.Fatal("expected the session to be removed after complete")
	}
}

func TestToggleDevServerStartsThenStops(t *testing.T) {
	c, _, _, cancel := newTestCoordinator(t)
	defer cancel()

	res := c.ToggleDevServer(context.Background(), devserver.StartOptions{TaskID: "az-6", ServerName: "web"})
	if res.Err != nil || res.DevServer.Status != model.DevServerRunning {
		t.Fatalf("expected running after first toggle, got %+v, err=%v", res.DevServer, res.Err)
	}
	res = c.ToggleDevServer(context.Background(), devserver.StartOptions{TaskID: "az-6", ServerName: "web"})
	if res.Err != nil || res.DevServer.Status != model.DevServerStopped {
		t.Fatalf("expected stopped after second toggle, got %+v, err=%v", res.DevServer, res.Err)
	}
}

func TestSwitchProjectResetsState(t *testing.T) {
	c, _, _, cancel := newTestCoordinator(t)
	defer cancel()

	if res := c.StartSession(lifecycle.Options{TaskID: "az-7"}); res.Err != nil {
		t.Fatalf("start: %v", res.Err)
	}
	if err := c.SwitchProject("/tmp/other-project"); err != nil {
		t.Fatalf("switch project: %v", err)
	}
	snap, _ := c.Latest()
	if len(snap.Sessions) != 0 {
		t.Fatalf("expected sessions cleared after switching project, got %v", snap.Sessions)
	}
	if snap.CurrentProject != "/tmp/other-project" {
		t.Fatalf("expected current project to update, got %q", snap.CurrentProject)
	}
}

func TestPollNotificationsPublishesToastForPendingSignal(t *testing.T) {
	c, _, _, cancel := newTestCoordinator(t)
	defer cancel()

	if res := c.StartSession(lifecycle.Options{TaskID: "az-notify-1"}); res.Err != nil {
		t.Fatalf("start: %v", res.Err)
	}
	defer notify.Read("az-notify-1")
	if err := notify.Write("az-notify-1", "session_complete", time.Now()); err != nil {
		t.Fatalf("write signal: %v", err)
	}

	c.pollNotifications(context.Background())

	select {
	case toast := <-c.Toasts():
		if toast.Message == "" {
			t.Fatal("expected a non-empty toast message")
		}
	case <-time.After(time.Second):
		t.Fatal("expected a toast to be published for the pending signal")
	}

	if _, ok, err := notify.Read("az-notify-1"); err != nil || ok {
		t.Fatalf("expected the signal file to be consumed, ok=%v err=%v", ok, err)
	}
}

func TestRecoverSessionsAdoptsLiveSessionsWithMainWindow(t *testing.T) {
	mux := fakeMux{windows: map[string][]string{
		"az-8": {"main"},
		"az-9": {"dev-web"}, // no main window: not an az-managed session
	}}
	c, lc, cancel := newTestCoordinatorWithMux(t, mux)
	defer cancel()

	c.RecoverSessions(context.Background(), []string{"az-8", "az-9"})

	snap, _ := c.Latest()
	s, ok := snap.Sessions["az-8"]
	if !ok {
		t.Fatal("expected az-8 to be recovered")
	}
	if s.WorktreePath != lc.WorktreePath("az-8") || s.Branch != lc.BranchName("az-8") {
		t.Fatalf("expected worktree/branch rebuilt from lifecycle, got %+v", s)
	}
	if _, ok := snap.Sessions["az-9"]; ok {
		t.Fatal("expected az-9 (no main window) not to be recovered")
	}
}

func TestRecoverSessionsSkipsAlreadyRegistered(t *testing.T) {
	c, _, _, cancel := newTestCoordinator(t)
	defer cancel()

	if res := c.StartSession(lifecycle.Options{TaskID: "az-10"}); res.Err != nil {
		t.Fatalf("start: %v", res.Err)
	}

	c.RecoverSessions(context.Background(), []string{"az-10"})

	snap, _ := c.Latest()
	if snap.Sessions["az-10"].State != detector.StateBusy {
		t.Fatalf("expected the already-registered session left untouched, got state %v", snap.Sessions["az-10"].State)
	}
}

func TestRefreshIssuesPublishesTasks(t *testing.T) {
	lc := &fakeLifecycle{}
	ds := newFakeDevServers()
	issues := &fakeIssues{tasks: []issue.Task{{ID: "az-8", Title: "fix bug"}}}
	c := New(lc, ds, issues, fakeMux{}, func(taskID string, s model.Session) MergeRunner { return nil })
	lc.registrar = c
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx, 0)

	tasks, err := c.RefreshIssues(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != "az-8" {
		t.Fatalf("expected one task az-8, got %v", tasks)
	}
}
