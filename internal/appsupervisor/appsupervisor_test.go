package appsupervisor

import (
	"context"
	"testing"

	"github.com/azedarach/azedarach/internal/config"
	"github.com/azedarach/azedarach/internal/gitclient"
	"github.com/azedarach/azedarach/internal/issue"
	"github.com/azedarach/azedarach/internal/mux"
	"github.com/azedarach/azedarach/internal/runner"
)

func testDeps(workdir string) Deps {
	fake := runner.NewFake()
	fake.On(runner.Result{Stdout: ""}, "git", "status", "--porcelain")
	g := gitclient.New(fake, workdir)
	m := mux.New(fake)
	iss := issue.New(fake, workdir)
	return Deps{
		ProjectGit:     g,
		GitForWorktree: func(wt string) *gitclient.Client { return gitclient.New(fake, wt) },
		Mux:            m,
		Issues:         iss,
		AssistantCmd:   "claude",
	}
}

func TestNewWiresCoordinatorReadyForCommands(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	sup := New(dir, cfg, testDeps(dir))
	if sup.Coordinator == nil {
		t.Fatal("expected a wired Coordinator")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Coordinator.Run(ctx, 0)

	if err := sup.Coordinator.SwitchProject(dir); err != nil {
		t.Fatalf("expected SwitchProject to round-trip through the wired Coordinator: %v", err)
	}
}

func TestStartTwiceFailsOnSecondLock(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()

	first := New(dir, cfg, testDeps(dir))
	second := New(dir, cfg, testDeps(dir))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ignore preflight's pass/fail here (real binaries may or may not be
	// on this machine's PATH) — only the lock behavior is under test.
	_, _ = first.Start(ctx)
	defer func() { _ = first.Shutdown(0) }()

	_, err := second.Start(ctx)
	if err == nil {
		t.Fatal("expected the second Start to fail while the first holds the lock")
	}
	if _, ok := err.(*ErrAlreadyRunning); !ok {
		t.Fatalf("expected ErrAlreadyRunning, got %T: %v", err, err)
	}
}
