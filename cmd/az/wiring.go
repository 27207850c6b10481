package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/azedarach/azedarach/internal/appsupervisor"
	"github.com/azedarach/azedarach/internal/config"
	"github.com/azedarach/azedarach/internal/formula"
	"github.com/azedarach/azedarach/internal/ghpr"
	"github.com/azedarach/azedarach/internal/gitclient"
	"github.com/azedarach/azedarach/internal/issue"
	"github.com/azedarach/azedarach/internal/lifecycle"
	"github.com/azedarach/azedarach/internal/mux"
	"github.com/azedarach/azedarach/internal/runner"
)

// formulaDir is where devserver/task formula TOML files live, relative
// to the project root, mirroring the teacher project's formulas/ layout.
const formulaDir = "formulas"

// projectPath resolves the positional [project-dir] argument used by
// most commands: the given path, or the current working directory.
func projectPath(args []string) (string, error) {
	if len(args) > 0 {
		return filepath.Abs(args[0])
	}
	return os.Getwd()
}

// newSupervisor wires a fresh Application Supervisor over real
// subprocess-backed clients, exactly as appsupervisor.New documents.
// Each CLI invocation builds its own: there is no persistent daemon
// process to attach to, so every subcommand is a short-lived bootstrap
// of the same components the interactive UI runs continuously.
func newSupervisor(path string) (*appsupervisor.Supervisor, *config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if err := formula.Merge(cfg, filepath.Join(path, formulaDir)); err != nil {
		return nil, nil, fmt.Errorf("loading formulas: %w", err)
	}

	run := runner.New()
	projectGit := gitclient.New(run, path)
	m := mux.New(run)
	iss := issue.New(run, path)

	var pr lifecycle.PRCreator
	if cfg.PR.Enabled {
		pr = ghpr.New(run)
	}

	deps := appsupervisor.Deps{
		ProjectGit:     projectGit,
		GitForWorktree: func(worktree string) *gitclient.Client { return gitclient.New(run, worktree) },
		Mux:            m,
		Issues:         iss,
		PRCreator:      pr,
		AssistantCmd:   "claude",
	}

	return appsupervisor.New(path, cfg, deps), cfg, nil
}

var cliLog = slog.New(slog.NewTextHandler(os.Stderr, nil))

// exitError reports a command failure the way the Application
// Supervisor reports its own (log/slog to stderr), then exits non-zero.
func exitError(err error) {
	cliLog.Error("command failed", "error", err)
	os.Exit(1)
}
