package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/azedarach/azedarach/internal/appsupervisor"
	"github.com/azedarach/azedarach/internal/config"
	"github.com/azedarach/azedarach/internal/coordinator"
	"github.com/azedarach/azedarach/internal/lifecycle"
)

var startCmd = &cobra.Command{
	Use:   "start <task-id>",
	Short: "Run the create-and-start workflow for a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCoordinator(cmd.Context(), func(ctx context.Context, c *coordinator.Coordinator, _ *config.Config) error {
			res := c.StartSession(lifecycle.Options{TaskID: args[0]})
			return res.Err
		})
	},
}

var attachCmd = &cobra.Command{
	Use:   "attach <task-id>",
	Short: "Attach to an existing session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCoordinator(cmd.Context(), func(ctx context.Context, c *coordinator.Coordinator, _ *config.Config) error {
			return c.Attach(ctx, args[0])
		})
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause <task-id>",
	Short: "Send an interrupt to the session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCoordinator(cmd.Context(), func(ctx context.Context, c *coordinator.Coordinator, _ *config.Config) error {
			return c.Pause(ctx, args[0])
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the names of active multiplexer sessions",
	Args:  cobra.NoArgs,
	// status prints session names only; it shows no session state, since
	// it reads tmux directly and starts no Coordinator or monitors.
	// status is read-only, so it never takes the single-instance lock —
	// it lists the multiplexer's live sessions directly, the same
	// observable-reality source RecoverFromScan uses, rather than racing
	// an already-running UI for the lock.
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := projectPath(nil)
		if err != nil {
			return err
		}
		sup, cfg, err := newSupervisor(path)
		if err != nil {
			return err
		}
		sessions, err := sup.Deps.Mux.ListSessions(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing sessions: %w", err)
		}
		if len(sessions) == 0 {
			fmt.Println("no active sessions")
			return nil
		}
		printSessionTable(sessions, cfg.Theme)
		return nil
	},
}

// withCoordinator bootstraps a short-lived Supervisor/Coordinator pair
// over projectPath (the cwd, since these commands are run from inside
// a worktree or the project root), runs fn, then tears down. Every
// one-shot subcommand shares this bootstrap rather than attaching to an
// already-running `az` UI process: no IPC transport to a long-lived
// coordinator is specified, so each invocation observes the same
// on-disk/tmux state the UI does and acts on it directly, the way the
// teacher project's own CLI commands operate straight on rig/tmux/beads
// state rather than through a daemon.
func withCoordinator(parent context.Context, fn func(ctx context.Context, c *coordinator.Coordinator, cfg *config.Config) error) error {
	path, err := projectPath(nil)
	if err != nil {
		return err
	}
	sup, cfg, err := newSupervisor(path)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	if _, err := sup.Start(ctx); err != nil {
		if _, ok := err.(*appsupervisor.ErrAlreadyRunning); ok {
			return fmt.Errorf("%w (the interactive UI already owns this project; use it directly)", err)
		}
		return err
	}
	defer sup.Shutdown(500 * time.Millisecond)

	return fn(ctx, sup.Coordinator, cfg)
}
