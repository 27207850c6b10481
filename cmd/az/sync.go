package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/azedarach/azedarach/internal/issue"
	"github.com/azedarach/azedarach/internal/runner"
)

var syncAll bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run the issue tool's sync in the current worktree, or across all worktrees",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := projectPath(nil)
		if err != nil {
			return err
		}
		run := runner.New()
		if !syncAll {
			return issue.New(run, path).Sync(cmd.Context())
		}

		sup, _, err := newSupervisor(path)
		if err != nil {
			return err
		}
		worktrees, err := sup.Deps.ProjectGit.WorktreeList(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing worktrees: %w", err)
		}
		var failures int
		for _, wt := range worktrees {
			if err := issue.New(run, wt.Path).Sync(cmd.Context()); err != nil {
				fmt.Fprintf(os.Stderr, "az: sync failed for %s: %v\n", wt.Path, err)
				failures++
			}
		}
		if failures > 0 {
			return fmt.Errorf("%d worktree(s) failed to sync", failures)
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncAll, "all", false, "sync in every worktree of the repository, the project root included")
}
