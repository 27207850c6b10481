// Command az is the CLI surface of the workstation (spec §6): it
// launches the interactive board over a project, or runs a single
// orchestration command against it. Grounded on the teacher project's
// internal/cmd package (a spf13/cobra root command with one file per
// subcommand group), adapted from gt's rig/polecat vocabulary to az's
// task/session/dev-server vocabulary.
package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "az [project-dir]",
	Short:         "Azedarach: a worktree-per-task AI coding session orchestrator",
	Args:          cobra.MaximumNArgs(1),
	RunE:          runUI,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		exitError(err)
	}
}

func init() {
	rootCmd.AddCommand(startCmd, attachCmd, pauseCmd, statusCmd)
	rootCmd.AddCommand(syncCmd, notifyCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(devCmd)
}
