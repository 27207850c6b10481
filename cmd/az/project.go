package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/azedarach/azedarach/internal/project"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage the project registry",
}

var projectIssuePrefix string

var projectAddCmd = &cobra.Command{
	Use:   "add <name> <path>",
	Short: "Register a project",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		abs, err := filepath.Abs(args[1])
		if err != nil {
			return err
		}
		reg, err := project.Load()
		if err != nil {
			return err
		}
		if err := reg.Add(project.Project{Name: args[0], Path: abs, IssuePrefix: projectIssuePrefix}); err != nil {
			return err
		}
		return reg.Save()
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := project.Load()
		if err != nil {
			return err
		}
		for _, p := range reg.List() {
			marker := " "
			if p.Name == reg.Current {
				marker = "*"
			}
			fmt.Printf("%s %-16s %s\n", marker, p.Name, p.Path)
		}
		return nil
	},
}

var projectRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Unregister a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := project.Load()
		if err != nil {
			return err
		}
		if err := reg.Remove(args[0]); err != nil {
			return err
		}
		return reg.Save()
	},
}

var projectSwitchCmd = &cobra.Command{
	Use:   "switch <name>",
	Short: "Select the current project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := project.Load()
		if err != nil {
			return err
		}
		if err := reg.Switch(args[0]); err != nil {
			return err
		}
		return reg.Save()
	},
}

func init() {
	projectAddCmd.Flags().StringVar(&projectIssuePrefix, "issue-prefix", "", "issue id prefix for this project")
	projectCmd.AddCommand(projectAddCmd, projectListCmd, projectRemoveCmd, projectSwitchCmd)
}
