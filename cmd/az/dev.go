package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/azedarach/azedarach/internal/config"
	"github.com/azedarach/azedarach/internal/coordinator"
	"github.com/azedarach/azedarach/internal/devserver"
	"github.com/azedarach/azedarach/internal/model"
)

var devServerName string

var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Control dev servers for a task",
}

// startOptionsFor resolves the named server from devServer.servers and the
// task's current worktree, so Command/EnvVar/SessionWorkdir reach the
// manager the same way they would from the interactive UI.
func startOptionsFor(c *coordinator.Coordinator, cfg *config.Config, taskID string) (devserver.StartOptions, error) {
	var def *config.DevServerDef
	for i := range cfg.DevServer.Servers {
		if cfg.DevServer.Servers[i].Name == devServerName {
			def = &cfg.DevServer.Servers[i]
			break
		}
	}
	if def == nil {
		return devserver.StartOptions{}, fmt.Errorf("no dev server named %q configured", devServerName)
	}

	envVar := ""
	if len(def.Ports) > 0 {
		envVar = def.Ports[0].EnvVar
	}

	workdir := ""
	if snap, _ := c.Latest(); snap != nil {
		if s, ok := snap.Sessions[taskID]; ok {
			workdir = s.WorktreePath
		}
	}

	return devserver.StartOptions{
		TaskID:         taskID,
		ServerName:     devServerName,
		Command:        def.Command,
		SessionWorkdir: workdir,
		EnvVar:         envVar,
	}, nil
}

var devStartCmd = &cobra.Command{
	Use:   "start <task-id>",
	Short: "Start a dev server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCoordinator(cmd.Context(), func(ctx context.Context, c *coordinator.Coordinator, cfg *config.Config) error {
			opts, err := startOptionsFor(c, cfg, args[0])
			if err != nil {
				return err
			}
			res := c.StartDevServer(ctx, opts)
			return res.Err
		})
	},
}

var devStopCmd = &cobra.Command{
	Use:   "stop <task-id>",
	Short: "Stop a dev server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCoordinator(cmd.Context(), func(ctx context.Context, c *coordinator.Coordinator, _ *config.Config) error {
			return c.StopDevServer(ctx, args[0], devServerName)
		})
	},
}

var devRestartCmd = &cobra.Command{
	Use:   "restart <task-id>",
	Short: "Restart a dev server (stop, then start)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCoordinator(cmd.Context(), func(ctx context.Context, c *coordinator.Coordinator, cfg *config.Config) error {
			if err := c.StopDevServer(ctx, args[0], devServerName); err != nil {
				return err
			}
			opts, err := startOptionsFor(c, cfg, args[0])
			if err != nil {
				return err
			}
			res := c.StartDevServer(ctx, opts)
			return res.Err
		})
	},
}

var devStatusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Print a dev server's status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCoordinator(cmd.Context(), func(ctx context.Context, c *coordinator.Coordinator, _ *config.Config) error {
			snap, _ := c.Latest()
			ds, ok := snap.DevServers[model.Key{TaskID: args[0], Name: devServerName}]
			if !ok {
				fmt.Println("not running")
				return nil
			}
			fmt.Printf("%s: %s (port %d)\n", ds.Name, ds.Status, ds.Port)
			return nil
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{devStartCmd, devStopCmd, devRestartCmd, devStatusCmd} {
		c.Flags().StringVar(&devServerName, "name", "web", "dev server name, as declared in devServer.servers")
	}
	devCmd.AddCommand(devStartCmd, devStopCmd, devRestartCmd, devStatusCmd)
}
