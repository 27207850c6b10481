package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/azedarach/azedarach/internal/appsupervisor"
	"github.com/azedarach/azedarach/internal/boardui"
	"github.com/azedarach/azedarach/internal/preflight"
)

// runUI is the bare `az [project-dir]` invocation: acquire the
// single-instance lock, start the Coordinator, and drive the board
// viewer until the user quits or the process receives a signal.
func runUI(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("stdout is not a terminal; the board needs an interactive TTY (use the az subcommands for scripted use)")
	}

	path, err := projectPath(args)
	if err != nil {
		return err
	}

	sup, _, err := newSupervisor(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "az: instance %s starting for %s\n", sup.InstanceID, path)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	results, err := sup.Start(ctx)
	if err != nil {
		if _, ok := err.(*appsupervisor.ErrAlreadyRunning); ok {
			return err
		}
		printPreflight(results)
		return err
	}
	printPreflight(results)
	defer sup.Shutdown(2 * time.Second)

	return boardui.Run(ctx, sup.Coordinator)
}

var warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

// printPreflight reports non-OK preflight results to stderr, colored
// when the terminal's environment supports it and left plain (e.g.
// piped to a log file) otherwise.
func printPreflight(results []preflight.Result) {
	colorize := termenv.EnvColorProfile() != termenv.Ascii
	for _, r := range results {
		if r.Status == preflight.StatusOK {
			continue
		}
		line := fmt.Sprintf("az: preflight %s: %s [%s]", r.Status, r.Message, r.Name)
		if colorize {
			line = warnStyle.Render(line)
		}
		fmt.Fprintln(os.Stderr, line)
	}
}
