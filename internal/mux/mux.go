// Package mux is a typed wrapper
// over tmux covering sessions, windows, send-keys, and capture-pane. All
// names are the caller's responsibility — the client does not mangle
// them. Grounded on the teacher project's polecat.SessionManager, which
// wraps an equivalent tmux client the same way (HasSession, NewSession,
// SetEnvironment, CapturePane, SendKeys, KillSession).
package mux

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/azedarach/azedarach/internal/runner"
)

// DefaultTimeout is the default timeout for mux calls.
const DefaultTimeout = 5 * time.Second

// Client wraps the tmux binary.
type Client struct {
	run runner.Interface
}

// New returns a tmux Client.
func New(run runner.Interface) *Client {
	return &Client{run: run}
}

func (c *Client) tmux(ctx context.Context, op, session string, args ...string) (string, error) {
	res, err := c.run.Run(ctx, "tmux", args, "", DefaultTimeout)
	if err != nil {
		return "", &TmuxError{Op: op, Session: session, Stdout: res.Stdout, Stderr: res.Stderr, Err: err}
	}
	return res.Stdout, nil
}

// NewSession creates a new detached tmux session named name with
// workdir as its starting directory.
func (c *Client) NewSession(ctx context.Context, name, workdir string) error {
	_, err := c.tmux(ctx, "new-session", name, "new-session", "-d", "-s", name, "-c", workdir)
	return err
}

// NewSessionWithCommand creates a new detached session whose first
// window runs command instead of the default shell.
func (c *Client) NewSessionWithCommand(ctx context.Context, name, workdir, command string) error {
	_, err := c.tmux(ctx, "new-session", name, "new-session", "-d", "-s", name, "-c", workdir, command)
	return err
}

// HasSession reports whether a session named name currently exists.
func (c *Client) HasSession(ctx context.Context, name string) (bool, error) {
	_, err := c.tmux(ctx, "has-session", name, "has-session", "-t", name)
	if err == nil {
		return true, nil
	}
	var te *TmuxError
	if e, ok := err.(*TmuxError); ok {
		te = e
	}
	if te != nil {
		// Any failed has-session call, whatever its stderr, is read as
		// "session not found".
		return false, nil
	}
	return false, err
}

// KillSession destroys a session and everything running inside it.
func (c *Client) KillSession(ctx context.Context, name string) error {
	_, err := c.tmux(ctx, "kill-session", name, "kill-session", "-t", name)
	return err
}

// SendKeys sends keystring to target (session[:window[.pane]]),
// optionally submitting it with Enter. It is passed without -l, so tmux
// key names such as "C-c" are sent as keys. Callers are responsible for
// shell-escaping any user- or template-derived content via ShellQuote
// before it reaches keystring.
func (c *Client) SendKeys(ctx context.Context, target, keystring string, submitEnter bool) error {
	args := []string{"send-keys", "-t", target, keystring}
	if submitEnter {
		args = append(args, "Enter")
	}
	_, err := c.tmux(ctx, "send-keys", target, args...)
	return err
}

// CapturePane returns the last lastN lines of visible pane content for
// target. lastN <= 0 captures the whole scrollback-visible pane.
func (c *Client) CapturePane(ctx context.Context, target string, lastN int) (string, error) {
	args := []string{"capture-pane", "-t", target, "-p"}
	if lastN > 0 {
		args = append(args, "-S", "-"+strconv.Itoa(lastN))
	}
	return c.tmux(ctx, "capture-pane", target, args...)
}

// ListSessions returns the names of all tmux sessions on the server. An
// empty result (with no error) is returned if the server isn't running.
func (c *Client) ListSessions(ctx context.Context) ([]string, error) {
	out, err := c.tmux(ctx, "list-sessions", "", "list-sessions", "-F", "#{session_name}")
	if err != nil {
		if te, ok := err.(*TmuxError); ok && te.Stderr == "" {
			return nil, nil
		}
		return nil, err
	}
	return splitLines(out), nil
}

// ListWindows returns the window names of session.
func (c *Client) ListWindows(ctx context.Context, session string) ([]string, error) {
	out, err := c.tmux(ctx, "list-windows", session, "list-windows", "-t", session, "-F", "#{window_name}")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// NewWindow creates a window named windowName in session. If command is
// non-empty it is run in the new window instead of the default shell.
func (c *Client) NewWindow(ctx context.Context, session, windowName, command string) error {
	args := []string{"new-window", "-t", session, "-n", windowName}
	if command != "" {
		args = append(args, command)
	}
	_, err := c.tmux(ctx, "new-window", session, args...)
	return err
}

// KillWindow destroys a single window within a session.
func (c *Client) KillWindow(ctx context.Context, session, windowName string) error {
	target := session + ":" + windowName
	_, err := c.tmux(ctx, "kill-window", session, "kill-window", "-t", target)
	return err
}

// SetEnvironment sets a session-scoped environment variable. This
// Open Question (b), whether this propagates into windows opened after
// the call depends on the tmux version; callers that need certainty
// should also `export` the value inside the target window's shell.
func (c *Client) SetEnvironment(ctx context.Context, session, key, value string) error {
	_, err := c.tmux(ctx, "set-environment", session, "set-environment", "-t", session, key, value)
	return err
}

// AttachSession hands the terminal to tmux, blocking until the user
// detaches. This is surfaced only through the CLI `az attach` path
// never called from the Coordinator or a monitor.
func (c *Client) AttachSession(ctx context.Context, name string) error {
	_, err := c.tmux(ctx, "attach-session", name, "attach-session", "-t", name)
	return err
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}
