package issue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/azedarach/azedarach/internal/runner"
)

// DefaultTimeout is used for all bd invocations (no default is
// unspecified for the issue tool; 5s matches the mux/git default since
// bd, like git, is a local CLI with no network round trip in the common
// case).
const DefaultTimeout = 5 * time.Second

// Client is a typed wrapper over the `bd` CLI.
type Client struct {
	run     runner.Interface
	workdir string
	binary  string
}

// New returns a Client that runs bd from workdir.
func New(run runner.Interface, workdir string) *Client {
	return &Client{run: run, workdir: workdir, binary: "bd"}
}

func (c *Client) bd(ctx context.Context, op string, args ...string) (string, error) {
	res, err := c.run.Run(ctx, c.binary, args, c.workdir, DefaultTimeout)
	if err != nil {
		if err == runner.ErrTimeout {
			return "", &Error{Kind: KindToolError, Op: op, Err: err}
		}
		return "", &Error{Kind: KindToolError, Op: op, Stderr: res.Stderr, Err: err}
	}
	return res.Stdout, nil
}

func decodeTask(op, out string) (Task, error) {
	var t Task
	if err := json.Unmarshal([]byte(out), &t); err != nil {
		return Task{}, &Error{Kind: KindParseError, Op: op, Err: err}
	}
	return t, nil
}

func decodeTasks(op, out string) ([]Task, error) {
	var tasks []Task
	if err := json.Unmarshal([]byte(out), &tasks); err != nil {
		return nil, &Error{Kind: KindParseError, Op: op, Err: err}
	}
	return tasks, nil
}

// ListAll lists every task tracked by the issue tool.
func (c *Client) ListAll(ctx context.Context) ([]Task, error) {
	out, err := c.bd(ctx, "list", "list", "--json")
	if err != nil {
		return nil, err
	}
	return decodeTasks("list", out)
}

// Show fetches a single task by id.
func (c *Client) Show(ctx context.Context, id string) (Task, error) {
	out, err := c.bd(ctx, "show", "show", id, "--json")
	if err != nil {
		if ee, ok := err.(*Error); ok && ee.Stderr == "" {
			ee.Kind = KindNotFound
		}
		return Task{}, err
	}
	return decodeTask("show", out)
}

// Ready lists unblocked tasks (no open dependency) ready to start.
func (c *Client) Ready(ctx context.Context) ([]Task, error) {
	out, err := c.bd(ctx, "ready", "ready", "--json")
	if err != nil {
		return nil, err
	}
	return decodeTasks("ready", out)
}

// CreateOptions parameterizes Create.
type CreateOptions struct {
	Title    string
	Type     Type
	Priority Priority
	ParentID string
}

// Create creates a new task and returns its normalized projection.
func (c *Client) Create(ctx context.Context, opts CreateOptions) (Task, error) {
	if opts.Title == "" {
		return Task{}, &Error{Kind: KindInvalid, Op: "create", Err: errTitleRequired}
	}
	args := []string{"create", opts.Title, "--type", string(opts.Type), "--priority", string(opts.Priority), "--json"}
	if opts.ParentID != "" {
		args = append(args, "--parent", opts.ParentID)
	}
	out, err := c.bd(ctx, "create", args...)
	if err != nil {
		return Task{}, err
	}
	return decodeTask("create", out)
}

// UpdateStatus transitions a task to a new status.
func (c *Client) UpdateStatus(ctx context.Context, id string, status Status) error {
	_, err := c.bd(ctx, "update-status", "update", id, "--status", string(status))
	return err
}

// UpdateDetails updates a task's title/description/design notes. An
// empty field is left unchanged.
func (c *Client) UpdateDetails(ctx context.Context, id string, title, description, design string) error {
	args := []string{"update", id}
	if title != "" {
		args = append(args, "--title", title)
	}
	if description != "" {
		args = append(args, "--description", description)
	}
	if design != "" {
		args = append(args, "--design", design)
	}
	_, err := c.bd(ctx, "update-details", args...)
	return err
}

// Close closes a task with an explanatory reason.
func (c *Client) Close(ctx context.Context, id, reason string) error {
	_, err := c.bd(ctx, "close", "close", id, "--reason", reason)
	return err
}

// Delete permanently removes a task.
func (c *Client) Delete(ctx context.Context, id string) error {
	_, err := c.bd(ctx, "delete", "delete", id, "--force")
	return err
}

// Archive archives a task without deleting its history.
func (c *Client) Archive(ctx context.Context, id string) error {
	_, err := c.bd(ctx, "archive", "archive", id)
	return err
}

// Search performs a free-text search over tasks.
func (c *Client) Search(ctx context.Context, query string) ([]Task, error) {
	out, err := c.bd(ctx, "search", "search", query, "--json")
	if err != nil {
		return nil, err
	}
	return decodeTasks("search", out)
}

// DepKind enumerates dependency relation kinds between two tasks.
type DepKind string

const (
	DepBlocks  DepKind = "blocks"
	DepParent  DepKind = "parent-child"
	DepRelated DepKind = "related"
)

// DepAdd records a dependency relation between child and parent.
func (c *Client) DepAdd(ctx context.Context, child, parent string, kind DepKind) error {
	_, err := c.bd(ctx, "dep-add", "dep", "add", child, parent, "--type", string(kind))
	return err
}

// Sync pushes and pulls task state against the issue tool's shared store.
func (c *Client) Sync(ctx context.Context) error {
	_, err := c.bd(ctx, "sync", "sync")
	return err
}

// EpicWithChildren returns an epic task plus its child tasks.
func (c *Client) EpicWithChildren(ctx context.Context, epicID string) (Task, []Task, error) {
	epic, err := c.Show(ctx, epicID)
	if err != nil {
		return Task{}, nil, err
	}
	out, err := c.bd(ctx, "children", "children", epicID, "--json")
	if err != nil {
		return Task{}, nil, err
	}
	children, err := decodeTasks("children", out)
	if err != nil {
		return Task{}, nil, err
	}
	return epic, children, nil
}
