// Package coordinator implements the Coordinator (spec §4.13): the
// single writer holding authoritative Session/DevServer/Task state,
// serialising every mutation through one inbox channel so the component
// needs no mutex on its own state (spec §5's "single-writer" shared
// resource policy). Grounded on the teacher project's message-passing
// style (internal/mail, internal/hooks) generalized into a single
// actor loop per spec.md §9's design note, replacing the source's
// reactive-atom UI state with immutable, monotonically versioned
// snapshots published on a broadcast channel.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/azedarach/azedarach/internal/detector"
	"github.com/azedarach/azedarach/internal/devserver"
	"github.com/azedarach/azedarach/internal/errs"
	"github.com/azedarach/azedarach/internal/issue"
	"github.com/azedarach/azedarach/internal/lifecycle"
	"github.com/azedarach/azedarach/internal/merge"
	"github.com/azedarach/azedarach/internal/model"
	"github.com/azedarach/azedarach/internal/monitor"
	"github.com/azedarach/azedarach/internal/notify"
)

// Lifecycle is the subset of *lifecycle.Manager the Coordinator drives.
type Lifecycle interface {
	CreateAndStart(ctx context.Context, opts lifecycle.Options) (model.Session, error)
	Attach(ctx context.Context, s model.Session) error
	Pause(ctx context.Context, s model.Session) error
	Complete(ctx context.Context, s model.Session, mode lifecycle.CompleteMode, reason string) error
	Teardown(ctx context.Context, s model.Session) error
	WorktreePath(taskID string) string
	BranchName(taskID string) string
}

// MergeRunner is the subset of *merge.Protocol the Coordinator drives
// per active session (the Coordinator constructs one bound to each
// session's worktree via MergeFactory).
type MergeRunner interface {
	UpdateFromBase(ctx context.Context) (merge.Result, error)
}

// DevServers is the subset of *devserver.Manager the Coordinator drives.
// devserver.MonitorStarter runs the opposite direction (devserver calls
// back into the Coordinator), so importing the concrete option type here
// carries no cycle risk.
type DevServers interface {
	Start(ctx context.Context, opts devserver.StartOptions) (model.DevServer, error)
	Stop(ctx context.Context, taskID, serverName string) error
	Toggle(ctx context.Context, opts devserver.StartOptions) (model.DevServer, error)
	Get(taskID, serverName string) (model.DevServer, bool)
}

// Issues is the subset of *issue.Client the Coordinator uses for its
// periodic refresh tick.
type Issues interface {
	ListAll(ctx context.Context) ([]issue.Task, error)
}

// PaneCaptureMux is what the Coordinator needs to build monitors.
type PaneCaptureMux interface {
	monitor.PaneCapturer
	monitor.WindowLister
}

// Coordinator is the single-writer hub. Construct with New and start its
// loop with Run.
type Coordinator struct {
	lifecycle  Lifecycle
	devServers DevServers
	issues     Issues
	mux        PaneCaptureMux
	supervisor *monitor.Supervisor
	mergeFor   func(taskID string, s model.Session) MergeRunner

	inbox         chan message
	monitorEvents chan monitor.Event
	toasts        chan errs.Toast

	box *snapshotBox

	// state and reserved are touched only from the loop goroutine
	// (inside a message's apply), so neither needs a mutex.
	state    state
	reserved map[string]bool
}

type state struct {
	tasks          []issue.Task
	sessions       map[string]model.Session
	devServers     map[model.Key]model.DevServer
	currentProject string
}

// New returns a Coordinator ready for Run to be called once.
func New(lc Lifecycle, ds DevServers, issues Issues, mux PaneCaptureMux, mergeFor func(taskID string, s model.Session) MergeRunner) *Coordinator {
	c := &Coordinator{
		lifecycle:     lc,
		devServers:    ds,
		issues:        issues,
		mux:           mux,
		mergeFor:      mergeFor,
		inbox:         make(chan message, 64),
		monitorEvents: make(chan monitor.Event, 256),
		toasts:        make(chan errs.Toast, 64),
		box:           newSnapshotBox(),
		state: state{
			sessions:   map[string]model.Session{},
			devServers: map[model.Key]model.DevServer{},
		},
		reserved: map[string]bool{},
	}
	c.supervisor = monitor.NewSupervisor(c.monitorEvents)
	c.publishLocked()
	return c
}

// Run executes the Coordinator's message loop until ctx is cancelled.
// It also starts the monitor-event bridge and the periodic issue-refresh
// ticker. Run blocks; call it in its own goroutine.
func (c *Coordinator) Run(ctx context.Context, issueRefreshInterval time.Duration) {
	go c.bridgeMonitorEvents(ctx)

	var ticker *time.Ticker
	var tickC <-chan time.Time
	if issueRefreshInterval > 0 {
		ticker = time.NewTicker(issueRefreshInterval)
		tickC = ticker.C
		defer ticker.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			c.supervisor.Shutdown(5 * time.Second)
			return
		case msg := <-c.inbox:
			msg.apply(c)
		case <-tickC:
			go func() {
				_, _ = c.RefreshIssues(ctx)
			}()
			go c.pollNotifications(ctx)
		}
	}
}

// bridgeMonitorEvents is the tiny typed adapter spec.md §9 calls for:
// it converts monitor.Event into inbox messages so every mutation,
// whether from a UI command or a monitor observation, funnels through
// the same serialised loop.
func (c *Coordinator) bridgeMonitorEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-c.monitorEvents:
			select {
			case c.inbox <- &monitorEventMsg{event: e}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// pollNotifications drains any pending "az notify" signal file for each
// currently known session and surfaces it as a toast — the consuming
// half of the hook-notification mechanism (cmd/az's notify command is
// the writing half). It never classifies session state from the
// signal's event string; detector.State stays the only place state
// classification happens, so this only informs the UI.
func (c *Coordinator) pollNotifications(ctx context.Context) {
	snap, _ := c.Latest()
	for taskID := range snap.Sessions {
		sig, ok, err := notify.Read(taskID)
		if err != nil || !ok {
			continue
		}
		select {
		case c.inbox <- &notifySignalMsg{taskID: taskID, signal: sig}:
		case <-ctx.Done():
			return
		}
	}
}

// Toasts returns the channel of user-facing notifications published
// alongside command results, per spec §4.13's "side-effects ... are
// separate published events."
func (c *Coordinator) Toasts() <-chan errs.Toast {
	return c.toasts
}

func (c *Coordinator) publishToast(sev errs.Severity, format string, args ...any) {
	t := errs.Toast{Severity: sev, Message: fmt.Sprintf(format, args...)}
	select {
	case c.toasts <- t:
	default:
	}
}

// Snapshot is the immutable, monotonically versioned view the UI reads.
type Snapshot struct {
	Version        uint64
	Tasks          []issue.Task
	Sessions       map[string]model.Session
	DevServers     map[model.Key]model.DevServer
	CurrentProject string
}

// Latest returns the most recently published snapshot and a channel
// that closes when a newer one is available — never mutated in place.
func (c *Coordinator) Latest() (*Snapshot, <-chan struct{}) {
	return c.box.latest()
}

// publishLocked snapshots c.state and publishes it. Callers must hold
// no other lock; state itself is only ever touched from the loop
// goroutine (message.apply), so no mutex is needed around state reads
// here either — this method IS always called from that goroutine.
func (c *Coordinator) publishLocked() {
	snap := &Snapshot{
		Tasks:          append([]issue.Task(nil), c.state.tasks...),
		Sessions:       make(map[string]model.Session, len(c.state.sessions)),
		DevServers:     make(map[model.Key]model.DevServer, len(c.state.devServers)),
		CurrentProject: c.state.currentProject,
	}
	for k, v := range c.state.sessions {
		snap.Sessions[k] = v
	}
	for k, v := range c.state.devServers {
		snap.DevServers[k] = v
	}
	c.box.set(snap)
}

// RegisterSession implements lifecycle.Registrar. It is safe to call
// from any goroutine: the actual mutation is serialised through the
// inbox.
func (c *Coordinator) RegisterSession(s model.Session) error {
	reply := make(chan error, 1)
	c.inbox <- &registerSessionMsg{session: s, reply: reply}
	return <-reply
}

// StartSessionMonitor implements lifecycle.Registrar by delegating
// directly to the Monitors Supervisor — monitor lifecycle is not part
// of the Coordinator's own authoritative state, so it doesn't need to
// go through the inbox.
func (c *Coordinator) StartSessionMonitor(taskID, target, worktreePath string) error {
	return c.supervisor.Start(monitor.SessionKey(taskID), func(ctx context.Context) error {
		m := monitor.NewSessionMonitor(taskID, target, worktreePath, c.mux, c.monitorEvents)
		return m.Run(ctx)
	})
}

// StartDevServerMonitor implements devserver.MonitorStarter.
func (c *Coordinator) StartDevServerMonitor(key model.Key, session, windowName string, port int) error {
	return c.supervisor.Start(monitor.DevServerKey(key.TaskID, key.Name), func(ctx context.Context) error {
		m := monitor.NewDevServerMonitor(key, session, windowName, port, c.mux, c.monitorEvents)
		return m.Run(ctx)
	})
}

// StopDevServerMonitor implements devserver.MonitorStarter.
func (c *Coordinator) StopDevServerMonitor(key model.Key) {
	c.supervisor.Stop(monitor.DevServerKey(key.TaskID, key.Name))
}

// RecoverSessions rebuilds Session records for live multiplexer sessions
// discovered at startup, the session-side counterpart to
// devserver.Manager.RecoverFromScan. candidateIDs are session names
// observed via Mux.ListSessions; a candidate is only adopted once its
// "main" window confirms it's an az-managed task session rather than
// some unrelated tmux session, and only if no Session is already
// registered for that task id. Run once, from the Application
// Supervisor, alongside the dev-server recovery scan.
func (c *Coordinator) RecoverSessions(ctx context.Context, candidateIDs []string) {
	var found []model.Session
	for _, taskID := range candidateIDs {
		if _, ok := c.lookupSession(taskID); ok {
			continue
		}
		windows, err := c.mux.ListWindows(ctx, taskID)
		if err != nil {
			continue
		}
		hasMain := false
		for _, w := range windows {
			if w == "main" {
				hasMain = true
				break
			}
		}
		if !hasMain {
			continue
		}
		found = append(found, model.Session{
			TaskID:         taskID,
			WorktreePath:   c.lifecycle.WorktreePath(taskID),
			MuxSessionName: taskID,
			Branch:         c.lifecycle.BranchName(taskID),
			State:          detector.StateUnknown,
			StartedAt:      time.Now(),
		})
	}
	if len(found) == 0 {
		return
	}
	reply := make(chan error, 1)
	c.inbox <- &recoverSessionsMsg{sessions: found, reply: reply}
	<-reply
}
