package coordinator

import (
	"context"

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

// message is the sum type every inbox entry implements, whether it
// originated from a UI command, a monitor event, or a background
// worker reporting back — Run's select loop treats them identically,
// applying each one serially.
type message interface {
	apply(c *Coordinator)
}

// Result is returned by the Coordinator's public command methods.
type Result struct {
	Err       error
	Session   model.Session
	DevServer model.DevServer
	Merge     merge.Result
}

// --- registerSessionMsg (lifecycle.Registrar.RegisterSession) ---------

type registerSessionMsg struct {
	session model.Session
	reply   chan error
}

func (m *registerSessionMsg) apply(c *Coordinator) {
	taskID := m.session.TaskID
	if _, exists := c.state.sessions[taskID]; exists {
		m.reply <- &errs.Conflict{Reason: "session already exists for " + taskID}
		return
	}
	c.state.sessions[taskID] = m.session
	delete(c.reserved, taskID)
	c.publishLocked()
	m.reply <- nil
}

// --- notify signal consumption ------------------------------------------

type notifySignalMsg struct {
	taskID string
	signal notify.Signal
}

func (m *notifySignalMsg) apply(c *Coordinator) {
	if _, ok := c.state.sessions[m.taskID]; !ok {
		return
	}
	c.publishToast(errs.SeverityWarning, "%s: %s", m.taskID, m.signal.Event)
}

// --- RecoverSessions -----------------------------------------------------

type recoverSessionsMsg struct {
	sessions []model.Session
	reply    chan error
}

func (m *recoverSessionsMsg) apply(c *Coordinator) {
	for _, s := range m.sessions {
		if _, exists := c.state.sessions[s.TaskID]; exists {
			continue
		}
		c.state.sessions[s.TaskID] = s
		if err := c.StartSessionMonitor(s.TaskID, s.TaskID+":main", s.WorktreePath); err != nil {
			c.publishToast(errs.SeverityWarning, "recover session %s: %v", s.TaskID, err)
		}
	}
	c.publishLocked()
	m.reply <- nil
}

// --- StartSession -------------------------------------------------------

type startSessionMsg struct {
	opts  lifecycle.Options
	reply chan Result
}

func (m *startSessionMsg) apply(c *Coordinator) {
	taskID := m.opts.TaskID
	if _, exists := c.state.sessions[taskID]; exists {
		m.reply <- Result{Err: &errs.Conflict{Reason: "session already exists for " + taskID}}
		return
	}
	if c.reserved[taskID] {
		m.reply <- Result{Err: &errs.Conflict{Reason: "a start is already in flight for " + taskID}}
		return
	}
	c.reserved[taskID] = true

	go func() {
		s, err := c.lifecycle.CreateAndStart(context.Background(), m.opts)
		c.inbox <- &startSessionDoneMsg{taskID: taskID, session: s, err: err, reply: m.reply}
	}()
}

type startSessionDoneMsg struct {
	taskID  string
	session model.Session
	err     error
	reply   chan Result
}

func (m *startSessionDoneMsg) apply(c *Coordinator) {
	delete(c.reserved, m.taskID)
	if m.err != nil {
		c.publishToast(errs.SeverityError, "start %s: %v", m.taskID, m.err)
		m.reply <- Result{Err: m.err}
		return
	}
	// RegisterSession (called from inside CreateAndStart) has already
	// installed the session into c.state.sessions by the time the
	// worker goroutine returns, since it blocks on the inbox round trip.
	m.reply <- Result{Session: c.state.sessions[m.taskID]}
}

// StartSession begins the create-and-start workflow for a task. It
// returns once the workflow finishes (success or failure); the
// Coordinator's own state is updated mid-flight via RegisterSession.
func (c *Coordinator) StartSession(opts lifecycle.Options) Result {
	reply := make(chan Result, 1)
	c.inbox <- &startSessionMsg{opts: opts, reply: reply}
	return <-reply
}

// --- Attach / Pause ------------------------------------------------------

type readSessionMsg struct {
	taskID string
	reply  chan sessionLookup
}

type sessionLookup struct {
	session model.Session
	ok      bool
}

func (m *readSessionMsg) apply(c *Coordinator) {
	s, ok := c.state.sessions[m.taskID]
	m.reply <- sessionLookup{session: s, ok: ok}
}

func (c *Coordinator) lookupSession(taskID string) (model.Session, bool) {
	reply := make(chan sessionLookup, 1)
	c.inbox <- &readSessionMsg{taskID: taskID, reply: reply}
	r := <-reply
	return r.session, r.ok
}

// Attach hands control to the session's multiplexer session, or reports
// lifecycle.BranchBehind if the branch needs updating from base first.
func (c *Coordinator) Attach(ctx context.Context, taskID string) error {
	s, ok := c.lookupSession(taskID)
	if !ok {
		return &errs.NotFound{Kind: "session", ID: taskID}
	}
	return c.lifecycle.Attach(ctx, s)
}

// Pause interrupts the session's assistant and optimistically marks it
// Paused; the Session Monitor's next poll is the source of truth.
func (c *Coordinator) Pause(ctx context.Context, taskID string) error {
	s, ok := c.lookupSession(taskID)
	if !ok {
		return &errs.NotFound{Kind: "session", ID: taskID}
	}
	if err := c.lifecycle.Pause(ctx, s); err != nil {
		return err
	}
	reply := make(chan error, 1)
	c.inbox <- &markPausedMsg{taskID: taskID, reply: reply}
	return <-reply
}

type markPausedMsg struct {
	taskID string
	reply  chan error
}

func (m *markPausedMsg) apply(c *Coordinator) {
	s, ok := c.state.sessions[m.taskID]
	if !ok {
		m.reply <- &errs.NotFound{Kind: "session", ID: m.taskID}
		return
	}
	s.State = detector.StatePaused
	c.state.sessions[m.taskID] = s
	c.publishLocked()
	m.reply <- nil
}

// --- Complete / Delete -----------------------------------------------

type completeMsg struct {
	taskID string
	mode   lifecycle.CompleteMode
	reason string
	reply  chan error
}

func (m *completeMsg) apply(c *Coordinator) {
	s, ok := c.state.sessions[m.taskID]
	if !ok {
		m.reply <- &errs.NotFound{Kind: "session", ID: m.taskID}
		return
	}
	go func() {
		err := c.lifecycle.Complete(context.Background(), s, m.mode, m.reason)
		c.inbox <- &removeSessionMsg{taskID: m.taskID, err: err, reply: m.reply}
	}()
}

type removeSessionMsg struct {
	taskID string
	err    error
	reply  chan error
}

func (m *removeSessionMsg) apply(c *Coordinator) {
	if m.err == nil {
		c.supervisor.Stop(monitor.SessionKey(m.taskID))
		delete(c.state.sessions, m.taskID)
		c.publishLocked()
	} else {
		c.publishToast(errs.SeverityError, "complete %s: %v", m.taskID, m.err)
	}
	m.reply <- m.err
}

// Complete closes the task's issue, optionally opens a PR, tears the
// session down, and removes it from the Coordinator's state.
func (c *Coordinator) Complete(mode lifecycle.CompleteMode, taskID, reason string) error {
	reply := make(chan error, 1)
	c.inbox <- &completeMsg{taskID: taskID, mode: mode, reason: reason, reply: reply}
	return <-reply
}

// Delete tears a session down without closing its issue (spec's delete
// operation: teardown only, no completion semantics).
func (c *Coordinator) Delete(taskID string) error {
	s, ok := c.lookupSession(taskID)
	if !ok {
		return &errs.NotFound{Kind: "session", ID: taskID}
	}
	reply := make(chan error, 1)
	go func() {
		err := c.lifecycle.Teardown(context.Background(), s)
		c.inbox <- &removeSessionMsg{taskID: taskID, err: err, reply: reply}
	}()
	return <-reply
}

// --- UpdateFromBase (Merge Protocol) ----------------------------------

type mergeResultMsg struct {
	taskID string
	result merge.Result
	err    error
	reply  chan Result
}

func (m *mergeResultMsg) apply(c *Coordinator) {
	if m.err != nil {
		c.publishToast(errs.SeverityError, "update-from-base %s: %v", m.taskID, m.err)
		m.reply <- Result{Err: m.err}
		return
	}
	if m.result.Kind == merge.ResultConflictsFound {
		c.publishToast(errs.SeverityWarning, "%s: conflicts in %d file(s), assistant spawned", m.taskID, len(m.result.Files))
	}
	m.reply <- Result{Merge: m.result}
}

// UpdateFromBase runs the Merge Protocol for taskID's session.
func (c *Coordinator) UpdateFromBase(ctx context.Context, taskID string) Result {
	s, ok := c.lookupSession(taskID)
	if !ok {
		return Result{Err: &errs.NotFound{Kind: "session", ID: taskID}}
	}
	runner := c.mergeFor(taskID, s)
	reply := make(chan Result, 1)
	go func() {
		res, err := runner.UpdateFromBase(ctx)
		c.inbox <- &mergeResultMsg{taskID: taskID, result: res, err: err, reply: reply}
	}()
	return <-reply
}

// --- Dev server commands ----------------------------------------------

type devServerResultMsg struct {
	taskID string
	name   string
	rec    model.DevServer
	err    error
	reply  chan Result
}

func (m *devServerResultMsg) apply(c *Coordinator) {
	key := model.Key{TaskID: m.taskID, Name: m.name}
	if m.err != nil {
		c.publishToast(errs.SeverityError, "dev server %s/%s: %v", m.taskID, m.name, m.err)
	} else {
		c.state.devServers[key] = m.rec
	}
	c.publishLocked()
	m.reply <- Result{DevServer: m.rec, Err: m.err}
}

// StartDevServer starts (or reuses) a dev server for a task.
func (c *Coordinator) StartDevServer(ctx context.Context, opts devserver.StartOptions) Result {
	reply := make(chan Result, 1)
	go func() {
		rec, err := c.devServers.Start(ctx, opts)
		c.inbox <- &devServerResultMsg{taskID: opts.TaskID, name: opts.ServerName, rec: rec, err: err, reply: reply}
	}()
	return <-reply
}

// StopDevServer stops a running dev server.
func (c *Coordinator) StopDevServer(ctx context.Context, taskID, name string) error {
	reply := make(chan Result, 1)
	go func() {
		err := c.devServers.Stop(ctx, taskID, name)
		rec, _ := lookupDevServerBlocking(c, taskID, name)
		if err == nil {
			rec.Status = model.DevServerStopped
		}
		c.inbox <- &devServerResultMsg{taskID: taskID, name: name, rec: rec, err: err, reply: reply}
	}()
	return (<-reply).Err
}

func lookupDevServerBlocking(c *Coordinator, taskID, name string) (model.DevServer, bool) {
	reply := make(chan devServerLookup, 1)
	c.inbox <- &readDevServerMsg{taskID: taskID, name: name, reply: reply}
	r := <-reply
	return r.rec, r.ok
}

type devServerLookup struct {
	rec model.DevServer
	ok  bool
}

type readDevServerMsg struct {
	taskID, name string
	reply        chan devServerLookup
}

func (m *readDevServerMsg) apply(c *Coordinator) {
	rec, ok := c.state.devServers[model.Key{TaskID: m.taskID, Name: m.name}]
	m.reply <- devServerLookup{rec: rec, ok: ok}
}

// ToggleDevServer starts a stopped dev server or stops a running one.
func (c *Coordinator) ToggleDevServer(ctx context.Context, opts devserver.StartOptions) Result {
	reply := make(chan Result, 1)
	go func() {
		rec, err := c.devServers.Toggle(ctx, opts)
		c.inbox <- &devServerResultMsg{taskID: opts.TaskID, name: opts.ServerName, rec: rec, err: err, reply: reply}
	}()
	return <-reply
}

// --- RefreshIssues ------------------------------------------------------

type refreshIssuesMsg struct {
	tasks []issue.Task
	err   error
	reply chan error
}

func (m *refreshIssuesMsg) apply(c *Coordinator) {
	if m.err != nil {
		c.publishToast(errs.SeverityWarning, "refresh issues: %v", m.err)
		m.reply <- m.err
		return
	}
	c.state.tasks = m.tasks
	c.publishLocked()
	m.reply <- nil
}

// RefreshIssues re-lists tasks from the issue tool and republishes the
// snapshot. Safe to call concurrently with everything else; the issue
// list call itself runs off the loop goroutine so a slow `bd` invocation
// never blocks command processing.
func (c *Coordinator) RefreshIssues(ctx context.Context) ([]issue.Task, error) {
	reply := make(chan error, 1)
	go func() {
		tasks, err := c.issues.ListAll(ctx)
		c.inbox <- &refreshIssuesMsg{tasks: tasks, err: err, reply: reply}
	}()
	err := <-reply
	if err != nil {
		return nil, err
	}
	snap, _ := c.Latest()
	return snap.Tasks, nil
}

// --- SwitchProject --------------------------------------------------

type switchProjectMsg struct {
	projectPath string
	reply       chan error
}

func (m *switchProjectMsg) apply(c *Coordinator) {
	c.state.currentProject = m.projectPath
	c.state.sessions = map[string]model.Session{}
	c.state.devServers = map[model.Key]model.DevServer{}
	c.state.tasks = nil
	c.publishLocked()
	m.reply <- nil
}

// SwitchProject changes the active project. The caller is responsible
// for having already stopped the previous project's supervised monitors
// before calling this, since the Coordinator's own state reset here only
// clears bookkeeping, not running monitor goroutines.
func (c *Coordinator) SwitchProject(projectPath string) error {
	reply := make(chan error, 1)
	c.inbox <- &switchProjectMsg{projectPath: projectPath, reply: reply}
	return <-reply
}

// --- monitor.Event bridge ------------------------------------------

// monitorEventMsg wraps a monitor.Event for application on the loop
// goroutine — the tiny typed translator spec.md §9 calls for between
// the Monitors Supervisor's vocabulary and the Coordinator's own state.
type monitorEventMsg struct {
	event monitor.Event
}

func (m *monitorEventMsg) apply(c *Coordinator) {
	e := m.event
	switch e.Kind {
	case monitor.EventSessionStateChanged:
		s, ok := c.state.sessions[e.TaskID]
		if !ok {
			return
		}
		s.State = e.State
		s.LastSnippet = e.Snippet
		c.state.sessions[e.TaskID] = s
		c.publishLocked()
	case monitor.EventSessionMarkedUnknown:
		s, ok := c.state.sessions[e.TaskID]
		if !ok {
			return
		}
		s.State = detector.StateUnknown
		s.Restarts = e.Restarts
		c.state.sessions[e.TaskID] = s
		c.publishToast(errs.SeverityWarning, "session %s: %s", e.TaskID, e.Reason)
		c.publishLocked()
	case monitor.EventServerStatusChanged:
		rec, ok := c.state.devServers[e.Key]
		if !ok {
			return
		}
		rec.Status = e.Status
		c.state.devServers[e.Key] = rec
		c.publishLocked()
	case monitor.EventServerMarkedUnknown:
		rec, ok := c.state.devServers[e.Key]
		if !ok {
			return
		}
		rec.Status = model.DevServerUnknown
		rec.Restarts = e.Restarts
		c.state.devServers[e.Key] = rec
		c.publishToast(errs.SeverityWarning, "dev server %s/%s: %s", e.Key.TaskID, e.Key.Name, e.Reason)
		c.publishLocked()
	}
}
