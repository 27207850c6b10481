// Package devserver implements the Dev Server Manager (spec §4.12):
// idempotent start/stop/restart/toggle of per-task dev servers,
// coordinating with the Port Allocator and the multiplexer, plus
// recovery-from-scan to rebuild state after a restart. Grounded on the
// teacher project's polecat.SessionManager window lifecycle, generalized
// from a single fixed assistant window into N named, port-bound windows
// per session.
package devserver

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/azedarach/azedarach/internal/model"
	"github.com/azedarach/azedarach/internal/port"
)

// Mux is the subset of mux.Client the Dev Server Manager needs.
type Mux interface {
	HasSession(ctx context.Context, name string) (bool, error)
	NewSession(ctx context.Context, name, workdir string) error
	NewWindow(ctx context.Context, session, windowName, command string) error
	KillWindow(ctx context.Context, session, windowName string) error
	SendKeys(ctx context.Context, target, keystring string, submitEnter bool) error
	SetEnvironment(ctx context.Context, session, key, value string) error
	ListWindows(ctx context.Context, session string) ([]string, error)
}

// Ports is the subset of port.Allocator the Dev Server Manager needs.
type Ports interface {
	Allocate(taskID, serverName string) (int, error)
	Release(taskID, serverName string)
	Get(taskID, serverName string) (int, bool)
}

// MonitorStarter is the narrow surface the manager uses to register a
// Dev Server Monitor with the Monitors Supervisor, kept as an interface
// so devserver never imports coordinator.
type MonitorStarter interface {
	StartDevServerMonitor(key model.Key, session, windowName string, port int) error
	StopDevServerMonitor(key model.Key)
}

// Manager holds the map from (taskID, serverName) to DevServer and
// drives its start/stop/restart lifecycle.
type Manager struct {
	mux      Mux
	ports    Ports
	monitors MonitorStarter

	mu      sync.Mutex
	servers map[model.Key]*model.DevServer
}

// New returns an empty Dev Server Manager.
func New(mux Mux, ports Ports, monitors MonitorStarter) *Manager {
	return &Manager{
		mux:      mux,
		ports:    ports,
		monitors: monitors,
		servers:  map[model.Key]*model.DevServer{},
	}
}

// StartOptions parameterizes Start.
type StartOptions struct {
	TaskID      string
	ServerName  string
	Command     string // template; {{PORT}} is substituted with the allocated port
	SessionWorkdir string // used only if the multiplexer session doesn't exist yet
	EnvVar      string // env var the command expects its port injected as
}

// Start is idempotent: if the server is already running, it returns the
// current record unchanged. Otherwise it allocates a port, opens a
// dev-{name} window (creating the multiplexer session first if
// missing), injects the port via set-environment and an in-window
// export, and registers a Dev Server Monitor.
func (m *Manager) Start(ctx context.Context, opts StartOptions) (model.DevServer, error) {
	key := model.Key{TaskID: opts.TaskID, Name: opts.ServerName}

	m.mu.Lock()
	if existing, ok := m.servers[key]; ok && existing.Status == model.DevServerRunning {
		rec := *existing
		m.mu.Unlock()
		return rec, nil
	}
	m.mu.Unlock()

	port, err := m.ports.Allocate(opts.TaskID, opts.ServerName)
	if err != nil {
		return model.DevServer{}, fmt.Errorf("devserver start %s/%s: allocate port: %w", opts.TaskID, opts.ServerName, err)
	}

	windowName := model.WindowName(opts.ServerName)
	rec := &model.DevServer{
		TaskID:     opts.TaskID,
		Name:       opts.ServerName,
		Command:    opts.Command,
		Port:       port,
		Status:     model.DevServerStarting,
		WindowName: windowName,
		StartedAt:  time.Now(),
	}
	m.mu.Lock()
	m.servers[key] = rec
	m.mu.Unlock()

	hasSession, err := m.mux.HasSession(ctx, opts.TaskID)
	if err != nil {
		return m.fail(key, fmt.Errorf("checking session: %w", err))
	}
	if !hasSession {
		if err := m.mux.NewSession(ctx, opts.TaskID, opts.SessionWorkdir); err != nil {
			return m.fail(key, fmt.Errorf("creating session: %w", err))
		}
	}

	envVar := opts.EnvVar
	if envVar == "" {
		envVar = "PORT"
	}
	portStr := strconv.Itoa(port)
	// set-environment may not propagate to a not-yet-created window on
	// every tmux version (spec §9 Open Question (b)) — the command
	// itself is also prefixed with an in-shell export as a fallback.
	_ = m.mux.SetEnvironment(ctx, opts.TaskID, envVar, portStr)
	command := strings.ReplaceAll(opts.Command, "{{PORT}}", portStr)
	windowCmd := fmt.Sprintf("export %s=%s; %s", envVar, portStr, command)

	if err := m.mux.NewWindow(ctx, opts.TaskID, windowName, windowCmd); err != nil {
		return m.fail(key, fmt.Errorf("creating window: %w", err))
	}

	if m.monitors != nil {
		if err := m.monitors.StartDevServerMonitor(key, opts.TaskID, windowName, port); err != nil {
			return m.fail(key, fmt.Errorf("starting monitor: %w", err))
		}
	}

	m.mu.Lock()
	rec.Status = model.DevServerRunning
	out := *rec
	m.mu.Unlock()
	return out, nil
}

func (m *Manager) fail(key model.Key, cause error) (model.DevServer, error) {
	m.mu.Lock()
	rec, ok := m.servers[key]
	if ok {
		rec.Status = model.DevServerError
		rec.LastError = cause.Error()
	}
	m.mu.Unlock()
	if ok {
		return *rec, cause
	}
	return model.DevServer{}, cause
}

// Stop sends an interrupt to the server's window, waits briefly, kills
// the window, releases the port, and stops its monitor. The record is
// retained with status=stopped per spec §3's DevServer lifecycle.
func (m *Manager) Stop(ctx context.Context, taskID, serverName string) error {
	key := model.Key{TaskID: taskID, Name: serverName}
	m.mu.Lock()
	rec, ok := m.servers[key]
	m.mu.Unlock()
	if !ok {
		return nil
	}

	_ = m.mux.SendKeys(ctx, taskID+":"+rec.WindowName, "C-c", false)
	time.Sleep(200 * time.Millisecond)
	_ = m.mux.KillWindow(ctx, taskID, rec.WindowName)
	m.ports.Release(taskID, serverName)
	if m.monitors != nil {
		m.monitors.StopDevServerMonitor(key)
	}

	m.mu.Lock()
	rec.Status = model.DevServerStopped
	rec.Port = 0
	m.mu.Unlock()
	return nil
}

// Restart stops then starts a server with the same parameters.
func (m *Manager) Restart(ctx context.Context, opts StartOptions) (model.DevServer, error) {
	if err := m.Stop(ctx, opts.TaskID, opts.ServerName); err != nil {
		return model.DevServer{}, err
	}
	return m.Start(ctx, opts)
}

// Toggle starts a stopped server or stops a running one.
func (m *Manager) Toggle(ctx context.Context, opts StartOptions) (model.DevServer, error) {
	key := model.Key{TaskID: opts.TaskID, Name: opts.ServerName}
	m.mu.Lock()
	rec, ok := m.servers[key]
	m.mu.Unlock()
	if ok && rec.Status == model.DevServerRunning {
		err := m.Stop(ctx, opts.TaskID, opts.ServerName)
		m.mu.Lock()
		out := *m.servers[key]
		m.mu.Unlock()
		return out, err
	}
	return m.Start(ctx, opts)
}

// Get returns the current record for (taskID, serverName), if any.
func (m *Manager) Get(taskID, serverName string) (model.DevServer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.servers[model.Key{TaskID: taskID, Name: serverName}]
	if !ok {
		return model.DevServer{}, false
	}
	return *rec, true
}

// StopAll stops every dev server owned by taskID, returning one error
// per failed stop (errors from SendKeys/KillWindow inside Stop are
// already swallowed as best-effort, so this mainly reports Stop's own
// failures). The result is nil when every stop succeeds; the []error
// shape matches the Lifecycle Manager's teardown aggregation.
func (m *Manager) StopAll(ctx context.Context, taskID string) []error {
	m.mu.Lock()
	var keys []model.Key
	for k := range m.servers {
		if k.TaskID == taskID {
			keys = append(keys, k)
		}
	}
	m.mu.Unlock()

	var errs []error
	for _, k := range keys {
		if err := m.Stop(ctx, k.TaskID, k.Name); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// RecoverFromScan rebuilds DevServer records and port reservations by
// listing existing dev-* windows across known task sessions, taking
// server names from the window names and ports from portOf — spec
// §4.12's recover-from-scan, run once on coordinator boot. A window
// whose port portOf cannot report is still recorded as running, with
// Port 0 and no reservation. Reservations are rebuilt only when the
// Ports value has a Rebuild method (port.Allocator does).
func (m *Manager) RecoverFromScan(ctx context.Context, taskIDs []string, portOf func(ctx context.Context, session, window string) (int, bool)) {
	var observed []port.Reservation
	for _, taskID := range taskIDs {
		windows, err := m.mux.ListWindows(ctx, taskID)
		if err != nil {
			continue
		}
		for _, w := range windows {
			if !strings.HasPrefix(w, "dev-") {
				continue
			}
			name := strings.TrimPrefix(w, "dev-")
			// An unknown port is recorded as 0; the window is still adopted.
			p, ok := portOf(ctx, taskID, w)
			if ok {
				observed = append(observed, port.Reservation{Key: port.Key{TaskID: taskID, ServerName: name}, Port: p})
			}
			key := model.Key{TaskID: taskID, Name: name}
			m.mu.Lock()
			m.servers[key] = &model.DevServer{
				TaskID:     taskID,
				Name:       name,
				Port:       p,
				Status:     model.DevServerRunning,
				WindowName: w,
				StartedAt:  time.Now(),
			}
			m.mu.Unlock()
		}
	}
	if r, ok := m.ports.(interface{ Rebuild([]port.Reservation) }); ok {
		r.Rebuild(observed)
	}
}
