package monitor

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/azedarach/azedarach/internal/model"
)

// WindowLister is the seam a DevServerMonitor depends on instead of
// *mux.Client directly. mux.Client satisfies this directly.
type WindowLister interface {
	ListWindows(ctx context.Context, session string) ([]string, error)
}

// DialProbe reports whether something is listening on 127.0.0.1:port,
// the liveness half of spec §4.8's "(b) TCP probe on the allocated
// port" — the inverse check from port.Allocator's bind-to-see-if-free
// probe, since here we want to see if a server is actually up.
func DialProbe(port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), 300*time.Millisecond)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// DevServerMonitor is a per-(task,name) watcher combining window
// existence and a TCP liveness probe into a DevServerStatus.
type DevServerMonitor struct {
	Key          model.Key
	Session      string
	WindowName   string
	Port         int
	PollInterval time.Duration
	FailureBudget int

	windows WindowLister
	probe   func(int) bool
	events  chan<- Event

	consecutiveFailures int
	lastStatus          model.DevServerStatus
}

// NewDevServerMonitor returns a DevServerMonitor with spec-documented
// defaults for any zero-valued tuning field.
func NewDevServerMonitor(key model.Key, session, windowName string, port int, windows WindowLister, events chan<- Event) *DevServerMonitor {
	return &DevServerMonitor{
		Key:           key,
		Session:       session,
		WindowName:    windowName,
		Port:          port,
		PollInterval:  DefaultPollInterval,
		FailureBudget: DefaultFailureBudget,
		windows:       windows,
		probe:         DialProbe,
		events:        events,
		lastStatus:    model.DevServerStarting,
	}
}

// Run executes the monitor's poll loop until ctx is cancelled, with the
// same crash/restart contract as SessionMonitor.Run.
func (m *DevServerMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *DevServerMonitor) poll(ctx context.Context) {
	windows, err := m.windows.ListWindows(ctx, m.Session)
	if err != nil {
		m.consecutiveFailures++
		if m.consecutiveFailures >= m.FailureBudget {
			m.emit(Event{Kind: EventServerMarkedUnknown, TaskID: m.Key.TaskID, Key: m.Key, Reason: "window probe failed", At: time.Now()})
		}
		return
	}
	m.consecutiveFailures = 0

	if !contains(windows, m.WindowName) {
		m.transition(model.DevServerStopped)
		return
	}
	if m.probe(m.Port) {
		m.transition(model.DevServerRunning)
	} else {
		m.transition(model.DevServerError)
	}
}

func (m *DevServerMonitor) transition(status model.DevServerStatus) {
	if status == m.lastStatus {
		return
	}
	m.lastStatus = status
	m.emit(Event{Kind: EventServerStatusChanged, TaskID: m.Key.TaskID, Key: m.Key, Status: status, At: time.Now()})
}

func (m *DevServerMonitor) emit(e Event) {
	if m.events == nil {
		return
	}
	m.events <- e
}

func contains(ss []string, target string) bool {
	for _, s := range ss {
		if s == target {
			return true
		}
	}
	return false
}
