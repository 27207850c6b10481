package monitor

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/azedarach/azedarach/internal/detector"
)

// PaneCapturer is the seam a SessionMonitor depends on instead of
// *mux.Client directly, so tests can inject a fake pane feed. mux.Client
// satisfies this directly.
type PaneCapturer interface {
	CapturePane(ctx context.Context, target string, lastN int) (string, error)
}

// DefaultPollInterval is the Session Monitor's default tick (spec §4.7).
const DefaultPollInterval = 500 * time.Millisecond

// DefaultFailureBudget is the number of consecutive capture failures
// tolerated before a monitor emits SessionMarkedUnknown (spec §4.7 step 5).
const DefaultFailureBudget = 3

// DefaultStaleCheckEvery is how often (in ticks) the monitor additionally
// verifies the worktree still exists on disk, per SPEC_FULL.md's
// stale-session detection supplement.
const DefaultStaleCheckEvery = 20

// BackoffMultiplier scales the poll interval after the failure budget is
// exhausted, up to BackoffCap, so a dead session doesn't hammer tmux.
const BackoffMultiplier = 2
const BackoffCap = 10 * time.Second

// SessionMonitor is one long-lived watcher per active Session. It
// captures pane output on a timer, classifies it via the detector, and
// emits SessionStateChanged / SessionMarkedUnknown on the upstream
// channel. It never talks to the Coordinator directly.
type SessionMonitor struct {
	TaskID          string
	Target          string // tmux target, e.g. "az-az-1" or "az-az-1:main"
	WorktreePath    string
	PollInterval    time.Duration
	FailureBudget   int
	StaleCheckEvery int

	capture PaneCapturer
	events  chan<- Event
	statFn  func(string) error

	mu                   sync.Mutex
	lastState            detector.State
	lastSnippet          string
	consecutiveFailures  int
	tick                 int
	currentPollInterval  time.Duration
}

// NewSessionMonitor returns a SessionMonitor with spec-documented
// defaults filled in for any zero-valued tuning field.
func NewSessionMonitor(taskID, target, worktreePath string, capture PaneCapturer, events chan<- Event) *SessionMonitor {
	return &SessionMonitor{
		TaskID:          taskID,
		Target:          target,
		WorktreePath:    worktreePath,
		PollInterval:    DefaultPollInterval,
		FailureBudget:   DefaultFailureBudget,
		StaleCheckEvery: DefaultStaleCheckEvery,
		capture:         capture,
		events:          events,
		statFn:          defaultStat,
		lastState:       detector.StateIdle,
	}
}

func defaultStat(path string) error {
	_, err := os.Stat(path)
	return err
}

// Run executes the monitor's poll loop until ctx is cancelled. Returns
// nil on cooperative cancellation (the Supervisor does not restart a
// monitor that exits this way); any other return value is treated as a
// crash subject to the restart budget.
func (m *SessionMonitor) Run(ctx context.Context) error {
	m.currentPollInterval = m.PollInterval
	ticker := time.NewTicker(m.currentPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.poll(ctx)
			if interval := m.desiredInterval(); interval != m.currentPollInterval {
				m.currentPollInterval = interval
				ticker.Reset(interval)
			}
		}
	}
}

func (m *SessionMonitor) desiredInterval() time.Duration {
	m.mu.Lock()
	failures := m.consecutiveFailures
	m.mu.Unlock()
	if failures == 0 {
		return m.PollInterval
	}
	backoff := m.PollInterval
	for i := 0; i < failures && backoff < BackoffCap; i++ {
		backoff *= BackoffMultiplier
	}
	if backoff > BackoffCap {
		backoff = BackoffCap
	}
	return backoff
}

func (m *SessionMonitor) poll(ctx context.Context) {
	m.mu.Lock()
	m.tick++
	tick := m.tick
	m.mu.Unlock()

	if m.StaleCheckEvery > 0 && tick%m.StaleCheckEvery == 0 {
		if err := m.statFn(m.WorktreePath); err != nil && os.IsNotExist(err) {
			m.emit(Event{Kind: EventSessionMarkedUnknown, TaskID: m.TaskID, Reason: "worktree missing", At: time.Now()})
			return
		}
	}

	out, err := m.capture.CapturePane(ctx, m.Target, detector.TailLines)
	if err != nil {
		m.mu.Lock()
		m.consecutiveFailures++
		failures := m.consecutiveFailures
		m.mu.Unlock()
		if failures >= m.FailureBudget {
			m.emit(Event{Kind: EventSessionMarkedUnknown, TaskID: m.TaskID, Reason: "capture failed", At: time.Now()})
		}
		return
	}

	m.mu.Lock()
	m.consecutiveFailures = 0
	state := detector.Classify(out)
	snippet := strings.TrimSpace(out)
	changed := state != m.lastState || snippet != m.lastSnippet
	m.lastState = state
	m.lastSnippet = snippet
	m.mu.Unlock()

	if changed {
		m.emit(Event{Kind: EventSessionStateChanged, TaskID: m.TaskID, State: state, Snippet: snippet, At: time.Now()})
	}
}

func (m *SessionMonitor) emit(e Event) {
	if m.events == nil {
		return
	}
	m.events <- e
}
