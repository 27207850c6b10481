// Package monitor implements the Session Monitor, Dev Server Monitor,
// and their Monitors Supervisor: long-lived watchers that poll an
// external artefact (tmux pane output, a TCP port) and emit state-change
// events toward the Coordinator through a single upstream channel,
// grounded on the teacher project's polecat.SessionManager poll loop
// generalized into a restartable, supervised child under a crash budget.
package monitor

import (
	"time"

	"github.com/azedarach/azedarach/internal/detector"
	"github.com/azedarach/azedarach/internal/model"
)

// EventKind enumerates the kinds of message a monitor or its Supervisor
// publishes upstream (spec §4.13's "Events from monitors").
type EventKind string

const (
	EventSessionStateChanged  EventKind = "session_state_changed"
	EventSessionMarkedUnknown EventKind = "session_marked_unknown"
	EventServerStatusChanged  EventKind = "server_status_changed"
	EventServerMarkedUnknown  EventKind = "server_marked_unknown"
)

// Event is the single message type every monitor and the Supervisor
// publish upstream. The Coordinator's bridge adapts this into its own
// CoordinatorMsg vocabulary per spec.md §9 "monitor bridges" — monitors
// never call the Coordinator directly.
type Event struct {
	Kind     EventKind
	TaskID   string
	Key      model.Key // populated for ServerStatusChanged / ServerMarkedUnknown
	State    detector.State
	Status   model.DevServerStatus
	Snippet  string
	Reason   string
	Restarts int
	At       time.Time
}
