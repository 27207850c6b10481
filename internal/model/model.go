// Package model holds the data types that are shared
// across the coordinator, lifecycle manager, monitors, and dev-server
// manager, so none of those packages need to import each other just to
// talk about a Session or a DevServer.
package model

import (
	"time"

	"github.com/azedarach/azedarach/internal/detector"
)

// Session is the orchestration record keyed by task identifier
// At most one Session exists per task ID; the Coordinator is
// its only mutator.
type Session struct {
	TaskID         string
	WorktreePath   string
	MuxSessionName string
	Branch         string
	State          detector.State
	StartedAt      time.Time
	LastSnippet    string
	DevServers     []string // server names owned by this session
	Restarts       int      // monitor restarts observed (crash-budget telemetry)
}

// DevServerStatus enumerates the DevServer status values.
type DevServerStatus string

const (
	DevServerStopped  DevServerStatus = "stopped"
	DevServerStarting DevServerStatus = "starting"
	DevServerRunning  DevServerStatus = "running"
	DevServerError    DevServerStatus = "error"
	DevServerUnknown  DevServerStatus = "unknown"
)

// DevServer is a per-task, per-logical-name server record.
type DevServer struct {
	TaskID     string
	Name       string
	Command    string
	Port       int
	Status     DevServerStatus
	WindowName string
	LastError  string
	StartedAt  time.Time
	Restarts   int
}

// Key identifies a DevServer by its composite (task, name) key.
type Key struct {
	TaskID string
	Name   string
}

// WindowName returns the multiplexer window name for a dev server, per
// ("dev-{name}").
func WindowName(name string) string {
	return "dev-" + name
}
