// Package issue is a typed wrapper
// over the external issue tool's CLI (`bd`). It speaks only JSON in and
// structs out, tolerating additional unknown fields the way the rest of this
// requires, and never touches `.beads/` directly — grounded in the
// teacher project's own rule that bd is accessed exclusively through its
// CLI (internal/doctor/beads_check.go shells out to `bd`, never reads
// the database file).
package issue

import "time"

// Type enumerates the issue type values.
type Type string

const (
	TypeTask    Type = "task"
	TypeBug     Type = "bug"
	TypeFeature Type = "feature"
	TypeEpic    Type = "epic"
	TypeChore   Type = "chore"
)

// Status enumerates the status values.
type Status string

const (
	StatusBacklog    Status = "backlog"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusDone       Status = "done"
)

// Priority enumerates priority values P0 (highest) through P4.
type Priority string

const (
	P0 Priority = "P0"
	P1 Priority = "P1"
	P2 Priority = "P2"
	P3 Priority = "P3"
	P4 Priority = "P4"
)

// Task is the normalized projection of one issue-tool record, per
// the issue tool's JSON schema. Additional fields it emits are tolerated via
// json.Unmarshal's default unknown-field behavior — no strict decoder is
// used anywhere in this package.
type Task struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Design      string    `json:"design,omitempty"`
	Type        Type      `json:"type"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`
	ParentID    string    `json:"parent_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Attachments []string  `json:"attachments,omitempty"`
}
