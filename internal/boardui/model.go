// Package boardui is the read-only Kanban snapshot viewer (spec.md's
// "Out of scope: the Kanban UI rendering" — specified only through the
// interface it consumes, which this package now implements): a
// bubbletea program that subscribes to a Coordinator's published
// Snapshot and renders tasks into status columns, annotated with any
// live session/dev-server state. It never mutates the Coordinator;
// every key binding here is a navigation or view toggle.
//
// Grounded on the teacher pack's board component
// (zjrosen-perles/internal/ui/board), generalized from BQL-query-backed
// columns to the four fixed issue.Status columns this workstation uses,
// and on its markdown renderer (zjrosen-perles/internal/ui/shared/markdown)
// for the task detail pane.
package boardui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/azedarach/azedarach/internal/coordinator"
	"github.com/azedarach/azedarach/internal/issue"
	"github.com/azedarach/azedarach/internal/model"
)

// Snapshots is the narrow interface this viewer consumes from a
// Coordinator: the latest published state plus a channel signaling a
// newer one is available.
type Snapshots interface {
	Latest() (*coordinator.Snapshot, <-chan struct{})
}

// columnDefs is the fixed column layout; spec.md's Task.status enum has
// exactly these four values.
var columnDefs = []struct {
	title  string
	status issue.Status
}{
	{"Backlog", issue.StatusBacklog},
	{"In Progress", issue.StatusInProgress},
	{"Review", issue.StatusReview},
	{"Done", issue.StatusDone},
}

// card is one rendered board entry: a task plus whatever live session
// state the Coordinator currently has for it.
type card struct {
	task       issue.Task
	session    model.Session
	hasSession bool
}

// Model is the bubbletea model driving the board.
type Model struct {
	snapshots Snapshots
	changed   <-chan struct{}

	width, height int

	columns  [][]card
	focused  int
	selected []int // selected row per column

	showDetail bool
	quitting   bool
}

// New builds a Model over snapshots. Call tea.NewProgram(m).Run() to
// drive it.
func New(snapshots Snapshots) Model {
	m := Model{
		snapshots: snapshots,
		selected:  make([]int, len(columnDefs)),
	}
	m.reload()
	return m
}

// watchMsg carries a freshly observed snapshot into Update.
type watchMsg struct {
	snap *coordinator.Snapshot
	next <-chan struct{}
}

// Init starts the board's watch loop.
func (m Model) Init() tea.Cmd {
	return m.waitForSnapshot()
}

func (m Model) waitForSnapshot() tea.Cmd {
	changed := m.changed
	snapshots := m.snapshots
	return func() tea.Msg {
		if changed != nil {
			<-changed
		}
		snap, next := snapshots.Latest()
		return watchMsg{snap: snap, next: next}
	}
}

// Update handles navigation keys and incoming snapshots.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case watchMsg:
		m.changed = msg.next
		m.rebuild(msg.snap)
		return m, m.waitForSnapshot()

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Left):
			if m.focused > 0 {
				m.focused--
			}
		case key.Matches(msg, keys.Right):
			if m.focused < len(m.columns)-1 {
				m.focused++
			}
		case key.Matches(msg, keys.Up):
			if m.selected[m.focused] > 0 {
				m.selected[m.focused]--
			}
		case key.Matches(msg, keys.Down):
			if m.selected[m.focused] < len(m.columns[m.focused])-1 {
				m.selected[m.focused]++
			}
		case key.Matches(msg, keys.Detail):
			m.showDetail = !m.showDetail
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) reload() {
	snap, next := m.snapshots.Latest()
	m.changed = next
	m.rebuild(snap)
}

func (m *Model) rebuild(snap *coordinator.Snapshot) {
	cols := make([][]card, len(columnDefs))
	if snap == nil {
		m.columns = cols
		return
	}
	for _, t := range snap.Tasks {
		for i, def := range columnDefs {
			if t.Status != def.status {
				continue
			}
			c := card{task: t}
			if s, ok := snap.Sessions[t.ID]; ok {
				c.hasSession = true
				c.session = s
			}
			cols[i] = append(cols[i], c)
		}
	}
	m.columns = cols
	for i := range m.selected {
		if m.selected[i] >= len(cols[i]) {
			m.selected[i] = maxInt(0, len(cols[i])-1)
		}
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Run creates and runs a bubbletea program for the board until the user
// quits or ctx is cancelled.
func Run(ctx context.Context, snapshots Snapshots) error {
	p := tea.NewProgram(New(snapshots), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil {
		return fmt.Errorf("board ui: %w", err)
	}
	return nil
}
