package boardui

import "github.com/charmbracelet/bubbles/key"

// keyMap is the board's read-only navigation keybindings. Grounded on
// the teacher pack's keys.Common (zjrosen-perles/internal/keys): the
// same up/down/left/right/quit vocabulary, trimmed to what a read-only
// viewer needs (no edit/confirm/escape bindings, since this board never
// mutates coordinator state).
type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Left   key.Binding
	Right  key.Binding
	Quit   key.Binding
	Detail key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "down"),
	),
	Left: key.NewBinding(
		key.WithKeys("h", "left"),
		key.WithHelp("h/←", "prev column"),
	),
	Right: key.NewBinding(
		key.WithKeys("l", "right"),
		key.WithHelp("l/→", "next column"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Detail: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "toggle detail"),
	),
}
