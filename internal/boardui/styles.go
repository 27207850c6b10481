package boardui

import "github.com/charmbracelet/lipgloss"

// Colors, kept deliberately few — this is a read-only status viewer, not
// a themed application. Grounded on the teacher pack's ui/styles package
// (zjrosen-perles/internal/ui/styles), trimmed to the handful this board
// actually uses.
var (
	colorMuted   = lipgloss.Color("240")
	colorAccent  = lipgloss.Color("63")
	colorOK      = lipgloss.Color("42")
	colorWarn    = lipgloss.Color("214")
	colorError   = lipgloss.Color("203")
	colorTitle   = lipgloss.Color("255")
)

var (
	columnTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorTitle)

	focusedBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorAccent).
				Padding(0, 1)

	blurredBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorMuted).
				Padding(0, 1)

	cardSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	cardStyle         = lipgloss.NewStyle()

	mutedStyle = lipgloss.NewStyle().Foreground(colorMuted)

	footerStyle = lipgloss.NewStyle().Foreground(colorMuted).MarginTop(1)
)

// stateColor maps a session/dev-server status word to a display color.
func stateColor(s string) lipgloss.Color {
	switch s {
	case "waiting", "review":
		return colorWarn
	case "error":
		return colorError
	case "done", "running":
		return colorOK
	default:
		return colorMuted
	}
}
