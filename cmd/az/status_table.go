package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
	"golang.org/x/text/width"
)

// terminalWidth returns stdout's column count, falling back to 80 when
// it isn't a terminal (piped output, CI logs).
func terminalWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// sessionNameStyle resolves Config.Theme to a foreground color:
// "light"/"dark" pick directly; any other value, including "auto" (the
// default), detects the terminal's background via termenv. The
// interactive board does not read Config.Theme.
func sessionNameStyle(theme string) lipgloss.Style {
	dark := theme == "dark"
	if theme != "light" && theme != "dark" {
		dark = termenv.HasDarkBackground()
	}
	if dark {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("30"))
}

// printSessionTable renders session names one per line, truncated to
// the terminal width so a long branch-derived tmux session name never
// wraps mid-word onto the next column.
func printSessionTable(sessions []string, theme string) {
	style := sessionNameStyle(theme)
	limit := terminalWidth()
	for _, name := range sessions {
		fmt.Println(style.Render(truncateToWidth(name, limit)))
	}
}

// truncateToWidth cuts s to fit within limit display columns, counting
// wide (e.g. CJK) runes as two columns via golang.org/x/text/width the
// way a monospace terminal actually renders them.
func truncateToWidth(s string, limit int) string {
	if limit <= 1 {
		return s
	}
	cols := 0
	for i, r := range s {
		w := 1
		if width.LookupRune(r).Kind() == width.EastAsianWide {
			w = 2
		}
		if cols+w > limit-1 {
			return s[:i] + "…"
		}
		cols += w
	}
	return s
}
