package boardui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/azedarach/azedarach/internal/detector"
)

// View renders the board: one bordered pane per status column, plus an
// optional detail pane for the focused card's description.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	colWidth := 28
	if m.width > 0 {
		colWidth = maxInt(16, m.width/len(columnDefs)-2)
	}
	colHeight := maxInt(6, m.height-2)

	rendered := make([]string, len(columnDefs))
	for i, def := range columnDefs {
		rendered[i] = m.renderColumn(i, def.title, colWidth, colHeight)
	}

	board := lipgloss.JoinHorizontal(lipgloss.Top, rendered...)

	out := board
	if m.showDetail {
		if c, ok := m.focusedCard(); ok {
			out = lipgloss.JoinVertical(lipgloss.Left, board, m.renderDetail(c, m.width))
		}
	}
	return out + "\n" + footerStyle.Render("h/l columns  j/k cards  enter detail  q quit")
}

func (m Model) focusedCard() (card, bool) {
	if m.focused < 0 || m.focused >= len(m.columns) {
		return card{}, false
	}
	col := m.columns[m.focused]
	idx := m.selected[m.focused]
	if idx < 0 || idx >= len(col) {
		return card{}, false
	}
	return col[idx], true
}

func (m Model) renderColumn(idx int, title string, width, height int) string {
	focused := idx == m.focused
	cards := m.columns[idx]

	var body strings.Builder
	for i, c := range cards {
		line := cardLine(c)
		if focused && i == m.selected[idx] {
			line = cardSelectedStyle.Render("▸ " + line)
		} else {
			line = cardStyle.Render("  " + line)
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	if len(cards) == 0 {
		body.WriteString(mutedStyle.Render("  (empty)"))
	}

	heading := columnTitleStyle.Render(fmt.Sprintf("%s (%d)", title, len(cards)))
	content := heading + "\n" + body.String()

	style := blurredBorderStyle
	if focused {
		style = focusedBorderStyle
	}
	return style.Width(width).Height(height).Render(content)
}

func cardLine(c card) string {
	label := fmt.Sprintf("%s %s", c.task.ID, c.task.Title)
	if !c.hasSession {
		return label
	}
	dot := lipgloss.NewStyle().Foreground(stateColor(string(c.session.State))).Render("●")
	return fmt.Sprintf("%s %s [%s]", dot, label, sessionStateLabel(c.session.State))
}

var titleCaser = cases.Title(language.English)

func sessionStateLabel(s detector.State) string {
	if s == "" {
		return "Unknown"
	}
	return titleCaser.String(string(s))
}

func (m Model) renderDetail(c card, width int) string {
	w := maxInt(40, width-4)
	body := "### " + c.task.ID + ": " + c.task.Title + "\n\n" + c.task.Description
	if c.hasSession && c.session.LastSnippet != "" {
		body += "\n\n---\n\n```\n" + c.session.LastSnippet + "\n```"
	}

	rendered, err := renderMarkdown(body, w)
	if err != nil {
		rendered = body
	}
	return blurredBorderStyle.Width(w).Render(rendered)
}

// renderMarkdown wraps glamour the way the teacher pack's markdown
// renderer does: a fixed dark style with margins stripped, so output
// fits the detail pane. A new TermRenderer is built on every call.
func renderMarkdown(src string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithStylesFromJSONBytes([]byte(`{"document":{"margin":0,"block_prefix":"","block_suffix":""}}`)),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render(src)
}
