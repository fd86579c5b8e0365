package bubbletea

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const keyHelp = "Enter send · ^N new · ^L clear · ^R reload · ^C quit"

// statusLine renders the line between the viewport and the input: the
// current activity on the left and the bound target and session on the
// right. Text is truncated to the viewport width before styling so escape
// sequences are never cut.
func (m Model) statusLine() string {
	width := m.Viewport.Width

	right := m.sessionLabel()
	var left string
	switch {
	case m.err != nil:
		left = fmt.Sprintf("Error: %v", m.err)
	case m.busy:
		left = "Generating... (Ctrl+C to cancel)"
	case m.notice != "":
		left = m.notice
	default:
		left = keyHelp
	}

	prefix := ""
	if m.busy && m.err == nil {
		prefix = m.Spinner.View() + " "
	}
	avail := width - lipgloss.Width(prefix)

	// The session label is dropped first when space runs out.
	gap := avail - runewidth.StringWidth(left) - runewidth.StringWidth(right)
	if right == "" || gap < 1 {
		right = ""
		gap = 0
	}
	left = runewidth.Truncate(left, max(avail, 0), "…")

	style := m.styles.Muted
	switch {
	case m.err != nil:
		style = m.styles.Error
	case m.notice != "" && !m.busy:
		style = m.styles.Success
	}

	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(style.Render(left))
	if right != "" {
		b.WriteString(strings.Repeat(" ", gap))
		b.WriteString(m.styles.Muted.Render(right))
	}
	return b.String()
}

// sessionLabel renders "target · session" with the session ID shortened.
func (m Model) sessionLabel() string {
	s := m.conv.Session()
	if s.Target == "" {
		return ""
	}
	return s.Target + " · " + shortSessionID(s.ID)
}

// shortSessionID keeps the trailing eight characters of a session ID.
// UUIDv7 IDs share their timestamp prefix within a run; the tail differs.
func shortSessionID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[len(id)-8:]
}
