// Package eventlog provides the scrollable overlay listing what the
// dashboard received and did.
package eventlog

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/sheharzad-developer/daggys-cafe/internal/theme"
)

const maxEntries = 200

// Kind tags where an entry came from.
type Kind string

const (
	KindRelay  Kind = "relay"
	KindFeed   Kind = "feed"
	KindNotify Kind = "note"
	KindError  Kind = "err"
	KindUI     Kind = "ui"
)

type Entry struct {
	Time    time.Time
	Kind    Kind
	Message string
}

// Model holds the log and its scroll position.
type Model struct {
	Entries []Entry
	Offset  int // from the bottom
	now     func() time.Time
}

func New() Model {
	return Model{now: time.Now}
}

// Add appends an entry, keeps the newest maxEntries and scrolls to the bottom.
func (m *Model) Add(kind Kind, format string, args ...any) {
	now := time.Now
	if m.now != nil {
		now = m.now
	}
	m.Entries = append(m.Entries, Entry{
		Time:    now(),
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	})
	if len(m.Entries) > maxEntries {
		m.Entries = m.Entries[len(m.Entries)-maxEntries:]
	}
	m.Offset = 0
}

// Count returns how many entries of kind are held.
func (m Model) Count(kind Kind) int {
	n := 0
	for _, e := range m.Entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (m *Model) ScrollUp(n int) {
	m.Offset = min(m.Offset+n, max(len(m.Entries)-1, 0))
}

func (m *Model) ScrollDown(n int) {
	m.Offset = max(m.Offset-n, 0)
}

func (m Model) View(width, height int) string {
	innerW := max(width-4, 20)
	visible := max(height-6, 3)

	title := theme.StyleHeader.Render(" EVENT LOG ")
	help := theme.StyleDimmed.Render(fmt.Sprintf("j/k:scroll  esc:close  %d entries", len(m.Entries)))
	panel := lipgloss.NewStyle().
		Width(innerW).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder)

	if len(m.Entries) == 0 {
		body := theme.StyleDimmed.Render("  Waiting for orders.")
		return panel.Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help))
	}

	end := max(len(m.Entries)-m.Offset, 0)
	start := max(end-visible, 0)

	lines := make([]string, 0, end-start)
	for _, e := range m.Entries[start:end] {
		ts := theme.StyleDimmed.Render(e.Time.Format("15:04:05.000"))
		kind := lipgloss.NewStyle().Foreground(kindColor(e.Kind)).Width(5).Render(string(e.Kind))
		msg := e.Message
		if limit := innerW - 24; limit > 3 && len(msg) > limit {
			msg = msg[:limit-3] + "..."
		}
		lines = append(lines, ts+" "+kind+" "+msg)
	}

	more := ""
	if m.Offset > 0 {
		more = theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", m.Offset))
	}
	return panel.Render(lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n"), more, help))
}

func kindColor(k Kind) lipgloss.Color {
	switch k {
	case KindRelay:
		return theme.ColorRelay
	case KindFeed:
		return theme.ColorFeed
	case KindNotify:
		return theme.ColorNotify
	case KindError:
		return theme.ColorDanger
	default:
		return theme.ColorDimmed
	}
}
