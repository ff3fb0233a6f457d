package status

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/sheharzad-developer/daggys-cafe/internal/theme"
)

// Model holds the status bar state.
type Model struct {
	Connected  bool
	Feed       string // "subscribed", "unsubscribed" or "" when no database is configured
	Permission string
	Pending    int
	Delivered  int
	Cancelled  int
	Revenue    float64
	Width      int
}

// New creates a status bar model.
func New() Model {
	return Model{}
}

// SetCounts updates the per-status order counts.
func (m *Model) SetCounts(pending, delivered, cancelled int, revenue float64) {
	m.Pending = pending
	m.Delivered = delivered
	m.Cancelled = cancelled
	m.Revenue = revenue
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var connStr string
	if m.Connected {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Relay")
	} else {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ Connecting...")
	}

	var feedStr string
	switch m.Feed {
	case "subscribed":
		feedStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Feed")
	case "":
		feedStr = theme.StyleDimmed.Render("- Feed off")
	default:
		feedStr = lipgloss.NewStyle().Foreground(theme.ColorWarning).Render("○ Feed " + m.Feed)
	}

	counts := lipgloss.NewStyle().Foreground(theme.ColorPending).Render(fmt.Sprintf("%d pending", m.Pending)) + "  " +
		lipgloss.NewStyle().Foreground(theme.ColorDelivered).Render(fmt.Sprintf("%d delivered", m.Delivered)) + "  " +
		lipgloss.NewStyle().Foreground(theme.ColorCancelled).Render(fmt.Sprintf("%d cancelled", m.Cancelled))

	revenue := theme.StyleHeader.Render(fmt.Sprintf("$%.2f", m.Revenue))

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := connStr + sep + feedStr + sep + counts + sep + revenue
	if m.Permission != "" && m.Permission != "granted" {
		content += sep + theme.StyleDimmed.Render("alerts "+m.Permission)
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
