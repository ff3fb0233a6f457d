// Package detail renders the order detail overlay as Markdown through glamour.
package detail

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/sheharzad-developer/daggys-cafe/internal/order"
	"github.com/sheharzad-developer/daggys-cafe/internal/theme"
)

const panelWidth = 64

var stylePanel = lipgloss.NewStyle().
	BorderStyle(lipgloss.RoundedBorder()).
	BorderForeground(theme.ColorBorder).
	Padding(0, 1)

// Model holds the state for the detail overlay.
type Model struct {
	Order      *order.Event
	Source     string
	ReceivedAt time.Time
	// Style is a glamour standard style name. Empty picks "dark".
	Style string
}

func New(ev *order.Event, source string, receivedAt time.Time) Model {
	return Model{Order: ev, Source: source, ReceivedAt: receivedAt}
}

// Markdown is the document the overlay renders.
func (m Model) Markdown() string {
	ev := m.Order
	if ev == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Order #%s\n\n", ev.ID)

	customer := ev.CustomerName
	if customer == "" {
		customer = "Guest"
	}
	status := ev.Status
	if status == "" {
		status = order.StatusPending
	}
	fmt.Fprintf(&b, "- **Customer:** %s\n", customer)
	fmt.Fprintf(&b, "- **Status:** %s\n", status)
	if !ev.Timestamp.IsZero() {
		fmt.Fprintf(&b, "- **Placed:** %s\n", ev.Timestamp.Local().Format("Jan 2 15:04:05"))
	}
	if m.Source != "" {
		fmt.Fprintf(&b, "- **Seen via:** %s\n", m.Source)
	}
	if !m.ReceivedAt.IsZero() {
		fmt.Fprintf(&b, "- **Received:** %s\n", m.ReceivedAt.Local().Format("15:04:05"))
	}

	if len(ev.Items) > 0 {
		b.WriteString("\n| Item | Qty | Price |\n|:-----|----:|------:|\n")
		for _, it := range ev.Items {
			fmt.Fprintf(&b, "| %s | %d | $%.2f |\n", escapeCell(it.Name), it.Quantity, it.Price)
		}
	}

	total := ev.Total
	if total == 0 {
		total = ev.ItemsTotal()
	}
	fmt.Fprintf(&b, "\n**Total:** $%.2f\n", total)
	return b.String()
}

// View renders the panel, or "" when no order is selected. If glamour cannot
// render, the raw Markdown is shown instead.
func (m Model) View() string {
	md := m.Markdown()
	if md == "" {
		return ""
	}

	style := m.Style
	if style == "" {
		style = "dark"
	}
	body := md
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(panelWidth-4),
	)
	if err == nil {
		if out, err := r.Render(md); err == nil {
			body = strings.TrimRight(out, "\n")
		}
	}

	footer := theme.StyleDimmed.Render("[s] cycle status  [esc] close")
	return stylePanel.Width(panelWidth).Render(body + "\n\n" + footer)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
