// Package dashboard renders the stats row and live order table.
package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/sheharzad-developer/daggys-cafe/internal/order"
	"github.com/sheharzad-developer/daggys-cafe/internal/theme"
)

// Entry is one order as the dashboard knows it.
type Entry struct {
	Order      order.Event
	Source     string // "relay" or "change feed"
	ReceivedAt time.Time
}

// Model holds the dashboard state. Entries are kept newest first.
type Model struct {
	Width    int
	Selected int
	entries  []*Entry
	now      func() time.Time
}

func New() Model {
	return Model{now: time.Now}
}

// SetEntries replaces the rows shown, newest first.
func (m *Model) SetEntries(entries []*Entry) {
	m.entries = entries
	if m.Selected >= len(entries) {
		m.Selected = max(len(entries)-1, 0)
	}
}

// Totals returns counts per status and revenue from delivered orders.
func Totals(entries []*Entry) (pending, delivered, cancelled int, revenue float64) {
	for _, e := range entries {
		switch e.Order.Status {
		case order.StatusDelivered:
			delivered++
			revenue += total(e.Order)
		case order.StatusCancelled:
			cancelled++
		default:
			pending++
		}
	}
	return
}

func (m Model) View() string {
	width := max(m.Width, 40)
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatsRow(width),
		m.renderTable(width),
	)
}

func (m Model) renderStatsRow(width int) string {
	pending, delivered, cancelled, revenue := Totals(m.entries)
	statStyle := lipgloss.NewStyle().Padding(0, 1)

	stats := []string{
		statStyle.Foreground(theme.ColorBright).Render(fmt.Sprintf("Orders: %d", len(m.entries))),
		statStyle.Foreground(theme.ColorPending).Render(fmt.Sprintf("Pending: %d", pending)),
		statStyle.Foreground(theme.ColorDelivered).Render(fmt.Sprintf("Delivered: %d", delivered)),
		statStyle.Foreground(theme.ColorCancelled).Render(fmt.Sprintf("Cancelled: %d", cancelled)),
		statStyle.Foreground(theme.ColorBright).Render(fmt.Sprintf("Revenue: $%.2f", revenue)),
	}
	content := strings.Join(stats, lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | "))

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}

func (m Model) renderTable(width int) string {
	header := theme.StyleHeader.Render("  Orders")
	if len(m.entries) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left,
			header,
			theme.StyleDimmed.Render("  No orders yet"),
		)
	}

	colID := 18
	colCustomer := 20
	colTotal := 10
	colStatus := 12
	colVia := 12
	colAge := 8

	dim := lipgloss.NewStyle().Foreground(theme.ColorDimmed)
	tableHeader := fmt.Sprintf("  %-*s %-*s %*s %-*s %-*s %*s",
		colID, "Order",
		colCustomer, "Customer",
		colTotal, "Total",
		colStatus, "Status",
		colVia, "Via",
		colAge, "Age",
	)
	lines := []string{
		header,
		dim.Render(tableHeader),
		dim.Render("  " + strings.Repeat("─", min(width-4, colID+colCustomer+colTotal+colStatus+colVia+colAge+5))),
	}

	now := time.Now
	if m.now != nil {
		now = m.now
	}
	for i, e := range m.entries {
		prefix := "  "
		idStyle := lipgloss.NewStyle().Width(colID)
		if i == m.Selected {
			prefix = "> "
			idStyle = idStyle.Inherit(theme.StyleSelected)
		}

		customer := e.Order.CustomerName
		if customer == "" {
			customer = "Guest"
		}
		status := string(e.Order.Status)
		if status == "" {
			status = string(order.StatusPending)
		}

		line := prefix +
			idStyle.Render(truncate(e.Order.ID, colID-1)) + " " +
			lipgloss.NewStyle().Width(colCustomer).Render(truncate(customer, colCustomer-1)) + " " +
			lipgloss.NewStyle().Width(colTotal).Align(lipgloss.Right).Render(fmt.Sprintf("$%.2f", total(e.Order))) + " " +
			lipgloss.NewStyle().Foreground(theme.StatusColor(status)).Width(colStatus).Render(theme.StatusGlyph(status)+" "+status) + " " +
			dim.Width(colVia).Render(e.Source) + " " +
			dim.Width(colAge).Align(lipgloss.Right).Render(formatAge(now().Sub(e.ReceivedAt)))
		lines = append(lines, line)
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func total(ev order.Event) float64 {
	if ev.Total != 0 {
		return ev.Total
	}
	return ev.ItemsTotal()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
}
