// Package theme provides the Lip Gloss color palette and reusable styles
// for the order dashboard. It is a leaf package with no internal imports
// to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Order status colors.
var (
	ColorPending   = lipgloss.Color("#d97706")
	ColorDelivered = lipgloss.Color("#16a34a")
	ColorCancelled = lipgloss.Color("#dc2626")
	ColorDefault   = lipgloss.Color("#9ca3af")
)

// Event source colors.
var (
	ColorRelay  = lipgloss.Color("#2563eb")
	ColorFeed   = lipgloss.Color("#7c3aed")
	ColorNotify = lipgloss.Color("#06b6d4")
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// StatusColor returns the Lip Gloss color for an order status.
func StatusColor(status string) lipgloss.Color {
	switch status {
	case "Pending":
		return ColorPending
	case "Delivered":
		return ColorDelivered
	case "Cancelled":
		return ColorCancelled
	default:
		return ColorDefault
	}
}

// StatusBadge renders status as a colored pill.
func StatusBadge(status string) string {
	if status == "" {
		status = "Pending"
	}
	return lipgloss.NewStyle().
		Foreground(ColorBg).
		Background(StatusColor(status)).
		Padding(0, 1).
		Render(status)
}

// StatusGlyph returns a Unicode glyph representing an order status.
func StatusGlyph(status string) string {
	switch status {
	case "Delivered":
		return "✓"
	case "Cancelled":
		return "✗"
	default:
		return "●"
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)
)
