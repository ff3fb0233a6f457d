package app

import (
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sheharzad-developer/daggys-cafe/internal/client"
	"github.com/sheharzad-developer/daggys-cafe/internal/order"
	"github.com/sheharzad-developer/daggys-cafe/internal/theme"
	"github.com/sheharzad-developer/daggys-cafe/internal/views/dashboard"
	"github.com/sheharzad-developer/daggys-cafe/internal/views/detail"
	"github.com/sheharzad-developer/daggys-cafe/internal/views/eventlog"
	"github.com/sheharzad-developer/daggys-cafe/internal/views/status"
)

const (
	sourceRelay = "relay"
	sourceFeed  = "change feed"
	sourceStore = "stored"
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDetail
	OverlayLog
)

// Model is the root Bubble Tea model. Connections are driven from outside
// and reported through the messages in messages.go.
type Model struct {
	keys   KeyMap
	width  int
	height int

	// Orders, newest first. byID indexes the same entries.
	entries []*dashboard.Entry
	byID    map[string]*dashboard.Entry

	overlay Overlay

	statusBar status.Model
	board     dashboard.Model
	log       eventlog.Model

	connected   bool
	detailStyle string
	onQuit      func()
}

type Option func(*Model)

// WithQuitHook runs fn when the user quits.
func WithQuitHook(fn func()) Option {
	return func(m *Model) { m.onQuit = fn }
}

// WithFeed marks the change feed as configured so the status bar tracks it.
func WithFeed() Option {
	return func(m *Model) { m.statusBar.Feed = "unsubscribed" }
}

// WithDetailStyle sets the glamour style for the order detail overlay.
func WithDetailStyle(style string) Option {
	return func(m *Model) { m.detailStyle = style }
}

func New(opts ...Option) Model {
	m := Model{
		keys:      DefaultKeyMap(),
		byID:      make(map[string]*dashboard.Entry),
		statusBar: status.New(),
		board:     dashboard.New(),
		log:       eventlog.New(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.SetWindowTitle("Daggy's Cafe orders")
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.board.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case RelayConnectedMsg:
		m.connected = true
		m.statusBar.Connected = true
		m.log.Add(eventlog.KindRelay, "connected")
		return m, nil

	case RelayDisconnectedMsg:
		m.connected = false
		m.statusBar.Connected = false
		if msg.Err != nil {
			m.log.Add(eventlog.KindError, "relay disconnected: %v", msg.Err)
		} else {
			m.log.Add(eventlog.KindRelay, "disconnected")
		}
		return m, nil

	case OrderUpdateMsg:
		ev, err := client.DecodeOrder(msg.Payload)
		if err != nil {
			m.log.Add(eventlog.KindRelay, "orderUpdate (not an order): %s", string(msg.Payload))
			return m, nil
		}
		m.log.Add(eventlog.KindRelay, "orderUpdate %s from %s", ev.ID, ev.CustomerName)
		m.upsert(dashboard.Entry{Order: ev, Source: sourceRelay, ReceivedAt: stamp(msg.At)})
		return m, nil

	case OrderInsertedMsg:
		m.log.Add(eventlog.KindFeed, "insert %s from %s", msg.Order.ID, msg.Order.CustomerName)
		m.upsert(dashboard.Entry{Order: msg.Order, Source: sourceFeed, ReceivedAt: stamp(msg.At)})
		return m, nil

	case OrdersLoadedMsg:
		for _, ev := range msg.Orders {
			m.appendStored(dashboard.Entry{Order: ev, Source: sourceStore, ReceivedAt: stamp(msg.At)})
		}
		m.log.Add(eventlog.KindFeed, "loaded %d stored orders", len(msg.Orders))
		m.refresh()
		return m, nil

	case FeedStateMsg:
		m.statusBar.Feed = msg.State
		m.log.Add(eventlog.KindFeed, "change feed %s", msg.State)
		return m, nil

	case PermissionMsg:
		m.statusBar.Permission = msg.Permission
		m.log.Add(eventlog.KindNotify, "notification permission %s", msg.Permission)
		return m, nil

	case LogMsg:
		m.log.Add(msg.Kind, "%s", msg.Text)
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		if m.onQuit != nil {
			m.onQuit()
		}
		return m, tea.Quit
	}

	switch m.overlay {
	case OverlayLog:
		switch {
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Log):
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Up):
			m.log.ScrollUp(1)
		case key.Matches(msg, m.keys.Down):
			m.log.ScrollDown(1)
		}
		return m, nil

	case OverlayDetail:
		switch {
		case key.Matches(msg, m.keys.Escape), key.Matches(msg, m.keys.Enter):
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Status):
			m.cycleSelected()
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Down):
		if len(m.entries) > 0 {
			m.board.Selected = (m.board.Selected + 1) % len(m.entries)
		}
	case key.Matches(msg, m.keys.Up):
		if len(m.entries) > 0 {
			m.board.Selected = (m.board.Selected - 1 + len(m.entries)) % len(m.entries)
		}
	case key.Matches(msg, m.keys.Status):
		m.cycleSelected()
	case key.Matches(msg, m.keys.Enter):
		if m.selected() != nil {
			m.overlay = OverlayDetail
		}
	case key.Matches(msg, m.keys.Log):
		m.overlay = OverlayLog
	}
	return m, nil
}

// upsert adds a new order at the top, or fills in an order already seen
// through the other path without moving it or touching its status.
func (m *Model) upsert(e dashboard.Entry) {
	if e.Order.ID == "" {
		return
	}
	if existing, ok := m.byID[e.Order.ID]; ok {
		mergeOrder(&existing.Order, e.Order)
		if !strings.Contains(existing.Source, e.Source) {
			existing.Source += " + " + e.Source
		}
		m.refresh()
		return
	}

	entry := e
	if !entry.Order.Status.Valid() {
		entry.Order.Status = order.StatusPending
	}
	m.entries = append([]*dashboard.Entry{&entry}, m.entries...)
	m.byID[entry.Order.ID] = &entry
	if len(m.entries) > 1 {
		m.board.Selected++
	}
	m.refresh()
}

// appendStored places an order read from the database below the live ones.
// Orders already on the table only gain the missing fields.
func (m *Model) appendStored(e dashboard.Entry) {
	if e.Order.ID == "" {
		return
	}
	if existing, ok := m.byID[e.Order.ID]; ok {
		mergeOrder(&existing.Order, e.Order)
		return
	}
	entry := e
	if !entry.Order.Status.Valid() {
		entry.Order.Status = order.StatusPending
	}
	m.entries = append(m.entries, &entry)
	m.byID[entry.Order.ID] = &entry
}

func mergeOrder(dst *order.Event, src order.Event) {
	if src.CustomerName != "" {
		dst.CustomerName = src.CustomerName
	}
	if src.Total != 0 {
		dst.Total = src.Total
	}
	if len(src.Items) > 0 {
		dst.Items = src.Items
	}
	if !src.Timestamp.IsZero() {
		dst.Timestamp = src.Timestamp
	}
}

// cycleSelected changes the selected order's status on this dashboard only.
func (m *Model) cycleSelected() {
	e := m.selected()
	if e == nil {
		return
	}
	e.Order.Status = e.Order.Status.Next()
	m.log.Add(eventlog.KindUI, "%s marked %s", e.Order.ID, e.Order.Status)
	m.refresh()
}

func (m Model) selected() *dashboard.Entry {
	if m.board.Selected < 0 || m.board.Selected >= len(m.entries) {
		return nil
	}
	return m.entries[m.board.Selected]
}

func (m *Model) refresh() {
	m.board.SetEntries(m.entries)
	m.statusBar.SetCounts(dashboard.Totals(m.entries))
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	sections := []string{m.statusBar.View()}
	if !m.connected {
		sections = append(sections, lipgloss.NewStyle().
			Foreground(theme.ColorDanger).
			Bold(true).
			Padding(0, 1).
			Render("DISCONNECTED from relay. Reconnecting..."))
	}

	switch m.overlay {
	case OverlayDetail:
		if e := m.selected(); e != nil {
			d := detail.New(&e.Order, e.Source, e.ReceivedAt)
			d.Style = m.detailStyle
			sections = append(sections, d.View())
		}
	case OverlayLog:
		sections = append(sections, m.log.View(m.width, m.height-4))
	default:
		sections = append(sections, m.board.View())
	}

	sections = append(sections,
		theme.StyleDimmed.Render("  j/k:navigate  enter:detail  s:status  l:log  q:quit"))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
