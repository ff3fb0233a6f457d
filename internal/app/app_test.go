package app

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sheharzad-developer/daggys-cafe/internal/order"
	"github.com/sheharzad-developer/daggys-cafe/internal/views/eventlog"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func sized() Model {
	m := New(WithDetailStyle("notty"))
	m.width = 120
	m.height = 40
	m.statusBar.Width = 120
	m.board.Width = 120
	return m
}

func TestDisconnectOverlay(t *testing.T) {
	m := sized()

	v := m.View()
	if !strings.Contains(v, "DISCONNECTED") {
		t.Error("disconnect banner should contain 'DISCONNECTED'")
	}
	if !strings.Contains(v, "Reconnecting") {
		t.Error("disconnect banner should contain 'Reconnecting'")
	}

	m = update(t, m, RelayConnectedMsg{})
	if strings.Contains(m.View(), "DISCONNECTED") {
		t.Error("banner should clear once connected")
	}

	m = update(t, m, RelayDisconnectedMsg{Err: errors.New("EOF")})
	if !strings.Contains(m.View(), "DISCONNECTED") {
		t.Error("banner should return after a drop")
	}
	if m.log.Count(eventlog.KindError) != 1 {
		t.Error("drop with an error should be logged as an error")
	}
}

func TestOrderUpdateAddsNewestFirst(t *testing.T) {
	m := update(t, sized(),
		OrderUpdateMsg{Payload: json.RawMessage(`{"id":"ORD-1","customerName":"Alex","total":5}`)},
		OrderUpdateMsg{Payload: json.RawMessage(`{"id":"ORD-2","customerName":"Sam","total":7}`)},
	)

	if len(m.entries) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(m.entries))
	}
	if m.entries[0].Order.ID != "ORD-2" {
		t.Errorf("newest order should be first, got %s", m.entries[0].Order.ID)
	}
	if m.entries[1].Order.Status != order.StatusPending {
		t.Errorf("status should default to Pending, got %q", m.entries[1].Order.Status)
	}
	// The originally selected order stays selected.
	if m.selected().Order.ID != "ORD-1" {
		t.Errorf("selection moved to %s", m.selected().Order.ID)
	}
	if m.statusBar.Pending != 2 {
		t.Errorf("pending = %d, want 2", m.statusBar.Pending)
	}
}

func TestOrderUpdateThatIsNotAnOrderIsOnlyLogged(t *testing.T) {
	m := update(t, sized(), OrderUpdateMsg{Payload: json.RawMessage(`"hello"`)})
	if len(m.entries) != 0 {
		t.Error("non-order payload should not add a row")
	}
	if m.log.Count(eventlog.KindRelay) != 1 {
		t.Error("non-order payload should still be logged")
	}
}

func TestSameOrderFromBothPathsIsOneRow(t *testing.T) {
	m := update(t, sized(),
		OrderUpdateMsg{Payload: json.RawMessage(`{"id":"ORD-1","customerName":"Alex","items":[{"name":"Latte","quantity":1,"price":4}]}`)},
		OrderInsertedMsg{Order: order.Event{ID: "ORD-1", CustomerName: "Alex", Total: 4}},
	)

	if len(m.entries) != 1 {
		t.Fatalf("expected 1 row, got %d", len(m.entries))
	}
	e := m.entries[0]
	if e.Source != "relay + change feed" {
		t.Errorf("source = %q", e.Source)
	}
	if len(e.Order.Items) != 1 || e.Order.Total != 4 {
		t.Errorf("merge lost fields: %+v", e.Order)
	}
	if m.log.Count(eventlog.KindRelay) != 1 || m.log.Count(eventlog.KindFeed) != 1 {
		t.Error("both deliveries should be logged")
	}
}

func TestStatusCycleIsLocal(t *testing.T) {
	m := update(t, sized(),
		OrderInsertedMsg{Order: order.Event{ID: "ORD-1", Total: 10}},
		runes("s"),
	)
	if got := m.entries[0].Order.Status; got != order.StatusDelivered {
		t.Fatalf("status = %s, want Delivered", got)
	}
	if m.statusBar.Revenue != 10 {
		t.Errorf("revenue = %v, want 10", m.statusBar.Revenue)
	}

	m = update(t, m, runes("s"), runes("s"))
	if got := m.entries[0].Order.Status; got != order.StatusPending {
		t.Errorf("status = %s, want Pending after a full cycle", got)
	}

	// A later delivery of the same order keeps the local status.
	m = update(t, m, runes("s"), OrderUpdateMsg{Payload: json.RawMessage(`{"id":"ORD-1","status":"Pending"}`)})
	if got := m.entries[0].Order.Status; got != order.StatusDelivered {
		t.Errorf("status = %s, want local Delivered kept", got)
	}
}

func TestNavigationWraps(t *testing.T) {
	m := update(t, sized(),
		OrderInsertedMsg{Order: order.Event{ID: "A"}},
		OrderInsertedMsg{Order: order.Event{ID: "B"}},
		OrderInsertedMsg{Order: order.Event{ID: "C"}},
	)
	// Selection stays on A, now last.
	if m.selected().Order.ID != "A" {
		t.Fatalf("selected %s, want A", m.selected().Order.ID)
	}
	m = update(t, m, runes("j"))
	if m.selected().Order.ID != "C" {
		t.Errorf("j should wrap to the top, got %s", m.selected().Order.ID)
	}
	m = update(t, m, runes("k"))
	if m.selected().Order.ID != "A" {
		t.Errorf("k should wrap to the bottom, got %s", m.selected().Order.ID)
	}
}

func TestDetailOverlay(t *testing.T) {
	m := update(t, sized(), tea.KeyMsg{Type: tea.KeyEnter})
	if m.overlay != OverlayNone {
		t.Fatal("detail should not open without orders")
	}

	m = update(t, m,
		OrderInsertedMsg{Order: order.Event{ID: "ORD-9", CustomerName: "Kim", Total: 3}},
		tea.KeyMsg{Type: tea.KeyEnter},
	)
	if m.overlay != OverlayDetail {
		t.Fatal("enter should open the detail overlay")
	}
	if v := m.View(); !strings.Contains(v, "ORD-9") || !strings.Contains(v, "Kim") {
		t.Errorf("detail view missing order:\n%s", v)
	}

	m = update(t, m, runes("s"))
	if m.entries[0].Order.Status != order.StatusDelivered {
		t.Error("s should cycle status from the detail overlay")
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.overlay != OverlayNone {
		t.Error("esc should close the overlay")
	}
}

func TestLogOverlay(t *testing.T) {
	m := update(t, sized(), FeedStateMsg{State: "subscribed"}, PermissionMsg{Permission: "denied"}, runes("l"))
	if m.overlay != OverlayLog {
		t.Fatal("l should open the event log")
	}
	v := m.View()
	if !strings.Contains(v, "change feed subscribed") || !strings.Contains(v, "permission denied") {
		t.Errorf("log view missing entries:\n%s", v)
	}
	m = update(t, m, runes("l"))
	if m.overlay != OverlayNone {
		t.Error("l should toggle the log closed")
	}
}

func TestQuitRunsHook(t *testing.T) {
	called := false
	m := New(WithQuitHook(func() { called = true }))
	_, cmd := m.Update(runes("q"))
	if !called {
		t.Error("quit hook not called")
	}
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestWithFeedShowsUnsubscribed(t *testing.T) {
	m := New(WithFeed())
	if m.statusBar.Feed != "unsubscribed" {
		t.Errorf("feed = %q", m.statusBar.Feed)
	}
}
