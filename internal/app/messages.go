package app

import (
	"encoding/json"
	"time"

	"github.com/sheharzad-developer/daggys-cafe/internal/order"
	"github.com/sheharzad-developer/daggys-cafe/internal/views/eventlog"
)

// RelayConnectedMsg is sent when the relay socket connects.
type RelayConnectedMsg struct{}

// RelayDisconnectedMsg is sent when the relay socket drops.
type RelayDisconnectedMsg struct{ Err error }

// OrderUpdateMsg carries one orderUpdate payload as received.
type OrderUpdateMsg struct {
	Payload json.RawMessage
	At      time.Time
}

// OrderInsertedMsg carries an order row seen by the change feed.
type OrderInsertedMsg struct {
	Order order.Event
	At    time.Time
}

// OrdersLoadedMsg carries stored orders, newest first, read at start-up.
type OrdersLoadedMsg struct {
	Orders []order.Event
	At     time.Time
}

// FeedStateMsg reports the change feed subscription state.
type FeedStateMsg struct{ State string }

// PermissionMsg reports the cached desktop notification permission.
type PermissionMsg struct{ Permission string }

// LogMsg adds a line to the event log.
type LogMsg struct {
	Kind eventlog.Kind
	Text string
}
