package app

import (
	"context"
	"encoding/json"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sheharzad-developer/daggys-cafe/internal/changefeed"
	"github.com/sheharzad-developer/daggys-cafe/internal/notify"
	"github.com/sheharzad-developer/daggys-cafe/internal/order"
	"github.com/sheharzad-developer/daggys-cafe/internal/views/eventlog"
)

// Notifier is the part of notify.Notifier the relay path drives.
type Notifier interface {
	Notify(notify.Notification)
}

// OrderLister lists stored orders, newest first.
type OrderLister interface {
	Recent(ctx context.Context, limit int) ([]order.Event, error)
}

// RelayHandler returns the orderUpdate subscriber for the dashboard. Every
// payload raises one notification and is forwarded to send, whether or not
// it decodes as an order.
func RelayHandler(n Notifier, send func(tea.Msg)) func(json.RawMessage) {
	return func(payload json.RawMessage) {
		// The relay does not promise the payload is an order.
		var ev order.Event
		_ = json.Unmarshal(payload, &ev)
		n.Notify(notify.Notification{
			Source:       notify.SourceRelay,
			OrderID:      ev.ID,
			CustomerName: ev.CustomerName,
		})
		send(OrderUpdateMsg{Payload: payload, At: time.Now()})
	}
}

// InsertHandler forwards change feed insertions to send. The bridge has
// already notified by the time it runs.
func InsertHandler(send func(tea.Msg)) func(changefeed.ChangeNotification) {
	return func(cn changefeed.ChangeNotification) {
		send(OrderInsertedMsg{Order: cn.Row.Event(), At: time.Now()})
	}
}

// LoadStored fetches the newest stored orders for the initial table.
func LoadStored(ctx context.Context, l OrderLister, limit int) tea.Msg {
	orders, err := l.Recent(ctx, limit)
	if err != nil {
		return LogMsg{Kind: eventlog.KindError, Text: "load stored orders: " + err.Error()}
	}
	return OrdersLoadedMsg{Orders: orders, At: time.Now()}
}
