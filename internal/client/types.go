// Package client is the dashboard's side of the order relay. Types mirror the
// relay wire protocol without importing server packages.
package client

import (
	"encoding/json"
	"fmt"

	"github.com/sheharzad-developer/daggys-cafe/internal/order"
)

// MessageType identifies the kind of WebSocket message.
type MessageType string

const (
	MsgNewOrder    MessageType = "newOrder"
	MsgOrderUpdate MessageType = "orderUpdate"
)

// WSMessage is the envelope for all WebSocket messages.
type WSMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeOrder reads an orderUpdate payload as an order. The relay forwards
// payloads untouched, so a producer may send anything; callers should treat
// an error as "not an order" rather than a protocol failure.
func DecodeOrder(payload json.RawMessage) (order.Event, error) {
	var ev order.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return order.Event{}, fmt.Errorf("decode order: %w", err)
	}
	if ev.ID == "" {
		return order.Event{}, fmt.Errorf("decode order: missing id")
	}
	return ev, nil
}
