package ws

import (
	"encoding/json"
	"errors"
)

type MessageType string

const (
	// MsgNewOrder is sent by a client that placed an order.
	MsgNewOrder MessageType = "newOrder"
	// MsgOrderUpdate carries a relayed newOrder payload to every connection.
	MsgOrderUpdate MessageType = "orderUpdate"
)

// WSMessage is the envelope for every frame in both directions. Payload is
// kept raw so the relay forwards it without decoding.
type WSMessage struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

var errInvalidPayload = errors.New("payload is not valid JSON")

var orderUpdatePrefix = []byte(`{"type":"` + string(MsgOrderUpdate) + `","payload":`)

// encodeOrderUpdate wraps payload in an orderUpdate envelope without
// re-encoding it, so clients receive the sender's bytes unchanged.
func encodeOrderUpdate(payload json.RawMessage) ([]byte, error) {
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	if !json.Valid(payload) {
		return nil, errInvalidPayload
	}
	frame := make([]byte, 0, len(orderUpdatePrefix)+len(payload)+1)
	frame = append(frame, orderUpdatePrefix...)
	frame = append(frame, payload...)
	return append(frame, '}'), nil
}
