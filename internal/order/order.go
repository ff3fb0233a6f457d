// Package order defines the order payload that travels through the relay
// and the change feed. The relay itself never decodes it.
package order

import (
	"fmt"
	"strconv"
	"time"
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusDelivered Status = "Delivered"
	StatusCancelled Status = "Cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Next cycles Pending -> Delivered -> Cancelled -> Pending.
func (s Status) Next() Status {
	switch s {
	case StatusPending:
		return StatusDelivered
	case StatusDelivered:
		return StatusCancelled
	default:
		return StatusPending
	}
}

// Item is one order line.
type Item struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// Event is the "new order" payload emitted by checkout and relayed verbatim
// as an "order update".
type Event struct {
	ID           string    `json:"id"`
	CustomerName string    `json:"customerName"`
	Total        float64   `json:"total"`
	Items        []Item    `json:"items,omitempty"`
	Status       Status    `json:"status,omitempty"`
	Timestamp    time.Time `json:"timestamp,omitempty"`
}

// NewID returns an order id in the ORD-<unix millis> form used at checkout.
func NewID(now time.Time) string {
	return "ORD-" + strconv.FormatInt(now.UnixMilli(), 10)
}

// ItemsTotal sums quantity * price over the items.
func (e Event) ItemsTotal() float64 {
	var total float64
	for _, it := range e.Items {
		total += float64(it.Quantity) * it.Price
	}
	return total
}

// Headline is the notification body shared by both notification paths.
func Headline(id, customer string) string {
	if customer == "" {
		customer = "Guest"
	}
	return fmt.Sprintf("Order #%s from %s", id, customer)
}
