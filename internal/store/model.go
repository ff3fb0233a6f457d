package store

import (
	"strings"
	"time"

	"github.com/sheharzad-developer/daggys-cafe/internal/order"
)

type orderModel struct {
	ID              string       `gorm:"column:id;primaryKey"`
	CustomerName    string       `gorm:"column:customer_name"`
	CustomerEmail   string       `gorm:"column:customer_email"`
	Total           float64      `gorm:"column:total;type:numeric(10,2)"`
	Status          string       `gorm:"column:status;default:Pending"`
	PaymentIntentID string       `gorm:"column:payment_intent_id"`
	Items           []order.Item `gorm:"column:items;type:jsonb;serializer:json"`
	CreatedAt       time.Time    `gorm:"column:created_at;type:timestamptz"`
	UpdatedAt       time.Time    `gorm:"column:updated_at;type:timestamptz"`
}

func (orderModel) TableName() string {
	return "orders"
}

func orderModelFromEvent(ev order.Event, email, paymentIntentID string) orderModel {
	now := time.Now().UTC()
	created := ev.Timestamp.UTC()
	if ev.Timestamp.IsZero() {
		created = now
	}
	status := ev.Status
	if !status.Valid() {
		status = order.StatusPending
	}
	total := ev.Total
	if total == 0 {
		total = ev.ItemsTotal()
	}
	return orderModel{
		ID:              strings.TrimSpace(ev.ID),
		CustomerName:    strings.TrimSpace(ev.CustomerName),
		CustomerEmail:   strings.TrimSpace(email),
		Total:           total,
		Status:          string(status),
		PaymentIntentID: strings.TrimSpace(paymentIntentID),
		Items:           ev.Items,
		CreatedAt:       created,
		UpdatedAt:       now,
	}
}

func (m orderModel) toEvent() order.Event {
	return order.Event{
		ID:           m.ID,
		CustomerName: m.CustomerName,
		Total:        m.Total,
		Items:        m.Items,
		Status:       order.Status(m.Status),
		Timestamp:    m.CreatedAt,
	}
}
