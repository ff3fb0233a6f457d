// Package changefeed turns row insertions into the orders table into client
// notifications, independently of the websocket relay.
package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/sheharzad-developer/daggys-cafe/internal/metrics"
	"github.com/sheharzad-developer/daggys-cafe/internal/notify"
	"github.com/sheharzad-developer/daggys-cafe/internal/order"
	"github.com/sheharzad-developer/daggys-cafe/internal/validator"
)

var ErrAlreadySubscribed = errors.New("change feed already subscribed")

type State int32

const (
	StateUnsubscribed State = iota
	StateSubscribed
)

func (s State) String() string {
	if s == StateSubscribed {
		return "subscribed"
	}
	return "unsubscribed"
}

// Notifier is the part of notify.Notifier the bridge calls.
type Notifier interface {
	Notify(notify.Notification)
}

type Config struct {
	Channel string
	Schema  string
	Table   string
}

// Row is the inserted order row as row_to_json renders it.
type Row struct {
	ID              string          `json:"id"`
	CustomerName    string          `json:"customer_name"`
	CustomerEmail   string          `json:"customer_email,omitempty"`
	Total           float64         `json:"total"`
	Status          string          `json:"status"`
	PaymentIntentID string          `json:"payment_intent_id,omitempty"`
	Items           json.RawMessage `json:"items,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Event converts the row to the order form the dashboard shows. Items that
// do not decode are left empty.
func (r Row) Event() order.Event {
	ev := order.Event{
		ID:           r.ID,
		CustomerName: r.CustomerName,
		Total:        r.Total,
		Status:       order.Status(r.Status),
		Timestamp:    r.CreatedAt,
	}
	if len(r.Items) > 0 {
		var items []order.Item
		if json.Unmarshal(r.Items, &items) == nil {
			ev.Items = items
		}
	}
	return ev
}

// Change is the NOTIFY payload published by the insert trigger.
type Change struct {
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Type   string `json:"type"`
	Record Row    `json:"record"`
}

// ChangeNotification is one observed insertion.
type ChangeNotification struct {
	OrderID      string
	CustomerName string
	Row          Row
}

type Option func(*Bridge)

// WithMetrics records event and subscription metrics.
func WithMetrics(m *metrics.Registry) Option {
	return func(b *Bridge) { b.metrics = m }
}

// WithStateHook is called on every state transition.
func WithStateHook(fn func(State)) Option {
	return func(b *Bridge) { b.onState = fn }
}

// WithInsertHook is called for every insertion after the notifier.
func WithInsertHook(fn func(ChangeNotification)) Option {
	return func(b *Bridge) { b.onInsert = fn }
}

// Bridge holds one process-lifetime subscription. A failed subscribe is
// logged and leaves the bridge inert; there is no retry.
type Bridge struct {
	cfg      Config
	dial     Dialer
	notifier Notifier
	logger   *zap.Logger
	metrics  *metrics.Registry
	onState  func(State)
	onInsert func(ChangeNotification)

	once  sync.Once
	state atomic.Int32
	done  chan struct{}
}

func NewBridge(cfg Config, dial Dialer, notifier Notifier, logger *zap.Logger, opts ...Option) (*Bridge, error) {
	b := &Bridge{
		cfg:      cfg,
		dial:     dial,
		notifier: notifier,
		logger:   logger,
		done:     make(chan struct{}),
	}

	if err := validator.Validate("change feed bridge", b.cfg.Channel, b.cfg.Table, b.dial, b.notifier, b.logger); err != nil {
		return nil, fmt.Errorf("failed to validate change feed deps: %w", err)
	}
	if b.cfg.Schema == "" {
		b.cfg.Schema = "public"
	}

	for _, opt := range opts {
		opt(b)
	}

	b.logger = b.logger.Named("changefeed").With(
		zap.String("channel", b.cfg.Channel),
		zap.String("table", b.cfg.Schema+"."+b.cfg.Table),
	)
	return b, nil
}

// Start subscribes and consumes notifications on a goroutine until ctx is
// cancelled. Only the first call does anything; later calls return
// ErrAlreadySubscribed. A subscribe failure is logged and returned, and the
// bridge stays unsubscribed for the life of the process.
func (b *Bridge) Start(ctx context.Context) error {
	err := ErrAlreadySubscribed
	b.once.Do(func() {
		err = b.subscribe(ctx)
	})
	return err
}

func (b *Bridge) subscribe(ctx context.Context) error {
	l, err := b.dial(ctx)
	if err != nil {
		b.logger.Error("change feed subscribe failed", zap.Error(err))
		close(b.done)
		return err
	}
	if err := l.Listen(ctx, b.cfg.Channel); err != nil {
		b.logger.Error("change feed subscribe failed", zap.Error(err))
		l.Close(context.Background())
		close(b.done)
		return err
	}

	b.setState(StateSubscribed)
	b.logger.Info("change feed subscribed")

	go b.run(ctx, l)
	return nil
}

func (b *Bridge) run(ctx context.Context, l Listener) {
	defer close(b.done)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		l.Close(closeCtx)
		b.setState(StateUnsubscribed)
	}()

	for {
		n, err := l.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				b.logger.Info("change feed torn down")
			} else {
				b.logger.Error("change feed connection lost", zap.Error(err))
			}
			return
		}
		b.handle(n)
	}
}

func (b *Bridge) handle(n *pgconn.Notification) {
	if n.Channel != b.cfg.Channel {
		b.record("ignored")
		return
	}

	var change Change
	if err := json.Unmarshal([]byte(n.Payload), &change); err != nil {
		b.logger.Warn("malformed change payload", zap.Error(err))
		b.record("malformed")
		return
	}
	if change.Type != "INSERT" || change.Schema != b.cfg.Schema || change.Table != b.cfg.Table {
		b.record("ignored")
		return
	}

	cn := ChangeNotification{
		OrderID:      change.Record.ID,
		CustomerName: change.Record.CustomerName,
		Row:          change.Record,
	}
	b.logger.Debug("order inserted", zap.String("order", cn.OrderID))

	b.notifier.Notify(notify.Notification{
		Source:       notify.SourceChangeFeed,
		OrderID:      cn.OrderID,
		CustomerName: cn.CustomerName,
	})
	b.record("notified")

	if b.onInsert != nil {
		b.onInsert(cn)
	}
}

// State reports whether the subscription is live.
func (b *Bridge) State() State {
	return State(b.state.Load())
}

// Done is closed once the bridge can deliver nothing more, either because
// subscribing failed or because the subscription ended.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

func (b *Bridge) setState(s State) {
	b.state.Store(int32(s))
	if b.metrics != nil {
		b.metrics.SetChangeFeedSubscribed(s == StateSubscribed)
	}
	if b.onState != nil {
		b.onState(s)
	}
}

func (b *Bridge) record(status string) {
	if b.metrics != nil {
		b.metrics.RecordChangeFeedEvent(status)
	}
}
