// Package mock feeds the relay with made-up orders for demos and UI work.
package mock

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/sheharzad-developer/daggys-cafe/internal/order"
	"github.com/sheharzad-developer/daggys-cafe/internal/ws"
)

// SenderID marks mock orders in relay logs and spans.
const SenderID = "mock"

type menuItem struct {
	name  string
	price float64
}

var menu = []menuItem{
	{"Espresso", 2.75},
	{"Flat White", 3.80},
	{"Chai Latte", 4.10},
	{"Blueberry Muffin", 3.25},
	{"Avocado Toast", 8.50},
	{"Croissant", 2.95},
	{"Iced Mocha", 4.60},
	{"Club Sandwich", 9.40},
}

var customers = []string{"Alex", "Sam", "Kim", "Priya", "Jordan", "Lee", "Mia", "Omar", ""}

type MockGenerator struct {
	relay    ws.OrderRelay
	interval time.Duration
	logger   *zap.Logger
	rng      *rand.Rand
	now      func() time.Time
	lastID   string
}

func NewGenerator(relay ws.OrderRelay, interval time.Duration, logger *zap.Logger) *MockGenerator {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &MockGenerator{
		relay:    relay,
		interval: interval,
		logger:   logger.Named("mock"),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
}

// Start emits one order per interval until ctx is cancelled.
func (g *MockGenerator) Start(ctx context.Context) {
	go g.run(ctx)
}

func (g *MockGenerator) run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.emit(ctx)
		}
	}
}

func (g *MockGenerator) emit(ctx context.Context) ws.BroadcastResult {
	ev := g.next()
	payload, err := json.Marshal(ev)
	if err != nil {
		g.logger.Error("encode mock order", zap.Error(err))
		return ws.BroadcastResult{}
	}
	res := g.relay.OnNewOrder(ctx, SenderID, payload)
	g.logger.Debug("mock order sent",
		zap.String("order", ev.ID),
		zap.Int("targets", res.Targets),
		zap.Int("queued", res.Queued),
	)
	return res
}

// next builds a Pending order of one to three menu lines. Ids stay unique
// when two orders fall in the same millisecond.
func (g *MockGenerator) next() order.Event {
	now := g.now()
	id := order.NewID(now)
	for id <= g.lastID {
		now = now.Add(time.Millisecond)
		id = order.NewID(now)
	}
	g.lastID = id

	n := 1 + g.rng.Intn(3)
	items := make([]order.Item, 0, n)
	for i := 0; i < n; i++ {
		m := menu[g.rng.Intn(len(menu))]
		items = append(items, order.Item{Name: m.name, Quantity: 1 + g.rng.Intn(2), Price: m.price})
	}

	ev := order.Event{
		ID:           id,
		CustomerName: customers[g.rng.Intn(len(customers))],
		Items:        items,
		Status:       order.StatusPending,
		Timestamp:    now.UTC(),
	}
	ev.Total = ev.ItemsTotal()
	return ev
}
