package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/sheharzad-developer/daggys-cafe/internal/validator"
)

// OrderRelay fans a newOrder payload out as an orderUpdate.
type OrderRelay interface {
	OnNewOrder(ctx context.Context, senderID string, payload json.RawMessage) BroadcastResult
}

// BroadcastResult reports how one broadcast went. Callers never act on it;
// it exists for metrics, tracing and tests.
type BroadcastResult struct {
	// Targets is the registry size at the instant of broadcast.
	Targets int
	// Queued is how many of those connections accepted the frame.
	Queued int
}

// Relay broadcasts to every registered connection, sender included. It
// does not validate, filter, deduplicate or acknowledge.
type Relay struct {
	registry *Registry
	logger   *zap.Logger
}

func NewRelay(registry *Registry, logger *zap.Logger) (*Relay, error) {
	r := Relay{
		registry: registry,
		logger:   logger,
	}

	if err := validator.Validate("relay", r.registry, r.logger); err != nil {
		return nil, fmt.Errorf("failed to validate relay deps: %w", err)
	}

	r.logger = r.logger.Named("relay")
	return &r, nil
}

func (r *Relay) OnNewOrder(_ context.Context, senderID string, payload json.RawMessage) BroadcastResult {
	data, err := encodeOrderUpdate(payload)
	if err != nil {
		r.logger.Warn("dropping unencodable payload", zap.String("sender", senderID), zap.Error(err))
		return BroadcastResult{}
	}

	targets := r.registry.Snapshot()
	res := BroadcastResult{Targets: len(targets)}
	for _, c := range targets {
		if c.enqueue(data) {
			res.Queued++
			continue
		}
		r.logger.Debug("delivery dropped", zap.String("connection", c.ID))
	}

	r.logger.Debug("order update broadcast",
		zap.String("sender", senderID),
		zap.Int("targets", res.Targets),
		zap.Int("queued", res.Queued),
	)

	return res
}
