package ws

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel/codes"

	"github.com/sheharzad-developer/daggys-cafe/internal/metrics"
	"github.com/sheharzad-developer/daggys-cafe/internal/tracing"
)

// MetricsRelay wraps an OrderRelay with metrics collection.
type MetricsRelay struct {
	relay    OrderRelay
	registry *metrics.Registry
}

func NewMetricsRelay(relay OrderRelay, registry *metrics.Registry) OrderRelay {
	return &MetricsRelay{
		relay:    relay,
		registry: registry,
	}
}

func (r *MetricsRelay) OnNewOrder(ctx context.Context, senderID string, payload json.RawMessage) BroadcastResult {
	r.registry.RecordInbound(string(MsgNewOrder))
	res := r.relay.OnNewOrder(ctx, senderID, payload)
	r.registry.RecordBroadcast(res.Targets, res.Queued)
	return res
}

// TracedRelay wraps an OrderRelay with a span per broadcast.
// Layer order: TracedRelay -> MetricsRelay -> Relay.
type TracedRelay struct {
	relay  OrderRelay
	tracer *tracing.Tracer
}

func NewTracedRelay(relay OrderRelay, tracer *tracing.Tracer) OrderRelay {
	return &TracedRelay{
		relay:  relay,
		tracer: tracer,
	}
}

func (r *TracedRelay) OnNewOrder(ctx context.Context, senderID string, payload json.RawMessage) BroadcastResult {
	ctx, span := r.tracer.StartSpan(ctx, "relay.new_order")
	defer span.End()

	res := r.relay.OnNewOrder(ctx, senderID, payload)

	span.SetAttributes(r.tracer.RelayAttributes(senderID, len(payload), res.Targets)...)
	span.SetStatus(codes.Ok, "")

	return res
}
