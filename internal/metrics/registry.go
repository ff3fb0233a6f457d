package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry encapsulates all metrics and provides a clean interface
// for recording metrics without global state
type Registry struct {
	registry *prometheus.Registry

	// Connection registry metrics
	connectionsActive prometheus.Gauge
	connectionsTotal  *prometheus.CounterVec

	// Relay metrics
	inboundTotal    *prometheus.CounterVec
	broadcastTotal  prometheus.Counter
	deliveryTotal   *prometheus.CounterVec
	broadcastFanout prometheus.Histogram

	// Notifier metrics
	notificationTotal *prometheus.CounterVec

	// Change feed metrics
	changeFeedEvents *prometheus.CounterVec
	changeFeedState  prometheus.Gauge

	systemInfo *prometheus.GaugeVec
	startTime  prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	registry := prometheus.NewRegistry()

	r := &Registry{
		registry: registry,

		connectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_connections_active",
				Help: "Number of currently registered connections",
			},
		),

		connectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_connection_events_total",
				Help: "Connection lifecycle events",
			},
			[]string{"event"}, // event: connect, disconnect
		),

		inboundTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_inbound_events_total",
				Help: "Inbound events received from clients",
			},
			[]string{"type"},
		),

		broadcastTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_broadcast_total",
				Help: "Total number of order update broadcasts",
			},
		),

		deliveryTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_delivery_total",
				Help: "Per-connection delivery attempts",
			},
			[]string{"status"}, // status: queued, dropped, write_error
		),

		broadcastFanout: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "relay_broadcast_fanout",
				Help:    "Connections targeted per broadcast",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
			},
		),

		notificationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifier_attempts_total",
				Help: "Client notification attempts",
			},
			[]string{"source", "channel", "status"}, // channel: desktop, sound; status: success, error, denied
		),

		changeFeedEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "change_feed_events_total",
				Help: "Row-insertion notifications received from the data store",
			},
			[]string{"status"}, // status: notified, ignored, malformed
		),

		changeFeedState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "change_feed_subscribed",
				Help: "1 while the change feed subscription is live",
			},
		),

		systemInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "relay_system_info",
				Help: "System information (value is always 1, labels contain info)",
			},
			[]string{"version", "component"},
		),

		startTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_start_time_seconds",
				Help: "Unix timestamp when the application started",
			},
		),
	}

	// add default Go metrics (memory, GC, goroutines, etc.)
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registry.MustRegister(
		r.connectionsActive,
		r.connectionsTotal,
		r.inboundTotal,
		r.broadcastTotal,
		r.deliveryTotal,
		r.broadcastFanout,
		r.notificationTotal,
		r.changeFeedEvents,
		r.changeFeedState,
		r.systemInfo,
		r.startTime,
	)

	r.startTime.SetToCurrentTime()

	return r
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          r.registry,
	})
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// RecordConnect records a connection joining the registry.
func (r *Registry) RecordConnect(active int) {
	r.connectionsTotal.WithLabelValues("connect").Inc()
	r.connectionsActive.Set(float64(active))
}

// RecordDisconnect records a connection leaving the registry.
func (r *Registry) RecordDisconnect(active int) {
	r.connectionsTotal.WithLabelValues("disconnect").Inc()
	r.connectionsActive.Set(float64(active))
}

// RecordInbound records an inbound client event by type.
func (r *Registry) RecordInbound(eventType string) {
	r.inboundTotal.WithLabelValues(eventType).Inc()
}

// RecordBroadcast records one broadcast and how it fanned out.
func (r *Registry) RecordBroadcast(targets, queued int) {
	r.broadcastTotal.Inc()
	r.broadcastFanout.Observe(float64(targets))
	if queued > 0 {
		r.deliveryTotal.WithLabelValues("queued").Add(float64(queued))
	}
	if dropped := targets - queued; dropped > 0 {
		r.deliveryTotal.WithLabelValues("dropped").Add(float64(dropped))
	}
}

// RecordWriteError records a socket write that failed after queueing.
func (r *Registry) RecordWriteError() {
	r.deliveryTotal.WithLabelValues("write_error").Inc()
}

// RecordNotification records one notifier side effect.
func (r *Registry) RecordNotification(source, channel, status string) {
	r.notificationTotal.WithLabelValues(source, channel, status).Inc()
}

// RecordChangeFeedEvent records a change feed notification outcome.
func (r *Registry) RecordChangeFeedEvent(status string) {
	r.changeFeedEvents.WithLabelValues(status).Inc()
}

// SetChangeFeedSubscribed flips the subscription gauge.
func (r *Registry) SetChangeFeedSubscribed(subscribed bool) {
	if subscribed {
		r.changeFeedState.Set(1)
		return
	}
	r.changeFeedState.Set(0)
}

// SetSystemInfo sets system information metrics
func (r *Registry) SetSystemInfo(version, component string) {
	r.systemInfo.WithLabelValues(version, component).Set(1)
}
