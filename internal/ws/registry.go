package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sheharzad-developer/daggys-cafe/internal/metrics"
)

const defaultSendBuffer = 64

// Conn is the part of *websocket.Conn a registered connection writes through.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Connection is one live client session. It is owned by the Registry that
// created it and has a single writer goroutine.
type Connection struct {
	ID string

	conn         Conn
	registry     *Registry
	writeTimeout time.Duration
	pingInterval time.Duration

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// enqueue hands data to the writer without blocking. It reports false when
// the connection is gone or its queue is full; the frame is then dropped.
func (c *Connection) enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *Connection) shutdown() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	c.mu.Unlock()
}

// writePump is the only goroutine that writes to the socket. With a ping
// interval set it also keeps quiet peers alive; the server's pong handler
// extends the read deadline.
func (c *Connection) writePump() {
	defer c.conn.Close()

	var tick <-chan time.Time
	if c.pingInterval > 0 {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.registry.writeFailed(c, err)
				return
			}
		case <-tick:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.registry.writeFailed(c, err)
				return
			}
		}
	}
}

func (c *Connection) write(messageType int, data []byte) error {
	if c.writeTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteMessage(messageType, data)
}

// Registry tracks the connections currently open on one relay endpoint.
// Membership lives only in memory; a restart clears it.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection
	order []*Connection

	sendBuffer   int
	writeTimeout time.Duration
	pingInterval time.Duration
	logger       *zap.Logger
	metrics      *metrics.Registry
	newID        func() string
}

type RegistryOption func(*Registry)

// WithSendBuffer sets the per-connection outbound queue length.
func WithSendBuffer(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.sendBuffer = n
		}
	}
}

// WithWriteTimeout bounds each socket write.
func WithWriteTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) { r.writeTimeout = d }
}

// WithPingInterval makes every connection's writer send a ping at d.
// Zero disables pings.
func WithPingInterval(d time.Duration) RegistryOption {
	return func(r *Registry) { r.pingInterval = d }
}

// WithMetrics records connection lifecycle metrics.
func WithMetrics(m *metrics.Registry) RegistryOption {
	return func(r *Registry) { r.metrics = m }
}

func NewRegistry(logger *zap.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		conns:      make(map[string]*Connection),
		sendBuffer: defaultSendBuffer,
		logger:     logger.Named("registry"),
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connect registers conn and starts its writer. It always succeeds.
func (r *Registry) Connect(conn Conn) *Connection {
	c := &Connection{
		ID:           r.newID(),
		conn:         conn,
		registry:     r,
		writeTimeout: r.writeTimeout,
		pingInterval: r.pingInterval,
		send:         make(chan []byte, r.sendBuffer),
	}

	r.mu.Lock()
	r.conns[c.ID] = c
	r.order = append(r.order, c)
	active := len(r.conns)
	r.mu.Unlock()

	go c.writePump()

	r.logger.Info("client connected", zap.String("connection", c.ID), zap.Int("active", active))
	if r.metrics != nil {
		r.metrics.RecordConnect(active)
	}

	return c
}

// Disconnect removes the connection with id. Removing an unknown or
// already-removed id is a no-op and reports false.
func (r *Registry) Disconnect(id string) bool {
	r.mu.Lock()
	c, ok := r.conns[id]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.conns, id)
	for i, oc := range r.order {
		if oc == c {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	active := len(r.conns)
	r.mu.Unlock()

	c.shutdown()

	r.logger.Info("client disconnected", zap.String("connection", id), zap.Int("active", active))
	if r.metrics != nil {
		r.metrics.RecordDisconnect(active)
	}

	return true
}

// Snapshot returns the registered connections in registration order.
// Connections that join afterwards are not included.
func (r *Registry) Snapshot() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Connection, len(r.order))
	copy(out, r.order)
	return out
}

// Len is the current membership count.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Close disconnects every registered connection.
func (r *Registry) Close() {
	for _, c := range r.Snapshot() {
		r.Disconnect(c.ID)
	}
}

func (r *Registry) writeFailed(c *Connection, err error) {
	r.logger.Debug("ws write failed", zap.String("connection", c.ID), zap.Error(err))
	if r.metrics != nil {
		r.metrics.RecordWriteError()
	}
	r.Disconnect(c.ID)
}
