package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	reconnectBaseDelay = 1 * time.Second
	reconnectMaxDelay  = 30 * time.Second
	writeTimeout       = 10 * time.Second
	pongTimeout        = 60 * time.Second
	pingInterval       = 30 * time.Second
)

var ErrNotConnected = errors.New("not connected to order relay")

// Hooks observe connection transitions made by Listen.
type Hooks struct {
	OnConnect    func()
	OnDisconnect func(err error)
}

// Client manages one WebSocket connection to the order relay.
type Client struct {
	url    string
	logger *zap.Logger
	dialer *websocket.Dialer

	mu       sync.Mutex
	writeMu  sync.Mutex // serialises all conn writes (ping, emit, close)
	conn     *websocket.Conn
	pingStop context.CancelFunc

	subsMu  sync.RWMutex
	subs    map[int]func(json.RawMessage)
	nextSub int
}

// New creates a client for the relay at url. Nothing is dialled until
// Connect or Listen.
func New(url string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		url:    url,
		logger: logger.Named("client"),
		dialer: websocket.DefaultDialer,
		subs:   make(map[int]func(json.RawMessage)),
	}
}

// Connect dials the relay once and starts the keepalive. Any previous
// connection is closed.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	c.mu.Lock()
	if c.pingStop != nil {
		c.pingStop()
	}
	old := c.conn
	pingCtx, pingCancel := context.WithCancel(context.Background())
	c.conn = conn
	c.pingStop = pingCancel
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}

	go c.pingLoop(pingCtx, conn)
	c.logger.Info("connected to order relay", zap.String("url", c.url))
	return nil
}

// Connected reports whether a socket is currently held.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close sends a close frame and releases the connection. Subscriptions are
// kept so a later Connect resumes delivery.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	if c.pingStop != nil {
		c.pingStop()
		c.pingStop = nil
	}
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	c.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	return conn.Close()
}

// OnOrderUpdate registers fn for every orderUpdate received. The returned
// func removes the subscription.
func (c *Client) OnOrderUpdate(fn func(json.RawMessage)) func() {
	c.subsMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.subsMu.Unlock()

	return func() {
		c.subsMu.Lock()
		delete(c.subs, id)
		c.subsMu.Unlock()
	}
}

// EmitNewOrder sends v as a newOrder event.
func (c *Client) EmitNewOrder(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode order: %w", err)
	}
	data, err := json.Marshal(WSMessage{Type: MsgNewOrder, Payload: payload})
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("emit newOrder: %w", err)
	}
	return nil
}

// ReadLoop reads from the current connection until it fails or ctx is
// cancelled, dispatching orderUpdate payloads to subscribers.
func (c *Client) ReadLoop(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})
	conn.SetReadDeadline(time.Now().Add(pongTimeout))

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
				if c.pingStop != nil {
					c.pingStop()
					c.pingStop = nil
				}
			}
			c.mu.Unlock()
			conn.Close()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("dropping malformed frame", zap.Error(err))
			continue
		}
		if msg.Type != MsgOrderUpdate {
			c.logger.Debug("ignoring message", zap.String("type", string(msg.Type)))
			continue
		}
		c.dispatch(msg.Payload)
	}
}

// Listen keeps the client connected until ctx is cancelled, reconnecting
// with exponential back-off.
func (c *Client) Listen(ctx context.Context, hooks Hooks) error {
	delay := reconnectBaseDelay
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := c.Connect(ctx); err != nil {
			c.logger.Warn("relay dial failed", zap.Error(err), zap.Duration("retry", delay))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = min(delay*2, reconnectMaxDelay)
			continue
		}
		delay = reconnectBaseDelay

		if hooks.OnConnect != nil {
			hooks.OnConnect()
		}
		err := c.ReadLoop(ctx)
		if hooks.OnDisconnect != nil {
			hooks.OnDisconnect(err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("relay connection lost", zap.Error(err))
	}
}

func (c *Client) dispatch(payload json.RawMessage) {
	c.subsMu.RLock()
	fns := make([]func(json.RawMessage), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.subsMu.RUnlock()

	for _, fn := range fns {
		fn(payload)
	}
}

// pingLoop sends periodic pings on the given connection. It exits when the
// context is cancelled or the connection changes.
func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			cc := c.conn
			c.mu.Unlock()
			if cc != conn {
				return
			}
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
