package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/sheharzad-developer/daggys-cafe/internal/config"
)

const defaultPongWait = 60 * time.Second

type Server struct {
	config   *config.Config
	registry *Registry
	relay    OrderRelay
	logger   *zap.Logger
	started  time.Time
	upgrader websocket.Upgrader
}

func NewServer(cfg *config.Config, registry *Registry, relay OrderRelay, logger *zap.Logger) *Server {
	return &Server{
		config:   cfg,
		registry: registry,
		relay:    relay,
		logger:   logger.Named("server"),
		started:  time.Now(),
		upgrader: websocket.Upgrader{
			// Any origin may open the socket.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc(s.config.Server.Path, s.handleSocket)
	mux.HandleFunc("/api/health", s.handleHealth)
}

// Handler returns the routed mux wrapped in the CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return allowAnyOrigin(mux)
}

// allowAnyOrigin answers every origin for GET and POST and short-circuits
// preflight requests.
func allowAnyOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade error", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	c := s.registry.Connect(conn)
	defer s.registry.Disconnect(c.ID)

	s.readLoop(r.Context(), c, conn)
}

// readLoop dispatches inbound frames until the socket fails or closes.
func (s *Server) readLoop(ctx context.Context, c *Connection, conn *websocket.Conn) {
	if s.config.Relay.MaxMessage > 0 {
		conn.SetReadLimit(s.config.Relay.MaxMessage)
	}
	pongWait := s.config.Relay.PongWait
	if pongWait <= 0 {
		pongWait = defaultPongWait
	}
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	logger := s.logger.With(zap.String("connection", c.ID))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("ws read error", zap.Error(err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Debug("ignoring malformed frame", zap.Error(err))
			continue
		}

		switch msg.Type {
		case MsgNewOrder:
			s.relay.OnNewOrder(ctx, c.ID, msg.Payload)
		default:
			logger.Debug("ignoring unknown event", zap.String("type", string(msg.Type)))
		}
	}
}

type healthResponse struct {
	Status      string  `json:"status"`
	Connections int     `json:"connections"`
	Uptime      string  `json:"uptime"`
	RSSBytes    uint64  `json:"rssBytes,omitempty"`
	CPUPercent  float64 `json:"cpuPercent,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:      "ok",
		Connections: s.registry.Len(),
		Uptime:      time.Since(s.started).Round(time.Second).String(),
	}

	if p, err := process.NewProcessWithContext(r.Context(), int32(os.Getpid())); err == nil {
		if mem, err := p.MemoryInfoWithContext(r.Context()); err == nil {
			resp.RSSBytes = mem.RSS
		}
		if cpu, err := p.CPUPercentWithContext(r.Context()); err == nil {
			resp.CPUPercent = cpu
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ListenAndServe serves until ctx is cancelled, then shuts the HTTP server
// down and tears the registry down with it.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.config.Addr(),
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("relay listening",
			zap.String("addr", srv.Addr),
			zap.String("path", s.config.Server.Path),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("relay server failed: %w", err)
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		s.registry.Close()
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	// Shutdown does not wait for hijacked websocket connections.
	s.registry.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("relay shutdown: %w", err)
	}
	s.logger.Info("relay stopped")
	return nil
}
