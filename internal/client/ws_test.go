package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sheharzad-developer/daggys-cafe/internal/config"
	"github.com/sheharzad-developer/daggys-cafe/internal/order"
	"github.com/sheharzad-developer/daggys-cafe/internal/ws"
)

func startRelay(t *testing.T) (string, *ws.Registry) {
	t.Helper()

	cfg, err := config.LoadOrDefault("/nonexistent/config.yaml")
	require.NoError(t, err)

	logger := zaptest.NewLogger(t)
	registry := ws.NewRegistry(logger)
	relay, err := ws.NewRelay(registry, logger)
	require.NoError(t, err)

	srv := httptest.NewServer(ws.NewServer(cfg, registry, relay, logger).Handler())
	t.Cleanup(func() {
		registry.Close()
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http") + cfg.Server.Path, registry
}

func waitForConnections(t *testing.T, registry *ws.Registry, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for registry.Len() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d connections, have %d", n, registry.Len())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEmitBeforeConnect(t *testing.T) {
	c := New("ws://127.0.0.1:1/api/socket", zaptest.NewLogger(t))
	require.ErrorIs(t, c.EmitNewOrder(order.Event{ID: "ORD010"}), ErrNotConnected)
	require.NoError(t, c.Close())
}

func TestEmitReachesEverySubscriberIncludingSender(t *testing.T) {
	url, registry := startRelay(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := New(url, zaptest.NewLogger(t))
	watcher := New(url, zaptest.NewLogger(t))
	require.NoError(t, sender.Connect(ctx))
	require.NoError(t, watcher.Connect(ctx))
	defer sender.Close()
	defer watcher.Close()
	waitForConnections(t, registry, 2)

	got := make(chan string, 4)
	sender.OnOrderUpdate(func(p json.RawMessage) { got <- "sender:" + string(p) })
	watcher.OnOrderUpdate(func(p json.RawMessage) { got <- "watcher:" + string(p) })
	go sender.ReadLoop(ctx)
	go watcher.ReadLoop(ctx)

	require.NoError(t, sender.EmitNewOrder(map[string]any{"id": "ORD010", "total": 9}))

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case s := <-got:
			seen[s] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for orderUpdate")
		}
	}
	require.True(t, seen[`sender:{"id":"ORD010","total":9}`])
	require.True(t, seen[`watcher:{"id":"ORD010","total":9}`])
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	c := New("ws://unused", zaptest.NewLogger(t))
	calls := 0
	unsubscribe := c.OnOrderUpdate(func(json.RawMessage) { calls++ })

	c.dispatch(json.RawMessage(`{}`))
	unsubscribe()
	c.dispatch(json.RawMessage(`{}`))

	require.Equal(t, 1, calls)
}

func TestCloseRemovesConnection(t *testing.T) {
	url, registry := startRelay(t)
	c := New(url, zaptest.NewLogger(t))
	require.NoError(t, c.Connect(context.Background()))
	waitForConnections(t, registry, 1)

	require.NoError(t, c.Close())
	require.False(t, c.Connected())
	waitForConnections(t, registry, 0)
	require.ErrorIs(t, c.EmitNewOrder(order.Event{ID: "ORD010"}), ErrNotConnected)
}

func TestListenReportsConnectAndStopsOnCancel(t *testing.T) {
	url, registry := startRelay(t)
	c := New(url, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	connected := make(chan struct{}, 1)
	disconnected := make(chan error, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.Listen(ctx, Hooks{
			OnConnect:    func() { connected <- struct{}{} },
			OnDisconnect: func(err error) { disconnected <- err },
		})
	}()

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("Listen never connected")
	}
	waitForConnections(t, registry, 1)

	cancel()
	select {
	case err := <-done:
		require.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("Listen did not return after cancel")
	}
	require.Error(t, <-disconnected)
	waitForConnections(t, registry, 0)
}

func TestListenGivesUpOnCancelWhileDialling(t *testing.T) {
	c := New("ws://127.0.0.1:1/api/socket", zaptest.NewLogger(t))
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := c.Listen(ctx, Hooks{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDecodeOrder(t *testing.T) {
	ev, err := DecodeOrder(json.RawMessage(`{"id":"ORD010","customerName":"Alex","total":12.5,"status":"Pending"}`))
	require.NoError(t, err)
	require.Equal(t, "ORD010", ev.ID)
	require.Equal(t, order.StatusPending, ev.Status)

	_, err = DecodeOrder(json.RawMessage(`"just a string"`))
	require.Error(t, err)

	_, err = DecodeOrder(json.RawMessage(`{"total":1}`))
	require.Error(t, err)
}
