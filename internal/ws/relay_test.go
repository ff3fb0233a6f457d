package ws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/sheharzad-developer/daggys-cafe/internal/metrics"
	"github.com/sheharzad-developer/daggys-cafe/internal/tracing"
)

func newTestRelay(t *testing.T, r *Registry) *Relay {
	t.Helper()
	relay, err := NewRelay(r, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRelay: %v", err)
	}
	return relay
}

func assertOrderUpdate(t *testing.T, msg WSMessage, wantPayload string) {
	t.Helper()
	if msg.Type != MsgOrderUpdate {
		t.Errorf("type = %q, want %q", msg.Type, MsgOrderUpdate)
	}
	if string(msg.Payload) != wantPayload {
		t.Errorf("payload = %s, want %s", msg.Payload, wantPayload)
	}
}

func TestNewRelayRequiresRegistry(t *testing.T) {
	if _, err := NewRelay(nil, zap.NewNop()); err == nil {
		t.Fatal("NewRelay(nil registry) should fail")
	}
}

func TestOnNewOrder_BroadcastsToAllIncludingSender(t *testing.T) {
	r := newTestRegistry()
	defer r.Close()
	relay := newTestRelay(t, r)

	fa, fb, fc := newFakeConn(), newFakeConn(), newFakeConn()
	a := r.Connect(fa)
	r.Connect(fb)
	r.Connect(fc)

	payload := `{"id":"ORD010","customerName":"Alex","total":9.99}`
	res := relay.OnNewOrder(context.Background(), a.ID, json.RawMessage(payload))

	if res.Targets != 3 || res.Queued != 3 {
		t.Fatalf("result = %+v, want 3 targets and 3 queued", res)
	}
	for _, f := range []*fakeConn{fa, fb, fc} {
		assertOrderUpdate(t, f.next(t), payload)
	}
}

func TestOnNewOrder_DisconnectedBeforeBroadcastReceivesNothing(t *testing.T) {
	r := newTestRegistry()
	defer r.Close()
	relay := newTestRelay(t, r)

	fa, fb := newFakeConn(), newFakeConn()
	a := r.Connect(fa)
	b := r.Connect(fb)

	r.Disconnect(b.ID)
	res := relay.OnNewOrder(context.Background(), a.ID, json.RawMessage(`{"id":"ORD011"}`))
	if res.Targets != 1 {
		t.Fatalf("Targets = %d, want 1", res.Targets)
	}

	assertOrderUpdate(t, fa.next(t), `{"id":"ORD011"}`)
	fb.expectNone(t)
}

func TestOnNewOrder_DisconnectAfterBroadcastStillDeliveredOnce(t *testing.T) {
	r := newTestRegistry()
	relay := newTestRelay(t, r)

	fa := newFakeConn()
	a := r.Connect(fa)

	relay.OnNewOrder(context.Background(), a.ID, json.RawMessage(`{"id":"ORD012"}`))
	r.Disconnect(a.ID)

	assertOrderUpdate(t, fa.next(t), `{"id":"ORD012"}`)
	fa.expectNone(t)
}

func TestOnNewOrder_NoConnections(t *testing.T) {
	relay := newTestRelay(t, newTestRegistry())

	res := relay.OnNewOrder(context.Background(), "ghost", json.RawMessage(`{"id":"ORD013"}`))
	if res != (BroadcastResult{}) {
		t.Fatalf("result = %+v, want zero", res)
	}
}

func TestOnNewOrder_PreservesSubmissionOrder(t *testing.T) {
	r := newTestRegistry()
	defer r.Close()
	relay := newTestRelay(t, r)

	fa, fb := newFakeConn(), newFakeConn()
	a := r.Connect(fa)
	r.Connect(fb)

	relay.OnNewOrder(context.Background(), a.ID, json.RawMessage(`{"id":"first"}`))
	relay.OnNewOrder(context.Background(), a.ID, json.RawMessage(`{"id":"second"}`))

	for _, f := range []*fakeConn{fa, fb} {
		assertOrderUpdate(t, f.next(t), `{"id":"first"}`)
		assertOrderUpdate(t, f.next(t), `{"id":"second"}`)
	}
}

func TestOnNewOrder_PassesPayloadThroughUnvalidated(t *testing.T) {
	r := newTestRegistry()
	defer r.Close()
	relay := newTestRelay(t, r)

	fa := newFakeConn()
	a := r.Connect(fa)

	relay.OnNewOrder(context.Background(), a.ID, json.RawMessage(`["not","an","order"]`))
	assertOrderUpdate(t, fa.next(t), `["not","an","order"]`)

	relay.OnNewOrder(context.Background(), a.ID, nil)
	assertOrderUpdate(t, fa.next(t), `null`)
}

func TestOnNewOrder_WriteFailureDoesNotAffectOthers(t *testing.T) {
	r := newTestRegistry()
	defer r.Close()
	relay := newTestRelay(t, r)

	broken := newFakeConn()
	broken.writeErr = errors.New("connection reset")
	healthy := newFakeConn()
	r.Connect(broken)
	sender := r.Connect(healthy)

	relay.OnNewOrder(context.Background(), sender.ID, json.RawMessage(`{"id":"ORD014"}`))

	assertOrderUpdate(t, healthy.next(t), `{"id":"ORD014"}`)
	waitFor(t, "broken connection removal", func() bool { return r.Len() == 1 })
}

func TestOnNewOrder_FullQueueDropsOnlyThatConnection(t *testing.T) {
	r := newTestRegistry(WithSendBuffer(1))
	relay := newTestRelay(t, r)

	stuck := newFakeConn()
	stuck.block = make(chan struct{})
	fast := newFakeConn()
	sc := r.Connect(stuck)
	sender := r.Connect(fast)

	// The stuck writer holds the first frame, the second fills the queue,
	// and the third has nowhere to go.
	var last BroadcastResult
	for i, id := range []string{"a", "b", "c"} {
		last = relay.OnNewOrder(context.Background(), sender.ID, json.RawMessage(`{"id":"`+id+`"}`))
		assertOrderUpdate(t, fast.next(t), `{"id":"`+id+`"}`)
		if i == 0 {
			waitFor(t, "stuck writer to take the first frame", func() bool { return len(sc.send) == 0 })
		}
	}

	if last.Targets != 2 || last.Queued != 1 {
		t.Fatalf("last result = %+v, want 2 targets and 1 queued", last)
	}

	close(stuck.block)
	r.Close()
}

func TestDecoratedRelayRecordsMetrics(t *testing.T) {
	r := newTestRegistry()
	defer r.Close()
	reg := metrics.NewRegistry()

	relay := NewTracedRelay(NewMetricsRelay(newTestRelay(t, r), reg), tracing.NewNoopTracer())

	fa := newFakeConn()
	a := r.Connect(fa)
	res := relay.OnNewOrder(context.Background(), a.ID, json.RawMessage(`{"id":"ORD015"}`))
	if res.Queued != 1 {
		t.Fatalf("Queued = %d, want 1", res.Queued)
	}
	assertOrderUpdate(t, fa.next(t), `{"id":"ORD015"}`)

	n, err := testutil.GatherAndCount(reg.Gatherer(), "relay_broadcast_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 1 {
		t.Fatalf("relay_broadcast_total series = %d, want 1", n)
	}
}

func TestOnNewOrder_ForwardsPayloadBytesUnchanged(t *testing.T) {
	r := newTestRegistry()
	defer r.Close()
	relay := newTestRelay(t, r)

	fa := newFakeConn()
	a := r.Connect(fa)

	payload := `{"id": "ORD010",  "customerName": "A&B <Cafe>", "total": 9.99}`
	relay.OnNewOrder(context.Background(), a.ID, json.RawMessage(payload))

	select {
	case frame := <-fa.frames:
		want := `{"type":"orderUpdate","payload":` + payload + `}`
		if string(frame) != want {
			t.Fatalf("frame = %s, want %s", frame, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
}

func TestOnNewOrder_DropsInvalidJSON(t *testing.T) {
	r := newTestRegistry()
	defer r.Close()
	relay := newTestRelay(t, r)

	fa := newFakeConn()
	a := r.Connect(fa)

	res := relay.OnNewOrder(context.Background(), a.ID, json.RawMessage(`{"id":`))
	if res.Queued != 0 {
		t.Fatalf("queued = %d, want 0", res.Queued)
	}
	fa.expectNone(t)
}
