package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sheharzad-developer/daggys-cafe/internal/metrics"
)

type fakeAlerter struct {
	mu         sync.Mutex
	permission error
	alertErr   error
	panics     bool
	alerts     []string
}

func (f *fakeAlerter) RequestPermission(context.Context) error { return f.permission }

func (f *fakeAlerter) Alert(title, body string) error {
	if f.panics {
		panic("notification daemon exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts = append(f.alerts, title+"|"+body)
	return f.alertErr
}

func (f *fakeAlerter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

type fakePlayer struct {
	mu    sync.Mutex
	err   error
	plays int
}

func (f *fakePlayer) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.plays++
	return f.err
}

func (f *fakePlayer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.plays
}

func newTestNotifier(t *testing.T, a *fakeAlerter, p *fakePlayer) *Notifier {
	t.Helper()
	n, err := New(a, p, zaptest.NewLogger(t), metrics.NewRegistry())
	require.NoError(t, err)
	return n
}

func TestNewRequiresDeps(t *testing.T) {
	_, err := New(nil, &fakePlayer{}, zaptest.NewLogger(t), nil)
	require.Error(t, err)
}

func TestNotify_AlertAndSound(t *testing.T) {
	a, p := &fakeAlerter{}, &fakePlayer{}
	n := newTestNotifier(t, a, p)
	require.Equal(t, PermissionGranted, n.RequestPermission(context.Background()))

	n.Notify(Notification{Source: SourceRelay, OrderID: "ORD010", CustomerName: "Alex"})
	n.Wait()

	require.Equal(t, []string{"New Order!|Order #ORD010 from Alex"}, a.alerts)
	require.Equal(t, 1, p.count())
}

func TestNotify_ChangeFeedTitle(t *testing.T) {
	a, p := &fakeAlerter{}, &fakePlayer{}
	n := newTestNotifier(t, a, p)
	n.RequestPermission(context.Background())

	n.Notify(Notification{Source: SourceChangeFeed, OrderID: "ORD-1", CustomerName: "Sam"})
	n.Wait()

	require.Equal(t, []string{"New Order from Database!|Order #ORD-1 from Sam"}, a.alerts)
}

func TestNotify_PermissionDeniedStillPlaysSound(t *testing.T) {
	a := &fakeAlerter{permission: ErrPermissionDenied}
	p := &fakePlayer{}
	n := newTestNotifier(t, a, p)
	require.Equal(t, PermissionDenied, n.RequestPermission(context.Background()))

	n.Notify(Notification{Source: SourceRelay, OrderID: "ORD010"})
	n.Wait()

	require.Zero(t, a.count())
	require.Equal(t, 1, p.count())
}

func TestNotify_PermissionNeverRequestedSkipsAlert(t *testing.T) {
	a, p := &fakeAlerter{}, &fakePlayer{}
	n := newTestNotifier(t, a, p)
	require.Equal(t, PermissionDefault, n.Permission())

	n.Notify(Notification{Source: SourceRelay, OrderID: "ORD010"})
	n.Wait()

	require.Zero(t, a.count())
	require.Equal(t, 1, p.count())
}

func TestNotify_PermissionIsNotRecheckedPerEvent(t *testing.T) {
	a, p := &fakeAlerter{}, &fakePlayer{}
	n := newTestNotifier(t, a, p)
	n.RequestPermission(context.Background())

	// The platform revoking permission later is not observed.
	a.permission = ErrPermissionDenied
	n.Notify(Notification{Source: SourceRelay, OrderID: "ORD010"})
	n.Wait()

	require.Equal(t, 1, a.count())
}

func TestNotify_PlaybackRejectedStillAlerts(t *testing.T) {
	a := &fakeAlerter{}
	p := &fakePlayer{err: ErrPlaybackRejected}
	n := newTestNotifier(t, a, p)
	n.RequestPermission(context.Background())

	n.Notify(Notification{Source: SourceRelay, OrderID: "ORD010"})
	n.Wait()

	require.Equal(t, 1, a.count())
	require.Equal(t, 1, p.count())
}

func TestNotify_AlertFailureOrPanicDoesNotStopSound(t *testing.T) {
	for name, a := range map[string]*fakeAlerter{
		"error": {alertErr: errors.New("dbus unavailable")},
		"panic": {panics: true},
	} {
		t.Run(name, func(t *testing.T) {
			p := &fakePlayer{}
			n := newTestNotifier(t, a, p)
			n.RequestPermission(context.Background())

			n.Notify(Notification{Source: SourceChangeFeed, OrderID: "ORD010"})
			n.Wait()

			require.Equal(t, 1, p.count())
		})
	}
}

func TestNotify_NoCoalescing(t *testing.T) {
	a, p := &fakeAlerter{}, &fakePlayer{}
	n := newTestNotifier(t, a, p)
	n.RequestPermission(context.Background())

	for i := 0; i < 5; i++ {
		n.Notify(Notification{Source: SourceRelay, OrderID: "ORD010"})
	}
	n.Wait()

	require.Equal(t, 5, a.count())
	require.Equal(t, 5, p.count())
}

func TestNotify_ReturnsBeforeSideEffectsFinish(t *testing.T) {
	release := make(chan struct{})
	p := &blockingPlayer{release: release}
	n, err := New(&fakeAlerter{}, p, zaptest.NewLogger(t), nil)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		n.Notify(Notification{Source: SourceRelay, OrderID: "ORD010"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on audio playback")
	}
	close(release)
	n.Wait()
}

type blockingPlayer struct {
	release chan struct{}
}

func (b *blockingPlayer) Play() error {
	<-b.release
	return nil
}

func TestDisabledDesktopDeniesPermission(t *testing.T) {
	require.ErrorIs(t, NewDesktop(false, "").RequestPermission(context.Background()), ErrPermissionDenied)
	require.NoError(t, NewDesktop(true, "").RequestPermission(context.Background()))
}

func TestDisabledBeeperRejectsPlayback(t *testing.T) {
	require.ErrorIs(t, NewBeeper(false, 0, 0).Play(), ErrPlaybackRejected)
}
