// Package notify turns order events from either notification path into a
// desktop alert and an audio cue.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/sheharzad-developer/daggys-cafe/internal/metrics"
	"github.com/sheharzad-developer/daggys-cafe/internal/order"
	"github.com/sheharzad-developer/daggys-cafe/internal/validator"
)

var (
	ErrPermissionDenied = errors.New("notification permission denied")
	ErrPlaybackRejected = errors.New("audio playback rejected")
)

// Source names the path a notification arrived through.
type Source string

const (
	SourceRelay      Source = "relay"
	SourceChangeFeed Source = "change_feed"
)

// Notification is what both paths hand to the Notifier.
type Notification struct {
	Source       Source
	OrderID      string
	CustomerName string
}

func (n Notification) Title() string {
	if n.Source == SourceChangeFeed {
		return "New Order from Database!"
	}
	return "New Order!"
}

func (n Notification) Body() string {
	return order.Headline(n.OrderID, n.CustomerName)
}

type Permission int32

const (
	PermissionDefault Permission = iota
	PermissionGranted
	PermissionDenied
)

func (p Permission) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "default"
	}
}

// Alerter shows a system notification.
type Alerter interface {
	// RequestPermission asks the platform once whether alerts may be shown.
	RequestPermission(ctx context.Context) error
	Alert(title, body string) error
}

// Player plays the audio cue.
type Player interface {
	Play() error
}

// Notifier emits the alert and the sound independently and best-effort.
// Nothing it does is reported back to the caller.
type Notifier struct {
	alerter Alerter
	player  Player
	logger  *zap.Logger
	metrics *metrics.Registry

	permission atomic.Int32
	inflight   sync.WaitGroup
}

func New(alerter Alerter, player Player, logger *zap.Logger, m *metrics.Registry) (*Notifier, error) {
	n := Notifier{
		alerter: alerter,
		player:  player,
		logger:  logger,
		metrics: m,
	}

	if err := validator.Validate("notifier", n.alerter, n.player, n.logger); err != nil {
		return nil, fmt.Errorf("failed to validate notifier deps: %w", err)
	}

	n.logger = n.logger.Named("notifier")
	return &n, nil
}

// RequestPermission resolves alert permission. The answer is cached and is
// not re-checked per notification.
func (n *Notifier) RequestPermission(ctx context.Context) Permission {
	p := PermissionGranted
	if err := n.alerter.RequestPermission(ctx); err != nil {
		n.logger.Info("desktop notifications unavailable", zap.Error(err))
		p = PermissionDenied
	}
	n.permission.Store(int32(p))
	return p
}

func (n *Notifier) Permission() Permission {
	return Permission(n.permission.Load())
}

// Notify dispatches the alert and the sound as separate tasks and returns
// immediately. N calls make N attempts of each.
func (n *Notifier) Notify(note Notification) {
	logger := n.logger.With(
		zap.String("source", string(note.Source)),
		zap.String("order", note.OrderID),
	)
	logger.Info("new order notification")

	if n.Permission() == PermissionGranted {
		n.dispatch(logger, note.Source, "desktop", func() error {
			return n.alerter.Alert(note.Title(), note.Body())
		})
	} else {
		logger.Debug("skipping desktop alert", zap.Stringer("permission", n.Permission()))
		n.record(note.Source, "desktop", "denied")
	}

	n.dispatch(logger, note.Source, "sound", n.player.Play)
}

// Wait blocks until every dispatched side effect has finished.
func (n *Notifier) Wait() {
	n.inflight.Wait()
}

func (n *Notifier) dispatch(logger *zap.Logger, source Source, channel string, fn func() error) {
	n.inflight.Add(1)
	go func() {
		defer n.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Error("notification task panicked", zap.String("channel", channel), zap.Any("panic", r))
				n.record(source, channel, "error")
			}
		}()

		if err := fn(); err != nil {
			logger.Warn("notification failed", zap.String("channel", channel), zap.Error(err))
			n.record(source, channel, "error")
			return
		}
		n.record(source, channel, "success")
	}()
}

func (n *Notifier) record(source Source, channel, status string) {
	if n.metrics != nil {
		n.metrics.RecordNotification(string(source), channel, status)
	}
}
