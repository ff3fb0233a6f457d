package notify

import (
	"context"
	"time"

	"github.com/gen2brain/beeep"
)

// Desktop shows alerts through the operating system's notification service.
type Desktop struct {
	enabled bool
	icon    string
}

func NewDesktop(enabled bool, icon string) *Desktop {
	return &Desktop{enabled: enabled, icon: icon}
}

func (d *Desktop) RequestPermission(ctx context.Context) error {
	if !d.enabled {
		return ErrPermissionDenied
	}
	return ctx.Err()
}

func (d *Desktop) Alert(title, body string) error {
	return beeep.Notify(title, body, d.icon)
}

// Beeper plays a short tone as the audio cue.
type Beeper struct {
	enabled   bool
	frequency float64
	duration  time.Duration
}

func NewBeeper(enabled bool, frequency float64, duration time.Duration) *Beeper {
	if frequency <= 0 {
		frequency = beeep.DefaultFreq
	}
	if duration <= 0 {
		duration = time.Duration(beeep.DefaultDuration) * time.Millisecond
	}
	return &Beeper{enabled: enabled, frequency: frequency, duration: duration}
}

func (b *Beeper) Play() error {
	if !b.enabled {
		return ErrPlaybackRejected
	}
	return beeep.Beep(b.frequency, int(b.duration.Milliseconds()))
}
