package delivery

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces consecutive sends within one delivery run. It exists so tests
// can run the engine without real wall-clock delay.
type Pacer interface {
	Wait(ctx context.Context) error
}

// DefaultPace is the fixed inter-send courtesy interval. It is a rate-limit
// courtesy to Telegram, not a correctness requirement.
const DefaultPace = 100 * time.Millisecond

type intervalPacer struct {
	lim *rate.Limiter
}

// Interval returns a Pacer that releases one send per interval.
func Interval(d time.Duration) Pacer {
	if d <= 0 {
		d = DefaultPace
	}
	return &intervalPacer{lim: rate.NewLimiter(rate.Every(d), 1)}
}

func (p *intervalPacer) Wait(ctx context.Context) error { return p.lim.Wait(ctx) }

type nopPacer struct{}

// Nop returns a Pacer that never waits.
func Nop() Pacer { return nopPacer{} }

func (nopPacer) Wait(context.Context) error { return nil }
