package watch

import (
	"math/rand/v2"
	"time"
)

// Backoff is an adaptive poll interval. It grows by the multiplier after
// every empty poll up to the maximum. A Backoff is not safe for concurrent
// use.
type Backoff struct {
	cfg     Config
	current time.Duration
}

// NewBackoff returns a backoff starting at cfg.InitialInterval.
func NewBackoff(cfg Config) *Backoff {
	cfg = cfg.withDefaults()
	return &Backoff{cfg: cfg, current: cfg.InitialInterval}
}

// Current returns the interval without jitter.
func (b *Backoff) Current() time.Duration {
	return b.current
}

// Next returns the wait before the next poll, with jitter, and grows the
// interval for the poll after that.
func (b *Backoff) Next() time.Duration {
	wait := b.current
	if b.cfg.JitterFactor > 0 {
		wait += time.Duration(rand.Float64() * b.cfg.JitterFactor * float64(b.current))
	}

	grown := time.Duration(float64(b.current) * b.cfg.Multiplier)
	if grown > b.cfg.MaxInterval {
		grown = b.cfg.MaxInterval
	}
	b.current = grown
	return wait
}

// Reset returns the interval to its initial value.
func (b *Backoff) Reset() {
	b.current = b.cfg.InitialInterval
}
