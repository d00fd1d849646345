package watch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/landofcash/aptoosh-sub000/store"
)

// Default polling configuration values.
const (
	DefaultInitialInterval = 2 * time.Second
	DefaultMaxInterval     = 30 * time.Second
	DefaultMultiplier      = 1.5
	DefaultJitterFactor    = 0.3
)

// Reader is the read side of a store.
type Reader interface {
	Read(ctx context.Context, seed string, slot store.Slot) (*store.Record, error)
}

// Target identifies one slot of one order.
type Target struct {
	Seed string
	Slot store.Slot
}

func (t Target) String() string {
	return t.Seed + "/" + string(t.Slot)
}

// Config holds polling configuration.
type Config struct {
	// InitialInterval is the starting interval between polls.
	// If zero, defaults to DefaultInitialInterval.
	InitialInterval time.Duration

	// MaxInterval caps the interval between polls.
	// If zero, defaults to DefaultMaxInterval.
	MaxInterval time.Duration

	// Multiplier is the factor by which the interval grows after each poll
	// that finds nothing. If zero, defaults to DefaultMultiplier; values
	// between 0 and 1 are raised to 1 so the interval never shrinks.
	Multiplier float64

	// JitterFactor is the maximum random jitter added to intervals, as a
	// fraction of the interval. If zero, defaults to DefaultJitterFactor;
	// a negative value disables jitter.
	JitterFactor float64

	// Logger receives poll diagnostics.
	Logger *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.InitialInterval <= 0 {
		c.InitialInterval = DefaultInitialInterval
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = DefaultMaxInterval
	}
	if c.MaxInterval < c.InitialInterval {
		c.MaxInterval = c.InitialInterval
	}
	switch {
	case c.Multiplier <= 0:
		c.Multiplier = DefaultMultiplier
	case c.Multiplier < 1:
		c.Multiplier = 1
	}
	switch {
	case c.JitterFactor == 0:
		c.JitterFactor = DefaultJitterFactor
	case c.JitterFactor < 0:
		c.JitterFactor = 0
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}
