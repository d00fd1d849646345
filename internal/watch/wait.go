package watch

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/landofcash/aptoosh-sub000/store"
)

// Wait polls r until target is published and returns its record. The first
// read happens immediately. store.ErrNotFound means "not yet" and keeps the
// loop going; any other read error is returned as is. Only ctx bounds the
// wait.
func Wait(ctx context.Context, r Reader, target Target, cfg Config) (*store.Record, error) {
	cfg = cfg.withDefaults()
	backoff := NewBackoff(cfg)

	for attempt := 1; ; attempt++ {
		rec, err := r.Read(ctx, target.Seed, target.Slot)
		if err == nil {
			cfg.Logger.Debug("slot published",
				zap.Stringer("target", target), zap.Int("polls", attempt))
			return rec, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, err
		}

		wait := backoff.Next()
		cfg.Logger.Debug("slot not published yet",
			zap.Stringer("target", target),
			zap.Int("polls", attempt),
			zap.Duration("next", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}
