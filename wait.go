package aptoosh

import (
	"context"
	"errors"
	"time"

	"github.com/landofcash/aptoosh-sub000/internal/watch"
)

// WaitForPayload waits until the counterparty publishes (seed, slot) and
// then decrypts it with this session's order key. The signer is asked
// only once the record exists.
//
// An unpublished slot is the expected state while waiting; any other
// store error ends the wait. Without WithWaitTimeout the wait is bounded
// only by ctx.
func (s *Session) WaitForPayload(ctx context.Context, seed OrderSeed, slot Slot, opts ...WaitOption) ([]byte, error) {
	plaintext, err := s.waitForPayload(ctx, seed, slot, opts)
	s.client.metrics.observe("wait", err)
	return plaintext, err
}

func (s *Session) waitForPayload(ctx context.Context, seed OrderSeed, slot Slot, opts []WaitOption) ([]byte, error) {
	if err := seed.Validate(); err != nil {
		return nil, err
	}
	if err := validateSlot(slot); err != nil {
		return nil, err
	}

	cfg := &waitConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	waitCtx := ctx
	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}

	pollCfg := s.client.pollConfig()
	if cfg.pollInterval > 0 {
		pollCfg.InitialInterval = cfg.pollInterval
	}

	rec, err := watch.Wait(waitCtx, s.client.store, watch.Target{Seed: string(seed), Slot: slot}, pollCfg)
	if err != nil {
		if cfg.timeout > 0 && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &TimeoutError{Operation: "wait for " + string(seed) + "/" + string(slot), Timeout: cfg.timeout}
		}
		return nil, storeError("read", seed, slot, err)
	}

	return s.openRecord(ctx, seed, slot, rec)
}

// TimeoutError represents a wait that exceeded its WithWaitTimeout bound.
type TimeoutError struct {
	Operation string
	Timeout   time.Duration
}

func (e *TimeoutError) Error() string {
	return e.Operation + " timed out after " + e.Timeout.String()
}

// Unwrap returns context.DeadlineExceeded.
func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// AptooshError implements the AptooshError interface.
func (e *TimeoutError) AptooshError() {}
