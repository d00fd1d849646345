package aptoosh

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/landofcash/aptoosh-sub000/internal/watch"
	"github.com/landofcash/aptoosh-sub000/signer"
	"github.com/landofcash/aptoosh-sub000/store"
)

// Client binds the payload flows to one public store. It holds no key
// material and is safe for concurrent use; per-party state lives in
// Session values created with NewSession.
type Client struct {
	store   store.Store
	cfg     *clientConfig
	logger  *zap.Logger
	metrics *metrics

	mu      sync.Mutex
	closed  bool
	watches map[*watchHandle]struct{}
}

type watchHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a client publishing to and reading from st.
func New(st store.Store, opts ...Option) (*Client, error) {
	if st == nil {
		return nil, &InputError{Field: "store", Message: "store is required"}
	}

	cfg := &clientConfig{
		domainPrefix:   DefaultDomainPrefix,
		maxPayloadSize: DefaultMaxPayloadSize,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.domainPrefix == "" {
		return nil, &InputError{Field: "domain prefix", Message: "must not be empty"}
	}
	if cfg.maxPayloadSize <= 0 {
		return nil, &InputError{Field: "max payload size", Message: "must be positive"}
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	m, err := newMetrics(cfg.registerer)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:   st,
		cfg:     cfg,
		logger:  cfg.logger,
		metrics: m,
		watches: make(map[*watchHandle]struct{}),
	}, nil
}

// Store returns the store the client was created with.
func (c *Client) Store() store.Store {
	return c.store
}

// DomainPrefix returns the prefix signed in front of every seed.
func (c *Client) DomainPrefix() string {
	return c.cfg.domainPrefix
}

// NewSession returns a session acting as the holder of s. Sessions are
// cheap; create one per party and flow rather than sharing mutable state.
func (c *Client) NewSession(s signer.Signer) *Session {
	return &Session{
		client: c,
		signer: s,
		logger: c.logger.With(zap.String("signer", s.Identity())),
	}
}

func (c *Client) pollConfig() watch.Config {
	return watch.Config{
		InitialInterval: c.cfg.pollingInitialInterval,
		MaxInterval:     c.cfg.pollingMaxBackoff,
		Multiplier:      c.cfg.pollingBackoffMultiplier,
		JitterFactor:    c.cfg.pollingJitterFactor,
		Logger:          c.logger,
	}
}

// Target names one slot of one order.
type Target struct {
	Seed OrderSeed
	Slot Slot
}

// WatchEvent reports that a watched slot was published, or that reading
// it failed with an error other than ErrNotFound.
type WatchEvent struct {
	Target Target
	Record *store.Record
	Err    error
}

// Watch polls the given slots and delivers one event per slot as it is
// published. The channel is closed once every slot has produced its event
// or ctx is done. Records are delivered as published; use
// Session.OpenRecord to decrypt them.
//
// Example:
//
//	events, err := client.Watch(ctx,
//	    aptoosh.Target{Seed: seed, Slot: aptoosh.SlotBuyer},
//	    aptoosh.Target{Seed: seed, Slot: aptoosh.SlotSeller},
//	)
//	for ev := range events {
//	    fmt.Println(ev.Target.Slot, ev.Err)
//	}
func (c *Client) Watch(ctx context.Context, targets ...Target) (<-chan WatchEvent, error) {
	if len(targets) == 0 {
		return nil, &InputError{Field: "targets", Message: "at least one target is required"}
	}
	for _, t := range targets {
		if err := t.Seed.Validate(); err != nil {
			return nil, err
		}
		if err := validateSlot(t.Slot); err != nil {
			return nil, err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	h := &watchHandle{cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		return nil, ErrClientClosed
	}
	c.watches[h] = struct{}{}
	c.mu.Unlock()

	poller := watch.NewPoller(c.store, c.pollConfig())
	for _, t := range targets {
		poller.Add(watch.Target{Seed: string(t.Seed), Slot: t.Slot})
	}

	ch := make(chan WatchEvent, len(targets))
	go func() {
		defer func() {
			c.mu.Lock()
			delete(c.watches, h)
			c.mu.Unlock()
			close(ch)
			close(h.done)
		}()
		defer cancel()

		poller.Run(ctx, func(ev watch.Event) {
			out := WatchEvent{
				Target: Target{Seed: OrderSeed(ev.Target.Seed), Slot: ev.Target.Slot},
				Record: ev.Record,
			}
			if ev.Err != nil {
				out.Err = &StoreError{Op: "read", Seed: ev.Target.Seed, Slot: ev.Target.Slot, Err: ev.Err}
			}
			c.metrics.observe("watch", out.Err)
			ch <- out
			if poller.Len() == 0 {
				cancel()
			}
		})
	}()

	return ch, nil
}

// Close stops all running watches and waits for them to finish. It does
// not close the store.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	handles := make([]*watchHandle, 0, len(c.watches))
	for h := range c.watches {
		handles = append(handles, h)
	}
	c.mu.Unlock()

	for _, h := range handles {
		h.cancel()
		<-h.done
	}
	return nil
}

// storeError wraps a store failure for the public API. Context errors pass
// through unchanged; HTTP and network failures of a remote store surface as
// *APIError and *NetworkError under the StoreError.
func storeError(op string, seed OrderSeed, slot Slot, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &StoreError{Op: op, Seed: string(seed), Slot: slot, Err: wrapError(err)}
}
