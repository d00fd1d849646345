package watch

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/landofcash/aptoosh-sub000/store"
)

// Event reports the outcome for one target. Exactly one of Record and Err
// is set.
type Event struct {
	Target Target
	Record *store.Record
	Err    error
}

// Poller watches several targets with an adaptive interval per target.
// A target is dropped once it has produced its event.
type Poller struct {
	reader Reader
	cfg    Config

	mu      sync.Mutex
	targets map[Target]*pollState
	wake    chan struct{}
}

type pollState struct {
	backoff  *Backoff
	nextPoll time.Time
}

// NewPoller creates a poller reading from r.
func NewPoller(r Reader, cfg Config) *Poller {
	return &Poller{
		reader:  r,
		cfg:     cfg.withDefaults(),
		targets: make(map[Target]*pollState),
		wake:    make(chan struct{}, 1),
	}
}

// Add starts watching t. The first poll is immediate. Adding a target that
// is already watched is a no-op.
func (p *Poller) Add(t Target) {
	p.mu.Lock()
	if _, ok := p.targets[t]; !ok {
		p.targets[t] = &pollState{backoff: NewBackoff(p.cfg), nextPoll: time.Now()}
	}
	p.mu.Unlock()
	p.notify()
}

// Remove stops watching t.
func (p *Poller) Remove(t Target) {
	p.mu.Lock()
	delete(p.targets, t)
	p.mu.Unlock()
}

// Len returns the number of watched targets.
func (p *Poller) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.targets)
}

func (p *Poller) notify() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Run polls until ctx is done, calling handler once per target that is
// published or fails with an error other than store.ErrNotFound. Run
// returns ctx.Err().
func (p *Poller) Run(ctx context.Context, handler func(Event)) error {
	for {
		wait := p.pollDue(ctx, handler)
		if err := ctx.Err(); err != nil {
			return err
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-p.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// pollDue reads every target whose time has come and returns the delay
// until the next one is due.
func (p *Poller) pollDue(ctx context.Context, handler func(Event)) time.Duration {
	now := time.Now()

	p.mu.Lock()
	var due []Target
	for t, st := range p.targets {
		if !now.Before(st.nextPoll) {
			due = append(due, t)
		}
	}
	p.mu.Unlock()

	for _, t := range due {
		if ctx.Err() != nil {
			return 0
		}
		rec, err := p.reader.Read(ctx, t.Seed, t.Slot)
		switch {
		case err == nil:
			if p.take(t) {
				handler(Event{Target: t, Record: rec})
			}
		case errors.Is(err, store.ErrNotFound):
			p.reschedule(t)
		case ctx.Err() != nil:
			return 0
		default:
			p.cfg.Logger.Warn("slot read failed", zap.Stringer("target", t), zap.Error(err))
			if p.take(t) {
				handler(Event{Target: t, Err: err})
			}
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	wait := p.cfg.MaxInterval
	now = time.Now()
	for _, st := range p.targets {
		if d := st.nextPoll.Sub(now); d < wait {
			wait = d
		}
	}
	if wait < 0 {
		wait = 0
	}
	return wait
}

// take removes t and reports whether it was still watched.
func (p *Poller) take(t Target) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.targets[t]; !ok {
		return false
	}
	delete(p.targets, t)
	return true
}

func (p *Poller) reschedule(t Target) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st, ok := p.targets[t]; ok {
		st.nextPoll = time.Now().Add(st.backoff.Next())
	}
}
