// Package resilience hardens calls to external generation and embedding
// services.
//
// [Breaker] is a three-state circuit breaker keyed to consecutive failures.
// [Group] chains a primary backend with ordered fallbacks, each behind its
// own breaker. [LLM] and [Embedder] expose a group through the provider
// interfaces so the chat pipeline never knows failover happened.
//
// Cancellation by the caller is not a backend failure: a call whose context
// was cancelled neither trips nor heals a breaker. A deadline that expires
// while the backend is working does count, since a slow backend is an
// unhealthy one.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned when a breaker rejects a call without trying it.
var ErrOpen = errors.New("resilience: circuit open")

// State is the operating mode of a [Breaker].
type State int

const (
	// Closed forwards every call.
	Closed State = iota
	// Open rejects calls until the cooldown elapses.
	Open
	// HalfOpen lets a limited number of trial calls through.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	}
	return "unknown"
}

// BreakerConfig tunes a [Breaker]. Zero fields take the defaults.
type BreakerConfig struct {
	// Name labels log lines and state-change callbacks.
	Name string

	// MaxFailures is the number of consecutive failures that opens the
	// breaker. Default 5.
	MaxFailures int

	// Cooldown is how long the breaker stays open before probing. Default 30s.
	Cooldown time.Duration

	// Trials is the number of successful half-open calls needed to close
	// again. Default 2.
	Trials int

	// OnStateChange, if set, is called after every transition while the
	// breaker's lock is not held.
	OnStateChange func(name string, from, to State)
}

// Breaker is safe for concurrent use.
type Breaker struct {
	cfg BreakerConfig
	now func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	inFlight  int
	successes int
}

// NewBreaker returns a closed breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Trials <= 0 {
		cfg.Trials = 2
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// Name returns the configured label.
func (b *Breaker) Name() string { return b.cfg.Name }

// Execute runs fn when the breaker admits it and accounts for the result.
// It returns [ErrOpen] without calling fn when the breaker is open or the
// half-open trial budget is in use.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	trial, err := b.admit()
	if err != nil {
		return err
	}

	err = fn(ctx)

	switch {
	case err == nil:
		b.settle(trial, true)
	case ctx.Err() != nil && errors.Is(err, context.Canceled):
		b.release(trial)
	default:
		b.settle(trial, false)
	}
	return err
}

func (b *Breaker) admit() (trial bool, err error) {
	b.mu.Lock()
	var from State
	changed := false
	if b.state == Open && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		from, changed = b.state, true
		b.state = HalfOpen
		b.inFlight, b.successes = 0, 0
	}

	switch b.state {
	case Open:
		b.mu.Unlock()
		return false, ErrOpen
	case HalfOpen:
		if b.inFlight >= b.cfg.Trials {
			b.mu.Unlock()
			b.notify(changed, from, HalfOpen)
			return false, ErrOpen
		}
		b.inFlight++
		b.mu.Unlock()
		b.notify(changed, from, HalfOpen)
		return true, nil
	}
	b.mu.Unlock()
	return false, nil
}

func (b *Breaker) release(trial bool) {
	if !trial {
		return
	}
	b.mu.Lock()
	if b.state == HalfOpen && b.inFlight > 0 {
		b.inFlight--
	}
	b.mu.Unlock()
}

func (b *Breaker) settle(trial, ok bool) {
	b.mu.Lock()
	from := b.state
	switch {
	case ok && trial && b.state == HalfOpen:
		b.successes++
		if b.successes >= b.cfg.Trials {
			b.state = Closed
			b.failures = 0
		}
	case ok:
		b.failures = 0
	case trial && b.state == HalfOpen:
		b.state = Open
		b.openedAt = b.now()
	default:
		b.failures++
		if b.state == Closed && b.failures >= b.cfg.MaxFailures {
			b.state = Open
			b.openedAt = b.now()
		}
	}
	to := b.state
	b.mu.Unlock()
	b.notify(from != to, from, to)
}

func (b *Breaker) notify(changed bool, from, to State) {
	if !changed {
		return
	}
	level := slog.LevelInfo
	if to == Open {
		level = slog.LevelWarn
	}
	slog.Log(context.Background(), level, "circuit breaker state changed",
		"name", b.cfg.Name, "from", from.String(), "to", to.String())
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.cfg.Name, from, to)
	}
}

// State reports the current state. An open breaker whose cooldown has
// elapsed reports [HalfOpen]; the transition itself happens on the next call.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.now().Sub(b.openedAt) >= b.cfg.Cooldown {
		return HalfOpen
	}
	return b.state
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.state
	b.state = Closed
	b.failures, b.inFlight, b.successes = 0, 0, 0
	b.mu.Unlock()
	b.notify(from != Closed, from, Closed)
}
