// Package circuitbreaker stops calling a failing dependency for a cooldown
// period after repeated consecutive failures.
package circuitbreaker

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

const (
	DefaultFailureThreshold = 5
	DefaultSuccessThreshold = 1
	DefaultCooldown         = 30 * time.Second
)

type Config struct {
	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold int
	// SuccessThreshold consecutive half-open successes close it again.
	SuccessThreshold int
	Cooldown         time.Duration
	OnStateChange    func(from, to State)
}

// Breaker is safe for concurrent use.
type Breaker struct {
	mu        sync.Mutex
	cfg       Config
	state     State
	failures  int
	successes int
	openedAt  time.Time
	now       func() time.Time
}

func New(cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = DefaultSuccessThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// WithClock replaces the time source.
func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	b.now = now
	return b
}

// Execute runs fn unless the circuit is open, and records its outcome.
func (b *Breaker) Execute(fn func() error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn()
	b.record(err)
	return err
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return nil
	}
	wait := b.cfg.Cooldown - b.now().Sub(b.openedAt)
	if wait > 0 {
		return fmt.Errorf("%w: retry in %s", ErrCircuitOpen, wait.Round(time.Millisecond))
	}
	b.transition(StateHalfOpen)
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.cfg.FailureThreshold {
			b.openedAt = b.now()
			b.transition(StateOpen)
		}
		return
	}

	b.failures = 0
	if b.state == StateHalfOpen {
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.transition(StateClosed)
		}
	}
}

func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.failures = 0
	b.successes = 0
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(from, to)
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
