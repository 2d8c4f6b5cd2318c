// Package circuitbreaker guards calls to external delivery channels. After
// enough consecutive failures the breaker opens and rejects calls outright,
// then probes the channel with a limited number of trial requests before
// letting traffic flow again.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State of the breaker's three-state machine.
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

// ErrCircuitOpen is returned while the breaker rejects calls: either the
// cooldown has not elapsed, or the half-open probe budget is spent.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config controls the state machine thresholds.
type Config struct {
	// Name tags state-change callbacks and log lines.
	Name string

	// FailureThreshold is the run of consecutive failures that opens the
	// breaker from closed.
	FailureThreshold int

	// SuccessThreshold is the run of consecutive probe successes that
	// closes the breaker from half-open.
	SuccessThreshold int

	// Cooldown is how long an open breaker waits before probing.
	Cooldown time.Duration

	// ProbeBudget bounds concurrent trial calls in half-open.
	ProbeBudget int

	// OnStateChange, when set, observes every transition.
	OnStateChange func(name string, from, to State)
}

// CircuitBreaker tracks consecutive outcomes of a single downstream channel.
type CircuitBreaker struct {
	cfg Config

	mu          sync.Mutex
	state       State
	failures    int
	successes   int
	probes      int
	lastFailure time.Time
}

// New creates a breaker in the closed state, filling zero config fields
// with defaults.
func New(cfg Config) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.ProbeBudget <= 0 {
		cfg.ProbeBudget = 1
	}
	return &CircuitBreaker{cfg: cfg}
}

// NotificationBreaker is tuned for the notification webhook: open after a
// short failure run, recover on the first healthy probe.
func NotificationBreaker(onStateChange func(name string, from, to State)) *CircuitBreaker {
	return New(Config{
		Name:             "notifications",
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Cooldown:         30 * time.Second,
		ProbeBudget:      2,
		OnStateChange:    onStateChange,
	})
}

// Execute runs fn if the breaker admits the call and records its outcome.
// A rejected call returns ErrCircuitOpen without invoking fn.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn(ctx)
	cb.record(err == nil)
	return err
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset force-closes the breaker and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateClosed)
	cb.failures = 0
	cb.successes = 0
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if time.Since(cb.lastFailure) < cb.cfg.Cooldown {
			return ErrCircuitOpen
		}
		cb.transition(StateHalfOpen)
		cb.probes = 1
		return nil
	default: // half-open
		if cb.probes >= cb.cfg.ProbeBudget {
			return ErrCircuitOpen
		}
		cb.probes++
		return nil
	}
}

func (cb *CircuitBreaker) record(ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if ok {
		cb.successes++
		cb.failures = 0
		if cb.state == StateHalfOpen && cb.successes >= cb.cfg.SuccessThreshold {
			cb.transition(StateClosed)
		}
		return
	}

	cb.failures++
	cb.successes = 0
	cb.lastFailure = time.Now()
	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		// A failed probe reopens immediately.
		cb.transition(StateOpen)
	}
}

func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.successes = 0
	cb.failures = 0
	cb.probes = 0
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.cfg.Name, from, to)
	}
}
