package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// CircuitBreaker opens after more than maxFailures failures inside window and
// stays open for timeout. The first call after that is a half-open probe: a
// success closes the breaker, a failure opens it again.
type CircuitBreaker struct {
	name        string
	maxFailures int
	window      time.Duration
	timeout     time.Duration

	mu       sync.Mutex
	state    State
	failures []time.Time
	openedAt time.Time
	now      func() time.Time
	log      *zap.Logger
}

func New(name string, maxFailures int, timeout, window time.Duration, log *zap.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		name:        name,
		maxFailures: maxFailures,
		window:      window,
		timeout:     timeout,
		state:       StateClosed,
		failures:    make([]time.Time, 0),
		now:         time.Now,
		log:         log,
	}
}

// Execute runs fn unless the breaker is open, in which case it returns ErrOpen.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.allow(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return nil
	}
	if cb.now().Sub(cb.openedAt) < cb.timeout {
		return ErrOpen
	}
	cb.transition(StateHalfOpen)
	cb.failures = cb.failures[:0]
	return nil
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	now := cb.now()
	if err == nil {
		cb.dropExpired(now)
		if cb.state == StateHalfOpen {
			cb.failures = cb.failures[:0]
			cb.transition(StateClosed)
		}
		return
	}

	cb.failures = append(cb.failures, now)
	cb.dropExpired(now)
	if cb.state == StateHalfOpen || len(cb.failures) > cb.maxFailures {
		cb.openedAt = now
		cb.transition(StateOpen)
	}
}

func (cb *CircuitBreaker) dropExpired(now time.Time) {
	cutoff := now.Add(-cb.window)
	i := 0
	for i < len(cb.failures) && !cb.failures[i].After(cutoff) {
		i++
	}
	cb.failures = cb.failures[i:]
}

func (cb *CircuitBreaker) transition(to State) {
	if cb.state == to {
		return
	}
	cb.log.Warn("Circuit breaker state changed",
		zap.String("breaker", cb.name),
		zap.String("from", cb.state.String()),
		zap.String("to", to.String()),
	)
	cb.state = to
}
