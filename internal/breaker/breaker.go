// Package breaker guards calls to the embedding service. An open breaker makes
// calls fail immediately instead of waiting on an unreachable provider.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/23skdu/geoprobe/internal/metrics"
)

// ErrOpenState is returned when the CircuitBreaker rejects a call
var ErrOpenState = errors.New("circuit breaker is open")

// State represents the current state of the circuit breaker
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

// Settings configures the CircuitBreaker
type Settings struct {
	Name string `ignored:"true"`
	// MaxFailures trips the breaker after this many consecutive failures (0 disables the breaker)
	MaxFailures uint32 `envconfig:"MAX_FAILURES" default:"5"`
	// MaxRequests is the number of trial calls let through while half-open
	MaxRequests uint32 `envconfig:"HALF_OPEN_REQUESTS" default:"1"`
	// Timeout is how long the breaker stays open before admitting trial calls
	Timeout time.Duration `envconfig:"OPEN_TIMEOUT" default:"30s"`

	OnStateChange func(name string, from, to State) `ignored:"true"`
	// IsFailure decides which errors count against the provider (default: every non-nil error)
	IsFailure func(err error) bool `ignored:"true"`
}

// Counts holds the numbers of requests and their results in the current generation
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

func (c *Counts) onSuccess() {
	c.TotalSuccesses++
	c.ConsecutiveSuccesses++
	c.ConsecutiveFailures = 0
}

func (c *Counts) onFailure() {
	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}

// CircuitBreaker is a closed/open/half-open state machine
type CircuitBreaker struct {
	name          string
	maxFailures   uint32
	maxRequests   uint32
	timeout       time.Duration
	onStateChange func(name string, from, to State)
	isFailure     func(err error) bool
	now           func() time.Time

	mu     sync.Mutex
	state  State
	counts Counts
	expiry time.Time
	// closed and replaced whenever a half-open trial slot may have freed up
	notify chan struct{}
}

// New creates a CircuitBreaker. A zero MaxFailures yields a breaker that never trips.
func New(st Settings) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:          st.Name,
		maxFailures:   st.MaxFailures,
		maxRequests:   st.MaxRequests,
		timeout:       st.Timeout,
		onStateChange: st.OnStateChange,
		isFailure:     st.IsFailure,
		now:           time.Now,
		notify:        make(chan struct{}),
	}
	if cb.isFailure == nil {
		cb.isFailure = func(err error) bool { return err != nil }
	}
	if cb.maxRequests == 0 {
		cb.maxRequests = 1
	}
	if cb.timeout <= 0 {
		cb.timeout = 30 * time.Second
	}
	metrics.BreakerState.WithLabelValues(cb.name).Set(float64(StateClosed))
	return cb
}

// Name returns the name of the CircuitBreaker
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// State returns the current state of the CircuitBreaker
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState()
}

// Counts returns a snapshot of the current generation's counts
func (cb *CircuitBreaker) Counts() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.counts
}

// Execute runs fn if the breaker allows it and records the outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	return cb.ExecuteContext(context.Background(), fn)
}

// ExecuteContext runs fn if the breaker allows it. While half-open with every
// trial slot taken, it waits for a trial call to finish instead of rejecting.
// An outcome observed after ctx has ended is not recorded: the caller gave up,
// which says nothing about the provider.
func (cb *CircuitBreaker) ExecuteContext(ctx context.Context, fn func() error) error {
	for {
		wait, err := cb.before()
		if err != nil {
			return err
		}
		if wait == nil {
			break
		}
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	err := fn()
	switch {
	case ctx.Err() != nil:
		cb.release()
	case err == nil:
		cb.after(true)
	case cb.isFailure(err):
		cb.after(false)
	default:
		cb.release()
	}
	return err
}

// before admits a call, rejects it, or returns a channel to wait on while the
// half-open trial slots are busy.
func (cb *CircuitBreaker) before() (<-chan struct{}, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentState() {
	case StateOpen:
		return nil, ErrOpenState
	case StateHalfOpen:
		if cb.counts.Requests >= cb.maxRequests {
			return cb.notify, nil
		}
	}
	cb.counts.Requests++
	return nil, nil
}

// release gives back an admitted call without judging the provider.
func (cb *CircuitBreaker) release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.currentState() == StateHalfOpen && cb.counts.Requests > 0 {
		cb.counts.Requests--
		cb.wake()
	}
}

func (cb *CircuitBreaker) after(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state := cb.currentState()
	if success {
		cb.counts.onSuccess()
		if state == StateHalfOpen {
			cb.setState(StateClosed)
		}
		return
	}

	cb.counts.onFailure()
	switch state {
	case StateClosed:
		if cb.maxFailures > 0 && cb.counts.ConsecutiveFailures >= cb.maxFailures {
			cb.setState(StateOpen)
		}
	case StateHalfOpen:
		cb.setState(StateOpen)
	}
}

// wake must be called with mu held
func (cb *CircuitBreaker) wake() {
	close(cb.notify)
	cb.notify = make(chan struct{})
}

// currentState must be called with mu held
func (cb *CircuitBreaker) currentState() State {
	if cb.state == StateOpen && !cb.now().Before(cb.expiry) {
		cb.setState(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) setState(to State) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	cb.counts = Counts{}
	if to == StateOpen {
		cb.expiry = cb.now().Add(cb.timeout)
	}

	cb.wake()

	metrics.BreakerState.WithLabelValues(cb.name).Set(float64(to))
	if cb.onStateChange != nil {
		cb.onStateChange(cb.name, from, to)
	}
}
