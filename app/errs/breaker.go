package errs

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
)

// BreakerConfig configures a single component's circuit breaker.
type BreakerConfig struct {
	FailureThreshold uint32
	Timeout          time.Duration
	SuccessThreshold uint32
}

// DefaultBreakerConfig mirrors the original pipeline's defaults: five
// consecutive failures opens the circuit, a minute cooldown before probing
// again, two consecutive successes closes it.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		Timeout:          60 * time.Second,
		SuccessThreshold: 2,
	}
}

// Breaker wraps a gobreaker.CircuitBreaker[struct{}] for components whose
// protected calls return only an error. It exists so Handler can log state
// transitions with the bracket-tagged naming used across the rest of the
// engine and so callers never need to think about gobreaker's generic
// result type.
type Breaker struct {
	name     string
	cfg      BreakerConfig
	mu       sync.RWMutex
	cb       *gobreaker.CircuitBreaker[struct{}]
}

// NewBreaker builds a named circuit breaker with the given configuration.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 2
	}
	b := &Breaker{name: name, cfg: cfg}
	b.cb = newGobreaker(name, cfg)
	return b
}

func newGobreaker(name string, cfg BreakerConfig) *gobreaker.CircuitBreaker[struct{}] {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.SuccessThreshold,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Info().Str("event", "[CIRCUIT_STATE_CHANGE]").
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	}
	return gobreaker.NewCircuitBreaker[struct{}](settings)
}

// ErrBreakerOpen wraps gobreaker.ErrOpenState so callers can errors.Is
// against a package-stable sentinel regardless of the underlying library.
var ErrBreakerOpen = gobreaker.ErrOpenState

// Call executes fn under circuit-breaker protection.
func (b *Breaker) Call(fn func() error) error {
	b.mu.RLock()
	cb := b.cb
	b.mu.RUnlock()
	_, err := cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// State reports the breaker's current state name ("closed", "open",
// "half_open").
func (b *Breaker) State() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	switch b.cb.State() {
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Reset forces the breaker back to a fresh closed state. gobreaker exposes
// no reset primitive, so a reset swaps in a brand new breaker with the same
// settings — indistinguishable from a closed breaker that has never failed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	b.cb = newGobreaker(b.name, b.cfg)
	b.mu.Unlock()
	log.Info().Str("event", "[CIRCUIT_RESET]").Str("breaker", b.name).Msg("circuit breaker manually reset")
}

// Name returns the breaker's component name.
func (b *Breaker) Name() string { return b.name }

func (b *Breaker) String() string {
	return fmt.Sprintf("Breaker(%s, state=%s)", b.name, b.State())
}
