// Package resilience protects the tracker from flapping upstream APIs and
// reports component health.
package resilience

import (
	"context"
	"sync"
	"time"

	"stock-sentinel/internal/congress"
	"stock-sentinel/internal/errors"
	"stock-sentinel/internal/market"
	"stock-sentinel/internal/models"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "CLOSED"    // Normal operation
	CircuitOpen     CircuitState = "OPEN"      // Failing, rejecting requests
	CircuitHalfOpen CircuitState = "HALF_OPEN" // Probing for recovery
)

// ErrCircuitOpen is returned when the circuit is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig holds circuit breaker configuration.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening
	FailureThreshold int
	// SuccessThreshold is the number of half-open successes needed to close
	SuccessThreshold int
	// Cooldown is how long the circuit stays open before probing
	Cooldown time.Duration
}

// DefaultBreakerConfig returns sensible defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		SuccessThreshold: 1,
		Cooldown:         5 * time.Minute,
	}
}

// Breaker implements the circuit breaker pattern.
type Breaker struct {
	name   string
	config BreakerConfig
	now    func() time.Time

	mu          sync.Mutex
	state       CircuitState
	failures    int
	successes   int
	openedAt    time.Time
	lastErr     error
	totalCalls  int64
	totalFailed int64
	rejected    int64
}

// NewBreaker creates a closed breaker.
func NewBreaker(name string, config BreakerConfig) *Breaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 1
	}
	return &Breaker{name: name, config: config, now: time.Now, state: CircuitClosed}
}

// Call runs fn unless the breaker is open. Caller cancellation and missing
// configuration are not counted as upstream failures.
func Call[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.allow(); err != nil {
		return zero, err
	}

	v, err := fn(ctx)
	switch {
	case err == nil:
		b.onSuccess()
	case ctx.Err() != nil && errors.Is(err, context.Canceled):
	case errors.Is(err, errors.ErrNotConfigured):
	default:
		b.onFailure(err)
	}
	return v, err
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalCalls++
	if b.state == CircuitOpen {
		if b.now().Sub(b.openedAt) < b.config.Cooldown {
			b.rejected++
			return errors.Wrapf(ErrCircuitOpen, "%s", b.name)
		}
		b.transition(CircuitHalfOpen)
	}
	return nil
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CircuitHalfOpen:
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.transition(CircuitClosed)
		}
	case CircuitClosed:
		b.failures = 0
	}
}

func (b *Breaker) onFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalFailed++
	b.lastErr = err
	switch b.state {
	case CircuitClosed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.transition(CircuitOpen)
		}
	case CircuitHalfOpen:
		b.transition(CircuitOpen)
	}
}

func (b *Breaker) transition(state CircuitState) {
	b.state = state
	b.failures = 0
	b.successes = 0
	if state == CircuitOpen {
		b.openedAt = b.now()
	}
}

// State returns the current circuit state.
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.name
}

// BreakerStats is a snapshot of breaker counters.
type BreakerStats struct {
	Name      string       `json:"name"`
	State     CircuitState `json:"state"`
	Calls     int64        `json:"calls"`
	Failures  int64        `json:"failures"`
	Rejected  int64        `json:"rejected"`
	LastError string       `json:"last_error,omitempty"`
}

// Stats returns breaker statistics.
func (b *Breaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := BreakerStats{
		Name:     b.name,
		State:    b.state,
		Calls:    b.totalCalls,
		Failures: b.totalFailed,
		Rejected: b.rejected,
	}
	if b.lastErr != nil {
		s.LastError = b.lastErr.Error()
	}
	return s
}

// GuardedQuotes wraps a quote provider with a breaker.
type GuardedQuotes struct {
	next    market.QuoteProvider
	breaker *Breaker
}

var _ market.QuoteProvider = (*GuardedQuotes)(nil)

// GuardQuotes returns provider protected by b.
func GuardQuotes(provider market.QuoteProvider, b *Breaker) *GuardedQuotes {
	return &GuardedQuotes{next: provider, breaker: b}
}

// GetQuote implements market.QuoteProvider.
func (g *GuardedQuotes) GetQuote(ctx context.Context, symbol string) (models.Quote, error) {
	return Call(ctx, g.breaker, func(ctx context.Context) (models.Quote, error) {
		return g.next.GetQuote(ctx, symbol)
	})
}

// GuardedTrades wraps a congressional trade source with a breaker.
type GuardedTrades struct {
	next    congress.TradeSource
	breaker *Breaker
}

var _ congress.TradeSource = (*GuardedTrades)(nil)

// GuardTrades returns source protected by b.
func GuardTrades(source congress.TradeSource, b *Breaker) *GuardedTrades {
	return &GuardedTrades{next: source, breaker: b}
}

// RecentTrades implements congress.TradeSource.
func (g *GuardedTrades) RecentTrades(ctx context.Context, since time.Time) ([]models.CongressionalTrade, error) {
	return Call(ctx, g.breaker, func(ctx context.Context) ([]models.CongressionalTrade, error) {
		return g.next.RecentTrades(ctx, since)
	})
}
