package search

import (
	"log/slog"
	"sync"
	"time"
)

// BreakerState is the state of one provider's circuit.
type BreakerState int

const (
	// BreakerClosed means the provider is queried normally.
	BreakerClosed BreakerState = iota
	// BreakerOpen means the provider failed repeatedly and is skipped by
	// fan-out until its cooldown ends.
	BreakerOpen
	// BreakerHalfOpen means the cooldown ended and one probe is allowed.
	BreakerHalfOpen
)

// String returns a human-readable state description.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker defaults.
const (
	DefaultFailureThreshold = 3
	DefaultCooldown         = 30 * time.Second
)

// BreakerConfig holds configuration for a Breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens a
	// provider's circuit. Default: 3
	FailureThreshold int

	// Cooldown is how long an open circuit stays open. Default: 30s
	Cooldown time.Duration

	// Logger for state changes.
	Logger *slog.Logger
}

type circuit struct {
	state    BreakerState
	failures int
	openedAt time.Time
}

// Breaker tracks consecutive search failures per provider so that fan-out
// can stop waiting on a provider that keeps timing out. A success closes
// the circuit again.
type Breaker struct {
	mu sync.Mutex

	threshold int
	cooldown  time.Duration
	logger    *slog.Logger
	now       func() time.Time

	circuits map[string]*circuit
}

// NewBreaker creates a Breaker with the given configuration.
func NewBreaker(cfg *BreakerConfig) *Breaker {
	if cfg == nil {
		cfg = &BreakerConfig{}
	}

	threshold := cfg.FailureThreshold
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}

	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		logger:    logger,
		now:       time.Now,
		circuits:  make(map[string]*circuit),
	}
}

// Allow reports whether providerID should be queried. An open circuit
// whose cooldown has passed lets exactly one probe through.
func (b *Breaker) Allow(providerID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.circuits[providerID]
	if !ok {
		return true
	}
	switch c.state {
	case BreakerOpen:
		if b.now().Sub(c.openedAt) < b.cooldown {
			return false
		}
		c.state = BreakerHalfOpen
		return true
	case BreakerHalfOpen:
		// A probe is already in flight.
		return false
	default:
		return true
	}
}

// Success closes providerID's circuit.
func (b *Breaker) Success(providerID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.circuits[providerID]
	if !ok {
		return
	}
	if c.state != BreakerClosed {
		b.logger.Info("provider circuit closed", "provider", providerID)
	}
	delete(b.circuits, providerID)
}

// Failure records a failed search by providerID.
func (b *Breaker) Failure(providerID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.circuits[providerID]
	if !ok {
		c = &circuit{}
		b.circuits[providerID] = c
	}
	c.failures++

	if c.state == BreakerHalfOpen || (c.state == BreakerClosed && c.failures >= b.threshold) {
		c.state = BreakerOpen
		c.openedAt = b.now()
		b.logger.Warn("provider circuit opened",
			"provider", providerID,
			"consecutive_failures", c.failures,
			"cooldown", b.cooldown,
		)
	}
}

// Abandon records a search that ended without an answer, such as one
// cancelled by a newer query. A probe that was in flight may be retried.
func (b *Breaker) Abandon(providerID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c, ok := b.circuits[providerID]; ok && c.state == BreakerHalfOpen {
		c.state = BreakerOpen
		c.openedAt = b.now().Add(-b.cooldown)
	}
}

// State returns providerID's circuit state.
func (b *Breaker) State(providerID string) BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.circuits[providerID]; ok {
		return c.state
	}
	return BreakerClosed
}

// Reset closes every circuit.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.circuits = make(map[string]*circuit)
}
