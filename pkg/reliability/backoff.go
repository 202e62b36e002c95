package reliability

import (
	"math/rand"
	"sync"
	"time"
)

// Transmission parameters from RFC 7252 §4.8.
const (
	// AckTimeout is the base timeout before the first retransmission.
	AckTimeout = 2 * time.Second

	// AckRandomFactor spreads the initial timeout to avoid
	// synchronized retransmission across clients.
	AckRandomFactor = 1.5

	// MaxRetransmit is the number of retransmissions after the initial
	// transmission.
	MaxRetransmit = 4

	// ExchangeLifetime is how long message IDs stay known for duplicate
	// detection (MAX_TRANSMIT_SPAN + latency allowances).
	ExchangeLifetime = 247 * time.Second
)

// Backoff produces the retransmission schedule for one confirmable
// exchange: a jittered initial timeout that doubles on every attempt.
type Backoff struct {
	mu sync.Mutex

	current  time.Duration
	attempts int

	base   time.Duration
	factor float64
	limit  int
	rng    *rand.Rand
}

// NewBackoff creates a retransmission schedule with the default
// transmission parameters.
func NewBackoff() *Backoff {
	return NewBackoffWithConfig(BackoffConfig{})
}

// BackoffConfig allows customizing the transmission parameters, e.g.
// for constrained deployments with non-default timings.
type BackoffConfig struct {
	AckTimeout      time.Duration
	AckRandomFactor float64
	MaxRetransmit   int
}

// NewBackoffWithConfig creates a retransmission schedule with custom
// parameters. Zero fields fall back to the RFC defaults.
func NewBackoffWithConfig(cfg BackoffConfig) *Backoff {
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = AckTimeout
	}
	if cfg.AckRandomFactor < 1 {
		cfg.AckRandomFactor = AckRandomFactor
	}
	if cfg.MaxRetransmit <= 0 {
		cfg.MaxRetransmit = MaxRetransmit
	}

	b := &Backoff{
		base:   cfg.AckTimeout,
		factor: cfg.AckRandomFactor,
		limit:  cfg.MaxRetransmit,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	b.current = b.initialTimeout()
	return b
}

// Next returns the timeout to wait before the next retransmission and
// advances the schedule.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	timeout := b.current
	b.attempts++
	b.current *= 2
	return timeout
}

// Exhausted reports whether the retransmission budget is used up.
func (b *Backoff) Exhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts > b.limit
}

// Attempts returns the number of timeouts handed out so far.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Reset restarts the schedule with a fresh jittered initial timeout.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.initialTimeout()
	b.attempts = 0
}

// initialTimeout draws the first timeout uniformly from
// [base, base*factor).
func (b *Backoff) initialTimeout() time.Duration {
	spread := float64(b.base) * (b.factor - 1)
	return b.base + time.Duration(spread*b.rng.Float64())
}
