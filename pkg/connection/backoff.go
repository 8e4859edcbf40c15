package connection

import (
	"math/rand"
	"sync"
	"time"
)

// Default backoff parameters.
const (
	// DefaultInitialDelay is the initial reconnection delay.
	DefaultInitialDelay = 1 * time.Second

	// DefaultMaxDelay is the maximum reconnection delay.
	DefaultMaxDelay = 60 * time.Second

	// DefaultMultiplier is the factor by which the delay increases.
	DefaultMultiplier = 2.0

	// DefaultJitter is the maximum jitter as a fraction of the base delay.
	DefaultJitter = 0.25
)

// BackoffConfig customizes backoff parameters. Zero fields fall back to
// the defaults.
type BackoffConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       float64
}

// Backoff calculates exponential backoff delays with jitter.
// It is safe for concurrent use.
type Backoff struct {
	mu sync.Mutex

	current time.Duration

	initial    time.Duration
	max        time.Duration
	multiplier float64
	jitter     float64

	attempts int

	rng *rand.Rand
}

// NewBackoff creates a backoff calculator with default settings.
func NewBackoff() *Backoff {
	return NewBackoffWithConfig(BackoffConfig{})
}

// NewBackoffWithConfig creates a backoff calculator with custom settings.
func NewBackoffWithConfig(cfg BackoffConfig) *Backoff {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultInitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = DefaultMultiplier
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}

	return &Backoff{
		current:    cfg.InitialDelay,
		initial:    cfg.InitialDelay,
		max:        cfg.MaxDelay,
		multiplier: cfg.Multiplier,
		jitter:     cfg.Jitter,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the next delay (with jitter) and advances the backoff.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := b.addJitter(b.current)

	b.attempts++
	next := time.Duration(float64(b.current) * b.multiplier)
	if next > b.max {
		next = b.max
	}
	b.current = next

	return delay
}

// Peek returns the current delay (with jitter) without advancing.
func (b *Backoff) Peek() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addJitter(b.current)
}

// Current returns the current base delay without jitter.
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

// Attempts returns the number of times Next has been called since the
// last Reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Reset resets the backoff to its initial values.
// Call this after a successful connection.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.initial
	b.attempts = 0
}

// addJitter adds up to jitter*delay of random jitter. Caller holds b.mu.
func (b *Backoff) addJitter(delay time.Duration) time.Duration {
	if b.jitter <= 0 {
		return delay
	}
	j := time.Duration(b.rng.Float64() * b.jitter * float64(delay))
	return delay + j
}
