package connection

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Backoff defaults.
const (
	InitialBackoff    = 1 * time.Second
	MaxBackoff        = 30 * time.Second
	BackoffMultiplier = 2.0
	JitterFactor      = 0.2
)

// BackoffConfig customizes a Backoff. Zero fields take the defaults above,
// except Jitter where zero disables jitter.
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

// DefaultBackoffConfig returns the package defaults.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    InitialBackoff,
		Max:        MaxBackoff,
		Multiplier: BackoffMultiplier,
		Jitter:     JitterFactor,
	}
}

// Backoff produces exponentially growing delays with jitter. It is safe
// for concurrent use.
type Backoff struct {
	mu       sync.Mutex
	cfg      BackoffConfig
	current  time.Duration
	attempts int
}

// NewBackoff creates a Backoff from cfg.
func NewBackoff(cfg BackoffConfig) *Backoff {
	if cfg.Initial <= 0 {
		cfg.Initial = InitialBackoff
	}
	if cfg.Max <= 0 {
		cfg.Max = MaxBackoff
	}
	if cfg.Max < cfg.Initial {
		cfg.Max = cfg.Initial
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = BackoffMultiplier
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}
	return &Backoff{cfg: cfg, current: cfg.Initial}
}

// Next returns the delay to wait now and advances the base delay.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := b.current
	if b.cfg.Jitter > 0 {
		delay += time.Duration(float64(delay) * b.cfg.Jitter * rand.Float64())
	}

	b.attempts++
	b.current = min(time.Duration(float64(b.current)*b.cfg.Multiplier), b.cfg.Max)
	return delay
}

// Reset returns to the initial delay. Call it after a successful connect.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.cfg.Initial
	b.attempts = 0
}

// Attempts returns the number of Next calls since the last Reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

// Current returns the base delay Next will use, without jitter.
func (b *Backoff) Current() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}
