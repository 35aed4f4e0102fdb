package retry

import "time"

// Policy describes how failed operations are retried. Intervals grow
// exponentially from InitialInterval by Multiplier, capped at MaxInterval.
type Policy struct {
	InitialInterval time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
	// MaxAttempts counts the first attempt; zero or less retries until the
	// context is done.
	MaxAttempts int
	// Jitter randomizes each interval by up to this fraction.
	Jitter float64
}

// Option configures a Policy
type Option func(*Policy)

// WithInitialInterval sets the wait before the first retry
func WithInitialInterval(interval time.Duration) Option {
	return func(p *Policy) { p.InitialInterval = interval }
}

// WithMultiplier sets the growth factor between consecutive waits
func WithMultiplier(multiplier float64) Option {
	return func(p *Policy) { p.Multiplier = multiplier }
}

// WithMaximumInterval caps the wait between retries
func WithMaximumInterval(interval time.Duration) Option {
	return func(p *Policy) { p.MaxInterval = interval }
}

// WithMaxAttempts bounds the number of attempts
func WithMaxAttempts(attempts int) Option {
	return func(p *Policy) { p.MaxAttempts = attempts }
}

// WithJitter sets the randomization fraction, clamped to [0, 1]
func WithJitter(jitter float64) Option {
	return func(p *Policy) { p.Jitter = min(max(jitter, 0), 1) }
}

// NewPolicy returns a policy of three attempts starting at 500ms
func NewPolicy(opts ...Option) *Policy {
	policy := &Policy{
		InitialInterval: 500 * time.Millisecond,
		Multiplier:      2,
		MaxInterval:     30 * time.Second,
		MaxAttempts:     3,
		Jitter:          0.1,
	}
	for _, opt := range opts {
		opt(policy)
	}
	return policy
}
