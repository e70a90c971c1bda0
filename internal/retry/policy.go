// Package retry decides whether and when a failed attempt should be
// retried, using bounded attempts and exponential backoff with jitter.
package retry

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/lcollado/adforge/internal/domain"
)

// Decision is the outcome of consulting the policy for one failed
// attempt. It is a value, never persisted.
type Decision struct {
	ShouldRetry bool
	Delay       time.Duration
}

// Config holds the tunable knobs of the retry policy.
type Config struct {
	// BaseDelay is the backoff base: attempt n waits base * 2^(n-1), and
	// jitter is drawn uniformly from [0, BaseDelay).
	BaseDelay time.Duration

	// MaxDelay caps the computed backoff before jitter is added.
	MaxDelay time.Duration

	// MaxAttempts bounds attempts for transient and rate-limited failures.
	MaxAttempts int

	// MaxUnknownAttempts bounds attempts for unclassified failures. The
	// default allows a single extra attempt.
	MaxUnknownAttempts int
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		BaseDelay:          1 * time.Second,
		MaxDelay:           30 * time.Second,
		MaxAttempts:        3,
		MaxUnknownAttempts: 2,
	}
}

// Policy computes retry decisions from the classified kind and the
// attempt count. Safe for concurrent use.
type Policy struct {
	cfg Config

	mu  sync.Mutex
	rng *rand.Rand
}

// NewPolicy creates a Policy, applying defaults for unset config values.
func NewPolicy(cfg Config) *Policy {
	def := DefaultConfig()
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.MaxUnknownAttempts <= 0 {
		cfg.MaxUnknownAttempts = def.MaxUnknownAttempts
	}
	return &Policy{
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Decide returns the retry decision for a failure of the given kind on
// the given attempt (1-based count of attempts made so far). hint is the
// provider-supplied minimum wait, zero when absent; it acts as a floor on
// the delay for rate-limited failures.
func (p *Policy) Decide(kind domain.ErrorKind, attempt int, hint time.Duration) Decision {
	switch kind {
	case domain.KindInvalidRequest, domain.KindAuthFailure:
		return Decision{}

	case domain.KindProviderUnavailable:
		// The breaker already short-circuited the call; the task fails
		// fast and the caller decides when to resubmit.
		return Decision{}

	case domain.KindUnknown:
		if attempt >= p.cfg.MaxUnknownAttempts {
			return Decision{}
		}
		return Decision{ShouldRetry: true, Delay: p.backoff(attempt)}

	case domain.KindRateLimited:
		if attempt >= p.cfg.MaxAttempts {
			return Decision{}
		}
		delay := p.backoff(attempt)
		if hint > delay {
			delay = hint
		}
		return Decision{ShouldRetry: true, Delay: delay}

	default: // domain.KindTransient
		if attempt >= p.cfg.MaxAttempts {
			return Decision{}
		}
		return Decision{ShouldRetry: true, Delay: p.backoff(attempt)}
	}
}

// backoff computes base * 2^(attempt-1) capped at MaxDelay, plus uniform
// jitter in [0, base) so concurrently failing tasks do not retry in
// lockstep.
func (p *Policy) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.cfg.BaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(p.cfg.MaxDelay) {
		delay = float64(p.cfg.MaxDelay)
	}

	p.mu.Lock()
	jitter := time.Duration(p.rng.Int63n(int64(p.cfg.BaseDelay)))
	p.mu.Unlock()

	return time.Duration(delay) + jitter
}
