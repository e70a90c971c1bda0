// Package breaker implements a per-provider circuit breaker. Each
// provider gets an independent three-state machine (closed, open,
// half-open) so one degraded provider never blocks the others.
package breaker

import (
	"errors"
	"math/rand"
	"sync"
	"time"
)

// ErrOpen is returned by Allow when the breaker is short-circuiting
// calls to its provider.
var ErrOpen = errors.New("circuit breaker open")

// State is the breaker position.
type State int

const (
	StateClosed State = iota // calls pass through
	StateOpen                // calls fail fast
	StateHalfOpen            // a single probe is allowed through
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config holds the breaker thresholds.
type Config struct {
	// FailureThreshold is the number of consecutive failures that trips
	// the breaker open.
	FailureThreshold int

	// Cooldown is how long the breaker stays open before allowing a
	// half-open probe.
	Cooldown time.Duration

	// CooldownJitter spreads re-probe times by up to this fraction of
	// Cooldown in either direction, avoiding synchronized re-probes when
	// several processes share a provider.
	CooldownJitter float64
}

// DefaultConfig returns a Config with reasonable defaults: trip after 5
// consecutive failures, probe again after roughly 30 seconds.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		Cooldown:         30 * time.Second,
		CooldownJitter:   0.2,
	}
}

// Status is a read-only view of breaker state for health reporting.
type Status struct {
	State               State
	ConsecutiveFailures int
}

// Breaker tracks recent failure history for one provider and
// short-circuits calls while the provider is unhealthy. Safe for
// concurrent use.
type Breaker struct {
	mu sync.Mutex

	cfg                 Config
	state               State
	consecutiveFailures int
	openedAt            time.Time
	cooldown            time.Duration // jittered, fixed per open period
	probeInFlight       bool

	now func() time.Time
	rng *rand.Rand
}

// New creates a closed breaker, applying defaults for unset config
// values.
func New(cfg Config) *Breaker {
	def := DefaultConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.CooldownJitter < 0 || cfg.CooldownJitter >= 1 {
		cfg.CooldownJitter = def.CooldownJitter
	}
	return &Breaker{
		cfg: cfg,
		now: time.Now,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Allow reports whether a call to the provider may proceed. While open it
// returns ErrOpen until the cooldown elapses, at which point the breaker
// moves to half-open and the calling goroutine becomes the single probe.
// In half-open, callers other than the probe get ErrOpen.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil

	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrOpen
		}
		b.state = StateHalfOpen
		b.probeInFlight = true
		return nil

	default: // StateHalfOpen
		if b.probeInFlight {
			return ErrOpen
		}
		b.probeInFlight = true
		return nil
	}
}

// RecordSuccess records a successful provider call. A successful
// half-open probe closes the breaker and resets the failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures = 0
	b.probeInFlight = false
	b.state = StateClosed
}

// RecordFailure records a failed provider call. Reaching the failure
// threshold while closed, or failing the half-open probe, opens the
// breaker.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures++
	b.probeInFlight = false

	switch b.state {
	case StateHalfOpen:
		b.open()
	case StateClosed:
		if b.consecutiveFailures >= b.cfg.FailureThreshold {
			b.open()
		}
	}
}

// open must be called with the mutex held.
func (b *Breaker) open() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.cooldown = b.jitteredCooldown()
}

func (b *Breaker) jitteredCooldown() time.Duration {
	if b.cfg.CooldownJitter == 0 {
		return b.cfg.Cooldown
	}
	span := float64(b.cfg.Cooldown) * b.cfg.CooldownJitter
	offset := (b.rng.Float64()*2 - 1) * span
	return b.cfg.Cooldown + time.Duration(offset)
}

// Status returns the current state for health reporting.
func (b *Breaker) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Status{State: b.state, ConsecutiveFailures: b.consecutiveFailures}
}
