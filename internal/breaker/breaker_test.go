package breaker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestBreaker returns a breaker with a controllable clock and no
// cooldown jitter so open periods are exact.
func newTestBreaker(threshold int, cooldown time.Duration) (*Breaker, *time.Time) {
	b := New(Config{FailureThreshold: threshold, Cooldown: cooldown, CooldownJitter: 0})
	current := time.Now()
	b.now = func() time.Time { return current }
	return b, &current
}

func TestBreaker_OpensAfterThresholdConsecutiveFailures(t *testing.T) {
	t.Parallel()

	b, _ := newTestBreaker(5, time.Minute)

	for i := 0; i < 4; i++ {
		require.NoError(t, b.Allow())
		b.RecordFailure()
		assert.Equal(t, StateClosed, b.Status().State, "failure %d should not trip the breaker", i+1)
	}

	require.NoError(t, b.Allow())
	b.RecordFailure()
	assert.Equal(t, StateOpen, b.Status().State)
	assert.Equal(t, 5, b.Status().ConsecutiveFailures)
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	b, _ := newTestBreaker(3, time.Minute)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	assert.Equal(t, StateClosed, b.Status().State, "isolated blips must not trip the breaker")
}

func TestBreaker_OpenFailsFastUntilCooldown(t *testing.T) {
	t.Parallel()

	b, clock := newTestBreaker(1, time.Minute)

	b.RecordFailure()
	require.Equal(t, StateOpen, b.Status().State)

	assert.ErrorIs(t, b.Allow(), ErrOpen)

	*clock = clock.Add(59 * time.Second)
	assert.ErrorIs(t, b.Allow(), ErrOpen)

	*clock = clock.Add(2 * time.Second)
	assert.NoError(t, b.Allow(), "cooldown elapsed, the caller becomes the half-open probe")
	assert.Equal(t, StateHalfOpen, b.Status().State)
}

func TestBreaker_HalfOpenAllowsExactlyOneProbe(t *testing.T) {
	t.Parallel()

	b, clock := newTestBreaker(1, time.Minute)
	b.RecordFailure()
	*clock = clock.Add(2 * time.Minute)

	require.NoError(t, b.Allow())

	// Concurrent callers other than the probe fail fast.
	assert.ErrorIs(t, b.Allow(), ErrOpen)
	assert.ErrorIs(t, b.Allow(), ErrOpen)
}

func TestBreaker_ProbeSuccessCloses(t *testing.T) {
	t.Parallel()

	b, clock := newTestBreaker(1, time.Minute)
	b.RecordFailure()
	*clock = clock.Add(2 * time.Minute)

	require.NoError(t, b.Allow())
	b.RecordSuccess()

	st := b.Status()
	assert.Equal(t, StateClosed, st.State)
	assert.Equal(t, 0, st.ConsecutiveFailures)
	assert.NoError(t, b.Allow())
}

func TestBreaker_ProbeFailureReopens(t *testing.T) {
	t.Parallel()

	b, clock := newTestBreaker(1, time.Minute)
	b.RecordFailure()
	*clock = clock.Add(2 * time.Minute)

	require.NoError(t, b.Allow())
	b.RecordFailure()

	assert.Equal(t, StateOpen, b.Status().State)
	assert.ErrorIs(t, b.Allow(), ErrOpen, "openedAt was reset, cooldown starts over")

	*clock = clock.Add(61 * time.Second)
	assert.NoError(t, b.Allow())
}

func TestRegistry_IndependentPerProvider(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(Config{FailureThreshold: 1, Cooldown: time.Minute})

	luma := reg.Get("video-luma")
	pika := reg.Get("video-pika")
	require.NotSame(t, luma, pika)

	luma.RecordFailure()
	assert.Equal(t, StateOpen, luma.Status().State)
	assert.Equal(t, StateClosed, pika.Status().State, "one degraded provider never blocks others")

	assert.Same(t, luma, reg.Get("video-luma"), "breakers live for the process lifetime")
}

func TestBreaker_StateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
}
