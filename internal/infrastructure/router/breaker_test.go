package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(t *testing.T) (*Breaker, *time.Time) {
	t.Helper()
	b := NewBreaker(5, 10*time.Second, 5*time.Minute)
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }
	return b, &now
}

func TestBreakerOpensAfterMaxErrors(t *testing.T) {
	b, _ := newTestBreaker(t)

	for i := 0; i < 4; i++ {
		b.RecordFailure()
		assert.NoError(t, b.Allow(), "breaker must stay closed below the threshold")
	}

	b.RecordFailure()
	assert.ErrorIs(t, b.Allow(), ErrBreakerOpen)
	assert.True(t, b.IsOpen())
}

func TestBreakerCooldownGrowsMonotonically(t *testing.T) {
	b, now := newTestBreaker(t)

	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}

	prev := time.Duration(0)
	for i := 0; i < 8; i++ {
		b.mu.Lock()
		cd := b.cooldown()
		b.mu.Unlock()
		require.GreaterOrEqual(t, cd, prev, "cooldown must never shrink as errors accumulate")
		require.LessOrEqual(t, cd, 5*time.Minute)
		prev = cd

		// Each further failure while open extends the window.
		*now = now.Add(time.Second)
		b.RecordFailure()
	}

	assert.Equal(t, 5*time.Minute, prev, "cooldown saturates at the cap")
}

func TestBreakerHalfOpenSingleProbe(t *testing.T) {
	b, now := newTestBreaker(t)

	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	require.ErrorIs(t, b.Allow(), ErrBreakerOpen)

	// Past the cooldown exactly one probe is admitted.
	*now = now.Add(21 * time.Second)
	require.NoError(t, b.Allow())
	require.ErrorIs(t, b.Allow(), ErrBreakerOpen, "second concurrent probe must be refused")

	b.RecordSuccess()
	assert.NoError(t, b.Allow())
	assert.Equal(t, 0, b.Errors())
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	b, now := newTestBreaker(t)

	for i := 0; i < 5; i++ {
		b.RecordFailure()
	}
	*now = now.Add(21 * time.Second)
	require.NoError(t, b.Allow())

	b.RecordFailure()
	assert.ErrorIs(t, b.Allow(), ErrBreakerOpen, "failed probe reopens with a longer cooldown")
}
