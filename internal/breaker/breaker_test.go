package breaker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// newTestBreaker returns a breaker on a fresh memory store with a
// controllable clock.
func newTestBreaker(t *testing.T, settings Settings) (*Breaker, *time.Time) {
	t.Helper()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b := New("llm_api", settings, NewMemoryStore(), testLogger())
	b.now = func() time.Time { return now }
	return b, &now
}

func recordFailures(t *testing.T, b *Breaker, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, b.RecordFailure(context.Background()))
	}
}

func TestBreaker_OpensAtFailureThreshold(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	b, _ := newTestBreaker(t, DefaultSettings())

	// One short of the threshold: still closed, still admitting.
	recordFailures(t, b, 4)
	state, err := b.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, state)

	allowed, err := b.AllowRequest(ctx)
	require.NoError(t, err)
	assert.True(t, allowed)

	// The fifth consecutive failure trips it.
	recordFailures(t, b, 1)
	state, err = b.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateOpen, state)

	allowed, err = b.AllowRequest(ctx)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	b, _ := newTestBreaker(t, DefaultSettings())

	recordFailures(t, b, 4)
	require.NoError(t, b.RecordSuccess(ctx))

	// Four more failures only reach a count of four; the breaker stays closed.
	recordFailures(t, b, 4)
	state, err := b.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, state)

	rec, err := b.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, rec.FailureCount)
}

func TestBreaker_HalfOpenAfterRecoveryTimeout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	b, now := newTestBreaker(t, DefaultSettings())
	recordFailures(t, b, 5)

	// Before the window elapses the breaker still rejects.
	*now = now.Add(29 * time.Second)
	allowed, err := b.AllowRequest(ctx)
	require.NoError(t, err)
	assert.False(t, allowed)

	// Past the window the admission check itself transitions to half_open.
	*now = now.Add(2 * time.Second)
	allowed, err = b.AllowRequest(ctx)
	require.NoError(t, err)
	assert.True(t, allowed)

	state, err := b.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateHalfOpen, state)
}

func TestBreaker_HalfOpenClosesAfterSuccessThreshold(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	b, now := newTestBreaker(t, DefaultSettings())
	recordFailures(t, b, 5)
	*now = now.Add(31 * time.Second)

	allowed, err := b.AllowRequest(ctx)
	require.NoError(t, err)
	require.True(t, allowed)

	require.NoError(t, b.RecordSuccess(ctx))
	state, err := b.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateHalfOpen, state, "one success is below the threshold")

	require.NoError(t, b.RecordSuccess(ctx))
	rec, err := b.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateClosed, rec.State)
	assert.Zero(t, rec.FailureCount, "counters reset when the breaker closes")
	assert.Zero(t, rec.HalfOpenSuccesses)
	assert.True(t, rec.OpenedAt.IsZero())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	b, now := newTestBreaker(t, DefaultSettings())
	recordFailures(t, b, 5)
	openedAt := *now

	*now = now.Add(31 * time.Second)
	allowed, err := b.AllowRequest(ctx)
	require.NoError(t, err)
	require.True(t, allowed)

	require.NoError(t, b.RecordFailure(ctx))

	rec, err := b.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateOpen, rec.State)
	assert.True(t, rec.OpenedAt.After(openedAt), "reopening restarts the recovery timeout")
}

func TestBreaker_RecoveryScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// The canonical sequence: trip, wait, trial, partial success discarded.
	b, now := newTestBreaker(t, Settings{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 2,
	})

	recordFailures(t, b, 5)
	state, err := b.State(ctx)
	require.NoError(t, err)
	require.Equal(t, StateOpen, state)

	*now = now.Add(29 * time.Second)
	allowed, err := b.AllowRequest(ctx)
	require.NoError(t, err)
	assert.False(t, allowed, "29s is inside the recovery window")

	*now = now.Add(2 * time.Second)
	allowed, err = b.AllowRequest(ctx)
	require.NoError(t, err)
	assert.True(t, allowed, "31s is past the recovery window")

	state, err = b.State(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateHalfOpen, state)

	// One success, then a failure: back to open, not closed, with the
	// partial success count discarded.
	require.NoError(t, b.RecordSuccess(ctx))
	require.NoError(t, b.RecordFailure(ctx))

	rec, err := b.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateOpen, rec.State)
	assert.Zero(t, rec.HalfOpenSuccesses)
}

func TestBreaker_CallGuardsAttempts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("admitted call records success", func(t *testing.T) {
		t.Parallel()

		b, _ := newTestBreaker(t, DefaultSettings())
		recordFailures(t, b, 3)

		err := b.Call(ctx, func(ctx context.Context) error { return nil })
		require.NoError(t, err)

		rec, err := b.Snapshot(ctx)
		require.NoError(t, err)
		assert.Zero(t, rec.FailureCount, "success while closed resets the failure count")
	})

	t.Run("admitted call records failure", func(t *testing.T) {
		t.Parallel()

		b, _ := newTestBreaker(t, DefaultSettings())
		callErr := errors.New("model timed out")

		err := b.Call(ctx, func(ctx context.Context) error { return callErr })
		assert.Same(t, callErr, err, "the protected call's error passes through unchanged")

		rec, err := b.Snapshot(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, rec.FailureCount)
	})

	t.Run("denied call never reaches the resource", func(t *testing.T) {
		t.Parallel()

		b, _ := newTestBreaker(t, DefaultSettings())
		recordFailures(t, b, 5)

		invoked := false
		err := b.Call(ctx, func(ctx context.Context) error {
			invoked = true
			return nil
		})

		var openErr *CircuitOpenError
		require.ErrorAs(t, err, &openErr)
		assert.Equal(t, "llm_api", openErr.Name)
		assert.False(t, invoked)
	})
}

func TestBreaker_DefaultsAppliedForZeroSettings(t *testing.T) {
	t.Parallel()

	b := New("llm_api", Settings{}, NewMemoryStore(), testLogger())

	assert.Equal(t, 5, b.settings.FailureThreshold)
	assert.Equal(t, 30*time.Second, b.settings.RecoveryTimeout)
	assert.Equal(t, 2, b.settings.SuccessThreshold)
	assert.Equal(t, "llm_api", b.Name())
}

func TestBreaker_SharedStoreSharedState(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	// Two breaker instances with the same name and store model two worker
	// processes protecting the same resource.
	store := NewMemoryStore()
	first := New("llm_api", DefaultSettings(), store, testLogger())
	second := New("llm_api", DefaultSettings(), store, testLogger())

	for i := 0; i < 5; i++ {
		require.NoError(t, first.RecordFailure(ctx))
	}

	allowed, err := second.AllowRequest(ctx)
	require.NoError(t, err)
	assert.False(t, allowed, "both workers must observe the tripped breaker")
}
