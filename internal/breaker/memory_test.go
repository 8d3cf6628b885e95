package breaker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_LazyInitialization(t *testing.T) {
	t.Parallel()

	store := NewMemoryStore()
	rec, err := store.Get(context.Background(), "llm_api")

	require.NoError(t, err)
	assert.Equal(t, StateClosed, rec.State)
	assert.Zero(t, rec.FailureCount)
	assert.Zero(t, rec.HalfOpenSuccesses)
	assert.True(t, rec.OpenedAt.IsZero())
}

func TestMemoryStore_CountersAreAtomic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := NewMemoryStore()

	const goroutines = 8
	const perGoroutine = 100

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				_, err := store.IncrementFailureCount(ctx, "llm_api")
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	rec, err := store.Get(ctx, "llm_api")
	require.NoError(t, err)
	assert.Equal(t, goroutines*perGoroutine, rec.FailureCount, "no increments may be lost")
}

func TestMemoryStore_SetStateCAS(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := NewMemoryStore()
	openedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("swap succeeds from expected state", func(t *testing.T) {
		swapped, err := store.SetState(ctx, "llm_api", StateClosed, StateOpen, openedAt)
		require.NoError(t, err)
		assert.True(t, swapped)

		rec, err := store.Get(ctx, "llm_api")
		require.NoError(t, err)
		assert.Equal(t, StateOpen, rec.State)
		assert.Equal(t, openedAt, rec.OpenedAt)
	})

	t.Run("swap fails from stale expected state", func(t *testing.T) {
		swapped, err := store.SetState(ctx, "llm_api", StateClosed, StateHalfOpen, time.Time{})
		require.NoError(t, err)
		assert.False(t, swapped, "breaker is open, not closed; CAS must not fire")
	})

	t.Run("only one concurrent swap wins", func(t *testing.T) {
		const racers = 8
		wins := make(chan bool, racers)

		var wg sync.WaitGroup
		for i := 0; i < racers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				swapped, err := store.SetState(ctx, "llm_api", StateOpen, StateHalfOpen, time.Time{})
				assert.NoError(t, err)
				wins <- swapped
			}()
		}
		wg.Wait()
		close(wins)

		winners := 0
		for swapped := range wins {
			if swapped {
				winners++
			}
		}
		assert.Equal(t, 1, winners)
	})
}

func TestMemoryStore_CloseResetsEverything(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := NewMemoryStore()

	_, err := store.IncrementFailureCount(ctx, "llm_api")
	require.NoError(t, err)

	swapped, err := store.SetState(ctx, "llm_api", StateClosed, StateOpen, time.Now())
	require.NoError(t, err)
	require.True(t, swapped)

	swapped, err = store.SetState(ctx, "llm_api", StateOpen, StateHalfOpen, time.Time{})
	require.NoError(t, err)
	require.True(t, swapped)

	_, err = store.IncrementSuccessCount(ctx, "llm_api")
	require.NoError(t, err)

	swapped, err = store.SetState(ctx, "llm_api", StateHalfOpen, StateClosed, time.Time{})
	require.NoError(t, err)
	require.True(t, swapped)

	rec, err := store.Get(ctx, "llm_api")
	require.NoError(t, err)
	assert.Equal(t, StateClosed, rec.State)
	assert.Zero(t, rec.FailureCount)
	assert.Zero(t, rec.HalfOpenSuccesses)
	assert.True(t, rec.OpenedAt.IsZero())
}

func TestMemoryStore_NamesAreIndependent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := NewMemoryStore()

	_, err := store.IncrementFailureCount(ctx, "llm_api")
	require.NoError(t, err)

	rec, err := store.Get(ctx, "tax_rates_api")
	require.NoError(t, err)
	assert.Zero(t, rec.FailureCount, "breakers are keyed independently by name")
}
