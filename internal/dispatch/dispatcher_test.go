package dispatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// routedTask implements the Task interface for testing
type routedTask struct {
	id       uuid.UUID
	taskType string
	payload  []byte
}

func (t *routedTask) ID() uuid.UUID   { return t.id }
func (t *routedTask) Type() string    { return t.taskType }
func (t *routedTask) Payload() []byte { return t.payload }

func newRoutedTask(taskType string) *routedTask {
	return &routedTask{
		id:       uuid.New(),
		taskType: taskType,
		payload:  []byte(`{}`),
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func TestDispatcher_Register(t *testing.T) {
	t.Parallel()

	t.Run("empty task type rejected", func(t *testing.T) {
		t.Parallel()

		d := NewDispatcher(testLogger())
		err := d.Register("", func(ctx context.Context, task Task) error { return nil })

		assert.ErrorIs(t, err, ErrEmptyTaskType)
		assert.Empty(t, d.RegisteredTypes())
	})

	t.Run("duplicate registration replaces without error", func(t *testing.T) {
		t.Parallel()

		d := NewDispatcher(testLogger())

		var called string
		require.NoError(t, d.Register("tax_calculation", func(ctx context.Context, task Task) error {
			called = "first"
			return nil
		}))
		require.NoError(t, d.Register("tax_calculation", func(ctx context.Context, task Task) error {
			called = "second"
			return nil
		}))

		err := d.Dispatch(context.Background(), newRoutedTask("tax_calculation"))
		require.NoError(t, err)
		assert.Equal(t, "second", called, "second registration must be the one dispatch uses")
		assert.Equal(t, []string{"tax_calculation"}, d.RegisteredTypes())
	})
}

func TestDispatcher_Unregister(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(testLogger())
	require.NoError(t, d.Register("document_extraction", func(ctx context.Context, task Task) error {
		return nil
	}))

	d.Unregister("document_extraction")
	assert.Empty(t, d.RegisteredTypes())

	// Absent type is a no-op, not a panic or error.
	d.Unregister("document_extraction")
	d.Unregister("never_registered")
}

func TestDispatcher_Dispatch(t *testing.T) {
	t.Parallel()

	t.Run("invokes handler with the task", func(t *testing.T) {
		t.Parallel()

		d := NewDispatcher(testLogger())
		want := newRoutedTask("tax_calculation")

		var got Task
		require.NoError(t, d.Register("tax_calculation", func(ctx context.Context, task Task) error {
			got = task
			return nil
		}))

		require.NoError(t, d.Dispatch(context.Background(), want))
		assert.Equal(t, want.ID(), got.ID())
	})

	t.Run("propagates handler error unchanged", func(t *testing.T) {
		t.Parallel()

		d := NewDispatcher(testLogger())
		handlerErr := errors.New("vision model rejected the document")

		require.NoError(t, d.Register("document_extraction", func(ctx context.Context, task Task) error {
			return handlerErr
		}))

		err := d.Dispatch(context.Background(), newRoutedTask("document_extraction"))
		assert.Same(t, handlerErr, err, "dispatcher must not wrap or reinterpret handler errors")
	})

	t.Run("unregistered type lists all registered types", func(t *testing.T) {
		t.Parallel()

		d := NewDispatcher(testLogger())
		require.NoError(t, d.Register("tax_calculation", func(ctx context.Context, task Task) error { return nil }))
		require.NoError(t, d.Register("document_extraction", func(ctx context.Context, task Task) error { return nil }))
		require.NoError(t, d.Register("skill_reload", func(ctx context.Context, task Task) error { return nil }))

		err := d.Dispatch(context.Background(), newRoutedTask("unknown_type"))

		var unregErr *UnregisteredHandlerError
		require.ErrorAs(t, err, &unregErr)
		assert.Equal(t, "unknown_type", unregErr.TaskType)
		assert.Contains(t, err.Error(), "tax_calculation")
		assert.Contains(t, err.Error(), "document_extraction")
		assert.Contains(t, err.Error(), "skill_reload")
	})

	t.Run("empty registry message", func(t *testing.T) {
		t.Parallel()

		d := NewDispatcher(testLogger())
		err := d.Dispatch(context.Background(), newRoutedTask("anything"))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "registry is empty")
	})
}

func TestDispatcher_Reset(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(testLogger())
	require.NoError(t, d.Register("tax_calculation", func(ctx context.Context, task Task) error { return nil }))

	d.Reset()

	assert.Empty(t, d.RegisteredTypes())
	err := d.Dispatch(context.Background(), newRoutedTask("tax_calculation"))
	assert.Error(t, err)
}

func TestDispatcher_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(testLogger())
	require.NoError(t, d.Register("tax_calculation", func(ctx context.Context, task Task) error { return nil }))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = d.Dispatch(context.Background(), newRoutedTask("tax_calculation"))
				_ = d.RegisteredTypes()
			}
		}()
	}

	// Concurrent re-registration while dispatches are in flight.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 50; j++ {
			_ = d.Register("tax_calculation", func(ctx context.Context, task Task) error { return nil })
		}
	}()

	wg.Wait()
}
