package task

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerworks/taskengine/internal/lifecycle"
)

func TestNew(t *testing.T) {
	t.Parallel()

	rec := New("tax_calculation", []byte(`{"year":2025}`))

	assert.NotEqual(t, uuid.Nil, rec.ID())
	assert.Equal(t, "tax_calculation", rec.Type())
	assert.Equal(t, []byte(`{"year":2025}`), rec.Payload())
	assert.Equal(t, lifecycle.StatusPending, rec.Status())
	assert.False(t, rec.CreatedAt().IsZero())
}

func TestLoad(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	rec := Load(id, "document_extraction", []byte("doc"), lifecycle.StatusFailed)

	assert.Equal(t, id, rec.ID())
	assert.Equal(t, "document_extraction", rec.Type())
	assert.Equal(t, lifecycle.StatusFailed, rec.Status())
}

func TestRecord_LifecycleIntegration(t *testing.T) {
	t.Parallel()

	rec := New("tax_calculation", nil)

	require.NoError(t, lifecycle.Transition(rec, lifecycle.StatusAssigned))
	require.NoError(t, lifecycle.Transition(rec, lifecycle.StatusInProgress))
	require.NoError(t, lifecycle.Transition(rec, lifecycle.StatusCompleted))
	assert.True(t, rec.Status().Terminal())

	err := lifecycle.Transition(rec, lifecycle.StatusPending)
	var invalidErr *lifecycle.InvalidTransitionError
	require.ErrorAs(t, err, &invalidErr)
	assert.Equal(t, lifecycle.StatusCompleted, invalidErr.From)
}
