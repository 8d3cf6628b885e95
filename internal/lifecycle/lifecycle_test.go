package lifecycle

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// statusHolder is a minimal StatusCarrier for testing
type statusHolder struct {
	status Status
}

func (h *statusHolder) Status() Status          { return h.status }
func (h *statusHolder) SetStatus(status Status) { h.status = status }

func allStatuses() []Status {
	return []Status{
		StatusPending,
		StatusAssigned,
		StatusInProgress,
		StatusCompleted,
		StatusFailed,
		StatusEscalated,
	}
}

func TestTransition_LegalPaths(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		from Status
		to   Status
	}{
		{"claim", StatusPending, StatusAssigned},
		{"begin execution", StatusAssigned, StatusInProgress},
		{"complete", StatusInProgress, StatusCompleted},
		{"fail", StatusInProgress, StatusFailed},
		{"escalate", StatusInProgress, StatusEscalated},
		{"retry", StatusFailed, StatusPending},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			h := &statusHolder{status: tc.from}
			err := Transition(h, tc.to)

			require.NoError(t, err)
			assert.Equal(t, tc.to, h.Status(), "carrier status must be mutated in the same step")
		})
	}
}

func TestTransition_IllegalPathsExhaustive(t *testing.T) {
	t.Parallel()

	legal := map[Status]map[Status]bool{
		StatusPending:    {StatusAssigned: true},
		StatusAssigned:   {StatusInProgress: true},
		StatusInProgress: {StatusCompleted: true, StatusFailed: true, StatusEscalated: true},
		StatusCompleted:  {},
		StatusFailed:     {StatusPending: true},
		StatusEscalated:  {},
	}

	for _, from := range allStatuses() {
		for _, to := range allStatuses() {
			if legal[from][to] {
				continue
			}

			t.Run(string(from)+"_to_"+string(to), func(t *testing.T) {
				t.Parallel()

				h := &statusHolder{status: from}
				err := Transition(h, to)

				var invalidErr *InvalidTransitionError
				require.ErrorAs(t, err, &invalidErr)
				assert.Equal(t, from, invalidErr.From)
				assert.Equal(t, to, invalidErr.To)
				assert.Equal(t, from, h.Status(), "status must not change on an illegal transition")
			})
		}
	}
}

func TestTransition_TerminalStatesAcceptNothing(t *testing.T) {
	t.Parallel()

	for _, terminal := range []Status{StatusCompleted, StatusEscalated} {
		for _, to := range allStatuses() {
			h := &statusHolder{status: terminal}
			err := Transition(h, to)

			require.Error(t, err, "transition %s -> %s must fail", terminal, to)
			assert.Contains(t, err.Error(), "terminal")
		}
	}
}

func TestTransition_FailedHasSingleOutgoing(t *testing.T) {
	t.Parallel()

	for _, to := range allStatuses() {
		h := &statusHolder{status: StatusFailed}
		err := Transition(h, to)

		if to == StatusPending {
			assert.NoError(t, err)
		} else {
			assert.Error(t, err, "failed -> %s must be rejected", to)
		}
	}
}

func TestTransition_SkippingInProgressFails(t *testing.T) {
	t.Parallel()

	h := &statusHolder{status: StatusPending}

	require.NoError(t, Transition(h, StatusAssigned))

	// Going straight to completed skips in_progress and must be rejected.
	transitionErr := Transition(h, StatusCompleted)

	var invalidErr *InvalidTransitionError
	require.ErrorAs(t, transitionErr, &invalidErr)
	assert.Equal(t, StatusAssigned, invalidErr.From)
	assert.Equal(t, []Status{StatusInProgress}, invalidErr.LegalTargets)
}

func TestTransition_RejectsUndefinedStatuses(t *testing.T) {
	t.Parallel()

	t.Run("bad current status", func(t *testing.T) {
		t.Parallel()

		h := &statusHolder{status: Status("limbo")}
		transitionErr := Transition(h, StatusAssigned)

		require.Error(t, transitionErr)
		var invalidErr *InvalidTransitionError
		assert.False(t, errors.As(transitionErr, &invalidErr),
			"undefined statuses are rejected outright, not as transition errors")
	})

	t.Run("bad target status", func(t *testing.T) {
		t.Parallel()

		h := &statusHolder{status: StatusPending}
		transitionErr := Transition(h, Status("limbo"))

		require.Error(t, transitionErr)
		assert.Equal(t, StatusPending, h.Status())
	})
}

func TestParse(t *testing.T) {
	t.Parallel()

	for _, s := range allStatuses() {
		parsed, parseErr := Parse(string(s))
		require.NoError(t, parseErr)
		assert.Equal(t, s, parsed)
	}

	_, parseErr := Parse("unknown")
	assert.Error(t, parseErr)

	_, parseErr = Parse("")
	assert.Error(t, parseErr)
}

func TestStatusPredicates(t *testing.T) {
	t.Parallel()

	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusEscalated.Terminal())
	assert.False(t, StatusFailed.Terminal(), "failed is explicitly non-terminal")
	assert.False(t, StatusPending.Terminal())

	assert.True(t, StatusPending.Valid())
	assert.False(t, Status("bogus").Valid())
	assert.False(t, Status("bogus").Terminal())
}

func TestCurrentState(t *testing.T) {
	t.Parallel()

	h := &statusHolder{status: StatusInProgress}
	assert.Equal(t, StatusInProgress, CurrentState(h))
	assert.Equal(t, StatusInProgress, h.Status(), "reading state must not mutate")
}

func TestLegalTargetsReturnsCopy(t *testing.T) {
	t.Parallel()

	targets := LegalTargets(StatusInProgress)
	require.Len(t, targets, 3)

	targets[0] = Status("mutated")
	assert.Equal(t, []Status{StatusCompleted, StatusFailed, StatusEscalated}, LegalTargets(StatusInProgress))
}
