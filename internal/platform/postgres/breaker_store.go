package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ledgerworks/taskengine/internal/breaker"
	"github.com/ledgerworks/taskengine/internal/store"
)

// BreakerStore implements breaker.StateStore on PostgreSQL so breaker state
// is shared across worker processes. Counter updates and state transitions
// each run as a single statement, which makes them atomic without explicit
// locking: concurrent increments serialize on the row, and the
// compare-and-set in SetState admits exactly one winner.
type BreakerStore struct {
	db store.DBTX
}

// NewBreakerStore creates a BreakerStore on the given database handle.
func NewBreakerStore(db store.DBTX) *BreakerStore {
	return &BreakerStore{db: db}
}

// ensure creates the named breaker row in closed state if it does not exist.
// Racing creators are harmless; the conflict clause keeps the first row.
func (s *BreakerStore) ensure(ctx context.Context, name string) error {
	query := `
		INSERT INTO circuit_breakers (name, state, failure_count, half_open_success_count, updated_at)
		VALUES ($1, $2, 0, 0, $3)
		ON CONFLICT (name) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, name, string(breaker.StateClosed), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to ensure breaker row %q: %w", name, MapError(err))
	}
	return nil
}

// Get returns the current record for the named breaker, creating it in
// closed state on first use.
func (s *BreakerStore) Get(ctx context.Context, name string) (breaker.Record, error) {
	if err := s.ensure(ctx, name); err != nil {
		return breaker.Record{}, err
	}

	query := `
		SELECT state, failure_count, opened_at, half_open_success_count
		FROM circuit_breakers
		WHERE name = $1
	`

	var (
		state             string
		failureCount      int
		openedAt          sql.NullTime
		halfOpenSuccesses int
	)
	err := s.db.QueryRowContext(ctx, query, name).
		Scan(&state, &failureCount, &openedAt, &halfOpenSuccesses)
	if err != nil {
		return breaker.Record{}, fmt.Errorf("failed to get breaker %q: %w", name, MapError(err))
	}

	rec := breaker.Record{
		State:             breaker.State(state),
		FailureCount:      failureCount,
		HalfOpenSuccesses: halfOpenSuccesses,
	}
	if openedAt.Valid {
		rec.OpenedAt = openedAt.Time.UTC()
	}
	return rec, nil
}

// IncrementFailureCount atomically adds one to the failure counter and
// returns the new value.
func (s *BreakerStore) IncrementFailureCount(ctx context.Context, name string) (int, error) {
	if err := s.ensure(ctx, name); err != nil {
		return 0, err
	}

	query := `
		UPDATE circuit_breakers
		SET failure_count = failure_count + 1, updated_at = $2
		WHERE name = $1
		RETURNING failure_count
	`

	var count int
	err := s.db.QueryRowContext(ctx, query, name, time.Now().UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to increment failure count for %q: %w", name, MapError(err))
	}
	return count, nil
}

// ResetFailureCount atomically sets the failure counter to zero.
func (s *BreakerStore) ResetFailureCount(ctx context.Context, name string) error {
	if err := s.ensure(ctx, name); err != nil {
		return err
	}

	query := `
		UPDATE circuit_breakers
		SET failure_count = 0, updated_at = $2
		WHERE name = $1
	`
	if _, err := s.db.ExecContext(ctx, query, name, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to reset failure count for %q: %w", name, MapError(err))
	}
	return nil
}

// IncrementSuccessCount atomically adds one to the half-open success counter
// and returns the new value.
func (s *BreakerStore) IncrementSuccessCount(ctx context.Context, name string) (int, error) {
	if err := s.ensure(ctx, name); err != nil {
		return 0, err
	}

	query := `
		UPDATE circuit_breakers
		SET half_open_success_count = half_open_success_count + 1, updated_at = $2
		WHERE name = $1
		RETURNING half_open_success_count
	`

	var count int
	err := s.db.QueryRowContext(ctx, query, name, time.Now().UTC()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to increment success count for %q: %w", name, MapError(err))
	}
	return count, nil
}

// SetState transitions the record from the expected state to the target
// state. The state check sits in the WHERE clause, so under concurrent
// callers exactly one update lands; the rest see zero rows affected and
// return false.
func (s *BreakerStore) SetState(
	ctx context.Context,
	name string,
	from, to breaker.State,
	openedAt time.Time,
) (bool, error) {
	if err := s.ensure(ctx, name); err != nil {
		return false, err
	}

	var (
		query string
		args  []interface{}
	)
	now := time.Now().UTC()

	switch to {
	case breaker.StateOpen:
		query = `
			UPDATE circuit_breakers
			SET state = $3, opened_at = $4, half_open_success_count = 0, updated_at = $5
			WHERE name = $1 AND state = $2
		`
		args = []interface{}{name, string(from), string(to), openedAt.UTC(), now}

	case breaker.StateHalfOpen:
		query = `
			UPDATE circuit_breakers
			SET state = $3, half_open_success_count = 0, updated_at = $4
			WHERE name = $1 AND state = $2
		`
		args = []interface{}{name, string(from), string(to), now}

	case breaker.StateClosed:
		query = `
			UPDATE circuit_breakers
			SET state = $3, failure_count = 0, half_open_success_count = 0,
			    opened_at = NULL, updated_at = $4
			WHERE name = $1 AND state = $2
		`
		args = []interface{}{name, string(from), string(to), now}

	default:
		return false, fmt.Errorf("invalid breaker state %q", to)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to set breaker %q state: %w", name, MapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

// Ensure BreakerStore implements breaker.StateStore
var _ breaker.StateStore = (*BreakerStore)(nil)
