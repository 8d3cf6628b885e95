package breaker

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a StateStore for a single process: tests and deployments
// that run exactly one worker. Multi-process deployments need the shared
// Postgres-backed store so every worker observes the same breaker state.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*Record
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
	}
}

// record returns the named record, creating a closed one if absent.
// Callers must hold mu.
func (s *MemoryStore) record(name string) *Record {
	rec, ok := s.records[name]
	if !ok {
		rec = &Record{State: StateClosed}
		s.records[name] = rec
	}
	return rec
}

// Get returns the current record for the named breaker.
func (s *MemoryStore) Get(ctx context.Context, name string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.record(name), nil
}

// IncrementFailureCount atomically adds one to the failure counter.
func (s *MemoryStore) IncrementFailureCount(ctx context.Context, name string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.record(name)
	rec.FailureCount++
	return rec.FailureCount, nil
}

// ResetFailureCount atomically sets the failure counter to zero.
func (s *MemoryStore) ResetFailureCount(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.record(name).FailureCount = 0
	return nil
}

// IncrementSuccessCount atomically adds one to the half-open success counter.
func (s *MemoryStore) IncrementSuccessCount(ctx context.Context, name string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.record(name)
	rec.HalfOpenSuccesses++
	return rec.HalfOpenSuccesses, nil
}

// SetState performs a compare-and-set state transition with the counter side
// effects documented on the StateStore interface.
func (s *MemoryStore) SetState(
	ctx context.Context,
	name string,
	from, to State,
	openedAt time.Time,
) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.record(name)
	if rec.State != from {
		return false, nil
	}

	rec.State = to
	switch to {
	case StateOpen:
		rec.OpenedAt = openedAt
		rec.HalfOpenSuccesses = 0
	case StateHalfOpen:
		rec.HalfOpenSuccesses = 0
	case StateClosed:
		rec.FailureCount = 0
		rec.HalfOpenSuccesses = 0
		rec.OpenedAt = time.Time{}
	}
	return true, nil
}

// Ensure MemoryStore implements StateStore
var _ StateStore = (*MemoryStore)(nil)
