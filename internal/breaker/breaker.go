package breaker

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Settings holds the three thresholds governing breaker behavior.
type Settings struct {
	// FailureThreshold is the number of consecutive failures while closed
	// that trips the breaker open.
	FailureThreshold int

	// RecoveryTimeout is how long the breaker stays open before the next
	// request is allowed through as a half-open trial.
	RecoveryTimeout time.Duration

	// SuccessThreshold is the number of consecutive half-open successes
	// required to close the breaker again.
	SuccessThreshold int
}

// DefaultSettings returns the standard breaker thresholds.
func DefaultSettings() Settings {
	return Settings{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 2,
	}
}

// Breaker guards one protected resource, identified by name. Every process
// constructing a Breaker with the same name and store shares the same state.
type Breaker struct {
	name     string
	settings Settings
	store    StateStore
	logger   *slog.Logger

	// now is replaceable in tests
	now func() time.Time
}

// New creates a Breaker for the named resource backed by the given store.
// Zero or negative settings fields fall back to the defaults.
func New(name string, settings Settings, store StateStore, logger *slog.Logger) *Breaker {
	defaults := DefaultSettings()
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = defaults.FailureThreshold
	}
	if settings.RecoveryTimeout <= 0 {
		settings.RecoveryTimeout = defaults.RecoveryTimeout
	}
	if settings.SuccessThreshold <= 0 {
		settings.SuccessThreshold = defaults.SuccessThreshold
	}

	return &Breaker{
		name:     name,
		settings: settings,
		store:    store,
		logger:   logger.With("component", "circuit_breaker", "breaker", name),
		now:      time.Now,
	}
}

// Name returns the breaker's resource name.
func (b *Breaker) Name() string {
	return b.name
}

// AllowRequest reports whether a call to the protected resource may proceed.
// Checking admission can itself transition the breaker: once the recovery
// timeout has elapsed past the open timestamp, the next AllowRequest moves
// the breaker to half_open before admitting the call. Callers must therefore
// invoke it immediately before the attempt, never speculatively, and must
// follow an admitted attempt with exactly one RecordSuccess or RecordFailure.
func (b *Breaker) AllowRequest(ctx context.Context) (bool, error) {
	rec, err := b.store.Get(ctx, b.name)
	if err != nil {
		return false, fmt.Errorf("failed to read breaker state: %w", err)
	}

	switch rec.State {
	case StateClosed, StateHalfOpen:
		return true, nil

	case StateOpen:
		if b.now().Sub(rec.OpenedAt) < b.settings.RecoveryTimeout {
			return false, nil
		}

		// Recovery window elapsed: move to half_open as a side effect of the
		// admission check. The CAS keeps concurrent workers from racing; a
		// lost swap means another worker transitioned first, so re-read and
		// follow whatever state it left.
		swapped, err := b.store.SetState(ctx, b.name, StateOpen, StateHalfOpen, time.Time{})
		if err != nil {
			return false, fmt.Errorf("failed to transition breaker to half_open: %w", err)
		}
		if swapped {
			b.logger.Info("breaker entering half_open after recovery timeout",
				"recovery_timeout", b.settings.RecoveryTimeout)
			return true, nil
		}

		rec, err = b.store.Get(ctx, b.name)
		if err != nil {
			return false, fmt.Errorf("failed to re-read breaker state: %w", err)
		}
		return rec.State != StateOpen, nil

	default:
		return false, fmt.Errorf("breaker %q has invalid state %q", b.name, rec.State)
	}
}

// RecordSuccess records one successful attempt against the protected
// resource. While closed it resets the failure counter; while half_open it
// counts toward SuccessThreshold, and reaching the threshold closes the
// breaker with all counters reset.
func (b *Breaker) RecordSuccess(ctx context.Context) error {
	rec, err := b.store.Get(ctx, b.name)
	if err != nil {
		return fmt.Errorf("failed to read breaker state: %w", err)
	}

	switch rec.State {
	case StateClosed:
		if err := b.store.ResetFailureCount(ctx, b.name); err != nil {
			return fmt.Errorf("failed to reset failure count: %w", err)
		}

	case StateHalfOpen:
		successes, err := b.store.IncrementSuccessCount(ctx, b.name)
		if err != nil {
			return fmt.Errorf("failed to increment success count: %w", err)
		}
		if successes >= b.settings.SuccessThreshold {
			swapped, err := b.store.SetState(ctx, b.name, StateHalfOpen, StateClosed, time.Time{})
			if err != nil {
				return fmt.Errorf("failed to close breaker: %w", err)
			}
			if swapped {
				b.logger.Info("breaker closed after successful trial calls",
					"successes", successes)
			}
		}

	case StateOpen:
		// The state flipped back to open between admission and recording.
		// The attempt's outcome no longer matters; the reopened breaker
		// governs from here.
		b.logger.Debug("success recorded while breaker is open, ignoring")
	}

	return nil
}

// RecordFailure records one failed attempt against the protected resource.
// Reaching FailureThreshold consecutive failures while closed trips the
// breaker open. Any failure while half_open reopens it immediately,
// restarting the recovery timeout and discarding partial trial successes.
func (b *Breaker) RecordFailure(ctx context.Context) error {
	rec, err := b.store.Get(ctx, b.name)
	if err != nil {
		return fmt.Errorf("failed to read breaker state: %w", err)
	}

	switch rec.State {
	case StateClosed:
		failures, err := b.store.IncrementFailureCount(ctx, b.name)
		if err != nil {
			return fmt.Errorf("failed to increment failure count: %w", err)
		}
		if failures >= b.settings.FailureThreshold {
			swapped, err := b.store.SetState(ctx, b.name, StateClosed, StateOpen, b.now())
			if err != nil {
				return fmt.Errorf("failed to open breaker: %w", err)
			}
			if swapped {
				b.logger.Warn("breaker opened after consecutive failures",
					"failures", failures,
					"failure_threshold", b.settings.FailureThreshold)
			}
		}

	case StateHalfOpen:
		swapped, err := b.store.SetState(ctx, b.name, StateHalfOpen, StateOpen, b.now())
		if err != nil {
			return fmt.Errorf("failed to reopen breaker: %w", err)
		}
		if swapped {
			b.logger.Warn("breaker reopened after half_open failure")
		}

	case StateOpen:
		// Late failure from an attempt admitted before the breaker reopened.
		if _, err := b.store.IncrementFailureCount(ctx, b.name); err != nil {
			return fmt.Errorf("failed to increment failure count: %w", err)
		}
	}

	return nil
}

// State returns the breaker's current state.
func (b *Breaker) State(ctx context.Context) (State, error) {
	rec, err := b.store.Get(ctx, b.name)
	if err != nil {
		return "", fmt.Errorf("failed to read breaker state: %w", err)
	}
	return rec.State, nil
}

// Snapshot returns the full breaker record for diagnostics.
func (b *Breaker) Snapshot(ctx context.Context) (Record, error) {
	rec, err := b.store.Get(ctx, b.name)
	if err != nil {
		return Record{}, fmt.Errorf("failed to read breaker state: %w", err)
	}
	return rec, nil
}

// Call runs fn guarded by the breaker: it checks admission, invokes fn when
// admitted, and records the outcome exactly once. A denied call returns
// *CircuitOpenError without touching the protected resource. Call performs a
// single attempt; retries and backoff stay with the caller.
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	allowed, err := b.AllowRequest(ctx)
	if err != nil {
		return err
	}
	if !allowed {
		return &CircuitOpenError{Name: b.name}
	}

	if err := fn(ctx); err != nil {
		if recordErr := b.RecordFailure(ctx); recordErr != nil {
			b.logger.Error("failed to record breaker failure", "error", recordErr)
		}
		return err
	}

	if recordErr := b.RecordSuccess(ctx); recordErr != nil {
		b.logger.Error("failed to record breaker success", "error", recordErr)
	}
	return nil
}
