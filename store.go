// Package defense provides composable threshold defenses over shared counters.
//
// Counters live in a CounterStore (in-memory, Redis or SQL, see the store
// package) and are keyed by caller-chosen identifiers such as a client
// address or an account id. Conditions test those counters against
// thresholds and can be combined with And and Or. A Defense pairs a Condition
// with an Action that fires when the condition is reached, and a
// CompositeDefense evaluates an ordered list of defenses first-match-wins.
//
// The package defines four core abstractions:
//   - CounterStore: atomic counters with a time-to-live
//   - Condition: Simple, And and Or threshold tests
//   - Action: the effect produced when a defense fires (Response, ActionFunc, Throttle)
//   - Defender: Defense and CompositeDefense
//
// Example:
//
//	st := store.NewMemory(ctx, time.Minute)
//	failures := defense.NewSimple(st, "login_fail:1.2.3.4", 3, time.Minute)
//	d := defense.NewDefense[string](failures, defense.Response[string]{Value: "blocked"})
//
//	_ = failures.IncreaseValue(ctx)
//	if res, fired, err := d.IsConditionReached(ctx); err == nil && fired {
//	    // res == "blocked"
//	}
package defense

import (
	"context"
	"time"
)

// CounterStore defines the interface for storing defense counters.
//
// This abstraction allows interchangeable backends such as in-memory stores,
// Redis or a SQL table. Implementations must make Increase and Decrease
// atomic under concurrent callers: the core holds no counter state and
// relies entirely on the store for cross-caller correctness.
//
// Every write re-applies the timeout, so each touch resets the expiry of a
// key. A timeout <= 0 stores the key without expiry.
//
// Storage failures must be reported as *BackendError so that conditions can
// tell them apart from programming errors.
type CounterStore interface {
	// Increase atomically adds step to the counter at key, creating it at 0
	// when absent, then re-applies the timeout. It returns the new value.
	//
	// A step lower than 1 returns ErrInvalidStep.
	Increase(ctx context.Context, key string, step int64, timeout time.Duration) (int64, error)

	// Decrease atomically subtracts step from the counter at key, creating
	// it at 0 when absent, then re-applies the timeout. It returns the new
	// value.
	//
	// A step lower than 1 returns ErrInvalidStep.
	Decrease(ctx context.Context, key string, step int64, timeout time.Duration) (int64, error)

	// Get returns the current value of key. ok is false when the key is
	// missing or expired.
	Get(ctx context.Context, key string) (value int64, ok bool, err error)

	// Set unconditionally overwrites the counter at key and applies the
	// timeout.
	Set(ctx context.Context, key string, value int64, timeout time.Duration) error

	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// ValidateStep returns ErrInvalidStep when step is lower than 1.
// Store implementations call it before touching the backend.
func ValidateStep(step int64) error {
	if step < 1 {
		return ErrInvalidStep
	}
	return nil
}
