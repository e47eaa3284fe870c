package defense

import (
	"context"
	"time"
)

// Action produces the result of a Defense once its Condition is reached.
//
// Accept is a gate consulted before Process: a Defense fires only when its
// condition is reached and the action accepts. Actions that never veto simply
// return true.
type Action[T any] interface {
	// Process returns the result of firing, computed from the triggering
	// condition when needed.
	Process(ctx context.Context, c Condition) (T, error)
	// Accept reports whether the action agrees to fire for c.
	Accept(ctx context.Context, c Condition) (bool, error)
}

// Response is an Action that always returns a fixed value.
//
// Example:
//
//	blocked := defense.Response[string]{Value: "blocked"}
type Response[T any] struct {
	Value T
}

// Process returns the configured value and ignores c.
func (a Response[T]) Process(ctx context.Context, c Condition) (T, error) {
	return a.Value, nil
}

// Accept always returns true.
func (a Response[T]) Accept(ctx context.Context, c Condition) (bool, error) {
	return true, nil
}

// ActionFunc adapts an ordinary function to the Action interface. It never
// vetoes firing.
//
// Example:
//
//	alert := defense.ActionFunc[string](func(ctx context.Context, c defense.Condition) (string, error) {
//	    notifyOps(ctx)
//	    return "alerted", nil
//	})
type ActionFunc[T any] func(ctx context.Context, c Condition) (T, error)

// Process calls f(ctx, c).
func (f ActionFunc[T]) Process(ctx context.Context, c Condition) (T, error) {
	return f(ctx, c)
}

// Accept always returns true.
func (f ActionFunc[T]) Accept(ctx context.Context, c Condition) (bool, error) {
	return true, nil
}

// Throttle limits how often an inner Action may fire.
//
// Accept increases a dedicated counter key and lets the fire through while
// the increased count is <= limit; the store's atomic increment is the
// decision, so concurrent callers share one budget. A vetoed attempt gives
// its increment back, so the count never exceeds limit. Every attempt
// refreshes the window TTL. A backend failure while counting lets the fire
// through.
type Throttle[T any] struct {
	inner  Action[T]
	store  CounterStore
	key    string
	limit  int64
	window time.Duration
	cfg    *Config
}

// NewThrottle wraps inner so that it fires at most limit times per window.
// The fire count is kept under key in store.
func NewThrottle[T any](inner Action[T], store CounterStore, key string, limit int64, window time.Duration, opts ...Option) *Throttle[T] {
	return &Throttle[T]{
		inner:  inner,
		store:  store,
		key:    key,
		limit:  limit,
		window: window,
		cfg:    NewConfig(opts...),
	}
}

// Process delegates to the inner action.
func (t *Throttle[T]) Process(ctx context.Context, c Condition) (T, error) {
	return t.inner.Process(ctx, c)
}

// Accept counts the fire and reports whether it is within the limit, then
// consults the inner action.
func (t *Throttle[T]) Accept(ctx context.Context, c Condition) (bool, error) {
	fired, err := t.store.Increase(ctx, t.key, 1, t.window)
	if err != nil {
		if !IsBackendError(err) {
			return false, err
		}
		t.suppressed(OpAccept, err)
		return t.inner.Accept(ctx, c)
	}

	if fired > t.limit {
		if _, err := t.store.Decrease(ctx, t.key, 1, t.window); err != nil {
			if !IsBackendError(err) {
				return false, err
			}
			t.suppressed(OpAccept, err)
		}
		t.cfg.Logger.Debugf("Throttled action for key '%s': limit %d reached in window", t.key, t.limit)
		return false, nil
	}
	return t.inner.Accept(ctx, c)
}

// Reset forgets the fire count.
func (t *Throttle[T]) Reset(ctx context.Context) error {
	err := t.store.Remove(ctx, t.key)
	if err != nil && IsBackendError(err) {
		t.suppressed(OpDestroy, err)
		return nil
	}
	return err
}

func (t *Throttle[T]) suppressed(op string, err error) {
	t.cfg.Logger.Errorf("Suppressed backend error during %s of key '%s': %v", op, t.key, err)
	t.cfg.Observer.BackendErrorSuppressed(op, t.key, err)
}
