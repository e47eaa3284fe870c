package defense

import (
	"context"
	"time"
)

// Condition operation names reported to Logger and Observer.
const (
	OpIncrease = "increase"
	OpDecrease = "decrease"
	OpReach    = "reach"
	OpDestroy  = "destroy"
	OpAccept   = "accept"
)

// Condition is a predicate over one or more stored counters.
//
// The set of conditions is closed: *Simple tests a single counter, *And and
// *Or combine other conditions, so trees such as Or-of-And nest freely
// without callers knowing their shape.
//
// Backend errors (*BackendError) are suppressed by every method: writes
// become no-ops and reads report "not reached". Any other error is returned.
type Condition interface {
	// IncreaseValue adds one to every counter the condition covers.
	IncreaseValue(ctx context.Context) error
	// DecreaseValue subtracts one from every counter the condition covers.
	DecreaseValue(ctx context.Context) error
	// Reach reports whether the condition's thresholds are reached.
	Reach(ctx context.Context) (bool, error)
	// Destroy removes the backend state of every counter the condition covers.
	Destroy(ctx context.Context) error

	condition()
}

// Simple tests one counter against a threshold.
//
// Example:
//
//	failures := defense.NewSimple(st, "login_fail:1.2.3.4", 3, time.Minute)
//	_ = failures.IncreaseValue(ctx)
//	reached, _ := failures.Reach(ctx)
type Simple struct {
	store     CounterStore
	key       string
	threshold int64
	timeout   time.Duration
	cfg       *Config
}

// NewSimple creates a Simple condition over key in store.
//
// Parameters:
//   - store: the shared CounterStore; it is referenced, never owned
//   - key: counter key, unique within the store's namespace
//   - threshold: value the counter must reach for Reach to report true
//   - timeout: TTL re-applied to key on every write
func NewSimple(store CounterStore, key string, threshold int64, timeout time.Duration, opts ...Option) *Simple {
	return &Simple{
		store:     store,
		key:       key,
		threshold: threshold,
		timeout:   timeout,
		cfg:       NewConfig(opts...),
	}
}

func (c *Simple) condition() {}

// Key returns the counter key.
func (c *Simple) Key() string { return c.key }

// Threshold returns the configured threshold.
func (c *Simple) Threshold() int64 { return c.threshold }

// Timeout returns the TTL applied on every write.
func (c *Simple) Timeout() time.Duration { return c.timeout }

// IncreaseValue adds one to the counter and refreshes its TTL.
func (c *Simple) IncreaseValue(ctx context.Context) error {
	_, err := c.store.Increase(ctx, c.key, 1, c.timeout)
	return c.suppress(OpIncrease, err)
}

// DecreaseValue subtracts one from the counter and refreshes its TTL.
func (c *Simple) DecreaseValue(ctx context.Context) error {
	_, err := c.store.Decrease(ctx, c.key, 1, c.timeout)
	return c.suppress(OpDecrease, err)
}

// Reach reports whether the counter is present and >= threshold.
// An absent counter, or a counter at 0, is never reached.
func (c *Simple) Reach(ctx context.Context) (bool, error) {
	value, ok, err := c.Value(ctx)
	if err != nil || !ok || value == 0 {
		return false, err
	}
	return value >= c.threshold, nil
}

// Value returns the current counter value. ok is false when the counter is
// absent or when the backend failed (the failure is suppressed).
func (c *Simple) Value(ctx context.Context) (value int64, ok bool, err error) {
	value, ok, err = c.store.Get(ctx, c.key)
	if err != nil {
		return 0, false, c.suppress(OpReach, err)
	}
	return value, ok, nil
}

// Destroy removes the counter from the store.
func (c *Simple) Destroy(ctx context.Context) error {
	return c.suppress(OpDestroy, c.store.Remove(ctx, c.key))
}

func (c *Simple) suppress(op string, err error) error {
	if err == nil {
		return nil
	}
	if !IsBackendError(err) {
		return err
	}
	c.cfg.Logger.Errorf("Suppressed backend error during %s of key '%s': %v", op, c.key, err)
	c.cfg.Observer.BackendErrorSuppressed(op, c.key, err)
	return nil
}

// And is reached when every child is reached.
//
// Children are evaluated in order and evaluation stops at the first child
// that is not reached. An And without children is vacuously reached.
type And struct {
	children []Condition
}

// NewAnd creates an And over children.
func NewAnd(children ...Condition) *And {
	return &And{children: append([]Condition(nil), children...)}
}

func (c *And) condition() {}

// Push appends a child condition.
func (c *And) Push(child Condition) {
	c.children = append(c.children, child)
}

// Children returns a copy of the child list.
func (c *And) Children() []Condition {
	return append([]Condition(nil), c.children...)
}

// Len returns the number of children.
func (c *And) Len() int { return len(c.children) }

// IncreaseValue increases every child.
func (c *And) IncreaseValue(ctx context.Context) error {
	return eachChild(ctx, c.children, Condition.IncreaseValue)
}

// DecreaseValue decreases every child.
func (c *And) DecreaseValue(ctx context.Context) error {
	return eachChild(ctx, c.children, Condition.DecreaseValue)
}

// Reach reports whether every child is reached.
func (c *And) Reach(ctx context.Context) (bool, error) {
	for _, child := range c.children {
		reached, err := child.Reach(ctx)
		if err != nil {
			return false, err
		}
		if !reached {
			return false, nil
		}
	}
	return true, nil
}

// Destroy destroys every child. The child list itself is kept.
func (c *And) Destroy(ctx context.Context) error {
	return eachChild(ctx, c.children, Condition.Destroy)
}

// Or is reached when at least one child is reached.
//
// Children are evaluated in order and evaluation stops at the first child
// that is reached. An Or without children is never reached.
type Or struct {
	children []Condition
}

// NewOr creates an Or over children.
func NewOr(children ...Condition) *Or {
	return &Or{children: append([]Condition(nil), children...)}
}

func (c *Or) condition() {}

// Push appends a child condition.
func (c *Or) Push(child Condition) {
	c.children = append(c.children, child)
}

// Children returns a copy of the child list.
func (c *Or) Children() []Condition {
	return append([]Condition(nil), c.children...)
}

// Len returns the number of children.
func (c *Or) Len() int { return len(c.children) }

// IncreaseValue increases every child.
func (c *Or) IncreaseValue(ctx context.Context) error {
	return eachChild(ctx, c.children, Condition.IncreaseValue)
}

// DecreaseValue decreases every child.
func (c *Or) DecreaseValue(ctx context.Context) error {
	return eachChild(ctx, c.children, Condition.DecreaseValue)
}

// Reach reports whether any child is reached.
func (c *Or) Reach(ctx context.Context) (bool, error) {
	for _, child := range c.children {
		reached, err := child.Reach(ctx)
		if err != nil {
			return false, err
		}
		if reached {
			return true, nil
		}
	}
	return false, nil
}

// Destroy destroys every child. The child list itself is kept.
func (c *Or) Destroy(ctx context.Context) error {
	return eachChild(ctx, c.children, Condition.Destroy)
}

// eachChild applies fn to children in order and stops at the first error.
// Backend errors never get here: the Simple leaves have already suppressed them.
func eachChild(ctx context.Context, children []Condition, fn func(Condition, context.Context) error) error {
	for _, child := range children {
		if err := fn(child, ctx); err != nil {
			return err
		}
	}
	return nil
}
