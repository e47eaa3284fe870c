package defense

import (
	"context"
	"errors"
)

// Defender is implemented by Defense and CompositeDefense.
//
// Middleware and users interact with Defender to test-and-fetch a result
// and to reset accumulated state.
type Defender[T any] interface {
	// IsConditionReached evaluates the defense.
	//
	// Returns:
	//   - result: the action's result, meaningful only when fired is true
	//   - fired: false means the defense did not fire; a fired defense may
	//     still return a zero result
	//   - error: a non-backend error from a condition or action
	IsConditionReached(ctx context.Context) (result T, fired bool, err error)

	// Destroy resets the backend state behind the defense.
	Destroy(ctx context.Context) error
}

// Defense pairs one Condition with one Action.
//
// A Defense holds no in-process state between evaluations; everything that
// persists lives in the store behind its condition.
//
// Example:
//
//	failures := defense.NewSimple(st, "login_fail:1.2.3.4", 3, time.Minute)
//	d := defense.NewDefense[string](failures, defense.Response[string]{Value: "blocked"})
//	result, fired, err := d.IsConditionReached(ctx)
type Defense[T any] struct {
	condition Condition
	action    Action[T]
	cfg       *Config
}

// NewDefense creates a Defense that fires action when condition is reached.
func NewDefense[T any](condition Condition, action Action[T], opts ...Option) *Defense[T] {
	return &Defense[T]{
		condition: condition,
		action:    action,
		cfg:       NewConfig(opts...),
	}
}

// Condition returns the defense's condition.
func (d *Defense[T]) Condition() Condition { return d.condition }

// Action returns the defense's action.
func (d *Defense[T]) Action() Action[T] { return d.action }

// Name returns the name set with WithName.
func (d *Defense[T]) Name() string { return d.cfg.Name }

// IsConditionReached fires the action when the condition is reached and the
// action accepts.
func (d *Defense[T]) IsConditionReached(ctx context.Context) (T, bool, error) {
	var zero T

	reached, err := d.condition.Reach(ctx)
	if err != nil || !reached {
		return zero, false, err
	}

	accepted, err := d.action.Accept(ctx, d.condition)
	if err != nil {
		return zero, false, err
	}
	if !accepted {
		d.cfg.Logger.Debugf("Defense '%s' reached but action declined", d.cfg.Name)
		return zero, false, nil
	}

	result, err := d.action.Process(ctx, d.condition)
	if err != nil {
		return zero, false, err
	}

	d.cfg.Logger.Debugf("Defense '%s' fired", d.cfg.Name)
	d.cfg.Observer.DefenseFired(d.cfg.Name)
	return result, true, nil
}

// Destroy destroys the condition. The condition and action are kept, so the
// defense can be evaluated again right away.
func (d *Defense[T]) Destroy(ctx context.Context) error {
	return d.condition.Destroy(ctx)
}

// CompositeDefense evaluates an ordered list of defenders, first match wins.
//
// It satisfies Defender itself, so composites nest. PutDefense is meant for
// configuration time and must not race with evaluation.
//
// Example:
//
//	composite := defense.NewCompositeDefense[string]()
//	composite.PutDefense(ban)      // checked first
//	composite.PutDefense(throttle) // checked only when ban does not fire
type CompositeDefense[T any] struct {
	defenses []Defender[T]
}

// NewCompositeDefense creates a composite over defenses, in order.
func NewCompositeDefense[T any](defenses ...Defender[T]) *CompositeDefense[T] {
	return &CompositeDefense[T]{defenses: append([]Defender[T](nil), defenses...)}
}

// PutDefense appends d to the evaluation order.
func (c *CompositeDefense[T]) PutDefense(d Defender[T]) {
	c.defenses = append(c.defenses, d)
}

// Len returns the number of child defenders.
func (c *CompositeDefense[T]) Len() int { return len(c.defenses) }

// IsConditionReached returns the result of the first child that fires.
// Children after it are not evaluated.
func (c *CompositeDefense[T]) IsConditionReached(ctx context.Context) (T, bool, error) {
	var zero T
	for _, d := range c.defenses {
		result, fired, err := d.IsConditionReached(ctx)
		if err != nil {
			return zero, false, err
		}
		if fired {
			return result, true, nil
		}
	}
	return zero, false, nil
}

// Destroy destroys every child and then empties the composite. The list is
// cleared even when a child fails; child errors are joined.
func (c *CompositeDefense[T]) Destroy(ctx context.Context) error {
	var errs []error
	for _, d := range c.defenses {
		if err := d.Destroy(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	clear(c.defenses)
	c.defenses = c.defenses[:0]
	return errors.Join(errs...)
}
