package config

import (
	"context"
	"errors"
	"strings"

	defense "github.com/jassus213/go-defense"
)

// Builder turns a validated Config into defenses for a subject key.
//
// Building is cheap and holds no state: every counter lives in the store,
// so the same key always maps to the same counters.
type Builder struct {
	cfg   *Config
	store defense.CounterStore
	opts  []defense.Option
}

// NewBuilder creates a Builder. opts (logger, observer) are applied to every
// condition, action and defense it builds.
func NewBuilder(cfg *Config, st defense.CounterStore, opts ...defense.Option) *Builder {
	return &Builder{cfg: cfg, store: st, opts: opts}
}

// Defense builds the configured defenses for key as one CompositeDefense,
// evaluated in declaration order.
func (b *Builder) Defense(key string) defense.Defender[string] {
	return b.Composite(key)
}

// Composite is Defense with the concrete type.
func (b *Builder) Composite(key string) *defense.CompositeDefense[string] {
	composite := defense.NewCompositeDefense[string]()
	for _, d := range b.cfg.Defenses {
		opts := append([]defense.Option{defense.WithName(d.Name)}, b.opts...)
		composite.PutDefense(defense.NewDefense[string](b.condition(d.Condition, key), b.action(d.Action, key), opts...))
	}
	return composite
}

// Tracked returns the condition to increase when an event happens for key.
// Every distinct counter referenced by the configured defenses appears once,
// so a counter shared by two defenses is not counted twice.
func (b *Builder) Tracked(key string) defense.Condition {
	seen := make(map[string]struct{})
	tracked := defense.NewAnd()
	for _, d := range b.cfg.Defenses {
		for _, leaf := range b.leaves(d.Condition, key) {
			if _, ok := seen[leaf.Key()]; ok {
				continue
			}
			seen[leaf.Key()] = struct{}{}
			tracked.Push(leaf)
		}
	}
	return tracked
}

// Reset destroys every counter and throttle behind the defenses for key.
func (b *Builder) Reset(ctx context.Context, key string) error {
	errs := []error{b.Composite(key).Destroy(ctx)}
	for _, d := range b.cfg.Defenses {
		if d.Action.Throttle != nil {
			errs = append(errs, b.throttle(d.Action, key).Reset(ctx))
		}
	}
	return errors.Join(errs...)
}

func (b *Builder) condition(c ConditionConfig, key string) defense.Condition {
	switch {
	case c.And != nil:
		and := defense.NewAnd()
		for _, child := range c.And {
			and.Push(b.condition(child, key))
		}
		return and
	case c.Or != nil:
		or := defense.NewOr()
		for _, child := range c.Or {
			or.Push(b.condition(child, key))
		}
		return or
	default:
		return defense.NewSimple(b.store, expand(c.Key, key), c.Threshold, c.Timeout, b.opts...)
	}
}

func (b *Builder) leaves(c ConditionConfig, key string) []*defense.Simple {
	if c.And == nil && c.Or == nil {
		return []*defense.Simple{defense.NewSimple(b.store, expand(c.Key, key), c.Threshold, c.Timeout, b.opts...)}
	}

	var out []*defense.Simple
	for _, child := range append(append([]ConditionConfig{}, c.And...), c.Or...) {
		out = append(out, b.leaves(child, key)...)
	}
	return out
}

func (b *Builder) action(a ActionConfig, key string) defense.Action[string] {
	if a.Throttle != nil {
		return b.throttle(a, key)
	}
	return defense.Response[string]{Value: a.Response}
}

// throttle wraps the response of a into its throttle. a.Throttle must be set.
func (b *Builder) throttle(a ActionConfig, key string) *defense.Throttle[string] {
	t := a.Throttle
	return defense.NewThrottle[string](defense.Response[string]{Value: a.Response}, b.store, expand(t.Key, key), t.Limit, t.Window, b.opts...)
}

// expand substitutes the subject key into a counter key template.
func expand(template, key string) string {
	return strings.ReplaceAll(template, KeyPlaceholder, key)
}
