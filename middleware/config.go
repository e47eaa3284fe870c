// Package middleware holds the configuration shared by the HTTP middleware
// packages (nethttp and gin).
//
// A middleware evaluates a defense for every request. When the defense fires
// the request is handed to Blocked and never reaches the wrapped handler.
// Otherwise the handler runs and, when CountWhen accepts the response status,
// the tracked condition is increased. With CountWhen matching 401 this is the
// classic login-failure lockout.
package middleware

import (
	"fmt"
	"net/http"

	defense "github.com/jassus213/go-defense"
)

// KeyFunc defines a function type that extracts a unique identifier
// from an HTTP request.
//
// The identifier is the subject the defense and the tracked condition are
// built for. Example: use the client's IP address or a login name.
type KeyFunc func(r *http.Request) (string, error)

// BlockedHandler writes the response for a request whose defense fired.
// result is the value produced by the defense's action.
type BlockedHandler[T any] func(w http.ResponseWriter, r *http.Request, result T)

// Config holds all configurable options for the defense middleware.
//
// Users typically create a Config via NewConfig and provide functional options.
type Config[T any] struct {
	KeyFunc KeyFunc
	// Defense returns the defense evaluated for a subject key.
	Defense func(key string) defense.Defender[T]
	// Track returns the condition increased after a counted response. A nil
	// Track disables counting.
	Track func(key string) defense.Condition
	// CountWhen decides from the response status whether the request is
	// counted.
	CountWhen func(status int) bool
	Blocked   BlockedHandler[T]
	Logger    defense.Logger
}

// Option defines a functional option type for configuring the middleware.
//
// Example:
//
//	cfg := middleware.NewConfig(defenseFor,
//	    middleware.WithTrack[string](trackFor),
//	    middleware.WithLogger[string](myLogger),
//	)
type Option[T any] func(*Config[T])

// NewConfig creates a Config around defenseFor with default settings, then
// applies any provided functional options.
//
// The defaults identify clients by r.RemoteAddr, count 4xx responses and
// answer blocked requests with 429 Too Many Requests.
func NewConfig[T any](defenseFor func(key string) defense.Defender[T], opts ...Option[T]) *Config[T] {
	cfg := &Config[T]{
		KeyFunc: func(r *http.Request) (string, error) {
			return r.RemoteAddr, nil
		},
		Defense: defenseFor,
		CountWhen: func(status int) bool {
			return status >= http.StatusBadRequest && status < http.StatusInternalServerError
		},
		Blocked: func(w http.ResponseWriter, r *http.Request, result T) {
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
		},
		Logger: &noopLogger{},
	}

	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Validate reports a configuration that cannot serve requests. The
// middleware constructors call it and panic on failure.
func (c *Config[T]) Validate() error {
	if c.Defense == nil {
		return fmt.Errorf("middleware: Defense is required")
	}
	return nil
}

// WithKeyFunc returns an Option to set a custom KeyFunc.
func WithKeyFunc[T any](f KeyFunc) Option[T] {
	return func(c *Config[T]) {
		if f != nil {
			c.KeyFunc = f
		}
	}
}

// WithTrack returns an Option to set the condition increased after counted
// responses.
func WithTrack[T any](f func(key string) defense.Condition) Option[T] {
	return func(c *Config[T]) {
		c.Track = f
	}
}

// WithCountWhen returns an Option to set which response statuses are counted.
//
// Example:
//
//	middleware.WithCountWhen[string](func(status int) bool {
//	    return status == http.StatusUnauthorized
//	})
func WithCountWhen[T any](f func(status int) bool) Option[T] {
	return func(c *Config[T]) {
		if f != nil {
			c.CountWhen = f
		}
	}
}

// WithBlocked returns an Option to set a custom BlockedHandler.
func WithBlocked[T any](f BlockedHandler[T]) Option[T] {
	return func(c *Config[T]) {
		if f != nil {
			c.Blocked = f
		}
	}
}

// WithLogger returns an Option to set a custom Logger.
func WithLogger[T any](l defense.Logger) Option[T] {
	return func(c *Config[T]) {
		if l != nil {
			c.Logger = l
		}
	}
}

// Evaluate runs the defense for key. It is the shared first half of every
// middleware: fired reports whether the request must be blocked.
func (c *Config[T]) Evaluate(r *http.Request, key string) (result T, fired bool, err error) {
	result, fired, err = c.Defense(key).IsConditionReached(r.Context())
	if err != nil {
		c.Logger.Errorf("Defense failed for key '%s': %v", key, err)
		return result, false, err
	}
	if fired {
		c.Logger.Debugf("Request blocked for key '%s'", key)
	}
	return result, fired, nil
}

// Record increases the tracked condition for key when status is counted.
// The response is already written at this point, so failures are only logged.
func (c *Config[T]) Record(r *http.Request, key string, status int) {
	if c.Track == nil || !c.CountWhen(status) {
		return
	}
	if err := c.Track(key).IncreaseValue(r.Context()); err != nil {
		c.Logger.Errorf("Failed to record status %d for key '%s': %v", status, key, err)
		return
	}
	c.Logger.Debugf("Recorded status %d for key '%s'", status, key)
}

// noopLogger is a private default logger that does nothing.
type noopLogger struct{}

func (l *noopLogger) Debugf(format string, args ...interface{}) {}
func (l *noopLogger) Errorf(format string, args ...interface{}) {}
