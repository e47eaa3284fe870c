package defense

// Logger is the interface used for logging inside conditions and defenses.
//
// Implement this interface to provide your own logging backend, or use one
// of the adapters shipped in the adapters directory (log, zap, zerolog,
// logrus).
//
// Example:
//
//	type MyLogger struct{}
//	func (l *MyLogger) Debugf(format string, args ...interface{}) { ... }
//	func (l *MyLogger) Errorf(format string, args ...interface{}) { ... }
type Logger interface {
	Debugf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Observer receives signals that are not visible through return values.
//
// Backend errors are suppressed by conditions so that a storage outage never
// breaks the request path it protects; BackendErrorSuppressed is the channel
// through which those outages stay detectable. See the metrics directory for
// Prometheus and OpenTelemetry implementations.
type Observer interface {
	// BackendErrorSuppressed is called every time a backend error is
	// swallowed. op is the condition operation ("increase", "decrease",
	// "reach", "destroy", "accept").
	BackendErrorSuppressed(op, key string, err error)

	// DefenseFired is called when a named Defense fires.
	DefenseFired(name string)
}

// Config holds the ambient settings shared by conditions, actions and
// defenses. Users build it through functional options.
type Config struct {
	Logger   Logger
	Observer Observer
	Name     string
}

// Option defines a functional option for conditions, actions and defenses.
//
// Example:
//
//	c := defense.NewSimple(st, "login_fail:1.2.3.4", 3, time.Minute,
//	    defense.WithLogger(myLogger),
//	    defense.WithObserver(myObserver),
//	)
type Option func(*Config)

// NewConfig creates a Config with default settings, then applies any
// provided functional options.
func NewConfig(opts ...Option) *Config {
	cfg := &Config{
		Logger:   &noopLogger{},
		Observer: &noopObserver{},
	}

	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithLogger returns an Option to set a custom Logger.
func WithLogger(l Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithObserver returns an Option to set a custom Observer.
func WithObserver(o Observer) Option {
	return func(c *Config) {
		if o != nil {
			c.Observer = o
		}
	}
}

// WithName returns an Option that names a Defense. The name is used in log
// lines and reported to the Observer when the defense fires.
func WithName(name string) Option {
	return func(c *Config) {
		c.Name = name
	}
}

// noopLogger is a private default logger that does nothing.
type noopLogger struct{}

func (l *noopLogger) Debugf(format string, args ...interface{}) {}
func (l *noopLogger) Errorf(format string, args ...interface{}) {}

type noopObserver struct{}

func (o *noopObserver) BackendErrorSuppressed(op, key string, err error) {}
func (o *noopObserver) DefenseFired(name string)                         {}
