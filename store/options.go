package store

import "time"

// Option configures a store.
type Option func(*options)

type options struct {
	now    func() time.Time
	prefix string
}

func newOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock replaces time.Now as the source of the current time. The Redis
// store keeps TTLs on the server and ignores it.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithKeyPrefix prepends prefix to every key, e.g. "defense:".
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

func (o options) key(key string) string {
	return o.prefix + key
}

// expiry returns the absolute expiration for a write at now; zero means never.
func (o options) expiry(now time.Time, timeout time.Duration) time.Time {
	if timeout <= 0 {
		return time.Time{}
	}
	return now.Add(timeout)
}
