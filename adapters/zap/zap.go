// Package zapadapter implements defense.Logger on top of zap.
package zapadapter

import (
	"go.uber.org/zap"

	defense "github.com/jassus213/go-defense"
)

// ZapLogger is an adapter that implements the defense.Logger interface
// using a zap.SugaredLogger internally.
type ZapLogger struct {
	logger *zap.SugaredLogger
}

var _ defense.Logger = (*ZapLogger)(nil)

// New creates a new ZapLogger from a zap.Logger, named "defense".
//
// If a nil logger is provided, it uses zap.NewNop() internally, which
// is a no-op logger that discards all messages.
//
// Example:
//
//	zapLogger := zapadapter.New(logger)
//	c := defense.NewSimple(st, key, 3, time.Minute, defense.WithLogger(zapLogger))
func New(l *zap.Logger) *ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapLogger{logger: l.Named("defense").Sugar()}
}

// Debugf logs a debug-level message with formatting, compatible with
// defense.Logger interface.
func (z *ZapLogger) Debugf(format string, args ...interface{}) {
	z.logger.Debugf(format, args...)
}

// Errorf logs an error-level message with formatting, compatible with
// defense.Logger interface.
func (z *ZapLogger) Errorf(format string, args ...interface{}) {
	z.logger.Errorf(format, args...)
}
