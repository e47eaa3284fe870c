// Package zerologadapter implements defense.Logger on top of zerolog.
package zerologadapter

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	defense "github.com/jassus213/go-defense"
)

// ZerologLogger implements defense.Logger using zerolog
type ZerologLogger struct {
	logger zerolog.Logger
}

var _ defense.Logger = (*ZerologLogger)(nil)

// New creates a new ZerologLogger. If nil is passed, uses zerolog's global logger.
func New(l *zerolog.Logger) *ZerologLogger {
	if l == nil {
		l = &log.Logger
	}
	return &ZerologLogger{
		logger: l.With().Str("component", "defense").Logger(),
	}
}

// Debugf logs a debug-level message
func (z *ZerologLogger) Debugf(format string, args ...interface{}) {
	z.logger.Debug().Msgf(format, args...)
}

// Errorf logs an error-level message
func (z *ZerologLogger) Errorf(format string, args ...interface{}) {
	z.logger.Error().Msgf(format, args...)
}
