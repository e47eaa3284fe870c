// Package logrusadapter implements defense.Logger on top of logrus.
package logrusadapter

import (
	"github.com/sirupsen/logrus"

	defense "github.com/jassus213/go-defense"
)

// LogrusLogger implements defense.Logger using logrus
type LogrusLogger struct {
	logger *logrus.Entry
}

var _ defense.Logger = (*LogrusLogger)(nil)

// New creates a new LogrusLogger. If nil is passed, uses a fresh logrus
// logger. Every entry carries component=defense.
func New(l *logrus.Logger) *LogrusLogger {
	if l == nil {
		l = logrus.New()
	}
	return &LogrusLogger{
		logger: l.WithField("component", "defense"),
	}
}

// Debugf logs a debug-level message
func (l *LogrusLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf(format, args...)
}

// Errorf logs an error-level message
func (l *LogrusLogger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(format, args...)
}
