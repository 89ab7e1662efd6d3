package logger

import "github.com/user/vidsync/pkg/ports"

// NoopLogger drops every message. Quiet sessions and tests of the playback
// packages use it.
type NoopLogger struct{}

var _ ports.Logger = (*NoopLogger)(nil)

// NewNoop returns a NoopLogger.
func NewNoop() *NoopLogger {
	return &NoopLogger{}
}

func (l *NoopLogger) Debug(msg string, args ...interface{}) {}
func (l *NoopLogger) Info(msg string, args ...interface{})  {}
func (l *NoopLogger) Warn(msg string, args ...interface{})  {}
func (l *NoopLogger) Error(msg string, args ...interface{}) {}

// WithComponent returns l; components are not tracked.
func (l *NoopLogger) WithComponent(component string) ports.Logger {
	return l
}
