// Package ports defines the interfaces between the playback engine and its
// collaborators: decoders, presenters, logging and the file system.
package ports

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownLogLevel is returned by ParseLogLevel for an unrecognized name.
var ErrUnknownLogLevel = errors.New("unknown log level")

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	// LevelDebug is for per-frame and per-tick details.
	LevelDebug LogLevel = iota
	// LevelInfo is for membership, seek and stall transitions.
	LevelInfo
	// LevelWarn is for decode and render failures and ignored control calls.
	LevelWarn
	// LevelError is for failures that end a session.
	LevelError
	// LevelQuiet suppresses all log output.
	LevelQuiet
)

// String returns the name accepted by ParseLogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelQuiet:
		return "quiet"
	default:
		return "unknown"
	}
}

// ParseLogLevel maps a level name to a LogLevel, ignoring case and
// surrounding space. "warning" is accepted for LevelWarn. Unknown names
// yield LevelInfo and ErrUnknownLogLevel.
func ParseLogLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "quiet":
		return LevelQuiet, nil
	default:
		return LevelInfo, fmt.Errorf("%w: %q", ErrUnknownLogLevel, s)
	}
}

// Logger is the logging port of the engine. msg is a go-l10n lexicon key
// formatted with args, so log lines follow the process language.
type Logger interface {
	// Debug is for per-tick and per-decode detail.
	Debug(msg string, args ...interface{})
	// Info is for stream membership, seeks, stalls and readiness.
	Info(msg string, args ...interface{})
	// Warn is for failed decodes or renders and ignored control calls.
	Warn(msg string, args ...interface{})
	// Error is for failures that end a session.
	Error(msg string, args ...interface{})

	// WithComponent returns a Logger tagging its lines with component, e.g.
	// "video", "stream-1" or "decoder-1".
	WithComponent(component string) Logger
}
