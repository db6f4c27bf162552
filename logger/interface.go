// Package logger defines the structured logging contract used by the REST client.
// It keeps the client decoupled from any concrete logging backend; a zerolog-based
// implementation is provided.
package logger

import "time"

// Logger is the contract for structured logging throughout the client.
// Implementations must be safe for concurrent use.
type Logger interface {
	Debug() LogEvent
	Info() LogEvent
	Warn() LogEvent
	Error() LogEvent
	WithFields(fields map[string]any) Logger
}

// LogEvent represents a structured log event built from typed fields and
// finished by Msg or Msgf.
type LogEvent interface {
	Msg(msg string)
	Msgf(format string, args ...any)
	Err(err error) LogEvent
	Str(key, value string) LogEvent
	Int(key string, value int) LogEvent
	Int64(key string, value int64) LogEvent
	Dur(key string, d time.Duration) LogEvent
	Interface(key string, i any) LogEvent
	Bytes(key string, val []byte) LogEvent
}
