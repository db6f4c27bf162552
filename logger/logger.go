package logger

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ZeroLogger implements Logger on top of zerolog.
type ZeroLogger struct {
	zlog *zerolog.Logger
}

var _ Logger = (*ZeroLogger)(nil)

var callerMarshalOnce sync.Once

func setupCallerMarshal() {
	callerMarshalOnce.Do(func() {
		zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
			base := filepath.Base(file)
			parent := filepath.Base(filepath.Dir(file))
			if parent != "." && parent != "" {
				return parent + "/" + base + ":" + strconv.Itoa(line)
			}
			return base + ":" + strconv.Itoa(line)
		}
	})
}

// New creates a ZeroLogger writing to stdout at the given level.
// Unknown levels fall back to info. If pretty is true, output is formatted
// for human readability instead of JSON.
func New(level string, pretty bool) *ZeroLogger {
	return NewWithOutput(level, pretty, os.Stdout)
}

// NewWithOutput creates a ZeroLogger writing to the given writer.
func NewWithOutput(level string, pretty bool, out io.Writer) *ZeroLogger {
	setupCallerMarshal()

	var l zerolog.Logger
	if pretty {
		l = zerolog.New(zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().CallerWithSkipFrameCount(3).Logger()
	} else {
		l = zerolog.New(out).With().Timestamp().CallerWithSkipFrameCount(3).Logger()
	}

	zLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		zLevel = zerolog.InfoLevel
	}
	l = l.Level(zLevel)

	return &ZeroLogger{zlog: &l}
}

// NewNop returns a logger that discards everything. Useful as a default when
// callers do not care about client logs.
func NewNop() *ZeroLogger {
	l := zerolog.Nop()
	return &ZeroLogger{zlog: &l}
}

// WithFields returns a logger with additional fields attached to all entries.
func (l *ZeroLogger) WithFields(fields map[string]any) Logger {
	log := l.zlog.With().Fields(fields).Logger()
	return &ZeroLogger{zlog: &log}
}

// Debug creates a debug-level log event
func (l *ZeroLogger) Debug() LogEvent {
	return &eventAdapter{event: l.zlog.Debug()}
}

// Info creates an info-level log event
func (l *ZeroLogger) Info() LogEvent {
	return &eventAdapter{event: l.zlog.Info()}
}

// Warn creates a warning-level log event
func (l *ZeroLogger) Warn() LogEvent {
	return &eventAdapter{event: l.zlog.Warn()}
}

// Error creates an error-level log event
func (l *ZeroLogger) Error() LogEvent {
	return &eventAdapter{event: l.zlog.Error()}
}

// eventAdapter adapts zerolog events to the LogEvent interface
type eventAdapter struct {
	event *zerolog.Event
}

func (e *eventAdapter) Msg(msg string) {
	e.event.Msg(msg)
}

func (e *eventAdapter) Msgf(format string, args ...any) {
	e.event.Msgf(format, args...)
}

func (e *eventAdapter) Err(err error) LogEvent {
	return &eventAdapter{event: e.event.Err(err)}
}

func (e *eventAdapter) Str(key, value string) LogEvent {
	return &eventAdapter{event: e.event.Str(key, value)}
}

func (e *eventAdapter) Int(key string, value int) LogEvent {
	return &eventAdapter{event: e.event.Int(key, value)}
}

func (e *eventAdapter) Int64(key string, value int64) LogEvent {
	return &eventAdapter{event: e.event.Int64(key, value)}
}

func (e *eventAdapter) Dur(key string, d time.Duration) LogEvent {
	return &eventAdapter{event: e.event.Dur(key, d)}
}

func (e *eventAdapter) Interface(key string, i any) LogEvent {
	return &eventAdapter{event: e.event.Interface(key, i)}
}

func (e *eventAdapter) Bytes(key string, val []byte) LogEvent {
	return &eventAdapter{event: e.event.Bytes(key, val)}
}
