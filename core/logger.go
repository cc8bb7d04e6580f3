package core

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger interface for structured logging
// Implementations can provide custom logging behavior (e.g., integration with logrus, zap, etc.)
type Logger interface {
	// Debug logs a debug message with optional fields
	Debug(msg string, fields ...Field)

	// Info logs an info message with optional fields
	Info(msg string, fields ...Field)

	// Warn logs a warning message with optional fields
	Warn(msg string, fields ...Field)

	// Error logs an error message with optional fields
	Error(msg string, fields ...Field)
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value any
}

// F creates a new Field with the given key and value
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// LogifaceLogger adapts a logiface logger to Logger.
type LogifaceLogger struct {
	logger *logiface.Logger[logiface.Event]
}

// NewLogifaceLogger wraps an existing logiface logger. A nil logger discards
// everything.
func NewLogifaceLogger(logger *logiface.Logger[logiface.Event]) *LogifaceLogger {
	return &LogifaceLogger{logger: logger}
}

// NewDefaultLogger creates a JSON logger writing to stderr at informational
// level.
func NewDefaultLogger() *LogifaceLogger {
	return NewWriterLogger(os.Stderr, logiface.LevelInformational)
}

// NewWriterLogger creates a JSON logger writing to w, filtering below level.
func NewWriterLogger(w io.Writer, level logiface.Level) *LogifaceLogger {
	l := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	)
	return NewLogifaceLogger(l.Logger())
}

// Debug logs a debug message
func (l *LogifaceLogger) Debug(msg string, fields ...Field) {
	logFields(l.logger.Debug(), fields).Log(msg)
}

// Info logs an info message
func (l *LogifaceLogger) Info(msg string, fields ...Field) {
	logFields(l.logger.Info(), fields).Log(msg)
}

// Warn logs a warning message
func (l *LogifaceLogger) Warn(msg string, fields ...Field) {
	logFields(l.logger.Warning(), fields).Log(msg)
}

// Error logs an error message
func (l *LogifaceLogger) Error(msg string, fields ...Field) {
	logFields(l.logger.Err(), fields).Log(msg)
}

func logFields(b *logiface.Builder[logiface.Event], fields []Field) *logiface.Builder[logiface.Event] {
	if !b.Enabled() {
		return b
	}
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			b = b.Str(f.Key, v)
		case int:
			b = b.Int(f.Key, v)
		case int64:
			b = b.Int64(f.Key, v)
		case uint64:
			b = b.Uint64(f.Key, v)
		case bool:
			b = b.Bool(f.Key, v)
		case time.Duration:
			b = b.Dur(f.Key, v)
		case error:
			if f.Key == "error" || f.Key == "err" {
				b = b.Err(v)
			} else {
				b = b.Str(f.Key, v.Error())
			}
		case fmt.Stringer:
			b = b.Str(f.Key, v.String())
		default:
			b = b.Any(f.Key, v)
		}
	}
	return b
}

// NoOpLogger is a logger that discards all log messages
// Useful for tests or when logging is not desired
type NoOpLogger struct{}

// NewNoOpLogger creates a new NoOpLogger
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

func (l *NoOpLogger) Debug(msg string, fields ...Field) {}
func (l *NoOpLogger) Info(msg string, fields ...Field)  {}
func (l *NoOpLogger) Warn(msg string, fields ...Field)  {}
func (l *NoOpLogger) Error(msg string, fields ...Field) {}
