// Package logger provides the structured logger shared by the service.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger interface for structured logging. Args are alternating key/value
// pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// zeroLogger adapts zerolog to the Logger interface
type zeroLogger struct {
	zl zerolog.Logger
}

func (l *zeroLogger) Debug(msg string, args ...any) { l.zl.Debug().Fields(args).Msg(msg) }
func (l *zeroLogger) Info(msg string, args ...any)  { l.zl.Info().Fields(args).Msg(msg) }
func (l *zeroLogger) Warn(msg string, args ...any)  { l.zl.Warn().Fields(args).Msg(msg) }
func (l *zeroLogger) Error(msg string, args ...any) { l.zl.Error().Fields(args).Msg(msg) }

var timeFormatOnce sync.Once

// Setup creates the process logger from level (debug, info, warn, error) and
// format (json or text) writing to stdout. It also fixes zerolog's global
// timestamp format, so call it once at startup.
func Setup(level, format string) Logger {
	timeFormatOnce.Do(func() {
		zerolog.TimeFieldFormat = time.RFC3339Nano
	})
	return New(os.Stdout, level, format)
}

// New is Setup with an explicit writer. It leaves zerolog's globals alone.
func New(w io.Writer, level, format string) Logger {
	if strings.ToLower(format) != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}

	zl := zerolog.New(w).
		With().
		Timestamp().
		Logger().
		Level(parseLevel(level))

	return &zeroLogger{zl: zl}
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop discards everything.
func Nop() Logger { return nopLogger{} }
