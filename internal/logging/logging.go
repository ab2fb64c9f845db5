// Package logging provides the structured logger used across arfilter.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

const (
	EnvLogLevel     = "ARFILTER_LOG_LEVEL"
	EnvLogTimestamp = "ARFILTER_LOG_TIMESTAMP"
	EnvLogNoColor   = "ARFILTER_NOCOLOR"
)

// Logger provides structured logging with key-value pairs.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Options configures New.
type Options struct {
	Level     string    // debug, info, warn, error, off
	NoColor   bool      // disable ANSI colour in console output
	Timestamp bool      // prefix records with an RFC3339 timestamp
	Output    io.Writer // defaults to os.Stderr
}

// DefaultOptions returns the options used when nothing is configured:
// warnings and errors only, no timestamps, written to os.Stderr.
func DefaultOptions() Options {
	return Options{Level: "warn"}
}

// ApplyEnv overrides opts from ARFILTER_LOG_* environment variables.
func ApplyEnv(opts *Options) {
	if raw := os.Getenv(EnvLogLevel); raw != "" {
		if _, ok := ParseLevel(raw); ok {
			opts.Level = raw
		}
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		opts.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		opts.NoColor = v
	}
}

// New creates a zerolog-backed Logger. Records go to a console writer when
// the output is a terminal and JSON lines otherwise.
func New(opts Options) Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	if IsTerminal(out) {
		out = zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    opts.NoColor,
			TimeFormat: time.RFC3339,
			PartsExclude: func() []string {
				if opts.Timestamp {
					return nil
				}
				return []string{zerolog.TimestampFieldName}
			}(),
		}
	}

	level, ok := ParseLevel(opts.Level)
	if !ok {
		level = zerolog.InfoLevel
	}

	ctx := zerolog.New(out).Level(level).With()
	if opts.Timestamp {
		ctx = ctx.Timestamp()
	}
	return &zeroLogger{log: ctx.Logger()}
}

// ParseLevel maps a level name to a zerolog level.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "":
		return zerolog.InfoLevel, false
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "off", "none", "disabled", "disable":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

type zeroLogger struct {
	log zerolog.Logger
}

func (z *zeroLogger) Debug(msg string, keysAndValues ...interface{}) {
	z.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (z *zeroLogger) Info(msg string, keysAndValues ...interface{}) {
	z.log.Info().Fields(keysAndValues).Msg(msg)
}

func (z *zeroLogger) Warn(msg string, keysAndValues ...interface{}) {
	z.log.Warn().Fields(keysAndValues).Msg(msg)
}

func (z *zeroLogger) Error(msg string, keysAndValues ...interface{}) {
	z.log.Error().Fields(keysAndValues).Msg(msg)
}

// noopLogger is the default when no logger is configured.
type noopLogger struct{}

func (noopLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (noopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Error(msg string, keysAndValues ...interface{}) {}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return noopLogger{}
}

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
