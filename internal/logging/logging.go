// Package logging builds the zerolog logger used for the error stream.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	EnvLogLevel     = "NETSNIFF_LOG_LEVEL"
	EnvLogTimestamp = "NETSNIFF_LOG_TIMESTAMP"
	EnvLogNoColor   = "NETSNIFF_LOG_NOCOLOR"
)

// Options controls the console logger.
type Options struct {
	Level     zerolog.Level
	Timestamp bool
	NoColor   bool
}

// DefaultOptions logs at info with timestamps and colour.
func DefaultOptions() Options {
	return Options{
		Level:     zerolog.InfoLevel,
		Timestamp: true,
	}
}

// ApplyEnv overrides opts from the NETSNIFF_LOG_* environment variables.
// Unset or unparsable values leave the option alone.
func ApplyEnv(opts *Options) {
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		opts.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogTimestamp)); ok {
		opts.Timestamp = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		opts.NoColor = v
	}
}

// New returns a human readable logger writing to w.
func New(w io.Writer, app string, opts Options) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    opts.NoColor,
	}
	if !opts.Timestamp {
		output.PartsExclude = []string{zerolog.TimestampFieldName}
	}
	ctx := zerolog.New(output).Level(opts.Level).With().Str("app", app)
	if opts.Timestamp {
		ctx = ctx.Timestamp()
	}
	return ctx.Logger()
}

// CapLevel lowers the minimum level of l to ceiling when it is set above it.
// Lines that must always be seen go through a capped logger so a quiet
// configuration cannot hide them.
func CapLevel(l zerolog.Logger, ceiling zerolog.Level) zerolog.Logger {
	if l.GetLevel() > ceiling {
		return l.Level(ceiling)
	}
	return l
}

// ParseLevel accepts the usual level names and a few aliases.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "disabled", "disable", "off", "none":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
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
