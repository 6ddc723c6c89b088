package internal

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LogOptions controls the root logger
type LogOptions struct {
	Level     string
	Format    string
	Service   string
	Writer    io.Writer
	WithStack bool
}

// LogOptionsFromEnv reads LOG_LEVEL, LOG_FORMAT and LOG_SERVICE
func LogOptionsFromEnv() LogOptions {
	return LogOptions{
		Level:   os.Getenv("LOG_LEVEL"),
		Format:  os.Getenv("LOG_FORMAT"),
		Service: os.Getenv("LOG_SERVICE"),
	}
}

// NewLogger builds a zerolog logger. Unknown levels fall back to info and
// anything other than "json" renders through the console writer.
func NewLogger(opt LogOptions) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var w io.Writer = os.Stderr
	if opt.Writer != nil {
		w = opt.Writer
	}
	if strings.ToLower(strings.TrimSpace(opt.Format)) != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: opt.Writer != nil}
	}

	ctx := zerolog.New(w).Level(ParseLevel(opt.Level)).With().Timestamp()
	if opt.Service != "" {
		ctx = ctx.Str("service", opt.Service)
	}
	if opt.WithStack {
		ctx = ctx.Stack()
	}
	return ctx.Logger()
}

// NewDefaultLogger creates a logger based on the LOG_* environment variables
func NewDefaultLogger() zerolog.Logger {
	return NewLogger(LogOptionsFromEnv())
}

// ParseLevel maps the level names used in .env files to zerolog levels
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Component derives a sub-logger tagged with the component name
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
