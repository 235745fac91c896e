package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Log is the global logger instance
var Log zerolog.Logger

func init() {
	Log = newLogger(os.Stdout, defaultFormat())
}

// defaultFormat is JSON in production and pretty console output otherwise.
func defaultFormat() string {
	if os.Getenv("APP_ENV") == "production" {
		return "json"
	}
	return "console"
}

func newLogger(w io.Writer, format string) zerolog.Logger {
	l := zerolog.New(w).
		With().
		Timestamp().
		Logger()

	if format != "json" {
		l = l.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	return l
}

// Configure rebuilds the global logger with the given level and format.
// An empty format keeps the APP_ENV based default; an unknown level means info.
func Configure(level, format string) {
	if format == "" {
		format = defaultFormat()
	}
	Log = newLogger(os.Stdout, format).Level(parseLevel(level))
}

func parseLevel(level string) zerolog.Level {
	if level == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// Component returns a child of the global logger tagged with component=name.
func Component(name string) zerolog.Logger {
	return Log.With().Str("component", name).Logger()
}

// GetLogger returns the global logger instance
func GetLogger() zerolog.Logger {
	return Log
}
