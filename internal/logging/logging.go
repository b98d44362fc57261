// Package logging configures zerolog for the CLI.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the root logger. Verbose enables debug output; everything goes
// to stderr so manifests on stdout stay machine-readable.
func New(verbose bool) zerolog.Logger {
	return NewWithWriter(verbose, zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})
}

// NewWithWriter is New with the output swapped, for tests and log capture.
func NewWithWriter(verbose bool, w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// WithComponent tags a child logger with the subsystem name.
func WithComponent(logger zerolog.Logger, component string) zerolog.Logger {
	return logger.With().Str("component", component).Logger()
}
