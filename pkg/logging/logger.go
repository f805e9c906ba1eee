// Package logging provides structured logging for curator using zerolog.
// Library packages log through the logger carried in the context so that
// callers decide verbosity and destination; the CLI configures the default
// logger from flags and environment.
//
// Example usage:
//
//	log := logging.Default()
//	log.Info().Str("entity_id", "band-7").Msg("Creating version")
//
//	ctx := logging.WithLogger(context.Background(), log)
//	ctx = logging.WithEntity(ctx, "band-7")
//	logging.FromContext(ctx).Debug().Msg("Checksum matched latest version")
package logging

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// defaultLogger is the global logger instance.
	defaultLogger zerolog.Logger

	// Nop logger for discarding output.
	Nop = zerolog.Nop()
)

func init() {
	// The CLI replaces this once flags are parsed; library users get the
	// environment's settings.
	defaultLogger = NewLoggerFromConfig(ConfigFromEnv())
}

// Default returns the default global logger.
func Default() *zerolog.Logger {
	return &defaultLogger
}

// SetDefault sets the default global logger.
func SetDefault(logger zerolog.Logger) {
	defaultLogger = logger
	log.Logger = logger
}

// Debug starts a new debug level log event.
func Debug() *zerolog.Event {
	return defaultLogger.Debug()
}

// Info starts a new info level log event.
func Info() *zerolog.Event {
	return defaultLogger.Info()
}

// Warn starts a new warning level log event.
func Warn() *zerolog.Event {
	return defaultLogger.Warn()
}

// Error starts a new error level log event.
func Error() *zerolog.Event {
	return defaultLogger.Error()
}

// isTerminal reports whether stderr is attached to a terminal.
func isTerminal() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
