// Package log provides the process-wide structured logger shared by the
// controller and agent binaries.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance, configured once via Init.
var Logger zerolog.Logger

// Level is a logging verbosity level.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// WithComponent returns a child logger tagged with the owning subsystem.
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithHost returns a child logger tagged with a host id and name.
func WithHost(hostID, hostName string) zerolog.Logger {
	return Logger.With().Str("host_id", hostID).Str("host_name", hostName).Logger()
}

// WithGroup returns a child logger tagged with a host and group name.
func WithGroup(hostID, group string) zerolog.Logger {
	return Logger.With().Str("host_id", hostID).Str("group", group).Logger()
}

// WithRun returns a child logger tagged with a run id.
func WithRun(runID string) zerolog.Logger {
	return Logger.With().Str("run_id", runID).Logger()
}

func init() {
	// Sane default so packages that log before Init (unit tests, early
	// CLI flag errors) don't panic on a zero-value Logger.
	Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}
