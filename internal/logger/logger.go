package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is the process-wide root logger. Component loggers derive from it,
// so it must be initialized before any pool is constructed.
var Logger zerolog.Logger

// Initialize configures the root logger. logLevel is one of debug, info,
// warn or error; anything else falls back to info.
func Initialize(logLevel string) {
	zerolog.TimeFieldFormat = time.RFC3339

	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    false,
	}

	Logger = zerolog.New(consoleWriter).
		With().
		Timestamp().
		Caller().
		Logger()

	switch logLevel {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	// Route the zerolog global through the same writer.
	log.Logger = Logger
}

// GetForComponent returns a logger tagged with a component field for
// filtering.
func GetForComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// ForPool returns a component logger additionally tagged with the pool it
// serves. Pool-scoped components use this so every line carries the pool id.
func ForPool(component, poolID string) zerolog.Logger {
	return Logger.With().Str("component", component).Str("pool_id", poolID).Logger()
}
