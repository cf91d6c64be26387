// Package logging configures the process-wide zerolog logger used across
// every layer of the engine, with structured Str/Int/Msg fields rather
// than formatted strings.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger: level from levelName
// ("debug", "info", "warn", "error", ...), RFC3339 timestamps, and a
// human-readable console writer when pretty is true (local/dev use),
// structured JSON otherwise (production).
func Init(levelName string, pretty bool) {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(levelName)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var writer = os.Stdout
	if pretty {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: writer, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(writer).With().Timestamp().Logger()
}

// WithDeliberation returns a sub-logger with deliberation_id preattached,
// for call sites that log several times about the same deliberation.
func WithDeliberation(deliberationID string) zerolog.Logger {
	return log.With().Str("deliberation_id", deliberationID).Logger()
}

// WithCell returns a sub-logger with deliberation_id/cell_id/tier
// preattached.
func WithCell(deliberationID, cellID string, tier int) zerolog.Logger {
	return log.With().
		Str("deliberation_id", deliberationID).
		Str("cell_id", cellID).
		Int("tier", tier).
		Logger()
}
