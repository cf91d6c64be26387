package deliberation

import (
	"github.com/rs/zerolog"

	"github.com/fractalvote/deliberation/internal/infrastructure/logging"
)

// InitLogging bootstraps the global zerolog logger. pretty selects a
// human-readable console writer over plain JSON.
func InitLogging(levelName string, pretty bool) {
	logging.Init(levelName, pretty)
}

// WithDeliberation returns a sub-logger carrying the deliberation_id field.
func WithDeliberation(deliberationID string) zerolog.Logger {
	return logging.WithDeliberation(deliberationID)
}

// WithCell returns a sub-logger carrying deliberation_id, cell_id, and
// tier fields.
func WithCell(deliberationID, cellID string, tier int) zerolog.Logger {
	return logging.WithCell(deliberationID, cellID, tier)
}
