package domain

import (
	"time"

	"github.com/google/uuid"
)

// Prediction is a spectator's pick of the eventual winner at a given
// tier, unique per (userID, deliberationID, tierPredictedAt,
// predictedIdeaID).
type Prediction struct {
	UserID           uuid.UUID
	DeliberationID   uuid.UUID
	TierPredictedAt  int
	PredictedIdeaID  uuid.UUID
	WonImmediate     *bool
	IdeaBecameChampion *bool
	CreatedAt        time.Time
}

// ResolveImmediate sets WonImmediate once the targeted cell completes.
func (p *Prediction) ResolveImmediate(won bool) {
	p.WonImmediate = &won
}

// ResolveFinal sets IdeaBecameChampion once the deliberation crowns a
// champion.
func (p *Prediction) ResolveFinal(becameChampion bool) {
	p.IdeaBecameChampion = &becameChampion
}
