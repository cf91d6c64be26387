package domain

import (
	"time"

	"github.com/google/uuid"
)

// Vote is a single (cell, voter, idea, xp) allocation row. A voter
// submits multiple rows per cell, one per idea they allocate XP to; the
// sum across a (cell, voter) pair must equal the cell's XP budget exactly.
type Vote struct {
	ID        uuid.UUID
	CellID    uuid.UUID
	UserID    uuid.UUID
	IdeaID    uuid.UUID
	XPPoints  int
	CreatedAt time.Time
}

// Allocation is a single (idea, xp) pair within a caller-submitted
// castVote request, before normalization.
type Allocation struct {
	IdeaID uuid.UUID
	XP     int
}
