package domain

import (
	"time"

	"github.com/google/uuid"
)

// Cell is a small group of voters deliberating over a small group of
// ideas. It owns its CellIdea, CellParticipant, Vote, and Comment rows —
// deleting a cell cascades these.
type Cell struct {
	id             uuid.UUID
	deliberationID uuid.UUID
	tier           int
	batch          int
	status         CellStatus

	votingDeadline *time.Time
	completedAt    *time.Time

	ideaIDs        []uuid.UUID
	participantIDs []uuid.UUID
	authorIDs      map[uuid.UUID]bool // idea authors present in this cell

	// conflictOverrides counts author-conflict relaxations recorded during
	// assignment.
	conflictOverrides int

	createdAt time.Time
}

// NewCell creates a VOTING cell with the given idea and participant sets.
func NewCell(id, deliberationID uuid.UUID, tier, batch int, ideaIDs, participantIDs []uuid.UUID, authorIDs map[uuid.UUID]bool, votingDeadline time.Time, now time.Time) *Cell {
	return &Cell{
		id: id, deliberationID: deliberationID, tier: tier, batch: batch,
		status: CellStatusVoting, votingDeadline: &votingDeadline,
		ideaIDs: ideaIDs, participantIDs: participantIDs, authorIDs: authorIDs,
		createdAt: now,
	}
}

// ReconstructCell rebuilds a Cell from persisted fields.
func ReconstructCell(
	id, deliberationID uuid.UUID, tier, batch int, status CellStatus,
	votingDeadline, completedAt *time.Time,
	ideaIDs, participantIDs []uuid.UUID, conflictOverrides int, createdAt time.Time,
) *Cell {
	return &Cell{
		id: id, deliberationID: deliberationID, tier: tier, batch: batch, status: status,
		votingDeadline: votingDeadline, completedAt: completedAt,
		ideaIDs: ideaIDs, participantIDs: participantIDs,
		conflictOverrides: conflictOverrides, createdAt: createdAt,
	}
}

func (c *Cell) ID() uuid.UUID                { return c.id }
func (c *Cell) DeliberationID() uuid.UUID    { return c.deliberationID }
func (c *Cell) Tier() int                    { return c.tier }
func (c *Cell) Batch() int                   { return c.batch }
func (c *Cell) Status() CellStatus           { return c.status }
func (c *Cell) VotingDeadline() *time.Time   { return c.votingDeadline }
func (c *Cell) CompletedAt() *time.Time      { return c.completedAt }
func (c *Cell) IdeaIDs() []uuid.UUID         { return c.ideaIDs }
func (c *Cell) ParticipantIDs() []uuid.UUID  { return c.participantIDs }
func (c *Cell) ConflictOverrides() int       { return c.conflictOverrides }
func (c *Cell) CreatedAt() time.Time         { return c.createdAt }

// HasIdea reports whether ideaID is in this cell.
func (c *Cell) HasIdea(ideaID uuid.UUID) bool {
	for _, id := range c.ideaIDs {
		if id == ideaID {
			return true
		}
	}
	return false
}

// HasParticipant reports whether userID is assigned to this cell.
func (c *Cell) HasParticipant(userID uuid.UUID) bool {
	for _, id := range c.participantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsAuthorConflict reports whether userID authored an idea in this cell.
func (c *Cell) IsAuthorConflict(userID uuid.UUID) bool {
	return c.authorIDs[userID]
}

// HasSpareParticipantSlot reports whether the cell can accept one more
// participant under cellSize.
func (c *Cell) HasSpareParticipantSlot(cellSize int) bool {
	return len(c.participantIDs) < cellSize
}

// HasSpareIdeaSlot reports whether the cell can accept one more idea.
func (c *Cell) HasSpareIdeaSlot(cellSize int) bool {
	return len(c.ideaIDs) < cellSize
}

// AddParticipant assigns a voter to the cell (FCFS incremental assignment).
func (c *Cell) AddParticipant(userID uuid.UUID) {
	c.participantIDs = append(c.participantIDs, userID)
}

// RecordConflictOverride records a soft author-conflict violation.
func (c *Cell) RecordConflictOverride() {
	c.conflictOverrides++
}

// Complete marks the cell COMPLETED. Callers must gate this with a
// store-level conditional update (status != COMPLETED -> COMPLETED);
// this method only updates in-memory state once that update has won.
func (c *Cell) Complete(now time.Time) {
	c.status = CellStatusCompleted
	c.completedAt = &now
}
