// Package deliberation is the public facade over the fractal
// deliberation engine: a root package re-exporting the domain's value
// types and the application-layer Engine so callers never need to
// import internal/domain directly.
package deliberation

import (
	"github.com/google/uuid"

	"github.com/fractalvote/deliberation/internal/application/cellprocessor"
	"github.com/fractalvote/deliberation/internal/application/engine"
	"github.com/fractalvote/deliberation/internal/domain"
)

// Phase re-exports domain.Phase and its constants.
type Phase = domain.Phase

const (
	PhaseSubmission   = domain.PhaseSubmission
	PhaseVoting       = domain.PhaseVoting
	PhaseAccumulating = domain.PhaseAccumulating
	PhaseCompleted    = domain.PhaseCompleted
)

// AllocationMode re-exports domain.AllocationMode.
type AllocationMode = domain.AllocationMode

const (
	AllocationModeBatch = domain.AllocationModeBatch
	AllocationModeFCFS  = domain.AllocationModeFCFS
)

// IdeaStatus re-exports domain.IdeaStatus.
type IdeaStatus = domain.IdeaStatus

const (
	IdeaStatusSubmitted  = domain.IdeaStatusSubmitted
	IdeaStatusInVoting   = domain.IdeaStatusInVoting
	IdeaStatusAdvancing  = domain.IdeaStatusAdvancing
	IdeaStatusWinner     = domain.IdeaStatusWinner
	IdeaStatusDefending  = domain.IdeaStatusDefending
	IdeaStatusEliminated = domain.IdeaStatusEliminated
	IdeaStatusPending    = domain.IdeaStatusPending
	IdeaStatusBenched    = domain.IdeaStatusBenched
	IdeaStatusRetired    = domain.IdeaStatusRetired
)

// CellStatus re-exports domain.CellStatus.
type CellStatus = domain.CellStatus

const (
	CellStatusVoting    = domain.CellStatusVoting
	CellStatusCompleted = domain.CellStatusCompleted
)

// Re-exported entity and value types so callers never need to import
// internal/domain directly.
type (
	Deliberation       = domain.Deliberation
	DeliberationParams = domain.DeliberationParams
	Idea               = domain.Idea
	Cell               = domain.Cell
	Comment            = domain.Comment
	Vote               = domain.Vote
	Allocation         = domain.Allocation
	Prediction         = domain.Prediction
	Store              = domain.Store
)

// Re-exported application-layer result/request shapes.
type (
	Engine            = engine.Engine
	EnterVotingResult = engine.EnterVotingResult
	CellResult        = cellprocessor.Result
	Notifier          = engine.Notifier
)

// NewDeliberation creates a new Deliberation in the SUBMISSION phase.
// Most callers should go through Engine.SubmitIdea et al. instead of
// constructing a Deliberation directly; this is exposed for store
// seeding and tests.
func NewDeliberation(p DeliberationParams) *Deliberation {
	return domain.NewDeliberation(p)
}

// NewID generates a fresh identifier for callers composing
// DeliberationParams / idea / cell rows outside the Engine.
func NewID() uuid.UUID {
	return uuid.New()
}
