package domain

import (
	"time"

	"github.com/google/uuid"
)

// Deliberation is the aggregate root for a single fractal tournament.
// It owns its Ideas, Cells, members, Comments, Votes, and Predictions.
type Deliberation struct {
	id             uuid.UUID
	creatorID      uuid.UUID
	question       string
	description    string
	organization   string
	phase          Phase
	currentTier    int
	cellSize       int
	xpBudget       int
	allocationMode AllocationMode
	continuousFlow bool
	accumulationEnabled bool

	submissionEndsAt      *time.Time
	votingTimeoutMs       int64
	secondVoteTimeoutMs   *int64
	accumulationTimeoutMs *int64
	currentTierStartedAt  *time.Time
	accumulationEndsAt    *time.Time

	ideaGoal        *int
	participantGoal *int

	championID     *uuid.UUID
	challengeRound int
	completedAt    *time.Time

	createdAt time.Time
	updatedAt time.Time
}

// DeliberationParams configures a new Deliberation via NewDeliberation.
type DeliberationParams struct {
	ID                    uuid.UUID
	CreatorID             uuid.UUID
	Question              string
	Description           string
	Organization          string
	CellSize              int
	XPBudget              int
	AllocationMode        AllocationMode
	ContinuousFlow        bool
	AccumulationEnabled   bool
	SubmissionEndsAt      *time.Time
	VotingTimeoutMs       int64
	SecondVoteTimeoutMs   *int64
	AccumulationTimeoutMs *int64
	IdeaGoal              *int
	ParticipantGoal       *int
}

// NewDeliberation creates a new Deliberation in the SUBMISSION phase.
func NewDeliberation(p DeliberationParams) *Deliberation {
	mode := p.AllocationMode
	if p.ContinuousFlow {
		mode = AllocationModeFCFS
	}
	if mode == "" {
		mode = AllocationModeBatch
	}
	cellSize := p.CellSize
	if cellSize < 2 {
		cellSize = 5
	}
	xpBudget := p.XPBudget
	if xpBudget <= 0 {
		xpBudget = cellSize * 2
	}
	now := time.Now()
	return &Deliberation{
		id:                    p.ID,
		creatorID:             p.CreatorID,
		question:              p.Question,
		description:           p.Description,
		organization:          p.Organization,
		phase:                 PhaseSubmission,
		currentTier:           0,
		cellSize:              cellSize,
		xpBudget:              xpBudget,
		allocationMode:        mode,
		continuousFlow:        p.ContinuousFlow || mode == AllocationModeFCFS,
		accumulationEnabled:   p.AccumulationEnabled,
		submissionEndsAt:      p.SubmissionEndsAt,
		votingTimeoutMs:       p.VotingTimeoutMs,
		secondVoteTimeoutMs:   p.SecondVoteTimeoutMs,
		accumulationTimeoutMs: p.AccumulationTimeoutMs,
		ideaGoal:              p.IdeaGoal,
		participantGoal:       p.ParticipantGoal,
		createdAt:             now,
		updatedAt:             now,
	}
}

// ReconstructDeliberation rebuilds a Deliberation from persisted fields.
func ReconstructDeliberation(
	id, creatorID uuid.UUID, question, description, organization string,
	phase Phase, currentTier, cellSize, xpBudget int,
	allocationMode AllocationMode, continuousFlow, accumulationEnabled bool,
	submissionEndsAt *time.Time, votingTimeoutMs int64,
	secondVoteTimeoutMs, accumulationTimeoutMs *int64,
	currentTierStartedAt, accumulationEndsAt *time.Time,
	ideaGoal, participantGoal *int,
	championID *uuid.UUID, challengeRound int, completedAt *time.Time,
	createdAt, updatedAt time.Time,
) *Deliberation {
	return &Deliberation{
		id: id, creatorID: creatorID, question: question, description: description, organization: organization,
		phase: phase, currentTier: currentTier, cellSize: cellSize, xpBudget: xpBudget,
		allocationMode: allocationMode, continuousFlow: continuousFlow, accumulationEnabled: accumulationEnabled,
		submissionEndsAt: submissionEndsAt, votingTimeoutMs: votingTimeoutMs,
		secondVoteTimeoutMs: secondVoteTimeoutMs, accumulationTimeoutMs: accumulationTimeoutMs,
		currentTierStartedAt: currentTierStartedAt, accumulationEndsAt: accumulationEndsAt,
		ideaGoal: ideaGoal, participantGoal: participantGoal,
		championID: championID, challengeRound: challengeRound, completedAt: completedAt,
		createdAt: createdAt, updatedAt: updatedAt,
	}
}

func (d *Deliberation) ID() uuid.UUID                  { return d.id }
func (d *Deliberation) CreatorID() uuid.UUID           { return d.creatorID }
func (d *Deliberation) Question() string               { return d.question }
func (d *Deliberation) Description() string             { return d.description }
func (d *Deliberation) Organization() string             { return d.organization }
func (d *Deliberation) Phase() Phase                    { return d.phase }
func (d *Deliberation) CurrentTier() int                { return d.currentTier }
func (d *Deliberation) CellSize() int                   { return d.cellSize }
func (d *Deliberation) XPBudget() int                    { return d.xpBudget }
func (d *Deliberation) AllocationMode() AllocationMode   { return d.allocationMode }
func (d *Deliberation) ContinuousFlow() bool             { return d.continuousFlow }
func (d *Deliberation) AccumulationEnabled() bool        { return d.accumulationEnabled }
func (d *Deliberation) SubmissionEndsAt() *time.Time     { return d.submissionEndsAt }
func (d *Deliberation) VotingTimeoutMs() int64           { return d.votingTimeoutMs }
func (d *Deliberation) SecondVoteTimeoutMs() *int64      { return d.secondVoteTimeoutMs }
func (d *Deliberation) AccumulationTimeoutMs() *int64    { return d.accumulationTimeoutMs }
func (d *Deliberation) CurrentTierStartedAt() *time.Time { return d.currentTierStartedAt }
func (d *Deliberation) AccumulationEndsAt() *time.Time   { return d.accumulationEndsAt }
func (d *Deliberation) IdeaGoal() *int                   { return d.ideaGoal }
func (d *Deliberation) ParticipantGoal() *int            { return d.participantGoal }
func (d *Deliberation) ChampionID() *uuid.UUID           { return d.championID }
func (d *Deliberation) ChallengeRound() int              { return d.challengeRound }
func (d *Deliberation) CompletedAt() *time.Time          { return d.completedAt }
func (d *Deliberation) CreatedAt() time.Time             { return d.createdAt }
func (d *Deliberation) UpdatedAt() time.Time             { return d.updatedAt }

// StartVoting transitions SUBMISSION -> VOTING, entering tier 1. Callers
// must gate this with a store-level conditional update keyed on the
// expected prior phase; this method only updates in-memory state once
// that update has already won.
func (d *Deliberation) StartVoting(now time.Time) error {
	if d.phase != PhaseSubmission {
		return errWrongPhase(d.phase, PhaseSubmission)
	}
	d.phase = PhaseVoting
	d.currentTier = 1
	d.currentTierStartedAt = &now
	d.updatedAt = now
	return nil
}

// AdvanceTier bumps currentTier; used when forming tier T+1 (batch) or
// opening a tier T+1 cell (FCFS). Tiers only ever move forward.
func (d *Deliberation) AdvanceTier(tier int, now time.Time) error {
	if tier <= d.currentTier {
		return errInvariant("tier must increase monotonically")
	}
	d.currentTier = tier
	d.currentTierStartedAt = &now
	d.updatedAt = now
	return nil
}

// DeclareChampion sets the champion and transitions to COMPLETED, or to
// ACCUMULATING if rolling mode is enabled.
func (d *Deliberation) DeclareChampion(ideaID uuid.UUID, now time.Time, accumulationEndsAt *time.Time) error {
	if d.phase != PhaseVoting {
		return errWrongPhase(d.phase, PhaseVoting)
	}
	d.championID = &ideaID
	d.updatedAt = now
	if d.accumulationEnabled {
		d.phase = PhaseAccumulating
		d.accumulationEndsAt = accumulationEndsAt
		return nil
	}
	d.phase = PhaseCompleted
	d.completedAt = &now
	return nil
}

// StartChallengeRound transitions ACCUMULATING -> VOTING, incrementing
// challengeRound and resetting to tier 1.
func (d *Deliberation) StartChallengeRound(now time.Time) error {
	if d.phase != PhaseAccumulating {
		return errWrongPhase(d.phase, PhaseAccumulating)
	}
	d.phase = PhaseVoting
	d.currentTier = 1
	d.currentTierStartedAt = &now
	d.challengeRound++
	d.accumulationEndsAt = nil
	d.updatedAt = now
	return nil
}

// ReplaceChampion is used at the end of a challenge round's final
// showdown: either the incumbent is reconfirmed or a challenger takes over.
func (d *Deliberation) ReplaceChampion(ideaID uuid.UUID, now time.Time) {
	d.championID = &ideaID
	d.updatedAt = now
}

// IsCreator reports whether userID created this deliberation, gating the
// creator-only operations triggerStartVoting/forceClose/start-challenge.
func (d *Deliberation) IsCreator(userID uuid.UUID) bool {
	return d.creatorID == userID
}

func errWrongPhase(got, want Phase) error {
	return newDomainErr("deliberation is in phase " + string(got) + ", expected " + string(want))
}

func errInvariant(msg string) error {
	return newDomainErr(msg)
}
