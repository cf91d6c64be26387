package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the persistence contract required by the engine. Every
// mutation that must be coordinated across
// concurrent workers goes through one of the Try* conditional methods or
// Transact; nothing here assumes in-process locking.
//
// Implementations translate storage failures into the engine's error
// taxonomy (internal/domain/errors): Conflict on constraint violation,
// NotFound on missing row, Transient on infrastructure failure, Fatal on
// misconfiguration.
type Store interface {
	DeliberationStore
	IdeaStore
	CellStore
	VoteStore
	CommentStore
	PredictionStore

	// Transact runs fn inside a single database transaction. All store
	// methods called with the context fn receives participate in that
	// transaction.
	Transact(ctx context.Context, fn func(ctx context.Context) error) error

	Ping(ctx context.Context) error
	Close() error
}

// DeliberationStore persists Deliberation aggregates.
type DeliberationStore interface {
	SaveDeliberation(ctx context.Context, d *Deliberation) error
	GetDeliberation(ctx context.Context, id uuid.UUID) (*Deliberation, error)
	ListDeliberationsByPhase(ctx context.Context, phase Phase) ([]*Deliberation, error)

	// TryStartVoting is the conditional update backing SUBMISSION -> VOTING:
	// it only applies when the deliberation is still in SUBMISSION. Returns
	// false ("Conflict") if another worker already won.
	TryStartVoting(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)

	// TryAdvanceTier is the conditional update backing tier advancement
	// under concurrent workers: it only applies when currentTier is still
	// expectedCurrentTier.
	TryAdvanceTier(ctx context.Context, id uuid.UUID, expectedCurrentTier, newTier int, now time.Time) (bool, error)

	// TryDeclareChampion conditionally crowns a champion and transitions
	// phase to COMPLETED or ACCUMULATING; applies only while championID is
	// still unset.
	TryDeclareChampion(ctx context.Context, id, ideaID uuid.UUID, now time.Time, accumulationEndsAt *time.Time) (bool, error)

	// TryStartChallengeRound is the conditional update backing
	// ACCUMULATING -> VOTING.
	TryStartChallengeRound(ctx context.Context, id uuid.UUID, expectedRound int, now time.Time) (bool, error)

	// TryReplaceChampion resolves a challenge round's final showdown.
	TryReplaceChampion(ctx context.Context, id, ideaID uuid.UUID, now time.Time) (bool, error)

	// JoinDeliberation idempotently records membership; true means this
	// call created the row.
	JoinDeliberation(ctx context.Context, deliberationID, userID uuid.UUID, now time.Time) (bool, error)
	ListMembers(ctx context.Context, deliberationID uuid.UUID) ([]uuid.UUID, error)
	CountMembers(ctx context.Context, deliberationID uuid.UUID) (int, error)
}

// IdeaStore persists Idea entities.
type IdeaStore interface {
	InsertIdea(ctx context.Context, idea *Idea) error
	GetIdea(ctx context.Context, id uuid.UUID) (*Idea, error)
	ListIdeasByStatus(ctx context.Context, deliberationID uuid.UUID, status IdeaStatus) ([]*Idea, error)
	ListIdeasByStatusAndTier(ctx context.Context, deliberationID uuid.UUID, status IdeaStatus, tier int) ([]*Idea, error)
	CountIdeas(ctx context.Context, deliberationID uuid.UUID) (int, error)

	// TryClaimIdea conditionally flips an idea's status as it is claimed
	// by its cell, gated on the idea still being in fromStatus.
	TryClaimIdea(ctx context.Context, id uuid.UUID, fromStatus, toStatus IdeaStatus, tier int) (bool, error)

	UpdateIdeaOutcome(ctx context.Context, id uuid.UUID, status IdeaStatus, tier int, lossesDelta int) error
	AddIdeaVoteTotals(ctx context.Context, id uuid.UUID, xpDelta, voterDelta int) error
	SetIdeaChampion(ctx context.Context, id uuid.UUID, isChampion bool) error
	SetIdeaDefending(ctx context.Context, id uuid.UUID) error
	BenchIdea(ctx context.Context, id uuid.UUID) error
}

// CellStore persists Cell aggregates and their idea/participant sets.
type CellStore interface {
	// CreateCell persists a new cell with its idea and participant sets in
	// one transaction. It does not change the ideas' status; moving them to
	// IN_VOTING is a separate call made by the caller afterwards.
	CreateCell(ctx context.Context, cell *Cell) error
	GetCell(ctx context.Context, id uuid.UUID) (*Cell, error)
	ListCellsByTier(ctx context.Context, deliberationID uuid.UUID, tier int) ([]*Cell, error)
	ListOpenCellsByTier(ctx context.Context, deliberationID uuid.UUID, tier int) ([]*Cell, error)
	CountVotingCellsByTier(ctx context.Context, deliberationID uuid.UUID, tier int) (int, error)
	NextBatchIndex(ctx context.Context, deliberationID uuid.UUID, tier int) (int, error)

	// TryCompleteCell is the conditional update backing atomic cell
	// completion: status != COMPLETED -> COMPLETED. Returns false
	// ("Conflict") if another worker already completed it.
	TryCompleteCell(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)

	AddParticipant(ctx context.Context, cellID, userID uuid.UUID) error
	ListCellsWithIdea(ctx context.Context, deliberationID, ideaID uuid.UUID) ([]*Cell, error)

	// ListCellsPastDeadline returns VOTING cells whose votingDeadline has
	// elapsed, across all deliberations.
	ListCellsPastDeadline(ctx context.Context, now time.Time, limit int) ([]*Cell, error)
}

// VoteStore persists Votes.
type VoteStore interface {
	InsertVotes(ctx context.Context, votes []*Vote) error
	ListVotesByCell(ctx context.Context, cellID uuid.UUID) ([]*Vote, error)
	HasVoted(ctx context.Context, cellID, userID uuid.UUID) (bool, error)
	CountDistinctVoters(ctx context.Context, cellID uuid.UUID) (int, error)

	// SumXPByIdea aggregates XP per idea for a cell.
	SumXPByIdea(ctx context.Context, cellID uuid.UUID) (map[uuid.UUID]int, error)
}

// CommentStore persists Comments and CommentUpvotes.
type CommentStore interface {
	InsertComment(ctx context.Context, comment *Comment) error
	GetComment(ctx context.Context, id uuid.UUID) (*Comment, error)
	ListCommentsByCell(ctx context.Context, cellID uuid.UUID) ([]*Comment, error)
	ListTopCommentsByIdea(ctx context.Context, ideaID uuid.UUID, limit int) ([]*Comment, error)

	// TryInsertUpvote enforces the unique (commentID, userID) constraint;
	// false means the user already upvoted.
	TryInsertUpvote(ctx context.Context, commentID, userID uuid.UUID, now time.Time) (bool, error)

	// IncrementUpvoteCount atomically bumps upvoteCount and returns the new
	// count, so concurrent upvotes each see a distinct count. TrySpreadComment
	// bumps spreadCount and raises reachTier to currentTier if lower, on
	// every call; callers decide when a spread is due.
	IncrementUpvoteCount(ctx context.Context, commentID uuid.UUID) (newCount int, err error)
	TrySpreadComment(ctx context.Context, commentID uuid.UUID, currentTier int) (bool, error)
}

// PredictionStore persists spectator Predictions.
type PredictionStore interface {
	InsertPrediction(ctx context.Context, p *Prediction) error
	ListPredictionsForIdeasAtTier(ctx context.Context, deliberationID uuid.UUID, tier int, ideaIDs []uuid.UUID) ([]*Prediction, error)
	ResolvePredictionImmediate(ctx context.Context, userID, deliberationID uuid.UUID, tier int, ideaID uuid.UUID, won bool) error
	ListPredictionsForDeliberation(ctx context.Context, deliberationID uuid.UUID) ([]*Prediction, error)
	ResolvePredictionFinal(ctx context.Context, userID, deliberationID uuid.UUID, ideaID uuid.UUID, becameChampion bool) error
}
