// Package engine exposes the deliberation's public operations —
// submitIdea, joinDeliberation, enterVoting, castVote, postComment,
// upvoteComment, triggerStartVoting, forceClose — as a single façade
// composing the assigner, tally, cellprocessor, tiercontroller,
// uppollination, and phase packages over a domain.Store. This is the
// one entry point external transports (REST, WebSocket) call into.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fractalvote/deliberation/internal/application/assigner"
	"github.com/fractalvote/deliberation/internal/application/cellprocessor"
	"github.com/fractalvote/deliberation/internal/application/phase"
	"github.com/fractalvote/deliberation/internal/application/tally"
	"github.com/fractalvote/deliberation/internal/application/tiercontroller"
	"github.com/fractalvote/deliberation/internal/application/uppollination"
	"github.com/fractalvote/deliberation/internal/domain"
	engerrors "github.com/fractalvote/deliberation/internal/domain/errors"
)

// Notifier mirrors scheduler.Notifier; Engine emits the same terminal
// events from vote-triggered completions, not just scheduled ones.
type Notifier interface {
	NotifyCellCompleted(ctx context.Context, deliberationID, cellID uuid.UUID, result *cellprocessor.Result)
	NotifyTierAdvanced(ctx context.Context, deliberationID uuid.UUID, tier int)
	NotifyChampionDeclared(ctx context.Context, deliberationID, ideaID uuid.UUID)
	NotifyPhaseChanged(ctx context.Context, deliberationID uuid.UUID, newPhase domain.Phase)
	NotifyChallengeRoundStarted(ctx context.Context, deliberationID uuid.UUID, round int)
}

// Engine is the public entry point for every deliberation operation.
type Engine struct {
	store              domain.Store
	assigner           *assigner.Assigner
	processor          *cellprocessor.Processor
	tiers              *tiercontroller.Controller
	phase              *phase.Machine
	pollinator         *uppollination.Engine
	upPollinationRatio float64
	notifier           Notifier
}

// New wires an Engine. upPollinationRatio configures the up-pollination
// threshold fraction; pass 0 to use the package default (0.6).
func New(store domain.Store, a *assigner.Assigner, upPollinationRatio float64, notifier Notifier) *Engine {
	return &Engine{
		store:              store,
		assigner:           a,
		processor:          cellprocessor.New(store),
		tiers:              tiercontroller.New(store, a),
		phase:              phase.New(store, a),
		pollinator:         uppollination.New(store),
		upPollinationRatio: upPollinationRatio,
		notifier:           notifier,
	}
}

// SubmitIdea records a new idea and returns its ID. Ideas submitted
// after SUBMISSION are tagged isNew so the rolling-mode challenge round
// can find them as challengers.
func (e *Engine) SubmitIdea(ctx context.Context, deliberationID, authorID uuid.UUID, text string) (uuid.UUID, error) {
	del, err := e.store.GetDeliberation(ctx, deliberationID)
	if err != nil {
		return uuid.UUID{}, err
	}
	switch del.Phase() {
	case domain.PhaseSubmission, domain.PhaseVoting, domain.PhaseAccumulating:
	default:
		return uuid.UUID{}, engerrors.PreconditionFailed(engerrors.CodeWrongPhase, "ideas cannot be submitted in this phase")
	}

	isNew := del.Phase() != domain.PhaseSubmission
	now := time.Now()
	idea := domain.NewIdea(uuid.New(), deliberationID, authorID, text, isNew, now)
	if err := e.store.InsertIdea(ctx, idea); err != nil {
		return uuid.UUID{}, err
	}
	return idea.ID(), nil
}

// JoinDeliberation records idempotent membership in a deliberation.
func (e *Engine) JoinDeliberation(ctx context.Context, deliberationID, userID uuid.UUID) error {
	_, err := e.store.JoinDeliberation(ctx, deliberationID, userID, time.Now())
	return err
}

// EnterVotingResult is the {cellId, ideas[]} shape returned by enterVoting.
type EnterVotingResult struct {
	Cell  *domain.Cell
	Ideas []*domain.Idea
}

// EnterVoting places a voter into their voting cell: the FCFS path
// assigns/creates an open tier-T cell; the BATCH path looks up the
// voter's pre-assigned cell. Returns nil, nil if the voter has no cell
// yet in BATCH mode (they must wait for tier-1 formation).
func (e *Engine) EnterVoting(ctx context.Context, deliberationID, userID uuid.UUID) (*EnterVotingResult, error) {
	del, err := e.store.GetDeliberation(ctx, deliberationID)
	if err != nil {
		return nil, err
	}
	if del.Phase() != domain.PhaseVoting {
		return nil, engerrors.PreconditionFailed(engerrors.CodeWrongPhase, "deliberation is not in VOTING")
	}

	var cell *domain.Cell
	if del.ContinuousFlow() {
		cell, err = e.assigner.EnterVoting(ctx, del, userID, del.CurrentTier(), time.Now())
		if err != nil {
			return nil, err
		}
	} else {
		cells, err := e.store.ListOpenCellsByTier(ctx, deliberationID, del.CurrentTier())
		if err != nil {
			return nil, err
		}
		for _, c := range cells {
			if c.HasParticipant(userID) {
				cell = c
				break
			}
		}
		if cell == nil {
			return nil, nil
		}
	}

	ideas := make([]*domain.Idea, 0, len(cell.IdeaIDs()))
	for _, id := range cell.IdeaIDs() {
		idea, err := e.store.GetIdea(ctx, id)
		if err != nil {
			return nil, err
		}
		ideas = append(ideas, idea)
	}
	return &EnterVotingResult{Cell: cell, Ideas: ideas}, nil
}

// CastVote normalizes allocations to the cell's XP budget, writes vote
// rows, and — once every participant has voted — atomically processes
// the cell and cascades tier/champion checks.
func (e *Engine) CastVote(ctx context.Context, cellID, userID uuid.UUID, allocations []domain.Allocation) error {
	cell, err := e.store.GetCell(ctx, cellID)
	if err != nil {
		return err
	}
	if cell.Status() != domain.CellStatusVoting {
		return engerrors.PreconditionFailed(engerrors.CodeCellCompleted, "cell is not accepting votes")
	}
	if !cell.HasParticipant(userID) {
		return engerrors.PreconditionFailed(engerrors.CodeNotAParticipant, "user is not a participant in this cell")
	}
	already, err := e.store.HasVoted(ctx, cellID, userID)
	if err != nil {
		return err
	}
	if already {
		return engerrors.Conflict(engerrors.CodeAlreadyVoted, "user already voted in this cell")
	}

	del, err := e.store.GetDeliberation(ctx, cell.DeliberationID())
	if err != nil {
		return err
	}

	raw := make(map[uuid.UUID]int, len(allocations))
	for _, alloc := range allocations {
		if !cell.HasIdea(alloc.IdeaID) {
			return engerrors.PreconditionFailed(engerrors.CodeIdeaNotInCell, "allocation targets an idea outside this cell")
		}
		raw[alloc.IdeaID] += alloc.XP
	}
	normalized := tally.Normalize(raw, del.XPBudget())

	now := time.Now()
	votes := make([]*domain.Vote, 0, len(normalized))
	for ideaID, xp := range normalized {
		votes = append(votes, &domain.Vote{ID: uuid.New(), CellID: cellID, UserID: userID, IdeaID: ideaID, XPPoints: xp, CreatedAt: now})
	}
	if err := e.store.InsertVotes(ctx, votes); err != nil {
		return err
	}

	voters, err := e.store.CountDistinctVoters(ctx, cellID)
	if err != nil {
		return err
	}
	if voters < len(cell.ParticipantIDs()) {
		return nil // not everyone has voted yet
	}

	return e.completeCell(ctx, del, cellID, now)
}

// completeCell processes a fully-voted (or scheduler-timed-out) cell and
// cascades tier advancement / champion declaration, firing notifications
// exactly as the Scheduler does for deadline-driven completions.
func (e *Engine) completeCell(ctx context.Context, del *domain.Deliberation, cellID uuid.UUID, now time.Time) error {
	result, ok, err := e.processor.ProcessCellResults(ctx, cellID, now)
	if err != nil {
		return err
	}
	if !ok {
		return nil // already processed by a concurrent caller or the scheduler
	}
	if e.notifier != nil {
		e.notifier.NotifyCellCompleted(ctx, del.ID(), cellID, result)
	}

	if err := e.tiers.CheckTierCompletion(ctx, del, result.Tier, now); err != nil {
		return err
	}
	if e.notifier != nil {
		if del.Phase() == domain.PhaseCompleted && del.ChampionID() != nil {
			e.notifier.NotifyChampionDeclared(ctx, del.ID(), *del.ChampionID())
		} else if del.CurrentTier() > result.Tier {
			e.notifier.NotifyTierAdvanced(ctx, del.ID(), del.CurrentTier())
		}
	}
	return nil
}

// PostComment records a remark within a cell and returns its ID.
func (e *Engine) PostComment(ctx context.Context, cellID, userID uuid.UUID, text string, ideaID, replyToID *uuid.UUID) (uuid.UUID, error) {
	cell, err := e.store.GetCell(ctx, cellID)
	if err != nil {
		return uuid.UUID{}, err
	}
	if !cell.HasParticipant(userID) {
		return uuid.UUID{}, engerrors.PreconditionFailed(engerrors.CodeNotAParticipant, "user is not a participant in this cell")
	}
	comment := domain.NewComment(uuid.New(), cellID, userID, text, ideaID, replyToID, cell.Tier(), time.Now())
	if err := e.store.InsertComment(ctx, comment); err != nil {
		return uuid.UUID{}, err
	}
	return comment.ID(), nil
}

// UpvoteComment is idempotent via the unique (comment, user) constraint;
// crossing the up-pollination threshold spreads the comment to sibling
// cells.
func (e *Engine) UpvoteComment(ctx context.Context, commentID, userID uuid.UUID) error {
	comment, err := e.store.GetComment(ctx, commentID)
	if err != nil {
		return err
	}
	cell, err := e.store.GetCell(ctx, comment.CellID())
	if err != nil {
		return err
	}
	threshold := uppollination.Threshold(len(cell.ParticipantIDs()), e.upPollinationRatio)
	return e.pollinator.Upvote(ctx, commentID, userID, cell.Tier(), threshold, time.Now())
}

// TriggerStartVoting starts voting manually; creator-only.
func (e *Engine) TriggerStartVoting(ctx context.Context, deliberationID, callerID uuid.UUID) error {
	del, err := e.store.GetDeliberation(ctx, deliberationID)
	if err != nil {
		return err
	}
	if !del.IsCreator(callerID) {
		return engerrors.PreconditionFailed(engerrors.CodeNotCreator, "only the creator may start voting manually")
	}
	if err := e.phase.StartVoting(ctx, del, time.Now()); err != nil {
		return err
	}
	if e.notifier != nil {
		e.notifier.NotifyPhaseChanged(ctx, deliberationID, domain.PhaseVoting)
	}
	return nil
}

// ForceClose is creator-only; closes every open cell at the current tier
// (by force-timing them out) and lets tier advancement run its course.
func (e *Engine) ForceClose(ctx context.Context, deliberationID, callerID uuid.UUID) error {
	del, err := e.store.GetDeliberation(ctx, deliberationID)
	if err != nil {
		return err
	}
	if !del.IsCreator(callerID) {
		return engerrors.PreconditionFailed(engerrors.CodeNotCreator, "only the creator may force-close a deliberation")
	}
	cells, err := e.store.ListOpenCellsByTier(ctx, deliberationID, del.CurrentTier())
	if err != nil {
		return err
	}
	now := time.Now()
	for _, cell := range cells {
		if err := e.completeCell(ctx, del, cell.ID(), now); err != nil {
			return err
		}
	}
	return nil
}
