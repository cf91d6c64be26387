// Package phase drives the deliberation through its SUBMISSION -> VOTING
// -> (COMPLETED | ACCUMULATING -> VOTING ...) state machine.
package phase

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fractalvote/deliberation/internal/application/assigner"
	"github.com/fractalvote/deliberation/internal/domain"
)

// Machine evaluates and fires phase transitions.
type Machine struct {
	store    domain.Store
	assigner *assigner.Assigner
	triggers *TriggerEvaluator
}

func New(store domain.Store, a *assigner.Assigner) *Machine {
	return &Machine{store: store, assigner: a, triggers: NewTriggerEvaluator()}
}

// EvaluateSubmissionTriggers checks (a) ideaGoal, (b) participantGoal,
// (c) submissionEndsAt elapsed — firing SUBMISSION -> VOTING if any
// holds. Manual triggers go through TriggerStartVoting directly.
func (m *Machine) EvaluateSubmissionTriggers(ctx context.Context, del *domain.Deliberation, now time.Time) error {
	if del.Phase() != domain.PhaseSubmission {
		return nil
	}

	ideaCount, err := m.store.CountIdeas(ctx, del.ID())
	if err != nil {
		return err
	}
	memberCount, err := m.store.CountMembers(ctx, del.ID())
	if err != nil {
		return err
	}

	fired, err := m.triggers.Evaluate(TriggerInput{
		IdeaCount:        ideaCount,
		IdeaGoal:         del.IdeaGoal(),
		MemberCount:      memberCount,
		ParticipantGoal:  del.ParticipantGoal(),
		SubmissionEndsAt: del.SubmissionEndsAt(),
		Now:              now,
	})
	if err != nil {
		return err
	}
	if !fired {
		return nil
	}
	return m.StartVoting(ctx, del, now)
}

// StartVoting fires the atomic SUBMISSION -> VOTING conditional update
// and, only for the winning caller, runs tier-1 assignment: concurrent
// triggers are coalesced so only the winning update runs assignment.
func (m *Machine) StartVoting(ctx context.Context, del *domain.Deliberation, now time.Time) error {
	ok, err := m.store.TryStartVoting(ctx, del.ID(), now)
	if err != nil {
		return err
	}
	if !ok {
		return nil // another caller already started voting
	}
	if err := del.StartVoting(now); err != nil {
		return err
	}

	log.Info().Str("deliberation_id", del.ID().String()).Msg("voting started")

	if del.ContinuousFlow() {
		return nil // FCFS forms cells lazily via assigner.EnterVoting
	}
	return m.assigner.BatchFormTierOne(ctx, del, now)
}

// StartChallengeRound fires ACCUMULATING -> VOTING: re-tags challengers
// IN_VOTING at tier 1, benches repeat losers, and resets currentTier to
// 1 for the new round.
func (m *Machine) StartChallengeRound(ctx context.Context, del *domain.Deliberation, now time.Time) error {
	ok, err := m.store.TryStartChallengeRound(ctx, del.ID(), del.ChallengeRound(), now)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := del.StartChallengeRound(now); err != nil {
		return err
	}

	pending, err := m.store.ListIdeasByStatus(ctx, del.ID(), domain.IdeaStatusPending)
	if err != nil {
		return err
	}
	for _, idea := range pending {
		if idea.Losses() >= 2 {
			if err := m.store.BenchIdea(ctx, idea.ID()); err != nil {
				return err
			}
			continue
		}
		if err := m.store.UpdateIdeaOutcome(ctx, idea.ID(), domain.IdeaStatusInVoting, 1, 0); err != nil {
			return err
		}
	}
	if err := m.store.SetIdeaDefending(ctx, *del.ChampionID()); err != nil {
		return err
	}

	log.Info().Str("deliberation_id", del.ID().String()).Int("challenge_round", del.ChallengeRound()).Msg("challenge round started")
	return m.assigner.BatchFormTierOne(ctx, del, now)
}
