// Package tiercontroller decides when a tier is complete, forms the
// next tier (batch) or spawns it on demand (continuous-flow), and
// crowns the champion at a final showdown.
package tiercontroller

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fractalvote/deliberation/internal/application/assigner"
	"github.com/fractalvote/deliberation/internal/domain"
	"github.com/fractalvote/deliberation/internal/infrastructure/tracing"
)

// minContinuousFlowAdvancers is the "≥ 2" floor used once a lower tier
// has fully closed but fewer than cellSize ideas remain.
const minContinuousFlowAdvancers = 2

// Controller advances tiers after cell completions.
type Controller struct {
	store    domain.Store
	assigner *assigner.Assigner
}

func New(store domain.Store, a *assigner.Assigner) *Controller {
	return &Controller{store: store, assigner: a}
}

// CheckTierCompletion decides whether tier has finished and, if so,
// advances the deliberation. Call after every cell completion in that tier.
func (c *Controller) CheckTierCompletion(ctx context.Context, del *domain.Deliberation, tier int, now time.Time) error {
	ctx, span := tracing.StartSpan(ctx, "tiercontroller.CheckTierCompletion")
	defer span.End()

	if del.AllocationMode() == domain.AllocationModeFCFS {
		return c.tryAdvanceContinuousFlowTier(ctx, del, tier, now)
	}
	return c.checkBatchTier(ctx, del, tier, now)
}

func (c *Controller) checkBatchTier(ctx context.Context, del *domain.Deliberation, tier int, now time.Time) error {
	votingCount, err := c.store.CountVotingCellsByTier(ctx, del.ID(), tier)
	if err != nil {
		return err
	}
	if votingCount > 0 {
		return nil // not every cell at this tier has completed yet
	}

	advancing, err := c.store.ListIdeasByStatusAndTier(ctx, del.ID(), domain.IdeaStatusAdvancing, tier)
	if err != nil {
		return err
	}

	if len(advancing) == 1 {
		return c.crownChampion(ctx, del, advancing[0].ID(), now)
	}
	if len(advancing) == 0 {
		// Every cell at this tier timed out with votes cast and no
		// survivors is not a reachable state under the tie rule, but
		// guard against it rather than advancing a phantom tier.
		log.Warn().Str("deliberation_id", del.ID().String()).Int("tier", tier).Msg("tier closed with zero advancing ideas")
		return nil
	}

	ok, err := c.store.TryAdvanceTier(ctx, del.ID(), tier, tier+1, now)
	if err != nil {
		return err
	}
	if !ok {
		return nil // another worker already advanced this tier
	}
	if err := del.AdvanceTier(tier+1, now); err != nil {
		return err
	}

	log.Info().Str("deliberation_id", del.ID().String()).Int("from_tier", tier).Int("to_tier", tier+1).Int("advancing", len(advancing)).Msg("tier advanced")
	return c.assigner.BatchFormNextTier(ctx, del, tier, now)
}

// tryAdvanceContinuousFlowTier handles the FCFS branch of tier
// completion: open the next tier once enough advancing ideas have
// queued up, or crown the champion once a single idea remains and every
// lower-tier cell is closed.
func (c *Controller) tryAdvanceContinuousFlowTier(ctx context.Context, del *domain.Deliberation, tier int, now time.Time) error {
	advancing, err := c.store.ListIdeasByStatusAndTier(ctx, del.ID(), domain.IdeaStatusAdvancing, tier)
	if err != nil {
		return err
	}
	votingCount, err := c.store.CountVotingCellsByTier(ctx, del.ID(), tier)
	if err != nil {
		return err
	}
	lowerTierClosed := votingCount == 0

	if len(advancing) == 1 && lowerTierClosed {
		return c.crownChampion(ctx, del, advancing[0].ID(), now)
	}

	threshold := del.CellSize()
	if lowerTierClosed && len(advancing) < threshold {
		threshold = minContinuousFlowAdvancers
	}
	if len(advancing) < threshold {
		return nil // not enough queued up yet at this tier
	}

	nextTier := tier + 1
	if nextTier > del.CurrentTier() {
		ok, err := c.store.TryAdvanceTier(ctx, del.ID(), del.CurrentTier(), nextTier, now)
		if err != nil {
			return err
		}
		if ok {
			if err := del.AdvanceTier(nextTier, now); err != nil {
				return err
			}
			log.Info().Str("deliberation_id", del.ID().String()).Int("to_tier", nextTier).Msg("continuous-flow tier opened")
		}
	}
	return nil
}

// crownChampion conditionally declares ideaID the champion and
// transitions the deliberation to COMPLETED or ACCUMULATING.
func (c *Controller) crownChampion(ctx context.Context, del *domain.Deliberation, ideaID uuid.UUID, now time.Time) error {
	var accumulationEndsAt *time.Time
	if del.AccumulationEnabled() && del.AccumulationTimeoutMs() != nil {
		t := now.Add(time.Duration(*del.AccumulationTimeoutMs()) * time.Millisecond)
		accumulationEndsAt = &t
	}

	ok, err := c.store.TryDeclareChampion(ctx, del.ID(), ideaID, now, accumulationEndsAt)
	if err != nil {
		return err
	}
	if !ok {
		return nil // another worker already crowned a champion
	}
	if err := del.DeclareChampion(ideaID, now, accumulationEndsAt); err != nil {
		return err
	}
	if err := c.store.SetIdeaChampion(ctx, ideaID, true); err != nil {
		return err
	}
	status := domain.IdeaStatusWinner
	if del.AccumulationEnabled() {
		status = domain.IdeaStatusDefending
	}
	if err := c.store.UpdateIdeaOutcome(ctx, ideaID, status, del.CurrentTier(), 0); err != nil {
		return err
	}

	log.Info().Str("deliberation_id", del.ID().String()).Str("idea_id", ideaID.String()).Bool("rolling", del.AccumulationEnabled()).Msg("champion declared")
	return nil
}
