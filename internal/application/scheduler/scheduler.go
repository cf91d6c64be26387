// Package scheduler runs the single process-wide background loop that
// advances deliberations and cells on wall-clock deadlines. It is the
// only component that reasons about time; every action it
// takes is an idempotent, store-conditional operation, so running it on
// several workers at once never duplicates an effect.
package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog/log"

	"github.com/fractalvote/deliberation/internal/application/cellprocessor"
	"github.com/fractalvote/deliberation/internal/application/phase"
	"github.com/fractalvote/deliberation/internal/application/tiercontroller"
	"github.com/fractalvote/deliberation/internal/domain"
	engerrors "github.com/fractalvote/deliberation/internal/domain/errors"
)

// DefaultInterval is the Scheduler's tick cadence absent configuration:
// tens of seconds.
const DefaultInterval = 15 * time.Second

// maxTransientRetries bounds the exponential backoff applied to
// Transient store errors.
const maxTransientRetries = 3

// cellDeadlineScanLimit caps how many overdue cells a single tick
// processes, so one slow tick cannot starve the rest of the loop.
const cellDeadlineScanLimit = 500

// Notifier receives terminal events for delivery to spectators/
// participants. Implementations live in internal/infrastructure/notify.
type Notifier interface {
	NotifyCellCompleted(ctx context.Context, deliberationID, cellID uuid.UUID, result *cellprocessor.Result)
	NotifyTierAdvanced(ctx context.Context, deliberationID uuid.UUID, tier int)
	NotifyChampionDeclared(ctx context.Context, deliberationID, ideaID uuid.UUID)
	NotifyPhaseChanged(ctx context.Context, deliberationID uuid.UUID, newPhase domain.Phase)
	NotifyChallengeRoundStarted(ctx context.Context, deliberationID uuid.UUID, round int)
}

// Scheduler is the process-wide timer loop that drives deliberations
// forward on wall-clock deadlines.
type Scheduler struct {
	store     domain.Store
	processor *cellprocessor.Processor
	tiers     *tiercontroller.Controller
	phase     *phase.Machine
	notifier  Notifier
	interval  time.Duration

	// inFlight deduplicates same-process ticks per deliberation; it is
	// never the source of truth for cross-worker coordination — only
	// store-conditional updates are that.
	inFlight *xsync.MapOf[uuid.UUID, struct{}]
}

func New(store domain.Store, processor *cellprocessor.Processor, tiers *tiercontroller.Controller, ph *phase.Machine, notifier Notifier, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		store:     store,
		processor: processor,
		tiers:     tiers,
		phase:     ph,
		notifier:  notifier,
		interval:  interval,
		inFlight:  xsync.NewMapOf[uuid.UUID, struct{}](),
	}
}

// Run blocks, ticking every interval until ctx is cancelled. Errors from
// a single tick are logged, never returned — a failing tick must not
// abort the loop.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.tick(ctx, now)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, now time.Time) {
	if err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.evaluateSubmissionTriggers(ctx, now)
	}); err != nil {
		log.Error().Err(err).Msg("scheduler: submission trigger scan failed")
	}

	if err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.closeOverdueCells(ctx, now)
	}); err != nil {
		log.Error().Err(err).Msg("scheduler: overdue cell scan failed")
	}

	if err := s.withRetry(ctx, func(ctx context.Context) error {
		return s.fireChallengeRounds(ctx, now)
	}); err != nil {
		log.Error().Err(err).Msg("scheduler: challenge round scan failed")
	}
}

func (s *Scheduler) evaluateSubmissionTriggers(ctx context.Context, now time.Time) error {
	dels, err := s.store.ListDeliberationsByPhase(ctx, domain.PhaseSubmission)
	if err != nil {
		return err
	}
	for _, del := range dels {
		if _, loaded := s.inFlight.LoadOrStore(del.ID(), struct{}{}); loaded {
			continue
		}
		err := s.phase.EvaluateSubmissionTriggers(ctx, del, now)
		s.inFlight.Delete(del.ID())
		if err != nil {
			log.Error().Err(err).Str("deliberation_id", del.ID().String()).Msg("submission trigger failed")
			continue
		}
		if del.Phase() == domain.PhaseVoting {
			s.notifier.NotifyPhaseChanged(ctx, del.ID(), domain.PhaseVoting)
		}
	}
	return nil
}

func (s *Scheduler) closeOverdueCells(ctx context.Context, now time.Time) error {
	cells, err := s.store.ListCellsPastDeadline(ctx, now, cellDeadlineScanLimit)
	if err != nil {
		return err
	}
	affectedTiers := make(map[uuid.UUID]map[int]bool)

	for _, cell := range cells {
		result, ok, err := s.processor.ProcessCellResults(ctx, cell.ID(), now)
		if err != nil {
			log.Error().Err(err).Str("cell_id", cell.ID().String()).Msg("force-timeout cell processing failed")
			continue
		}
		if !ok {
			continue // already completed by a vote-triggered call
		}
		s.notifier.NotifyCellCompleted(ctx, cell.DeliberationID(), cell.ID(), result)

		if affectedTiers[cell.DeliberationID()] == nil {
			affectedTiers[cell.DeliberationID()] = make(map[int]bool)
		}
		affectedTiers[cell.DeliberationID()][cell.Tier()] = true
	}

	for delID, tiers := range affectedTiers {
		del, err := s.store.GetDeliberation(ctx, delID)
		if err != nil {
			log.Error().Err(err).Str("deliberation_id", delID.String()).Msg("reload for tier check failed")
			continue
		}
		for tier := range tiers {
			if err := s.tiers.CheckTierCompletion(ctx, del, tier, now); err != nil {
				log.Error().Err(err).Str("deliberation_id", delID.String()).Int("tier", tier).Msg("tier completion check failed")
				continue
			}
			if del.Phase() == domain.PhaseCompleted && del.ChampionID() != nil {
				s.notifier.NotifyChampionDeclared(ctx, delID, *del.ChampionID())
			} else if del.CurrentTier() > tier {
				s.notifier.NotifyTierAdvanced(ctx, delID, del.CurrentTier())
			}
		}
	}
	return nil
}

func (s *Scheduler) fireChallengeRounds(ctx context.Context, now time.Time) error {
	dels, err := s.store.ListDeliberationsByPhase(ctx, domain.PhaseAccumulating)
	if err != nil {
		return err
	}
	for _, del := range dels {
		if del.AccumulationEndsAt() == nil || now.Before(*del.AccumulationEndsAt()) {
			continue
		}
		challengers, err := s.store.ListIdeasByStatus(ctx, del.ID(), domain.IdeaStatusPending)
		if err != nil {
			log.Error().Err(err).Str("deliberation_id", del.ID().String()).Msg("challenger scan failed")
			continue
		}
		if len(challengers) == 0 {
			continue
		}
		if err := s.phase.StartChallengeRound(ctx, del, now); err != nil {
			log.Error().Err(err).Str("deliberation_id", del.ID().String()).Msg("challenge round start failed")
			continue
		}
		s.notifier.NotifyChallengeRoundStarted(ctx, del.ID(), del.ChallengeRound())
	}
	return nil
}

// withRetry retries Transient store errors with exponential backoff: one
// first attempt plus up to maxTransientRetries retries. Conflict errors are never retried —
// they mean the work is already done.
func (s *Scheduler) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	backoff := 200 * time.Millisecond
	for attempt := 0; attempt <= maxTransientRetries; attempt++ {
		err = fn(ctx)
		if err == nil || !engerrors.IsTransient(err) {
			return err
		}
		if attempt == maxTransientRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}
