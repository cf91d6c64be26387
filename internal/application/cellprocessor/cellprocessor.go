// Package cellprocessor implements atomic cell completion: closing a
// cell, tallying its votes, and updating idea outcomes.
package cellprocessor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fractalvote/deliberation/internal/application/tally"
	"github.com/fractalvote/deliberation/internal/domain"
	"github.com/fractalvote/deliberation/internal/infrastructure/tracing"
)

// Result holds the outcome of closing a cell: {winnerIds, loserIds} on
// success, or nil (via ok=false) when another worker already processed
// this cell.
type Result struct {
	CellID    uuid.UUID
	Tier      int
	WinnerIDs []uuid.UUID
	LoserIDs  []uuid.UUID
}

// Processor closes cells and tallies their votes.
type Processor struct {
	store domain.Store
}

func New(store domain.Store) *Processor {
	return &Processor{store: store}
}

// ProcessCellResults closes a cell, tallies its votes, and updates idea
// outcomes. ok is false when the conditional completion update affected
// zero rows — another actor already processed this cell — and callers
// should treat that as a no-op, not an error.
func (p *Processor) ProcessCellResults(ctx context.Context, cellID uuid.UUID, now time.Time) (result *Result, ok bool, err error) {
	ctx, span := tracing.StartSpan(ctx, "cellprocessor.ProcessCellResults")
	defer span.End()

	err = p.store.Transact(ctx, func(ctx context.Context) error {
		won, txErr := p.store.TryCompleteCell(ctx, cellID, now)
		if txErr != nil {
			return txErr
		}
		if !won {
			ok = false
			return nil
		}

		cell, txErr := p.store.GetCell(ctx, cellID)
		if txErr != nil {
			return txErr
		}
		xpByIdea, txErr := p.store.SumXPByIdea(ctx, cellID)
		if txErr != nil {
			return txErr
		}

		t := tally.Tally(cell.IdeaIDs(), xpByIdea)

		votersByIdea, txErr := distinctVotersByIdea(ctx, p.store, cellID)
		if txErr != nil {
			return txErr
		}

		for _, winnerID := range t.WinnerIDs {
			if txErr := p.store.UpdateIdeaOutcome(ctx, winnerID, domain.IdeaStatusAdvancing, cell.Tier(), 0); txErr != nil {
				return txErr
			}
			if txErr := p.store.AddIdeaVoteTotals(ctx, winnerID, xpByIdea[winnerID], votersByIdea[winnerID]); txErr != nil {
				return txErr
			}
		}
		for _, loserID := range t.LoserIDs {
			lossesDelta := 0
			if cell.Tier() == 1 {
				lossesDelta = 1
			}
			if txErr := p.store.UpdateIdeaOutcome(ctx, loserID, domain.IdeaStatusEliminated, cell.Tier(), lossesDelta); txErr != nil {
				return txErr
			}
			if txErr := p.store.AddIdeaVoteTotals(ctx, loserID, xpByIdea[loserID], votersByIdea[loserID]); txErr != nil {
				return txErr
			}
		}

		if txErr := p.resolvePredictions(ctx, cell, t); txErr != nil {
			return txErr
		}

		ok = true
		result = &Result{CellID: cellID, Tier: cell.Tier(), WinnerIDs: t.WinnerIDs, LoserIDs: t.LoserIDs}

		log.Info().
			Str("cell_id", cellID.String()).
			Int("tier", cell.Tier()).
			Int("winners", len(t.WinnerIDs)).
			Bool("no_votes", t.NoVotesCast).
			Msg("cell completed")
		return nil
	})
	if err != nil {
		tracing.RecordError(ctx, err)
	}
	return result, ok, err
}

// resolvePredictions sets wonImmediate for any spectator picks targeting
// this cell's ideas at this tier.
func (p *Processor) resolvePredictions(ctx context.Context, cell *domain.Cell, t tally.Result) error {
	predictions, err := p.store.ListPredictionsForIdeasAtTier(ctx, cell.DeliberationID(), cell.Tier(), cell.IdeaIDs())
	if err != nil {
		return err
	}
	won := make(map[uuid.UUID]bool, len(t.WinnerIDs))
	for _, id := range t.WinnerIDs {
		won[id] = true
	}
	for _, pred := range predictions {
		if err := p.store.ResolvePredictionImmediate(ctx, pred.UserID, cell.DeliberationID(), cell.Tier(), pred.PredictedIdeaID, won[pred.PredictedIdeaID]); err != nil {
			return err
		}
	}
	return nil
}

// distinctVotersByIdea counts, per idea, the voters in cellID who
// allocated any XP to it.
func distinctVotersByIdea(ctx context.Context, store domain.Store, cellID uuid.UUID) (map[uuid.UUID]int, error) {
	votes, err := store.ListVotesByCell(ctx, cellID)
	if err != nil {
		return nil, err
	}
	voters := make(map[uuid.UUID]map[uuid.UUID]bool)
	for _, v := range votes {
		if voters[v.IdeaID] == nil {
			voters[v.IdeaID] = make(map[uuid.UUID]bool)
		}
		voters[v.IdeaID][v.UserID] = true
	}
	counts := make(map[uuid.UUID]int, len(voters))
	for ideaID, set := range voters {
		counts[ideaID] = len(set)
	}
	return counts, nil
}
