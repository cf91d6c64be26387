// Package assigner partitions ideas and voters into cells under
// author-conflict and size constraints, in both batch and
// continuous-flow (FCFS) modes.
package assigner

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fractalvote/deliberation/internal/application/fingerprint"
	"github.com/fractalvote/deliberation/internal/domain"
	engerrors "github.com/fractalvote/deliberation/internal/domain/errors"
)

// Assigner forms cells for a deliberation by partitioning idea and voter
// pools into fixed-size groups under author-conflict constraints.
type Assigner struct {
	store domain.Store
	ids   *fingerprint.Generator
}

// New builds an Assigner backed by store. worker tags the Assigner's
// fingerprint.Generator; cell IDs come from uuid.New and cell formation
// does not depend on worker.
func New(store domain.Store, worker uint16) *Assigner {
	return &Assigner{store: store, ids: fingerprint.NewGenerator(worker)}
}

// BatchFormTierOne partitions every SUBMITTED idea and every member into
// cells of deliberation.CellSize() at tier 1. Called once, immediately
// after the SUBMISSION -> VOTING transition wins.
func (a *Assigner) BatchFormTierOne(ctx context.Context, del *domain.Deliberation, now time.Time) error {
	ideas, err := a.store.ListIdeasByStatus(ctx, del.ID(), domain.IdeaStatusSubmitted)
	if err != nil {
		return err
	}
	members, err := a.store.ListMembers(ctx, del.ID())
	if err != nil {
		return err
	}
	authorOf := make(map[uuid.UUID]uuid.UUID, len(ideas))
	ideaIDs := make([]uuid.UUID, 0, len(ideas))
	for _, idea := range ideas {
		ideaIDs = append(ideaIDs, idea.ID())
		authorOf[idea.ID()] = idea.AuthorID()
	}
	return a.formBatchCells(ctx, del, 1, ideaIDs, authorOf, members, now)
}

// BatchFormNextTier collects ADVANCING ideas at tier and either opens a
// final-showdown cell (count <= cellSize) or partitions them into
// another batch of cells at tier+1.
func (a *Assigner) BatchFormNextTier(ctx context.Context, del *domain.Deliberation, tier int, now time.Time) error {
	ideas, err := a.store.ListIdeasByStatusAndTier(ctx, del.ID(), domain.IdeaStatusAdvancing, tier)
	if err != nil {
		return err
	}
	members, err := a.store.ListMembers(ctx, del.ID())
	if err != nil {
		return err
	}
	authorOf := make(map[uuid.UUID]uuid.UUID, len(ideas))
	ideaIDs := make([]uuid.UUID, 0, len(ideas))
	for _, idea := range ideas {
		ideaIDs = append(ideaIDs, idea.ID())
		authorOf[idea.ID()] = idea.AuthorID()
	}
	return a.formBatchCells(ctx, del, tier+1, ideaIDs, authorOf, members, now)
}

func (a *Assigner) formBatchCells(
	ctx context.Context,
	del *domain.Deliberation,
	tier int,
	ideaIDs []uuid.UUID,
	authorOf map[uuid.UUID]uuid.UUID,
	members []uuid.UUID,
	now time.Time,
) error {
	cellSize := del.CellSize()

	// Final showdown: every remaining advancing idea fits in one cell
	// with every member as a participant.
	if tier > 1 && len(ideaIDs) <= cellSize {
		return a.createCell(ctx, del, tier, 0, ideaIDs, authorsForGroup(ideaIDs, authorOf), members, now)
	}

	numCells := (len(members) + cellSize - 1) / cellSize
	if numCells < 1 {
		numCells = 1
	}

	shuffledIdeas := shuffle(ideaIDs)
	shuffledMembers := shuffle(members)

	ideaGroups := partition(shuffledIdeas, numCells)

	groupAuthors := make([]map[uuid.UUID]bool, numCells)
	for i, group := range ideaGroups {
		m := make(map[uuid.UUID]bool, len(group))
		for _, id := range group {
			m[authorOf[id]] = true
		}
		groupAuthors[i] = m
	}

	participantGroups := placeParticipants(shuffledMembers, groupAuthors, cellSize)

	for i, group := range ideaGroups {
		if len(group) == 0 {
			continue
		}
		if err := a.createCell(ctx, del, tier, i, group, authorsForGroup(group, authorOf), participantGroups[i], now); err != nil {
			return err
		}
	}
	return nil
}

func authorsForGroup(ideaIDs []uuid.UUID, authorOf map[uuid.UUID]uuid.UUID) map[uuid.UUID]bool {
	m := make(map[uuid.UUID]bool, len(ideaIDs))
	for _, id := range ideaIDs {
		m[authorOf[id]] = true
	}
	return m
}

func (a *Assigner) createCell(
	ctx context.Context,
	del *domain.Deliberation,
	tier, batch int,
	ideaIDs []uuid.UUID,
	authors map[uuid.UUID]bool,
	participants []uuid.UUID,
	now time.Time,
) error {
	overrides := 0
	for _, userID := range participants {
		if authors[userID] {
			overrides++
		}
	}

	deadline := votingDeadlineFor(del, now)
	cell := domain.NewCell(uuid.New(), del.ID(), tier, batch, ideaIDs, participants, authors, deadline, now)
	for i := 0; i < overrides; i++ {
		cell.RecordConflictOverride()
	}

	if err := a.store.CreateCell(ctx, cell); err != nil {
		return err
	}
	for _, ideaID := range ideaIDs {
		if err := a.store.UpdateIdeaOutcome(ctx, ideaID, domain.IdeaStatusInVoting, tier, 0); err != nil {
			return err
		}
	}
	log.Info().
		Str("deliberation_id", del.ID().String()).
		Str("cell_id", cell.ID().String()).
		Int("tier", tier).
		Int("batch", batch).
		Int("conflict_overrides", overrides).
		Msg("cell formed")
	return nil
}

// EnterVoting is the FCFS path: find an open tier-T cell with spare
// capacity for this voter, or open a fresh one by claiming the next
// cellSize queued ideas.
func (a *Assigner) EnterVoting(ctx context.Context, del *domain.Deliberation, userID uuid.UUID, tier int, now time.Time) (*domain.Cell, error) {
	open, err := a.store.ListOpenCellsByTier(ctx, del.ID(), tier)
	if err != nil {
		return nil, err
	}

	sort.Slice(open, func(i, j int) bool {
		return len(open[i].ParticipantIDs()) < len(open[j].ParticipantIDs())
	})

	var fallback *domain.Cell
	for _, cell := range open {
		if cell.HasParticipant(userID) {
			continue
		}
		if !cell.HasSpareParticipantSlot(del.CellSize()) {
			continue
		}
		if !cell.IsAuthorConflict(userID) {
			if err := a.store.AddParticipant(ctx, cell.ID(), userID); err != nil {
				return nil, err
			}
			cell.AddParticipant(userID)
			return cell, nil
		}
		if fallback == nil {
			fallback = cell
		}
	}
	if fallback != nil {
		// No conflict-free cell had room: relax the author-conflict rule
		// rather than starve the voter.
		if err := a.store.AddParticipant(ctx, fallback.ID(), userID); err != nil {
			return nil, err
		}
		fallback.AddParticipant(userID)
		fallback.RecordConflictOverride()
		log.Warn().
			Str("deliberation_id", del.ID().String()).
			Str("cell_id", fallback.ID().String()).
			Str("user_id", userID.String()).
			Msg("author-conflict relaxed to avoid starvation")
		return fallback, nil
	}

	return a.openCell(ctx, del, tier, userID, now)
}

// openCell claims the next cellSize queued ideas at tier and opens a
// fresh cell containing userID, atomically flipping each claimed idea's
// status so concurrent callers never double-claim.
func (a *Assigner) openCell(ctx context.Context, del *domain.Deliberation, tier int, userID uuid.UUID, now time.Time) (*domain.Cell, error) {
	fromStatus := domain.IdeaStatusSubmitted
	sourceTier := 0
	if tier > 1 {
		fromStatus = domain.IdeaStatusAdvancing
		sourceTier = tier - 1
	}

	var candidates []*domain.Idea
	var err error
	if tier == 1 {
		candidates, err = a.store.ListIdeasByStatus(ctx, del.ID(), fromStatus)
	} else {
		candidates, err = a.store.ListIdeasByStatusAndTier(ctx, del.ID(), fromStatus, sourceTier)
	}
	if err != nil {
		return nil, err
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].SubmittedAt().Before(candidates[j].SubmittedAt())
	})

	cellSize := del.CellSize()
	claimed := make([]uuid.UUID, 0, cellSize)
	authors := make(map[uuid.UUID]bool, cellSize)
	for _, idea := range candidates {
		if len(claimed) >= cellSize {
			break
		}
		ok, err := a.store.TryClaimIdea(ctx, idea.ID(), fromStatus, domain.IdeaStatusInVoting, tier)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue // another worker claimed it first; Conflict, skip silently
		}
		claimed = append(claimed, idea.ID())
		authors[idea.AuthorID()] = true
	}
	if len(claimed) == 0 {
		return nil, engerrors.NotFound(engerrors.CodeIdeaNotInCell, "no ideas available to open a cell at this tier yet")
	}

	batch, err := a.store.NextBatchIndex(ctx, del.ID(), tier)
	if err != nil {
		return nil, err
	}
	deadline := votingDeadlineFor(del, now)
	cell := domain.NewCell(uuid.New(), del.ID(), tier, batch, claimed, []uuid.UUID{userID}, authors, deadline, now)
	if authors[userID] {
		cell.RecordConflictOverride()
	}
	if err := a.store.CreateCell(ctx, cell); err != nil {
		return nil, err
	}
	log.Info().
		Str("deliberation_id", del.ID().String()).
		Str("cell_id", cell.ID().String()).
		Int("tier", tier).
		Int("batch", batch).
		Msg("cell opened (FCFS)")
	return cell, nil
}

// votingDeadlineFor picks the cell's voting window: the shorter
// secondVoteTimeoutMs once a challenge round is underway, falling back to
// votingTimeoutMs for the first round or when no override is set.
func votingDeadlineFor(del *domain.Deliberation, now time.Time) time.Time {
	timeoutMs := del.VotingTimeoutMs()
	if del.ChallengeRound() > 0 && del.SecondVoteTimeoutMs() != nil {
		timeoutMs = *del.SecondVoteTimeoutMs()
	}
	return now.Add(time.Duration(timeoutMs) * time.Millisecond)
}

// shuffle returns a randomly permuted copy of ids.
func shuffle(ids []uuid.UUID) []uuid.UUID {
	out := append([]uuid.UUID(nil), ids...)
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// partition splits ids into n groups whose sizes differ by at most one:
// floor(ideas/numCells), with the remainder distributed one-per-group.
func partition(ids []uuid.UUID, n int) [][]uuid.UUID {
	groups := make([][]uuid.UUID, n)
	if n == 0 {
		return groups
	}
	base := len(ids) / n
	extra := len(ids) % n
	idx := 0
	for i := 0; i < n; i++ {
		size := base
		if i < extra {
			size++
		}
		groups[i] = append([]uuid.UUID(nil), ids[idx:idx+size]...)
		idx += size
	}
	return groups
}

// placeParticipants assigns each member to the group with fewest
// participants among groups where the member has no author conflict,
// relaxing the conflict rule when no conflict-free group has room.
func placeParticipants(members []uuid.UUID, groupAuthors []map[uuid.UUID]bool, cellSize int) [][]uuid.UUID {
	n := len(groupAuthors)
	groups := make([][]uuid.UUID, n)
	for _, userID := range members {
		best := -1
		for i := 0; i < n; i++ {
			if groupAuthors[i][userID] {
				continue
			}
			if len(groups[i]) >= cellSize {
				continue
			}
			if best == -1 || len(groups[i]) < len(groups[best]) {
				best = i
			}
		}
		if best == -1 {
			// No conflict-free group has room: relax, placing into the
			// group with fewest participants overall.
			for i := 0; i < n; i++ {
				if len(groups[i]) >= cellSize {
					continue
				}
				if best == -1 || len(groups[i]) < len(groups[best]) {
					best = i
				}
			}
		}
		if best == -1 {
			// Every group is at capacity; overflow into the smallest one
			// rather than drop the voter.
			for i := 0; i < n; i++ {
				if best == -1 || len(groups[i]) < len(groups[best]) {
					best = i
				}
			}
		}
		groups[best] = append(groups[best], userID)
	}
	return groups
}
