// Package uppollination propagates highly-upvoted comments from a cell
// to other cells sharing the same idea, or to cells at higher tiers that
// received the idea via advancement.
package uppollination

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fractalvote/deliberation/internal/domain"
)

// Engine serializes upvotes and performs the threshold-crossing spread.
type Engine struct {
	store domain.Store
}

func New(store domain.Store) *Engine {
	return &Engine{store: store}
}

// Threshold returns ceil(cellSize * ratio), the default being
// ceil(cellSize * 0.6) (concretely 3 of 5 for the typical cellSize=5
// configuration).
func Threshold(cellSize int, ratio float64) int {
	if ratio <= 0 {
		ratio = 0.6
	}
	return int(math.Ceil(float64(cellSize) * ratio))
}

// Upvote records a (commentID, userID) upvote and, if it crosses the
// threshold, performs the up-pollination spread. Idempotent: a repeat
// upvote by the same user is a no-op (unique constraint).
func (e *Engine) Upvote(ctx context.Context, commentID, userID uuid.UUID, currentTier, threshold int, now time.Time) error {
	inserted, err := e.store.TryInsertUpvote(ctx, commentID, userID, now)
	if err != nil {
		return err
	}
	if !inserted {
		return nil // already upvoted by this user; Conflict, swallowed
	}

	newCount, err := e.store.IncrementUpvoteCount(ctx, commentID)
	if err != nil {
		return err
	}
	if newCount != threshold {
		return nil
	}

	// Only the upvote that causes the threshold crossing performs the
	// spread: IncrementUpvoteCount hands each upvote its own new count, so
	// exactly one upvote sees newCount == threshold, even under a race.
	spread, err := e.store.TrySpreadComment(ctx, commentID, currentTier)
	if err != nil {
		return err
	}
	if spread {
		log.Info().Str("comment_id", commentID.String()).Int("tier", currentTier).Msg("comment up-pollinated")
	}
	return nil
}

// VisibleComments returns the comments discoverable to readers of cell:
// its own comments, plus, for each idea in the cell, those of the idea's
// topNPerIdea most-upvoted spread comments that have spreadCount > 0 and
// a reachTier at or above this cell's tier.
func (e *Engine) VisibleComments(ctx context.Context, cell *domain.Cell, topNPerIdea int) ([]*domain.Comment, error) {
	own, err := e.store.ListCommentsByCell(ctx, cell.ID())
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]bool, len(own))
	result := make([]*domain.Comment, 0, len(own))
	for _, c := range own {
		seen[c.ID()] = true
		result = append(result, c)
	}

	for _, ideaID := range cell.IdeaIDs() {
		spread, err := e.store.ListTopCommentsByIdea(ctx, ideaID, topNPerIdea)
		if err != nil {
			return nil, err
		}
		for _, c := range spread {
			if seen[c.ID()] || c.SpreadCount() == 0 {
				continue
			}
			if c.ReachTier() < cell.Tier() {
				continue
			}
			seen[c.ID()] = true
			result = append(result, c)
		}
	}
	return result, nil
}
