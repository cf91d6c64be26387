package uppollination

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fractalvote/deliberation/internal/domain"
	"github.com/fractalvote/deliberation/internal/infrastructure/storage"
)

func TestThreshold_DefaultsTo60Percent(t *testing.T) {
	assert.Equal(t, 3, Threshold(5, 0))
	assert.Equal(t, 3, Threshold(5, -1))
}

func TestThreshold_CeilRounding(t *testing.T) {
	assert.Equal(t, 2, Threshold(3, 0.5))
	assert.Equal(t, 4, Threshold(7, 0.5))
}

func seedCommentCell(t *testing.T, store domain.Store, ideaID uuid.UUID, tier int) (*domain.Cell, *domain.Comment) {
	t.Helper()
	now := time.Now()
	cell := domain.NewCell(uuid.New(), uuid.New(), tier, 0, []uuid.UUID{ideaID}, nil, nil, now.Add(time.Hour), now)
	require.NoError(t, store.CreateCell(context.Background(), cell))

	comment := domain.NewComment(uuid.New(), cell.ID(), uuid.New(), "great idea", &ideaID, nil, tier, now)
	require.NoError(t, store.InsertComment(context.Background(), comment))
	return cell, comment
}

func TestEngine_Upvote_SpreadsOnlyAfterThresholdCrossed(t *testing.T) {
	store := storage.NewMemoryStore()
	engine := New(store)
	ideaID := uuid.New()
	_, comment := seedCommentCell(t, store, ideaID, 1)

	ctx := context.Background()
	now := time.Now()

	require.NoError(t, engine.Upvote(ctx, comment.ID(), uuid.New(), 1, 3, now))
	require.NoError(t, engine.Upvote(ctx, comment.ID(), uuid.New(), 1, 3, now))

	got, err := store.GetComment(ctx, comment.ID())
	require.NoError(t, err)
	assert.Equal(t, 2, got.UpvoteCount())
	assert.Equal(t, 0, got.SpreadCount(), "must not spread before threshold crossing")

	require.NoError(t, engine.Upvote(ctx, comment.ID(), uuid.New(), 1, 3, now))
	got, err = store.GetComment(ctx, comment.ID())
	require.NoError(t, err)
	assert.Equal(t, 3, got.UpvoteCount())
	assert.Equal(t, 1, got.SpreadCount(), "third upvote crosses threshold of 3 and spreads once")
}

func TestEngine_Upvote_IsIdempotentPerUser(t *testing.T) {
	store := storage.NewMemoryStore()
	engine := New(store)
	ideaID := uuid.New()
	_, comment := seedCommentCell(t, store, ideaID, 1)

	ctx := context.Background()
	now := time.Now()
	user := uuid.New()

	require.NoError(t, engine.Upvote(ctx, comment.ID(), user, 1, 3, now))
	require.NoError(t, engine.Upvote(ctx, comment.ID(), user, 1, 3, now))

	got, err := store.GetComment(ctx, comment.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, got.UpvoteCount(), "repeat upvote by same user must be a no-op")
}

func TestEngine_VisibleComments_IncludesOwnAndSpreadComments(t *testing.T) {
	store := storage.NewMemoryStore()
	engine := New(store)
	ctx := context.Background()
	ideaID := uuid.New()

	cellA, commentA := seedCommentCell(t, store, ideaID, 1)
	for i := 0; i < 3; i++ {
		require.NoError(t, engine.Upvote(ctx, commentA.ID(), uuid.New(), 2, 3, time.Now()))
	}

	cellB, _ := seedCommentCell(t, store, ideaID, 2)
	// cellB references the same idea, so the spread from cellA is visible there too.
	cellB = domain.NewCell(cellB.ID(), cellB.DeliberationID(), 2, 0, []uuid.UUID{ideaID}, nil, nil, time.Now().Add(time.Hour), time.Now())

	visible, err := engine.VisibleComments(ctx, cellB, 5)
	require.NoError(t, err)

	found := false
	for _, c := range visible {
		if c.ID() == commentA.ID() {
			found = true
		}
	}
	assert.True(t, found, "spread comment from cellA should be visible in a higher-tier cell sharing the idea")

	ownVisible, err := engine.VisibleComments(ctx, cellA, 5)
	require.NoError(t, err)
	require.Len(t, ownVisible, 1)
	assert.Equal(t, commentA.ID(), ownVisible[0].ID())
}
