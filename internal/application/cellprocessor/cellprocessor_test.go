package cellprocessor

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

func seedVotingCell(t *testing.T, store domain.Store, ideaIDs []uuid.UUID) *domain.Cell {
	t.Helper()
	now := time.Now()
	cell := domain.NewCell(uuid.New(), uuid.New(), 1, 0, ideaIDs, nil, nil, now.Add(time.Hour), now)
	require.NoError(t, store.CreateCell(context.Background(), cell))
	for _, id := range ideaIDs {
		idea := domain.ReconstructIdea(id, cell.DeliberationID(), uuid.New(), "x", domain.IdeaStatusInVoting, 1, 0, 0, 0, false, false, now)
		require.NoError(t, store.InsertIdea(context.Background(), idea))
	}
	return cell
}

func castVote(t *testing.T, store domain.Store, cellID, ideaID uuid.UUID, xp int) {
	t.Helper()
	v := &domain.Vote{ID: uuid.New(), CellID: cellID, UserID: uuid.New(), IdeaID: ideaID, XPPoints: xp, CreatedAt: time.Now()}
	require.NoError(t, store.InsertVotes(context.Background(), []*domain.Vote{v}))
}

func TestProcessor_ProcessCellResults_MarksWinnersAdvancingNotWinner(t *testing.T) {
	store := storage.NewMemoryStore()
	i1, i2 := uuid.New(), uuid.New()
	cell := seedVotingCell(t, store, []uuid.UUID{i1, i2})
	castVote(t, store, cell.ID(), i1, 8)
	castVote(t, store, cell.ID(), i2, 2)

	p := New(store)
	result, ok, err := p.ProcessCellResults(context.Background(), cell.ID(), time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	require.Len(t, result.WinnerIDs, 1)
	assert.Equal(t, i1, result.WinnerIDs[0])

	winner, err := store.GetIdea(context.Background(), i1)
	require.NoError(t, err)
	assert.Equal(t, domain.IdeaStatusAdvancing, winner.Status(), "cellprocessor promotes to ADVANCING, only tiercontroller crowns WINNER")

	loser, err := store.GetIdea(context.Background(), i2)
	require.NoError(t, err)
	assert.Equal(t, domain.IdeaStatusEliminated, loser.Status())
	assert.Equal(t, 1, loser.Losses(), "tier-1 elimination counts a loss")
}

func TestProcessor_ProcessCellResults_IsIdempotent(t *testing.T) {
	store := storage.NewMemoryStore()
	i1, i2 := uuid.New(), uuid.New()
	cell := seedVotingCell(t, store, []uuid.UUID{i1, i2})
	castVote(t, store, cell.ID(), i1, 5)

	p := New(store)
	_, ok, err := p.ProcessCellResults(context.Background(), cell.ID(), time.Now())
	require.NoError(t, err)
	require.True(t, ok)

	result, ok, err := p.ProcessCellResults(context.Background(), cell.ID(), time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "second completion attempt on an already-completed cell must lose the conditional update")
	assert.Nil(t, result)
}

func TestProcessor_ProcessCellResults_NoVotesAdvancesEveryIdea(t *testing.T) {
	store := storage.NewMemoryStore()
	i1, i2, i3 := uuid.New(), uuid.New(), uuid.New()
	cell := seedVotingCell(t, store, []uuid.UUID{i1, i2, i3})

	p := New(store)
	result, ok, err := p.ProcessCellResults(context.Background(), cell.ID(), time.Now())
	require.NoError(t, err)
	require.True(t, ok)
	assert.ElementsMatch(t, []uuid.UUID{i1, i2, i3}, result.WinnerIDs)
	assert.Empty(t, result.LoserIDs)
}
