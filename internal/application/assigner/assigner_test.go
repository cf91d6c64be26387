package assigner

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

func newTestDeliberation(t *testing.T, store domain.Store, cellSize int, continuousFlow bool) *domain.Deliberation {
	t.Helper()
	del := domain.NewDeliberation(domain.DeliberationParams{
		ID:             uuid.New(),
		CreatorID:      uuid.New(),
		Question:       "what next?",
		CellSize:       cellSize,
		XPBudget:       cellSize * 2,
		ContinuousFlow: continuousFlow,
	})
	require.NoError(t, store.SaveDeliberation(context.Background(), del))
	return del
}

func seedSubmittedIdeas(t *testing.T, store domain.Store, del *domain.Deliberation, n int) []*domain.Idea {
	t.Helper()
	ideas := make([]*domain.Idea, 0, n)
	now := time.Now()
	for i := 0; i < n; i++ {
		idea := domain.NewIdea(uuid.New(), del.ID(), uuid.New(), "idea", false, now.Add(time.Duration(i)*time.Millisecond))
		require.NoError(t, store.InsertIdea(context.Background(), idea))
		ideas = append(ideas, idea)
	}
	return ideas
}

func seedMembers(t *testing.T, store domain.Store, del *domain.Deliberation, n int) []uuid.UUID {
	t.Helper()
	members := make([]uuid.UUID, 0, n)
	for i := 0; i < n; i++ {
		userID := uuid.New()
		_, err := store.JoinDeliberation(context.Background(), del.ID(), userID, time.Now())
		require.NoError(t, err)
		members = append(members, userID)
	}
	return members
}

func TestAssigner_BatchFormTierOne_CollapsesToSingleCellWhenWithinCellSize(t *testing.T) {
	store := storage.NewMemoryStore()
	del := newTestDeliberation(t, store, 5, false)
	seedSubmittedIdeas(t, store, del, 5)
	seedMembers(t, store, del, 5)

	a := New(store, 1)
	require.NoError(t, a.BatchFormTierOne(context.Background(), del, time.Now()))

	cells, err := store.ListCellsByTier(context.Background(), del.ID(), 1)
	require.NoError(t, err)
	require.Len(t, cells, 1, "5 ideas/5 members with cellSize=5 must collapse to a single cell")
	assert.Len(t, cells[0].IdeaIDs(), 5)
	assert.Len(t, cells[0].ParticipantIDs(), 5)
}

func TestAssigner_BatchFormTierOne_SplitsAcrossMultipleCells(t *testing.T) {
	store := storage.NewMemoryStore()
	del := newTestDeliberation(t, store, 5, false)
	seedSubmittedIdeas(t, store, del, 12)
	seedMembers(t, store, del, 12)

	a := New(store, 1)
	require.NoError(t, a.BatchFormTierOne(context.Background(), del, time.Now()))

	cells, err := store.ListCellsByTier(context.Background(), del.ID(), 1)
	require.NoError(t, err)
	assert.Greater(t, len(cells), 1, "12 members at cellSize=5 must split into multiple cells")

	totalIdeas := 0
	for _, c := range cells {
		totalIdeas += len(c.IdeaIDs())
	}
	assert.Equal(t, 12, totalIdeas)
}

func TestAssigner_EnterVoting_OpensNewCellWhenNoneOpen(t *testing.T) {
	store := storage.NewMemoryStore()
	del := newTestDeliberation(t, store, 5, true)
	seedSubmittedIdeas(t, store, del, 5)
	voter := uuid.New()
	_, err := store.JoinDeliberation(context.Background(), del.ID(), voter, time.Now())
	require.NoError(t, err)

	a := New(store, 1)
	cell, err := a.EnterVoting(context.Background(), del, voter, 1, time.Now())
	require.NoError(t, err)
	assert.True(t, cell.HasParticipant(voter))
	assert.Len(t, cell.IdeaIDs(), 5)
}

func TestAssigner_EnterVoting_JoinsExistingOpenCell(t *testing.T) {
	store := storage.NewMemoryStore()
	del := newTestDeliberation(t, store, 5, true)
	seedSubmittedIdeas(t, store, del, 5)
	a := New(store, 1)

	v1 := uuid.New()
	_, err := store.JoinDeliberation(context.Background(), del.ID(), v1, time.Now())
	require.NoError(t, err)
	cell1, err := a.EnterVoting(context.Background(), del, v1, 1, time.Now())
	require.NoError(t, err)

	v2 := uuid.New()
	_, err = store.JoinDeliberation(context.Background(), del.ID(), v2, time.Now())
	require.NoError(t, err)
	cell2, err := a.EnterVoting(context.Background(), del, v2, 1, time.Now())
	require.NoError(t, err)

	assert.Equal(t, cell1.ID(), cell2.ID(), "second voter should join the still-open first cell rather than open another")
}

func TestAssigner_EnterVoting_NoIdeasYieldsNotFound(t *testing.T) {
	store := storage.NewMemoryStore()
	del := newTestDeliberation(t, store, 5, true)
	voter := uuid.New()
	_, err := store.JoinDeliberation(context.Background(), del.ID(), voter, time.Now())
	require.NoError(t, err)

	a := New(store, 1)
	_, err = a.EnterVoting(context.Background(), del, voter, 1, time.Now())
	assert.Error(t, err)
}
