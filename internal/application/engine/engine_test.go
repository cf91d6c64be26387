package engine_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fractalvote/deliberation/internal/application/assigner"
	"github.com/fractalvote/deliberation/internal/application/engine"
	"github.com/fractalvote/deliberation/internal/domain"
	engerrors "github.com/fractalvote/deliberation/internal/domain/errors"
	"github.com/fractalvote/deliberation/internal/infrastructure/storage"
)

func newTestEngine(t *testing.T) (*engine.Engine, domain.Store) {
	t.Helper()
	store := storage.NewMemoryStore()
	a := assigner.New(store, 1)
	return engine.New(store, a, 0.6, nil), store
}

func newTestDeliberation(t *testing.T, store domain.Store, creatorID uuid.UUID, opts func(*domain.DeliberationParams)) *domain.Deliberation {
	t.Helper()
	params := domain.DeliberationParams{
		ID:        uuid.New(),
		CreatorID: creatorID,
		Question:  "which idea should we ship first?",
		CellSize:  5,
		XPBudget:  10,
	}
	if opts != nil {
		opts(&params)
	}
	del := domain.NewDeliberation(params)
	require.NoError(t, store.SaveDeliberation(context.Background(), del))
	return del
}

// 5 members, 5 ideas, cellSize=5 collapse to a single batch cell. All 5
// vote; the top idea ends up with 31 XP and becomes the sole winner and
// champion.
func TestEngine_BatchSingleCellCrownsHighestXPWinner(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t)

	creator := uuid.New()
	del := newTestDeliberation(t, store, creator, nil)

	voters := make([]uuid.UUID, 5)
	for i := range voters {
		voters[i] = uuid.New()
		require.NoError(t, eng.JoinDeliberation(ctx, del.ID(), voters[i]))
	}

	ideaTexts := []string{"idea one", "idea two", "idea three", "idea four", "idea five"}
	ideaIDs := make([]uuid.UUID, len(ideaTexts))
	for i, text := range ideaTexts {
		id, err := eng.SubmitIdea(ctx, del.ID(), voters[i], text)
		require.NoError(t, err)
		ideaIDs[i] = id
	}
	i1, i2, i3 := ideaIDs[0], ideaIDs[1], ideaIDs[2]

	require.NoError(t, eng.TriggerStartVoting(ctx, del.ID(), creator))

	var cellID uuid.UUID
	for _, voter := range voters {
		result, err := eng.EnterVoting(ctx, del.ID(), voter)
		require.NoError(t, err)
		require.NotNil(t, result)
		require.Len(t, result.Ideas, 5)
		cellID = result.Cell.ID()
	}

	allocations := [][]domain.Allocation{
		{{IdeaID: i1, XP: 10}},
		{{IdeaID: i2, XP: 10}},
		{{IdeaID: i1, XP: 6}, {IdeaID: i2, XP: 4}},
		{{IdeaID: i1, XP: 5}, {IdeaID: i3, XP: 5}},
		{{IdeaID: i1, XP: 10}},
	}
	for i, voter := range voters {
		require.NoError(t, eng.CastVote(ctx, cellID, voter, allocations[i]))
	}

	del, err := store.GetDeliberation(ctx, del.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseCompleted, del.Phase())
	require.NotNil(t, del.ChampionID())
	assert.Equal(t, i1, *del.ChampionID())

	winner, err := store.GetIdea(ctx, i1)
	require.NoError(t, err)
	assert.Equal(t, domain.IdeaStatusWinner, winner.Status())
	assert.True(t, winner.IsChampion())
	assert.Equal(t, 31, winner.TotalXP())

	for _, loserID := range []uuid.UUID{i2, i3, ideaIDs[3], ideaIDs[4]} {
		loser, err := store.GetIdea(ctx, loserID)
		require.NoError(t, err)
		assert.Equal(t, domain.IdeaStatusEliminated, loser.Status())
	}
}

// A cell where two ideas tie for max XP both advance as ADVANCING, and
// a tier-2 cell accepts both to resume voting.
func TestEngine_TieAtTierOneAdvancesBothIdeas(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t)

	creator := uuid.New()
	del := newTestDeliberation(t, store, creator, nil)

	voters := make([]uuid.UUID, 5)
	for i := range voters {
		voters[i] = uuid.New()
		require.NoError(t, eng.JoinDeliberation(ctx, del.ID(), voters[i]))
	}
	ideaIDs := make([]uuid.UUID, 5)
	for i := range ideaIDs {
		id, err := eng.SubmitIdea(ctx, del.ID(), voters[i], "idea")
		require.NoError(t, err)
		ideaIDs[i] = id
	}
	i1, i2 := ideaIDs[0], ideaIDs[1]

	require.NoError(t, eng.TriggerStartVoting(ctx, del.ID(), creator))

	var cellID uuid.UUID
	for _, voter := range voters {
		result, err := eng.EnterVoting(ctx, del.ID(), voter)
		require.NoError(t, err)
		cellID = result.Cell.ID()
	}

	// Every voter splits evenly between i1 and i2: both tie at max XP.
	for _, voter := range voters {
		allocations := []domain.Allocation{{IdeaID: i1, XP: 5}, {IdeaID: i2, XP: 5}}
		require.NoError(t, eng.CastVote(ctx, cellID, voter, allocations))
	}

	w1, err := store.GetIdea(ctx, i1)
	require.NoError(t, err)
	w2, err := store.GetIdea(ctx, i2)
	require.NoError(t, err)
	assert.Equal(t, domain.IdeaStatusAdvancing, w1.Status())
	assert.Equal(t, domain.IdeaStatusAdvancing, w2.Status())

	del, err = store.GetDeliberation(ctx, del.ID())
	require.NoError(t, err)
	assert.Equal(t, 2, del.CurrentTier())

	tier2Cells, err := store.ListOpenCellsByTier(ctx, del.ID(), 2)
	require.NoError(t, err)
	require.Len(t, tier2Cells, 1)
	assert.ElementsMatch(t, []uuid.UUID{i1, i2}, tier2Cells[0].IdeaIDs())
}

// A cell hitting its deadline with zero votes is closed with every idea
// ADVANCING — nothing eliminated.
func TestEngine_TimeoutWithNoVotesAdvancesEveryIdea(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t)

	creator := uuid.New()
	del := newTestDeliberation(t, store, creator, nil)

	voters := make([]uuid.UUID, 5)
	for i := range voters {
		voters[i] = uuid.New()
		require.NoError(t, eng.JoinDeliberation(ctx, del.ID(), voters[i]))
	}
	ideaIDs := make([]uuid.UUID, 5)
	for i := range ideaIDs {
		id, err := eng.SubmitIdea(ctx, del.ID(), voters[i], "idea")
		require.NoError(t, err)
		ideaIDs[i] = id
	}

	require.NoError(t, eng.TriggerStartVoting(ctx, del.ID(), creator))

	result, err := eng.EnterVoting(ctx, del.ID(), voters[0])
	require.NoError(t, err)
	cellID := result.Cell.ID()

	require.NoError(t, eng.ForceClose(ctx, del.ID(), creator))

	for _, ideaID := range ideaIDs {
		idea, err := store.GetIdea(ctx, ideaID)
		require.NoError(t, err)
		assert.Equal(t, domain.IdeaStatusAdvancing, idea.Status(), "idea %s should advance on a no-vote timeout", ideaID)
	}

	cell, err := store.GetCell(ctx, cellID)
	require.NoError(t, err)
	assert.Equal(t, domain.CellStatusCompleted, cell.Status())
}

func TestEngine_CastVote_RejectsNonParticipant(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t)

	creator := uuid.New()
	del := newTestDeliberation(t, store, creator, nil)
	voters := make([]uuid.UUID, 5)
	for i := range voters {
		voters[i] = uuid.New()
		require.NoError(t, eng.JoinDeliberation(ctx, del.ID(), voters[i]))
	}
	ideaIDs := make([]uuid.UUID, 5)
	for i := range ideaIDs {
		id, err := eng.SubmitIdea(ctx, del.ID(), voters[i], "idea")
		require.NoError(t, err)
		ideaIDs[i] = id
	}
	require.NoError(t, eng.TriggerStartVoting(ctx, del.ID(), creator))
	result, err := eng.EnterVoting(ctx, del.ID(), voters[0])
	require.NoError(t, err)

	outsider := uuid.New()
	err = eng.CastVote(ctx, result.Cell.ID(), outsider, []domain.Allocation{{IdeaID: ideaIDs[0], XP: 10}})
	require.Error(t, err)
	var ee *engerrors.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, engerrors.CodeNotAParticipant, ee.Code)
}

func TestEngine_CastVote_RejectsDoubleVote(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t)

	creator := uuid.New()
	del := newTestDeliberation(t, store, creator, nil)
	voters := make([]uuid.UUID, 5)
	for i := range voters {
		voters[i] = uuid.New()
		require.NoError(t, eng.JoinDeliberation(ctx, del.ID(), voters[i]))
	}
	ideaIDs := make([]uuid.UUID, 5)
	for i := range ideaIDs {
		id, err := eng.SubmitIdea(ctx, del.ID(), voters[i], "idea")
		require.NoError(t, err)
		ideaIDs[i] = id
	}
	require.NoError(t, eng.TriggerStartVoting(ctx, del.ID(), creator))
	result, err := eng.EnterVoting(ctx, del.ID(), voters[0])
	require.NoError(t, err)

	alloc := []domain.Allocation{{IdeaID: ideaIDs[0], XP: 10}}
	require.NoError(t, eng.CastVote(ctx, result.Cell.ID(), voters[0], alloc))

	err = eng.CastVote(ctx, result.Cell.ID(), voters[0], alloc)
	require.Error(t, err)
	assert.True(t, engerrors.IsConflict(err))
}

func TestEngine_TriggerStartVoting_RejectsNonCreator(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t)

	creator := uuid.New()
	del := newTestDeliberation(t, store, creator, nil)

	err := eng.TriggerStartVoting(ctx, del.ID(), uuid.New())
	require.Error(t, err)
	var ee *engerrors.EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, engerrors.CodeNotCreator, ee.Code)
}

func TestEngine_PostCommentAndUpvote(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t)

	creator := uuid.New()
	del := newTestDeliberation(t, store, creator, nil)
	voters := make([]uuid.UUID, 5)
	for i := range voters {
		voters[i] = uuid.New()
		require.NoError(t, eng.JoinDeliberation(ctx, del.ID(), voters[i]))
	}
	var ideaID uuid.UUID
	for i := range voters {
		id, err := eng.SubmitIdea(ctx, del.ID(), voters[i], "idea")
		require.NoError(t, err)
		if i == 0 {
			ideaID = id
		}
	}
	require.NoError(t, eng.TriggerStartVoting(ctx, del.ID(), creator))
	result, err := eng.EnterVoting(ctx, del.ID(), voters[0])
	require.NoError(t, err)

	commentID, err := eng.PostComment(ctx, result.Cell.ID(), voters[0], "great idea", &ideaID, nil)
	require.NoError(t, err)

	require.NoError(t, eng.UpvoteComment(ctx, commentID, voters[1]))

	// Same user upvoting twice is idempotent, not an error (unique
	// constraint swallowed as a no-op).
	require.NoError(t, eng.UpvoteComment(ctx, commentID, voters[1]))

	comment, err := store.GetComment(ctx, commentID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, comment.UpvoteCount(), 1)
}
