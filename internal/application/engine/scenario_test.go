package engine_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fractalvote/deliberation/internal/domain"
)

// 12 ideas and 12 members at cellSize=5 split into 3 tier-1 cells; each
// cell's sole winner advances into one final tier-2 showdown cell that
// crowns the champion.
func TestEngine_BatchTwoTiersPicksHigherXPWinner(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t)

	creator := uuid.New()
	del := newTestDeliberation(t, store, creator, func(p *domain.DeliberationParams) {
		p.CellSize = 5
		p.XPBudget = 10
	})

	voters := make([]uuid.UUID, 12)
	for i := range voters {
		voters[i] = uuid.New()
		require.NoError(t, eng.JoinDeliberation(ctx, del.ID(), voters[i]))
	}
	ideaIDs := make([]uuid.UUID, 12)
	for i := range ideaIDs {
		id, err := eng.SubmitIdea(ctx, del.ID(), voters[i], "idea")
		require.NoError(t, err)
		ideaIDs[i] = id
	}

	require.NoError(t, eng.TriggerStartVoting(ctx, del.ID(), creator))

	for _, voter := range voters {
		_, err := eng.EnterVoting(ctx, del.ID(), voter)
		require.NoError(t, err)
	}

	tier1Cells, err := store.ListCellsByTier(ctx, del.ID(), 1)
	require.NoError(t, err)
	require.Greater(t, len(tier1Cells), 1, "12 members at cellSize=5 must split across multiple tier-1 cells")

	winners := make(map[uuid.UUID]bool)
	for _, cell := range tier1Cells {
		winnerIdea := cell.IdeaIDs()[0]
		winners[winnerIdea] = true
		for _, participant := range cell.ParticipantIDs() {
			err := eng.CastVote(ctx, cell.ID(), participant, []domain.Allocation{{IdeaID: winnerIdea, XP: 10}})
			require.NoError(t, err)
		}
	}

	del2, err := store.GetDeliberation(ctx, del.ID())
	require.NoError(t, err)
	assert.Equal(t, 2, del2.CurrentTier())

	tier2Cells, err := store.ListOpenCellsByTier(ctx, del.ID(), 2)
	require.NoError(t, err)
	require.Len(t, tier2Cells, 1, "3 tier-1 winners within cellSize must collapse into a single final showdown cell")
	assert.Len(t, tier2Cells[0].IdeaIDs(), len(winners))

	finalCell := tier2Cells[0]
	champion := finalCell.IdeaIDs()[0]
	for _, participant := range finalCell.ParticipantIDs() {
		err := eng.CastVote(ctx, finalCell.ID(), participant, []domain.Allocation{{IdeaID: champion, XP: 10}})
		require.NoError(t, err)
	}

	del3, err := store.GetDeliberation(ctx, del.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseCompleted, del3.Phase())
	require.NotNil(t, del3.ChampionID())
	assert.Equal(t, champion, *del3.ChampionID())
}

// Voters enter lazily and cells are claimed FCFS in batches of
// cellSize; 25 ideas / cellSize=5 forms 5 tier-1 cells, whose 5 winners
// then form a single tier-2 showdown.
func TestEngine_ContinuousFlowTwentyFiveIdeasFormsShowdownCell(t *testing.T) {
	ctx := context.Background()
	eng, store := newTestEngine(t)

	creator := uuid.New()
	del := newTestDeliberation(t, store, creator, func(p *domain.DeliberationParams) {
		p.CellSize = 5
		p.XPBudget = 10
		p.ContinuousFlow = true
	})

	voters := make([]uuid.UUID, 25)
	for i := range voters {
		voters[i] = uuid.New()
		require.NoError(t, eng.JoinDeliberation(ctx, del.ID(), voters[i]))
	}
	for i := range voters {
		_, err := eng.SubmitIdea(ctx, del.ID(), voters[i], "idea")
		require.NoError(t, err)
	}

	require.NoError(t, eng.TriggerStartVoting(ctx, del.ID(), creator))

	for _, voter := range voters {
		_, err := eng.EnterVoting(ctx, del.ID(), voter)
		require.NoError(t, err)
	}

	tier1Cells, err := store.ListCellsByTier(ctx, del.ID(), 1)
	require.NoError(t, err)
	require.Len(t, tier1Cells, 5, "25 ideas/voters at cellSize=5 should FCFS-form exactly 5 cells")

	for _, cell := range tier1Cells {
		winnerIdea := cell.IdeaIDs()[0]
		for _, participant := range cell.ParticipantIDs() {
			err := eng.CastVote(ctx, cell.ID(), participant, []domain.Allocation{{IdeaID: winnerIdea, XP: 10}})
			require.NoError(t, err)
		}
	}

	del2, err := store.GetDeliberation(ctx, del.ID())
	require.NoError(t, err)
	assert.Equal(t, 2, del2.CurrentTier(), "5 queued tier-1 winners at cellSize=5 should open continuous-flow tier 2")

	advancing, err := store.ListIdeasByStatusAndTier(ctx, del.ID(), domain.IdeaStatusAdvancing, 1)
	require.NoError(t, err)
	require.Len(t, advancing, 5)

	finalVoters := voters[:5]
	var finalCellID uuid.UUID
	for _, voter := range finalVoters {
		result, err := eng.EnterVoting(ctx, del.ID(), voter)
		require.NoError(t, err)
		require.NotNil(t, result)
		finalCellID = result.Cell.ID()
	}

	finalCell, err := store.GetCell(ctx, finalCellID)
	require.NoError(t, err)
	require.Len(t, finalCell.IdeaIDs(), 5)

	champion := finalCell.IdeaIDs()[0]
	for _, voter := range finalVoters {
		err := eng.CastVote(ctx, finalCellID, voter, []domain.Allocation{{IdeaID: champion, XP: 10}})
		require.NoError(t, err)
	}

	del3, err := store.GetDeliberation(ctx, del.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseCompleted, del3.Phase())
	require.NotNil(t, del3.ChampionID())
	assert.Equal(t, champion, *del3.ChampionID())
}
