package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/fractalvote/deliberation/internal/domain"
)

func TestIdea_NewIdea_StatusByIsNew(t *testing.T) {
	now := time.Now()
	submitted := domain.NewIdea(uuid.New(), uuid.New(), uuid.New(), "ship it", false, now)
	assert.Equal(t, domain.IdeaStatusSubmitted, submitted.Status())

	pending := domain.NewIdea(uuid.New(), uuid.New(), uuid.New(), "late entry", true, now)
	assert.Equal(t, domain.IdeaStatusPending, pending.Status())
	assert.True(t, pending.IsNew())
}

func TestIdea_NewIdea_TruncatesOverlongText(t *testing.T) {
	text := make([]byte, domain.MaxIdeaTextLength+500)
	for i := range text {
		text[i] = 'a'
	}
	idea := domain.NewIdea(uuid.New(), uuid.New(), uuid.New(), string(text), false, time.Now())
	assert.Len(t, idea.Text(), domain.MaxIdeaTextLength)
}

func TestIdea_EnterVoting(t *testing.T) {
	idea := domain.NewIdea(uuid.New(), uuid.New(), uuid.New(), "x", false, time.Now())
	idea.EnterVoting(1)
	assert.Equal(t, domain.IdeaStatusInVoting, idea.Status())
	assert.Equal(t, 1, idea.Tier())
}

func TestIdea_AdvanceDoesNotCrownDirectly(t *testing.T) {
	idea := domain.NewIdea(uuid.New(), uuid.New(), uuid.New(), "x", false, time.Now())
	idea.Advance(2)
	assert.Equal(t, domain.IdeaStatusAdvancing, idea.Status())
	assert.Equal(t, 2, idea.Tier())
	assert.False(t, idea.IsChampion(), "Advance must not crown a winner directly")
}

func TestIdea_EliminateOnlyCountsLossAtTierOne(t *testing.T) {
	idea := domain.NewIdea(uuid.New(), uuid.New(), uuid.New(), "x", false, time.Now())
	idea.Eliminate(2)
	assert.Equal(t, domain.IdeaStatusEliminated, idea.Status())
	assert.Equal(t, 0, idea.Losses())

	idea2 := domain.NewIdea(uuid.New(), uuid.New(), uuid.New(), "x", false, time.Now())
	idea2.Eliminate(1)
	assert.Equal(t, 1, idea2.Losses())
}

func TestIdea_CrownWinner(t *testing.T) {
	idea := domain.NewIdea(uuid.New(), uuid.New(), uuid.New(), "x", false, time.Now())
	idea.CrownWinner(3)
	assert.Equal(t, domain.IdeaStatusWinner, idea.Status())
	assert.True(t, idea.IsChampion())
	assert.Equal(t, 3, idea.Tier())
}

func TestIdea_BecomeDefendingAndBench(t *testing.T) {
	idea := domain.NewIdea(uuid.New(), uuid.New(), uuid.New(), "x", false, time.Now())
	idea.CrownWinner(1)
	idea.BecomeDefending()
	assert.Equal(t, domain.IdeaStatusDefending, idea.Status())
	assert.True(t, idea.IsChampion(), "rolling-mode defending status does not revoke champion history")

	other := domain.NewIdea(uuid.New(), uuid.New(), uuid.New(), "x", false, time.Now())
	other.Bench()
	assert.Equal(t, domain.IdeaStatusBenched, other.Status())
}

func TestIdea_AddVoteTotalsAccumulates(t *testing.T) {
	idea := domain.NewIdea(uuid.New(), uuid.New(), uuid.New(), "x", false, time.Now())
	idea.AddVoteTotals(10, 2)
	idea.AddVoteTotals(5, 1)
	assert.Equal(t, 15, idea.TotalXP())
	assert.Equal(t, 3, idea.TotalVotes())
}
