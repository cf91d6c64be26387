package tally

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sumOf(m map[uuid.UUID]int) int {
	total := 0
	for _, v := range m {
		total += v
	}
	return total
}

func TestNormalize_AlreadyAtBudget(t *testing.T) {
	i1, i2 := uuid.New(), uuid.New()
	result := Normalize(map[uuid.UUID]int{i1: 6, i2: 4}, 10)
	assert.Equal(t, 6, result[i1])
	assert.Equal(t, 4, result[i2])
}

func TestNormalize_SingleIdeaTakesWholeBudget(t *testing.T) {
	i1 := uuid.New()
	result := Normalize(map[uuid.UUID]int{i1: 3}, 10)
	require.Len(t, result, 1)
	assert.Equal(t, 10, result[i1])
}

func TestNormalize_DropsNonPositiveAllocations(t *testing.T) {
	i1, i2 := uuid.New(), uuid.New()
	result := Normalize(map[uuid.UUID]int{i1: 5, i2: 0}, 10)
	require.Len(t, result, 1)
	assert.Equal(t, 10, result[i1])
}

func TestNormalize_ScalesProportionallyAndSumsToBudget(t *testing.T) {
	i1, i2, i3 := uuid.New(), uuid.New(), uuid.New()
	result := Normalize(map[uuid.UUID]int{i1: 10, i2: 5, i3: 5}, 10)
	require.Len(t, result, 3)
	assert.Equal(t, 10, sumOf(result))
	for _, v := range result {
		assert.GreaterOrEqual(t, v, 1)
	}
}

func TestNormalize_EmptyAllocationsYieldsEmptyResult(t *testing.T) {
	assert.Empty(t, Normalize(map[uuid.UUID]int{}, 10))
	assert.Empty(t, Normalize(nil, 10))
}

func TestNormalize_NonPositiveBudgetYieldsEmptyResult(t *testing.T) {
	i1 := uuid.New()
	assert.Empty(t, Normalize(map[uuid.UUID]int{i1: 5}, 0))
}

// property: for any non-trivial allocation vector and positive budget,
// the normalized result always sums exactly to the budget and every
// entry is at least 1.
func TestNormalize_SumsToBudgetProperty(t *testing.T) {
	budgets := []int{1, 2, 5, 7, 10, 13, 25}
	vectors := [][]int{
		{1, 1, 1},
		{1, 2, 3, 4},
		{100, 1, 1},
		{7, 7, 7, 7, 7},
		{1},
		{3, 1},
		{1000, 1, 1, 1, 1},
	}
	for _, budget := range budgets {
		for _, vec := range vectors {
			allocations := make(map[uuid.UUID]int, len(vec))
			for _, xp := range vec {
				allocations[uuid.New()] = xp
			}
			result := Normalize(allocations, budget)
			if len(result) == 0 {
				continue
			}
			assert.Equal(t, budget, sumOf(result), "budget=%d vec=%v result=%v", budget, vec, result)
			for _, v := range result {
				assert.GreaterOrEqual(t, v, 1, "budget=%d vec=%v result=%v", budget, vec, result)
			}
		}
	}
}

func TestTally_SingleWinner(t *testing.T) {
	i1, i2, i3 := uuid.New(), uuid.New(), uuid.New()
	cellIdeas := []uuid.UUID{i1, i2, i3}
	result := Tally(cellIdeas, map[uuid.UUID]int{i1: 31, i2: 14, i3: 5})

	require.Len(t, result.WinnerIDs, 1)
	assert.Equal(t, i1, result.WinnerIDs[0])
	assert.ElementsMatch(t, []uuid.UUID{i2, i3}, result.LoserIDs)
	assert.False(t, result.NoVotesCast)
}

func TestTally_TieProducesMultipleWinners(t *testing.T) {
	i1, i2, i3 := uuid.New(), uuid.New(), uuid.New()
	cellIdeas := []uuid.UUID{i1, i2, i3}
	result := Tally(cellIdeas, map[uuid.UUID]int{i1: 10, i2: 10, i3: 3})

	assert.ElementsMatch(t, []uuid.UUID{i1, i2}, result.WinnerIDs)
	assert.ElementsMatch(t, []uuid.UUID{i3}, result.LoserIDs)
}

func TestTally_NoVotesAdvancesEveryIdea(t *testing.T) {
	i1, i2, i3 := uuid.New(), uuid.New(), uuid.New()
	cellIdeas := []uuid.UUID{i1, i2, i3}
	result := Tally(cellIdeas, map[uuid.UUID]int{})

	assert.True(t, result.NoVotesCast)
	assert.ElementsMatch(t, cellIdeas, result.WinnerIDs)
	assert.Empty(t, result.LoserIDs)
}

func TestTally_ZeroVoteIdeaCountsAsIdea(t *testing.T) {
	i1, i2 := uuid.New(), uuid.New()
	cellIdeas := []uuid.UUID{i1, i2}
	result := Tally(cellIdeas, map[uuid.UUID]int{i1: 10})

	require.Len(t, result.WinnerIDs, 1)
	assert.Equal(t, i1, result.WinnerIDs[0])
	assert.ElementsMatch(t, []uuid.UUID{i2}, result.LoserIDs)
}
