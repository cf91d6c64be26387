// Package tally implements XP allocation validation, normalization, and
// per-cell winner selection.
package tally

import (
	"sort"

	"github.com/google/uuid"
)

// Normalize clamps a caller-submitted allocation vector so it sums
// exactly to budget:
//
//  1. If the vector already sums to budget, it is returned unchanged
//     (after dropping zero/negative entries).
//  2. Otherwise the first N-1 entries are scaled proportionally and
//     rounded, and the last absorbs the residual so the total matches
//     exactly.
//  3. If any entry falls below 1 after scaling, it is bumped to 1 and
//     the excess is subtracted from the largest entry.
//
// Entries are processed in ascending order of their ID strings, so which
// entry absorbs the residual is deterministic. Zero allocations are
// dropped before scaling since zero allocations are not stored. If more
// positive entries remain than budget (so not every one can keep 1 XP),
// the result is empty.
func Normalize(allocations map[uuid.UUID]int, budget int) map[uuid.UUID]int {
	// Drop non-positive entries and capture deterministic order.
	ids := make([]uuid.UUID, 0, len(allocations))
	raw := make([]int, 0, len(allocations))
	total := 0
	for id, xp := range allocations {
		if xp <= 0 {
			continue
		}
		ids = append(ids, id)
		raw = append(raw, xp)
		total += xp
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
	if len(ids) == 0 || budget <= 0 {
		return map[uuid.UUID]int{}
	}
	if len(ids) > budget {
		return map[uuid.UUID]int{}
	}

	result := make(map[uuid.UUID]int, len(ids))

	if total == budget {
		for i, id := range ids {
			result[id] = rawFor(allocations, id, raw[i])
		}
		return result
	}

	// Degenerate single-idea case: the whole budget goes to the one idea
	// the caller named.
	if len(ids) == 1 {
		result[ids[0]] = budget
		return result
	}

	// Scale the first N-1 proportionally and round; residual goes to the
	// last entry so the sum matches exactly.
	scaled := make([]int, len(ids))
	sumScaled := 0
	for i := 0; i < len(ids)-1; i++ {
		xp := rawFor(allocations, ids[i], raw[i])
		v := int(float64(xp) * float64(budget) / float64(total))
		if v < 0 {
			v = 0
		}
		scaled[i] = v
		sumScaled += v
	}
	scaled[len(ids)-1] = budget - sumScaled

	bumpBelowFloor(scaled)

	for i, id := range ids {
		result[id] = scaled[i]
	}
	return result
}

func rawFor(allocations map[uuid.UUID]int, id uuid.UUID, fallback int) int {
	if v, ok := allocations[id]; ok && v > 0 {
		return v
	}
	return fallback
}

// bumpBelowFloor enforces "any allocation below 1 is bumped to 1, excess
// subtracted from the largest", iterating until stable since bumping can
// itself shrink the new largest below the floor.
func bumpBelowFloor(scaled []int) {
	for {
		deficit := 0
		largest := -1
		for i, v := range scaled {
			if v < 1 {
				deficit += 1 - v
				scaled[i] = 1
			}
			if largest == -1 || scaled[i] > scaled[largest] {
				largest = i
			}
		}
		if deficit == 0 {
			return
		}
		scaled[largest] -= deficit
		if scaled[largest] >= 1 {
			return
		}
		// The largest itself went below the floor; loop again to re-bump.
	}
}

// Result is the outcome of tallying a single cell.
type Result struct {
	// XPByIdea is the summed XP per idea in the cell.
	XPByIdea map[uuid.UUID]int
	// WinnerIDs are the ideas tied for maximum XP. Multiple entries mean
	// a tie: all tied ideas advance together.
	WinnerIDs []uuid.UUID
	// LoserIDs are every other idea in the cell, to be ELIMINATED.
	LoserIDs []uuid.UUID
	// NoVotesCast is true when the cell was closed on timeout with zero
	// votes: nothing is eliminated in that case.
	NoVotesCast bool
}

// Tally computes the winner(s) of a cell from its per-idea XP sums.
// cellIdeaIDs is the full idea set of the cell, including ideas that
// received zero votes.
func Tally(cellIdeaIDs []uuid.UUID, xpByIdea map[uuid.UUID]int) Result {
	totalVotes := 0
	for _, xp := range xpByIdea {
		totalVotes += xp
	}

	if totalVotes == 0 {
		// No votes cast: every idea in the cell advances.
		return Result{
			XPByIdea:    xpByIdea,
			WinnerIDs:   append([]uuid.UUID(nil), cellIdeaIDs...),
			LoserIDs:    nil,
			NoVotesCast: true,
		}
	}

	max := -1
	for _, id := range cellIdeaIDs {
		if xp := xpByIdea[id]; xp > max {
			max = xp
		}
	}

	var winners, losers []uuid.UUID
	for _, id := range cellIdeaIDs {
		if xpByIdea[id] == max {
			winners = append(winners, id)
		} else {
			losers = append(losers, id)
		}
	}

	return Result{XPByIdea: xpByIdea, WinnerIDs: winners, LoserIDs: losers}
}
