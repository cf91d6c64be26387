package domain

import (
	"time"

	"github.com/google/uuid"
)

// Idea is a single proposal competing in a Deliberation.
type Idea struct {
	id             uuid.UUID
	deliberationID uuid.UUID
	authorID       uuid.UUID
	text           string
	status         IdeaStatus
	tier           int
	totalXP        int
	totalVotes     int
	losses         int
	isChampion     bool
	isNew          bool
	submittedAt    time.Time
}

// MaxIdeaTextLength bounds Idea.text.
const MaxIdeaTextLength = 2000

// NewIdea creates a SUBMITTED idea.
func NewIdea(id, deliberationID, authorID uuid.UUID, text string, isNew bool, now time.Time) *Idea {
	if len(text) > MaxIdeaTextLength {
		text = text[:MaxIdeaTextLength]
	}
	status := IdeaStatusSubmitted
	if isNew {
		status = IdeaStatusPending
	}
	return &Idea{
		id: id, deliberationID: deliberationID, authorID: authorID, text: text,
		status: status, tier: 0, isNew: isNew, submittedAt: now,
	}
}

// ReconstructIdea rebuilds an Idea from persisted fields.
func ReconstructIdea(
	id, deliberationID, authorID uuid.UUID, text string, status IdeaStatus,
	tier, totalXP, totalVotes, losses int, isChampion, isNew bool, submittedAt time.Time,
) *Idea {
	return &Idea{
		id: id, deliberationID: deliberationID, authorID: authorID, text: text,
		status: status, tier: tier, totalXP: totalXP, totalVotes: totalVotes,
		losses: losses, isChampion: isChampion, isNew: isNew, submittedAt: submittedAt,
	}
}

func (i *Idea) ID() uuid.UUID             { return i.id }
func (i *Idea) DeliberationID() uuid.UUID { return i.deliberationID }
func (i *Idea) AuthorID() uuid.UUID       { return i.authorID }
func (i *Idea) Text() string              { return i.text }
func (i *Idea) Status() IdeaStatus        { return i.status }
func (i *Idea) Tier() int                 { return i.tier }
func (i *Idea) TotalXP() int              { return i.totalXP }
func (i *Idea) TotalVotes() int           { return i.totalVotes }
func (i *Idea) Losses() int               { return i.losses }
func (i *Idea) IsChampion() bool          { return i.isChampion }
func (i *Idea) IsNew() bool               { return i.isNew }
func (i *Idea) SubmittedAt() time.Time    { return i.submittedAt }

// EnterVoting flips SUBMITTED/ADVANCING -> IN_VOTING at the given tier,
// as part of cell formation.
func (i *Idea) EnterVoting(tier int) {
	i.status = IdeaStatusInVoting
	i.tier = tier
}

// Advance marks the idea as a cell winner, eligible for the next tier.
func (i *Idea) Advance(tier int) {
	i.status = IdeaStatusAdvancing
	i.tier = tier
}

// Eliminate marks the idea as out of the tournament; losses increments
// only for tier-1 eliminations.
func (i *Idea) Eliminate(tier int) {
	i.status = IdeaStatusEliminated
	if tier == 1 {
		i.losses++
	}
}

// CrownWinner marks the idea as the terminal winner / champion.
func (i *Idea) CrownWinner(tier int) {
	i.status = IdeaStatusWinner
	i.tier = tier
	i.isChampion = true
}

// BecomeDefending is the rolling-mode transition for a reigning champion
// re-entering ACCUMULATING: WINNER -> DEFENDING.
func (i *Idea) BecomeDefending() {
	i.status = IdeaStatusDefending
}

// Bench excludes a repeat loser from future rolling-mode rounds.
func (i *Idea) Bench() {
	i.status = IdeaStatusBenched
}

// AddVoteTotals accumulates tally results onto the idea's running totals.
func (i *Idea) AddVoteTotals(xp, voters int) {
	i.totalXP += xp
	i.totalVotes += voters
}
