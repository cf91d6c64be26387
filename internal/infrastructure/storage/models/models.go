// Package models defines the Bun ORM row shapes persisted by BunStore.
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Deliberation struct {
	bun.BaseModel `bun:"table:deliberations,alias:d"`

	ID                    uuid.UUID  `bun:"id,pk,type:uuid"`
	CreatorID             uuid.UUID  `bun:"creator_id,notnull,type:uuid"`
	Question              string     `bun:"question,notnull"`
	Description           string     `bun:"description"`
	Organization          string     `bun:"organization"`
	Phase                 string     `bun:"phase,notnull"`
	CurrentTier           int        `bun:"current_tier,notnull"`
	CellSize              int        `bun:"cell_size,notnull"`
	XPBudget              int        `bun:"xp_budget,notnull"`
	AllocationMode        string     `bun:"allocation_mode,notnull"`
	ContinuousFlow        bool       `bun:"continuous_flow,notnull"`
	AccumulationEnabled   bool       `bun:"accumulation_enabled,notnull"`
	SubmissionEndsAt      *time.Time `bun:"submission_ends_at"`
	VotingTimeoutMs       int64      `bun:"voting_timeout_ms,notnull"`
	SecondVoteTimeoutMs   *int64     `bun:"second_vote_timeout_ms"`
	AccumulationTimeoutMs *int64     `bun:"accumulation_timeout_ms"`
	CurrentTierStartedAt  *time.Time `bun:"current_tier_started_at"`
	AccumulationEndsAt    *time.Time `bun:"accumulation_ends_at"`
	IdeaGoal              *int       `bun:"idea_goal"`
	ParticipantGoal       *int       `bun:"participant_goal"`
	ChampionID            *uuid.UUID `bun:"champion_id,type:uuid"`
	ChallengeRound        int        `bun:"challenge_round,notnull"`
	CompletedAt           *time.Time `bun:"completed_at"`
	CreatedAt             time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt             time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

type Member struct {
	bun.BaseModel `bun:"table:deliberation_members,alias:mb"`

	DeliberationID uuid.UUID `bun:"deliberation_id,pk,type:uuid"`
	UserID         uuid.UUID `bun:"user_id,pk,type:uuid"`
	JoinedAt       time.Time `bun:"joined_at,notnull,default:current_timestamp"`
}

type Idea struct {
	bun.BaseModel `bun:"table:ideas,alias:i"`

	ID             uuid.UUID `bun:"id,pk,type:uuid"`
	DeliberationID uuid.UUID `bun:"deliberation_id,notnull,type:uuid"`
	AuthorID       uuid.UUID `bun:"author_id,notnull,type:uuid"`
	Text           string    `bun:"text,notnull"`
	Status         string    `bun:"status,notnull"`
	Tier           int       `bun:"tier,notnull"`
	TotalXP        int       `bun:"total_xp,notnull"`
	TotalVotes     int       `bun:"total_votes,notnull"`
	Losses         int       `bun:"losses,notnull"`
	IsChampion     bool      `bun:"is_champion,notnull"`
	IsNew          bool      `bun:"is_new,notnull"`
	SubmittedAt    time.Time `bun:"submitted_at,notnull,default:current_timestamp"`
}

type Cell struct {
	bun.BaseModel `bun:"table:cells,alias:c"`

	ID                uuid.UUID  `bun:"id,pk,type:uuid"`
	DeliberationID    uuid.UUID  `bun:"deliberation_id,notnull,type:uuid"`
	Tier              int        `bun:"tier,notnull"`
	Batch             int        `bun:"batch,notnull"`
	Status            string     `bun:"status,notnull"`
	VotingDeadline    *time.Time `bun:"voting_deadline"`
	CompletedAt       *time.Time `bun:"completed_at"`
	ConflictOverrides int        `bun:"conflict_overrides,notnull"`
	CreatedAt         time.Time  `bun:"created_at,notnull,default:current_timestamp"`
}

type CellIdea struct {
	bun.BaseModel `bun:"table:cell_ideas,alias:ci"`

	CellID   uuid.UUID `bun:"cell_id,pk,type:uuid"`
	IdeaID   uuid.UUID `bun:"idea_id,pk,type:uuid"`
	IsAuthor bool      `bun:"is_author,notnull"`
}

type CellParticipant struct {
	bun.BaseModel `bun:"table:cell_participants,alias:cp"`

	CellID    uuid.UUID `bun:"cell_id,pk,type:uuid"`
	UserID    uuid.UUID `bun:"user_id,pk,type:uuid"`
	IsConflict bool     `bun:"is_conflict,notnull"`
	JoinedAt  time.Time `bun:"joined_at,notnull,default:current_timestamp"`
}

type Vote struct {
	bun.BaseModel `bun:"table:votes,alias:v"`

	ID        uuid.UUID `bun:"id,pk,type:uuid"`
	CellID    uuid.UUID `bun:"cell_id,notnull,type:uuid"`
	UserID    uuid.UUID `bun:"user_id,notnull,type:uuid"`
	IdeaID    uuid.UUID `bun:"idea_id,notnull,type:uuid"`
	XPPoints  int       `bun:"xp_points,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

type Comment struct {
	bun.BaseModel `bun:"table:comments,alias:cm"`

	ID          uuid.UUID  `bun:"id,pk,type:uuid"`
	CellID      uuid.UUID  `bun:"cell_id,notnull,type:uuid"`
	UserID      uuid.UUID  `bun:"user_id,notnull,type:uuid"`
	IdeaID      *uuid.UUID `bun:"idea_id,type:uuid"`
	Text        string     `bun:"text,notnull"`
	UpvoteCount int        `bun:"upvote_count,notnull"`
	SpreadCount int        `bun:"spread_count,notnull"`
	ReachTier   int        `bun:"reach_tier,notnull"`
	IsRemoved   bool       `bun:"is_removed,notnull"`
	ReplyToID   *uuid.UUID `bun:"reply_to_id,type:uuid"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
}

type CommentUpvote struct {
	bun.BaseModel `bun:"table:comment_upvotes,alias:cu"`

	CommentID uuid.UUID `bun:"comment_id,pk,type:uuid"`
	UserID    uuid.UUID `bun:"user_id,pk,type:uuid"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

type Prediction struct {
	bun.BaseModel `bun:"table:predictions,alias:pr"`

	UserID             uuid.UUID `bun:"user_id,pk,type:uuid"`
	DeliberationID     uuid.UUID `bun:"deliberation_id,pk,type:uuid"`
	TierPredictedAt    int       `bun:"tier_predicted_at,pk"`
	PredictedIdeaID    uuid.UUID `bun:"predicted_idea_id,pk,type:uuid"`
	WonImmediate       *bool     `bun:"won_immediate"`
	IdeaBecameChampion *bool     `bun:"idea_became_champion"`
	CreatedAt          time.Time `bun:"created_at,notnull,default:current_timestamp"`
}
