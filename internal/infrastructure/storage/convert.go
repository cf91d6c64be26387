package storage

import (
	"github.com/google/uuid"

	"github.com/fractalvote/deliberation/internal/domain"
	"github.com/fractalvote/deliberation/internal/infrastructure/storage/models"
)

func toDeliberationModel(d *domain.Deliberation) *models.Deliberation {
	return &models.Deliberation{
		ID:                    d.ID(),
		CreatorID:             d.CreatorID(),
		Question:              d.Question(),
		Description:           d.Description(),
		Organization:          d.Organization(),
		Phase:                 string(d.Phase()),
		CurrentTier:           d.CurrentTier(),
		CellSize:              d.CellSize(),
		XPBudget:              d.XPBudget(),
		AllocationMode:        string(d.AllocationMode()),
		ContinuousFlow:        d.ContinuousFlow(),
		AccumulationEnabled:   d.AccumulationEnabled(),
		SubmissionEndsAt:      d.SubmissionEndsAt(),
		VotingTimeoutMs:       d.VotingTimeoutMs(),
		SecondVoteTimeoutMs:   d.SecondVoteTimeoutMs(),
		AccumulationTimeoutMs: d.AccumulationTimeoutMs(),
		CurrentTierStartedAt:  d.CurrentTierStartedAt(),
		AccumulationEndsAt:    d.AccumulationEndsAt(),
		IdeaGoal:              d.IdeaGoal(),
		ParticipantGoal:       d.ParticipantGoal(),
		ChampionID:            d.ChampionID(),
		ChallengeRound:        d.ChallengeRound(),
		CompletedAt:           d.CompletedAt(),
		CreatedAt:             d.CreatedAt(),
		UpdatedAt:             d.UpdatedAt(),
	}
}

func fromDeliberationModel(r *models.Deliberation) *domain.Deliberation {
	return domain.ReconstructDeliberation(
		r.ID, r.CreatorID, r.Question, r.Description, r.Organization,
		domain.Phase(r.Phase), r.CurrentTier, r.CellSize, r.XPBudget,
		domain.AllocationMode(r.AllocationMode), r.ContinuousFlow, r.AccumulationEnabled,
		r.SubmissionEndsAt, r.VotingTimeoutMs,
		r.SecondVoteTimeoutMs, r.AccumulationTimeoutMs,
		r.CurrentTierStartedAt, r.AccumulationEndsAt,
		r.IdeaGoal, r.ParticipantGoal,
		r.ChampionID, r.ChallengeRound, r.CompletedAt,
		r.CreatedAt, r.UpdatedAt,
	)
}

func toIdeaModel(i *domain.Idea) *models.Idea {
	return &models.Idea{
		ID:             i.ID(),
		DeliberationID: i.DeliberationID(),
		AuthorID:       i.AuthorID(),
		Text:           i.Text(),
		Status:         string(i.Status()),
		Tier:           i.Tier(),
		TotalXP:        i.TotalXP(),
		TotalVotes:     i.TotalVotes(),
		Losses:         i.Losses(),
		IsChampion:     i.IsChampion(),
		IsNew:          i.IsNew(),
		SubmittedAt:    i.SubmittedAt(),
	}
}

func fromIdeaModel(r *models.Idea) *domain.Idea {
	return domain.ReconstructIdea(
		r.ID, r.DeliberationID, r.AuthorID, r.Text, domain.IdeaStatus(r.Status),
		r.Tier, r.TotalXP, r.TotalVotes, r.Losses, r.IsChampion, r.IsNew, r.SubmittedAt,
	)
}

func fromIdeaModels(rows []*models.Idea) []*domain.Idea {
	out := make([]*domain.Idea, len(rows))
	for i, r := range rows {
		out[i] = fromIdeaModel(r)
	}
	return out
}

func toCellModel(c *domain.Cell) *models.Cell {
	return &models.Cell{
		ID:                c.ID(),
		DeliberationID:    c.DeliberationID(),
		Tier:              c.Tier(),
		Batch:             c.Batch(),
		Status:            string(c.Status()),
		VotingDeadline:    c.VotingDeadline(),
		CompletedAt:       c.CompletedAt(),
		ConflictOverrides: c.ConflictOverrides(),
		CreatedAt:         c.CreatedAt(),
	}
}

func fromCellModel(r *models.Cell, ideaIDs, participantIDs []uuid.UUID) *domain.Cell {
	return domain.ReconstructCell(
		r.ID, r.DeliberationID, r.Tier, r.Batch, domain.CellStatus(r.Status),
		r.VotingDeadline, r.CompletedAt, ideaIDs, participantIDs,
		r.ConflictOverrides, r.CreatedAt,
	)
}

func toCommentModel(c *domain.Comment) *models.Comment {
	return &models.Comment{
		ID:          c.ID(),
		CellID:      c.CellID(),
		UserID:      c.UserID(),
		IdeaID:      c.IdeaID(),
		Text:        c.Text(),
		UpvoteCount: c.UpvoteCount(),
		SpreadCount: c.SpreadCount(),
		ReachTier:   c.ReachTier(),
		IsRemoved:   c.IsRemoved(),
		ReplyToID:   c.ReplyToID(),
		CreatedAt:   c.CreatedAt(),
	}
}

func fromCommentModel(r *models.Comment) *domain.Comment {
	return domain.ReconstructComment(
		r.ID, r.CellID, r.UserID, r.IdeaID, r.Text,
		r.UpvoteCount, r.SpreadCount, r.ReachTier, r.IsRemoved, r.ReplyToID, r.CreatedAt,
	)
}

func fromCommentModels(rows []*models.Comment) []*domain.Comment {
	out := make([]*domain.Comment, len(rows))
	for i, r := range rows {
		out[i] = fromCommentModel(r)
	}
	return out
}

func toPredictionModel(p *domain.Prediction) *models.Prediction {
	return &models.Prediction{
		UserID:             p.UserID,
		DeliberationID:     p.DeliberationID,
		TierPredictedAt:    p.TierPredictedAt,
		PredictedIdeaID:    p.PredictedIdeaID,
		WonImmediate:       p.WonImmediate,
		IdeaBecameChampion: p.IdeaBecameChampion,
		CreatedAt:          p.CreatedAt,
	}
}

func fromPredictionModel(r *models.Prediction) *domain.Prediction {
	return &domain.Prediction{
		UserID:             r.UserID,
		DeliberationID:     r.DeliberationID,
		TierPredictedAt:    r.TierPredictedAt,
		PredictedIdeaID:    r.PredictedIdeaID,
		WonImmediate:       r.WonImmediate,
		IdeaBecameChampion: r.IdeaBecameChampion,
		CreatedAt:          r.CreatedAt,
	}
}

func fromPredictionModels(rows []*models.Prediction) []*domain.Prediction {
	out := make([]*domain.Prediction, len(rows))
	for i, r := range rows {
		out[i] = fromPredictionModel(r)
	}
	return out
}
