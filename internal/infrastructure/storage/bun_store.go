package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/fractalvote/deliberation/internal/domain"
	engerrors "github.com/fractalvote/deliberation/internal/domain/errors"
	"github.com/fractalvote/deliberation/internal/infrastructure/storage/models"
)

// BunStore is the Postgres-backed domain.Store, built on the
// bun+pgdialect+pgdriver stack: every multi-row mutation runs inside
// db.RunInTx, conditional transitions are a single `UPDATE ... WHERE`
// inspected for RowsAffected, and insertions lean on `ON CONFLICT` to
// make duplicate calls no-ops.
type BunStore struct {
	db *bun.DB
}

// Open connects to Postgres via pgdriver using dsn and wraps it in bun.
func Open(dsn string) (*BunStore, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	return &BunStore{db: db}, nil
}

func NewBunStore(db *bun.DB) *BunStore { return &BunStore{db: db} }

func (s *BunStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *BunStore) Close() error                   { return s.db.Close() }

func (s *BunStore) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, _ bun.Tx) error {
		return fn(ctx)
	})
}

func wrapErr(err error, code, msg string) error {
	if err == nil {
		return nil
	}
	if err == sql.ErrNoRows {
		return engerrors.NotFound(code, msg)
	}
	return engerrors.Transient(msg, err)
}

// --- DeliberationStore ---

func (s *BunStore) SaveDeliberation(ctx context.Context, d *domain.Deliberation) error {
	row := toDeliberationModel(d)
	_, err := s.db.NewInsert().Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("phase = EXCLUDED.phase").
		Set("current_tier = EXCLUDED.current_tier").
		Set("champion_id = EXCLUDED.champion_id").
		Set("challenge_round = EXCLUDED.challenge_round").
		Set("completed_at = EXCLUDED.completed_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return wrapErr(err, engerrors.CodeEntityNotFound, "save deliberation")
}

func (s *BunStore) GetDeliberation(ctx context.Context, id uuid.UUID) (*domain.Deliberation, error) {
	row := new(models.Deliberation)
	err := s.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx)
	if err != nil {
		return nil, wrapErr(err, engerrors.CodeEntityNotFound, "deliberation not found")
	}
	return fromDeliberationModel(row), nil
}

func (s *BunStore) ListDeliberationsByPhase(ctx context.Context, phase domain.Phase) ([]*domain.Deliberation, error) {
	var rows []*models.Deliberation
	if err := s.db.NewSelect().Model(&rows).Where("phase = ?", string(phase)).Scan(ctx); err != nil {
		return nil, wrapErr(err, "", "list deliberations by phase")
	}
	out := make([]*domain.Deliberation, len(rows))
	for i, r := range rows {
		out[i] = fromDeliberationModel(r)
	}
	return out, nil
}

func (s *BunStore) TryStartVoting(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	res, err := s.db.NewUpdate().Model((*models.Deliberation)(nil)).
		Set("phase = ?", string(domain.PhaseVoting)).
		Set("current_tier = 1").
		Set("current_tier_started_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ? AND phase = ?", id, string(domain.PhaseSubmission)).
		Exec(ctx)
	return rowsAffected(res, err)
}

func (s *BunStore) TryAdvanceTier(ctx context.Context, id uuid.UUID, expectedCurrentTier, newTier int, now time.Time) (bool, error) {
	res, err := s.db.NewUpdate().Model((*models.Deliberation)(nil)).
		Set("current_tier = ?", newTier).
		Set("current_tier_started_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ? AND current_tier = ?", id, expectedCurrentTier).
		Exec(ctx)
	return rowsAffected(res, err)
}

func (s *BunStore) TryDeclareChampion(ctx context.Context, id, ideaID uuid.UUID, now time.Time, accumulationEndsAt *time.Time) (bool, error) {
	q := s.db.NewUpdate().Model((*models.Deliberation)(nil)).
		Set("champion_id = ?", ideaID).
		Set("updated_at = ?", now)
	if accumulationEndsAt != nil {
		q = q.Set("phase = ?", string(domain.PhaseAccumulating)).Set("accumulation_ends_at = ?", accumulationEndsAt)
	} else {
		q = q.Set("phase = ?", string(domain.PhaseCompleted)).Set("completed_at = ?", now)
	}
	res, err := q.Where("id = ? AND champion_id IS NULL", id).Exec(ctx)
	return rowsAffected(res, err)
}

func (s *BunStore) TryStartChallengeRound(ctx context.Context, id uuid.UUID, expectedRound int, now time.Time) (bool, error) {
	res, err := s.db.NewUpdate().Model((*models.Deliberation)(nil)).
		Set("phase = ?", string(domain.PhaseVoting)).
		Set("current_tier = 1").
		Set("current_tier_started_at = ?", now).
		Set("challenge_round = challenge_round + 1").
		Set("accumulation_ends_at = NULL").
		Set("updated_at = ?", now).
		Where("id = ? AND phase = ? AND challenge_round = ?", id, string(domain.PhaseAccumulating), expectedRound).
		Exec(ctx)
	return rowsAffected(res, err)
}

func (s *BunStore) TryReplaceChampion(ctx context.Context, id, ideaID uuid.UUID, now time.Time) (bool, error) {
	res, err := s.db.NewUpdate().Model((*models.Deliberation)(nil)).
		Set("champion_id = ?", ideaID).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Exec(ctx)
	return rowsAffected(res, err)
}

func (s *BunStore) JoinDeliberation(ctx context.Context, deliberationID, userID uuid.UUID, now time.Time) (bool, error) {
	res, err := s.db.NewInsert().Model(&models.Member{DeliberationID: deliberationID, UserID: userID, JoinedAt: now}).
		On("CONFLICT (deliberation_id, user_id) DO NOTHING").
		Exec(ctx)
	return rowsAffected(res, err)
}

func (s *BunStore) ListMembers(ctx context.Context, deliberationID uuid.UUID) ([]uuid.UUID, error) {
	var rows []*models.Member
	if err := s.db.NewSelect().Model(&rows).Where("deliberation_id = ?", deliberationID).Order("joined_at ASC").Scan(ctx); err != nil {
		return nil, wrapErr(err, "", "list members")
	}
	out := make([]uuid.UUID, len(rows))
	for i, r := range rows {
		out[i] = r.UserID
	}
	return out, nil
}

func (s *BunStore) CountMembers(ctx context.Context, deliberationID uuid.UUID) (int, error) {
	n, err := s.db.NewSelect().Model((*models.Member)(nil)).Where("deliberation_id = ?", deliberationID).Count(ctx)
	return n, wrapErr(err, "", "count members")
}

// --- IdeaStore ---

func (s *BunStore) InsertIdea(ctx context.Context, idea *domain.Idea) error {
	row := toIdeaModel(idea)
	_, err := s.db.NewInsert().Model(row).Exec(ctx)
	return wrapErr(err, "", "insert idea")
}

func (s *BunStore) GetIdea(ctx context.Context, id uuid.UUID) (*domain.Idea, error) {
	row := new(models.Idea)
	if err := s.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, wrapErr(err, engerrors.CodeEntityNotFound, "idea not found")
	}
	return fromIdeaModel(row), nil
}

func (s *BunStore) ListIdeasByStatus(ctx context.Context, deliberationID uuid.UUID, status domain.IdeaStatus) ([]*domain.Idea, error) {
	var rows []*models.Idea
	err := s.db.NewSelect().Model(&rows).
		Where("deliberation_id = ? AND status = ?", deliberationID, string(status)).
		Order("submitted_at ASC").Scan(ctx)
	if err != nil {
		return nil, wrapErr(err, "", "list ideas by status")
	}
	return fromIdeaModels(rows), nil
}

func (s *BunStore) ListIdeasByStatusAndTier(ctx context.Context, deliberationID uuid.UUID, status domain.IdeaStatus, tier int) ([]*domain.Idea, error) {
	var rows []*models.Idea
	err := s.db.NewSelect().Model(&rows).
		Where("deliberation_id = ? AND status = ? AND tier = ?", deliberationID, string(status), tier).
		Order("submitted_at ASC").Scan(ctx)
	if err != nil {
		return nil, wrapErr(err, "", "list ideas by status and tier")
	}
	return fromIdeaModels(rows), nil
}

func (s *BunStore) CountIdeas(ctx context.Context, deliberationID uuid.UUID) (int, error) {
	n, err := s.db.NewSelect().Model((*models.Idea)(nil)).Where("deliberation_id = ?", deliberationID).Count(ctx)
	return n, wrapErr(err, "", "count ideas")
}

func (s *BunStore) TryClaimIdea(ctx context.Context, id uuid.UUID, fromStatus, toStatus domain.IdeaStatus, tier int) (bool, error) {
	res, err := s.db.NewUpdate().Model((*models.Idea)(nil)).
		Set("status = ?", string(toStatus)).
		Set("tier = ?", tier).
		Where("id = ? AND status = ?", id, string(fromStatus)).
		Exec(ctx)
	return rowsAffected(res, err)
}

func (s *BunStore) UpdateIdeaOutcome(ctx context.Context, id uuid.UUID, status domain.IdeaStatus, tier int, lossesDelta int) error {
	_, err := s.db.NewUpdate().Model((*models.Idea)(nil)).
		Set("status = ?", string(status)).
		Set("tier = ?", tier).
		Set("losses = losses + ?", lossesDelta).
		Where("id = ?", id).
		Exec(ctx)
	return wrapErr(err, "", "update idea outcome")
}

func (s *BunStore) AddIdeaVoteTotals(ctx context.Context, id uuid.UUID, xpDelta, voterDelta int) error {
	_, err := s.db.NewUpdate().Model((*models.Idea)(nil)).
		Set("total_xp = total_xp + ?", xpDelta).
		Set("total_votes = total_votes + ?", voterDelta).
		Where("id = ?", id).
		Exec(ctx)
	return wrapErr(err, "", "add idea vote totals")
}

func (s *BunStore) SetIdeaChampion(ctx context.Context, id uuid.UUID, isChampion bool) error {
	_, err := s.db.NewUpdate().Model((*models.Idea)(nil)).
		Set("is_champion = ?", isChampion).
		Where("id = ?", id).
		Exec(ctx)
	return wrapErr(err, "", "set idea champion")
}

func (s *BunStore) SetIdeaDefending(ctx context.Context, id uuid.UUID) error {
	return s.UpdateIdeaOutcome(ctx, id, domain.IdeaStatusDefending, 0, 0)
}

func (s *BunStore) BenchIdea(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.NewUpdate().Model((*models.Idea)(nil)).
		Set("status = ?", string(domain.IdeaStatusBenched)).
		Where("id = ?", id).
		Exec(ctx)
	return wrapErr(err, "", "bench idea")
}

// --- CellStore ---

func (s *BunStore) CreateCell(ctx context.Context, cell *domain.Cell) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := toCellModel(cell)
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return err
		}
		ideaRows := make([]*models.CellIdea, 0, len(cell.IdeaIDs()))
		for _, ideaID := range cell.IdeaIDs() {
			ideaRows = append(ideaRows, &models.CellIdea{CellID: cell.ID(), IdeaID: ideaID})
		}
		if len(ideaRows) > 0 {
			if _, err := tx.NewInsert().Model(&ideaRows).Exec(ctx); err != nil {
				return err
			}
		}
		participantRows := make([]*models.CellParticipant, 0, len(cell.ParticipantIDs()))
		for _, userID := range cell.ParticipantIDs() {
			participantRows = append(participantRows, &models.CellParticipant{
				CellID: cell.ID(), UserID: userID, IsConflict: cell.IsAuthorConflict(userID),
			})
		}
		if len(participantRows) > 0 {
			if _, err := tx.NewInsert().Model(&participantRows).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BunStore) GetCell(ctx context.Context, id uuid.UUID) (*domain.Cell, error) {
	row := new(models.Cell)
	if err := s.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, wrapErr(err, engerrors.CodeEntityNotFound, "cell not found")
	}
	ideaIDs, err := s.cellIdeaIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	participantIDs, err := s.cellParticipantIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	return fromCellModel(row, ideaIDs, participantIDs), nil
}

func (s *BunStore) cellIdeaIDs(ctx context.Context, cellID uuid.UUID) ([]uuid.UUID, error) {
	var rows []*models.CellIdea
	if err := s.db.NewSelect().Model(&rows).Where("cell_id = ?", cellID).Scan(ctx); err != nil {
		return nil, wrapErr(err, "", "list cell ideas")
	}
	out := make([]uuid.UUID, len(rows))
	for i, r := range rows {
		out[i] = r.IdeaID
	}
	return out, nil
}

func (s *BunStore) cellParticipantIDs(ctx context.Context, cellID uuid.UUID) ([]uuid.UUID, error) {
	var rows []*models.CellParticipant
	if err := s.db.NewSelect().Model(&rows).Where("cell_id = ?", cellID).Scan(ctx); err != nil {
		return nil, wrapErr(err, "", "list cell participants")
	}
	out := make([]uuid.UUID, len(rows))
	for i, r := range rows {
		out[i] = r.UserID
	}
	return out, nil
}

func (s *BunStore) ListCellsByTier(ctx context.Context, deliberationID uuid.UUID, tier int) ([]*domain.Cell, error) {
	var rows []*models.Cell
	err := s.db.NewSelect().Model(&rows).Where("deliberation_id = ? AND tier = ?", deliberationID, tier).Scan(ctx)
	if err != nil {
		return nil, wrapErr(err, "", "list cells by tier")
	}
	return s.hydrateCells(ctx, rows)
}

func (s *BunStore) ListOpenCellsByTier(ctx context.Context, deliberationID uuid.UUID, tier int) ([]*domain.Cell, error) {
	var rows []*models.Cell
	err := s.db.NewSelect().Model(&rows).
		Where("deliberation_id = ? AND tier = ? AND status = ?", deliberationID, tier, string(domain.CellStatusVoting)).
		Scan(ctx)
	if err != nil {
		return nil, wrapErr(err, "", "list open cells by tier")
	}
	return s.hydrateCells(ctx, rows)
}

func (s *BunStore) hydrateCells(ctx context.Context, rows []*models.Cell) ([]*domain.Cell, error) {
	out := make([]*domain.Cell, len(rows))
	for i, r := range rows {
		ideaIDs, err := s.cellIdeaIDs(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		participantIDs, err := s.cellParticipantIDs(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		out[i] = fromCellModel(r, ideaIDs, participantIDs)
	}
	return out, nil
}

func (s *BunStore) CountVotingCellsByTier(ctx context.Context, deliberationID uuid.UUID, tier int) (int, error) {
	n, err := s.db.NewSelect().Model((*models.Cell)(nil)).
		Where("deliberation_id = ? AND tier = ? AND status = ?", deliberationID, tier, string(domain.CellStatusVoting)).
		Count(ctx)
	return n, wrapErr(err, "", "count voting cells by tier")
}

func (s *BunStore) NextBatchIndex(ctx context.Context, deliberationID uuid.UUID, tier int) (int, error) {
	max, err := s.db.NewSelect().Model((*models.Cell)(nil)).
		Where("deliberation_id = ? AND tier = ?", deliberationID, tier).
		ColumnExpr("COALESCE(MAX(batch), -1)").Count(ctx)
	if err != nil {
		return 0, wrapErr(err, "", "next batch index")
	}
	return max + 1, nil
}

func (s *BunStore) TryCompleteCell(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	res, err := s.db.NewUpdate().Model((*models.Cell)(nil)).
		Set("status = ?", string(domain.CellStatusCompleted)).
		Set("completed_at = ?", now).
		Where("id = ? AND status != ?", id, string(domain.CellStatusCompleted)).
		Exec(ctx)
	return rowsAffected(res, err)
}

func (s *BunStore) AddParticipant(ctx context.Context, cellID, userID uuid.UUID) error {
	_, err := s.db.NewInsert().Model(&models.CellParticipant{CellID: cellID, UserID: userID}).
		On("CONFLICT (cell_id, user_id) DO NOTHING").
		Exec(ctx)
	return wrapErr(err, "", "add participant")
}

func (s *BunStore) ListCellsWithIdea(ctx context.Context, deliberationID, ideaID uuid.UUID) ([]*domain.Cell, error) {
	var ciRows []*models.CellIdea
	if err := s.db.NewSelect().Model(&ciRows).Where("idea_id = ?", ideaID).Scan(ctx); err != nil {
		return nil, wrapErr(err, "", "list cells with idea")
	}
	out := make([]*domain.Cell, 0, len(ciRows))
	for _, ci := range ciRows {
		cell, err := s.GetCell(ctx, ci.CellID)
		if err != nil {
			continue
		}
		if cell.DeliberationID() == deliberationID {
			out = append(out, cell)
		}
	}
	return out, nil
}

func (s *BunStore) ListCellsPastDeadline(ctx context.Context, now time.Time, limit int) ([]*domain.Cell, error) {
	var rows []*models.Cell
	q := s.db.NewSelect().Model(&rows).
		Where("status = ? AND voting_deadline IS NOT NULL AND voting_deadline <= ?", string(domain.CellStatusVoting), now).
		Order("voting_deadline ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, wrapErr(err, "", "list cells past deadline")
	}
	return s.hydrateCells(ctx, rows)
}

// --- VoteStore ---

func (s *BunStore) InsertVotes(ctx context.Context, votes []*domain.Vote) error {
	if len(votes) == 0 {
		return nil
	}
	rows := make([]*models.Vote, len(votes))
	for i, v := range votes {
		rows[i] = &models.Vote{ID: v.ID, CellID: v.CellID, UserID: v.UserID, IdeaID: v.IdeaID, XPPoints: v.XPPoints, CreatedAt: v.CreatedAt}
	}
	_, err := s.db.NewInsert().Model(&rows).Exec(ctx)
	return wrapErr(err, "", "insert votes")
}

func (s *BunStore) ListVotesByCell(ctx context.Context, cellID uuid.UUID) ([]*domain.Vote, error) {
	var rows []*models.Vote
	if err := s.db.NewSelect().Model(&rows).Where("cell_id = ?", cellID).Scan(ctx); err != nil {
		return nil, wrapErr(err, "", "list votes by cell")
	}
	out := make([]*domain.Vote, len(rows))
	for i, r := range rows {
		out[i] = &domain.Vote{ID: r.ID, CellID: r.CellID, UserID: r.UserID, IdeaID: r.IdeaID, XPPoints: r.XPPoints, CreatedAt: r.CreatedAt}
	}
	return out, nil
}

func (s *BunStore) HasVoted(ctx context.Context, cellID, userID uuid.UUID) (bool, error) {
	exists, err := s.db.NewSelect().Model((*models.Vote)(nil)).
		Where("cell_id = ? AND user_id = ?", cellID, userID).Exists(ctx)
	return exists, wrapErr(err, "", "has voted")
}

func (s *BunStore) CountDistinctVoters(ctx context.Context, cellID uuid.UUID) (int, error) {
	n, err := s.db.NewSelect().Model((*models.Vote)(nil)).
		ColumnExpr("DISTINCT user_id").
		Where("cell_id = ?", cellID).Count(ctx)
	return n, wrapErr(err, "", "count distinct voters")
}

func (s *BunStore) SumXPByIdea(ctx context.Context, cellID uuid.UUID) (map[uuid.UUID]int, error) {
	var rows []struct {
		IdeaID uuid.UUID `bun:"idea_id"`
		Total  int       `bun:"total"`
	}
	err := s.db.NewSelect().Model((*models.Vote)(nil)).
		ColumnExpr("idea_id, SUM(xp_points) AS total").
		Where("cell_id = ?", cellID).
		Group("idea_id").
		Scan(ctx, &rows)
	if err != nil {
		return nil, wrapErr(err, "", "sum xp by idea")
	}
	out := make(map[uuid.UUID]int, len(rows))
	for _, r := range rows {
		out[r.IdeaID] = r.Total
	}
	return out, nil
}

// --- CommentStore ---

func (s *BunStore) InsertComment(ctx context.Context, comment *domain.Comment) error {
	row := toCommentModel(comment)
	_, err := s.db.NewInsert().Model(row).Exec(ctx)
	return wrapErr(err, "", "insert comment")
}

func (s *BunStore) GetComment(ctx context.Context, id uuid.UUID) (*domain.Comment, error) {
	row := new(models.Comment)
	if err := s.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, wrapErr(err, engerrors.CodeEntityNotFound, "comment not found")
	}
	return fromCommentModel(row), nil
}

func (s *BunStore) ListCommentsByCell(ctx context.Context, cellID uuid.UUID) ([]*domain.Comment, error) {
	var rows []*models.Comment
	err := s.db.NewSelect().Model(&rows).
		Where("cell_id = ? AND is_removed = FALSE", cellID).
		Order("created_at ASC").Scan(ctx)
	if err != nil {
		return nil, wrapErr(err, "", "list comments by cell")
	}
	return fromCommentModels(rows), nil
}

func (s *BunStore) ListTopCommentsByIdea(ctx context.Context, ideaID uuid.UUID, limit int) ([]*domain.Comment, error) {
	var rows []*models.Comment
	q := s.db.NewSelect().Model(&rows).
		Where("idea_id = ? AND is_removed = FALSE AND spread_count > 0", ideaID).
		Order("upvote_count DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, wrapErr(err, "", "list top comments by idea")
	}
	return fromCommentModels(rows), nil
}

func (s *BunStore) TryInsertUpvote(ctx context.Context, commentID, userID uuid.UUID, now time.Time) (bool, error) {
	res, err := s.db.NewInsert().Model(&models.CommentUpvote{CommentID: commentID, UserID: userID, CreatedAt: now}).
		On("CONFLICT (comment_id, user_id) DO NOTHING").
		Exec(ctx)
	return rowsAffected(res, err)
}

func (s *BunStore) IncrementUpvoteCount(ctx context.Context, commentID uuid.UUID) (int, error) {
	var row models.Comment
	err := s.db.NewUpdate().Model(&row).
		Set("upvote_count = upvote_count + 1").
		Where("id = ?", commentID).
		Returning("upvote_count").
		Exec(ctx, &row)
	if err != nil {
		return 0, wrapErr(err, "", "increment upvote count")
	}
	return row.UpvoteCount, nil
}

func (s *BunStore) TrySpreadComment(ctx context.Context, commentID uuid.UUID, currentTier int) (bool, error) {
	res, err := s.db.NewUpdate().Model((*models.Comment)(nil)).
		Set("spread_count = spread_count + 1").
		Set("reach_tier = GREATEST(reach_tier, ?)", currentTier).
		Where("id = ?", commentID).
		Exec(ctx)
	return rowsAffected(res, err)
}

// --- PredictionStore ---

func (s *BunStore) InsertPrediction(ctx context.Context, p *domain.Prediction) error {
	row := toPredictionModel(p)
	_, err := s.db.NewInsert().Model(row).
		On("CONFLICT (user_id, deliberation_id, tier_predicted_at, predicted_idea_id) DO NOTHING").
		Exec(ctx)
	return wrapErr(err, "", "insert prediction")
}

func (s *BunStore) ListPredictionsForIdeasAtTier(ctx context.Context, deliberationID uuid.UUID, tier int, ideaIDs []uuid.UUID) ([]*domain.Prediction, error) {
	if len(ideaIDs) == 0 {
		return nil, nil
	}
	var rows []*models.Prediction
	err := s.db.NewSelect().Model(&rows).
		Where("deliberation_id = ? AND tier_predicted_at = ? AND predicted_idea_id IN (?)", deliberationID, tier, bun.In(ideaIDs)).
		Scan(ctx)
	if err != nil {
		return nil, wrapErr(err, "", "list predictions for ideas at tier")
	}
	return fromPredictionModels(rows), nil
}

func (s *BunStore) ResolvePredictionImmediate(ctx context.Context, userID, deliberationID uuid.UUID, tier int, ideaID uuid.UUID, won bool) error {
	_, err := s.db.NewUpdate().Model((*models.Prediction)(nil)).
		Set("won_immediate = ?", won).
		Where("user_id = ? AND deliberation_id = ? AND tier_predicted_at = ? AND predicted_idea_id = ?", userID, deliberationID, tier, ideaID).
		Exec(ctx)
	return wrapErr(err, "", "resolve prediction immediate")
}

func (s *BunStore) ListPredictionsForDeliberation(ctx context.Context, deliberationID uuid.UUID) ([]*domain.Prediction, error) {
	var rows []*models.Prediction
	if err := s.db.NewSelect().Model(&rows).Where("deliberation_id = ?", deliberationID).Scan(ctx); err != nil {
		return nil, wrapErr(err, "", "list predictions for deliberation")
	}
	return fromPredictionModels(rows), nil
}

func (s *BunStore) ResolvePredictionFinal(ctx context.Context, userID, deliberationID uuid.UUID, ideaID uuid.UUID, becameChampion bool) error {
	_, err := s.db.NewUpdate().Model((*models.Prediction)(nil)).
		Set("idea_became_champion = ?", becameChampion).
		Where("user_id = ? AND deliberation_id = ? AND predicted_idea_id = ?", userID, deliberationID, ideaID).
		Exec(ctx)
	return wrapErr(err, "", "resolve prediction final")
}

// rowsAffected turns a sql.Result + error pair into the engine's
// conditional-update signature: (wonTheRace bool, err error). Any
// genuine execution error is surfaced; zero rows affected means
// Conflict, which callers treat as "already done" rather than an error.
func rowsAffected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, wrapErr(err, "", "conditional update")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, engerrors.Transient("reading rows affected", err)
	}
	return n > 0, nil
}
