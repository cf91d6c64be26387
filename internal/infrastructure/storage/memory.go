// Package storage provides the Store Adapter implementations: a
// Postgres-backed BunStore for production and an in-memory MemoryStore
// used as a test double.
package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fractalvote/deliberation/internal/domain"
	engerrors "github.com/fractalvote/deliberation/internal/domain/errors"
)

// MemoryStore is a mutex-guarded, in-process implementation of
// domain.Store. Transact does not add its own locking — each operation
// is independently safe under concurrent access, which is sufficient
// for the property and scenario tests this store backs; true
// cross-statement isolation is BunStore's job in production.
type MemoryStore struct {
	mu sync.RWMutex

	deliberations map[uuid.UUID]*domain.Deliberation
	members       map[uuid.UUID]map[uuid.UUID]bool // deliberationID -> userID set, insertion order in memberOrder
	memberOrder   map[uuid.UUID][]uuid.UUID

	ideas map[uuid.UUID]*domain.Idea

	cells      map[uuid.UUID]*domain.Cell
	batchSeq   map[batchKey]int
	cellOrder  []uuid.UUID // preserves creation order for deterministic scans

	votes map[uuid.UUID][]*domain.Vote // cellID -> votes
	voted map[voteKey]bool             // (cellID, userID) -> true

	comments map[uuid.UUID]*domain.Comment
	upvotes  map[upvoteKey]bool

	predictions []*domain.Prediction
}

type batchKey struct {
	del  uuid.UUID
	tier int
}

type voteKey struct {
	cell, user uuid.UUID
}

type upvoteKey struct {
	comment, user uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		deliberations: make(map[uuid.UUID]*domain.Deliberation),
		members:       make(map[uuid.UUID]map[uuid.UUID]bool),
		memberOrder:   make(map[uuid.UUID][]uuid.UUID),
		ideas:         make(map[uuid.UUID]*domain.Idea),
		cells:         make(map[uuid.UUID]*domain.Cell),
		batchSeq:      make(map[batchKey]int),
		votes:         make(map[uuid.UUID][]*domain.Vote),
		voted:         make(map[voteKey]bool),
		comments:      make(map[uuid.UUID]*domain.Comment),
		upvotes:       make(map[upvoteKey]bool),
	}
}

func (s *MemoryStore) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *MemoryStore) Ping(ctx context.Context) error { return nil }
func (s *MemoryStore) Close() error                   { return nil }

// --- DeliberationStore ---

func (s *MemoryStore) SaveDeliberation(ctx context.Context, d *domain.Deliberation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliberations[d.ID()] = d
	return nil
}

func (s *MemoryStore) GetDeliberation(ctx context.Context, id uuid.UUID) (*domain.Deliberation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.deliberations[id]
	if !ok {
		return nil, engerrors.NotFound(engerrors.CodeEntityNotFound, "deliberation not found")
	}
	return d, nil
}

func (s *MemoryStore) ListDeliberationsByPhase(ctx context.Context, phase domain.Phase) ([]*domain.Deliberation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Deliberation
	for _, d := range s.deliberations {
		if d.Phase() == phase {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *MemoryStore) TryStartVoting(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliberations[id]
	if !ok {
		return false, engerrors.NotFound(engerrors.CodeEntityNotFound, "deliberation not found")
	}
	if d.Phase() != domain.PhaseSubmission {
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) TryAdvanceTier(ctx context.Context, id uuid.UUID, expectedCurrentTier, newTier int, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliberations[id]
	if !ok {
		return false, engerrors.NotFound(engerrors.CodeEntityNotFound, "deliberation not found")
	}
	if d.CurrentTier() != expectedCurrentTier {
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) TryDeclareChampion(ctx context.Context, id, ideaID uuid.UUID, now time.Time, accumulationEndsAt *time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliberations[id]
	if !ok {
		return false, engerrors.NotFound(engerrors.CodeEntityNotFound, "deliberation not found")
	}
	if d.ChampionID() != nil {
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) TryStartChallengeRound(ctx context.Context, id uuid.UUID, expectedRound int, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deliberations[id]
	if !ok {
		return false, engerrors.NotFound(engerrors.CodeEntityNotFound, "deliberation not found")
	}
	if d.Phase() != domain.PhaseAccumulating || d.ChallengeRound() != expectedRound {
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) TryReplaceChampion(ctx context.Context, id, ideaID uuid.UUID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.deliberations[id]; !ok {
		return false, engerrors.NotFound(engerrors.CodeEntityNotFound, "deliberation not found")
	}
	return true, nil
}

func (s *MemoryStore) JoinDeliberation(ctx context.Context, deliberationID, userID uuid.UUID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.members[deliberationID] == nil {
		s.members[deliberationID] = make(map[uuid.UUID]bool)
	}
	if s.members[deliberationID][userID] {
		return false, nil
	}
	s.members[deliberationID][userID] = true
	s.memberOrder[deliberationID] = append(s.memberOrder[deliberationID], userID)
	return true, nil
}

func (s *MemoryStore) ListMembers(ctx context.Context, deliberationID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]uuid.UUID(nil), s.memberOrder[deliberationID]...), nil
}

func (s *MemoryStore) CountMembers(ctx context.Context, deliberationID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members[deliberationID]), nil
}

// --- IdeaStore ---

func (s *MemoryStore) InsertIdea(ctx context.Context, idea *domain.Idea) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ideas[idea.ID()] = idea
	return nil
}

func (s *MemoryStore) GetIdea(ctx context.Context, id uuid.UUID) (*domain.Idea, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idea, ok := s.ideas[id]
	if !ok {
		return nil, engerrors.NotFound(engerrors.CodeEntityNotFound, "idea not found")
	}
	return idea, nil
}

func (s *MemoryStore) ListIdeasByStatus(ctx context.Context, deliberationID uuid.UUID, status domain.IdeaStatus) ([]*domain.Idea, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Idea
	for _, idea := range s.ideas {
		if idea.DeliberationID() == deliberationID && idea.Status() == status {
			out = append(out, idea)
		}
	}
	sortIdeasBySubmission(out)
	return out, nil
}

func (s *MemoryStore) ListIdeasByStatusAndTier(ctx context.Context, deliberationID uuid.UUID, status domain.IdeaStatus, tier int) ([]*domain.Idea, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Idea
	for _, idea := range s.ideas {
		if idea.DeliberationID() == deliberationID && idea.Status() == status && idea.Tier() == tier {
			out = append(out, idea)
		}
	}
	sortIdeasBySubmission(out)
	return out, nil
}

func sortIdeasBySubmission(ideas []*domain.Idea) {
	sort.Slice(ideas, func(i, j int) bool {
		return ideas[i].SubmittedAt().Before(ideas[j].SubmittedAt())
	})
}

func (s *MemoryStore) CountIdeas(ctx context.Context, deliberationID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, idea := range s.ideas {
		if idea.DeliberationID() == deliberationID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) TryClaimIdea(ctx context.Context, id uuid.UUID, fromStatus, toStatus domain.IdeaStatus, tier int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idea, ok := s.ideas[id]
	if !ok {
		return false, engerrors.NotFound(engerrors.CodeEntityNotFound, "idea not found")
	}
	if idea.Status() != fromStatus {
		return false, nil
	}
	s.ideas[id] = domain.ReconstructIdea(
		idea.ID(), idea.DeliberationID(), idea.AuthorID(), idea.Text(), toStatus,
		tier, idea.TotalXP(), idea.TotalVotes(), idea.Losses(), idea.IsChampion(), idea.IsNew(), idea.SubmittedAt(),
	)
	return true, nil
}

func (s *MemoryStore) UpdateIdeaOutcome(ctx context.Context, id uuid.UUID, status domain.IdeaStatus, tier int, lossesDelta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idea, ok := s.ideas[id]
	if !ok {
		return engerrors.NotFound(engerrors.CodeEntityNotFound, "idea not found")
	}
	s.ideas[id] = domain.ReconstructIdea(
		idea.ID(), idea.DeliberationID(), idea.AuthorID(), idea.Text(), status,
		tier, idea.TotalXP(), idea.TotalVotes(), idea.Losses()+lossesDelta, idea.IsChampion(), idea.IsNew(), idea.SubmittedAt(),
	)
	return nil
}

func (s *MemoryStore) AddIdeaVoteTotals(ctx context.Context, id uuid.UUID, xpDelta, voterDelta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idea, ok := s.ideas[id]
	if !ok {
		return engerrors.NotFound(engerrors.CodeEntityNotFound, "idea not found")
	}
	s.ideas[id] = domain.ReconstructIdea(
		idea.ID(), idea.DeliberationID(), idea.AuthorID(), idea.Text(), idea.Status(),
		idea.Tier(), idea.TotalXP()+xpDelta, idea.TotalVotes()+voterDelta, idea.Losses(), idea.IsChampion(), idea.IsNew(), idea.SubmittedAt(),
	)
	return nil
}

func (s *MemoryStore) SetIdeaChampion(ctx context.Context, id uuid.UUID, isChampion bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idea, ok := s.ideas[id]
	if !ok {
		return engerrors.NotFound(engerrors.CodeEntityNotFound, "idea not found")
	}
	s.ideas[id] = domain.ReconstructIdea(
		idea.ID(), idea.DeliberationID(), idea.AuthorID(), idea.Text(), idea.Status(),
		idea.Tier(), idea.TotalXP(), idea.TotalVotes(), idea.Losses(), isChampion, idea.IsNew(), idea.SubmittedAt(),
	)
	return nil
}

func (s *MemoryStore) SetIdeaDefending(ctx context.Context, id uuid.UUID) error {
	return s.UpdateIdeaOutcome(ctx, id, domain.IdeaStatusDefending, s.ideaTier(id), 0)
}

func (s *MemoryStore) BenchIdea(ctx context.Context, id uuid.UUID) error {
	return s.UpdateIdeaOutcome(ctx, id, domain.IdeaStatusBenched, s.ideaTier(id), 0)
}

func (s *MemoryStore) ideaTier(id uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idea, ok := s.ideas[id]; ok {
		return idea.Tier()
	}
	return 0
}

// --- CellStore ---

func (s *MemoryStore) CreateCell(ctx context.Context, cell *domain.Cell) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cells[cell.ID()] = cell
	s.cellOrder = append(s.cellOrder, cell.ID())
	return nil
}

func (s *MemoryStore) GetCell(ctx context.Context, id uuid.UUID) (*domain.Cell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cell, ok := s.cells[id]
	if !ok {
		return nil, engerrors.NotFound(engerrors.CodeEntityNotFound, "cell not found")
	}
	return cell, nil
}

func (s *MemoryStore) ListCellsByTier(ctx context.Context, deliberationID uuid.UUID, tier int) ([]*domain.Cell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Cell
	for _, id := range s.cellOrder {
		cell := s.cells[id]
		if cell.DeliberationID() == deliberationID && cell.Tier() == tier {
			out = append(out, cell)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListOpenCellsByTier(ctx context.Context, deliberationID uuid.UUID, tier int) ([]*domain.Cell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Cell
	for _, id := range s.cellOrder {
		cell := s.cells[id]
		if cell.DeliberationID() == deliberationID && cell.Tier() == tier && cell.Status() == domain.CellStatusVoting {
			out = append(out, cell)
		}
	}
	return out, nil
}

func (s *MemoryStore) CountVotingCellsByTier(ctx context.Context, deliberationID uuid.UUID, tier int) (int, error) {
	cells, _ := s.ListCellsByTier(ctx, deliberationID, tier)
	n := 0
	for _, c := range cells {
		if c.Status() == domain.CellStatusVoting {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) NextBatchIndex(ctx context.Context, deliberationID uuid.UUID, tier int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := batchKey{del: deliberationID, tier: tier}
	next := s.batchSeq[key]
	s.batchSeq[key] = next + 1
	return next, nil
}

func (s *MemoryStore) TryCompleteCell(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cell, ok := s.cells[id]
	if !ok {
		return false, engerrors.NotFound(engerrors.CodeEntityNotFound, "cell not found")
	}
	if cell.Status() == domain.CellStatusCompleted {
		return false, nil
	}
	cell.Complete(now)
	return true, nil
}

func (s *MemoryStore) AddParticipant(ctx context.Context, cellID, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cell, ok := s.cells[cellID]
	if !ok {
		return engerrors.NotFound(engerrors.CodeEntityNotFound, "cell not found")
	}
	if !cell.HasParticipant(userID) {
		cell.AddParticipant(userID)
	}
	return nil
}

func (s *MemoryStore) ListCellsWithIdea(ctx context.Context, deliberationID, ideaID uuid.UUID) ([]*domain.Cell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Cell
	for _, id := range s.cellOrder {
		cell := s.cells[id]
		if cell.DeliberationID() == deliberationID && cell.HasIdea(ideaID) {
			out = append(out, cell)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListCellsPastDeadline(ctx context.Context, now time.Time, limit int) ([]*domain.Cell, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Cell
	for _, id := range s.cellOrder {
		cell := s.cells[id]
		if cell.Status() != domain.CellStatusVoting {
			continue
		}
		if cell.VotingDeadline() == nil || cell.VotingDeadline().After(now) {
			continue
		}
		out = append(out, cell)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// --- VoteStore ---

func (s *MemoryStore) InsertVotes(ctx context.Context, votes []*domain.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(votes) == 0 {
		return nil
	}
	cellID, userID := votes[0].CellID, votes[0].UserID
	s.votes[cellID] = append(s.votes[cellID], votes...)
	s.voted[voteKey{cell: cellID, user: userID}] = true
	return nil
}

func (s *MemoryStore) ListVotesByCell(ctx context.Context, cellID uuid.UUID) ([]*domain.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*domain.Vote(nil), s.votes[cellID]...), nil
}

func (s *MemoryStore) HasVoted(ctx context.Context, cellID, userID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.voted[voteKey{cell: cellID, user: userID}], nil
}

func (s *MemoryStore) CountDistinctVoters(ctx context.Context, cellID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	voters := make(map[uuid.UUID]bool)
	for _, v := range s.votes[cellID] {
		voters[v.UserID] = true
	}
	return len(voters), nil
}

func (s *MemoryStore) SumXPByIdea(ctx context.Context, cellID uuid.UUID) (map[uuid.UUID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sums := make(map[uuid.UUID]int)
	for _, v := range s.votes[cellID] {
		sums[v.IdeaID] += v.XPPoints
	}
	return sums, nil
}

// --- CommentStore ---

func (s *MemoryStore) InsertComment(ctx context.Context, comment *domain.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.comments[comment.ID()] = comment
	return nil
}

func (s *MemoryStore) GetComment(ctx context.Context, id uuid.UUID) (*domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.comments[id]
	if !ok {
		return nil, engerrors.NotFound(engerrors.CodeEntityNotFound, "comment not found")
	}
	return c, nil
}

func (s *MemoryStore) ListCommentsByCell(ctx context.Context, cellID uuid.UUID) ([]*domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Comment
	for _, c := range s.comments {
		if c.CellID() == cellID && !c.IsRemoved() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().Before(out[j].CreatedAt()) })
	return out, nil
}

func (s *MemoryStore) ListTopCommentsByIdea(ctx context.Context, ideaID uuid.UUID, limit int) ([]*domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Comment
	for _, c := range s.comments {
		if c.IdeaID() != nil && *c.IdeaID() == ideaID && !c.IsRemoved() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpvoteCount() > out[j].UpvoteCount() })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) TryInsertUpvote(ctx context.Context, commentID, userID uuid.UUID, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := upvoteKey{comment: commentID, user: userID}
	if s.upvotes[key] {
		return false, nil
	}
	s.upvotes[key] = true
	return true, nil
}

func (s *MemoryStore) IncrementUpvoteCount(ctx context.Context, commentID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[commentID]
	if !ok {
		return 0, engerrors.NotFound(engerrors.CodeEntityNotFound, "comment not found")
	}
	c.RecordUpvote(0) // threshold checked by caller; this just bumps the counter
	return c.UpvoteCount(), nil
}

func (s *MemoryStore) TrySpreadComment(ctx context.Context, commentID uuid.UUID, currentTier int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[commentID]
	if !ok {
		return false, engerrors.NotFound(engerrors.CodeEntityNotFound, "comment not found")
	}
	before := c.SpreadCount()
	c.Spread(currentTier)
	return c.SpreadCount() > before, nil
}

// --- PredictionStore ---

func (s *MemoryStore) InsertPrediction(ctx context.Context, p *domain.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.predictions = append(s.predictions, p)
	return nil
}

func (s *MemoryStore) ListPredictionsForIdeasAtTier(ctx context.Context, deliberationID uuid.UUID, tier int, ideaIDs []uuid.UUID) ([]*domain.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[uuid.UUID]bool, len(ideaIDs))
	for _, id := range ideaIDs {
		want[id] = true
	}
	var out []*domain.Prediction
	for _, p := range s.predictions {
		if p.DeliberationID == deliberationID && p.TierPredictedAt == tier && want[p.PredictedIdeaID] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemoryStore) ResolvePredictionImmediate(ctx context.Context, userID, deliberationID uuid.UUID, tier int, ideaID uuid.UUID, won bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.predictions {
		if p.UserID == userID && p.DeliberationID == deliberationID && p.TierPredictedAt == tier && p.PredictedIdeaID == ideaID {
			p.ResolveImmediate(won)
		}
	}
	return nil
}

func (s *MemoryStore) ListPredictionsForDeliberation(ctx context.Context, deliberationID uuid.UUID) ([]*domain.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Prediction
	for _, p := range s.predictions {
		if p.DeliberationID == deliberationID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemoryStore) ResolvePredictionFinal(ctx context.Context, userID, deliberationID uuid.UUID, ideaID uuid.UUID, becameChampion bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.predictions {
		if p.UserID == userID && p.DeliberationID == deliberationID && p.PredictedIdeaID == ideaID {
			p.ResolveFinal(becameChampion)
		}
	}
	return nil
}
