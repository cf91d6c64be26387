package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fractalvote/deliberation/internal/application/assigner"
	"github.com/fractalvote/deliberation/internal/application/cellprocessor"
	"github.com/fractalvote/deliberation/internal/application/phase"
	"github.com/fractalvote/deliberation/internal/application/tiercontroller"
	"github.com/fractalvote/deliberation/internal/domain"
	engerrors "github.com/fractalvote/deliberation/internal/domain/errors"
	"github.com/fractalvote/deliberation/internal/infrastructure/storage"
)

type recordingNotifier struct {
	cellCompleted   int
	tierAdvanced    int
	championDecl    int
	phaseChanged    int
	challengeRounds int
}

func (r *recordingNotifier) NotifyCellCompleted(ctx context.Context, deliberationID, cellID uuid.UUID, result *cellprocessor.Result) {
	r.cellCompleted++
}
func (r *recordingNotifier) NotifyTierAdvanced(ctx context.Context, deliberationID uuid.UUID, tier int) {
	r.tierAdvanced++
}
func (r *recordingNotifier) NotifyChampionDeclared(ctx context.Context, deliberationID, ideaID uuid.UUID) {
	r.championDecl++
}
func (r *recordingNotifier) NotifyPhaseChanged(ctx context.Context, deliberationID uuid.UUID, newPhase domain.Phase) {
	r.phaseChanged++
}
func (r *recordingNotifier) NotifyChallengeRoundStarted(ctx context.Context, deliberationID uuid.UUID, round int) {
	r.challengeRounds++
}

func newTestScheduler(t *testing.T, store domain.Store, notifier Notifier) *Scheduler {
	t.Helper()
	a := assigner.New(store, 1)
	processor := cellprocessor.New(store)
	tiers := tiercontroller.New(store, a)
	ph := phase.New(store, a)
	return New(store, processor, tiers, ph, notifier, time.Second)
}

func TestScheduler_Tick_ClosesOverdueCellAndNotifies(t *testing.T) {
	store := storage.NewMemoryStore()
	del := domain.NewDeliberation(domain.DeliberationParams{
		ID: uuid.New(), CreatorID: uuid.New(), CellSize: 5, XPBudget: 10,
	})
	require.NoError(t, store.SaveDeliberation(context.Background(), del))
	now := time.Now()
	require.NoError(t, del.StartVoting(now))

	i1 := uuid.New()
	idea := domain.ReconstructIdea(i1, del.ID(), uuid.New(), "x", domain.IdeaStatusInVoting, 1, 0, 0, 0, false, false, now)
	require.NoError(t, store.InsertIdea(context.Background(), idea))

	pastDeadline := now.Add(-time.Minute)
	cell := domain.NewCell(uuid.New(), del.ID(), 1, 0, []uuid.UUID{i1}, nil, nil, pastDeadline, now.Add(-time.Hour))
	require.NoError(t, store.CreateCell(context.Background(), cell))

	notifier := &recordingNotifier{}
	s := newTestScheduler(t, store, notifier)
	s.tick(context.Background(), now)

	assert.Equal(t, 1, notifier.cellCompleted)
	assert.Equal(t, 1, notifier.championDecl, "single idea in the only tier-1 cell becomes champion immediately")

	got, err := store.GetDeliberation(context.Background(), del.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseCompleted, got.Phase())
}

func TestScheduler_WithRetry_RetriesTransientThenSucceeds(t *testing.T) {
	store := storage.NewMemoryStore()
	s := newTestScheduler(t, store, &recordingNotifier{})

	attempts := 0
	err := s.withRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return engerrors.Transient("temporary store hiccup", nil)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestScheduler_WithRetry_GivesUpAfterMaxRetries(t *testing.T) {
	store := storage.NewMemoryStore()
	s := newTestScheduler(t, store, &recordingNotifier{})

	attempts := 0
	err := s.withRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		return engerrors.Transient("store keeps failing", nil)
	})
	assert.Error(t, err)
	assert.Equal(t, maxTransientRetries+1, attempts)
}

// Once accumulation ends with a pending challenger queued, the
// scheduler starts a new challenge round that resets the tier and
// re-tags the reigning champion DEFENDING.
func TestScheduler_FireChallengeRounds_StartsRematchAfterAccumulationEnds(t *testing.T) {
	store := storage.NewMemoryStore()
	del := domain.NewDeliberation(domain.DeliberationParams{
		ID: uuid.New(), CreatorID: uuid.New(), CellSize: 5, XPBudget: 10, AccumulationEnabled: true,
	})
	require.NoError(t, store.SaveDeliberation(context.Background(), del))

	now := time.Now()
	require.NoError(t, del.StartVoting(now))
	require.NoError(t, del.AdvanceTier(2, now))

	champion := uuid.New()
	championIdea := domain.ReconstructIdea(champion, del.ID(), uuid.New(), "champion", domain.IdeaStatusWinner, 2, 20, 5, 0, true, false, now)
	require.NoError(t, store.InsertIdea(context.Background(), championIdea))

	ended := now.Add(-time.Minute)
	require.NoError(t, del.DeclareChampion(champion, now, &ended))
	require.NoError(t, store.SetIdeaChampion(context.Background(), champion, true))

	challenger := domain.NewIdea(uuid.New(), del.ID(), uuid.New(), "new challenger", true, now)
	require.NoError(t, store.InsertIdea(context.Background(), challenger))

	notifier := &recordingNotifier{}
	s := newTestScheduler(t, store, notifier)
	require.NoError(t, s.fireChallengeRounds(context.Background(), now))

	got, err := store.GetDeliberation(context.Background(), del.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseVoting, got.Phase())
	assert.Equal(t, 1, got.CurrentTier(), "a challenge round resets currentTier back to 1")
	assert.Equal(t, 1, got.ChallengeRound())
	assert.Equal(t, 1, notifier.challengeRounds)

	reigning, err := store.GetIdea(context.Background(), champion)
	require.NoError(t, err)
	assert.Equal(t, domain.IdeaStatusDefending, reigning.Status())

	reChallenger, err := store.GetIdea(context.Background(), challenger.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.IdeaStatusInVoting, reChallenger.Status())
}

func TestScheduler_WithRetry_NeverRetriesConflict(t *testing.T) {
	store := storage.NewMemoryStore()
	s := newTestScheduler(t, store, &recordingNotifier{})

	attempts := 0
	err := s.withRetry(context.Background(), func(ctx context.Context) error {
		attempts++
		return engerrors.Conflict(engerrors.CodeAlreadyVoted, "already voted")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, attempts, "Conflict errors must not trigger retries")
}
