// Package notify implements the engine's external notification sink
// (scheduler.Notifier) and its audit-record sink, fanning out
// deliberation events and audit records to zero or more downstream
// observers.
package notify

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fractalvote/deliberation/internal/application/cellprocessor"
	"github.com/fractalvote/deliberation/internal/domain"
)

// LoggerNotifier satisfies scheduler.Notifier by logging each terminal
// event via zerolog and, if an AuditSink is configured, forwarding it as
// an audit record for external chain recording.
type LoggerNotifier struct {
	audit AuditSink
}

// NewLoggerNotifier builds a Notifier. audit may be nil, in which case
// no audit records are emitted.
func NewLoggerNotifier(audit AuditSink) *LoggerNotifier {
	return &LoggerNotifier{audit: audit}
}

func (n *LoggerNotifier) NotifyCellCompleted(ctx context.Context, deliberationID, cellID uuid.UUID, result *cellprocessor.Result) {
	log.Info().
		Str("deliberation_id", deliberationID.String()).
		Str("cell_id", cellID.String()).
		Int("tier", result.Tier).
		Int("winners", len(result.WinnerIDs)).
		Msg("notify: cell completed")
	n.record(ctx, domain.AuditCell, deliberationID, map[string]any{
		"cellId": cellID, "tier": result.Tier, "winnerIds": result.WinnerIDs, "loserIds": result.LoserIDs,
	})
}

func (n *LoggerNotifier) NotifyTierAdvanced(ctx context.Context, deliberationID uuid.UUID, tier int) {
	log.Info().Str("deliberation_id", deliberationID.String()).Int("tier", tier).Msg("notify: tier advanced")
	n.record(ctx, domain.AuditTier, deliberationID, map[string]any{"tier": tier})
}

func (n *LoggerNotifier) NotifyChampionDeclared(ctx context.Context, deliberationID, ideaID uuid.UUID) {
	log.Info().Str("deliberation_id", deliberationID.String()).Str("idea_id", ideaID.String()).Msg("notify: champion declared")
	n.record(ctx, domain.AuditChampion, deliberationID, map[string]any{"ideaId": ideaID})
}

func (n *LoggerNotifier) NotifyPhaseChanged(ctx context.Context, deliberationID uuid.UUID, newPhase domain.Phase) {
	log.Info().Str("deliberation_id", deliberationID.String()).Str("phase", string(newPhase)).Msg("notify: phase changed")
	n.record(ctx, domain.AuditPhase, deliberationID, map[string]any{"phase": string(newPhase)})
}

func (n *LoggerNotifier) NotifyChallengeRoundStarted(ctx context.Context, deliberationID uuid.UUID, round int) {
	log.Info().Str("deliberation_id", deliberationID.String()).Int("round", round).Msg("notify: challenge round started")
	n.record(ctx, domain.AuditPhase, deliberationID, map[string]any{"challengeRound": round})
}

func (n *LoggerNotifier) record(ctx context.Context, kind domain.AuditKind, deliberationID uuid.UUID, payload map[string]any) {
	if n.audit == nil {
		return
	}
	if err := n.audit.Record(ctx, AuditRecord{Kind: kind, DeliberationID: deliberationID, Payload: payload}); err != nil {
		log.Error().Err(err).Str("deliberation_id", deliberationID.String()).Msg("audit record failed")
	}
}

// Notifier is the scheduler.Notifier/engine.Notifier shape; declared
// here (rather than imported) so MultiNotifier can fan out to any mix
// of implementations without importing either caller's package.
type Notifier interface {
	NotifyCellCompleted(ctx context.Context, deliberationID, cellID uuid.UUID, result *cellprocessor.Result)
	NotifyTierAdvanced(ctx context.Context, deliberationID uuid.UUID, tier int)
	NotifyChampionDeclared(ctx context.Context, deliberationID, ideaID uuid.UUID)
	NotifyPhaseChanged(ctx context.Context, deliberationID uuid.UUID, newPhase domain.Phase)
	NotifyChallengeRoundStarted(ctx context.Context, deliberationID uuid.UUID, round int)
}

// MultiNotifier fans a single event out to several Notifiers — e.g. the
// LoggerNotifier (audit trail) and the WebSocket SocketNotifier (live
// spectator feed) — so cmd/server can wire both without either knowing
// about the other.
type MultiNotifier struct {
	notifiers []Notifier
}

func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

func (m *MultiNotifier) NotifyCellCompleted(ctx context.Context, deliberationID, cellID uuid.UUID, result *cellprocessor.Result) {
	for _, n := range m.notifiers {
		n.NotifyCellCompleted(ctx, deliberationID, cellID, result)
	}
}

func (m *MultiNotifier) NotifyTierAdvanced(ctx context.Context, deliberationID uuid.UUID, tier int) {
	for _, n := range m.notifiers {
		n.NotifyTierAdvanced(ctx, deliberationID, tier)
	}
}

func (m *MultiNotifier) NotifyChampionDeclared(ctx context.Context, deliberationID, ideaID uuid.UUID) {
	for _, n := range m.notifiers {
		n.NotifyChampionDeclared(ctx, deliberationID, ideaID)
	}
}

func (m *MultiNotifier) NotifyPhaseChanged(ctx context.Context, deliberationID uuid.UUID, newPhase domain.Phase) {
	for _, n := range m.notifiers {
		n.NotifyPhaseChanged(ctx, deliberationID, newPhase)
	}
}

func (m *MultiNotifier) NotifyChallengeRoundStarted(ctx context.Context, deliberationID uuid.UUID, round int) {
	for _, n := range m.notifiers {
		n.NotifyChallengeRoundStarted(ctx, deliberationID, round)
	}
}
