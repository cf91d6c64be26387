package websocket

import (
	"context"

	"github.com/google/uuid"

	"github.com/fractalvote/deliberation/internal/application/cellprocessor"
	"github.com/fractalvote/deliberation/internal/domain"
)

// SocketNotifier implements engine.Notifier/scheduler.Notifier and
// broadcasts each terminal event to the deliberation's subscribed
// WebSocket clients through the Broadcaster interface.
type SocketNotifier struct {
	hub Broadcaster
}

func NewSocketNotifier(hub Broadcaster) *SocketNotifier {
	return &SocketNotifier{hub: hub}
}

func (n *SocketNotifier) NotifyCellCompleted(_ context.Context, deliberationID, cellID uuid.UUID, result *cellprocessor.Result) {
	event := NewWSEvent(EventCellCompleted, deliberationID.String())
	event.CellID = cellID.String()
	if result != nil {
		event.Tier = result.Tier
		event.WinnerIDs = stringifyIDs(result.WinnerIDs)
		event.LoserIDs = stringifyIDs(result.LoserIDs)
	}
	n.hub.Broadcast(deliberationID.String(), event)
}

func (n *SocketNotifier) NotifyTierAdvanced(_ context.Context, deliberationID uuid.UUID, tier int) {
	event := NewWSEvent(EventTierAdvanced, deliberationID.String())
	event.Tier = tier
	n.hub.Broadcast(deliberationID.String(), event)
}

func (n *SocketNotifier) NotifyChampionDeclared(_ context.Context, deliberationID, ideaID uuid.UUID) {
	event := NewWSEvent(EventChampionDeclared, deliberationID.String())
	event.IdeaID = ideaID.String()
	n.hub.Broadcast(deliberationID.String(), event)
}

func (n *SocketNotifier) NotifyPhaseChanged(_ context.Context, deliberationID uuid.UUID, newPhase domain.Phase) {
	event := NewWSEvent(EventPhaseChanged, deliberationID.String())
	event.NewPhase = string(newPhase)
	n.hub.Broadcast(deliberationID.String(), event)
}

func (n *SocketNotifier) NotifyChallengeRoundStarted(_ context.Context, deliberationID uuid.UUID, round int) {
	event := NewWSEvent(EventChallengeRoundStarted, deliberationID.String())
	event.Round = round
	n.hub.Broadcast(deliberationID.String(), event)
}

func stringifyIDs(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
