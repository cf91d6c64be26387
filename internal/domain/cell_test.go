package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fractalvote/deliberation/internal/domain"
)

func newCell(ideaIDs, participantIDs []uuid.UUID, authorIDs map[uuid.UUID]bool) *domain.Cell {
	now := time.Now()
	deadline := now.Add(time.Hour)
	return domain.NewCell(uuid.New(), uuid.New(), 1, 0, ideaIDs, participantIDs, authorIDs, deadline, now)
}

func TestCell_HasIdeaAndParticipant(t *testing.T) {
	i1, i2 := uuid.New(), uuid.New()
	u1, u2 := uuid.New(), uuid.New()
	c := newCell([]uuid.UUID{i1, i2}, []uuid.UUID{u1}, nil)

	assert.True(t, c.HasIdea(i1))
	assert.False(t, c.HasIdea(uuid.New()))
	assert.True(t, c.HasParticipant(u1))
	assert.False(t, c.HasParticipant(u2))
}

func TestCell_IsAuthorConflict(t *testing.T) {
	author := uuid.New()
	c := newCell([]uuid.UUID{uuid.New()}, []uuid.UUID{author}, map[uuid.UUID]bool{author: true})

	assert.True(t, c.IsAuthorConflict(author))
	assert.False(t, c.IsAuthorConflict(uuid.New()))
}

func TestCell_SpareSlots(t *testing.T) {
	c := newCell([]uuid.UUID{uuid.New(), uuid.New()}, []uuid.UUID{uuid.New()}, nil)

	assert.True(t, c.HasSpareParticipantSlot(5))
	assert.False(t, c.HasSpareParticipantSlot(1))
	assert.True(t, c.HasSpareIdeaSlot(5))
	assert.False(t, c.HasSpareIdeaSlot(2))
}

func TestCell_AddParticipant(t *testing.T) {
	c := newCell([]uuid.UUID{uuid.New()}, nil, nil)
	u := uuid.New()
	c.AddParticipant(u)
	assert.True(t, c.HasParticipant(u))
	assert.Len(t, c.ParticipantIDs(), 1)
}

func TestCell_RecordConflictOverride(t *testing.T) {
	c := newCell([]uuid.UUID{uuid.New()}, nil, nil)
	require.Equal(t, 0, c.ConflictOverrides())
	c.RecordConflictOverride()
	c.RecordConflictOverride()
	assert.Equal(t, 2, c.ConflictOverrides())
}

func TestCell_Complete(t *testing.T) {
	c := newCell([]uuid.UUID{uuid.New()}, nil, nil)
	assert.Equal(t, domain.CellStatusVoting, c.Status())

	now := time.Now()
	c.Complete(now)
	assert.Equal(t, domain.CellStatusCompleted, c.Status())
	require.NotNil(t, c.CompletedAt())
	assert.Equal(t, now, *c.CompletedAt())
}
