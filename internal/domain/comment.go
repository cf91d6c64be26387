package domain

import (
	"time"

	"github.com/google/uuid"
)

// Comment is a remark posted within a cell, optionally attached to an
// idea, that can be up-pollinated to other cells once it accumulates
// enough upvotes.
type Comment struct {
	id          uuid.UUID
	cellID      uuid.UUID
	userID      uuid.UUID
	ideaID      *uuid.UUID
	text        string
	upvoteCount int
	spreadCount int
	reachTier   int
	isRemoved   bool
	replyToID   *uuid.UUID
	createdAt   time.Time
}

func NewComment(id, cellID, userID uuid.UUID, text string, ideaID, replyToID *uuid.UUID, reachTier int, now time.Time) *Comment {
	return &Comment{
		id: id, cellID: cellID, userID: userID, ideaID: ideaID, text: text,
		reachTier: reachTier, replyToID: replyToID, createdAt: now,
	}
}

func ReconstructComment(
	id, cellID, userID uuid.UUID, ideaID *uuid.UUID, text string,
	upvoteCount, spreadCount, reachTier int, isRemoved bool, replyToID *uuid.UUID, createdAt time.Time,
) *Comment {
	return &Comment{
		id: id, cellID: cellID, userID: userID, ideaID: ideaID, text: text,
		upvoteCount: upvoteCount, spreadCount: spreadCount, reachTier: reachTier,
		isRemoved: isRemoved, replyToID: replyToID, createdAt: createdAt,
	}
}

func (c *Comment) ID() uuid.UUID          { return c.id }
func (c *Comment) CellID() uuid.UUID      { return c.cellID }
func (c *Comment) UserID() uuid.UUID      { return c.userID }
func (c *Comment) IdeaID() *uuid.UUID     { return c.ideaID }
func (c *Comment) Text() string           { return c.text }
func (c *Comment) UpvoteCount() int       { return c.upvoteCount }
func (c *Comment) SpreadCount() int       { return c.spreadCount }
func (c *Comment) ReachTier() int         { return c.reachTier }
func (c *Comment) IsRemoved() bool        { return c.isRemoved }
func (c *Comment) ReplyToID() *uuid.UUID  { return c.replyToID }
func (c *Comment) CreatedAt() time.Time   { return c.createdAt }

// RecordUpvote increments the upvote counter and reports whether this
// upvote just crossed the up-pollination threshold.
func (c *Comment) RecordUpvote(threshold int) (crossed bool) {
	before := c.upvoteCount
	c.upvoteCount++
	return before < threshold && c.upvoteCount >= threshold
}

// Spread records an up-pollination event: spreadCount and reachTier are
// monotonically non-decreasing.
func (c *Comment) Spread(currentTier int) {
	c.spreadCount++
	if currentTier > c.reachTier {
		c.reachTier = currentTier
	}
}

// CommentUpvote is unique per (commentID, userID).
type CommentUpvote struct {
	CommentID uuid.UUID
	UserID    uuid.UUID
	CreatedAt time.Time
}
