package domain_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/fractalvote/deliberation/internal/domain"
)

func TestComment_RecordUpvote_CrossesThresholdOnce(t *testing.T) {
	c := domain.NewComment(uuid.New(), uuid.New(), uuid.New(), "nice idea", nil, nil, 1, time.Now())

	crossed := c.RecordUpvote(3)
	assert.False(t, crossed)
	crossed = c.RecordUpvote(3)
	assert.False(t, crossed)
	crossed = c.RecordUpvote(3)
	assert.True(t, crossed, "third upvote reaches threshold of 3")
	crossed = c.RecordUpvote(3)
	assert.False(t, crossed, "threshold already crossed, must not re-fire")
	assert.Equal(t, 4, c.UpvoteCount())
}

func TestComment_Spread_MonotonicSpreadCountAndReachTier(t *testing.T) {
	c := domain.NewComment(uuid.New(), uuid.New(), uuid.New(), "nice idea", nil, nil, 1, time.Now())

	c.Spread(2)
	assert.Equal(t, 1, c.SpreadCount())
	assert.Equal(t, 2, c.ReachTier())

	c.Spread(1)
	assert.Equal(t, 2, c.SpreadCount(), "spreadCount always increments")
	assert.Equal(t, 2, c.ReachTier(), "reachTier never decreases")

	c.Spread(5)
	assert.Equal(t, 3, c.SpreadCount())
	assert.Equal(t, 5, c.ReachTier())
}
