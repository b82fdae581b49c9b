package queuepos

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/0xtitan6/backtest-v2/pkg/types"
)

func TestWatchAndConsumeDownToZero(t *testing.T) {
	t.Parallel()
	tr := New()
	tr.Watch("o1", 100)

	ahead, ok := tr.QueueAhead("o1")
	assert.True(t, ok)
	assert.Equal(t, int64(100), ahead)
	assert.False(t, tr.Consumed("o1"))

	tr.Consume("o1", 60)
	ahead, _ = tr.QueueAhead("o1")
	assert.Equal(t, int64(40), ahead)

	tr.Consume("o1", 1000)
	ahead, _ = tr.QueueAhead("o1")
	assert.Equal(t, int64(0), ahead, "queue ahead must never go negative")
	assert.True(t, tr.Consumed("o1"))
}

func TestForgetStopsTracking(t *testing.T) {
	t.Parallel()
	tr := New()
	tr.Watch("o1", 10)
	tr.Forget("o1")

	_, ok := tr.QueueAhead("o1")
	assert.False(t, ok)
	assert.False(t, tr.Consumed("o1"), "an untracked order is never reported consumed")
}

func TestNegativeInitialAheadClampedToZero(t *testing.T) {
	t.Parallel()
	tr := New()
	tr.Watch("o1", -5)
	ahead, _ := tr.QueueAhead("o1")
	assert.Equal(t, int64(0), ahead)
	assert.True(t, tr.Consumed("o1"))
}

func TestConsumeOnUntrackedOrderIsNoop(t *testing.T) {
	t.Parallel()
	tr := New()
	tr.Consume(types.OrderID("ghost"), 50)
	_, ok := tr.QueueAhead("ghost")
	assert.False(t, ok)
}
