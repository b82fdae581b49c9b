package merge

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xtitan6/backtest-v2/internal/clock"
	"github.com/0xtitan6/backtest-v2/pkg/types"
)

func TestPopOrdersByVisibleTSFirst(t *testing.T) {
	t.Parallel()

	q := New()
	q.Push(Item{Key: Key{VisibleTS: 300}, Payload: "c"})
	q.Push(Item{Key: Key{VisibleTS: 100}, Payload: "a"})
	q.Push(Item{Key: Key{VisibleTS: 200}, Payload: "b"})

	var order []string
	for {
		item, ok := q.Pop()
		if !ok {
			break
		}
		order = append(order, item.Payload.(string))
	}
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestPopBreaksTiesByPriorityThenSourceThenSeqThenFingerprint(t *testing.T) {
	t.Parallel()

	q := New()
	// All share VisibleTS; only priority differs first.
	q.Push(Item{Key: Key{VisibleTS: 100, Priority: types.PriorityTimer}, Payload: "timer"})
	q.Push(Item{Key: Key{VisibleTS: 100, Priority: types.PriorityMarketData}, Payload: "market"})
	q.Push(Item{Key: Key{VisibleTS: 100, Priority: types.PriorityOrderLifecycle}, Payload: "order"})

	first, _ := q.Pop()
	assert.Equal(t, "market", first.Payload)
	second, _ := q.Pop()
	assert.Equal(t, "order", second.Payload)
	third, _ := q.Pop()
	assert.Equal(t, "timer", third.Payload)
}

func TestPopTieBreaksBySourceOrdinalThenSeqThenFingerprint(t *testing.T) {
	t.Parallel()

	q := New()
	q.Push(Item{Key: Key{
		VisibleTS: 100, Priority: types.PriorityMarketData,
		SourceOrd: types.StreamTradePrint, PerSourceSeq: 1, Fingerprint: 5,
	}, Payload: "trade"})
	q.Push(Item{Key: Key{
		VisibleTS: 100, Priority: types.PriorityMarketData,
		SourceOrd: types.StreamL2Delta, PerSourceSeq: 9, Fingerprint: 1,
	}, Payload: "delta"})

	first, _ := q.Pop()
	assert.Equal(t, "delta", first.Payload, "lower stream ordinal wins regardless of seq/fingerprint")

	q2 := New()
	q2.Push(Item{Key: Key{
		VisibleTS: 100, Priority: types.PriorityMarketData,
		SourceOrd: types.StreamL2Delta, PerSourceSeq: 9, Fingerprint: 999,
	}, Payload: "seq9"})
	q2.Push(Item{Key: Key{
		VisibleTS: 100, Priority: types.PriorityMarketData,
		SourceOrd: types.StreamL2Delta, PerSourceSeq: 2, Fingerprint: 1,
	}, Payload: "seq2"})
	first2, _ := q2.Pop()
	assert.Equal(t, "seq2", first2.Payload, "lower per-source seq wins when source ordinal ties")

	q3 := New()
	q3.Push(Item{Key: Key{
		VisibleTS: 100, Priority: types.PriorityMarketData,
		SourceOrd: types.StreamL2Delta, PerSourceSeq: 4, Fingerprint: 777,
	}, Payload: "fpHigh"})
	q3.Push(Item{Key: Key{
		VisibleTS: 100, Priority: types.PriorityMarketData,
		SourceOrd: types.StreamL2Delta, PerSourceSeq: 4, Fingerprint: 1,
	}, Payload: "fpLow"})
	first3, _ := q3.Pop()
	assert.Equal(t, "fpLow", first3.Payload, "fingerprint is the final tie-breaker")
}

func TestDeliveryOrderIsIndependentOfPushOrder(t *testing.T) {
	t.Parallel()

	keys := []Key{
		{VisibleTS: 50, Priority: types.PriorityMarketData, SourceOrd: types.StreamL2Delta, PerSourceSeq: 1, Fingerprint: 1},
		{VisibleTS: 50, Priority: types.PriorityMarketData, SourceOrd: types.StreamL2Delta, PerSourceSeq: 2, Fingerprint: 2},
		{VisibleTS: 75, Priority: types.PriorityTradePrint, SourceOrd: types.StreamTradePrint, PerSourceSeq: 1, Fingerprint: 3},
		{VisibleTS: 75, Priority: types.PriorityMarketData, SourceOrd: types.StreamL2Snapshot, PerSourceSeq: 1, Fingerprint: 4},
		{VisibleTS: 1000, Priority: types.PriorityTimer, SourceOrd: types.StreamTimer, PerSourceSeq: 1, Fingerprint: 5},
	}

	run := func(perm []int) []Key {
		q := New()
		for _, i := range perm {
			q.Push(Item{Key: keys[i]})
		}
		var out []Key
		for {
			item, ok := q.Pop()
			if !ok {
				break
			}
			out = append(out, item.Key)
		}
		return out
	}

	baseline := run([]int{0, 1, 2, 3, 4})

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 20; trial++ {
		perm := rng.Perm(len(keys))
		got := run(perm)
		require.Equal(t, baseline, got, "delivery order must not depend on push order")
	}
}

func TestPopPanicsOnNonMonotonicVisibleTS(t *testing.T) {
	t.Parallel()

	q := New()
	q.Push(Item{Key: Key{VisibleTS: 100}})
	_, ok := q.Pop()
	require.True(t, ok)

	// Pushing something "in the past" relative to what's already been
	// delivered is a contract violation by the feed, not a recoverable
	// runtime state.
	q.Push(Item{Key: Key{VisibleTS: 50}})
	assert.Panics(t, func() {
		q.Pop()
	})
}

func TestEmptyQueuePopReturnsNotOK(t *testing.T) {
	t.Parallel()

	q := New()
	_, ok := q.Pop()
	assert.False(t, ok)
	_, ok = q.Peek()
	assert.False(t, ok)
}

func TestPeekDoesNotRemove(t *testing.T) {
	t.Parallel()

	q := New()
	q.Push(Item{Key: Key{VisibleTS: clock.Nanos(10)}, Payload: "only"})

	peeked, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, "only", peeked.Payload)
	assert.Equal(t, 1, q.Len())

	popped, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "only", popped.Payload)
	assert.Equal(t, 0, q.Len())
}
