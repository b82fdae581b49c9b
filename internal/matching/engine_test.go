package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xtitan6/backtest-v2/pkg/types"
)

func mkOrder(id string, side types.Side, price, qty int64, tif types.TimeInForce, owner string) *Order {
	return &Order{ID: types.OrderID(id), Side: side, PriceTicks: price, Quantity: qty, TIF: tif, OwnerTag: owner}
}

func TestRestsWhenBookEmpty(t *testing.T) {
	t.Parallel()
	e := NewEngine(types.Tick001)

	res := e.Submit(mkOrder("1", types.Buy, 50, 100, types.GTC, "alice"), 1000)
	assert.True(t, res.Accepted)
	assert.Equal(t, StatusNew, res.Order.Status)
	assert.Equal(t, int64(100), res.RestedQty)

	bid, ok := e.Book().BestBid()
	require.True(t, ok)
	assert.Equal(t, int64(50), bid)
}

func TestCrossingOrderFillsAtMakerPrice(t *testing.T) {
	t.Parallel()
	e := NewEngine(types.Tick001)

	e.Submit(mkOrder("maker", types.Sell, 55, 100, types.GTC, "bob"), 1000)
	res := e.Submit(mkOrder("taker", types.Buy, 60, 100, types.GTC, "alice"), 2000)

	require.Len(t, res.Fills, 1)
	assert.Equal(t, int64(55), res.Fills[0].PriceTicks, "fill must occur at the maker's price, not the taker's limit")
	assert.Equal(t, StatusFilled, res.Order.Status)
}

func TestPriceTimePriorityFIFOAtSameLevel(t *testing.T) {
	t.Parallel()
	e := NewEngine(types.Tick001)

	e.Submit(mkOrder("m1", types.Sell, 50, 10, types.GTC, "x"), 1000)
	e.Submit(mkOrder("m2", types.Sell, 50, 10, types.GTC, "y"), 1001)

	res := e.Submit(mkOrder("taker", types.Buy, 50, 10, types.GTC, "z"), 2000)
	require.Len(t, res.Fills, 1)
	assert.Equal(t, types.OrderID("m1"), res.Fills[0].MakerOrderID, "earlier resting order at same price must fill first")
}

func TestBetterPriceLevelMatchesBeforeWorsePrice(t *testing.T) {
	t.Parallel()
	e := NewEngine(types.Tick001)

	e.Submit(mkOrder("worse", types.Sell, 60, 10, types.GTC, "x"), 1000)
	e.Submit(mkOrder("better", types.Sell, 55, 10, types.GTC, "y"), 1001)

	res := e.Submit(mkOrder("taker", types.Buy, 65, 10, types.GTC, "z"), 2000)
	require.Len(t, res.Fills, 1)
	assert.Equal(t, types.OrderID("better"), res.Fills[0].MakerOrderID)
}

func TestPostOnlyRejectsWhenCrossing(t *testing.T) {
	t.Parallel()
	e := NewEngine(types.Tick001)

	e.Submit(mkOrder("maker", types.Sell, 50, 10, types.GTC, "x"), 1000)
	taker := mkOrder("taker", types.Buy, 55, 10, types.GTC, "y")
	taker.PostOnly = true

	res := e.Submit(taker, 2000)
	assert.False(t, res.Accepted)
	assert.Equal(t, StatusRejected, res.Order.Status)
	assert.Empty(t, res.Fills)
}

func TestIOCCancelsUnfilledRemainder(t *testing.T) {
	t.Parallel()
	e := NewEngine(types.Tick001)

	e.Submit(mkOrder("maker", types.Sell, 50, 5, types.GTC, "x"), 1000)
	res := e.Submit(mkOrder("taker", types.Buy, 50, 20, types.IOC, "y"), 2000)

	require.Len(t, res.Fills, 1)
	assert.Equal(t, int64(5), res.Fills[0].Quantity)
	assert.Equal(t, StatusPartiallyFilled, res.Order.Status)
	assert.Equal(t, int64(0), res.RestedQty, "IOC must never rest its remainder")
}

func TestIOCFullyUnfillableCancelsOutright(t *testing.T) {
	t.Parallel()
	e := NewEngine(types.Tick001)

	res := e.Submit(mkOrder("taker", types.Buy, 50, 20, types.IOC, "y"), 2000)
	assert.Empty(t, res.Fills)
	assert.Equal(t, StatusCancelled, res.Order.Status)
}

func TestFOKRejectsWhenNotFullyFillable(t *testing.T) {
	t.Parallel()
	e := NewEngine(types.Tick001)

	e.Submit(mkOrder("maker", types.Sell, 50, 5, types.GTC, "x"), 1000)
	res := e.SubmitFOK(mkOrder("taker", types.Buy, 50, 20, types.FOK, "y"), 2000)

	assert.Empty(t, res.Fills, "FOK must never produce a partial fill")
	assert.Equal(t, StatusCancelled, res.Order.Status)

	// Book must be untouched.
	bid, ok := e.Book().BestBid()
	assert.False(t, ok)
	_ = bid
}

func TestFOKFillsCompletelyWhenLiquiditySufficient(t *testing.T) {
	t.Parallel()
	e := NewEngine(types.Tick001)

	e.Submit(mkOrder("m1", types.Sell, 50, 10, types.GTC, "x"), 1000)
	e.Submit(mkOrder("m2", types.Sell, 51, 10, types.GTC, "x"), 1001)

	res := e.SubmitFOK(mkOrder("taker", types.Buy, 51, 20, types.FOK, "y"), 2000)
	require.Len(t, res.Fills, 2)
	assert.Equal(t, StatusFilled, res.Order.Status)
}

func TestSelfTradeRejectDefaultPolicy(t *testing.T) {
	t.Parallel()
	e := NewEngine(types.Tick001)

	e.Submit(mkOrder("maker", types.Sell, 50, 10, types.GTC, "alice"), 1000)
	taker := mkOrder("taker", types.Buy, 50, 10, types.GTC, "alice")
	taker.SelfTrade = types.SelfTradeReject

	res := e.Submit(taker, 2000)
	assert.Empty(t, res.Fills)
	assert.Equal(t, StatusRejected, res.Order.Status)

	// The resting maker order must be untouched.
	assert.NotNil(t, e.Book().Get("maker"))
}

func TestSelfTradeCancelOldestLetsTakerContinueMatching(t *testing.T) {
	t.Parallel()
	e := NewEngine(types.Tick001)

	e.Submit(mkOrder("self", types.Sell, 50, 10, types.GTC, "alice"), 1000)
	e.Submit(mkOrder("other", types.Sell, 50, 10, types.GTC, "bob"), 1001)

	taker := mkOrder("taker", types.Buy, 50, 10, types.GTC, "alice")
	taker.SelfTrade = types.SelfTradeCancelOldest

	res := e.Submit(taker, 2000)
	require.Len(t, res.Fills, 1)
	assert.Equal(t, types.OrderID("other"), res.Fills[0].MakerOrderID)
	assert.Nil(t, e.Book().Get("self"), "self order must be cancelled out of the book")
}

func TestOffGridPriceRejected(t *testing.T) {
	t.Parallel()
	e := NewEngine(types.Tick001)

	res := e.Submit(mkOrder("bad", types.Buy, 0, 10, types.GTC, "x"), 1000)
	assert.False(t, res.Accepted)
	assert.Equal(t, StatusRejected, res.Order.Status)
}

func TestCancelRemovesRestingOrderAndEmptiesLevel(t *testing.T) {
	t.Parallel()
	e := NewEngine(types.Tick001)

	e.Submit(mkOrder("m1", types.Buy, 50, 10, types.GTC, "x"), 1000)
	cancelled := e.Book().Cancel("m1")
	require.NotNil(t, cancelled)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	_, ok := e.Book().BestBid()
	assert.False(t, ok)
}

func TestQueueAheadQtyReflectsFIFOPosition(t *testing.T) {
	t.Parallel()
	e := NewEngine(types.Tick001)

	e.Submit(mkOrder("m1", types.Buy, 50, 10, types.GTC, "x"), 1000)
	e.Submit(mkOrder("m2", types.Buy, 50, 20, types.GTC, "y"), 1001)

	ahead, ok := e.Book().QueueAheadQty("m2")
	require.True(t, ok)
	assert.Equal(t, int64(10), ahead)

	ahead0, ok := e.Book().QueueAheadQty("m1")
	require.True(t, ok)
	assert.Equal(t, int64(0), ahead0)
}
