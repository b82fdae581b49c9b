package examples

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xtitan6/backtest-v2/internal/clock"
	"github.com/0xtitan6/backtest-v2/internal/strategy"
	"github.com/0xtitan6/backtest-v2/pkg/types"
)

// fakeCtx is a minimal in-memory strategy.Context for exercising strategy
// logic without a full matching engine: PlaceOrder just records the
// request and hands back a sequential OrderID.
type fakeCtx struct {
	now     clock.Nanos
	placed  []placedOrder
	timers  []armedTimer
	nextID  int
}

type placedOrder struct {
	market     types.MarketID
	side       types.Side
	priceTicks int64
	qty        int64
	tif        types.TimeInForce
	postOnly   bool
}

type armedTimer struct {
	delay clock.Nanos
	token uint64
}

func (f *fakeCtx) Now() clock.Nanos { return f.now }

func (f *fakeCtx) PlaceOrder(market types.MarketID, side types.Side, priceTicks, quantity int64, tif types.TimeInForce, postOnly bool) types.OrderID {
	f.nextID++
	f.placed = append(f.placed, placedOrder{market, side, priceTicks, quantity, tif, postOnly})
	return types.OrderID(string(rune('a' + f.nextID)))
}

func (f *fakeCtx) CancelOrder(id types.OrderID) {}

func (f *fakeCtx) SetTimer(delay clock.Nanos, token uint64) {
	f.timers = append(f.timers, armedTimer{delay, token})
}

func TestNoOpNeverPlacesOrders(t *testing.T) {
	t.Parallel()
	ctx := &fakeCtx{now: 1000}
	var s strategy.Strategy = NoOp{}
	s.OnBookSnapshot(ctx, strategy.BookSnapshot{BestBid: 40, BestAsk: 60})
	s.OnTimer(ctx, strategy.TimerTick{})
	assert.Empty(t, ctx.placed)
}

func TestRandomTakerIsDeterministicGivenSameSeed(t *testing.T) {
	t.Parallel()
	mkCtx := func() *fakeCtx { return &fakeCtx{now: 1000} }
	snap := strategy.BookSnapshot{BestBid: 40, BestAsk: 60}

	ctx1 := mkCtx()
	rt1 := NewRandomTaker(RandomTakerParams{Market: "m1", Grid: 100, Qty: 10, Seed: 42, TakeOdds: 1.0})
	for i := 0; i < 20; i++ {
		rt1.OnBookSnapshot(ctx1, snap)
	}

	ctx2 := mkCtx()
	rt2 := NewRandomTaker(RandomTakerParams{Market: "m1", Grid: 100, Qty: 10, Seed: 42, TakeOdds: 1.0})
	for i := 0; i < 20; i++ {
		rt2.OnBookSnapshot(ctx2, snap)
	}

	require.Equal(t, len(ctx1.placed), len(ctx2.placed))
	assert.Equal(t, ctx1.placed, ctx2.placed, "same seed must produce identical decisions")
}

func TestRandomTakerNeverTakesWhenOddsZero(t *testing.T) {
	t.Parallel()
	ctx := &fakeCtx{now: 1000}
	rt := NewRandomTaker(RandomTakerParams{Market: "m1", Grid: 100, Qty: 10, Seed: 1, TakeOdds: 0})
	for i := 0; i < 50; i++ {
		rt.OnBookSnapshot(ctx, strategy.BookSnapshot{BestBid: 40, BestAsk: 60})
	}
	assert.Empty(t, ctx.placed)
}

func TestAvellanedaQuotesBothSidesWhenFlat(t *testing.T) {
	t.Parallel()
	ctx := &fakeCtx{now: 1000}
	a := NewAvellaneda(AvellanedaParams{
		Market: "m1", YesToken: "yes", NoToken: "no", Grid: 100,
		OrderQty: 100, RefreshEvery: clock.NsPerSec,
		Gamma: 0.1, Sigma: 0.02, K: 1.5, Horizon: 1.0, MinSpreadTick: 1,
		FlowWindow: 60 * clock.NsPerSec, FlowThreshold: 0.8, FlowCooldown: 30 * clock.NsPerSec, FlowMaxMultiplier: 3,
	})
	a.OnBookSnapshot(ctx, strategy.BookSnapshot{BestBid: 49, BestAsk: 51})
	a.Start(ctx)
	require.Len(t, ctx.timers, 1)

	a.OnTimer(ctx, strategy.TimerTick{Token: timerTokenRefresh})
	require.Len(t, ctx.placed, 2)

	var sawBuy, sawSell bool
	for _, o := range ctx.placed {
		if o.side == types.Buy {
			sawBuy = true
		}
		if o.side == types.Sell {
			sawSell = true
		}
		assert.True(t, o.postOnly)
	}
	assert.True(t, sawBuy)
	assert.True(t, sawSell)
}

func TestAvellanedaSkipsRequoteWithoutMid(t *testing.T) {
	t.Parallel()
	ctx := &fakeCtx{now: 1000}
	a := NewAvellaneda(AvellanedaParams{Market: "m1", Grid: 100, OrderQty: 100, Gamma: 0.1, Sigma: 0.02, K: 1.5, Horizon: 1})
	a.OnTimer(ctx, strategy.TimerTick{Token: timerTokenRefresh})
	assert.Empty(t, ctx.placed)
}

func TestMomentumTakesOnLargeUpMove(t *testing.T) {
	t.Parallel()
	ctx := &fakeCtx{now: 1000}
	m := NewMomentum(MomentumParams{Market: "m1", Grid: 100, Qty: 5, LookbackTick: 2, Cooldown: clock.NsPerSec})
	m.OnBookSnapshot(ctx, strategy.BookSnapshot{BestBid: 49, BestAsk: 51}) // establishes prevMid=50
	m.OnBookSnapshot(ctx, strategy.BookSnapshot{BestBid: 54, BestAsk: 56}) // mid=55, move=+5 >= 2

	require.Len(t, ctx.placed, 1)
	assert.Equal(t, types.Buy, ctx.placed[0].side)
}

func TestMomentumRespectsCooldown(t *testing.T) {
	t.Parallel()
	ctx := &fakeCtx{now: 1000}
	m := NewMomentum(MomentumParams{Market: "m1", Grid: 100, Qty: 5, LookbackTick: 2, Cooldown: 10_000})
	m.OnBookSnapshot(ctx, strategy.BookSnapshot{BestBid: 49, BestAsk: 51})
	m.OnBookSnapshot(ctx, strategy.BookSnapshot{BestBid: 54, BestAsk: 56})
	require.Len(t, ctx.placed, 1)

	ctx.now += 5_000 // still within cooldown
	m.OnBookSnapshot(ctx, strategy.BookSnapshot{BestBid: 59, BestAsk: 61})
	assert.Len(t, ctx.placed, 1, "cooldown must suppress a second order")
}

func TestInventoryTracksAvgEntryAndRealizesPnLOnReduction(t *testing.T) {
	t.Parallel()
	inv := NewInventory("yes", "no", 100)
	inv.OnFill("yes", types.Buy, 50, 10, 1000)
	inv.OnFill("yes", types.Buy, 60, 10, 2000)

	pos := inv.Snapshot()
	assert.Equal(t, int64(20), pos.YesQty)
	assert.Equal(t, int64(55), pos.AvgEntryYesTick)

	inv.OnFill("yes", types.Sell, 70, 5, 3000)
	pos = inv.Snapshot()
	assert.Equal(t, int64(15), pos.YesQty)
	assert.True(t, pos.RealizedPnL > 0, "selling above average entry must realize a gain")
}

func TestFlowTrackerDetectsOneSidedFlowAsToxic(t *testing.T) {
	t.Parallel()
	ft := NewFlowTracker(60*clock.NsPerSec, 0.5, 10*clock.NsPerSec, 3.0)
	now := clock.Nanos(0)
	for i := 0; i < 10; i++ {
		ft.AddFill(now, types.Buy)
		now += clock.NsPerSec
	}
	metrics := ft.CalculateToxicity(now)
	assert.True(t, metrics.IsAverse)
	assert.Equal(t, 1.0, metrics.DirectionalImbalance)
}

func TestFlowTrackerEvictsStaleFills(t *testing.T) {
	t.Parallel()
	ft := NewFlowTracker(10*clock.NsPerSec, 0.5, 5*clock.NsPerSec, 2.0)
	ft.AddFill(0, types.Buy)
	ft.AddFill(100*clock.NsPerSec, types.Sell)
	assert.Equal(t, 1, ft.FillCount(), "fill outside the window must be evicted")
}
