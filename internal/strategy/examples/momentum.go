package examples

import (
	"github.com/0xtitan6/backtest-v2/internal/clock"
	"github.com/0xtitan6/backtest-v2/internal/strategy"
	"github.com/0xtitan6/backtest-v2/pkg/types"
)

// MomentumParams configures the momentum-following taker.
type MomentumParams struct {
	Market       types.MarketID
	Grid         int64
	Qty          int64
	LookbackTick int64       // minimum price move, in ticks, to act on
	Cooldown     clock.Nanos // minimum time between taker orders

	// Invert flips the direction Momentum trades in: a move up takes the
	// sell side instead of the buy side and vice versa. The gate suite's
	// signal-inversion check runs one pass with Invert false and a second
	// with it true, and requires that the two cannot both be profitable.
	Invert bool
}

// Momentum follows short-term price trends: it takes in the direction of
// the last observed move once that move exceeds LookbackTick, subject to a
// cooldown so it does not fire on every snapshot during a sustained move.
type Momentum struct {
	p            MomentumParams
	prevMidTicks int64
	haveMid      bool
	lastOrderTS  clock.Nanos
	haveOrder    bool
}

// NewMomentum builds a momentum strategy instance.
func NewMomentum(p MomentumParams) *Momentum {
	return &Momentum{p: p}
}

func (m *Momentum) OnBookSnapshot(ctx strategy.Context, snap strategy.BookSnapshot) {
	if snap.BestBid <= 0 || snap.BestAsk <= 0 {
		return
	}
	mid := (snap.BestBid + snap.BestAsk) / 2
	defer func() { m.prevMidTicks, m.haveMid = mid, true }()

	if !m.haveMid {
		return
	}
	if m.haveOrder && ctx.Now()-m.lastOrderTS < m.p.Cooldown {
		return
	}

	move := mid - m.prevMidTicks
	buySide, sellSide := types.Buy, types.Sell
	if m.p.Invert {
		buySide, sellSide = types.Sell, types.Buy
	}
	if move >= m.p.LookbackTick {
		ctx.PlaceOrder(m.p.Market, buySide, snap.BestAsk, m.p.Qty, types.IOC, false)
		m.lastOrderTS, m.haveOrder = ctx.Now(), true
	} else if -move >= m.p.LookbackTick {
		ctx.PlaceOrder(m.p.Market, sellSide, snap.BestBid, m.p.Qty, types.IOC, false)
		m.lastOrderTS, m.haveOrder = ctx.Now(), true
	}
}

func (m *Momentum) OnTradePrint(strategy.Context, strategy.TradePrint)    {}
func (m *Momentum) OnTimer(strategy.Context, strategy.TimerTick)         {}
func (m *Momentum) OnOrderAck(strategy.Context, strategy.OrderAck)       {}
func (m *Momentum) OnOrderReject(strategy.Context, strategy.OrderReject) {}
func (m *Momentum) OnCancelAck(strategy.Context, strategy.CancelAck)     {}
func (m *Momentum) OnFill(strategy.Context, strategy.FillNotification)   {}
func (m *Momentum) OnSettlementVisible(strategy.Context, strategy.SettlementVisible) {
}
