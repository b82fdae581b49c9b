// Package examples provides the certified example strategies used by the
// gate suite and sensitivity sweep: a two-sided market maker (Avellaneda),
// a momentum taker, a no-op smoke-test strategy, and a random taker used
// purely as an adversarial input to the trust gates. All four implement
// strategy.Strategy and read the current time only from strategy.Context.
package examples

import (
	"math"

	"github.com/0xtitan6/backtest-v2/internal/clock"
	"github.com/0xtitan6/backtest-v2/internal/strategy"
	"github.com/0xtitan6/backtest-v2/pkg/types"
)

// AvellanedaParams configures the quoting model. Unlike the live bot's
// config.StrategyConfig, these are plain fields set directly by whatever
// constructs the strategy (the CLI config loader or a sweep harness) — the
// strategy package itself never reads a config file.
type AvellanedaParams struct {
	Market        types.MarketID
	YesToken      types.TokenID
	NoToken       types.TokenID
	Grid          int64 // tick grid, e.g. 100
	OrderQty      int64 // base order size in shares
	RefreshEvery  clock.Nanos
	Gamma         float64
	Sigma         float64
	K             float64
	Horizon       float64 // T, in seconds
	MinSpreadTick int64

	FlowWindow        clock.Nanos
	FlowThreshold     float64
	FlowCooldown      clock.Nanos
	FlowMaxMultiplier float64
}

// Avellaneda quotes a two-sided market around a reservation price that
// skews with inventory, per the Avellaneda-Stoikov model:
//
//	reservation_price = mid - q * gamma * sigma^2 * T
//	optimal_spread    = gamma * sigma^2 * T + (2/gamma) * ln(1 + gamma/k)
//
// Timer-driven refresh cancels and replaces both sides every RefreshEvery;
// the only state carried between callbacks is inventory and flow history.
type Avellaneda struct {
	p         AvellanedaParams
	inventory *Inventory
	flow      *FlowTracker

	lastMidTicks int64
	haveMid      bool

	bidID, askID types.OrderID
	haveBid      bool
	haveAsk      bool
}

// NewAvellaneda builds a strategy instance for one market.
func NewAvellaneda(p AvellanedaParams) *Avellaneda {
	return &Avellaneda{
		p:         p,
		inventory: NewInventory(p.YesToken, p.NoToken, p.Grid),
		flow:      NewFlowTracker(p.FlowWindow, p.FlowThreshold, p.FlowCooldown, p.FlowMaxMultiplier),
	}
}

const timerTokenRefresh = 1

func (a *Avellaneda) OnBookSnapshot(ctx strategy.Context, snap strategy.BookSnapshot) {
	if snap.BestBid <= 0 || snap.BestAsk <= 0 {
		a.haveMid = false
		return
	}
	a.lastMidTicks = (snap.BestBid + snap.BestAsk) / 2
	a.haveMid = true
}

func (a *Avellaneda) OnTradePrint(ctx strategy.Context, tp strategy.TradePrint) {}

func (a *Avellaneda) OnTimer(ctx strategy.Context, t strategy.TimerTick) {
	if t.Token != timerTokenRefresh {
		return
	}
	a.requote(ctx)
	ctx.SetTimer(a.p.RefreshEvery, timerTokenRefresh)
}

// Start arms the first refresh timer. Call once after construction.
func (a *Avellaneda) Start(ctx strategy.Context) {
	ctx.SetTimer(a.p.RefreshEvery, timerTokenRefresh)
}

func (a *Avellaneda) OnOrderAck(ctx strategy.Context, ack strategy.OrderAck) {}

func (a *Avellaneda) OnOrderReject(ctx strategy.Context, r strategy.OrderReject) {
	if r.OrderID == a.bidID {
		a.haveBid = false
	}
	if r.OrderID == a.askID {
		a.haveAsk = false
	}
}

func (a *Avellaneda) OnCancelAck(ctx strategy.Context, c strategy.CancelAck) {
	if c.OrderID == a.bidID {
		a.haveBid = false
	}
	if c.OrderID == a.askID {
		a.haveAsk = false
	}
}

// OnFill updates inventory and flow-toxicity state. Quotes are placed
// against a single book per market representing the YES outcome's price
// (buying NO is modeled as selling YES, per the venue's complementary
// token convention), so every fill here is attributed to YesToken.
func (a *Avellaneda) OnFill(ctx strategy.Context, f strategy.FillNotification) {
	a.inventory.OnFill(a.p.YesToken, f.Side, f.PriceTicks, f.Quantity, f.TS)
	a.flow.AddFill(f.TS, f.Side)

	if f.OrderID == a.bidID {
		a.haveBid = false
	}
	if f.OrderID == a.askID {
		a.haveAsk = false
	}
}

func (a *Avellaneda) OnSettlementVisible(ctx strategy.Context, s strategy.SettlementVisible) {
	if s.Market != a.p.Market {
		return
	}
	a.haveBid, a.haveAsk = false, false
}

// requote cancels stale quotes and places fresh ones around the current
// reservation price.
func (a *Avellaneda) requote(ctx strategy.Context) {
	if !a.haveMid {
		return
	}

	if a.haveBid {
		ctx.CancelOrder(a.bidID)
		a.haveBid = false
	}
	if a.haveAsk {
		ctx.CancelOrder(a.askID)
		a.haveAsk = false
	}

	bidTick, askTick, qty := a.computeQuotes(ctx.Now())
	if qty <= 0 {
		return
	}
	if bidTick > 0 {
		a.bidID = ctx.PlaceOrder(a.p.Market, types.Buy, bidTick, qty, types.GTC, true)
		a.haveBid = true
	}
	if askTick > 0 && askTick < a.p.Grid {
		a.askID = ctx.PlaceOrder(a.p.Market, types.Sell, askTick, qty, types.GTC, true)
		a.haveAsk = true
	}
}

// computeQuotes implements the Avellaneda-Stoikov formula in floating
// point (the model's exponentials have no meaningful fixed-point form) and
// rounds the result back onto the tick grid before handing it to the
// matching engine, which trades exclusively in integer ticks.
func (a *Avellaneda) computeQuotes(now clock.Nanos) (bidTick, askTick, qty int64) {
	mid := float64(a.lastMidTicks) / float64(a.p.Grid)
	q := float64(a.inventory.NetDelta()) / float64(a.p.Grid)
	gamma, sigma, k, T := a.p.Gamma, a.p.Sigma, a.p.K, a.p.Horizon
	minSpread := float64(a.p.MinSpreadTick) / float64(a.p.Grid)

	flowMultiplier := a.flow.GetSpreadMultiplier(now)
	minSpread *= flowMultiplier

	reservation := mid - q*gamma*sigma*sigma*T
	spread := gamma*sigma*sigma*T + (2.0/gamma)*math.Log(1+gamma/k)
	spread *= flowMultiplier

	bid := reservation - spread/2
	ask := reservation + spread/2
	if ask-bid < minSpread {
		bid = reservation - minSpread/2
		ask = reservation + minSpread/2
	}

	tickDec := 1.0 / float64(a.p.Grid)
	bid = clampF(bid, tickDec, 1-tickDec)
	ask = clampF(ask, tickDec, 1-tickDec)
	if bid >= ask {
		bid = ask - tickDec
	}

	bidTick = int64(math.Floor(bid * float64(a.p.Grid)))
	askTick = int64(math.Ceil(ask * float64(a.p.Grid)))
	if bidTick >= askTick {
		askTick = bidTick + 1
	}

	absQ := math.Abs(q)
	sizeFactor := 1.0 - 0.5*absQ
	qty = int64(float64(a.p.OrderQty) * sizeFactor)
	return bidTick, askTick, qty
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
