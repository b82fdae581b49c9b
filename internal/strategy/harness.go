// Package strategy defines the production-identical strategy harness: the
// same interface a strategy implements to trade historically and to trade
// live, with only the adapter underneath swapped. Strategy code is never
// trusted with wall-clock time or any other ambient I/O — every fact it can
// observe arrives through one of the On* callbacks below, and every action
// it can take goes back out through Context, so a strategy's entire
// behavior is reconstructible from the sequence of calls it received.
package strategy

import (
	"github.com/0xtitan6/backtest-v2/internal/clock"
	"github.com/0xtitan6/backtest-v2/pkg/types"
)

// BookSnapshot is a full top-of-book view delivered on L2 snapshot events.
type BookSnapshot struct {
	Market  types.MarketID
	TS      clock.Nanos
	BestBid int64 // price in ticks, 0 if no bid
	BestAsk int64 // price in ticks, 0 if no ask
	BidSize int64
	AskSize int64
}

// TradePrint is a public trade print on the venue's book (not necessarily
// one of the strategy's own fills).
type TradePrint struct {
	Market     types.MarketID
	TS         clock.Nanos
	PriceTicks int64
	Quantity   int64
	Side       types.Side // aggressor side
}

// TimerTick is delivered when a timer the strategy previously armed via
// Context.SetTimer fires.
type TimerTick struct {
	TS    clock.Nanos
	Token uint64 // the token passed to SetTimer, so the strategy can tell timers apart
}

// OrderAck reports that a previously placed order was accepted into the
// book (or immediately matched).
type OrderAck struct {
	TS      clock.Nanos
	OrderID types.OrderID
}

// OrderReject reports that a previously placed order was rejected before
// ever resting or matching.
type OrderReject struct {
	TS      clock.Nanos
	OrderID types.OrderID
	Reason  string
}

// CancelAck reports that a cancel request was honored.
type CancelAck struct {
	TS      clock.Nanos
	OrderID types.OrderID
}

// FillNotification reports a fill against one of the strategy's own orders.
type FillNotification struct {
	TS         clock.Nanos
	OrderID    types.OrderID
	PriceTicks int64
	Quantity   int64
	Side       types.Side
	IsMaker    bool
}

// SettlementVisible reports that a market's outcome has become knowable —
// delivered at the instant internal/settlement latches it, never before.
type SettlementVisible struct {
	TS      clock.Nanos
	Market  types.MarketID
	Outcome types.Outcome
}

// Context is the only channel through which a strategy may act or learn
// the current time. Strategy code must never read a wall clock directly;
// Context.Now is backed by the merge queue's simulation clock in backtest
// mode and by the live adapter's received-event timestamp in live mode, so
// strategy logic is identical in both.
type Context interface {
	// Now returns the current simulation or live-adapter time.
	Now() clock.Nanos

	// PlaceOrder submits a new order and returns the OrderID the strategy
	// must use to refer to it in later CancelOrder calls and to recognize
	// it in OrderAck/OrderReject/FillNotification callbacks.
	PlaceOrder(market types.MarketID, side types.Side, priceTicks, quantity int64, tif types.TimeInForce, postOnly bool) types.OrderID

	// CancelOrder requests cancellation of a resting order. It is not
	// guaranteed to win a race against an in-flight fill; strategies must
	// handle a FillNotification arriving for an order they just cancelled.
	CancelOrder(id types.OrderID)

	// SetTimer arms a one-shot timer that fires as a TimerTick at TS in
	// [now, now+delay]. token is echoed back so multi-timer strategies can
	// distinguish which timer fired.
	SetTimer(delay clock.Nanos, token uint64)
}

// Strategy is the sealed callback interface every strategy implements.
// Every method is optional in spirit but all are declared so the compiler
// enforces a strategy cannot observe anything outside this surface — there
// is no back door to a clock, a socket, or a file.
type Strategy interface {
	// OnBookSnapshot is called whenever a full top-of-book view arrives.
	OnBookSnapshot(ctx Context, snap BookSnapshot)

	// OnTradePrint is called for public trade prints.
	OnTradePrint(ctx Context, tp TradePrint)

	// OnTimer is called when an armed timer fires.
	OnTimer(ctx Context, t TimerTick)

	// OnOrderAck/OnOrderReject/OnCancelAck report the strategy's own order
	// lifecycle events.
	OnOrderAck(ctx Context, a OrderAck)
	OnOrderReject(ctx Context, r OrderReject)
	OnCancelAck(ctx Context, a CancelAck)

	// OnFill reports a fill against the strategy's own order.
	OnFill(ctx Context, f FillNotification)

	// OnSettlementVisible reports that a market's outcome became knowable.
	OnSettlementVisible(ctx Context, s SettlementVisible)
}

// DecisionProof is a hash of one strategy decision: internal/engine
// computes one for every PlaceOrder call from that order's own fields
// (timestamp, id, market, side, price, quantity, TIF, post-only), hashing
// their canonical JSON the way dataset record fingerprints are hashed, and
// folds it into the run's behavior hash. Callbacks that place no order
// produce no proof, and proofs are not compared callback by callback: a
// divergent replay shows up as a different behavior fingerprint.
type DecisionProof struct {
	TS   clock.Nanos
	Hash types.FingerprintU64
}
