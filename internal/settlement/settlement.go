// Package settlement implements first-class settlement modeling for
// 15-minute up/down markets: explicit window boundaries, reference-price
// selection, outcome determination, and — critically — arrival-time
// visibility enforcement. A window's outcome is never knowable at its
// cutoff instant; it becomes knowable only once the settlement reference
// tick that resolves it has become visible in the simulation, exactly like
// every other piece of market data.
package settlement

import (
	"fmt"

	"github.com/0xtitan6/backtest-v2/internal/clock"
	"github.com/0xtitan6/backtest-v2/pkg/types"
)

// Window is one 15-minute up/down market's settlement window.
type Window struct {
	Market  types.MarketID
	StartTS clock.Nanos
	EndTS   clock.Nanos
}

// Contains reports whether ts falls within [StartTS, EndTS).
func (w Window) Contains(ts clock.Nanos) bool {
	return !ts.Before(w.StartTS) && ts.Before(w.EndTS)
}

// ReferenceTick is one point in the settlement reference price series —
// consumed only from the dataset's recorded reference stream, never from
// the execution book or a strategy's own signal feed.
type ReferenceTick struct {
	TS          clock.Nanos // visible_ts: when this tick becomes knowable to the backtest
	PriceFixed  int64       // AmountScale fixed-point price
	Fingerprint types.FingerprintU64
}

// Outcome determines the binary result from the window's open and close
// reference prices. Equality produces Tie; this package applies no
// further tie rule.
func Outcome(openPrice, closePrice int64) types.Outcome {
	switch {
	case closePrice > openPrice:
		return types.Up
	case closePrice < openPrice:
		return types.Down
	default:
		return types.Tie
	}
}

// Engine resolves windows against a recorded reference tick stream,
// enforcing that a window is never settled before its resolving tick has
// become visible.
type Engine struct {
	windows map[types.MarketID]*windowState
}

type windowState struct {
	window      Window
	openTick    *ReferenceTick
	closeTick   *ReferenceTick
	settled     bool
	outcome     types.Outcome
}

// New creates a settlement engine.
func New() *Engine {
	return &Engine{windows: make(map[types.MarketID]*windowState)}
}

// OpenWindow registers a market's window. Must be called before any
// reference ticks for that market are observed.
func (e *Engine) OpenWindow(w Window) {
	e.windows[w.Market] = &windowState{window: w}
}

// ObserveReferenceTick feeds one visible reference tick for a market. If
// the tick's TS lands at or after the window's StartTS for the first time,
// it is recorded as the open price; if it is the first tick at or after
// EndTS, it is recorded as the close price and the window becomes
// eligible for settlement. Ticks are expected to arrive in non-decreasing
// TS order (guaranteed by internal/merge), and observing them out of order
// is a programming error in the caller, not a runtime condition to
// recover from.
func (e *Engine) ObserveReferenceTick(market types.MarketID, tick ReferenceTick) error {
	ws, ok := e.windows[market]
	if !ok {
		return fmt.Errorf("settlement: no open window for market %s", market)
	}
	if ws.openTick == nil && !tick.TS.Before(ws.window.StartTS) {
		t := tick
		ws.openTick = &t
	}
	if ws.closeTick == nil && !tick.TS.Before(ws.window.EndTS) {
		t := tick
		ws.closeTick = &t
		ws.settled = true
		ws.outcome = Outcome(ws.openTick.PriceFixed, ws.closeTick.PriceFixed)
	}
	return nil
}

// Settled reports whether market's window has been resolved, and the
// outcome if so. It returns false if the resolving reference tick has not
// yet become visible — callers must never infer the outcome any other
// way, including by peeking at execution-book prices near the cutoff.
func (e *Engine) Settled(market types.MarketID) (types.Outcome, bool) {
	ws, ok := e.windows[market]
	if !ok || !ws.settled {
		return types.Tie, false
	}
	return ws.outcome, true
}

// ResolveIndeterminate force-settles every market whose close reference tick
// never arrived to types.Indeterminate, and returns the markets it resolved
// this way. It is meant to be called exactly once, after a dataset has been
// fully drained — a window still open at that point has no resolving tick
// left to wait for, so it can never become knowable any other way.
func (e *Engine) ResolveIndeterminate() []types.MarketID {
	var resolved []types.MarketID
	for market, ws := range e.windows {
		if ws.settled {
			continue
		}
		ws.settled = true
		ws.outcome = types.Indeterminate
		resolved = append(resolved, market)
	}
	return resolved
}
