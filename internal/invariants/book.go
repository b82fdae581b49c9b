package invariants

import (
	"fmt"

	"github.com/0xtitan6/backtest-v2/internal/clock"
)

// CheckNotCrossed verifies the book's best bid is strictly below its best
// ask whenever both sides are present — a crossed book is never a valid
// matching-engine state, since Engine.Submit always matches a crossing
// order before it can rest.
func (e *Enforcer) CheckNotCrossed(ts clock.Nanos, bestBid, bestAsk int64, haveBid, haveAsk bool) error {
	if err := e.guard(); err != nil {
		return err
	}
	if haveBid && haveAsk && bestBid >= bestAsk {
		return e.fail(Book, ts, fmt.Sprintf("crossed book: bid %d >= ask %d", bestBid, bestAsk))
	}
	return nil
}

// CheckPriceOnGrid verifies a price lands on the market's tick grid and
// within the open (0, grid) range, mirroring types.TickSize.OnGrid.
func (e *Enforcer) CheckPriceOnGrid(ts clock.Nanos, priceTicks, grid int64) error {
	if err := e.guard(); err != nil {
		return err
	}
	if priceTicks <= 0 || priceTicks >= grid {
		return e.fail(Book, ts, fmt.Sprintf("price %d ticks off grid (0, %d)", priceTicks, grid))
	}
	return nil
}

// CheckSizePositive verifies an order or resting quantity is strictly
// positive — a zero or negative size anywhere in the book is always a
// programming error, never a legitimate state.
func (e *Enforcer) CheckSizePositive(ts clock.Nanos, qty int64) error {
	if err := e.guard(); err != nil {
		return err
	}
	if qty <= 0 {
		return e.fail(Book, ts, fmt.Sprintf("non-positive size %d", qty))
	}
	return nil
}
