package examples

import (
	"sync"

	"github.com/0xtitan6/backtest-v2/internal/clock"
	"github.com/0xtitan6/backtest-v2/pkg/types"
)

// Position is one side's (YES or NO) holdings in fixed-point units: Qty is
// an integer share count, AvgEntryTicks is the volume-weighted average
// entry price in price ticks. There are no floats here — this is the
// strategy's own bookkeeping, kept only to drive its quoting decision; the
// authoritative PnL lives in the ledger the harness driver posts to, which
// this package never touches.
type Position struct {
	YesQty          int64
	NoQty           int64
	AvgEntryYesTick int64
	AvgEntryNoTick  int64
	RealizedPnL     int64 // fixed-point, types.AmountScale units
	UnrealizedPnL   int64 // fixed-point, types.AmountScale units
	LastUpdated     clock.Nanos
}

// Inventory tracks fixed-point position for one market from FillNotification
// callbacks only — it never reads a clock itself, and every timestamp it
// records is one the harness supplied.
type Inventory struct {
	mu       sync.RWMutex
	yesToken types.TokenID
	noToken  types.TokenID
	grid     int64
	pos      Position
}

// NewInventory creates inventory tracking for one market's two outcome
// tokens, at the tick grid those tokens trade on.
func NewInventory(yesToken, noToken types.TokenID, grid int64) *Inventory {
	return &Inventory{yesToken: yesToken, noToken: noToken, grid: grid}
}

// OnFill applies a fill to the relevant side's position, realizing PnL on
// any reduction.
func (inv *Inventory) OnFill(tokenID types.TokenID, side types.Side, priceTicks, qty int64, ts clock.Nanos) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if tokenID == inv.yesToken {
		inv.applyFill(&inv.pos.YesQty, &inv.pos.AvgEntryYesTick, &inv.pos.RealizedPnL, side, priceTicks, qty)
	} else {
		inv.applyFill(&inv.pos.NoQty, &inv.pos.AvgEntryNoTick, &inv.pos.RealizedPnL, side, priceTicks, qty)
	}
	inv.pos.LastUpdated = ts
}

func (inv *Inventory) applyFill(qty *int64, avgEntryTick *int64, realizedPnL *int64, side types.Side, priceTicks, fillQty int64) {
	if side == types.Buy {
		totalCost := *avgEntryTick**qty + priceTicks*fillQty
		*qty += fillQty
		if *qty > 0 {
			*avgEntryTick = totalCost / *qty
		}
		return
	}

	if *qty > 0 {
		sellQty := fillQty
		if sellQty > *qty {
			sellQty = *qty
		}
		*realizedPnL += (priceTicks - *avgEntryTick) * sellQty * (types.AmountScale / inv.grid)
	}
	*qty -= fillQty
	if *qty <= 0 {
		*qty = 0
		*avgEntryTick = 0
	}
}

// Snapshot returns a copy of the current position.
func (inv *Inventory) Snapshot() Position {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.pos
}

// NetDelta returns inventory skew in fixed-point [-grid, grid], i.e.
// +grid = fully long YES, -grid = fully long NO, 0 = balanced. Divide by
// grid to recover the Avellaneda-Stoikov "q" in [-1, 1].
func (inv *Inventory) NetDelta() int64 {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	total := inv.pos.YesQty + inv.pos.NoQty
	if total == 0 {
		return 0
	}
	return (inv.pos.YesQty - inv.pos.NoQty) * inv.grid / total
}

// UpdateMarkToMarket recalculates unrealized PnL against a mid price (in
// ticks on this inventory's grid).
func (inv *Inventory) UpdateMarkToMarket(midTicks int64) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	scale := types.AmountScale / inv.grid
	yesUnreal := inv.pos.YesQty * (midTicks - inv.pos.AvgEntryYesTick) * scale
	noUnreal := inv.pos.NoQty * ((inv.grid - midTicks) - inv.pos.AvgEntryNoTick) * scale
	inv.pos.UnrealizedPnL = yesUnreal + noUnreal
}
