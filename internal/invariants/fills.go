package invariants

import (
	"fmt"

	"github.com/0xtitan6/backtest-v2/internal/clock"
)

// CheckNoOverfill verifies a fill's quantity does not exceed what remained
// to be filled on the order it executed against — the matching engine must
// never report more quantity than it consumed.
func (e *Enforcer) CheckNoOverfill(ts clock.Nanos, fillQty, remainingBefore int64) error {
	if err := e.guard(); err != nil {
		return err
	}
	if fillQty > remainingBefore {
		return e.fail(Fills, ts, fmt.Sprintf("fill qty %d exceeds remaining %d", fillQty, remainingBefore))
	}
	return nil
}

// CheckFillPriceOnGrid verifies a fill's price lands on the market's tick
// grid, mirroring CheckPriceOnGrid but scoped to executed trades rather
// than resting book state.
func (e *Enforcer) CheckFillPriceOnGrid(ts clock.Nanos, priceTicks, grid int64) error {
	if err := e.guard(); err != nil {
		return err
	}
	if priceTicks <= 0 || priceTicks >= grid {
		return e.fail(Fills, ts, fmt.Sprintf("fill price %d ticks off grid (0, %d)", priceTicks, grid))
	}
	return nil
}

// CheckMakerFillAdmitted verifies a maker fill was admitted by
// internal/makerfill's gate before being posted to the ledger — a fill
// that bypassed the gate could not have proven its queue position was
// actually consumed or that it won its cancel race.
func (e *Enforcer) CheckMakerFillAdmitted(ts clock.Nanos, admitted bool, reason string) error {
	if err := e.guard(); err != nil {
		return err
	}
	if !admitted {
		return e.fail(Fills, ts, fmt.Sprintf("maker fill posted without gate admission: %s", reason))
	}
	return nil
}
