package invariants

import (
	"fmt"

	"github.com/0xtitan6/backtest-v2/internal/clock"
	"github.com/0xtitan6/backtest-v2/pkg/types"
)

// CheckTransition records an illegal OMS transition as an invariant
// violation. transitionErr is whatever internal/oms.Order.Apply returned;
// passing nil is a no-op so callers can check unconditionally after every
// Apply call.
func (e *Enforcer) CheckTransition(ts clock.Nanos, orderID types.OrderID, transitionErr error) error {
	if err := e.guard(); err != nil {
		return err
	}
	if transitionErr == nil {
		return nil
	}
	return e.fail(OMS, ts, fmt.Sprintf("order %s: %v", orderID, transitionErr))
}
