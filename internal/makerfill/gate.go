// Package makerfill implements the single choke point every simulated
// maker (passive) fill must pass through. A maker fill is admissible if
// and only if it carries both a QueueProof (queue position was actually
// consumed) and a CancelRaceProof (the order was still live at the venue
// at fill time) — proofs are never assumed, only presented by the caller
// after being derived from observed feed state. A fill missing or failing
// either proof is rejected and never reaches the ledger.
package makerfill

import (
	"fmt"

	"github.com/0xtitan6/backtest-v2/internal/clock"
	"github.com/0xtitan6/backtest-v2/pkg/types"
)

// QueueProof asserts that the resting order's queue-ahead quantity had
// been fully consumed by the time of the proposed fill.
type QueueProof struct {
	OrderID        types.OrderID
	RemainingAhead int64
	ConsumedAsOfTS clock.Nanos
}

// Valid reports whether the proof actually demonstrates queue consumption.
func (p QueueProof) Valid() bool { return p.RemainingAhead <= 0 }

// CancelRaceProof asserts that the resting order had not already been
// cancelled (by the strategy or by a prior fill) as of the fill time —
// ruling out a fill manufactured against an order that had already lost
// its race with a cancel request.
type CancelRaceProof struct {
	OrderID      types.OrderID
	LiveAtFillTS bool
	FillTS       clock.Nanos
	CancelTS     clock.Nanos // only meaningful if a cancel was ever requested
	HasCancel    bool
}

// Valid reports whether the proof demonstrates the order was live at fill
// time: either no cancel was ever requested, or the cancel's own visible
// effect came strictly after the fill.
func (p CancelRaceProof) Valid() bool {
	if !p.HasCancel {
		return p.LiveAtFillTS
	}
	return p.LiveAtFillTS && p.FillTS < p.CancelTS
}

// ProposedFill is a candidate maker fill awaiting admission.
type ProposedFill struct {
	OrderID    types.OrderID
	PriceTicks int64
	Quantity   int64
	FillTS     clock.Nanos
	Queue      QueueProof
	CancelRace CancelRaceProof
}

// Verdict is the gate's admit/reject decision, with a reason when rejected.
type Verdict struct {
	Admitted bool
	Reason   string
}

// Counters tallies gate decisions for the run artifact.
type Counters struct {
	Admitted uint64
	Rejected uint64
}

// Gate is the sole entry point for maker-fill admission.
type Gate struct {
	counters Counters
}

// New creates a maker-fill gate.
func New() *Gate { return &Gate{} }

// Counters returns a copy of the gate's decision counters.
func (g *Gate) Counters() Counters { return g.counters }

// Admit evaluates a proposed maker fill against both required proofs. It
// is the ONLY function in the codebase permitted to authorize a maker fill
// for crediting to the ledger — callers must not bypass it.
func (g *Gate) Admit(pf ProposedFill) Verdict {
	if pf.OrderID != pf.Queue.OrderID || pf.OrderID != pf.CancelRace.OrderID {
		g.counters.Rejected++
		return Verdict{Admitted: false, Reason: fmt.Sprintf("proof order id mismatch for %s", pf.OrderID)}
	}
	if !pf.Queue.Valid() {
		g.counters.Rejected++
		return Verdict{Admitted: false, Reason: fmt.Sprintf("queue not consumed: %d remaining ahead", pf.Queue.RemainingAhead)}
	}
	if !pf.CancelRace.Valid() {
		g.counters.Rejected++
		return Verdict{Admitted: false, Reason: "order lost cancel race or was not live at fill time"}
	}
	g.counters.Admitted++
	return Verdict{Admitted: true}
}
