// Package oms implements the order lifecycle state machine shared by every
// order the strategy harness submits: a typed, edge-checked progression
// from New through to a terminal state, rejecting any transition the venue
// could not actually produce.
package oms

import (
	"fmt"

	"github.com/0xtitan6/backtest-v2/internal/clock"
	"github.com/0xtitan6/backtest-v2/pkg/types"
)

// State is an order's lifecycle state.
type State int8

const (
	New State = iota
	Acked
	CancelPending
	PartiallyFilled
	Filled
	Cancelled
	Rejected
	Expired
)

func (s State) String() string {
	switch s {
	case New:
		return "NEW"
	case Acked:
		return "ACKED"
	case CancelPending:
		return "CANCEL_PENDING"
	case PartiallyFilled:
		return "PARTIALLY_FILLED"
	case Filled:
		return "FILLED"
	case Cancelled:
		return "CANCELLED"
	case Rejected:
		return "REJECTED"
	case Expired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether s is a final state from which no transition is
// ever legal again.
func (s State) Terminal() bool {
	switch s {
	case Filled, Cancelled, Rejected, Expired:
		return true
	default:
		return false
	}
}

// permittedEdges enumerates every legal (from, to) transition. Any edge not
// listed here is an illegal transition and TransitionError is returned
// instead of silently mutating state.
var permittedEdges = map[State]map[State]bool{
	New: {
		Acked:    true,
		Rejected: true,
	},
	Acked: {
		PartiallyFilled: true,
		Filled:          true,
		CancelPending:   true,
		Cancelled:       true, // venue may cancel an acked order outright (e.g. IOC remainder)
		Expired:         true,
	},
	CancelPending: {
		Cancelled:       true,
		PartiallyFilled: true, // a fill can race a cancel request
		Filled:          true,
	},
	PartiallyFilled: {
		PartiallyFilled: true,
		Filled:          true,
		CancelPending:   true,
		Cancelled:       true,
		Expired:         true,
	},
}

// TransitionError reports an illegal state transition attempt.
type TransitionError struct {
	OrderID types.OrderID
	From    State
	To      State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("oms: illegal transition for order %s: %s -> %s", e.OrderID, e.From, e.To)
}

// Order tracks one order's lifecycle state across the run.
type Order struct {
	ID         types.OrderID
	State      State
	LastTS     clock.Nanos
	FilledQty  int64
	TotalQty   int64
	History    []Transition
}

// Transition records one state change for audit / fingerprinting.
type Transition struct {
	From State
	To   State
	TS   clock.Nanos
}

// NewOrder creates an order tracker in state New.
func NewOrder(id types.OrderID, totalQty int64, ts clock.Nanos) *Order {
	return &Order{ID: id, State: New, TotalQty: totalQty, LastTS: ts}
}

// Apply attempts to transition the order to `to` at time ts. It returns a
// *TransitionError if the edge is not permitted; the order's state is left
// unchanged on error.
func (o *Order) Apply(to State, ts clock.Nanos) error {
	if o.State.Terminal() {
		return &TransitionError{OrderID: o.ID, From: o.State, To: to}
	}
	edges, ok := permittedEdges[o.State]
	if !ok || !edges[to] {
		return &TransitionError{OrderID: o.ID, From: o.State, To: to}
	}
	o.History = append(o.History, Transition{From: o.State, To: to, TS: ts})
	o.State = to
	o.LastTS = ts
	return nil
}

// ApplyFill records a fill of `qty` and drives the state transition to
// PartiallyFilled or Filled as appropriate. qty must not exceed remaining
// quantity; callers (internal/matching + internal/makerfill) are
// responsible for that invariant, checked by internal/invariants.
func (o *Order) ApplyFill(qty int64, ts clock.Nanos) error {
	next := PartiallyFilled
	if o.FilledQty+qty >= o.TotalQty {
		next = Filled
	}
	if err := o.Apply(next, ts); err != nil {
		return err
	}
	o.FilledQty += qty
	return nil
}

// RemainingQty returns the unfilled quantity.
func (o *Order) RemainingQty() int64 { return o.TotalQty - o.FilledQty }
