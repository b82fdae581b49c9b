// Package matching implements the price-time priority limit order book and
// matching engine for a single market's single outcome token: tick-grid
// discipline, GTC/IOC/FOK time-in-force, post-only rejection, self-trade
// policy, and a piecewise-linear maker/taker fee schedule.
//
// Unlike a live exchange, the book here advances strictly one event at a
// time under the merge queue's ordering — there is no concurrent access, so
// none of the book's state needs locking.
package matching

import (
	"fmt"

	"github.com/0xtitan6/backtest-v2/internal/clock"
	"github.com/0xtitan6/backtest-v2/pkg/types"
)

// Status is the lifecycle state of a resting or completed order.
type Status int8

const (
	StatusNew Status = iota
	StatusPartiallyFilled
	StatusFilled
	StatusCancelled
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusNew:
		return "NEW"
	case StatusPartiallyFilled:
		return "PARTIALLY_FILLED"
	case StatusFilled:
		return "FILLED"
	case StatusCancelled:
		return "CANCELLED"
	case StatusRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// Order is a single order resting in, or being matched against, the book.
// Price is in integer ticks on the market's TickSize grid — never a float,
// so the book's state is exactly reproducible.
type Order struct {
	ID          types.OrderID
	Side        types.Side
	PriceTicks  int64
	Quantity    int64 // lots, fixed-point integer
	FilledQty   int64
	TIF         types.TimeInForce
	PostOnly    bool
	SelfTrade   types.SelfTradePolicy
	OwnerTag    string // strategy/account identity, for self-trade detection
	ArrivalTS   clock.Nanos
	SequenceNum uint64
	Status      Status
}

// RemainingQty returns the unfilled quantity.
func (o *Order) RemainingQty() int64 { return o.Quantity - o.FilledQty }

// IsFilled reports whether the order is fully executed.
func (o *Order) IsFilled() bool { return o.FilledQty >= o.Quantity }

// IsActive reports whether the order can still participate in matching.
func (o *Order) IsActive() bool {
	return o.Status == StatusNew || o.Status == StatusPartiallyFilled
}

func (o *Order) String() string {
	return fmt.Sprintf("Order{%s %s %d@%d ticks, filled=%d, status=%s}",
		o.ID, o.Side, o.RemainingQty(), o.PriceTicks, o.FilledQty, o.Status)
}

// Fill is one execution resulting from matching an incoming order against a
// single resting order.
type Fill struct {
	TradeSeq     uint64
	MakerOrderID types.OrderID
	TakerOrderID types.OrderID
	PriceTicks   int64
	Quantity     int64
	TS           clock.Nanos
	TakerSide    types.Side
	MakerOwner   string
	TakerOwner   string
}

// ExecutionResult is the outcome of submitting an order to the engine.
type ExecutionResult struct {
	Order        *Order
	Fills        []Fill
	Accepted     bool
	RejectReason string
	RestedQty    int64
}
