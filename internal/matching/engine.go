package matching

import (
	"github.com/0xtitan6/backtest-v2/internal/clock"
	"github.com/0xtitan6/backtest-v2/pkg/types"
)

// Engine matches incoming orders against a Book under strict price-time
// priority, applying tick discipline, time-in-force, post-only rejection,
// self-trade policy, and the fee schedule. One Engine serves one outcome
// token's book.
type Engine struct {
	book      *Book
	tick      types.TickSize
	tradeSeq  uint64
}

// NewEngine creates a matching engine for a book on the given tick grid.
func NewEngine(tick types.TickSize) *Engine {
	return &Engine{book: NewBook(tick), tick: tick}
}

// Book exposes the underlying book, e.g. for depth snapshots.
func (e *Engine) Book() *Book { return e.book }

// crosses reports whether an incoming order at (side, priceTicks) can match
// against the best resting price on the opposite side.
func (e *Engine) crosses(side types.Side, priceTicks int64) (int64, bool) {
	if side == types.Buy {
		ask, ok := e.book.BestAsk()
		if !ok || priceTicks < ask {
			return 0, false
		}
		return ask, true
	}
	bid, ok := e.book.BestBid()
	if !ok || priceTicks > bid {
		return 0, false
	}
	return bid, true
}

// Submit processes an incoming order against the book, producing fills and
// either resting, cancelling, or rejecting whatever remains.
func (e *Engine) Submit(o *Order, ts clock.Nanos) ExecutionResult {
	if !e.tick.OnGrid(o.PriceTicks) {
		o.Status = StatusRejected
		return ExecutionResult{Order: o, Accepted: false, RejectReason: "price off tick grid"}
	}

	var fills []Fill
	takerDone := false
	for o.RemainingQty() > 0 && !takerDone {
		matchPrice, ok := e.crosses(o.Side, o.PriceTicks)
		if !ok {
			break
		}
		if o.PostOnly {
			o.Status = StatusRejected
			return ExecutionResult{Order: o, Accepted: false, RejectReason: "post-only order would have crossed the book"}
		}

		opp := e.oppositeLevel(o.Side)
		node := opp.front()
		if node == nil {
			break
		}

		if e.isSelfTrade(o, node.order) {
			takerDone = !e.resolveSelfTrade(o, node)
			continue
		}

		maker := node.order
		qty := min64(o.RemainingQty(), maker.RemainingQty())

		e.tradeSeq++
		fills = append(fills, Fill{
			TradeSeq:     e.tradeSeq,
			MakerOrderID: maker.ID,
			TakerOrderID: o.ID,
			PriceTicks:   matchPrice,
			Quantity:     qty,
			TS:           ts,
			TakerSide:    o.Side,
			MakerOwner:   maker.OwnerTag,
			TakerOwner:   o.OwnerTag,
		})

		o.FilledQty += qty
		maker.FilledQty += qty
		opp.totalQty -= qty

		if maker.IsFilled() {
			maker.Status = StatusFilled
			e.book.Cancel(maker.ID)
		} else {
			maker.Status = StatusPartiallyFilled
		}
	}

	result := ExecutionResult{Order: o, Fills: fills, Accepted: true}

	if takerDone {
		// Self-trade policy already set the taker's terminal status
		// (Cancelled or Rejected) and it must not proceed to rest.
		if o.Status == StatusRejected {
			result.Accepted = false
			result.RejectReason = "self-trade rejected"
		}
		return result
	}

	remaining := o.RemainingQty()
	switch {
	case remaining == 0:
		o.Status = StatusFilled
		return result
	case o.TIF == types.FOK && len(fills) > 0:
		// FOK must be all-or-nothing: unwind fills is not representable once
		// the matches have happened, so FOK orders are checked for full
		// fillability before any match is applied (see SubmitFOK and
		// fullyFillable below); reaching here with a partial fill means the
		// pre-check was skipped or a self-trade cut the sweep short.
		fallthrough
	case o.TIF == types.IOC || o.TIF == types.FOK:
		o.Status = StatusPartiallyFilled
		if len(fills) == 0 {
			o.Status = StatusCancelled
		}
		result.RestedQty = 0
		return result
	default: // GTC
		if err := e.book.Rest(o); err != nil {
			o.Status = StatusRejected
			result.Accepted = false
			result.RejectReason = err.Error()
			return result
		}
		if len(fills) > 0 {
			o.Status = StatusPartiallyFilled
		} else {
			o.Status = StatusNew
		}
		result.RestedQty = remaining
		return result
	}
}

// SubmitFOK is the FOK entry point: it first checks whether the order is
// fully fillable against current book depth and, if not, rejects without
// touching the book at all — FOK orders must never produce a partial fill.
func (e *Engine) SubmitFOK(o *Order, ts clock.Nanos) ExecutionResult {
	if o.TIF != types.FOK {
		return e.Submit(o, ts)
	}
	if !e.fullyFillable(o) {
		o.Status = StatusCancelled
		return ExecutionResult{Order: o, Accepted: true, RejectReason: "FOK not fully fillable"}
	}
	return e.Submit(o, ts)
}

// fullyFillable reports whether o's full remaining quantity could be
// satisfied by current resting liquidity on the opposite side at prices
// that cross o's limit, walking every crossing level from the touch
// outward. It ignores self-trade interactions: resting orders that would
// self-cross are counted as fillable, so an order whose sweep is cut short
// by the self-trade policy can still pass this check.
func (e *Engine) fullyFillable(o *Order) bool {
	need := o.RemainingQty()
	t, ok, step := int64(0), false, int64(1)
	if o.Side == types.Buy {
		t, ok = e.book.BestAsk()
	} else {
		t, ok = e.book.BestBid()
		step = -1
	}
	for ; ok && need > 0 && t >= 1 && t < e.book.grid; t += step {
		if (o.Side == types.Buy && t > o.PriceTicks) || (o.Side == types.Sell && t < o.PriceTicks) {
			break
		}
		need -= e.book.DepthAt(t)
	}
	return need <= 0
}

func (e *Engine) oppositeLevel(side types.Side) *priceLevel {
	var priceTicks int64
	if side == types.Buy {
		priceTicks, _ = e.book.BestAsk()
	} else {
		priceTicks, _ = e.book.BestBid()
	}
	return e.book.levelFor(priceTicks)
}

func (e *Engine) isSelfTrade(taker *Order, maker *Order) bool {
	return taker.OwnerTag != "" && taker.OwnerTag == maker.OwnerTag
}

// resolveSelfTrade applies the configured self-trade policy to a detected
// self-cross. It returns true if the taker may continue matching against
// the book (cancel-oldest removes the maker and the taker's turn
// continues), false if the taker's participation at this price is over
// (cancel-newest or reject).
func (e *Engine) resolveSelfTrade(taker *Order, makerNode *orderNode) bool {
	switch taker.SelfTrade {
	case types.SelfTradeCancelOldest:
		e.book.Cancel(makerNode.order.ID)
		return true
	case types.SelfTradeCancelNewest:
		taker.Status = StatusCancelled
		return false
	default: // SelfTradeReject
		taker.Status = StatusRejected
		return false
	}
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
