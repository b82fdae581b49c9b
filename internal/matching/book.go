package matching

import (
	"fmt"

	"github.com/0xtitan6/backtest-v2/pkg/types"
)

// Book is a price-time priority limit order book for one outcome token,
// indexed by tick. Because a market's tradeable tick range is small and
// fixed (1..Grid()-1), the ladder is a flat, tick-indexed array rather than
// a balanced tree: O(1) access to any level, and best-bid/ask tracked by two
// cursors that only ever move toward the touch as levels empty.
type Book struct {
	tick   types.TickSize
	grid   int64
	levels []*priceLevel // index 0 unused; valid ticks are [1, grid-1]
	orders map[types.OrderID]*orderNode

	bestBid int64 // highest occupied bid tick, 0 if none
	bestAsk int64 // lowest occupied ask tick, grid if none (sentinel)
}

// NewBook creates an empty book for the given tick size.
func NewBook(tick types.TickSize) *Book {
	grid := tick.Grid()
	return &Book{
		tick:    tick,
		grid:    grid,
		levels:  make([]*priceLevel, grid+1),
		orders:  make(map[types.OrderID]*orderNode),
		bestBid: 0,
		bestAsk: grid,
	}
}

// levelFor lazily creates the price level at priceTicks if absent.
func (b *Book) levelFor(priceTicks int64) *priceLevel {
	lvl := b.levels[priceTicks]
	if lvl == nil {
		lvl = newPriceLevel(priceTicks)
		b.levels[priceTicks] = lvl
	}
	return lvl
}

// restSide returns the ladder side an order of this side rests on: buys
// rest as bids, sells rest as asks.
func (b *Book) restSide(side types.Side) bool { return side == types.Buy }

// Rest places a resting (non-matched remainder of an) order on the book.
func (b *Book) Rest(o *Order) error {
	if !b.tick.OnGrid(o.PriceTicks) {
		return fmt.Errorf("matching: price %d not on grid for tick size %s", o.PriceTicks, b.tick)
	}
	if _, exists := b.orders[o.ID]; exists {
		return fmt.Errorf("matching: order %s already resting", o.ID)
	}
	lvl := b.levelFor(o.PriceTicks)
	node := lvl.append(o)
	b.orders[o.ID] = node

	if b.restSide(o.Side) {
		if o.PriceTicks > b.bestBid {
			b.bestBid = o.PriceTicks
		}
	} else {
		if o.PriceTicks < b.bestAsk {
			b.bestAsk = o.PriceTicks
		}
	}
	return nil
}

// Cancel removes a resting order by ID. Returns the order, or nil if not
// found.
func (b *Book) Cancel(id types.OrderID) *Order {
	node, ok := b.orders[id]
	if !ok {
		return nil
	}
	o := node.order
	lvl := node.level
	lvl.remove(node)
	delete(b.orders, id)
	if lvl.isEmpty() {
		b.levels[lvl.priceTicks] = nil
		b.repairBestAfterEmpty(o.Side, lvl.priceTicks)
	}
	o.Status = StatusCancelled
	return o
}

// repairBestAfterEmpty advances the best-bid/ask cursor inward after the
// level it pointed at emptied out.
func (b *Book) repairBestAfterEmpty(side types.Side, emptiedTick int64) {
	if side == types.Buy {
		if b.bestBid != emptiedTick {
			return
		}
		for t := emptiedTick - 1; t >= 1; t-- {
			if lvl := b.levels[t]; lvl != nil && !lvl.isEmpty() {
				b.bestBid = t
				return
			}
		}
		b.bestBid = 0
	} else {
		if b.bestAsk != emptiedTick {
			return
		}
		for t := emptiedTick + 1; t < b.grid; t++ {
			if lvl := b.levels[t]; lvl != nil && !lvl.isEmpty() {
				b.bestAsk = t
				return
			}
		}
		b.bestAsk = b.grid
	}
}

// BestBid returns the best bid tick and whether one exists.
func (b *Book) BestBid() (int64, bool) {
	if b.bestBid == 0 {
		return 0, false
	}
	return b.bestBid, true
}

// BestAsk returns the best ask tick and whether one exists.
func (b *Book) BestAsk() (int64, bool) {
	if b.bestAsk == b.grid {
		return 0, false
	}
	return b.bestAsk, true
}

// Get returns a resting order by ID.
func (b *Book) Get(id types.OrderID) *Order {
	if node, ok := b.orders[id]; ok {
		return node.order
	}
	return nil
}

// QueueAheadQty returns the total resting quantity strictly ahead of order
// id at its price level — the basis for the maker-fill queue-position model.
func (b *Book) QueueAheadQty(id types.OrderID) (int64, bool) {
	node, ok := b.orders[id]
	if !ok {
		return 0, false
	}
	var ahead int64
	for n := node.level.front(); n != nil && n != node; n = n.next {
		ahead += n.order.RemainingQty()
	}
	return ahead, true
}

// DepthAt returns the total resting quantity at priceTicks, 0 if empty.
func (b *Book) DepthAt(priceTicks int64) int64 {
	if priceTicks < 0 || priceTicks > b.grid {
		return 0
	}
	if lvl := b.levels[priceTicks]; lvl != nil {
		return lvl.totalQty
	}
	return 0
}

// TotalOrders returns the number of resting orders.
func (b *Book) TotalOrders() int { return len(b.orders) }
