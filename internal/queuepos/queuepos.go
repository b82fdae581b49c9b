// Package queuepos tracks queue position for resting maker orders: the
// total visible size ahead of an order at its price level, consumed as
// trade prints and book deltas are observed on the feed. It is the source
// of the QueueProof the maker-fill gate requires before admitting a
// passive fill.
package queuepos

import "github.com/0xtitan6/backtest-v2/pkg/types"

// Tracker maintains queue-ahead state for every resting order it has been
// told to watch. One Tracker serves one price level within one book.
type Tracker struct {
	ahead map[types.OrderID]int64
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{ahead: make(map[types.OrderID]int64)}
}

// Watch begins tracking order id with the given initial visible size ahead
// of it (the resting depth at its price level at submission time).
func (t *Tracker) Watch(id types.OrderID, initialAhead int64) {
	if initialAhead < 0 {
		initialAhead = 0
	}
	t.ahead[id] = initialAhead
}

// Forget stops tracking an order (cancelled, filled, or expired).
func (t *Tracker) Forget(id types.OrderID) {
	delete(t.ahead, id)
}

// Consume reduces order id's queue-ahead by qty, reflecting trade-print
// volume or book deltas consumed ahead of it; other tracked orders are not
// touched. It never goes negative, and an untracked id is ignored.
func (t *Tracker) Consume(id types.OrderID, qty int64) {
	remaining, ok := t.ahead[id]
	if !ok {
		return
	}
	remaining -= qty
	if remaining < 0 {
		remaining = 0
	}
	t.ahead[id] = remaining
}

// QueueAhead returns the current tracked queue-ahead quantity for id, and
// whether the order is being tracked at all.
func (t *Tracker) QueueAhead(id types.OrderID) (int64, bool) {
	v, ok := t.ahead[id]
	return v, ok
}

// Consumed reports whether order id's queue position has been fully
// consumed — the condition QueueProof asserts.
func (t *Tracker) Consumed(id types.OrderID) bool {
	v, ok := t.ahead[id]
	return ok && v <= 0
}
