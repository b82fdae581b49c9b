// Package merge implements the k-way deterministic merge queue — the single
// source of truth for simulation-time advancement. Events from every feed
// are pushed in as they are produced; Pop always returns the globally
// smallest event by the 5-tuple ordering key, so delivery order is a stable
// total-order function of the input set alone, independent of the order
// events were pushed in.
package merge

import (
	"container/heap"

	"github.com/0xtitan6/backtest-v2/internal/clock"
	"github.com/0xtitan6/backtest-v2/pkg/types"
)

// Key is the 5-tuple total ordering key described in spec.md §4.2.
type Key struct {
	VisibleTS    clock.Nanos
	Priority     types.PriorityClass
	SourceOrd    types.StreamSource
	PerSourceSeq uint64
	Fingerprint  types.FingerprintU64
}

// Less reports whether k sorts strictly before other.
func (k Key) Less(other Key) bool {
	if k.VisibleTS != other.VisibleTS {
		return k.VisibleTS < other.VisibleTS
	}
	if k.Priority != other.Priority {
		return k.Priority < other.Priority
	}
	if k.SourceOrd != other.SourceOrd {
		return k.SourceOrd < other.SourceOrd
	}
	if k.PerSourceSeq != other.PerSourceSeq {
		return k.PerSourceSeq < other.PerSourceSeq
	}
	return k.Fingerprint < other.Fingerprint
}

// Item is anything that can be placed in the queue: a Key plus an opaque
// payload the caller interprets after Pop.
type Item struct {
	Key     Key
	Payload any
}

type heapSlice []Item

func (h heapSlice) Len() int            { return len(h) }
func (h heapSlice) Less(i, j int) bool  { return h[i].Key.Less(h[j].Key) }
func (h heapSlice) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *heapSlice) Push(x any)         { *h = append(*h, x.(Item)) }
func (h *heapSlice) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Queue is the k-way merge priority queue. It tracks the highest VisibleTS
// it has ever emitted so it can assert monotonicity on every Pop — the
// queue is the only advancer of simulation time, so that invariant is
// enforced here, not downstream.
type Queue struct {
	h          heapSlice
	lastPopped clock.Nanos
	popped     bool
}

// New creates an empty merge queue.
func New() *Queue {
	q := &Queue{}
	heap.Init(&q.h)
	return q
}

// Push inserts an item. O(log n).
func (q *Queue) Push(item Item) {
	heap.Push(&q.h, item)
}

// Len returns the number of pending items.
func (q *Queue) Len() int { return q.h.Len() }

// Pop removes and returns the globally smallest item. ok is false if the
// queue is empty. Pop panics if the popped item's VisibleTS would make the
// delivered sequence non-monotonic — this can only happen if a caller
// pushed an event whose VisibleTS design violates the "no event delivered
// before its visible_ts, given everything already pushed" contract, which
// is a programming error in the feed, not a runtime condition to recover
// from silently.
func (q *Queue) Pop() (Item, bool) {
	if q.h.Len() == 0 {
		return Item{}, false
	}
	item := heap.Pop(&q.h).(Item)
	if q.popped && item.Key.VisibleTS < q.lastPopped {
		panic("merge: queue produced non-monotonic visible_ts; a feed pushed an event out of contract")
	}
	q.lastPopped = item.Key.VisibleTS
	q.popped = true
	return item, true
}

// Peek returns the next item without removing it.
func (q *Queue) Peek() (Item, bool) {
	if q.h.Len() == 0 {
		return Item{}, false
	}
	return q.h[0], true
}
