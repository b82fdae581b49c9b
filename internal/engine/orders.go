package engine

import (
	"fmt"

	segjson "github.com/segmentio/encoding/json"

	"github.com/0xtitan6/backtest-v2/internal/clock"
	"github.com/0xtitan6/backtest-v2/internal/ledger"
	"github.com/0xtitan6/backtest-v2/internal/makerfill"
	"github.com/0xtitan6/backtest-v2/internal/matching"
	"github.com/0xtitan6/backtest-v2/internal/merge"
	"github.com/0xtitan6/backtest-v2/internal/oms"
	"github.com/0xtitan6/backtest-v2/internal/strategy"
	"github.com/0xtitan6/backtest-v2/pkg/types"
)

// lifecycleKind distinguishes the order-lifecycle notifications the Runner
// queues up for deferred, non-reentrant delivery to the strategy.
type lifecycleKind int8

const (
	evOrderAck lifecycleKind = iota
	evOrderReject
	evCancelAck
	evFill
)

type lifecycleEvent struct {
	kind       lifecycleKind
	orderID    types.OrderID
	reason     string
	priceTicks int64
	quantity   int64
	side       types.Side
	isMaker    bool
}

// PlaceOrder implements strategy.Context. A strategy order is evaluated
// against the public touch the dataset's feed has reported (the taker
// path) and whatever remains rests in the Runner's own book, which exists
// solely to apply self-trade policy and FIFO bookkeeping across the
// strategy's own resting orders — the public side of the market is never
// represented as a book order, only as observed depth.
func (r *Runner) PlaceOrder(market types.MarketID, side types.Side, priceTicks, quantity int64, tif types.TimeInForce, postOnly bool) types.OrderID {
	id := r.newOrderID()
	r.invEnforcer.Record(r.now, fmt.Sprintf("place %s %s %d@%d tif=%s postOnly=%v", id, side, quantity, priceTicks, tif, postOnly))
	r.recorder.RecordOrder(r.now, id, market, side, priceTicks, quantity, tif, postOnly)

	proof := strategy.DecisionProof{TS: r.now, Hash: decisionProofHash(r.now, id, market, side, priceTicks, quantity, tif, postOnly)}
	r.recorder.RecordDecision(proof.TS, proof.Hash)

	if err := r.invEnforcer.CheckPriceOnGrid(r.now, priceTicks, r.grid); err != nil {
		r.rejectNew(id, quantity, "price off tick grid")
		return id
	}
	if err := r.invEnforcer.CheckSizePositive(r.now, quantity); err != nil {
		r.rejectNew(id, quantity, "non-positive size")
		return id
	}
	if r.riskGate.IsKillActive(r.now) {
		r.rejectNew(id, quantity, "risk kill switch active")
		return id
	}

	takerQty, takerPrice, crosses := r.takerFillAgainstPublic(side, priceTicks, postOnly)

	if postOnly && crosses {
		r.rejectNew(id, quantity, "post-only order would have crossed the public book")
		return id
	}

	if tif == types.FOK && takerQty < quantity {
		r.rejectNew(id, quantity, "FOK not fully fillable against observed public depth")
		return id
	}
	if takerQty > quantity {
		takerQty = quantity
	}

	omsOrder := oms.NewOrder(id, quantity, r.now)
	r.omsOrders[id] = omsOrder
	if err := omsOrder.Apply(oms.Acked, r.now); err != nil {
		r.invEnforcer.CheckTransition(r.now, id, err)
		return id
	}
	r.pushLifecycle(lifecycleEvent{kind: evOrderAck, orderID: id})

	if takerQty > 0 {
		r.applyTakerFill(id, market, side, takerPrice, takerQty)
	}

	remaining := quantity - takerQty
	if remaining <= 0 || tif == types.IOC || tif == types.FOK {
		if remaining > 0 {
			// IOC/FOK remainder is cancelled, never rested.
			if err := omsOrder.Apply(oms.Cancelled, r.now); err == nil {
				r.pushLifecycle(lifecycleEvent{kind: evCancelAck, orderID: id})
			}
		}
		return id
	}

	// GTC remainder rests in the strategy's own book.
	matchOrder := &matching.Order{
		ID: id, Side: side, PriceTicks: priceTicks, Quantity: remaining,
		TIF: types.GTC, PostOnly: postOnly, SelfTrade: r.selfTradePolicy,
		OwnerTag: "strategy", ArrivalTS: r.now, SequenceNum: r.nextOrd,
	}
	res := r.book.Submit(matchOrder, r.now)
	if !res.Accepted {
		omsOrder.Apply(oms.Rejected, r.now)
		r.pushLifecycle(lifecycleEvent{kind: evOrderReject, orderID: id, reason: res.RejectReason})
		return id
	}

	r.queueTracker.Watch(id, r.queueAheadAt(side, priceTicks, matchOrder.SequenceNum, r.queueModel))
	r.shadowQueueTracker.Watch(id, r.queueAheadAt(side, priceTicks, matchOrder.SequenceNum, makerfill.Counterpart(r.queueModel)))
	r.restingMeta[id] = restingOrderMeta{side: side, priceTicks: priceTicks, seq: matchOrder.SequenceNum}
	return id
}

// queueAheadAt computes how much quantity a newly-resting order must wait
// behind at (side, priceTicks) under profile. Under makerfill.Conservative —
// the strictest rung of the validation ladder — every unit of currently
// displayed public depth plus every live resting order of the strategy's
// own at that level is assumed to rest strictly ahead regardless of
// arrival order, the worst case for how long a fill takes to reach us;
// every looser profile counts only the strategy's own earlier-sequenced
// orders, crediting a fill as soon as displayed size plus only those
// earlier orders have been consumed. profile is an explicit parameter
// (rather than always reading r.queueModel) so the shadow comparison path
// can seed a second tracker under the counterpart profile.
func (r *Runner) queueAheadAt(side types.Side, priceTicks int64, sequenceNum uint64, profile makerfill.Profile) int64 {
	ahead := r.pubDepth[side][priceTicks]
	for otherID, m := range r.restingMeta {
		if m.side != side || m.priceTicks != priceTicks {
			continue
		}
		if profile != makerfill.Conservative && m.seq >= sequenceNum {
			continue
		}
		if other, ok := r.omsOrders[otherID]; ok && !other.State.Terminal() {
			ahead += other.RemainingQty()
		}
	}
	return ahead
}

// decisionProofHash canonicalizes exactly what a strategy decided when it
// called PlaceOrder, the same rolling-multiply-over-canonical-JSON scheme
// recordFingerprint uses for dataset records, so a DecisionProof is a pure
// function of the order's own fields and never of incidental Runner state.
func decisionProofHash(ts clock.Nanos, id types.OrderID, market types.MarketID, side types.Side, priceTicks, quantity int64, tif types.TimeInForce, postOnly bool) types.FingerprintU64 {
	b, err := segjson.Marshal(struct {
		TS         clock.Nanos
		OrderID    types.OrderID
		Market     types.MarketID
		Side       types.Side
		PriceTicks int64
		Quantity   int64
		TIF        types.TimeInForce
		PostOnly   bool
	}{ts, id, market, side, priceTicks, quantity, tif, postOnly})
	if err != nil {
		return 0
	}
	var fp types.FingerprintU64
	for _, c := range b {
		fp = fp*31 + types.FingerprintU64(c)
	}
	return fp
}

func (r *Runner) rejectNew(id types.OrderID, totalQty int64, reason string) {
	o := oms.NewOrder(id, totalQty, r.now)
	o.Apply(oms.Rejected, r.now)
	r.omsOrders[id] = o
	r.pushLifecycle(lifecycleEvent{kind: evOrderReject, orderID: id, reason: reason})
}

// takerFillAgainstPublic reports how much of a marketable order could be
// filled immediately against the last reported public touch, and whether
// the order crosses it at all (needed separately for post-only rejection
// even when reported size is zero).
func (r *Runner) takerFillAgainstPublic(side types.Side, priceTicks int64, postOnly bool) (qty, price int64, crosses bool) {
	if side == types.Buy {
		if !r.haveAsk || priceTicks < r.pubAsk {
			return 0, 0, false
		}
		size := r.pubDepth[types.Sell][r.pubAsk]
		return size, r.pubAsk, true
	}
	if !r.haveBid || priceTicks > r.pubBid {
		return 0, 0, false
	}
	size := r.pubDepth[types.Buy][r.pubBid]
	return size, r.pubBid, true
}

// applyTakerFill posts a fill where the strategy is the aggressor against
// observed public liquidity, crediting it immediately — taker fills need
// no queue or cancel-race proof, since there was no queue to jump.
func (r *Runner) applyTakerFill(id types.OrderID, market types.MarketID, side types.Side, priceTicks, qty int64) {
	if err := r.invEnforcer.CheckFillPriceOnGrid(r.now, priceTicks, r.grid); err != nil {
		return
	}
	omsOrder := r.omsOrders[id]
	if err := omsOrder.ApplyFill(qty, r.now); err != nil {
		r.invEnforcer.CheckTransition(r.now, id, err)
		return
	}

	fee := ledger.Amount(matching.TradeFee(priceTicks, r.grid, qty, r.now))
	notional := ledger.Amount(priceTicks * qty * types.AmountScale / r.grid)
	cashDelta := -notional
	positionDelta := ledger.Amount(qty * types.AmountScale)
	if side == types.Sell {
		cashDelta = notional
		positionDelta = -positionDelta
	}

	ref := fmt.Sprintf("fill-taker-%s-%d", id, qty)
	if err := r.accEnforcer.PostFill(r.now, ref, market, types.Up, cashDelta, positionDelta, fee); err != nil {
		return
	}
	r.reducePublicDepth(side, priceTicks, qty)
	r.recorder.RecordFill(r.now, id, priceTicks, qty, side, false, fee, r.nextSeq)
	r.pushLifecycle(lifecycleEvent{kind: evFill, orderID: id, priceTicks: priceTicks, quantity: qty, side: side, isMaker: false})
	r.sampleEquity()
}

// reducePublicDepth reflects our own taker consumption in the locally
// tracked public depth until the next snapshot or delta corrects it —
// otherwise a strategy could take the same displayed liquidity twice in
// the gap between two feed updates.
func (r *Runner) reducePublicDepth(side types.Side, priceTicks, qty int64) {
	opp := side.Opposite()
	remaining := r.pubDepth[opp][priceTicks] - qty
	if remaining < 0 {
		remaining = 0
	}
	r.pubDepth[opp][priceTicks] = remaining
	if opp == types.Sell && priceTicks == r.pubAsk {
		// leave pubAsk in place; a snapshot/delta will correct the level
	}
}

// CancelOrder implements strategy.Context.
func (r *Runner) CancelOrder(id types.OrderID) {
	o, ok := r.omsOrders[id]
	if !ok || o.State.Terminal() {
		return
	}
	r.cancelTS[id] = r.now
	r.book.Book().Cancel(id)
	r.queueTracker.Forget(id)
	r.shadowQueueTracker.Forget(id)
	if err := o.Apply(oms.Cancelled, r.now); err != nil {
		r.invEnforcer.CheckTransition(r.now, id, err)
		return
	}
	r.pushLifecycle(lifecycleEvent{kind: evCancelAck, orderID: id})
}

// timerEvent is the payload delivered through the merge queue when a timer
// the strategy armed via SetTimer comes due.
type timerEvent struct {
	token uint64
}

// SetTimer implements strategy.Context.
func (r *Runner) SetTimer(delay clock.Nanos, token uint64) {
	r.nextSeq++
	r.queue.Push(merge.Item{
		Key: merge.Key{
			VisibleTS:    r.now.Add(delay),
			Priority:     types.PriorityTimer,
			SourceOrd:    types.StreamTimer,
			PerSourceSeq: r.nextSeq,
		},
		Payload: timerEvent{token: token},
	})
}

// makerFillCandidate is one of the strategy's own resting orders eligible
// to be evaluated against observed public execution volume.
type makerFillCandidate struct {
	id   types.OrderID
	meta restingOrderMeta
}

// activeRestingAt returns every active resting order at (side, priceTicks),
// in FIFO arrival order.
func (r *Runner) activeRestingAt(side types.Side, priceTicks int64) []makerFillCandidate {
	var out []makerFillCandidate
	for id, meta := range r.restingMeta {
		if meta.side != side || meta.priceTicks != priceTicks {
			continue
		}
		o, ok := r.omsOrders[id]
		if !ok || o.State.Terminal() {
			continue
		}
		out = append(out, makerFillCandidate{id: id, meta: meta})
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].meta.seq < out[j-1].meta.seq; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// consumeQueueAndFill advances queue position for every resting order at
// (passiveSide, priceTicks) by qty, crediting any quantity that spills
// past a fully-consumed queue position as a maker fill admitted through
// internal/makerfill.
func (r *Runner) consumeQueueAndFill(passiveSide types.Side, priceTicks, qty int64) {
	pool := qty
	for _, cand := range r.activeRestingAt(passiveSide, priceTicks) {
		if pool <= 0 {
			r.queueTracker.Consume(cand.id, 0)
			r.shadowQueueTracker.Consume(cand.id, 0)
			continue
		}
		before, _ := r.queueTracker.QueueAhead(cand.id)
		r.queueTracker.Consume(cand.id, pool)
		after, _ := r.queueTracker.QueueAhead(cand.id)
		r.shadowQueueTracker.Consume(cand.id, pool)
		shadowAfter, _ := r.shadowQueueTracker.QueueAhead(cand.id)
		consumedFromAhead := before - after
		excess := pool - consumedFromAhead
		if excess <= 0 {
			continue
		}
		o := r.omsOrders[cand.id]
		fillQty := excess
		if rem := o.RemainingQty(); fillQty > rem {
			fillQty = rem
		}
		if fillQty <= 0 {
			continue
		}
		r.creditMakerFill(cand.id, cand.meta, priceTicks, fillQty, after, shadowAfter)
		pool -= fillQty
	}
}

func (r *Runner) creditMakerFill(id types.OrderID, meta restingOrderMeta, priceTicks, qty, remainingAhead, shadowRemainingAhead int64) {
	cancelTS, hasCancel := r.cancelTS[id]
	pf := makerfill.ProposedFill{
		OrderID: id, PriceTicks: priceTicks, Quantity: qty, FillTS: r.now,
		Queue: makerfill.QueueProof{OrderID: id, RemainingAhead: remainingAhead, ConsumedAsOfTS: r.now},
		CancelRace: makerfill.CancelRaceProof{
			OrderID: id, LiveAtFillTS: true, FillTS: r.now,
			CancelTS: cancelTS, HasCancel: hasCancel,
		},
	}
	verdict := r.makerGate.Admit(pf)
	r.shadowGate.Compare(verdict, pf, shadowRemainingAhead)
	if err := r.invEnforcer.CheckMakerFillAdmitted(r.now, verdict.Admitted, verdict.Reason); err != nil {
		return
	}
	if !verdict.Admitted {
		return
	}

	o := r.omsOrders[id]
	if err := o.ApplyFill(qty, r.now); err != nil {
		r.invEnforcer.CheckTransition(r.now, id, err)
		return
	}

	fee := ledger.Amount(matching.TradeFee(priceTicks, r.grid, qty, r.now))
	notional := ledger.Amount(priceTicks * qty * types.AmountScale / r.grid)
	cashDelta := notional
	positionDelta := ledger.Amount(qty * types.AmountScale)
	if meta.side == types.Buy {
		cashDelta = -notional
	} else {
		positionDelta = -positionDelta
	}

	ref := fmt.Sprintf("fill-maker-%s-%d", id, qty)
	if err := r.accEnforcer.PostFill(r.now, ref, r.market, types.Up, cashDelta, positionDelta, fee); err != nil {
		return
	}
	r.recorder.RecordFill(r.now, id, priceTicks, qty, meta.side, true, fee, r.nextSeq)
	r.pushLifecycle(lifecycleEvent{kind: evFill, orderID: id, priceTicks: priceTicks, quantity: qty, side: meta.side, isMaker: true})
	r.sampleEquity()
}

func (r *Runner) sampleEquity() {
	cash := r.accEnforcer.Ledger().Balance(ledger.AccountKey{Kind: ledger.AccountCash})
	pos := r.accEnforcer.Ledger().Balance(ledger.AccountKey{Kind: ledger.AccountPosition, Market: r.market, Outcome: types.Up})
	mark := ledger.Amount(int64(pos) * r.midTicks() / r.grid)
	r.equity = append(r.equity, equitySample{ts: r.now, equity: cash + mark})
}
