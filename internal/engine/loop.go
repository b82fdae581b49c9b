package engine

import (
	"fmt"

	"github.com/0xtitan6/backtest-v2/internal/dataset"
	"github.com/0xtitan6/backtest-v2/internal/fingerprint"
	"github.com/0xtitan6/backtest-v2/internal/ledger"
	"github.com/0xtitan6/backtest-v2/internal/risk"
	"github.com/0xtitan6/backtest-v2/internal/settlement"
	"github.com/0xtitan6/backtest-v2/internal/strategy"
	"github.com/0xtitan6/backtest-v2/pkg/types"
)

// Run drains the merge queue to exhaustion, delivering every event to the
// matching/accounting/settlement core and to the strategy in strict
// arrival order. It returns the first halting error raised by either
// enforcer, nil on a clean exhaustion of the queue.
func (r *Runner) Run() error {
	for {
		item, ok := r.queue.Pop()
		if !ok {
			r.resolveIndeterminate()
			return nil
		}
		r.setNow(item.Key.VisibleTS)

		switch payload := item.Payload.(type) {
		case dataset.Record:
			r.dispatchRecord(payload)
		case lifecycleEvent:
			r.dispatchLifecycle(payload)
		case timerEvent:
			r.strat.OnTimer(r, strategy.TimerTick{TS: r.now, Token: payload.token})
		default:
			r.logger.Warn("unrecognized queue payload", "type", fmt.Sprintf("%T", payload))
		}

		if r.invEnforcer.Halted() {
			r.logger.Error("run halted by invariant violation", "violation", r.invEnforcer.FirstViolation())
			return r.invEnforcer.FirstViolation()
		}
		if r.accEnforcer.Halted() {
			r.logger.Error("run halted by accounting violation", "violation", r.accEnforcer.FirstViolation())
			return r.accEnforcer.FirstViolation()
		}
	}
}

func (r *Runner) dispatchRecord(rec dataset.Record) {
	r.invEnforcer.Record(r.now, fmt.Sprintf("record kind=%d", rec.Kind))
	switch rec.Kind {
	case dataset.RecordL2Snapshot:
		r.onSnapshot(rec.Snapshot)
	case dataset.RecordL2Delta:
		r.onDelta(rec.Delta)
	case dataset.RecordTradePrint:
		r.onTradePrint(rec.Trade)
	case dataset.RecordOracleRound:
		r.onOracleRound(rec.Oracle)
	}
}

func (r *Runner) onSnapshot(s *dataset.L2SnapshotRecord) {
	if s == nil {
		return
	}
	r.pubDepth[types.Buy] = map[int64]int64{s.BidTick: s.BidSize}
	r.pubDepth[types.Sell] = map[int64]int64{s.AskTick: s.AskSize}
	r.pubBid, r.haveBid = s.BidTick, s.BidSize > 0
	r.pubAsk, r.haveAsk = s.AskTick, s.AskSize > 0
	if err := r.invEnforcer.CheckNotCrossed(r.now, r.pubBid, r.pubAsk, r.haveBid, r.haveAsk); err != nil {
		return
	}

	if !r.throttled() {
		r.strat.OnBookSnapshot(r, strategy.BookSnapshot{
			Market: r.market, TS: r.now,
			BestBid: s.BidTick, BestAsk: s.AskTick,
			BidSize: s.BidSize, AskSize: s.AskSize,
		})
	}
}

// throttled reports whether the sensitivity sweep's SamplingNs axis
// suppresses delivering a book update to the strategy right now — the
// Runner's own matching/risk/settlement state is always updated regardless,
// only what the strategy gets to observe is downsampled.
func (r *Runner) throttled() bool {
	if r.samplingNs <= 0 {
		return false
	}
	if r.haveLastDelivered && r.now.Sub(r.lastDelivered) < r.samplingNs {
		return true
	}
	r.lastDelivered = r.now
	r.haveLastDelivered = true
	return false
}

func (r *Runner) onDelta(d *dataset.L2DeltaRecord) {
	if d == nil {
		return
	}
	prevSize := r.pubDepth[d.Side][d.PriceTick]
	r.pubDepth[d.Side][d.PriceTick] = d.NewSize

	switch d.Side {
	case types.Buy:
		if d.NewSize > 0 && (!r.haveBid || d.PriceTick >= r.pubBid) {
			r.pubBid, r.haveBid = d.PriceTick, true
		} else if d.NewSize == 0 && d.PriceTick == r.pubBid {
			r.haveBid = false
		}
	case types.Sell:
		if d.NewSize > 0 && (!r.haveAsk || d.PriceTick <= r.pubAsk) {
			r.pubAsk, r.haveAsk = d.PriceTick, true
		} else if d.NewSize == 0 && d.PriceTick == r.pubAsk {
			r.haveAsk = false
		}
	}

	if d.NewSize < prevSize {
		// A size decrease with no trade print is cancelled/reduced public
		// size ahead of any of our own resting orders at this level,
		// consumed without crediting a fill.
		r.consumeQueueOnly(d.Side, d.PriceTick, prevSize-d.NewSize)
	}

	if !r.throttled() {
		r.strat.OnBookSnapshot(r, strategy.BookSnapshot{
			Market: r.market, TS: r.now,
			BestBid: r.pubBid, BestAsk: r.pubAsk,
			BidSize: r.pubDepth[types.Buy][r.pubBid], AskSize: r.pubDepth[types.Sell][r.pubAsk],
		})
	}
}

// consumeQueueOnly reduces queue-ahead for the strategy's own resting
// orders at (side, priceTicks) without crediting any fill — used when
// observed depth shrinks for a reason other than a trade print (a
// cancellation ahead of us in the book).
func (r *Runner) consumeQueueOnly(side types.Side, priceTicks, qty int64) {
	for _, cand := range r.activeRestingAt(side, priceTicks) {
		r.queueTracker.Consume(cand.id, qty)
		r.shadowQueueTracker.Consume(cand.id, qty)
	}
}

func (r *Runner) onTradePrint(t *dataset.TradePrintRecord) {
	if t == nil {
		return
	}
	r.strat.OnTradePrint(r, strategy.TradePrint{
		Market: r.market, TS: r.now, PriceTicks: t.PriceTick, Quantity: t.Quantity, Side: t.Side,
	})

	// A trade print's aggressor side consumes queue-ahead (and potentially
	// fills) the passive side resting at that price: an aggressor Buy
	// print consumes the Sell-side queue at that tick, and vice versa.
	passiveSide := t.Side.Opposite()
	r.consumeQueueAndFill(passiveSide, t.PriceTick, t.Quantity)
	r.reducePublicDepth(t.Side, t.PriceTick, t.Quantity)

	r.evaluateRisk()
}

func (r *Runner) onOracleRound(o *dataset.OracleRoundRecord) {
	if o == nil {
		return
	}
	tick := settlement.ReferenceTick{TS: r.now, PriceFixed: o.PriceTick, Fingerprint: recordOracleFingerprint(o)}
	wasSettled := r.settled
	if err := r.settlementEngine.ObserveReferenceTick(r.market, tick); err != nil {
		r.logger.Error("observe reference tick", "err", err)
		return
	}
	outcome, settled := r.settlementEngine.Settled(r.market)
	if settled && !wasSettled {
		r.settled = true
		r.postSettlement(outcome)
		r.strat.OnSettlementVisible(r, strategy.SettlementVisible{TS: r.now, Market: r.market, Outcome: outcome})
		r.recorder.RecordSettlement(r.now, r.market, outcome)
	}
}

func recordOracleFingerprint(o *dataset.OracleRoundRecord) types.FingerprintU64 {
	return types.FingerprintU64(o.MappingVersion)*31 + types.FingerprintU64(o.PriceTick)
}

// postSettlement pays out the strategy's final position against the
// resolved outcome: a full Up/Down resolution redeems each unit of
// position at $1 or $0, cancelling the position account to zero.
func (r *Runner) postSettlement(outcome types.Outcome) {
	posKey := ledger.AccountKey{Kind: ledger.AccountPosition, Market: r.market, Outcome: types.Up}
	pos := r.accEnforcer.Ledger().Balance(posKey)
	if pos == 0 {
		return
	}

	var payout ledger.Amount
	switch outcome {
	case types.Up:
		payout = pos // Up token redeems at $1/unit; pos is already in Amount units per unit quantity
	case types.Down:
		payout = 0
	case types.Tie:
		payout = pos / 2
	}

	ref := fmt.Sprintf("settlement-%s", r.market)
	if err := r.accEnforcer.PostSettlement(r.now, ref, r.market, types.Up, payout, -pos); err != nil {
		return
	}
	r.sampleEquity()
}

// resolveIndeterminate is called once the merge queue has been fully
// drained. Any window whose resolving reference tick never arrived cannot
// become knowable by any other means, so it is force-settled to
// types.Indeterminate here rather than left permanently unsettled —
// per postSettlement, no payout is posted for it: its position is excluded
// from PnL entirely, not redeemed at any price.
func (r *Runner) resolveIndeterminate() {
	if r.settled {
		return
	}
	for _, market := range r.settlementEngine.ResolveIndeterminate() {
		if market != r.market {
			continue
		}
		r.settled = true
		r.indeterminate = true
		r.logger.Warn("window resolved indeterminate: no reference tick observed before dataset exhaustion", "market", market)
		r.strat.OnSettlementVisible(r, strategy.SettlementVisible{TS: r.now, Market: r.market, Outcome: types.Indeterminate})
		r.recorder.RecordSettlement(r.now, r.market, types.Indeterminate)
	}
}

// evaluateRisk submits a fresh position report to the risk gate and halts
// placing new orders (via a kill-active check already wired into
// PlaceOrder) when a limit trips — a tripped risk kill is a soft stop,
// not the same as an invariants.Enforcer halt.
func (r *Runner) evaluateRisk() {
	cash := r.accEnforcer.Ledger().Balance(ledger.AccountKey{Kind: ledger.AccountCash})
	pos := r.accEnforcer.Ledger().Balance(ledger.AccountKey{Kind: ledger.AccountPosition, Market: r.market, Outcome: types.Up})
	mid := r.midTicks()
	mark := ledger.Amount(int64(pos) * mid / r.grid)

	report := risk.PositionReport{
		Market:         r.market,
		ExposureAmount: mark,
		UnrealizedPnL:  mark,
		RealizedPnL:    cash,
		MidTicks:       mid,
		TS:             r.now,
	}
	for _, sig := range r.riskGate.Evaluate(r.now, report) {
		r.logger.Warn("risk kill signal", "market", sig.Market, "reason", sig.Reason)
		r.invEnforcer.Record(r.now, fmt.Sprintf("risk kill: %s", sig.Reason))
	}
}

func (r *Runner) dispatchLifecycle(ev lifecycleEvent) {
	switch ev.kind {
	case evOrderAck:
		r.recorder.RecordAck(r.now, ev.orderID, fingerprint.AckOrder, "")
		r.strat.OnOrderAck(r, strategy.OrderAck{TS: r.now, OrderID: ev.orderID})
	case evOrderReject:
		r.recorder.RecordAck(r.now, ev.orderID, fingerprint.AckReject, ev.reason)
		r.strat.OnOrderReject(r, strategy.OrderReject{TS: r.now, OrderID: ev.orderID, Reason: ev.reason})
	case evCancelAck:
		r.recorder.RecordAck(r.now, ev.orderID, fingerprint.AckCancel, "")
		r.strat.OnCancelAck(r, strategy.CancelAck{TS: r.now, OrderID: ev.orderID})
	case evFill:
		r.strat.OnFill(r, strategy.FillNotification{
			TS: r.now, OrderID: ev.orderID, PriceTicks: ev.priceTicks,
			Quantity: ev.quantity, Side: ev.side, IsMaker: ev.isMaker,
		})
	}
}
