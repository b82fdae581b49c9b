package engine

import (
	"github.com/0xtitan6/backtest-v2/internal/clock"
	"github.com/0xtitan6/backtest-v2/internal/fingerprint"
	"github.com/0xtitan6/backtest-v2/internal/ledger"
	"github.com/0xtitan6/backtest-v2/internal/makerfill"
	"github.com/0xtitan6/backtest-v2/pkg/types"
)

// EquitySample is one exported point of the running mark-to-market equity
// curve sampled after every fill and settlement.
type EquitySample struct {
	TS     clock.Nanos
	Equity ledger.Amount
}

// EquityCurve returns every equity sample taken over the run so far, in
// the order they were taken.
func (r *Runner) EquityCurve() []EquitySample {
	out := make([]EquitySample, len(r.equity))
	for i, s := range r.equity {
		out[i] = EquitySample{TS: s.ts, Equity: s.equity}
	}
	return out
}

// MarketID returns the market this Runner was configured for.
func (r *Runner) MarketID() types.MarketID { return r.market }

// Ledger exposes the run's posted ledger entries and balances — the only
// source of truth for realized PnL, since the core never maintains a
// separate running total outside the ledger itself.
func (r *Runner) Ledger() *ledger.Ledger { return r.accEnforcer.Ledger() }

// MakerCounters exposes the maker-fill gate's admit/reject tally.
func (r *Runner) MakerCounters() makerfill.Counters { return r.makerGate.Counters() }

// ShadowMakerCounters exposes the shadow maker-fill gate's comparison
// tally — how often the counterpart queue model would have admitted or
// rejected differently than the primary, trusted gate did.
func (r *Runner) ShadowMakerCounters() makerfill.ShadowCounters { return r.shadowGate.Counters() }

// BehaviorFingerprint finalizes and returns the run's accumulated behavior
// hash. Like BehaviorRecorder.Finish, this may only be called once, after
// Run has returned.
func (r *Runner) BehaviorFingerprint() fingerprint.Hash { return r.recorder.Finish() }

// Settled reports the market's resolved outcome, if settlement has become
// visible.
func (r *Runner) Settled() (types.Outcome, bool) { return r.settlementEngine.Settled(r.market) }

// Indeterminate reports whether this run's window settled to
// types.Indeterminate — its reference tick never became visible before the
// dataset was exhausted. A caller computing PnL must exclude such a market
// entirely rather than treat FinalCash as a meaningful figure for it.
func (r *Runner) Indeterminate() bool { return r.indeterminate }

// Halted reports whether either enforcer stopped the run early, and why.
func (r *Runner) Halted() (bool, error) {
	if r.invEnforcer.Halted() {
		return true, r.invEnforcer.FirstViolation()
	}
	if r.accEnforcer.Halted() {
		return true, r.accEnforcer.FirstViolation()
	}
	return false, nil
}

// FinalCash returns the run's closing cash balance — the PnL figure the
// gate suite and sensitivity sweep both consume, since a hermetic run
// starts every account at zero.
func (r *Runner) FinalCash() ledger.Amount {
	return r.accEnforcer.Ledger().Balance(ledger.AccountKey{Kind: ledger.AccountCash})
}
