// Package accounting wraps internal/ledger with the mandatory enforcement
// layer: every economic state change (fill, fee, settlement) must flow
// through one of this package's post-* methods, which are the ONLY
// way this module mutates ledger balances. ledger.Ledger.Post is itself
// exported, and Enforcer.Ledger hands out the underlying *ledger.Ledger for
// balance and history reads; within this module only this package calls
// Post. Nothing at run time checks or counts a Post made elsewhere.
//
// On the first accounting violation (unbalanced attempt, duplicate event,
// negative cash where margin is disallowed) the Enforcer records a bounded
// causal trace and refuses to post further entries — it never clamps,
// corrects, or silently continues.
package accounting

import (
	"fmt"

	"github.com/0xtitan6/backtest-v2/internal/clock"
	"github.com/0xtitan6/backtest-v2/internal/ledger"
	"github.com/0xtitan6/backtest-v2/pkg/types"
)

// ViolationType names the category of accounting breach detected.
type ViolationType int8

const (
	ViolationUnbalanced ViolationType = iota
	ViolationDuplicateEvent
	ViolationNegativeCash
	ViolationPostAfterHalt
)

func (v ViolationType) String() string {
	switch v {
	case ViolationUnbalanced:
		return "UNBALANCED"
	case ViolationDuplicateEvent:
		return "DUPLICATE_EVENT"
	case ViolationNegativeCash:
		return "NEGATIVE_CASH"
	case ViolationPostAfterHalt:
		return "POST_AFTER_HALT"
	default:
		return "UNKNOWN"
	}
}

// Violation is the bounded, reproducible record of the first accounting
// breach — the causal trace the run aborts with.
type Violation struct {
	Type     ViolationType
	TS       clock.Nanos
	EventRef string
	Detail   string
}

func (v Violation) Error() string {
	return fmt.Sprintf("accounting: %s violation at %s (event %q): %s", v.Type, v.TS, v.EventRef, v.Detail)
}

// Config configures the enforcer's policy.
type Config struct {
	// AllowNegativeCash permits margin; false means Cash >= 0 is enforced.
	AllowNegativeCash bool
}

// Enforcer is the single writer of economic state. It halts permanently on
// the first violation.
type Enforcer struct {
	cfg     Config
	ledger  *ledger.Ledger
	halted  bool
	first   *Violation
	counters struct {
		fills       uint64
		fees        uint64
		settlements uint64
	}
}

// New creates an enforcer wrapping a fresh ledger.
func New(cfg Config) *Enforcer {
	return &Enforcer{cfg: cfg, ledger: ledger.New()}
}

// Ledger exposes the underlying ledger for read-only balance queries.
func (e *Enforcer) Ledger() *ledger.Ledger { return e.ledger }

// Halted reports whether the enforcer has recorded a violation and refuses
// further postings.
func (e *Enforcer) Halted() bool { return e.halted }

// FirstViolation returns the violation that halted the enforcer, nil if
// none occurred.
func (e *Enforcer) FirstViolation() *Violation { return e.first }

func (e *Enforcer) halt(v Violation) error {
	if e.first == nil {
		e.first = &v
	}
	e.halted = true
	return v
}

func (e *Enforcer) guardHalted(ts clock.Nanos, eventRef string) error {
	if e.halted {
		return e.halt(Violation{Type: ViolationPostAfterHalt, TS: ts, EventRef: eventRef,
			Detail: "enforcer already halted by a prior violation"})
	}
	return nil
}

// PostFill is the only way to record a fill's cash/position movement and
// associated fee. cashDelta, positionDelta and fee are already-computed
// Amounts; the caller converts ticks and lots before calling.
func (e *Enforcer) PostFill(ts clock.Nanos, eventRef string, market types.MarketID, outcome types.Outcome,
	cashDelta, positionDelta, fee ledger.Amount) error {
	if err := e.guardHalted(ts, eventRef); err != nil {
		return err
	}

	cash := ledger.AccountKey{Kind: ledger.AccountCash}
	pos := ledger.AccountKey{Kind: ledger.AccountPosition, Market: market, Outcome: outcome}
	feesAcc := ledger.AccountKey{Kind: ledger.AccountFeesPaid}
	costBasis := ledger.AccountKey{Kind: ledger.AccountCostBasis, Market: market, Outcome: outcome}

	// cashDelta/positionDelta price a fill at its traded notional and at par
	// value respectively (a position is carried at par until settlement
	// resolves it to 0 or par). The gap between them — what the trade
	// actually cost versus the par value it bought — is not yet realized
	// gain or loss, so it is parked in CostBasis rather than forced into
	// Cash or Position, the same residual-absorption shape PostSettlement
	// uses for its own Settlement account below.
	residual := -(cashDelta + positionDelta)

	postings := []ledger.Posting{
		{Account: cash, Amount: cashDelta - fee},
		{Account: pos, Amount: positionDelta},
		{Account: feesAcc, Amount: fee},
		{Account: costBasis, Amount: residual},
	}

	if _, err := e.ledger.Post(ts, eventRef, postings); err != nil {
		return e.halt(Violation{Type: ViolationUnbalanced, TS: ts, EventRef: eventRef, Detail: err.Error()})
	}

	if !e.cfg.AllowNegativeCash && e.ledger.Balance(cash) < 0 {
		return e.halt(Violation{Type: ViolationNegativeCash, TS: ts, EventRef: eventRef,
			Detail: fmt.Sprintf("cash balance %s below zero", e.ledger.Balance(cash))})
	}

	e.counters.fills++
	return nil
}

// PostSettlement is the only way to record a market's settlement payout
// (or write-down) against a position.
func (e *Enforcer) PostSettlement(ts clock.Nanos, eventRef string, market types.MarketID, outcome types.Outcome,
	payout, positionDelta ledger.Amount) error {
	if err := e.guardHalted(ts, eventRef); err != nil {
		return err
	}

	cash := ledger.AccountKey{Kind: ledger.AccountCash}
	pos := ledger.AccountKey{Kind: ledger.AccountPosition, Market: market, Outcome: outcome}
	settle := ledger.AccountKey{Kind: ledger.AccountSettlement, Market: market}

	postings := []ledger.Posting{
		{Account: cash, Amount: payout},
		{Account: pos, Amount: positionDelta},
		{Account: settle, Amount: -(payout + positionDelta)},
	}

	if _, err := e.ledger.Post(ts, eventRef, postings); err != nil {
		return e.halt(Violation{Type: ViolationUnbalanced, TS: ts, EventRef: eventRef, Detail: err.Error()})
	}

	e.counters.settlements++
	return nil
}
