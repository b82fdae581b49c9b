package invariants

import (
	"fmt"

	"github.com/0xtitan6/backtest-v2/internal/clock"
	"github.com/0xtitan6/backtest-v2/internal/ledger"
)

// CheckEntryBalanced verifies a ledger entry's postings sum to zero — a
// defense-in-depth check of the same invariant internal/ledger.Post
// already enforces at construction time, run here as well so a violation
// that somehow slipped past the ledger is still caught and carries its own
// causal trace.
func (e *Enforcer) CheckEntryBalanced(entry ledger.LedgerEntry) error {
	if err := e.guard(); err != nil {
		return err
	}
	var sum ledger.Amount
	for _, p := range entry.Postings {
		sum = sum.Add(p.Amount)
	}
	if sum != 0 {
		return e.fail(Accounting, entry.TS, fmt.Sprintf("entry %s unbalanced: sum=%s", entry.EventRef, sum))
	}
	return nil
}

// CheckCashNonNegative verifies a cash account balance has not gone
// negative — the same rule internal/accounting.Enforcer halts on when
// margin is disallowed, checked here independently for a run that wants
// invariant enforcement decoupled from the accounting package's own halt.
func (e *Enforcer) CheckCashNonNegative(ts clock.Nanos, account string, balance ledger.Amount) error {
	if err := e.guard(); err != nil {
		return err
	}
	if balance < 0 {
		return e.fail(Accounting, ts, fmt.Sprintf("cash account %s negative: %s", account, balance))
	}
	return nil
}
