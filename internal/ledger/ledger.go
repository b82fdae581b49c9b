// Package ledger implements the canonical double-entry accounting ledger:
// every fill, fee, and settlement is recorded as a balanced batch of
// postings (debits == credits), append-only, with balances derived from
// the posting history rather than mutated directly. Post is the only way
// to add an entry or change a balance, and it refuses unbalanced, empty,
// and duplicate-event batches — see internal/accounting for the
// enforcement layer built on top of it.
package ledger

import (
	"fmt"

	"github.com/0xtitan6/backtest-v2/internal/clock"
	"github.com/0xtitan6/backtest-v2/pkg/types"
)

// Amount is the ledger's fixed-point currency type: an integer count of
// 1/types.AmountScale of a dollar. A plain int64 is sufficient — even at
// 1e8 scale it represents amounts up to roughly 92 billion dollars, far
// beyond any single market's notional in this system — so there is no
// need for the 128-bit arithmetic a multi-asset production ledger would
// require.
type Amount int64

// FromUnits constructs an Amount from a whole-unit integer and a
// fractional numerator over types.AmountScale, e.g. FromUnits(1, 50_000_000)
// for $1.50.
func FromUnits(whole, fraction int64) Amount {
	return Amount(whole*types.AmountScale + fraction)
}

func (a Amount) Add(b Amount) Amount { return a + b }
func (a Amount) Sub(b Amount) Amount { return a - b }
func (a Amount) Neg() Amount         { return -a }

func (a Amount) String() string {
	whole := int64(a) / types.AmountScale
	frac := int64(a) % types.AmountScale
	if frac < 0 {
		frac = -frac
	}
	return fmt.Sprintf("%d.%08d", whole, frac)
}

// AccountKind identifies the economic ledger account a posting affects.
type AccountKind int8

const (
	AccountCash AccountKind = iota
	AccountPosition
	AccountFeesPaid
	AccountRealizedPnL
	AccountSettlement
	AccountCostBasis
)

func (k AccountKind) String() string {
	switch k {
	case AccountCash:
		return "CASH"
	case AccountPosition:
		return "POSITION"
	case AccountFeesPaid:
		return "FEES_PAID"
	case AccountRealizedPnL:
		return "REALIZED_PNL"
	case AccountSettlement:
		return "SETTLEMENT"
	case AccountCostBasis:
		return "COST_BASIS"
	default:
		return "UNKNOWN"
	}
}

// AccountKey identifies one account instance: a kind, optionally scoped to
// a market and outcome token for Position/CostBasis accounts.
type AccountKey struct {
	Kind    AccountKind
	Market  types.MarketID
	Outcome types.Outcome
}

// Posting is a single debit or credit against one account. Positive Amount
// is a debit, negative is a credit, following standard double-entry sign
// convention with Cash/Position as debit-normal accounts.
type Posting struct {
	Account AccountKey
	Amount  Amount
}

// LedgerEntry is one balanced, append-only batch of postings recorded
// against a single causal event. EventRef is unique per economic event —
// the ledger refuses to post the same EventRef twice.
type LedgerEntry struct {
	Seq      uint64
	TS       clock.Nanos
	EventRef string
	Postings []Posting
}

// sum returns the sum of all postings, which must equal zero for a
// balanced entry.
func (e LedgerEntry) sum() Amount {
	var total Amount
	for _, p := range e.Postings {
		total += p.Amount
	}
	return total
}

// Ledger is the append-only double-entry book. Entries can only be created
// via Post, so every mutation path funnels through this package's balance
// and duplicate-event checks — see internal/accounting for the
// single-writer enforcement built on top.
type Ledger struct {
	entries   []LedgerEntry
	seq       uint64
	seenRefs  map[string]struct{}
	balances  map[AccountKey]Amount
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		seenRefs: make(map[string]struct{}),
		balances: make(map[AccountKey]Amount),
	}
}

// Post appends a balanced entry. It returns an error — never panics, never
// silently drops — if the entry does not balance to zero, has no
// postings, or reuses an EventRef already posted.
func (l *Ledger) Post(ts clock.Nanos, eventRef string, postings []Posting) (LedgerEntry, error) {
	if len(postings) == 0 {
		return LedgerEntry{}, fmt.Errorf("ledger: entry %q has no postings", eventRef)
	}
	if _, dup := l.seenRefs[eventRef]; dup {
		return LedgerEntry{}, fmt.Errorf("ledger: event_ref %q already posted", eventRef)
	}

	entry := LedgerEntry{TS: ts, EventRef: eventRef, Postings: append([]Posting(nil), postings...)}
	if entry.sum() != 0 {
		return LedgerEntry{}, fmt.Errorf("ledger: entry %q does not balance: sum=%s", eventRef, entry.sum())
	}

	l.seq++
	entry.Seq = l.seq
	l.entries = append(l.entries, entry)
	l.seenRefs[eventRef] = struct{}{}
	for _, p := range postings {
		l.balances[p.Account] += p.Amount
	}
	return entry, nil
}

// Balance returns the current balance of an account, 0 if never posted to.
func (l *Ledger) Balance(acc AccountKey) Amount { return l.balances[acc] }

// Entries returns the full append-only posting history in sequence order.
func (l *Ledger) Entries() []LedgerEntry { return l.entries }

// TotalDebits and TotalCredits sum the positive and negative postings
// across the entire ledger, so a caller can check balance conservation.
func (l *Ledger) TotalDebits() Amount {
	var total Amount
	for _, e := range l.entries {
		for _, p := range e.Postings {
			if p.Amount > 0 {
				total += p.Amount
			}
		}
	}
	return total
}

func (l *Ledger) TotalCredits() Amount {
	var total Amount
	for _, e := range l.entries {
		for _, p := range e.Postings {
			if p.Amount < 0 {
				total += -p.Amount
			}
		}
	}
	return total
}
