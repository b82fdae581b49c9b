package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"hash"
	"sort"

	"github.com/0xtitan6/backtest-v2/internal/clock"
	"github.com/0xtitan6/backtest-v2/internal/ledger"
	"github.com/0xtitan6/backtest-v2/pkg/types"
)

// recordKind tags each frame written into the behavior hash, so two
// differently-typed records that happened to canonicalize to the same
// bytes can never collide.
type recordKind uint8

const (
	kindDecision recordKind = iota
	kindOrder
	kindAck
	kindFill
	kindFee
	kindSettlement
	kindLedger
)

// BehaviorRecorder accumulates the seven categories of observable run
// behavior in delivery order and folds each one into a running SHA-256
// hash, so the full event stream never has to be buffered in memory — the
// final BehaviorFingerprint is available the instant the run ends.
//
// Callers must record events in merge-queue delivery order; apart from the
// postings inside a single ledger entry (see RecordLedgerEntry), this
// package does no sorting of its own, so the order of records depends
// entirely on the merge queue's own delivery guarantee.
type BehaviorRecorder struct {
	h hash.Hash
}

// NewBehaviorRecorder creates an empty recorder.
func NewBehaviorRecorder() *BehaviorRecorder {
	return &BehaviorRecorder{h: sha256.New()}
}

// write frames kind and the canonical encoding of v into the running hash:
// a one-byte kind tag, a four-byte little-endian length, then the payload.
// The explicit length prefix is what makes concatenated canonical JSON
// records unambiguous even though JSON objects are themselves
// self-delimiting — matching the "explicit little-endian encoding for all
// binary data" canonicalization rule.
func (r *BehaviorRecorder) write(kind recordKind, v any) {
	payload := canonicalBytes(v)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	r.h.Write([]byte{byte(kind)})
	r.h.Write(lenBuf[:])
	r.h.Write(payload)
}

// RecordDecision folds in a strategy's per-callback DecisionProof hash.
func (r *BehaviorRecorder) RecordDecision(ts clock.Nanos, proofHash types.FingerprintU64) {
	r.write(kindDecision, struct {
		TS   clock.Nanos
		Hash types.FingerprintU64
	}{ts, proofHash})
}

// RecordOrder folds in an order (or cancel) request the strategy emitted.
func (r *BehaviorRecorder) RecordOrder(ts clock.Nanos, id types.OrderID, market types.MarketID, side types.Side, priceTicks, qty int64, tif types.TimeInForce, postOnly bool) {
	r.write(kindOrder, struct {
		TS         clock.Nanos
		OrderID    types.OrderID
		Market     types.MarketID
		Side       string
		PriceTicks int64
		Quantity   int64
		TIF        string
		PostOnly   bool
	}{ts, id, market, side.String(), priceTicks, qty, tif.String(), postOnly})
}

// AckKind distinguishes the three order-lifecycle acknowledgement shapes.
type AckKind uint8

const (
	AckOrder AckKind = iota
	AckReject
	AckCancel
)

// RecordAck folds in an order ack, reject, or cancel ack.
func (r *BehaviorRecorder) RecordAck(ts clock.Nanos, id types.OrderID, kind AckKind, reason string) {
	r.write(kindAck, struct {
		TS      clock.Nanos
		OrderID types.OrderID
		Kind    AckKind
		Reason  string
	}{ts, id, kind, reason})
}

// RecordFill folds in a fill notification, including the fee charged
// against it so fee-schedule changes are observable in the fingerprint.
func (r *BehaviorRecorder) RecordFill(ts clock.Nanos, id types.OrderID, priceTicks, qty int64, side types.Side, isMaker bool, fee ledger.Amount, seq uint64) {
	r.write(kindFill, struct {
		TS         clock.Nanos
		OrderID    types.OrderID
		PriceTicks int64
		Quantity   int64
		Side       string
		IsMaker    bool
		Fee        ledger.Amount
		Seq        uint64
	}{ts, id, priceTicks, qty, side.String(), isMaker, fee, seq})
}

// RecordSettlement folds in a settlement event and its resolved outcome.
func (r *BehaviorRecorder) RecordSettlement(ts clock.Nanos, market types.MarketID, outcome types.Outcome) {
	r.write(kindSettlement, struct {
		TS      clock.Nanos
		Market  types.MarketID
		Outcome string
	}{ts, market, outcome.String()})
}

// RecordLedgerEntry folds in a committed ledger entry, its postings sorted
// by account (kind, then market, then outcome) within the entry so two semantically identical posting batches
// built in different internal orders still fingerprint identically.
func (r *BehaviorRecorder) RecordLedgerEntry(e ledger.LedgerEntry) {
	type posting struct {
		Kind    int8
		Market  types.MarketID
		Outcome types.Outcome
		Amount  ledger.Amount
	}
	postings := make([]posting, len(e.Postings))
	for i, p := range e.Postings {
		postings[i] = posting{int8(p.Account.Kind), p.Account.Market, p.Account.Outcome, p.Amount}
	}
	sort.SliceStable(postings, func(i, j int) bool {
		a, b := postings[i], postings[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Market != b.Market {
			return a.Market < b.Market
		}
		return a.Outcome < b.Outcome
	})
	r.write(kindLedger, struct {
		TS       clock.Nanos
		Seq      uint64
		EventRef string
		Postings []posting
	}{e.TS, e.Seq, e.EventRef, postings})
}

// Finish returns the accumulated BehaviorFingerprint. The recorder must
// not be used again after calling Finish.
func (r *BehaviorRecorder) Finish() Hash {
	var out Hash
	copy(out[:], r.h.Sum(nil))
	return out
}
