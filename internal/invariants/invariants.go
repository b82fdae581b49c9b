// Package invariants promotes invariant checking from optional debug
// tooling into a mandatory structural requirement: in hard mode, the first
// violation halts the enforcer permanently and carries with it a bounded
// causal trace of what led up to it, so a failure is diagnosable from the
// run artifact alone. It checks five categories — Time, Book, OMS, Fills,
// Accounting — mirroring the five families of correctness the rest of the
// core depends on (internal/merge and internal/clock for Time,
// internal/matching for Book, internal/oms for OMS, internal/matching and
// internal/makerfill for Fills, internal/ledger and internal/accounting for
// Accounting).
package invariants

import (
	"fmt"

	"github.com/0xtitan6/backtest-v2/internal/clock"
)

// Category identifies which family of invariant a Violation belongs to.
type Category uint8

const (
	Time Category = iota
	Book
	OMS
	Fills
	Accounting
)

func (c Category) String() string {
	switch c {
	case Time:
		return "TIME"
	case Book:
		return "BOOK"
	case OMS:
		return "OMS"
	case Fills:
		return "FILLS"
	case Accounting:
		return "ACCOUNTING"
	default:
		return "UNKNOWN"
	}
}

// Mode selects whether a violation halts the run (Hard, the only mode a
// production-grade run may use) or is merely recorded (Soft, useful for
// exploratory sweeps that want to see how many violations a configuration
// produces without aborting on the first one).
type Mode uint8

const (
	Hard Mode = iota
	Soft
)

// traceCapacity bounds the causal trace carried on every Violation. 256
// events is enough to reconstruct the handful of deliveries leading up to
// a violation without the dump itself becoming unbounded.
const traceCapacity = 256

// TraceEvent is one entry in the bounded causal trace: a short, already-
// formatted description of something the enforcer was told about, in the
// order it was told.
type TraceEvent struct {
	TS   clock.Nanos
	Note string
}

// Violation is a single invariant failure, carrying the causal trace as it
// stood at the moment the violation was detected.
type Violation struct {
	Category Category
	TS       clock.Nanos
	Detail   string
	Trace    []TraceEvent
}

func (v *Violation) Error() string {
	return fmt.Sprintf("invariants: %s violation at %s: %s", v.Category, v.TS, v.Detail)
}

// Enforcer runs the five invariant categories and, in Hard mode, halts
// permanently on the first violation — exactly the "halt and preserve the
// first cause" discipline internal/accounting uses for ledger mutations,
// applied here to the broader set of structural facts the core depends on.
type Enforcer struct {
	mode   Mode
	trace  []TraceEvent
	violations []Violation
	halted bool
	first  *Violation
}

// New creates an enforcer in the given mode.
func New(mode Mode) *Enforcer {
	return &Enforcer{mode: mode}
}

// Halted reports whether a Hard-mode violation has stopped the enforcer
// from accepting further checks.
func (e *Enforcer) Halted() bool { return e.halted }

// FirstViolation returns the violation that halted the enforcer, if any.
func (e *Enforcer) FirstViolation() *Violation { return e.first }

// Violations returns every violation recorded so far (always length <= 1
// in Hard mode, since the enforcer halts on the first).
func (e *Enforcer) Violations() []Violation { return e.violations }

// Record appends a fact to the bounded causal trace. Call this for any
// event worth remembering in case a later check fails — a delivered
// event, a placed order, a posted ledger entry — not just for violations
// themselves.
func (e *Enforcer) Record(ts clock.Nanos, note string) {
	e.trace = append(e.trace, TraceEvent{TS: ts, Note: note})
	if len(e.trace) > traceCapacity {
		e.trace = e.trace[len(e.trace)-traceCapacity:]
	}
}

// fail records a violation and, in Hard mode, halts the enforcer. It
// returns the violation as an error either way so callers can choose to
// treat a Soft-mode violation as fatal for their own purposes.
func (e *Enforcer) fail(cat Category, ts clock.Nanos, detail string) error {
	v := Violation{Category: cat, TS: ts, Detail: detail, Trace: append([]TraceEvent(nil), e.trace...)}
	e.violations = append(e.violations, v)
	if e.mode == Hard && !e.halted {
		e.halted = true
		e.first = &e.violations[len(e.violations)-1]
	}
	return &e.violations[len(e.violations)-1]
}

// guard returns the preserved first violation if the enforcer is already
// halted, so a halted Hard-mode enforcer refuses every further check
// rather than silently resuming.
func (e *Enforcer) guard() error {
	if e.halted {
		return e.first
	}
	return nil
}
