// Package integrity implements the stream integrity guard shared by both
// the backtest core and live ingest (internal/liveingest): duplicate, gap,
// and out-of-order detection with explicit, deterministic, configurable
// policies. No pathology is ever silently dropped — every action is
// counted and, in strict mode, a policy violation is surfaced as a Halt
// that the caller must propagate.
package integrity

import (
	"fmt"
	"log/slog"

	"github.com/0xtitan6/backtest-v2/internal/clock"
	"github.com/0xtitan6/backtest-v2/pkg/types"
)

// Pathology names a detected stream defect.
type Pathology int8

const (
	PathologyDuplicate Pathology = iota
	PathologyGap
	PathologyOutOfOrder
)

func (p Pathology) String() string {
	switch p {
	case PathologyDuplicate:
		return "DUPLICATE"
	case PathologyGap:
		return "GAP"
	case PathologyOutOfOrder:
		return "OUT_OF_ORDER"
	default:
		return "UNKNOWN"
	}
}

// Policy names the configured response to a pathology.
type Policy int8

const (
	DropDuplicate Policy = iota
	HaltOnGap
	FillGapBySnapshot
	RejectOutOfOrder
	ReorderWithinWindow
)

// Config configures the guard for one stream.
type Config struct {
	DuplicatePolicy  Policy
	GapPolicy        Policy
	OutOfOrderPolicy Policy

	// OutOfOrderTolerance bounds how far ingest_ts may regress before the
	// event is considered out-of-order rather than ordinary jitter.
	OutOfOrderTolerance clock.Nanos

	// ReorderWindow is the window configured for ReorderWithinWindow. Guard
	// itself does not read it and does not buffer or re-sort events: under
	// ReorderWithinWindow an event is admitted as it arrives.
	ReorderWindow clock.Nanos

	// Strict, when true, turns a HaltOnGap or RejectOutOfOrder policy
	// violation into a Halt rather than a logged-and-continued action;
	// the other policies behave the same in both modes.
	Strict bool
}

// HaltReason identifies why a strict-mode halt was raised.
type HaltReason struct {
	Pathology Pathology
	Stream    types.StreamSource
	Detail    string
}

func (h HaltReason) Error() string {
	return fmt.Sprintf("integrity: halt on %s (stream %s): %s", h.Pathology, h.Stream, h.Detail)
}

// Stamped is the minimal shape the guard needs from an event: its stream
// identity, sequence number, ingest time, and a content fingerprint for
// duplicate detection by content as well as by (stream, seq).
type Stamped struct {
	Stream      types.StreamSource
	Seq         uint64
	IngestTS    clock.Nanos
	Fingerprint types.FingerprintU64
}

// Counters tallies actions taken by the guard, for diagnostics and for
// inclusion in the run artifact.
type Counters struct {
	Duplicates  uint64
	Gaps        uint64
	OutOfOrders uint64
	Halts       uint64
}

// Guard is a per-stream state machine. One Guard instance must be used per
// logical stream (stream source + market), since sequence numbers and
// ingest-time monotonicity are only meaningful within a single stream.
type Guard struct {
	cfg      Config
	logger   *slog.Logger
	lastSeq  uint64
	haveSeq  bool
	lastTS   clock.Nanos
	haveTS   bool
	seenSeq  map[uint64]struct{}
	seenFP   map[types.FingerprintU64]struct{}
	counters Counters
}

// New creates a Guard for one stream.
func New(cfg Config, logger *slog.Logger) *Guard {
	return &Guard{
		cfg:     cfg,
		logger:  logger.With("component", "integrity"),
		seenSeq: make(map[uint64]struct{}),
		seenFP:  make(map[types.FingerprintU64]struct{}),
	}
}

// Counters returns a copy of the current action counters.
func (g *Guard) Counters() Counters { return g.counters }

// Check evaluates ev against the guard's state and returns (admit, halt).
// admit is false if the event should be dropped (e.g. DropDuplicate).
// halt is non-nil if a strict-mode policy violation occurred and the
// caller must terminate the run with that reason — it is never silently
// swallowed.
func (g *Guard) Check(ev Stamped) (admit bool, halt *HaltReason) {
	if _, dup := g.seenSeq[ev.Seq]; dup || g.seenFPDup(ev.Fingerprint) {
		g.counters.Duplicates++
		return g.handle(PathologyDuplicate, g.cfg.DuplicatePolicy, ev, "duplicate (stream,seq) or content fingerprint")
	}
	g.seenSeq[ev.Seq] = struct{}{}
	g.seenFP[ev.Fingerprint] = struct{}{}

	if g.haveSeq && ev.Seq != g.lastSeq+1 {
		g.counters.Gaps++
		admit, halt = g.handle(PathologyGap, g.cfg.GapPolicy, ev,
			fmt.Sprintf("expected seq %d, got %d", g.lastSeq+1, ev.Seq))
		if halt != nil {
			return admit, halt
		}
	}
	g.lastSeq = ev.Seq
	g.haveSeq = true

	if g.haveTS && ev.IngestTS < g.lastTS-g.cfg.OutOfOrderTolerance {
		g.counters.OutOfOrders++
		admit, halt = g.handle(PathologyOutOfOrder, g.cfg.OutOfOrderPolicy, ev,
			fmt.Sprintf("ingest_ts %s regressed past tolerance from %s", ev.IngestTS, g.lastTS))
		if halt != nil {
			return admit, halt
		}
	}
	if !g.haveTS || ev.IngestTS > g.lastTS {
		g.lastTS = ev.IngestTS
		g.haveTS = true
	}

	return true, nil
}

func (g *Guard) seenFPDup(fp types.FingerprintU64) bool {
	_, ok := g.seenFP[fp]
	return ok
}

func (g *Guard) handle(p Pathology, policy Policy, ev Stamped, detail string) (admit bool, halt *HaltReason) {
	switch policy {
	case DropDuplicate:
		g.logger.Warn("dropping pathological event", "pathology", p, "stream", ev.Stream, "seq", ev.Seq, "detail", detail)
		return false, nil
	case HaltOnGap, RejectOutOfOrder:
		if g.cfg.Strict {
			g.counters.Halts++
			g.logger.Error("halting on pathology", "pathology", p, "stream", ev.Stream, "seq", ev.Seq, "detail", detail)
			return false, &HaltReason{Pathology: p, Stream: ev.Stream, Detail: detail}
		}
		g.logger.Warn("policy violation in non-strict mode, continuing", "pathology", p, "stream", ev.Stream, "detail", detail)
		return true, nil
	case FillGapBySnapshot:
		g.logger.Info("gap will be filled by next snapshot", "stream", ev.Stream, "seq", ev.Seq)
		return true, nil
	case ReorderWithinWindow:
		g.logger.Info("event admitted for reorder-within-window handling upstream", "stream", ev.Stream, "seq", ev.Seq)
		return true, nil
	default:
		return true, nil
	}
}
