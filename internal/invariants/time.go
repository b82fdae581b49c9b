package invariants

import (
	"fmt"

	"github.com/0xtitan6/backtest-v2/internal/clock"
)

// CheckMonotonic verifies that ts never moves backward relative to the
// last delivered timestamp — the same rule internal/merge.Queue enforces
// by panicking, checked here as a recoverable invariant instead so a
// violation produces a diagnosable Violation rather than a crash.
func (e *Enforcer) CheckMonotonic(prevTS, ts clock.Nanos) error {
	if err := e.guard(); err != nil {
		return err
	}
	if ts < prevTS {
		return e.fail(Time, ts, fmt.Sprintf("delivery ts %s moved backward from %s", ts, prevTS))
	}
	return nil
}

// CheckVisibility verifies that ts (the time some fact is being consulted)
// is not strictly before visibleTS (the time that fact first became
// knowable) — the structural expression of "no peeking at the future"
// that internal/settlement's window-close gating and internal/makerfill's
// cancel-race proof both depend on.
func (e *Enforcer) CheckVisibility(ts, visibleTS clock.Nanos) error {
	if err := e.guard(); err != nil {
		return err
	}
	if ts < visibleTS {
		return e.fail(Time, ts, fmt.Sprintf("fact consulted at %s before it became visible at %s", ts, visibleTS))
	}
	return nil
}
