// Package clock defines the signed-nanosecond time primitive used
// throughout the backtest core. No wall clock is ever consulted here —
// every Nanos value in the core is either read from a recorded dataset or
// derived from one by pure arithmetic.
package clock

import "fmt"

// Nanos is a signed nanosecond timestamp or duration. The sign matters:
// durations (e.g. latencies) can legitimately be compared against zero,
// and the zero value is a valid (if unusual) timestamp, never a sentinel
// for "unset" — callers use a separate bool or pointer for that.
type Nanos int64

const (
	NsPerUs  Nanos = 1_000
	NsPerMs  Nanos = 1_000_000
	NsPerSec Nanos = 1_000_000_000
	NsPerMin Nanos = 60 * NsPerSec

	// Nanos15Min is the canonical window length for the 15-minute up/down
	// product. Settlement windows need not all be this length, but it is
	// the expected default and is used by test fixtures.
	Nanos15Min Nanos = 15 * 60 * NsPerSec
)

// Add returns n+d. Defined explicitly (rather than relying on the
// underlying int64 addition reading naturally) so that call sites read as
// clock arithmetic, not raw integer math.
func (n Nanos) Add(d Nanos) Nanos { return n + d }

// Sub returns n-other as a duration.
func (n Nanos) Sub(other Nanos) Nanos { return n - other }

// Before reports whether n comes strictly before other.
func (n Nanos) Before(other Nanos) bool { return n < other }

// After reports whether n comes strictly after other.
func (n Nanos) After(other Nanos) bool { return n > other }

func (n Nanos) String() string {
	return fmt.Sprintf("%dns", int64(n))
}

// SimClock tracks the current simulation time. engine.Runner advances it
// as each merge-queue (internal/merge) item is delivered; nothing else in
// the core sets it.
type SimClock struct {
	now Nanos
	set bool
}

// Now returns the current simulation time. Calling Now before the first
// Advance returns false.
func (c *SimClock) Now() (Nanos, bool) {
	return c.now, c.set
}

// Advance moves the clock forward to t. It is an error (panic, since this
// is a core invariant, not a recoverable condition) to advance backwards —
// callers that might race should have been caught by the merge queue or
// the invariant enforcer before reaching the clock.
func (c *SimClock) Advance(t Nanos) {
	if c.set && t < c.now {
		panic(fmt.Sprintf("clock: non-monotonic advance from %s to %s", c.now, t))
	}
	c.now = t
	c.set = true
}
