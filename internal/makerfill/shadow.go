package makerfill

// ShadowVerdict pairs the primary (trusted) admission decision with a
// second, non-authoritative verdict computed under a different queue-ahead
// assumption, purely so the two can be compared — the shadow verdict is
// never consulted by the ledger or any PnL path, only reported alongside.
type ShadowVerdict struct {
	Primary  Verdict
	Shadow   Verdict
	Diverged bool
}

// ShadowCounters tallies how often a shadow gate's verdict disagreed with
// the primary gate's, for the run artifact.
type ShadowCounters struct {
	Compared uint64
	Diverged uint64
}

// ShadowGate evaluates the same proposed fill a primary Gate already
// decided, but under a second queue-ahead assumption (typically the
// opposite end of the validation ladder from whatever profile produced the
// primary decision), so a run can report how sensitive its admitted and
// rejected maker fills are to the queue model without ever letting that
// sensitivity feed back into the trusted result. A ShadowGate wraps its
// own Gate rather than reusing the primary's, so its counters never mix
// with the primary gate's Admitted/Rejected tally.
type ShadowGate struct {
	gate     *Gate
	counters ShadowCounters
}

// NewShadow creates a shadow maker-fill gate.
func NewShadow() *ShadowGate { return &ShadowGate{gate: New()} }

// Compare re-evaluates pf with its queue proof's RemainingAhead replaced by
// shadowQueueAhead, against the primary verdict already reached for the
// same fill, and records whether the two admission decisions diverge.
func (s *ShadowGate) Compare(primary Verdict, pf ProposedFill, shadowQueueAhead int64) ShadowVerdict {
	shadowPF := pf
	shadowPF.Queue.RemainingAhead = shadowQueueAhead
	shadow := s.gate.Admit(shadowPF)
	diverged := shadow.Admitted != primary.Admitted
	s.counters.Compared++
	if diverged {
		s.counters.Diverged++
	}
	return ShadowVerdict{Primary: primary, Shadow: shadow, Diverged: diverged}
}

// Counters returns a copy of the shadow gate's comparison tally.
func (s *ShadowGate) Counters() ShadowCounters { return s.counters }

// Counterpart picks the queue-model profile a shadow comparison should run
// under, given the profile the primary (trusted) gate is using: the
// pessimistic Conservative rung is compared against the most realistic
// MeasuredLive rung and vice versa, the two ends of the ladder furthest
// apart in how much queue-ahead they assume — Neutral, being already a
// middle ground, is shadowed against Conservative, the harder of the two
// bounds to clear.
func Counterpart(primary Profile) Profile {
	switch primary {
	case Conservative:
		return MeasuredLive
	case MeasuredLive:
		return Conservative
	default:
		return Conservative
	}
}
