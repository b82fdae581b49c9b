package trustgate

import "fmt"

// GateTrustLevel is the adversarial gate suite's own pass/fail verdict,
// kept distinct from trustgate.TrustDecision's final Trusted/Untrusted
// label — passing the gate suite is necessary but not sufficient for a
// run-level Trusted decision.
type GateTrustLevel int8

const (
	GateUntrusted GateTrustLevel = iota
	GateTrusted
)

func (l GateTrustLevel) String() string {
	if l == GateTrusted {
		return "TRUSTED"
	}
	return "UNTRUSTED"
}

// GateResult is the outcome of one adversarial gate.
type GateResult struct {
	Name   string
	Passed bool
	Detail string
}

// GateSuiteReport aggregates all three adversarial gates into one verdict:
// TrustLevel is GateTrusted only if every gate passed.
type GateSuiteReport struct {
	Results    []GateResult
	TrustLevel GateTrustLevel
}

// Passed reports whether every gate in the suite passed.
func (r GateSuiteReport) Passed() bool { return r.TrustLevel == GateTrusted }

// Failures returns the names of every gate that did not pass.
func (r GateSuiteReport) Failures() []string {
	var out []string
	for _, g := range r.Results {
		if !g.Passed {
			out = append(out, g.Name)
		}
	}
	return out
}

// CheckZeroEdge implements Gate A: when the strategy's theoretical price
// estimate equals the market's actual price, PnL before fees must be
// approximately zero — any systematic profit in this regime means the
// backtester itself is leaking an edge that is not real (a lookahead bug,
// a matching-priority bug, or similar), not that the strategy is skilled.
func CheckZeroEdge(pnlBeforeFees, toleranceAmount int64) GateResult {
	abs := pnlBeforeFees
	if abs < 0 {
		abs = -abs
	}
	if abs > toleranceAmount {
		return GateResult{"zero_edge_matching", false, fmt.Sprintf("pnl_before_fees %d exceeds tolerance %d at zero edge", pnlBeforeFees, toleranceAmount)}
	}
	return GateResult{"zero_edge_matching", true, ""}
}

// CheckMartingale implements Gate B: under a martingale (random-walk)
// price path, no strategy can have a systematic edge, so the mean PnL
// across independent martingale samples must be approximately zero.
func CheckMartingale(pnlSamples []int64, toleranceAmount int64) GateResult {
	if len(pnlSamples) == 0 {
		return GateResult{"martingale_price_path", false, "no samples provided"}
	}
	var sum int64
	for _, p := range pnlSamples {
		sum += p
	}
	mean := sum / int64(len(pnlSamples))
	abs := mean
	if abs < 0 {
		abs = -abs
	}
	if abs > toleranceAmount {
		return GateResult{"martingale_price_path", false, fmt.Sprintf("mean pnl %d across %d samples exceeds tolerance %d", mean, len(pnlSamples), toleranceAmount)}
	}
	return GateResult{"martingale_price_path", true, ""}
}

// CheckSignalInversion implements Gate C: a strategy and its sign-inverted
// twin cannot both be profitable — if they are, the backtester is
// rewarding something other than the signal's actual direction (e.g. a
// maker-fill admission bug that pays out regardless of which side rests).
func CheckSignalInversion(pnlOriginal, pnlInverted int64) GateResult {
	if pnlOriginal > 0 && pnlInverted > 0 {
		return GateResult{"signal_inversion", false, fmt.Sprintf("both original (%d) and inverted (%d) signals profitable", pnlOriginal, pnlInverted)}
	}
	return GateResult{"signal_inversion", true, ""}
}

// RunSuite aggregates the three gate results into a GateSuiteReport.
func RunSuite(a, b, c GateResult) GateSuiteReport {
	results := []GateResult{a, b, c}
	level := GateTrusted
	for _, r := range results {
		if !r.Passed {
			level = GateUntrusted
			break
		}
	}
	return GateSuiteReport{Results: results, TrustLevel: level}
}
