package runartifact

// DisclaimerCode is a stable, machine-readable tag attached to a Manifest
// describing a condition a consumer must not silently ignore — the CLI and
// any API surface built on this package are required to surface every code
// present, never drop one on the floor because a human-readable summary
// elsewhere already mentions it.
type DisclaimerCode string

const (
	// DisclaimerOracleIndeterminateWindow marks a run whose settlement
	// window never received a resolving reference tick before its dataset
	// was exhausted. The window's PnL is not a trading result and must be
	// excluded from any aggregate, not treated as a zero.
	DisclaimerOracleIndeterminateWindow DisclaimerCode = "oracle-indeterminate-window"

	// DisclaimerPermissiveMode marks a run executed with production-grade
	// invariant enforcement relaxed — config.Config.ProductionGrade was
	// false, or the invariant enforcer's Mode was "soft" rather than
	// "hard". Such a run can never be Trusted regardless of its outcome.
	DisclaimerPermissiveMode DisclaimerCode = "permissive-mode"

	// DisclaimerRunHalted marks a run that stopped before its dataset was
	// exhausted, because an accounting or invariant violation tripped the
	// enforcer. Any PnL figure recorded is a mid-run snapshot, not a
	// closing result.
	DisclaimerRunHalted DisclaimerCode = "run-halted"
)

// DisclaimerInput is the subset of a run's outcome ComputeDisclaimers needs
// to decide which codes apply — kept narrow so a caller doesn't have to
// reach for the full launch.Outcome/config.Config types just to compute a
// manifest's disclaimer list.
type DisclaimerInput struct {
	Indeterminate   bool
	ProductionGrade bool
	InvariantHard   bool
	Halted          bool
}

// ComputeDisclaimers derives a Manifest's disclaimer codes from a run's
// observed conditions. It is deliberately additive and order-stable: the
// same inputs always produce the same code list in the same order, so two
// runs over the same dataset and config emit byte-identical manifests.
func ComputeDisclaimers(in DisclaimerInput) []DisclaimerCode {
	var codes []DisclaimerCode
	if in.Indeterminate {
		codes = append(codes, DisclaimerOracleIndeterminateWindow)
	}
	if !in.ProductionGrade || !in.InvariantHard {
		codes = append(codes, DisclaimerPermissiveMode)
	}
	if in.Halted {
		codes = append(codes, DisclaimerRunHalted)
	}
	return codes
}
