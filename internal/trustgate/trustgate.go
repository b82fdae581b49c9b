// Package trustgate implements the sole pathway by which a backtest run
// may be labeled Trusted. No other code anywhere in this module may
// assign that label directly — every caller that wants to know whether a
// run's results can be believed calls Evaluate and inspects the
// TrustDecision it returns.
package trustgate

import (
	"fmt"

	"github.com/0xtitan6/backtest-v2/internal/fingerprint"
	"github.com/0xtitan6/backtest-v2/internal/makerfill"
)

// StrategyKind distinguishes the two execution styles a run can claim,
// since dataset readiness and the validation ladder only apply to Maker
// claims.
type StrategyKind int8

const (
	Taker StrategyKind = iota
	Maker
)

func (k StrategyKind) String() string {
	if k == Maker {
		return "MAKER"
	}
	return "TAKER"
}

// DatasetReadiness records what a dataset's recorded fields actually
// support validating — a dataset missing queue-position telemetry cannot
// support a Maker claim no matter how well the strategy performs.
type DatasetReadiness struct {
	AllowsMaker bool
	AllowsTaker bool
}

// Allows reports whether this readiness permits the given strategy kind.
func (r DatasetReadiness) Allows(kind StrategyKind) bool {
	if kind == Maker {
		return r.AllowsMaker
	}
	return r.AllowsTaker
}

// EvaluateInput bundles every fact Evaluate's six trust conditions check.
// A nil or zero-value field reads as "this condition was never
// established" rather than "this condition passed".
type EvaluateInput struct {
	GateSuite  *GateSuiteReport
	Sensitivity *SensitivityReport
	Fingerprint *fingerprint.Hash // the run's RunFingerprint, if computed
	ProductionGrade bool
	Readiness  DatasetReadiness
	Claimed    StrategyKind
	MakerLadder *makerfill.LadderReport // required when Claimed == Maker
}

// TrustDecision is Evaluate's only output shape: either Trusted, or
// Untrusted with every reason a condition failed, never a single combined
// boolean that would hide which requirement was the blocker.
type TrustDecision struct {
	Trusted bool
	Reasons []string
}

func (d TrustDecision) String() string {
	if d.Trusted {
		return "TRUSTED"
	}
	return fmt.Sprintf("UNTRUSTED: %v", d.Reasons)
}

// Evaluate is the sole function in this module permitted to assign
// TrustDecision.Trusted = true. A run is Trusted if and only if all six
// conditions hold (the maker-ladder one only for a Maker claim); any single failure makes the whole decision Untrusted,
// with every failing condition's reason recorded so a caller never has to
// guess which requirement was unmet.
func Evaluate(in EvaluateInput) TrustDecision {
	var reasons []string

	if in.GateSuite == nil {
		reasons = append(reasons, "gate suite was not executed")
	} else if in.GateSuite.TrustLevel != GateTrusted {
		reasons = append(reasons, "gate suite did not reach Trusted")
	}

	if in.Sensitivity == nil {
		reasons = append(reasons, "sensitivity sweep was not executed")
	} else if in.Sensitivity.Recommendation != RecommendTrust {
		reasons = append(reasons, fmt.Sprintf("sensitivity sweep recommends %s", in.Sensitivity.Recommendation))
	}

	if in.Fingerprint == nil || in.Fingerprint.IsZero() {
		reasons = append(reasons, "no reproducible run fingerprint is present")
	}

	if !in.ProductionGrade {
		reasons = append(reasons, "production_grade is not enabled")
	}

	if !in.Readiness.Allows(in.Claimed) {
		reasons = append(reasons, fmt.Sprintf("dataset readiness does not permit a %s claim", in.Claimed))
	}

	if in.Claimed == Maker {
		if in.MakerLadder == nil {
			reasons = append(reasons, "maker validation ladder was not executed for a Maker claim")
		} else if !in.MakerLadder.Survived {
			reasons = append(reasons, "maker validation ladder did not survive")
		}
	}

	if len(reasons) > 0 {
		return TrustDecision{Trusted: false, Reasons: reasons}
	}
	return TrustDecision{Trusted: true}
}
