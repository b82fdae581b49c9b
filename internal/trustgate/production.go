package trustgate

import (
	"fmt"

	"github.com/0xtitan6/backtest-v2/internal/invariants"
)

// ProductionRequirements is the hard correctness gate a run must satisfy
// before production_grade may be set true: every invariant category runs
// in Hard mode and every stream's integrity policy runs in strict mode.
// There is no "weakened configuration" escape hatch — a caller that wants
// production_grade must actually configure these, not merely claim to.
type ProductionRequirements struct {
	InvariantMode  invariants.Mode
	IntegrityStrict bool
}

// RequirementError reports which production-grade requirement was unmet.
type RequirementError struct {
	Detail string
}

func (e *RequirementError) Error() string {
	return fmt.Sprintf("trustgate: production-grade requirement not met: %s", e.Detail)
}

// CheckProductionGrade validates ProductionRequirements, returning a
// RequirementError for the first unmet requirement.
func CheckProductionGrade(req ProductionRequirements) error {
	if req.InvariantMode != invariants.Hard {
		return &RequirementError{"invariant enforcement must run in Hard mode"}
	}
	if !req.IntegrityStrict {
		return &RequirementError{"stream integrity policy must run in strict mode"}
	}
	return nil
}
