package trustgate

import (
	"github.com/0xtitan6/backtest-v2/internal/clock"
	"github.com/0xtitan6/backtest-v2/internal/makerfill"
)

// SensitivityPoint is one cell of the latency/sampling/queue-model grid
// sweep: the assumptions varied plus the PnL that resulted under them.
type SensitivityPoint struct {
	LatencyNs   clock.Nanos
	SamplingNs  clock.Nanos
	QueueModel  makerfill.Profile
	PnL         int64
}

// FragilityFlags are the specific ways a strategy's result can be fragile
// to assumption changes, each checked independently so a caller can see
// exactly which assumption mattered. Only the sign of each point's PnL is
// compared; a change in PnL magnitude alone sets no flag.
type FragilityFlags struct {
	SignFlip          bool // one grid point is profitable and another is losing
	LatencySensitive  bool // PnL sign (positive, zero, negative) differs between latency values
	SamplingSensitive bool // PnL sign differs between sampling rates
	QueueModelSensitive bool // PnL sign differs between queue-model profiles
}

// Any reports whether any fragility was detected.
func (f FragilityFlags) Any() bool {
	return f.SignFlip || f.LatencySensitive || f.SamplingSensitive || f.QueueModelSensitive
}

// TrustRecommendation is the sensitivity sweep's own recommendation,
// separate from (but feeding into) trustgate.Evaluate's final decision.
type TrustRecommendation int8

const (
	RecommendTrust TrustRecommendation = iota
	RecommendCaution
	RecommendReject
)

func (r TrustRecommendation) String() string {
	switch r {
	case RecommendTrust:
		return "TRUST"
	case RecommendCaution:
		return "CAUTION"
	case RecommendReject:
		return "REJECT"
	default:
		return "UNKNOWN"
	}
}

// SensitivityReport is the full grid sweep result.
type SensitivityReport struct {
	Points         []SensitivityPoint
	Flags          FragilityFlags
	Recommendation TrustRecommendation
}

// EvaluateSensitivity computes fragility flags from a grid of sweep points
// and derives a recommendation: a sign flip (a profitable point and a
// losing point in the same grid) is an automatic Reject (the strategy's
// profitability is an artifact of a specific assumption, not a real edge);
// a grid with no sign flip whose PnL sign still differs along an axis (for
// example profit at one latency and zero at another) is Caution; a grid
// with one sign throughout is Trust. PnL magnitudes are not compared.
func EvaluateSensitivity(points []SensitivityPoint) SensitivityReport {
	if len(points) == 0 {
		return SensitivityReport{Recommendation: RecommendReject}
	}

	var sawProfit, sawLoss bool
	flags := FragilityFlags{}
	latencySeen := map[clock.Nanos]int{}
	samplingSeen := map[clock.Nanos]int{}
	queueSeen := map[makerfill.Profile]int{}

	for _, p := range points {
		s := sign(p.PnL)
		sawProfit = sawProfit || s > 0
		sawLoss = sawLoss || s < 0
		latencySeen[p.LatencyNs] = s
		samplingSeen[p.SamplingNs] = s
		queueSeen[p.QueueModel] = s
	}

	flags.SignFlip = sawProfit && sawLoss
	flags.LatencySensitive = signsDiffer(latencySeen)
	flags.SamplingSensitive = signsDiffer(samplingSeen)
	flags.QueueModelSensitive = signsDiffer(queueSeen)

	rec := RecommendTrust
	switch {
	case flags.SignFlip:
		rec = RecommendReject
	case flags.LatencySensitive || flags.SamplingSensitive || flags.QueueModelSensitive:
		rec = RecommendCaution
	}

	return SensitivityReport{Points: points, Flags: flags, Recommendation: rec}
}

func signsDiffer[K comparable](seen map[K]int) bool {
	var first int
	set := false
	for _, s := range seen {
		if !set {
			first, set = s, true
			continue
		}
		if s != first {
			return true
		}
	}
	return false
}

func sign(v int64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
