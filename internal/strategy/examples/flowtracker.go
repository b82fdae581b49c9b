package examples

import (
	"math"

	"github.com/0xtitan6/backtest-v2/internal/clock"
	"github.com/0xtitan6/backtest-v2/pkg/types"
)

// ToxicityMetrics are the adverse-selection indicators computed from recent
// fills.
type ToxicityMetrics struct {
	DirectionalImbalance float64 // [0, 1]: fraction of fills in the dominant direction
	FillVelocity         float64 // fills per second of window
	ToxicityScore        float64 // [0, 1]: composite score
	IsAverse             bool
}

type trackedFill struct {
	ts   clock.Nanos
	side types.Side
}

// FlowTracker detects toxic flow — fills that consistently go one
// direction, suggesting an informed counterparty is picking off stale
// quotes — from a rolling window of the strategy's own recent fills. Every
// method takes the current time as an explicit argument rather than
// reading a clock, so the same tracker produces identical output whether
// driven by a recorded dataset or a live feed.
type FlowTracker struct {
	window            clock.Nanos
	toxicityThreshold float64
	cooldown          clock.Nanos
	maxSpreadMultiple float64

	fills         []trackedFill
	lastToxicTime clock.Nanos
	everToxic     bool
}

// NewFlowTracker creates a flow tracker with the given configuration.
func NewFlowTracker(window clock.Nanos, toxicityThreshold float64, cooldown clock.Nanos, maxSpreadMultiple float64) *FlowTracker {
	return &FlowTracker{
		window:            window,
		toxicityThreshold: toxicityThreshold,
		cooldown:          cooldown,
		maxSpreadMultiple: maxSpreadMultiple,
		fills:             make([]trackedFill, 0, 64),
	}
}

// AddFill records a fill at ts and evicts entries that have fallen outside
// the rolling window as of ts.
func (ft *FlowTracker) AddFill(ts clock.Nanos, side types.Side) {
	ft.fills = append(ft.fills, trackedFill{ts: ts, side: side})
	ft.evictStale(ts)
}

func (ft *FlowTracker) evictStale(now clock.Nanos) {
	cutoff := now - ft.window
	idx := 0
	for idx < len(ft.fills) && ft.fills[idx].ts <= cutoff {
		idx++
	}
	if idx > 0 {
		ft.fills = ft.fills[idx:]
	}
}

// CalculateToxicity computes adverse-selection metrics as of now.
func (ft *FlowTracker) CalculateToxicity(now clock.Nanos) ToxicityMetrics {
	ft.evictStale(now)
	if len(ft.fills) == 0 {
		return ToxicityMetrics{}
	}

	var buyCount, sellCount int
	for _, f := range ft.fills {
		if f.side == types.Buy {
			buyCount++
		} else {
			sellCount++
		}
	}
	total := len(ft.fills)
	dominant := math.Max(float64(buyCount), float64(sellCount))
	directionalImbalance := dominant / float64(total)

	if total < 2 {
		return ToxicityMetrics{
			DirectionalImbalance: directionalImbalance,
			ToxicityScore:        directionalImbalance * 0.6,
			IsAverse:             directionalImbalance > ft.toxicityThreshold,
		}
	}

	windowSeconds := float64(ft.window) / float64(clock.NsPerSec)
	fillVelocity := float64(total) / windowSeconds
	velocityFactor := math.Min(fillVelocity/3.0, 1.0)

	toxicityScore := 0.6*directionalImbalance + 0.4*velocityFactor
	return ToxicityMetrics{
		DirectionalImbalance: directionalImbalance,
		FillVelocity:         fillVelocity,
		ToxicityScore:        toxicityScore,
		IsAverse:             toxicityScore > ft.toxicityThreshold,
	}
}

// GetSpreadMultiplier returns the spread multiplier to apply as of now: 1.0
// under normal conditions, rising toward maxSpreadMultiple while toxic and
// decaying back to 1.0 over the cooldown period afterward.
func (ft *FlowTracker) GetSpreadMultiplier(now clock.Nanos) float64 {
	metrics := ft.CalculateToxicity(now)

	if metrics.IsAverse {
		ft.lastToxicTime = now
		ft.everToxic = true
	}

	if !ft.everToxic {
		return 1.0
	}

	inCooldown := now-ft.lastToxicTime < ft.cooldown
	if !metrics.IsAverse && !inCooldown {
		return 1.0
	}

	if metrics.ToxicityScore < ft.toxicityThreshold {
		elapsed := float64(now - ft.lastToxicTime)
		cooldownNs := float64(ft.cooldown)
		progress := math.Min(elapsed/cooldownNs, 1.0)
		return 1.0 + (ft.maxSpreadMultiple-1.0)*(1.0-progress)
	}

	normalized := (metrics.ToxicityScore - ft.toxicityThreshold) / (1.0 - ft.toxicityThreshold)
	return 1.0 + (ft.maxSpreadMultiple-1.0)*math.Min(normalized*2.0, 1.0)
}

// FillCount returns the number of fills currently in the window.
func (ft *FlowTracker) FillCount() int {
	return len(ft.fills)
}
