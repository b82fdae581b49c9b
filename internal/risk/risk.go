// Package risk implements pre-trade risk controls: checks that run before
// an order is submitted to the matching engine, not after a fill lands.
// Every check is a pure, deterministic function of the gate's accumulated
// state and the caller-supplied simulation time — there is no goroutine,
// no channel, and no time.Now anywhere in this package, so the same
// sequence of reports against the same Config always produces the same
// sequence of kill decisions.
package risk

import (
	"fmt"

	"github.com/0xtitan6/backtest-v2/internal/clock"
	"github.com/0xtitan6/backtest-v2/internal/ledger"
	"github.com/0xtitan6/backtest-v2/pkg/types"
)

// Config sets the hard limits that trigger the kill switch, generalizing
// the teacher's portfolio-level risk.RiskConfig from dollar floats to
// fixed-point Amount and tick counts so no float ever enters a trust-gated
// run.
type Config struct {
	MaxPositionPerMarket ledger.Amount
	MaxGlobalExposure    ledger.Amount
	MaxMarketsActive     int
	KillSwitchDropTicks  int64       // absolute tick movement that trips the kill switch
	KillSwitchWindow     clock.Nanos // rolling window the movement is measured over
	MaxDailyLoss         ledger.Amount
	CooldownAfterKill    clock.Nanos
}

// PositionReport is submitted once per decision point for a market — the
// hermetic replacement for the teacher's goroutine-delivered PositionReport.
type PositionReport struct {
	Market        types.MarketID
	ExposureAmount ledger.Amount
	UnrealizedPnL ledger.Amount
	RealizedPnL   ledger.Amount
	MidTicks      int64
	TS            clock.Nanos
}

// KillSignal reports that a limit was breached. An empty Market means a
// global kill across every active market.
type KillSignal struct {
	Market types.MarketID
	Reason string
}

type priceAnchor struct {
	ticks int64
	ts    clock.Nanos
}

// Gate accumulates position reports and evaluates them against Config on
// every call to Evaluate — there is no background loop, so a caller (the
// strategy harness orchestrator) must call Evaluate at every decision
// point it wants risk enforced at.
type Gate struct {
	cfg              Config
	positions        map[types.MarketID]PositionReport
	totalExposure    ledger.Amount
	totalRealizedPnL ledger.Amount
	anchors          map[types.MarketID]priceAnchor
	killActive       bool
	killUntil        clock.Nanos
}

// New creates a risk gate.
func New(cfg Config) *Gate {
	return &Gate{
		cfg:       cfg,
		positions: make(map[types.MarketID]PositionReport),
		anchors:   make(map[types.MarketID]priceAnchor),
	}
}

// Evaluate records report and returns every KillSignal it triggers, in
// deterministic check order: per-market exposure, global exposure,
// per-market count, daily loss, rapid price movement. It also clears an
// expired kill-switch cooldown using the report's own timestamp — there is
// no ticking background clock to do this implicitly.
func (g *Gate) Evaluate(now clock.Nanos, report PositionReport) []KillSignal {
	if g.killActive && now >= g.killUntil {
		g.killActive = false
	}

	g.positions[report.Market] = report

	g.totalExposure = 0
	g.totalRealizedPnL = 0
	var totalUnrealized ledger.Amount
	for _, pos := range g.positions {
		g.totalExposure = g.totalExposure.Add(pos.ExposureAmount)
		g.totalRealizedPnL = g.totalRealizedPnL.Add(pos.RealizedPnL)
		totalUnrealized = totalUnrealized.Add(pos.UnrealizedPnL)
	}

	var kills []KillSignal

	if report.ExposureAmount > g.cfg.MaxPositionPerMarket {
		kills = append(kills, g.kill(now, report.Market, "per-market position limit breached"))
	}
	if g.totalExposure > g.cfg.MaxGlobalExposure {
		kills = append(kills, g.kill(now, "", "global exposure limit breached"))
	}
	if g.cfg.MaxMarketsActive > 0 && len(g.positions) > g.cfg.MaxMarketsActive {
		kills = append(kills, g.kill(now, "", "max active markets exceeded"))
	}

	totalPnL := g.totalRealizedPnL.Add(totalUnrealized)
	if totalPnL < -g.cfg.MaxDailyLoss {
		kills = append(kills, g.kill(now, "", "max daily loss breached"))
	}

	if sig, triggered := g.checkPriceMovement(report); triggered {
		kills = append(kills, sig)
	}

	return kills
}

// checkPriceMovement mirrors the teacher's rolling-anchor detector: if the
// anchor for this market is absent or has aged out of KillSwitchWindow, it
// is reset to the current price instead of firing. Otherwise the absolute
// tick movement from the anchor is compared against KillSwitchDropTicks.
func (g *Gate) checkPriceMovement(report PositionReport) (KillSignal, bool) {
	anchor, ok := g.anchors[report.Market]
	if !ok || report.TS-anchor.ts > g.cfg.KillSwitchWindow {
		g.anchors[report.Market] = priceAnchor{ticks: report.MidTicks, ts: report.TS}
		return KillSignal{}, false
	}

	move := report.MidTicks - anchor.ticks
	if move < 0 {
		move = -move
	}
	if move > g.cfg.KillSwitchDropTicks {
		return g.kill(report.TS, report.Market, fmt.Sprintf(
			"rapid price movement: %d ticks within %d ns", move, g.cfg.KillSwitchWindow)), true
	}
	return KillSignal{}, false
}

func (g *Gate) kill(now clock.Nanos, market types.MarketID, reason string) KillSignal {
	g.killActive = true
	g.killUntil = now + g.cfg.CooldownAfterKill
	return KillSignal{Market: market, Reason: reason}
}

// IsKillActive reports whether the kill switch cooldown covers now.
func (g *Gate) IsKillActive(now clock.Nanos) bool {
	if g.killActive && now >= g.killUntil {
		g.killActive = false
	}
	return g.killActive
}

// RemainingBudget returns the lesser of per-market and global exposure
// headroom for market, floored at zero.
func (g *Gate) RemainingBudget(market types.MarketID) ledger.Amount {
	var current ledger.Amount
	if pos, ok := g.positions[market]; ok {
		current = pos.ExposureAmount
	}

	perMarket := g.cfg.MaxPositionPerMarket.Sub(current)
	global := g.cfg.MaxGlobalExposure.Sub(g.totalExposure)

	remaining := perMarket
	if global < remaining {
		remaining = global
	}
	if remaining < 0 {
		return 0
	}
	return remaining
}
