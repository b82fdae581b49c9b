package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig() Config {
	return Config{
		MaxPositionPerMarket: 1_000_00000000,
		MaxGlobalExposure:    2_000_00000000,
		MaxMarketsActive:     2,
		KillSwitchDropTicks:  5,
		KillSwitchWindow:     1_000_000_000,
		MaxDailyLoss:         500_00000000,
		CooldownAfterKill:    2_000_000_000,
	}
}

func TestEvaluateFiresOnPerMarketExposureBreach(t *testing.T) {
	t.Parallel()
	g := New(baseConfig())
	kills := g.Evaluate(0, PositionReport{Market: "m1", ExposureAmount: 2_000_00000000, MidTicks: 50, TS: 0})
	require.NotEmpty(t, kills)
	assert.Equal(t, "per-market position limit breached", kills[0].Reason)
}

func TestEvaluateFiresOnGlobalExposureBreach(t *testing.T) {
	t.Parallel()
	g := New(baseConfig())
	g.Evaluate(0, PositionReport{Market: "m1", ExposureAmount: 900_00000000, MidTicks: 50, TS: 0})
	kills := g.Evaluate(0, PositionReport{Market: "m2", ExposureAmount: 1_200_00000000, MidTicks: 50, TS: 0})
	found := false
	for _, k := range kills {
		if k.Reason == "global exposure limit breached" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEvaluateFiresOnMaxDailyLoss(t *testing.T) {
	t.Parallel()
	g := New(baseConfig())
	kills := g.Evaluate(0, PositionReport{Market: "m1", RealizedPnL: -600_00000000, MidTicks: 50, TS: 0})
	found := false
	for _, k := range kills {
		if k.Reason == "max daily loss breached" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEvaluateFiresOnRapidPriceMovementWithinWindow(t *testing.T) {
	t.Parallel()
	g := New(baseConfig())
	g.Evaluate(0, PositionReport{Market: "m1", MidTicks: 50, TS: 0})
	kills := g.Evaluate(0, PositionReport{Market: "m1", MidTicks: 60, TS: 500_000_000})
	found := false
	for _, k := range kills {
		if k.Reason != "" && k.Market == "m1" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEvaluateResetsAnchorWhenWindowExpires(t *testing.T) {
	t.Parallel()
	g := New(baseConfig())
	g.Evaluate(0, PositionReport{Market: "m1", MidTicks: 50, TS: 0})
	kills := g.Evaluate(0, PositionReport{Market: "m1", MidTicks: 60, TS: 2_000_000_000})
	for _, k := range kills {
		assert.NotEqual(t, "m1", k.Market, "anchor should have reset, not fired on a stale comparison")
	}
}

func TestIsKillActiveRespectsConfigCooldown(t *testing.T) {
	t.Parallel()
	g := New(baseConfig())
	g.Evaluate(0, PositionReport{Market: "m1", ExposureAmount: 2_000_00000000, MidTicks: 50, TS: 0})
	assert.True(t, g.IsKillActive(1_000_000_000))
	assert.False(t, g.IsKillActive(3_000_000_000))
}

func TestRemainingBudgetFlooredAtZero(t *testing.T) {
	t.Parallel()
	g := New(baseConfig())
	g.Evaluate(0, PositionReport{Market: "m1", ExposureAmount: 2_000_00000000, MidTicks: 50, TS: 0})
	assert.Equal(t, int64(0), int64(g.RemainingBudget("m1")))
}

func TestRemainingBudgetIsLesserOfPerMarketAndGlobal(t *testing.T) {
	t.Parallel()
	g := New(baseConfig())
	g.Evaluate(0, PositionReport{Market: "m1", ExposureAmount: 0, MidTicks: 50, TS: 0})
	g.Evaluate(0, PositionReport{Market: "m2", ExposureAmount: 1_900_00000000, MidTicks: 50, TS: 0})
	assert.Equal(t, int64(100_00000000), int64(g.RemainingBudget("m1")))
}
