package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xtitan6/backtest-v2/internal/invariants"
)

const sampleYAML = `
dataset:
  id: ds1
  path: /data/ds1
market:
  id: m1
  tick_size: "0.01"
strategy:
  name: avellaneda
  avellaneda:
    gamma: 0.1
    sigma: 0.2
    k: 1.5
    horizon_sec: 60
    grid: 100
    order_qty: 10
risk:
  max_position_per_market_usd: 1000
  max_global_exposure_usd: 5000
  max_markets_active: 3
  max_daily_loss_usd: 200
invariant:
  mode: hard
accounting:
  allow_negative_cash: false
integrity:
  strict: true
seed: 42
output_dir: /tmp/out
production_grade: true
`

func writeSampleConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "backtest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))
	return path
}

func TestLoadParsesNestedSections(t *testing.T) {
	t.Parallel()
	path := writeSampleConfig(t)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ds1", cfg.Dataset.ID)
	assert.Equal(t, "avellaneda", cfg.Strategy.Name)
	assert.Equal(t, 0.1, cfg.Strategy.Avellaneda.Gamma)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.True(t, cfg.ProductionGrade)
}

func TestValidatePassesForWellFormedConfig(t *testing.T) {
	t.Parallel()
	path := writeSampleConfig(t)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsMissingDatasetID(t *testing.T) {
	t.Parallel()
	path := writeSampleConfig(t)
	cfg, err := Load(path)
	require.NoError(t, err)
	cfg.Dataset.ID = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsProductionGradeWithoutHardInvariants(t *testing.T) {
	t.Parallel()
	path := writeSampleConfig(t)
	cfg, err := Load(path)
	require.NoError(t, err)
	cfg.Invariant.Mode = "soft"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsProductionGradeWithoutStrictIntegrity(t *testing.T) {
	t.Parallel()
	path := writeSampleConfig(t)
	cfg, err := Load(path)
	require.NoError(t, err)
	cfg.Integrity.Strict = false
	assert.Error(t, cfg.Validate())
}

func TestInvariantConfigToModeDefaultsToHard(t *testing.T) {
	t.Parallel()
	assert.Equal(t, invariants.Hard, InvariantConfig{Mode: "hard"}.ToMode())
	assert.Equal(t, invariants.Soft, InvariantConfig{Mode: "soft"}.ToMode())
	assert.Equal(t, invariants.Hard, InvariantConfig{Mode: ""}.ToMode())
}

func TestRiskConfigToRiskConfigScalesDollarsToFixedPoint(t *testing.T) {
	t.Parallel()
	rc := RiskConfig{MaxPositionPerMarketUSD: 1000, MaxGlobalExposureUSD: 5000}
	converted := rc.ToRiskConfig()
	assert.Equal(t, int64(1000_00000000), int64(converted.MaxPositionPerMarket))
	assert.Equal(t, int64(5000_00000000), int64(converted.MaxGlobalExposure))
}

func TestMarketConfigTickSizeValueDefaultsOnUnknown(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "0.01", string(MarketConfig{TickSize: "0.01"}.TickSizeValue()))
	assert.Equal(t, "0.01", string(MarketConfig{TickSize: "bogus"}.TickSizeValue()))
}
