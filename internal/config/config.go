// Package config defines all configuration for a backtest run. Config is
// loaded from a YAML file (default: configs/backtest.yaml) via
// github.com/spf13/viper, with BACKTEST_* environment variables overriding
// any field, the same loader idiom the teacher's live bot uses — but with
// no wallet, no API credentials, and no network endpoints, since a
// hermetic run never authenticates to anything. float64 values below are
// the config/display boundary only: Validate and the To*() conversion
// methods are exactly where they are translated into the fixed-point types
// the core actually computes with.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/0xtitan6/backtest-v2/internal/accounting"
	"github.com/0xtitan6/backtest-v2/internal/clock"
	"github.com/0xtitan6/backtest-v2/internal/integrity"
	"github.com/0xtitan6/backtest-v2/internal/invariants"
	"github.com/0xtitan6/backtest-v2/internal/ledger"
	"github.com/0xtitan6/backtest-v2/internal/risk"
	"github.com/0xtitan6/backtest-v2/internal/settlement"
	"github.com/0xtitan6/backtest-v2/internal/strategy/examples"
	"github.com/0xtitan6/backtest-v2/pkg/types"
)

// Config is the top-level configuration for a single backtest run.
type Config struct {
	Dataset         DatasetConfig    `mapstructure:"dataset"`
	Market          MarketConfig     `mapstructure:"market"`
	Strategy        StrategyConfig   `mapstructure:"strategy"`
	Risk            RiskConfig       `mapstructure:"risk"`
	Invariant       InvariantConfig  `mapstructure:"invariant"`
	Accounting      AccountingConfig `mapstructure:"accounting"`
	Integrity       IntegrityConfig  `mapstructure:"integrity"`
	Logging         LoggingConfig    `mapstructure:"logging"`
	Seed            int64            `mapstructure:"seed"`
	OutputDir       string           `mapstructure:"output_dir"`
	ProductionGrade bool             `mapstructure:"production_grade"`
}

// DatasetConfig identifies the dataset bundle a run reads from.
type DatasetConfig struct {
	ID   string `mapstructure:"id"`
	Path string `mapstructure:"path"`
}

// MarketConfig identifies the market a run simulates and the settlement
// window's boundaries, in nanoseconds since the dataset's own epoch.
type MarketConfig struct {
	ID        string `mapstructure:"id"`
	TickSize  string `mapstructure:"tick_size"`
	StartTS   int64  `mapstructure:"start_ts"`
	EndTS     int64  `mapstructure:"end_ts"`
	SelfTrade string `mapstructure:"self_trade"` // "reject" (default), "cancel-newest", "cancel-oldest"
}

// SelfTradePolicyValue parses MarketConfig.SelfTrade into a
// types.SelfTradePolicy, defaulting to SelfTradeReject for an empty or
// unrecognized value.
func (m MarketConfig) SelfTradePolicyValue() types.SelfTradePolicy {
	switch strings.ToLower(m.SelfTrade) {
	case "cancel-newest":
		return types.SelfTradeCancelNewest
	case "cancel-oldest":
		return types.SelfTradeCancelOldest
	default:
		return types.SelfTradeReject
	}
}

// Window converts MarketConfig's boundaries into a settlement.Window.
func (m MarketConfig) Window() settlement.Window {
	return settlement.Window{
		Market:  types.MarketID(m.ID),
		StartTS: clock.Nanos(m.StartTS),
		EndTS:   clock.Nanos(m.EndTS),
	}
}

// TickSizeValue parses MarketConfig.TickSize into a types.TickSize.
func (m MarketConfig) TickSizeValue() types.TickSize {
	switch m.TickSize {
	case "0.1", "0.01", "0.001", "0.0001":
		return types.TickSize(m.TickSize)
	default:
		return types.Tick001
	}
}

// StrategyConfig selects and parameterizes one example strategy. Exactly
// one of the nested sections is consulted, selected by Name.
type StrategyConfig struct {
	Name        string            `mapstructure:"name"`
	Avellaneda  AvellanedaConfig  `mapstructure:"avellaneda"`
	RandomTaker RandomTakerConfig `mapstructure:"random_taker"`
	Momentum    MomentumConfig    `mapstructure:"momentum"`
}

// AvellanedaConfig mirrors examples.AvellanedaParams with YAML-friendly
// field names and durations expressed in milliseconds.
type AvellanedaConfig struct {
	YesToken          string  `mapstructure:"yes_token"`
	NoToken           string  `mapstructure:"no_token"`
	Grid              int64   `mapstructure:"grid"`
	OrderQty          int64   `mapstructure:"order_qty"`
	RefreshEveryMs    int64   `mapstructure:"refresh_every_ms"`
	Gamma             float64 `mapstructure:"gamma"`
	Sigma             float64 `mapstructure:"sigma"`
	K                 float64 `mapstructure:"k"`
	HorizonSec        float64 `mapstructure:"horizon_sec"`
	MinSpreadTick     int64   `mapstructure:"min_spread_tick"`
	FlowWindowMs      int64   `mapstructure:"flow_window_ms"`
	FlowThreshold     float64 `mapstructure:"flow_threshold"`
	FlowCooldownMs    int64   `mapstructure:"flow_cooldown_ms"`
	FlowMaxMultiplier float64 `mapstructure:"flow_max_multiplier"`
}

// ToParams converts config fields into examples.AvellanedaParams, scaling
// millisecond durations into clock.Nanos.
func (c AvellanedaConfig) ToParams(market types.MarketID) examples.AvellanedaParams {
	return examples.AvellanedaParams{
		Market:            market,
		YesToken:          types.TokenID(c.YesToken),
		NoToken:           types.TokenID(c.NoToken),
		Grid:              c.Grid,
		OrderQty:          c.OrderQty,
		RefreshEvery:      clock.Nanos(c.RefreshEveryMs) * clock.Nanos(1_000_000),
		Gamma:             c.Gamma,
		Sigma:             c.Sigma,
		K:                 c.K,
		Horizon:           c.HorizonSec,
		MinSpreadTick:     c.MinSpreadTick,
		FlowWindow:        clock.Nanos(c.FlowWindowMs) * clock.Nanos(1_000_000),
		FlowThreshold:     c.FlowThreshold,
		FlowCooldown:      clock.Nanos(c.FlowCooldownMs) * clock.Nanos(1_000_000),
		FlowMaxMultiplier: c.FlowMaxMultiplier,
	}
}

// RandomTakerConfig mirrors examples.RandomTakerParams.
type RandomTakerConfig struct {
	Grid     int64   `mapstructure:"grid"`
	Qty      int64   `mapstructure:"qty"`
	Seed     int64   `mapstructure:"seed"`
	TakeOdds float64 `mapstructure:"take_odds"`
}

func (c RandomTakerConfig) ToParams(market types.MarketID) examples.RandomTakerParams {
	return examples.RandomTakerParams{Market: market, Grid: c.Grid, Qty: c.Qty, Seed: c.Seed, TakeOdds: c.TakeOdds}
}

// MomentumConfig mirrors examples.MomentumParams.
type MomentumConfig struct {
	Grid         int64 `mapstructure:"grid"`
	Qty          int64 `mapstructure:"qty"`
	LookbackTick int64 `mapstructure:"lookback_tick"`
	CooldownMs   int64 `mapstructure:"cooldown_ms"`
	Invert       bool  `mapstructure:"invert"`
}

func (c MomentumConfig) ToParams(market types.MarketID) examples.MomentumParams {
	return examples.MomentumParams{
		Market:       market,
		Grid:         c.Grid,
		Qty:          c.Qty,
		LookbackTick: c.LookbackTick,
		Cooldown:     clock.Nanos(c.CooldownMs) * clock.Nanos(1_000_000),
		Invert:       c.Invert,
	}
}

// RiskConfig mirrors risk.Config with dollar amounts expressed as floats at
// this config/display boundary only.
type RiskConfig struct {
	MaxPositionPerMarketUSD float64 `mapstructure:"max_position_per_market_usd"`
	MaxGlobalExposureUSD    float64 `mapstructure:"max_global_exposure_usd"`
	MaxMarketsActive        int     `mapstructure:"max_markets_active"`
	KillSwitchDropTicks     int64   `mapstructure:"kill_switch_drop_ticks"`
	KillSwitchWindowMs      int64   `mapstructure:"kill_switch_window_ms"`
	MaxDailyLossUSD         float64 `mapstructure:"max_daily_loss_usd"`
	CooldownAfterKillMs     int64   `mapstructure:"cooldown_after_kill_ms"`
}

// ToRiskConfig converts the dollar-float fields into fixed-point
// ledger.Amount, the only point in the module where these floats are
// scaled into the core's integer currency representation.
func (c RiskConfig) ToRiskConfig() risk.Config {
	return risk.Config{
		MaxPositionPerMarket: dollarsToAmount(c.MaxPositionPerMarketUSD),
		MaxGlobalExposure:    dollarsToAmount(c.MaxGlobalExposureUSD),
		MaxMarketsActive:     c.MaxMarketsActive,
		KillSwitchDropTicks:  c.KillSwitchDropTicks,
		KillSwitchWindow:     clock.Nanos(c.KillSwitchWindowMs) * clock.Nanos(1_000_000),
		MaxDailyLoss:         dollarsToAmount(c.MaxDailyLossUSD),
		CooldownAfterKill:    clock.Nanos(c.CooldownAfterKillMs) * clock.Nanos(1_000_000),
	}
}

func dollarsToAmount(usd float64) ledger.Amount {
	return ledger.Amount(usd * float64(types.AmountScale))
}

// InvariantConfig selects the enforcement mode for internal/invariants.
type InvariantConfig struct {
	Mode string `mapstructure:"mode"` // "hard" or "soft"
}

func (c InvariantConfig) ToMode() invariants.Mode {
	if strings.EqualFold(c.Mode, "soft") {
		return invariants.Soft
	}
	return invariants.Hard
}

// AccountingConfig configures internal/accounting's Enforcer.
type AccountingConfig struct {
	AllowNegativeCash bool `mapstructure:"allow_negative_cash"`
}

func (c AccountingConfig) ToAccountingConfig() accounting.Config {
	return accounting.Config{AllowNegativeCash: c.AllowNegativeCash}
}

// IntegrityConfig configures internal/integrity's guard.
type IntegrityConfig struct {
	Strict                bool  `mapstructure:"strict"`
	OutOfOrderToleranceMs int64 `mapstructure:"out_of_order_tolerance_ms"`
	ReorderWindowMs       int64 `mapstructure:"reorder_window_ms"`
}

func (c IntegrityConfig) ToIntegrityConfig() integrity.Config {
	return integrity.Config{
		DuplicatePolicy:     integrity.DropDuplicate,
		GapPolicy:           integrity.HaltOnGap,
		OutOfOrderPolicy:    integrity.RejectOutOfOrder,
		OutOfOrderTolerance: clock.Nanos(c.OutOfOrderToleranceMs) * clock.Nanos(1_000_000),
		ReorderWindow:       clock.Nanos(c.ReorderWindowMs) * clock.Nanos(1_000_000),
		Strict:              c.Strict,
	}
}

// LoggingConfig configures log/slog handler selection, same fields and
// same meaning as the teacher's LoggingConfig.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with BACKTEST_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("BACKTEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks all required fields and value ranges. A --production-grade
// run additionally requires Invariant.Mode == "hard" and Integrity.Strict,
// enforced here as well as by trustgate.CheckProductionGrade so a bad
// config is rejected before any run starts, not after.
func (c *Config) Validate() error {
	if c.Dataset.ID == "" {
		return fmt.Errorf("dataset.id is required")
	}
	if c.Dataset.Path == "" {
		return fmt.Errorf("dataset.path is required")
	}
	if c.Market.ID == "" {
		return fmt.Errorf("market.id is required")
	}
	if c.Strategy.Name == "" {
		return fmt.Errorf("strategy.name is required")
	}
	if c.Risk.MaxPositionPerMarketUSD <= 0 {
		return fmt.Errorf("risk.max_position_per_market_usd must be > 0")
	}
	if c.Risk.MaxGlobalExposureUSD <= 0 {
		return fmt.Errorf("risk.max_global_exposure_usd must be > 0")
	}
	if c.Risk.MaxMarketsActive <= 0 {
		return fmt.Errorf("risk.max_markets_active must be > 0")
	}
	switch strings.ToLower(c.Invariant.Mode) {
	case "hard", "soft":
	default:
		return fmt.Errorf("invariant.mode must be one of: hard, soft")
	}
	switch strings.ToLower(c.Market.SelfTrade) {
	case "", "reject", "cancel-newest", "cancel-oldest":
	default:
		return fmt.Errorf("market.self_trade must be one of: reject, cancel-newest, cancel-oldest")
	}
	if c.ProductionGrade {
		if !strings.EqualFold(c.Invariant.Mode, "hard") {
			return fmt.Errorf("production_grade requires invariant.mode = hard")
		}
		if !c.Integrity.Strict {
			return fmt.Errorf("production_grade requires integrity.strict = true")
		}
	}
	return nil
}
