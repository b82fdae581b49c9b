package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/0xtitan6/backtest-v2/internal/config"
	"github.com/0xtitan6/backtest-v2/internal/launch"
	"github.com/0xtitan6/backtest-v2/internal/trustgate"
	"github.com/0xtitan6/backtest-v2/pkg/types"
)

var (
	gateZeroEdgeConfig   string
	gateMartingaleConfig []string
	gateToleranceUSD     float64
)

var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Run the adversarial gate suite: zero-edge, martingale, and signal-inversion",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		logger := newLogger(cfg)
		tolerance := int64(gateToleranceUSD * float64(types.AmountScale))

		a := runZeroEdgeGate(logger, tolerance)
		b := runMartingaleGate(logger, tolerance)
		c := runSignalInversionGate(cfg, logger)

		report := trustgate.RunSuite(a, b, c)
		for _, r := range report.Results {
			status := "PASS"
			if !r.Passed {
				status = "FAIL"
			}
			fmt.Printf("%-24s %s  %s\n", r.Name, status, r.Detail)
		}
		fmt.Printf("gate suite: %s\n", report.TrustLevel)

		if report.Passed() {
			os.Exit(exitTrusted)
		}
		os.Exit(exitUntrusted)
	},
}

func init() {
	gateCmd.Flags().StringVar(&gateZeroEdgeConfig, "zero-edge-config", "", "config for a dataset where the strategy's theoretical price equals the market price")
	gateCmd.Flags().StringArrayVar(&gateMartingaleConfig, "martingale-config", nil, "config for one martingale (random-walk) price path sample; repeatable")
	gateCmd.Flags().Float64Var(&gateToleranceUSD, "tolerance-usd", 1.0, "PnL tolerance, in dollars, for the zero-edge and martingale gates")
}

func runZeroEdgeGate(logger *slog.Logger, tolerance int64) trustgate.GateResult {
	if gateZeroEdgeConfig == "" {
		return trustgate.GateResult{Name: "zero_edge_matching", Passed: false, Detail: "no --zero-edge-config supplied"}
	}
	cfg, err := config.Load(gateZeroEdgeConfig)
	if err != nil {
		return trustgate.GateResult{Name: "zero_edge_matching", Passed: false, Detail: fmt.Sprintf("load config: %s", err)}
	}
	if err := cfg.Validate(); err != nil {
		return trustgate.GateResult{Name: "zero_edge_matching", Passed: false, Detail: fmt.Sprintf("invalid config: %s", err)}
	}
	outcome, err := launch.Run(cfg, launch.Overlay{}, logger)
	if err != nil {
		return trustgate.GateResult{Name: "zero_edge_matching", Passed: false, Detail: fmt.Sprintf("run: %s", err)}
	}
	return trustgate.CheckZeroEdge(outcome.PnL(), tolerance)
}

func runMartingaleGate(logger *slog.Logger, tolerance int64) trustgate.GateResult {
	if len(gateMartingaleConfig) == 0 {
		return trustgate.GateResult{Name: "martingale_price_path", Passed: false, Detail: "no --martingale-config samples supplied"}
	}
	var samples []int64
	for _, path := range gateMartingaleConfig {
		cfg, err := config.Load(path)
		if err != nil {
			return trustgate.GateResult{Name: "martingale_price_path", Passed: false, Detail: fmt.Sprintf("load config %s: %s", path, err)}
		}
		if err := cfg.Validate(); err != nil {
			return trustgate.GateResult{Name: "martingale_price_path", Passed: false, Detail: fmt.Sprintf("invalid config %s: %s", path, err)}
		}
		outcome, err := launch.Run(cfg, launch.Overlay{}, logger)
		if err != nil {
			return trustgate.GateResult{Name: "martingale_price_path", Passed: false, Detail: fmt.Sprintf("run %s: %s", path, err)}
		}
		samples = append(samples, outcome.PnL())
	}
	return trustgate.CheckMartingale(samples, tolerance)
}

// runSignalInversionGate runs the config's own strategy and, when it is the
// momentum strategy (the only example whose direction is a single toggle),
// a second pass with Strategy.Momentum.Invert flipped. Other example
// strategies have no single sign to flip, so the gate records a pass with
// an explanatory detail rather than fabricating an inversion that would not
// mean anything for them.
func runSignalInversionGate(cfg *config.Config, logger *slog.Logger) trustgate.GateResult {
	original, err := launch.Run(cfg, launch.Overlay{}, logger)
	if err != nil {
		return trustgate.GateResult{Name: "signal_inversion", Passed: false, Detail: fmt.Sprintf("original run: %s", err)}
	}

	if !strings.EqualFold(cfg.Strategy.Name, "momentum") && !strings.EqualFold(cfg.Strategy.Name, "momo") {
		return trustgate.GateResult{
			Name:   "signal_inversion",
			Passed: true,
			Detail: fmt.Sprintf("strategy %q has no defined signal inversion, skipped", cfg.Strategy.Name),
		}
	}

	inverted := *cfg
	inverted.Strategy.Momentum.Invert = !inverted.Strategy.Momentum.Invert
	invertedOutcome, err := launch.Run(&inverted, launch.Overlay{}, logger)
	if err != nil {
		return trustgate.GateResult{Name: "signal_inversion", Passed: false, Detail: fmt.Sprintf("inverted run: %s", err)}
	}

	return trustgate.CheckSignalInversion(original.PnL(), invertedOutcome.PnL())
}
