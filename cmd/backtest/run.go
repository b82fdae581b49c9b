package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/0xtitan6/backtest-v2/internal/config"
	"github.com/0xtitan6/backtest-v2/internal/engine"
	"github.com/0xtitan6/backtest-v2/internal/launch"
	"github.com/0xtitan6/backtest-v2/internal/ledger"
	"github.com/0xtitan6/backtest-v2/internal/runartifact"
	"github.com/0xtitan6/backtest-v2/internal/trustgate"
	"github.com/0xtitan6/backtest-v2/pkg/types"
)

var (
	runOutputDir       string
	runDatasetID       string
	runMarketID        string
	runStartTS         int64
	runEndTS           int64
	runStrategyName    string
	runSeed            int64
	runProductionGrade bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one hermetic backtest pass and write its run artifact",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		applyRunOverrides(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "error: invalid config: %s\n", err)
			os.Exit(exitConfigError)
		}
		logger := newLogger(cfg)

		if runOutputDir != "" {
			cfg.OutputDir = runOutputDir
		}
		if cfg.OutputDir == "" {
			cfg.OutputDir = "out"
		}

		outcome, err := launch.Run(cfg, launch.Overlay{}, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %s\n", err)
			os.Exit(exitRuntimeError)
		}
		if outcome.RunErr != nil {
			logger.Error("run halted", "err", outcome.RunErr)
		}

		decision := trustgate.Evaluate(trustgate.EvaluateInput{
			Fingerprint:     &outcome.Fingerprint.Final,
			ProductionGrade: cfg.ProductionGrade,
			Readiness:       trustgate.DatasetReadiness{AllowsTaker: outcome.Meta.Readiness.AllowsTaker(), AllowsMaker: outcome.Meta.Readiness.AllowsMaker()},
			Claimed:         trustgate.Taker,
		})

		disclaimers, err := writeArtifact(cfg, outcome, decision)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: write artifact: %s\n", err)
			os.Exit(exitRuntimeError)
		}

		printSummary(cfg, outcome, decision, disclaimers)

		if outcome.RunErr != nil {
			os.Exit(exitRuntimeError)
		}
		if decision.Trusted {
			os.Exit(exitTrusted)
		}
		os.Exit(exitUntrusted)
	},
}

func init() {
	runCmd.Flags().StringVar(&runOutputDir, "output", "", "directory to write the run artifact store into (default: config output_dir or ./out)")
	runCmd.Flags().StringVar(&runDatasetID, "dataset", "", "override dataset.id from the config file")
	runCmd.Flags().StringVar(&runMarketID, "market", "", "override market.id from the config file")
	runCmd.Flags().Int64Var(&runStartTS, "start", 0, "override market.start_ts, in nanoseconds since the dataset epoch")
	runCmd.Flags().Int64Var(&runEndTS, "end", 0, "override market.end_ts, in nanoseconds since the dataset epoch")
	runCmd.Flags().StringVar(&runStrategyName, "strategy", "", "override strategy.name from the config file")
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "override the top-level deterministic seed")
	runCmd.Flags().BoolVar(&runProductionGrade, "production-grade", false, "override production_grade to true for this run")
}

// applyRunOverrides layers the run subcommand's literal flags onto a loaded
// config, so a config file supplies every field a run needs while the CLI
// surface documented for operators (--dataset/--market/--start/--end/
// --strategy/--seed/--production-grade) can still override it per invocation.
func applyRunOverrides(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("dataset") {
		cfg.Dataset.ID = runDatasetID
	}
	if cmd.Flags().Changed("market") {
		cfg.Market.ID = runMarketID
	}
	if cmd.Flags().Changed("start") {
		cfg.Market.StartTS = runStartTS
	}
	if cmd.Flags().Changed("end") {
		cfg.Market.EndTS = runEndTS
	}
	if cmd.Flags().Changed("strategy") {
		cfg.Strategy.Name = runStrategyName
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed = runSeed
	}
	if cmd.Flags().Changed("production-grade") {
		cfg.ProductionGrade = runProductionGrade
	}
}

func writeArtifact(cfg *config.Config, outcome *launch.Outcome, decision trustgate.TrustDecision) ([]runartifact.DisclaimerCode, error) {
	store, err := runartifact.Open(cfg.OutputDir)
	if err != nil {
		return nil, err
	}

	halted, _ := outcome.Runner.Halted()
	disclaimers := runartifact.ComputeDisclaimers(runartifact.DisclaimerInput{
		Indeterminate:   outcome.Runner.Indeterminate(),
		ProductionGrade: cfg.ProductionGrade,
		InvariantHard:   strings.EqualFold(cfg.Invariant.Mode, "hard"),
		Halted:          halted,
	})

	manifest := runartifact.BuildManifest(
		outcome.Runner.MarketID(),
		cfg.Strategy.Name,
		cfg.Market.Window().StartTS,
		cfg.Market.Window().EndTS,
		outcome.Fingerprint,
		decision,
		disclaimers,
		outcome.Runner.ShadowMakerCounters(),
	)

	equity := outcome.Runner.EquityCurve()
	equityPoints := make([]runartifact.EquityPoint, len(equity))
	for i, s := range equity {
		equityPoints[i] = runartifact.EquityPoint{TS: s.TS, Equity: s.Equity}
	}

	// A window that settled Indeterminate is reported (its oracle-indeterminate-
	// window disclaimer above is how a consumer is told), but carries no PnL
	// figure of its own — the run's position in it was never redeemed at any
	// price, so crediting FinalCash to it would misattribute ordinary running
	// cash as a settlement result.
	var windows []runartifact.WindowPnL
	if windowOutcome, settled := outcome.Runner.Settled(); settled {
		w := cfg.Market.Window()
		wp := runartifact.WindowPnL{WindowStart: w.StartTS, WindowEnd: w.EndTS, Outcome: windowOutcome}
		if windowOutcome != types.Indeterminate {
			wp.PnL = outcome.Runner.FinalCash()
		}
		windows = append(windows, wp)
	}

	drawdown := computeDrawdown(equity)
	lines := runartifact.LedgerLines(outcome.Runner.Ledger().Entries())

	if err := store.Write(manifest, equityPoints, windows, drawdown, lines); err != nil {
		return nil, err
	}
	return disclaimers, nil
}

// computeDrawdown derives a peak-to-trough drawdown series from the
// equity curve: each point's drawdown is the running peak so far minus
// the current equity, never negative.
func computeDrawdown(equity []engine.EquitySample) []runartifact.DrawdownPoint {
	out := make([]runartifact.DrawdownPoint, len(equity))
	var peak ledger.Amount
	haveSample := false
	for i, s := range equity {
		if !haveSample || s.Equity > peak {
			peak = s.Equity
			haveSample = true
		}
		out[i] = runartifact.DrawdownPoint{TS: s.TS, Drawdown: peak - s.Equity, PeakToDate: peak}
	}
	return out
}

func printSummary(cfg *config.Config, outcome *launch.Outcome, decision trustgate.TrustDecision, disclaimers []runartifact.DisclaimerCode) {
	cash := outcome.Runner.FinalCash()
	fmt.Printf("market:      %s\n", cfg.Market.ID)
	fmt.Printf("strategy:    %s\n", cfg.Strategy.Name)
	fmt.Printf("fingerprint: %s\n", outcome.Fingerprint.Final)
	fmt.Printf("closing pnl: $%s\n", formatUSD(cash))
	fmt.Printf("decision:    %s\n", decision)
	if len(disclaimers) > 0 {
		tags := make([]string, len(disclaimers))
		for i, d := range disclaimers {
			tags[i] = string(d)
		}
		fmt.Printf("disclaimers: %s\n", strings.Join(tags, ", "))
	}
}

// formatUSD renders a fixed-point ledger.Amount as a grouped dollar string
// without ever routing it through float64: shopspring/decimal does the
// exact AmountScale conversion, go-humanize only groups the whole-dollar
// part with thousand separators.
func formatUSD(amount ledger.Amount) string {
	exact := decimal.New(int64(amount), -int32(decimalExponent(types.AmountScale)))
	sign := ""
	if exact.IsNegative() {
		sign = "-"
		exact = exact.Abs()
	}
	whole := exact.IntPart()
	cents := exact.Sub(decimal.NewFromInt(whole)).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	return fmt.Sprintf("%s%s.%02d", sign, humanize.Comma(whole), cents)
}

// decimalExponent returns the power of ten a scale constant represents,
// e.g. 1e8 -> 8, so formatUSD never hardcodes AmountScale's magnitude.
func decimalExponent(scale int64) int {
	n := 0
	for scale > 1 {
		scale /= 10
		n++
	}
	return n
}
