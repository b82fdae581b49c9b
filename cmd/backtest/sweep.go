package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/0xtitan6/backtest-v2/internal/clock"
	"github.com/0xtitan6/backtest-v2/internal/config"
	"github.com/0xtitan6/backtest-v2/internal/eventtime"
	"github.com/0xtitan6/backtest-v2/internal/launch"
	"github.com/0xtitan6/backtest-v2/internal/makerfill"
	"github.com/0xtitan6/backtest-v2/internal/trustgate"
	"github.com/0xtitan6/backtest-v2/pkg/types"
)

// sweepLatenciesMs and sweepSamplingMs are the sensitivity sweep's default
// grid of latency and sampling assumptions, in milliseconds; --latency-ms
// and --sampling-ms override them.
var (
	sweepLatenciesMs []int
	sweepSamplingMs  []int
	sweepMinPnLUSD   float64
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the latency/sampling/queue-model sensitivity sweep and the maker validation ladder",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		logger := newLogger(cfg)
		minPnL := int64(sweepMinPnLUSD * float64(types.AmountScale))

		points, err := runSensitivityGrid(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: sensitivity grid: %s\n", err)
			os.Exit(exitRuntimeError)
		}
		sensitivity := trustgate.EvaluateSensitivity(points)

		ladderResults, err := runMakerLadder(cfg, logger, minPnL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: maker ladder: %s\n", err)
			os.Exit(exitRuntimeError)
		}
		ladder := makerfill.EvaluateLadder(ladderResults, minPnL)

		printSweepReport(points, sensitivity, ladder)

		if sensitivity.Recommendation == trustgate.RecommendTrust && ladder.Survived {
			os.Exit(exitTrusted)
		}
		os.Exit(exitUntrusted)
	},
}

func init() {
	sweepCmd.Flags().IntSliceVar(&sweepLatenciesMs, "latency-ms", []int{0, 50, 250}, "order-compute latency (eventtime L_compute) values to sweep, in milliseconds; the engine does not apply L_compute, so this axis leaves run results unchanged")
	sweepCmd.Flags().IntSliceVar(&sweepSamplingMs, "sampling-ms", []int{0, 100, 500}, "strategy book-update sampling intervals to sweep, in milliseconds")
	sweepCmd.Flags().Float64Var(&sweepMinPnLUSD, "maker-min-pnl-usd", 0, "minimum PnL, in dollars, the Conservative maker profile must clear to survive the ladder")
}

// runSensitivityGrid runs the engine once per (latency, sampling,
// queue-model) combination, varying only launch.Overlay so every point in
// the grid shares the identical dataset, strategy, and config otherwise.
func runSensitivityGrid(cfg *config.Config, logger *slog.Logger) ([]trustgate.SensitivityPoint, error) {
	queueModels := []makerfill.Profile{makerfill.Conservative, makerfill.Neutral, makerfill.MeasuredLive}

	var points []trustgate.SensitivityPoint
	for _, latencyMs := range sweepLatenciesMs {
		for _, samplingMs := range sweepSamplingMs {
			for _, qm := range queueModels {
				overlay := launch.Overlay{
					Latency:    eventtime.Config{LCompute: clock.Nanos(latencyMs) * clock.Nanos(1_000_000)},
					SamplingNs: clock.Nanos(samplingMs) * clock.Nanos(1_000_000),
					QueueModel: qm,
				}
				outcome, err := launch.Run(cfg, overlay, logger)
				if err != nil {
					return nil, fmt.Errorf("latency=%dms sampling=%dms queue=%s: %w", latencyMs, samplingMs, qm, err)
				}
				points = append(points, trustgate.SensitivityPoint{
					LatencyNs:  overlay.Latency.LCompute,
					SamplingNs: overlay.SamplingNs,
					QueueModel: qm,
					PnL:        outcome.PnL(),
				})
			}
		}
	}
	return points, nil
}

// runMakerLadder runs one pass per maker-validation rung, strictest first,
// at the config's own latency/sampling assumptions (the ladder varies only
// QueueModel, unlike the sensitivity grid which varies all three axes).
func runMakerLadder(cfg *config.Config, logger *slog.Logger, minPnL int64) ([]makerfill.ProfileResult, error) {
	profiles := []makerfill.Profile{makerfill.Conservative, makerfill.Neutral, makerfill.MeasuredLive}
	var results []makerfill.ProfileResult
	for _, p := range profiles {
		outcome, err := launch.Run(cfg, launch.Overlay{QueueModel: p}, logger)
		if err != nil {
			return nil, fmt.Errorf("queue model %s: %w", p, err)
		}
		pnl := outcome.PnL()
		results = append(results, makerfill.ProfileResult{Profile: p, PnL: pnl, Passed: p != makerfill.Conservative || pnl >= minPnL})
	}
	return results, nil
}

func printSweepReport(points []trustgate.SensitivityPoint, sensitivity trustgate.SensitivityReport, ladder makerfill.LadderReport) {
	fmt.Println("sensitivity grid:")
	for _, p := range points {
		fmt.Printf("  latency=%-8s sampling=%-8s queue=%-14s pnl=%d\n", p.LatencyNs, p.SamplingNs, p.QueueModel, p.PnL)
	}
	fmt.Printf("fragility: sign_flip=%v latency=%v sampling=%v queue_model=%v\n",
		sensitivity.Flags.SignFlip, sensitivity.Flags.LatencySensitive, sensitivity.Flags.SamplingSensitive, sensitivity.Flags.QueueModelSensitive)
	fmt.Printf("sensitivity recommendation: %s\n", sensitivity.Recommendation)

	fmt.Println("maker validation ladder:")
	for _, r := range ladder.Results {
		status := "pass"
		if !r.Passed {
			status = "fail"
		}
		fmt.Printf("  %-14s pnl=%-10d %s\n", r.Profile, r.PnL, status)
	}
	for _, flag := range ladder.FragileFlags {
		fmt.Printf("  fragile: %s\n", flag)
	}
	fmt.Printf("ladder survived: %v\n", ladder.Survived)
}
