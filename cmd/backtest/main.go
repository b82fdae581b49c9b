// Command backtest is the CLI surface for the deterministic prediction
// market backtester: run executes one hermetic pass and writes its run
// artifact, verify replays a config twice and checks the results are
// bit-for-bit identical, gate runs the adversarial trust gates, and sweep
// runs the latency/sampling/queue-model sensitivity sweep plus the maker
// validation ladder.
//
//	backtest run    --config <path> [--dataset <id> --market <id> ...] --output <dir>
//	backtest verify --config <path> [--artifact <dir>]
//	backtest gate   --config <path> [--zero-edge-config <path>] [--martingale-config <path>]...
//	backtest sweep  --config <path> [--latency-ms <list>] [--sampling-ms <list>] [--maker-min-pnl-usd <n>]
//
// Exit codes: 0 trusted/verified, 1 untrusted/mismatched, 2 config or
// validation error, 3 runtime error.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/0xtitan6/backtest-v2/internal/config"
)

const (
	exitTrusted      = 0
	exitUntrusted    = 1
	exitConfigError  = 2
	exitRuntimeError = 3
)

var configPath string

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the run config YAML (default: $BACKTEST_CONFIG or configs/backtest.yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(gateCmd)
	rootCmd.AddCommand(sweepCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitRuntimeError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Deterministic backtester for 15-minute up/down prediction markets",
	Long:  "backtest replays recorded order-book and oracle data through a hermetic matching/accounting/settlement core and decides whether a strategy's results can be trusted.",
}

// resolveConfigPath applies the --config flag, then BACKTEST_CONFIG, then
// the repo-relative default, in that order.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	if p := os.Getenv("BACKTEST_CONFIG"); p != "" {
		return p
	}
	return "configs/backtest.yaml"
}

// loadConfig reads and validates the run config, exiting with
// exitConfigError on any failure — every subcommand shares this single
// config-loading path so a bad YAML file or an invalid field fails the
// same way regardless of which subcommand was invoked.
func loadConfig() *config.Config {
	path := resolveConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: load config %s: %s\n", path, err)
		os.Exit(exitConfigError)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid config: %s\n", err)
		os.Exit(exitConfigError)
	}
	return cfg
}

// newLogger builds a log/slog logger from LoggingConfig, the same
// handler-selection idiom the original live bot used.
func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
