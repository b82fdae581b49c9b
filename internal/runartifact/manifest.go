// Package runartifact implements the content-addressed run artifact store:
// every completed run is written once, keyed by its RunFingerprint, to a
// directory of pre-computed JSON files. Nothing under this package performs
// computation on read — the no-UI-computation design principle is that a
// dashboard or CLI consuming these artifacts only ever serves bytes already
// on disk, never recomputes equity curves or PnL from raw ledger entries at
// request time.
package runartifact

import (
	"github.com/0xtitan6/backtest-v2/internal/clock"
	"github.com/0xtitan6/backtest-v2/internal/fingerprint"
	"github.com/0xtitan6/backtest-v2/internal/ledger"
	"github.com/0xtitan6/backtest-v2/internal/makerfill"
	"github.com/0xtitan6/backtest-v2/internal/trustgate"
	"github.com/0xtitan6/backtest-v2/pkg/types"
)

// Manifest is the top-level summary of a run, the first file a consumer
// reads to decide whether to fetch anything else.
type Manifest struct {
	RunFingerprint string
	CodeFingerprint string
	ConfigFingerprint string
	DatasetFingerprint string
	SeedFingerprint string
	Market          types.MarketID
	StrategyName    string
	StartTS         clock.Nanos
	EndTS           clock.Nanos
	Trusted         bool
	TrustReasons    []string
	Disclaimers     []DisclaimerCode
	ShadowMaker     makerfill.ShadowCounters
}

// EquityPoint is one sample of the running equity curve.
type EquityPoint struct {
	TS     clock.Nanos
	Equity ledger.Amount
}

// WindowPnL is the realized PnL attributed to one settlement window.
type WindowPnL struct {
	WindowStart clock.Nanos
	WindowEnd   clock.Nanos
	Outcome     types.Outcome
	PnL         ledger.Amount
}

// DrawdownPoint is one sample of the running peak-to-trough drawdown.
type DrawdownPoint struct {
	TS       clock.Nanos
	Drawdown ledger.Amount
	PeakToDate ledger.Amount
}

// LedgerLine is one line of the ledger.ndjson export: a flattened
// LedgerEntry suitable for newline-delimited serialization.
type LedgerLine struct {
	Seq      uint64
	TS       clock.Nanos
	EventRef string
	Postings []ledger.Posting
}

// BuildManifest assembles a Manifest from a finished run's inputs. It
// performs no validation beyond what trustgate.Evaluate already did —
// Manifest is a restatement of facts already established elsewhere, not a
// new source of truth.
func BuildManifest(
	market types.MarketID,
	strategyName string,
	startTS, endTS clock.Nanos,
	run fingerprint.RunResult,
	decision trustgate.TrustDecision,
	disclaimers []DisclaimerCode,
	shadowMaker makerfill.ShadowCounters,
) Manifest {
	return Manifest{
		RunFingerprint:     run.Final.String(),
		CodeFingerprint:    run.Code.String(),
		ConfigFingerprint:  run.Config.String(),
		DatasetFingerprint: run.Dataset.String(),
		SeedFingerprint:    run.Seed.String(),
		Market:             market,
		StrategyName:       strategyName,
		StartTS:            startTS,
		EndTS:              endTS,
		Trusted:            decision.Trusted,
		TrustReasons:       decision.Reasons,
		Disclaimers:        disclaimers,
		ShadowMaker:        shadowMaker,
	}
}

// LedgerLines flattens a ledger's entries into the export shape.
func LedgerLines(entries []ledger.LedgerEntry) []LedgerLine {
	lines := make([]LedgerLine, len(entries))
	for i, e := range entries {
		lines[i] = LedgerLine{Seq: e.Seq, TS: e.TS, EventRef: e.EventRef, Postings: e.Postings}
	}
	return lines
}
