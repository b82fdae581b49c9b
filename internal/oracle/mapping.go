// Package oracle implements the settlement-reference mapping — the single
// source of truth for how raw venue price events become the reference
// ticks internal/settlement consumes — plus the pre-run backfill client
// that fetches historical reference data before a run starts. The mapping
// itself is pure and hermetic; only backfill touches the network, and it
// runs strictly before a backtest's core loop begins.
package oracle

import "fmt"

// MappingVersion is the current settlement-reference mapping version.
// Increment when the mapping's semantics change in a way that could alter
// a dataset's reference series; it is recorded in the dataset metadata and
// the run fingerprint, and a backtest must either match the dataset's
// recorded version or explicitly opt in to a mismatch.
const MappingVersion uint32 = 1

// PriceScale is the fixed-point scale for reference prices (1e8, matching
// venue quote precision).
const PriceScale int64 = 100_000_000

// PriceSource identifies which venue price field a reference tick was
// derived from.
type PriceSource int8

const (
	SourceMidpoint PriceSource = iota
	SourceLastTrade
	SourceBestBid
	SourceBestAsk
)

func (s PriceSource) String() string {
	switch s {
	case SourceMidpoint:
		return "MIDPOINT"
	case SourceLastTrade:
		return "LAST_TRADE"
	case SourceBestBid:
		return "BEST_BID"
	case SourceBestAsk:
		return "BEST_ASK"
	default:
		return "UNKNOWN"
	}
}

// Mapping fully specifies how raw venue prices become a settlement
// reference value, stored alongside every dataset and checked against the
// run fingerprint.
type Mapping struct {
	Version uint32
	Venue   string
	Source  PriceSource
}

// DefaultMapping is the mapping used unless a dataset specifies otherwise.
func DefaultMapping() Mapping {
	return Mapping{Version: MappingVersion, Venue: "binance", Source: SourceMidpoint}
}

// Validate checks a dataset-recorded mapping against what this build
// supports, failing fast rather than silently drifting.
func (m Mapping) Validate() error {
	if m.Version != MappingVersion {
		return fmt.Errorf("oracle: dataset mapping version %d does not match supported version %d", m.Version, MappingVersion)
	}
	if m.Venue == "" {
		return fmt.Errorf("oracle: mapping has no venue")
	}
	return nil
}

// Midpoint computes the midpoint of bid and ask in PriceScale fixed-point
// units: (bid + ask + 1) / 2, which rounds .5 up —
// matching the exact rounding rule the recorded datasets were produced
// with, so replayed mappings bit-for-bit match recorded ones.
func Midpoint(bid, ask int64) int64 {
	return (bid + ask + 1) / 2
}
