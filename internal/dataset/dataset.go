// Package dataset defines the versioned, compressed bundle format a backtest
// run reads its market events from, and the Metadata that records what a
// bundle is actually fit to validate. A dataset is materialized once, ahead
// of any run, by the oracle backfill and live-ingest collaborators — nothing
// in this package reaches the network, mirroring the teacher's
// internal/store package's pure file-persistence boundary.
package dataset

import (
	"github.com/0xtitan6/backtest-v2/internal/clock"
	"github.com/0xtitan6/backtest-v2/pkg/types"
)

// FormatVersion is recorded in every bundle's Metadata and checked on open;
// a version bump is required whenever the record schema changes, so a stale
// reader fails loudly instead of silently misinterpreting bytes.
const FormatVersion = "DATASET_V1"

// Readiness classifies what a dataset's recorded fields actually support
// validating. A bundle recorded without queue-position telemetry cannot
// support a Maker claim no matter how well a strategy performs against it —
// trustgate.DatasetReadiness is derived directly from this classification.
type Readiness uint8

const (
	Unready Readiness = iota
	Taker
	Maker
	Both
)

func (r Readiness) String() string {
	switch r {
	case Taker:
		return "TAKER"
	case Maker:
		return "MAKER"
	case Both:
		return "BOTH"
	default:
		return "UNREADY"
	}
}

// AllowsTaker reports whether this readiness permits a Taker-claimed run.
func (r Readiness) AllowsTaker() bool { return r == Taker || r == Both }

// AllowsMaker reports whether this readiness permits a Maker-claimed run.
func (r Readiness) AllowsMaker() bool { return r == Maker || r == Both }

// Metadata describes a bundle without requiring the caller to read its
// records.
type Metadata struct {
	FormatVersion     string
	DatasetID         string
	Market            types.MarketID
	MappingVersion    uint32
	StartTS           clock.Nanos
	EndTS             clock.Nanos
	RecordCount       int
	Readiness         Readiness
	DatasetFingerprint [32]byte
}

// RecordKind tags which of the four record shapes a Record carries, so a
// reader can dispatch on it without relying on which optional fields are
// non-nil.
type RecordKind uint8

const (
	RecordL2Snapshot RecordKind = iota
	RecordL2Delta
	RecordTradePrint
	RecordOracleRound
)

// Record is one line of a materialized bundle: a merge-queue-ready event
// plus the stream metadata the merge queue's Key needs to order it. Exactly
// one of the payload fields is populated, selected by Kind — this is a flat
// tagged union rather than an interface so the record survives a
// canonical-JSON round trip byte-for-byte.
type Record struct {
	Kind         RecordKind
	IngestTS     clock.Nanos
	SourceOrd    types.StreamSource
	PerSourceSeq uint64

	Snapshot *L2SnapshotRecord `json:",omitempty"`
	Delta    *L2DeltaRecord    `json:",omitempty"`
	Trade    *TradePrintRecord `json:",omitempty"`
	Oracle   *OracleRoundRecord `json:",omitempty"`
}

// L2SnapshotRecord is a full order-book snapshot as of its Record's IngestTS.
type L2SnapshotRecord struct {
	Market  types.MarketID
	BidTick int64
	AskTick int64
	BidSize int64
	AskSize int64
}

// L2DeltaRecord is an incremental book update.
type L2DeltaRecord struct {
	Market    types.MarketID
	PriceTick int64
	Side      types.Side
	NewSize   int64
}

// TradePrintRecord is a public trade print.
type TradePrintRecord struct {
	Market    types.MarketID
	PriceTick int64
	Quantity  int64
	Side      types.Side
}

// OracleRoundRecord is one reference-price tick from the oracle backfill,
// the event that eventually resolves a settlement window.
type OracleRoundRecord struct {
	MappingVersion uint32
	PriceTick      int64
}
