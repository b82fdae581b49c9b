// Package eventtime implements the three-timestamp event model and the
// latency-visibility applier — the single place in the core that computes
// visible_ts.
//
// Every input record carries:
//
//   - ExchangeTS (optional): the venue-provided timestamp, may be missing
//     or unreliable.
//   - IngestTS (required): local time when the recorder captured the event.
//   - VisibleTS (required, computed): the only timestamp a strategy may
//     ever observe.
//
// visible_ts = ingest_ts + L_feed(stream_source, feed_class) + jitter(seed, fingerprint)
//
// Jitter is a pure function of (seed, fingerprint); it never consults
// sampled RNG state, so the same event under the same seed always produces
// the same jitter regardless of processing order.
package eventtime

import (
	"fmt"
	"hash/fnv"

	"github.com/0xtitan6/backtest-v2/internal/clock"
	"github.com/0xtitan6/backtest-v2/pkg/types"
)

// Record is the three-timestamp envelope every feed event carries before
// entering the merge queue.
type Record struct {
	ExchangeTS   clock.Nanos // optional; zero value means "not provided"
	HasExchange  bool
	IngestTS     clock.Nanos
	StreamSource types.StreamSource
	Priority     types.PriorityClass
	PerSourceSeq uint64
	Fingerprint  types.FingerprintU64
}

// FeedClass distinguishes latency profiles within a stream source — e.g.
// snapshots vs. deltas on the same feed may have different processing
// delay even though they share a StreamSource.
type FeedClass uint8

const (
	ClassDefault FeedClass = iota
	ClassSnapshot
	ClassDelta
	ClassTradePrint
	ClassOracle
)

// LatencyKey identifies one (stream, class) pair in the latency table.
type LatencyKey struct {
	Source types.StreamSource
	Class  FeedClass
}

// JitterConfig controls the deterministic jitter component.
type JitterConfig struct {
	Enabled   bool
	Seed      uint64
	Amplitude clock.Nanos // bound on the absolute value of the jitter
}

// Config is the latency-visibility model: a per-(source,class) delay table
// plus the jitter configuration. It is part of the config fingerprint.
type Config struct {
	FeedDelay map[LatencyKey]clock.Nanos
	Jitter    JitterConfig

	// Order-lifecycle latencies, added by Applier.DecisionTime,
	// OrderArrivalTime, AckVisibleTime and OracleVisibleTime respectively.
	// engine.Runner calls only Apply: it schedules order-lifecycle events
	// at the delivery instant and does not add these four latencies.
	LCompute clock.Nanos
	LSend    clock.Nanos
	LAck     clock.Nanos
	LOracle  clock.Nanos
}

// DelayFor returns the configured feed delay for (source, class), defaulting
// to zero if unconfigured.
func (c *Config) DelayFor(source types.StreamSource, class FeedClass) clock.Nanos {
	if c.FeedDelay == nil {
		return 0
	}
	return c.FeedDelay[LatencyKey{Source: source, Class: class}]
}

// Jitter computes the deterministic jitter for a fingerprinted event. It is
// a pure function of (seed, fingerprint): no sampled RNG state is ever
// consulted, so replay order cannot change the result.
func (c *Config) Jitter(fp types.FingerprintU64) clock.Nanos {
	if !c.Jitter.Enabled || c.Jitter.Amplitude <= 0 {
		return 0
	}
	h := fnv.New64a()
	fmt.Fprintf(h, "jitter:%d:%d", c.Jitter.Seed, uint64(fp))
	v := h.Sum64()

	// Map the hash into the signed range [-Amplitude, +Amplitude].
	span := uint64(c.Jitter.Amplitude)*2 + 1
	mod := int64(v % span)
	return clock.Nanos(mod) - c.Jitter.Amplitude
}

// Applier is the single place in the core that computes visible_ts for an
// incoming Record. It validates visible_ts >= ingest_ts (no negative
// latency) and that the computed set, once resorted by the merge queue's
// ordering key, is non-decreasing — the latter is the merge queue's job to
// verify across the whole stream, not a single-event property, so Applier
// only enforces the per-event floor.
type Applier struct {
	cfg Config
}

// NewApplier constructs an Applier bound to cfg. cfg is copied by value so
// later mutation of the caller's config cannot change behavior mid-run.
func NewApplier(cfg Config) *Applier {
	return &Applier{cfg: cfg}
}

// Apply computes VisibleTS for rec, given a FeedClass selecting the delay
// row. It returns an error if the computed visible time would precede
// ingest time — which happens whenever a negative jitter draw is larger
// than the row's feed delay — checked explicitly rather than silently
// clamped.
func (a *Applier) Apply(rec Record, class FeedClass) (clock.Nanos, error) {
	delay := a.cfg.DelayFor(rec.StreamSource, class)
	jitter := a.cfg.Jitter(rec.Fingerprint)
	visible := rec.IngestTS.Add(delay).Add(jitter)
	if visible.Before(rec.IngestTS) {
		return 0, fmt.Errorf("eventtime: visible_ts %s precedes ingest_ts %s for stream %s seq %d",
			visible, rec.IngestTS, rec.StreamSource, rec.PerSourceSeq)
	}
	return visible, nil
}

// DecisionTime returns the time at which a strategy's decision (triggered
// by an event visible at `visibleTS`) is considered made, after L_compute
// and its jitter.
func (a *Applier) DecisionTime(visibleTS clock.Nanos, fp types.FingerprintU64) clock.Nanos {
	return visibleTS.Add(a.cfg.LCompute).Add(a.cfg.Jitter(fp))
}

// OrderArrivalTime returns the time at which an order decided at
// decisionTS arrives at the venue, after L_send and its jitter.
func (a *Applier) OrderArrivalTime(decisionTS clock.Nanos, fp types.FingerprintU64) clock.Nanos {
	return decisionTS.Add(a.cfg.LSend).Add(a.cfg.Jitter(fp))
}

// AckVisibleTime returns the time at which a venue event at venueTS (a fill,
// ack, or reject) becomes visible to the strategy, after L_ack and its
// jitter.
func (a *Applier) AckVisibleTime(venueTS clock.Nanos, fp types.FingerprintU64) clock.Nanos {
	return venueTS.Add(a.cfg.LAck).Add(a.cfg.Jitter(fp))
}

// OracleVisibleTime returns the time at which an oracle reference tick
// recorded at ingestTS becomes knowable, after L_oracle.
func (a *Applier) OracleVisibleTime(ingestTS clock.Nanos) clock.Nanos {
	return ingestTS.Add(a.cfg.LOracle)
}
