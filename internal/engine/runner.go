// Package engine implements the deterministic backtest core: a
// single-threaded run loop that pulls events off internal/merge's queue in
// total order and drives the matching engine, ledger, settlement, risk
// gate, and strategy harness from them. Unlike the teacher's live engine —
// goroutines dispatching WebSocket frames as they arrive — a Runner
// advances strictly one event at a time with no concurrency anywhere in
// its own state, so two runs over the same dataset and config always
// produce byte-identical behavior.
package engine

import (
	"fmt"
	"io"
	"log/slog"

	segjson "github.com/segmentio/encoding/json"

	"github.com/0xtitan6/backtest-v2/internal/accounting"
	"github.com/0xtitan6/backtest-v2/internal/clock"
	"github.com/0xtitan6/backtest-v2/internal/dataset"
	"github.com/0xtitan6/backtest-v2/internal/eventtime"
	"github.com/0xtitan6/backtest-v2/internal/fingerprint"
	"github.com/0xtitan6/backtest-v2/internal/invariants"
	"github.com/0xtitan6/backtest-v2/internal/ledger"
	"github.com/0xtitan6/backtest-v2/internal/makerfill"
	"github.com/0xtitan6/backtest-v2/internal/matching"
	"github.com/0xtitan6/backtest-v2/internal/merge"
	"github.com/0xtitan6/backtest-v2/internal/oms"
	"github.com/0xtitan6/backtest-v2/internal/queuepos"
	"github.com/0xtitan6/backtest-v2/internal/risk"
	"github.com/0xtitan6/backtest-v2/internal/settlement"
	"github.com/0xtitan6/backtest-v2/internal/strategy"
	"github.com/0xtitan6/backtest-v2/pkg/types"
)

// restingOrderMeta is what the Runner remembers about one of the
// strategy's own resting orders, beyond what internal/oms and
// internal/matching already track, purely for maker-fill attribution.
type restingOrderMeta struct {
	side       types.Side
	priceTicks int64
	seq        uint64
}

// Runner wires every core package into one hermetic run: the strategy
// harness's Context is implemented directly by Runner, so every order a
// strategy places flows through exactly one code path regardless of which
// callback it was placed from.
type Runner struct {
	logger *slog.Logger
	market types.MarketID
	tick   types.TickSize
	grid   int64

	queue    *merge.Queue
	book     *matching.Engine
	nextSeq  uint64
	nextOrd  uint64

	omsOrders   map[types.OrderID]*oms.Order
	restingMeta map[types.OrderID]restingOrderMeta
	cancelTS    map[types.OrderID]clock.Nanos

	// pubDepth is the only model of public liquidity this Runner has: the
	// resting size last reported at a given (side, priceTicks) tick. It is
	// only ever as deep as the dataset's own L2Snapshot/L2Delta records —
	// a bundle recorded top-of-book-only yields a Runner that only ever
	// knows the touch, exactly mirroring the feed it was materialized from.
	pubDepth map[types.Side]map[int64]int64
	pubBid   int64
	pubAsk   int64
	haveBid  bool
	haveAsk  bool

	queueTracker    *queuepos.Tracker
	makerGate       *makerfill.Gate
	selfTradePolicy types.SelfTradePolicy

	// shadowQueueTracker/shadowGate run the same maker-fill admission logic
	// as queueTracker/makerGate, but seeded under makerfill.Counterpart's
	// opposite queue-model assumption, purely to report how sensitive this
	// run's maker fills are to that assumption. Neither is ever consulted by
	// PostFill or any other path that can move the ledger.
	shadowQueueTracker *queuepos.Tracker
	shadowGate         *makerfill.ShadowGate

	// applier, queueModel, and samplingNs are the sensitivity sweep's three
	// axes, made properties of a single Runner (rather than requiring
	// separate recorded datasets) so a sweep varies only these knobs across
	// otherwise-identical runs.
	applier            *eventtime.Applier
	queueModel         makerfill.Profile
	samplingNs         clock.Nanos
	lastDelivered      clock.Nanos
	haveLastDelivered  bool

	settlementEngine *settlement.Engine
	accEnforcer      *accounting.Enforcer
	invEnforcer      *invariants.Enforcer
	riskGate         *risk.Gate
	recorder         *fingerprint.BehaviorRecorder

	strat strategy.Strategy
	now   clock.Nanos

	// simClock is the authoritative time source behind Now(): every advance
	// goes through it first, so a non-monotonic delivery is caught at the
	// strategy-visible clock boundary even if it somehow slipped past the
	// merge queue's own ordering guarantee.
	simClock *clock.SimClock

	settled       bool
	indeterminate bool

	equity []equitySample
}

type equitySample struct {
	ts     clock.Nanos
	equity ledger.Amount
}

// Config bundles everything a Runner needs to execute one hermetic pass.
// Latency, QueueModel, and SamplingNs are the sensitivity sweep's three
// assumption axes (see internal/trustgate.SensitivityPoint); a default
// zero-value Config reproduces the plain, no-assumption-overlay run.
type Config struct {
	Market    types.MarketID
	Tick      types.TickSize
	Window    settlement.Window
	Strategy  strategy.Strategy
	Accounting accounting.Config
	Invariant  invariants.Mode
	Risk       risk.Config
	Logger     *slog.Logger

	Latency    eventtime.Config
	QueueModel makerfill.Profile
	SamplingNs clock.Nanos

	// SelfTrade governs how the strategy's own resting orders behave when a
	// later order from the same strategy would otherwise match against
	// them. Defaults to types.SelfTradeReject, the zero value.
	SelfTrade types.SelfTradePolicy
}

// New creates a Runner ready to load records and run.
func New(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "engine", "market", cfg.Market)

	se := settlement.New()
	se.OpenWindow(cfg.Window)

	r := &Runner{
		logger:           logger,
		market:           cfg.Market,
		tick:             cfg.Tick,
		grid:             cfg.Tick.Grid(),
		queue:            merge.New(),
		book:             matching.NewEngine(cfg.Tick),
		omsOrders:        make(map[types.OrderID]*oms.Order),
		restingMeta:      make(map[types.OrderID]restingOrderMeta),
		cancelTS:         make(map[types.OrderID]clock.Nanos),
		pubDepth:         map[types.Side]map[int64]int64{types.Buy: {}, types.Sell: {}},
		queueTracker:       queuepos.New(),
		makerGate:          makerfill.New(),
		selfTradePolicy:    cfg.SelfTrade,
		shadowQueueTracker: queuepos.New(),
		shadowGate:         makerfill.NewShadow(),
		settlementEngine: se,
		accEnforcer:      accounting.New(cfg.Accounting),
		invEnforcer:      invariants.New(cfg.Invariant),
		riskGate:         risk.New(cfg.Risk),
		recorder:         fingerprint.NewBehaviorRecorder(),
		strat:            cfg.Strategy,
		simClock:         &clock.SimClock{},
		applier:          eventtime.NewApplier(cfg.Latency),
		queueModel:       cfg.QueueModel,
		samplingNs:       cfg.SamplingNs,
	}
	return r
}

// LoadDataset drains r (an already-opened dataset.Reader) into the merge
// queue. It must be called before Run, and only once — the Runner has no
// way to distinguish a second load from a legitimate re-delivery.
func (r *Runner) LoadDataset(reader recordSource) error {
	for {
		rec, err := reader.Next()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("engine: load dataset: %w", err)
		}
		fp := recordFingerprint(rec)
		visible, err := r.applier.Apply(eventtime.Record{
			IngestTS:     rec.IngestTS,
			StreamSource: rec.SourceOrd,
			PerSourceSeq: rec.PerSourceSeq,
			Fingerprint:  fp,
		}, feedClassFor(rec.Kind))
		if err != nil {
			return fmt.Errorf("engine: load dataset: %w", err)
		}
		r.queue.Push(merge.Item{
			Key: merge.Key{
				VisibleTS:    visible,
				Priority:     priorityFor(rec.Kind),
				SourceOrd:    rec.SourceOrd,
				PerSourceSeq: rec.PerSourceSeq,
				Fingerprint:  fp,
			},
			Payload: rec,
		})
	}
}

// feedClassFor selects the eventtime latency-table row a record's kind
// should be charged against; a zero-value Config (no FeedDelay entries, no
// jitter) makes this a no-op, so a plain run with no Latency override
// behaves exactly as if visible_ts were read straight off the record.
func feedClassFor(kind dataset.RecordKind) eventtime.FeedClass {
	switch kind {
	case dataset.RecordL2Snapshot:
		return eventtime.ClassSnapshot
	case dataset.RecordL2Delta:
		return eventtime.ClassDelta
	case dataset.RecordTradePrint:
		return eventtime.ClassTradePrint
	case dataset.RecordOracleRound:
		return eventtime.ClassOracle
	default:
		return eventtime.ClassDefault
	}
}

// recordSource is the minimal surface LoadDataset needs from
// internal/dataset.Reader, declared locally so this package does not
// impose an import-cycle constraint on dataset and so tests can feed a
// Runner from an in-memory slice without a real bundle on disk.
type recordSource interface {
	Next() (dataset.Record, error)
}

func priorityFor(kind dataset.RecordKind) types.PriorityClass {
	switch kind {
	case dataset.RecordL2Snapshot, dataset.RecordL2Delta:
		return types.PriorityMarketData
	case dataset.RecordTradePrint:
		return types.PriorityTradePrint
	case dataset.RecordOracleRound:
		return types.PrioritySettlement
	default:
		return types.PriorityMarketData
	}
}

// recordFingerprint derives the merge key's tie-breaking fingerprint from
// a record's canonical content, the same rolling multiply
// internal/liveingest uses to stamp live events, so a record's position in
// the total order is a pure function of what it says, never of load order.
func recordFingerprint(rec dataset.Record) types.FingerprintU64 {
	b, err := segjson.Marshal(rec)
	if err != nil {
		return 0
	}
	var fp types.FingerprintU64
	for _, c := range b {
		fp = fp*31 + types.FingerprintU64(c)
	}
	return fp
}

// Now implements strategy.Context.
func (r *Runner) Now() clock.Nanos {
	n, _ := r.simClock.Now()
	return n
}

// setNow advances the Runner's notion of the current instant, through
// simClock first so its monotonicity check runs on every delivery.
func (r *Runner) setNow(t clock.Nanos) {
	r.simClock.Advance(t)
	r.now = t
}

func (r *Runner) newOrderID() types.OrderID {
	r.nextOrd++
	return types.OrderID(fmt.Sprintf("ord-%d", r.nextOrd))
}

func (r *Runner) pushLifecycle(ev lifecycleEvent) {
	r.nextSeq++
	r.queue.Push(merge.Item{
		Key: merge.Key{
			VisibleTS:    r.now,
			Priority:     types.PriorityOrderLifecycle,
			SourceOrd:    types.StreamOrderLifecycle,
			PerSourceSeq: r.nextSeq,
		},
		Payload: ev,
	})
}

// midTicks returns a best-effort current mid price in ticks from the
// latest known public touch, 0 if neither side has ever been observed.
func (r *Runner) midTicks() int64 {
	switch {
	case r.haveBid && r.haveAsk:
		return (r.pubBid + r.pubAsk) / 2
	case r.haveBid:
		return r.pubBid
	case r.haveAsk:
		return r.pubAsk
	default:
		return r.grid / 2
	}
}
