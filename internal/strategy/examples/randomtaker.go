package examples

import (
	"math/rand"

	"github.com/0xtitan6/backtest-v2/internal/strategy"
	"github.com/0xtitan6/backtest-v2/pkg/types"
)

// RandomTakerParams configures the adversarial random-taker strategy used
// by the gate suite, never by a certified production run.
type RandomTakerParams struct {
	Market   types.MarketID
	Grid     int64
	Qty      int64
	Seed     int64
	TakeOdds float64 // probability of taking on each book snapshot, [0,1]
}

// RandomTaker submits an IOC order of random side and fixed size Qty on a
// random subset of book snapshots. It exists purely as gate-suite input: a
// strategy whose decisions are uncorrelated with any real signal and
// which must therefore fail to show a statistically significant edge
// under the signal-inversion gate. Its randomness is seeded explicitly
// (never from a wall-clock or OS entropy source) so a gate-suite run
// reproduces bit-for-bit given the same seed.
type RandomTaker struct {
	p   RandomTakerParams
	rng *rand.Rand
}

// NewRandomTaker builds a random taker seeded deterministically from
// p.Seed.
func NewRandomTaker(p RandomTakerParams) *RandomTaker {
	return &RandomTaker{p: p, rng: rand.New(rand.NewSource(p.Seed))}
}

func (r *RandomTaker) OnBookSnapshot(ctx strategy.Context, snap strategy.BookSnapshot) {
	if snap.BestBid <= 0 || snap.BestAsk <= 0 {
		return
	}
	if r.rng.Float64() > r.p.TakeOdds {
		return
	}

	side := types.Buy
	priceTicks := snap.BestAsk
	if r.rng.Intn(2) == 1 {
		side = types.Sell
		priceTicks = snap.BestBid
	}
	ctx.PlaceOrder(r.p.Market, side, priceTicks, r.p.Qty, types.IOC, false)
}

func (r *RandomTaker) OnTradePrint(strategy.Context, strategy.TradePrint)    {}
func (r *RandomTaker) OnTimer(strategy.Context, strategy.TimerTick)         {}
func (r *RandomTaker) OnOrderAck(strategy.Context, strategy.OrderAck)       {}
func (r *RandomTaker) OnOrderReject(strategy.Context, strategy.OrderReject) {}
func (r *RandomTaker) OnCancelAck(strategy.Context, strategy.CancelAck)     {}
func (r *RandomTaker) OnFill(strategy.Context, strategy.FillNotification)   {}
func (r *RandomTaker) OnSettlementVisible(strategy.Context, strategy.SettlementVisible) {
}
