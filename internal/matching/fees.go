package matching

import (
	"github.com/0xtitan6/backtest-v2/internal/clock"
	"github.com/0xtitan6/backtest-v2/pkg/types"
)

// FeeStartTS is the timestamp (January 6, 2025 00:00:00 UTC) before which
// 15-minute up/down markets charged no trading fee at all. Trades with a
// TS before this are always fee-free, matching the venue's historical
// rollout.
const FeeStartTS clock.Nanos = 1_736_121_600_000_000_000

// feeTableEntry is one (price, fee-per-share) point in the piecewise-linear
// schedule, both expressed in types.AmountScale fixed-point units so the
// whole computation stays integer. A plain int64 is used rather than
// internal/ledger's Amount, so this package does not import ledger;
// internal/engine converts the result when it posts a fill.
type feeTableEntry struct {
	price int64
	fee   int64
}

// feeTable is the exact Polymarket 15-minute up/down fee schedule: fee per
// share as a function of execution price, symmetric around the 0.50 mid and
// zero at the extremes.
var feeTable = []feeTableEntry{
	{price: scalePrice(1), fee: scaleFee(0)},
	{price: scalePrice(5), fee: scaleFee(60000)},
	{price: scalePrice(10), fee: scaleFee(200000)},
	{price: scalePrice(20), fee: scaleFee(640000)},
	{price: scalePrice(30), fee: scaleFee(1100000)},
	{price: scalePrice(40), fee: scaleFee(1440000)},
	{price: scalePrice(50), fee: scaleFee(1560000)},
	{price: scalePrice(60), fee: scaleFee(1440000)},
	{price: scalePrice(70), fee: scaleFee(1100000)},
	{price: scalePrice(80), fee: scaleFee(640000)},
	{price: scalePrice(90), fee: scaleFee(200000)},
	{price: scalePrice(99), fee: scaleFee(0)},
}

// scalePrice converts a whole-cents price point (1..99) to AmountScale units.
func scalePrice(cents int64) int64 {
	return cents * types.AmountScale / 100
}

// scaleFee takes a fee-per-share value already expressed in AmountScale
// units (the original schedule's 1e-8 resolution) and returns it unchanged.
func scaleFee(microUnits int64) int64 {
	return microUnits
}

// FeePerShare returns the fee owed per share at the given execution price
// (in ticks on the given grid), in AmountScale fixed-point units, via linear
// interpolation between the schedule's defined tiers.
func FeePerShare(priceTicks int64, grid int64) int64 {
	priceAmt := priceTicks * types.AmountScale / grid
	if priceAmt <= feeTable[0].price {
		return feeTable[0].fee
	}
	last := len(feeTable) - 1
	if priceAmt >= feeTable[last].price {
		return feeTable[last].fee
	}
	for i := 0; i < last; i++ {
		lo, hi := feeTable[i], feeTable[i+1]
		if priceAmt >= lo.price && priceAmt <= hi.price {
			if priceAmt == lo.price {
				return lo.fee
			}
			span := hi.price - lo.price
			if span == 0 {
				return lo.fee
			}
			delta := priceAmt - lo.price
			feeSpan := hi.fee - lo.fee
			return lo.fee + delta*feeSpan/span
		}
	}
	return 0
}

// TradeFee returns the total fee for a fill of `quantity` shares at the
// given price, or zero if ts precedes FeeStartTS.
func TradeFee(priceTicks, grid, quantity int64, ts clock.Nanos) int64 {
	if ts < FeeStartTS {
		return 0
	}
	return FeePerShare(priceTicks, grid) * quantity / types.AmountScale
}
