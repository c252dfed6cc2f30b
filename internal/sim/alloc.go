package sim

import (
	"math/rand/v2"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/tickmarket/internal/domain"
	"github.com/efreitasn/tickmarket/internal/policy"
)

// allocate spreads supply units of asset across traders. Each pass visits
// the traders in a fresh random order and hands each one a draw from
// [0, min(maxPer, remaining)]; passes repeat until nothing remains, so
// the allocated total always equals supply.
func allocate(rng *rand.Rand, traders []*domain.Trader, asset domain.Asset, supply, maxPer int64) {
	remaining := supply
	for remaining > 0 {
		for _, i := range rng.Perm(len(traders)) {
			if remaining == 0 {
				break
			}
			n := rng.Int64N(min(maxPer, remaining) + 1)
			traders[i].Inventory[asset] += n
			remaining -= n
		}
	}
}

// seedPrice draws an initial price uniformly from [lo, hi).
func seedPrice(rng *rand.Rand, lo, hi float64) decimal.Decimal {
	p := decimal.NewFromFloat(lo + rng.Float64()*(hi-lo)).Round(policy.PriceScale)
	if !p.IsPositive() {
		return decimal.NewFromFloat(lo)
	}
	return p
}
