// Package policy holds the trader decision strategies. A policy reads a
// frozen market snapshot and the trader's own ledger view and proposes at
// most one limit order per tick. Policies never touch the ledger.
package policy

import (
	"fmt"
	"math/rand/v2"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/tickmarket/internal/domain"
)

// PriceScale is the number of decimal places kept on proposed limit prices.
const PriceScale int32 = 8

// Snapshot is the read-only market state shared by every policy during
// one tick's proposal collection. Callers must not mutate it.
type Snapshot struct {
	Tick    int
	Assets  []domain.Asset
	Prices  map[domain.Asset]decimal.Decimal
	History map[domain.Asset][]decimal.Decimal
}

// Price returns the current price for an asset.
func (s *Snapshot) Price(a domain.Asset) decimal.Decimal {
	return s.Prices[a]
}

// Recent returns at most the last n history entries for an asset.
func (s *Snapshot) Recent(a domain.Asset, n int) []decimal.Decimal {
	h := s.History[a]
	if len(h) > n {
		h = h[len(h)-n:]
	}
	return h
}

// Proposal is the order a policy wants to place this tick.
type Proposal struct {
	Side     domain.Side
	Asset    domain.Asset
	Price    decimal.Decimal
	Quantity int64
}

// Policy decides what a trader does each tick. Propose returns false when
// the trader sits the tick out, including when the order it would place
// is not affordable from self's current ledger.
type Policy interface {
	Kind() domain.PolicyKind
	Propose(snap *Snapshot, self domain.TraderView, rng *rand.Rand) (Proposal, bool)
}

// New returns the default-tuned policy for kind.
func New(kind domain.PolicyKind) (Policy, error) {
	switch kind {
	case domain.PolicyRandomWalker:
		return NewRandomWalker(), nil
	case domain.PolicyTrendFollower:
		return NewTrendFollower(), nil
	case domain.PolicyRareLargeActor:
		return NewRareLargeActor(), nil
	}
	return nil, &domain.ValidationError{Message: fmt.Sprintf("unknown policy kind %q", kind)}
}

// NewRand returns a deterministic generator for the given seed and stream.
// Distinct streams under one seed are independent, so each trader can own
// a generator and proposals can be collected in any order.
func NewRand(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}

// feasible is the advisory pre-check against the trader's own ledger.
func feasible(p Proposal, self domain.TraderView) bool {
	if !p.Price.IsPositive() || p.Quantity <= 0 {
		return false
	}
	if p.Side == domain.SideBuy {
		return self.CanBuy(p.Price, p.Quantity)
	}
	return self.CanSell(p.Asset, p.Quantity)
}

func quote(base decimal.Decimal, factor float64) decimal.Decimal {
	return base.Mul(decimal.NewFromFloat(factor)).Round(PriceScale)
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func between(rng *rand.Rand, lo, hi int64) int64 {
	return lo + rng.Int64N(hi-lo+1)
}

func coinSide(rng *rand.Rand) domain.Side {
	if rng.Float64() < 0.5 {
		return domain.SideBuy
	}
	return domain.SideSell
}

func pickAsset(rng *rand.Rand, assets []domain.Asset) domain.Asset {
	return assets[rng.IntN(len(assets))]
}
