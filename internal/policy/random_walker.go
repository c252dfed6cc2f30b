package policy

import (
	"math/rand/v2"

	"github.com/efreitasn/tickmarket/internal/domain"
)

// RandomWalker quotes a random side and asset at a small random deviation
// from the current price, occasionally taking a much larger step.
type RandomWalker struct {
	LargeMoveProb float64
	SmallDev      float64
	LargeDev      float64
	MinQty        int64
	MaxQty        int64
}

// NewRandomWalker returns a RandomWalker with the default deviations and
// order sizes.
func NewRandomWalker() *RandomWalker {
	return &RandomWalker{
		LargeMoveProb: 0.1,
		SmallDev:      0.05,
		LargeDev:      0.2,
		MinQty:        1,
		MaxQty:        10,
	}
}

// Kind reports PolicyRandomWalker.
func (p *RandomWalker) Kind() domain.PolicyKind { return domain.PolicyRandomWalker }

// Propose picks a side and asset uniformly and prices around the current
// price. The proposal is dropped when the trader cannot afford or does not
// hold it.
func (p *RandomWalker) Propose(snap *Snapshot, self domain.TraderView, rng *rand.Rand) (Proposal, bool) {
	side := coinSide(rng)
	asset := pickAsset(rng, snap.Assets)

	dev := p.SmallDev
	if rng.Float64() < p.LargeMoveProb {
		dev = p.LargeDev
	}
	prop := Proposal{
		Side:     side,
		Asset:    asset,
		Price:    quote(snap.Price(asset), 1+uniform(rng, -dev, dev)),
		Quantity: between(rng, p.MinQty, p.MaxQty),
	}
	return prop, feasible(prop, self)
}
