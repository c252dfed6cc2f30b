package policy

import (
	"math/rand/v2"

	"github.com/efreitasn/tickmarket/internal/domain"
)

// RareLargeActor is a whale: it sits out most ticks, and when it acts it
// places a large order near the current price.
type RareLargeActor struct {
	ActProb float64
	Dev     float64
	MinQty  int64
	MaxQty  int64
}

// NewRareLargeActor returns a RareLargeActor that acts on about one tick
// in twenty.
func NewRareLargeActor() *RareLargeActor {
	return &RareLargeActor{
		ActProb: 0.05,
		Dev:     0.1,
		MinQty:  50,
		MaxQty:  100,
	}
}

// Kind reports PolicyRareLargeActor.
func (p *RareLargeActor) Kind() domain.PolicyKind { return domain.PolicyRareLargeActor }

// Propose draws once against ActProb before building an order.
func (p *RareLargeActor) Propose(snap *Snapshot, self domain.TraderView, rng *rand.Rand) (Proposal, bool) {
	if rng.Float64() >= p.ActProb {
		return Proposal{}, false
	}
	side := coinSide(rng)
	asset := pickAsset(rng, snap.Assets)
	prop := Proposal{
		Side:     side,
		Asset:    asset,
		Price:    quote(snap.Price(asset), 1+uniform(rng, -p.Dev, p.Dev)),
		Quantity: between(rng, p.MinQty, p.MaxQty),
	}
	return prop, feasible(prop, self)
}
