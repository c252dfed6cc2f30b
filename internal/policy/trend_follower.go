package policy

import (
	"math/rand/v2"

	"github.com/efreitasn/tickmarket/internal/domain"
)

// TrendFollower looks at a short window of an asset's history and buys
// above the current price when it has risen, otherwise sells below it.
type TrendFollower struct {
	Window int
	Markup float64
	MinQty int64
	MaxQty int64
}

// NewTrendFollower returns a TrendFollower over a five-point window.
func NewTrendFollower() *TrendFollower {
	return &TrendFollower{
		Window: 5,
		Markup: 0.02,
		MinQty: 5,
		MaxQty: 15,
	}
}

// Kind reports PolicyTrendFollower.
func (p *TrendFollower) Kind() domain.PolicyKind { return domain.PolicyTrendFollower }

// Propose declines until the asset has at least two price points.
func (p *TrendFollower) Propose(snap *Snapshot, self domain.TraderView, rng *rand.Rand) (Proposal, bool) {
	asset := pickAsset(rng, snap.Assets)
	window := snap.Recent(asset, p.Window)
	if len(window) < 2 {
		return Proposal{}, false
	}

	prop := Proposal{Asset: asset}
	// Only the sign of the slope matters.
	if window[len(window)-1].GreaterThan(window[0]) {
		prop.Side = domain.SideBuy
		prop.Price = quote(snap.Price(asset), 1+p.Markup)
	} else {
		prop.Side = domain.SideSell
		prop.Price = quote(snap.Price(asset), 1-p.Markup)
	}
	prop.Quantity = between(rng, p.MinQty, p.MaxQty)
	return prop, feasible(prop, self)
}
