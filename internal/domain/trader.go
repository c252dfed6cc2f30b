package domain

import (
	"math"
	"sync"

	"github.com/shopspring/decimal"
)

// PolicyKind names the decision strategy a trader follows.
type PolicyKind string

const (
	PolicyRandomWalker   PolicyKind = "random_walker"
	PolicyTrendFollower  PolicyKind = "trend_follower"
	PolicyRareLargeActor PolicyKind = "rare_large_actor"
)

// Trader is a market participant's ledger record: a cash balance and a
// per-asset inventory. Only the matching engine mutates it.
type Trader struct {
	TraderID  string
	Kind      PolicyKind
	Cash      decimal.Decimal
	Inventory map[Asset]int64 // asset → units held
	Mu        sync.Mutex      // per-trader lock for ledger mutations
}

// Holding returns the units held for the given asset, or 0 if none.
func (t *Trader) Holding(a Asset) int64 {
	return t.Inventory[a]
}

var maxQuantity = decimal.NewFromInt(math.MaxInt64)

// AffordableQuantity returns the largest whole quantity the trader can pay
// for at the given unit price without cash going negative, saturating at
// math.MaxInt64.
func (t *Trader) AffordableQuantity(price decimal.Decimal) int64 {
	if !price.IsPositive() || !t.Cash.IsPositive() {
		return 0
	}
	q := t.Cash.Div(price).Floor()
	if q.GreaterThan(maxQuantity) {
		q = maxQuantity
	}
	// Div rounds at DivisionPrecision; step back if the rounding went up.
	for q.IsPositive() && price.Mul(q).GreaterThan(t.Cash) {
		q = q.Sub(decimal.NewFromInt(1))
	}
	return q.IntPart()
}

// View returns a detached copy of the trader's state. The caller must hold
// Mu or otherwise guarantee no concurrent mutation.
func (t *Trader) View() TraderView {
	inv := make(map[Asset]int64, len(t.Inventory))
	for a, q := range t.Inventory {
		inv[a] = q
	}
	return TraderView{
		TraderID:  t.TraderID,
		Kind:      t.Kind,
		Cash:      t.Cash,
		Inventory: inv,
	}
}

// TraderView is a read-only copy of a trader's ledger state, handed to
// policies and observers.
type TraderView struct {
	TraderID  string
	Kind      PolicyKind
	Cash      decimal.Decimal
	Inventory map[Asset]int64
}

// CanBuy reports whether the view's cash covers price × quantity.
func (v TraderView) CanBuy(price decimal.Decimal, quantity int64) bool {
	return v.Cash.GreaterThanOrEqual(price.Mul(decimal.NewFromInt(quantity)))
}

// CanSell reports whether the view holds at least quantity units of a.
func (v TraderView) CanSell(a Asset, quantity int64) bool {
	return v.Inventory[a] >= quantity
}
