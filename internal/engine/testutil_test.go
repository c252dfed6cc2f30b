package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/tickmarket/internal/domain"
	"github.com/efreitasn/tickmarket/internal/store"
)

const testAsset domain.Asset = "apple"

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// newTestMatcher creates a Matcher over a single asset with a fresh ledger.
func newTestMatcher() (*Matcher, *store.TraderStore) {
	assets, err := domain.NewAssetRegistry(testAsset, "banana")
	if err != nil {
		panic(err)
	}
	traders := store.NewTraderStore()
	return NewMatcher(assets, traders), traders
}

// registerTrader is a helper that creates and stores a trader.
func registerTrader(ts *store.TraderStore, id string, cash string, held int64) *domain.Trader {
	tr := &domain.Trader{
		TraderID:  id,
		Kind:      domain.PolicyRandomWalker,
		Cash:      dec(cash),
		Inventory: map[domain.Asset]int64{testAsset: held},
	}
	if err := ts.Create(tr); err != nil {
		panic(fmt.Sprintf("create %s: %v", id, err))
	}
	return tr
}

// newOrder creates an order for testAsset with its full quantity remaining.
func newOrder(id, traderID string, side domain.Side, price string, qty int64) *domain.Order {
	return &domain.Order{
		OrderID:           id,
		TraderID:          traderID,
		Side:              side,
		Asset:             testAsset,
		Price:             dec(price),
		Quantity:          qty,
		RemainingQuantity: qty,
	}
}
