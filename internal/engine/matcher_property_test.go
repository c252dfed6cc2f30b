package engine

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"

	"github.com/efreitasn/tickmarket/internal/domain"
)

type matchFixture struct {
	m       *Matcher
	traders []*domain.Trader
	buys    []*domain.Order
	sells   []*domain.Order
	current decimal.Decimal
}

// genPrice draws a positive price with up to two decimal places.
func genPrice(t *rapid.T, label string) decimal.Decimal {
	cents := rapid.Int64Range(100, 3000).Draw(t, label)
	return decimal.New(cents, -2)
}

// drawFixture builds a random ledger and a random batch of orders. Orders
// are not pre-checked against the ledger, so the batch contains the stale
// and infeasible proposals the engine has to cap.
func drawFixture(t *rapid.T) *matchFixture {
	m, ts := newTestMatcher()

	numTraders := rapid.IntRange(1, 8).Draw(t, "numTraders")
	f := &matchFixture{m: m, current: genPrice(t, "current")}
	for i := 0; i < numTraders; i++ {
		tr := &domain.Trader{
			TraderID: fmt.Sprintf("t-%02d", i),
			Cash:     decimal.New(rapid.Int64Range(0, 200_000).Draw(t, fmt.Sprintf("cash-%d", i)), -2),
			Inventory: map[domain.Asset]int64{
				testAsset: rapid.Int64Range(0, 50).Draw(t, fmt.Sprintf("held-%d", i)),
			},
		}
		if err := ts.Create(tr); err != nil {
			t.Fatalf("create trader: %v", err)
		}
		f.traders = append(f.traders, tr)
	}

	numOrders := rapid.IntRange(0, 20).Draw(t, "numOrders")
	for i := 0; i < numOrders; i++ {
		owner := f.traders[rapid.IntRange(0, numTraders-1).Draw(t, fmt.Sprintf("owner-%d", i))]
		qty := rapid.Int64Range(1, 30).Draw(t, fmt.Sprintf("qty-%d", i))
		o := &domain.Order{
			OrderID:           fmt.Sprintf("o-%02d", i),
			TraderID:          owner.TraderID,
			Asset:             testAsset,
			Price:             genPrice(t, fmt.Sprintf("price-%d", i)),
			Quantity:          qty,
			RemainingQuantity: qty,
		}
		if rapid.Bool().Draw(t, fmt.Sprintf("buy-%d", i)) {
			o.Side = domain.SideBuy
			f.buys = append(f.buys, o)
		} else {
			o.Side = domain.SideSell
			f.sells = append(f.sells, o)
		}
	}
	return f
}

func totals(traders []*domain.Trader) (decimal.Decimal, int64) {
	cash := decimal.Zero
	var units int64
	for _, tr := range traders {
		cash = cash.Add(tr.Cash)
		units += tr.Inventory[testAsset]
	}
	return cash, units
}

func TestProperty_ConservationAndNonNegativity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := drawFixture(t)
		cashBefore, unitsBefore := totals(f.traders)

		if _, err := f.m.Match(testAsset, f.buys, f.sells, f.current); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cashAfter, unitsAfter := totals(f.traders)
		if !cashAfter.Equal(cashBefore) {
			t.Fatalf("total cash changed: %s → %s", cashBefore, cashAfter)
		}
		if unitsAfter != unitsBefore {
			t.Fatalf("total units changed: %d → %d", unitsBefore, unitsAfter)
		}
		for _, tr := range f.traders {
			if tr.Cash.IsNegative() {
				t.Fatalf("trader %s cash negative: %s", tr.TraderID, tr.Cash)
			}
			if tr.Inventory[testAsset] < 0 {
				t.Fatalf("trader %s inventory negative: %d", tr.TraderID, tr.Inventory[testAsset])
			}
		}
	})
}

func TestProperty_RemainingQuantityBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := drawFixture(t)

		res, err := f.m.Match(testAsset, f.buys, f.sells, f.current)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		filled := make(map[string]int64)
		for _, tr := range res.Trades {
			filled[tr.BuyOrderID] += tr.Quantity
			filled[tr.SellOrderID] += tr.Quantity
		}
		var submitted int64
		for _, o := range append(append([]*domain.Order{}, f.buys...), f.sells...) {
			submitted += o.Quantity
			if o.RemainingQuantity < 0 || o.RemainingQuantity > o.Quantity {
				t.Fatalf("order %s remaining %d out of [0, %d]", o.OrderID, o.RemainingQuantity, o.Quantity)
			}
			if o.FilledQuantity() != filled[o.OrderID] {
				t.Fatalf("order %s filled %d, trades say %d", o.OrderID, o.FilledQuantity(), filled[o.OrderID])
			}
		}
		// Each traded unit fills one buy and one sell.
		if submitted != 2*res.Volume+res.Discarded {
			t.Fatalf("submitted %d != 2×volume %d + discarded %d", submitted, res.Volume, res.Discarded)
		}
		turnover := decimal.Zero
		for _, tr := range res.Trades {
			turnover = turnover.Add(tr.Notional())
		}
		if !turnover.Equal(res.Turnover) {
			t.Fatalf("turnover %s, trades sum to %s", res.Turnover, turnover)
		}
	})
}

func TestProperty_TradePricesWithinLimits(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := drawFixture(t)
		limits := make(map[string]decimal.Decimal)
		for _, o := range f.buys {
			limits[o.OrderID] = o.Price
		}
		for _, o := range f.sells {
			limits[o.OrderID] = o.Price
		}

		res, err := f.m.Match(testAsset, f.buys, f.sells, f.current)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		sum := decimal.Zero
		for i, tr := range res.Trades {
			bid, ask := limits[tr.BuyOrderID], limits[tr.SellOrderID]
			if bid.LessThan(ask) {
				t.Fatalf("trade[%d] between non-crossing orders: bid %s < ask %s", i, bid, ask)
			}
			if !tr.Price.Equal(bid.Add(ask).Div(decimal.NewFromInt(2))) {
				t.Fatalf("trade[%d] price %s is not the midpoint of %s and %s", i, tr.Price, bid, ask)
			}
			if tr.Quantity <= 0 {
				t.Fatalf("trade[%d] quantity %d", i, tr.Quantity)
			}
			sum = sum.Add(tr.Price)
		}

		if len(res.Trades) == 0 {
			if !res.ClearingPrice.Equal(f.current) {
				t.Fatalf("no trades but price moved %s → %s", f.current, res.ClearingPrice)
			}
			return
		}
		want := sum.Div(decimal.NewFromInt(int64(len(res.Trades))))
		if !res.ClearingPrice.Equal(want) {
			t.Fatalf("clearing price %s, want mean %s", res.ClearingPrice, want)
		}
	})
}

func TestProperty_NoCrossingNoMutation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m, ts := newTestMatcher()
		buyer := registerTrader(ts, "buyer", "100000", 0)
		seller := registerTrader(ts, "seller", "0", 1000)

		// Every bid sits strictly below every ask.
		split := rapid.Int64Range(200, 2000).Draw(t, "split")
		numBuys := rapid.IntRange(0, 6).Draw(t, "numBuys")
		numSells := rapid.IntRange(0, 6).Draw(t, "numSells")
		var buys, sells []*domain.Order
		for i := 0; i < numBuys; i++ {
			p := rapid.Int64Range(100, split-1).Draw(t, fmt.Sprintf("bid-%d", i))
			buys = append(buys, newOrder(fmt.Sprintf("b%d", i), "buyer", domain.SideBuy, decimal.New(p, -2).String(), 5))
		}
		for i := 0; i < numSells; i++ {
			p := rapid.Int64Range(split, 3000).Draw(t, fmt.Sprintf("ask-%d", i))
			sells = append(sells, newOrder(fmt.Sprintf("s%d", i), "seller", domain.SideSell, decimal.New(p, -2).String(), 5))
		}

		current := dec("12.34")
		res, err := m.Match(testAsset, buys, sells, current)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(res.Trades) != 0 {
			t.Fatalf("expected no trades, got %d", len(res.Trades))
		}
		if !res.ClearingPrice.Equal(current) {
			t.Fatalf("price moved without trades: %s", res.ClearingPrice)
		}
		if !buyer.Cash.Equal(dec("100000")) || seller.Holding(testAsset) != 1000 {
			t.Fatal("ledger mutated without trades")
		}
	})
}
