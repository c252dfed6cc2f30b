package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/tickmarket/internal/domain"
	"github.com/efreitasn/tickmarket/internal/store"
)

var half = decimal.New(5, -1)

// MatchResult is the outcome of clearing one asset for one tick.
type MatchResult struct {
	Asset         domain.Asset
	Trades        []domain.Trade
	OpeningPrice  decimal.Decimal
	ClearingPrice decimal.Decimal
	Volume        int64
	Turnover      decimal.Decimal // sum of price × quantity
	Capped        int             // trades reduced by the execution-time feasibility check
	Skipped       int             // crossing pairs dropped because one side could not trade at all
	Filled        int             // orders executed in full
	Resting       int             // orders still in the book when crossing stopped
	Discarded     int64           // unfilled quantity dropped at the end of the pass
}

// Matcher clears a tick's batch of limit orders for a single asset as a
// one-pass double auction and settles the resulting trades against the
// trader ledger.
type Matcher struct {
	assets  *domain.AssetRegistry
	traders *store.TraderStore
}

// NewMatcher creates a new Matcher with the given dependencies.
func NewMatcher(assets *domain.AssetRegistry, traders *store.TraderStore) *Matcher {
	return &Matcher{
		assets:  assets,
		traders: traders,
	}
}

// Match clears buys against sells for asset and returns the new clearing
// price: the mean of all executed trade prices, or current when nothing
// traded.
//
// Each trade executes at the midpoint of the two limit prices. Before a
// trade settles its size is capped to what the buyer can pay for and the
// seller holds; a pairing capped to zero advances whichever side cannot
// trade. Residual quantity is discarded.
//
// Every order is validated before any ledger mutation, so a malformed
// order fails the whole batch and leaves the ledger untouched.
func (m *Matcher) Match(asset domain.Asset, buys, sells []*domain.Order, current decimal.Decimal) (*MatchResult, error) {
	if !m.assets.Exists(asset) {
		return nil, fmt.Errorf("match %q: %w", asset, domain.ErrUnknownAsset)
	}
	if !current.IsPositive() {
		return nil, fmt.Errorf("match %q: current price must be > 0, got %s", asset, current)
	}

	// Step 1: Validate and resolve owners.
	owners := make(map[string]*domain.Trader, len(buys)+len(sells))
	book := NewTickBook(asset)
	for _, batch := range []struct {
		side   domain.Side
		orders []*domain.Order
	}{{domain.SideBuy, buys}, {domain.SideSell, sells}} {
		for _, o := range batch.orders {
			if err := m.checkOrder(asset, batch.side, o); err != nil {
				return nil, err
			}
			if _, ok := owners[o.TraderID]; !ok {
				tr, err := m.traders.Get(o.TraderID)
				if err != nil {
					return nil, fmt.Errorf("order %s: %w", o.OrderID, err)
				}
				owners[o.TraderID] = tr
			}
		}
	}
	for _, o := range buys {
		book.Add(o)
	}
	for _, o := range sells {
		book.Add(o)
	}

	result := &MatchResult{
		Asset:         asset,
		OpeningPrice:  current,
		ClearingPrice: current,
		Turnover:      decimal.Zero,
	}

	// Step 2: Match loop.
	for {
		bid, ok := book.BestBid()
		if !ok {
			break
		}
		ask, ok := book.BestAsk()
		if !ok {
			break
		}

		// Sorted sides: once the best pair doesn't cross, none does.
		buy, sell := bid.Order, ask.Order
		if buy.Price.LessThan(sell.Price) {
			break
		}

		qty := min(buy.RemainingQuantity, sell.RemainingQuantity)
		price := buy.Price.Add(sell.Price).Mul(half)

		buyer, seller := owners[buy.TraderID], owners[sell.TraderID]
		filled, buyerOut, sellerOut := settle(buyer, seller, asset, price, qty)

		if filled == 0 {
			result.Skipped++
			if buyerOut {
				book.AdvanceBid()
			}
			if sellerOut {
				book.AdvanceAsk()
			}
			continue
		}
		if filled < qty {
			result.Capped++
		}

		buy.RemainingQuantity -= filled
		sell.RemainingQuantity -= filled

		trade := domain.Trade{
			Asset:       asset,
			BuyOrderID:  buy.OrderID,
			SellOrderID: sell.OrderID,
			BuyerID:     buy.TraderID,
			SellerID:    sell.TraderID,
			Price:       price,
			Quantity:    filled,
		}
		result.Trades = append(result.Trades, trade)
		result.Volume += filled
		result.Turnover = result.Turnover.Add(trade.Notional())

		if buy.RemainingQuantity == 0 {
			book.AdvanceBid()
		}
		if sell.RemainingQuantity == 0 {
			book.AdvanceAsk()
		}
	}

	// Step 3: Residuals. Nothing carries over to the next tick.
	result.Resting = book.BidCount() + book.AskCount()
	for _, batch := range [][]*domain.Order{buys, sells} {
		for _, o := range batch {
			if o.FilledQuantity() == o.Quantity {
				result.Filled++
			}
			result.Discarded += o.RemainingQuantity
		}
	}

	// Step 4: Clearing price.
	if n := len(result.Trades); n > 0 {
		sum := decimal.Zero
		for _, t := range result.Trades {
			sum = sum.Add(t.Price)
		}
		result.ClearingPrice = sum.Div(decimal.NewFromInt(int64(n)))
	}

	return result, nil
}

func (m *Matcher) checkOrder(asset domain.Asset, side domain.Side, o *domain.Order) error {
	if o == nil {
		return fmt.Errorf("%w: nil order", domain.ErrInvalidOrder)
	}
	if err := o.Validate(m.assets); err != nil {
		return fmt.Errorf("order %s: %w", o.OrderID, err)
	}
	if o.Asset != asset {
		return fmt.Errorf("order %s: %w: asset %q in %q batch", o.OrderID, domain.ErrInvalidOrder, o.Asset, asset)
	}
	if o.Side != side {
		return fmt.Errorf("order %s: %w: %s order in %s batch", o.OrderID, domain.ErrInvalidOrder, o.Side, side)
	}
	if o.RemainingQuantity == 0 {
		return fmt.Errorf("order %s: %w: nothing left to fill", o.OrderID, domain.ErrInvalidOrder)
	}
	return nil
}

// settle applies one trade to both ledgers under their locks, capping qty
// to what the buyer can pay for at price and what the seller holds. It
// reports the executed quantity and which side, if any, can no longer
// trade at this price.
func settle(buyer, seller *domain.Trader, asset domain.Asset, price decimal.Decimal, qty int64) (filled int64, buyerOut, sellerOut bool) {
	unlock := lockPair(buyer, seller)
	defer unlock()

	affordable := buyer.AffordableQuantity(price)
	held := seller.Holding(asset)
	filled = min(qty, affordable, held)
	if filled <= 0 {
		return 0, affordable <= 0, held <= 0
	}

	notional := price.Mul(decimal.NewFromInt(filled))
	buyer.Cash = buyer.Cash.Sub(notional)
	seller.Cash = seller.Cash.Add(notional)
	buyer.Inventory[asset] += filled
	seller.Inventory[asset] -= filled

	return filled, false, false
}

// lockPair locks both traders in ID order and returns the unlock func.
// A trader matched against itself is locked once.
func lockPair(a, b *domain.Trader) func() {
	if a == b {
		a.Mu.Lock()
		return a.Mu.Unlock
	}
	first, second := a, b
	if second.TraderID < first.TraderID {
		first, second = second, first
	}
	first.Mu.Lock()
	second.Mu.Lock()
	return func() {
		second.Mu.Unlock()
		first.Mu.Unlock()
	}
}
