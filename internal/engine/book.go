package engine

import (
	"github.com/google/btree"
	"github.com/shopspring/decimal"

	"github.com/efreitasn/tickmarket/internal/domain"
)

// BookEntry is a single order held in a TickBook.
type BookEntry struct {
	Price   decimal.Decimal
	Arrival uint64
	Order   *domain.Order
}

// bidLess orders the bid side by price descending, then arrival
// ascending. Min() returns the best bid.
func bidLess(a, b BookEntry) bool {
	if c := a.Price.Cmp(b.Price); c != 0 {
		return c > 0
	}
	return a.Arrival < b.Arrival
}

// askLess orders the ask side by price ascending, then arrival
// ascending. Min() returns the best ask.
func askLess(a, b BookEntry) bool {
	if c := a.Price.Cmp(b.Price); c != 0 {
		return c < 0
	}
	return a.Arrival < b.Arrival
}

// TickBook holds the orders for one asset during one tick's matching
// pass. Nothing rests across ticks: a TickBook is built, drained and
// discarded by a single Match call. Equal prices keep arrival order, so
// the sort is stable.
type TickBook struct {
	asset   domain.Asset
	bids    *btree.BTreeG[BookEntry]
	asks    *btree.BTreeG[BookEntry]
	arrival uint64
}

// NewTickBook creates an empty book for the given asset.
func NewTickBook(asset domain.Asset) *TickBook {
	const degree = 16
	return &TickBook{
		asset: asset,
		bids:  btree.NewG[BookEntry](degree, bidLess),
		asks:  btree.NewG[BookEntry](degree, askLess),
	}
}

// Add places an order on the side given by its Side field.
func (b *TickBook) Add(o *domain.Order) {
	b.arrival++
	entry := BookEntry{Price: o.Price, Arrival: b.arrival, Order: o}
	if o.Side == domain.SideBuy {
		b.bids.ReplaceOrInsert(entry)
	} else {
		b.asks.ReplaceOrInsert(entry)
	}
}

// BestBid returns the highest-priced bid.
func (b *TickBook) BestBid() (BookEntry, bool) {
	return b.bids.Min()
}

// BestAsk returns the lowest-priced ask.
func (b *TickBook) BestAsk() (BookEntry, bool) {
	return b.asks.Min()
}

// AdvanceBid drops the best bid, moving the bid cursor to the next order.
func (b *TickBook) AdvanceBid() {
	b.bids.DeleteMin()
}

// AdvanceAsk drops the best ask, moving the ask cursor to the next order.
func (b *TickBook) AdvanceAsk() {
	b.asks.DeleteMin()
}

// BidCount returns the number of bids still in the book.
func (b *TickBook) BidCount() int {
	return b.bids.Len()
}

// AskCount returns the number of asks still in the book.
func (b *TickBook) AskCount() int {
	return b.asks.Len()
}
