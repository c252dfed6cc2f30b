package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Side indicates whether an order buys or sells.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Order is a limit order proposed by a trader for a single tick. Orders
// are never carried over: any residual quantity is discarded when the
// tick's matching pass ends.
type Order struct {
	OrderID           string
	TraderID          string
	Side              Side
	Asset             Asset
	Price             decimal.Decimal // limit price
	Quantity          int64
	RemainingQuantity int64
}

// FilledQuantity returns the quantity executed so far.
func (o *Order) FilledQuantity() int64 {
	return o.Quantity - o.RemainingQuantity
}

// Validate checks the order's shape against the asset registry. A failure
// indicates a broken policy, not a market condition.
func (o *Order) Validate(assets *AssetRegistry) error {
	switch {
	case o.Side != SideBuy && o.Side != SideSell:
		return fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, o.Side)
	case !assets.Exists(o.Asset):
		return fmt.Errorf("%w: %w %q", ErrInvalidOrder, ErrUnknownAsset, o.Asset)
	case !o.Price.IsPositive():
		return fmt.Errorf("%w: price must be > 0, got %s", ErrInvalidOrder, o.Price)
	case o.Quantity <= 0:
		return fmt.Errorf("%w: quantity must be > 0, got %d", ErrInvalidOrder, o.Quantity)
	case o.RemainingQuantity < 0 || o.RemainingQuantity > o.Quantity:
		return fmt.Errorf("%w: remaining quantity %d out of range", ErrInvalidOrder, o.RemainingQuantity)
	case o.TraderID == "":
		return fmt.Errorf("%w: missing trader", ErrInvalidOrder)
	}
	return nil
}
