package domain

import "github.com/shopspring/decimal"

// Trade is a single execution between a buy and a sell order.
type Trade struct {
	Asset       Asset
	BuyOrderID  string
	SellOrderID string
	BuyerID     string
	SellerID    string
	Price       decimal.Decimal
	Quantity    int64
}

// Notional returns price × quantity.
func (t Trade) Notional() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Quantity))
}
