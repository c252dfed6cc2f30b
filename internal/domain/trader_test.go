package domain

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestTrader_AffordableQuantity(t *testing.T) {
	tests := []struct {
		name  string
		cash  string
		price string
		want  int64
	}{
		{"exact multiple", "55", "11", 5},
		{"remainder", "100", "11.5", 8},
		{"less than one unit", "10", "11", 0},
		{"zero cash", "0", "11", 0},
		{"zero price", "100", "0", 0},
		{"fractional cash", "33.33", "11.11", 3},
		{"beyond int64", "100000000000000000000000", "11", math.MaxInt64},
		{"just below int64", "92233720368547758070", "10", math.MaxInt64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &Trader{Cash: d(tt.cash)}
			if got := tr.AffordableQuantity(d(tt.price)); got != tt.want {
				t.Errorf("AffordableQuantity(%s) with cash %s = %d, want %d", tt.price, tt.cash, got, tt.want)
			}
		})
	}
}

func TestTrader_AffordableQuantity_NeverOverspends(t *testing.T) {
	tr := &Trader{Cash: d("1")}
	price := d("1").Div(d("3"))
	q := tr.AffordableQuantity(price)
	if price.Mul(decimal.NewFromInt(q)).GreaterThan(tr.Cash) {
		t.Fatalf("quantity %d at %s costs more than cash %s", q, price, tr.Cash)
	}
}

func TestTrader_Holding_NoInventory(t *testing.T) {
	tr := &Trader{Inventory: map[Asset]int64{"apple": 3}}
	if got := tr.Holding("banana"); got != 0 {
		t.Errorf("Holding(banana) = %d, want 0", got)
	}
	if got := tr.Holding("apple"); got != 3 {
		t.Errorf("Holding(apple) = %d, want 3", got)
	}
}

func TestTrader_View_IsDetached(t *testing.T) {
	tr := &Trader{
		TraderID:  "t-001",
		Kind:      PolicyTrendFollower,
		Cash:      d("100"),
		Inventory: map[Asset]int64{"apple": 4},
	}
	v := tr.View()
	v.Inventory["apple"] = 99

	if tr.Inventory["apple"] != 4 {
		t.Errorf("mutating view changed trader inventory to %d", tr.Inventory["apple"])
	}
	if v.TraderID != "t-001" || v.Kind != PolicyTrendFollower {
		t.Errorf("view identity = (%s, %s), want (t-001, %s)", v.TraderID, v.Kind, PolicyTrendFollower)
	}
}

func TestTraderView_Feasibility(t *testing.T) {
	v := TraderView{Cash: d("55"), Inventory: map[Asset]int64{"apple": 5}}

	if !v.CanBuy(d("11"), 5) {
		t.Error("CanBuy(11, 5) = false with cash 55")
	}
	if v.CanBuy(d("11.01"), 5) {
		t.Error("CanBuy(11.01, 5) = true with cash 55")
	}
	if !v.CanSell("apple", 5) {
		t.Error("CanSell(apple, 5) = false with 5 held")
	}
	if v.CanSell("apple", 6) {
		t.Error("CanSell(apple, 6) = true with 5 held")
	}
	if v.CanSell("banana", 1) {
		t.Error("CanSell(banana, 1) = true with none held")
	}
}
