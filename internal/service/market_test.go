package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/tickmarket/internal/domain"
	"github.com/efreitasn/tickmarket/internal/sim"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// fakeMarket is a fixed market state.
type fakeMarket struct {
	state   sim.State
	err     error
	history map[domain.Asset][]decimal.Decimal
	traders []domain.TraderView
	totals  sim.Totals
	initial sim.Totals
}

func newFakeMarket() *fakeMarket {
	inv := map[domain.Asset]int64{"apple": 10, "banana": 4}
	return &fakeMarket{
		state: sim.StateRunning,
		history: map[domain.Asset][]decimal.Decimal{
			"apple":  {d("10"), d("11"), d("10.5")},
			"banana": {d("20"), d("20"), d("22")},
		},
		traders: []domain.TraderView{
			{TraderID: "t-0", Kind: domain.PolicyRandomWalker, Cash: d("100"), Inventory: map[domain.Asset]int64{"apple": 2}},
			{TraderID: "t-1", Kind: domain.PolicyTrendFollower, Cash: d("50"), Inventory: map[domain.Asset]int64{"apple": 8, "banana": 4}},
			{TraderID: "t-2", Kind: domain.PolicyRareLargeActor, Cash: d("0"), Inventory: map[domain.Asset]int64{}},
		},
		totals:  sim.Totals{Cash: d("150"), Inventory: inv},
		initial: sim.Totals{Cash: d("150"), Inventory: map[domain.Asset]int64{"apple": 10, "banana": 4}},
	}
}

func (m *fakeMarket) ID() string { return "run-1" }

func (m *fakeMarket) Params() sim.Params {
	p := sim.DefaultParams()
	p.Ticks, p.NumTraders = 10, len(m.traders)
	return p
}

func (m *fakeMarket) State() sim.State { return m.state }

func (m *fakeMarket) Err() error { return m.err }

func (m *fakeMarket) Tick() int { return len(m.history["apple"]) - 1 }

func (m *fakeMarket) Assets() []domain.Asset { return []domain.Asset{"apple", "banana"} }

func (m *fakeMarket) Prices() map[domain.Asset]decimal.Decimal {
	out := map[domain.Asset]decimal.Decimal{}
	for a, h := range m.history {
		out[a] = h[len(h)-1]
	}
	return out
}

func (m *fakeMarket) History(a domain.Asset, from int) ([]decimal.Decimal, error) {
	h, ok := m.history[a]
	if !ok {
		return nil, fmt.Errorf("history %q: %w", a, domain.ErrUnknownAsset)
	}
	if from >= len(h) {
		return []decimal.Decimal{}, nil
	}
	return h[from:], nil
}

func (m *fakeMarket) Trader(id string) (domain.TraderView, error) {
	for _, tr := range m.traders {
		if tr.TraderID == id {
			return tr, nil
		}
	}
	return domain.TraderView{}, domain.ErrTraderNotFound
}

func (m *fakeMarket) Traders() []domain.TraderView { return m.traders }

func (m *fakeMarket) Totals() sim.Totals { return m.totals }

func (m *fakeMarket) InitialTotals() sim.Totals { return m.initial }

func TestListAssets(t *testing.T) {
	svc := NewMarketService(newFakeMarket())

	got := svc.ListAssets()
	if len(got) != 2 || got[0].Asset != "apple" || got[1].Asset != "banana" {
		t.Fatalf("ListAssets() = %+v", got)
	}
	if !got[0].Price.Equal(d("10.5")) || !got[1].Price.Equal(d("22")) {
		t.Errorf("prices = %s, %s", got[0].Price, got[1].Price)
	}
}

func TestGetPrice(t *testing.T) {
	svc := NewMarketService(newFakeMarket())

	resp, err := svc.GetPrice("apple")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Tick != 2 || !resp.Price.Equal(d("10.5")) {
		t.Errorf("tick %d price %s, want 2 and 10.5", resp.Tick, resp.Price)
	}
	if resp.Previous == nil || !resp.Previous.Equal(d("11")) {
		t.Errorf("Previous = %v, want 11", resp.Previous)
	}
	if resp.Change == nil || !resp.Change.Equal(d("-0.5")) {
		t.Errorf("Change = %v, want -0.5", resp.Change)
	}
}

func TestGetPrice_SeedOnly(t *testing.T) {
	m := newFakeMarket()
	m.history["apple"] = m.history["apple"][:1]
	svc := NewMarketService(m)

	resp, err := svc.GetPrice("apple")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Tick != 0 || resp.Previous != nil || resp.Change != nil {
		t.Errorf("expected seed-only price, got %+v", resp)
	}
}

func TestGetPrice_UnknownAsset(t *testing.T) {
	svc := NewMarketService(newFakeMarket())

	_, err := svc.GetPrice("durian")
	if !errors.Is(err, domain.ErrUnknownAsset) {
		t.Fatalf("expected ErrUnknownAsset, got %v", err)
	}
}

func TestGetHistory(t *testing.T) {
	svc := NewMarketService(newFakeMarket())

	tests := []struct {
		from int
		want []string
	}{
		{0, []string{"20", "20", "22"}},
		{2, []string{"22"}},
		{3, []string{}},
		{50, []string{}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.from), func(t *testing.T) {
			resp, err := svc.GetHistory("banana", tt.from)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.From != tt.from || len(resp.Prices) != len(tt.want) {
				t.Fatalf("GetHistory(%d) = %v", tt.from, resp.Prices)
			}
			for i, w := range tt.want {
				if !resp.Prices[i].Equal(d(w)) {
					t.Errorf("Prices[%d] = %s, want %s", i, resp.Prices[i], w)
				}
			}
		})
	}
}

func TestGetHistory_Errors(t *testing.T) {
	svc := NewMarketService(newFakeMarket())

	_, err := svc.GetHistory("apple", -1)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("expected ValidationError for negative from, got %v", err)
	}

	if _, err := svc.GetHistory("durian", 0); !errors.Is(err, domain.ErrUnknownAsset) {
		t.Errorf("expected ErrUnknownAsset, got %v", err)
	}
}

func TestGetTrader(t *testing.T) {
	svc := NewMarketService(newFakeMarket())

	resp, err := svc.GetTrader("t-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Kind != domain.PolicyTrendFollower || !resp.Cash.Equal(d("50")) {
		t.Errorf("unexpected trader %+v", resp)
	}
	if len(resp.Holdings) != 2 {
		t.Fatalf("holdings = %+v", resp.Holdings)
	}
	// 8 × 10.5 + 4 × 22
	if !resp.Holdings[0].Value.Equal(d("84")) || !resp.Holdings[1].Value.Equal(d("88")) {
		t.Errorf("holding values = %s, %s", resp.Holdings[0].Value, resp.Holdings[1].Value)
	}
	if !resp.NetWorth.Equal(d("222")) {
		t.Errorf("NetWorth = %s, want 222", resp.NetWorth)
	}
}

func TestGetTrader_NotFound(t *testing.T) {
	svc := NewMarketService(newFakeMarket())

	if _, err := svc.GetTrader("nobody"); !errors.Is(err, domain.ErrTraderNotFound) {
		t.Fatalf("expected ErrTraderNotFound, got %v", err)
	}
}

func TestTopTraders(t *testing.T) {
	svc := NewMarketService(newFakeMarket())

	top, err := svc.TopTraders(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(top) != 2 || top[0].TraderID != "t-1" || top[1].TraderID != "t-0" {
		t.Fatalf("TopTraders(2) = %v, %v", top[0].TraderID, top[1].TraderID)
	}

	for _, n := range []int{0, 101} {
		if _, err := svc.TopTraders(n); err == nil {
			t.Errorf("expected error for limit %d", n)
		}
	}
}

func TestSummary(t *testing.T) {
	m := newFakeMarket()
	svc := NewMarketService(m)

	s := svc.Summary()
	if s.RunID != "run-1" || s.State != "running" || s.Tick != 2 || s.Ticks != 10 || s.Traders != 3 {
		t.Errorf("unexpected summary %+v", s)
	}
	if !s.Conserved || s.Error != "" {
		t.Errorf("Conserved = %v Error = %q", s.Conserved, s.Error)
	}
	if len(s.Prices) != 2 {
		t.Errorf("Prices = %v", s.Prices)
	}

	m.totals = sim.Totals{Cash: d("149"), Inventory: m.initial.Inventory}
	m.state = sim.StateFinished
	m.err = errors.New("tick 3: boom")
	s = svc.Summary()
	if s.Conserved {
		t.Error("expected Conserved = false after cash drift")
	}
	if s.State != "finished" || s.Error != "tick 3: boom" {
		t.Errorf("State = %q Error = %q", s.State, s.Error)
	}
}

func TestConserved_InventoryDrift(t *testing.T) {
	a := sim.Totals{Cash: d("1"), Inventory: map[domain.Asset]int64{"apple": 3}}
	b := sim.Totals{Cash: d("1"), Inventory: map[domain.Asset]int64{"apple": 4}}
	if conserved(a, b) {
		t.Error("expected inventory drift to be detected")
	}
	if !conserved(a, a) {
		t.Error("expected identical totals to be conserved")
	}
}

func TestMarketService_OverSimulation(t *testing.T) {
	p := sim.DefaultParams()
	p.Ticks = 5
	s, err := sim.New(p, sim.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("sim.New: %v", err)
	}
	if err := s.Run(context.Background(), 0); err != nil {
		t.Fatalf("Run: %v", err)
	}

	svc := NewMarketService(s)
	sum := svc.Summary()
	if sum.State != "finished" || sum.Tick != 5 || !sum.Conserved {
		t.Fatalf("unexpected summary %+v", sum)
	}
	h, err := svc.GetHistory("apple", 0)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(h.Prices) != 6 {
		t.Errorf("history len = %d, want 6", len(h.Prices))
	}
	if _, err := svc.GetTrader("trader-000"); err != nil {
		t.Errorf("GetTrader: %v", err)
	}
}
