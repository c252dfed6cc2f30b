package service

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/tickmarket/internal/domain"
	"github.com/efreitasn/tickmarket/internal/sim"
)

// Market is the read side of a running simulation.
type Market interface {
	ID() string
	Params() sim.Params
	State() sim.State
	Err() error
	Tick() int
	Assets() []domain.Asset
	Prices() map[domain.Asset]decimal.Decimal
	History(a domain.Asset, from int) ([]decimal.Decimal, error)
	Trader(id string) (domain.TraderView, error)
	Traders() []domain.TraderView
	Totals() sim.Totals
	InitialTotals() sim.Totals
}

// AssetPrice is an asset with its current clearing price.
type AssetPrice struct {
	Asset domain.Asset
	Price decimal.Decimal
}

// PriceResponse represents the response for GET /assets/{asset}/price.
type PriceResponse struct {
	Asset    domain.Asset
	Tick     int
	Price    decimal.Decimal
	Previous *decimal.Decimal // nil before the first tick
	Change   *decimal.Decimal // Price - Previous
}

// HistoryResponse represents the response for GET /assets/{asset}/history.
type HistoryResponse struct {
	Asset  domain.Asset
	From   int
	Prices []decimal.Decimal
}

// Holding is one asset position of a trader, valued at the current price.
type Holding struct {
	Asset    domain.Asset
	Quantity int64
	Value    decimal.Decimal
}

// TraderResponse represents the response for GET /traders/{trader_id}.
type TraderResponse struct {
	TraderID string
	Kind     domain.PolicyKind
	Cash     decimal.Decimal
	Holdings []Holding // registry order
	NetWorth decimal.Decimal
}

// SummaryResponse represents the response for GET /market/summary.
type SummaryResponse struct {
	RunID     string
	State     string
	Tick      int
	Ticks     int
	Traders   int
	Prices    []AssetPrice
	Totals    sim.Totals
	Initial   sim.Totals
	Conserved bool
	Error     string // set when the run was aborted
}

// MarketService answers read-only queries about a market.
type MarketService struct {
	market Market
}

// NewMarketService creates a new MarketService over m.
func NewMarketService(m Market) *MarketService {
	return &MarketService{market: m}
}

// ListAssets returns every asset with its current price, in registry order.
func (s *MarketService) ListAssets() []AssetPrice {
	prices := s.market.Prices()
	assets := s.market.Assets()
	out := make([]AssetPrice, len(assets))
	for i, a := range assets {
		out[i] = AssetPrice{Asset: a, Price: prices[a]}
	}
	return out
}

// GetPrice returns the latest clearing price of an asset and its change
// over the last tick.
func (s *MarketService) GetPrice(a domain.Asset) (*PriceResponse, error) {
	h, err := s.market.History(a, 0)
	if err != nil {
		return nil, err
	}

	// The history always holds the seed price.
	last := len(h) - 1
	resp := &PriceResponse{Asset: a, Tick: last, Price: h[last]}
	if last > 0 {
		prev := h[last-1]
		change := h[last].Sub(prev)
		resp.Previous = &prev
		resp.Change = &change
	}
	return resp, nil
}

// GetHistory returns the price series of an asset from index from on.
// Index 0 is the seed price; index i is the price after tick i.
func (s *MarketService) GetHistory(a domain.Asset, from int) (*HistoryResponse, error) {
	if from < 0 {
		return nil, &domain.ValidationError{Message: "from must be a non-negative integer"}
	}
	h, err := s.market.History(a, from)
	if err != nil {
		return nil, err
	}
	return &HistoryResponse{Asset: a, From: from, Prices: h}, nil
}

// GetTrader returns a trader's ledger valued at current prices.
func (s *MarketService) GetTrader(id string) (*TraderResponse, error) {
	view, err := s.market.Trader(id)
	if err != nil {
		return nil, err
	}

	prices := s.market.Prices()
	resp := &TraderResponse{
		TraderID: view.TraderID,
		Kind:     view.Kind,
		Cash:     view.Cash,
		NetWorth: view.Cash,
	}
	for _, a := range s.market.Assets() {
		q := view.Inventory[a]
		value := prices[a].Mul(decimal.NewFromInt(q))
		resp.Holdings = append(resp.Holdings, Holding{Asset: a, Quantity: q, Value: value})
		resp.NetWorth = resp.NetWorth.Add(value)
	}
	return resp, nil
}

// TopTraders returns up to n traders ranked by net worth, richest first.
// Ties keep creation order.
func (s *MarketService) TopTraders(n int) ([]TraderResponse, error) {
	if n < 1 || n > 100 {
		return nil, &domain.ValidationError{Message: "limit must be between 1 and 100"}
	}

	views := s.market.Traders()
	ranked := make([]TraderResponse, 0, len(views))
	for _, v := range views {
		tr, err := s.GetTrader(v.TraderID)
		if err != nil {
			return nil, err
		}
		ranked = append(ranked, *tr)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].NetWorth.GreaterThan(ranked[j].NetWorth)
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked, nil
}

// Summary reports the run's progress and whether cash and inventory are
// still conserved.
func (s *MarketService) Summary() *SummaryResponse {
	totals := s.market.Totals()
	initial := s.market.InitialTotals()

	resp := &SummaryResponse{
		RunID:     s.market.ID(),
		State:     s.market.State().String(),
		Tick:      s.market.Tick(),
		Ticks:     s.market.Params().Ticks,
		Traders:   s.market.Params().NumTraders,
		Prices:    s.ListAssets(),
		Totals:    totals,
		Initial:   initial,
		Conserved: conserved(totals, initial),
	}
	if err := s.market.Err(); err != nil {
		resp.Error = err.Error()
	}
	return resp
}

func conserved(now, initial sim.Totals) bool {
	if !now.Cash.Equal(initial.Cash) || len(now.Inventory) != len(initial.Inventory) {
		return false
	}
	for a, q := range initial.Inventory {
		if now.Inventory[a] != q {
			return false
		}
	}
	return true
}
