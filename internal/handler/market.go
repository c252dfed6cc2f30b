package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/tickmarket/internal/domain"
	"github.com/efreitasn/tickmarket/internal/service"
)

// MarketHandler handles HTTP requests for market observation endpoints.
type MarketHandler struct {
	marketSvc *service.MarketService
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(marketSvc *service.MarketService) *MarketHandler {
	return &MarketHandler{marketSvc: marketSvc}
}

// assetPriceResponse is one entry of GET /assets.
type assetPriceResponse struct {
	Asset string  `json:"asset"`
	Price float64 `json:"price"`
}

// priceResponse is the JSON response for GET /assets/{asset}/price.
type priceResponse struct {
	Asset    string   `json:"asset"`
	Tick     int      `json:"tick"`
	Price    float64  `json:"price"`
	Previous *float64 `json:"previous"`
	Change   *float64 `json:"change"`
}

// historyResponse is the JSON response for GET /assets/{asset}/history.
type historyResponse struct {
	Asset  string    `json:"asset"`
	From   int       `json:"from"`
	Prices []float64 `json:"prices"`
}

// holdingResponse is a single position in the trader response.
type holdingResponse struct {
	Asset    string  `json:"asset"`
	Quantity int64   `json:"quantity"`
	Value    float64 `json:"value"`
}

// traderResponse is the JSON response for GET /traders/{trader_id}.
type traderResponse struct {
	TraderID string            `json:"trader_id"`
	Kind     string            `json:"kind"`
	Cash     float64           `json:"cash"`
	Holdings []holdingResponse `json:"holdings"`
	NetWorth float64           `json:"net_worth"`
}

// totalsResponse holds market-wide sums.
type totalsResponse struct {
	Cash      float64          `json:"cash"`
	Inventory map[string]int64 `json:"inventory"`
}

// summaryResponse is the JSON response for GET /market/summary.
type summaryResponse struct {
	RunID     string               `json:"run_id"`
	State     string               `json:"state"`
	Tick      int                  `json:"tick"`
	Ticks     int                  `json:"ticks"`
	Traders   int                  `json:"traders"`
	Prices    []assetPriceResponse `json:"prices"`
	Totals    totalsResponse       `json:"totals"`
	Initial   totalsResponse       `json:"initial_totals"`
	Conserved bool                 `json:"conserved"`
	Error     *string              `json:"error"`
}

// ListAssets handles GET /assets.
func (h *MarketHandler) ListAssets(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, toAssetPrices(h.marketSvc.ListAssets()))
}

// GetPrice handles GET /assets/{asset}/price.
func (h *MarketHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	asset := domain.Asset(chi.URLParam(r, "asset"))

	price, err := h.marketSvc.GetPrice(asset)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, priceResponse{
		Asset:    string(price.Asset),
		Tick:     price.Tick,
		Price:    toFloat(price.Price),
		Previous: toFloatPtr(price.Previous),
		Change:   toFloatPtr(price.Change),
	})
}

// GetHistory handles GET /assets/{asset}/history.
func (h *MarketHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	asset := domain.Asset(chi.URLParam(r, "asset"))

	from := 0
	if v := r.URL.Query().Get("from"); v != "" {
		var err error
		from, err = strconv.Atoi(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "from must be a non-negative integer")
			return
		}
	}

	hist, err := h.marketSvc.GetHistory(asset, from)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	prices := make([]float64, len(hist.Prices))
	for i, p := range hist.Prices {
		prices[i] = toFloat(p)
	}
	WriteJSON(w, http.StatusOK, historyResponse{
		Asset:  string(hist.Asset),
		From:   hist.From,
		Prices: prices,
	})
}

// GetTrader handles GET /traders/{trader_id}.
func (h *MarketHandler) GetTrader(w http.ResponseWriter, r *http.Request) {
	tr, err := h.marketSvc.GetTrader(chi.URLParam(r, "trader_id"))
	if err != nil {
		mapMarketError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toTraderResponse(tr))
}

// TopTraders handles GET /traders?limit=N, richest first.
func (h *MarketHandler) TopTraders(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		var err error
		limit, err = strconv.Atoi(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "limit must be a valid integer")
			return
		}
	}

	top, err := h.marketSvc.TopTraders(limit)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	resp := make([]traderResponse, len(top))
	for i := range top {
		resp[i] = toTraderResponse(&top[i])
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Summary handles GET /market/summary.
func (h *MarketHandler) Summary(w http.ResponseWriter, r *http.Request) {
	s := h.marketSvc.Summary()

	resp := summaryResponse{
		RunID:     s.RunID,
		State:     s.State,
		Tick:      s.Tick,
		Ticks:     s.Ticks,
		Traders:   s.Traders,
		Prices:    toAssetPrices(s.Prices),
		Totals:    totalsResponse{Cash: toFloat(s.Totals.Cash), Inventory: make(map[string]int64)},
		Initial:   totalsResponse{Cash: toFloat(s.Initial.Cash), Inventory: make(map[string]int64)},
		Conserved: s.Conserved,
	}
	for a, q := range s.Totals.Inventory {
		resp.Totals.Inventory[string(a)] = q
	}
	for a, q := range s.Initial.Inventory {
		resp.Initial.Inventory[string(a)] = q
	}
	if s.Error != "" {
		resp.Error = &s.Error
	}

	WriteJSON(w, http.StatusOK, resp)
}

func toAssetPrices(prices []service.AssetPrice) []assetPriceResponse {
	out := make([]assetPriceResponse, len(prices))
	for i, p := range prices {
		out[i] = assetPriceResponse{Asset: string(p.Asset), Price: toFloat(p.Price)}
	}
	return out
}

func toTraderResponse(tr *service.TraderResponse) traderResponse {
	holdings := make([]holdingResponse, len(tr.Holdings))
	for i, hd := range tr.Holdings {
		holdings[i] = holdingResponse{
			Asset:    string(hd.Asset),
			Quantity: hd.Quantity,
			Value:    toFloat(hd.Value),
		}
	}
	return traderResponse{
		TraderID: tr.TraderID,
		Kind:     string(tr.Kind),
		Cash:     toFloat(tr.Cash),
		Holdings: holdings,
		NetWorth: toFloat(tr.NetWorth),
	}
}

// mapMarketError maps domain errors to HTTP responses for market endpoints.
func mapMarketError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrUnknownAsset):
		WriteError(w, http.StatusNotFound, "asset_not_found", err.Error())
	case errors.Is(err, domain.ErrTraderNotFound):
		WriteError(w, http.StatusNotFound, "trader_not_found", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
