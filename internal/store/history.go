package store

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/tickmarket/internal/domain"
)

// PriceHistory is a thread-safe, append-only store of clearing prices,
// keyed by asset. Entry i is the price at the end of tick i; entry 0 is
// the seed price.
type PriceHistory struct {
	mu     sync.RWMutex
	prices map[domain.Asset][]decimal.Decimal
}

// NewPriceHistory creates an empty PriceHistory.
func NewPriceHistory() *PriceHistory {
	return &PriceHistory{
		prices: make(map[domain.Asset][]decimal.Decimal),
	}
}

// Append adds a price to the end of the asset's series.
func (s *PriceHistory) Append(a domain.Asset, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prices[a] = append(s.prices[a], price)
}

// Get returns the full series for an asset in tick order.
// Returns an empty slice if nothing was recorded for the asset.
func (s *PriceHistory) Get(a domain.Asset) []decimal.Decimal {
	return s.Since(a, 0)
}

// Since returns the entries from index from onwards. Readers that fall
// behind can resume from the last index they saw.
func (s *PriceHistory) Since(a domain.Asset, from int) []decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	series := s.prices[a]
	if from < 0 {
		from = 0
	}
	if from >= len(series) {
		return []decimal.Decimal{}
	}

	// Return a copy to avoid callers mutating the internal slice.
	result := make([]decimal.Decimal, len(series)-from)
	copy(result, series[from:])
	return result
}
