package store

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/tickmarket/internal/domain"
)

// TraderStore is a thread-safe in-memory ledger of traders, keyed by
// trader_id. It remembers insertion order so iteration is deterministic.
type TraderStore struct {
	mu      sync.RWMutex
	traders map[string]*domain.Trader
	order   []*domain.Trader
}

// NewTraderStore creates an empty TraderStore.
func NewTraderStore() *TraderStore {
	return &TraderStore{
		traders: make(map[string]*domain.Trader),
	}
}

// Create adds a trader to the store. It returns
// domain.ErrTraderAlreadyExists if a trader with the same ID
// already exists.
func (s *TraderStore) Create(t *domain.Trader) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.traders[t.TraderID]; exists {
		return domain.ErrTraderAlreadyExists
	}
	if t.Inventory == nil {
		t.Inventory = make(map[domain.Asset]int64)
	}
	s.traders[t.TraderID] = t
	s.order = append(s.order, t)
	return nil
}

// Get retrieves a trader by ID. It returns
// domain.ErrTraderNotFound if the trader does not exist.
func (s *TraderStore) Get(id string) (*domain.Trader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.traders[id]
	if !ok {
		return nil, domain.ErrTraderNotFound
	}
	return t, nil
}

// List returns all traders in insertion order.
func (s *TraderStore) List() []*domain.Trader {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Trader, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of traders.
func (s *TraderStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// TotalCash sums cash across all traders. Each trader is locked while
// read, so the total is consistent only between matching passes.
func (s *TraderStore) TotalCash() decimal.Decimal {
	total := decimal.Zero
	for _, t := range s.List() {
		t.Mu.Lock()
		total = total.Add(t.Cash)
		t.Mu.Unlock()
	}
	return total
}

// TotalInventory sums the units of an asset held across all traders.
func (s *TraderStore) TotalInventory(a domain.Asset) int64 {
	var total int64
	for _, t := range s.List() {
		t.Mu.Lock()
		total += t.Inventory[a]
		t.Mu.Unlock()
	}
	return total
}
