package sim

import (
	"github.com/shopspring/decimal"

	"github.com/efreitasn/tickmarket/internal/domain"
)

// AssetTick summarizes one asset's clearing in a tick.
type AssetTick struct {
	Asset     domain.Asset
	Previous  decimal.Decimal
	Price     decimal.Decimal
	Buys      int
	Sells     int
	Trades    int
	Volume    int64
	Turnover  decimal.Decimal
	Capped    int
	Skipped   int
	Filled    int
	Discarded int64
}

// TickEvent is published after every completed tick.
type TickEvent struct {
	RunID    string
	Tick     int
	Assets   []AssetTick
	Finished bool
}

// Subscribe registers for tick events. Delivery never blocks the
// simulation: when the buffer is full the event is dropped for that
// subscriber, which can catch up by reading History. The channel is
// closed when the run ends. Call cancel to unsubscribe early.
func (s *Simulation) Subscribe(buffer int) (<-chan TickEvent, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan TickEvent, buffer)

	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	return ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}

func (s *Simulation) publish(ev TickEvent) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			// Subscriber is lagging; it can re-read history.
		}
	}
}

func (s *Simulation) closeSubscribers() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}
