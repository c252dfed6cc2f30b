package stream

import (
	"context"

	"github.com/efreitasn/tickmarket/internal/sim"
)

// AssetMessage is one asset's result within a TickMessage.
type AssetMessage struct {
	Asset    string  `json:"asset"`
	Previous float64 `json:"previous"`
	Price    float64 `json:"price"`
	Buys     int     `json:"buys"`
	Sells    int     `json:"sells"`
	Trades   int     `json:"trades"`
	Volume   int64   `json:"volume"`
	Turnover float64 `json:"turnover"`
}

// TickMessage is the JSON frame sent to clients after every tick.
type TickMessage struct {
	Type     string         `json:"type"`
	RunID    string         `json:"run_id"`
	Tick     int            `json:"tick"`
	Finished bool           `json:"finished"`
	Assets   []AssetMessage `json:"assets"`
}

// NewTickMessage converts a tick event into its wire form.
func NewTickMessage(ev sim.TickEvent) TickMessage {
	msg := TickMessage{
		Type:     "tick",
		RunID:    ev.RunID,
		Tick:     ev.Tick,
		Finished: ev.Finished,
		Assets:   make([]AssetMessage, len(ev.Assets)),
	}
	for i, at := range ev.Assets {
		msg.Assets[i] = AssetMessage{
			Asset:    string(at.Asset),
			Previous: at.Previous.InexactFloat64(),
			Price:    at.Price.InexactFloat64(),
			Buys:     at.Buys,
			Sells:    at.Sells,
			Trades:   at.Trades,
			Volume:   at.Volume,
			Turnover: at.Turnover.InexactFloat64(),
		}
	}
	return msg
}

// Forward broadcasts every event from events until the channel closes or
// ctx is cancelled.
func (h *Hub) Forward(ctx context.Context, events <-chan sim.TickEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.Broadcast(NewTickMessage(ev))
		}
	}
}
