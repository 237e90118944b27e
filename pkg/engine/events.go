package engine

import "github.com/quantafi/matchbook/pkg/orderbook"

// EventType tags the payload carried by an Event.
type EventType string

const (
	EventTypeTrade EventType = "trade"
	EventTypeDepth EventType = "depth"
)

// Event is one broadcast unit: either a trade execution or a book delta.
// After a mutating engine call, trades are published first (historical
// record), then the deltas describing the resulting book state.
type Event struct {
	Type  EventType
	Trade *orderbook.Trade
	Delta *orderbook.BookDelta
}

func tradeEvent(t orderbook.Trade) Event {
	return Event{Type: EventTypeTrade, Trade: &t}
}

func depthEvent(d orderbook.BookDelta) Event {
	return Event{Type: EventTypeDepth, Delta: &d}
}
