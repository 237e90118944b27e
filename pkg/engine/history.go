package engine

import (
	"sync"

	"github.com/quantafi/matchbook/pkg/orderbook"
)

// tradeHistory is a fixed-capacity ring buffer of the most recent trades for
// one symbol. Oldest entries are overwritten once the buffer wraps.
type tradeHistory struct {
	mu    sync.Mutex
	buf   []orderbook.Trade
	next  int
	count int
}

func newTradeHistory(capacity int) *tradeHistory {
	if capacity <= 0 {
		capacity = 1024
	}
	return &tradeHistory{buf: make([]orderbook.Trade, capacity)}
}

func (h *tradeHistory) add(trades ...orderbook.Trade) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, t := range trades {
		h.buf[h.next] = t
		h.next = (h.next + 1) % len(h.buf)
		if h.count < len(h.buf) {
			h.count++
		}
	}
}

// recent returns up to n trades, newest first. n <= 0 means everything held.
func (h *tradeHistory) recent(n int) []orderbook.Trade {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n <= 0 || n > h.count {
		n = h.count
	}
	out := make([]orderbook.Trade, n)
	for i := 0; i < n; i++ {
		idx := (h.next - 1 - i + len(h.buf)) % len(h.buf)
		out[i] = h.buf[idx]
	}
	return out
}
