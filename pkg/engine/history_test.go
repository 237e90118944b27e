package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTradeHistoryNewestFirst(t *testing.T) {
	h := newTradeHistory(8)
	h.add(testTrade(1), testTrade(2), testTrade(3))

	got := h.recent(2)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(3), got[0].TradeID)
	assert.Equal(t, uint64(2), got[1].TradeID)
}

func TestTradeHistoryWrapAround(t *testing.T) {
	h := newTradeHistory(3)
	for i := uint64(1); i <= 5; i++ {
		h.add(testTrade(i))
	}

	got := h.recent(0)
	require.Len(t, got, 3, "capacity bounds retention")
	assert.Equal(t, uint64(5), got[0].TradeID)
	assert.Equal(t, uint64(4), got[1].TradeID)
	assert.Equal(t, uint64(3), got[2].TradeID)
}

func TestTradeHistoryEmpty(t *testing.T) {
	h := newTradeHistory(4)
	assert.Empty(t, h.recent(10))
}
