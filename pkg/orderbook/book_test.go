package orderbook

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newTestBook() *Book {
	return New("BTC-USDT", fixedClock{t: time.Unix(1700000000, 0)})
}

func limit(id string, side Side, price, qty string) *Order {
	return NewLimitOrder(id, "BTC-USDT", side, d(price), d(qty), time.Unix(1700000000, 0))
}

func market(id string, side Side, qty string) *Order {
	return NewMarketOrder(id, "BTC-USDT", side, d(qty), time.Unix(1700000000, 0))
}

// assertNotCrossed checks the core book invariant: best bid strictly below
// best ask whenever both sides are non-empty.
func assertNotCrossed(t *testing.T, b *Book) {
	t.Helper()
	bid, hasBid := b.BestBid()
	ask, hasAsk := b.BestAsk()
	if hasBid && hasAsk {
		assert.True(t, bid.LessThan(ask), "book crossed: bid %s >= ask %s", bid, ask)
	}
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name    string
		order   *Order
		wantErr error
	}{
		{"zero quantity", limit("o1", Buy, "100", "0"), ErrInvalidQuantity},
		{"negative quantity", limit("o2", Buy, "100", "-1"), ErrInvalidQuantity},
		{"zero price limit", limit("o3", Buy, "0", "1"), ErrInvalidPrice},
		{"negative price limit", limit("o4", Sell, "-5", "1"), ErrInvalidPrice},
		{"zero quantity market", market("o5", Buy, "0"), ErrInvalidQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBook()
			res, err := b.Submit(tt.order)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, res)

			// No partial side effects on invalid input.
			snap := b.Snapshot(0)
			assert.Empty(t, snap.Bids)
			assert.Empty(t, snap.Asks)
		})
	}
}

func TestResultOrderIsSnapshot(t *testing.T) {
	b := newTestBook()

	res, err := b.Submit(limit("b1", Buy, "100", "1.0"))
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, res.Order.Status)

	// Fill the resting order; the earlier result must keep the state it had
	// when Submit returned, not alias the live order.
	fill, err := b.Submit(limit("s1", Sell, "100", "1.0"))
	require.NoError(t, err)
	require.Len(t, fill.Trades, 1)

	assert.Equal(t, StatusOpen, res.Order.Status)
	assert.True(t, res.Order.Remaining.Equal(d("1.0")))
}

func TestSubmitDuplicateID(t *testing.T) {
	b := newTestBook()

	_, err := b.Submit(limit("o1", Buy, "100", "1"))
	require.NoError(t, err)

	res, err := b.Submit(limit("o1", Buy, "99", "1"))
	require.ErrorIs(t, err, ErrDuplicateOrder)
	assert.Nil(t, res)
}

func TestRestingLimitOrderSnapshot(t *testing.T) {
	b := newTestBook()

	res, err := b.Submit(limit("b1", Buy, "99", "1.0"))
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	assert.Equal(t, StatusOpen, res.Order.Status)

	snap := b.Snapshot(10)
	require.Len(t, snap.Bids, 1)
	assert.Empty(t, snap.Asks)
	assert.True(t, snap.Bids[0].Price.Equal(d("99")))
	assert.True(t, snap.Bids[0].Quantity.Equal(d("1.0")))

	// Resting an order touches exactly its own level.
	require.Len(t, res.Deltas, 1)
	assert.Equal(t, Buy, res.Deltas[0].Side)
	assert.True(t, res.Deltas[0].Quantity.Equal(d("1.0")))
}

func TestFIFOSamePriceLevel(t *testing.T) {
	b := newTestBook()

	_, err := b.Submit(limit("b1", Buy, "100", "1.0"))
	require.NoError(t, err)
	_, err = b.Submit(limit("b2", Buy, "100", "2.0"))
	require.NoError(t, err)

	res, err := b.Submit(limit("s1", Sell, "100", "1.5"))
	require.NoError(t, err)

	require.Len(t, res.Trades, 2)

	// Oldest resting order fills first, in full.
	assert.Equal(t, "b1", res.Trades[0].MakerOrderID)
	assert.Equal(t, "s1", res.Trades[0].TakerOrderID)
	assert.True(t, res.Trades[0].Quantity.Equal(d("1.0")))

	assert.Equal(t, "b2", res.Trades[1].MakerOrderID)
	assert.True(t, res.Trades[1].Quantity.Equal(d("0.5")))

	assert.Equal(t, StatusFilled, res.Order.Status)
	assert.True(t, res.Order.Remaining.IsZero())

	// b2 keeps its place with 1.5 remaining.
	snap := b.Snapshot(10)
	require.Len(t, snap.Bids, 1)
	assert.True(t, snap.Bids[0].Quantity.Equal(d("1.5")))
	assertNotCrossed(t, b)
}

func TestMakerPriceWins(t *testing.T) {
	b := newTestBook()

	_, err := b.Submit(limit("a1", Sell, "100", "1.0"))
	require.NoError(t, err)

	// Incoming buy at a worse (higher) limit still trades at the resting price.
	res, err := b.Submit(limit("b1", Buy, "105", "1.0"))
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.True(t, res.Trades[0].Price.Equal(d("100")))
	assert.Equal(t, Buy, res.Trades[0].AggressorSide)
}

func TestMarketOrderInsufficientLiquidity(t *testing.T) {
	b := newTestBook()

	_, err := b.Submit(limit("a1", Sell, "101", "1.0"))
	require.NoError(t, err)

	res, err := b.Submit(market("m1", Buy, "2.0"))
	require.ErrorIs(t, err, ErrInsufficientLiquidity)
	require.NotNil(t, res)

	// Partial execution up to available liquidity stands.
	require.Len(t, res.Trades, 1)
	assert.True(t, res.Trades[0].Price.Equal(d("101")))
	assert.True(t, res.Trades[0].Quantity.Equal(d("1.0")))
	assert.Equal(t, StatusPartiallyFilled, res.Order.Status)
	assert.True(t, res.Order.Remaining.Equal(d("1.0")))

	// The consumed ask level is gone.
	_, hasAsk := b.BestAsk()
	assert.False(t, hasAsk)
}

func TestMarketOrderEmptyBook(t *testing.T) {
	b := newTestBook()

	res, err := b.Submit(market("m1", Sell, "1.0"))
	require.ErrorIs(t, err, ErrInsufficientLiquidity)
	require.NotNil(t, res)
	assert.Empty(t, res.Trades)
	assert.Equal(t, StatusCancelled, res.Order.Status)
}

func TestPartialFillRemainderRests(t *testing.T) {
	b := newTestBook()

	_, err := b.Submit(limit("a1", Sell, "100", "1.0"))
	require.NoError(t, err)

	res, err := b.Submit(limit("b1", Buy, "100", "2.0"))
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.Equal(t, StatusPartiallyFilled, res.Order.Status)
	assert.True(t, res.Order.Remaining.Equal(d("1.0")))

	snap := b.Snapshot(10)
	require.Len(t, snap.Bids, 1)
	assert.True(t, snap.Bids[0].Price.Equal(d("100")))
	assert.True(t, snap.Bids[0].Quantity.Equal(d("1.0")))
	assert.Empty(t, snap.Asks)
	assertNotCrossed(t, b)
}

func TestMatchingWalksPriceLevels(t *testing.T) {
	b := newTestBook()

	_, err := b.Submit(limit("b1", Buy, "101", "1.0"))
	require.NoError(t, err)
	_, err = b.Submit(limit("b2", Buy, "100", "1.0"))
	require.NoError(t, err)
	_, err = b.Submit(limit("b3", Buy, "99", "1.0"))
	require.NoError(t, err)

	// Sell at 100 crosses the two best bid levels, not the third.
	res, err := b.Submit(limit("s1", Sell, "100", "3.0"))
	require.NoError(t, err)

	require.Len(t, res.Trades, 2)
	assert.True(t, res.Trades[0].Price.Equal(d("101")), "best bid first")
	assert.True(t, res.Trades[1].Price.Equal(d("100")))
	assert.Equal(t, StatusPartiallyFilled, res.Order.Status)

	// Remainder rests at 100 on the ask side; bid 99 survives.
	snap := b.Snapshot(10)
	require.Len(t, snap.Bids, 1)
	assert.True(t, snap.Bids[0].Price.Equal(d("99")))
	require.Len(t, snap.Asks, 1)
	assert.True(t, snap.Asks[0].Price.Equal(d("100")))
	assert.True(t, snap.Asks[0].Quantity.Equal(d("1.0")))
	assertNotCrossed(t, b)
}

func TestConservationOfQuantity(t *testing.T) {
	b := newTestBook()

	_, err := b.Submit(limit("a1", Sell, "100", "0.7"))
	require.NoError(t, err)
	_, err = b.Submit(limit("a2", Sell, "100.5", "0.9"))
	require.NoError(t, err)

	res, err := b.Submit(limit("b1", Buy, "101", "2.0"))
	require.NoError(t, err)

	filled := decimal.Zero
	for _, trade := range res.Trades {
		filled = filled.Add(trade.Quantity)
	}
	assert.True(t, filled.Equal(res.Order.Filled()),
		"sum of trade quantities %s != filled %s", filled, res.Order.Filled())
	assert.True(t, filled.Equal(d("1.6")))
	assert.True(t, res.Order.Remaining.Equal(d("0.4")))
}

func TestCancelRestingOrder(t *testing.T) {
	b := newTestBook()

	_, err := b.Submit(limit("b1", Buy, "100", "1.0"))
	require.NoError(t, err)

	ok, deltas := b.Cancel("b1")
	assert.True(t, ok)
	require.Len(t, deltas, 1)
	assert.True(t, deltas[0].Quantity.IsZero(), "emptied level reports zero quantity")

	snap := b.Snapshot(0)
	assert.Empty(t, snap.Bids)

	// Second cancel is a no-op, not an error.
	ok, deltas = b.Cancel("b1")
	assert.False(t, ok)
	assert.Nil(t, deltas)
}

func TestCancelKeepsLevelWithOtherOrders(t *testing.T) {
	b := newTestBook()

	_, err := b.Submit(limit("b1", Buy, "100", "1.0"))
	require.NoError(t, err)
	_, err = b.Submit(limit("b2", Buy, "100", "2.0"))
	require.NoError(t, err)

	ok, deltas := b.Cancel("b1")
	assert.True(t, ok)
	require.Len(t, deltas, 1)
	assert.True(t, deltas[0].Quantity.Equal(d("2.0")))

	snap := b.Snapshot(0)
	require.Len(t, snap.Bids, 1)
	assert.True(t, snap.Bids[0].Quantity.Equal(d("2.0")))
}

func TestCancelFilledOrder(t *testing.T) {
	b := newTestBook()

	_, err := b.Submit(limit("a1", Sell, "100", "1.0"))
	require.NoError(t, err)
	_, err = b.Submit(limit("b1", Buy, "100", "1.0"))
	require.NoError(t, err)

	ok, _ := b.Cancel("a1")
	assert.False(t, ok, "filled order cannot be cancelled")
	ok, _ = b.Cancel("unknown")
	assert.False(t, ok)
}

func TestCancelledOrderNeverMatches(t *testing.T) {
	b := newTestBook()

	_, err := b.Submit(limit("b1", Buy, "100", "1.0"))
	require.NoError(t, err)
	ok, _ := b.Cancel("b1")
	require.True(t, ok)

	res, err := b.Submit(market("m1", Sell, "1.0"))
	require.ErrorIs(t, err, ErrInsufficientLiquidity)
	assert.Empty(t, res.Trades)
}

func TestDeltasReflectPostTradeState(t *testing.T) {
	b := newTestBook()

	_, err := b.Submit(limit("a1", Sell, "100", "1.0"))
	require.NoError(t, err)
	_, err = b.Submit(limit("a2", Sell, "100", "2.0"))
	require.NoError(t, err)

	res, err := b.Submit(limit("b1", Buy, "100", "1.5"))
	require.NoError(t, err)

	// One pass, one touched level: ask 100 reduced from 3.0 to 1.5.
	require.Len(t, res.Deltas, 1)
	delta := res.Deltas[0]
	assert.Equal(t, Sell, delta.Side)
	assert.True(t, delta.Price.Equal(d("100")))
	assert.True(t, delta.Quantity.Equal(d("1.5")))
}

func TestDeltaForConsumedLevelIsZero(t *testing.T) {
	b := newTestBook()

	_, err := b.Submit(limit("a1", Sell, "100", "1.0"))
	require.NoError(t, err)

	res, err := b.Submit(limit("b1", Buy, "100", "1.0"))
	require.NoError(t, err)

	require.Len(t, res.Deltas, 1)
	assert.True(t, res.Deltas[0].Quantity.IsZero())
}

func TestTradeIDsMonotonic(t *testing.T) {
	b := newTestBook()

	var last uint64
	for i := 0; i < 5; i++ {
		_, err := b.Submit(limit(fmt.Sprintf("a%d", i), Sell, "100", "1.0"))
		require.NoError(t, err)
		res, err := b.Submit(limit(fmt.Sprintf("b%d", i), Buy, "100", "1.0"))
		require.NoError(t, err)
		require.Len(t, res.Trades, 1)
		assert.Greater(t, res.Trades[0].TradeID, last)
		last = res.Trades[0].TradeID
	}
}

func TestBookNeverCrossedAtRest(t *testing.T) {
	b := newTestBook()

	submissions := []*Order{
		limit("o1", Buy, "99", "1"),
		limit("o2", Sell, "101", "1"),
		limit("o3", Buy, "100.5", "2"),
		limit("o4", Sell, "100", "1.5"), // crosses o3
		limit("o5", Buy, "101", "3"),    // crosses o2 and rests
		limit("o6", Sell, "98", "10"),   // sweeps the bid side
		limit("o7", Buy, "98", "0.25"),
	}

	for _, o := range submissions {
		_, err := b.Submit(o)
		require.NoError(t, err)
		assertNotCrossed(t, b)
	}
}

func TestSnapshotDepthLimit(t *testing.T) {
	b := newTestBook()

	for i := 0; i < 5; i++ {
		_, err := b.Submit(limit(fmt.Sprintf("b%d", i), Buy, fmt.Sprintf("%d", 100-i), "1"))
		require.NoError(t, err)
	}

	snap := b.Snapshot(3)
	require.Len(t, snap.Bids, 3)
	assert.True(t, snap.Bids[0].Price.Equal(d("100")), "best bid first")
	assert.True(t, snap.Bids[2].Price.Equal(d("98")))

	full := b.Snapshot(0)
	assert.Len(t, full.Bids, 5)
}
