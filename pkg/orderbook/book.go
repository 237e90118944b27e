package orderbook

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quantafi/matchbook/pkg/util"
)

// Trade is one execution between an incoming (taker) order and a resting
// (maker) order. Immutable once created. TradeID is monotonic per book.
type Trade struct {
	TradeID       uint64
	Symbol        string
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	AggressorSide Side
	MakerOrderID  string
	TakerOrderID  string
	Timestamp     time.Time
}

// BookDelta is the post-change aggregate quantity at one price level.
// Quantity zero means the level no longer exists.
type BookDelta struct {
	Symbol   string
	Side     Side
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// Level is an aggregate view of one price level, used in snapshots.
type Level struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// Snapshot is a top-of-book view for new-subscriber initialization.
type Snapshot struct {
	Symbol    string
	Bids      []Level // best (highest) first
	Asks      []Level // best (lowest) first
	Timestamp time.Time
}

// Result carries everything a single mutating call produced: the order's
// final state, the executions in match order, and the net per-level effect.
// Order is a value snapshot taken while the book lock is still held; the
// live order may keep matching after Submit returns, so callers must never
// reach back to the submitted pointer.
type Result struct {
	Order  Order
	Trades []Trade
	Deltas []BookDelta
}

// Book is a single-instrument limit order book with price-time priority
// matching. All mutating and reading operations serialize on one mutex, so a
// cancel either completes before matching touches the order or observes it
// already gone. Nothing inside the lock blocks on I/O.
type Book struct {
	mu       sync.Mutex
	symbol   string
	bids     []*priceLevel // sorted by price descending, best first
	asks     []*priceLevel // sorted by price ascending, best first
	orders   map[string]*Order
	tradeSeq uint64
	clock    util.Clock
}

// New creates an empty book for symbol. A nil clock falls back to wall time.
func New(symbol string, clock util.Clock) *Book {
	if clock == nil {
		clock = util.RealClock{}
	}
	return &Book{
		symbol: symbol,
		orders: make(map[string]*Order),
		clock:  clock,
	}
}

func (b *Book) Symbol() string { return b.symbol }

// Submit validates the order, matches it against the opposite side and, for
// limit orders, rests any remainder. Returns the trades generated (in match
// order) and one delta per touched price level. A market order that exhausts
// the book returns its partial execution together with
// ErrInsufficientLiquidity.
func (b *Book) Submit(o *Order) (*Result, error) {
	if o == nil {
		return nil, fmt.Errorf("submit: nil order")
	}
	if !o.Remaining.IsPositive() {
		return nil, fmt.Errorf("submit %s: %w", o.ID, ErrInvalidQuantity)
	}
	if o.Type == OrderTypeLimit && !o.Price.IsPositive() {
		return nil, fmt.Errorf("submit %s: %w", o.ID, ErrInvalidPrice)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.orders[o.ID]; exists {
		return nil, fmt.Errorf("submit %s: %w", o.ID, ErrDuplicateOrder)
	}

	touched := newTouchSet()
	res := &Result{}

	for o.Remaining.IsPositive() {
		level := b.bestLevel(o.Side.Opposite())
		if level == nil || !o.crosses(level.price) {
			break
		}

		maker := level.front()
		qty := decimal.Min(o.Remaining, maker.Remaining)
		o.Remaining = o.Remaining.Sub(qty)
		maker.Remaining = maker.Remaining.Sub(qty)
		level.reduce(qty)
		touched.mark(o.Side.Opposite(), level.price)

		b.tradeSeq++
		res.Trades = append(res.Trades, Trade{
			TradeID:       b.tradeSeq,
			Symbol:        b.symbol,
			Price:         level.price, // maker price, never the taker's limit
			Quantity:      qty,
			AggressorSide: o.Side,
			MakerOrderID:  maker.ID,
			TakerOrderID:  o.ID,
			Timestamp:     b.clock.Now(),
		})

		if maker.IsFilled() {
			maker.Status = StatusFilled
			level.popFront()
			delete(b.orders, maker.ID)
			if level.empty() {
				b.removeLevel(o.Side.Opposite(), level.price)
			}
		} else {
			maker.Status = StatusPartiallyFilled
		}
	}

	var err error
	switch {
	case o.IsFilled():
		o.Status = StatusFilled
	case o.Type == OrderTypeMarket:
		// Remainder of a market order never rests.
		if len(res.Trades) > 0 {
			o.Status = StatusPartiallyFilled
		} else {
			o.Status = StatusCancelled
		}
		err = fmt.Errorf("submit %s: %w", o.ID, ErrInsufficientLiquidity)
	default:
		b.rest(o)
		touched.mark(o.Side, o.Price)
		if len(res.Trades) > 0 {
			o.Status = StatusPartiallyFilled
		} else {
			o.Status = StatusOpen
		}
	}

	res.Deltas = b.deltas(touched)
	res.Order = *o // snapshot under b.mu; o keeps mutating if it rested
	return res, err
}

// Cancel removes a resting order. Returns false (and no deltas) for unknown,
// already-filled or already-cancelled orders; repeated cancels are no-ops,
// not errors.
func (b *Book) Cancel(orderID string) (bool, []BookDelta) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[orderID]
	if !ok || o.level == nil {
		return false, nil
	}

	level := o.level
	level.remove(o)
	if level.empty() {
		b.removeLevel(o.Side, level.price)
	}
	delete(b.orders, orderID)
	o.Status = StatusCancelled

	touched := newTouchSet()
	touched.mark(o.Side, level.price)
	return true, b.deltas(touched)
}

// Snapshot returns the top depth levels per side with aggregate quantities.
// depth <= 0 means the whole book.
func (b *Book) Snapshot(depth int) *Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := &Snapshot{
		Symbol:    b.symbol,
		Bids:      levelViews(b.bids, depth),
		Asks:      levelViews(b.asks, depth),
		Timestamp: b.clock.Now(),
	}
	return snap
}

// BestBid returns the highest resting bid price, false if no bids.
func (b *Book) BestBid() (decimal.Decimal, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.bids) == 0 {
		return decimal.Zero, false
	}
	return b.bids[0].price, true
}

// BestAsk returns the lowest resting ask price, false if no asks.
func (b *Book) BestAsk() (decimal.Decimal, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.asks) == 0 {
		return decimal.Zero, false
	}
	return b.asks[0].price, true
}

// ---- internals (caller holds b.mu) ----

func (b *Book) bestLevel(side Side) *priceLevel {
	if side == Buy {
		if len(b.bids) == 0 {
			return nil
		}
		return b.bids[0]
	}
	if len(b.asks) == 0 {
		return nil
	}
	return b.asks[0]
}

// rest inserts the order's remainder as a new resting order, creating the
// price level if needed. FIFO position is the back of the level's queue.
func (b *Book) rest(o *Order) {
	level := b.findLevel(o.Side, o.Price)
	if level == nil {
		level = newPriceLevel(o.Price)
		b.insertLevel(o.Side, level)
	}
	level.add(o)
	b.orders[o.ID] = o
}

// levelIndex returns the sorted position for price on side. For bids the
// slice is descending, for asks ascending; in both cases index 0 is the best
// price.
func (b *Book) levelIndex(side Side, price decimal.Decimal) int {
	if side == Buy {
		return sort.Search(len(b.bids), func(i int) bool {
			return b.bids[i].price.LessThanOrEqual(price)
		})
	}
	return sort.Search(len(b.asks), func(i int) bool {
		return b.asks[i].price.GreaterThanOrEqual(price)
	})
}

func (b *Book) findLevel(side Side, price decimal.Decimal) *priceLevel {
	i := b.levelIndex(side, price)
	if side == Buy {
		if i < len(b.bids) && b.bids[i].price.Equal(price) {
			return b.bids[i]
		}
		return nil
	}
	if i < len(b.asks) && b.asks[i].price.Equal(price) {
		return b.asks[i]
	}
	return nil
}

func (b *Book) insertLevel(side Side, level *priceLevel) {
	i := b.levelIndex(side, level.price)
	if side == Buy {
		b.bids = append(b.bids, nil)
		copy(b.bids[i+1:], b.bids[i:])
		b.bids[i] = level
		return
	}
	b.asks = append(b.asks, nil)
	copy(b.asks[i+1:], b.asks[i:])
	b.asks[i] = level
}

func (b *Book) removeLevel(side Side, price decimal.Decimal) {
	i := b.levelIndex(side, price)
	if side == Buy {
		if i < len(b.bids) && b.bids[i].price.Equal(price) {
			b.bids = append(b.bids[:i], b.bids[i+1:]...)
		}
		return
	}
	if i < len(b.asks) && b.asks[i].price.Equal(price) {
		b.asks = append(b.asks[:i], b.asks[i+1:]...)
	}
}

// deltas reads the post-pass aggregate for every touched level, in first-touch
// order. Missing levels report zero quantity.
func (b *Book) deltas(t *touchSet) []BookDelta {
	out := make([]BookDelta, 0, len(t.keys))
	for _, k := range t.keys {
		qty := decimal.Zero
		if level := b.findLevel(k.side, k.price); level != nil {
			qty = level.volume
		}
		out = append(out, BookDelta{
			Symbol:   b.symbol,
			Side:     k.side,
			Price:    k.price,
			Quantity: qty,
		})
	}
	return out
}

func levelViews(levels []*priceLevel, depth int) []Level {
	n := len(levels)
	if depth > 0 && depth < n {
		n = depth
	}
	out := make([]Level, n)
	for i := 0; i < n; i++ {
		out[i] = Level{Price: levels[i].price, Quantity: levels[i].volume}
	}
	return out
}

// touchSet records which (side, price) levels a matching pass modified, in
// first-touch order, so each touched level yields exactly one delta.
type touchSet struct {
	seen map[string]struct{}
	keys []touchKey
}

type touchKey struct {
	side  Side
	price decimal.Decimal
}

func newTouchSet() *touchSet {
	return &touchSet{seen: make(map[string]struct{})}
}

func (t *touchSet) mark(side Side, price decimal.Decimal) {
	k := side.String() + "@" + price.String()
	if _, ok := t.seen[k]; ok {
		return
	}
	t.seen[k] = struct{}{}
	t.keys = append(t.keys, touchKey{side: side, price: price})
}
