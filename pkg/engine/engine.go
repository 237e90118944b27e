package engine

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantafi/matchbook/pkg/orderbook"
	"github.com/quantafi/matchbook/pkg/util"
)

// ErrUnknownSymbol is returned for symbols that are not registered while
// lazy book creation is disabled.
var ErrUnknownSymbol = errors.New("unknown symbol")

// Config controls engine construction.
type Config struct {
	// Symbols to pre-register books for at startup.
	Symbols []string
	// LazyBooks creates a book on first reference instead of rejecting
	// unknown symbols.
	LazyBooks bool
	// SubscriberBuffer is the per-subscriber event queue size.
	SubscriberBuffer int
	// TradeHistory is the per-symbol ring buffer capacity.
	TradeHistory int
}

// SubmitRequest is a validated-on-entry order submission.
type SubmitRequest struct {
	Symbol   string
	Side     orderbook.Side
	Type     orderbook.OrderType
	Quantity decimal.Decimal
	Price    decimal.Decimal // ignored for market orders
}

// SubmitResult is the order's final state plus the executions it caused.
type SubmitResult struct {
	Order  orderbook.Order
	Trades []orderbook.Trade
}

type marketBook struct {
	// mu extends the book's own critical section over history updates and
	// event publication, so events for one symbol always leave in match
	// order. Publish never blocks, so holding it here cannot stall matching.
	mu      sync.Mutex
	book    *orderbook.Book
	history *tradeHistory
}

// Engine owns one order book per symbol and serializes all mutating calls
// per symbol through the book's own lock; different symbols match fully in
// parallel. Emitted events go through the broadcaster and never backpressure
// matching.
type Engine struct {
	mu    sync.RWMutex // guards books map, not the books themselves
	books map[string]*marketBook

	cfg         Config
	broadcaster *Broadcaster
	clock       util.Clock
	logger      *zap.SugaredLogger

	idMu    sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// New builds an engine with cfg.Symbols pre-registered.
func New(cfg Config, clock util.Clock, logger *zap.SugaredLogger) *Engine {
	if clock == nil {
		clock = util.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	e := &Engine{
		books:       make(map[string]*marketBook),
		cfg:         cfg,
		broadcaster: NewBroadcaster(cfg.SubscriberBuffer, logger),
		clock:       clock,
		logger:      logger,
		entropy:     ulid.Monotonic(rand.New(rand.NewSource(clock.Now().UnixNano())), 0),
	}
	for _, symbol := range cfg.Symbols {
		e.books[symbol] = &marketBook{
			book:    orderbook.New(symbol, clock),
			history: newTradeHistory(cfg.TradeHistory),
		}
		logger.Infow("book_registered", "symbol", symbol)
	}
	return e
}

// Submit assigns an order ID, runs the matching pass for the request's
// symbol and publishes the resulting trades followed by the book deltas.
// ErrInsufficientLiquidity from a partially executed market order is
// returned together with the partial result.
func (e *Engine) Submit(req SubmitRequest) (*SubmitResult, error) {
	mb, err := e.book(req.Symbol)
	if err != nil {
		return nil, err
	}

	id := e.newOrderID()
	var order *orderbook.Order
	if req.Type == orderbook.OrderTypeMarket {
		order = orderbook.NewMarketOrder(id, req.Symbol, req.Side, req.Quantity, e.clock.Now())
	} else {
		order = orderbook.NewLimitOrder(id, req.Symbol, req.Side, req.Price, req.Quantity, e.clock.Now())
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()

	res, err := mb.book.Submit(order)
	if res == nil {
		return nil, err
	}

	if len(res.Trades) > 0 {
		mb.history.add(res.Trades...)
	}
	e.publish(res.Trades, res.Deltas)

	e.logger.Debugw("order_submitted",
		"symbol", req.Symbol,
		"order_id", id,
		"side", req.Side.String(),
		"type", string(req.Type),
		"status", string(res.Order.Status),
		"trades", len(res.Trades))

	return &SubmitResult{Order: res.Order, Trades: res.Trades}, err
}

// Cancel removes a resting order. False means the order was unknown or
// already filled/cancelled; that is not an error. The emptied-or-reduced
// level's delta is published on success.
func (e *Engine) Cancel(symbol, orderID string) (bool, error) {
	mb, err := e.book(symbol)
	if err != nil {
		return false, err
	}

	mb.mu.Lock()
	defer mb.mu.Unlock()

	ok, deltas := mb.book.Cancel(orderID)
	if ok {
		e.publish(nil, deltas)
		e.logger.Debugw("order_cancelled", "symbol", symbol, "order_id", orderID)
	}
	return ok, nil
}

// Snapshot returns the top depth levels per side for symbol.
func (e *Engine) Snapshot(symbol string, depth int) (*orderbook.Snapshot, error) {
	mb, err := e.book(symbol)
	if err != nil {
		return nil, err
	}
	return mb.book.Snapshot(depth), nil
}

// RecentTrades returns up to n trades for symbol, newest first.
func (e *Engine) RecentTrades(symbol string, n int) ([]orderbook.Trade, error) {
	mb, err := e.book(symbol)
	if err != nil {
		return nil, err
	}
	return mb.history.recent(n), nil
}

// Subscribe registers a consumer on the engine's event stream.
func (e *Engine) Subscribe() *Subscription {
	return e.broadcaster.Subscribe()
}

// Symbols returns the registered symbols, sorted.
func (e *Engine) Symbols() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]string, 0, len(e.books))
	for symbol := range e.books {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

// Close shuts down the event stream. Books stay readable but no events flow
// afterwards.
func (e *Engine) Close() {
	e.broadcaster.Close()
}

func (e *Engine) book(symbol string) (*marketBook, error) {
	e.mu.RLock()
	mb, ok := e.books[symbol]
	e.mu.RUnlock()
	if ok {
		return mb, nil
	}
	if !e.cfg.LazyBooks {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if mb, ok = e.books[symbol]; ok {
		return mb, nil
	}
	mb = &marketBook{
		book:    orderbook.New(symbol, e.clock),
		history: newTradeHistory(e.cfg.TradeHistory),
	}
	e.books[symbol] = mb
	e.logger.Infow("book_registered", "symbol", symbol, "lazy", true)
	return mb, nil
}

// publish hands events to the broadcaster: trades first, then the deltas
// reflecting post-trade state.
func (e *Engine) publish(trades []orderbook.Trade, deltas []orderbook.BookDelta) {
	for _, t := range trades {
		e.broadcaster.Publish(tradeEvent(t))
	}
	for _, d := range deltas {
		e.broadcaster.Publish(depthEvent(d))
	}
}

func (e *Engine) newOrderID() string {
	e.idMu.Lock()
	defer e.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(e.clock.Now()), e.entropy).String()
}
