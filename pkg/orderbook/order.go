package orderbook

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side of an order.
type Side int8

const (
	Buy  Side = 1
	Sell Side = -1
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// Opposite returns the side an incoming order matches against.
func (s Side) Opposite() Side {
	return -s
}

// OrderType distinguishes resting-capable limit orders from
// immediate-execution market orders.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusOpen            Status = "open"
	StatusPartiallyFilled Status = "partially_filled"
	StatusFilled          Status = "filled"
	StatusCancelled       Status = "cancelled"
)

// Order is a single order in the book. Identity fields (ID, Symbol, Side,
// Type, Price, Quantity) are set on creation and never change; Remaining and
// Status are mutated only by the owning Book during matching or cancellation.
type Order struct {
	ID        string
	Symbol    string
	Side      Side
	Type      OrderType
	Price     decimal.Decimal // zero for market orders
	Quantity  decimal.Decimal // original quantity
	Remaining decimal.Decimal
	Status    Status
	Timestamp time.Time

	level *priceLevel // resting location, nil while not in the book
}

// NewLimitOrder creates an open limit order with the full quantity remaining.
func NewLimitOrder(id, symbol string, side Side, price, qty decimal.Decimal, ts time.Time) *Order {
	return &Order{
		ID:        id,
		Symbol:    symbol,
		Side:      side,
		Type:      OrderTypeLimit,
		Price:     price,
		Quantity:  qty,
		Remaining: qty,
		Status:    StatusOpen,
		Timestamp: ts,
	}
}

// NewMarketOrder creates an open market order. Market orders carry no price;
// they execute against the best opposing levels until filled or the book is
// exhausted.
func NewMarketOrder(id, symbol string, side Side, qty decimal.Decimal, ts time.Time) *Order {
	return &Order{
		ID:        id,
		Symbol:    symbol,
		Side:      side,
		Type:      OrderTypeMarket,
		Quantity:  qty,
		Remaining: qty,
		Status:    StatusOpen,
		Timestamp: ts,
	}
}

// Filled returns the executed quantity so far.
func (o *Order) Filled() decimal.Decimal {
	return o.Quantity.Sub(o.Remaining)
}

// IsFilled reports whether the order has no remaining quantity.
func (o *Order) IsFilled() bool {
	return o.Remaining.IsZero()
}

// crosses reports whether a resting level at restingPrice satisfies the
// order's limit. Market orders cross any price.
func (o *Order) crosses(restingPrice decimal.Decimal) bool {
	if o.Type == OrderTypeMarket {
		return true
	}
	if o.Side == Buy {
		return restingPrice.LessThanOrEqual(o.Price)
	}
	return restingPrice.GreaterThanOrEqual(o.Price)
}
