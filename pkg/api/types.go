package api

// Wire types for REST endpoints and WebSocket messages. All prices and
// quantities cross the wire as decimal strings so fixed-point values survive
// the round trip untouched.

// ==============================
// REST Request Types
// ==============================

// SubmitOrderRequest is the payload for POST /api/v1/orders.
type SubmitOrderRequest struct {
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`     // "buy" or "sell"
	Type     string `json:"type"`     // "limit" or "market"
	Quantity string `json:"quantity"` // decimal string
	Price    string `json:"price,omitempty"` // decimal string, required for limit orders
}

// CancelOrderRequest is the payload for POST /api/v1/orders/cancel.
type CancelOrderRequest struct {
	Symbol  string `json:"symbol"`
	OrderID string `json:"orderId"`
}

// ==============================
// REST Response Types
// ==============================

// OrderView is the status view of an order after a matching pass.
type OrderView struct {
	OrderID   string `json:"orderId"`
	Symbol    string `json:"symbol"`
	Side      string `json:"side"`
	Type      string `json:"type"`
	Price     string `json:"price,omitempty"`
	Quantity  string `json:"quantity"`
	Filled    string `json:"filledQuantity"`
	Remaining string `json:"remainingQuantity"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"` // Unix milliseconds
}

// TradeInfo is one execution.
type TradeInfo struct {
	TradeID       uint64 `json:"tradeId"`
	Symbol        string `json:"symbol"`
	Price         string `json:"price"`
	Quantity      string `json:"quantity"`
	AggressorSide string `json:"aggressorSide"`
	MakerOrderID  string `json:"makerOrderId"`
	TakerOrderID  string `json:"takerOrderId"`
	Timestamp     int64  `json:"timestamp"`
}

// SubmitOrderResponse is returned from order submission. Message is set when
// a market order could only partially execute.
type SubmitOrderResponse struct {
	Order   OrderView   `json:"order"`
	Trades  []TradeInfo `json:"trades"`
	Message string      `json:"message,omitempty"`
}

// CancelOrderResponse reports whether the cancel removed a resting order.
type CancelOrderResponse struct {
	OrderID   string `json:"orderId"`
	Cancelled bool   `json:"cancelled"`
}

// PriceLevel is a [price, aggregate quantity] pair.
type PriceLevel struct {
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}

// OrderbookSnapshot is the top-of-book view for one symbol.
type OrderbookSnapshot struct {
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"` // sorted high to low
	Asks      []PriceLevel `json:"asks"` // sorted low to high
	Timestamp int64        `json:"timestamp"`
}

// MarketInfo describes one registered instrument.
type MarketInfo struct {
	Symbol string `json:"symbol"`
}

// ErrorResponse is returned for all errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by clients to manage channel subscriptions,
// e.g. {"op":"subscribe","channels":["trades:BTC-USDT","orderbook:BTC-USDT"]}.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"`
}

// TradeUpdate is broadcast on channel "trades:<symbol>" for every execution.
type TradeUpdate struct {
	Type          string `json:"type"` // "trade"
	TradeID       uint64 `json:"tradeId"`
	Symbol        string `json:"symbol"`
	Price         string `json:"price"`
	Quantity      string `json:"quantity"`
	AggressorSide string `json:"aggressorSide"`
	MakerOrderID  string `json:"makerOrderId"`
	TakerOrderID  string `json:"takerOrderId"`
	Timestamp     int64  `json:"timestamp"`
}

// DepthUpdate is broadcast on channel "orderbook:<symbol>" for every touched
// price level. Quantity "0" means the level is gone.
type DepthUpdate struct {
	Type     string `json:"type"` // "depth"
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Price    string `json:"price"`
	Quantity string `json:"quantity"`
}
