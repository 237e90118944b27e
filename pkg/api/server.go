package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantafi/matchbook/pkg/engine"
	"github.com/quantafi/matchbook/pkg/orderbook"
)

// Server is the ingress layer: it translates wire requests into engine calls
// and engine events into WebSocket messages. All matching semantics live in
// the engine; the server only validates shape and encodes results.
type Server struct {
	engine  *engine.Engine
	router  *mux.Router
	hub     *Hub
	logger  *zap.SugaredLogger
	origins []string
	depth   int // default snapshot depth
}

// NewServer wires the REST routes and the WebSocket hub.
func NewServer(eng *engine.Engine, origins []string, defaultDepth int, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if defaultDepth <= 0 {
		defaultDepth = 20
	}

	s := &Server{
		engine:  eng,
		router:  mux.NewRouter(),
		hub:     NewHub(logger),
		logger:  logger,
		origins: origins,
		depth:   defaultDepth,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/markets", s.handleGetMarkets).Methods("GET")
	api.HandleFunc("/markets/{symbol}/orderbook", s.handleGetOrderbook).Methods("GET")
	api.HandleFunc("/markets/{symbol}/trades", s.handleGetTrades).Methods("GET")

	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/cancel", s.handleCancelOrder).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the hub, the engine event pump and the HTTP listener. Blocks
// until the listener fails.
func (s *Server) Start(addr string) error {
	go s.hub.Run()
	go s.pumpEvents(s.engine.Subscribe())

	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	})

	s.logger.Infow("api_server_starting", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// pumpEvents forwards engine events to the hub, routed by channel name.
// The hub's per-client buffers keep slow WebSocket clients from ever
// reaching back into this loop.
func (s *Server) pumpEvents(sub *engine.Subscription) {
	for ev := range sub.Events() {
		switch ev.Type {
		case engine.EventTypeTrade:
			t := ev.Trade
			s.hub.BroadcastToChannel("trades:"+t.Symbol, TradeUpdate{
				Type:          "trade",
				TradeID:       t.TradeID,
				Symbol:        t.Symbol,
				Price:         t.Price.String(),
				Quantity:      t.Quantity.String(),
				AggressorSide: t.AggressorSide.String(),
				MakerOrderID:  t.MakerOrderID,
				TakerOrderID:  t.TakerOrderID,
				Timestamp:     t.Timestamp.UnixMilli(),
			})
		case engine.EventTypeDepth:
			d := ev.Delta
			s.hub.BroadcastToChannel("orderbook:"+d.Symbol, DepthUpdate{
				Type:     "depth",
				Symbol:   d.Symbol,
				Side:     d.Side.String(),
				Price:    d.Price.String(),
				Quantity: d.Quantity.String(),
			})
		}
	}
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleGetMarkets(w http.ResponseWriter, r *http.Request) {
	symbols := s.engine.Symbols()
	markets := make([]MarketInfo, len(symbols))
	for i, symbol := range symbols {
		markets[i] = MarketInfo{Symbol: symbol}
	}
	respondJSON(w, http.StatusOK, markets)
}

func (s *Server) handleGetOrderbook(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	depth := s.depth
	if q := r.URL.Query().Get("depth"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid depth", q)
			return
		}
		depth = n
	}

	snap, err := s.engine.Snapshot(symbol, depth)
	if err != nil {
		respondError(w, http.StatusNotFound, "unknown symbol", symbol)
		return
	}

	respondJSON(w, http.StatusOK, OrderbookSnapshot{
		Symbol:    snap.Symbol,
		Bids:      toPriceLevels(snap.Bids),
		Asks:      toPriceLevels(snap.Asks),
		Timestamp: snap.Timestamp.UnixMilli(),
	})
}

func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	limit := 0
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "invalid limit", q)
			return
		}
		limit = n
	}

	trades, err := s.engine.RecentTrades(symbol, limit)
	if err != nil {
		respondError(w, http.StatusNotFound, "unknown symbol", symbol)
		return
	}

	out := make([]TradeInfo, len(trades))
	for i, t := range trades {
		out[i] = toTradeInfo(t)
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	sreq, err := parseSubmitRequest(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order", err.Error())
		return
	}

	result, err := s.engine.Submit(sreq)
	if result == nil {
		status := http.StatusBadRequest
		if errors.Is(err, engine.ErrUnknownSymbol) {
			status = http.StatusNotFound
		}
		respondError(w, status, "order rejected", err.Error())
		return
	}

	resp := SubmitOrderResponse{
		Order:  toOrderView(result.Order),
		Trades: make([]TradeInfo, len(result.Trades)),
	}
	for i, t := range result.Trades {
		resp.Trades[i] = toTradeInfo(t)
	}
	if err != nil {
		// Partial market execution: the fills stand, the remainder is gone.
		resp.Message = err.Error()
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req CancelOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Symbol == "" || req.OrderID == "" {
		respondError(w, http.StatusBadRequest, "missing symbol or orderId", "")
		return
	}

	cancelled, err := s.engine.Cancel(req.Symbol, req.OrderID)
	if err != nil {
		respondError(w, http.StatusNotFound, "unknown symbol", req.Symbol)
		return
	}

	respondJSON(w, http.StatusOK, CancelOrderResponse{OrderID: req.OrderID, Cancelled: cancelled})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ==============================
// Helpers
// ==============================

func parseSubmitRequest(req SubmitOrderRequest) (engine.SubmitRequest, error) {
	var out engine.SubmitRequest

	if req.Symbol == "" {
		return out, errors.New("symbol is required")
	}
	out.Symbol = req.Symbol

	switch req.Side {
	case "buy":
		out.Side = orderbook.Buy
	case "sell":
		out.Side = orderbook.Sell
	default:
		return out, errors.New(`side must be "buy" or "sell"`)
	}

	switch req.Type {
	case "limit":
		out.Type = orderbook.OrderTypeLimit
	case "market":
		out.Type = orderbook.OrderTypeMarket
	default:
		return out, errors.New(`type must be "limit" or "market"`)
	}

	qty, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		return out, errors.New("quantity must be a decimal string")
	}
	out.Quantity = qty

	if out.Type == orderbook.OrderTypeLimit {
		price, err := decimal.NewFromString(req.Price)
		if err != nil {
			return out, errors.New("price must be a decimal string")
		}
		out.Price = price
	}

	return out, nil
}

func toOrderView(o orderbook.Order) OrderView {
	view := OrderView{
		OrderID:   o.ID,
		Symbol:    o.Symbol,
		Side:      o.Side.String(),
		Type:      string(o.Type),
		Quantity:  o.Quantity.String(),
		Filled:    o.Filled().String(),
		Remaining: o.Remaining.String(),
		Status:    string(o.Status),
		Timestamp: o.Timestamp.UnixMilli(),
	}
	if o.Type == orderbook.OrderTypeLimit {
		view.Price = o.Price.String()
	}
	return view
}

func toTradeInfo(t orderbook.Trade) TradeInfo {
	return TradeInfo{
		TradeID:       t.TradeID,
		Symbol:        t.Symbol,
		Price:         t.Price.String(),
		Quantity:      t.Quantity.String(),
		AggressorSide: t.AggressorSide.String(),
		MakerOrderID:  t.MakerOrderID,
		TakerOrderID:  t.TakerOrderID,
		Timestamp:     t.Timestamp.UnixMilli(),
	}
}

func toPriceLevels(levels []orderbook.Level) []PriceLevel {
	out := make([]PriceLevel, len(levels))
	for i, l := range levels {
		out[i] = PriceLevel{Price: l.Price.String(), Quantity: l.Quantity.String()}
	}
	return out
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	respondJSON(w, status, ErrorResponse{Error: error, Message: message})
}
