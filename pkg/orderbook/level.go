package orderbook

import "github.com/shopspring/decimal"

// priceLevel holds the resting orders at one price in arrival order. The
// slice order is the time-priority tie-break: matching always consumes from
// the front, new orders always append to the back.
type priceLevel struct {
	price  decimal.Decimal
	orders []*Order
	volume decimal.Decimal // aggregate remaining quantity across orders
}

func newPriceLevel(price decimal.Decimal) *priceLevel {
	return &priceLevel{price: price, volume: decimal.Zero}
}

// add appends an order to the back of the queue.
func (l *priceLevel) add(o *Order) {
	o.level = l
	l.orders = append(l.orders, o)
	l.volume = l.volume.Add(o.Remaining)
}

// front returns the oldest resting order, nil if the level is empty.
func (l *priceLevel) front() *Order {
	if len(l.orders) == 0 {
		return nil
	}
	return l.orders[0]
}

// popFront removes the oldest order. The caller has already accounted for
// the order's remaining quantity via reduce.
func (l *priceLevel) popFront() {
	if len(l.orders) == 0 {
		return
	}
	l.orders[0].level = nil
	l.orders = l.orders[1:]
}

// reduce subtracts matched quantity from the aggregate volume.
func (l *priceLevel) reduce(qty decimal.Decimal) {
	l.volume = l.volume.Sub(qty)
}

// remove deletes an order from anywhere in the queue (cancellation path).
// Returns false if the order is not at this level.
func (l *priceLevel) remove(o *Order) bool {
	for i, resting := range l.orders {
		if resting == o {
			l.orders = append(l.orders[:i], l.orders[i+1:]...)
			l.volume = l.volume.Sub(o.Remaining)
			o.level = nil
			return true
		}
	}
	return false
}

func (l *priceLevel) empty() bool {
	return len(l.orders) == 0
}
