package orderbook

import "errors"

// Validation and matching errors. Validation failures are returned before
// any book mutation; ErrInsufficientLiquidity is returned alongside the
// partial execution that did happen.
var (
	ErrInvalidQuantity       = errors.New("quantity must be positive")
	ErrInvalidPrice          = errors.New("price must be positive")
	ErrDuplicateOrder        = errors.New("order id already exists")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
)
