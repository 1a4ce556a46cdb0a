package order

import "errors"

// 构造与事件应用的契约错误。任何一条被触发都意味着调用方缺陷，
// 立即返回、绝不在本包内吞掉或重试。
var (
	ErrMissingID       = errors.New("order id must not be empty")
	ErrMissingSymbol   = errors.New("order symbol must be set")
	ErrUnknownSide     = errors.New("order side is unknown")
	ErrUnknownType     = errors.New("order type is unknown")
	ErrUnknownTIF      = errors.New("time in force is unknown")
	ErrInvalidQuantity = errors.New("order quantity must be positive")
	ErrPriceRequired   = errors.New("price is required for this order type")
	ErrPriceForbidden  = errors.New("price must be absent for this order type")
	ErrExpiryRequired  = errors.New("expiry is required for GTD orders")
	ErrOrderIDMismatch = errors.New("event order id does not match order")
	ErrAccountMismatch = errors.New("event account id does not match order")
)
