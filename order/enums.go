package order

import "fmt"

// Side 订单方向。空值视为未知，禁止出现在有效订单上。
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Validate 校验方向是否为已知值。
func (s Side) Validate() error {
	switch s {
	case SideBuy, SideSell:
		return nil
	default:
		return fmt.Errorf("side %q: %w", string(s), ErrUnknownSide)
	}
}

// Opposite 返回相反方向。仅对已校验的方向有意义。
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Type 订单类型。
type Type string

const (
	TypeMarket          Type = "MARKET"
	TypeLimit           Type = "LIMIT"
	TypeStopMarket      Type = "STOP_MARKET"
	TypeStopLimit       Type = "STOP_LIMIT"
	TypeMarketIfTouched Type = "MIT"
)

// Validate 校验类型是否为已知值。
func (t Type) Validate() error {
	switch t {
	case TypeMarket, TypeLimit, TypeStopMarket, TypeStopLimit, TypeMarketIfTouched:
		return nil
	default:
		return fmt.Errorf("type %q: %w", string(t), ErrUnknownType)
	}
}

// RequiresPrice 报告该类型是否属于带价类型（构造时必须携带价格）。
func (t Type) RequiresPrice() bool {
	switch t {
	case TypeLimit, TypeStopMarket, TypeStopLimit, TypeMarketIfTouched:
		return true
	default:
		return false
	}
}

// TimeInForce 订单有效期策略。
type TimeInForce string

const (
	TIFDay TimeInForce = "DAY"
	TIFGTC TimeInForce = "GTC"
	TIFGTD TimeInForce = "GTD"
	TIFFOC TimeInForce = "FOC"
	TIFIOC TimeInForce = "IOC"
)

// Validate 校验有效期策略是否为已知值。
func (t TimeInForce) Validate() error {
	switch t {
	case TIFDay, TIFGTC, TIFGTD, TIFFOC, TIFIOC:
		return nil
	default:
		return fmt.Errorf("time in force %q: %w", string(t), ErrUnknownTIF)
	}
}

// Status 订单生命周期状态，仅经事件应用单向推进。
type Status string

const (
	StatusInitialized     Status = "INITIALIZED"
	StatusSubmitted       Status = "SUBMITTED"
	StatusAccepted        Status = "ACCEPTED"
	StatusRejected        Status = "REJECTED"
	StatusWorking         Status = "WORKING"
	StatusCancelled       Status = "CANCELLED"
	StatusExpired         Status = "EXPIRED"
	StatusPartiallyFilled Status = "PARTIALLY_FILLED"
	StatusFilled          Status = "FILLED"
	StatusOverFilled      Status = "OVER_FILLED"
)

// IsTerminal 判断是否终止状态。
func (s Status) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusCancelled, StatusExpired, StatusFilled, StatusOverFilled:
		return true
	default:
		return false
	}
}

// IsActive 判断该状态下订单是否仍可能产生成交。
func (s Status) IsActive() bool {
	switch s {
	case StatusSubmitted, StatusAccepted, StatusWorking, StatusPartiallyFilled:
		return true
	default:
		return false
	}
}
