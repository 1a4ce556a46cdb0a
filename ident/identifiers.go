package ident

import (
	"errors"
	"fmt"
	"strings"
)

// 交易域内的强类型标识符。均为不可变字符串，空值表示「未设置」。
type (
	// OrderID 客户端订单号，由 OrderIDGenerator 产生。
	OrderID string
	// AccountID 账户标识，订单提交后由券商回报并在订单内固定。
	AccountID string
	// ExecutionID 单笔成交标识。
	ExecutionID string
	// ExecutionTicket 成交回执号。
	ExecutionTicket string
	// BrokerOrderID 券商为在途订单分配的路由标识。
	BrokerOrderID string
	// Tag 标识生成作用域（如 trader / strategy 编号）。
	Tag string
)

var (
	ErrEmptyTag      = errors.New("identifier tag must not be empty")
	ErrInvalidSymbol = errors.New("invalid symbol")
)

// Symbol 标的标识：代码 + 场所，文本形式 CODE.VENUE（如 AUDUSD.FXCM）。
// 零值无效，必须经 NewSymbol / ParseSymbol 创建。
type Symbol struct {
	code  string
	venue string
}

// NewSymbol 创建标的标识，两部分均不可为空，统一转为大写。
func NewSymbol(code, venue string) (Symbol, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	venue = strings.ToUpper(strings.TrimSpace(venue))
	if code == "" || venue == "" {
		return Symbol{}, fmt.Errorf("code %q venue %q: %w", code, venue, ErrInvalidSymbol)
	}
	return Symbol{code: code, venue: venue}, nil
}

// ParseSymbol 解析 CODE.VENUE 形式的文本。
func ParseSymbol(s string) (Symbol, error) {
	code, venue, ok := strings.Cut(s, ".")
	if !ok {
		return Symbol{}, fmt.Errorf("parse %q: %w", s, ErrInvalidSymbol)
	}
	return NewSymbol(code, venue)
}

// MustParseSymbol 解析失败时 panic，仅用于测试与静态场景文件。
func MustParseSymbol(s string) Symbol {
	sym, err := ParseSymbol(s)
	if err != nil {
		panic(err)
	}
	return sym
}

func (s Symbol) Code() string  { return s.code }
func (s Symbol) Venue() string { return s.venue }

func (s Symbol) IsZero() bool { return s.code == "" && s.venue == "" }

func (s Symbol) String() string { return s.code + "." + s.venue }
