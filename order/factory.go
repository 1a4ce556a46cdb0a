package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"order-engine-go/clock"
	"order-engine-go/ident"
)

// OrderFactory 生产经过校验的简单订单与括号组合单。时间来自显式
// 注入的时钟，订单号来自按 (trader, strategy) 作用域累计的生成器；
// 工厂不持有任何已产出的订单。
type OrderFactory struct {
	clk clock.Clock
	gen *ident.OrderIDGenerator
}

// NewOrderFactory 创建工厂。时钟必须显式给出，不存在隐式全局时间源。
func NewOrderFactory(clk clock.Clock, trader, strategy ident.Tag) (*OrderFactory, error) {
	if clk == nil {
		return nil, errors.New("order factory requires a clock")
	}
	gen, err := ident.NewOrderIDGenerator(trader, strategy, clk)
	if err != nil {
		return nil, fmt.Errorf("order factory: %w", err)
	}
	return &OrderFactory{clk: clk, gen: gen}, nil
}

// Market 市价单，有效期 DAY。
func (f *OrderFactory) Market(symbol ident.Symbol, side Side, qty decimal.Decimal, label string) (*Order, error) {
	return New(Params{
		ID:          f.gen.Generate(),
		Symbol:      symbol,
		Side:        side,
		Type:        TypeMarket,
		Quantity:    qty,
		Label:       label,
		TimeInForce: TIFDay,
		Timestamp:   f.clk.Now(),
	})
}

// Limit 限价单。tif 为空时取 DAY；GTD 必须携带 expiry，
// 该约束由订单构造校验统一执行。
func (f *OrderFactory) Limit(symbol ident.Symbol, side Side, qty, price decimal.Decimal, label string, tif TimeInForce, expiry *time.Time) (*Order, error) {
	return f.priced(TypeLimit, symbol, side, qty, price, label, tif, expiry)
}

// StopMarket 停损市价单。
func (f *OrderFactory) StopMarket(symbol ident.Symbol, side Side, qty, price decimal.Decimal, label string, tif TimeInForce, expiry *time.Time) (*Order, error) {
	return f.priced(TypeStopMarket, symbol, side, qty, price, label, tif, expiry)
}

// StopLimit 停损限价单。
func (f *OrderFactory) StopLimit(symbol ident.Symbol, side Side, qty, price decimal.Decimal, label string, tif TimeInForce, expiry *time.Time) (*Order, error) {
	return f.priced(TypeStopLimit, symbol, side, qty, price, label, tif, expiry)
}

// MarketIfTouched 触及转市价单。
func (f *OrderFactory) MarketIfTouched(symbol ident.Symbol, side Side, qty, price decimal.Decimal, label string, tif TimeInForce, expiry *time.Time) (*Order, error) {
	return f.priced(TypeMarketIfTouched, symbol, side, qty, price, label, tif, expiry)
}

// FillOrKill 全部成交否则撤销：市价单 + FOC，无价格。
func (f *OrderFactory) FillOrKill(symbol ident.Symbol, side Side, qty decimal.Decimal, label string) (*Order, error) {
	return New(Params{
		ID:          f.gen.Generate(),
		Symbol:      symbol,
		Side:        side,
		Type:        TypeMarket,
		Quantity:    qty,
		Label:       label,
		TimeInForce: TIFFOC,
		Timestamp:   f.clk.Now(),
	})
}

// ImmediateOrCancel 立即成交余量撤销：市价单 + IOC，无价格。
func (f *OrderFactory) ImmediateOrCancel(symbol ident.Symbol, side Side, qty decimal.Decimal, label string) (*Order, error) {
	return New(Params{
		ID:          f.gen.Generate(),
		Symbol:      symbol,
		Side:        side,
		Type:        TypeMarket,
		Quantity:    qty,
		Label:       label,
		TimeInForce: TIFIOC,
		Timestamp:   f.clk.Now(),
	})
}

func (f *OrderFactory) priced(typ Type, symbol ident.Symbol, side Side, qty, price decimal.Decimal, label string, tif TimeInForce, expiry *time.Time) (*Order, error) {
	p := price
	return New(Params{
		ID:          f.gen.Generate(),
		Symbol:      symbol,
		Side:        side,
		Type:        typ,
		Quantity:    qty,
		Price:       &p,
		Label:       label,
		TimeInForce: tif,
		Expiry:      expiry,
		Timestamp:   f.clk.Now(),
	})
}

// AtomicMarket 市价入场的括号单。label 给定时入场单标签为 label_E，
// 子单标签由括号组装从原始 label 派生。
func (f *OrderFactory) AtomicMarket(symbol ident.Symbol, side Side, qty, stopLossPrice decimal.Decimal, takeProfitPrice *decimal.Decimal, label string) (*AtomicOrder, error) {
	entry, err := f.Market(symbol, side, qty, childLabel(label, "_E"))
	if err != nil {
		return nil, err
	}
	return f.bracket(entry, stopLossPrice, takeProfitPrice, label)
}

// AtomicLimit 限价入场的括号单。
func (f *OrderFactory) AtomicLimit(symbol ident.Symbol, side Side, qty, entryPrice, stopLossPrice decimal.Decimal, takeProfitPrice *decimal.Decimal, label string, tif TimeInForce, expiry *time.Time) (*AtomicOrder, error) {
	entry, err := f.Limit(symbol, side, qty, entryPrice, childLabel(label, "_E"), tif, expiry)
	if err != nil {
		return nil, err
	}
	return f.bracket(entry, stopLossPrice, takeProfitPrice, label)
}

// AtomicStopMarket 停损市价入场的括号单。
func (f *OrderFactory) AtomicStopMarket(symbol ident.Symbol, side Side, qty, entryPrice, stopLossPrice decimal.Decimal, takeProfitPrice *decimal.Decimal, label string, tif TimeInForce, expiry *time.Time) (*AtomicOrder, error) {
	entry, err := f.StopMarket(symbol, side, qty, entryPrice, childLabel(label, "_E"), tif, expiry)
	if err != nil {
		return nil, err
	}
	return f.bracket(entry, stopLossPrice, takeProfitPrice, label)
}

// bracket 共享的括号组装：子单方向与入场相反、数量与入场一致；
// 止损恒为 STOP_MARKET GTC，止盈（给价时）为 LIMIT GTC，均无过期。
func (f *OrderFactory) bracket(entry *Order, stopLossPrice decimal.Decimal, takeProfitPrice *decimal.Decimal, label string) (*AtomicOrder, error) {
	childSide := entry.Side().Opposite()
	stopLoss, err := f.StopMarket(entry.Symbol(), childSide, entry.Quantity(), stopLossPrice, childLabel(label, "_SL"), TIFGTC, nil)
	if err != nil {
		return nil, err
	}
	var takeProfit *Order
	if takeProfitPrice != nil {
		takeProfit, err = f.Limit(entry.Symbol(), childSide, entry.Quantity(), *takeProfitPrice, childLabel(label, "_TP"), TIFGTC, nil)
		if err != nil {
			return nil, err
		}
	}
	return NewAtomicOrder(entry, stopLoss, takeProfit), nil
}

// childLabel 从原始标签派生子单标签；未给标签时子单同样无标签。
func childLabel(label, suffix string) string {
	if label == "" {
		return ""
	}
	return label + suffix
}

// GeneratedCount 返回工厂已发出的订单号数量。
func (f *OrderFactory) GeneratedCount() int { return f.gen.Count() }

// Reset 清空订单号序列，用于独立回测/会话之间；
// 对已产出的订单与组合单无任何影响。
func (f *OrderFactory) Reset() { f.gen.Reset() }
