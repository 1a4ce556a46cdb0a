package order

import (
	"fmt"
	"time"

	"order-engine-go/ident"
)

// AtomicOrder 入场单与其保护性出场单（止损、可选止盈）的不可变
// 组合，组合号由入场单号加前缀 A 派生。构造后不再变化；三个子
// 订单各自通过自己的事件流独立演进。OCO 撤单语义由执行层实现。
type AtomicOrder struct {
	id         ident.OrderID
	entry      *Order
	stopLoss   *Order
	takeProfit *Order
	ts         time.Time
}

// NewAtomicOrder 直接组合三个订单，takeProfit 可为 nil。
// 方向相反、数量一致等约束由产出订单的工厂方法保证，此处信任调用方。
func NewAtomicOrder(entry, stopLoss, takeProfit *Order) *AtomicOrder {
	return &AtomicOrder{
		id:         "A" + entry.ID(),
		entry:      entry,
		stopLoss:   stopLoss,
		takeProfit: takeProfit,
		ts:         entry.InitializedAt(),
	}
}

func (a *AtomicOrder) ID() ident.OrderID { return a.id }
func (a *AtomicOrder) Entry() *Order     { return a.entry }
func (a *AtomicOrder) StopLoss() *Order  { return a.stopLoss }

// TakeProfit 返回止盈单；未配置时 ok 为 false。
func (a *AtomicOrder) TakeProfit() (*Order, bool) {
	return a.takeProfit, a.takeProfit != nil
}

func (a *AtomicOrder) HasTakeProfit() bool { return a.takeProfit != nil }

// Timestamp 等于入场单的初始化时间。
func (a *AtomicOrder) Timestamp() time.Time { return a.ts }

// Orders 返回全部子订单（入场、止损、止盈），便于批量注册。
func (a *AtomicOrder) Orders() []*Order {
	out := []*Order{a.entry, a.stopLoss}
	if a.takeProfit != nil {
		out = append(out, a.takeProfit)
	}
	return out
}

// Equal 组合相等仅取决于组合号，与子订单当前状态无关。
func (a *AtomicOrder) Equal(other *AtomicOrder) bool {
	return other != nil && a.id == other.id
}

func (a *AtomicOrder) String() string {
	tp := "none"
	if a.takeProfit != nil {
		tp = string(a.takeProfit.ID())
	}
	return fmt.Sprintf("AtomicOrder(%s entry=%s stop_loss=%s take_profit=%s)",
		a.id, a.entry.ID(), a.stopLoss.ID(), tp)
}
