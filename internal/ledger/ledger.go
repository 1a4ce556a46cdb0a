package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"order-engine-go/ident"
	"order-engine-go/infrastructure/alert"
	"order-engine-go/infrastructure/monitor"
	"order-engine-go/order"
)

var (
	// ErrNilOrder 试图登记空订单。
	ErrNilOrder = errors.New("nil order")
	// ErrDuplicateOrder 订单号已在册。
	ErrDuplicateOrder = errors.New("duplicate order id")
	// ErrDuplicateAtomic 组合号已在册。
	ErrDuplicateAtomic = errors.New("duplicate atomic order id")
	// ErrUnknownOrder 事件指向未登记的订单。
	ErrUnknownOrder = errors.New("unknown order id")
)

// EventSink 结构化日志出口。
type EventSink func(string, map[string]interface{})

// Ledger 在册订单登记簿：持有全部被跟踪的订单与组合单，将回报
// 事件路由到对应实体并串行应用，再把派生状态扇出到指标、日志与
// 告警。订单实体本身不含并发原语，登记簿的写锁即每单单写者保证。
type Ledger struct {
	mu      sync.RWMutex
	orders  map[ident.OrderID]*order.Order
	atomics map[ident.OrderID]*order.AtomicOrder

	workingCount   int
	completedCount int

	mon    *monitor.Monitor
	alerts *alert.Manager
	sink   EventSink
}

// New 创建登记簿。monitor、alerts 与 sink 均可为 nil，对应扇出即关闭。
func New(mon *monitor.Monitor, alerts *alert.Manager, sink EventSink) *Ledger {
	return &Ledger{
		orders:  make(map[ident.OrderID]*order.Order),
		atomics: make(map[ident.OrderID]*order.AtomicOrder),
		mon:     mon,
		alerts:  alerts,
		sink:    sink,
	}
}

// Register 登记单个订单。
func (l *Ledger) Register(o *order.Order) error {
	if o == nil {
		return ErrNilOrder
	}

	l.mu.Lock()
	if _, exists := l.orders[o.ID()]; exists {
		l.mu.Unlock()
		return fmt.Errorf("order %s: %w", o.ID(), ErrDuplicateOrder)
	}
	l.orders[o.ID()] = o
	tracked := len(l.orders)
	l.mu.Unlock()

	if l.mon != nil {
		l.mon.RecordOrderRegistered()
		l.mon.UpdateTrackedOrders(tracked)
	}
	price := ""
	if p, ok := o.Price(); ok {
		price = p.String()
	}
	l.logEvent("order_registered", map[string]interface{}{
		"orderId": string(o.ID()),
		"symbol":  o.Symbol().String(),
		"side":    string(o.Side()),
		"type":    string(o.Type()),
		"qty":     o.Quantity().String(),
		"price":   price,
		"tif":     string(o.TimeInForce()),
	})
	return nil
}

// RegisterAtomic 登记组合单及其全部子订单。任一子订单或组合号
// 已在册即整体拒绝，不产生部分登记。
func (l *Ledger) RegisterAtomic(a *order.AtomicOrder) error {
	if a == nil {
		return ErrNilOrder
	}
	children := a.Orders()

	l.mu.Lock()
	if _, exists := l.atomics[a.ID()]; exists {
		l.mu.Unlock()
		return fmt.Errorf("atomic order %s: %w", a.ID(), ErrDuplicateAtomic)
	}
	for _, o := range children {
		if _, exists := l.orders[o.ID()]; exists {
			l.mu.Unlock()
			return fmt.Errorf("order %s: %w", o.ID(), ErrDuplicateOrder)
		}
	}
	l.atomics[a.ID()] = a
	for _, o := range children {
		l.orders[o.ID()] = o
	}
	tracked := len(l.orders)
	l.mu.Unlock()

	if l.mon != nil {
		l.mon.RecordAtomicRegistered()
		for range children {
			l.mon.RecordOrderRegistered()
		}
		l.mon.UpdateTrackedOrders(tracked)
	}
	tpID := ""
	if tp, ok := a.TakeProfit(); ok {
		tpID = string(tp.ID())
	}
	l.logEvent("atomic_registered", map[string]interface{}{
		"atomicId":     string(a.ID()),
		"entryId":      string(a.Entry().ID()),
		"stopLossId":   string(a.StopLoss().ID()),
		"takeProfitId": tpID,
	})
	return nil
}

// Apply 将回报事件路由到在册订单并应用。终态后仍到达的回报照常
// 入账（实体层静默记录），但在此处计为异常并告警；超额成交同理。
func (l *Ledger) Apply(ev order.Event) error {
	id := order.EventOrderID(ev)
	kind := order.Kind(ev)

	start := time.Now()
	l.mu.Lock()
	o, ok := l.orders[id]
	if !ok {
		l.mu.Unlock()
		if l.mon != nil {
			l.mon.RecordApplyError(kind)
			l.mon.RecordAnomaly("unknown_order")
		}
		l.logEvent("order_anomaly", map[string]interface{}{
			"orderId":   string(id),
			"kind":      "unknown_order",
			"eventKind": kind,
		})
		return fmt.Errorf("order %s: %w", id, ErrUnknownOrder)
	}

	prevStatus := o.Status()
	wasTerminal := prevStatus.IsTerminal()

	if err := o.Apply(ev); err != nil {
		l.mu.Unlock()
		if l.mon != nil {
			l.mon.RecordApplyError(kind)
			l.mon.RecordAnomaly("contract_violation")
		}
		l.logEvent("order_anomaly", map[string]interface{}{
			"orderId":   string(id),
			"kind":      "contract_violation",
			"eventKind": kind,
			"error":     err.Error(),
		})
		return err
	}

	status := o.Status()
	working := l.recountLocked()
	completed := l.completedCount
	filledQty := o.FilledQuantity()
	slippage := o.Slippage()
	quantity := o.Quantity()
	l.mu.Unlock()
	elapsed := time.Since(start)

	if l.mon != nil {
		l.mon.RecordEventApplied(kind)
		l.mon.RecordApplyLatency(elapsed.Seconds())
		l.mon.UpdateWorkingOrders(working)
		l.mon.UpdateCompletedOrders(completed)
		if !wasTerminal && status.IsTerminal() {
			l.mon.RecordTerminal(string(status))
		}
	}

	if fill, isFill := ev.(order.Filled); isFill && l.mon != nil {
		l.mon.RecordFill(fill.FilledQty.InexactFloat64())
		l.mon.UpdateSlippage(slippage.InexactFloat64())
		if quantity.IsPositive() {
			l.mon.RecordFillRatio(filledQty.Div(quantity).InexactFloat64())
		}
	}

	l.logEvent("order_update", map[string]interface{}{
		"orderId":   string(id),
		"status":    string(status),
		"eventKind": kind,
		"filledQty": filledQty.String(),
	})

	if wasTerminal {
		if l.mon != nil {
			l.mon.RecordAnomaly("post_terminal")
		}
		l.logEvent("order_anomaly", map[string]interface{}{
			"orderId":   string(id),
			"kind":      "post_terminal",
			"eventKind": kind,
			"status":    string(prevStatus),
		})
		if l.alerts != nil {
			l.alerts.SendPostTerminal(string(id), string(prevStatus), kind)
		}
	}

	if status == order.StatusOverFilled && prevStatus != order.StatusOverFilled {
		if l.mon != nil {
			l.mon.RecordAnomaly("over_fill")
		}
		l.logEvent("order_anomaly", map[string]interface{}{
			"orderId":   string(id),
			"kind":      "over_fill",
			"eventKind": kind,
			"requested": quantity.String(),
			"filledQty": filledQty.String(),
		})
		if l.alerts != nil {
			l.alerts.SendOverFill(string(id), quantity.String(), filledQty.String())
		}
	}

	return nil
}

// recountLocked 重算工作中与已完结计数，返回工作中数量。
func (l *Ledger) recountLocked() int {
	working := 0
	completed := 0
	for _, o := range l.orders {
		if o.IsWorking() {
			working++
		}
		if o.IsCompleted() {
			completed++
		}
	}
	l.workingCount = working
	l.completedCount = completed
	return working
}

// Get 按订单号取回在册订单。
func (l *Ledger) Get(id ident.OrderID) (*order.Order, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	o, ok := l.orders[id]
	return o, ok
}

// GetAtomic 按组合号取回在册组合单。
func (l *Ledger) GetAtomic(id ident.OrderID) (*order.AtomicOrder, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.atomics[id]
	return a, ok
}

// Snapshot 返回全部在册订单，按订单号排序。
func (l *Ledger) Snapshot() []*order.Order {
	l.mu.RLock()
	out := make([]*order.Order, 0, len(l.orders))
	for _, o := range l.orders {
		out = append(out, o)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Len 当前在册订单数。
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.orders)
}

// WorkingCount 当前在场内工作的订单数。
func (l *Ledger) WorkingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.recountLocked()
}

// CompletedCount 已完结订单数。
func (l *Ledger) CompletedCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recountLocked()
	return l.completedCount
}

func (l *Ledger) logEvent(event string, fields map[string]interface{}) {
	if l == nil || l.sink == nil {
		return
	}
	l.sink(event, fields)
}
