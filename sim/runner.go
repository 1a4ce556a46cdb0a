package sim

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"order-engine-go/clock"
	"order-engine-go/ident"
	"order-engine-go/internal/ledger"
	"order-engine-go/order"
)

// Runner 在确定性时钟上回放场景：订单按场景标签经工厂创建并登记，
// 事件按偏移推进时钟后逐条应用。
type Runner struct {
	Sink ledger.EventSink // 可选，接收登记簿的日志事件
}

// Run 回放场景并汇总结果。单条事件应用失败只计数，不中断回放；
// 场景本身的结构问题（未知类型、序号越界）直接报错。
func (r Runner) Run(sc Scenario) (*Report, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	clk := clock.NewTest(sc.Start)
	factory, err := order.NewOrderFactory(clk, ident.Tag(sc.Trader), ident.Tag(sc.Strategy))
	if err != nil {
		return nil, err
	}
	led := ledger.New(nil, nil, r.Sink)

	var tracked []*order.Order
	for i, spec := range sc.Orders {
		added, err := registerSpec(factory, led, spec)
		if err != nil {
			return nil, fmt.Errorf("order %d: %w", i+1, err)
		}
		tracked = append(tracked, added...)
	}

	report := &Report{Scenario: sc.Name, Orders: len(tracked)}
	for i, spec := range sc.Events {
		if spec.Order > len(tracked) {
			return nil, fmt.Errorf("event %d: order ref %d out of range, scenario has %d orders", i+1, spec.Order, len(tracked))
		}
		at := sc.Start.Add(time.Duration(spec.OffsetMs) * time.Millisecond)
		clk.Set(at)

		ev, err := buildEvent(spec, tracked[spec.Order-1].ID(), ident.AccountID(sc.Account), at)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i+1, err)
		}
		report.Events++
		if err := led.Apply(ev); err != nil {
			report.ApplyErrors++
		}
	}

	for _, o := range tracked {
		report.Results = append(report.Results, resultFor(o))
	}
	return report, nil
}

// registerSpec 执行一次工厂调用并登记产出。括号订单返回展开后的
// 全部子订单，顺序为入场、止损、止盈。
func registerSpec(factory *order.OrderFactory, led *ledger.Ledger, spec OrderSpec) ([]*order.Order, error) {
	symbol, err := ident.ParseSymbol(spec.Symbol)
	if err != nil {
		return nil, err
	}
	side := order.Side(spec.Side)
	if err := side.Validate(); err != nil {
		return nil, err
	}
	qty, err := reqDecimal("qty", spec.Qty)
	if err != nil {
		return nil, err
	}
	tif := order.TimeInForce(spec.TIF)

	var expiry *time.Time
	if spec.Expiry != "" {
		t, err := time.Parse(time.RFC3339, spec.Expiry)
		if err != nil {
			return nil, fmt.Errorf("expiry %q: %w", spec.Expiry, err)
		}
		t = t.UTC()
		expiry = &t
	}

	single := func(o *order.Order, err error) ([]*order.Order, error) {
		if err != nil {
			return nil, err
		}
		if err := led.Register(o); err != nil {
			return nil, err
		}
		return []*order.Order{o}, nil
	}
	bracket := func(a *order.AtomicOrder, err error) ([]*order.Order, error) {
		if err != nil {
			return nil, err
		}
		if err := led.RegisterAtomic(a); err != nil {
			return nil, err
		}
		return a.Orders(), nil
	}

	switch spec.Kind {
	case "market":
		return single(factory.Market(symbol, side, qty, spec.Label))
	case "fok":
		return single(factory.FillOrKill(symbol, side, qty, spec.Label))
	case "ioc":
		return single(factory.ImmediateOrCancel(symbol, side, qty, spec.Label))
	case "limit", "stop_market", "stop_limit", "mit":
		price, err := reqDecimal("price", spec.Price)
		if err != nil {
			return nil, err
		}
		switch spec.Kind {
		case "limit":
			return single(factory.Limit(symbol, side, qty, price, spec.Label, tif, expiry))
		case "stop_market":
			return single(factory.StopMarket(symbol, side, qty, price, spec.Label, tif, expiry))
		case "stop_limit":
			return single(factory.StopLimit(symbol, side, qty, price, spec.Label, tif, expiry))
		default:
			return single(factory.MarketIfTouched(symbol, side, qty, price, spec.Label, tif, expiry))
		}
	case "atomic_market", "atomic_limit", "atomic_stop_market":
		stopLoss, err := reqDecimal("stopLoss", spec.StopLoss)
		if err != nil {
			return nil, err
		}
		takeProfit, err := optDecimal("takeProfit", spec.TakeProfit)
		if err != nil {
			return nil, err
		}
		if spec.Kind == "atomic_market" {
			return bracket(factory.AtomicMarket(symbol, side, qty, stopLoss, takeProfit, spec.Label))
		}
		entryPrice, err := reqDecimal("price", spec.Price)
		if err != nil {
			return nil, err
		}
		if spec.Kind == "atomic_limit" {
			return bracket(factory.AtomicLimit(symbol, side, qty, entryPrice, stopLoss, takeProfit, spec.Label, tif, expiry))
		}
		return bracket(factory.AtomicStopMarket(symbol, side, qty, entryPrice, stopLoss, takeProfit, spec.Label, tif, expiry))
	default:
		return nil, fmt.Errorf("unknown order kind %q", spec.Kind)
	}
}

// buildEvent 把事件描述转换成领域事件，事件号现场生成。
func buildEvent(spec EventSpec, orderID ident.OrderID, account ident.AccountID, at time.Time) (order.Event, error) {
	h := order.Header{
		OrderID:    orderID,
		AccountID:  account,
		EventID:    uuid.New(),
		OccurredAt: at,
	}

	switch spec.Kind {
	case "submitted":
		return order.Submitted{Header: h}, nil
	case "accepted":
		return order.Accepted{Header: h}, nil
	case "rejected":
		return order.Rejected{Header: h, Reason: spec.Reason}, nil
	case "working":
		if spec.BrokerID == "" {
			return nil, errors.New("working event needs brokerId")
		}
		return order.Working{Header: h, BrokerOrderID: ident.BrokerOrderID(spec.BrokerID)}, nil
	case "modified":
		if spec.BrokerID == "" {
			return nil, errors.New("modified event needs brokerId")
		}
		price, err := reqDecimal("px", spec.Price)
		if err != nil {
			return nil, err
		}
		return order.Modified{Header: h, BrokerOrderID: ident.BrokerOrderID(spec.BrokerID), Price: price}, nil
	case "cancelled":
		return order.Cancelled{Header: h}, nil
	case "cancel_reject":
		return order.CancelReject{Header: h, Response: spec.Response, Reason: spec.Reason}, nil
	case "expired":
		return order.Expired{Header: h}, nil
	case "filled":
		if spec.ExecID == "" {
			return nil, errors.New("filled event needs execId")
		}
		qty, err := reqDecimal("qty", spec.Qty)
		if err != nil {
			return nil, err
		}
		avg, err := reqDecimal("avg", spec.AvgPrice)
		if err != nil {
			return nil, err
		}
		return order.Filled{
			Header:          h,
			ExecutionID:     ident.ExecutionID(spec.ExecID),
			ExecutionTicket: ident.ExecutionTicket(spec.Ticket),
			FilledQty:       qty,
			AvgPrice:        avg,
			FilledAt:        at,
		}, nil
	default:
		return nil, fmt.Errorf("unknown event kind %q", spec.Kind)
	}
}

func reqDecimal(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("%s is required", field)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s %q: %w", field, s, err)
	}
	return d, nil
}

func optDecimal(field, s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%s %q: %w", field, s, err)
	}
	return &d, nil
}
