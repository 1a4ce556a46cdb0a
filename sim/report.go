package sim

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"order-engine-go/ident"
	"order-engine-go/order"
)

// Report 回放结果汇总。
type Report struct {
	Scenario    string
	Orders      int
	Events      int
	ApplyErrors int
	Results     []OrderResult
}

// OrderResult 单个订单的回放终态。
type OrderResult struct {
	OrderID   ident.OrderID
	Label     string
	Symbol    string
	Side      string
	Type      string
	Status    order.Status
	FilledQty decimal.Decimal
	AvgPrice  decimal.Decimal // 无成交时为零值
	HasFill   bool
	Slippage  decimal.Decimal
	Events    int
}

func resultFor(o *order.Order) OrderResult {
	res := OrderResult{
		OrderID:   o.ID(),
		Symbol:    o.Symbol().String(),
		Side:      string(o.Side()),
		Type:      string(o.Type()),
		Status:    o.Status(),
		FilledQty: o.FilledQuantity(),
		Slippage:  o.Slippage(),
		Events:    o.EventCount(),
	}
	if label, ok := o.Label(); ok {
		res.Label = label
	}
	if avg, ok := o.AvgFillPrice(); ok {
		res.AvgPrice = avg
		res.HasFill = true
	}
	return res
}

// Terminal 统计已到终态的订单数。
func (r *Report) Terminal() int {
	n := 0
	for _, res := range r.Results {
		if res.Status.IsTerminal() {
			n++
		}
	}
	return n
}

// TotalFilled 汇总全部订单的成交量。
func (r *Report) TotalFilled() decimal.Decimal {
	total := decimal.Zero
	for _, res := range r.Results {
		total = total.Add(res.FilledQty)
	}
	return total
}

// String 渲染成对人友好的多行文本，replay 命令直接输出。
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario %s: %d orders, %d events applied, %d errors, %d terminal\n",
		r.Scenario, r.Orders, r.Events, r.ApplyErrors, r.Terminal())
	for _, res := range r.Results {
		fmt.Fprintf(&b, "  %-42s %-14s %-4s %-11s status=%-16s filled=%s",
			res.OrderID, res.Symbol, res.Side, res.Type, res.Status, res.FilledQty)
		if res.HasFill {
			fmt.Fprintf(&b, " avg=%s slippage=%s", res.AvgPrice, res.Slippage)
		}
		if res.Label != "" {
			fmt.Fprintf(&b, " label=%s", res.Label)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
