package ident

import (
	"errors"
	"fmt"
	"sync"

	"order-engine-go/clock"
)

// timestampLayout 订单号中的时间戳段。
const timestampLayout = "20060102-150405"

// OrderIDGenerator 在 (trader, strategy) 作用域内生成唯一订单号，
// 形如 O-20240301-120000-001-004-1，末尾序号自 1 起单调递增。
// 并发调用安全；Reset 清空序号但不影响已发出的订单号。
type OrderIDGenerator struct {
	mu       sync.Mutex
	trader   Tag
	strategy Tag
	clk      clock.Clock
	count    int
}

// NewOrderIDGenerator 创建生成器，trader/strategy 标签与时钟均为必填。
func NewOrderIDGenerator(trader, strategy Tag, clk clock.Clock) (*OrderIDGenerator, error) {
	if trader == "" || strategy == "" {
		return nil, fmt.Errorf("trader %q strategy %q: %w", trader, strategy, ErrEmptyTag)
	}
	if clk == nil {
		return nil, errors.New("order id generator requires a clock")
	}
	return &OrderIDGenerator{trader: trader, strategy: strategy, clk: clk}, nil
}

// Generate 返回下一个订单号。
func (g *OrderIDGenerator) Generate() OrderID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.count++
	ts := g.clk.Now().UTC().Format(timestampLayout)
	return OrderID(fmt.Sprintf("O-%s-%s-%s-%d", ts, g.trader, g.strategy, g.count))
}

// Count 返回已发出的订单号数量。
func (g *OrderIDGenerator) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.count
}

// Reset 清空累计序号。仅应在独立的回测/会话之间调用。
func (g *OrderIDGenerator) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.count = 0
}
