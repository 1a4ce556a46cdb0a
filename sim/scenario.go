package sim

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario 回放场景：一组经工厂创建的订单，以及按时间偏移
// 排布的回报事件流。数量与价格一律写成字符串，保持十进制精度。
type Scenario struct {
	Name     string      `yaml:"name"`
	Trader   string      `yaml:"trader"`
	Strategy string      `yaml:"strategy"`
	Account  string      `yaml:"account"`
	Start    time.Time   `yaml:"start"`
	Orders   []OrderSpec `yaml:"orders"`
	Events   []EventSpec `yaml:"events"`
}

// OrderSpec 描述一次工厂调用。atomic_* 类型展开为整组括号订单，
// 入场、止损、止盈依次占用事件引用序号。
type OrderSpec struct {
	Kind       string `yaml:"kind"` // market/limit/stop_market/stop_limit/mit/fok/ioc/atomic_market/atomic_limit/atomic_stop_market
	Symbol     string `yaml:"symbol"`
	Side       string `yaml:"side"`
	Qty        string `yaml:"qty"`
	Price      string `yaml:"price,omitempty"`
	StopLoss   string `yaml:"stopLoss,omitempty"`
	TakeProfit string `yaml:"takeProfit,omitempty"`
	Label      string `yaml:"label,omitempty"`
	TIF        string `yaml:"tif,omitempty"`
	Expiry     string `yaml:"expiry,omitempty"` // RFC3339，仅 GTD 需要
}

// EventSpec 描述一条回报事件。Order 是订单序号，从 1 起，
// 指向订单展开后的第几个订单。
type EventSpec struct {
	OffsetMs int    `yaml:"offsetMs"`
	Order    int    `yaml:"order"`
	Kind     string `yaml:"kind"`
	BrokerID string `yaml:"brokerId,omitempty"`
	Price    string `yaml:"px,omitempty"`
	Reason   string `yaml:"reason,omitempty"`
	Response string `yaml:"response,omitempty"`
	ExecID   string `yaml:"execId,omitempty"`
	Ticket   string `yaml:"ticket,omitempty"`
	Qty      string `yaml:"qty,omitempty"`
	AvgPrice string `yaml:"avg,omitempty"`
}

// LoadScenario 从 YAML 文件读取并验证场景。
func LoadScenario(path string) (Scenario, error) {
	var sc Scenario
	raw, err := os.ReadFile(path)
	if err != nil {
		return sc, fmt.Errorf("read scenario: %w", err)
	}
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return sc, fmt.Errorf("parse scenario yaml: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return sc, err
	}
	return sc, nil
}

// Validate 做结构检查；订单序号是否越界要等订单展开后才能确定，
// 由 Runner 在回放时报告。
func (sc Scenario) Validate() error {
	if sc.Name == "" {
		return errors.New("scenario name is required")
	}
	if sc.Trader == "" || sc.Strategy == "" {
		return errors.New("scenario trader/strategy tags are required")
	}
	if sc.Start.IsZero() {
		return errors.New("scenario start time is required")
	}
	if len(sc.Orders) == 0 {
		return errors.New("scenario needs at least one order")
	}
	for i, spec := range sc.Orders {
		if spec.Kind == "" {
			return fmt.Errorf("order %d: kind is required", i+1)
		}
		if spec.Symbol == "" || spec.Side == "" || spec.Qty == "" {
			return fmt.Errorf("order %d: symbol/side/qty are required", i+1)
		}
	}
	for i, ev := range sc.Events {
		if ev.Order < 1 {
			return fmt.Errorf("event %d: order ref must be >= 1", i+1)
		}
		if ev.Kind == "" {
			return fmt.Errorf("event %d: kind is required", i+1)
		}
		if ev.OffsetMs < 0 {
			return fmt.Errorf("event %d: offsetMs must be >= 0", i+1)
		}
	}
	return nil
}
