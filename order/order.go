package order

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"order-engine-go/ident"
)

// Order 单个订单的事件溯源实体。全部静态属性在构造时固定，
// 派生状态只能由 Apply 按事件推进；历史只增不删不重排。
// 本类型不含并发原语：同一订单的事件应用必须由调用方串行化
// （每单单写者），派生字段的读取与并发 Apply 之间不提供快照一致性。
type Order struct {
	id       ident.OrderID
	symbol   ident.Symbol
	side     Side
	typ      Type
	quantity decimal.Decimal
	label    string
	tif      TimeInForce
	expiry   *time.Time
	price    *decimal.Decimal

	initAt      time.Time
	initEventID uuid.UUID

	status      Status
	account     ident.AccountID
	brokerIDs   []ident.BrokerOrderID
	filledQty   decimal.Decimal
	filledAt    *time.Time
	avgPrice    *decimal.Decimal
	slippage    decimal.Decimal
	execIDs     []ident.ExecutionID
	execTickets []ident.ExecutionTicket
	working     bool
	completed   bool
	events      []Event
}

// Params 订单构造参数。Price 与 Expiry 为可选字段，缺省即「无」；
// TimeInForce 为空时取 DAY；InitEventID 缺省时自动生成全局唯一值。
type Params struct {
	ID          ident.OrderID
	Symbol      ident.Symbol
	Side        Side
	Type        Type
	Quantity    decimal.Decimal
	Price       *decimal.Decimal
	Label       string
	TimeInForce TimeInForce
	Expiry      *time.Time
	Timestamp   time.Time
	InitEventID uuid.UUID
}

// New 构造订单并完成全部静态校验：数量必须为正，方向/类型/有效期
// 必须已知，带价类型必须且仅其必须携带价格，GTD 必须携带过期时间。
// 成功后历史中恰有一条合成的 Initialized 事件；失败不产生任何实例。
func New(p Params) (*Order, error) {
	if p.ID == "" {
		return nil, fmt.Errorf("order: %w", ErrMissingID)
	}
	if p.Symbol.IsZero() {
		return nil, fmt.Errorf("order %s: %w", p.ID, ErrMissingSymbol)
	}
	if err := p.Side.Validate(); err != nil {
		return nil, fmt.Errorf("order %s: %w", p.ID, err)
	}
	if err := p.Type.Validate(); err != nil {
		return nil, fmt.Errorf("order %s: %w", p.ID, err)
	}
	if !p.Quantity.IsPositive() {
		return nil, fmt.Errorf("order %s: quantity %s: %w", p.ID, p.Quantity, ErrInvalidQuantity)
	}
	tif := p.TimeInForce
	if tif == "" {
		tif = TIFDay
	}
	if err := tif.Validate(); err != nil {
		return nil, fmt.Errorf("order %s: %w", p.ID, err)
	}
	if p.Type.RequiresPrice() && p.Price == nil {
		return nil, fmt.Errorf("order %s: type %s: %w", p.ID, p.Type, ErrPriceRequired)
	}
	if !p.Type.RequiresPrice() && p.Price != nil {
		return nil, fmt.Errorf("order %s: type %s: %w", p.ID, p.Type, ErrPriceForbidden)
	}
	if tif == TIFGTD && p.Expiry == nil {
		return nil, fmt.Errorf("order %s: %w", p.ID, ErrExpiryRequired)
	}

	o := &Order{
		id:          p.ID,
		symbol:      p.Symbol,
		side:        p.Side,
		typ:         p.Type,
		quantity:    p.Quantity,
		label:       p.Label,
		tif:         tif,
		initAt:      p.Timestamp.UTC(),
		initEventID: p.InitEventID,
		status:      StatusInitialized,
		filledQty:   decimal.Zero,
		slippage:    decimal.Zero,
	}
	if p.Price != nil {
		v := *p.Price
		o.price = &v
	}
	if p.Expiry != nil {
		v := p.Expiry.UTC()
		o.expiry = &v
	}
	if o.initEventID == uuid.Nil {
		o.initEventID = uuid.New()
	}

	init := Initialized{
		Header: Header{
			OrderID:    o.id,
			EventID:    o.initEventID,
			OccurredAt: o.initAt,
		},
		Symbol:      o.symbol,
		Side:        o.side,
		OrderType:   o.typ,
		Quantity:    o.quantity,
		Label:       o.label,
		TimeInForce: o.tif,
	}
	if o.price != nil {
		v := *o.price
		init.Price = &v
	}
	if o.expiry != nil {
		v := *o.expiry
		init.Expiry = &v
	}
	o.events = append(o.events, init)
	return o, nil
}

// Apply 追加事件并按种类推进派生状态，是订单唯一的变更入口。
// 前置条件：事件订单号必须等于本订单号；订单一旦记录账户标识，
// 后续事件的账户标识必须与之完全一致。任一前置条件失败即返回
// 契约错误，订单不发生任何变化。
func (o *Order) Apply(ev Event) error {
	h := ev.header()
	if h.OrderID != o.id {
		return fmt.Errorf("order %s: event targets %s: %w", o.id, h.OrderID, ErrOrderIDMismatch)
	}
	if o.account != "" && h.AccountID != o.account {
		return fmt.Errorf("order %s: account %s, event carries %q: %w", o.id, o.account, h.AccountID, ErrAccountMismatch)
	}

	o.events = append(o.events, ev)

	switch e := ev.(type) {
	case Submitted:
		o.status = StatusSubmitted
		o.account = e.AccountID
	case Accepted:
		o.status = StatusAccepted
	case Rejected:
		o.status = StatusRejected
		o.completed = true
	case Working:
		o.status = StatusWorking
		o.working = true
		o.brokerIDs = append(o.brokerIDs, e.BrokerOrderID)
	case Modified:
		o.brokerIDs = append(o.brokerIDs, e.BrokerOrderID)
		p := e.Price
		o.price = &p
	case Cancelled:
		o.status = StatusCancelled
		o.working = false
		o.completed = true
	case Expired:
		o.status = StatusExpired
		o.working = false
		o.completed = true
	case Filled:
		o.execIDs = append(o.execIDs, e.ExecutionID)
		o.execTickets = append(o.execTickets, e.ExecutionTicket)
		o.filledQty = e.FilledQty
		t := e.FilledAt.UTC()
		o.filledAt = &t
		ap := e.AvgPrice
		o.avgPrice = &ap
		o.updateSlippage()
		o.updateFillStatus()
	case Initialized, CancelReject:
		// 仅入历史。
	}
	return nil
}

// updateFillStatus 由累计成交量与委托量的全序关系推导成交状态。
func (o *Order) updateFillStatus() {
	switch o.filledQty.Cmp(o.quantity) {
	case -1:
		o.status = StatusPartiallyFilled
	case 0:
		o.status = StatusFilled
		o.working = false
		o.completed = true
	case 1:
		o.status = StatusOverFilled
	}
}

// updateSlippage 按方向符号约定重算滑点：买单为均价减委托价，
// 卖单为委托价减均价。非带价类型滑点恒为零。
func (o *Order) updateSlippage() {
	if !o.typ.RequiresPrice() || o.price == nil || o.avgPrice == nil {
		return
	}
	switch o.side {
	case SideBuy:
		o.slippage = o.avgPrice.Sub(*o.price)
	case SideSell:
		o.slippage = o.price.Sub(*o.avgPrice)
	}
	// 数值为零时统一成规范零值，避免 0.00 之类的标度残留。
	if o.slippage.IsZero() {
		o.slippage = decimal.Zero
	}
}

func (o *Order) ID() ident.OrderID        { return o.id }
func (o *Order) Symbol() ident.Symbol     { return o.symbol }
func (o *Order) Side() Side               { return o.side }
func (o *Order) Type() Type               { return o.typ }
func (o *Order) Quantity() decimal.Decimal { return o.quantity }
func (o *Order) TimeInForce() TimeInForce { return o.tif }
func (o *Order) Status() Status           { return o.status }

// Label 返回人类可读标签；未设置时 ok 为 false。
func (o *Order) Label() (string, bool) { return o.label, o.label != "" }

// Price 返回当前委托价（限价/触发价）；非带价类型 ok 为 false。
func (o *Order) Price() (decimal.Decimal, bool) {
	if o.price == nil {
		return decimal.Decimal{}, false
	}
	return *o.price, true
}

// Expiry 返回过期时间；未设置时 ok 为 false。
func (o *Order) Expiry() (time.Time, bool) {
	if o.expiry == nil {
		return time.Time{}, false
	}
	return *o.expiry, true
}

// AccountID 返回提交回报记录的账户标识；尚未提交时 ok 为 false。
func (o *Order) AccountID() (ident.AccountID, bool) {
	return o.account, o.account != ""
}

// BrokerOrderID 返回当前券商路由标识（历史中最新一条）。
func (o *Order) BrokerOrderID() (ident.BrokerOrderID, bool) {
	if len(o.brokerIDs) == 0 {
		return "", false
	}
	return o.brokerIDs[len(o.brokerIDs)-1], true
}

// BrokerOrderIDs 返回路由标识历史的副本，追加序即回报序。
func (o *Order) BrokerOrderIDs() []ident.BrokerOrderID {
	return append([]ident.BrokerOrderID(nil), o.brokerIDs...)
}

func (o *Order) FilledQuantity() decimal.Decimal { return o.filledQty }

// FilledAt 返回最近一次成交时间；尚无成交时 ok 为 false。
func (o *Order) FilledAt() (time.Time, bool) {
	if o.filledAt == nil {
		return time.Time{}, false
	}
	return *o.filledAt, true
}

// AvgFillPrice 返回平均成交价；尚无成交时 ok 为 false。
func (o *Order) AvgFillPrice() (decimal.Decimal, bool) {
	if o.avgPrice == nil {
		return decimal.Decimal{}, false
	}
	return *o.avgPrice, true
}

func (o *Order) Slippage() decimal.Decimal { return o.slippage }

// ExecutionIDs 返回成交标识列表副本，允许重复，追加序即回报序。
func (o *Order) ExecutionIDs() []ident.ExecutionID {
	return append([]ident.ExecutionID(nil), o.execIDs...)
}

// ExecutionTickets 返回成交回执列表副本。
func (o *Order) ExecutionTickets() []ident.ExecutionTicket {
	return append([]ident.ExecutionTicket(nil), o.execTickets...)
}

func (o *Order) IsWorking() bool   { return o.working }
func (o *Order) IsCompleted() bool { return o.completed }

func (o *Order) InitializedAt() time.Time { return o.initAt }
func (o *Order) InitEventID() uuid.UUID   { return o.initEventID }

// Events 返回事件历史副本，首条恒为 Initialized。
func (o *Order) Events() []Event {
	return append([]Event(nil), o.events...)
}

// LastEvent 返回最近追加的事件。
func (o *Order) LastEvent() Event { return o.events[len(o.events)-1] }

// EventCount 返回历史长度，含合成的初始化事件。
func (o *Order) EventCount() int { return len(o.events) }

// Equal 订单相等仅取决于订单号。
func (o *Order) Equal(other *Order) bool {
	return other != nil && o.id == other.id
}

func (o *Order) String() string {
	price := "none"
	if o.price != nil {
		price = o.price.String()
	}
	label := ""
	if o.label != "" {
		label = " label=" + o.label
	}
	return fmt.Sprintf("Order(%s %s %s %s qty=%s price=%s %s status=%s%s)",
		o.id, o.side, o.typ, o.symbol, o.quantity, price, o.tif, o.status, label)
}
