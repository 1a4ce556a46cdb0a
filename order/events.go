package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"order-engine-go/ident"
)

// Header 所有订单事件共有的标识字段。AccountID 在合成的初始化
// 事件上为空，其余事件由上游回报填充。
type Header struct {
	OrderID    ident.OrderID
	AccountID  ident.AccountID
	EventID    uuid.UUID
	OccurredAt time.Time
}

// header 返回公共字段，同时充当联合体的封闭标记：
// 可应用的事件仅限本包定义的具体类型。
func (h Header) header() Header { return h }

// Event 订单事件联合体。Apply 按具体类型穷举分派。
type Event interface {
	header() Header
}

// Initialized 构造时合成的首个事件，快照全部静态属性。
type Initialized struct {
	Header
	Symbol      ident.Symbol
	Side        Side
	OrderType   Type
	Quantity    decimal.Decimal
	Price       *decimal.Decimal
	Label       string
	TimeInForce TimeInForce
	Expiry      *time.Time
}

// Submitted 订单已报出，账户标识在 Header 中回报。
type Submitted struct {
	Header
}

// Accepted 券商已接受。
type Accepted struct {
	Header
}

// Rejected 券商拒绝，Reason 为回报的拒绝原因。
type Rejected struct {
	Header
	Reason string
}

// Working 订单已在场内挂出，携带券商路由标识。
type Working struct {
	Header
	BrokerOrderID ident.BrokerOrderID
}

// Modified 改单回报：新的路由标识与修改后的价格。
type Modified struct {
	Header
	BrokerOrderID ident.BrokerOrderID
	Price         decimal.Decimal
}

// Cancelled 订单已撤销。
type Cancelled struct {
	Header
}

// CancelReject 撤单请求被拒。只入历史，不改变订单任何派生字段。
type CancelReject struct {
	Header
	Response string
	Reason   string
}

// Expired 订单已过期。
type Expired struct {
	Header
}

// Filled 成交回报。FilledQty 为累计成交量；部分/全部/超额成交
// 由数量关系推导，不依赖事件种类区分。
type Filled struct {
	Header
	ExecutionID     ident.ExecutionID
	ExecutionTicket ident.ExecutionTicket
	FilledQty       decimal.Decimal
	AvgPrice        decimal.Decimal
	FilledAt        time.Time
}

// EventOrderID 返回事件指向的订单号。
func EventOrderID(ev Event) ident.OrderID {
	return ev.header().OrderID
}

// EventTime 返回事件发生时间。
func EventTime(ev Event) time.Time {
	return ev.header().OccurredAt
}

// Kind 返回事件种类名，用作日志与指标标签。
func Kind(ev Event) string {
	switch ev.(type) {
	case Initialized:
		return "initialized"
	case Submitted:
		return "submitted"
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Working:
		return "working"
	case Modified:
		return "modified"
	case Cancelled:
		return "cancelled"
	case CancelReject:
		return "cancel_reject"
	case Expired:
		return "expired"
	case Filled:
		return "filled"
	default:
		return "unknown"
	}
}
