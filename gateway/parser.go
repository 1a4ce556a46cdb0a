package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"order-engine-go/ident"
	"order-engine-go/order"
)

var (
	// ErrUnknownKind 帧携带未知的事件种类。
	ErrUnknownKind = errors.New("unknown event kind")
	// ErrMissingField 帧缺少该事件种类的必填字段。
	ErrMissingField = errors.New("missing field")
)

// Frame 回报帧的线格式。字段按事件种类选用，数量与价格一律用
// 字符串承载以保全精度，时间为 Unix 毫秒。
type Frame struct {
	Event   string `json:"e"`             // 事件种类
	OrderID string `json:"oid"`           // 订单号
	Account string `json:"aid,omitempty"` // 账户标识
	EventID string `json:"eid,omitempty"` // 事件标识，缺省时本地生成
	TS      int64  `json:"ts"`            // 事件时间

	BrokerOrderID string `json:"boid,omitempty"` // working / modified
	Price         string `json:"px,omitempty"`   // modified
	Reason        string `json:"rsn,omitempty"`  // rejected / cancel_reject
	Response      string `json:"resp,omitempty"` // cancel_reject

	ExecutionID     string `json:"xid,omitempty"` // filled
	ExecutionTicket string `json:"tkt,omitempty"` // filled
	FilledQty       string `json:"qty,omitempty"` // filled（累计成交量）
	AvgPrice        string `json:"avg,omitempty"` // filled
	FilledAt        int64  `json:"at,omitempty"`  // filled，缺省取 ts
}

// ParseFrame 解析单个回报帧为订单事件。合成的 initialized 事件
// 只在本地产生，线上的帧出现该种类同样按未知种类拒绝。
func ParseFrame(raw []byte) (order.Event, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if f.OrderID == "" {
		return nil, fmt.Errorf("frame %q: oid: %w", f.Event, ErrMissingField)
	}

	eventID := uuid.Nil
	if f.EventID != "" {
		parsed, err := uuid.Parse(f.EventID)
		if err != nil {
			return nil, fmt.Errorf("frame %q: eid %q: %w", f.Event, f.EventID, err)
		}
		eventID = parsed
	}
	if eventID == uuid.Nil {
		eventID = uuid.New()
	}

	h := order.Header{
		OrderID:    ident.OrderID(f.OrderID),
		AccountID:  ident.AccountID(f.Account),
		EventID:    eventID,
		OccurredAt: time.UnixMilli(f.TS).UTC(),
	}

	switch f.Event {
	case "submitted":
		return order.Submitted{Header: h}, nil
	case "accepted":
		return order.Accepted{Header: h}, nil
	case "rejected":
		return order.Rejected{Header: h, Reason: f.Reason}, nil
	case "working":
		if f.BrokerOrderID == "" {
			return nil, fmt.Errorf("frame working: boid: %w", ErrMissingField)
		}
		return order.Working{Header: h, BrokerOrderID: ident.BrokerOrderID(f.BrokerOrderID)}, nil
	case "modified":
		if f.BrokerOrderID == "" {
			return nil, fmt.Errorf("frame modified: boid: %w", ErrMissingField)
		}
		px, err := decimal.NewFromString(f.Price)
		if err != nil {
			return nil, fmt.Errorf("frame modified: px %q: %w", f.Price, err)
		}
		return order.Modified{Header: h, BrokerOrderID: ident.BrokerOrderID(f.BrokerOrderID), Price: px}, nil
	case "cancelled":
		return order.Cancelled{Header: h}, nil
	case "cancel_reject":
		return order.CancelReject{Header: h, Response: f.Response, Reason: f.Reason}, nil
	case "expired":
		return order.Expired{Header: h}, nil
	case "filled":
		if f.ExecutionID == "" {
			return nil, fmt.Errorf("frame filled: xid: %w", ErrMissingField)
		}
		qty, err := decimal.NewFromString(f.FilledQty)
		if err != nil {
			return nil, fmt.Errorf("frame filled: qty %q: %w", f.FilledQty, err)
		}
		avg, err := decimal.NewFromString(f.AvgPrice)
		if err != nil {
			return nil, fmt.Errorf("frame filled: avg %q: %w", f.AvgPrice, err)
		}
		filledAt := h.OccurredAt
		if f.FilledAt > 0 {
			filledAt = time.UnixMilli(f.FilledAt).UTC()
		}
		return order.Filled{
			Header:          h,
			ExecutionID:     ident.ExecutionID(f.ExecutionID),
			ExecutionTicket: ident.ExecutionTicket(f.ExecutionTicket),
			FilledQty:       qty,
			AvgPrice:        avg,
			FilledAt:        filledAt,
		}, nil
	default:
		return nil, fmt.Errorf("frame %q: %w", f.Event, ErrUnknownKind)
	}
}
