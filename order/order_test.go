package order

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"order-engine-go/ident"
)

var (
	testSymbol  = ident.MustParseSymbol("AUDUSD.FXCM")
	testTime    = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	testAccount = ident.AccountID("FXCM-02851908")
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// newLimitOrder 构造一张合法的 BUY LIMIT 测试订单。
func newLimitOrder(t *testing.T, id ident.OrderID, qty, price string) *Order {
	t.Helper()
	o, err := New(Params{
		ID:        id,
		Symbol:    testSymbol,
		Side:      SideBuy,
		Type:      TypeLimit,
		Quantity:  dec(qty),
		Price:     decPtr(price),
		Timestamp: testTime,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func header(id ident.OrderID) Header {
	return Header{
		OrderID:    id,
		AccountID:  testAccount,
		EventID:    uuid.New(),
		OccurredAt: testTime,
	}
}

func fillEvent(id ident.OrderID, filled, avg string) Filled {
	return Filled{
		Header:          header(id),
		ExecutionID:     "E-1",
		ExecutionTicket: "ET-1",
		FilledQty:       dec(filled),
		AvgPrice:        dec(avg),
		FilledAt:        testTime,
	}
}

func TestNewValidation(t *testing.T) {
	base := func() Params {
		return Params{
			ID:        "O-1",
			Symbol:    testSymbol,
			Side:      SideBuy,
			Type:      TypeLimit,
			Quantity:  dec("100000"),
			Price:     decPtr("1.00000"),
			Timestamp: testTime,
		}
	}

	cases := []struct {
		name    string
		mutate  func(*Params)
		wantErr error
	}{
		{"missing id", func(p *Params) { p.ID = "" }, ErrMissingID},
		{"zero symbol", func(p *Params) { p.Symbol = ident.Symbol{} }, ErrMissingSymbol},
		{"empty side", func(p *Params) { p.Side = "" }, ErrUnknownSide},
		{"bogus side", func(p *Params) { p.Side = "SIDEWAYS" }, ErrUnknownSide},
		{"bogus type", func(p *Params) { p.Type = "TWAP" }, ErrUnknownType},
		{"zero quantity", func(p *Params) { p.Quantity = decimal.Zero }, ErrInvalidQuantity},
		{"negative quantity", func(p *Params) { p.Quantity = dec("-1") }, ErrInvalidQuantity},
		{"limit without price", func(p *Params) { p.Price = nil }, ErrPriceRequired},
		{"stop market without price", func(p *Params) { p.Type = TypeStopMarket; p.Price = nil }, ErrPriceRequired},
		{"stop limit without price", func(p *Params) { p.Type = TypeStopLimit; p.Price = nil }, ErrPriceRequired},
		{"mit without price", func(p *Params) { p.Type = TypeMarketIfTouched; p.Price = nil }, ErrPriceRequired},
		{"market with price", func(p *Params) { p.Type = TypeMarket }, ErrPriceForbidden},
		{"bogus tif", func(p *Params) { p.TimeInForce = "GTX" }, ErrUnknownTIF},
		{"gtd without expiry", func(p *Params) { p.TimeInForce = TIFGTD }, ErrExpiryRequired},
	}

	for _, tc := range cases {
		p := base()
		tc.mutate(&p)
		if _, err := New(p); !errors.Is(err, tc.wantErr) {
			t.Fatalf("%s: got %v, want %v", tc.name, err, tc.wantErr)
		}
	}
}

func TestNewInitialState(t *testing.T) {
	o := newLimitOrder(t, "O-1", "100000", "1.00000")

	if o.Status() != StatusInitialized {
		t.Fatalf("status = %s", o.Status())
	}
	if !o.FilledQuantity().IsZero() {
		t.Fatalf("filled quantity = %s", o.FilledQuantity())
	}
	if o.IsWorking() || o.IsCompleted() {
		t.Fatalf("fresh order reported working=%v completed=%v", o.IsWorking(), o.IsCompleted())
	}
	if got := o.Slippage().String(); got != "0" {
		t.Fatalf("initial slippage displays %q", got)
	}
	if o.EventCount() != 1 {
		t.Fatalf("event count = %d, want 1", o.EventCount())
	}
	init, ok := o.LastEvent().(Initialized)
	if !ok {
		t.Fatalf("last event is %T", o.LastEvent())
	}
	if init.OrderID != o.ID() || init.OrderType != TypeLimit || !init.Quantity.Equal(o.Quantity()) {
		t.Fatalf("init event mismatch: %+v", init)
	}
	if init.EventID == uuid.Nil || init.EventID != o.InitEventID() {
		t.Fatalf("init event id not recorded: %v vs %v", init.EventID, o.InitEventID())
	}
	if o.TimeInForce() != TIFDay {
		t.Fatalf("default tif = %s, want DAY", o.TimeInForce())
	}
	if _, ok := o.AccountID(); ok {
		t.Fatalf("fresh order has account id")
	}
	if _, ok := o.BrokerOrderID(); ok {
		t.Fatalf("fresh order has broker order id")
	}
	if _, ok := o.AvgFillPrice(); ok {
		t.Fatalf("fresh order has avg fill price")
	}
	if _, ok := o.FilledAt(); ok {
		t.Fatalf("fresh order has filled timestamp")
	}
}

func TestNewKeepsSuppliedInitEventID(t *testing.T) {
	want := uuid.New()
	o, err := New(Params{
		ID:          "O-1",
		Symbol:      testSymbol,
		Side:        SideSell,
		Type:        TypeMarket,
		Quantity:    dec("5"),
		Timestamp:   testTime,
		InitEventID: want,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if o.InitEventID() != want {
		t.Fatalf("init event id = %v, want %v", o.InitEventID(), want)
	}
}

func TestApplyLifecycle(t *testing.T) {
	o := newLimitOrder(t, "O-1", "100000", "1.00000")

	if err := o.Apply(Submitted{Header: header("O-1")}); err != nil {
		t.Fatalf("apply submitted: %v", err)
	}
	if o.Status() != StatusSubmitted {
		t.Fatalf("status = %s", o.Status())
	}
	if acct, ok := o.AccountID(); !ok || acct != testAccount {
		t.Fatalf("account = %q ok=%v", acct, ok)
	}

	if err := o.Apply(Accepted{Header: header("O-1")}); err != nil {
		t.Fatalf("apply accepted: %v", err)
	}
	if o.Status() != StatusAccepted {
		t.Fatalf("status = %s", o.Status())
	}

	if err := o.Apply(Working{Header: header("O-1"), BrokerOrderID: "B-1"}); err != nil {
		t.Fatalf("apply working: %v", err)
	}
	if o.Status() != StatusWorking || !o.IsWorking() {
		t.Fatalf("status = %s working=%v", o.Status(), o.IsWorking())
	}
	if id, ok := o.BrokerOrderID(); !ok || id != "B-1" {
		t.Fatalf("broker id = %q ok=%v", id, ok)
	}

	if err := o.Apply(fillEvent("O-1", "100000", "1.00001")); err != nil {
		t.Fatalf("apply fill: %v", err)
	}
	if o.Status() != StatusFilled {
		t.Fatalf("status = %s", o.Status())
	}
	if o.IsWorking() || !o.IsCompleted() {
		t.Fatalf("filled order working=%v completed=%v", o.IsWorking(), o.IsCompleted())
	}
	if avg, ok := o.AvgFillPrice(); !ok || avg.String() != "1.00001" {
		t.Fatalf("avg fill price = %v ok=%v", avg, ok)
	}
	if at, ok := o.FilledAt(); !ok || !at.Equal(testTime) {
		t.Fatalf("filled at = %v ok=%v", at, ok)
	}
	if o.EventCount() != 5 {
		t.Fatalf("event count = %d, want 5", o.EventCount())
	}
}

func TestApplyTerminalOutcomes(t *testing.T) {
	cases := []struct {
		name string
		ev   Event
		want Status
	}{
		{"rejected", Rejected{Header: header("O-1"), Reason: "insufficient margin"}, StatusRejected},
		{"cancelled", Cancelled{Header: header("O-1")}, StatusCancelled},
		{"expired", Expired{Header: header("O-1")}, StatusExpired},
	}
	for _, tc := range cases {
		o := newLimitOrder(t, "O-1", "100", "10")
		if err := o.Apply(tc.ev); err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if o.Status() != tc.want {
			t.Fatalf("%s: status = %s, want %s", tc.name, o.Status(), tc.want)
		}
		if !o.IsCompleted() {
			t.Fatalf("%s: completed = false", tc.name)
		}
		if o.IsWorking() {
			t.Fatalf("%s: still working", tc.name)
		}
	}
}

func TestApplyCancelRejectAppendsOnly(t *testing.T) {
	o := newLimitOrder(t, "O-1", "100", "10")
	if err := o.Apply(Working{Header: header("O-1"), BrokerOrderID: "B-1"}); err != nil {
		t.Fatalf("apply working: %v", err)
	}

	before := o.Status()
	if err := o.Apply(CancelReject{Header: header("O-1"), Response: "REJECT_RESPONSE", Reason: "ORDER_DOES_NOT_EXIST"}); err != nil {
		t.Fatalf("apply cancel reject: %v", err)
	}
	if o.Status() != before {
		t.Fatalf("status moved to %s on cancel reject", o.Status())
	}
	if !o.IsWorking() {
		t.Fatalf("working flag cleared by cancel reject")
	}
	if o.EventCount() != 3 {
		t.Fatalf("event count = %d, want 3", o.EventCount())
	}
	if _, ok := o.LastEvent().(CancelReject); !ok {
		t.Fatalf("last event is %T", o.LastEvent())
	}
}

func TestApplyModified(t *testing.T) {
	o := newLimitOrder(t, "O-1", "100", "10")
	if err := o.Apply(Working{Header: header("O-1"), BrokerOrderID: "B-1"}); err != nil {
		t.Fatalf("apply working: %v", err)
	}
	if err := o.Apply(Modified{Header: header("O-1"), BrokerOrderID: "B-2", Price: dec("11")}); err != nil {
		t.Fatalf("apply modified: %v", err)
	}

	if o.Status() != StatusWorking {
		t.Fatalf("status moved to %s on modify", o.Status())
	}
	if p, _ := o.Price(); p.String() != "11" {
		t.Fatalf("price = %s after modify", p)
	}
	if id, _ := o.BrokerOrderID(); id != "B-2" {
		t.Fatalf("current broker id = %s", id)
	}
	ids := o.BrokerOrderIDs()
	if len(ids) != 2 || ids[0] != "B-1" || ids[1] != "B-2" {
		t.Fatalf("broker id history = %v", ids)
	}
}

func TestFillStatusBoundary(t *testing.T) {
	cases := []struct {
		filled        string
		want          Status
		wantCompleted bool
		wantWorking   bool
	}{
		{"99999", StatusPartiallyFilled, false, true},
		{"100000", StatusFilled, true, false},
		{"100001", StatusOverFilled, false, true},
	}
	for _, tc := range cases {
		o := newLimitOrder(t, "O-1", "100000", "1.00000")
		if err := o.Apply(Working{Header: header("O-1"), BrokerOrderID: "B-1"}); err != nil {
			t.Fatalf("apply working: %v", err)
		}
		if err := o.Apply(fillEvent("O-1", tc.filled, "1.00000")); err != nil {
			t.Fatalf("apply fill %s: %v", tc.filled, err)
		}
		if o.Status() != tc.want {
			t.Fatalf("filled=%s: status = %s, want %s", tc.filled, o.Status(), tc.want)
		}
		if o.IsCompleted() != tc.wantCompleted {
			t.Fatalf("filled=%s: completed = %v", tc.filled, o.IsCompleted())
		}
		if o.IsWorking() != tc.wantWorking {
			t.Fatalf("filled=%s: working = %v", tc.filled, o.IsWorking())
		}
	}
}

func TestSlippageSignConvention(t *testing.T) {
	// BUY LIMIT @100 成交均价 101 → 滑点 +1。
	buy := newLimitOrder(t, "O-1", "10", "100")
	if err := buy.Apply(fillEvent("O-1", "10", "101")); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := buy.Slippage().String(); got != "1" {
		t.Fatalf("buy slippage = %s, want 1", got)
	}

	// SELL LIMIT @100 成交均价 99 → 滑点 +1。
	sell, err := New(Params{
		ID:        "O-2",
		Symbol:    testSymbol,
		Side:      SideSell,
		Type:      TypeLimit,
		Quantity:  dec("10"),
		Price:     decPtr("100"),
		Timestamp: testTime,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := sell.Apply(fillEvent("O-2", "10", "99")); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := sell.Slippage().String(); got != "1" {
		t.Fatalf("sell slippage = %s, want 1", got)
	}
}

func TestSlippageZeroIsCanonical(t *testing.T) {
	o := newLimitOrder(t, "O-1", "10", "100.00")
	if err := o.Apply(fillEvent("O-1", "10", "100.0")); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !o.Slippage().Equal(decimal.Zero) {
		t.Fatalf("slippage %s != 0", o.Slippage())
	}
	if got, want := o.Slippage().String(), decimal.Zero.String(); got != want {
		t.Fatalf("slippage displays %q, fresh zero displays %q", got, want)
	}
}

func TestSlippageUntouchedForMarketOrders(t *testing.T) {
	o, err := New(Params{
		ID:        "O-1",
		Symbol:    testSymbol,
		Side:      SideBuy,
		Type:      TypeMarket,
		Quantity:  dec("10"),
		Timestamp: testTime,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := o.Apply(fillEvent("O-1", "10", "105")); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !o.Slippage().IsZero() {
		t.Fatalf("market order slippage = %s", o.Slippage())
	}
}

func TestApplyOrderIDMismatch(t *testing.T) {
	o := newLimitOrder(t, "O-1", "100", "10")

	err := o.Apply(Submitted{Header: header("O-9")})
	if !errors.Is(err, ErrOrderIDMismatch) {
		t.Fatalf("got %v, want ErrOrderIDMismatch", err)
	}
	if o.EventCount() != 1 || o.Status() != StatusInitialized {
		t.Fatalf("order mutated on rejected apply: count=%d status=%s", o.EventCount(), o.Status())
	}
	if _, ok := o.AccountID(); ok {
		t.Fatalf("account recorded on rejected apply")
	}
}

func TestApplyAccountMismatch(t *testing.T) {
	o := newLimitOrder(t, "O-1", "100", "10")
	if err := o.Apply(Submitted{Header: header("O-1")}); err != nil {
		t.Fatalf("apply submitted: %v", err)
	}

	h := header("O-1")
	h.AccountID = "FXCM-999"
	err := o.Apply(Accepted{Header: h})
	if !errors.Is(err, ErrAccountMismatch) {
		t.Fatalf("got %v, want ErrAccountMismatch", err)
	}
	if o.EventCount() != 2 || o.Status() != StatusSubmitted {
		t.Fatalf("order mutated on rejected apply: count=%d status=%s", o.EventCount(), o.Status())
	}
}

func TestEventHistoryOrdering(t *testing.T) {
	o := newLimitOrder(t, "O-1", "100", "10")
	seq := []Event{
		Submitted{Header: header("O-1")},
		Accepted{Header: header("O-1")},
		Working{Header: header("O-1"), BrokerOrderID: "B-1"},
		fillEvent("O-1", "40", "10"),
		fillEvent("O-1", "100", "10"),
	}
	for i, ev := range seq {
		if err := o.Apply(ev); err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}

	if o.EventCount() != len(seq)+1 {
		t.Fatalf("event count = %d, want %d", o.EventCount(), len(seq)+1)
	}
	events := o.Events()
	if _, ok := events[0].(Initialized); !ok {
		t.Fatalf("first event is %T", events[0])
	}
	for i, ev := range seq {
		if Kind(events[i+1]) != Kind(ev) {
			t.Fatalf("event %d out of order: %s vs %s", i+1, Kind(events[i+1]), Kind(ev))
		}
	}

	// 返回的是副本：改写不影响内部历史。
	events[0] = Cancelled{Header: header("O-1")}
	if _, ok := o.Events()[0].(Initialized); !ok {
		t.Fatalf("internal history mutated through returned slice")
	}
}

func TestExecutionListsAllowDuplicates(t *testing.T) {
	o := newLimitOrder(t, "O-1", "100", "10")
	if err := o.Apply(fillEvent("O-1", "40", "10")); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := o.Apply(fillEvent("O-1", "80", "10")); err != nil {
		t.Fatalf("apply: %v", err)
	}

	ids := o.ExecutionIDs()
	tickets := o.ExecutionTickets()
	if len(ids) != 2 || len(tickets) != 2 {
		t.Fatalf("execution lists = %v / %v", ids, tickets)
	}
	if ids[0] != ids[1] {
		t.Fatalf("duplicate execution ids should be preserved: %v", ids)
	}

	ids[0] = "tampered"
	if o.ExecutionIDs()[0] == "tampered" {
		t.Fatalf("internal execution list mutated through returned slice")
	}
}

func TestOrderEquality(t *testing.T) {
	a := newLimitOrder(t, "O-1", "100", "10")
	b := newLimitOrder(t, "O-1", "999", "42")
	c := newLimitOrder(t, "O-2", "100", "10")

	if !a.Equal(b) {
		t.Fatalf("orders with same id not equal")
	}
	if a.Equal(c) {
		t.Fatalf("orders with different ids equal")
	}
	if a.Equal(nil) {
		t.Fatalf("order equal to nil")
	}
	// id 即哈希键：同号订单映射到同一个条目。
	m := map[ident.OrderID]*Order{a.ID(): a}
	if m[b.ID()] != a {
		t.Fatalf("map lookup by id failed")
	}
}
