package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"order-engine-go/clock"
	"order-engine-go/ident"
	"order-engine-go/infrastructure/alert"
	"order-engine-go/infrastructure/monitor"
	"order-engine-go/order"
)

var testTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func buildOrder(id ident.OrderID) (*order.Order, error) {
	price := dec("100")
	return order.New(order.Params{
		ID:        id,
		Symbol:    ident.MustParseSymbol("AUDUSD.FXCM"),
		Side:      order.SideBuy,
		Type:      order.TypeLimit,
		Quantity:  dec("100000"),
		Price:     &price,
		Timestamp: testTime,
	})
}

func newTestOrder(t *testing.T, id ident.OrderID) *order.Order {
	t.Helper()
	o, err := buildOrder(id)
	if err != nil {
		t.Fatalf("construct order %s: %v", id, err)
	}
	return o
}

func newTestAtomic(t *testing.T) *order.AtomicOrder {
	t.Helper()
	factory, err := order.NewOrderFactory(clock.NewTest(testTime), "001", "001")
	if err != nil {
		t.Fatalf("construct factory: %v", err)
	}
	a, err := factory.AtomicMarket(ident.MustParseSymbol("AUDUSD.FXCM"), order.SideBuy, dec("100000"), dec("99"), nil, "")
	if err != nil {
		t.Fatalf("construct atomic order: %v", err)
	}
	return a
}

func header(id ident.OrderID) order.Header {
	return order.Header{
		OrderID:    id,
		AccountID:  "FXCM-100",
		EventID:    uuid.New(),
		OccurredAt: testTime,
	}
}

func fillEvent(id ident.OrderID, execSeq string, filled, avg decimal.Decimal) order.Filled {
	return order.Filled{
		Header:          header(id),
		ExecutionID:     ident.ExecutionID("E-" + execSeq),
		ExecutionTicket: ident.ExecutionTicket("ET-" + execSeq),
		FilledQty:       filled,
		AvgPrice:        avg,
		FilledAt:        testTime,
	}
}

func TestRegisterAndGet(t *testing.T) {
	l := New(nil, nil, nil)

	o := newTestOrder(t, "O-1")
	if err := l.Register(o); err != nil {
		t.Fatalf("register: %v", err)
	}

	got, ok := l.Get("O-1")
	if !ok {
		t.Fatal("order not found after register")
	}
	if !got.Equal(o) {
		t.Fatalf("got %s, want %s", got.ID(), o.ID())
	}
	if l.Len() != 1 {
		t.Fatalf("len = %d, want 1", l.Len())
	}
}

func TestRegisterDuplicate(t *testing.T) {
	l := New(nil, nil, nil)

	if err := l.Register(newTestOrder(t, "O-1")); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := l.Register(newTestOrder(t, "O-1"))
	if !errors.Is(err, ErrDuplicateOrder) {
		t.Fatalf("duplicate register error = %v, want ErrDuplicateOrder", err)
	}
	if l.Len() != 1 {
		t.Fatalf("len after duplicate = %d, want 1", l.Len())
	}
}

func TestRegisterNil(t *testing.T) {
	l := New(nil, nil, nil)
	if err := l.Register(nil); !errors.Is(err, ErrNilOrder) {
		t.Fatalf("nil register error = %v, want ErrNilOrder", err)
	}
	if err := l.RegisterAtomic(nil); !errors.Is(err, ErrNilOrder) {
		t.Fatalf("nil atomic register error = %v, want ErrNilOrder", err)
	}
}

func TestRegisterAtomic(t *testing.T) {
	l := New(nil, nil, nil)

	a := newTestAtomic(t)
	if err := l.RegisterAtomic(a); err != nil {
		t.Fatalf("register atomic: %v", err)
	}

	if _, ok := l.GetAtomic(a.ID()); !ok {
		t.Fatal("atomic order not found after register")
	}
	for _, child := range a.Orders() {
		if _, ok := l.Get(child.ID()); !ok {
			t.Fatalf("child %s not registered", child.ID())
		}
	}
	if l.Len() != len(a.Orders()) {
		t.Fatalf("len = %d, want %d", l.Len(), len(a.Orders()))
	}
}

func TestRegisterAtomicRejectsPartialOverlap(t *testing.T) {
	l := New(nil, nil, nil)

	a := newTestAtomic(t)
	// 预先占用入场单号，组合登记必须整体失败
	if err := l.Register(newTestOrder(t, a.Entry().ID())); err != nil {
		t.Fatalf("register blocker: %v", err)
	}

	err := l.RegisterAtomic(a)
	if !errors.Is(err, ErrDuplicateOrder) {
		t.Fatalf("overlapping atomic register error = %v, want ErrDuplicateOrder", err)
	}
	if _, ok := l.GetAtomic(a.ID()); ok {
		t.Fatal("atomic order should not be registered")
	}
	if _, ok := l.Get(a.StopLoss().ID()); ok {
		t.Fatal("stop-loss child should not be registered")
	}
}

func TestRegisterAtomicDuplicateComposite(t *testing.T) {
	l := New(nil, nil, nil)

	if err := l.RegisterAtomic(newTestAtomic(t)); err != nil {
		t.Fatalf("first atomic register: %v", err)
	}
	err := l.RegisterAtomic(newTestAtomic(t))
	if !errors.Is(err, ErrDuplicateAtomic) {
		t.Fatalf("duplicate atomic register error = %v, want ErrDuplicateAtomic", err)
	}
}

func TestApplyRoutesToOrder(t *testing.T) {
	l := New(nil, nil, nil)
	o := newTestOrder(t, "O-1")
	if err := l.Register(o); err != nil {
		t.Fatalf("register: %v", err)
	}

	events := []order.Event{
		order.Submitted{Header: header("O-1")},
		order.Accepted{Header: header("O-1")},
		order.Working{Header: header("O-1"), BrokerOrderID: "B-1"},
	}
	for _, ev := range events {
		if err := l.Apply(ev); err != nil {
			t.Fatalf("apply %s: %v", order.Kind(ev), err)
		}
	}

	if o.Status() != order.StatusWorking {
		t.Fatalf("status = %s, want WORKING", o.Status())
	}
	if l.WorkingCount() != 1 {
		t.Fatalf("working count = %d, want 1", l.WorkingCount())
	}
	if l.CompletedCount() != 0 {
		t.Fatalf("completed count = %d, want 0", l.CompletedCount())
	}
}

func TestApplyUnknownOrder(t *testing.T) {
	l := New(nil, nil, nil)

	err := l.Apply(order.Submitted{Header: header("O-404")})
	if !errors.Is(err, ErrUnknownOrder) {
		t.Fatalf("unknown order error = %v, want ErrUnknownOrder", err)
	}
}

func TestApplyContractViolation(t *testing.T) {
	l := New(nil, nil, nil)
	o := newTestOrder(t, "O-1")
	if err := l.Register(o); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := l.Apply(order.Submitted{Header: header("O-1")}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// 账户不一致的事件必须拒绝且订单不变
	h := header("O-1")
	h.AccountID = "OTHER-ACCOUNT"
	err := l.Apply(order.Accepted{Header: h})
	if !errors.Is(err, order.ErrAccountMismatch) {
		t.Fatalf("mismatch error = %v, want ErrAccountMismatch", err)
	}
	if o.Status() != order.StatusSubmitted {
		t.Fatalf("status after rejected event = %s, want SUBMITTED", o.Status())
	}
	if o.EventCount() != 2 {
		t.Fatalf("event count = %d, want 2", o.EventCount())
	}
}

func TestApplyTerminalUpdatesCounts(t *testing.T) {
	l := New(monitor.New(monitor.DefaultConfig()), nil, nil)
	o := newTestOrder(t, "O-1")
	if err := l.Register(o); err != nil {
		t.Fatalf("register: %v", err)
	}

	steps := []order.Event{
		order.Submitted{Header: header("O-1")},
		order.Working{Header: header("O-1"), BrokerOrderID: "B-1"},
		fillEvent("O-1", "1", dec("100000"), dec("100")),
	}
	for _, ev := range steps {
		if err := l.Apply(ev); err != nil {
			t.Fatalf("apply %s: %v", order.Kind(ev), err)
		}
	}

	if o.Status() != order.StatusFilled {
		t.Fatalf("status = %s, want FILLED", o.Status())
	}
	if l.WorkingCount() != 0 {
		t.Fatalf("working count = %d, want 0", l.WorkingCount())
	}
	if l.CompletedCount() != 1 {
		t.Fatalf("completed count = %d, want 1", l.CompletedCount())
	}
}

func TestApplyPostTerminalAlerts(t *testing.T) {
	mock := alert.NewMockChannel("mock")
	alerts := alert.NewManager([]alert.Channel{mock}, time.Minute)
	l := New(nil, alerts, nil)

	o := newTestOrder(t, "O-1")
	if err := l.Register(o); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := l.Apply(order.Cancelled{Header: header("O-1")}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// 终态后的回报照常入账，但要触发告警
	if err := l.Apply(order.Accepted{Header: header("O-1")}); err != nil {
		t.Fatalf("post-terminal apply: %v", err)
	}
	if o.EventCount() != 3 {
		t.Fatalf("event count = %d, want 3", o.EventCount())
	}

	if mock.Count() != 1 {
		t.Fatalf("alert count = %d, want 1", mock.Count())
	}
	got := mock.GetAlerts()[0]
	if got.Kind != "post_terminal" {
		t.Fatalf("alert kind = %s, want post_terminal", got.Kind)
	}
	if got.OrderID != "O-1" {
		t.Fatalf("alert order = %s, want O-1", got.OrderID)
	}
}

func TestApplyOverFillAlerts(t *testing.T) {
	mock := alert.NewMockChannel("mock")
	alerts := alert.NewManager([]alert.Channel{mock}, time.Minute)
	l := New(monitor.New(monitor.DefaultConfig()), alerts, nil)

	o := newTestOrder(t, "O-1")
	if err := l.Register(o); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := l.Apply(fillEvent("O-1", "1", dec("100500"), dec("100"))); err != nil {
		t.Fatalf("over-fill apply: %v", err)
	}

	if o.Status() != order.StatusOverFilled {
		t.Fatalf("status = %s, want OVER_FILLED", o.Status())
	}
	if mock.Count() != 1 {
		t.Fatalf("alert count = %d, want 1", mock.Count())
	}
	got := mock.GetAlerts()[0]
	if got.Kind != "over_fill" {
		t.Fatalf("alert kind = %s, want over_fill", got.Kind)
	}
	if got.Level != "CRITICAL" {
		t.Fatalf("alert level = %s, want CRITICAL", got.Level)
	}
}

func TestSinkReceivesLifecycleEvents(t *testing.T) {
	var seen []string
	sink := func(event string, fields map[string]interface{}) {
		seen = append(seen, event)
	}
	l := New(nil, nil, sink)

	o := newTestOrder(t, "O-1")
	if err := l.Register(o); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := l.Apply(order.Submitted{Header: header("O-1")}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	want := []string{"order_registered", "order_update"}
	if len(seen) != len(want) {
		t.Fatalf("sink events = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("sink event %d = %s, want %s", i, seen[i], want[i])
		}
	}
}

func TestSnapshotSorted(t *testing.T) {
	l := New(nil, nil, nil)
	for _, id := range []ident.OrderID{"O-3", "O-1", "O-2"} {
		if err := l.Register(newTestOrder(t, id)); err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}

	snap := l.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("snapshot len = %d, want 3", len(snap))
	}
	want := []ident.OrderID{"O-1", "O-2", "O-3"}
	for i, o := range snap {
		if o.ID() != want[i] {
			t.Fatalf("snapshot[%d] = %s, want %s", i, o.ID(), want[i])
		}
	}
}
