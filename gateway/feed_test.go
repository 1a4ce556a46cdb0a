package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"order-engine-go/infrastructure/alert"
	"order-engine-go/infrastructure/logger"
	"order-engine-go/order"
)

func newFeedLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Outputs: []string{"stdout"}, Format: "json"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

// newWSServer 起一个按连接序号回调的 WebSocket 测试服务。
func newWSServer(t *testing.T, handle func(conn *websocket.Conn, connNum int)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	var count int32
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		handle(conn, int(atomic.AddInt32(&count, 1)))
	}))
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func recvEvent(t *testing.T, feed *Feed) order.Event {
	t.Helper()
	select {
	case ev, ok := <-feed.Events():
		if !ok {
			t.Fatal("events channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
	return nil
}

func TestFeedDeliversEvents(t *testing.T) {
	frames := []string{
		`{"e":"submitted","oid":"O-1","aid":"FXCM-100","ts":1704067200000}`,
		`not even json`,
		`{"e":"working","oid":"O-1","aid":"FXCM-100","ts":1704067201000,"boid":"B-1"}`,
	}
	ts := newWSServer(t, func(conn *websocket.Conn, _ int) {
		defer conn.Close()
		for _, fr := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(fr)); err != nil {
				return
			}
		}
		conn.ReadMessage() // 挂住连接等客户端收尾
	})
	defer ts.Close()

	feed, err := NewFeed(FeedConfig{URL: wsURL(ts), ReconnectDelay: 20 * time.Millisecond, Buffer: 8},
		newFeedLogger(t), nil, nil, nil)
	if err != nil {
		t.Fatalf("new feed: %v", err)
	}
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	ev := recvEvent(t, feed)
	if order.Kind(ev) != "submitted" || order.EventOrderID(ev) != "O-1" {
		t.Fatalf("unexpected first event %s %s", order.Kind(ev), order.EventOrderID(ev))
	}
	ev = recvEvent(t, feed)
	if order.Kind(ev) != "working" {
		t.Fatalf("bad frame should be dropped, got %s", order.Kind(ev))
	}

	if err := feed.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, ok := <-feed.Events(); ok {
		t.Fatal("events channel should be closed after stop")
	}
}

func TestFeedReconnects(t *testing.T) {
	ts := newWSServer(t, func(conn *websocket.Conn, n int) {
		defer conn.Close()
		var frame string
		if n == 1 {
			frame = `{"e":"accepted","oid":"O-1","ts":1704067200000}`
		} else {
			frame = `{"e":"accepted","oid":"O-2","ts":1704067201000}`
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			return
		}
		if n == 1 {
			return // 掉线，触发客户端重连
		}
		conn.ReadMessage()
	})
	defer ts.Close()

	var mu sync.Mutex
	connects := 0
	sink := func(event string, fields map[string]interface{}) {
		mu.Lock()
		defer mu.Unlock()
		if event == "feed_connect" {
			connects++
		}
	}

	feed, err := NewFeed(FeedConfig{URL: wsURL(ts), ReconnectDelay: 20 * time.Millisecond, Buffer: 8},
		newFeedLogger(t), nil, nil, sink)
	if err != nil {
		t.Fatalf("new feed: %v", err)
	}
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer feed.Stop()

	if got := order.EventOrderID(recvEvent(t, feed)); got != "O-1" {
		t.Fatalf("first event order = %s", got)
	}
	if got := order.EventOrderID(recvEvent(t, feed)); got != "O-2" {
		t.Fatalf("event after reconnect order = %s", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if connects < 2 {
		t.Fatalf("expected at least 2 connects, got %d", connects)
	}
}

func TestFeedGivesUpAfterMaxReconnects(t *testing.T) {
	ts := newWSServer(t, func(conn *websocket.Conn, _ int) {
		conn.Close()
	})

	mock := alert.NewMockChannel("mock")
	alerts := alert.NewManager([]alert.Channel{mock}, time.Minute)

	feed, err := NewFeed(FeedConfig{
		URL:            wsURL(ts),
		ReconnectDelay: 20 * time.Millisecond,
		MaxReconnects:  2,
		Buffer:         8,
	}, newFeedLogger(t), nil, alerts, nil)
	if err != nil {
		t.Fatalf("new feed: %v", err)
	}
	if err := feed.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	ts.Close() // 之后的重连全部失败

	select {
	case _, ok := <-feed.Events():
		if ok {
			t.Fatal("no events expected")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for feed to give up")
	}

	if mock.Count() == 0 {
		t.Fatal("expected feed_loss alert")
	}
	if got := mock.GetAlerts()[0].Kind; got != "feed_loss" {
		t.Fatalf("alert kind = %s", got)
	}
	if err := feed.Stop(); err != nil {
		t.Fatalf("stop after give-up: %v", err)
	}
}

func TestFeedStartDialFailure(t *testing.T) {
	feed, err := NewFeed(FeedConfig{URL: "ws://127.0.0.1:1", ReconnectDelay: time.Second},
		newFeedLogger(t), nil, nil, nil)
	if err != nil {
		t.Fatalf("new feed: %v", err)
	}
	if err := feed.Start(context.Background()); err == nil {
		t.Fatal("expected dial error")
	}
	// 失败后并未占住运行状态
	if err := feed.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestNewFeedValidation(t *testing.T) {
	if _, err := NewFeed(FeedConfig{}, newFeedLogger(t), nil, nil, nil); err == nil {
		t.Fatal("expected error for missing url")
	}
	if _, err := NewFeed(FeedConfig{URL: "ws://localhost"}, nil, nil, nil, nil); err == nil {
		t.Fatal("expected error for missing logger")
	}
}
