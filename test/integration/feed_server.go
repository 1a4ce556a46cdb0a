package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"order-engine-go/gateway"
)

// feedServer 脚本化的回报源：把推入的帧按序写给客户端，
// 帧发完后挂住连接等客户端断开。用于集成测试模拟经纪商端。
type feedServer struct {
	t      *testing.T
	srv    *httptest.Server
	frames chan []byte
}

func newFeedServer(t *testing.T) *feedServer {
	t.Helper()
	fs := &feedServer{t: t, frames: make(chan []byte, 64)}
	upgrader := websocket.Upgrader{}
	fs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for frame := range fs.frames {
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(fs.srv.Close)
	return fs
}

// URL 返回 ws:// 形式的地址。
func (fs *feedServer) URL() string {
	return "ws" + strings.TrimPrefix(fs.srv.URL, "http")
}

// Push 追加一个待下发的帧。
func (fs *feedServer) Push(frame []byte) {
	select {
	case fs.frames <- frame:
	case <-time.After(time.Second):
		fs.t.Fatal("feed server frame buffer full")
	}
}

// Done 关闭帧队列；之后连接保持打开但不再有新帧。
func (fs *feedServer) Done() {
	close(fs.frames)
}

func marshalFrame(t *testing.T, f gateway.Frame) []byte {
	t.Helper()
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	return data
}

// waitFor 轮询直到条件成立或超时。
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
