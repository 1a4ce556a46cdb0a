package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"order-engine-go/infrastructure/alert"
	"order-engine-go/infrastructure/logger"
	"order-engine-go/infrastructure/monitor"
	"order-engine-go/order"
)

// EventSink 结构化日志出口。
type EventSink func(string, map[string]interface{})

// FeedConfig 回报源配置
type FeedConfig struct {
	URL            string        `yaml:"url"`             // ws:// 或 wss:// 地址
	ReconnectDelay time.Duration `yaml:"reconnect_delay"` // 重连间隔
	MaxReconnects  int           `yaml:"max_reconnects"`  // 连续失败上限，0 不限
	ReadTimeout    time.Duration `yaml:"read_timeout"`    // 单帧读取超时
	Buffer         int           `yaml:"buffer"`          // 事件通道容量
}

// Feed 经 WebSocket 连接执行回报流，把解析出的订单事件送入通道。
// 读取失败按固定间隔重连；连续失败超过上限后关闭事件通道，由引擎
// 判定为回报源失效。
type Feed struct {
	cfg    FeedConfig
	dialer *websocket.Dialer

	log    *logger.Logger
	mon    *monitor.Monitor
	alerts *alert.Manager
	sink   EventSink

	events   chan order.Event
	stopChan chan struct{}
	doneChan chan struct{}

	mu      sync.Mutex
	conn    *websocket.Conn
	running bool
}

// NewFeed 创建回报源。log 必填；mon、alerts 与 sink 可为 nil。
func NewFeed(cfg FeedConfig, log *logger.Logger, mon *monitor.Monitor, alerts *alert.Manager, sink EventSink) (*Feed, error) {
	if cfg.URL == "" {
		return nil, errors.New("feed url required")
	}
	if log == nil {
		return nil, errors.New("feed logger required")
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}

	return &Feed{
		cfg:      cfg,
		dialer:   websocket.DefaultDialer,
		log:      log,
		mon:      mon,
		alerts:   alerts,
		sink:     sink,
		events:   make(chan order.Event, cfg.Buffer),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// Start 建立首次连接并启动读取循环。首连失败直接报错，不重试。
func (f *Feed) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return errors.New("feed already started")
	}
	f.running = true
	f.mu.Unlock()

	conn, err := f.dial()
	if err != nil {
		f.mu.Lock()
		f.running = false
		f.mu.Unlock()
		return fmt.Errorf("dial execution feed %s: %w", f.cfg.URL, err)
	}
	f.setConn(conn)
	f.onConnect()

	go f.run(ctx)
	return nil
}

// Stop 关闭连接并等待读取循环退出。
func (f *Feed) Stop() error {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return nil
	}
	f.running = false
	f.mu.Unlock()

	select {
	case <-f.stopChan:
	default:
		close(f.stopChan)
	}
	f.closeConn()
	<-f.doneChan
	return nil
}

// Events 订单事件通道。通道关闭表示回报源已失效。
func (f *Feed) Events() <-chan order.Event {
	return f.events
}

// run 读取主循环：当前连接读到失败后按配置重连。
func (f *Feed) run(ctx context.Context) {
	defer close(f.doneChan)
	defer close(f.events)

	attempt := 0
	var lastErr error
	for {
		conn := f.currentConn()
		if conn == nil {
			attempt++
			if f.cfg.MaxReconnects > 0 && attempt > f.cfg.MaxReconnects {
				f.log.Error("Execution feed lost, reconnect attempts exhausted",
					zap.String("url", f.cfg.URL),
					zap.Int("attempts", attempt-1),
					zap.Error(lastErr))
				if f.alerts != nil {
					f.alerts.SendFeedLoss(attempt-1, lastErr)
				}
				return
			}
			if f.alerts != nil {
				f.alerts.SendFeedLoss(attempt, lastErr)
			}

			select {
			case <-ctx.Done():
				return
			case <-f.stopChan:
				return
			case <-time.After(f.cfg.ReconnectDelay):
			}

			c, err := f.dial()
			if err != nil {
				lastErr = err
				f.log.Warn("Execution feed reconnect failed",
					zap.String("url", f.cfg.URL),
					zap.Int("attempt", attempt),
					zap.Error(err))
				continue
			}
			f.setConn(c)
			f.onConnect()
			attempt = 0
			conn = c
		}

		err := f.read(ctx, conn)
		if err == nil {
			return // 停止请求
		}
		lastErr = err
		f.closeConn()

		select {
		case <-ctx.Done():
			return
		case <-f.stopChan:
			return
		default:
		}

		f.onDisconnect(attempt+1, err)
	}
}

// read 从单个连接读取直至出错；停止请求返回 nil。
func (f *Feed) read(ctx context.Context, conn *websocket.Conn) error {
	for {
		_ = conn.SetReadDeadline(time.Now().Add(f.cfg.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-f.stopChan:
				return nil
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}

		if f.mon != nil {
			f.mon.RecordFeedFrame()
		}

		ev, err := ParseFrame(message)
		if err != nil {
			if f.mon != nil {
				f.mon.RecordFeedParseError()
			}
			f.log.Warn("Dropping unparseable frame",
				zap.Error(err),
				zap.ByteString("frame", message))
			continue
		}

		select {
		case f.events <- ev:
		case <-f.stopChan:
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (f *Feed) dial() (*websocket.Conn, error) {
	conn, _, err := f.dialer.Dial(f.cfg.URL, nil)
	return conn, err
}

func (f *Feed) onConnect() {
	f.log.Info("Execution feed connected", zap.String("url", f.cfg.URL))
	if f.mon != nil {
		f.mon.RecordFeedConnection()
	}
	f.logEvent("feed_connect", map[string]interface{}{"url": f.cfg.URL})
}

func (f *Feed) onDisconnect(attempt int, cause error) {
	f.log.Warn("Execution feed disconnected",
		zap.String("url", f.cfg.URL),
		zap.Int("attempt", attempt),
		zap.Error(cause))
	if f.mon != nil {
		f.mon.RecordFeedDisconnect()
	}
	f.logEvent("feed_disconnect", map[string]interface{}{
		"url":     f.cfg.URL,
		"attempt": attempt,
		"cause":   cause.Error(),
	})
}

func (f *Feed) setConn(conn *websocket.Conn) {
	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()
}

func (f *Feed) currentConn() *websocket.Conn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conn
}

func (f *Feed) closeConn() {
	f.mu.Lock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.mu.Unlock()
}

func (f *Feed) logEvent(event string, fields map[string]interface{}) {
	if f.sink == nil {
		return
	}
	f.sink(event, fields)
}
