package alert

import (
	"fmt"
	"sync"
	"time"
)

// Alert 告警信息
type Alert struct {
	Level     string                 // "INFO", "WARNING", "ERROR", "CRITICAL"
	Kind      string                 // 异常种类：over_fill、post_terminal、feed_loss 等
	OrderID   string                 // 关联订单，可为空
	Message   string                 // 告警消息
	Timestamp time.Time              // 告警时间
	Fields    map[string]interface{} // 附加字段
}

// Channel 告警通道接口
type Channel interface {
	Send(alert Alert) error
	Name() string
}

// Manager 告警管理器
type Manager struct {
	channels []Channel
	throttle *Throttler
	mu       sync.RWMutex
}

// Throttler 告警限流器
type Throttler struct {
	lastSent map[string]time.Time
	interval time.Duration
	mu       sync.RWMutex
}

// NewThrottler 创建限流器
func NewThrottler(interval time.Duration) *Throttler {
	return &Throttler{
		lastSent: make(map[string]time.Time),
		interval: interval,
	}
}

// Allow 检查是否允许发送（限流）
func (t *Throttler) Allow(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	lastTime, exists := t.lastSent[key]

	if !exists || now.Sub(lastTime) >= t.interval {
		t.lastSent[key] = now
		return true
	}

	return false
}

// Reset 重置限流器
func (t *Throttler) Reset(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.lastSent, key)
}

// Clear 清空所有限流记录
func (t *Throttler) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSent = make(map[string]time.Time)
}

// NewManager 创建告警管理器
func NewManager(channels []Channel, throttleInterval time.Duration) *Manager {
	return &Manager{
		channels: channels,
		throttle: NewThrottler(throttleInterval),
	}
}

// throttleKey 同一订单的同类异常共用一个限流窗口；
// 无种类的普通告警按级别加消息限流。
func throttleKey(alert Alert) string {
	if alert.Kind != "" {
		return fmt.Sprintf("%s:%s:%s", alert.Level, alert.Kind, alert.OrderID)
	}
	return fmt.Sprintf("%s:%s", alert.Level, alert.Message)
}

// SendAlert 发送告警
func (m *Manager) SendAlert(alert Alert) error {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}

	if !m.throttle.Allow(throttleKey(alert)) {
		return nil // 被限流，静默忽略
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	// 发送到所有通道
	var lastErr error
	successCount := 0

	for _, ch := range m.channels {
		if err := ch.Send(alert); err != nil {
			lastErr = fmt.Errorf("channel %s failed: %w", ch.Name(), err)
		} else {
			successCount++
		}
	}

	// 如果所有通道都失败，返回最后一个错误
	if successCount == 0 && lastErr != nil {
		return lastErr
	}

	return nil
}

// SendOverFill 超额成交告警：累计成交量超过委托量
func (m *Manager) SendOverFill(orderID, requested, filled string) error {
	return m.SendAlert(Alert{
		Level:   "CRITICAL",
		Kind:    "over_fill",
		OrderID: orderID,
		Message: fmt.Sprintf("order %s over-filled: %s of %s", orderID, filled, requested),
		Fields: map[string]interface{}{
			"requested": requested,
			"filled":    filled,
		},
	})
}

// SendPostTerminal 终态后继续收到回报的告警
func (m *Manager) SendPostTerminal(orderID, status, eventKind string) error {
	return m.SendAlert(Alert{
		Level:   "WARNING",
		Kind:    "post_terminal",
		OrderID: orderID,
		Message: fmt.Sprintf("order %s received %s event after terminal status %s", orderID, eventKind, status),
		Fields: map[string]interface{}{
			"status":     status,
			"event_kind": eventKind,
		},
	})
}

// SendFeedLoss 回报源断开告警
func (m *Manager) SendFeedLoss(attempt int, cause error) error {
	fields := map[string]interface{}{"attempt": attempt}
	if cause != nil {
		fields["cause"] = cause.Error()
	}
	return m.SendAlert(Alert{
		Level:   "ERROR",
		Kind:    "feed_loss",
		Message: fmt.Sprintf("execution feed lost, reconnect attempt %d", attempt),
		Fields:  fields,
	})
}

// SendInfo 发送INFO级别告警
func (m *Manager) SendInfo(message string, fields map[string]interface{}) error {
	return m.SendAlert(Alert{
		Level:   "INFO",
		Message: message,
		Fields:  fields,
	})
}

// SendWarning 发送WARNING级别告警
func (m *Manager) SendWarning(message string, fields map[string]interface{}) error {
	return m.SendAlert(Alert{
		Level:   "WARNING",
		Message: message,
		Fields:  fields,
	})
}

// SendError 发送ERROR级别告警
func (m *Manager) SendError(message string, fields map[string]interface{}) error {
	return m.SendAlert(Alert{
		Level:   "ERROR",
		Message: message,
		Fields:  fields,
	})
}

// SendCritical 发送CRITICAL级别告警
func (m *Manager) SendCritical(message string, fields map[string]interface{}) error {
	return m.SendAlert(Alert{
		Level:   "CRITICAL",
		Message: message,
		Fields:  fields,
	})
}

// AddChannel 添加告警通道
func (m *Manager) AddChannel(ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels = append(m.channels, ch)
}

// RemoveChannel 移除告警通道
func (m *Manager) RemoveChannel(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	filtered := make([]Channel, 0, len(m.channels))
	for _, ch := range m.channels {
		if ch.Name() != name {
			filtered = append(filtered, ch)
		}
	}
	m.channels = filtered
}

// GetChannels 获取所有通道
func (m *Manager) GetChannels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.channels))
	for _, ch := range m.channels {
		names = append(names, ch.Name())
	}
	return names
}

// ResetThrottle 重置限流器
func (m *Manager) ResetThrottle() {
	m.throttle.Clear()
}
