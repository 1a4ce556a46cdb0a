package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"order-engine-go/infrastructure/alert"
	"order-engine-go/infrastructure/logger"
	"order-engine-go/infrastructure/monitor"
	"order-engine-go/internal/ledger"
	"order-engine-go/order"
)

// EngineState 引擎状态
type EngineState int

const (
	// StateStopped 停止状态
	StateStopped EngineState = iota
	// StateStarting 启动中
	StateStarting
	// StateRunning 运行状态
	StateRunning
	// StateStopping 停止中
	StateStopping
	// StateFaulted 故障状态（回报源失效等不可恢复错误）
	StateFaulted
)

// String 返回状态名称
func (s EngineState) String() string {
	switch s {
	case StateStopped:
		return "STOPPED"
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateFaulted:
		return "FAULTED"
	default:
		return "UNKNOWN"
	}
}

// Feed 回报事件源。Events 通道关闭视为源已失效。
type Feed interface {
	Start(ctx context.Context) error
	Stop() error
	Events() <-chan order.Event
}

// Config 引擎配置
type Config struct {
	StatsInterval time.Duration // 统计日志间隔，0 关闭
	StopTimeout   time.Duration // 等待主循环退出的宽限
}

// Components 引擎依赖组件
type Components struct {
	Ledger       *ledger.Ledger
	Feed         Feed
	Logger       *logger.Logger
	AlertManager *alert.Manager
	Monitor      *monitor.Monitor
}

// Engine 订单生命周期引擎：从回报源取事件，经登记簿路由到在册
// 订单，维护运行统计。
type Engine struct {
	config Config

	ledger   *ledger.Ledger
	feed     Feed
	logger   *logger.Logger
	alertMgr *alert.Manager
	mon      *monitor.Monitor

	// 状态
	state EngineState
	mu    sync.RWMutex

	// 控制通道
	stopChan chan struct{}
	doneChan chan struct{}

	// 统计信息
	stats   Statistics
	statsMu sync.RWMutex
}

// Statistics 引擎统计信息
type Statistics struct {
	StartTime     time.Time
	TotalEvents   int64
	TotalFills    int64
	TotalErrors   int64
	LastEventTime time.Time
}

// New 创建引擎
func New(cfg Config, components Components) (*Engine, error) {
	if err := validateComponents(components); err != nil {
		return nil, fmt.Errorf("invalid components: %w", err)
	}

	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 10 * time.Second
	}

	return &Engine{
		config:   cfg,
		ledger:   components.Ledger,
		feed:     components.Feed,
		logger:   components.Logger,
		alertMgr: components.AlertManager,
		mon:      components.Monitor,
		state:    StateStopped,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// Start 启动引擎
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateStopped {
		state := e.state
		e.mu.Unlock()
		return fmt.Errorf("engine already started (state: %s)", state)
	}
	e.setStateLocked(StateStarting)
	e.stopChan = make(chan struct{})
	e.doneChan = make(chan struct{})
	e.mu.Unlock()

	e.statsMu.Lock()
	e.stats = Statistics{StartTime: time.Now()}
	e.statsMu.Unlock()

	e.logger.Info("Engine starting",
		zap.Duration("stats_interval", e.config.StatsInterval),
		zap.Duration("stop_timeout", e.config.StopTimeout))

	if err := e.feed.Start(ctx); err != nil {
		e.setState(StateFaulted)
		return fmt.Errorf("failed to start execution feed: %w", err)
	}

	e.setState(StateRunning)
	go e.run(ctx)

	e.logger.Info("Engine started")

	return nil
}

// Stop 停止引擎
func (e *Engine) Stop() error {
	e.mu.Lock()
	switch e.state {
	case StateStopped:
		e.mu.Unlock()
		return nil // 幂等：已停止则直接返回
	case StateRunning, StateFaulted:
		e.setStateLocked(StateStopping)
	default:
		state := e.state
		e.mu.Unlock()
		return fmt.Errorf("engine not running (state: %s)", state)
	}
	e.mu.Unlock()

	e.logger.Info("Engine stopping...")

	// 发送停止信号（仅当通道未关闭）
	select {
	case <-e.stopChan:
		// 已关闭，跳过
	default:
		close(e.stopChan)
	}

	// 等待主循环结束
	select {
	case <-e.doneChan:
	case <-time.After(e.config.StopTimeout):
		e.logger.Warn("Timeout waiting for engine to stop")
	}

	if err := e.feed.Stop(); err != nil {
		e.logger.Error("Failed to stop execution feed", zap.Error(err))
	}

	e.setState(StateStopped)

	e.logger.Info("Engine stopped")

	return nil
}

// run 主事件循环
func (e *Engine) run(ctx context.Context) {
	defer close(e.doneChan)

	var statsTicker *time.Ticker
	if e.config.StatsInterval > 0 {
		statsTicker = time.NewTicker(e.config.StatsInterval)
		defer statsTicker.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Context done, stopping engine")
			return

		case <-e.stopChan:
			e.logger.Info("Stop signal received")
			return

		case ev, ok := <-e.feed.Events():
			if !ok {
				e.fault(errors.New("execution feed channel closed"))
				return
			}
			e.onEvent(ev)

		case <-func() <-chan time.Time {
			if statsTicker != nil {
				return statsTicker.C
			}
			return nil
		}():
			e.onStats()
		}
	}
}

// onEvent 单个回报事件入账
func (e *Engine) onEvent(ev order.Event) {
	kind := order.Kind(ev)

	err := e.ledger.Apply(ev)

	e.statsMu.Lock()
	e.stats.TotalEvents++
	e.stats.LastEventTime = time.Now()
	if _, isFill := ev.(order.Filled); isFill {
		e.stats.TotalFills++
	}
	if err != nil {
		e.stats.TotalErrors++
	}
	e.statsMu.Unlock()

	if err != nil {
		// 登记簿已记录异常明细，这里只留引擎侧痕迹
		e.logger.Error("Failed to apply execution event",
			zap.String("order_id", string(order.EventOrderID(ev))),
			zap.String("kind", kind),
			zap.Error(err))
	}
}

// onStats 周期性输出运行统计
func (e *Engine) onStats() {
	stats := e.GetStatistics()
	e.logger.Debug("Engine statistics",
		zap.Int64("total_events", stats.TotalEvents),
		zap.Int64("total_fills", stats.TotalFills),
		zap.Int64("total_errors", stats.TotalErrors),
		zap.Int("tracked", e.ledger.Len()),
		zap.Int("working", e.ledger.WorkingCount()),
		zap.Int("completed", e.ledger.CompletedCount()))
}

// fault 进入故障状态并发出告警
func (e *Engine) fault(cause error) {
	e.logger.Error("Engine faulted", zap.Error(cause))
	e.setState(StateFaulted)

	if e.alertMgr != nil {
		e.alertMgr.SendCritical(fmt.Sprintf("engine faulted: %v", cause), nil)
	}
}

func (e *Engine) setState(s EngineState) {
	e.mu.Lock()
	e.setStateLocked(s)
	e.mu.Unlock()
}

func (e *Engine) setStateLocked(s EngineState) {
	e.state = s
	if e.mon != nil {
		e.mon.UpdateEngineState(int(s))
	}
}

// GetState 获取引擎状态
func (e *Engine) GetState() EngineState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// GetStatistics 获取统计信息
func (e *Engine) GetStatistics() Statistics {
	e.statsMu.RLock()
	defer e.statsMu.RUnlock()
	return e.stats
}

// Health 运行中返回 nil，否则返回携带状态的错误
func (e *Engine) Health() error {
	if state := e.GetState(); state != StateRunning {
		return fmt.Errorf("engine not running (state: %s)", state)
	}
	return nil
}

// validateComponents 验证组件
func validateComponents(comp Components) error {
	if comp.Ledger == nil {
		return errors.New("ledger is required")
	}
	if comp.Feed == nil {
		return errors.New("feed is required")
	}
	if comp.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}
