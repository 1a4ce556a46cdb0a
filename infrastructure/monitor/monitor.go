package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor Prometheus监控指标收集器
type Monitor struct {
	registry *prometheus.Registry

	// 订单登记指标
	ordersRegistered prometheus.Counter
	atomicRegistered prometheus.Counter
	trackedOrders    prometheus.Gauge

	// 事件指标
	eventsApplied *prometheus.CounterVec
	applyErrors   *prometheus.CounterVec
	applyLatency  prometheus.Histogram

	// 派生状态指标
	workingOrders   prometheus.Gauge
	completedOrders prometheus.Gauge
	terminalTotal   *prometheus.CounterVec

	// 成交指标
	fillsTotal   prometheus.Counter
	filledVolume prometheus.Counter
	fillRatio    prometheus.Histogram
	lastSlippage prometheus.Gauge

	// 异常指标
	anomalies *prometheus.CounterVec

	// 回报源指标
	feedConnections prometheus.Counter
	feedDisconnects prometheus.Counter
	feedFrames      prometheus.Counter
	feedParseErrors prometheus.Counter

	// 引擎指标
	engineState prometheus.Gauge
}

// Config 监控配置
type Config struct {
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "oe",
		Subsystem: "lifecycle",
	}
}

// New 创建新的Monitor实例
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()

	factory := promauto.With(reg)

	m := &Monitor{
		registry: reg,

		// 订单登记指标
		ordersRegistered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "orders_registered_total",
			Help:      "登记跟踪的订单总数",
		}),
		atomicRegistered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "atomic_orders_registered_total",
			Help:      "登记跟踪的原子组合单总数",
		}),
		trackedOrders: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "tracked_orders",
			Help:      "当前在册订单数",
		}),

		// 事件指标
		eventsApplied: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "events_applied_total",
				Help:      "按种类统计的已应用事件总数",
			},
			[]string{"kind"},
		),
		applyErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "apply_errors_total",
				Help:      "按种类统计的事件应用失败总数",
			},
			[]string{"kind"},
		),
		applyLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "apply_latency_seconds",
			Help:      "事件应用耗时分布（秒）",
			Buckets:   []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005},
		}),

		// 派生状态指标
		workingOrders: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "working_orders",
			Help:      "当前在场内工作的订单数",
		}),
		completedOrders: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "completed_orders",
			Help:      "已完结订单数",
		}),
		terminalTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "terminal_outcomes_total",
				Help:      "按终态统计的订单完结总数",
			},
			[]string{"status"},
		),

		// 成交指标
		fillsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "fills_total",
			Help:      "成交回报总数",
		}),
		filledVolume: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "filled_volume_total",
			Help:      "累计成交量",
		}),
		fillRatio: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "fill_ratio",
			Help:      "累计成交量占委托量的比例分布，>1表示超额成交",
			Buckets:   []float64{0.1, 0.25, 0.5, 0.75, 0.9, 1.0, 1.05, 1.25},
		}),
		lastSlippage: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "last_slippage",
			Help:      "最近一笔成交的滑点",
		}),

		// 异常指标
		anomalies: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "anomalies_total",
				Help:      "按类型统计的订单异常总数",
			},
			[]string{"type"},
		),

		// 回报源指标
		feedConnections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "feed_connections_total",
			Help:      "回报源连接次数",
		}),
		feedDisconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "feed_disconnects_total",
			Help:      "回报源断开次数",
		}),
		feedFrames: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "feed_frames_total",
			Help:      "回报源收到的帧总数",
		}),
		feedParseErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "feed_parse_errors_total",
			Help:      "回报帧解析失败总数",
		}),

		// 引擎指标
		engineState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "engine_state",
			Help:      "引擎状态(0=停止,1=启动中,2=运行,3=停止中,4=故障)",
		}),
	}

	return m
}

// 订单登记相关方法
func (m *Monitor) RecordOrderRegistered() {
	m.ordersRegistered.Inc()
}

func (m *Monitor) RecordAtomicRegistered() {
	m.atomicRegistered.Inc()
}

func (m *Monitor) UpdateTrackedOrders(n int) {
	m.trackedOrders.Set(float64(n))
}

// 事件相关方法
func (m *Monitor) RecordEventApplied(kind string) {
	m.eventsApplied.WithLabelValues(kind).Inc()
}

func (m *Monitor) RecordApplyError(kind string) {
	m.applyErrors.WithLabelValues(kind).Inc()
}

func (m *Monitor) RecordApplyLatency(seconds float64) {
	m.applyLatency.Observe(seconds)
}

// 派生状态相关方法
func (m *Monitor) UpdateWorkingOrders(n int) {
	m.workingOrders.Set(float64(n))
}

func (m *Monitor) UpdateCompletedOrders(n int) {
	m.completedOrders.Set(float64(n))
}

func (m *Monitor) RecordTerminal(status string) {
	m.terminalTotal.WithLabelValues(status).Inc()
}

// 成交相关方法
func (m *Monitor) RecordFill(volume float64) {
	m.fillsTotal.Inc()
	m.filledVolume.Add(volume)
}

func (m *Monitor) RecordFillRatio(ratio float64) {
	m.fillRatio.Observe(ratio)
}

func (m *Monitor) UpdateSlippage(value float64) {
	m.lastSlippage.Set(value)
}

// 异常相关方法
func (m *Monitor) RecordAnomaly(kind string) {
	m.anomalies.WithLabelValues(kind).Inc()
}

// 回报源相关方法
func (m *Monitor) RecordFeedConnection() {
	m.feedConnections.Inc()
}

func (m *Monitor) RecordFeedDisconnect() {
	m.feedDisconnects.Inc()
}

func (m *Monitor) RecordFeedFrame() {
	m.feedFrames.Inc()
}

func (m *Monitor) RecordFeedParseError() {
	m.feedParseErrors.Inc()
}

// 引擎相关方法
func (m *Monitor) UpdateEngineState(state int) {
	m.engineState.Set(float64(state))
}

// Handler 返回HTTP handler用于暴露指标
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回prometheus registry
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}
