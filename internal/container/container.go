package container

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"order-engine-go/clock"
	"order-engine-go/config"
	"order-engine-go/gateway"
	"order-engine-go/ident"
	"order-engine-go/infrastructure/alert"
	"order-engine-go/infrastructure/logger"
	"order-engine-go/infrastructure/monitor"
	"order-engine-go/internal/engine"
	"order-engine-go/internal/ledger"
	"order-engine-go/monitor/logschema"
	"order-engine-go/order"
)

// Container 依赖注入容器，管理所有组件的生命周期
type Container struct {
	// 配置
	cfg *config.AppConfig

	// 基础设施
	logger  *logger.Logger
	monitor *monitor.Monitor
	alerts  *alert.Manager

	// 核心服务
	ledger  *ledger.Ledger
	factory *order.OrderFactory
	feed    *gateway.Feed
	engine  *engine.Engine

	// HTTP服务器
	metricsServer *http.Server

	// 生命周期管理
	lifecycle *LifecycleManager
}

// New 创建新的Container实例
func New(configPath string) (*Container, error) {
	cfg, err := config.LoadWithEnvOverrides(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	return NewFromConfig(cfg), nil
}

// NewFromConfig 直接从已验证的配置创建Container。
func NewFromConfig(cfg config.AppConfig) *Container {
	return &Container{
		cfg:       &cfg,
		lifecycle: NewLifecycleManager(),
	}
}

// Build 构建所有组件
func (c *Container) Build() error {
	if err := c.buildInfrastructure(); err != nil {
		return fmt.Errorf("build infrastructure failed: %w", err)
	}

	if err := c.buildCoreServices(); err != nil {
		return fmt.Errorf("build core services failed: %w", err)
	}

	if err := c.buildEngine(); err != nil {
		return fmt.Errorf("build engine failed: %w", err)
	}

	c.registerLifecycleComponents()
	c.logger.Info("container built successfully")
	return nil
}

func (c *Container) buildInfrastructure() error {
	var err error
	c.logger, err = logger.New(c.cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger failed: %w", err)
	}

	c.monitor = monitor.New(c.cfg.Metrics)

	channels := []alert.Channel{
		alert.NewLogChannel("log", os.Stderr),
	}
	if c.cfg.Alerts.Console {
		channels = append(channels, alert.NewConsoleChannel("console"))
	}
	if c.cfg.Alerts.WebhookURL != "" {
		channels = append(channels, alert.NewWebhookChannel("webhook", c.cfg.Alerts.WebhookURL))
	}
	throttle := time.Duration(c.cfg.Alerts.ThrottleSeconds) * time.Second
	c.alerts = alert.NewManager(channels, throttle)

	c.logger.Info("infrastructure built")
	return nil
}

func (c *Container) buildCoreServices() error {
	var err error
	c.factory, err = order.NewOrderFactory(clock.UTC,
		ident.Tag(c.cfg.Account.Trader), ident.Tag(c.cfg.Account.Strategy))
	if err != nil {
		return fmt.Errorf("create order factory failed: %w", err)
	}

	c.ledger = ledger.New(c.monitor, c.alerts, c.emitEvent)

	c.logger.Info("core services built")
	return nil
}

func (c *Container) buildEngine() error {
	feedCfg := gateway.FeedConfig{
		URL:            c.cfg.Feed.URL,
		ReconnectDelay: time.Duration(c.cfg.Feed.ReconnectDelayMs) * time.Millisecond,
		MaxReconnects:  c.cfg.Feed.MaxReconnects,
		ReadTimeout:    time.Duration(c.cfg.Feed.ReadTimeoutMs) * time.Millisecond,
		Buffer:         c.cfg.Feed.Buffer,
	}

	var err error
	c.feed, err = gateway.NewFeed(feedCfg, c.logger, c.monitor, c.alerts, c.emitEvent)
	if err != nil {
		return fmt.Errorf("create feed failed: %w", err)
	}

	engineCfg := engine.Config{
		StatsInterval: time.Duration(c.cfg.Engine.StatsIntervalMs) * time.Millisecond,
		StopTimeout:   time.Duration(c.cfg.Engine.StopTimeoutMs) * time.Millisecond,
	}
	c.engine, err = engine.New(engineCfg, engine.Components{
		Ledger:       c.ledger,
		Feed:         c.feed,
		Logger:       c.logger,
		AlertManager: c.alerts,
		Monitor:      c.monitor,
	})
	if err != nil {
		return fmt.Errorf("create engine failed: %w", err)
	}

	c.logger.Info("engine built")
	return nil
}

func (c *Container) registerLifecycleComponents() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.monitor.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := c.HealthCheck(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	c.lifecycle.Register("metrics_server", &httpServerComponent{
		name:    "metrics_server",
		handler: mux,
		addr:    c.cfg.Server.MetricsAddr,
		logger:  c.logger,
		server:  &c.metricsServer,
	})

	// 引擎负责回报源的启停，排在指标服务之后
	c.lifecycle.Register("engine", c.engine)
}

// emitEvent 运营日志出口：先按日志模式校验，再经 zap 输出。
func (c *Container) emitEvent(event string, fields map[string]interface{}) {
	if err := logschema.Validate(event, fields); err != nil {
		c.logger.Warn("log schema violation",
			zap.String("event", event), zap.Error(err))
	}
	c.logger.LogEvent(event, fields)
}

func (c *Container) Start(ctx context.Context) error {
	c.logger.Info("starting container...")

	if err := c.lifecycle.StartAll(ctx); err != nil {
		return fmt.Errorf("start failed: %w", err)
	}

	c.logger.Info("container started")
	return nil
}

func (c *Container) Stop() error {
	c.logger.Info("stopping container...")

	err := c.lifecycle.StopAll()
	if err != nil {
		c.logger.LogError(err, map[string]interface{}{"action": "stop"})
	}

	if c.logger != nil {
		_ = c.logger.Close()
	}
	return err
}

func (c *Container) HealthCheck() error {
	return c.lifecycle.CheckHealth()
}

// 组件访问器，供命令行入口与集成测试使用。

func (c *Container) Config() *config.AppConfig    { return c.cfg }
func (c *Container) Logger() *logger.Logger       { return c.logger }
func (c *Container) Monitor() *monitor.Monitor    { return c.monitor }
func (c *Container) Alerts() *alert.Manager       { return c.alerts }
func (c *Container) Ledger() *ledger.Ledger       { return c.ledger }
func (c *Container) Factory() *order.OrderFactory { return c.factory }
func (c *Container) Engine() *engine.Engine       { return c.engine }
