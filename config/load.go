package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"order-engine-go/infrastructure/logger"
	"order-engine-go/infrastructure/monitor"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env     string         `yaml:"env"`
	Account AccountConfig  `yaml:"account"`
	Logging logger.Config  `yaml:"logging"`
	Metrics monitor.Config `yaml:"metrics"`
	Alerts  AlertConfig    `yaml:"alerts"`
	Feed    FeedConfig     `yaml:"feed"`
	Engine  EngineConfig   `yaml:"engine"`
	Server  ServerConfig   `yaml:"server"`
	Watch   WatchConfig    `yaml:"watch"`
}

// AccountConfig 订单号生成作用域（trader/strategy 标签）。
type AccountConfig struct {
	Trader   string `yaml:"trader"`
	Strategy string `yaml:"strategy"`
}

type AlertConfig struct {
	ThrottleSeconds int    `yaml:"throttleSeconds"` // 同类告警的节流窗口
	Console         bool   `yaml:"console"`         // 额外输出到控制台通道
	WebhookURL      string `yaml:"webhookUrl"`      // 非空时额外推送到该地址
}

// FeedConfig 回报源连接参数。时间一律用毫秒整数，便于 YAML 书写。
type FeedConfig struct {
	URL              string `yaml:"url"`
	ReconnectDelayMs int    `yaml:"reconnectDelayMs"`
	MaxReconnects    int    `yaml:"maxReconnects"` // 0 表示不限
	ReadTimeoutMs    int    `yaml:"readTimeoutMs"`
	Buffer           int    `yaml:"buffer"`
}

type EngineConfig struct {
	StatsIntervalMs int `yaml:"statsIntervalMs"` // 0 关闭周期统计日志
	StopTimeoutMs   int `yaml:"stopTimeoutMs"`
}

type ServerConfig struct {
	MetricsAddr string `yaml:"metricsAddr"` // 指标与健康检查监听地址
}

type WatchConfig struct {
	Enabled         bool `yaml:"enabled"`
	CooldownSeconds int  `yaml:"cooldownSeconds"`
}

// Default 返回各段的缺省值；Load 在其上合并 YAML 内容。
func Default() AppConfig {
	return AppConfig{
		Env:     "dev",
		Logging: logger.DefaultConfig(),
		Metrics: monitor.DefaultConfig(),
		Alerts: AlertConfig{
			ThrottleSeconds: 60,
			Console:         false,
		},
		Feed: FeedConfig{
			ReconnectDelayMs: 5000,
			ReadTimeoutMs:    30000,
			Buffer:           256,
		},
		Engine: EngineConfig{
			StatsIntervalMs: 60000,
			StopTimeoutMs:   10000,
		},
		Server: ServerConfig{
			MetricsAddr: ":9100",
		},
		Watch: WatchConfig{
			Enabled:         false,
			CooldownSeconds: 5,
		},
	}
}

// Load reads YAML config from path and applies basic validation.
func Load(path string) (AppConfig, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides deploy-variant fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("OE_ENV"); v != "" {
		cfg.Env = v
	}
	if v := os.Getenv("OE_FEED_URL"); v != "" {
		cfg.Feed.URL = v
	}
	if v := os.Getenv("OE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("OE_TRADER"); v != "" {
		cfg.Account.Trader = v
	}
	if v := os.Getenv("OE_STRATEGY"); v != "" {
		cfg.Account.Strategy = v
	}
	if v := os.Getenv("OE_METRICS_ADDR"); v != "" {
		cfg.Server.MetricsAddr = v
	}
	return cfg, Validate(cfg)
}

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if cfg.Account.Trader == "" {
		return errors.New("account.trader is required")
	}
	if cfg.Account.Strategy == "" {
		return errors.New("account.strategy is required")
	}
	if cfg.Logging.Level == "" {
		return errors.New("logging.level is required")
	}
	if cfg.Metrics.Namespace == "" {
		return errors.New("metrics.namespace is required")
	}
	if cfg.Alerts.ThrottleSeconds < 0 {
		return errors.New("alerts.throttleSeconds must be >= 0")
	}
	if cfg.Feed.URL == "" {
		return errors.New("feed.url is required")
	}
	if cfg.Feed.ReconnectDelayMs < 0 {
		return errors.New("feed.reconnectDelayMs must be >= 0")
	}
	if cfg.Feed.MaxReconnects < 0 {
		return errors.New("feed.maxReconnects must be >= 0")
	}
	if cfg.Feed.ReadTimeoutMs < 0 {
		return errors.New("feed.readTimeoutMs must be >= 0")
	}
	if cfg.Feed.Buffer < 0 {
		return errors.New("feed.buffer must be >= 0")
	}
	if cfg.Engine.StatsIntervalMs < 0 {
		return errors.New("engine.statsIntervalMs must be >= 0")
	}
	if cfg.Engine.StopTimeoutMs < 0 {
		return errors.New("engine.stopTimeoutMs must be >= 0")
	}
	if cfg.Watch.CooldownSeconds < 0 {
		return errors.New("watch.cooldownSeconds must be >= 0")
	}
	return nil
}
