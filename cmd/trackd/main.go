package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"order-engine-go/config"
	"order-engine-go/internal/container"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// trackd 连接经纪商回报源，驱动事件溯源的订单台账，
// 通过 /metrics 与 /healthz 暴露运行状态。
// 支持 systemd Type=notify 与看门狗。
func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	app, err := container.New(*cfgPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if err := app.Build(); err != nil {
		log.Fatalf("构建组件失败: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Start(ctx); err != nil {
		log.Fatalf("启动失败: %v", err)
	}
	logg := app.Logger()

	watcher := startConfigWatcher(ctx, app, *cfgPath)

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		logg.Warn("sd_notify ready failed", zap.Error(err))
	} else if sent {
		logg.Info("systemd notified: ready")
	}
	go watchdogLoop(ctx, app)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logg.Info("shutdown signal received", zap.String("signal", sig.String()))

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	cancel()
	if watcher != nil {
		_ = watcher.Stop()
	}
	if err := app.Stop(); err != nil {
		os.Exit(1)
	}
}

// startConfigWatcher 按配置启用热更新。目前只接管日志级别，
// 其余字段修改需要重启进程。
func startConfigWatcher(ctx context.Context, app *container.Container, path string) *config.Watcher {
	cfg := app.Config()
	if !cfg.Watch.Enabled {
		return nil
	}
	logg := app.Logger()
	cooldown := time.Duration(cfg.Watch.CooldownSeconds) * time.Second
	watcher, err := config.NewWatcher(path, cooldown, func(next config.AppConfig) {
		if err := logg.SetLevel(next.Logging.Level); err != nil {
			logg.Warn("config reload: invalid log level", zap.Error(err))
			return
		}
		logg.Info("config reloaded", zap.String("logLevel", next.Logging.Level))
	})
	if err != nil {
		logg.Warn("config watcher unavailable", zap.Error(err))
		return nil
	}
	watcher.SetErrorHandler(func(err error) {
		logg.Warn("config reload rejected", zap.Error(err))
	})
	if err := watcher.Start(ctx); err != nil {
		logg.Warn("config watcher start failed", zap.Error(err))
		_ = watcher.Stop()
		return nil
	}
	logg.Info("config watcher started", zap.String("path", path))
	return watcher
}

// watchdogLoop 周期性喂 systemd 看门狗。健康检查失败就跳过本轮，
// 超过 WatchdogSec 未喂狗时由 systemd 负责重启进程。
func watchdogLoop(ctx context.Context, app *container.Container) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := app.HealthCheck(); err != nil {
				app.Logger().Warn("skipping watchdog ping", zap.Error(err))
				continue
			}
			_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		}
	}
}
