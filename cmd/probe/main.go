package main

import (
	"flag"
	"fmt"
	"net/http"
	"time"

	"order-engine-go/infrastructure/monitor"

	"github.com/prometheus/client_golang/prometheus"
)

// 指标探针：不接回报源，起一个 /metrics 端点并灌入一批模拟指标，
// 用于验证 Prometheus 抓取与 Grafana 面板配置。
func main() {
	addr := flag.String("metricsAddr", ":9100", "Prometheus 指标监听地址")
	tracked := flag.Int("tracked", 12, "模拟在册订单数")
	working := flag.Int("working", 3, "模拟工作中订单数")
	slippage := flag.Float64("slippage", 0.0002, "模拟最近滑点")
	flag.Parse()

	m := monitor.New(monitor.DefaultConfig())

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	go func() {
		_ = http.ListenAndServe(*addr, mux)
	}()
	fmt.Printf("probe started at %s\n", *addr)

	// 额外注册一个探针指标，确保 /metrics 可见 oe_* 前缀
	probeGauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "oe_probe_test",
		Help: "Probe test metric",
	})
	m.Registry().MustRegister(probeGauge)
	probeGauge.Set(1)

	// 初始设置一批核心指标，便于 Prometheus/Grafana 验证
	m.UpdateEngineState(2)
	m.UpdateTrackedOrders(*tracked)
	m.UpdateWorkingOrders(*working)
	m.UpdateCompletedOrders(*tracked - *working)
	m.UpdateSlippage(*slippage)

	// 周期性微调，观察值变化
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		m.RecordEventApplied("filled")
		m.RecordFill(100000)
		m.RecordFillRatio(0.5)
		m.RecordApplyLatency(0.00002)
	}
}
