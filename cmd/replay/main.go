package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	"order-engine-go/monitor/logschema"
	"order-engine-go/sim"

	"github.com/fsnotify/fsnotify"
)

// 场景回放工具：读取 YAML 场景，在测试时钟下重演订单事件流，
// 输出每笔订单的最终状态、成交均价与滑点。
// 用法：
//
//	go run ./cmd/replay -scenario scenarios/bracket.yaml
//	go run ./cmd/replay -scenario scenarios/bracket.yaml -watch
func main() {
	scenarioPath := flag.String("scenario", "scenarios/bracket.yaml", "场景文件路径")
	jsonEvents := flag.Bool("events", false, "逐条输出台账日志事件（JSON 行）")
	watch := flag.Bool("watch", false, "监听场景文件变化并自动重放")
	flag.Parse()

	if err := runOnce(*scenarioPath, *jsonEvents); err != nil {
		log.Fatalf("回放失败: %v", err)
	}
	if !*watch {
		return
	}
	if err := watchAndRerun(*scenarioPath, *jsonEvents); err != nil {
		log.Fatalf("监听场景文件失败: %v", err)
	}
}

func runOnce(path string, jsonEvents bool) error {
	sc, err := sim.LoadScenario(path)
	if err != nil {
		return err
	}
	runner := sim.Runner{}
	if jsonEvents {
		runner.Sink = logEvent
	}
	report, err := runner.Run(sc)
	if err != nil {
		return err
	}
	fmt.Print(report.String())
	logEvent("replay_result", map[string]interface{}{
		"scenario":    report.Scenario,
		"orders":      report.Orders,
		"events":      report.Events,
		"applyErrors": report.ApplyErrors,
	})
	return nil
}

// watchAndRerun 监听场景文件，每次写入后重放一遍。
// 回放出错只打日志，等待下一次修改。
func watchAndRerun(path string, jsonEvents bool) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		return err
	}
	log.Printf("watching %s, edit to re-run (Ctrl-C to exit)", path)

	var last time.Time
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Write != fsnotify.Write &&
				event.Op&fsnotify.Create != fsnotify.Create {
				continue
			}
			// 编辑器保存常触发连击事件，500ms 内只算一次
			if time.Since(last) < 500*time.Millisecond {
				continue
			}
			last = time.Now()
			if err := runOnce(path, jsonEvents); err != nil {
				log.Printf("回放失败: %v", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch error: %v", err)
		}
	}
}

// logEvent 输出一行 JSON 日志，先按日志模式校验字段。
func logEvent(event string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	if err := logschema.Validate(event, fields); err != nil {
		fields["_schema_error"] = err.Error()
	}
	fields["event"] = event
	fields["ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(fields)
	if err != nil {
		log.Printf("%s %+v", event, fields)
		return
	}
	log.Println(string(data))
}
