package logschema

import (
	"fmt"
	"sort"
	"strings"
)

// Schema 定义每个日志事件所需的关键字段，便于集中校验。
type Schema struct {
	Event    string
	Required []string
}

var schemas = map[string]Schema{
	"order_registered": {
		Event:    "order_registered",
		Required: []string{"orderId", "symbol", "side", "type", "qty"},
	},
	"atomic_registered": {
		Event:    "atomic_registered",
		Required: []string{"atomicId", "entryId", "stopLossId"},
	},
	"order_update": {
		Event:    "order_update",
		Required: []string{"orderId", "status", "eventKind"},
	},
	"order_anomaly": {
		Event:    "order_anomaly",
		Required: []string{"orderId", "kind"},
	},
	"feed_connect": {
		Event:    "feed_connect",
		Required: []string{"url"},
	},
	"feed_disconnect": {
		Event:    "feed_disconnect",
		Required: []string{"url", "attempt"},
	},
	"engine_state": {
		Event:    "engine_state",
		Required: []string{"state"},
	},
	"replay_result": {
		Event:    "replay_result",
		Required: []string{"scenario", "orders", "events"},
	},
}

// Known 返回所有事件名，便于外部生成文档。
func Known() []string {
	names := make([]string, 0, len(schemas))
	for k := range schemas {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Validate 检查日志字段是否包含 schema 中要求的 key。
func Validate(event string, fields map[string]interface{}) error {
	s, ok := schemas[event]
	if !ok {
		return nil
	}
	var missing []string
	for _, key := range s.Required {
		if _, exists := fields[key]; !exists {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing fields: %s", strings.Join(missing, ","))
	}
	return nil
}
