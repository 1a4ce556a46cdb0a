package clock

import (
	"sync"
	"time"
)

// Clock 抽象时间来源，便于测试与回放。
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// UTC 实时时钟，统一使用 UTC。
var UTC Clock = systemClock{}

// Test 确定性时钟：显式设置、显式推进，用于可重复的回放场景。
// 零值不可用，必须通过 NewTest 创建。
type Test struct {
	mu  sync.Mutex
	now time.Time
}

// NewTest 以给定起始时间创建测试时钟。
func NewTest(start time.Time) *Test {
	return &Test{now: start.UTC()}
}

func (t *Test) Now() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now
}

// Set 将当前时间设置为给定时刻。
func (t *Test) Set(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now.UTC()
}

// Advance 将时钟前移 d 并返回新的当前时间。
func (t *Test) Advance(d time.Duration) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = t.now.Add(d)
	return t.now
}
