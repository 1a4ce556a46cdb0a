package config

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher 监听配置文件变化并热加载。新配置先加载验证，
// 合法才经 onUpdate 下发；非法只触发错误回调，运行配置不变。
type Watcher struct {
	path     string
	cooldown time.Duration // 两次重载之间的最短间隔
	watcher  *fsnotify.Watcher
	onUpdate func(AppConfig)
	onError  func(error)

	mu         sync.Mutex
	lastReload time.Time

	stopChan chan struct{}
	doneChan chan struct{}
}

// NewWatcher 创建配置监听器。cooldown <= 0 时取 5 秒。
func NewWatcher(path string, cooldown time.Duration, onUpdate func(AppConfig)) (*Watcher, error) {
	if onUpdate == nil {
		return nil, errors.New("config watcher requires an update callback")
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if cooldown <= 0 {
		cooldown = 5 * time.Second
	}

	return &Watcher{
		path:     path,
		cooldown: cooldown,
		watcher:  fsWatcher,
		onUpdate: onUpdate,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}, nil
}

// SetErrorHandler 设置加载或验证失败时的回调。
func (w *Watcher) SetErrorHandler(handler func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = handler
}

// Start 把配置文件加入监听并启动处理循环。
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.path); err != nil {
		return fmt.Errorf("failed to watch config file: %w", err)
	}
	go w.watch(ctx)
	return nil
}

// Stop 停止监听。
func (w *Watcher) Stop() error {
	select {
	case <-w.stopChan:
	default:
		close(w.stopChan)
	}

	// 等待处理循环退出；Start 未被调用时靠超时兜底
	select {
	case <-w.doneChan:
	case <-time.After(1 * time.Second):
	}

	return w.watcher.Close()
}

func (w *Watcher) watch(ctx context.Context) {
	defer close(w.doneChan)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// 编辑器整文件替换时产生 Create，就地写入产生 Write
			if event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Create == fsnotify.Create {
				w.handleChange()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.reportError(fmt.Errorf("config watcher: %w", err))
		}
	}
}

func (w *Watcher) handleChange() {
	w.mu.Lock()
	if time.Since(w.lastReload) < w.cooldown {
		w.mu.Unlock()
		return
	}
	w.lastReload = time.Now()
	w.mu.Unlock()

	cfg, err := LoadWithEnvOverrides(w.path)
	if err != nil {
		w.reportError(fmt.Errorf("config reload rejected: %w", err))
		return
	}
	w.onUpdate(cfg)
}

func (w *Watcher) reportError(err error) {
	w.mu.Lock()
	handler := w.onError
	w.mu.Unlock()
	if handler != nil {
		handler(err)
	}
}

// LastReload 返回最近一次尝试重载的时间。
func (w *Watcher) LastReload() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastReload
}
