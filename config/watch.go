package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher 基于 fsnotify 监听配置文件变化，变化后重新加载并回调。
// 带冷却时间，避免编辑器多次写入触发连续重载。
type Watcher struct {
	Path     string
	Cooldown time.Duration

	mu         sync.Mutex
	lastReload time.Time
}

// Start blocks until ctx is done; onUpdate receives each successfully
// reloaded and validated config. Reload failures are reported through onError
// (which may be nil) and keep the previous config in effect.
func (w *Watcher) Start(ctx context.Context, onUpdate func(AppConfig), onError func(error)) error {
	if w.Cooldown <= 0 {
		w.Cooldown = 5 * time.Second
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.Path); err != nil {
		return fmt.Errorf("watch config file: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !w.allowReload() {
				continue
			}
			cfg, err := LoadWithEnvOverrides(w.Path)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				continue
			}
			if onUpdate != nil {
				onUpdate(cfg)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			if onError != nil {
				onError(err)
			}
		}
	}
}

func (w *Watcher) allowReload() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := time.Now()
	if now.Sub(w.lastReload) < w.Cooldown {
		return false
	}
	w.lastReload = now
	return true
}
