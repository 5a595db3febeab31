package i18n

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultReloadDebounce 文件变更后等待多久再重新加载
const DefaultReloadDebounce = 200 * time.Millisecond

// Watcher 监视词库文件，变化时重新加载整个仓库
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *zap.Logger

	// 单文件模式下只关心该文件本身
	single bool

	onError func(error)

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher 创建词库监视器
func NewWatcher(path string, debounce time.Duration, logger *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultReloadDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{path: path, debounce: debounce, logger: logger}
}

// OnError 设置重新加载失败时的回调
func (w *Watcher) OnError(fn func(error)) *Watcher {
	w.onError = fn
	return w
}

// Watch 阻塞运行直到 ctx 取消。每次成功重新加载后调用 onReload；
// 加载失败只记录日志，旧仓库继续生效。
func (w *Watcher) Watch(ctx context.Context, onReload func(*Repository)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addPaths(fw); err != nil {
		return err
	}
	w.logger.Info("词库监视已启动", zap.String("path", w.path))

	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if _, ok := FormatFromPath(event.Name); !ok {
				continue
			}
			if w.single && filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.logger.Debug("词库文件变化", zap.String("file", event.Name), zap.String("op", event.Op.String()))
			w.trigger(func() { w.reload(onReload) })

		case err, ok := <-fw.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("词库监视出错", zap.Error(err))
		}
	}
}

func (w *Watcher) addPaths(fw *fsnotify.Watcher) error {
	info, err := os.Stat(w.path)
	if err != nil {
		return fmt.Errorf("failed to stat rules path: %w", err)
	}
	if !info.IsDir() {
		w.single = true
		// 编辑器常以替换文件的方式保存，因此监视所在目录
		return fw.Add(filepath.Dir(w.path))
	}
	return filepath.Walk(w.path, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return fw.Add(p)
		}
		return nil
	})
}

func (w *Watcher) trigger(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, fn)
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *Watcher) reload(onReload func(*Repository)) {
	repo, err := Load(w.path)
	if err != nil {
		w.logger.Error("词库重新加载失败，继续使用旧词库", zap.Error(err))
		if w.onError != nil {
			w.onError(err)
		}
		return
	}
	w.logger.Info("词库已重新加载", zap.String("path", w.path))
	onReload(repo)
}
