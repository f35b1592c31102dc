package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vmemd/internal/logging"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize config watcher")

const reloadDebounce = 200 * time.Millisecond

// Watcher reloads the daemon config when the file changes on disk.
//
// Editors typically replace files on save, so the watcher observes the
// parent directory and filters events by base name. Reload callbacks
// run on the watcher goroutine after a short debounce; a reload that
// fails validation is logged and skipped, keeping the last good config
// in effect.
type Watcher struct {
	path    string
	logger  *logging.Logger
	onLoad  func(*Config)
	watcher *fsnotify.Watcher
	stop    chan struct{}

	mu    sync.Mutex
	timer *time.Timer
}

// NewWatcher creates a watcher for the given config path. onLoad is
// invoked with each successfully reloaded config.
func NewWatcher(path string, logger *logging.Logger, onLoad func(*Config)) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	if onLoad == nil {
		return nil, fmt.Errorf("onLoad callback cannot be nil")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	return &Watcher{
		path:    abs,
		logger:  logger,
		onLoad:  onLoad,
		watcher: fsw,
		stop:    make(chan struct{}),
	}, nil
}

// Start begins watching. Events are processed on a background
// goroutine until Stop is called or ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("watching config directory %s: %w", dir, err)
	}

	go w.processEvents(ctx)
	return nil
}

// Stop stops the watcher and releases resources.
func (w *Watcher) Stop() {
	select {
	case <-w.stop:
		// Already stopped
	default:
		close(w.stop)
		_ = w.watcher.Close()
	}
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filepath.Base(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.scheduleReload(ctx)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn(ctx, "config watcher error", zap.Error(err))
		}
	}
}

// scheduleReload debounces bursts of write events into one reload.
func (w *Watcher) scheduleReload(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(reloadDebounce, func() {
		w.reload(ctx)
	})
}

func (w *Watcher) reload(ctx context.Context) {
	select {
	case <-w.stop:
		return
	default:
	}

	cfg, err := LoadWithFile(w.path)
	if err != nil {
		w.logger.Warn(ctx, "config reload failed, keeping previous config",
			zap.String("path", w.path),
			zap.Error(err),
		)
		return
	}

	w.logger.Info(ctx, "config reloaded", zap.String("path", w.path))
	w.onLoad(cfg)
}
