// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package documents

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/jeranaias/ragdesk-tui/internal/api"
)

// DefaultDebounce is how long a file must stay quiet before it is uploaded.
const DefaultDebounce = 500 * time.Millisecond

// Uploader uploads a file from disk. *Manager implements it.
type Uploader interface {
	Upload(ctx context.Context, path string) (*api.UploadResponse, error)
}

// WatchResult reports one auto-upload attempt.
type WatchResult struct {
	Path     string
	Response *api.UploadResponse
	Err      error
	// Skipped is set when the file failed client-side validation.
	Skipped bool
}

// =============================================================================
// WATCHER
// =============================================================================

// Watcher uploads files created or written in a directory once they have
// been quiet for the debounce period. Subdirectories are not watched.
type Watcher struct {
	dir      string
	uploader Uploader
	debounce time.Duration
	logger   *zap.Logger

	watcher *fsnotify.Watcher
	results chan WatchResult

	mu      sync.Mutex
	pending map[string]time.Time

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewWatcher creates a watcher for dir. Call Start to begin.
func NewWatcher(dir string, uploader Uploader, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch dir: %s is not a directory", dir)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Watcher{
		dir:      dir,
		uploader: uploader,
		debounce: debounce,
		logger:   logger,
		watcher:  fw,
		results:  make(chan WatchResult, 32),
		pending:  make(map[string]time.Time),
	}, nil
}

// Results delivers one WatchResult per attempted upload. It is closed by
// Close. Results are dropped when the buffer is full.
func (w *Watcher) Results() <-chan WatchResult {
	return w.results
}

// Start begins watching. Uploads use ctx; cancelling it stops the watcher.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	w.ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(2)
	go w.processEvents()
	go w.processPending()

	w.logger.Info("WATCH_STARTED", zap.String("dir", w.dir), zap.Duration("debounce", w.debounce))
	return nil
}

// Close stops watching and closes Results. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		if w.cancel != nil {
			w.cancel()
		}
		err = w.watcher.Close()
		w.wg.Wait()
		close(w.results)
		w.logger.Info("WATCH_STOPPED", zap.String("dir", w.dir))
	})
	return err
}

// Pending returns the number of files waiting for their debounce to expire.
func (w *Watcher) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			switch {
			case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
				w.touch(event.Name)
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				w.forget(event.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("WATCH_ERROR", zap.Error(err))
		}
	}
}

func (w *Watcher) touch(path string) {
	if ignored(filepath.Base(path)) {
		return
	}
	w.mu.Lock()
	w.pending[path] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	w.mu.Unlock()
}

func (w *Watcher) processPending() {
	defer w.wg.Done()

	interval := w.debounce / 4
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	if interval > 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			now := time.Now()

			w.mu.Lock()
			var ready []string
			for path, changed := range w.pending {
				if now.Sub(changed) >= w.debounce {
					ready = append(ready, path)
					delete(w.pending, path)
				}
			}
			w.mu.Unlock()

			for _, path := range ready {
				w.uploadFile(path)
			}
		}
	}
}

func (w *Watcher) uploadFile(path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	resp, err := w.uploader.Upload(w.ctx, path)
	result := WatchResult{Path: path, Response: resp, Err: err}
	switch {
	case err == nil:
		w.logger.Info("WATCH_UPLOADED", zap.String("path", path))
	case IsValidation(err):
		result.Skipped = true
		w.logger.Info("WATCH_SKIPPED", zap.String("path", path), zap.Error(err))
	case errors.Is(err, context.Canceled):
		return
	default:
		w.logger.Warn("WATCH_UPLOAD_FAILED", zap.String("path", path), zap.String("detail", api.Detail(err)))
	}

	select {
	case w.results <- result:
	default:
		w.logger.Warn("WATCH_RESULT_DROPPED", zap.String("path", path))
	}
}

// ignored filters editor temp files and dotfiles.
func ignored(name string) bool {
	return strings.HasPrefix(name, ".") ||
		strings.HasSuffix(name, "~") ||
		strings.HasSuffix(name, ".swp") ||
		strings.HasSuffix(name, ".tmp") ||
		strings.HasSuffix(name, ".part") ||
		strings.HasSuffix(name, ".crdownload")
}
