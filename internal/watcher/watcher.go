// Package watcher turns files dropped under a local bucket's uploads/ tree into object events.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/hyperjump/nuevorag/internal/models"
	"github.com/hyperjump/nuevorag/internal/pipeline"
	"github.com/hyperjump/nuevorag/pkg/utils"
	"go.uber.org/zap"
)

const defaultDebounce = 400 * time.Millisecond

// EventHandler receives one synthetic event per settled file.
type EventHandler func(ctx context.Context, event *models.ObjectEvent)

// Watcher watches <root>/<bucket>/uploads recursively and emits an object-created event
// for every file that stops changing for the debounce interval.
type Watcher struct {
	root        string
	bucket      string
	handler     EventHandler
	debounce    time.Duration
	watcher     *fsnotify.Watcher
	mu          sync.Mutex
	debounceMap map[string]*time.Timer
	ctx         context.Context
	done        chan struct{}
	started     bool
	stopOnce    sync.Once
	logger      *zap.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets a logger for file events.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce overrides the quiet period a file must reach before it is emitted.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher for bucket under the local object root.
func NewWatcher(root, bucket string, handler EventHandler, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		root:        root,
		bucket:      bucket,
		handler:     handler,
		debounce:    defaultDebounce,
		debounceMap: make(map[string]*time.Timer),
		done:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = utils.OrNop(w.logger)
	return w
}

// Dir returns the watched uploads directory.
func (w *Watcher) Dir() string {
	return filepath.Join(w.root, w.bucket, pipeline.UploadsPrefix)
}

// Bucket returns the bucket name used in emitted events.
func (w *Watcher) Bucket() string {
	return w.bucket
}

// Start creates the uploads directory if needed and begins watching. It runs until ctx is
// cancelled or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.ctx = ctx
	w.started = true
	dir := w.Dir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		w.closeLocked()
		w.mu.Unlock()
		return err
	}
	if err := w.addTreeLocked(dir); err != nil {
		w.closeLocked()
		w.mu.Unlock()
		return err
	}
	w.mu.Unlock()
	w.logger.Info("Watching uploads", zap.String("dir", dir), zap.String("bucket", w.bucket))
	go w.run(ctx)
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	w.mu.Lock()
	fw := w.watcher
	w.mu.Unlock()
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Warn("watcher error", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	path := ev.Name
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))
	switch {
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err == nil && info.IsDir() {
			w.handleNewDirectory(path)
			return
		}
		if ignored(path) {
			return
		}
		w.debounceEmit(path)
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		w.cancelDebounce(path)
	}
}

// handleNewDirectory watches a directory created under uploads/ and emits the files already in it.
func (w *Watcher) handleNewDirectory(dir string) {
	w.mu.Lock()
	if w.watcher == nil {
		w.mu.Unlock()
		return
	}
	if err := w.addTreeLocked(dir); err != nil {
		w.logger.Debug("watcher failed to add directory", zap.String("path", dir), zap.Error(err))
	}
	w.mu.Unlock()
	walkFiles(dir, w.debounceEmit)
}

func (w *Watcher) addTreeLocked(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return w.watcher.Add(path)
	})
}

// ignored skips hidden files and editor or upload temp files.
func ignored(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".tmp") || strings.HasSuffix(base, ".part")
}

func (w *Watcher) debounceEmit(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
	}
	w.debounceMap[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.debounceMap, path)
		ctx := w.ctx
		w.mu.Unlock()
		w.emit(ctx, path)
	})
}

func (w *Watcher) cancelDebounce(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.debounceMap[path]; ok {
		t.Stop()
		delete(w.debounceMap, path)
	}
}

// Key returns the object key of a file inside the bucket directory.
func (w *Watcher) Key(path string) (string, error) {
	rel, err := filepath.Rel(filepath.Join(w.root, w.bucket), path)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.New("path is outside the bucket directory")
	}
	return filepath.ToSlash(rel), nil
}

func (w *Watcher) emit(ctx context.Context, path string) {
	if ctx == nil || ctx.Err() != nil {
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	key, err := w.Key(path)
	if err != nil {
		w.logger.Warn("watcher skipped file", zap.String("path", path), zap.Error(err))
		return
	}
	w.logger.Debug("watcher emitting event", zap.String("key", key), zap.Int64("size", info.Size()))
	if w.handler != nil {
		// Keys in S3 events are URL-encoded.
		record := models.NewEventRecord(w.bucket, encodeKey(key), info.Size())
		w.handler(ctx, &models.ObjectEvent{Records: []models.EventRecord{record}})
	}
}

// SyncExisting emits an event for every file already present under the uploads directory.
// Call it after Start to ingest files that arrived while the watcher was down.
func (w *Watcher) SyncExisting() {
	w.mu.Lock()
	ctx := w.ctx
	w.mu.Unlock()
	walkFiles(w.Dir(), func(path string) { w.emit(ctx, path) })
}

func walkFiles(root string, fn func(path string)) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if !ignored(path) {
			fn(path)
		}
		return nil
	})
}

// Stop stops the watcher and releases resources. Pending debounced files are dropped.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	w.closeLocked()
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}

func (w *Watcher) closeLocked() {
	for path, t := range w.debounceMap {
		t.Stop()
		delete(w.debounceMap, path)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
}
