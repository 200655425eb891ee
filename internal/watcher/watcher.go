// Package watcher feeds new and changed files under watched roots into the index, batching
// bursts of filesystem events behind a debounce window.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/gazou/internal/indexer"
	"github.com/hyperjump/gazou/internal/models"
)

const defaultDebounce = 400 * time.Millisecond

// BatchFunc receives the items collected during one debounce window, sorted by path.
type BatchFunc func(ctx context.Context, items []models.SourceItem)

// Watcher watches root directories and hands created or modified files to a BatchFunc.
// Removals are logged and otherwise ignored: the index is append-only.
type Watcher struct {
	roots     []string
	imageExts []string
	textExts  []string
	recursive bool
	onBatch   BatchFunc
	debounce  time.Duration
	watcher   *fsnotify.Watcher
	mu        sync.Mutex
	pending   map[string]struct{}
	timer     *time.Timer
	rootPaths map[string][]string // root -> directories added for it
	ctx       context.Context
	done      chan struct{}
	started   bool
	stopOnce  sync.Once
	logger    *zap.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long the watcher waits after the last event before flushing.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher over roots. Only files whose extension is in imageExts or
// textExts are forwarded to onBatch.
func NewWatcher(roots, imageExts, textExts []string, recursive bool, onBatch BatchFunc, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		roots:     append([]string(nil), roots...),
		imageExts: imageExts,
		textExts:  textExts,
		recursive: recursive,
		onBatch:   onBatch,
		debounce:  defaultDebounce,
		pending:   make(map[string]struct{}),
		rootPaths: make(map[string][]string),
		ctx:       context.Background(),
		done:      make(chan struct{}),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. Missing roots are created. It runs until ctx is cancelled or Stop
// is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = fsw
	w.ctx = ctx
	w.started = true
	w.logger.Debug("watcher starting",
		zap.Strings("roots", w.roots),
		zap.Bool("recursive", w.recursive),
		zap.Duration("debounce", w.debounce))
	for i, root := range w.roots {
		abs, err := filepath.Abs(root)
		if err == nil {
			err = w.addRootLocked(abs)
		}
		if err != nil {
			_ = fsw.Close()
			w.watcher = nil
			w.started = false
			w.mu.Unlock()
			return err
		}
		w.roots[i] = abs
	}
	w.mu.Unlock()
	go w.run(ctx, fsw)
	return nil
}

func (w *Watcher) run(ctx context.Context, fsw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fsw.Errors:
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
	if !w.underRoot(path) {
		return
	}
	w.logger.Debug("watcher event", zap.String("op", ev.Op.String()), zap.String("path", path))

	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		info, err := os.Stat(path)
		if err != nil {
			return
		}
		if info.IsDir() {
			if ev.Has(fsnotify.Create) {
				w.handleNewDirectory(path)
			}
			return
		}
		if info.Mode().IsRegular() && w.matchExtension(path) {
			w.enqueue(path)
		}
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		if w.matchExtension(path) {
			w.logger.Info("file removed; index entry kept", zap.String("path", path))
		}
	}
}

// handleNewDirectory starts watching a directory created or moved under a root and queues
// the files already inside it.
func (w *Watcher) handleNewDirectory(dirPath string) {
	w.mu.Lock()
	fsw := w.watcher
	recursive := w.recursive
	w.mu.Unlock()
	if fsw == nil || !recursive {
		return
	}

	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if err := fsw.Add(path); err != nil {
				w.logger.Warn("watcher failed to add directory", zap.String("path", path), zap.Error(err))
			}
		}
		return nil
	})
	w.syncDirectory(dirPath)
}

func (w *Watcher) underRoot(path string) bool {
	w.mu.Lock()
	roots := slices.Clone(w.roots)
	w.mu.Unlock()
	clean := filepath.Clean(path)
	for _, root := range roots {
		if inDir(filepath.Clean(root), clean) {
			return true
		}
	}
	return false
}

func inDir(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (w *Watcher) matchExtension(path string) bool {
	return indexer.Accepts(path, w.imageExts, w.textExts)
}

// enqueue adds path to the pending batch and restarts the debounce timer.
func (w *Watcher) enqueue(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	w.pending[path] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.Flush)
}

// Flush hands every pending file to the batch callback now.
func (w *Watcher) Flush() {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	clear(w.pending)
	ctx := w.ctx
	onBatch := w.onBatch
	w.mu.Unlock()

	slices.Sort(paths)
	items := make([]models.SourceItem, len(paths))
	for i, p := range paths {
		items[i] = models.NewFileItem(p, w.imageExts)
	}
	w.logger.Debug("watcher flushing batch", zap.Int("items", len(items)))
	if onBatch != nil {
		onBatch(ctx, items)
	}
}

// Pending returns the number of files waiting for the next flush.
func (w *Watcher) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// AddDirectory starts watching another root. When syncExisting is set, the files already
// under it are queued.
func (w *Watcher) AddDirectory(root string, syncExisting bool) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	if w.watcher == nil {
		w.mu.Unlock()
		return nil
	}
	for _, r := range w.roots {
		if filepath.Clean(r) == abs {
			w.mu.Unlock()
			return nil
		}
	}
	if err := w.addRootLocked(abs); err != nil {
		w.mu.Unlock()
		return err
	}
	w.roots = append(w.roots, abs)
	w.mu.Unlock()

	w.logger.Info("watching directory", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if syncExisting {
		w.syncDirectory(abs)
	}
	return nil
}

func (w *Watcher) addRootLocked(root string) error {
	root = filepath.Clean(root)
	if _, err := os.Stat(root); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		if err := os.MkdirAll(root, 0755); err != nil {
			return err
		}
	}
	var paths []string
	if w.recursive {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				return nil
			}
			if err := w.watcher.Add(path); err != nil {
				return err
			}
			paths = append(paths, path)
			return nil
		})
		if err != nil {
			return err
		}
	} else {
		if err := w.watcher.Add(root); err != nil {
			return err
		}
		paths = append(paths, root)
	}
	w.rootPaths[root] = paths
	return nil
}

func (w *Watcher) syncDirectory(root string) {
	w.mu.Lock()
	recursive := w.recursive
	w.mu.Unlock()
	w.logger.Debug("watcher syncing directory", zap.String("root", root))

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && w.matchExtension(path) {
			w.enqueue(path)
		}
		return nil
	})
}

// RemoveDirectory stops watching root. Entries already indexed from it stay in the index.
func (w *Watcher) RemoveDirectory(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	abs = filepath.Clean(abs)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return nil
	}
	idx := slices.IndexFunc(w.roots, func(r string) bool { return filepath.Clean(r) == abs })
	if idx < 0 {
		return nil
	}
	for _, p := range w.rootPaths[abs] {
		_ = w.watcher.Remove(p)
	}
	delete(w.rootPaths, abs)
	w.roots = slices.Delete(w.roots, idx, idx+1)
	for p := range w.pending {
		if inDir(abs, p) {
			delete(w.pending, p)
		}
	}
	w.logger.Info("stopped watching directory", zap.String("path", abs))
	return nil
}

// Directories returns a copy of the watched roots.
func (w *Watcher) Directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.roots)
}

// SyncExistingFiles queues every matching file already present under the roots.
// Call it after Start to pick up files that predate the watcher.
func (w *Watcher) SyncExistingFiles() {
	for _, root := range w.Directories() {
		w.syncDirectory(root)
	}
}

// Stop stops watching and drops pending files that were not flushed.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started || w.watcher == nil {
		w.mu.Unlock()
		return
	}
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	clear(w.pending)
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
