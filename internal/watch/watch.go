// Package watch reruns builds when tracked files change or on a fixed interval.
//
// Both runners call their rebuild function from a single goroutine, so
// rebuilds never overlap.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/incbuild/internal/logfields"
)

// DefaultDebounce is how long a watcher waits for events to settle.
const DefaultDebounce = 300 * time.Millisecond

// Rebuild performs one build. Errors are logged and do not stop the runner.
type Rebuild func(ctx context.Context) error

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before a rebuild.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) { w.logger = logger }
}

// Watcher rebuilds after changes to a set of files and directories.
//
// Directories are watched directly; a file is watched through its parent
// directory, which keeps working when editors replace the file.
type Watcher struct {
	fsw      *fsnotify.Watcher
	rebuild  Rebuild
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	files   map[string]struct{}
	dirs    map[string]struct{}
	watched map[string]struct{}
}

// NewWatcher starts watching paths. Paths that do not exist yet are watched
// through their parent directory when it exists and skipped otherwise.
func NewWatcher(paths []string, rebuild Rebuild, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &Watcher{
		fsw:      fsw,
		rebuild:  rebuild,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
		files:    map[string]struct{}{},
		dirs:     map[string]struct{}{},
		watched:  map[string]struct{}{},
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.Add(paths...); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	w.logger.Info("Watching for changes", slog.Int("paths", w.count()))
	return w, nil
}

// Add tracks more paths. Paths already tracked are ignored, so a caller can
// pass its full path set after every reload.
func (w *Watcher) Add(paths ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("failed to resolve watch path %s: %w", p, err)
		}
		dir := filepath.Dir(abs)
		if info, statErr := os.Stat(abs); statErr == nil && info.IsDir() {
			w.dirs[abs] = struct{}{}
			dir = abs
		} else {
			w.files[abs] = struct{}{}
		}
		if _, ok := w.watched[dir]; ok {
			continue
		}
		if err := w.fsw.Add(dir); err != nil {
			w.logger.Warn("Cannot watch directory", logfields.Path(dir), logfields.Error(err))
			continue
		}
		w.watched[dir] = struct{}{}
		w.logger.Debug("Watching directory", logfields.Path(dir))
	}
	return nil
}

func (w *Watcher) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.files) + len(w.dirs)
}

// Run processes events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		if err := w.fsw.Close(); err != nil {
			w.logger.Error("Error closing file watcher", logfields.Error(err))
		}
	}()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("Change detected", logfields.Path(event.Name), slog.String("op", event.Op.String()))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("File watcher error", logfields.Error(err))
		case <-fire:
			fire = nil
			if err := w.rebuild(ctx); err != nil {
				w.logger.Error("Rebuild failed", logfields.Error(err))
			}
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.files[event.Name]; ok {
		return true
	}
	_, ok := w.dirs[filepath.Dir(event.Name)]
	return ok
}
