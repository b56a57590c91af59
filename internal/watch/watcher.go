package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/eddiedunn/moltest/pkg/logging"
)

const logSubsystem = "Watch"

// DefaultDebounce is the quiet period that ends a burst of events.
const DefaultDebounce = 500 * time.Millisecond

// Change is one debounced batch of filesystem events.
type Change struct {
	// Paths lists the changed paths, sorted and deduplicated.
	Paths []string
	Time  time.Time
}

// IgnoreFunc reports whether a path should neither be watched nor trigger
// a change.
type IgnoreFunc func(path string) bool

// Options configures a Watcher.
type Options struct {
	Debounce time.Duration
	Ignore   IgnoreFunc
}

// Watcher emits a Change after filesystem activity below its directories.
type Watcher struct {
	dirs     []string
	debounce time.Duration
	ignore   IgnoreFunc

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	pending map[string]struct{}
	timer   *time.Timer
	changes chan Change
}

// New creates a watcher for dirs. Nothing is watched until Start.
func New(dirs []string, opts Options) *Watcher {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	ignore := opts.Ignore
	if ignore == nil {
		ignore = func(string) bool { return false }
	}
	return &Watcher{
		dirs:     uniqueDirs(dirs),
		debounce: debounce,
		ignore:   ignore,
		pending:  make(map[string]struct{}),
		changes:  make(chan Change, 1),
	}
}

// Start adds the watches and begins processing events until ctx is done or
// Stop is called. Changes are delivered on the returned channel, which holds
// at most one undelivered Change; later bursts merge into it. The channel
// is never closed, so readers should also watch ctx.
func (w *Watcher) Start(ctx context.Context) (<-chan Change, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.watcher = fw
	w.mu.Unlock()

	for _, dir := range w.dirs {
		if err := w.addRecursive(dir); err != nil {
			w.Stop()
			return nil, err
		}
	}

	go w.processEvents(ctx, fw)

	logging.Info(logSubsystem, "Watching %d directories for changes", len(w.dirs))
	return w.changes, nil
}

// Stop closes the underlying watcher and cancels a pending change.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.pending = make(map[string]struct{})

	if w.watcher == nil {
		return nil
	}
	err := w.watcher.Close()
	w.watcher = nil
	return err
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logging.Debug(logSubsystem, "Skipping %s: %v", path, err)
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		if path != root && w.ignore(path) {
			return filepath.SkipDir
		}

		w.mu.Lock()
		fw := w.watcher
		w.mu.Unlock()
		if fw == nil {
			return fs.SkipAll
		}
		if err := fw.Add(path); err != nil {
			logging.Warn(logSubsystem, "Failed to watch %s: %v", path, err)
			return nil
		}
		logging.Debug(logSubsystem, "Watching directory: %s", path)
		return nil
	})
}

func (w *Watcher) processEvents(ctx context.Context, fw *fsnotify.Watcher) {
	defer w.Stop()
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			logging.Error(logSubsystem, err, "Filesystem watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod || w.ignore(event.Name) {
		return
	}

	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil && !errors.Is(err, fs.ErrNotExist) {
				logging.Warn(logSubsystem, "Failed to watch new directory %s: %v", event.Name, err)
			}
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[event.Name] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

// flush emits the pending paths as one Change.
func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.timer = nil
	w.mu.Unlock()

	sort.Strings(paths)
	change := Change{Paths: paths, Time: time.Now()}

	select {
	case w.changes <- change:
		logging.Debug(logSubsystem, "Detected %d changed paths", len(paths))
	default:
		// Fold into the undelivered change.
		select {
		case prev := <-w.changes:
			change.Paths = mergePaths(prev.Paths, change.Paths)
		default:
		}
		select {
		case w.changes <- change:
		default:
			logging.Debug(logSubsystem, "Dropping change batch, a rerun is already pending")
		}
	}
}

func mergePaths(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, p := range append(append([]string(nil), a...), b...) {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// uniqueDirs drops duplicates and directories nested inside another entry.
func uniqueDirs(dirs []string) []string {
	cleaned := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if abs, err := filepath.Abs(d); err == nil {
			d = abs
		}
		cleaned = append(cleaned, filepath.Clean(d))
	}
	sort.Strings(cleaned)

	var out []string
	for _, d := range cleaned {
		if len(out) > 0 {
			last := out[len(out)-1]
			if d == last || strings.HasPrefix(d, last+string(filepath.Separator)) {
				continue
			}
		}
		out = append(out, d)
	}
	return out
}
