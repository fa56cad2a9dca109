package engine

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"testlint/internal/logging"
)

// Watcher re-runs analysis when source files under the root change. Rapid
// save bursts are debounced so one editor write triggers one run.
type Watcher struct {
	root     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
}

// NewWatcher creates a watcher over the repository root.
func NewWatcher(root string, debounce time.Duration) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{root: root, debounce: debounce, watcher: w}, nil
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error { return w.watcher.Close() }

// Run watches until the context is cancelled, invoking onChange after each
// debounced batch of relevant events. Directories created during the run are
// added to the watch set as they appear.
func (w *Watcher) Run(ctx context.Context, onChange func()) error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}
	logging.Engine("watch mode: watching %s", w.root)

	var timer *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			if ev.Op.Has(fsnotify.Create) {
				// New directories need explicit watches.
				_ = w.addRecursive(ev.Name)
			}
			logging.EngineDebug("watch event: %s %s", ev.Op, ev.Name)
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logging.EngineError("watch error: %v", err)

		case <-fire:
			onChange()
		}
	}
}

// relevant filters events down to analyzable source files.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
		return false
	}
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	// Directory events matter for addRecursive; source files for re-runs.
	ext := filepath.Ext(base)
	return ext == "" || ext == ".go" || ext == ".py" || ext == ".js" || ext == ".jsx" ||
		ext == ".mjs" || ext == ".ts" || ext == ".tsx" || ext == ".rs" || ext == ".yaml" || ext == ".yml"
}

func (w *Watcher) addRecursive(path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable subtrees are skipped, not fatal
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if p != path && (strings.HasPrefix(name, ".") || name == "node_modules" || name == "vendor" || name == "target" || name == "__pycache__") {
			return filepath.SkipDir
		}
		_ = w.watcher.Add(p)
		return nil
	})
}
