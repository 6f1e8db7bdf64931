package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/marcus/triage/internal/logging"
)

// DefaultDebounce is used when a FileWatcher is created with a zero window.
const DefaultDebounce = 500 * time.Millisecond

// Change describes the last filesystem event in a debounced burst.
type Change struct {
	Path string
	Op   string // create, write, remove, rename
}

// FileWatcher watches a single file. The parent directory is watched so
// editors that save through rename-and-replace are still seen.
type FileWatcher struct {
	path     string
	debounce time.Duration
	onChange func(Change)
	watcher  *fsnotify.Watcher
	logger   *logging.Logger
}

// NewFileWatcher creates a watcher for path.
func NewFileWatcher(path string, debounce time.Duration, onChange func(Change)) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	return &FileWatcher{
		path:     abs,
		debounce: debounce,
		onChange: onChange,
		watcher:  w,
		logger:   logging.Component("watch"),
	}, nil
}

// Path returns the absolute path being watched.
func (w *FileWatcher) Path() string {
	return w.path
}

// Run delivers debounced changes until ctx is cancelled. The underlying
// watcher is closed on return.
func (w *FileWatcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	fire := make(chan struct{}, 1)
	var last Change
	debouncer := NewDebouncer(w.debounce, func() {
		select {
		case fire <- struct{}{}:
		default:
		}
	})
	defer debouncer.Stop()

	w.logger.InfoCtx("watching file", map[string]any{"path": w.path, "debounce": w.debounce.String()})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-fire:
			if w.onChange != nil {
				w.onChange(last)
			}

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			op := opName(event.Op)
			if op == "" {
				continue
			}
			w.logger.DebugCtx("file event", map[string]any{"path": event.Name, "op": op})
			last = Change{Path: w.path, Op: op}
			debouncer.Trigger()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

func opName(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	default:
		return ""
	}
}
