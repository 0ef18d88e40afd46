// Package watch turns changes to the users file into reload calls.
//
// The watcher observes the file's parent directory rather than the file
// itself: editors and configuration management tools commonly replace a file
// by writing a temporary and renaming it over the original, which drops an
// inotify watch held on the old inode. Kubernetes ConfigMap volumes swap a
// "..data" symlink in the same directory; those events count as changes too.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/marmos91/yamlauth/internal/logger"
)

// DefaultDebounce is used when a non-positive debounce is requested.
const DefaultDebounce = 500 * time.Millisecond

const relevantOps = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove

// Watcher calls a function once per burst of changes to a single file.
type Watcher struct {
	path     string
	debounce time.Duration
	onChange func(ctx context.Context)
	fsw      *fsnotify.Watcher
	log      *slog.Logger
}

// New starts watching the directory that contains path. onChange runs on the
// Run goroutine, so a slow callback delays the next one instead of
// overlapping with it.
func New(path string, debounce time.Duration, onChange func(ctx context.Context)) (*Watcher, error) {
	if onChange == nil {
		return nil, errors.New("watch: nil change callback")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve %q: %w", path, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	return &Watcher{
		path:     abs,
		debounce: debounce,
		onChange: onChange,
		fsw:      fsw,
		log:      logger.With(logger.KeyComponent, "watch", logger.KeyPath, abs),
	}, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Run dispatches events until ctx is cancelled, then closes the underlying
// watcher. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() { _ = w.fsw.Close() }()

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.log.Debug("users file event", "event", event.Op.String(), "name", event.Name)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			w.onChange(ctx)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			// Overflows and transient errors are not fatal; the next event
			// still triggers a reload.
			w.log.Warn("file watcher error", logger.Err(err))
		}
	}
}

// Close stops the watcher without waiting for Run.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&relevantOps == 0 {
		return false
	}
	name := filepath.Clean(event.Name)
	if name == w.path {
		return true
	}
	return strings.HasPrefix(filepath.Base(name), "..")
}
