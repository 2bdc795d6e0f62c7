// internal/watch/watcher.go
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pubgate/internal/config"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reports debounced filesystem activity under the published
// directories. Callbacks run on the watcher goroutine, one at a time.
type Watcher struct {
	root       string
	published  config.PublishedSet
	debounce   time.Duration
	watcher    *fsnotify.Watcher
	ignoreDirs map[string]bool
	logger     *zap.Logger
}

func New(cfg *config.Config, logger *zap.Logger) (*Watcher, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path for root %s: %w", cfg.Root, err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &Watcher{
		root:      root,
		published: cfg.Published(),
		debounce:  cfg.Watch.Debounce,
		watcher:   fw,
		ignoreDirs: map[string]bool{
			".git":         true,
			"node_modules": true,
		},
		logger: logger,
	}

	// The root itself is watched so that a published dir created later
	// is picked up.
	if err := fw.Add(root); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", root, err)
	}
	for dir := range w.published {
		if err := w.addTree(filepath.Join(root, dir)); err != nil {
			fw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// addTree watches dir and every directory below it. A missing dir is
// not an error.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.ignoreDirs[d.Name()] {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("adding directory to watcher: %w", err)
		}
		return nil
	})
}

// Relevant reports whether an absolute event path lies under a
// published directory.
func (w *Watcher) Relevant(name string) bool {
	rel, err := filepath.Rel(w.root, name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, part := range strings.Split(rel, "/") {
		if w.ignoreDirs[part] {
			return false
		}
	}
	return w.published.Contains(rel)
}

// Run blocks until ctx is done, calling onChange once per burst of
// relevant events.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context)) error {
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.handleFSEvent(event) {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", zap.Error(err))
		case <-timer.C:
			onChange(ctx)
		}
	}
}

// handleFSEvent registers new directories and reports whether the event
// should trigger an evaluation.
func (w *Watcher) handleFSEvent(event fsnotify.Event) bool {
	if !w.Relevant(event.Name) {
		return false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Error("adding new directory to watcher", zap.Error(err))
			}
		}
	}

	w.logger.Debug("filesystem event",
		zap.String("path", event.Name),
		zap.String("op", event.Op.String()))
	return event.Op != fsnotify.Chmod
}
