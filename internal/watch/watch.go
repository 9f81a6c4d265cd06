// Package watch regenerates the tag file when watched source trees
// change.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"tagsmith/internal/config"
	"tagsmith/internal/generate"
	"tagsmith/internal/parser"
)

// DebounceInterval is how long after the last event a regeneration
// waits, so bursts of writes collapse into one run.
const DebounceInterval = 500 * time.Millisecond

// Watcher regenerates tags for a set of paths on file-system events.
type Watcher struct {
	opts  *config.Options
	log   *slog.Logger
	paths []string
}

// New returns a watcher over the given paths.
func New(opts *config.Options, log *slog.Logger, paths []string) *Watcher {
	if len(paths) == 0 {
		paths = []string{"."}
	}
	return &Watcher{opts: opts, log: log, paths: paths}
}

// Run generates once, then blocks regenerating on changes until the
// context is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.regenerate(ctx); err != nil {
		return err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	for _, path := range w.paths {
		if err := addRecursive(fsw, path); err != nil {
			return err
		}
	}

	var timer *time.Timer
	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					addRecursive(fsw, event.Name)
				}
			}
			if timer == nil {
				timer = time.NewTimer(DebounceInterval)
			} else {
				timer.Reset(DebounceInterval)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			if err := w.regenerate(ctx); err != nil {
				w.log.Error("regeneration failed", "error", err)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)
		}
	}
}

// relevant filters events down to supported source files being
// written, created, renamed, or removed.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	const ops = fsnotify.Write | fsnotify.Create | fsnotify.Rename | fsnotify.Remove
	if event.Op&ops == 0 {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	if base == w.opts.TagFileName || base == filepath.Base(w.opts.TagFileName) {
		return false
	}
	if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
		return true
	}
	return parser.Detect(event.Name) != nil
}

func (w *Watcher) regenerate(ctx context.Context) error {
	start := time.Now()
	report, err := generate.Run(ctx, w.opts, w.log, w.paths)
	if err != nil {
		return err
	}
	w.log.Info("tags regenerated",
		"files", report.FilesScanned,
		"tags", report.TagsWritten,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

func addRecursive(fsw *fsnotify.Watcher, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fsw.Add(filepath.Dir(root))
	}
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}
