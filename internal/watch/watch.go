// Package watch rebuilds the site when files under the content or theme
// directories change.
package watch

import (
	"context"
	stderrors "errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/moklog/internal/build"
	"git.home.luguber.info/inful/moklog/internal/foundation/errors"
	"git.home.luguber.info/inful/moklog/internal/logfields"
	"git.home.luguber.info/inful/moklog/internal/observability"
)

// TriggerName is recorded on builds started by the watcher.
const TriggerName = "watch"

// Builder runs one build. build.Runner satisfies it.
type Builder interface {
	Build(ctx context.Context) (*build.Report, error)
}

// Config tunes the debounce behaviour.
type Config struct {
	// QuietWindow is how long the tree must stay unchanged before a build starts.
	QuietWindow time.Duration
	// MaxDelay bounds how long a stream of changes can postpone a build.
	MaxDelay time.Duration
}

// Watcher coalesces bursts of file events into single builds.
type Watcher struct {
	roots   []string
	cfg     Config
	builder Builder
	logger  *slog.Logger

	readyOnce sync.Once
	ready     chan struct{}
	builds    sync.WaitGroup
}

// New creates a watcher over the given root directories.
func New(builder Builder, cfg Config, roots ...string) (*Watcher, error) {
	if builder == nil {
		return nil, errors.ValidationError("builder is required").Build()
	}
	if len(roots) == 0 {
		return nil, errors.ValidationError("at least one directory must be watched").Build()
	}
	if cfg.QuietWindow <= 0 {
		return nil, errors.ValidationError("quiet window must be > 0").Build()
	}
	if cfg.MaxDelay < cfg.QuietWindow {
		cfg.MaxDelay = 10 * cfg.QuietWindow
	}
	return &Watcher{roots: roots, cfg: cfg, builder: builder, logger: slog.Default(), ready: make(chan struct{})}, nil
}

// WithLogger replaces the logger.
func (w *Watcher) WithLogger(l *slog.Logger) *Watcher {
	if l != nil {
		w.logger = l
	}
	return w
}

// Ready is closed once every root is being watched.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

// Run watches until ctx ends. Builds still running when ctx ends are awaited.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.WrapError(err, errors.CategoryFileSystem, "failed to create file watcher").Build()
	}
	defer func() {
		if cerr := fw.Close(); cerr != nil {
			w.logger.Error("Error closing file watcher", logfields.Error(cerr))
		}
	}()
	defer w.builds.Wait()

	for _, root := range w.roots {
		if err := w.addTree(fw, root); err != nil {
			return err
		}
	}
	w.logger.Info("Watching for changes", slog.Any("dirs", w.roots), slog.Duration("quiet", w.cfg.QuietWindow))
	w.readyOnce.Do(func() { close(w.ready) })

	quiet := newStoppedTimer()
	maxDelay := newStoppedTimer()
	var quietC, maxC <-chan time.Time
	changes := 0

	for {
		select {
		case <-ctx.Done():
			quiet.Stop()
			maxDelay.Stop()
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(fw, event) {
				continue
			}
			w.logger.Debug("Change detected", logfields.Path(event.Name), slog.String("op", event.Op.String()))
			changes++
			resetTimer(quiet, w.cfg.QuietWindow)
			quietC = quiet.C
			if maxC == nil {
				resetTimer(maxDelay, w.cfg.MaxDelay)
				maxC = maxDelay.C
			}

		case <-quietC:
			w.fire(ctx, changes, "quiet")
			changes, quietC, maxC = 0, nil, nil
			maxDelay.Stop()

		case <-maxC:
			w.fire(ctx, changes, "max_delay")
			changes, quietC, maxC = 0, nil, nil
			quiet.Stop()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Watcher error", logfields.Error(err))
		}
	}
}

// fire starts a build without blocking the event loop; the runner coalesces
// overlapping requests.
func (w *Watcher) fire(ctx context.Context, changes int, cause string) {
	w.logger.Info("Rebuilding", logfields.Count(changes), logfields.Reason(cause))
	w.builds.Add(1)
	go func() {
		defer w.builds.Done()
		bctx := observability.WithTrigger(context.WithoutCancel(ctx), TriggerName)
		if _, err := w.builder.Build(bctx); err != nil {
			w.logger.Error("Rebuild failed", logfields.Error(err))
		}
	}()
}

// relevant filters editor noise and starts watching newly created directories.
func (w *Watcher) relevant(fw *fsnotify.Watcher, event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	name := filepath.Base(event.Name)
	if skipName(name) {
		return false
	}
	if event.Has(fsnotify.Create) {
		if err := w.addTree(fw, event.Name); err != nil {
			w.logger.Warn("Cannot watch new directory", logfields.Path(event.Name), logfields.Error(err))
		}
	}
	return true
}

// addTree watches dir and every directory below it. Non-directories are ignored.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				if stderrors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return errors.WrapError(err, errors.CategoryFileSystem, "cannot watch directory").
					WithContext("path", dir).Build()
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && skipName(d.Name()) {
			return filepath.SkipDir
		}
		if err := fw.Add(p); err != nil {
			return errors.WrapError(err, errors.CategoryFileSystem, "cannot watch directory").
				WithContext("path", p).Build()
		}
		return nil
	})
}

func skipName(name string) bool {
	return name == ".git" || strings.HasSuffix(name, "~") || strings.HasSuffix(name, ".swp") ||
		strings.HasPrefix(name, ".#")
}

func newStoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return t
}

func resetTimer(t *time.Timer, after time.Duration) {
	t.Stop()
	t.Reset(after)
}
