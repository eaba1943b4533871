package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/frc-reefscape/reefbot/logging"
	"github.com/frc-reefscape/reefbot/utils"
)

// DefaultWatchDebounce is how long the file has to be quiet before it is re-read.
const DefaultWatchDebounce = 250 * time.Millisecond

// A Watcher re-reads a config file whenever it changes and delivers every valid result. Invalid
// configs are logged and skipped.
type Watcher struct {
	path    string
	logger  logging.Logger
	fsw     *fsnotify.Watcher
	out     chan *Config
	workers utils.StoppableWorkers
}

// NewWatcher starts watching the config file at path. Editors often replace the file rather than
// write it in place, so the containing directory is watched and events are filtered by name.
func NewWatcher(ctx context.Context, path string, debounceFor time.Duration, logger logging.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot resolve %q", path)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "cannot create file watcher")
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, errors.Wrapf(err, "cannot watch %q", filepath.Dir(abs))
	}
	if debounceFor <= 0 {
		debounceFor = DefaultWatchDebounce
	}
	w := &Watcher{
		path:   abs,
		logger: logger,
		fsw:    fsw,
		out:    make(chan *Config, 1),
	}
	w.workers = utils.NewStoppableWorkersWithContext(ctx, func(ctx context.Context) {
		w.watch(ctx, debounce.New(debounceFor))
	})
	return w, nil
}

// Config returns the channel valid configs are delivered on. Only the newest undelivered config
// is kept.
func (w *Watcher) Config() <-chan *Config {
	return w.out
}

func (w *Watcher) watch(ctx context.Context, debounced func(func())) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			debounced(func() { w.reload(ctx) })
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	cfg, err := Read(w.path)
	if err != nil {
		w.logger.Errorw("ignoring invalid config", "path", w.path, "error", err)
		return
	}
	w.logger.Infow("config changed", "path", w.path)
	// Replace any config the consumer has not picked up yet.
	select {
	case <-w.out:
	default:
	}
	select {
	case w.out <- cfg:
	default:
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	w.workers.Stop()
	return err
}
