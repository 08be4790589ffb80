package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	goutils "go.viam.com/utils"

	"go.viam.com/machina/logging"
)

// watchDebounce coalesces the burst of events editors produce on save.
const watchDebounce = 100 * time.Millisecond

// A Watcher re-reads a config file every time it changes.
type Watcher struct {
	path    string
	logger  logging.Logger
	watcher *fsnotify.Watcher
	configs chan *Config

	cancelCtx context.Context
	cancel    func()
	workers   sync.WaitGroup
}

// NewWatcher starts watching the config file at path. Configs that fail to read are logged and
// skipped.
func NewWatcher(ctx context.Context, path string, logger logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// the directory, since editors often replace the file instead of writing it
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		goutils.UncheckedError(fsw.Close())
		return nil, err
	}

	cancelCtx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		path:      filepath.Clean(path),
		logger:    logger,
		watcher:   fsw,
		configs:   make(chan *Config),
		cancelCtx: cancelCtx,
		cancel:    cancel,
	}
	w.workers.Add(1)
	goutils.ManagedGo(w.watch, w.workers.Done)
	return w, nil
}

// Config returns the channel new configs are sent on.
func (w *Watcher) Config() <-chan *Config {
	return w.configs
}

func (w *Watcher) watch() {
	debounced := debounce.New(watchDebounce)
	for {
		select {
		case <-w.cancelCtx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			debounced(w.reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("error watching config", "path", w.path, "error", err)
		}
	}
}

func (w *Watcher) reload() {
	conf, err := Read(w.path)
	if err != nil {
		w.logger.Errorw("cannot read changed config", "path", w.path, "error", err)
		return
	}
	w.logger.Debugw("config changed", "path", w.path)
	select {
	case w.configs <- conf:
	case <-w.cancelCtx.Done():
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	w.workers.Wait()
	return err
}
