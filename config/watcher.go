package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"shopvox/log"
)

const reloadDebounce = 150 * time.Millisecond

// Watcher reloads the config file when it changes. Only base_url and
// recognizer changes need a restart; callbacks decide what to apply.
type Watcher struct {
	path string
	ov   Overrides

	mu        sync.Mutex
	current   *Config
	callbacks []func(old, new *Config)
	timer     *time.Timer
	closed    bool
	reloads   sync.WaitGroup

	fs   *fsnotify.Watcher
	stop chan struct{}
	done chan struct{}
}

// Watch follows cfg.Path. The directory is watched rather than the file so
// editors that replace the file on save are still seen.
func Watch(cfg *Config, ov Overrides) (*Watcher, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("watch config: no config file loaded")
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch config: %w", err)
	}
	path, err := filepath.Abs(cfg.Path)
	if err != nil {
		fs.Close()
		return nil, err
	}
	if err := fs.Add(filepath.Dir(path)); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watch config: %w", err)
	}
	ov.ConfigPath = path

	w := &Watcher{
		path:    path,
		ov:      ov,
		current: cfg,
		fs:      fs,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) OnChange(fn func(old, new *Config)) {
	w.mu.Lock()
	w.callbacks = append(w.callbacks, fn)
	w.mu.Unlock()
}

func (w *Watcher) Config() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Close stops watching and waits for a reload in progress. No callback
// runs after Close returns, so callbacks must not call Close themselves.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	close(w.stop)
	err := w.fs.Close()
	<-w.done
	w.reloads.Wait()
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)

	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			if !w.closed {
				w.timer = time.AfterFunc(reloadDebounce, w.reload)
			}
			w.mu.Unlock()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			log.Warnf("config watcher: %v", err)
		case <-w.stop:
			return
		}
	}
}

func (w *Watcher) reload() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.reloads.Add(1)
	w.mu.Unlock()
	defer w.reloads.Done()

	next, err := Load(w.ov)
	if err != nil {
		log.Warnf("config reload rejected: %v", err)
		return
	}

	w.mu.Lock()
	old := w.current
	changes := Diff(old, next)
	if len(changes) == 0 {
		w.mu.Unlock()
		return
	}
	w.current = next
	callbacks := append([]func(old, new *Config)(nil), w.callbacks...)
	w.mu.Unlock()

	log.ConfigReloaded(w.path, changes)
	for _, fn := range callbacks {
		fn(old, next)
	}
}
