package server

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
)

// watchDebounce collapses bursts of events from editors that write a file
// in several steps.
const watchDebounce = 100 * time.Millisecond

// Watcher follows a single CSSX source file and reports its content after
// each change settles.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	onChange func(content string)
	debounce func(func())
	done     chan struct{}
	stopOnce sync.Once
	debug    bool
}

// NewWatcher watches path. Its parent directory is watched so editors that
// replace the file by rename are still followed.
func NewWatcher(path string, onChange func(string), debug bool) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatcher.Add(filepath.Dir(abs)); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	if debug {
		log.Printf("[Watch] Watching %s", abs)
	}

	return &Watcher{
		watcher:  fsWatcher,
		path:     abs,
		onChange: onChange,
		debounce: debounce.New(watchDebounce),
		done:     make(chan struct{}),
		debug:    debug,
	}, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string { return w.path }

// Start begins watching for file changes.
func (w *Watcher) Start() {
	go func() {
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != w.path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if w.debug {
					log.Printf("[Watch] %s: %s", event.Op, filepath.Base(event.Name))
				}
				w.debounce(w.reload)

			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[Watch] Error: %v", err)

			case <-w.done:
				return
			}
		}
	}()
}

func (w *Watcher) reload() {
	select {
	case <-w.done:
		return
	default:
	}

	data, err := os.ReadFile(w.path)
	if err != nil {
		// Mid-rename; the following Create event reloads it.
		if w.debug {
			log.Printf("[Watch] Reload skipped: %v", err)
		}
		return
	}
	w.onChange(string(data))
}

// Stop stops the watcher. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}
