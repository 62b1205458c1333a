// Package watcher monitors a drop-in directory and feeds new or changed
// documents into the ingestion path.
package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DocumentCallback receives the path of a settled new or changed document
type DocumentCallback func(path string) error

// Watcher debounces filesystem events on one ingest directory. Rapid write
// bursts to the same file collapse into a single callback once the file has
// been stable for the configured threshold.
type Watcher struct {
	watcher    *fsnotify.Watcher
	dir        string
	debounce   time.Duration
	onDocument DocumentCallback
	logger     zerolog.Logger

	done     chan struct{}
	timers   map[string]*time.Timer
	mu       sync.Mutex
	stopOnce sync.Once
}

// Config holds watcher configuration
type Config struct {
	Dir        string
	Debounce   time.Duration
	OnDocument DocumentCallback
	Logger     zerolog.Logger
}

// New creates a watcher over the configured drop-in directory
func New(cfg Config) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("watch directory is required")
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = 500 * time.Millisecond
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Watcher{
		watcher:    fw,
		dir:        cfg.Dir,
		debounce:   cfg.Debounce,
		onDocument: cfg.OnDocument,
		logger:     cfg.Logger,
		done:       make(chan struct{}),
		timers:     make(map[string]*time.Timer),
	}, nil
}

// Start begins watching. The directory is created if missing.
func (w *Watcher) Start() error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create ingest directory: %w", err)
	}
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch ingest directory: %w", err)
	}

	go w.eventLoop()

	w.logger.Info().Str("dir", w.dir).Msg("ingest watcher started")
	return nil
}

// Stop halts watching and cancels pending debounce timers
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)
	})

	w.mu.Lock()
	for _, timer := range w.timers {
		timer.Stop()
	}
	clear(w.timers)
	w.mu.Unlock()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	w.logger.Info().Msg("ingest watcher stopped")
	return nil
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("ingest watcher error")

		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if w.shouldIgnore(event.Name) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, exists := w.timers[event.Name]; exists {
		timer.Stop()
	}

	path := event.Name
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()

		select {
		case <-w.done:
			return
		default:
		}

		if info, err := os.Stat(path); err != nil || info.IsDir() {
			return
		}

		if err := w.onDocument(path); err != nil {
			w.logger.Error().Err(err).Str("path", path).Msg("failed to ingest document")
		}
	})
}

// shouldIgnore filters hidden files and editor temp artifacts
func (w *Watcher) shouldIgnore(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return true
	}
	switch {
	case strings.HasSuffix(name, "~"),
		strings.HasSuffix(name, ".swp"),
		strings.HasSuffix(name, ".tmp"),
		strings.HasSuffix(name, ".part"):
		return true
	}
	return false
}
