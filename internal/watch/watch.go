package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fmueller/voxlate/internal/audio"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const DefaultDelay = 2 * time.Second

// Handler processes one settled audio file.
type Handler func(ctx context.Context, path string) error

type Options struct {
	Dir string
	// Delay is how long a file must stay unmodified before it is handled.
	Delay       time.Duration
	DeleteAfter bool
	Handler     Handler
	Logger      *zap.Logger
}

// Watcher ingests audio files dropped into a directory. Files are handled
// one at a time in the order they settle; handler failures are logged and
// never stop the watcher.
type Watcher struct {
	opts    Options
	mu      sync.Mutex
	pending map[string]*time.Timer
	ready   chan string
	stopped chan struct{}
}

func New(opts Options) (*Watcher, error) {
	if opts.Dir == "" {
		return nil, errors.New("watch directory is required")
	}
	if opts.Handler == nil {
		return nil, errors.New("handler is required")
	}
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Watcher{
		opts:    opts,
		pending: make(map[string]*time.Timer),
		ready:   make(chan string, 64),
		stopped: make(chan struct{}),
	}, nil
}

func (w *Watcher) Run(ctx context.Context) error {
	info, err := os.Stat(w.opts.Dir)
	if err != nil {
		return fmt.Errorf("watch directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch directory: %s is not a directory", w.opts.Dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.opts.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.opts.Dir, err)
	}
	w.opts.Logger.Info("watching directory", zap.String("dir", w.opts.Dir), zap.Duration("delay", w.opts.Delay))

	if err := w.enqueueExisting(); err != nil {
		return err
	}
	defer close(w.stopped)
	defer w.stopPending()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.opts.Logger.Warn("watcher error", zap.Error(err))
		case path := <-w.ready:
			w.process(ctx, path)
		}
	}
}

func (w *Watcher) enqueueExisting() error {
	entries, err := os.ReadDir(w.opts.Dir)
	if err != nil {
		return fmt.Errorf("list %s: %w", w.opts.Dir, err)
	}
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			w.schedule(filepath.Join(w.opts.Dir, entry.Name()))
		}
	}
	return nil
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		w.schedule(event.Name)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.cancel(event.Name)
	}
}

// schedule (re)arms the settle timer for path.
func (w *Watcher) schedule(path string) {
	if !audio.IsSupportedExtension(path) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.opts.Delay)
		return
	}
	w.pending[path] = time.AfterFunc(w.opts.Delay, func() {
		w.mu.Lock()
		_, exists := w.pending[path]
		delete(w.pending, path)
		w.mu.Unlock()

		if !exists {
			return
		}
		select {
		case w.ready <- path:
		case <-w.stopped:
		}
	})
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	logger := w.opts.Logger.With(zap.String("audio", path))
	if _, err := os.Stat(path); err != nil {
		logger.Debug("file vanished before processing", zap.Error(err))
		return
	}

	started := time.Now()
	if err := w.opts.Handler(ctx, path); err != nil {
		logger.Warn("failed to process file", zap.Error(err))
		return
	}
	logger.Info("file processed", zap.Duration("elapsed", time.Since(started)))

	if w.opts.DeleteAfter {
		if err := os.Remove(path); err != nil {
			logger.Warn("failed to delete processed file", zap.Error(err))
		}
	}
}
