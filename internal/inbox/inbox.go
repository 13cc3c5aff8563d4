// Package inbox watches a drop directory for documents to hand to the agent.
package inbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

const debounceInterval = 500 * time.Millisecond

// accepted lists the document types the agent can read.
var accepted = []string{"application/pdf", "text/plain"}

// Document is a file that settled in the inbox.
type Document struct {
	Path     string
	Name     string
	MIME     string
	Size     int64
	Modified time.Time
}

// Callback is called once per settled document version.
type Callback func(Document)

// Watcher monitors one directory.
type Watcher struct {
	dir      string
	debounce time.Duration
	callback Callback
	logger   *zap.Logger

	fsWatcher *fsnotify.Watcher
	cancel    chan struct{}
	wg        sync.WaitGroup

	mu     sync.Mutex
	timers map[string]*time.Timer
	seen   map[string]time.Time
	closed bool
}

// Option tunes a Watcher.
type Option func(*Watcher)

// WithDebounce overrides the settle interval.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New starts watching dir. Files already present are not reported.
func New(dir string, callback Callback, logger *zap.Logger, opts ...Option) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("inbox: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("inbox: %s is not a directory", dir)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	fsW, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("inbox: %w", err)
	}
	if err := fsW.Add(dir); err != nil {
		fsW.Close()
		return nil, fmt.Errorf("inbox: watch %s: %w", dir, err)
	}

	w := &Watcher{
		dir:       dir,
		debounce:  debounceInterval,
		callback:  callback,
		logger:    logger.Named("inbox"),
		fsWatcher: fsW,
		cancel:    make(chan struct{}),
		timers:    make(map[string]*time.Timer),
		seen:      make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.wg.Add(1)
	go w.watchLoop()
	return w, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string { return w.dir }

// Close stops watching and cancels pending debounce timers.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()

	close(w.cancel)
	err := w.fsWatcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) watchLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.cancel:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if isHidden(filepath.Base(event.Name)) {
				continue
			}
			w.schedule(event.Name)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

// schedule resets the per-file debounce timer.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.settle(path)
	})
}

func (w *Watcher) settle(path string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	delete(w.timers, path)
	w.mu.Unlock()

	doc, err := Inspect(path)
	if err != nil {
		if !errors.Is(err, ErrUnsupported) && !errors.Is(err, os.ErrNotExist) {
			w.logger.Warn("inspect document", zap.String("path", path), zap.Error(err))
		} else {
			w.logger.Debug("skipping file", zap.String("path", path), zap.Error(err))
		}
		return
	}

	w.mu.Lock()
	if last, ok := w.seen[path]; ok && last.Equal(doc.Modified) {
		w.mu.Unlock()
		return
	}
	w.seen[path] = doc.Modified
	closed := w.closed
	w.mu.Unlock()

	if closed || w.callback == nil {
		return
	}
	w.logger.Info("document settled", zap.String("name", doc.Name), zap.String("mime", doc.MIME), zap.Int64("size", doc.Size))
	w.callback(doc)
}

// ErrUnsupported is returned for files the agent cannot read.
var ErrUnsupported = errors.New("unsupported document type")

// Inspect stats and sniffs one file.
func Inspect(path string) (Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Document{}, err
	}
	if info.IsDir() {
		return Document{}, fmt.Errorf("%s: %w", path, ErrUnsupported)
	}
	if info.Size() == 0 {
		return Document{}, fmt.Errorf("%s is empty: %w", path, ErrUnsupported)
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("detect %s: %w", path, err)
	}
	base, ok := acceptedMIME(mt)
	if !ok {
		return Document{}, fmt.Errorf("%s (%s): %w", path, mt.String(), ErrUnsupported)
	}
	return Document{
		Path:     path,
		Name:     filepath.Base(path),
		MIME:     base,
		Size:     info.Size(),
		Modified: info.ModTime(),
	}, nil
}

// acceptedMIME walks up from the sniffed type to the first accepted one, so
// text subtypes such as CSV count as plain text.
func acceptedMIME(mt *mimetype.MIME) (string, bool) {
	for m := mt; m != nil; m = m.Parent() {
		for _, a := range accepted {
			if m.Is(a) {
				return a, true
			}
		}
	}
	return "", false
}

func isHidden(name string) bool {
	return len(name) > 0 && name[0] == '.'
}
