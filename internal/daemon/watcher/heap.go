// Package watcher turns changes to session files into live updates.
package watcher

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/grovetools/orion/internal/daemon/store"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce is how long a heap file must stay quiet before it is read.
const DefaultDebounce = 50 * time.Millisecond

// HeapWatcher publishes a heap_changed update whenever a session's heap
// snapshot is rewritten with valid content. It follows session creation and
// removal through the store's updates.
type HeapWatcher struct {
	watcher  *fsnotify.Watcher
	store    *store.Store
	updates  chan store.Update
	debounce time.Duration
	logger   *logrus.Entry

	mu      sync.Mutex
	tokens  map[string]string // watched dir -> token
	timers  map[string]*time.Timer
	last    map[string][]byte
	closing bool
}

// NewHeapWatcher creates a watcher for every current and future session of st.
func NewHeapWatcher(st *store.Store, debounce time.Duration, logger *logrus.Entry) (*HeapWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &HeapWatcher{
		watcher:  watcher,
		store:    st,
		updates:  st.Subscribe(),
		debounce: debounce,
		logger:   logger,
		tokens:   make(map[string]string),
		timers:   make(map[string]*time.Timer),
		last:     make(map[string][]byte),
	}
	for _, s := range st.List() {
		w.add(s.Token, s.Dir)
	}
	return w, nil
}

// Start processes file and session events. It blocks until ctx is cancelled
// or the watcher is closed.
func (w *HeapWatcher) Start(ctx context.Context) {
	defer w.Close()
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.handleChange(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Error("Watcher error")
		case u, ok := <-w.updates:
			if !ok {
				return
			}
			switch u.Type {
			case store.UpdateSessionCreated:
				if sess, err := w.store.Get(u.Token); err == nil {
					w.add(u.Token, sess.Dir.Path)
				}
			case store.UpdateSessionClosed:
				w.remove(u.Token)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Watching reports whether the session's directory is being watched.
func (w *HeapWatcher) Watching(token string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, t := range w.tokens {
		if t == token {
			return true
		}
	}
	return false
}

func (w *HeapWatcher) add(token, dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closing {
		return
	}
	if err := w.watcher.Add(dir); err != nil {
		w.logger.WithError(err).WithField("session", token).Warn("Failed to watch session directory")
		return
	}
	w.tokens[dir] = token
	w.logger.WithField("session", token).Debug("Watching heap snapshot")
}

func (w *HeapWatcher) remove(token string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for dir, t := range w.tokens {
		if t != token {
			continue
		}
		// The directory is usually gone already, which drops the watch.
		_ = w.watcher.Remove(dir)
		delete(w.tokens, dir)
	}
	if timer, ok := w.timers[token]; ok {
		timer.Stop()
		delete(w.timers, token)
	}
	delete(w.last, token)
}

// handleChange schedules a read once writes to the heap file settle. Writes
// to any other file in the session directory are ignored.
func (w *HeapWatcher) handleChange(path string) {
	w.mu.Lock()
	token, ok := w.tokens[filepath.Dir(path)]
	w.mu.Unlock()
	if !ok {
		return
	}
	sess, err := w.store.Get(token)
	if err != nil || sess.Dir.Heap() != path {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closing {
		return
	}
	if timer, ok := w.timers[token]; ok {
		timer.Reset(w.debounce)
		return
	}
	w.timers[token] = time.AfterFunc(w.debounce, func() { w.publish(token) })
}

func (w *HeapWatcher) publish(token string) {
	w.mu.Lock()
	delete(w.timers, token)
	w.mu.Unlock()

	sess, err := w.store.Get(token)
	if err != nil {
		return
	}
	heap, err := sess.Dir.ReadHeap()
	if err != nil {
		w.logger.WithField("session", token).WithError(err).Debug("Ignoring partial heap snapshot")
		return
	}

	w.mu.Lock()
	unchanged := bytes.Equal(w.last[token], heap)
	w.last[token] = append([]byte(nil), heap...)
	w.mu.Unlock()
	if unchanged {
		return
	}

	w.store.Publish(store.Update{Type: store.UpdateHeapChanged, Token: token, Source: "watcher", Payload: heap})
}

// Close stops the watcher and releases resources.
func (w *HeapWatcher) Close() error {
	w.mu.Lock()
	if w.closing {
		w.mu.Unlock()
		return nil
	}
	w.closing = true
	for _, timer := range w.timers {
		timer.Stop()
	}
	w.mu.Unlock()

	w.store.Unsubscribe(w.updates)
	return w.watcher.Close()
}
