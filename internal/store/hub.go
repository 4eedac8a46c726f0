package store

import (
	"strings"
	"sync"
)

// Hub fans path change notifications out to registered watchers. Both
// store implementations share it: a write publishes the changed path and
// every watcher whose watched path is related to it receives a fresh
// snapshot of what it watches.
type Hub struct {
	mu       sync.Mutex
	watchers map[int]*watcher
	nextID   int
}

type watcher struct {
	path string
	fn   Listener
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{watchers: make(map[int]*watcher)}
}

// Register adds a watcher and returns its cancel func. The caller is
// responsible for delivering the initial snapshot; registration and that
// first read must happen under the same store-side lock so no change is
// missed in between.
func (h *Hub) Register(path string, fn Listener) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.watchers[id] = &watcher{path: path, fn: fn}
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.watchers, id)
			h.mu.Unlock()
		})
	}
}

// Broadcast notifies every watcher related to the changed path. The lookup
// func materializes the snapshot of a watched path and reports false when
// it cannot; it runs outside the hub lock, so listeners may issue store
// operations without deadlocking.
func (h *Hub) Broadcast(changedPath string, lookup func(path string) (Snapshot, bool)) {
	h.mu.Lock()
	targets := make([]*watcher, 0, len(h.watchers))
	for _, w := range h.watchers {
		if pathsRelated(w.path, changedPath) {
			targets = append(targets, w)
		}
	}
	h.mu.Unlock()

	for _, w := range targets {
		if snapshot, ok := lookup(w.path); ok {
			w.fn(snapshot)
		}
	}
}

// pathsRelated reports whether a change at one path is visible from a
// watch at the other: equal paths, or one an ancestor of the other.
func pathsRelated(a, b string) bool {
	a = strings.Trim(a, "/")
	b = strings.Trim(b, "/")
	if a == b {
		return true
	}
	return strings.HasPrefix(a, b+"/") || strings.HasPrefix(b, a+"/")
}
