// Package memory provides an in-memory document store, used in tests and
// as the default backend when no database is configured.
package memory

import (
	"context"
	"strings"
	"sync"

	"relaycloud/internal/store"
)

// Store keeps records in process memory and fans out changes through a hub.
type Store struct {
	mu      sync.RWMutex
	records map[string]store.Fields
	hub     *store.Hub
}

// New constructs an empty store.
func New() *Store {
	return &Store{
		records: make(map[string]store.Fields),
		hub:     store.NewHub(),
	}
}

// Get materializes the value at path.
func (s *Store) Get(ctx context.Context, path string) (store.Snapshot, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(path), nil
}

// Update merge-patches the record at path, creating it when absent.
func (s *Store) Update(ctx context.Context, path string, fields store.Fields) error {
	_ = ctx
	if err := store.ValidateRecordPath(path); err != nil {
		return err
	}
	if err := store.ValidateFields(fields); err != nil {
		return err
	}
	path = strings.Trim(path, "/")

	s.mu.Lock()
	record := s.records[path]
	if record == nil {
		record = make(store.Fields, len(fields))
		s.records[path] = record
	}
	for key, value := range fields {
		record[key] = value
	}
	s.mu.Unlock()

	s.hub.Broadcast(path, s.lookup)
	return nil
}

// Remove deletes the path and everything under it. No error when absent.
func (s *Store) Remove(ctx context.Context, path string) error {
	_ = ctx
	path = strings.Trim(path, "/")

	s.mu.Lock()
	removed := false
	if _, ok := s.records[path]; ok {
		delete(s.records, path)
		removed = true
	}
	prefix := path + "/"
	for key := range s.records {
		if strings.HasPrefix(key, prefix) {
			delete(s.records, key)
			removed = true
		}
	}
	s.mu.Unlock()

	if removed {
		s.hub.Broadcast(path, s.lookup)
	}
	return nil
}

// Watch subscribes to a path. The initial snapshot is read under the same
// registration critical section, so no change lands unseen between the
// read and the registration.
func (s *Store) Watch(path string, fn store.Listener) (func(), error) {
	s.mu.RLock()
	cancel := s.hub.Register(path, fn)
	initial := s.snapshotLocked(path)
	s.mu.RUnlock()

	fn(initial)
	return cancel, nil
}

func (s *Store) lookup(path string) (store.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(path), true
}

func (s *Store) snapshotLocked(path string) store.Snapshot {
	path = strings.Trim(path, "/")
	if record, ok := s.records[path]; ok {
		return store.RecordSnapshot(copyOf(record))
	}

	prefix := path + "/"
	var children map[string]store.Fields
	for key, record := range s.records {
		child := strings.TrimPrefix(key, prefix)
		if child == key || strings.Contains(child, "/") {
			continue
		}
		if children == nil {
			children = make(map[string]store.Fields)
		}
		children[child] = copyOf(record)
	}
	if children == nil {
		return store.Absent()
	}
	return store.CollectionSnapshot(children)
}

func copyOf(fields store.Fields) store.Fields {
	out := make(store.Fields, len(fields))
	for key, value := range fields {
		out[key] = value
	}
	return out
}
