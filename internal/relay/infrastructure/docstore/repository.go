// Package docstore implements the relay repository on top of the
// path-addressed document store, scoped to one user.
package docstore

import (
	"context"
	"errors"
	"strconv"

	relay "relaycloud/internal/relay/domain"
	"relaycloud/internal/store"
)

// Repository synchronizes one user's relay collection with the document
// store. The owning user id is fixed at construction; no operation ever
// touches another user's subtree.
type Repository struct {
	store  store.Store
	userID string
}

// New constructs a repository for an authenticated user. The caller is
// responsible for only constructing repositories from live sessions.
func New(docs store.Store, userID string) (*Repository, error) {
	if docs == nil {
		return nil, errors.New("docstore: nil store")
	}
	if userID == "" {
		return nil, errors.New("docstore: empty user id")
	}
	return &Repository{store: docs, userID: userID}, nil
}

// Subscribe opens a live subscription to the user's collection. The
// callback fires once immediately with the current collection and again on
// every change until the returned func runs.
func (r *Repository) Subscribe(ctx context.Context, fn relay.SnapshotFunc) (relay.Unsubscribe, error) {
	_ = ctx
	cancel, err := r.store.Watch(store.RelayCollectionPath(r.userID), func(snapshot store.Snapshot) {
		fn(collectionFromSnapshot(snapshot))
	})
	if err != nil {
		return nil, err
	}
	return relay.Unsubscribe(cancel), nil
}

// FetchAll reads the full collection once; an absent path reads as empty.
func (r *Repository) FetchAll(ctx context.Context) (relay.Collection, error) {
	snapshot, err := r.store.Get(ctx, store.RelayCollectionPath(r.userID))
	if err != nil {
		return nil, err
	}
	return collectionFromSnapshot(snapshot), nil
}

// Create writes a new record with state=false. An existing record at the
// same id is overwritten silently.
func (r *Repository) Create(ctx context.Context, id int, device string) error {
	if id <= 0 {
		return relay.ErrInvalidID
	}
	if device == "" {
		return relay.ErrEmptyDeviceName
	}
	return r.store.Update(ctx, store.RelayPath(r.userID, id), store.Fields{
		store.FieldDevice: device,
		store.FieldState:  false,
	})
}

// SetState merge-patches only the state field. The existence pre-check
// keeps a patch from creating a partial record for an id that was deleted
// between snapshot and write.
func (r *Repository) SetState(ctx context.Context, id int, state bool) error {
	if id <= 0 {
		return relay.ErrInvalidID
	}
	path := store.RelayPath(r.userID, id)
	snapshot, err := r.store.Get(ctx, path)
	if err != nil {
		return err
	}
	if !snapshot.Exists() {
		return relay.ErrNotFound
	}
	return r.store.Update(ctx, path, store.Fields{store.FieldState: state})
}

// Remove deletes the record. No error when already absent.
func (r *Repository) Remove(ctx context.Context, id int) error {
	if id <= 0 {
		return relay.ErrInvalidID
	}
	return r.store.Remove(ctx, store.RelayPath(r.userID, id))
}

// Fetch reads a single record, the authoritative point read used by the
// toggle workflow. Returns ErrNotFound when absent; an absent state field
// reads as false.
func (r *Repository) Fetch(ctx context.Context, id int) (relay.Relay, error) {
	if id <= 0 {
		return relay.Relay{}, relay.ErrInvalidID
	}
	snapshot, err := r.store.Get(ctx, store.RelayPath(r.userID, id))
	if err != nil {
		return relay.Relay{}, err
	}
	record, ok := snapshot.Record()
	if !ok {
		return relay.Relay{}, relay.ErrNotFound
	}
	return relay.Relay{
		ID:     id,
		Device: store.DeviceOf(record),
		State:  store.StateOf(record),
	}, nil
}

func collectionFromSnapshot(snapshot store.Snapshot) relay.Collection {
	collection := relay.Collection{}
	for segment, record := range snapshot.Children() {
		id, err := strconv.Atoi(segment)
		if err != nil || id <= 0 {
			continue
		}
		collection[id] = relay.Relay{
			ID:     id,
			Device: store.DeviceOf(record),
			State:  store.StateOf(record),
		}
	}
	return collection
}
