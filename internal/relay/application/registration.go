package application

import (
	"context"
	"errors"
	"sync"

	relay "relaycloud/internal/relay/domain"
)

// RegistrationView is what the registry screen renders: the known
// collection and the next free identifier (0 while still loading).
type RegistrationView struct {
	Relays relay.Collection `json:"relays"`
	NextID int              `json:"next_id"`
}

// Registration is the device registration workflow for one session. It
/// mirrors one open registry screen: Activate primes the view from a
// one-shot read, Add and Delete mutate the store and fold confirmed
// results back into the view. The local view changes only after a
// mutating call resolves; the live subscription remains the source of
// truth for any screen the user navigates back to.
type Registration struct {
	repo     relay.Repository
	notifier Notifier

	mu     sync.Mutex
	relays relay.Collection
	nextID int
}

// NewRegistration constructs the workflow for an authenticated session.
func NewRegistration(repo relay.Repository, notifier Notifier) (*Registration, error) {
	if repo == nil {
		return nil, errors.New("registration: nil repository")
	}
	return &Registration{repo: repo, notifier: notifier, relays: relay.Collection{}}, nil
}

// Activate primes the view with a one-shot read and derives the next free
// identifier from that snapshot. A read failure degrades to an empty view
// with an error notification; the identifier stays uncomputed, so Add is
// rejected until a later Activate succeeds.
func (r *Registration) Activate(ctx context.Context) error {
	collection, err := r.repo.FetchAll(ctx)
	if err != nil {
		r.notify(ctx, errorNotification("", "Error fetching devices. Please try again."))
		r.mu.Lock()
		r.relays = relay.Collection{}
		r.nextID = 0
		r.mu.Unlock()
		return err
	}

	r.mu.Lock()
	r.relays = collection.Clone()
	r.nextID = relay.NextID(collection)
	r.mu.Unlock()
	return nil
}

// View returns the current registry view.
func (r *Registration) View() RegistrationView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RegistrationView{Relays: r.relays.Clone(), NextID: r.nextID}
}

// Add validates and normalizes the device name, creates the record at the
// computed identifier, and only then folds it into the view and bumps the
// identifier.
func (r *Registration) Add(ctx context.Context, name string) (relay.Relay, error) {
	r.mu.Lock()
	id := r.nextID
	r.mu.Unlock()
	if id <= 0 {
		return relay.Relay{}, relay.ErrInvalidID
	}

	device, err := relay.NormalizeDeviceName(name)
	if err != nil {
		return relay.Relay{}, err
	}

	if err := r.repo.Create(ctx, id, device); err != nil {
		r.notify(ctx, errorNotification(device, "Error adding device. Please try again."))
		return relay.Relay{}, err
	}

	created := relay.Relay{ID: id, Device: device, State: false}
	r.mu.Lock()
	r.relays[id] = created
	r.nextID = id + 1
	r.mu.Unlock()

	r.notify(ctx, successNotification(device, "Device added successfully!"))
	return created, nil
}

// Delete removes a relay after explicit confirmation. The view keeps the
// entry until the remove resolves.
func (r *Registration) Delete(ctx context.Context, id int, confirmed bool) error {
	if !confirmed {
		return relay.ErrNotConfirmed
	}

	r.mu.Lock()
	device := r.relays[id].Device
	r.mu.Unlock()

	if err := r.repo.Remove(ctx, id); err != nil {
		r.notify(ctx, errorNotification(device, "Error deleting device. Please try again."))
		return err
	}

	r.mu.Lock()
	delete(r.relays, id)
	r.mu.Unlock()

	r.notify(ctx, successNotification(device, "Device deleted successfully!"))
	return nil
}

func (r *Registration) notify(ctx context.Context, notification Notification) {
	if r.notifier != nil {
		r.notifier.Notify(ctx, notification)
	}
}
