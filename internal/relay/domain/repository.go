package relay

import "context"

// SnapshotFunc receives the full collection every time it changes.
type SnapshotFunc func(Collection)

// Unsubscribe closes a live subscription. Safe to call more than once.
type Unsubscribe func()

// Repository is the synchronization layer between the workflows and the
// document store, scoped to one authenticated user. Implementations are
// constructed per session with an explicit user id; there is no ambient
// identity fallback.
type Repository interface {
	// Subscribe opens a live subscription to the full collection. The
	// callback fires once immediately with the current collection (empty
	// when the path is absent) and again after every stored change until
	// the returned Unsubscribe runs. Concurrent subscriptions are
	// independent.
	Subscribe(ctx context.Context, fn SnapshotFunc) (Unsubscribe, error)

	// FetchAll is a one-shot read of the collection; absent path reads as
	// an empty collection.
	FetchAll(ctx context.Context) (Collection, error)

	// Fetch is a one-shot authoritative point read of a single record.
	// Returns ErrNotFound when absent; an absent state field reads false.
	Fetch(ctx context.Context, id int) (Relay, error)

	// Create writes a new record with state=false and the given device
	// name. An existing record at the same id is overwritten silently;
	// avoiding collisions is the caller's job.
	Create(ctx context.Context, id int, device string) error

	// SetState merge-patches only the state field. Returns ErrNotFound
	// when the record is absent; the patch never creates a partial record.
	SetState(ctx context.Context, id int, state bool) error

	// Remove deletes the record and all its fields. Idempotent.
	Remove(ctx context.Context, id int) error
}
