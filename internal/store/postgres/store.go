// Package postgres provides a Postgres-backed document store for the relay
// tree: one row per relay, merge-patch writes as conditional upserts.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"relaycloud/internal/store"
)

const defaultRelaysTable = "relays"

// DBTX abstracts *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store persists the relay tree in Postgres. Change fanout runs through an
// in-process hub: watchers see every write made through this store.
type Store struct {
	db    DBTX
	table string
	hub   *store.Hub
}

// Option configures the store.
type Option func(*Store)

// WithTable overrides the default table name.
func WithTable(table string) Option {
	return func(s *Store) {
		if table != "" {
			s.table = table
		}
	}
}

// New constructs a store.
func New(db DBTX, opts ...Option) *Store {
	s := &Store{db: db, table: defaultRelaysTable, hub: store.NewHub()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate creates the relays table when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("postgres store: nil db")
	}
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	user_id    TEXT        NOT NULL,
	relay_id   BIGINT      NOT NULL,
	device     TEXT        NOT NULL DEFAULT '',
	state      BOOLEAN     NOT NULL DEFAULT FALSE,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (user_id, relay_id)
)`, s.table)
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Get materializes a record or collection path.
func (s *Store) Get(ctx context.Context, path string) (store.Snapshot, error) {
	if s == nil || s.db == nil {
		return store.Absent(), errors.New("postgres store: nil db")
	}
	userID, relaySegment, err := store.SplitRelayPath(path)
	if err != nil {
		return store.Absent(), err
	}
	if relaySegment == "" {
		return s.getCollection(ctx, userID)
	}
	return s.getRecord(ctx, userID, relaySegment)
}

func (s *Store) getRecord(ctx context.Context, userID, relaySegment string) (store.Snapshot, error) {
	relayID, err := strconv.ParseInt(relaySegment, 10, 64)
	if err != nil {
		return store.Absent(), store.ErrInvalidPath
	}

	query := fmt.Sprintf(`
SELECT device, state
FROM %s
WHERE user_id = $1 AND relay_id = $2
LIMIT 1`, s.table)

	var device string
	var state bool
	if err := s.db.QueryRowContext(ctx, query, userID, relayID).Scan(&device, &state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Absent(), nil
		}
		return store.Absent(), err
	}
	return store.RecordSnapshot(store.Fields{
		store.FieldDevice: device,
		store.FieldState:  state,
	}), nil
}

func (s *Store) getCollection(ctx context.Context, userID string) (store.Snapshot, error) {
	query := fmt.Sprintf(`
SELECT relay_id, device, state
FROM %s
WHERE user_id = $1
ORDER BY relay_id ASC`, s.table)

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return store.Absent(), err
	}
	defer rows.Close()

	var children map[string]store.Fields
	for rows.Next() {
		var relayID int64
		var device string
		var state bool
		if err := rows.Scan(&relayID, &device, &state); err != nil {
			return store.Absent(), err
		}
		if children == nil {
			children = make(map[string]store.Fields)
		}
		children[strconv.FormatInt(relayID, 10)] = store.Fields{
			store.FieldDevice: device,
			store.FieldState:  state,
		}
	}
	if err := rows.Err(); err != nil {
		return store.Absent(), err
	}
	if children == nil {
		return store.Absent(), nil
	}
	return store.CollectionSnapshot(children), nil
}

// Update merge-patches a record: supplied fields overwrite, unsupplied
// fields keep their stored value, absent rows are created with defaults.
func (s *Store) Update(ctx context.Context, path string, fields store.Fields) error {
	if s == nil || s.db == nil {
		return errors.New("postgres store: nil db")
	}
	if err := store.ValidateRecordPath(path); err != nil {
		return err
	}
	if err := store.ValidateFields(fields); err != nil {
		return err
	}
	userID, relaySegment, err := store.SplitRelayPath(path)
	if err != nil {
		return err
	}
	relayID, err := strconv.ParseInt(relaySegment, 10, 64)
	if err != nil {
		return store.ErrInvalidPath
	}

	var device *string
	if value, ok := fields[store.FieldDevice]; ok {
		name, ok := value.(string)
		if !ok {
			return store.ErrUnknownField
		}
		device = &name
	}
	var state *bool
	if value, ok := fields[store.FieldState]; ok {
		flag, ok := value.(bool)
		if !ok {
			return store.ErrUnknownField
		}
		state = &flag
	}

	query := fmt.Sprintf(`
INSERT INTO %[1]s (user_id, relay_id, device, state)
VALUES ($1, $2, COALESCE($3, ''), COALESCE($4, FALSE))
ON CONFLICT (user_id, relay_id)
DO UPDATE SET
	device = COALESCE($3, %[1]s.device),
	state = COALESCE($4, %[1]s.state),
	updated_at = NOW()`, s.table)

	if _, err := s.db.ExecContext(ctx, query, userID, relayID, device, state); err != nil {
		return err
	}
	s.hub.Broadcast(path, s.lookup)
	return nil
}

// Remove deletes a record or a whole collection. Idempotent.
func (s *Store) Remove(ctx context.Context, path string) error {
	if s == nil || s.db == nil {
		return errors.New("postgres store: nil db")
	}
	userID, relaySegment, err := store.SplitRelayPath(path)
	if err != nil {
		return err
	}

	if relaySegment == "" {
		query := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1`, s.table)
		if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
			return err
		}
		s.hub.Broadcast(path, s.lookup)
		return nil
	}

	relayID, err := strconv.ParseInt(relaySegment, 10, 64)
	if err != nil {
		return store.ErrInvalidPath
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1 AND relay_id = $2`, s.table)
	if _, err := s.db.ExecContext(ctx, query, userID, relayID); err != nil {
		return err
	}
	s.hub.Broadcast(path, s.lookup)
	return nil
}

// Watch subscribes to a path. Only writes issued through this store are
// observed; rows changed by other writers become visible on the next
// broadcast for the same user.
func (s *Store) Watch(path string, fn store.Listener) (func(), error) {
	if s == nil || s.db == nil {
		return nil, errors.New("postgres store: nil db")
	}
	if _, _, err := store.SplitRelayPath(path); err != nil {
		return nil, err
	}

	cancel := s.hub.Register(path, fn)
	initial, err := s.Get(context.Background(), path)
	if err != nil {
		cancel()
		return nil, err
	}
	fn(initial)
	return cancel, nil
}

func (s *Store) lookup(path string) (store.Snapshot, bool) {
	snapshot, err := s.Get(context.Background(), path)
	if err != nil {
		return store.Absent(), false
	}
	return snapshot, true
}
