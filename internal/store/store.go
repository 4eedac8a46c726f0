// Package store defines the path-addressed document store boundary backing
// relay state, rooted at users/{userId}/relays/{relayId}.
package store

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

// Fields is a partial record: only the named fields of a write change.
type Fields = map[string]any

// Known record fields.
const (
	FieldDevice = "device"
	FieldState  = "state"
)

var (
	// ErrInvalidPath is returned for a path outside the relay tree.
	ErrInvalidPath = errors.New("store: invalid path")
	// ErrUnknownField is returned when a write names an unsupported field.
	ErrUnknownField = errors.New("store: unknown field")
	// ErrEmptyFields is returned when a merge-patch carries no fields.
	ErrEmptyFields = errors.New("store: empty fields")
)

// Snapshot is the materialized value of a path at a point in time.
type Snapshot struct {
	record   Fields
	children map[string]Fields
	exists   bool
}

// RecordSnapshot builds a snapshot of a single record.
func RecordSnapshot(fields Fields) Snapshot {
	return Snapshot{record: fields, exists: true}
}

// CollectionSnapshot builds a snapshot of a collection of records.
func CollectionSnapshot(children map[string]Fields) Snapshot {
	return Snapshot{children: children, exists: true}
}

// Absent is the snapshot of a path that does not exist.
func Absent() Snapshot { return Snapshot{} }

// Exists reports whether the path held any value.
func (s Snapshot) Exists() bool { return s.exists }

// Record returns the record fields, or false for collection/absent snapshots.
func (s Snapshot) Record() (Fields, bool) {
	if !s.exists || s.record == nil {
		return nil, false
	}
	return s.record, true
}

// Children returns child records keyed by path segment; nil when absent.
func (s Snapshot) Children() map[string]Fields {
	return s.children
}

// StateOf reads the boolean state field of a record; an absent or
// non-boolean value reads as false.
func StateOf(fields Fields) bool {
	state, _ := fields[FieldState].(bool)
	return state
}

// DeviceOf reads the device name field of a record.
func DeviceOf(fields Fields) string {
	device, _ := fields[FieldDevice].(string)
	return device
}

// Listener receives the snapshot of a watched path.
type Listener func(Snapshot)

// Store is the document store boundary. Get and the mutators are one-shot
// request/response; Watch is the single push-based, long-lived operation.
type Store interface {
	// Get is a point read of a record or collection path.
	Get(ctx context.Context, path string) (Snapshot, error)

	// Update merge-patches the record at path: only the named fields
	// change, and the record is created when absent.
	Update(ctx context.Context, path string, fields Fields) error

	// Remove deletes the path and everything under it. Idempotent.
	Remove(ctx context.Context, path string) error

	// Watch subscribes to a path: the listener fires immediately with the
	// current snapshot and again after every change under the path until
	// the returned cancel func runs. Watchers are independent.
	Watch(path string, fn Listener) (func(), error)
}

// RelayCollectionPath builds the path of a user's relay collection.
func RelayCollectionPath(userID string) string {
	return "users/" + userID + "/relays"
}

// RelayPath builds the path of a single relay record.
func RelayPath(userID string, relayID int) string {
	return RelayCollectionPath(userID) + "/" + strconv.Itoa(relayID)
}

// SplitRelayPath parses a relay tree path into user id and optional relay
// segment. The relay segment is empty for a collection path.
func SplitRelayPath(path string) (userID, relayID string, err error) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) < 3 || segments[0] != "users" || segments[2] != "relays" {
		return "", "", ErrInvalidPath
	}
	if segments[1] == "" {
		return "", "", ErrInvalidPath
	}
	switch len(segments) {
	case 3:
		return segments[1], "", nil
	case 4:
		if segments[3] == "" {
			return "", "", ErrInvalidPath
		}
		return segments[1], segments[3], nil
	}
	return "", "", ErrInvalidPath
}

// ValidateRecordPath ensures path addresses a single relay record.
func ValidateRecordPath(path string) error {
	_, relayID, err := SplitRelayPath(path)
	if err != nil {
		return err
	}
	if relayID == "" {
		return ErrInvalidPath
	}
	return nil
}

// ValidateFields rejects writes naming fields outside the relay schema.
func ValidateFields(fields Fields) error {
	if len(fields) == 0 {
		return ErrEmptyFields
	}
	for key := range fields {
		switch key {
		case FieldDevice, FieldState:
		default:
			return ErrUnknownField
		}
	}
	return nil
}
