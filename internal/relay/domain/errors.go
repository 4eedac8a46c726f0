package relay

import "errors"

var (
	// ErrNotFound is returned when a relay is absent from the collection.
	ErrNotFound = errors.New("relay: not found")
	// ErrEmptyDeviceName is returned when a device name is empty after trimming.
	ErrEmptyDeviceName = errors.New("relay: empty device name")
	// ErrInvalidID is returned when a relay id is not a positive integer.
	ErrInvalidID = errors.New("relay: invalid id")
	// ErrNotConfirmed is returned when a delete is issued without confirmation.
	ErrNotConfirmed = errors.New("relay: delete not confirmed")
)
