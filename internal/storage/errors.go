package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyStore is returned by Latest when no snapshot was ever committed.
	ErrEmptyStore = errors.New("snapshot store is empty")
	// ErrNotFound is returned by Get for an unknown or pruned version.
	ErrNotFound = errors.New("snapshot not found")
	// ErrStaleVersion is matched by every *StaleVersionError.
	ErrStaleVersion = errors.New("stale snapshot version")
)

// StaleVersionError reports a Put that lost against a newer stored version.
type StaleVersionError struct {
	Attempted int64
	Current   int64
}

func (e *StaleVersionError) Error() string {
	return fmt.Sprintf("stale snapshot version %d: store is at version %d", e.Attempted, e.Current)
}

// Is matches ErrStaleVersion.
func (e *StaleVersionError) Is(target error) bool { return target == ErrStaleVersion }
