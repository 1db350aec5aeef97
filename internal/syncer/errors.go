package syncer

import (
	"errors"
	"fmt"

	"meal-planner/internal/inventory"
)

// ErrSyncUnavailable is matched by every *SyncUnavailableError.
var ErrSyncUnavailable = errors.New("inventory sync unavailable")

// ErrInvalidInventoryData is matched by every *InvalidInventoryDataError.
var ErrInvalidInventoryData = inventory.ErrInvalidData

// InvalidInventoryDataError is returned when the export payload fails
// validation. It is never retried.
type InvalidInventoryDataError = inventory.InvalidDataError

// SyncUnavailableError reports that the export service could not be reached
// within the attempt budget. Callers may fall back to the last snapshot.
type SyncUnavailableError struct {
	Attempts int
	Cause    error
}

func (e *SyncUnavailableError) Error() string {
	return fmt.Sprintf("inventory sync unavailable after %d attempt(s): %v", e.Attempts, e.Cause)
}

func (e *SyncUnavailableError) Unwrap() error { return e.Cause }

// Is matches ErrSyncUnavailable.
func (e *SyncUnavailableError) Is(target error) bool { return target == ErrSyncUnavailable }
