// Package apperr provides the machine-readable error kinds surfaced at the
// request boundary of the planner service.
package apperr

import "net/http"

// Code is a machine-readable error kind.
type Code string

const (
	// CodeInternal represents an unexpected failure.
	CodeInternal Code = "INTERNAL"

	// Storage errors
	CodeStaleVersion Code = "STALE_VERSION"
	CodeEmptyStore   Code = "EMPTY_STORE"
	CodeNotFound     Code = "NOT_FOUND"

	// Sync errors
	CodeSyncUnavailable      Code = "SYNC_UNAVAILABLE"
	CodeInvalidInventoryData Code = "INVALID_INVENTORY_DATA"

	// Request errors
	CodeInvalidRequest Code = "INVALID_REQUEST"
)

// HTTPStatus maps the code to the status returned by the HTTP API.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeNotFound, CodeEmptyStore:
		return http.StatusNotFound
	case CodeStaleVersion:
		return http.StatusConflict
	case CodeInvalidInventoryData:
		return http.StatusBadGateway
	case CodeSyncUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
