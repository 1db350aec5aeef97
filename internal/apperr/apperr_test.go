package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorChain(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := Wrap(CodeSyncUnavailable, "inventory service unavailable", cause)

	wrapped := fmt.Errorf("request plan: %w", err)

	if !errors.Is(wrapped, cause) {
		t.Error("Expected cause to be reachable through the chain")
	}
	if !errors.Is(wrapped, New(CodeSyncUnavailable, "")) {
		t.Error("Expected errors.Is to match by code")
	}
	if errors.Is(wrapped, New(CodeNotFound, "")) {
		t.Error("Expected errors.Is not to match a different code")
	}
	if got := CodeOf(wrapped); got != CodeSyncUnavailable {
		t.Errorf("Expected code %s, got %s", CodeSyncUnavailable, got)
	}
	if got := CodeOf(cause); got != CodeInternal {
		t.Errorf("Expected code %s for a plain error, got %s", CodeInternal, got)
	}
	if err.Error() != "inventory service unavailable" {
		t.Errorf("Unexpected message %q", err.Error())
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeInvalidRequest:       http.StatusBadRequest,
		CodeNotFound:             http.StatusNotFound,
		CodeEmptyStore:           http.StatusNotFound,
		CodeStaleVersion:         http.StatusConflict,
		CodeInvalidInventoryData: http.StatusBadGateway,
		CodeSyncUnavailable:      http.StatusServiceUnavailable,
		CodeInternal:             http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := code.HTTPStatus(); got != want {
			t.Errorf("%s: expected %d, got %d", code, want, got)
		}
	}
}
