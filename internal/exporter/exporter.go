package exporter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"meal-planner/internal/config"
	"meal-planner/internal/inventory"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	exportPath = "/export-inventory"
	// maxPayloadBytes bounds the export body read into memory.
	maxPayloadBytes = 32 << 20
)

// Client is an interface for the inventory export service.
type Client interface {
	FetchInventory(ctx context.Context) ([]inventory.Item, error)
}

// StatusError reports a non-200 answer from the export service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("export api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("export api error: status %d, body: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusRequestTimeout
}

// IsTransient reports whether err is worth retrying: network failures,
// timeouts and temporary HTTP statuses are; invalid payloads and other
// HTTP statuses are not.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, inventory.ErrInvalidData) || errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}

// exportClient is the concrete HTTP implementation of Client.
type exportClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new export service client. Deadlines come from the
// caller's context.
func NewClient(cfg *config.Config) Client {
	return &exportClient{
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		baseURL:    strings.TrimRight(cfg.InventoryServiceURL, "/"),
	}
}

// FetchInventory downloads and decodes the current inventory export.
func (c *exportClient) FetchInventory(ctx context.Context) ([]inventory.Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+exportPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(data) > maxPayloadBytes {
		return nil, &inventory.InvalidDataError{Problems: []string{fmt.Sprintf("payload exceeds %d bytes", maxPayloadBytes)}}
	}

	return DecodeItems(data)
}
