package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"meal-planner/internal/app"
	"meal-planner/internal/apperr"
	"meal-planner/internal/inventory"
	"meal-planner/internal/metrics"
	"meal-planner/internal/planner"
	"meal-planner/internal/recipe"
	"meal-planner/internal/shopping"
	"meal-planner/internal/syncer"
)

// mockFacade returns canned values and records the last plan request.
type mockFacade struct {
	plan      planner.MealPlan
	planErr   error
	lastReq   app.PlanRequest
	syncRes   syncer.Result
	syncErr   error
	snapshots map[int64]inventory.Snapshot
	reloadErr error
}

func (m *mockFacade) RequestPlan(ctx context.Context, req app.PlanRequest) (planner.MealPlan, error) {
	m.lastReq = req
	return m.plan, m.planErr
}

func (m *mockFacade) Sync(ctx context.Context) (syncer.Result, error) {
	return m.syncRes, m.syncErr
}

func (m *mockFacade) Snapshot(ctx context.Context, version int64) (inventory.Snapshot, error) {
	if len(m.snapshots) == 0 {
		return inventory.Snapshot{}, apperr.New(apperr.CodeEmptyStore, "snapshot store is empty")
	}
	if version == 0 {
		for v := range m.snapshots {
			if v > version {
				version = v
			}
		}
	}
	snap, ok := m.snapshots[version]
	if !ok {
		return inventory.Snapshot{}, apperr.New(apperr.CodeNotFound, "snapshot not found")
	}
	return snap, nil
}

func (m *mockFacade) Versions(ctx context.Context) ([]int64, error) {
	var out []int64
	for v := range m.snapshots {
		out = append(out, v)
	}
	return out, nil
}

func (m *mockFacade) Plan(ctx context.Context, id string) (planner.MealPlan, error) {
	if id == m.plan.ID {
		return m.plan, nil
	}
	return planner.MealPlan{}, apperr.New(apperr.CodeNotFound, "meal plan not found")
}

func (m *mockFacade) RecentPlans(ctx context.Context, limit int) ([]planner.MealPlan, error) {
	return []planner.MealPlan{m.plan}, nil
}

func (m *mockFacade) ShoppingList(ctx context.Context, planID string) (shopping.List, error) {
	if _, err := m.Plan(ctx, planID); err != nil {
		return shopping.List{}, err
	}
	return shopping.List{PlanID: planID, Items: []shopping.Item{{ItemID: "flour", Quantity: 100, Unit: "g"}}}, nil
}

func (m *mockFacade) ReloadCatalog() (int, error) {
	if m.reloadErr != nil {
		return 0, m.reloadErr
	}
	return 3, nil
}

type mockHistory struct{}

func (mockHistory) LastSync(ctx context.Context) (metrics.SyncMetric, error) {
	return metrics.SyncMetric{Outcome: metrics.OutcomeCommitted, Attempts: 1}, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorDetail {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode error body: %v", err)
	}
	return body.Error
}

func TestPlanEndpoint(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		f := &mockFacade{plan: planner.MealPlan{
			ID:               "p1",
			SnapshotVersion:  3,
			SelectedRecipes:  []recipe.Recipe{{ID: "pancakes"}},
			UnmetIngredients: []string{"flour"},
		}}
		s := New(f, nil)

		rec := do(t, s, http.MethodPost, "/plan", `{"forceRefresh":true,"tags":["breakfast"],"maxMeals":2}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if !f.lastReq.ForceRefresh || f.lastReq.MaxMeals != 2 || len(f.lastReq.Tags) != 1 {
			t.Errorf("Request not forwarded: %+v", f.lastReq)
		}
		var got map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		if got["snapshot_version"].(float64) != 3 || got["stale"].(bool) {
			t.Errorf("Unexpected body %v", got)
		}
	})

	t.Run("EmptyBody", func(t *testing.T) {
		f := &mockFacade{}
		rec := do(t, New(f, nil), http.MethodPost, "/plan", "")
		if rec.Code != http.StatusOK || f.lastReq.ForceRefresh {
			t.Errorf("Expected defaults for an empty body, got %d %+v", rec.Code, f.lastReq)
		}
	})

	t.Run("MalformedBody", func(t *testing.T) {
		rec := do(t, New(&mockFacade{}, nil), http.MethodPost, "/plan", `{"forceRefresh":`)
		if rec.Code != http.StatusBadRequest || decodeError(t, rec).Kind != apperr.CodeInvalidRequest {
			t.Errorf("Expected 400 INVALID_REQUEST, got %d", rec.Code)
		}
	})

	cases := []struct {
		name   string
		err    error
		status int
		kind   apperr.Code
	}{
		{"SyncUnavailable", apperr.New(apperr.CodeSyncUnavailable, "unreachable"), http.StatusServiceUnavailable, apperr.CodeSyncUnavailable},
		{"InvalidData", apperr.New(apperr.CodeInvalidInventoryData, "bad payload"), http.StatusBadGateway, apperr.CodeInvalidInventoryData},
		{"EmptyStore", apperr.New(apperr.CodeEmptyStore, "empty"), http.StatusNotFound, apperr.CodeEmptyStore},
		{"Internal", errors.New("disk on fire"), http.StatusInternalServerError, apperr.CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, New(&mockFacade{planErr: tc.err}, nil), http.MethodPost, "/plan", "{}")
			if rec.Code != tc.status {
				t.Errorf("Expected status %d, got %d", tc.status, rec.Code)
			}
			detail := decodeError(t, rec)
			if detail.Kind != tc.kind || detail.Message != tc.err.Error() {
				t.Errorf("Unexpected error body %+v", detail)
			}
		})
	}
}

func TestSnapshotEndpoints(t *testing.T) {
	snaps := map[int64]inventory.Snapshot{
		1: {Version: 1, CapturedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), Items: map[string]inventory.Item{}},
		2: {Version: 2, CapturedAt: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC), Items: map[string]inventory.Item{
			"eggs": {ID: "eggs", Name: "Eggs", Quantity: 6, Unit: "pcs"},
		}},
	}
	s := New(&mockFacade{snapshots: snaps}, nil)

	t.Run("Latest", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/snapshots/latest", "")
		var snap inventory.Snapshot
		if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
			t.Fatal(err)
		}
		if snap.Version != 2 || snap.Items["eggs"].Quantity != 6 {
			t.Errorf("Unexpected snapshot %+v", snap)
		}
	})

	t.Run("ByVersion", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/snapshots/1", "")
		if rec.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d", rec.Code)
		}
	})

	t.Run("UnknownVersion", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/snapshots/9", "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", rec.Code)
		}
	})

	t.Run("BadVersion", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/snapshots/abc", "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("List", func(t *testing.T) {
		rec := do(t, s, http.MethodGet, "/snapshots", "")
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"versions"`) {
			t.Errorf("Unexpected response %d %s", rec.Code, rec.Body.String())
		}
	})
}

func TestSyncEndpoint(t *testing.T) {
	rec := do(t, New(&mockFacade{syncRes: syncer.Result{Version: 4, Changed: true, Attempts: 2, ItemCount: 10}}, nil), http.MethodPost, "/sync", "")
	var got map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got["version"].(float64) != 4 || got["attempts"].(float64) != 2 || got["items"].(float64) != 10 {
		t.Errorf("Unexpected body %v", got)
	}

	rec = do(t, New(&mockFacade{syncErr: apperr.New(apperr.CodeSyncUnavailable, "down")}, nil), http.MethodPost, "/sync", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rec.Code)
	}
}

func TestPlanHistoryEndpoints(t *testing.T) {
	s := New(&mockFacade{plan: planner.MealPlan{ID: "p1"}}, nil)

	if rec := do(t, s, http.MethodGet, "/plans/p1", ""); rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/plans/p2", ""); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/plans/p1/shopping-list", ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"item_id":"flour"`) {
		t.Errorf("Unexpected shopping list response %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(t, s, http.MethodGet, "/plans/p2/shopping-list", ""); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/plans?limit=500", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an out of range limit, got %d", rec.Code)
	}
	if rec := do(t, s, http.MethodGet, "/plans?limit=5", ""); rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestReloadCatalogEndpoint(t *testing.T) {
	rec := do(t, New(&mockFacade{}, nil), http.MethodPost, "/catalog/reload", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"recipes":3`) {
		t.Errorf("Unexpected response %d %s", rec.Code, rec.Body.String())
	}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"InvalidCatalog", apperr.New(apperr.CodeInvalidRequest, "invalid recipe catalog"), http.StatusBadRequest},
		{"MissingFile", apperr.New(apperr.CodeNotFound, "recipe catalog not found"), http.StatusNotFound},
		{"ReadFailure", errors.New("open recipes.yaml: permission denied"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, New(&mockFacade{reloadErr: tt.err}, nil), http.MethodPost, "/catalog/reload", "")
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestHealthAndIndex(t *testing.T) {
	s := New(&mockFacade{}, nil, WithDataDir(t.TempDir()), WithSyncHistory(mockHistory{}))

	rec := do(t, s, http.MethodGet, "/health", "")
	body := rec.Body.String()
	var health healthResponse
	if err := json.Unmarshal([]byte(body), &health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "ok" || health.SnapshotVersion != 0 || health.LastSync == nil {
		t.Errorf("Unexpected health %+v", health)
	}
	if !strings.Contains(body, `"last_sync":{"outcome":"committed","attempts":1`) {
		t.Errorf("Expected snake_case last_sync keys in %s", body)
	}

	rec = do(t, s, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "POST /plan") {
		t.Errorf("Unexpected index %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, s, http.MethodGet, "/nope", "")
	if rec.Code != http.StatusNotFound || decodeError(t, rec).Kind != apperr.CodeNotFound {
		t.Errorf("Expected JSON 404, got %d", rec.Code)
	}
}

func TestHandlerIsInstrumented(t *testing.T) {
	h := New(&mockFacade{}, nil).Handler()
	rec := do(t, h, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 through the instrumented handler, got %d", rec.Code)
	}
}

func TestWebhookMount(t *testing.T) {
	var hits int
	s := New(&mockFacade{}, nil, WithWebhook("/telegram/webhook", func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))

	if rec := do(t, s, http.MethodPost, "/telegram/webhook", "{}"); rec.Code != http.StatusOK || hits != 1 {
		t.Errorf("Expected webhook to be called, got %d (%d hits)", rec.Code, hits)
	}
	if rec := do(t, New(&mockFacade{}, nil), http.MethodPost, "/telegram/webhook", "{}"); rec.Code == http.StatusOK {
		t.Error("Expected no webhook route without WithWebhook")
	}
}
