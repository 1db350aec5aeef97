package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"meal-planner/internal/app"
	"meal-planner/internal/apperr"
	"meal-planner/internal/metrics"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    apperr.Code `json:"kind"`
	Message string      `json:"message"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "meal-planner",
		"endpoints": []string{
			"POST /plan",
			"POST /sync",
			"POST /catalog/reload",
			"GET /snapshots",
			"GET /snapshots/latest",
			"GET /snapshots/{version}",
			"GET /plans",
			"GET /plans/{id}",
			"GET /plans/{id}/shopping-list",
			"GET /health",
		},
	})
}

type healthResponse struct {
	Status          string              `json:"status"`
	UptimeSeconds   int64               `json:"uptime_seconds"`
	SnapshotVersion int64               `json:"snapshot_version"`
	LastSync        *metrics.SyncMetric `json:"last_sync,omitempty"`
	System          metrics.SysHealth   `json:"system"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.started) / time.Second),
		System:        metrics.GetSysHealth(s.dataDir),
	}
	if snap, err := s.facade.Snapshot(r.Context(), 0); err == nil {
		resp.SnapshotVersion = snap.Version
	} else if apperr.CodeOf(err) != apperr.CodeEmptyStore {
		resp.Status = "degraded"
	}
	if s.history != nil {
		if last, err := s.history.LastSync(r.Context()); err == nil {
			resp.LastSync = &last
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req app.PlanRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, s.logger, err)
		return
	}

	plan, err := s.facade.RequestPlan(r.Context(), req)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	res, err := s.facade.Sync(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleReloadCatalog(w http.ResponseWriter, r *http.Request) {
	n, err := s.facade.ReloadCatalog()
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"recipes": n})
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	versions, err := s.facade.Versions(r.Context())
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	if versions == nil {
		versions = []int64{}
	}
	writeJSON(w, http.StatusOK, map[string][]int64{"versions": versions})
}

func (s *Server) handleLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.facade.Snapshot(r.Context(), 0)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	version, err := strconv.ParseInt(chi.URLParam(r, "version"), 10, 64)
	if err != nil || version <= 0 {
		writeError(w, s.logger, apperr.New(apperr.CodeInvalidRequest, "snapshot version must be a positive integer"))
		return
	}
	snap, err := s.facade.Snapshot(r.Context(), version)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, s.logger, apperr.New(apperr.CodeInvalidRequest, "limit must be between 1 and 100"))
			return
		}
		limit = n
	}
	plans, err := s.facade.RecentPlans(r.Context(), limit)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"plans": plans})
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.facade.Plan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleShoppingList(w http.ResponseWriter, r *http.Request) {
	list, err := s.facade.ShoppingList(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// decodeBody reads an optional JSON body; an empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperr.Wrap(apperr.CodeInvalidRequest, "invalid request body: "+err.Error(), err)
	}
	return nil
}

func notFound(msg string) error {
	return apperr.New(apperr.CodeNotFound, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	code := apperr.CodeOf(err)
	status := code.HTTPStatus()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "kind", code, "error", err)
	}
	writeJSON(w, status, errorBody{Error: errorDetail{Kind: code, Message: err.Error()}})
}
