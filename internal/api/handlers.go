package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mattjoyce/firstrun/internal/journal"
)

const (
	defaultBatchLimit = 20
	maxBatchLimit     = 500
)

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, HealthzResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		AppsLoaded:    len(s.catalog),
	})
}

func (s *Server) handleListApps(w http.ResponseWriter, r *http.Request) {
	out := make([]AppResponse, 0, len(s.catalog))
	for _, spec := range s.catalog {
		out = append(out, AppResponse{
			ID:       spec.ID,
			Package:  spec.Package,
			Activity: spec.Activity,
			Steps:    len(spec.Steps),
		})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	limit := defaultBatchLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxBatchLimit)
	}

	batches, err := s.batches.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to list batches", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list batches")
		return
	}

	resp := BatchListResponse{Batches: make([]BatchResponse, 0, len(batches))}
	for _, b := range batches {
		resp.Batches = append(resp.Batches, toBatchResponse(b))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")

	b, err := s.batches.Get(r.Context(), batchID)
	if errors.Is(err, journal.ErrBatchNotFound) {
		s.writeError(w, http.StatusNotFound, "batch not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get batch", "batch_id", batchID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get batch")
		return
	}
	respondJSON(w, http.StatusOK, toBatchResponse(b))
}

func toBatchResponse(b *journal.Batch) BatchResponse {
	resp := BatchResponse{
		BatchID:     b.ID,
		Status:      string(b.Status),
		Requested:   b.Requested,
		Serial:      b.Serial,
		ConfigHash:  b.ConfigHash,
		ErrorKind:   b.ErrorKind,
		FailedApp:   b.FailedApp,
		FailedPhase: b.FailedPhase,
		LastError:   b.LastError,
		StartedAt:   b.StartedAt,
		CompletedAt: b.CompletedAt,
		DurationMS:  b.Duration.Milliseconds(),
	}
	for _, d := range b.Dismissed {
		resp.Dismissed = append(resp.Dismissed, DismissedAppView{
			Position:    d.Position,
			App:         d.App,
			DismissedAt: d.DismissedAt,
		})
	}
	return resp
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}
