package reports

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/CrowdShield/CS-Backend/internal/utils"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	maxReportBody = 16 << 10

	// DefaultQueryWindow is how far back GET /reports looks without ?since.
	DefaultQueryWindow = 24 * time.Hour
)

type Handler struct {
	Store Store
}

func (h *Handler) CreateReport(w http.ResponseWriter, r *http.Request) {
	var f Fields
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxReportBody)).Decode(&f); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	report, err := h.Store.Insert(r.Context(), f)
	if errors.Is(err, ErrInvalid) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		zap.L().Error("insert report", zap.Error(err))
		http.Error(w, "Failed to submit report", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, report)
}

func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	since := time.Now().Add(-DefaultQueryWindow)
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "since must be an RFC 3339 timestamp", http.StatusBadRequest)
			return
		}
		since = t
	}

	out, err := h.Store.Query(r.Context(), since)
	if err != nil {
		zap.L().Error("query reports", zap.Error(err))
		http.Error(w, "Failed to load reports", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) UpdateReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !validID(id) {
		http.Error(w, "Report not found", http.StatusNotFound)
		return
	}

	var p Patch
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxReportBody)).Decode(&p); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	report, err := h.Store.Update(r.Context(), id, p)
	switch {
	case errors.Is(err, ErrInvalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, ErrNotFound):
		http.Error(w, "Report not found", http.StatusNotFound)
		return
	case err != nil:
		zap.L().Error("update report", zap.String("report_id", id), zap.Error(err))
		http.Error(w, "Failed to update report", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, http.StatusOK, report)
}
