// Package dashboard serves the organizer views derived from the live feed.
package dashboard

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/CrowdShield/CS-Backend/internal/analytics"
	"github.com/CrowdShield/CS-Backend/internal/reports"
	"github.com/CrowdShield/CS-Backend/internal/utils"
	"github.com/CrowdShield/CS-Backend/internal/zones"
)

const (
	DefaultFeedLimit = 50
	MaxFeedLimit     = 500
)

// Source provides the current live report list, newest first.
type Source interface {
	Snapshot(ctx context.Context, limit int) []reports.Report
}

type Handler struct {
	Feed     Source
	Location *time.Location
	Now      func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handler) Zones(w http.ResponseWriter, r *http.Request) {
	rs := h.Feed.Snapshot(r.Context(), 0)
	utils.WriteJSON(w, http.StatusOK, zones.Compute(rs, h.now()))
}

func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	rs := h.Feed.Snapshot(r.Context(), 0)
	utils.WriteJSON(w, http.StatusOK, analytics.Compute(rs, h.now(), h.Location))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := DefaultFeedLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, MaxFeedLimit)
	}

	rs := h.Feed.Snapshot(r.Context(), limit)
	if rs == nil {
		rs = []reports.Report{}
	}
	utils.WriteJSON(w, http.StatusOK, rs)
}
