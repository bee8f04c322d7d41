package dashboard

import (
	"net/http"

	"github.com/CrowdShield/CS-Backend/internal/middleware"
	"github.com/go-chi/chi/v5"
)

func SetupRoutes(h *Handler, fetcher middleware.SessionFetcher) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.OrganizerMiddleware(fetcher))

	r.Get("/zones", h.Zones)
	r.Get("/analytics", h.Analytics)
	r.Get("/feed", h.List)
	return r
}
