package reports

import (
	"net/http"

	"github.com/CrowdShield/CS-Backend/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// SetupRoutes mounts the report API. Submitting is public; reading, editing,
// and the stream require an organizer session. stream may be nil.
func SetupRoutes(h *Handler, fetcher middleware.SessionFetcher, stream http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Post("/", h.CreateReport)

	r.Group(func(r chi.Router) {
		r.Use(middleware.OrganizerMiddleware(fetcher))
		r.Get("/", h.ListReports)
		r.Patch("/{id}", h.UpdateReport)
		if stream != nil {
			r.Handle("/stream", stream)
		}
	})

	return r
}
