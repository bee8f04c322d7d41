package classify

import (
	"net/http"

	"github.com/CrowdShield/CS-Backend/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// SetupRoutes mounts the classification endpoint behind an optional shared
// key and a per-client rate limit.
func SetupRoutes(h *Handler, sharedKey string, perMinute int) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.SharedKeyMiddleware(sharedKey))
	r.Use(middleware.RateLimitMiddleware(perMinute))

	r.Post("/", h.Analyze)
	return r
}
