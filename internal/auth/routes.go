package auth

import (
	"net/http"

	"github.com/CrowdShield/CS-Backend/internal/middleware"
	"github.com/go-chi/chi/v5"
)

func SetupRoutes(h *Handler, fetcher middleware.SessionFetcher) http.Handler {
	r := chi.NewRouter()

	r.Post("/login", h.Login)

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(fetcher))
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
		r.Post("/password", h.UpdatePassword)
	})

	r.With(middleware.AdminMiddleware(fetcher)).Post("/register", h.Register)

	return r
}
