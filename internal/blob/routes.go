package blob

import (
	"net/http"
	"strings"

	"github.com/CrowdShield/CS-Backend/internal/middleware"
	"github.com/go-chi/chi/v5"
)

// SetupRoutes mounts the public upload endpoint and, under /files, the
// stored blobs of dir.
func SetupRoutes(h *Handler, dir string, perMinute int) http.Handler {
	r := chi.NewRouter()

	r.With(middleware.RateLimitMiddleware(perMinute)).Post("/", h.UploadAudio)
	r.Get("/files/*", serveFiles(dir))
	return r
}

func serveFiles(dir string) http.HandlerFunc {
	fs := http.FileServer(http.Dir(dir))
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "*")
		if key == "" || strings.HasSuffix(key, "/") {
			http.NotFound(w, r)
			return
		}

		r2 := r.Clone(r.Context())
		r2.URL.Path = "/" + key
		r2.URL.RawPath = ""
		fs.ServeHTTP(w, r2)
	}
}
