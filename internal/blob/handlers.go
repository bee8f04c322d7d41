package blob

import (
	"errors"
	"net/http"
	"time"

	"github.com/CrowdShield/CS-Backend/internal/utils"
	"go.uber.org/zap"
)

// UploadResponse is returned by POST /audio.
type UploadResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type Handler struct {
	Store    Store
	MaxBytes int64
	Now      func() time.Time
}

// UploadAudio stores the raw request body under a key derived from the
// X-Device-ID header, the current time, and the Content-Type.
func (h *Handler) UploadAudio(w http.ResponseWriter, r *http.Request) {
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}

	key, err := AudioKey(r.Header.Get("X-Device-ID"), now(), r.Header.Get("Content-Type"))
	switch {
	case errors.Is(err, ErrInvalidDeviceID):
		http.Error(w, "X-Device-ID header is required", http.StatusBadRequest)
		return
	case errors.Is(err, ErrUnsupportedType):
		http.Error(w, "Unsupported audio type", http.StatusUnsupportedMediaType)
		return
	case err != nil:
		http.Error(w, "Invalid upload", http.StatusBadRequest)
		return
	}

	body := http.MaxBytesReader(w, r.Body, h.MaxBytes)
	if err := h.Store.Upload(r.Context(), key, r.Header.Get("Content-Type"), body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Audio too large", http.StatusRequestEntityTooLarge)
			return
		}
		zap.L().Error("audio upload", zap.String("key", key), zap.Error(err))
		http.Error(w, "Failed to store audio", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, UploadResponse{Key: key, URL: h.Store.PublicURL(key)})
}
