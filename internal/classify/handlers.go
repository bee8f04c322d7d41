package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/CrowdShield/CS-Backend/internal/logging"
	"github.com/CrowdShield/CS-Backend/internal/utils"
)

const maxAnalyzeBody = 64 << 10

// Handler serves POST /analyze. A nil Backend answers every request with the
// default suggestion.
type Handler struct {
	Backend Backend
	Timeout time.Duration
}

// Analyze always answers 200. Empty text, a missing backend, or a backend
// failure all produce Default(text).
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAnalyzeBody)).Decode(&req); err != nil {
		logging.LogError("analyze", "decode", err)
	}

	res := Default(req.Text)
	if !isBlank(req.Text) && h.Backend != nil {
		timeout := h.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		start := time.Now()
		out, err := h.Backend.Classify(ctx, req.Text)
		switch {
		case err != nil:
			logging.LogError("analyze", "classify", err)
		case out == nil || !out.Valid():
			logging.LogError("analyze", "classify", errInvalidOutput)
		default:
			res = *out
			logging.LogResponse("analyze", http.StatusOK, time.Since(start))
		}
	}

	utils.WriteJSON(w, http.StatusOK, res)
}
