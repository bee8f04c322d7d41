// Package classify turns free-text incident descriptions into an urgency and
// category suggestion. It holds the HTTP client the reporting side calls, the
// local keyword fallback, and the server-side /analyze endpoint.
package classify

import (
	"context"
	"errors"
	"strings"

	"github.com/CrowdShield/CS-Backend/internal/reports"
)

var errInvalidOutput = errors.New("backend returned an invalid classification")

// Request is the /analyze payload.
type Request struct {
	Text     string `json:"text,omitempty"`
	AudioURL string `json:"audio_url,omitempty"`
}

// Result is a classification suggestion.
type Result struct {
	Urgency    reports.Urgency  `json:"urgency"`
	AICategory reports.Category `json:"ai_category"`
	Transcript string           `json:"transcript"`
}

// Valid reports whether both enum fields are in their fixed sets.
func (r Result) Valid() bool {
	return r.Urgency.Valid() && r.AICategory.Valid()
}

// Default is the neutral suggestion returned when nothing better is known.
func Default(text string) Result {
	return Result{
		Urgency:    reports.UrgencyLow,
		AICategory: reports.CategoryOther,
		Transcript: text,
	}
}

// Classifier is the reporting side's view of the classification service. A
// nil result means the service is unavailable; callers fall back to
// Heuristic.
type Classifier interface {
	Classify(ctx context.Context, req Request) *Result
}

// Backend is a model that can classify text. Errors are reported to the
// caller, which decides how to degrade.
type Backend interface {
	Classify(ctx context.Context, text string) (*Result, error)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
