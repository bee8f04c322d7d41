package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/CrowdShield/CS-Backend/internal/reports"
	"google.golang.org/genai"
)

const systemPrompt = `You classify short incident reports for crowd safety at live events.
Return the urgency, the incident category, and a cleaned-up transcript of the report text.`

// Gemini classifies text with a Gemini model using structured JSON output.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini backend. It fails without an API key.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

func enumStrings[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}

func responseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"urgency": {
				Type:        genai.TypeString,
				Enum:        enumStrings(reports.Urgencies),
				Description: "How urgent is this incident?",
			},
			"ai_category": {
				Type:        genai.TypeString,
				Enum:        enumStrings(reports.Categories),
				Description: "The category of the incident.",
			},
			"transcript": {
				Type:        genai.TypeString,
				Description: "A cleaned-up version of the original text.",
			},
		},
		Required:         []string{"urgency", "ai_category", "transcript"},
		PropertyOrdering: []string{"urgency", "ai_category", "transcript"},
	}
}

// Classify asks the model for a suggestion. Output outside the known enum
// sets is an error.
func (g *Gemini) Classify(ctx context.Context, text string) (*Result, error) {
	contents := genai.Text("Classify this incident report: " + strconv.Quote(text))

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    responseSchema(),
	})
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	if resp == nil {
		return nil, errors.New("gemini returned no response")
	}

	raw := strings.TrimSpace(resp.Text())
	if raw == "" {
		return nil, errors.New("gemini returned empty output")
	}

	var out Result
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode gemini output: %w", err)
	}
	if !out.Valid() {
		return nil, fmt.Errorf("gemini returned unknown values %q/%q", out.Urgency, out.AICategory)
	}
	if isBlank(out.Transcript) {
		out.Transcript = text
	}
	return &out, nil
}
