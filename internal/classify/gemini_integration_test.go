package classify

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/CrowdShield/CS-Backend/internal/reports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiIntegration(t *testing.T) {
	key := os.Getenv("GEMINI_API_KEY")
	if key == "" {
		t.Skip("GEMINI_API_KEY not set; skipping Gemini integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	g, err := NewGemini(ctx, key, os.Getenv("GEMINI_MODEL"))
	require.NoError(t, err)

	got, err := g.Classify(ctx, "there is thick smoke and flames coming from the food stall")
	require.NoError(t, err)
	assert.True(t, got.Valid())
	assert.Equal(t, reports.CategoryFire, got.AICategory)
	assert.NotEmpty(t, got.Transcript)
}

func TestNewGeminiRequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), "", "")
	assert.Error(t, err)
}
