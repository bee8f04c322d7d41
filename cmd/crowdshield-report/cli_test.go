package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/CrowdShield/CS-Backend/internal/blob"
	"github.com/CrowdShield/CS-Backend/internal/classify"
	"github.com/CrowdShield/CS-Backend/internal/reports"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fireBackend struct{}

func (fireBackend) Classify(ctx context.Context, text string) (*classify.Result, error) {
	return &classify.Result{Urgency: reports.UrgencyHigh, AICategory: reports.CategoryFire, Transcript: "Smoke near the VIP bar."}, nil
}

func setup(t *testing.T) *reports.MemoryStore {
	t.Helper()

	store := reports.NewMemoryStore(nil)
	dir := t.TempDir()
	files, err := blob.NewLocal(filepath.Join(dir, "audio"), "/audio/files")
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Post("/reports", (&reports.Handler{Store: store}).CreateReport)
	r.Mount("/audio", blob.SetupRoutes(&blob.Handler{Store: files, MaxBytes: 1 << 20}, filepath.Join(dir, "audio"), 0))
	r.Mount("/analyze", classify.SetupRoutes(&classify.Handler{Backend: fireBackend{}}, "", 0))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	apiURL = srv.URL
	analyzeURL = ""
	analyzeKey = ""
	stateFile = filepath.Join(dir, "state", "state.yaml")
	httpTimeout = 2 * time.Second
	t.Cleanup(func() {
		reportCategory, reportZone, reportText, reportAudio = "", "", "", ""
		reportPreview = false
		statusWait = false
	})
	return store
}

func run(t *testing.T, fn func(*cobra.Command, []string) error) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := fn(cmd, nil)
	return out.String(), err
}

func TestReportFlow(t *testing.T) {
	store := setup(t)

	audio := filepath.Join(t.TempDir(), "note.webm")
	require.NoError(t, os.WriteFile(audio, bytes.Repeat([]byte("x"), 70<<10), 0o644))

	reportCategory = string(reports.CategoryFire)
	reportZone = string(reports.ZoneVIP)
	reportText = "smoke by the bar"
	reportAudio = audio
	reportPreview = true

	out, err := run(t, runReport)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Suggestion: high urgency, Fire / Hazard")
	assert.Contains(t, out, "Report sent for VIP")

	stored, err := store.Query(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, stored, 1)
	r := stored[0]
	assert.Equal(t, "smoke by the bar", *r.Text)
	assert.Equal(t, reports.UrgencyHigh, *r.Urgency)
	require.NotNil(t, r.AudioURL)
	assert.True(t, strings.HasPrefix(*r.AudioURL, apiURL+"/audio/files/audio/"+r.DeviceID+"/"))

	// the whole file was uploaded
	rel := strings.TrimPrefix(*r.AudioURL, apiURL+"/audio/files/")
	data, err := os.ReadFile(filepath.Join(filepath.Dir(stateFile), "..", "audio", rel))
	require.NoError(t, err)
	assert.Len(t, data, 70<<10)

	// same device within a minute
	reportAudio = ""
	reportPreview = false
	_, err = run(t, runReport)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "please wait 60 seconds")

	out, err = run(t, runStatus)
	require.NoError(t, err)
	assert.Contains(t, out, "Please wait")

	out, err = run(t, deviceIDCmd.RunE)
	require.NoError(t, err)
	assert.Equal(t, r.DeviceID, strings.TrimSpace(out))
}

func TestReportRejectsUnknownZone(t *testing.T) {
	store := setup(t)

	reportCategory = string(reports.CategoryFight)
	reportZone = "Car Park"

	_, err := run(t, runReport)
	require.ErrorIs(t, err, reports.ErrInvalid)

	stored, err := store.Query(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Empty(t, stored)

	out, err := run(t, runStatus)
	require.NoError(t, err)
	assert.Equal(t, "Ready to report.\n", out)
}

func TestReportWithoutClassifier(t *testing.T) {
	store := setup(t)
	analyzeURL = "http://127.0.0.1:1/analyze"

	reportCategory = string(reports.CategoryCrowdPressure)
	reportZone = string(reports.ZoneGateA)
	reportText = "people getting trampled at the gate"

	out, err := run(t, runReport)
	require.NoError(t, err, out)
	assert.Contains(t, out, "keyword matching")

	stored, err := store.Query(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, reports.UrgencyHigh, *stored[0].Urgency)
	assert.Equal(t, reports.CategoryCrowdPressure, *stored[0].AICategory)
	assert.Nil(t, stored[0].Transcript)
}
