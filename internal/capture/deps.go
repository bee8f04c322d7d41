package capture

import (
	"context"

	"github.com/CrowdShield/CS-Backend/internal/reports"
)

// Coordinates is a one-shot device position.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Locator performs a single geolocation request.
type Locator interface {
	Locate(ctx context.Context) (Coordinates, error)
}

// Recording is an active microphone capture. Chunks is closed once Stop has
// released the microphone.
type Recording interface {
	Chunks() <-chan []byte
	ContentType() string
	Stop() error
}

// Recorder acquires the microphone.
type Recorder interface {
	Start(ctx context.Context) (Recording, error)
}

// Transcriber produces partial transcripts until ctx is done, then closes
// the channel.
type Transcriber interface {
	Start(ctx context.Context) (<-chan string, error)
}

// Uploader stores recorded audio and returns its public URL.
type Uploader interface {
	UploadAudio(ctx context.Context, deviceID, contentType string, data []byte) (string, error)
}

// Inserter persists a report.
type Inserter interface {
	InsertReport(ctx context.Context, f reports.Fields) (reports.Report, error)
}

// Limiter is the submission cooldown.
type Limiter interface {
	CanSubmit() bool
	SecondsUntilNextAllowed() int
	MarkSubmitted()
}

// Identity supplies the device id.
type Identity interface {
	ID() string
}
