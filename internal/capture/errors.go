package capture

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidTransition = errors.New("invalid wizard transition")
	ErrZoneRequired      = errors.New("a zone must be selected")
	ErrSubmitFailed      = errors.New("failed to submit report")
	ErrRateLimited       = errors.New("please wait before submitting another report")
)

// RateLimitedError carries the remaining cooldown. It matches ErrRateLimited.
type RateLimitedError struct {
	Seconds int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("please wait %ds before submitting another report", e.Seconds)
}

func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}

// NoticeKind classifies soft and recoverable problems that do not stop the
// flow.
type NoticeKind string

const (
	NoticeLocationUnavailable       NoticeKind = "location_unavailable"
	NoticeMicrophoneUnavailable     NoticeKind = "microphone_unavailable"
	NoticeTranscriptionUnavailable  NoticeKind = "transcription_unavailable"
	NoticeUploadFailed              NoticeKind = "upload_failed"
	NoticeClassificationUnavailable NoticeKind = "classification_unavailable"
)

type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	At      time.Time  `json:"at"`
}
