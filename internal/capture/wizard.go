// Package capture drives a single incident report from category choice to
// submission.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/CrowdShield/CS-Backend/internal/classify"
	"github.com/CrowdShield/CS-Backend/internal/reports"
	"go.uber.org/zap"
)

type State string

const (
	StateIdle              State = "idle"
	StateCategorySelection State = "category_selection"
	StateDetailsCapture    State = "details_capture"
	StateSubmitting        State = "submitting"
	StateSubmitted         State = "submitted"
)

const (
	DefaultLocateTimeout = 10 * time.Second
	DefaultResetDelay    = 3 * time.Second
)

// Deps are the wizard's collaborators. Identity, Limiter and Inserter are
// required; the rest may be nil, which makes the matching feature
// unavailable.
type Deps struct {
	Identity    Identity
	Limiter     Limiter
	Inserter    Inserter
	Classifier  classify.Classifier
	Uploader    Uploader
	Recorder    Recorder
	Transcriber Transcriber
	Locator     Locator
}

type Options struct {
	// AutoLocate requests the position on entry to details capture.
	AutoLocate    bool
	LocateTimeout time.Duration
	// ResetDelay is how long the submitted state lasts before the wizard
	// returns to idle. Zero uses DefaultResetDelay.
	ResetDelay time.Duration
	Now        func() time.Time
}

type audioBlob struct {
	data        []byte
	contentType string
}

type recordingSession struct {
	recording  Recording
	chunks     [][]byte
	pumpDone   chan struct{}
	stopTransc context.CancelFunc
}

// Snapshot is a read-only view of the wizard's draft.
type Snapshot struct {
	State       State            `json:"state"`
	Category    reports.Category `json:"category,omitempty"`
	Zone        reports.Zone     `json:"zone,omitempty"`
	Text        string           `json:"text,omitempty"`
	Transcript  string           `json:"transcript,omitempty"`
	Recording   bool             `json:"recording"`
	HasAudio    bool             `json:"has_audio"`
	Locating    bool             `json:"locating"`
	Coordinates *Coordinates     `json:"coordinates,omitempty"`
	Suggestion  *classify.Result `json:"suggestion,omitempty"`
	LastReport  *reports.Report  `json:"last_report,omitempty"`
}

// Wizard is the incident capture state machine. Its methods are safe for
// concurrent use; background work (recording, transcription, geolocation)
// feeds results back under the same lock.
type Wizard struct {
	deps Deps
	opts Options

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State
	closed     bool
	generation int

	skippedCategories bool
	category          reports.Category
	zone              reports.Zone
	text              string
	transcript        string
	coords            *Coordinates
	locating          bool
	stopLocate        context.CancelFunc
	rec               *recordingSession
	audio             *audioBlob
	suggestion        *classify.Result
	suggestedFor      string
	notices           []Notice
	lastReport        *reports.Report
	resetTimer        *time.Timer
}

func New(deps Deps, opts Options) *Wizard {
	if opts.LocateTimeout <= 0 {
		opts.LocateTimeout = DefaultLocateTimeout
	}
	if opts.ResetDelay <= 0 {
		opts.ResetDelay = DefaultResetDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Wizard{
		deps:   deps,
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
		state:  StateIdle,
	}
}

func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Notices returns the soft and recoverable problems seen since the last reset.
func (w *Wizard) Notices() []Notice {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Notice(nil), w.notices...)
}

func (w *Wizard) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := Snapshot{
		State:      w.state,
		Category:   w.category,
		Zone:       w.zone,
		Text:       w.text,
		Transcript: w.transcript,
		Recording:  w.rec != nil,
		HasAudio:   w.audio != nil,
		Locating:   w.locating,
		LastReport: w.lastReport,
	}
	if w.coords != nil {
		c := *w.coords
		s.Coordinates = &c
	}
	if w.suggestion != nil {
		sg := *w.suggestion
		s.Suggestion = &sg
	}
	return s
}

// Start opens category selection.
func (w *Wizard) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkStart(); err != nil {
		return err
	}
	w.state = StateCategorySelection
	w.skippedCategories = false
	return nil
}

// StartWithCategory skips category selection.
func (w *Wizard) StartWithCategory(ctx context.Context, c reports.Category) error {
	if !c.Valid() {
		return fmt.Errorf("%w: unknown category %q", reports.ErrInvalid, c)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkStart(); err != nil {
		return err
	}
	w.skippedCategories = true
	w.category = c
	w.enterDetails()
	return nil
}

func (w *Wizard) checkStart() error {
	if w.closed || w.state != StateIdle {
		return fmt.Errorf("%w: cannot start from %s", ErrInvalidTransition, w.state)
	}
	if !w.deps.Limiter.CanSubmit() {
		return &RateLimitedError{Seconds: w.deps.Limiter.SecondsUntilNextAllowed()}
	}
	return nil
}

func (w *Wizard) SelectCategory(c reports.Category) error {
	if !c.Valid() {
		return fmt.Errorf("%w: unknown category %q", reports.ErrInvalid, c)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateCategorySelection {
		return fmt.Errorf("%w: cannot select a category in %s", ErrInvalidTransition, w.state)
	}
	w.category = c
	w.enterDetails()
	return nil
}

// Back steps to the previous state: details capture returns to category
// selection (or idle if it was skipped), category selection returns to idle.
func (w *Wizard) Back() error {
	w.mu.Lock()

	switch w.state {
	case StateCategorySelection:
		sess := w.clearLocked()
		w.mu.Unlock()
		w.release(sess)
		return nil

	case StateDetailsCapture:
		if w.skippedCategories {
			sess := w.clearLocked()
			w.mu.Unlock()
			w.release(sess)
			return nil
		}
		w.state = StateCategorySelection
		w.cancelLocateLocked()
		sess := w.rec
		w.rec = nil
		gen := w.generation
		w.mu.Unlock()

		// audio recorded so far is kept with the draft
		w.finishRecording(sess, gen)
		return nil
	}

	state := w.state
	w.mu.Unlock()
	return fmt.Errorf("%w: cannot go back from %s", ErrInvalidTransition, state)
}

func (w *Wizard) SetZone(z reports.Zone) error {
	if !z.Valid() {
		return fmt.Errorf("%w: unknown zone %q", reports.ErrInvalid, z)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateDetailsCapture {
		return fmt.Errorf("%w: cannot set zone in %s", ErrInvalidTransition, w.state)
	}
	w.zone = z
	return nil
}

// SetText sets the reporter's description, truncated to the text cap.
func (w *Wizard) SetText(text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateDetailsCapture {
		return fmt.Errorf("%w: cannot set text in %s", ErrInvalidTransition, w.state)
	}
	w.text = truncate(text, reports.MaxTextLength)
	return nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// enterDetails must be called with mu held.
func (w *Wizard) enterDetails() {
	w.state = StateDetailsCapture
	if w.opts.AutoLocate {
		w.startLocateLocked()
	}
}

func (w *Wizard) startLocateLocked() {
	if w.deps.Locator == nil {
		w.noticeLocked(NoticeLocationUnavailable, "location is not available on this device")
		return
	}
	if w.locating || w.coords != nil {
		return
	}

	ctx, cancel := context.WithTimeout(w.ctx, w.opts.LocateTimeout)
	w.locating = true
	w.stopLocate = cancel
	gen := w.generation

	go func() {
		defer cancel()
		c, err := w.deps.Locator.Locate(ctx)

		w.mu.Lock()
		defer w.mu.Unlock()
		if w.generation != gen {
			return
		}
		w.locating = false
		w.stopLocate = nil
		w.applyLocationLocked(c, err)
	}()
}

func (w *Wizard) applyLocationLocked(c Coordinates, err error) {
	if err != nil {
		w.noticeLocked(NoticeLocationUnavailable, "could not get your location: "+err.Error())
		return
	}
	w.coords = &c
}

func (w *Wizard) cancelLocateLocked() {
	if w.stopLocate != nil {
		w.stopLocate()
		w.stopLocate = nil
	}
	w.locating = false
}

// RequestLocation makes a one-shot location request and waits for it. A
// denial or timeout leaves coordinates unset and records a notice.
func (w *Wizard) RequestLocation(ctx context.Context) (*Coordinates, error) {
	w.mu.Lock()
	if w.state != StateDetailsCapture {
		state := w.state
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot locate in %s", ErrInvalidTransition, state)
	}
	if w.deps.Locator == nil {
		w.noticeLocked(NoticeLocationUnavailable, "location is not available on this device")
		w.mu.Unlock()
		return nil, nil
	}
	w.cancelLocateLocked()
	gen := w.generation
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, w.opts.LocateTimeout)
	defer cancel()
	c, err := w.deps.Locator.Locate(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.generation != gen {
		return nil, nil
	}
	w.applyLocationLocked(c, err)
	if err != nil {
		return nil, nil
	}
	out := c
	return &out, nil
}

// StartRecording acquires the microphone and starts live transcription. A
// denied microphone or unavailable transcription records a notice and the
// flow continues without it.
func (w *Wizard) StartRecording(ctx context.Context) error {
	w.mu.Lock()
	if w.state != StateDetailsCapture {
		state := w.state
		w.mu.Unlock()
		return fmt.Errorf("%w: cannot record in %s", ErrInvalidTransition, state)
	}
	if w.rec != nil {
		w.mu.Unlock()
		return nil
	}
	if w.deps.Recorder == nil {
		w.noticeLocked(NoticeMicrophoneUnavailable, "audio recording is not available on this device")
		w.mu.Unlock()
		return nil
	}
	gen := w.generation
	w.mu.Unlock()

	rec, err := w.deps.Recorder.Start(ctx)
	if err != nil {
		w.notice(NoticeMicrophoneUnavailable, "microphone unavailable: "+err.Error())
		return nil
	}

	sess := &recordingSession{recording: rec, pumpDone: make(chan struct{})}
	go func() {
		defer close(sess.pumpDone)
		for chunk := range rec.Chunks() {
			sess.chunks = append(sess.chunks, chunk)
		}
	}()

	w.mu.Lock()
	if w.generation != gen || w.state != StateDetailsCapture || w.rec != nil {
		w.mu.Unlock()
		w.release(sess)
		return nil
	}
	w.rec = sess
	w.mu.Unlock()

	w.startTranscription(sess, gen)
	return nil
}

func (w *Wizard) startTranscription(sess *recordingSession, gen int) {
	if w.deps.Transcriber == nil {
		w.notice(NoticeTranscriptionUnavailable, "live transcription is not supported")
		return
	}

	ctx, cancel := context.WithCancel(w.ctx)
	partials, err := w.deps.Transcriber.Start(ctx)
	if err != nil {
		cancel()
		w.notice(NoticeTranscriptionUnavailable, "live transcription unavailable: "+err.Error())
		return
	}

	w.mu.Lock()
	if w.rec != sess {
		// released while starting
		w.mu.Unlock()
		cancel()
		return
	}
	sess.stopTransc = cancel
	w.mu.Unlock()

	go func() {
		for p := range partials {
			w.mu.Lock()
			if w.generation == gen {
				w.transcript = p
			}
			w.mu.Unlock()
		}
	}()
}

// StopRecording releases the microphone and keeps the recorded audio.
func (w *Wizard) StopRecording() error {
	w.mu.Lock()
	sess := w.rec
	w.rec = nil
	gen := w.generation
	w.mu.Unlock()

	if sess == nil {
		return nil
	}
	w.finishRecording(sess, gen)
	return nil
}

// finishRecording stops sess and stores its audio if the draft is unchanged.
func (w *Wizard) finishRecording(sess *recordingSession, gen int) {
	if sess == nil {
		return
	}
	w.release(sess)

	data := bytes.Join(sess.chunks, nil)
	if len(data) == 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.generation == gen {
		w.audio = &audioBlob{data: data, contentType: sess.recording.ContentType()}
	}
}

// release frees the microphone and stops transcription. It must be called
// without mu held.
func (w *Wizard) release(sess *recordingSession) {
	if sess == nil {
		return
	}
	if err := sess.recording.Stop(); err != nil {
		zap.L().Warn("stopping recording", zap.Error(err))
	}
	<-sess.pumpDone

	w.mu.Lock()
	stop := sess.stopTransc
	w.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// Analyze classifies the reporter's text, or the live transcript when there
// is none, and keeps the suggestion for submission.
func (w *Wizard) Analyze(ctx context.Context) (*classify.Result, error) {
	w.mu.Lock()
	if w.state != StateDetailsCapture {
		state := w.state
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot analyze in %s", ErrInvalidTransition, state)
	}
	text := analysisText(w.text, w.transcript)
	gen := w.generation
	w.mu.Unlock()

	res := w.classify(ctx, classify.Request{Text: text}, text)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.generation == gen {
		w.suggestion = res
		w.suggestedFor = text
	}
	out := *res
	return &out, nil
}

// analysisText is the text a suggestion is built from: the reporter's text,
// else the live transcript.
func analysisText(text, transcript string) string {
	if t := strings.TrimSpace(text); t != "" {
		return t
	}
	return strings.TrimSpace(transcript)
}

// classify asks the service and falls back to the keyword heuristic.
func (w *Wizard) classify(ctx context.Context, req classify.Request, fallbackText string) *classify.Result {
	if w.deps.Classifier != nil && (strings.TrimSpace(req.Text) != "" || req.AudioURL != "") {
		if res := w.deps.Classifier.Classify(ctx, req); res != nil {
			return res
		}
		w.notice(NoticeClassificationUnavailable, "classification service unavailable, used keyword matching")
	}

	res := classify.Heuristic(fallbackText)
	// the heuristic has no transcript of its own
	res.Transcript = ""
	return &res
}

// Submit uploads any audio, classifies if needed, and inserts the report.
// The cooldown is checked again before any network call. On failure the
// wizard returns to details capture and the cooldown is not started.
func (w *Wizard) Submit(ctx context.Context) (reports.Report, error) {
	w.mu.Lock()
	if w.state != StateDetailsCapture {
		state := w.state
		w.mu.Unlock()
		return reports.Report{}, fmt.Errorf("%w: cannot submit from %s", ErrInvalidTransition, state)
	}
	if w.zone == "" {
		w.mu.Unlock()
		return reports.Report{}, ErrZoneRequired
	}
	if !w.deps.Limiter.CanSubmit() {
		secs := w.deps.Limiter.SecondsUntilNextAllowed()
		w.mu.Unlock()
		return reports.Report{}, &RateLimitedError{Seconds: secs}
	}

	w.state = StateSubmitting
	w.cancelLocateLocked()
	sess := w.rec
	w.rec = nil
	gen := w.generation
	w.mu.Unlock()

	w.finishRecording(sess, gen)

	w.mu.Lock()
	category := w.category
	zone := w.zone
	text := strings.TrimSpace(w.text)
	transcript := strings.TrimSpace(w.transcript)
	coords := w.coords
	audio := w.audio
	suggestion := w.suggestion
	if suggestion != nil && w.suggestedFor != analysisText(text, transcript) {
		// text or transcript changed after Analyze
		suggestion = nil
	}
	w.mu.Unlock()

	deviceID := w.deps.Identity.ID()

	var audioURL string
	if audio != nil {
		if w.deps.Uploader == nil {
			w.notice(NoticeUploadFailed, "audio upload is not configured, submitting without audio")
		} else {
			url, err := w.deps.Uploader.UploadAudio(ctx, deviceID, audio.contentType, audio.data)
			if err != nil {
				w.notice(NoticeUploadFailed, "audio upload failed, submitting without audio: "+err.Error())
			} else {
				audioURL = url
			}
		}
	}

	if suggestion == nil {
		fallback := analysisText(text, transcript)
		suggestion = w.classify(ctx, classify.Request{Text: fallback, AudioURL: audioURL}, fallback)
	}

	// the service's transcript wins over the live one; reporter text is
	// never replaced
	if t := strings.TrimSpace(suggestion.Transcript); t != "" {
		transcript = t
	}

	fields := reports.Fields{
		Zone:       zone,
		Category:   category,
		DeviceID:   deviceID,
		Urgency:    &suggestion.Urgency,
		AICategory: &suggestion.AICategory,
	}
	if text != "" {
		fields.Text = &text
	}
	if transcript != "" {
		fields.Transcript = &transcript
	}
	if audioURL != "" {
		fields.AudioURL = &audioURL
	}
	if coords != nil {
		lat, lon := coords.Latitude, coords.Longitude
		fields.Latitude, fields.Longitude = &lat, &lon
	}

	report, err := w.deps.Inserter.InsertReport(ctx, fields)
	if err != nil {
		w.mu.Lock()
		if w.generation == gen {
			w.state = StateDetailsCapture
		}
		w.mu.Unlock()
		return reports.Report{}, fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}

	w.deps.Limiter.MarkSubmitted()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.generation == gen {
		w.state = StateSubmitted
		w.lastReport = &report
		w.resetTimer = time.AfterFunc(w.opts.ResetDelay, func() { w.autoReset(gen) })
	}
	return report, nil
}

func (w *Wizard) autoReset(gen int) {
	w.mu.Lock()
	if w.generation != gen || w.state != StateSubmitted {
		w.mu.Unlock()
		return
	}
	sess := w.clearLocked()
	w.mu.Unlock()
	w.release(sess)
}

// Reset abandons the draft and returns to idle, releasing the microphone.
func (w *Wizard) Reset() {
	w.mu.Lock()
	sess := w.clearLocked()
	w.mu.Unlock()
	w.release(sess)
}

// Close resets the wizard and stops all background work. The wizard cannot
// be started again.
func (w *Wizard) Close() error {
	w.mu.Lock()
	w.closed = true
	sess := w.clearLocked()
	w.mu.Unlock()

	w.release(sess)
	w.cancel()
	return nil
}

// clearLocked drops the draft, bumps the generation so background work from
// it is ignored, and returns any recording for the caller to release.
func (w *Wizard) clearLocked() *recordingSession {
	w.generation++
	w.cancelLocateLocked()
	if w.resetTimer != nil {
		w.resetTimer.Stop()
		w.resetTimer = nil
	}

	sess := w.rec
	w.rec = nil
	w.state = StateIdle
	w.skippedCategories = false
	w.category = ""
	w.zone = ""
	w.text = ""
	w.transcript = ""
	w.coords = nil
	w.audio = nil
	w.suggestion = nil
	w.suggestedFor = ""
	w.notices = nil
	return sess
}

func (w *Wizard) notice(kind NoticeKind, msg string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.noticeLocked(kind, msg)
}

func (w *Wizard) noticeLocked(kind NoticeKind, msg string) {
	w.notices = append(w.notices, Notice{Kind: kind, Message: msg, At: w.opts.Now()})
	zap.L().Info("report notice", zap.String("kind", string(kind)), zap.String("message", msg))
}
