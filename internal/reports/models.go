package reports

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Common errors
var (
	ErrInvalid  = errors.New("invalid report")
	ErrNotFound = errors.New("report not found")
)

// MaxTextLength is the cap on a report's free text, in characters.
const MaxTextLength = 200

// Zone is a fixed named physical area of the event site.
type Zone string

const (
	ZoneGateA      Zone = "Gate A"
	ZoneGateB      Zone = "Gate B"
	ZoneFrontStage Zone = "Front Stage"
	ZoneVIP        Zone = "VIP"
	ZoneExit       Zone = "Exit"
)

// Zones lists every known zone in display order.
var Zones = []Zone{ZoneGateA, ZoneGateB, ZoneFrontStage, ZoneVIP, ZoneExit}

func (z Zone) Valid() bool {
	for _, known := range Zones {
		if z == known {
			return true
		}
	}
	return false
}

// Category is the incident type, either reporter-asserted or classifier-derived.
type Category string

const (
	CategoryCrowdPressure Category = "crowd_pressure"
	CategoryFight         Category = "fight"
	CategoryMedical       Category = "medical"
	CategoryFire          Category = "fire"
	CategoryOther         Category = "other"
)

var Categories = []Category{
	CategoryCrowdPressure,
	CategoryFight,
	CategoryMedical,
	CategoryFire,
	CategoryOther,
}

var categoryLabels = map[Category]string{
	CategoryCrowdPressure: "Crowd Pressure",
	CategoryFight:         "Fight",
	CategoryMedical:       "Medical Emergency",
	CategoryFire:          "Fire / Hazard",
	CategoryOther:         "Other",
}

func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Label is the human-readable name shown to reporters and organizers.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return string(c)
}

// Urgency is the classifier-derived severity tier.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

var Urgencies = []Urgency{UrgencyLow, UrgencyMedium, UrgencyHigh}

func (u Urgency) Valid() bool {
	return u.Rank() > 0
}

// Rank orders urgencies; unknown values rank 0.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyLow:
		return 1
	case UrgencyMedium:
		return 2
	case UrgencyHigh:
		return 3
	}
	return 0
}

// Report is a single attendee danger report.
type Report struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	Zone       Zone      `gorm:"not null" json:"zone"`
	Category   Category  `gorm:"not null" json:"category"`
	Text       *string   `json:"text"`
	DeviceID   string    `gorm:"not null;index" json:"device_id"`
	CreatedAt  time.Time `gorm:"not null;index" json:"created_at"`
	AudioURL   *string   `json:"audio_url"`
	Transcript *string   `json:"transcript"`
	Urgency    *Urgency  `json:"urgency"`
	AICategory *Category `json:"ai_category"`
	Latitude   *float64  `json:"latitude"`
	Longitude  *float64  `json:"longitude"`
}

func (Report) TableName() string { return "crowdshield.reports" }

// Fields is the insert payload. The store assigns ID and CreatedAt.
type Fields struct {
	Zone       Zone      `json:"zone"`
	Category   Category  `json:"category"`
	Text       *string   `json:"text,omitempty"`
	DeviceID   string    `json:"device_id"`
	AudioURL   *string   `json:"audio_url,omitempty"`
	Transcript *string   `json:"transcript,omitempty"`
	Urgency    *Urgency  `json:"urgency,omitempty"`
	AICategory *Category `json:"ai_category,omitempty"`
	Latitude   *float64  `json:"latitude,omitempty"`
	Longitude  *float64  `json:"longitude,omitempty"`
}

func (f Fields) Validate() error {
	if !f.Zone.Valid() {
		return fmt.Errorf("%w: unknown zone %q", ErrInvalid, f.Zone)
	}
	if !f.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalid, f.Category)
	}
	if strings.TrimSpace(f.DeviceID) == "" {
		return fmt.Errorf("%w: device_id is required", ErrInvalid)
	}
	if err := validateText(f.Text); err != nil {
		return err
	}
	if f.Urgency != nil && !f.Urgency.Valid() {
		return fmt.Errorf("%w: unknown urgency %q", ErrInvalid, *f.Urgency)
	}
	if f.AICategory != nil && !f.AICategory.Valid() {
		return fmt.Errorf("%w: unknown ai_category %q", ErrInvalid, *f.AICategory)
	}
	if (f.Latitude == nil) != (f.Longitude == nil) {
		return fmt.Errorf("%w: latitude and longitude must be set together", ErrInvalid)
	}
	if f.Latitude != nil && (*f.Latitude < -90 || *f.Latitude > 90) {
		return fmt.Errorf("%w: latitude out of range", ErrInvalid)
	}
	if f.Longitude != nil && (*f.Longitude < -180 || *f.Longitude > 180) {
		return fmt.Errorf("%w: longitude out of range", ErrInvalid)
	}
	return nil
}

// Report builds the stored record for an accepted insert.
func (f Fields) Report(id string, createdAt time.Time) Report {
	return Report{
		ID:         id,
		Zone:       f.Zone,
		Category:   f.Category,
		Text:       normalizeText(f.Text),
		DeviceID:   f.DeviceID,
		CreatedAt:  createdAt.UTC(),
		AudioURL:   f.AudioURL,
		Transcript: f.Transcript,
		Urgency:    f.Urgency,
		AICategory: f.AICategory,
		Latitude:   f.Latitude,
		Longitude:  f.Longitude,
	}
}

// Patch is an organizer correction. Only text and created_at may change.
type Patch struct {
	Text      *string    `json:"text,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

func (p Patch) Validate() error {
	if p.Text == nil && p.CreatedAt == nil {
		return fmt.Errorf("%w: nothing to update", ErrInvalid)
	}
	if p.CreatedAt != nil && p.CreatedAt.IsZero() {
		return fmt.Errorf("%w: created_at must be a valid timestamp", ErrInvalid)
	}
	return validateText(p.Text)
}

// Apply returns r with the patch applied. Every other field is left as is.
func (p Patch) Apply(r Report) Report {
	if p.Text != nil {
		r.Text = normalizeText(p.Text)
	}
	if p.CreatedAt != nil {
		r.CreatedAt = p.CreatedAt.UTC()
	}
	return r
}

func validateText(text *string) error {
	if text != nil && utf8.RuneCountInString(*text) > MaxTextLength {
		return fmt.Errorf("%w: text exceeds %d characters", ErrInvalid, MaxTextLength)
	}
	return nil
}

// normalizeText maps blank text to nil so "no description" has one form.
func normalizeText(text *string) *string {
	if text == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*text)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// EventType distinguishes realtime notifications.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
)

// Event is one realtime change notification.
type Event struct {
	Type   EventType `json:"type"`
	Report Report    `json:"report"`
}
