package reports

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func validFields() Fields {
	return Fields{Zone: ZoneGateA, Category: CategoryFight, DeviceID: "dev-1"}
}

func TestFieldsValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Fields)
		ok     bool
	}{
		{"minimal", func(f *Fields) {}, true},
		{"unknown zone", func(f *Fields) { f.Zone = "Backstage" }, false},
		{"unknown category", func(f *Fields) { f.Category = "weather" }, false},
		{"missing device", func(f *Fields) { f.DeviceID = " " }, false},
		{"text at cap", func(f *Fields) { f.Text = ptr(strings.Repeat("é", MaxTextLength)) }, true},
		{"text over cap", func(f *Fields) { f.Text = ptr(strings.Repeat("a", MaxTextLength+1)) }, false},
		{"bad urgency", func(f *Fields) { f.Urgency = ptr(Urgency("critical")) }, false},
		{"bad ai category", func(f *Fields) { f.AICategory = ptr(Category("x")) }, false},
		{"ai category may disagree", func(f *Fields) { f.AICategory = ptr(CategoryMedical) }, true},
		{"latitude without longitude", func(f *Fields) { f.Latitude = ptr(1.0) }, false},
		{"coordinates", func(f *Fields) { f.Latitude, f.Longitude = ptr(51.5), ptr(-0.12) }, true},
		{"latitude out of range", func(f *Fields) { f.Latitude, f.Longitude = ptr(91.0), ptr(0.0) }, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := validFields()
			tc.mutate(&f)
			err := f.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalid)
			}
		})
	}
}

func TestFieldsReport(t *testing.T) {
	f := validFields()
	f.Text = ptr("  crowd surging  ")
	at := time.Date(2025, 6, 1, 20, 0, 0, 0, time.FixedZone("CEST", 2*3600))

	r := f.Report("id-1", at)
	assert.Equal(t, "id-1", r.ID)
	assert.Equal(t, "crowd surging", *r.Text)
	assert.Equal(t, time.UTC, r.CreatedAt.Location())
	assert.True(t, r.CreatedAt.Equal(at))

	f.Text = ptr("   ")
	assert.Nil(t, f.Report("id-2", at).Text)
}

func TestPatch(t *testing.T) {
	assert.ErrorIs(t, Patch{}.Validate(), ErrInvalid)
	assert.ErrorIs(t, Patch{Text: ptr(strings.Repeat("a", MaxTextLength+1))}.Validate(), ErrInvalid)
	assert.NoError(t, Patch{Text: ptr("")}.Validate())

	orig := Report{
		ID:         "id-1",
		Zone:       ZoneVIP,
		Category:   CategoryMedical,
		Text:       ptr("old"),
		DeviceID:   "dev",
		CreatedAt:  time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC),
		Urgency:    ptr(UrgencyHigh),
		AICategory: ptr(CategoryMedical),
	}

	newTime := orig.CreatedAt.Add(-time.Hour)
	got := Patch{Text: ptr("new"), CreatedAt: &newTime}.Apply(orig)

	assert.Equal(t, "new", *got.Text)
	assert.True(t, got.CreatedAt.Equal(newTime))
	assert.Equal(t, orig.ID, got.ID)
	assert.Equal(t, orig.Zone, got.Zone)
	assert.Equal(t, orig.Category, got.Category)
	assert.Equal(t, orig.DeviceID, got.DeviceID)
	assert.Equal(t, orig.Urgency, got.Urgency)
	assert.Equal(t, orig.AICategory, got.AICategory)

	cleared := Patch{Text: ptr("")}.Apply(orig)
	assert.Nil(t, cleared.Text)
	assert.True(t, cleared.CreatedAt.Equal(orig.CreatedAt))
}

func TestEnums(t *testing.T) {
	for _, z := range Zones {
		assert.True(t, z.Valid())
	}
	for _, c := range Categories {
		assert.True(t, c.Valid())
		assert.NotEmpty(t, c.Label())
	}
	assert.Equal(t, "Fire / Hazard", CategoryFire.Label())
	assert.Greater(t, UrgencyHigh.Rank(), UrgencyMedium.Rank())
	assert.Greater(t, UrgencyMedium.Rank(), UrgencyLow.Rank())
	assert.False(t, Urgency("").Valid())
}
