package analytics

import (
	"testing"
	"time"

	"github.com/CrowdShield/CS-Backend/internal/reports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(t time.Time, zone reports.Zone, cat reports.Category) reports.Report {
	return reports.Report{ID: t.String() + string(zone) + string(cat), Zone: zone, Category: cat, DeviceID: "d", CreatedAt: t}
}

func TestCompute(t *testing.T) {
	now := time.Date(2025, 6, 1, 15, 30, 0, 0, time.UTC)

	t.Run("empty", func(t *testing.T) {
		s := Compute(nil, now, time.UTC)
		assert.Zero(t, s.TotalToday)
		assert.Nil(t, s.TopCategory)
		assert.Nil(t, s.TopZone)
		require.Len(t, s.Hourly, Hours)
		assert.Equal(t, "04:00", s.Hourly[0].Label)
		assert.Equal(t, "15:00", s.Hourly[Hours-1].Label)
	})

	t.Run("today only, with top category and zone", func(t *testing.T) {
		rs := []reports.Report{
			at(now.Add(-10*time.Minute), reports.ZoneGateA, reports.CategoryFight),
			at(now.Add(-20*time.Minute), reports.ZoneGateA, reports.CategoryFight),
			at(now.Add(-2*time.Hour), reports.ZoneVIP, reports.CategoryMedical),
			// previous day
			at(now.Add(-16*time.Hour), reports.ZoneVIP, reports.CategoryMedical),
			at(now.Add(-16*time.Hour), reports.ZoneVIP, reports.CategoryMedical),
			at(now.Add(-16*time.Hour), reports.ZoneVIP, reports.CategoryMedical),
		}
		s := Compute(rs, now, time.UTC)

		assert.Equal(t, 3, s.TotalToday)
		require.NotNil(t, s.TopCategory)
		assert.Equal(t, reports.CategoryFight, *s.TopCategory)
		require.NotNil(t, s.TopZone)
		assert.Equal(t, reports.ZoneGateA, *s.TopZone)

		assert.Equal(t, 2, s.Hourly[Hours-1].Count)
		assert.Equal(t, 1, s.Hourly[Hours-3].Count)
	})

	t.Run("ties break lexicographically", func(t *testing.T) {
		rs := []reports.Report{
			at(now.Add(-time.Minute), reports.ZoneVIP, reports.CategoryMedical),
			at(now.Add(-time.Minute), reports.ZoneExit, reports.CategoryFire),
		}
		s := Compute(rs, now, time.UTC)
		assert.Equal(t, reports.CategoryFire, *s.TopCategory)
		assert.Equal(t, reports.ZoneExit, *s.TopZone)
	})

	t.Run("early in the day the histogram excludes yesterday", func(t *testing.T) {
		early := time.Date(2025, 6, 1, 2, 15, 0, 0, time.UTC)
		rs := []reports.Report{
			at(time.Date(2025, 5, 31, 23, 30, 0, 0, time.UTC), reports.ZoneExit, reports.CategoryOther),
			at(time.Date(2025, 6, 1, 0, 5, 0, 0, time.UTC), reports.ZoneExit, reports.CategoryOther),
			at(time.Date(2025, 6, 1, 2, 0, 0, 0, time.UTC), reports.ZoneExit, reports.CategoryOther),
		}
		s := Compute(rs, early, time.UTC)

		assert.Equal(t, 2, s.TotalToday)
		total := 0
		for _, b := range s.Hourly {
			total += b.Count
		}
		assert.Equal(t, 2, total)
		assert.Equal(t, "15:00", s.Hourly[0].Label)
		assert.Equal(t, "23:00", s.Hourly[8].Label)
		assert.Zero(t, s.Hourly[8].Count)
		assert.Equal(t, 1, s.Hourly[9].Count)
		assert.Equal(t, 1, s.Hourly[11].Count)
	})

	t.Run("calendar day follows the event time zone", func(t *testing.T) {
		loc := time.FixedZone("EDT", -4*3600)
		// 02:00 UTC on June 2 is 22:00 on June 1 in the event zone
		evening := time.Date(2025, 6, 2, 2, 0, 0, 0, time.UTC)
		rs := []reports.Report{
			at(time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC), reports.ZoneVIP, reports.CategoryFire),
			at(time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC), reports.ZoneVIP, reports.CategoryFire),
		}
		s := Compute(rs, evening, loc)

		assert.Equal(t, 1, s.TotalToday)
		assert.Equal(t, "22:00", s.Hourly[Hours-1].Label)
		assert.Equal(t, 1, s.Hourly[Hours-7].Count)
	})
}
