// Package analytics summarizes the current event day's reports.
package analytics

import (
	"time"

	"github.com/CrowdShield/CS-Backend/internal/reports"
)

// Hours is the number of hourly buckets in a summary.
const Hours = 12

type HourBucket struct {
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	Count int       `json:"count"`
}

type Summary struct {
	TotalToday  int               `json:"total_today"`
	TopCategory *reports.Category `json:"top_category"`
	TopZone     *reports.Zone     `json:"top_zone"`
	Hourly      []HourBucket      `json:"hourly"`
}

// Compute summarizes reports created on now's calendar day in loc. Hourly
// covers the trailing twelve one-hour windows ending with the current hour;
// windows reaching into the previous day only count today's reports.
func Compute(rs []reports.Report, now time.Time, loc *time.Location) Summary {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var today []reports.Report
	for _, r := range rs {
		if !r.CreatedAt.Before(dayStart) && r.CreatedAt.Before(dayEnd) {
			today = append(today, r)
		}
	}

	categories := make(map[reports.Category]int)
	zones := make(map[reports.Zone]int)
	for _, r := range today {
		categories[r.Category]++
		zones[r.Zone]++
	}

	s := Summary{TotalToday: len(today), Hourly: hourly(today, local)}
	if c, ok := mostFrequent(categories); ok {
		s.TopCategory = &c
	}
	if z, ok := mostFrequent(zones); ok {
		s.TopZone = &z
	}
	return s
}

func hourly(today []reports.Report, local time.Time) []HourBucket {
	current := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, local.Location())

	buckets := make([]HourBucket, Hours)
	for i := range buckets {
		start := current.Add(-time.Duration(Hours-1-i) * time.Hour)
		buckets[i] = HourBucket{Label: start.Format("15:04"), Start: start}
	}

	first := buckets[0].Start
	end := current.Add(time.Hour)
	for _, r := range today {
		if r.CreatedAt.Before(first) || !r.CreatedAt.Before(end) {
			continue
		}
		idx := int(r.CreatedAt.Sub(first) / time.Hour)
		buckets[idx].Count++
	}
	return buckets
}

// mostFrequent picks the highest count, breaking ties lexicographically.
func mostFrequent[K ~string](counts map[K]int) (K, bool) {
	var (
		best  K
		top   int
		found bool
	)
	for k, n := range counts {
		if !found || n > top || (n == top && k < best) {
			best, top, found = k, n, true
		}
	}
	return best, found
}
