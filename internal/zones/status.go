// Package zones derives a safety status for each zone from recent reports.
package zones

import (
	"time"

	"github.com/CrowdShield/CS-Backend/internal/reports"
)

type Status string

const (
	StatusSafe    Status = "safe"
	StatusCaution Status = "caution"
	StatusDanger  Status = "danger"
)

const (
	// Window is how far back a report counts toward a zone's status.
	Window = 2 * time.Minute

	CautionThreshold = 5
	DangerThreshold  = 10
)

// ZoneStatus is the derived view for one zone.
type ZoneStatus struct {
	Zone          reports.Zone      `json:"zone"`
	Status        Status            `json:"status"`
	UniqueDevices int               `json:"unique_devices"`
	RecentReports int               `json:"recent_reports"`
	TopCategory   *reports.Category `json:"top_category"`
}

// StatusFor maps a distinct-device count to a status.
func StatusFor(uniqueDevices int) Status {
	switch {
	case uniqueDevices >= DangerThreshold:
		return StatusDanger
	case uniqueDevices >= CautionThreshold:
		return StatusCaution
	default:
		return StatusSafe
	}
}

// Compute returns one status per known zone, in display order. A report
// counts when created strictly after now-Window; each device counts once
// per zone however many reports it sent.
func Compute(rs []reports.Report, now time.Time) []ZoneStatus {
	cutoff := now.Add(-Window)

	type tally struct {
		devices    map[string]struct{}
		reports    int
		categories map[reports.Category]int
	}
	tallies := make(map[reports.Zone]*tally, len(reports.Zones))
	for _, z := range reports.Zones {
		tallies[z] = &tally{devices: map[string]struct{}{}, categories: map[reports.Category]int{}}
	}

	for _, r := range rs {
		t, ok := tallies[r.Zone]
		if !ok || !r.CreatedAt.After(cutoff) {
			continue
		}
		t.devices[r.DeviceID] = struct{}{}
		t.reports++
		t.categories[r.Category]++
	}

	out := make([]ZoneStatus, 0, len(reports.Zones))
	for _, z := range reports.Zones {
		t := tallies[z]
		zs := ZoneStatus{
			Zone:          z,
			Status:        StatusFor(len(t.devices)),
			UniqueDevices: len(t.devices),
			RecentReports: t.reports,
		}
		if c, ok := topCategory(t.categories); ok {
			zs.TopCategory = &c
		}
		out = append(out, zs)
	}
	return out
}

// topCategory picks the highest count, breaking ties lexicographically.
func topCategory(counts map[reports.Category]int) (reports.Category, bool) {
	var (
		best  reports.Category
		top   int
		found bool
	)
	for c, n := range counts {
		if !found || n > top || (n == top && c < best) {
			best, top, found = c, n, true
		}
	}
	return best, found
}
