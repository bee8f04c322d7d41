package feed

import (
	"time"

	"github.com/CrowdShield/CS-Backend/internal/reports"
)

// list is not safe for concurrent use; Live serializes access.
type list struct {
	byID  map[string]reports.Report
	order []reports.Report
	dirty bool
}

func newList() *list {
	return &list{byID: make(map[string]reports.Report)}
}

// add inserts r unless its id is already present.
func (l *list) add(r reports.Report) bool {
	if _, ok := l.byID[r.ID]; ok {
		return false
	}
	l.byID[r.ID] = r
	l.dirty = true
	return true
}

// replace stores r, inserting it if absent.
func (l *list) replace(r reports.Report) {
	l.byID[r.ID] = r
	l.dirty = true
}

func (l *list) pruneBefore(cutoff time.Time) int {
	removed := 0
	for id, r := range l.byID {
		if r.CreatedAt.Before(cutoff) {
			delete(l.byID, id)
			removed++
		}
	}
	if removed > 0 {
		l.dirty = true
	}
	return removed
}

func (l *list) newest(limit int) []reports.Report {
	if l.dirty {
		l.order = l.order[:0]
		for _, r := range l.byID {
			l.order = append(l.order, r)
		}
		reports.SortNewestFirst(l.order)
		l.dirty = false
	}

	n := len(l.order)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]reports.Report, n)
	copy(out, l.order[:n])
	return out
}
