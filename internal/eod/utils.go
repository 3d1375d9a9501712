package eod

import (
	"path/filepath"
	"time"

	"live-trader/internal/calendar"
)

func csvPath(dir, identity, date string) string {
	return filepath.Join(dir, identity, date+".csv")
}

// lastDecision is the final decision instant of t's date.
func lastDecision(r *calendar.Resolver, t time.Time) time.Time {
	t = t.In(r.Location())
	last := 0
	for _, h := range r.DecisionHours() {
		if h > last {
			last = h
		}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), last, 0, 0, 0, r.Location())
}
