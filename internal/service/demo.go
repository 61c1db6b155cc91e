package service

import (
	"time"

	"github.com/hindsight-io/hindsight/internal/domain"
)

// Demo deployments hold data for a single reference year. Query windows are
// mapped onto that year before hitting the store and event labels are mapped
// back afterwards, so callers can ask for "this week" against old data.

// replaceYear swaps the year of t, reporting whether the resulting calendar
// date exists. time.Date normalizes Feb 29 into Mar 1 on non-leap years,
// which shows up as a month change.
func replaceYear(t time.Time, year int) (time.Time, bool) {
	out := time.Date(year, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	return out, out.Month() == t.Month()
}

// translateDemoWindow maps a query window onto the reference year. A bound
// landing on a date that does not exist there (a leap day) widens outward by
// one day rather than failing; inverted bounds are swapped.
func translateDemoWindow(w domain.TimeWindow, demoYear int) domain.TimeWindow {
	out := domain.TimeWindow{}
	if w.Start != nil {
		start, ok := replaceYear(*w.Start, demoYear)
		if !ok {
			start, _ = replaceYear(w.Start.AddDate(0, 0, -1), demoYear)
		}
		out.Start = &start
	}
	if w.End != nil {
		end, ok := replaceYear(*w.End, demoYear)
		if !ok {
			end, _ = replaceYear(w.End.AddDate(0, 0, 1), demoYear)
		}
		out.End = &end
	}
	if out.Bounded() && out.Start.After(*out.End) {
		out.Start, out.End = out.End, out.Start
	}
	return out
}

// restoreDemoYear maps event labels from the reference year back to the
// caller's year. Leap days normalize forward when the target year lacks
// them.
func restoreDemoYear(f *domain.BeliefFrame, year int) {
	for i := range f.Rows {
		t := f.Rows[i].EventStart
		f.Rows[i].EventStart = time.Date(year, t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	}
	f.Sort()
}
