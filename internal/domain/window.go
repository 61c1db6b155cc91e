package domain

import "time"

// TimeWindow bounds event starts half-open: Start is included, End is not.
// A nil bound leaves that side open.
type TimeWindow struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

func Window(start, end time.Time) TimeWindow {
	return TimeWindow{Start: &start, End: &end}
}

func WindowFrom(start time.Time) TimeWindow {
	return TimeWindow{Start: &start}
}

func WindowUntil(end time.Time) TimeWindow {
	return TimeWindow{End: &end}
}

func (w TimeWindow) Contains(t time.Time) bool {
	if w.Start != nil && t.Before(*w.Start) {
		return false
	}
	if w.End != nil && !t.Before(*w.End) {
		return false
	}
	return true
}

func (w TimeWindow) IsZero() bool {
	return w.Start == nil && w.End == nil
}

// Bounded reports whether both ends of the window are set.
func (w TimeWindow) Bounded() bool {
	return w.Start != nil && w.End != nil
}

// HorizonWindow bounds belief horizons, both ends inclusive.
type HorizonWindow struct {
	AtLeast *time.Duration `json:"at_least,omitempty"`
	AtMost  *time.Duration `json:"at_most,omitempty"`
}

func HorizonsAtLeast(d time.Duration) HorizonWindow {
	return HorizonWindow{AtLeast: &d}
}

func HorizonsAtMost(d time.Duration) HorizonWindow {
	return HorizonWindow{AtMost: &d}
}

func (w HorizonWindow) Contains(h time.Duration) bool {
	if w.AtLeast != nil && h < *w.AtLeast {
		return false
	}
	if w.AtMost != nil && h > *w.AtMost {
		return false
	}
	return true
}

func (w HorizonWindow) IsZero() bool {
	return w.AtLeast == nil && w.AtMost == nil
}
