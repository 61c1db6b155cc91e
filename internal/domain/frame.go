package domain

import (
	"sort"
	"time"
)

// BeliefFrame is an ordered table of belief rows about a single sensor,
// sorted by event start, then belief time (oldest belief first), then
// source, then cumulative probability. Resolution is the duration each row's
// event spans; it starts at the sensor's native resolution and widens when
// the frame is resampled.
type BeliefFrame struct {
	Sensor     Sensor        `json:"sensor"`
	Resolution time.Duration `json:"resolution"`
	Rows       []Belief      `json:"rows"`
}

func NewFrame(sensor Sensor, rows []Belief) *BeliefFrame {
	f := &BeliefFrame{Sensor: sensor, Resolution: sensor.EventResolution, Rows: rows}
	f.Sort()
	return f
}

func (f *BeliefFrame) Len() int {
	return len(f.Rows)
}

func (f *BeliefFrame) Empty() bool {
	return len(f.Rows) == 0
}

// Sort restores the frame's canonical row order. Within one event start a
// larger horizon means an earlier belief time, so horizons sort descending.
func (f *BeliefFrame) Sort() {
	sort.SliceStable(f.Rows, func(i, j int) bool {
		a, b := f.Rows[i], f.Rows[j]
		if !a.EventStart.Equal(b.EventStart) {
			return a.EventStart.Before(b.EventStart)
		}
		if a.Horizon != b.Horizon {
			return a.Horizon > b.Horizon
		}
		if a.SourceID != b.SourceID {
			return a.SourceID < b.SourceID
		}
		return a.CumulativeProbability < b.CumulativeProbability
	})
}

func (f *BeliefFrame) Clone() *BeliefFrame {
	rows := make([]Belief, len(f.Rows))
	copy(rows, f.Rows)
	return &BeliefFrame{Sensor: f.Sensor, Resolution: f.Resolution, Rows: rows}
}

// TrimWindow drops rows whose event start falls outside the half-open
// window.
func (f *BeliefFrame) TrimWindow(w TimeWindow) {
	if w.IsZero() {
		return
	}
	kept := f.Rows[:0]
	for _, r := range f.Rows {
		if w.Contains(r.EventStart) {
			kept = append(kept, r)
		}
	}
	f.Rows = kept
}

// EventStarts returns the distinct event starts in order.
func (f *BeliefFrame) EventStarts() []time.Time {
	var starts []time.Time
	for _, r := range f.Rows {
		if len(starts) == 0 || !starts[len(starts)-1].Equal(r.EventStart) {
			starts = append(starts, r.EventStart)
		}
	}
	return starts
}

// SourceIDs returns the distinct sources appearing in the frame, ascending.
func (f *BeliefFrame) SourceIDs() []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, r := range f.Rows {
		if !seen[r.SourceID] {
			seen[r.SourceID] = true
			ids = append(ids, r.SourceID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// UniquePerEventAndSource reports whether every (event start, source) pair
// holds exactly one row, i.e. the frame carries deterministic,
// single-belief data.
func (f *BeliefFrame) UniquePerEventAndSource() bool {
	type key struct {
		start  time.Time
		source int64
	}
	seen := make(map[key]bool, len(f.Rows))
	for _, r := range f.Rows {
		k := key{r.EventStart.UTC(), r.SourceID}
		if seen[k] {
			return false
		}
		seen[k] = true
	}
	return true
}

// AddAligned sums two frames on event start, treating an event missing from
// either side as zero. Both frames must already be reduced to one row per
// event; each result row keeps the metadata of whichever side contributed
// it first (the receiver wins when both did).
func (f *BeliefFrame) AddAligned(other *BeliefFrame) *BeliefFrame {
	type entry struct {
		row   Belief
		value float64
	}
	byStart := make(map[time.Time]*entry, len(f.Rows))
	order := make([]time.Time, 0, len(f.Rows))
	for _, r := range f.Rows {
		k := r.EventStart.UTC()
		byStart[k] = &entry{row: r, value: r.EventValue}
		order = append(order, k)
	}
	for _, r := range other.Rows {
		k := r.EventStart.UTC()
		if e, ok := byStart[k]; ok {
			e.value += r.EventValue
			continue
		}
		byStart[k] = &entry{row: r, value: r.EventValue}
		order = append(order, k)
	}
	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })

	sum := &BeliefFrame{Sensor: f.Sensor, Resolution: f.Resolution}
	sum.Rows = make([]Belief, 0, len(order))
	for _, k := range order {
		e := byStart[k]
		row := e.row
		row.EventValue = e.value
		sum.Rows = append(sum.Rows, row)
	}
	return sum
}
