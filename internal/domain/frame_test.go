package domain

import (
	"testing"
	"time"
)

func testSensor() Sensor {
	return Sensor{ID: 1, Name: "meter-a", Unit: "kWh", EventResolution: 15 * time.Minute}
}

func TestFrameSortOrder(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rows := []Belief{
		{SensorID: 1, SourceID: 2, EventStart: t0.Add(15 * time.Minute), Horizon: time.Hour, CumulativeProbability: 0.5, EventValue: 3},
		{SensorID: 1, SourceID: 1, EventStart: t0, Horizon: time.Hour, CumulativeProbability: 0.5, EventValue: 2},
		{SensorID: 1, SourceID: 1, EventStart: t0, Horizon: 2 * time.Hour, CumulativeProbability: 0.5, EventValue: 1},
		{SensorID: 1, SourceID: 1, EventStart: t0, Horizon: time.Hour, CumulativeProbability: 0.05, EventValue: 0},
	}

	f := NewFrame(testSensor(), rows)

	// Earliest event first, then oldest belief (largest horizon) first,
	// then cumulative probability ascending.
	if f.Rows[0].EventValue != 1 {
		t.Errorf("row 0 = %v, want the 2h-horizon belief", f.Rows[0].EventValue)
	}
	if f.Rows[1].CumulativeProbability != 0.05 {
		t.Errorf("row 1 cp = %v, want 0.05", f.Rows[1].CumulativeProbability)
	}
	if f.Rows[2].EventValue != 2 {
		t.Errorf("row 2 = %v, want the 1h central row", f.Rows[2].EventValue)
	}
	if !f.Rows[3].EventStart.Equal(t0.Add(15 * time.Minute)) {
		t.Errorf("row 3 event start = %v, want the later event", f.Rows[3].EventStart)
	}
}

func TestFrameTrimWindowHalfOpen(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	var rows []Belief
	for i := 0; i < 4; i++ {
		rows = append(rows, Belief{
			SensorID:              1,
			SourceID:              1,
			EventStart:            t0.Add(time.Duration(i) * 15 * time.Minute),
			Horizon:               time.Hour,
			CumulativeProbability: 0.5,
			EventValue:            float64(i),
		})
	}
	f := NewFrame(testSensor(), rows)

	f.TrimWindow(Window(t0.Add(15*time.Minute), t0.Add(45*time.Minute)))

	if f.Len() != 2 {
		t.Fatalf("len = %d, want 2", f.Len())
	}
	if !f.Rows[0].EventStart.Equal(t0.Add(15 * time.Minute)) {
		t.Errorf("window start should be included, got first event %v", f.Rows[0].EventStart)
	}
	if !f.Rows[1].EventStart.Equal(t0.Add(30 * time.Minute)) {
		t.Errorf("window end should be excluded, got last event %v", f.Rows[1].EventStart)
	}
}

func TestFrameAddAligned(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	mk := func(start time.Time, v float64) Belief {
		return Belief{SensorID: 1, SourceID: 1, EventStart: start, Horizon: 0, CumulativeProbability: 0.5, EventValue: v}
	}

	a := NewFrame(testSensor(), []Belief{mk(t0, 10), mk(t0.Add(15*time.Minute), 10)})
	b := NewFrame(testSensor(), []Belief{mk(t0, 5), mk(t0.Add(30*time.Minute), 7)})

	sum := a.AddAligned(b)

	if sum.Len() != 3 {
		t.Fatalf("len = %d, want 3", sum.Len())
	}
	if sum.Rows[0].EventValue != 15 {
		t.Errorf("aligned event = %v, want 15", sum.Rows[0].EventValue)
	}
	if sum.Rows[1].EventValue != 10 {
		t.Errorf("event missing from b = %v, want 10 unchanged", sum.Rows[1].EventValue)
	}
	if sum.Rows[2].EventValue != 7 {
		t.Errorf("event missing from a = %v, want 7 unchanged", sum.Rows[2].EventValue)
	}
}

func TestFrameUniquePerEventAndSource(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	unique := NewFrame(testSensor(), []Belief{
		{SourceID: 1, EventStart: t0, Horizon: time.Hour, CumulativeProbability: 0.5},
		{SourceID: 2, EventStart: t0, Horizon: time.Hour, CumulativeProbability: 0.5},
	})
	if !unique.UniquePerEventAndSource() {
		t.Error("distinct sources on one event should count as unique")
	}

	dup := NewFrame(testSensor(), []Belief{
		{SourceID: 1, EventStart: t0, Horizon: 2 * time.Hour, CumulativeProbability: 0.5},
		{SourceID: 1, EventStart: t0, Horizon: time.Hour, CumulativeProbability: 0.5},
	})
	if dup.UniquePerEventAndSource() {
		t.Error("two beliefs by one source about one event should not count as unique")
	}
}

func TestBeliefTimeArithmetic(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b := Belief{EventStart: t0, Horizon: 2 * time.Hour}
	res := 15 * time.Minute

	if got := b.EventEnd(res); !got.Equal(t0.Add(15 * time.Minute)) {
		t.Errorf("EventEnd = %v", got)
	}
	if got := b.BeliefTime(res); !got.Equal(t0.Add(15*time.Minute - 2*time.Hour)) {
		t.Errorf("BeliefTime = %v", got)
	}
	if !b.ExAnte() {
		t.Error("positive horizon should be ex-ante")
	}
	if (Belief{Horizon: 0}).ExAnte() {
		t.Error("zero horizon should be ex-post")
	}
}
