package service

import (
	"testing"
	"time"

	"github.com/hindsight-io/hindsight/internal/domain"
)

func TestReplaceYear(t *testing.T) {
	tests := []struct {
		name   string
		in     time.Time
		year   int
		want   time.Time
		exists bool
	}{
		{
			name:   "plain date",
			in:     time.Date(2026, 7, 14, 9, 30, 0, 0, time.UTC),
			year:   2025,
			want:   time.Date(2025, 7, 14, 9, 30, 0, 0, time.UTC),
			exists: true,
		},
		{
			name:   "leap day into leap year",
			in:     time.Date(2028, 2, 29, 0, 0, 0, 0, time.UTC),
			year:   2024,
			want:   time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
			exists: true,
		},
		{
			name:   "leap day into common year normalizes",
			in:     time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
			year:   2025,
			want:   time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			exists: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, exists := replaceYear(tt.in, tt.year)
			if !got.Equal(tt.want) {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
			if exists != tt.exists {
				t.Errorf("expected exists=%v, got %v", tt.exists, exists)
			}
		})
	}
}

func TestTranslateDemoWindow_PlainShift(t *testing.T) {
	start := time.Date(2026, 7, 14, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC)

	out := translateDemoWindow(domain.Window(start, end), 2025)
	if !out.Start.Equal(time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start %s", out.Start)
	}
	if !out.End.Equal(time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected end %s", out.End)
	}
}

func TestTranslateDemoWindow_LeapDayWidensOutward(t *testing.T) {
	// A leap-day window has no literal image in a common year; the window
	// grows by a day on each side instead of failing.
	start := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	out := translateDemoWindow(domain.Window(start, end), 2025)
	if !out.Start.Equal(time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected start widened to Feb 28, got %s", out.Start)
	}
	if !out.End.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("expected end Mar 1, got %s", out.End)
	}
	if !out.Start.Before(*out.End) {
		t.Error("translated window must stay ordered")
	}
}

func TestTranslateDemoWindow_SwapsInvertedBounds(t *testing.T) {
	// Around New Year a shifted window can come out inverted.
	start := time.Date(2025, 12, 30, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	out := translateDemoWindow(domain.Window(start, end), 2024)
	if !out.Start.Before(*out.End) {
		t.Fatalf("expected ordered bounds, got [%s, %s)", out.Start, out.End)
	}
	if !out.Start.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start %s", out.Start)
	}
	if !out.End.Equal(time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected end %s", out.End)
	}
}

func TestTranslateDemoWindow_OpenBounds(t *testing.T) {
	out := translateDemoWindow(domain.TimeWindow{}, 2025)
	if !out.IsZero() {
		t.Errorf("an unbounded window should stay unbounded, got %+v", out)
	}

	start := time.Date(2026, 7, 14, 0, 0, 0, 0, time.UTC)
	out = translateDemoWindow(domain.WindowFrom(start), 2025)
	if out.Start == nil || out.End != nil {
		t.Fatalf("expected only the start bound, got %+v", out)
	}
	if out.Start.Year() != 2025 {
		t.Errorf("expected start in 2025, got %s", out.Start)
	}
}

func TestRestoreDemoYear(t *testing.T) {
	sensor := domain.Sensor{ID: 1, Name: "solar", Unit: "MW", EventResolution: 15 * time.Minute}
	frame := domain.NewFrame(sensor, []domain.Belief{
		{SensorID: 1, SourceID: 1, EventStart: time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC), CumulativeProbability: 1, EventValue: 10},
		{SensorID: 1, SourceID: 1, EventStart: time.Date(2025, 7, 14, 0, 15, 0, 0, time.UTC), CumulativeProbability: 1, EventValue: 20},
	})

	restoreDemoYear(frame, 2026)
	for i, r := range frame.Rows {
		if r.EventStart.Year() != 2026 {
			t.Errorf("row %d: expected year 2026, got %s", i, r.EventStart)
		}
	}
	if !frame.Rows[0].EventStart.Before(frame.Rows[1].EventStart) {
		t.Error("rows must stay ordered after the rewrite")
	}
}
