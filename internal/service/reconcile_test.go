package service

import (
	"context"
	"testing"
	"time"

	"github.com/hindsight-io/hindsight/internal/domain"
)

func TestReconcile_PersistsOnlyChangedBeliefs(t *testing.T) {
	f := setupEngine(nil, 0)
	f.mustSensor(t, "grid load", 15*time.Minute)
	src := f.mustSource(t, "forecast v2", domain.SourceKindForecaster)
	t0 := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	forecast := func(horizon time.Duration, value float64) []domain.Belief {
		return []domain.Belief{{
			SourceID: src.ID, EventStart: t0, Horizon: horizon,
			CumulativeProbability: 1, EventValue: value,
		}}
	}

	first, err := f.svc.Reconcile(ctx, ReconcileRequest{Sensor: "grid load", Beliefs: forecast(2*time.Hour, 100)})
	if err != nil {
		t.Fatalf("first reconcile: %v", err)
	}
	if first.Persisted != 1 {
		t.Fatalf("expected the first forecast persisted, got %+v", first)
	}

	// Same value an hour later adds nothing.
	repeat, err := f.svc.Reconcile(ctx, ReconcileRequest{Sensor: "grid load", Beliefs: forecast(time.Hour, 100)})
	if err != nil {
		t.Fatalf("repeat reconcile: %v", err)
	}
	if repeat.Persisted != 0 || repeat.Skipped != 1 {
		t.Errorf("an unchanged forecast must be dropped, got %+v", repeat)
	}

	// A revised value does.
	revised, err := f.svc.Reconcile(ctx, ReconcileRequest{Sensor: "grid load", Beliefs: forecast(time.Hour, 110)})
	if err != nil {
		t.Fatalf("revised reconcile: %v", err)
	}
	if revised.Persisted != 1 {
		t.Errorf("a revised forecast must be persisted, got %+v", revised)
	}

	result, err := f.svc.Fetch(ctx, FetchRequest{Sensors: []string{"grid load"}, MostRecentOnly: true})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	rows := result.Frames["grid load"].Rows
	if len(rows) != 1 || rows[0].EventValue != 110 {
		t.Errorf("expected the revision to win, got %+v", rows)
	}
}

func TestReconcile_ReplayIsIdempotent(t *testing.T) {
	f := setupEngine(nil, 0)
	f.mustSensor(t, "grid load", 15*time.Minute)
	src := f.mustSource(t, "forecast v2", domain.SourceKindForecaster)
	t0 := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	batch := []domain.Belief{
		{SourceID: src.ID, EventStart: t0, Horizon: 2 * time.Hour, CumulativeProbability: 1, EventValue: 100},
		{SourceID: src.ID, EventStart: t0, Horizon: time.Hour, CumulativeProbability: 1, EventValue: 110},
		{SourceID: src.ID, EventStart: t0.Add(15 * time.Minute), Horizon: time.Hour, CumulativeProbability: 1, EventValue: 50},
	}

	first, err := f.svc.Reconcile(ctx, ReconcileRequest{Sensor: "grid load", Beliefs: batch})
	if err != nil {
		t.Fatalf("first reconcile: %v", err)
	}
	if first.Persisted != 3 {
		t.Fatalf("expected 3 rows persisted, got %+v", first)
	}

	second, err := f.svc.Reconcile(ctx, ReconcileRequest{Sensor: "grid load", Beliefs: batch})
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if second.Persisted != 0 {
		t.Errorf("replaying the batch must write nothing, got %+v", second)
	}
	if second.Skipped != 3 {
		t.Errorf("expected all 3 candidates skipped, got %+v", second)
	}
}

func TestReconcile_MeasurementsAndForecastsCompareSeparately(t *testing.T) {
	f := setupEngine(nil, 0)
	f.mustSensor(t, "grid load", 15*time.Minute)
	src := f.mustSource(t, "meter", domain.SourceKindUser)
	t0 := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	// A measurement, then a forecast of the same value. The forecast is
	// new information about what was expected, not a repeat.
	measurement := []domain.Belief{{
		SourceID: src.ID, EventStart: t0, Horizon: -15 * time.Minute,
		CumulativeProbability: 1, EventValue: 42,
	}}
	forecast := []domain.Belief{{
		SourceID: src.ID, EventStart: t0, Horizon: time.Hour,
		CumulativeProbability: 1, EventValue: 42,
	}}

	if _, err := f.svc.Reconcile(ctx, ReconcileRequest{Sensor: "grid load", Beliefs: measurement}); err != nil {
		t.Fatalf("measurement reconcile: %v", err)
	}
	result, err := f.svc.Reconcile(ctx, ReconcileRequest{Sensor: "grid load", Beliefs: forecast})
	if err != nil {
		t.Fatalf("forecast reconcile: %v", err)
	}
	if result.Persisted != 1 {
		t.Errorf("the forecast must not be compared against the measurement, got %+v", result)
	}
}

func TestReconcile_CollapsesRepeatsWithinBatch(t *testing.T) {
	f := setupEngine(nil, 0)
	f.mustSensor(t, "grid load", 15*time.Minute)
	src := f.mustSource(t, "forecast v2", domain.SourceKindForecaster)
	t0 := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

	batch := []domain.Belief{
		{SourceID: src.ID, EventStart: t0, Horizon: 2 * time.Hour, CumulativeProbability: 1, EventValue: 100},
		{SourceID: src.ID, EventStart: t0, Horizon: time.Hour, CumulativeProbability: 1, EventValue: 100},
	}

	result, err := f.svc.Reconcile(context.Background(), ReconcileRequest{Sensor: "grid load", Beliefs: batch})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Persisted != 1 || result.Skipped != 1 {
		t.Fatalf("expected the earlier assertion kept and the repeat dropped, got %+v", result)
	}

	fetched, err := f.svc.Fetch(context.Background(), FetchRequest{Sensors: []string{"grid load"}})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	rows := fetched.Frames["grid load"].Rows
	if len(rows) != 1 || rows[0].Horizon != 2*time.Hour {
		t.Errorf("expected only the earliest belief, got %+v", rows)
	}
}

func TestReconcile_ChangedProbabilityRowKeepsWholeBelief(t *testing.T) {
	f := setupEngine(nil, 0)
	f.mustSensor(t, "grid load", 15*time.Minute)
	src := f.mustSource(t, "forecast v2", domain.SourceKindForecaster)
	t0 := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	if _, err := f.svc.Reconcile(ctx, ReconcileRequest{
		Sensor: "grid load",
		Beliefs: []domain.Belief{
			{SourceID: src.ID, EventStart: t0, Horizon: time.Hour, CumulativeProbability: 0.5, EventValue: 10},
		},
	}); err != nil {
		t.Fatalf("seed reconcile: %v", err)
	}

	// One probability row changed, one repeated. The repeat must survive
	// alongside its sibling so the stored distribution stays whole.
	result, err := f.svc.Reconcile(ctx, ReconcileRequest{
		Sensor: "grid load",
		Beliefs: []domain.Belief{
			{SourceID: src.ID, EventStart: t0, Horizon: time.Hour, CumulativeProbability: 0.5, EventValue: 10},
			{SourceID: src.ID, EventStart: t0, Horizon: time.Hour, CumulativeProbability: 0.95, EventValue: 20},
		},
	})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	// Both rows pass the complement; the unchanged one then collides with
	// the stored row and is skipped by the insert.
	if result.Persisted != 1 {
		t.Errorf("expected 1 new row, got %+v", result)
	}

	fetched, err := f.svc.Fetch(ctx, FetchRequest{Sensors: []string{"grid load"}})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(fetched.Frames["grid load"].Rows) != 2 {
		t.Errorf("expected the full distribution, got %+v", fetched.Frames["grid load"].Rows)
	}
}

func TestReconcile_KeepUnchangedBypassesComparison(t *testing.T) {
	f := setupEngine(nil, 0)
	f.mustSensor(t, "grid load", 15*time.Minute)
	src := f.mustSource(t, "forecast v2", domain.SourceKindForecaster)
	t0 := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()

	if _, err := f.svc.Reconcile(ctx, ReconcileRequest{
		Sensor: "grid load",
		Beliefs: []domain.Belief{
			{SourceID: src.ID, EventStart: t0, Horizon: 2 * time.Hour, CumulativeProbability: 1, EventValue: 100},
		},
	}); err != nil {
		t.Fatalf("seed reconcile: %v", err)
	}

	repeat := []domain.Belief{
		{SourceID: src.ID, EventStart: t0, Horizon: time.Hour, CumulativeProbability: 1, EventValue: 100},
	}
	result, err := f.svc.Reconcile(ctx, ReconcileRequest{Sensor: "grid load", Beliefs: repeat, KeepUnchanged: true})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Persisted != 1 {
		t.Errorf("KeepUnchanged must persist the repeat, got %+v", result)
	}
}

func TestReconcile_RejectsInvalidInput(t *testing.T) {
	f := setupEngine(nil, 0)
	f.mustSensor(t, "grid load", 15*time.Minute)
	src := f.mustSource(t, "meter", domain.SourceKindUser)
	t0 := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		row  domain.Belief
	}{
		{"zero probability", domain.Belief{SourceID: src.ID, EventStart: t0, CumulativeProbability: 0, EventValue: 1}},
		{"probability above one", domain.Belief{SourceID: src.ID, EventStart: t0, CumulativeProbability: 1.5, EventValue: 1}},
		{"missing source", domain.Belief{EventStart: t0, CumulativeProbability: 1, EventValue: 1}},
		{"missing event start", domain.Belief{SourceID: src.ID, CumulativeProbability: 1, EventValue: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Reconcile(context.Background(), ReconcileRequest{
				Sensor:  "grid load",
				Beliefs: []domain.Belief{tt.row},
			})
			if err == nil {
				t.Fatal("expected an error")
			}
			if ConditionOf(err) != ConditionInvalidInput {
				t.Errorf("expected %s, got %s", ConditionInvalidInput, ConditionOf(err))
			}
		})
	}
}

func TestReconcile_UnknownSensor(t *testing.T) {
	f := setupEngine(nil, 0)

	_, err := f.svc.Reconcile(context.Background(), ReconcileRequest{Sensor: "no such sensor"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if ConditionOf(err) != ConditionNotFound {
		t.Errorf("expected %s, got %s", ConditionNotFound, ConditionOf(err))
	}
}

func TestReconcile_EmptyBatch(t *testing.T) {
	f := setupEngine(nil, 0)
	f.mustSensor(t, "grid load", 15*time.Minute)

	result, err := f.svc.Reconcile(context.Background(), ReconcileRequest{Sensor: "grid load"})
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Persisted != 0 || result.Skipped != 0 {
		t.Errorf("an empty batch does nothing, got %+v", result)
	}
}
